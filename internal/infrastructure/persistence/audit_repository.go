package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/gym/backend/internal/domain/audit"
	"github.com/gym/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormAuditRepository implements audit.Repository using GORM.
// Rows are only ever inserted or purged by age.
type GormAuditRepository struct {
	db *gorm.DB
}

// NewGormAuditRepository creates a new GormAuditRepository
func NewGormAuditRepository(db *gorm.DB) *GormAuditRepository {
	return &GormAuditRepository{db: db}
}

// Append inserts one audit entry
func (r *GormAuditRepository) Append(ctx context.Context, e *audit.Entry) error {
	model, err := models.AuditLogModelFromDomain(e)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(model).Error
}

// FindByPaymentID returns the full trail of a payment, newest first
func (r *GormAuditRepository) FindByPaymentID(ctx context.Context, paymentID uuid.UUID) ([]audit.Entry, error) {
	return r.trail(ctx, "payment_id = ?", paymentID, 0)
}

// FindByMemberID returns up to limit entries for a member, newest first
func (r *GormAuditRepository) FindByMemberID(ctx context.Context, memberID uuid.UUID, limit int) ([]audit.Entry, error) {
	return r.trail(ctx, "member_id = ?", memberID, limit)
}

// FindByUserID returns up to limit entries performed by a user, newest first
func (r *GormAuditRepository) FindByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]audit.Entry, error) {
	return r.trail(ctx, "user_id = ?", userID, limit)
}

func (r *GormAuditRepository) trail(ctx context.Context, cond string, id uuid.UUID, limit int) ([]audit.Entry, error) {
	query := r.db.WithContext(ctx).Where(cond, id).Order("timestamp DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []models.AuditLogModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return toEntries(rows), nil
}

// FindBetween returns entries in [start, end], oldest first
func (r *GormAuditRepository) FindBetween(ctx context.Context, start, end time.Time) ([]audit.Entry, error) {
	var rows []models.AuditLogModel
	err := r.db.WithContext(ctx).
		Where("timestamp >= ? AND timestamp <= ?", start, end).
		Order("timestamp ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toEntries(rows), nil
}

// DeleteBefore purges entries strictly older than cutoff
func (r *GormAuditRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("timestamp < ?", cutoff).Delete(&models.AuditLogModel{})
	return result.RowsAffected, result.Error
}

func toEntries(rows []models.AuditLogModel) []audit.Entry {
	out := make([]audit.Entry, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

// GormComplianceRepository implements audit.ComplianceRepository using GORM
type GormComplianceRepository struct {
	db *gorm.DB
}

// NewGormComplianceRepository creates a new GormComplianceRepository
func NewGormComplianceRepository(db *gorm.DB) *GormComplianceRepository {
	return &GormComplianceRepository{db: db}
}

// Create inserts a compliance check
func (r *GormComplianceRepository) Create(ctx context.Context, c *audit.ComplianceCheck) error {
	return r.db.WithContext(ctx).Create(models.ComplianceCheckModelFromDomain(c)).Error
}

// FindBetween returns checks in [start, end], oldest first
func (r *GormComplianceRepository) FindBetween(ctx context.Context, start, end time.Time) ([]audit.ComplianceCheck, error) {
	var rows []models.ComplianceCheckModel
	err := r.db.WithContext(ctx).
		Where("timestamp >= ? AND timestamp <= ?", start, end).
		Order("timestamp ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]audit.ComplianceCheck, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

var (
	_ audit.Repository           = (*GormAuditRepository)(nil)
	_ audit.ComplianceRepository = (*GormComplianceRepository)(nil)
)
