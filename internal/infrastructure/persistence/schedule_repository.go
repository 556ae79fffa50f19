package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/gym/backend/internal/domain/payment"
	"github.com/gym/backend/internal/domain/shared"
	"github.com/gym/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormRecurringPaymentRepository implements payment.RecurringPaymentRepository using GORM
type GormRecurringPaymentRepository struct {
	db *gorm.DB
}

// NewGormRecurringPaymentRepository creates a new GormRecurringPaymentRepository
func NewGormRecurringPaymentRepository(db *gorm.DB) *GormRecurringPaymentRepository {
	return &GormRecurringPaymentRepository{db: db}
}

// FindByID finds a schedule by ID with its member loaded
func (r *GormRecurringPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*payment.RecurringPayment, error) {
	var model models.RecurringPaymentModel
	if err := r.db.WithContext(ctx).Preload("Member").First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("recurring payment")
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll finds schedules with filtering and returns the unpaged total
func (r *GormRecurringPaymentRepository) FindAll(ctx context.Context, filter payment.RecurringPaymentFilter) ([]payment.RecurringPayment, int64, error) {
	f := filter.Filter.Normalize()
	query := r.db.WithContext(ctx).Model(&models.RecurringPaymentModel{})
	if filter.MemberID != nil {
		query = query.Where("member_id = ?", *filter.MemberID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", filter.Status.String())
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.RecurringPaymentModel
	err := query.Preload("Member").
		Order(orderClause(f.OrderBy, RecurringPaymentSortFields, "created_at", f.OrderDir)).
		Offset(f.Offset()).
		Limit(f.PageSize).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return toRecurringPayments(rows), total, nil
}

// FindDue finds ACTIVE schedules due at now, oldest due date first
func (r *GormRecurringPaymentRepository) FindDue(ctx context.Context, now time.Time) ([]payment.RecurringPayment, error) {
	var rows []models.RecurringPaymentModel
	err := r.db.WithContext(ctx).
		Preload("Member").
		Where("status = ? AND next_payment_date <= ?", payment.RecurringStatusActive.String(), now).
		Where("end_date IS NULL OR end_date >= ?", now).
		Order("next_payment_date ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toRecurringPayments(rows), nil
}

// Create inserts a new schedule
func (r *GormRecurringPaymentRepository) Create(ctx context.Context, rp *payment.RecurringPayment) error {
	return r.db.WithContext(ctx).Omit("Member").Create(models.RecurringPaymentModelFromDomain(rp)).Error
}

// SaveWithLock updates the schedule if its version is unchanged and bumps it
func (r *GormRecurringPaymentRepository) SaveWithLock(ctx context.Context, rp *payment.RecurringPayment) error {
	m := models.RecurringPaymentModelFromDomain(rp)
	result := r.db.WithContext(ctx).
		Model(&models.RecurringPaymentModel{}).
		Where("id = ? AND version = ?", rp.ID, rp.Version).
		Updates(map[string]any{
			"amount":              m.Amount,
			"frequency":           m.Frequency,
			"end_date":            m.EndDate,
			"status":              m.Status,
			"next_payment_date":   m.NextPaymentDate,
			"last_processed_date": m.LastProcessedDate,
			"attempt_count":       m.AttemptCount,
			"max_attempts":        m.MaxAttempts,
			"retry_delay_days":    m.RetryDelayDays,
			"auto_retry":          m.AutoRetry,
			"last_error":          m.LastError,
			"description":         m.Description,
			"version":             rp.Version + 1,
			"updated_at":          time.Now(),
		})
	if err := lockResult(ctx, r.db, &models.RecurringPaymentModel{}, rp.ID, result); err != nil {
		return err
	}
	rp.IncrementVersion()
	return nil
}

// ClaimDue atomically claims a due schedule for charging.
// Only one caller holding the loaded version and due date can win.
func (r *GormRecurringPaymentRepository) ClaimDue(ctx context.Context, rp *payment.RecurringPayment) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.RecurringPaymentModel{}).
		Where("id = ? AND status = ? AND next_payment_date = ? AND version = ?",
			rp.ID, payment.RecurringStatusActive.String(), rp.NextPaymentDate, rp.Version).
		Updates(map[string]any{
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected != 1 {
		return false, nil
	}
	rp.IncrementVersion()
	return true, nil
}

func toRecurringPayments(rows []models.RecurringPaymentModel) []payment.RecurringPayment {
	out := make([]payment.RecurringPayment, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

// GormInstallmentPlanRepository implements payment.InstallmentPlanRepository using GORM
type GormInstallmentPlanRepository struct {
	db *gorm.DB
}

// NewGormInstallmentPlanRepository creates a new GormInstallmentPlanRepository
func NewGormInstallmentPlanRepository(db *gorm.DB) *GormInstallmentPlanRepository {
	return &GormInstallmentPlanRepository{db: db}
}

// FindByID finds a plan by ID with its member loaded
func (r *GormInstallmentPlanRepository) FindByID(ctx context.Context, id uuid.UUID) (*payment.InstallmentPlan, error) {
	var model models.InstallmentPlanModel
	if err := r.db.WithContext(ctx).Preload("Member").First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("installment plan")
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll finds plans with filtering and returns the unpaged total
func (r *GormInstallmentPlanRepository) FindAll(ctx context.Context, filter payment.InstallmentPlanFilter) ([]payment.InstallmentPlan, int64, error) {
	f := filter.Filter.Normalize()
	query := r.db.WithContext(ctx).Model(&models.InstallmentPlanModel{})
	if filter.MemberID != nil {
		query = query.Where("member_id = ?", *filter.MemberID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", filter.Status.String())
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.InstallmentPlanModel
	err := query.Preload("Member").
		Order(orderClause(f.OrderBy, InstallmentPlanSortFields, "created_at", f.OrderDir)).
		Offset(f.Offset()).
		Limit(f.PageSize).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return toInstallmentPlans(rows), total, nil
}

// FindDue finds ACTIVE plans with next due date <= now, oldest first
func (r *GormInstallmentPlanRepository) FindDue(ctx context.Context, now time.Time) ([]payment.InstallmentPlan, error) {
	var rows []models.InstallmentPlanModel
	err := r.db.WithContext(ctx).
		Preload("Member").
		Where("status = ? AND next_due_date IS NOT NULL AND next_due_date <= ?", payment.InstallmentStatusActive.String(), now).
		Order("next_due_date ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toInstallmentPlans(rows), nil
}

// Create inserts a new plan
func (r *GormInstallmentPlanRepository) Create(ctx context.Context, ip *payment.InstallmentPlan) error {
	return r.db.WithContext(ctx).Omit("Member").Create(models.InstallmentPlanModelFromDomain(ip)).Error
}

// SaveWithLock updates the plan if its version is unchanged and bumps it
func (r *GormInstallmentPlanRepository) SaveWithLock(ctx context.Context, ip *payment.InstallmentPlan) error {
	m := models.InstallmentPlanModelFromDomain(ip)
	result := r.db.WithContext(ctx).
		Model(&models.InstallmentPlanModel{}).
		Where("id = ? AND version = ?", ip.ID, ip.Version).
		Updates(map[string]any{
			"installment_amount":  m.InstallmentAmount,
			"due_day_of_month":    m.DueDayOfMonth,
			"current_installment": m.CurrentInstallment,
			"next_due_date":       m.NextDueDate,
			"status":              m.Status,
			"last_processed_date": m.LastProcessedDate,
			"last_error":          m.LastError,
			"description":         m.Description,
			"version":             ip.Version + 1,
			"updated_at":          time.Now(),
		})
	if err := lockResult(ctx, r.db, &models.InstallmentPlanModel{}, ip.ID, result); err != nil {
		return err
	}
	ip.IncrementVersion()
	return nil
}

// ClaimDue atomically claims a due plan, comparing next due date and version
func (r *GormInstallmentPlanRepository) ClaimDue(ctx context.Context, ip *payment.InstallmentPlan) (bool, error) {
	if ip.NextDueDate == nil {
		return false, nil
	}
	result := r.db.WithContext(ctx).
		Model(&models.InstallmentPlanModel{}).
		Where("id = ? AND status = ? AND next_due_date = ? AND version = ?",
			ip.ID, payment.InstallmentStatusActive.String(), *ip.NextDueDate, ip.Version).
		Updates(map[string]any{
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected != 1 {
		return false, nil
	}
	ip.IncrementVersion()
	return true, nil
}

func toInstallmentPlans(rows []models.InstallmentPlanModel) []payment.InstallmentPlan {
	out := make([]payment.InstallmentPlan, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

// lockResult maps a versioned update that touched no row to NotFound or a conflict
func lockResult(ctx context.Context, db *gorm.DB, model any, id uuid.UUID, result *gorm.DB) error {
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}
	var count int64
	if err := db.WithContext(ctx).Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return shared.ErrNotFound
	}
	return shared.ErrConcurrencyConflict
}

var (
	_ payment.RecurringPaymentRepository = (*GormRecurringPaymentRepository)(nil)
	_ payment.InstallmentPlanRepository  = (*GormInstallmentPlanRepository)(nil)
)
