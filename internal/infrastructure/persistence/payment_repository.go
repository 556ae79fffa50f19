package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gym/backend/internal/domain/payment"
	"github.com/gym/backend/internal/domain/shared"
	"github.com/gym/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormPaymentRepository implements payment.PaymentRepository using GORM
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// FindByID finds a payment by ID with its member loaded
func (r *GormPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	var model models.PaymentModel
	if err := r.db.WithContext(ctx).Preload("Member").First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("payment")
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll finds payments with filtering and returns the unpaged total
func (r *GormPaymentRepository) FindAll(ctx context.Context, filter payment.PaymentFilter) ([]payment.Payment, int64, error) {
	f := filter.Filter.Normalize()
	query := r.db.WithContext(ctx).Model(&models.PaymentModel{})

	if filter.MemberID != nil {
		query = query.Where("member_id = ?", *filter.MemberID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", filter.Status.String())
	}
	if filter.Method != nil {
		query = query.Where("method = ?", filter.Method.String())
	}
	if filter.FromDate != nil {
		query = query.Where("payment_date >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		query = query.Where("payment_date <= ?", *filter.ToDate)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		query = query.Where("LOWER(description) LIKE ? OR LOWER(reference) LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.PaymentModel
	err := query.Preload("Member").
		Order(orderClause(f.OrderBy, PaymentSortFields, "created_at", f.OrderDir)).
		Offset(f.Offset()).
		Limit(f.PageSize).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return toPayments(rows), total, nil
}

// FindByMemberID finds all payments of a member, newest first
func (r *GormPaymentRepository) FindByMemberID(ctx context.Context, memberID uuid.UUID) ([]payment.Payment, error) {
	var rows []models.PaymentModel
	err := r.db.WithContext(ctx).
		Where("member_id = ?", memberID).
		Order("payment_date DESC, created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toPayments(rows), nil
}

// FindByStatusBetween finds payments in status with payment dates in [start, end)
func (r *GormPaymentRepository) FindByStatusBetween(ctx context.Context, status payment.Status, start, end time.Time) ([]payment.Payment, error) {
	var rows []models.PaymentModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND payment_date >= ? AND payment_date < ?", status.String(), start, end).
		Order("payment_date ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toPayments(rows), nil
}

type aggregateRow struct {
	Bucket string
	Count  int64
	Total  decimal.Decimal
}

// AggregateByStatus counts and sums payments per status
func (r *GormPaymentRepository) AggregateByStatus(ctx context.Context) ([]payment.StatusAggregate, error) {
	var rows []aggregateRow
	err := r.db.WithContext(ctx).
		Model(&models.PaymentModel{}).
		Select("status AS bucket, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS total").
		Group("status").
		Order("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]payment.StatusAggregate, len(rows))
	for i, row := range rows {
		out[i] = payment.StatusAggregate{Status: payment.Status(row.Bucket), Count: row.Count, Total: row.Total}
	}
	return out, nil
}

// AggregateByMethod counts and sums payments in status per method
func (r *GormPaymentRepository) AggregateByMethod(ctx context.Context, status payment.Status) ([]payment.MethodAggregate, error) {
	var rows []aggregateRow
	err := r.db.WithContext(ctx).
		Model(&models.PaymentModel{}).
		Select("method AS bucket, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS total").
		Where("status = ?", status.String()).
		Group("method").
		Order("method").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]payment.MethodAggregate, len(rows))
	for i, row := range rows {
		out[i] = payment.MethodAggregate{Method: payment.Method(row.Bucket), Count: row.Count, Total: row.Total}
	}
	return out, nil
}

// Create inserts a new payment
func (r *GormPaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	return r.db.WithContext(ctx).Omit("Member").Create(models.PaymentModelFromDomain(p)).Error
}

// Save updates an existing payment
func (r *GormPaymentRepository) Save(ctx context.Context, p *payment.Payment) error {
	m := models.PaymentModelFromDomain(p)
	result := r.db.WithContext(ctx).
		Model(&models.PaymentModel{}).
		Where("id = ?", p.ID).
		Updates(map[string]any{
			"amount":                 m.Amount,
			"method":                 m.Method,
			"status":                 m.Status,
			"currency":               m.Currency,
			"tax_amount":             m.TaxAmount,
			"processing_fee":         m.ProcessingFee,
			"late_fees":              m.LateFees,
			"description":            m.Description,
			"reference":              m.Reference,
			"gateway_transaction_id": m.GatewayTransactionID,
			"gateway_response":       m.GatewayResponse,
			"payment_date":           m.PaymentDate,
			"updated_at":             m.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewNotFoundError("payment")
	}
	return nil
}

// Delete removes a payment
func (r *GormPaymentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.PaymentModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewNotFoundError("payment")
	}
	return nil
}

func toPayments(rows []models.PaymentModel) []payment.Payment {
	out := make([]payment.Payment, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

var _ payment.PaymentRepository = (*GormPaymentRepository)(nil)
