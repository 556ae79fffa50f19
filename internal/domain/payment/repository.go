package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/gym/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// PaymentFilter defines filtering options for payment queries
type PaymentFilter struct {
	shared.Filter
	MemberID *uuid.UUID
	Status   *Status
	Method   *Method
	FromDate *time.Time
	ToDate   *time.Time
}

// StatusAggregate is the count and amount total of payments in one status
type StatusAggregate struct {
	Status Status
	Count  int64
	Total  decimal.Decimal
}

// MethodAggregate is the count and amount total of payments for one method
type MethodAggregate struct {
	Method Method
	Count  int64
	Total  decimal.Decimal
}

// MemberRepository reads members for existence checks and eager loading
type MemberRepository interface {
	// FindByID finds a member by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Member, error)

	// ExistsByID checks whether a member exists
	ExistsByID(ctx context.Context, id uuid.UUID) (bool, error)
}

// PaymentRepository defines the interface for ledger persistence
type PaymentRepository interface {
	// FindByID finds a payment by ID with its member loaded
	FindByID(ctx context.Context, id uuid.UUID) (*Payment, error)

	// FindAll finds payments with filtering and returns the unpaged total
	FindAll(ctx context.Context, filter PaymentFilter) ([]Payment, int64, error)

	// FindByMemberID finds all payments of a member, newest first
	FindByMemberID(ctx context.Context, memberID uuid.UUID) ([]Payment, error)

	// FindByStatusBetween finds payments in status with payment dates in [start, end)
	FindByStatusBetween(ctx context.Context, status Status, start, end time.Time) ([]Payment, error)

	// AggregateByStatus counts and sums payments per status
	AggregateByStatus(ctx context.Context) ([]StatusAggregate, error)

	// AggregateByMethod counts and sums payments in status per method
	AggregateByMethod(ctx context.Context, status Status) ([]MethodAggregate, error)

	// Create inserts a new payment
	Create(ctx context.Context, p *Payment) error

	// Save updates an existing payment
	Save(ctx context.Context, p *Payment) error

	// Delete removes a payment
	Delete(ctx context.Context, id uuid.UUID) error
}

// RecurringPaymentFilter defines filtering options for schedule listings
type RecurringPaymentFilter struct {
	shared.Filter
	MemberID *uuid.UUID
	Status   *RecurringStatus
}

// RecurringPaymentRepository defines the interface for schedule persistence
type RecurringPaymentRepository interface {
	// FindByID finds a schedule by ID with its member loaded
	FindByID(ctx context.Context, id uuid.UUID) (*RecurringPayment, error)

	// FindAll finds schedules with filtering and returns the unpaged total
	FindAll(ctx context.Context, filter RecurringPaymentFilter) ([]RecurringPayment, int64, error)

	// FindDue finds ACTIVE schedules with next payment date <= now whose end
	// date is unset or >= now
	FindDue(ctx context.Context, now time.Time) ([]RecurringPayment, error)

	// Create inserts a new schedule
	Create(ctx context.Context, rp *RecurringPayment) error

	// SaveWithLock updates the schedule if its version is unchanged and bumps it.
	// Returns shared.ErrConcurrencyConflict otherwise.
	SaveWithLock(ctx context.Context, rp *RecurringPayment) error

	// ClaimDue atomically claims a due schedule for charging. The claim only
	// succeeds while the row is ACTIVE with the same next payment date and
	// version that rp carries; on success rp.Version is bumped.
	ClaimDue(ctx context.Context, rp *RecurringPayment) (bool, error)
}

// InstallmentPlanFilter defines filtering options for plan listings
type InstallmentPlanFilter struct {
	shared.Filter
	MemberID *uuid.UUID
	Status   *InstallmentStatus
}

// InstallmentPlanRepository defines the interface for plan persistence
type InstallmentPlanRepository interface {
	// FindByID finds a plan by ID with its member loaded
	FindByID(ctx context.Context, id uuid.UUID) (*InstallmentPlan, error)

	// FindAll finds plans with filtering and returns the unpaged total
	FindAll(ctx context.Context, filter InstallmentPlanFilter) ([]InstallmentPlan, int64, error)

	// FindDue finds ACTIVE plans with next due date <= now
	FindDue(ctx context.Context, now time.Time) ([]InstallmentPlan, error)

	// Create inserts a new plan
	Create(ctx context.Context, ip *InstallmentPlan) error

	// SaveWithLock updates the plan if its version is unchanged and bumps it
	SaveWithLock(ctx context.Context, ip *InstallmentPlan) error

	// ClaimDue atomically claims a due plan, comparing next due date and version
	ClaimDue(ctx context.Context, ip *InstallmentPlan) (bool, error)
}
