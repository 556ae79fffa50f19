package payment

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gym/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// InstallmentStatus represents the status of an installment plan
type InstallmentStatus string

const (
	// InstallmentStatusActive plans are picked up by batch runs
	InstallmentStatusActive InstallmentStatus = "ACTIVE"
	// InstallmentStatusCompleted plans have charged every installment
	InstallmentStatusCompleted InstallmentStatus = "COMPLETED"
	// InstallmentStatusOverdue plans had a failed charge and wait for an operator
	InstallmentStatusOverdue InstallmentStatus = "OVERDUE"
	// InstallmentStatusCancelled plans never run again
	InstallmentStatusCancelled InstallmentStatus = "CANCELLED"
)

// IsValid checks if the status is a valid InstallmentStatus
func (s InstallmentStatus) IsValid() bool {
	switch s {
	case InstallmentStatusActive, InstallmentStatusCompleted, InstallmentStatusOverdue, InstallmentStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of InstallmentStatus
func (s InstallmentStatus) String() string {
	return string(s)
}

// IsTerminal returns true if no operation can reactivate the plan
func (s InstallmentStatus) IsTerminal() bool {
	return s == InstallmentStatusCompleted || s == InstallmentStatusCancelled
}

// InstallmentPlan is a fixed-count payment plan
type InstallmentPlan struct {
	shared.VersionedEntity
	MemberID             uuid.UUID
	TotalAmount          decimal.Decimal
	NumberOfInstallments int
	InstallmentAmount    decimal.Decimal
	StartDate            time.Time
	DueDayOfMonth        *int
	CurrentInstallment   int
	NextDueDate          *time.Time
	Status               InstallmentStatus
	LastProcessedDate    *time.Time
	LastError            string
	Description          string

	Member *Member
}

// NewInstallmentPlanParams carries the fields of a new plan.
// A zero InstallmentAmount is derived from the total.
type NewInstallmentPlanParams struct {
	MemberID             uuid.UUID
	TotalAmount          decimal.Decimal
	NumberOfInstallments int
	InstallmentAmount    decimal.Decimal
	StartDate            time.Time
	DueDayOfMonth        *int
	Description          string
}

// NewInstallmentPlan creates an ACTIVE plan positioned on its first installment
func NewInstallmentPlan(p NewInstallmentPlanParams) (*InstallmentPlan, error) {
	if p.MemberID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_MEMBER", "memberId is required")
	}
	if !p.TotalAmount.IsPositive() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "totalAmount must be greater than 0")
	}
	if p.NumberOfInstallments < 1 {
		return nil, shared.NewDomainError("INVALID_INSTALLMENTS", "numberOfInstallments must be at least 1")
	}
	if p.DueDayOfMonth != nil && (*p.DueDayOfMonth < 1 || *p.DueDayOfMonth > 31) {
		return nil, shared.NewDomainError("INVALID_DUE_DAY", "dueDayOfMonth must be between 1 and 31")
	}
	if p.StartDate.IsZero() {
		return nil, shared.NewDomainError("INVALID_START_DATE", "startDate is required")
	}

	amount := p.InstallmentAmount
	if amount.IsZero() {
		amount = p.TotalAmount.Div(decimal.NewFromInt(int64(p.NumberOfInstallments))).Round(2)
	}
	if amount.IsNegative() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "installmentAmount cannot be negative")
	}

	next := CalculateInstallmentDueDate(p.StartDate, p.DueDayOfMonth)
	return &InstallmentPlan{
		VersionedEntity:      shared.NewVersionedEntity(),
		MemberID:             p.MemberID,
		TotalAmount:          p.TotalAmount,
		NumberOfInstallments: p.NumberOfInstallments,
		InstallmentAmount:    amount,
		StartDate:            p.StartDate,
		DueDayOfMonth:        p.DueDayOfMonth,
		CurrentInstallment:   1,
		NextDueDate:          &next,
		Status:               InstallmentStatusActive,
		Description:          p.Description,
	}, nil
}

// IsDue reports whether the plan should be charged at now
func (ip *InstallmentPlan) IsDue(now time.Time) bool {
	return ip.Status == InstallmentStatusActive && ip.NextDueDate != nil && !ip.NextDueDate.After(now)
}

// IsLastInstallment reports whether the current installment closes the plan
func (ip *InstallmentPlan) IsLastInstallment() bool {
	return ip.CurrentInstallment >= ip.NumberOfInstallments
}

// PaymentReference correlates the ledger entry of the current installment
func (ip *InstallmentPlan) PaymentReference() string {
	return fmt.Sprintf("INST-%s-%d", ip.ID, ip.CurrentInstallment)
}

// PaymentDescription names the installment index and the total count
func (ip *InstallmentPlan) PaymentDescription() string {
	d := fmt.Sprintf("Installment %d of %d", ip.CurrentInstallment, ip.NumberOfInstallments)
	if ip.Description != "" {
		d += ": " + ip.Description
	}
	return d
}

// RecordSuccess moves to the next installment. The plan completes, and its
// next due date is cleared, when the charged installment was the last one.
func (ip *InstallmentPlan) RecordSuccess(now time.Time) {
	last := ip.IsLastInstallment()
	ip.CurrentInstallment++
	if last {
		ip.NextDueDate = nil
		ip.Status = InstallmentStatusCompleted
	} else {
		from := now
		if ip.NextDueDate != nil {
			from = *ip.NextDueDate
		}
		next := CalculateInstallmentDueDate(from, ip.DueDayOfMonth)
		ip.NextDueDate = &next
		ip.Status = InstallmentStatusActive
	}
	ip.LastProcessedDate = &now
	ip.Touch()
}

// RecordFailure marks the plan OVERDUE and returns how many days the
// installment is past due. Installments carry no retry budget.
func (ip *InstallmentPlan) RecordFailure(errMsg string, now time.Time) int {
	ip.Status = InstallmentStatusOverdue
	ip.LastError = errMsg
	ip.Touch()
	if ip.NextDueDate == nil {
		return 0
	}
	return DaysOverdue(*ip.NextDueDate, now)
}

// Resume reactivates an OVERDUE or ACTIVE plan and reschedules the current
// installment from now
func (ip *InstallmentPlan) Resume(now time.Time) error {
	if ip.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot resume installment plan in %s status", ip.Status))
	}
	next := CalculateInstallmentDueDate(now, ip.DueDayOfMonth)
	ip.Status = InstallmentStatusActive
	ip.NextDueDate = &next
	ip.LastError = ""
	ip.Touch()
	return nil
}

// Cancel ends a plan that has not completed
func (ip *InstallmentPlan) Cancel() error {
	if ip.Status == InstallmentStatusCompleted {
		return shared.NewDomainError("INVALID_STATE", "Cannot cancel a completed installment plan")
	}
	ip.Status = InstallmentStatusCancelled
	ip.Touch()
	return nil
}

// RemainingInstallments is the number of installments still to be charged
func (ip *InstallmentPlan) RemainingInstallments() int {
	r := ip.NumberOfInstallments - ip.CurrentInstallment + 1
	if r < 0 {
		return 0
	}
	return r
}
