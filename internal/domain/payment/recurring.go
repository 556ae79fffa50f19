package payment

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gym/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Frequency is the billing cadence of a recurring payment
type Frequency string

const (
	FrequencyDaily   Frequency = "DAILY"
	FrequencyWeekly  Frequency = "WEEKLY"
	FrequencyMonthly Frequency = "MONTHLY"
	FrequencyYearly  Frequency = "YEARLY"
)

// IsValid checks if the frequency is one of the supported cadences
func (f Frequency) IsValid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly:
		return true
	}
	return false
}

// String returns the string representation of Frequency
func (f Frequency) String() string {
	return string(f)
}

// ParseFrequency normalizes case ("monthly" and "MONTHLY" are the same cadence)
func ParseFrequency(s string) Frequency {
	return Frequency(strings.ToUpper(strings.TrimSpace(s)))
}

// RecurringStatus represents the status of a recurring payment schedule
type RecurringStatus string

const (
	// RecurringStatusActive schedules are picked up by batch runs
	RecurringStatusActive RecurringStatus = "ACTIVE"
	// RecurringStatusPaused schedules are skipped until resumed
	RecurringStatusPaused RecurringStatus = "PAUSED"
	// RecurringStatusCancelled schedules never run again
	RecurringStatusCancelled RecurringStatus = "CANCELLED"
	// RecurringStatusFailed schedules exhausted their retry budget
	RecurringStatusFailed RecurringStatus = "FAILED"
)

// IsValid checks if the status is a valid RecurringStatus
func (s RecurringStatus) IsValid() bool {
	switch s {
	case RecurringStatusActive, RecurringStatusPaused, RecurringStatusCancelled, RecurringStatusFailed:
		return true
	}
	return false
}

// String returns the string representation of RecurringStatus
func (s RecurringStatus) String() string {
	return string(s)
}

const (
	DefaultMaxAttempts    = 3
	DefaultRetryDelayDays = 3
)

// RecurringPayment is a subscription-style billing schedule
type RecurringPayment struct {
	shared.VersionedEntity
	MemberID          uuid.UUID
	Amount            decimal.Decimal
	Frequency         Frequency
	StartDate         time.Time
	EndDate           *time.Time
	Status            RecurringStatus
	NextPaymentDate   time.Time
	LastProcessedDate *time.Time
	AttemptCount      int
	MaxAttempts       int
	RetryDelayDays    int
	AutoRetry         bool
	LastError         string
	Description       string

	Member *Member
}

// NewRecurringPaymentParams carries the fields of a new schedule.
// Nil MaxAttempts, RetryDelayDays and AutoRetry take their defaults.
type NewRecurringPaymentParams struct {
	MemberID       uuid.UUID
	Amount         decimal.Decimal
	Frequency      Frequency
	StartDate      time.Time
	EndDate        *time.Time
	MaxAttempts    *int
	RetryDelayDays *int
	AutoRetry      *bool
	Description    string
}

// NewRecurringPayment creates an ACTIVE schedule whose first charge falls one
// frequency unit after the start date. Only presence of required fields is checked.
func NewRecurringPayment(p NewRecurringPaymentParams) (*RecurringPayment, error) {
	if p.MemberID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_MEMBER", "memberId is required")
	}
	if p.Amount.IsZero() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "amount is required")
	}
	if p.Frequency == "" {
		return nil, shared.NewDomainError("INVALID_FREQUENCY", "frequency is required")
	}
	if p.StartDate.IsZero() {
		return nil, shared.NewDomainError("INVALID_START_DATE", "startDate is required")
	}

	rp := &RecurringPayment{
		VersionedEntity: shared.NewVersionedEntity(),
		MemberID:        p.MemberID,
		Amount:          p.Amount,
		Frequency:       ParseFrequency(string(p.Frequency)),
		StartDate:       p.StartDate,
		EndDate:         p.EndDate,
		Status:          RecurringStatusActive,
		AttemptCount:    0,
		MaxAttempts:     DefaultMaxAttempts,
		RetryDelayDays:  DefaultRetryDelayDays,
		AutoRetry:       true,
		Description:     p.Description,
	}
	if p.MaxAttempts != nil {
		rp.MaxAttempts = *p.MaxAttempts
	}
	if p.RetryDelayDays != nil {
		rp.RetryDelayDays = *p.RetryDelayDays
	}
	if p.AutoRetry != nil {
		rp.AutoRetry = *p.AutoRetry
	}
	rp.NextPaymentDate = CalculateNextPaymentDate(rp.StartDate, rp.Frequency)
	return rp, nil
}

// IsDue reports whether the schedule should be charged at now
func (rp *RecurringPayment) IsDue(now time.Time) bool {
	if rp.Status != RecurringStatusActive || rp.NextPaymentDate.After(now) {
		return false
	}
	return rp.EndDate == nil || !rp.EndDate.Before(now)
}

// PaymentReference correlates ledger entries with this schedule
func (rp *RecurringPayment) PaymentReference() string {
	return "REC-" + rp.ID.String()
}

// RecordSuccess advances the due date from the previous due date, not from
// now, so the cadence does not drift with processing delay.
func (rp *RecurringPayment) RecordSuccess(now time.Time) {
	rp.NextPaymentDate = CalculateNextPaymentDate(rp.NextPaymentDate, rp.Frequency)
	rp.LastProcessedDate = &now
	rp.AttemptCount = 0
	rp.Touch()
}

// RecordFailure counts a failed charge. It returns true when the schedule has
// become FAILED; otherwise the next attempt is pushed RetryDelayDays past now.
// Schedules with AutoRetry disabled fail on the first attempt.
func (rp *RecurringPayment) RecordFailure(errMsg string, now time.Time) bool {
	rp.AttemptCount++
	rp.LastError = errMsg
	rp.Touch()

	if rp.AttemptCount >= rp.MaxAttempts || !rp.AutoRetry {
		rp.Status = RecurringStatusFailed
		return true
	}
	rp.NextPaymentDate = now.AddDate(0, 0, rp.RetryDelayDays)
	return false
}

// Pause stops batch runs from picking up the schedule
func (rp *RecurringPayment) Pause() {
	rp.Status = RecurringStatusPaused
	rp.Touch()
}

// Resume reactivates the schedule and restarts its cadence from now
func (rp *RecurringPayment) Resume(now time.Time) {
	rp.Status = RecurringStatusActive
	rp.NextPaymentDate = CalculateNextPaymentDate(now, rp.Frequency)
	rp.Touch()
}

// Cancel ends the schedule
func (rp *RecurringPayment) Cancel() {
	rp.Status = RecurringStatusCancelled
	rp.Touch()
}
