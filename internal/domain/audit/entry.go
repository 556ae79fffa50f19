package audit

import (
	"time"

	"github.com/google/uuid"
	"github.com/gym/backend/internal/domain/shared"
)

// Action names a payment-related event recorded in the audit log
type Action string

const (
	ActionPaymentCreated          Action = "PAYMENT_CREATED"
	ActionPaymentUpdated          Action = "PAYMENT_UPDATED"
	ActionPaymentDeleted          Action = "PAYMENT_DELETED"
	ActionPaymentStatusChanged    Action = "PAYMENT_STATUS_CHANGED"
	ActionPaymentAccessed         Action = "PAYMENT_ACCESSED"
	ActionPaymentAttemptFailed    Action = "PAYMENT_ATTEMPT_FAILED"
	ActionPaymentSuccessful       Action = "PAYMENT_SUCCESSFUL"
	ActionPaymentRefunded         Action = "PAYMENT_REFUNDED"
	ActionRecurringPaymentCreated Action = "RECURRING_PAYMENT_CREATED"
	ActionInstallmentPlanCreated  Action = "INSTALLMENT_PLAN_CREATED"
)

// IsValid checks if the action is a known audit action
func (a Action) IsValid() bool {
	switch a {
	case ActionPaymentCreated, ActionPaymentUpdated, ActionPaymentDeleted,
		ActionPaymentStatusChanged, ActionPaymentAccessed, ActionPaymentAttemptFailed,
		ActionPaymentSuccessful, ActionPaymentRefunded, ActionRecurringPaymentCreated,
		ActionInstallmentPlanCreated:
		return true
	}
	return false
}

// String returns the string representation of Action
func (a Action) String() string {
	return string(a)
}

// DefaultRetentionDays keeps audit rows for roughly seven years
const DefaultRetentionDays = 2555

// Actor identifies who performed an audited operation and from where
type Actor struct {
	UserID    *uuid.UUID
	IPAddress string
	UserAgent string
}

// SystemActor is used for batch runs that have no request behind them
var SystemActor = Actor{UserAgent: "system/billing"}

// Entry is one immutable audit log row.
// Optional correlation keys are nil when absent and are not stored.
type Entry struct {
	ID        uuid.UUID  `json:"id"`
	Action    Action     `json:"action"`
	UserID    *uuid.UUID `json:"userId,omitempty"`
	MemberID  *uuid.UUID `json:"memberId,omitempty"`
	PaymentID *uuid.UUID `json:"paymentId,omitempty"`
	Details   string     `json:"details"`
	IPAddress string     `json:"ipAddress,omitempty"`
	UserAgent string     `json:"userAgent,omitempty"`
	Metadata  Metadata   `json:"metadata,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// NewEntry builds an entry for action stamped with now.
// The metadata variant must belong to the same action.
func NewEntry(action Action, details string, md Metadata, actor Actor) (*Entry, error) {
	if !action.IsValid() {
		return nil, shared.NewDomainError("INVALID_AUDIT_ACTION", "unknown audit action: "+string(action))
	}
	if md != nil && md.Action() != action {
		return nil, shared.NewDomainError("INVALID_AUDIT_METADATA",
			"metadata for "+string(md.Action())+" cannot be attached to "+string(action))
	}
	return &Entry{
		ID:        uuid.New(),
		Action:    action,
		UserID:    actor.UserID,
		Details:   details,
		IPAddress: actor.IPAddress,
		UserAgent: actor.UserAgent,
		Metadata:  md,
		Timestamp: time.Now(),
	}, nil
}

// WithPayment sets the payment correlation key
func (e *Entry) WithPayment(id uuid.UUID) *Entry {
	e.PaymentID = &id
	return e
}

// WithMember sets the member correlation key
func (e *Entry) WithMember(id uuid.UUID) *Entry {
	e.MemberID = &id
	return e
}
