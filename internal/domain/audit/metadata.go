package audit

import (
	"encoding/json"
	"fmt"
	"time"
)

// Metadata is the structured payload of an audit entry.
// Each action has exactly one variant; the action is the discriminator.
type Metadata interface {
	Action() Action
}

// PaymentCreatedMetadata describes a newly recorded payment
type PaymentCreatedMetadata struct {
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	Method    string `json:"method"`
	Status    string `json:"status"`
	Reference string `json:"reference,omitempty"`
}

// FieldChange is one altered field of an update
type FieldChange struct {
	Field string `json:"field"`
	Old   string `json:"old"`
	New   string `json:"new"`
}

// PaymentUpdatedMetadata lists the fields an update altered
type PaymentUpdatedMetadata struct {
	Changes []FieldChange `json:"changes"`
}

// PaymentDeletedMetadata snapshots a payment before removal
type PaymentDeletedMetadata struct {
	Amount string `json:"amount"`
	Status string `json:"status"`
	Method string `json:"method"`
	Reason string `json:"reason,omitempty"`
}

// PaymentStatusChangedMetadata records a status transition
type PaymentStatusChangedMetadata struct {
	OldStatus string `json:"oldStatus"`
	NewStatus string `json:"newStatus"`
	Reason    string `json:"reason,omitempty"`
}

// PaymentAccessedMetadata records a read of payment data
type PaymentAccessedMetadata struct {
	AccessType string `json:"accessType"`
}

// PaymentAttemptFailedMetadata records a failed charge
type PaymentAttemptFailedMetadata struct {
	Amount        string `json:"amount"`
	ErrorMessage  string `json:"errorMessage"`
	Source        string `json:"source"`
	ScheduleID    string `json:"scheduleId,omitempty"`
	AttemptNumber int    `json:"attemptNumber,omitempty"`
	Terminal      bool   `json:"terminal"`
}

// PaymentSuccessfulMetadata records a settled payment
type PaymentSuccessfulMetadata struct {
	Amount               string `json:"amount"`
	Method               string `json:"method"`
	GatewayTransactionID string `json:"gatewayTransactionId,omitempty"`
}

// PaymentRefundedMetadata records a refund
type PaymentRefundedMetadata struct {
	RefundAmount   string `json:"refundAmount"`
	OriginalAmount string `json:"originalAmount"`
	Reason         string `json:"reason,omitempty"`
}

// RecurringPaymentCreatedMetadata describes a new billing schedule
type RecurringPaymentCreatedMetadata struct {
	RecurringPaymentID string     `json:"recurringPaymentId"`
	Amount             string     `json:"amount"`
	Frequency          string     `json:"frequency"`
	StartDate          time.Time  `json:"startDate"`
	EndDate            *time.Time `json:"endDate,omitempty"`
}

// InstallmentPlanCreatedMetadata describes a new installment plan
type InstallmentPlanCreatedMetadata struct {
	InstallmentPlanID    string `json:"installmentPlanId"`
	TotalAmount          string `json:"totalAmount"`
	NumberOfInstallments int    `json:"numberOfInstallments"`
	InstallmentAmount    string `json:"installmentAmount"`
}

func (PaymentCreatedMetadata) Action() Action          { return ActionPaymentCreated }
func (PaymentUpdatedMetadata) Action() Action          { return ActionPaymentUpdated }
func (PaymentDeletedMetadata) Action() Action          { return ActionPaymentDeleted }
func (PaymentStatusChangedMetadata) Action() Action    { return ActionPaymentStatusChanged }
func (PaymentAccessedMetadata) Action() Action         { return ActionPaymentAccessed }
func (PaymentAttemptFailedMetadata) Action() Action    { return ActionPaymentAttemptFailed }
func (PaymentSuccessfulMetadata) Action() Action       { return ActionPaymentSuccessful }
func (PaymentRefundedMetadata) Action() Action         { return ActionPaymentRefunded }
func (RecurringPaymentCreatedMetadata) Action() Action { return ActionRecurringPaymentCreated }
func (InstallmentPlanCreatedMetadata) Action() Action  { return ActionInstallmentPlanCreated }

// EncodeMetadata serializes md for storage. Nil metadata encodes to nil.
func EncodeMetadata(md Metadata) ([]byte, error) {
	if md == nil {
		return nil, nil
	}
	return json.Marshal(md)
}

// DecodeMetadata restores the variant that belongs to action
func DecodeMetadata(action Action, data []byte) (Metadata, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}

	var md Metadata
	switch action {
	case ActionPaymentCreated:
		md = &PaymentCreatedMetadata{}
	case ActionPaymentUpdated:
		md = &PaymentUpdatedMetadata{}
	case ActionPaymentDeleted:
		md = &PaymentDeletedMetadata{}
	case ActionPaymentStatusChanged:
		md = &PaymentStatusChangedMetadata{}
	case ActionPaymentAccessed:
		md = &PaymentAccessedMetadata{}
	case ActionPaymentAttemptFailed:
		md = &PaymentAttemptFailedMetadata{}
	case ActionPaymentSuccessful:
		md = &PaymentSuccessfulMetadata{}
	case ActionPaymentRefunded:
		md = &PaymentRefundedMetadata{}
	case ActionRecurringPaymentCreated:
		md = &RecurringPaymentCreatedMetadata{}
	case ActionInstallmentPlanCreated:
		md = &InstallmentPlanCreatedMetadata{}
	default:
		return nil, fmt.Errorf("audit: no metadata variant for action %q", action)
	}

	if err := json.Unmarshal(data, md); err != nil {
		return nil, fmt.Errorf("audit: decode %s metadata: %w", action, err)
	}
	return deref(md), nil
}

// deref returns the value form so decoded metadata compares equal to what was written
func deref(md Metadata) Metadata {
	switch v := md.(type) {
	case *PaymentCreatedMetadata:
		return *v
	case *PaymentUpdatedMetadata:
		return *v
	case *PaymentDeletedMetadata:
		return *v
	case *PaymentStatusChangedMetadata:
		return *v
	case *PaymentAccessedMetadata:
		return *v
	case *PaymentAttemptFailedMetadata:
		return *v
	case *PaymentSuccessfulMetadata:
		return *v
	case *PaymentRefundedMetadata:
		return *v
	case *RecurringPaymentCreatedMetadata:
		return *v
	case *InstallmentPlanCreatedMetadata:
		return *v
	}
	return md
}
