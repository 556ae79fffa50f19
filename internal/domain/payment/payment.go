package payment

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gym/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Status represents the lifecycle status of a payment
type Status string

const (
	// StatusPending indicates the payment has been recorded but not settled
	StatusPending Status = "PENDING"
	// StatusCompleted indicates the payment was settled
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates the charge failed
	StatusFailed Status = "FAILED"
	// StatusCancelled indicates the payment was voided before settlement
	StatusCancelled Status = "CANCELLED"
	// StatusRefunded indicates a settled payment was returned to the member
	StatusRefunded Status = "REFUNDED"
)

// AllStatuses lists every valid payment status in display order
var AllStatuses = []Status{StatusPending, StatusCompleted, StatusFailed, StatusCancelled, StatusRefunded}

// IsValid checks if the status is a valid Status
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// Currency is an ISO 4217 code accepted by the ledger
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
	CurrencyCAD Currency = "CAD"

	// DefaultCurrency is applied when a payment omits its currency
	DefaultCurrency = CurrencyUSD
)

// IsValid checks if the currency is accepted by the ledger
func (c Currency) IsValid() bool {
	switch c {
	case CurrencyUSD, CurrencyEUR, CurrencyGBP, CurrencyCAD:
		return true
	}
	return false
}

// String returns the string representation of Currency
func (c Currency) String() string {
	return string(c)
}

// Method is how a payment was taken. Values outside the known set are stored as given.
type Method string

const (
	MethodCash         Method = "CASH"
	MethodCard         Method = "CARD"
	MethodBankTransfer Method = "BANK_TRANSFER"
	MethodOnline       Method = "ONLINE"
	MethodRecurring    Method = "RECURRING"
	MethodInstallment  Method = "INSTALLMENT"
)

// String returns the string representation of Method
func (m Method) String() string {
	return string(m)
}

// Payment is one financial transaction in the ledger
type Payment struct {
	shared.BaseEntity
	MemberID             uuid.UUID
	Amount               decimal.Decimal
	Method               Method
	Status               Status
	Currency             Currency
	TaxAmount            decimal.Decimal
	ProcessingFee        decimal.Decimal
	LateFees             decimal.Decimal
	Description          string
	Reference            string
	GatewayTransactionID string
	GatewayResponse      string
	PaymentDate          time.Time

	// Member is populated when the repository eager loads it
	Member *Member
}

// NewPaymentParams carries the fields accepted when recording a payment
type NewPaymentParams struct {
	MemberID             uuid.UUID
	Amount               decimal.Decimal
	Method               Method
	Status               Status
	Currency             Currency
	TaxAmount            decimal.Decimal
	ProcessingFee        decimal.Decimal
	LateFees             decimal.Decimal
	Description          string
	Reference            string
	GatewayTransactionID string
	GatewayResponse      string
	PaymentDate          time.Time
}

// NewPayment validates params and creates a payment.
// Status defaults to PENDING and currency to USD.
func NewPayment(p NewPaymentParams) (*Payment, error) {
	if p.MemberID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_MEMBER", "memberId is required")
	}
	if err := ValidateAmount(p.Amount); err != nil {
		return nil, err
	}
	if p.Currency == "" {
		p.Currency = DefaultCurrency
	}
	if err := ValidateCurrency(p.Currency); err != nil {
		return nil, err
	}
	if p.Status == "" {
		p.Status = StatusPending
	}
	if err := ValidateStatus(p.Status); err != nil {
		return nil, err
	}
	if err := validateFees(p.TaxAmount, p.ProcessingFee, p.LateFees); err != nil {
		return nil, err
	}
	if strings.TrimSpace(string(p.Method)) == "" {
		return nil, shared.NewDomainError("INVALID_METHOD", "method is required")
	}

	entity := shared.NewBaseEntity()
	if p.PaymentDate.IsZero() {
		p.PaymentDate = entity.CreatedAt
	}

	return &Payment{
		BaseEntity:           entity,
		MemberID:             p.MemberID,
		Amount:               p.Amount,
		Method:               Method(strings.ToUpper(string(p.Method))),
		Status:               p.Status,
		Currency:             p.Currency,
		TaxAmount:            p.TaxAmount,
		ProcessingFee:        p.ProcessingFee,
		LateFees:             p.LateFees,
		Description:          p.Description,
		Reference:            p.Reference,
		GatewayTransactionID: p.GatewayTransactionID,
		GatewayResponse:      p.GatewayResponse,
		PaymentDate:          p.PaymentDate,
	}, nil
}

// ValidateAmount rejects zero and negative amounts
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return shared.NewDomainError("INVALID_AMOUNT", "amount must be greater than 0")
	}
	return nil
}

// ValidateCurrency rejects currencies outside USD, EUR, GBP and CAD
func ValidateCurrency(c Currency) error {
	if !c.IsValid() {
		return shared.NewDomainError("INVALID_CURRENCY",
			fmt.Sprintf("invalid currency %q: must be one of USD, EUR, GBP, CAD", string(c)))
	}
	return nil
}

// ValidateStatus rejects statuses outside the payment status enum
func ValidateStatus(s Status) error {
	if !s.IsValid() {
		return shared.NewDomainError("INVALID_STATUS",
			fmt.Sprintf("invalid status %q: must be one of PENDING, COMPLETED, FAILED, CANCELLED, REFUNDED", string(s)))
	}
	return nil
}

// ValidateFee rejects negative fee fields
func ValidateFee(field string, v decimal.Decimal) error {
	if v.IsNegative() {
		return shared.NewDomainError("INVALID_FEE", field+" cannot be negative")
	}
	return nil
}

func validateFees(tax, processing, late decimal.Decimal) error {
	if err := ValidateFee("taxAmount", tax); err != nil {
		return err
	}
	if err := ValidateFee("processingFee", processing); err != nil {
		return err
	}
	return ValidateFee("lateFees", late)
}

// Update carries optional field changes. Nil fields are left untouched.
type Update struct {
	Amount               *decimal.Decimal
	Method               *Method
	Status               *Status
	Currency             *Currency
	TaxAmount            *decimal.Decimal
	ProcessingFee        *decimal.Decimal
	LateFees             *decimal.Decimal
	Description          *string
	Reference            *string
	GatewayTransactionID *string
	GatewayResponse      *string
	PaymentDate          *time.Time
}

// Validate checks every supplied field without touching the payment
func (u Update) Validate() error {
	if u.Amount != nil {
		if err := ValidateAmount(*u.Amount); err != nil {
			return err
		}
	}
	if u.Currency != nil {
		if err := ValidateCurrency(*u.Currency); err != nil {
			return err
		}
	}
	if u.Status != nil {
		if err := ValidateStatus(*u.Status); err != nil {
			return err
		}
	}
	if u.TaxAmount != nil {
		if err := ValidateFee("taxAmount", *u.TaxAmount); err != nil {
			return err
		}
	}
	if u.ProcessingFee != nil {
		if err := ValidateFee("processingFee", *u.ProcessingFee); err != nil {
			return err
		}
	}
	if u.LateFees != nil {
		if err := ValidateFee("lateFees", *u.LateFees); err != nil {
			return err
		}
	}
	return nil
}

// FieldChange records one field that an update altered
type FieldChange struct {
	Field string `json:"field"`
	Old   string `json:"old"`
	New   string `json:"new"`
}

// Apply validates u and applies it. Nothing is written when validation fails.
// It returns the altered fields in a stable order.
func (p *Payment) Apply(u Update) ([]FieldChange, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}

	var changes []FieldChange
	track := func(field, old, new string) {
		if old != new {
			changes = append(changes, FieldChange{Field: field, Old: old, New: new})
		}
	}

	if u.Amount != nil {
		track("amount", p.Amount.String(), u.Amount.String())
		p.Amount = *u.Amount
	}
	if u.Method != nil {
		m := Method(strings.ToUpper(string(*u.Method)))
		track("method", p.Method.String(), m.String())
		p.Method = m
	}
	if u.Status != nil {
		track("status", p.Status.String(), u.Status.String())
		p.Status = *u.Status
	}
	if u.Currency != nil {
		track("currency", p.Currency.String(), u.Currency.String())
		p.Currency = *u.Currency
	}
	if u.TaxAmount != nil {
		track("taxAmount", p.TaxAmount.String(), u.TaxAmount.String())
		p.TaxAmount = *u.TaxAmount
	}
	if u.ProcessingFee != nil {
		track("processingFee", p.ProcessingFee.String(), u.ProcessingFee.String())
		p.ProcessingFee = *u.ProcessingFee
	}
	if u.LateFees != nil {
		track("lateFees", p.LateFees.String(), u.LateFees.String())
		p.LateFees = *u.LateFees
	}
	if u.Description != nil {
		track("description", p.Description, *u.Description)
		p.Description = *u.Description
	}
	if u.Reference != nil {
		track("reference", p.Reference, *u.Reference)
		p.Reference = *u.Reference
	}
	if u.GatewayTransactionID != nil {
		track("gatewayTransactionId", p.GatewayTransactionID, *u.GatewayTransactionID)
		p.GatewayTransactionID = *u.GatewayTransactionID
	}
	if u.GatewayResponse != nil {
		track("gatewayResponse", p.GatewayResponse, *u.GatewayResponse)
		p.GatewayResponse = *u.GatewayResponse
	}
	if u.PaymentDate != nil {
		track("paymentDate", p.PaymentDate.Format(time.RFC3339), u.PaymentDate.Format(time.RFC3339))
		p.PaymentDate = *u.PaymentDate
	}

	if len(changes) > 0 {
		p.Touch()
	}
	return changes, nil
}

// CanDelete reports whether the payment may be removed from the ledger
func (p *Payment) CanDelete() error {
	if p.Status == StatusCompleted {
		return shared.NewDomainError("INVALID_STATE", "cannot delete completed payments")
	}
	return nil
}

// Refund moves a completed payment to REFUNDED
func (p *Payment) Refund() error {
	if p.Status != StatusCompleted {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot refund payment in %s status", p.Status))
	}
	p.Status = StatusRefunded
	p.Touch()
	return nil
}

// Cancel voids a payment that has not been settled
func (p *Payment) Cancel() error {
	if p.Status != StatusPending && p.Status != StatusFailed {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot cancel payment in %s status", p.Status))
	}
	p.Status = StatusCancelled
	p.Touch()
	return nil
}

// TotalAmount is the amount plus tax and fees
func (p *Payment) TotalAmount() decimal.Decimal {
	return p.Amount.Add(p.TaxAmount).Add(p.ProcessingFee).Add(p.LateFees)
}
