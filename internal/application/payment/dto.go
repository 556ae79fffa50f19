package payment

import (
	"time"

	"github.com/google/uuid"
	"github.com/gym/backend/internal/domain/payment"
	"github.com/gym/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// =============================================================================
// Payment DTOs
// =============================================================================

// CreatePaymentRequest represents a request to record a payment
type CreatePaymentRequest struct {
	MemberID             uuid.UUID        `json:"memberId" binding:"required"`
	Amount               decimal.Decimal  `json:"amount" binding:"required"`
	Method               string           `json:"method" binding:"required,max=30"`
	Status               string           `json:"status" binding:"omitempty,oneof=PENDING COMPLETED FAILED REFUNDED CANCELLED"`
	Currency             string           `json:"currency" binding:"omitempty,currency"`
	TaxAmount            *decimal.Decimal `json:"taxAmount"`
	ProcessingFee        *decimal.Decimal `json:"processingFee"`
	LateFees             *decimal.Decimal `json:"lateFees"`
	Description          string           `json:"description" binding:"max=500"`
	Reference            string           `json:"reference" binding:"max=100"`
	GatewayTransactionID string           `json:"gatewayTransactionId" binding:"max=200"`
	GatewayResponse      string           `json:"gatewayResponse"`
	PaymentDate          *time.Time       `json:"paymentDate"`
}

func (r CreatePaymentRequest) params() payment.NewPaymentParams {
	p := payment.NewPaymentParams{
		MemberID:             r.MemberID,
		Amount:               r.Amount,
		Method:               payment.Method(r.Method),
		Status:               payment.Status(r.Status),
		Currency:             payment.Currency(r.Currency),
		Description:          r.Description,
		Reference:            r.Reference,
		GatewayTransactionID: r.GatewayTransactionID,
		GatewayResponse:      r.GatewayResponse,
	}
	if r.TaxAmount != nil {
		p.TaxAmount = *r.TaxAmount
	}
	if r.ProcessingFee != nil {
		p.ProcessingFee = *r.ProcessingFee
	}
	if r.LateFees != nil {
		p.LateFees = *r.LateFees
	}
	if r.PaymentDate != nil {
		p.PaymentDate = *r.PaymentDate
	}
	return p
}

// UpdatePaymentRequest represents a partial payment update
type UpdatePaymentRequest struct {
	Amount               *decimal.Decimal `json:"amount"`
	Method               *string          `json:"method" binding:"omitempty,max=30"`
	Status               *string          `json:"status" binding:"omitempty,oneof=PENDING COMPLETED FAILED REFUNDED CANCELLED"`
	Currency             *string          `json:"currency" binding:"omitempty,currency"`
	TaxAmount            *decimal.Decimal `json:"taxAmount"`
	ProcessingFee        *decimal.Decimal `json:"processingFee"`
	LateFees             *decimal.Decimal `json:"lateFees"`
	Description          *string          `json:"description" binding:"omitempty,max=500"`
	Reference            *string          `json:"reference" binding:"omitempty,max=100"`
	GatewayTransactionID *string          `json:"gatewayTransactionId" binding:"omitempty,max=200"`
	GatewayResponse      *string          `json:"gatewayResponse"`
	PaymentDate          *time.Time       `json:"paymentDate"`
	// Reason is recorded in the audit log when the status changes
	Reason string `json:"reason" binding:"max=500"`
}

func (r UpdatePaymentRequest) update() payment.Update {
	u := payment.Update{
		Amount:               r.Amount,
		TaxAmount:            r.TaxAmount,
		ProcessingFee:        r.ProcessingFee,
		LateFees:             r.LateFees,
		Description:          r.Description,
		Reference:            r.Reference,
		GatewayTransactionID: r.GatewayTransactionID,
		GatewayResponse:      r.GatewayResponse,
		PaymentDate:          r.PaymentDate,
	}
	if r.Method != nil {
		m := payment.Method(*r.Method)
		u.Method = &m
	}
	if r.Status != nil {
		s := payment.Status(*r.Status)
		u.Status = &s
	}
	if r.Currency != nil {
		c := payment.Currency(*r.Currency)
		u.Currency = &c
	}
	return u
}

// ReasonRequest carries the reason for a refund, cancellation or deletion
type ReasonRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// PaymentListFilter represents filter options for payment listings
type PaymentListFilter struct {
	Page      int        `form:"page" binding:"omitempty,min=1"`
	PageSize  int        `form:"pageSize" binding:"omitempty,min=1,max=100"`
	OrderBy   string     `form:"orderBy" binding:"omitempty,oneof=created_at payment_date amount status"`
	OrderDir  string     `form:"orderDir" binding:"omitempty,oneof=asc desc"`
	MemberID  *uuid.UUID `form:"memberId" parser:"encoding.TextUnmarshaler"`
	Status    string     `form:"status" binding:"omitempty,oneof=PENDING COMPLETED FAILED REFUNDED CANCELLED"`
	Method    string     `form:"method"`
	StartDate *time.Time `form:"startDate" time_format:"2006-01-02"`
	EndDate   *time.Time `form:"endDate" time_format:"2006-01-02"`
}

func (f PaymentListFilter) domain() payment.PaymentFilter {
	df := payment.PaymentFilter{
		Filter: shared.Filter{
			Page:     f.Page,
			PageSize: f.PageSize,
			OrderBy:  f.OrderBy,
			OrderDir: f.OrderDir,
		},
		MemberID: f.MemberID,
		FromDate: f.StartDate,
		ToDate:   f.EndDate,
	}
	if f.Status != "" {
		s := payment.Status(f.Status)
		df.Status = &s
	}
	if f.Method != "" {
		m := payment.Method(f.Method)
		df.Method = &m
	}
	df.Filter = df.Filter.Normalize()
	return df
}

// MemberResponse is the member summary embedded in billing responses
type MemberResponse struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
}

func toMemberResponse(m *payment.Member) *MemberResponse {
	if m == nil {
		return nil
	}
	return &MemberResponse{
		ID:        m.ID,
		FirstName: m.FirstName,
		LastName:  m.LastName,
		Email:     m.Email,
		Phone:     m.Phone,
	}
}

// PaymentResponse represents a payment in API responses
type PaymentResponse struct {
	ID                   uuid.UUID       `json:"id"`
	MemberID             uuid.UUID       `json:"memberId"`
	Amount               decimal.Decimal `json:"amount"`
	Method               string          `json:"method"`
	Status               string          `json:"status"`
	Currency             string          `json:"currency"`
	TaxAmount            decimal.Decimal `json:"taxAmount"`
	ProcessingFee        decimal.Decimal `json:"processingFee"`
	LateFees             decimal.Decimal `json:"lateFees"`
	TotalAmount          decimal.Decimal `json:"totalAmount"`
	Description          string          `json:"description,omitempty"`
	Reference            string          `json:"reference,omitempty"`
	GatewayTransactionID string          `json:"gatewayTransactionId,omitempty"`
	PaymentDate          time.Time       `json:"paymentDate"`
	CreatedAt            time.Time       `json:"createdAt"`
	UpdatedAt            time.Time       `json:"updatedAt"`
	Member               *MemberResponse `json:"member,omitempty"`
}

// ToPaymentResponse converts a domain Payment to a response
func ToPaymentResponse(p *payment.Payment) PaymentResponse {
	return PaymentResponse{
		ID:                   p.ID,
		MemberID:             p.MemberID,
		Amount:               p.Amount,
		Method:               p.Method.String(),
		Status:               p.Status.String(),
		Currency:             p.Currency.String(),
		TaxAmount:            p.TaxAmount,
		ProcessingFee:        p.ProcessingFee,
		LateFees:             p.LateFees,
		TotalAmount:          p.TotalAmount(),
		Description:          p.Description,
		Reference:            p.Reference,
		GatewayTransactionID: p.GatewayTransactionID,
		PaymentDate:          p.PaymentDate,
		CreatedAt:            p.CreatedAt,
		UpdatedAt:            p.UpdatedAt,
		Member:               toMemberResponse(p.Member),
	}
}

// ToPaymentResponses converts a slice of payments
func ToPaymentResponses(payments []payment.Payment) []PaymentResponse {
	out := make([]PaymentResponse, len(payments))
	for i := range payments {
		out[i] = ToPaymentResponse(&payments[i])
	}
	return out
}

// =============================================================================
// Recurring payment DTOs
// =============================================================================

// CreateRecurringPaymentRequest represents a request to set up a billing schedule
type CreateRecurringPaymentRequest struct {
	MemberID       uuid.UUID       `json:"memberId" binding:"required"`
	Amount         decimal.Decimal `json:"amount" binding:"required"`
	Frequency      string          `json:"frequency" binding:"required,frequency"`
	StartDate      time.Time       `json:"startDate" binding:"required"`
	EndDate        *time.Time      `json:"endDate"`
	MaxAttempts    *int            `json:"maxAttempts" binding:"omitempty,min=1,max=10"`
	RetryDelayDays *int            `json:"retryDelayDays" binding:"omitempty,min=0,max=30"`
	AutoRetry      *bool           `json:"autoRetry"`
	Description    string          `json:"description" binding:"max=500"`
}

// RecurringPaymentListFilter represents filter options for schedule listings
type RecurringPaymentListFilter struct {
	Page     int        `form:"page" binding:"omitempty,min=1"`
	PageSize int        `form:"pageSize" binding:"omitempty,min=1,max=100"`
	MemberID *uuid.UUID `form:"memberId" parser:"encoding.TextUnmarshaler"`
	Status   string     `form:"status" binding:"omitempty,oneof=ACTIVE PAUSED CANCELLED FAILED"`
}

// RecurringPaymentResponse represents a billing schedule in API responses
type RecurringPaymentResponse struct {
	ID                uuid.UUID       `json:"id"`
	MemberID          uuid.UUID       `json:"memberId"`
	Amount            decimal.Decimal `json:"amount"`
	Frequency         string          `json:"frequency"`
	StartDate         time.Time       `json:"startDate"`
	EndDate           *time.Time      `json:"endDate,omitempty"`
	Status            string          `json:"status"`
	NextPaymentDate   time.Time       `json:"nextPaymentDate"`
	LastProcessedDate *time.Time      `json:"lastProcessedDate,omitempty"`
	AttemptCount      int             `json:"attemptCount"`
	MaxAttempts       int             `json:"maxAttempts"`
	RetryDelayDays    int             `json:"retryDelayDays"`
	AutoRetry         bool            `json:"autoRetry"`
	LastError         string          `json:"lastError,omitempty"`
	Description       string          `json:"description,omitempty"`
	Version           int             `json:"version"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
	Member            *MemberResponse `json:"member,omitempty"`
}

// ToRecurringPaymentResponse converts a domain RecurringPayment to a response
func ToRecurringPaymentResponse(rp *payment.RecurringPayment) RecurringPaymentResponse {
	return RecurringPaymentResponse{
		ID:                rp.ID,
		MemberID:          rp.MemberID,
		Amount:            rp.Amount,
		Frequency:         rp.Frequency.String(),
		StartDate:         rp.StartDate,
		EndDate:           rp.EndDate,
		Status:            rp.Status.String(),
		NextPaymentDate:   rp.NextPaymentDate,
		LastProcessedDate: rp.LastProcessedDate,
		AttemptCount:      rp.AttemptCount,
		MaxAttempts:       rp.MaxAttempts,
		RetryDelayDays:    rp.RetryDelayDays,
		AutoRetry:         rp.AutoRetry,
		LastError:         rp.LastError,
		Description:       rp.Description,
		Version:           rp.Version,
		CreatedAt:         rp.CreatedAt,
		UpdatedAt:         rp.UpdatedAt,
		Member:            toMemberResponse(rp.Member),
	}
}

// =============================================================================
// Installment plan DTOs
// =============================================================================

// CreateInstallmentPlanRequest represents a request to set up an installment plan
type CreateInstallmentPlanRequest struct {
	MemberID             uuid.UUID        `json:"memberId" binding:"required"`
	TotalAmount          decimal.Decimal  `json:"totalAmount" binding:"required"`
	NumberOfInstallments int              `json:"numberOfInstallments" binding:"required,min=1,max=120"`
	InstallmentAmount    *decimal.Decimal `json:"installmentAmount"`
	StartDate            time.Time        `json:"startDate" binding:"required"`
	DueDayOfMonth        *int             `json:"dueDayOfMonth" binding:"omitempty,min=1,max=31"`
	Description          string           `json:"description" binding:"max=500"`
}

// InstallmentPlanListFilter represents filter options for plan listings
type InstallmentPlanListFilter struct {
	Page     int        `form:"page" binding:"omitempty,min=1"`
	PageSize int        `form:"pageSize" binding:"omitempty,min=1,max=100"`
	MemberID *uuid.UUID `form:"memberId" parser:"encoding.TextUnmarshaler"`
	Status   string     `form:"status" binding:"omitempty,oneof=ACTIVE COMPLETED OVERDUE CANCELLED"`
}

// InstallmentPlanResponse represents an installment plan in API responses
type InstallmentPlanResponse struct {
	ID                    uuid.UUID       `json:"id"`
	MemberID              uuid.UUID       `json:"memberId"`
	TotalAmount           decimal.Decimal `json:"totalAmount"`
	NumberOfInstallments  int             `json:"numberOfInstallments"`
	InstallmentAmount     decimal.Decimal `json:"installmentAmount"`
	StartDate             time.Time       `json:"startDate"`
	DueDayOfMonth         *int            `json:"dueDayOfMonth,omitempty"`
	CurrentInstallment    int             `json:"currentInstallment"`
	RemainingInstallments int             `json:"remainingInstallments"`
	NextDueDate           *time.Time      `json:"nextDueDate"`
	Status                string          `json:"status"`
	LastProcessedDate     *time.Time      `json:"lastProcessedDate,omitempty"`
	LastError             string          `json:"lastError,omitempty"`
	Description           string          `json:"description,omitempty"`
	Version               int             `json:"version"`
	CreatedAt             time.Time       `json:"createdAt"`
	UpdatedAt             time.Time       `json:"updatedAt"`
	Member                *MemberResponse `json:"member,omitempty"`
}

// ToInstallmentPlanResponse converts a domain InstallmentPlan to a response
func ToInstallmentPlanResponse(ip *payment.InstallmentPlan) InstallmentPlanResponse {
	return InstallmentPlanResponse{
		ID:                    ip.ID,
		MemberID:              ip.MemberID,
		TotalAmount:           ip.TotalAmount,
		NumberOfInstallments:  ip.NumberOfInstallments,
		InstallmentAmount:     ip.InstallmentAmount,
		StartDate:             ip.StartDate,
		DueDayOfMonth:         ip.DueDayOfMonth,
		CurrentInstallment:    ip.CurrentInstallment,
		RemainingInstallments: ip.RemainingInstallments(),
		NextDueDate:           ip.NextDueDate,
		Status:                ip.Status.String(),
		LastProcessedDate:     ip.LastProcessedDate,
		LastError:             ip.LastError,
		Description:           ip.Description,
		Version:               ip.Version,
		CreatedAt:             ip.CreatedAt,
		UpdatedAt:             ip.UpdatedAt,
		Member:                toMemberResponse(ip.Member),
	}
}
