package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	apppayment "github.com/gym/backend/internal/application/payment"
	"github.com/gym/backend/internal/domain/audit"
	"github.com/gym/backend/internal/domain/shared"
	"github.com/gym/backend/internal/interfaces/http/dto"
	"github.com/gym/backend/internal/interfaces/http/middleware"
)

// PaymentService is the ledger used by PaymentHandler
type PaymentService interface {
	CreatePayment(ctx context.Context, req apppayment.CreatePaymentRequest, actor audit.Actor) (*apppayment.PaymentResponse, error)
	UpdatePayment(ctx context.Context, id uuid.UUID, req apppayment.UpdatePaymentRequest, actor audit.Actor) (*apppayment.PaymentResponse, error)
	DeletePayment(ctx context.Context, id uuid.UUID, reason string, actor audit.Actor) error
	GetPayment(ctx context.Context, id uuid.UUID, actor audit.Actor) (*apppayment.PaymentResponse, error)
	ListPayments(ctx context.Context, filter apppayment.PaymentListFilter) (*shared.Paginated[apppayment.PaymentResponse], error)
	GetMemberPayments(ctx context.Context, memberID uuid.UUID) ([]apppayment.PaymentResponse, error)
	RefundPayment(ctx context.Context, id uuid.UUID, reason string, actor audit.Actor) (*apppayment.PaymentResponse, error)
	CancelPayment(ctx context.Context, id uuid.UUID, reason string, actor audit.Actor) (*apppayment.PaymentResponse, error)
	CreateInvoice(ctx context.Context, paymentID uuid.UUID) (*apppayment.Invoice, error)
	RenderInvoicePDF(ctx context.Context, paymentID uuid.UUID) (*apppayment.Invoice, []byte, error)
	GetReport(ctx context.Context, year int) (*apppayment.ReportResponse, error)
}

var _ PaymentService = (*apppayment.PaymentService)(nil)

// PaymentHandler handles ledger, invoice and report endpoints
type PaymentHandler struct {
	BaseHandler
	payments PaymentService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(payments PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// Create godoc
// @ID           createPayment
//
//	@Summary		Record a payment
//	@Description	Record a payment for an existing member. Amount must be positive, fees non-negative.
//	@Tags			payments
//	@Accept			json
//	@Produce		json
//	@Param			request	body		apppayment.CreatePaymentRequest	true	"Payment"
//	@Success		201		{object}	APIResponse[apppayment.PaymentResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/payments [post]
func (h *PaymentHandler) Create(c *gin.Context) {
	var req apppayment.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	p, err := h.payments.CreatePayment(c.Request.Context(), req, middleware.GetActor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, "Payment created successfully", p)
}

// List godoc
// @ID           listPayments
//
//	@Summary		List payments
//	@Tags			payments
//	@Produce		json
//	@Param			page		query		int		false	"Page number"	default(1)
//	@Param			pageSize	query		int		false	"Page size"		default(20)
//	@Param			orderBy		query		string	false	"Sort field"	Enums(created_at, payment_date, amount, status)
//	@Param			orderDir	query		string	false	"Sort order"	Enums(asc, desc)
//	@Param			memberId	query		string	false	"Member ID"
//	@Param			status		query		string	false	"Status"	Enums(PENDING, COMPLETED, FAILED, REFUNDED, CANCELLED)
//	@Param			method		query		string	false	"Method"
//	@Param			startDate	query		string	false	"Earliest payment date (YYYY-MM-DD)"
//	@Param			endDate		query		string	false	"Latest payment date (YYYY-MM-DD)"
//	@Success		200			{object}	PaginatedResponse[apppayment.PaymentResponse]
//	@Failure		400			{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/payments [get]
func (h *PaymentHandler) List(c *gin.Context) {
	var filter apppayment.PaymentListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.ValidationError(c, err)
		return
	}

	page, err := h.payments.ListPayments(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPaginatedResponse(page))
}

// Get godoc
// @ID           getPayment
//
//	@Summary		Get a payment
//	@Description	Reads are recorded in the audit trail
//	@Tags			payments
//	@Produce		json
//	@Param			id	path		string	true	"Payment ID"
//	@Success		200	{object}	APIResponse[apppayment.PaymentResponse]
//	@Failure		404	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/payments/{id} [get]
func (h *PaymentHandler) Get(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	p, err := h.payments.GetPayment(c.Request.Context(), id, middleware.GetActor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, "", p)
}

// Update godoc
// @ID           updatePayment
//
//	@Summary		Update a payment
//	@Description	Partial update; the result must still satisfy the ledger validation rules
//	@Tags			payments
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string							true	"Payment ID"
//	@Param			request	body		apppayment.UpdatePaymentRequest	true	"Fields to change"
//	@Success		200		{object}	APIResponse[apppayment.PaymentResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/payments/{id} [put]
func (h *PaymentHandler) Update(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req apppayment.UpdatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	p, err := h.payments.UpdatePayment(c.Request.Context(), id, req, middleware.GetActor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, "Payment updated successfully", p)
}

// Delete godoc
// @ID           deletePayment
//
//	@Summary		Delete a payment
//	@Description	Completed payments cannot be deleted
//	@Tags			payments
//	@Produce		json
//	@Param			id		path		string	true	"Payment ID"
//	@Param			reason	query		string	false	"Reason recorded in the audit trail"
//	@Success		200		{object}	SuccessResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/payments/{id} [delete]
func (h *PaymentHandler) Delete(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.payments.DeletePayment(c.Request.Context(), id, c.Query("reason"), middleware.GetActor(c)); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, "Payment deleted successfully", nil)
}

// ListByMember godoc
// @ID           listMemberPayments
//
//	@Summary		List a member's payments
//	@Tags			payments
//	@Produce		json
//	@Param			memberId	path		string	true	"Member ID"
//	@Success		200			{object}	APIResponse[[]apppayment.PaymentResponse]
//	@Failure		404			{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/payments/member/{memberId} [get]
func (h *PaymentHandler) ListByMember(c *gin.Context) {
	memberID, ok := h.parseUUIDParam(c, "memberId")
	if !ok {
		return
	}

	payments, err := h.payments.GetMemberPayments(c.Request.Context(), memberID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, "", payments)
}

// Refund godoc
// @ID           refundPayment
//
//	@Summary		Refund a completed payment
//	@Tags			payments
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string						true	"Payment ID"
//	@Param			request	body		apppayment.ReasonRequest	false	"Refund reason"
//	@Success		200		{object}	APIResponse[apppayment.PaymentResponse]
//	@Failure		404		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/payments/{id}/refund [post]
func (h *PaymentHandler) Refund(c *gin.Context) {
	h.transition(c, "Payment refunded successfully", h.payments.RefundPayment)
}

// Cancel godoc
// @ID           cancelPayment
//
//	@Summary		Cancel a pending payment
//	@Tags			payments
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string						true	"Payment ID"
//	@Param			request	body		apppayment.ReasonRequest	false	"Cancellation reason"
//	@Success		200		{object}	APIResponse[apppayment.PaymentResponse]
//	@Failure		404		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/payments/{id}/cancel [post]
func (h *PaymentHandler) Cancel(c *gin.Context) {
	h.transition(c, "Payment cancelled successfully", h.payments.CancelPayment)
}

type paymentTransition func(ctx context.Context, id uuid.UUID, reason string, actor audit.Actor) (*apppayment.PaymentResponse, error)

func (h *PaymentHandler) transition(c *gin.Context, message string, apply paymentTransition) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req apppayment.ReasonRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.ValidationError(c, err)
			return
		}
	}

	p, err := apply(c.Request.Context(), id, req.Reason, middleware.GetActor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, message, p)
}

// CreateInvoice godoc
// @ID           createInvoice
//
//	@Summary		Issue an invoice for a payment
//	@Tags			invoices
//	@Accept			json
//	@Produce		json
//	@Param			request	body		apppayment.CreateInvoiceRequest	true	"Payment to invoice"
//	@Success		201		{object}	APIResponse[apppayment.Invoice]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/invoices [post]
func (h *PaymentHandler) CreateInvoice(c *gin.Context) {
	var req apppayment.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	inv, err := h.payments.CreateInvoice(c.Request.Context(), req.PaymentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, "Invoice created successfully", inv)
}

// InvoicePDF godoc
// @ID           getInvoicePdf
//
//	@Summary		Download an invoice as PDF
//	@Tags			invoices
//	@Produce		application/pdf
//	@Param			paymentId	path		string	true	"Payment ID"
//	@Success		200			{file}		binary
//	@Failure		404			{object}	ErrorResponse
//	@Failure		503			{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/invoices/{paymentId}/pdf [get]
func (h *PaymentHandler) InvoicePDF(c *gin.Context) {
	paymentID, ok := h.parseUUIDParam(c, "paymentId")
	if !ok {
		return
	}

	inv, pdf, err := h.payments.RenderInvoicePDF(c.Request.Context(), paymentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.pdf"`, inv.Number))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// Report godoc
// @ID           getPaymentReport
//
//	@Summary		Revenue report
//	@Description	Completed revenue overall, per month of the year and per method, plus counts by status
//	@Tags			reports
//	@Produce		json
//	@Param			year	query		int	false	"Calendar year, defaults to the current year"
//	@Success		200		{object}	APIResponse[apppayment.ReportResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/reports [get]
func (h *PaymentHandler) Report(c *gin.Context) {
	year, ok := h.parseIntQuery(c, "year", 0)
	if !ok {
		return
	}

	report, err := h.payments.GetReport(c.Request.Context(), year)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, "", report)
}
