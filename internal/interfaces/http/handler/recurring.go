package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	apppayment "github.com/gym/backend/internal/application/payment"
	"github.com/gym/backend/internal/domain/audit"
	"github.com/gym/backend/internal/domain/shared"
	"github.com/gym/backend/internal/interfaces/http/dto"
	"github.com/gym/backend/internal/interfaces/http/middleware"
)

// RecurringService manages billing schedules
type RecurringService interface {
	CreateRecurringPayment(ctx context.Context, req apppayment.CreateRecurringPaymentRequest, actor audit.Actor) (*apppayment.RecurringPaymentResponse, error)
	PauseRecurringPayment(ctx context.Context, id uuid.UUID) (*apppayment.RecurringPaymentResponse, error)
	ResumeRecurringPayment(ctx context.Context, id uuid.UUID) (*apppayment.RecurringPaymentResponse, error)
	CancelRecurringPayment(ctx context.Context, id uuid.UUID) (*apppayment.RecurringPaymentResponse, error)
	GetRecurringPayment(ctx context.Context, id uuid.UUID) (*apppayment.RecurringPaymentResponse, error)
	ListRecurringPayments(ctx context.Context, filter apppayment.RecurringPaymentListFilter) (*shared.Paginated[apppayment.RecurringPaymentResponse], error)
	ProcessRecurringPayments(ctx context.Context, now time.Time) (*apppayment.BatchResult, error)
}

var _ RecurringService = (*apppayment.RecurringScheduler)(nil)

// RecurringHandler handles recurring payment endpoints
type RecurringHandler struct {
	BaseHandler
	recurring RecurringService
	now       func() time.Time
}

// NewRecurringHandler creates a new RecurringHandler
func NewRecurringHandler(recurring RecurringService) *RecurringHandler {
	return &RecurringHandler{recurring: recurring, now: time.Now}
}

// Create godoc
// @ID           createRecurringPayment
//
//	@Summary		Create a recurring payment
//	@Description	The first charge is due on the start date
//	@Tags			recurring-payments
//	@Accept			json
//	@Produce		json
//	@Param			request	body		apppayment.CreateRecurringPaymentRequest	true	"Schedule"
//	@Success		201		{object}	APIResponse[apppayment.RecurringPaymentResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/recurring-payments [post]
func (h *RecurringHandler) Create(c *gin.Context) {
	var req apppayment.CreateRecurringPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	rp, err := h.recurring.CreateRecurringPayment(c.Request.Context(), req, middleware.GetActor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, "Recurring payment created successfully", rp)
}

// List godoc
// @ID           listRecurringPayments
//
//	@Summary		List recurring payments
//	@Tags			recurring-payments
//	@Produce		json
//	@Param			page		query		int		false	"Page number"	default(1)
//	@Param			pageSize	query		int		false	"Page size"		default(20)
//	@Param			memberId	query		string	false	"Member ID"
//	@Param			status		query		string	false	"Status"	Enums(ACTIVE, PAUSED, CANCELLED, FAILED)
//	@Success		200			{object}	PaginatedResponse[apppayment.RecurringPaymentResponse]
//	@Failure		400			{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/recurring-payments [get]
func (h *RecurringHandler) List(c *gin.Context) {
	var filter apppayment.RecurringPaymentListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.ValidationError(c, err)
		return
	}

	page, err := h.recurring.ListRecurringPayments(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPaginatedResponse(page))
}

// Get godoc
// @ID           getRecurringPayment
//
//	@Summary		Get a recurring payment
//	@Tags			recurring-payments
//	@Produce		json
//	@Param			id	path		string	true	"Recurring payment ID"
//	@Success		200	{object}	APIResponse[apppayment.RecurringPaymentResponse]
//	@Failure		404	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/recurring-payments/{id} [get]
func (h *RecurringHandler) Get(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	rp, err := h.recurring.GetRecurringPayment(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, "", rp)
}

// Pause godoc
// @ID           pauseRecurringPayment
//
//	@Summary		Pause a recurring payment
//	@Tags			recurring-payments
//	@Produce		json
//	@Param			id	path		string	true	"Recurring payment ID"
//	@Success		200	{object}	APIResponse[apppayment.RecurringPaymentResponse]
//	@Failure		404	{object}	ErrorResponse
//	@Failure		409	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/recurring-payments/{id}/pause [post]
func (h *RecurringHandler) Pause(c *gin.Context) {
	h.transition(c, "Recurring payment paused", h.recurring.PauseRecurringPayment)
}

// Resume godoc
// @ID           resumeRecurringPayment
//
//	@Summary		Resume a recurring payment
//	@Description	Resets the attempt counter and clears the last error
//	@Tags			recurring-payments
//	@Produce		json
//	@Param			id	path		string	true	"Recurring payment ID"
//	@Success		200	{object}	APIResponse[apppayment.RecurringPaymentResponse]
//	@Failure		404	{object}	ErrorResponse
//	@Failure		409	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/recurring-payments/{id}/resume [post]
func (h *RecurringHandler) Resume(c *gin.Context) {
	h.transition(c, "Recurring payment resumed", h.recurring.ResumeRecurringPayment)
}

// Cancel godoc
// @ID           cancelRecurringPayment
//
//	@Summary		Cancel a recurring payment
//	@Tags			recurring-payments
//	@Produce		json
//	@Param			id	path		string	true	"Recurring payment ID"
//	@Success		200	{object}	APIResponse[apppayment.RecurringPaymentResponse]
//	@Failure		404	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/recurring-payments/{id}/cancel [post]
func (h *RecurringHandler) Cancel(c *gin.Context) {
	h.transition(c, "Recurring payment cancelled", h.recurring.CancelRecurringPayment)
}

func (h *RecurringHandler) transition(c *gin.Context, message string, apply func(context.Context, uuid.UUID) (*apppayment.RecurringPaymentResponse, error)) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	rp, err := apply(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, message, rp)
}

// Process godoc
// @ID           processRecurringPayments
//
//	@Summary		Charge every due recurring payment now
//	@Description	Runs the same batch as the scheduler. Returns locked=true when another process is already running it.
//	@Tags			recurring-payments
//	@Produce		json
//	@Success		200	{object}	APIResponse[apppayment.BatchResult]
//	@Failure		403	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/recurring-payments/process [post]
func (h *RecurringHandler) Process(c *gin.Context) {
	result, err := h.recurring.ProcessRecurringPayments(c.Request.Context(), h.now())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, "Recurring payments processed", result)
}
