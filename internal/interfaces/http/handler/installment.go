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

// InstallmentService manages installment plans
type InstallmentService interface {
	CreateInstallmentPlan(ctx context.Context, req apppayment.CreateInstallmentPlanRequest, actor audit.Actor) (*apppayment.InstallmentPlanResponse, error)
	ResumeInstallmentPlan(ctx context.Context, id uuid.UUID) (*apppayment.InstallmentPlanResponse, error)
	CancelInstallmentPlan(ctx context.Context, id uuid.UUID) (*apppayment.InstallmentPlanResponse, error)
	GetInstallmentPlan(ctx context.Context, id uuid.UUID) (*apppayment.InstallmentPlanResponse, error)
	ListInstallmentPlans(ctx context.Context, filter apppayment.InstallmentPlanListFilter) (*shared.Paginated[apppayment.InstallmentPlanResponse], error)
	ProcessInstallmentPayments(ctx context.Context, now time.Time) (*apppayment.BatchResult, error)
}

var _ InstallmentService = (*apppayment.InstallmentTracker)(nil)

// InstallmentHandler handles installment plan endpoints
type InstallmentHandler struct {
	BaseHandler
	plans InstallmentService
	now   func() time.Time
}

// NewInstallmentHandler creates a new InstallmentHandler
func NewInstallmentHandler(plans InstallmentService) *InstallmentHandler {
	return &InstallmentHandler{plans: plans, now: time.Now}
}

// Create godoc
// @ID           createInstallmentPlan
//
//	@Summary		Create an installment plan
//	@Description	Installment amount defaults to the total divided by the count, rounded to cents
//	@Tags			installment-plans
//	@Accept			json
//	@Produce		json
//	@Param			request	body		apppayment.CreateInstallmentPlanRequest	true	"Plan"
//	@Success		201		{object}	APIResponse[apppayment.InstallmentPlanResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/installment-plans [post]
func (h *InstallmentHandler) Create(c *gin.Context) {
	var req apppayment.CreateInstallmentPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	plan, err := h.plans.CreateInstallmentPlan(c.Request.Context(), req, middleware.GetActor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, "Installment plan created successfully", plan)
}

// List godoc
// @ID           listInstallmentPlans
//
//	@Summary		List installment plans
//	@Tags			installment-plans
//	@Produce		json
//	@Param			page		query		int		false	"Page number"	default(1)
//	@Param			pageSize	query		int		false	"Page size"		default(20)
//	@Param			memberId	query		string	false	"Member ID"
//	@Param			status		query		string	false	"Status"	Enums(ACTIVE, COMPLETED, OVERDUE, CANCELLED)
//	@Success		200			{object}	PaginatedResponse[apppayment.InstallmentPlanResponse]
//	@Failure		400			{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/installment-plans [get]
func (h *InstallmentHandler) List(c *gin.Context) {
	var filter apppayment.InstallmentPlanListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.ValidationError(c, err)
		return
	}

	page, err := h.plans.ListInstallmentPlans(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPaginatedResponse(page))
}

// Get godoc
// @ID           getInstallmentPlan
//
//	@Summary		Get an installment plan
//	@Tags			installment-plans
//	@Produce		json
//	@Param			id	path		string	true	"Installment plan ID"
//	@Success		200	{object}	APIResponse[apppayment.InstallmentPlanResponse]
//	@Failure		404	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/installment-plans/{id} [get]
func (h *InstallmentHandler) Get(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	plan, err := h.plans.GetInstallmentPlan(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, "", plan)
}

// Resume godoc
// @ID           resumeInstallmentPlan
//
//	@Summary		Resume an overdue installment plan
//	@Tags			installment-plans
//	@Produce		json
//	@Param			id	path		string	true	"Installment plan ID"
//	@Success		200	{object}	APIResponse[apppayment.InstallmentPlanResponse]
//	@Failure		404	{object}	ErrorResponse
//	@Failure		422	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/installment-plans/{id}/resume [post]
func (h *InstallmentHandler) Resume(c *gin.Context) {
	h.transition(c, "Installment plan resumed", h.plans.ResumeInstallmentPlan)
}

// Cancel godoc
// @ID           cancelInstallmentPlan
//
//	@Summary		Cancel an installment plan
//	@Tags			installment-plans
//	@Produce		json
//	@Param			id	path		string	true	"Installment plan ID"
//	@Success		200	{object}	APIResponse[apppayment.InstallmentPlanResponse]
//	@Failure		404	{object}	ErrorResponse
//	@Failure		422	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/installment-plans/{id}/cancel [post]
func (h *InstallmentHandler) Cancel(c *gin.Context) {
	h.transition(c, "Installment plan cancelled", h.plans.CancelInstallmentPlan)
}

func (h *InstallmentHandler) transition(c *gin.Context, message string, apply func(context.Context, uuid.UUID) (*apppayment.InstallmentPlanResponse, error)) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	plan, err := apply(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, message, plan)
}

// Process godoc
// @ID           processInstallmentPayments
//
//	@Summary		Charge every due installment now
//	@Tags			installment-plans
//	@Produce		json
//	@Success		200	{object}	APIResponse[apppayment.BatchResult]
//	@Failure		403	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/installment-plans/process [post]
func (h *InstallmentHandler) Process(c *gin.Context) {
	result, err := h.plans.ProcessInstallmentPayments(c.Request.Context(), h.now())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, "Installment payments processed", result)
}
