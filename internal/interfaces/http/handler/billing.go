package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gym/backend/internal/infrastructure/scheduler"
	"github.com/gym/backend/internal/interfaces/http/dto"
)

// BillingTrigger starts out-of-schedule billing runs
type BillingTrigger interface {
	SchedulerStatus
	Trigger() error
}

var _ BillingTrigger = (*scheduler.BillingScheduler)(nil)

// BillingHandler exposes the cron billing trigger
type BillingHandler struct {
	BaseHandler
	scheduler BillingTrigger
}

// NewBillingHandler creates a new BillingHandler
func NewBillingHandler(sched BillingTrigger) *BillingHandler {
	return &BillingHandler{scheduler: sched}
}

// Status godoc
// @ID           getBillingSchedulerStatus
//
//	@Summary		Billing scheduler status
//	@Description	Cron spec, next tick and the last run of each billing job
//	@Tags			billing
//	@Produce		json
//	@Success		200	{object}	APIResponse[scheduler.Status]
//	@Failure		403	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/billing/scheduler [get]
func (h *BillingHandler) Status(c *gin.Context) {
	h.Success(c, "Billing scheduler status", h.scheduler.Status())
}

// Trigger godoc
// @ID           triggerBillingRun
//
//	@Summary		Run every billing job now
//	@Description	Starts recurring then installment charging in the background. Poll the status endpoint for the outcome.
//	@Tags			billing
//	@Produce		json
//	@Success		202	{object}	SuccessResponse
//	@Failure		403	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/billing/scheduler/trigger [post]
func (h *BillingHandler) Trigger(c *gin.Context) {
	if err := h.scheduler.Trigger(); err != nil {
		if errors.Is(err, scheduler.ErrSchedulerNotRunning) {
			h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeServiceUnavailable, "Billing scheduler is not running")
			return
		}
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, dto.NewSuccessResponse("Billing run started", nil))
}
