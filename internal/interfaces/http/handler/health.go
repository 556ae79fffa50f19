package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gym/backend/internal/infrastructure/logger"
	"github.com/gym/backend/internal/infrastructure/scheduler"
	"go.uber.org/zap"
)

const healthCheckTimeout = 2 * time.Second

// Pinger is a dependency whose reachability is reported by the health check
type Pinger interface {
	Ping(ctx context.Context) error
}

// SchedulerStatus reports the billing scheduler state
type SchedulerStatus interface {
	Status() scheduler.Status
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string            `json:"status" example:"healthy"`
	Time       string            `json:"time" example:"2026-03-15T12:00:00Z"`
	Components map[string]string `json:"components"`
	Scheduler  *scheduler.Status `json:"scheduler,omitempty"`
}

// HealthHandler reports liveness of the service and its dependencies
type HealthHandler struct {
	checks    map[string]Pinger
	scheduler SchedulerStatus
	now       func() time.Time
}

// NewHealthHandler creates a HealthHandler. Nil checks are skipped.
func NewHealthHandler(checks map[string]Pinger, sched SchedulerStatus) *HealthHandler {
	active := make(map[string]Pinger, len(checks))
	for name, p := range checks {
		if p != nil {
			active[name] = p
		}
	}
	return &HealthHandler{checks: active, scheduler: sched, now: time.Now}
}

// Check godoc
// @ID           healthCheck
// @Summary      Health check
// @Description  Pings the database and cache and reports the billing scheduler state
// @Tags         system
// @Produce      json
// @Success      200 {object} HealthResponse
// @Failure      503 {object} HealthResponse
// @Router       /health [get]
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	resp := HealthResponse{
		Status:     "healthy",
		Time:       h.now().UTC().Format(time.RFC3339),
		Components: make(map[string]string, len(h.checks)),
	}
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			logger.FromContext(c.Request.Context()).Warn("Health check failed",
				zap.String("component", name),
				zap.Error(err))
			resp.Components[name] = "error"
			resp.Status = "unhealthy"
			continue
		}
		resp.Components[name] = "ok"
	}
	if h.scheduler != nil {
		status := h.scheduler.Status()
		resp.Scheduler = &status
	}

	code := http.StatusOK
	if resp.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, resp)
}
