package handler

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gym/backend/internal/infrastructure/scheduler"
	"github.com/gym/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTrigger struct {
	status    scheduler.Status
	err       error
	triggered int
}

func (f *fakeTrigger) Status() scheduler.Status { return f.status }

func (f *fakeTrigger) Trigger() error {
	if f.err != nil {
		return f.err
	}
	f.triggered++
	return nil
}

func setupBillingRouter(sched BillingTrigger) *gin.Engine {
	h := NewBillingHandler(sched)
	r := newTestEngine()
	r.GET("/billing/scheduler", h.Status)
	r.POST("/billing/scheduler/trigger", h.Trigger)
	return r
}

func TestBillingHandler_Status(t *testing.T) {
	finished := fixedNow.Add(2 * time.Second)
	sched := &fakeTrigger{status: scheduler.Status{
		Running:  true,
		CronSpec: "0 6 * * *",
		LastRuns: []scheduler.JobRun{{Job: "recurring", Status: scheduler.JobStatusSuccess, StartedAt: fixedNow, FinishedAt: &finished}},
	}}

	w := performRequest(t, setupBillingRouter(sched), http.MethodGet, "/billing/scheduler", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var got scheduler.Status
	decodeData(t, decodeResponse(t, w), &got)
	assert.True(t, got.Running)
	assert.Equal(t, "0 6 * * *", got.CronSpec)
	require.Len(t, got.LastRuns, 1)
	assert.Equal(t, scheduler.JobStatusSuccess, got.LastRuns[0].Status)
}

func TestBillingHandler_Trigger(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		sched := &fakeTrigger{}
		w := performRequest(t, setupBillingRouter(sched), http.MethodPost, "/billing/scheduler/trigger", nil)

		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.True(t, decodeResponse(t, w).IsSuccess)
		assert.Equal(t, 1, sched.triggered)
	})

	t.Run("scheduler stopped", func(t *testing.T) {
		sched := &fakeTrigger{err: scheduler.ErrSchedulerNotRunning}
		w := performRequest(t, setupBillingRouter(sched), http.MethodPost, "/billing/scheduler/trigger", nil)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, dto.ErrCodeServiceUnavailable, decodeResponse(t, w).Error.Code)
	})

	t.Run("unexpected error", func(t *testing.T) {
		sched := &fakeTrigger{err: errors.New("boom")}
		w := performRequest(t, setupBillingRouter(sched), http.MethodPost, "/billing/scheduler/trigger", nil)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
