package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gym/backend/internal/infrastructure/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type staticScheduler scheduler.Status

func (s staticScheduler) Status() scheduler.Status { return scheduler.Status(s) }

func TestHealthHandler_Check(t *testing.T) {
	next := fixedNow.Add(time.Hour)
	ok := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("dial tcp: connection refused") })

	tests := []struct {
		name       string
		checks     map[string]Pinger
		wantStatus int
		wantBody   string
		components map[string]string
	}{
		{
			name:       "all healthy",
			checks:     map[string]Pinger{"database": ok, "redis": ok},
			wantStatus: http.StatusOK,
			wantBody:   "healthy",
			components: map[string]string{"database": "ok", "redis": "ok"},
		},
		{
			name:       "redis down",
			checks:     map[string]Pinger{"database": ok, "redis": down},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   "unhealthy",
			components: map[string]string{"database": "ok", "redis": "error"},
		},
		{
			name:       "nil checks are skipped",
			checks:     map[string]Pinger{"database": ok, "redis": nil},
			wantStatus: http.StatusOK,
			wantBody:   "healthy",
			components: map[string]string{"database": "ok"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.checks, staticScheduler{Running: true, CronSpec: "0 * * * *", NextRun: &next})
			h.now = func() time.Time { return fixedNow }
			r := gin.New()
			r.GET("/health", h.Check)

			w := performRequest(t, r, http.MethodGet, "/health", nil)

			assert.Equal(t, tt.wantStatus, w.Code)
			var resp HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantBody, resp.Status)
			assert.Equal(t, "2026-03-15T06:00:00Z", resp.Time)
			assert.Equal(t, tt.components, resp.Components)
			require.NotNil(t, resp.Scheduler)
			assert.True(t, resp.Scheduler.Running)
			assert.Equal(t, "0 * * * *", resp.Scheduler.CronSpec)
		})
	}
}

func TestHealthHandler_WithoutScheduler(t *testing.T) {
	h := NewHealthHandler(nil, nil)
	r := gin.New()
	r.GET("/health", h.Check)

	w := performRequest(t, r, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "scheduler")
}
