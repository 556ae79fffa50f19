package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/gym/backend/internal/infrastructure/telemetry"
)

// Profiling attaches the route pattern and method as pprof labels so
// Pyroscope can slice CPU and allocation profiles per endpoint.
// Requests that matched no route are left unlabelled.
func Profiling(enabled bool) gin.HandlerFunc {
	if !enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" || route == "/health" {
			c.Next()
			return
		}
		labels := map[string]string{
			telemetry.ProfilingLabelRoute:  route,
			telemetry.ProfilingLabelMethod: c.Request.Method,
		}
		telemetry.WithProfilingLabels(c.Request.Context(), labels, func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}
