package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"ideascope-backend/internal/shared/telemetry"
)

// Logging emits a structured log per request. Handlers may set "taskId" and
// "projectId" on the context to have them included.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.EqualFold(c.Request.Method, "OPTIONS") {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		fields := map[string]any{
			"request_id":  RequestIDFromContext(c),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": float64(latency.Microseconds()) / 1000.0,
			"client_ip":   c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
		}
		if userID := UserIDFromContext(c); userID != 0 {
			fields["user_id"] = userID
		}
		if taskID := c.GetString("taskId"); taskID != "" {
			fields["task_id"] = taskID
		}
		if projectID, ok := c.Get("projectId"); ok {
			fields["project_id"] = projectID
		}
		telemetry.Info("request.complete", fields)
	}
}
