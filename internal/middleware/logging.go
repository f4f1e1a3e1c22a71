package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/slotwise/scheduling-service/pkg/logger"
)

// Logger logs each request's method, path, status, and duration. Grounded
// on auth-service's RequestLogging, trimmed to the fields this service's
// operators actually use.
func Logger(log *logger.Logger) gin.HandlerFunc {
	skip := map[string]bool{"/health": true, "/ready": true}

	return func(c *gin.Context) {
		if skip[c.Request.URL.Path] {
			c.Next()
			return
		}

		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()

		fields := []any{"method", method, "path", path, "status", status, "duration_ms", duration.Milliseconds(), "client_ip", c.ClientIP()}
		if requestID, ok := c.Get("request_id"); ok {
			fields = append(fields, "request_id", requestID)
		}

		switch {
		case status >= 500:
			log.Error("request completed with server error", fields...)
		case status >= 400:
			log.Warn("request completed with client error", fields...)
		default:
			log.Info("request completed", fields...)
		}
	}
}
