package httpserver

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stratastor/logger"

	cerrors "github.com/PratikDhanave/analytics-capture/internal/errors"
)

// LoggerMiddleware logs one line per request. Health checks are skipped.
func LoggerMiddleware(l logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		if path == "/health" {
			c.Next()
			return
		}

		requestID := c.GetHeader("X-Request-Id")
		if requestID == "" {
			requestID = uuid.New().String()
			c.Header("X-Request-Id", requestID)
		}
		c.Set("request_id", requestID)

		c.Next()

		kv := []interface{}{
			"request_id", requestID,
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", c.ClientIP(),
		}

		if len(c.Errors) == 0 {
			l.Info("Request", kv...)
			return
		}
		for _, ginErr := range c.Errors {
			var ce *cerrors.CaptureError
			if errors.As(ginErr.Err, &ce) {
				kv = append(kv, "error_category", string(ce.Category), "error_code", ce.Code, "error_message", ce.Message)
			} else {
				kv = append(kv, "error", ginErr.Error())
			}
		}
		if c.Writer.Status() >= 500 {
			l.Error("Server Error", kv...)
		} else {
			l.Warn("Client Error", kv...)
		}
	}
}
