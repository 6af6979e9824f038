package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	cerrors "github.com/PratikDhanave/analytics-capture/internal/errors"
)

// HTTPStatus maps an error to the status the sink answers with.
func HTTPStatus(err error) int {
	var ce *cerrors.CaptureError
	if !errors.As(err, &ce) {
		return http.StatusInternalServerError
	}
	switch ce.Category {
	case cerrors.CategoryUsage, cerrors.CategoryDecode:
		return http.StatusBadRequest
	case cerrors.CategorySession:
		if ce.Code == cerrors.CodeSessionClosed {
			return http.StatusGone
		}
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// APIError records err on the context for ErrorHandler and stops the chain.
func APIError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// ErrorHandler renders the last error recorded with APIError.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		status := HTTPStatus(err)

		var ce *cerrors.CaptureError
		if errors.As(err, &ce) {
			c.JSON(status, gin.H{
				"error":    ce.Message,
				"category": ce.Category,
				"code":     ce.Code,
				"details":  ce.Details,
			})
			return
		}
		c.JSON(status, gin.H{"error": err.Error()})
	}
}
