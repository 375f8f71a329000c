package middleware

import (
	"github.com/gin-gonic/gin"

	apperrors "github.com/jwalitptl/salon-api/pkg/errors"
	"github.com/jwalitptl/salon-api/pkg/logger"
	"github.com/jwalitptl/salon-api/pkg/validator"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Status    string                 `json:"status"`
	Code      apperrors.ErrorCode    `json:"code"`
	Message   string                 `json:"message"`
	RequestID string                 `json:"request_id,omitempty"`
	Errors    []validator.FieldError `json:"errors,omitempty"`
}

func newErrorResponse(c *gin.Context, code apperrors.ErrorCode, message string) ErrorResponse {
	return ErrorResponse{
		Status:    "error",
		Code:      code,
		Message:   message,
		RequestID: c.GetString(ContextRequestID),
	}
}

// abort stops the chain with a JSON error body.
func abort(c *gin.Context, status int, code apperrors.ErrorCode, message string) {
	c.AbortWithStatusJSON(status, newErrorResponse(c, code, message))
}

// ErrorHandler renders the last error attached with c.Error. Errors that are
// not *AppError are reported as internal errors without their text.
func ErrorHandler(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only handle errors if they exist
		if len(c.Errors) == 0 {
			return
		}

		for _, e := range c.Errors {
			log.Error(e.Err, "Request error",
				"request_id", c.GetString(ContextRequestID),
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
				"client_ip", c.ClientIP())
		}
		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last().Err
		appErr, ok := apperrors.As(lastErr)
		if !ok {
			appErr = apperrors.NewInternal(lastErr)
		}
		c.JSON(appErr.StatusCode(), newErrorResponse(c, appErr.Code, appErr.Message))
	}
}
