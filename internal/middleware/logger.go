package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/salon-api/pkg/logger"
)

// Logger returns a middleware that logs HTTP requests
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		// Process request
		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}
		statusCode := c.Writer.Status()

		fields := log.Zerolog().With().
			Str("request_id", c.GetString(ContextRequestID)).
			Str("client_ip", c.ClientIP()).
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", statusCode).
			Dur("latency", time.Since(start)).
			Str("user_agent", c.Request.UserAgent())
		if tenantID, ok := TenantID(c); ok {
			fields = fields.Str("tenant_id", tenantID.String())
		}
		zl := fields.Logger()

		// Log based on status code
		switch {
		case statusCode >= 500:
			zl.Error().Msg("Server error")
		case statusCode >= 400:
			zl.Warn().Msg("Client error")
		default:
			zl.Info().Msg("Request processed")
		}
	}
}
