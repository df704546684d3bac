package middleware

import (
	"time"

	"pairlink/pkg/logger"
	"pairlink/pkg/utils"

	"github.com/gin-gonic/gin"
)

// RequestLoggerMiddleware assigns each request a trace ID and logs the
// request outcome with context fields attached.
func RequestLoggerMiddleware(ctxLogger *logger.ContextLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader("X-Trace-ID")
		if traceID == "" {
			traceID = utils.GenerateTraceID()
		}

		ctx := logger.WithTraceID(c.Request.Context(), traceID)
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Trace-ID", traceID)

		start := time.Now()
		c.Next()

		ctxLogger.LogRequest(ctx,
			c.Request.Method,
			c.Request.URL.Path,
			c.Writer.Status(),
			time.Since(start).Milliseconds())
	}
}
