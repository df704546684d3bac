package middleware

import (
	"time"

	"pairlink/pkg/tracing"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// TracingMiddleware opens a span per HTTP request. WebSocket upgrades
// get a span too; it covers the handshake, not the connection
// lifetime.
func TracingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.TraceHTTPRequest(c.Request.Context(), c.Request.Method, c.FullPath())
		defer span.End()

		attrs := []attribute.KeyValue{
			attribute.String("http.host", c.Request.Host),
			attribute.String("http.remote_addr", c.ClientIP()),
		}
		if isWebSocketUpgrade(c) {
			attrs = append(attrs, attribute.Bool("websocket.upgrade", true))
		}
		span.SetAttributes(attrs...)

		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		c.Next()

		span.SetAttributes(
			attribute.Int("http.status_code", c.Writer.Status()),
			attribute.Int64("http.duration_ms", time.Since(start).Milliseconds()),
		)

		switch {
		case len(c.Errors) > 0:
			span.SetStatus(codes.Error, c.Errors.Last().Error())
		case c.Writer.Status() >= 400:
			span.SetStatus(codes.Error, "")
		default:
			span.SetStatus(codes.Ok, "")
		}
	}
}

func isWebSocketUpgrade(c *gin.Context) bool {
	return c.GetHeader("Upgrade") == "websocket"
}
