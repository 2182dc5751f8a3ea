package middleware

import (
	"time"

	"github.com/avelsk/routegate/internal/observability"
	"github.com/avelsk/routegate/internal/router"
)

// AccessLog returns a handler that logs one line per completed request.
// Registered ahead of application routes, it observes the final status
// after the rest of the dispatch has run.
func AccessLog(logger observability.Logger) router.Handler {
	return func(c *router.Context) {
		start := time.Now()

		c.Next()

		fields := []observability.Field{
			observability.String("method", c.Request().Method),
			observability.String("path", c.Request().URL.Path),
			observability.Int("status", c.Response().Status()),
			observability.Int64("bytes", c.Response().BytesWritten()),
			observability.Duration("duration", time.Since(start)),
			observability.String("client_ip", c.Request().RemoteAddr),
		}
		if requestID := observability.RequestIDFromContext(c.Request().Context()); requestID != "" {
			fields = append(fields, observability.String("request_id", requestID))
		}

		if c.Response().Status() >= 500 {
			logger.Error("request completed", fields...)
			return
		}
		logger.Info("request completed", fields...)
	}
}
