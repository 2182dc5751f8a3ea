package middleware

import (
	"github.com/google/uuid"

	"github.com/avelsk/routegate/internal/observability"
	"github.com/avelsk/routegate/internal/router"
)

// RequestIDHeader is the header carrying the request ID.
const RequestIDHeader = "X-Request-ID"

// RequestID returns a handler that assigns each request an ID, honouring
// one supplied by the client. The ID is echoed in the response header and
// stored on the request context for log correlation.
func RequestID() router.Handler {
	return RequestIDWithGenerator(func() string {
		return uuid.New().String()
	})
}

// RequestIDWithGenerator is RequestID with a custom ID generator.
func RequestIDWithGenerator(generator func() string) router.Handler {
	return func(c *router.Context) {
		r := c.Request()

		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = generator()
		}

		ctx := observability.ContextWithRequestID(r.Context(), requestID)
		c.SetRequest(r.WithContext(ctx))
		c.Response().Header().Set(RequestIDHeader, requestID)

		c.Next()
	}
}
