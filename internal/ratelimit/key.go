package ratelimit

import (
	"net/http"
	"strings"
)

// KeyFunc extracts the rate limit key from a request.
type KeyFunc func(r *http.Request) string

// IPKey keys limits by client IP.
func IPKey(r *http.Request) string {
	return ClientIP(r)
}

// HeaderKey keys limits by a header value, falling back to the client IP
// when the header is absent.
func HeaderKey(header string) KeyFunc {
	return func(r *http.Request) string {
		if value := r.Header.Get(header); value != "" {
			return value
		}
		return ClientIP(r)
	}
}

// EndpointKey prefixes the base key with method and path so each endpoint
// gets its own budget.
func EndpointKey(base KeyFunc) KeyFunc {
	return func(r *http.Request) string {
		return r.Method + ":" + r.URL.Path + ":" + base(r)
	}
}

// ClientIP extracts the originating client IP, honouring the usual proxy
// headers before falling back to the connection address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			xff = xff[:idx]
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	ip = strings.TrimPrefix(ip, "[")
	return strings.TrimSuffix(ip, "]")
}
