package ratelimit

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		remote   string
		headers  map[string]string
		expected string
	}{
		{
			name:     "remote addr",
			remote:   "192.0.2.10:4321",
			expected: "192.0.2.10",
		},
		{
			name:     "ipv6 remote addr",
			remote:   "[2001:db8::1]:4321",
			expected: "2001:db8::1",
		},
		{
			name:     "x-forwarded-for single",
			remote:   "10.0.0.1:1111",
			headers:  map[string]string{"X-Forwarded-For": "198.51.100.7"},
			expected: "198.51.100.7",
		},
		{
			name:     "x-forwarded-for chain uses first hop",
			remote:   "10.0.0.1:1111",
			headers:  map[string]string{"X-Forwarded-For": "198.51.100.7, 10.0.0.2, 10.0.0.3"},
			expected: "198.51.100.7",
		},
		{
			name:     "x-real-ip",
			remote:   "10.0.0.1:1111",
			headers:  map[string]string{"X-Real-IP": "203.0.113.9"},
			expected: "203.0.113.9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.expected, ClientIP(r))
		})
	}
}

func TestHeaderKey(t *testing.T) {
	t.Parallel()

	fn := HeaderKey("X-API-Key")

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-API-Key", "secret-123")
	assert.Equal(t, "secret-123", fn(r))

	r = httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "192.0.2.10:4321"
	assert.Equal(t, "192.0.2.10", fn(r), "missing header falls back to client IP")
}

func TestEndpointKey(t *testing.T) {
	t.Parallel()

	fn := EndpointKey(IPKey)
	r := httptest.NewRequest("POST", "/api/users", nil)
	r.RemoteAddr = "192.0.2.10:4321"
	assert.Equal(t, "POST:/api/users:192.0.2.10", fn(r))
}
