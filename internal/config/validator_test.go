package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *GatewayConfig {
	cfg := DefaultConfig()
	cfg.Routes = []RouteConfig{
		{
			Name:    "users",
			Method:  "GET",
			Path:    "/api/users",
			Backend: "http://users.internal:8080",
		},
		{
			Name:     "health",
			Path:     "/healthz",
			Response: &ResponseConfig{Status: 200, Body: "ok"},
		},
	}
	return cfg
}

func TestValidateAccepts(t *testing.T) {
	t.Parallel()
	assert.NoError(t, Validate(validConfig()))
}

func TestValidateRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*GatewayConfig)
	}{
		{"nil config is caught by caller", nil},
		{"empty server address", func(c *GatewayConfig) {
			c.Server.Address = ""
		}},
		{"tls cert without key", func(c *GatewayConfig) {
			c.Server.TLSCertFile = "/etc/tls/cert.pem"
		}},
		{"route without name", func(c *GatewayConfig) {
			c.Routes[0].Name = ""
		}},
		{"duplicate route name", func(c *GatewayConfig) {
			c.Routes[1].Name = c.Routes[0].Name
		}},
		{"unknown method", func(c *GatewayConfig) {
			c.Routes[0].Method = "FETCH"
		}},
		{"missing path", func(c *GatewayConfig) {
			c.Routes[0].Path = ""
		}},
		{"path and regex together", func(c *GatewayConfig) {
			c.Routes[0].PathRegex = "/api/.*"
		}},
		{"relative path", func(c *GatewayConfig) {
			c.Routes[0].Path = "api/users"
		}},
		{"invalid regex", func(c *GatewayConfig) {
			c.Routes[0].Path = ""
			c.Routes[0].PathRegex = "/api/("
		}},
		{"no backend or response", func(c *GatewayConfig) {
			c.Routes[0].Backend = ""
		}},
		{"backend and response together", func(c *GatewayConfig) {
			c.Routes[0].Response = &ResponseConfig{Status: 200}
		}},
		{"response status out of range", func(c *GatewayConfig) {
			c.Routes[1].Response.Status = 42
		}},
		{"rate limit without requests", func(c *GatewayConfig) {
			c.RateLimit = &RateLimitConfig{Enabled: true, Window: Duration(time.Minute)}
		}},
		{"rate limit redis without address", func(c *GatewayConfig) {
			c.RateLimit = &RateLimitConfig{
				Enabled:  true,
				Requests: 10,
				Window:   Duration(time.Minute),
				Redis:    &RedisConfig{},
			}
		}},
		{"circuit breaker without threshold", func(c *GatewayConfig) {
			c.CircuitBreaker = &CircuitBreakerConfig{Enabled: true}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if tt.mutate == nil {
				require.Error(t, Validate(nil))
				return
			}
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}
}

func TestValidateDisabledFeaturesSkipped(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.RateLimit = &RateLimitConfig{Enabled: false}
	cfg.CircuitBreaker = &CircuitBreakerConfig{Enabled: false}
	assert.NoError(t, Validate(cfg))
}
