// Package config defines the gateway configuration model and its YAML
// loading, validation, and live-reload machinery.
package config

import "time"

// GatewayConfig is the root configuration document.
type GatewayConfig struct {
	Server         ServerConfig          `yaml:"server"`
	Log            LogConfig             `yaml:"log"`
	Tracing        TracingConfig         `yaml:"tracing"`
	RateLimit      *RateLimitConfig      `yaml:"rateLimit,omitempty"`
	CircuitBreaker *CircuitBreakerConfig `yaml:"circuitBreaker,omitempty"`
	CORS           *CORSConfig           `yaml:"cors,omitempty"`
	Routes         []RouteConfig         `yaml:"routes"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Address         string   `yaml:"address"`
	ReadTimeout     Duration `yaml:"readTimeout"`
	WriteTimeout    Duration `yaml:"writeTimeout"`
	IdleTimeout     Duration `yaml:"idleTimeout"`
	ShutdownTimeout Duration `yaml:"shutdownTimeout"`
	MetricsAddress  string   `yaml:"metricsAddress"`
	TLSCertFile     string   `yaml:"tlsCertFile"`
	TLSKeyFile      string   `yaml:"tlsKeyFile"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig holds OpenTelemetry exporter settings.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"serviceName"`
	SampleRate  float64 `yaml:"sampleRate"`
}

// RateLimitConfig holds rate limiting settings. When Redis is configured
// the limit is enforced across instances; otherwise it is per process.
type RateLimitConfig struct {
	Enabled  bool         `yaml:"enabled"`
	Requests int          `yaml:"requests"`
	Window   Duration     `yaml:"window"`
	Burst    int          `yaml:"burst"`
	KeyBy    string       `yaml:"keyBy"` // "ip" or a header name
	Redis    *RedisConfig `yaml:"redis,omitempty"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// CircuitBreakerConfig holds circuit breaker settings.
type CircuitBreakerConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Threshold int      `yaml:"threshold"`
	Timeout   Duration `yaml:"timeout"`
}

// CORSConfig holds cross-origin settings.
type CORSConfig struct {
	AllowOrigins     []string `yaml:"allowOrigins"`
	AllowMethods     []string `yaml:"allowMethods"`
	AllowHeaders     []string `yaml:"allowHeaders"`
	ExposeHeaders    []string `yaml:"exposeHeaders"`
	AllowCredentials bool     `yaml:"allowCredentials"`
	MaxAge           int      `yaml:"maxAge"`
}

// RouteConfig describes one route in the table. Exactly one of Path or
// PathRegex must be set. A route either proxies to Backend or answers
// directly with Response.
type RouteConfig struct {
	Name      string          `yaml:"name"`
	Method    string          `yaml:"method"`
	Path      string          `yaml:"path"`
	PathRegex string          `yaml:"pathRegex"`
	Backend   string          `yaml:"backend"`
	Response  *ResponseConfig `yaml:"response,omitempty"`
	Disabled  bool            `yaml:"disabled"`
}

// ResponseConfig is a canned direct response for a route.
type ResponseConfig struct {
	Status      int               `yaml:"status"`
	Body        string            `yaml:"body"`
	ContentType string            `yaml:"contentType"`
	Headers     map[string]string `yaml:"headers"`
}

// DefaultConfig returns a configuration with sensible defaults and no
// routes.
func DefaultConfig() *GatewayConfig {
	return &GatewayConfig{
		Server: ServerConfig{
			Address:         ":8080",
			ReadTimeout:     Duration(10 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			IdleTimeout:     Duration(60 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
			MetricsAddress:  ":9090",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			ServiceName: "routegate",
			SampleRate:  1.0,
		},
	}
}

// applyDefaults fills zero-valued fields with the defaults.
func (c *GatewayConfig) applyDefaults() {
	def := DefaultConfig()

	if c.Server.Address == "" {
		c.Server.Address = def.Server.Address
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = def.Server.ReadTimeout
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = def.Server.WriteTimeout
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = def.Server.IdleTimeout
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = def.Server.ShutdownTimeout
	}
	if c.Server.MetricsAddress == "" {
		c.Server.MetricsAddress = def.Server.MetricsAddress
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = def.Tracing.ServiceName
	}
	if c.Tracing.SampleRate == 0 {
		c.Tracing.SampleRate = def.Tracing.SampleRate
	}
	if c.RateLimit != nil {
		if c.RateLimit.Requests == 0 {
			c.RateLimit.Requests = 100
		}
		if c.RateLimit.Window == 0 {
			c.RateLimit.Window = Duration(time.Minute)
		}
		if c.RateLimit.KeyBy == "" {
			c.RateLimit.KeyBy = "ip"
		}
	}
	if c.CircuitBreaker != nil {
		if c.CircuitBreaker.Threshold == 0 {
			c.CircuitBreaker.Threshold = 5
		}
		if c.CircuitBreaker.Timeout == 0 {
			c.CircuitBreaker.Timeout = Duration(30 * time.Second)
		}
	}
}
