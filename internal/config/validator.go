package config

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/avelsk/routegate/internal/util"
)

var validMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodOptions: true,
}

// Validate checks the configuration for defects that would make the
// gateway misbehave at runtime. It returns the first problem found.
func Validate(cfg *GatewayConfig) error {
	if cfg == nil {
		return util.NewConfigError("", "configuration is nil")
	}

	if cfg.Server.Address == "" {
		return util.NewConfigError("server.address", "must not be empty")
	}
	if (cfg.Server.TLSCertFile == "") != (cfg.Server.TLSKeyFile == "") {
		return util.NewConfigError("server.tlsCertFile", "certificate and key must be set together")
	}

	if cfg.RateLimit != nil && cfg.RateLimit.Enabled {
		if cfg.RateLimit.Requests <= 0 {
			return util.NewConfigError("rateLimit.requests", "must be positive")
		}
		if cfg.RateLimit.Window.Duration() <= 0 {
			return util.NewConfigError("rateLimit.window", "must be positive")
		}
		if cfg.RateLimit.Redis != nil && cfg.RateLimit.Redis.Address == "" {
			return util.NewConfigError("rateLimit.redis.address", "must not be empty")
		}
	}

	if cfg.CircuitBreaker != nil && cfg.CircuitBreaker.Enabled {
		if cfg.CircuitBreaker.Threshold <= 0 {
			return util.NewConfigError("circuitBreaker.threshold", "must be positive")
		}
	}

	seen := make(map[string]bool, len(cfg.Routes))
	for i := range cfg.Routes {
		if err := validateRoute(&cfg.Routes[i], i, seen); err != nil {
			return err
		}
	}
	return nil
}

func validateRoute(route *RouteConfig, index int, seen map[string]bool) error {
	field := func(name string) string {
		return fmt.Sprintf("routes[%d].%s", index, name)
	}

	if route.Name == "" {
		return util.NewConfigError(field("name"), "must not be empty")
	}
	if seen[route.Name] {
		return util.NewConfigError(field("name"), "duplicate route name "+route.Name)
	}
	seen[route.Name] = true

	if route.Method != "" && !validMethods[strings.ToUpper(route.Method)] {
		return util.NewConfigError(field("method"), "unknown HTTP method "+route.Method)
	}

	switch {
	case route.Path == "" && route.PathRegex == "":
		return util.NewConfigError(field("path"), "either path or pathRegex is required")
	case route.Path != "" && route.PathRegex != "":
		return util.NewConfigError(field("path"), "path and pathRegex are mutually exclusive")
	case route.Path != "" && !strings.HasPrefix(route.Path, "/"):
		return util.NewConfigError(field("path"), "must start with /")
	case route.PathRegex != "":
		if _, err := regexp.Compile(route.PathRegex); err != nil {
			return util.NewConfigErrorWithCause(field("pathRegex"), "invalid regular expression", err)
		}
	}

	switch {
	case route.Backend == "" && route.Response == nil:
		return util.NewConfigError(field("backend"), "either backend or response is required")
	case route.Backend != "" && route.Response != nil:
		return util.NewConfigError(field("backend"), "backend and response are mutually exclusive")
	case route.Response != nil && (route.Response.Status < 100 || route.Response.Status > 599):
		return util.NewConfigError(field("response.status"), "must be a valid HTTP status code")
	}
	return nil
}
