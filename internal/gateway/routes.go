package gateway

import (
	"fmt"
	"io"
	"net/http"
	"regexp"

	"github.com/avelsk/routegate/internal/config"
	"github.com/avelsk/routegate/internal/middleware"
	"github.com/avelsk/routegate/internal/observability"
	"github.com/avelsk/routegate/internal/proxy"
	"github.com/avelsk/routegate/internal/ratelimit"
	"github.com/avelsk/routegate/internal/router"
)

// installMiddleware adds the cross-cutting handlers in front of every
// route. They run in registration order on each request.
func installMiddleware(rt *router.Router, cfg *config.GatewayConfig, limiter ratelimit.Limiter, logger observability.Logger) {
	rt.Route().Handler(middleware.RequestID())
	rt.Route().Handler(middleware.AccessLog(logger))
	rt.Route().Handler(middleware.Metrics())

	if cfg.CORS != nil {
		rt.Route().Handler(middleware.CORS(corsConfig(cfg.CORS)))
	}

	if limiter != nil {
		rt.Route().Handler(middleware.RateLimit(limiter, keyFunc(cfg.RateLimit.KeyBy), logger))
	}

	if cb := cfg.CircuitBreaker; cb != nil && cb.Enabled {
		breaker := middleware.NewCircuitBreaker("gateway", cb.Threshold, cb.Timeout.Duration(),
			middleware.WithCircuitBreakerLogger(logger),
		)
		rt.Route().Handler(breaker.Handler())
	}
}

// preparedRoute is a route whose handler has been built and validated
// but not yet added to a table.
type preparedRoute struct {
	cfg     config.RouteConfig
	handler router.Handler
}

// prepareRoutes builds the handler for every configured route. Nothing is
// added to any table; errors here are side-effect free.
func prepareRoutes(routes []config.RouteConfig, logger observability.Logger) ([]preparedRoute, error) {
	prepared := make([]preparedRoute, 0, len(routes))
	for _, rc := range routes {
		handler, err := buildHandler(rc, logger)
		if err != nil {
			return nil, fmt.Errorf("route %q: %w", rc.Name, err)
		}
		if rc.PathRegex != "" {
			if _, err := regexp.Compile(rc.PathRegex); err != nil {
				return nil, fmt.Errorf("route %q: invalid path regex: %w", rc.Name, err)
			}
		}
		prepared = append(prepared, preparedRoute{cfg: rc, handler: handler})
	}
	return prepared, nil
}

// installRoutes adds prepared routes to the table.
func installRoutes(rt *router.Router, prepared []preparedRoute) {
	for _, pr := range prepared {
		var route *router.Route
		if pr.cfg.PathRegex != "" {
			// the pattern compiled during prepare
			route, _ = rt.RouteRegex(pr.cfg.PathRegex)
		} else {
			route = rt.RoutePath(pr.cfg.Path)
		}
		if pr.cfg.Method != "" {
			route.Method(pr.cfg.Method)
		}
		route.Handler(pr.handler)
		if pr.cfg.Disabled {
			route.Disable()
		}
	}
}

func buildHandler(rc config.RouteConfig, logger observability.Logger) (router.Handler, error) {
	switch {
	case rc.Response != nil:
		return directResponseHandler(rc.Response), nil
	case rc.Backend != "":
		p, err := proxy.New(rc.Name, rc.Backend, proxy.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return p.Handler(), nil
	default:
		return nil, fmt.Errorf("no backend or response configured")
	}
}

// directResponseHandler answers the request from configuration without an
// upstream.
func directResponseHandler(rc *config.ResponseConfig) router.Handler {
	return func(c *router.Context) {
		w := c.Response()
		for key, value := range rc.Headers {
			w.Header().Set(key, value)
		}
		if rc.ContentType != "" {
			w.Header().Set("Content-Type", rc.ContentType)
		}

		status := rc.Status
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)

		if rc.Body != "" {
			_, _ = io.WriteString(w, rc.Body)
		}
	}
}

func corsConfig(cfg *config.CORSConfig) middleware.CORSConfig {
	out := middleware.DefaultCORSConfig()
	if len(cfg.AllowOrigins) > 0 {
		out.AllowOrigins = cfg.AllowOrigins
	}
	if len(cfg.AllowMethods) > 0 {
		out.AllowMethods = cfg.AllowMethods
	}
	if len(cfg.AllowHeaders) > 0 {
		out.AllowHeaders = cfg.AllowHeaders
	}
	out.ExposeHeaders = cfg.ExposeHeaders
	out.AllowCredentials = cfg.AllowCredentials
	if cfg.MaxAge > 0 {
		out.MaxAge = cfg.MaxAge
	}
	return out
}
