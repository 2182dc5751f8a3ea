package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/avelsk/routegate/internal/router"
)

// CORSConfig contains cross-origin resource sharing settings.
type CORSConfig struct {
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	ExposeHeaders    []string
	AllowCredentials bool
	MaxAge           int
}

// DefaultCORSConfig allows every origin and the common methods.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", RequestIDHeader},
		MaxAge:       86400,
	}
}

// corsHeaders holds header values pre-computed from a CORSConfig.
type corsHeaders struct {
	allowOrigins     map[string]bool
	wildcardSuffixes []string // from patterns like "*.example.com"
	allowAllOrigins  bool
	allowMethods     string
	allowHeaders     string
	exposeHeaders    string
	maxAge           string
	allowCredentials bool
}

func newCORSHeaders(cfg CORSConfig) *corsHeaders {
	h := &corsHeaders{
		allowOrigins:     make(map[string]bool),
		allowMethods:     strings.Join(cfg.AllowMethods, ", "),
		allowHeaders:     strings.Join(cfg.AllowHeaders, ", "),
		exposeHeaders:    strings.Join(cfg.ExposeHeaders, ", "),
		allowCredentials: cfg.AllowCredentials,
	}
	if cfg.MaxAge > 0 {
		h.maxAge = strconv.Itoa(cfg.MaxAge)
	}

	for _, origin := range cfg.AllowOrigins {
		switch {
		case origin == "*":
			h.allowAllOrigins = true
		case strings.HasPrefix(origin, "*."):
			h.wildcardSuffixes = append(h.wildcardSuffixes, origin[1:])
		default:
			h.allowOrigins[origin] = true
		}
	}
	return h
}

func (h *corsHeaders) isOriginAllowed(origin string) bool {
	if origin == "" {
		return false
	}
	if h.allowAllOrigins || h.allowOrigins[origin] {
		return true
	}

	host := origin
	if idx := strings.Index(host, "://"); idx != -1 {
		host = host[idx+3:]
	}
	if idx := strings.Index(host, ":"); idx != -1 {
		host = host[:idx]
	}
	for _, suffix := range h.wildcardSuffixes {
		if len(host) > len(suffix) && strings.HasSuffix(host, suffix) {
			return true
		}
	}
	return false
}

func (h *corsHeaders) apply(header http.Header, origin string) {
	if h.isOriginAllowed(origin) {
		// echo the specific origin so credentialed requests stay valid
		header.Set("Access-Control-Allow-Origin", origin)
		header.Set("Vary", "Origin")
	}
	if h.allowMethods != "" {
		header.Set("Access-Control-Allow-Methods", h.allowMethods)
	}
	if h.allowHeaders != "" {
		header.Set("Access-Control-Allow-Headers", h.allowHeaders)
	}
	if h.exposeHeaders != "" {
		header.Set("Access-Control-Expose-Headers", h.exposeHeaders)
	}
	if h.allowCredentials {
		header.Set("Access-Control-Allow-Credentials", "true")
	}
	if h.maxAge != "" {
		header.Set("Access-Control-Max-Age", h.maxAge)
	}
}

// CORS returns a handler that sets CORS headers and short-circuits
// preflight requests with 204.
func CORS(cfg CORSConfig) router.Handler {
	headers := newCORSHeaders(cfg)

	return func(c *router.Context) {
		headers.apply(c.Response().Header(), c.Request().Header.Get("Origin"))

		if c.Request().Method == http.MethodOptions {
			c.Response().WriteHeader(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
