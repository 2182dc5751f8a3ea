// Package proxy forwards matched requests to upstream backends.
package proxy

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/avelsk/routegate/internal/observability"
	"github.com/avelsk/routegate/internal/router"
	"github.com/avelsk/routegate/internal/util"
)

// hopHeaders are headers that must not be forwarded upstream.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

type contextKey struct{}

// Proxy forwards requests to a single upstream target.
type Proxy struct {
	target    *url.URL
	name      string
	logger    observability.Logger
	transport http.RoundTripper
	timeout   time.Duration
	rp        *httputil.ReverseProxy
}

// Option configures a Proxy.
type Option func(*Proxy)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(p *Proxy) {
		p.logger = logger
	}
}

// WithTransport sets the upstream transport.
func WithTransport(transport http.RoundTripper) Option {
	return func(p *Proxy) {
		p.transport = transport
	}
}

// WithTimeout bounds the total time spent on the upstream request.
func WithTimeout(timeout time.Duration) Option {
	return func(p *Proxy) {
		p.timeout = timeout
	}
}

// New creates a Proxy forwarding to target, which must be an absolute URL
// such as "http://backend:8080".
func New(name, target string, opts ...Option) (*Proxy, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("parse backend url %q: %w", target, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("backend url %q must be absolute", target)
	}

	p := &Proxy{
		target: u,
		name:   name,
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.rp = &httputil.ReverseProxy{
		Director:       p.director,
		Transport:      p.transport,
		ErrorHandler:   p.handleError,
		ModifyResponse: p.observeResponse,
	}
	return p, nil
}

// Handler returns the dispatch handler forwarding to the backend.
func (p *Proxy) Handler() router.Handler {
	return func(c *router.Context) {
		r := c.Request()
		ctx := context.WithValue(r.Context(), contextKey{}, c)
		if p.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, p.timeout)
			defer cancel()
		}

		start := time.Now()
		p.rp.ServeHTTP(c.Response(), r.WithContext(ctx))
		getProxyMetrics().requestDuration.WithLabelValues(p.name).Observe(time.Since(start).Seconds())
	}
}

func (p *Proxy) director(req *http.Request) {
	req.URL.Scheme = p.target.Scheme
	req.URL.Host = p.target.Host
	if p.target.Path != "" && p.target.Path != "/" {
		req.URL.Path = singleJoin(p.target.Path, req.URL.Path)
	}

	for _, h := range hopHeaders {
		req.Header.Del(h)
	}

	if clientIP, _, err := net.SplitHostPort(req.RemoteAddr); err == nil {
		if prior := req.Header.Get("X-Forwarded-For"); prior != "" {
			clientIP = prior + ", " + clientIP
		}
		req.Header.Set("X-Forwarded-For", clientIP)
	}
	if req.TLS != nil {
		req.Header.Set("X-Forwarded-Proto", "https")
	} else {
		req.Header.Set("X-Forwarded-Proto", "http")
	}
	req.Header.Set("X-Forwarded-Host", req.Host)

	req.Host = p.target.Host
}

func (p *Proxy) observeResponse(resp *http.Response) error {
	getProxyMetrics().requestsTotal.WithLabelValues(p.name, fmt.Sprintf("%d", resp.StatusCode)).Inc()
	return nil
}

func (p *Proxy) handleError(w http.ResponseWriter, r *http.Request, err error) {
	p.logger.Error("backend request failed",
		observability.String("backend", p.name),
		observability.String("path", r.URL.Path),
		observability.String("method", r.Method),
		observability.Error(err),
	)
	getProxyMetrics().errorsTotal.WithLabelValues(p.name).Inc()

	status := http.StatusBadGateway
	if r.Context().Err() != nil {
		status = http.StatusGatewayTimeout
	}

	if c, ok := r.Context().Value(contextKey{}).(*router.Context); ok {
		c.FailWith(util.NewStatusErrorWithCause(status, err))
		return
	}
	w.WriteHeader(status)
}

func singleJoin(a, b string) string {
	aslash := len(a) > 0 && a[len(a)-1] == '/'
	bslash := len(b) > 0 && b[0] == '/'
	switch {
	case aslash && bslash:
		return a + b[1:]
	case !aslash && !bslash:
		return a + "/" + b
	}
	return a + b
}
