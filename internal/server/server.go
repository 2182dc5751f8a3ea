// Package server runs the gateway's HTTP listeners: the main listener
// serving dispatched traffic and an optional metrics listener.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/avelsk/routegate/internal/config"
	"github.com/avelsk/routegate/internal/health"
	"github.com/avelsk/routegate/internal/observability"
)

// Server wraps the standard library HTTP server with lifecycle management
// for the gateway. The handler is typically a *router.Router.
type Server struct {
	cfg     config.ServerConfig
	handler http.Handler
	logger  observability.Logger
	tlsCfg  *tls.Config
	checker *health.Checker

	mu          sync.Mutex
	httpSrv     *http.Server
	metrics     *http.Server
	running     bool
	addr        string
	metricsAddr string
}

// Option configures a Server.
type Option func(*Server)

// WithTLSConfig makes the main listener serve TLS.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(s *Server) {
		s.tlsCfg = cfg
	}
}

// WithHealthChecker serves the checker's probes on the metrics listener.
func WithHealthChecker(checker *health.Checker) Option {
	return func(s *Server) {
		s.checker = checker
	}
}

// New creates a Server serving handler according to cfg.
func New(cfg config.ServerConfig, handler http.Handler, logger observability.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = observability.NopLogger()
	}
	s := &Server{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start binds the listeners and begins serving. It returns once the main
// listener is bound; serving continues in the background until Stop is
// called. Fatal serve errors are reported on the returned channel.
func (s *Server) Start() (<-chan error, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil, errors.New("server already running")
	}

	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", s.cfg.Address, err)
	}
	if s.tlsCfg != nil {
		ln = tls.NewListener(ln, s.tlsCfg)
	}
	s.addr = ln.Addr().String()

	s.httpSrv = &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.cfg.ReadTimeout.Duration(),
		WriteTimeout: s.cfg.WriteTimeout.Duration(),
		IdleTimeout:  s.cfg.IdleTimeout.Duration(),
	}

	errCh := make(chan error, 2)

	s.logger.Info("starting HTTP server",
		observability.String("address", s.addr),
		observability.Duration("readTimeout", s.cfg.ReadTimeout.Duration()),
		observability.Duration("writeTimeout", s.cfg.WriteTimeout.Duration()),
	)

	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if s.cfg.MetricsAddress != "" {
		mln, err := net.Listen("tcp", s.cfg.MetricsAddress)
		if err != nil {
			_ = ln.Close()
			return nil, fmt.Errorf("listen on %s: %w", s.cfg.MetricsAddress, err)
		}

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if s.checker != nil {
			mux.Handle("/healthz", s.checker.LivenessHandler())
			mux.Handle("/readyz", s.checker.ReadinessHandler())
		} else {
			mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("ok"))
			})
		}
		s.metrics = &http.Server{Handler: mux}
		s.metricsAddr = mln.Addr().String()

		s.logger.Info("starting metrics server",
			observability.String("address", s.metricsAddr),
		)

		go func() {
			if err := s.metrics.Serve(mln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	s.running = true
	return errCh, nil
}

// Addr returns the bound address of the main listener. It is only valid
// after Start has returned successfully.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// MetricsAddr returns the bound address of the metrics listener, or the
// empty string when no metrics listener is configured.
func (s *Server) MetricsAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metricsAddr
}

// Stop shuts the listeners down gracefully, waiting for in-flight requests
// up to the configured shutdown timeout.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	httpSrv, metrics := s.httpSrv, s.metrics
	s.mu.Unlock()

	if d := s.cfg.ShutdownTimeout.Duration(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	s.logger.Info("stopping HTTP server")

	var errs []error
	if err := httpSrv.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown http server: %w", err))
	}
	if metrics != nil {
		if err := metrics.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown metrics server: %w", err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// IsRunning reports whether the server is currently serving.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
