package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/avelsk/routegate/internal/observability"
	"github.com/avelsk/routegate/internal/router"
	"github.com/avelsk/routegate/internal/util"
)

// CircuitBreaker wraps gobreaker.CircuitBreaker for use as dispatch
// middleware. Responses with 5xx status count as failures; once the
// failure ratio trips the breaker, requests are rejected with 503 until
// the probe window passes.
type CircuitBreaker struct {
	cb     *gobreaker.CircuitBreaker
	logger observability.Logger
}

// CircuitBreakerOption configures a CircuitBreaker.
type CircuitBreakerOption func(*CircuitBreaker)

// WithCircuitBreakerLogger sets the logger.
func WithCircuitBreakerLogger(logger observability.Logger) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		cb.logger = logger
	}
}

// NewCircuitBreaker creates a named circuit breaker. threshold is the
// minimum number of requests before the failure ratio is considered;
// timeout is both the counting interval and the open-state cool-down.
func NewCircuitBreaker(name string, threshold int, timeout time.Duration, opts ...CircuitBreakerOption) *CircuitBreaker {
	cb := &CircuitBreaker{
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(cb)
	}

	minRequests := safeIntToUint32(threshold)

	cb.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: minRequests,
		Interval:    timeout,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= minRequests && failureRatio >= 0.5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			cb.logger.Info("circuit breaker state change",
				observability.String("name", name),
				observability.String("from", from.String()),
				observability.String("to", to.String()),
			)
			GetMiddlewareMetrics().circuitBreakerTransitions.WithLabelValues(
				name, from.String(), to.String(),
			).Inc()
		},
	})
	return cb
}

// State returns the breaker's current state.
func (cb *CircuitBreaker) State() gobreaker.State {
	return cb.cb.State()
}

// Handler returns the dispatch middleware for this breaker.
func (cb *CircuitBreaker) Handler() router.Handler {
	return func(c *router.Context) {
		state := cb.State().String()
		GetMiddlewareMetrics().circuitBreakerRequests.WithLabelValues(cb.cb.Name(), state).Inc()

		_, err := cb.cb.Execute(func() (interface{}, error) {
			c.Next()
			if status := c.Response().Status(); status >= 500 {
				return nil, util.NewStatusError(status)
			}
			return nil, nil
		})
		if err == nil {
			return
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			cb.logger.Warn("circuit breaker rejected request",
				observability.String("path", c.Request().URL.Path),
				observability.String("state", cb.State().String()),
			)
			c.FailWith(util.NewStatusErrorWithCause(http.StatusServiceUnavailable, err))
		}
		// 5xx responses were already written downstream; the error only
		// feeds the breaker's counters
	}
}

func safeIntToUint32(n int) uint32 {
	if n < 0 {
		return 0
	}
	if n > int(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(n)
}
