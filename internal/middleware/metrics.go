package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/avelsk/routegate/internal/router"
)

const (
	metricsNamespace = "routegate"
	metricsSubsystem = "http"
)

// middlewareMetrics contains Prometheus metrics recorded by middleware.
type middlewareMetrics struct {
	requestsTotal             *prometheus.CounterVec
	requestDuration           *prometheus.HistogramVec
	requestsInFlight          prometheus.Gauge
	rateLimitRejections       *prometheus.CounterVec
	circuitBreakerRequests    *prometheus.CounterVec
	circuitBreakerTransitions *prometheus.CounterVec
}

var (
	middlewareMetricsSingleton *middlewareMetrics
	middlewareMetricsOnce      sync.Once
)

// GetMiddlewareMetrics returns the singleton middleware metrics instance.
func GetMiddlewareMetrics() *middlewareMetrics {
	middlewareMetricsOnce.Do(func() {
		middlewareMetricsSingleton = &middlewareMetrics{
			requestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: metricsSubsystem,
					Name:      "requests_total",
					Help:      "Total number of HTTP requests by method and status",
				},
				[]string{"method", "status"},
			),
			requestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: metricsNamespace,
					Subsystem: metricsSubsystem,
					Name:      "request_duration_seconds",
					Help:      "HTTP request latency by method",
					Buckets:   prometheus.DefBuckets,
				},
				[]string{"method"},
			),
			requestsInFlight: promauto.NewGauge(
				prometheus.GaugeOpts{
					Namespace: metricsNamespace,
					Subsystem: metricsSubsystem,
					Name:      "requests_in_flight",
					Help:      "Number of HTTP requests currently being served",
				},
			),
			rateLimitRejections: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: metricsSubsystem,
					Name:      "rate_limit_rejections_total",
					Help:      "Total number of requests rejected by rate limiting",
				},
				[]string{"path"},
			),
			circuitBreakerRequests: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: metricsSubsystem,
					Name:      "circuit_breaker_requests_total",
					Help:      "Total number of requests seen by the circuit breaker, by state",
				},
				[]string{"name", "state"},
			),
			circuitBreakerTransitions: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: metricsSubsystem,
					Name:      "circuit_breaker_transitions_total",
					Help:      "Total number of circuit breaker state transitions",
				},
				[]string{"name", "from", "to"},
			),
		}
	})
	return middlewareMetricsSingleton
}

// Metrics returns a handler that records request count, latency, and
// in-flight gauge for every request passing through it.
func Metrics() router.Handler {
	return func(c *router.Context) {
		mm := GetMiddlewareMetrics()
		mm.requestsInFlight.Inc()
		start := time.Now()

		c.Next()

		mm.requestsInFlight.Dec()
		mm.requestDuration.WithLabelValues(c.Request().Method).Observe(time.Since(start).Seconds())
		mm.requestsTotal.WithLabelValues(
			c.Request().Method,
			strconv.Itoa(c.Response().Status()),
		).Inc()
	}
}
