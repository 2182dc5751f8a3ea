package router

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "routegate"
	metricsSubsystem = "dispatch"
)

// dispatchMetrics contains Prometheus metrics for the dispatch engine.
type dispatchMetrics struct {
	requestsTotal      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	matchFailures      *prometheus.CounterVec
	handlerFaults      prometheus.Counter
	errorHandlerFaults prometheus.Counter
	routes             prometheus.Gauge
}

var (
	dispatchMetricsSingleton *dispatchMetrics
	dispatchMetricsOnce      sync.Once
)

// dispatchMetricsInstance returns the singleton dispatch metrics instance.
func dispatchMetricsInstance() *dispatchMetrics {
	dispatchMetricsOnce.Do(func() {
		dispatchMetricsSingleton = &dispatchMetrics{
			requestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: metricsSubsystem,
					Name:      "requests_total",
					Help:      "Total number of dispatched requests",
				},
				[]string{"method"},
			),
			requestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: metricsNamespace,
					Subsystem: metricsSubsystem,
					Name:      "request_duration_seconds",
					Help:      "Time spent driving a request through the route table",
					Buckets:   prometheus.DefBuckets,
				},
				[]string{"method"},
			),
			matchFailures: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: metricsSubsystem,
					Name:      "match_failures_total",
					Help:      "Total number of scans exhausted without a match, by status code",
				},
				[]string{"code"},
			),
			handlerFaults: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: metricsSubsystem,
					Name:      "handler_faults_total",
					Help:      "Total number of faults contained from handlers",
				},
			),
			errorHandlerFaults: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: metricsSubsystem,
					Name:      "error_handler_faults_total",
					Help:      "Total number of faults contained from registered error handlers",
				},
			),
			routes: promauto.NewGauge(
				prometheus.GaugeOpts{
					Namespace: metricsNamespace,
					Subsystem: metricsSubsystem,
					Name:      "routes",
					Help:      "Current number of routes in the table",
				},
			),
		}
	})
	return dispatchMetricsSingleton
}
