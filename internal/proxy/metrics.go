package proxy

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "routegate"
	metricsSubsystem = "proxy"
)

// proxyMetrics contains Prometheus metrics for upstream forwarding.
type proxyMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errorsTotal     *prometheus.CounterVec
}

var (
	proxyMetricsSingleton *proxyMetrics
	proxyMetricsOnce      sync.Once
)

func getProxyMetrics() *proxyMetrics {
	proxyMetricsOnce.Do(func() {
		proxyMetricsSingleton = &proxyMetrics{
			requestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: metricsSubsystem,
					Name:      "requests_total",
					Help:      "Total number of requests forwarded upstream, by backend and status",
				},
				[]string{"backend", "status"},
			),
			requestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: metricsNamespace,
					Subsystem: metricsSubsystem,
					Name:      "request_duration_seconds",
					Help:      "Time spent forwarding a request upstream",
					Buckets:   prometheus.DefBuckets,
				},
				[]string{"backend"},
			),
			errorsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: metricsSubsystem,
					Name:      "errors_total",
					Help:      "Total number of upstream requests that failed",
				},
				[]string{"backend"},
			),
		}
	})
	return proxyMetricsSingleton
}
