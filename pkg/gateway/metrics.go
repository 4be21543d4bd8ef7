package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for gateway operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "charlist_gateway_requests_total",
		Help: "Total upstream page requests by HTTP status",
	}, []string{"status"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "charlist_gateway_request_duration_seconds",
		Help:    "Upstream page request duration in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})

	fetchErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "charlist_gateway_fetch_errors_total",
		Help: "Total failed page fetches by error kind",
	}, []string{"kind"})

	sharedFetchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "charlist_gateway_shared_fetches_total",
		Help: "Total fetch calls that joined an identical in-flight request",
	})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "charlist_gateway_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "charlist_gateway_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30},
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "charlist_gateway_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)
