// Package metrics provides the Prometheus registry and scrape handler for the
// character list. All metrics are defined in their respective packages
// (gateway, controller, cache, ratelimit) to maintain modularity and avoid
// circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the character list.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer exposes the metrics registered with Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the /metrics scrape handler for Gatherer.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Gateway Metrics (pkg/gateway):
//   - charlist_gateway_requests_total{status} (Counter): Upstream requests by HTTP status ("blocked", "network_error" for failures without one)
//   - charlist_gateway_request_duration_seconds (Histogram): Page fetch duration
//   - charlist_gateway_fetch_errors_total{kind} (Counter): Failed fetches by kind (transport, empty_result)
//   - charlist_gateway_shared_fetches_total (Counter): Calls that joined an identical in-flight fetch
//   - charlist_gateway_retries_total{error_class} (Counter): Retry attempts by error class
//   - charlist_gateway_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - charlist_gateway_retry_exhausted_total{error_class} (Counter): Fetches that exhausted max retries
//
// Controller Metrics (pkg/controller):
//   - charlist_controller_transitions_total{event} (Counter): start, filter_changed, load_more, fetch_succeeded, fetch_failed
//   - charlist_controller_stale_responses_total (Counter): Fetch results dropped as stale
//   - charlist_controller_ignored_load_more_total{reason} (Counter): Load-more requests ignored (loading, no_more)
//
// Cache Metrics (pkg/cache):
//   - charlist_cache_hits_total (Counter): Page cache hits
//   - charlist_cache_misses_total (Counter): Page cache misses
//   - charlist_conditional_requests_total (Counter): Revalidations sent with If-None-Match / If-Modified-Since
//   - charlist_304_responses_total (Counter): 304 Not Modified responses
//   - charlist_cache_errors_total{operation} (Counter): Cache operation errors
//
// Rate Limit Metrics (pkg/ratelimit):
//   - charlist_rate_limit_remaining (Gauge): Requests remaining in the upstream window
//   - charlist_rate_limit_blocks_total (Counter): Requests blocked at the critical threshold
//   - charlist_rate_limit_throttles_total (Counter): Requests delayed at the warning threshold
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(charlist_cache_hits_total[5m])) /
//   (sum(rate(charlist_cache_hits_total[5m])) + sum(rate(charlist_cache_misses_total[5m])))
//
//   # Share of fetches answered "nothing here"
//   rate(charlist_gateway_fetch_errors_total{kind="empty_result"}[5m])
//
//   # Stale results per filter change
//   rate(charlist_controller_stale_responses_total[5m]) /
//   rate(charlist_controller_transitions_total{event="filter_changed"}[5m])
//
//   # P95 Fetch Latency
//   histogram_quantile(0.95, rate(charlist_gateway_request_duration_seconds_bucket[5m]))
