// Package cache provides an optional Redis-backed page cache for the
// character gateway.
//
// The gateway's own de-duplication only collapses identical in-flight
// requests. This package adds a short-lived response cache on top:
//
// - Entries keyed by resource, normalized filter and page number
// - TTL from the Expires header, DefaultTTL when absent
// - Expired entries kept for a stale window and revalidated with
// If-None-Match / If-Modified-Since
// - Prometheus metrics for hits, misses, revalidations and errors
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	manager := cache.NewManager(redisClient)
//
//	key := cache.PageKey{
//		Resource: "/character/",
//		Filter:   filter.Filter{Search: "rick"},
//		Page:     2,
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch upstream, then:
//		_ = manager.Set(ctx, key, cache.NewEntry(body, resp.StatusCode, resp.Header))
//	}
//
// # Metrics
//
//   - charlist_cache_hits_total
//   - charlist_cache_misses_total
//   - charlist_conditional_requests_total
//   - charlist_304_responses_total
//   - charlist_cache_errors_total{operation}
package cache
