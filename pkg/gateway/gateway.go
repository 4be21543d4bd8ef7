// Package gateway fetches pages of characters from the remote API,
// collapsing identical in-flight requests and classifying failures.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/Sternrassler/charlist/pkg/cache"
	"github.com/Sternrassler/charlist/pkg/filter"
	"github.com/Sternrassler/charlist/pkg/logging"
	"github.com/Sternrassler/charlist/pkg/ratelimit"
)

// DefaultBaseURL is the public character API.
const DefaultBaseURL = "https://rickandmortyapi.com/api"

// Resource is the collection path under the base URL.
const Resource = "/character/"

// Config holds the gateway configuration.
type Config struct {
	// BaseURL of the API, without trailing slash
	BaseURL string

	// UserAgent header sent with every request
	UserAgent string

	// Timeout per HTTP request (0 = no client timeout; callers pass a context)
	Timeout time.Duration

	// Retry policy for network and 5xx errors
	Retry RetryConfig

	// Redis enables the upstream rate limit gate (optional)
	Redis redis.Cmdable

	// CacheResponses stores pages in Redis and revalidates them (requires Redis)
	CacheResponses bool

	// Logger (zero value = logging.NewLogger("gateway"))
	Logger *zerolog.Logger
}

// DefaultConfig returns a configuration with no Redis, no cache, no retry
// and no client timeout: a fetch is bounded only by its context.
func DefaultConfig(userAgent string) Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		UserAgent: userAgent,
		Retry:     DefaultRetryConfig(),
	}
}

// Stats counts gateway activity.
type Stats struct {
	// Issued is the number of upstream fetches actually executed.
	Issued int64
	// Shared is the number of calls that joined an identical in-flight fetch.
	Shared int64
}

// Gateway issues page requests. At most one request per (filter, page) is in
// flight at any time; concurrent callers with the same key share its result.
// Returned responses are shared and must not be mutated.
type Gateway struct {
	httpClient  *http.Client
	config      Config
	logger      zerolog.Logger
	group       singleflight.Group
	cache       *cache.Manager
	rateLimiter *ratelimit.Tracker

	issued atomic.Int64
	shared atomic.Int64
}

// New creates a new Gateway.
func New(cfg Config) (*Gateway, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.CacheResponses && cfg.Redis == nil {
		return nil, fmt.Errorf("response cache requires a redis client")
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryConfig()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	logger := logging.NewLogger("gateway")
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("component", "gateway").Logger()
	}

	g := &Gateway{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		config:     cfg,
		logger:     logger,
	}

	if cfg.Redis != nil {
		g.rateLimiter = ratelimit.NewTracker(cfg.Redis, logger)
		if cfg.CacheResponses {
			g.cache = cache.NewManager(cfg.Redis)
		}
	}

	return g, nil
}

// Fetch returns one page of characters for the filter. page is 1-based.
//
// Errors are *FetchError: KindEmptyResult for the API's 404 "nothing here",
// KindTransport for everything else. A 200 with zero results is a success.
func (g *Gateway) Fetch(ctx context.Context, f filter.Filter, page int) (*PageResponse, error) {
	if page < 1 {
		return nil, fmt.Errorf("invalid page %d", page)
	}
	f = f.Normalize()
	key := f.Key() + ":page=" + strconv.Itoa(page)

	leader := false
	v, err, shared := g.group.Do(key, func() (any, error) {
		leader = true
		g.issued.Add(1)
		return g.fetch(ctx, f, page)
	})
	// Do reports shared to the leader as well; count joiners only.
	if shared && !leader {
		g.shared.Add(1)
		sharedFetchesTotal.Inc()
	}
	if err != nil {
		return nil, err
	}
	return v.(*PageResponse), nil
}

// Stats returns a snapshot of the gateway counters.
func (g *Gateway) Stats() Stats {
	return Stats{
		Issued: g.issued.Load(),
		Shared: g.shared.Load(),
	}
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (g *Gateway) SetHTTPClient(client *http.Client) {
	g.httpClient = client
}

// RateLimiter returns the rate limit tracker, or nil without Redis.
func (g *Gateway) RateLimiter() *ratelimit.Tracker {
	return g.rateLimiter
}

// fetch executes one upstream page request and classifies the outcome.
func (g *Gateway) fetch(ctx context.Context, f filter.Filter, page int) (*PageResponse, error) {
	start := time.Now()
	defer func() {
		requestDuration.Observe(time.Since(start).Seconds())
	}()

	logger := g.logger.With().
		Str("filter", f.Key()).
		Int("page", page).
		Logger()

	fail := func(kind ErrorKind, status int, err error) (*PageResponse, error) {
		fetchErrorsTotal.WithLabelValues(string(kind)).Inc()
		return nil, &FetchError{Kind: kind, StatusCode: status, Filter: f, Page: page, Err: err}
	}

	if g.rateLimiter != nil {
		allowed, err := g.rateLimiter.ShouldAllowRequest(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("Rate limit check failed")
			return fail(KindTransport, 0, fmt.Errorf("rate limit check: %w", err))
		}
		if !allowed {
			requestsTotal.WithLabelValues("blocked").Inc()
			return fail(KindTransport, 0, ErrRequestBlocked)
		}
	}

	cacheKey := cache.PageKey{Resource: Resource, Filter: f, Page: page}
	var cached *cache.Entry
	if g.cache != nil {
		entry, err := g.cache.Lookup(ctx, cacheKey)
		switch {
		case err == nil && !entry.IsExpired():
			cache.CacheHits.Inc()
			logger.Debug().Msg("Serving page from cache")
			resp, decodeErr := decodePage(entry.Data, page)
			if decodeErr == nil {
				return resp, nil
			}
			logger.Warn().Err(decodeErr).Msg("Cached page is corrupt, refetching")
		case err == nil:
			cached = entry
		case !errors.Is(err, cache.ErrCacheMiss):
			logger.Warn().Err(err).Msg("Cache lookup error")
		}
	}

	var (
		status int
		body   []byte
		header http.Header
	)
	err := retryWithBackoff(ctx, g.config.Retry, func() error {
		status = 0
		req, err := g.newRequest(ctx, f, page)
		if err != nil {
			return err
		}
		if cached.Revalidatable() {
			cache.AddConditionalHeaders(req, cached)
			cache.ConditionalRequests.Inc()
		}

		logger.Debug().Str("url", req.URL.String()).Msg("Executing page request")

		resp, err := g.httpClient.Do(req)
		if err != nil {
			requestsTotal.WithLabelValues("network_error").Inc()
			logger.Warn().Err(err).Msg("HTTP request failed")
			return err
		}
		defer resp.Body.Close()

		if g.rateLimiter != nil {
			if err := g.rateLimiter.UpdateFromHeaders(ctx, resp.Header); err != nil {
				logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
			}
		}

		status = resp.StatusCode
		header = resp.Header
		requestsTotal.WithLabelValues(strconv.Itoa(status)).Inc()

		if status >= 400 {
			_, _ = io.Copy(io.Discard, resp.Body)
			return &HTTPError{
				StatusCode: status,
				ErrorClass: classifyStatus(status),
				Message:    resp.Status,
			}
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		return nil
	}, classifyError)

	if err != nil {
		if status == http.StatusNotFound {
			logger.Debug().Msg("No characters match filter")
			return fail(KindEmptyResult, status, fmt.Errorf("%w: %w", ErrNotFound, err))
		}
		logger.Warn().Err(err).Int("status", status).Msg("Page request failed")
		return fail(KindTransport, status, err)
	}

	notModified := status == http.StatusNotModified && cached != nil
	if notModified {
		cache.NotModifiedResponses.Inc()
		if err := g.cache.UpdateTTL(ctx, cacheKey, cache.ExpiresFromHeader(header)); err != nil {
			logger.Warn().Err(err).Msg("Failed to update cache TTL")
		}
		body = cached.Data
		status = http.StatusOK
	}

	if status < 200 || status >= 300 {
		return fail(KindTransport, status, fmt.Errorf("unexpected status %d", status))
	}

	resp, err := decodePage(body, page)
	if err != nil {
		logger.Warn().Err(err).Msg("Undecodable page")
		return fail(KindTransport, status, err)
	}

	if g.cache != nil && !notModified {
		if err := g.cache.Set(ctx, cacheKey, cache.NewEntry(body, status, header)); err != nil {
			logger.Warn().Err(err).Msg("Failed to cache page")
		}
	}

	logger.Debug().
		Int("results", len(resp.Results)).
		Int("total_count", resp.TotalCount).
		Dur("duration", time.Since(start)).
		Msg("Fetched page")

	return resp, nil
}

// newRequest builds the GET request for a page.
func (g *Gateway) newRequest(ctx context.Context, f filter.Filter, page int) (*http.Request, error) {
	q := f.Query()
	q.Set("page", strconv.Itoa(page))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.config.BaseURL+Resource+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", g.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	return req, nil
}
