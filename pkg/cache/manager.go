package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// DefaultStaleWindow is how long an expired entry is kept for revalidation.
const DefaultStaleWindow = 10 * time.Minute

// Manager stores page responses in Redis.
//
// Entries outlive their Expires time by the stale window so that an expired
// page can be revalidated with a conditional request instead of refetched.
type Manager struct {
	redis       redis.Cmdable
	staleWindow time.Duration
}

// NewManager creates a new cache manager with Redis backend.
func NewManager(redisClient redis.Cmdable) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Manager{
		redis:       redisClient,
		staleWindow: DefaultStaleWindow,
	}
}

// WithStaleWindow returns m with a different stale window.
func (m *Manager) WithStaleWindow(d time.Duration) *Manager {
	if d < 0 {
		d = 0
	}
	m.staleWindow = d
	return m
}

// Get retrieves a fresh entry by key.
// Returns ErrCacheMiss if the key doesn't exist or the entry is expired.
func (m *Manager) Get(ctx context.Context, key PageKey) (*Entry, error) {
	entry, err := m.Lookup(ctx, key)
	if err != nil {
		return nil, err
	}
	if entry.IsExpired() {
		CacheMisses.Inc()
		return nil, ErrCacheMiss
	}
	CacheHits.Inc()
	return entry, nil
}

// Lookup retrieves an entry by key, including expired entries still inside
// the stale window. It does not touch hit/miss metrics for found entries.
func (m *Manager) Lookup(ctx context.Context, key PageKey) (*Entry, error) {
	data, err := m.redis.Get(ctx, key.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			CacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	return &entry, nil
}

// Set stores an entry. Redis keeps it for its remaining TTL plus the stale
// window. Already expired entries are not stored.
func (m *Manager) Set(ctx context.Context, key PageKey, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	ttl := entry.TTL()
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := m.redis.Set(ctx, key.String(), data, ttl+m.staleWindow).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

// Delete removes an entry.
func (m *Manager) Delete(ctx context.Context, key PageKey) error {
	if err := m.redis.Del(ctx, key.String()).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// UpdateTTL extends an existing (possibly stale) entry, used after a
// 304 Not Modified.
func (m *Manager) UpdateTTL(ctx context.Context, key PageKey, newExpires time.Time) error {
	entry, err := m.Lookup(ctx, key)
	if err != nil {
		return err
	}

	entry.Expires = newExpires
	return m.Set(ctx, key, entry)
}
