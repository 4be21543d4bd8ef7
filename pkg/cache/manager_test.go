package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/Sternrassler/charlist/pkg/filter"
)

// setupTestRedis starts an in-memory Redis for the test.
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func testKey(page int) PageKey {
	return PageKey{
		Resource: "/character/",
		Filter:   filter.Filter{Search: "rick"},
		Page:     page,
	}
}

func TestNewManager_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewManager should panic with nil redis client")
		}
	}()
	NewManager(nil)
}

func TestManager_SetGet(t *testing.T) {
	client, _ := setupTestRedis(t)
	manager := NewManager(client)
	ctx := context.Background()

	entry := &Entry{
		Data:       []byte(`{"results":[]}`),
		ETag:       `"etag-1"`,
		Expires:    time.Now().Add(time.Minute),
		StatusCode: 200,
		CachedAt:   time.Now(),
	}

	if err := manager.Set(ctx, testKey(1), entry); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, err := manager.Get(ctx, testKey(1))
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got.Data) != string(entry.Data) {
		t.Errorf("Data = %s, want %s", got.Data, entry.Data)
	}
	if got.ETag != entry.ETag {
		t.Errorf("ETag = %s, want %s", got.ETag, entry.ETag)
	}

	if _, err := manager.Get(ctx, testKey(2)); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get() other page error = %v, want ErrCacheMiss", err)
	}
}

func TestManager_SetNil(t *testing.T) {
	client, _ := setupTestRedis(t)
	manager := NewManager(client)

	if err := manager.Set(context.Background(), testKey(1), nil); err == nil {
		t.Error("Expected error for nil entry")
	}
}

func TestManager_SetExpiredIsNoop(t *testing.T) {
	client, mr := setupTestRedis(t)
	manager := NewManager(client)

	err := manager.Set(context.Background(), testKey(1), &Entry{Expires: time.Now().Add(-time.Second)})
	if err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if mr.Exists(testKey(1).String()) {
		t.Error("expired entry should not be stored")
	}
}

func TestManager_StaleWindow(t *testing.T) {
	client, mr := setupTestRedis(t)
	manager := NewManager(client).WithStaleWindow(time.Minute)
	ctx := context.Background()

	entry := &Entry{
		Data:    []byte("page"),
		ETag:    `"v1"`,
		Expires: time.Now().Add(time.Second),
	}
	if err := manager.Set(ctx, testKey(1), entry); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	ttl := mr.TTL(testKey(1).String())
	if ttl <= time.Minute || ttl > time.Minute+2*time.Second {
		t.Errorf("redis TTL = %v, want entry TTL + stale window", ttl)
	}

	// Simulate expiry of the entry itself while the key is still alive.
	stale := *entry
	stale.Expires = time.Now().Add(-time.Second)
	data, err := json.Marshal(stale)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := mr.Set(testKey(1).String(), string(data)); err != nil {
		t.Fatalf("miniredis Set() error = %v", err)
	}

	if _, err := manager.Get(ctx, testKey(1)); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get() error = %v, want ErrCacheMiss for stale entry", err)
	}

	got, err := manager.Lookup(ctx, testKey(1))
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if !got.IsExpired() || got.ETag != `"v1"` || string(got.Data) != "page" {
		t.Errorf("Lookup() = %+v, want the stale entry", got)
	}

	if err := manager.UpdateTTL(ctx, testKey(1), time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("UpdateTTL() error = %v", err)
	}
	if _, err := manager.Get(ctx, testKey(1)); err != nil {
		t.Errorf("Get() after UpdateTTL error = %v", err)
	}
}

func TestManager_InvalidEntry(t *testing.T) {
	client, mr := setupTestRedis(t)
	manager := NewManager(client)

	if err := mr.Set(testKey(1).String(), "not json"); err != nil {
		t.Fatalf("miniredis Set() error = %v", err)
	}

	if _, err := manager.Get(context.Background(), testKey(1)); !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("Get() error = %v, want ErrInvalidEntry", err)
	}
}

func TestManager_Delete(t *testing.T) {
	client, _ := setupTestRedis(t)
	manager := NewManager(client)
	ctx := context.Background()

	entry := &Entry{Data: []byte("x"), Expires: time.Now().Add(time.Minute)}
	if err := manager.Set(ctx, testKey(1), entry); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := manager.Delete(ctx, testKey(1)); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := manager.Get(ctx, testKey(1)); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get() after Delete error = %v, want ErrCacheMiss", err)
	}
}

func TestManager_UpdateTTLMissing(t *testing.T) {
	client, _ := setupTestRedis(t)
	manager := NewManager(client)

	err := manager.UpdateTTL(context.Background(), testKey(9), time.Now().Add(time.Hour))
	if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("UpdateTTL() error = %v, want ErrCacheMiss", err)
	}
}
