//go:build integration

package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Sternrassler/charlist/internal/testutil"
	"github.com/Sternrassler/charlist/pkg/controller"
	"github.com/Sternrassler/charlist/pkg/filter"
	"github.com/Sternrassler/charlist/pkg/gateway"
)

func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := redisC.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := redisC.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		redisC.Terminate(ctx)
	}

	return redisClient, cleanup
}

func TestReadyEndpoint_Integration(t *testing.T) {
	redisClient, cleanup := setupTestRedis(t)
	defer cleanup()

	handler := readyHandler(redisClient)

	req := httptest.NewRequest("GET", "/ready", nil)
	w := httptest.NewRecorder()
	handler(w, req)

	body, _ := io.ReadAll(w.Result().Body)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if string(body) != "OK" {
		t.Errorf("Expected body 'OK', got %s", string(body))
	}
}

func TestCachedList_Integration(t *testing.T) {
	redisClient, cleanup := setupTestRedis(t)
	defer cleanup()

	api := testutil.NewMockAPI(60)
	defer api.Close()
	api.EnableETags()

	cfg := gateway.DefaultConfig("charlist-test/1.0")
	cfg.BaseURL = api.URL()
	cfg.Redis = redisClient
	cfg.CacheResponses = true
	gw, err := gateway.New(cfg)
	if err != nil {
		t.Fatalf("Failed to create gateway: %v", err)
	}

	state := filter.NewState(filter.Filter{})
	ctrl := controller.New(gw, state, controller.Config{})
	defer ctrl.Close()

	ctrl.Start()
	ctrl.Wait()
	if got := len(ctrl.View().Items); got != 20 {
		t.Fatalf("items = %d, want 20", got)
	}

	// Switching away and back serves page 1 from Redis.
	state.SetStatus(filter.StatusAlive)
	ctrl.Wait()
	state.SetStatus(filter.StatusAny)
	ctrl.Wait()

	view := ctrl.View()
	if len(view.Items) != 20 || view.IsError {
		t.Fatalf("view = %d items, error %v", len(view.Items), view.IsError)
	}
	if got := api.RequestCount(); got != 2 {
		t.Errorf("upstream requests = %d, want 2", got)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	keys, err := redisClient.Keys(ctx, "charlist:character:*").Result()
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("cached pages = %d, want 2", len(keys))
	}
}
