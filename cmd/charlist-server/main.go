package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/Sternrassler/charlist/pkg/controller"
	"github.com/Sternrassler/charlist/pkg/filter"
	"github.com/Sternrassler/charlist/pkg/gateway"
	"github.com/Sternrassler/charlist/pkg/logging"
	"github.com/Sternrassler/charlist/pkg/pagination"
)

// options holds the server configuration. Flags default to environment variables.
type options struct {
	baseURL        string
	redisURL       string
	port           string
	userAgent      string
	logLevel       string
	logPretty      bool
	cacheResponses bool
	retry          bool
	search         string
	status         string
	exportWorkers  int
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	if err := run(opts); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

func parseFlags(args []string) (options, error) {
	var opts options

	flagSet := pflag.NewFlagSet("charlist-server", pflag.ContinueOnError)
	flagSet.StringVar(&opts.baseURL, "base-url", getEnv("CHARLIST_BASE_URL", gateway.DefaultBaseURL), "character API base URL")
	flagSet.StringVar(&opts.redisURL, "redis-url", getEnv("REDIS_URL", ""), "Redis address or redis:// URL (empty disables rate limiting and caching)")
	flagSet.StringVar(&opts.port, "port", getEnv("PORT", "8080"), "HTTP listen port")
	flagSet.StringVar(&opts.userAgent, "user-agent", getEnv("USER_AGENT", "charlist/0.1.0"), "User-Agent sent upstream")
	flagSet.StringVar(&opts.logLevel, "log-level", getEnv("LOG_LEVEL", "info"), "log level (debug, info, warn, error, disabled)")
	flagSet.BoolVar(&opts.logPretty, "log-pretty", getEnvBool("LOG_PRETTY", false), "human-readable console logs")
	flagSet.BoolVar(&opts.cacheResponses, "cache", getEnvBool("CHARLIST_CACHE", false), "cache pages in Redis (requires --redis-url)")
	flagSet.BoolVar(&opts.retry, "retry", getEnvBool("CHARLIST_RETRY", false), "retry network and 5xx failures with backoff")
	flagSet.StringVar(&opts.search, "search", "", "initial search text")
	flagSet.StringVar(&opts.status, "status", "", "initial status filter (alive, dead, unknown)")
	flagSet.IntVar(&opts.exportWorkers, "export-workers", pagination.DefaultConfig().MaxConcurrency, "parallel page fetches per export")

	if err := flagSet.Parse(args); err != nil {
		return options{}, err
	}
	if len(flagSet.Args()) > 0 {
		return options{}, fmt.Errorf("unexpected argument: %s", flagSet.Args()[0])
	}
	if !filter.ParseStatus(opts.status).Known() {
		return options{}, fmt.Errorf("invalid status %q", opts.status)
	}
	if opts.cacheResponses && opts.redisURL == "" {
		return options{}, fmt.Errorf("--cache requires --redis-url")
	}

	return opts, nil
}

func run(opts options) error {
	logging.Setup(logging.Config{
		Level:  logging.LogLevel(opts.logLevel),
		Pretty: opts.logPretty,
		Output: os.Stderr,
	})
	logger := logging.NewLogger("server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var redisClient *redis.Client
	if opts.redisURL != "" {
		client, err := newRedisClient(opts.redisURL)
		if err != nil {
			return err
		}
		defer client.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		logger.Info().Str("redis", opts.redisURL).Msg("Connected to Redis")
		redisClient = client
	}

	cfg := gateway.DefaultConfig(opts.userAgent)
	cfg.BaseURL = opts.baseURL
	cfg.CacheResponses = opts.cacheResponses
	if opts.retry {
		cfg.Retry = gateway.BackoffRetryConfig()
	}
	if redisClient != nil {
		cfg.Redis = redisClient
	}
	gw, err := gateway.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create gateway: %w", err)
	}

	state := filter.NewState(filter.Filter{Search: opts.search, Status: filter.Status(opts.status)})
	ctrl := controller.New(gw, state, controller.Config{Context: ctx})
	defer ctrl.Close()

	exportCfg := pagination.DefaultConfig()
	exportCfg.MaxConcurrency = opts.exportWorkers

	srv := &server{
		state:    state,
		ctrl:     ctrl,
		exporter: pagination.NewBatchFetcher(gw, exportCfg),
		logger:   logger,
	}
	if redisClient != nil {
		srv.redis = redisClient
	}

	httpServer := &http.Server{
		Addr:              ":" + opts.port,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctrl.Start()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", httpServer.Addr).
			Str("base_url", opts.baseURL).
			Str("user_agent", opts.userAgent).
			Msg("Starting character list server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// newRedisClient accepts a plain host:port or a redis:// URL.
func newRedisClient(redisURL string) (*redis.Client, error) {
	if strings.Contains(redisURL, "://") {
		redisOpts, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(redisOpts), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}
