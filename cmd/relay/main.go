package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/explorerhq/webhook-relay/internal/config"
	"github.com/explorerhq/webhook-relay/internal/history"
	"github.com/explorerhq/webhook-relay/internal/ratelimit"
	"github.com/explorerhq/webhook-relay/internal/relay"
	"github.com/explorerhq/webhook-relay/internal/telemetry"
)

var version = "dev"

func main() {
	configDir := flag.String("config", "configs", "path to configuration directory")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	loader := config.NewLoader(*configDir, logger)
	if err := loader.Load(); err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := loader.Watch(); err != nil {
		logger.Warn("failed to start config watcher", "error", err)
	}

	cfg := loader.Config()

	// Rebuild the logger once the configured level is known.
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.Telemetry.LogLevel),
	}))
	slog.SetDefault(logger)

	if len(cfg.Relay.AllowedHosts()) == 0 {
		logger.Warn("webhook allowlist is empty, any upstream host will be accepted",
			"env", config.EnvAllowlist)
	}

	metrics := telemetry.NewMetrics()

	// Redis backs the rate limiter and/or history store when configured.
	var rdb *redis.Client
	if cfg.RateLimit.Store == "redis" || cfg.History.Driver == "redis" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			logger.Error("redis not reachable", "addr", cfg.Redis.Address, "error", err)
			os.Exit(1)
		}
		logger.Info("redis connected", "addr", cfg.Redis.Address)
	}

	var limiterStore ratelimit.Store
	if cfg.RateLimit.Store == "redis" {
		limiterStore = ratelimit.NewRedisStore(rdb)
	} else {
		limiterStore = ratelimit.NewMemoryStore(time.Now)
	}
	limiter := ratelimit.NewLimiter(limiterStore, cfg.RateLimit.Capacity, cfg.RateLimit.Window())

	historyStore, err := buildHistoryStore(cfg, rdb, logger)
	if err != nil {
		logger.Error("failed to initialize history store", "driver", cfg.History.Driver, "error", err)
		os.Exit(1)
	}
	defer historyStore.Close()

	handler := relay.NewHandler(loader.Config, &http.Client{}, metrics)
	historyHandler := history.NewHandler(historyStore, version)

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)

	r.Get("/api/health", handler.Health)

	r.Group(func(r chi.Router) {
		r.Use(ratelimit.Middleware(limiter, metrics))
		r.Post("/api/chat", handler.Chat)
	})

	historyHandler.Mount(r)

	// Metrics are served on a separate port, away from the public surface.
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Telemetry.MetricsPort),
		Handler: metricsMux,
	}
	go func() {
		logger.Info("metrics server starting", "addr", metricsSrv.Addr)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("relay starting", "addr", addr, "version", version)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	metricsSrv.Shutdown(ctx)
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("relay stopped")
}

func buildHistoryStore(cfg *config.Config, rdb *redis.Client, logger *slog.Logger) (history.Store, error) {
	switch cfg.History.Driver {
	case "", "memory":
		return history.NewMemoryStore(), nil
	case "redis":
		return history.NewRedisStore(rdb, cfg.History.TTL()), nil
	case "postgres":
		pool, err := pgxpool.New(context.Background(), cfg.Database.DSN())
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := pool.Ping(context.Background()); err != nil {
			return nil, fmt.Errorf("ping database: %w", err)
		}
		logger.Info("database connected", "host", cfg.Database.Host, "db", cfg.Database.Name)
		return history.NewPostgresStore(pool), nil
	default:
		return nil, fmt.Errorf("unknown history driver %q", cfg.History.Driver)
	}
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = generateRequestID()
		}
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r)
	})
}

func generateRequestID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return fmt.Sprintf("req_%d_%s", time.Now().UnixMilli(), hex.EncodeToString(b))
}
