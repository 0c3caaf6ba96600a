package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/rs/cors"

	"github.com/lancerhub/backend/internal/cache"
	"github.com/lancerhub/backend/internal/config"
	"github.com/lancerhub/backend/internal/db"
	"github.com/lancerhub/backend/internal/execution"
	"github.com/lancerhub/backend/internal/logging"
	"github.com/lancerhub/backend/internal/middleware"
	"github.com/lancerhub/backend/internal/payments"
	"github.com/lancerhub/backend/internal/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Logging)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.Database.URL)
	if err != nil {
		slog.Error("Cannot reach PostgreSQL. Ensure Postgres is running, e.g. docker-compose up -d", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	slog.Info("Connected to PostgreSQL database successfully!")

	if err := db.Migrate(ctx, pool, logger); err != nil {
		slog.Error("Migration failed", "error", err)
		os.Exit(1)
	}

	store, limiter, closeRedis := buildStores(ctx, cfg, logger)
	defer closeRedis()
	fetcher := cache.NewFetcher(store, cfg.Cache.DefaultTTL, logger)

	// Payments: insert func is set after River client is created (breaks init cycle)
	var insertMu sync.Mutex
	var insertFn payments.InsertExpiryTxFunc
	insertExpiry := func(ctx context.Context, tx pgx.Tx, args execution.ExpireTopupSessionArgs, at time.Time) error {
		insertMu.Lock()
		fn := insertFn
		insertMu.Unlock()
		if fn == nil {
			return errors.New("river insert not wired")
		}
		return fn(ctx, tx, args, at)
	}

	app := buildApp(cfg, pool, fetcher, insertExpiry, logger)

	workers := river.NewWorkers()
	river.AddWorker(workers, execution.NewExpireTopupSessionWorker(app.payments))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Logger: logger,
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 5},
		},
		Workers: workers,
	})
	if err != nil {
		slog.Error("Failed to create River client", "error", err)
		os.Exit(1)
	}

	insertMu.Lock()
	insertFn = func(ctx context.Context, tx pgx.Tx, args execution.ExpireTopupSessionArgs, at time.Time) error {
		_, err := riverClient.InsertTx(ctx, tx, args, &river.InsertOpts{ScheduledAt: at})
		return err
	}
	insertMu.Unlock()

	if err := riverClient.Start(ctx); err != nil {
		slog.Error("Failed to start River client", "error", err)
		os.Exit(1)
	}

	api := router.New(app.handlers, middleware.BearerAuth(app.tokens), middleware.RateLimit(limiter, logger, cfg.RateLimit.TrustedProxies...))
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.HTTP.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", payments.SecretHeader},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
	}).Handler(api)

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      corsHandler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			slog.Error("HTTP server failed", "error", err)
		}
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown failed", "error", err)
	}
	fetcher.AbortAll()
	if err := riverClient.Stop(shutdownCtx); err != nil {
		slog.Error("River stop failed", "error", err)
	}
	slog.Info("Server stopped")
}

// buildStores returns the cache store and rate limiter: Redis-backed when
// enabled and reachable, in-process otherwise.
func buildStores(ctx context.Context, cfg config.Config, logger *slog.Logger) (cache.Store, middleware.Limiter, func()) {
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err == nil {
			logger.Info("Using Redis for cache and rate limiting", "addr", cfg.Redis.Addr)
			return cache.NewRedisStore(client, "lancerhub:cache"),
				middleware.NewRedisLimiter(client, "lancerhub:rl", cfg.RateLimit.Requests, cfg.RateLimit.Window),
				func() { _ = client.Close() }
		}
		logger.Warn("Redis unreachable, falling back to in-memory cache and limiter", "addr", cfg.Redis.Addr, "error", err)
		_ = client.Close()
	}

	mem := cache.NewMemoryStore(cache.WithMaxEntries(cfg.Cache.MaxEntries))
	go mem.RunSweeper(ctx, time.Minute)
	return mem, middleware.NewMemoryLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window), func() {}
}
