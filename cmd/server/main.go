// Package main is the entrypoint for the bugboard API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kiranshivaraju/bugboard/internal/analysis"
	"github.com/kiranshivaraju/bugboard/internal/api"
	"github.com/kiranshivaraju/bugboard/internal/api/handler"
	mw "github.com/kiranshivaraju/bugboard/internal/api/middleware"
	"github.com/kiranshivaraju/bugboard/internal/api/response"
	"github.com/kiranshivaraju/bugboard/internal/apikey"
	"github.com/kiranshivaraju/bugboard/internal/cache"
	"github.com/kiranshivaraju/bugboard/internal/config"
	"github.com/kiranshivaraju/bugboard/internal/reports"
	"github.com/kiranshivaraju/bugboard/internal/store"
	"github.com/kiranshivaraju/bugboard/pkg/models"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout    = 30 * time.Second
	healthCheckTimeout = 2 * time.Second
	migrationsDir      = "migrations"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded",
		"env", cfg.Server.Env,
		"store", cfg.Store,
		"duplicate_scope", cfg.Submit.Scope,
		"consistency", cfg.Submit.Consistency,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	locker, err := reports.NewLocker(cfg.Submit.Consistency, redisCache, cfg.Submit.LockTTL, cfg.Submit.LockWait)
	if err != nil {
		return fmt.Errorf("create submission locker: %w", err)
	}
	var opts []reports.Option
	if locker != nil {
		opts = append(opts, reports.WithLocker(locker))
	}
	svc := reports.NewService(st, analysis.Scope(cfg.Submit.Scope), opts...)

	deps := api.Dependencies{
		Auth:      mw.NewAuth(st),
		RateLimit: mw.NewRateLimit(redisCache, cfg.RateLimit.RequestsPerMinute),

		HealthHandler:    healthHandler(st, redisCache),
		CreateReport:     handler.NewCreateReportHandler(svc),
		ListReports:      handler.NewListReportsHandler(svc),
		MatchTeams:       handler.NewMatchTeamsHandler(svc),
		ListClusters:     handler.NewClustersHandler(svc),
		Leaderboard:      handler.NewLeaderboardHandler(svc),
		CreateKeyHandler: handler.NewCreateKeyHandler(st),
		ListKeysHandler:  handler.NewListKeysHandler(st),
		RevokeKeyHandler: handler.NewRevokeKeyHandler(st),
	}

	router := api.NewRouter(deps)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// openStore connects the configured store. Postgres is migrated before use;
// the memory store gets a bootstrap admin key since nothing else can mint one.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	if cfg.Store == config.StoreMemory {
		ms := store.NewMemoryStore()
		if err := bootstrapAdminKey(ctx, ms); err != nil {
			return nil, nil, err
		}
		slog.Warn("using in-memory store; reports are lost on restart")
		return ms, func() {}, nil
	}

	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	slog.Info("database connected")

	if err := store.RunMigrations(cfg.Database.URL, migrationsDir); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	return store.NewPostgresStore(pool), pool.Close, nil
}

func bootstrapAdminKey(ctx context.Context, s store.Store) error {
	raw, key, err := apikey.Generate("bootstrap-admin", []string{models.ScopeAdmin})
	if err != nil {
		return fmt.Errorf("generate bootstrap key: %w", err)
	}
	if err := s.CreateAPIKey(ctx, key); err != nil {
		return fmt.Errorf("store bootstrap key: %w", err)
	}
	slog.Warn("bootstrap admin key created; it is shown only once", "key", raw, "key_id", key.ID)
	return nil
}

// healthHandler checks database and cache connectivity concurrently.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		var dbErr, cacheErr error
		var g errgroup.Group
		g.Go(func() error {
			dbErr = s.Ping(ctx)
			return nil
		})
		g.Go(func() error {
			cacheErr = c.Ping(ctx)
			return nil
		})
		g.Wait()

		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}
		if dbErr != nil {
			slog.Warn("health check failed", "service", "database", "error", dbErr)
			checks["database"] = "degraded"
		}
		if cacheErr != nil {
			slog.Warn("health check failed", "service", "cache", "error", cacheErr)
			checks["cache"] = "degraded"
		}

		if dbErr != nil || cacheErr != nil {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
