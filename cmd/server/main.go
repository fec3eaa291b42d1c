// Package main is the entrypoint for the PriceHound API server.
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

	"github.com/joho/godotenv"
	"github.com/pricehound/pricehound/internal/api"
	"github.com/pricehound/pricehound/internal/api/handler"
	mw "github.com/pricehound/pricehound/internal/api/middleware"
	"github.com/pricehound/pricehound/internal/archive"
	"github.com/pricehound/pricehound/internal/cache"
	"github.com/pricehound/pricehound/internal/config"
	"github.com/pricehound/pricehound/internal/progress"
	"github.com/pricehound/pricehound/internal/scrape"
	"github.com/pricehound/pricehound/internal/scraper"
	"github.com/pricehound/pricehound/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	_ = godotenv.Load()

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "scraper_provider", cfg.Scraper.Provider, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := archive.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := archive.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create scrape provider
	provider, err := scraper.NewProvider(cfg.Scraper)
	if err != nil {
		return fmt.Errorf("create scrape provider: %w", err)
	}
	slog.Info("scrape provider initialized", "provider", provider.Name())

	// 6. Wire the orchestration core
	arcStore := archive.NewPostgresStore(pool)
	jobs := store.NewMemoryStore()
	publisher := progress.NewPublisher()
	orch := scrape.NewOrchestrator(jobs, provider, redisCache, publisher, arcStore,
		cfg.Scrape, cfg.Scraper.CacheTTL)

	// 7. Build router with dependencies
	auth := mw.NewAuth(arcStore)
	rateLimit := mw.NewRateLimit(redisCache, 60)

	deps := api.Dependencies{
		Auth:      auth,
		RateLimit: rateLimit,

		HealthHandler: handler.NewHealthHandler(arcStore, redisCache, provider.Name()),

		UploadHandler:     handler.NewUploadHandler(jobs),
		StartJobHandler:   handler.NewStartJobHandler(orch),
		JobStatusHandler:  handler.NewJobStatusHandler(jobs),
		JobResultsHandler: handler.NewJobResultsHandler(jobs),
		JobEventsHandler:  handler.NewEventsHandler(jobs, publisher),

		ListArchiveHandler: handler.NewListArchiveHandler(arcStore),
		GetArchiveHandler:  handler.NewGetArchiveHandler(arcStore),

		CreateKeyHandler: handler.NewCreateKeyHandler(arcStore),
		ListKeysHandler:  handler.NewListKeysHandler(arcStore),
		RevokeKeyHandler: handler.NewRevokeKeyHandler(arcStore),
	}

	router := api.NewRouter(deps)

	// 8. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// No write timeout: SSE streams stay open until the job finishes.
		IdleTimeout: 60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}
