// Package main is the entrypoint for the SciVid API server.
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

	"github.com/scivid/scivid/internal/api"
	"github.com/scivid/scivid/internal/api/handler"
	mw "github.com/scivid/scivid/internal/api/middleware"
	"github.com/scivid/scivid/internal/api/response"
	"github.com/scivid/scivid/internal/cache"
	"github.com/scivid/scivid/internal/config"
	"github.com/scivid/scivid/internal/provider"
	"github.com/scivid/scivid/internal/provider/ffmpeg"
	"github.com/scivid/scivid/internal/provider/gemini"
	"github.com/scivid/scivid/internal/provider/pubmed"
	"github.com/scivid/scivid/internal/provider/veo"
	"github.com/scivid/scivid/internal/status"
	"github.com/scivid/scivid/internal/store"
	"github.com/scivid/scivid/internal/task"
)

const shutdownTimeout = 30 * time.Second

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
	// .env is optional; a missing file means vars come from the environment.
	_ = godotenv.Load()

	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env, "media_root", cfg.Storage.MediaRoot)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
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

	// 5. Ensure the media root exists before any job tries to write under it
	if err := os.MkdirAll(cfg.Storage.MediaRoot, 0o755); err != nil {
		return fmt.Errorf("create media root: %w", err)
	}

	// 6. Create store and generation providers
	pgStore := store.NewPostgresStore(pool)

	geminiProvider := gemini.NewProvider(cfg.Gemini)
	providers := &provider.Set{
		Source:   pubmed.NewClient(cfg.PubMed),
		Script:   geminiProvider,
		Speech:   geminiProvider,
		Video:    veo.NewClient(cfg.Veo),
		Renderer: ffmpeg.NewRenderer(cfg.FFmpeg),
	}
	slog.Info("providers initialized",
		"script_model", cfg.Gemini.ScriptModel,
		"video_model", cfg.Veo.Model)

	// 7. Create task service and status reporter
	taskService := task.NewService(pgStore, redisCache, providers, cfg, slog.Default())
	reporter := status.NewReporter(pgStore, redisCache, nil)

	// 8. Build router with dependencies
	auth := mw.NewAuth(pgStore)
	rateLimit := mw.NewRateLimit(redisCache, 60)

	deps := api.Dependencies{
		Auth:      auth,
		RateLimit: rateLimit,

		HealthHandler:         healthHandler(pgStore, redisCache),
		GenerateHandler:       handler.NewGenerateHandler(taskService),
		UploadCompleteHandler: handler.NewUploadCompleteHandler(taskService),
		JobStatusHandler:      handler.NewStatusHandler(reporter),
		JobListHandler:        handler.NewListHandler(pgStore),
	}

	router := api.NewRouter(deps)

	// 9. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
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

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
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
