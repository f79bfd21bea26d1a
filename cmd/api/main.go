package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/user/review-harvester/internal/adapter/chromedp_renderer"
	"github.com/user/review-harvester/internal/adapter/httpfetch"
	"github.com/user/review-harvester/internal/adapter/llm"
	"github.com/user/review-harvester/internal/adapter/postgres"
	redis_adapter "github.com/user/review-harvester/internal/adapter/redis"
	"github.com/user/review-harvester/internal/delivery/http/handler"
	"github.com/user/review-harvester/internal/delivery/http/router"
	"github.com/user/review-harvester/internal/repository"
	"github.com/user/review-harvester/internal/usecase"
	"github.com/user/review-harvester/pkg/config"
	"github.com/user/review-harvester/pkg/logger"
	"github.com/user/review-harvester/pkg/metrics"
)

func main() {
	// --- Configuration ---
	cfg := config.Load()

	// --- Logger ---
	logLevel := logger.ParseLevel(cfg.LogLevel)
	logger.Init(os.Stdout, logLevel)
	slog.Info("Logger initialized", "level", logLevel.String())

	// --- Metrics ---
	metrics.Init()
	slog.Info("Metrics initialized")

	ctx := context.Background()

	// --- Redis (job state) ---
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		slog.Error("Unable to connect to Redis", "error", err)
		os.Exit(1)
	}
	slog.Info("Redis connection established")

	// --- PostgreSQL (harvest archive, optional) ---
	var archiveRepo repository.ArchiveRepository
	if cfg.PostgresDSN != "" {
		dbpool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			slog.Error("Unable to connect to database", "error", err)
			os.Exit(1)
		}
		defer dbpool.Close()
		archiveRepo = postgres.NewArchiveRepo(dbpool)
		slog.Info("PostgreSQL connection pool established")
	} else {
		slog.Warn("POSTGRES_DSN not set, harvest archiving disabled")
	}

	// --- Adapters ---
	stateRepo := redis_adapter.NewJobStateRepo(rdb, cfg.StateRetention)
	fetcher := httpfetch.NewFetcher(cfg.FetchTimeout)
	renderer := chromedp_renderer.NewRenderer(cfg.WorkerCount, cfg.PageLoadTimeout)
	normalizer := llm.NewNormalizer(cfg.NormalizerEndpoint, cfg.NormalizerModel, cfg.NormalizerAPIKey)

	// --- Orchestrator ---
	orchestrator := usecase.NewOrchestrator(cfg, fetcher, renderer, normalizer, stateRepo, archiveRepo)
	orchestrator.Start()
	slog.Info("Harvest workers started", "count", cfg.WorkerCount)

	// --- HTTP Server ---
	apiHandler := handler.NewHandler(orchestrator)
	httpRouter := router.New(apiHandler)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      httpRouter,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("Starting server", "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Could not listen on port", "port", cfg.ServerPort, "error", err)
			os.Exit(1)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}
	orchestrator.Stop()
	slog.Info("Shutdown complete")
}
