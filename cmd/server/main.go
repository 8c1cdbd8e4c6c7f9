package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/stemsi/proficiency-backend/internal/config"
	"github.com/stemsi/proficiency-backend/internal/database"
	"github.com/stemsi/proficiency-backend/internal/handler"
	"github.com/stemsi/proficiency-backend/internal/logger"
	"github.com/stemsi/proficiency-backend/internal/metrics"
	"github.com/stemsi/proficiency-backend/internal/middleware"
	"github.com/stemsi/proficiency-backend/internal/presence"
	"github.com/stemsi/proficiency-backend/internal/repository"
	"github.com/stemsi/proficiency-backend/internal/router"
	"github.com/stemsi/proficiency-backend/internal/service"
	"github.com/stemsi/proficiency-backend/internal/validator"
	"github.com/stemsi/proficiency-backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Str("presence_backend", cfg.PresenceBackend).
		Msg("Starting proficiency backend")

	// ─── Initialize Validator & Metrics ────────────────────────────────
	validator.Setup()
	metrics.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	attemptRepo := repository.NewAttemptRepository(pool)
	contentRepo := repository.NewContentRepository(pool)
	eventRepo := repository.NewCheatingEventRepository(pool)

	// ─── Background Work Context ───────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	// ─── Presence Tracker ──────────────────────────────────────────────
	presenceSettings := presence.Settings{TTL: cfg.PresenceTTL, Throttle: cfg.PresenceThrottle}
	var tracker presence.Tracker
	switch cfg.PresenceBackend {
	case config.PresenceBackendRedis:
		tracker = presence.NewRedisTracker(rdb, presenceSettings)
	default:
		mem := presence.NewMemoryTracker(presenceSettings)
		workers.Add(1)
		go func() {
			defer workers.Done()
			mem.RunSweeper(workerCtx, presence.DefaultTTL)
		}()
		tracker = mem
	}

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg)
	cheatQueue := worker.NewCheatQueue(rdb)
	contentService := service.NewContentService(contentRepo, rdb, cfg.ContentCacheTTL, log)
	attemptService := service.NewAttemptService(attemptRepo, contentService, service.NewGenerator(cfg.ExamSeed), log)
	integrityService := service.NewIntegrityService(eventRepo, cheatQueue, attemptService, log)
	presenceService := service.NewPresenceService(tracker, attemptService, integrityService, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	deps := map[string]handler.Pinger{
		"postgres": pool,
		"redis": handler.PingerFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}),
	}
	handlers := &router.Handlers{
		Exam:      handler.NewExamHandler(attemptService, log),
		Presence:  handler.NewPresenceHandler(presenceService, log),
		Integrity: handler.NewIntegrityHandler(integrityService, log),
		Reviewer:  handler.NewReviewerHandler(integrityService, attemptService, rdb, log),
		Content:   handler.NewContentHandler(contentService, log),
		WS:        handler.NewWSHandler(presenceService, integrityService, log, cfg.AllowedOrigins),
		System:    handler.NewSystemHandler(deps, contentRepo, cheatQueue, cfg.PresenceBackend, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	cheatWorker := worker.NewCheatWorker(pool, rdb, log)
	workers.Add(1)
	go func() {
		defer workers.Done()
		cheatWorker.Start(workerCtx)
	}()

	presenceLimiter := middleware.NewRateLimiter(cfg.PresenceRatePerMinute, time.Minute)
	limiterStop := make(chan struct{})
	go presenceLimiter.Run(limiterStop)

	// ─── Prewarm Redis Caches ─────────────────────────────────────────
	// Load the content pools into Redis BEFORE accepting traffic so the
	// first burst of generates does not stampede PostgreSQL.
	if err := contentService.WarmPoolCache(ctx); err != nil {
		log.Warn().Err(err).Msg("Content pool prewarm failed")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, presenceLimiter, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for the cheat buffer to flush.
	close(limiterStop)
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}
