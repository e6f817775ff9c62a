package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/litmusq-backend/internal/config"
	"github.com/stemsi/litmusq-backend/internal/database"
	"github.com/stemsi/litmusq-backend/internal/handler"
	"github.com/stemsi/litmusq-backend/internal/logger"
	"github.com/stemsi/litmusq-backend/internal/repository"
	"github.com/stemsi/litmusq-backend/internal/router"
	"github.com/stemsi/litmusq-backend/internal/service"
	"github.com/stemsi/litmusq-backend/internal/validator"
	"github.com/stemsi/litmusq-backend/internal/worker"
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
		Msg("Starting LitmusQ Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

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
	questionRepo := repository.NewQuestionRepository(pool)
	bankRepo := repository.NewQuestionBankRepository(pool)
	resultRepo := repository.NewResultRepository(pool)
	sessionStore := repository.NewSessionStore(rdb, cfg.SessionTTL)
	resultQueue := repository.NewResultQueue(rdb)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg)
	questionSource := service.NewCachedQuestionSource(questionRepo, rdb, cfg.BankCacheTTL, log)
	bankService := service.NewBankService(bankRepo, questionSource, log)
	sessionService := service.NewSessionService(sessionStore, questionSource, bankRepo, resultRepo, resultQueue, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	probes := map[string]database.Probe{
		"postgres": database.PostgresProbe(pool),
		"redis":    database.RedisProbe(rdb),
	}
	handlers := &router.Handlers{
		Bank:    handler.NewBankHandler(bankService, cfg.MaxUploadBytes, log),
		Session: handler.NewSessionHandler(sessionService, log),
		History: handler.NewHistoryHandler(sessionService, log),
		WS:      handler.NewWSHandler(sessionService, sessionStore, log, cfg.AllowedOrigins),
		System:  handler.NewSystemHandler(sessionStore, resultQueue, pool, probes, log),
	}
	limiters := router.NewLimiters()

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	resultWorker := worker.NewResultWorker(resultRepo, rdb, cfg.ResultBatchSize, log)
	expiryWorker := worker.NewExpiryWorker(sessionStore, sessionService, cfg.ExpiryPollInterval, log)

	workers.Add(3)
	go func() { defer workers.Done(); resultWorker.Start(workerCtx) }()
	go func() { defer workers.Done(); expiryWorker.Start(workerCtx) }()
	go func() {
		defer workers.Done()
		sweepLimiters(workerCtx, limiters)
	}()

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, limiters, cfg, log)

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

	// 2. Stop background workers and wait for the result queue to drain.
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

// sweepLimiters forgets idle callers so the limiter maps stay small.
func sweepLimiters(ctx context.Context, l *router.Limiters) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Commands.Sweep()
			l.Imports.Sweep()
		}
	}
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
