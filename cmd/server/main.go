package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/pragati/exam-engine/internal/catalog"
	"github.com/pragati/exam-engine/internal/config"
	"github.com/pragati/exam-engine/internal/database"
	"github.com/pragati/exam-engine/internal/handler"
	"github.com/pragati/exam-engine/internal/logger"
	"github.com/pragati/exam-engine/internal/metrics"
	"github.com/pragati/exam-engine/internal/middleware"
	"github.com/pragati/exam-engine/internal/repository"
	"github.com/pragati/exam-engine/internal/repository/memory"
	"github.com/pragati/exam-engine/internal/router"
	"github.com/pragati/exam-engine/internal/service"
	"github.com/pragati/exam-engine/internal/validator"
	"github.com/pragati/exam-engine/internal/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("storage", cfg.StorageDriver).
		Str("log_level", cfg.LogLevel).
		Msg("Starting exam engine")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Storage ───────────────────────────────────────────────────────
	var (
		catalogStore service.CatalogStore
		attemptStore service.AttemptStore
		deps         []handler.Dependency
	)

	switch cfg.StorageDriver {
	case config.StorageDriverPostgres:
		pool, err := database.NewPostgresPool(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer pool.Close()

		catalogStore = repository.NewCatalogRepository(pool)
		attemptStore = repository.NewAttemptRepository(pool)
		deps = append(deps, handler.Dependency{Name: "postgres", Ping: pool.Ping})

	case config.StorageDriverMemory:
		store := memory.NewStore()
		if cfg.CatalogFile != "" {
			entries, err := catalog.LoadFile(cfg.CatalogFile)
			if err != nil {
				log.Fatal().Err(err).Str("file", cfg.CatalogFile).Msg("Failed to load catalog file")
			}
			for _, e := range entries {
				store.PutExam(e.Exam, e.Questions)
			}
			log.Info().Int("exams", len(entries)).Str("file", cfg.CatalogFile).Msg("Catalog loaded")
		} else {
			log.Warn().Msg("Memory storage without CATALOG_FILE: no exams will be available")
		}
		catalogStore = store
		attemptStore = store

	default:
		log.Fatal().Str("driver", cfg.StorageDriver).Msg("Unknown STORAGE_DRIVER")
	}

	// ─── Connect to Redis (optional) ───────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}

	// Interfaces stay nil (not typed-nil) when Redis is absent.
	var (
		paperCache service.PaperCache
		events     service.EventPublisher
	)
	if rdb != nil {
		defer rdb.Close()
		paperCache = repository.NewPaperCache(rdb, cfg.PaperCacheTTL)
		events = repository.NewAttemptEventPublisher(rdb)
		deps = append(deps, handler.Dependency{
			Name: "redis",
			Ping: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
	} else {
		log.Info().Msg("REDIS_URL not set: paper cache, attempt events and sweep lease disabled")
	}

	// ─── Metrics ───────────────────────────────────────────────────────
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// ─── Initialize Services ──────────────────────────────────────────
	deadline := service.NewDeadlineEnforcer(nil)
	authService := service.NewAuthService(cfg)
	catalogService := service.NewCatalogService(catalogStore, paperCache, deadline, log)
	attemptService := service.NewAttemptService(cfg, catalogService, attemptStore, deadline, events, m, log)

	answerLimiter := middleware.NewRateLimiter(cfg.AnswerRatePerSecond, cfg.AnswerRateBurst)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		StudentExam: handler.NewStudentExamHandler(catalogService, attemptService, log),
		WS:          handler.NewWSHandler(attemptService, deadline, answerLimiter, log, cfg.AllowedOrigins),
		System:      handler.NewSystemHandler(log, deps...),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	expiryWorker := worker.NewExpiryWorker(cfg, attemptService, rdb, log)

	wg.Add(2)
	go func() {
		defer wg.Done()
		expiryWorker.Start(workerCtx)
	}()
	go func() {
		defer wg.Done()
		answerLimiter.Start(workerCtx)
	}()

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(cfg, router.Deps{
		Auth:          authService,
		AnswerLimiter: answerLimiter,
		Metrics:       m,
		Gatherer:      reg,
		Log:           log,
	}, handlers)

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

	// 2. Stop background workers. Expired attempts left open are picked up
	// by the next sweep or closed lazily on access.
	workerCancel()
	wg.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
