package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/classforge/classforge-backend/internal/catalog"
	"github.com/classforge/classforge-backend/internal/config"
	"github.com/classforge/classforge-backend/internal/database"
	"github.com/classforge/classforge-backend/internal/handler"
	"github.com/classforge/classforge-backend/internal/logger"
	"github.com/classforge/classforge-backend/internal/model"
	"github.com/classforge/classforge-backend/internal/repository"
	"github.com/classforge/classforge-backend/internal/router"
	"github.com/classforge/classforge-backend/internal/service"
	"github.com/classforge/classforge-backend/internal/validator"
	"github.com/classforge/classforge-backend/internal/worker"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func main() {
	inmem := flag.Bool("inmem", false, "Run with the in-memory attempt store and a demo catalog (no PostgreSQL)")
	flag.Parse()

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Bool("inmem", *inmem).
		Msg("Starting ClassForge Attempt Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Storage & Catalog ─────────────────────────────────────────────
	var (
		store       repository.AttemptStore
		cat         catalog.Catalog
		studentRepo *repository.StudentRepository
		staffRepo   *repository.StaffRepository
	)

	if *inmem {
		store = repository.NewInMemAttemptStore()
		cat = demoCatalog(log)
	} else {
		pool, err := database.NewPostgresPool(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer pool.Close()

		store = repository.NewAttemptRepository(pool)
		studentRepo = repository.NewStudentRepository(pool)
		staffRepo = repository.NewStaffRepository(pool)

		client := catalog.NewClient(pool, rdb, cfg.CatalogCacheTTL, log)
		cat = client

		// Load open assignment snapshots into Redis BEFORE accepting
		// traffic, so the first wave of starts cannot stampede PostgreSQL.
		if err := client.Prewarm(ctx); err != nil {
			log.Warn().Err(err).Msg("Catalog prewarm failed")
		}
	}

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, rdb)
	gradingQueue := worker.NewGradingQueue(rdb, log)
	attemptService := service.NewAttemptService(store, cat, gradingQueue, cfg, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:       handler.NewAuthHandler(authService, studentRepo, staffRepo),
		Attempt:    handler.NewAttemptHandler(attemptService),
		Assignment: handler.NewAssignmentHandler(cat),
		Staff:      handler.NewStaffHandler(attemptService, authService),
		WS:         handler.NewWSHandler(attemptService, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	gradeWorker := worker.NewGradeResultWorker(store, rdb, log)
	go gradeWorker.Start(workerCtx)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
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

	// 2. Stop background workers and wait for queues to drain.
	workerCancel()
	time.Sleep(2 * time.Second) // Allow workers to drain.

	log.Info().Msg("Shutdown complete")
}

// demoCatalog builds a single fixed assignment so the -inmem server is
// usable without any seed data.
func demoCatalog(log zerolog.Logger) catalog.Catalog {
	assignment := &model.Assignment{
		ID:                    uuid.New(),
		Title:                 "Demo Quiz",
		DueDate:               time.Now().Add(24 * time.Hour),
		DurationMinutes:       30,
		TotalMarks:            10,
		LateSubmissionAllowed: false,
		Questions: []model.Question{
			{
				ID:           uuid.New(),
				QuestionText: "2 + 2 = ?",
				QuestionType: model.QuestionTypeMultipleChoice,
				Options:      json.RawMessage(`["3","4","5"]`),
				Required:     true,
				OrderNum:     1,
			},
			{
				ID:           uuid.New(),
				QuestionText: "The earth is flat.",
				QuestionType: model.QuestionTypeTrueFalse,
				Required:     true,
				OrderNum:     2,
			},
		},
	}

	log.Info().Str("assignment_id", assignment.ID.String()).Msg("Demo assignment available")
	return catalog.NewStatic(assignment)
}
