package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hugh/evently/internal/accounts"
	"github.com/hugh/evently/internal/database"
	"github.com/hugh/evently/internal/notify"
	"github.com/hugh/evently/internal/tasks"
	"github.com/hugh/evently/internal/verification"
	"github.com/hugh/evently/pkg/config"
	"github.com/hugh/evently/pkg/queue"
	"github.com/hugh/evently/pkg/util"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := util.NewLogger(cfg.Server.Env)
	slog.SetDefault(logger)

	logger.Info("starting Evently worker")

	if err := util.ValidateCronExpr(cfg.Worker.PurgeCron); err != nil {
		logger.Error("invalid WORKER_PURGE_CRON", "error", err)
		os.Exit(1)
	}

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	notifier, err := notify.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to configure notifications", "error", err)
		os.Exit(1)
	}

	// The worker only delivers and purges, so it needs no queue or throttles.
	verifier := verification.NewService(
		accounts.NewGormStore(db),
		verification.NewIssuer(nil, nil),
		notifier,
		verification.Config{DefaultCountryCode: cfg.Verification.DefaultCountryCode},
		logger,
	)

	srv := queue.NewServer(&cfg.Redis, cfg.Worker.Concurrency, logger)

	handler := tasks.NewHandler(verifier, logger)
	mux := asynq.NewServeMux()
	handler.RegisterHandlers(mux)

	scheduler := queue.NewScheduler(&cfg.Redis, logger)
	entryID, err := scheduler.Register(cfg.Worker.PurgeCron, tasks.NewPurgeExpiredTask())
	if err != nil {
		logger.Error("failed to schedule purge task", "error", err)
		os.Exit(1)
	}
	if next, err := util.NextCronTime(cfg.Worker.PurgeCron, time.Now()); err == nil {
		logger.Info("purge scheduled", "entry_id", entryID, "cron", cfg.Worker.PurgeCron, "next_run", next)
	}

	if err := scheduler.Start(); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}

	if err := srv.Start(mux); err != nil {
		logger.Error("failed to start worker", "error", err)
		os.Exit(1)
	}
	logger.Info("worker started, waiting for tasks...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down worker...")
	scheduler.Shutdown()
	srv.Shutdown()

	if err := database.Close(db); err != nil {
		logger.Error("failed to close database", "error", err)
	}

	logger.Info("worker stopped")
}
