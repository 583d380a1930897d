package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/retiro-core/retiro-core/internal/app"
	"github.com/retiro-core/retiro-core/internal/benefits"
	"github.com/retiro-core/retiro-core/internal/incidents"
	jobmetrics "github.com/retiro-core/retiro-core/internal/jobs"
	"github.com/retiro-core/retiro-core/internal/platform/db"
	"github.com/retiro-core/retiro-core/internal/shared"
	"github.com/retiro-core/retiro-core/internal/tickets"
	"github.com/retiro-core/retiro-core/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	benefitsRepo := benefits.NewPgRepository(pool)
	benefitsService := benefits.NewService(benefitsRepo, nil, logger)

	incidentsRepo := incidents.NewPgRepository(pool)
	incidentsService := incidents.NewService(incidentsRepo, logger, nil)

	idemStore := shared.NewPgIdempotencyStore(pool)
	ticketsRepo := tickets.NewPgRepository(pool)
	ticketsService := tickets.NewService(
		ticketsRepo,
		benefitsService,
		incidentsService,
		idemStore,
		tickets.ServiceConfig{TTL: cfg.TicketTTL, Branch: cfg.BranchCode},
		logger,
		nil,
	)

	jobMetrics := jobmetrics.NewMetrics(nil)

	cleanupTask, err := jobs.NewIdempotencyCleanupTask(24 * time.Hour)
	if err != nil {
		logger.Error("build cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: redisOpts,
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskExpireSweep, Handler: jobs.NewExpireSweepHandler(ticketsService, jobMetrics, logger)},
			{Type: jobs.TaskIdempotencyCleanup, Handler: jobs.NewIdempotencyCleanupHandler(idemStore, jobMetrics, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.ExpireSweepSpec, Task: jobs.NewExpireSweepTask()},
			{Spec: "0 3 * * *", Task: cleanupTask},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker", slog.String("redis", cfg.RedisAddr))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
