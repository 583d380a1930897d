package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/retiro-core/retiro-core/internal/app"
	"github.com/retiro-core/retiro-core/internal/benefits"
	"github.com/retiro-core/retiro-core/internal/incidents"
	"github.com/retiro-core/retiro-core/internal/observability"
	"github.com/retiro-core/retiro-core/internal/platform/cache"
	"github.com/retiro-core/retiro-core/internal/platform/db"
	"github.com/retiro-core/retiro-core/internal/schedule"
	"github.com/retiro-core/retiro-core/internal/shared"
	"github.com/retiro-core/retiro-core/internal/tickets"
	"github.com/retiro-core/retiro-core/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, benefit cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()

	metrics := observability.NewMetrics()

	var benefitCache *benefits.Cache
	if redisClient != nil {
		benefitCache = benefits.NewCache(redisClient, cfg.BenefitCacheTTL)
	}
	benefitsRepo := benefits.NewPgRepository(pool)
	benefitsService := benefits.NewService(benefitsRepo, benefitCache, logger)
	benefitsHandler := benefits.NewHandler(logger, benefitsService)

	incidentsRepo := incidents.NewPgRepository(pool)
	incidentsService := incidents.NewService(incidentsRepo, logger, metrics)
	incidentsHandler := incidents.NewHandler(incidentsService, logger)

	idemStore := shared.NewPgIdempotencyStore(pool)
	ticketsRepo := tickets.NewPgRepository(pool)
	ticketsService := tickets.NewService(
		ticketsRepo,
		benefitsService,
		incidentsService,
		idemStore,
		tickets.ServiceConfig{TTL: cfg.TicketTTL, Branch: cfg.BranchCode},
		logger,
		metrics,
	)
	ticketsService.WithAudit(shared.NewAuditLogger(pool))
	ticketsHandler := tickets.NewHandler(ticketsService, logger)

	scheduleRepo := schedule.NewPgRepository(pool)
	scheduleService := schedule.NewService(scheduleRepo, benefitsService, logger)
	scheduleHandler := schedule.NewHandler(scheduleService, logger)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		BenefitsHandler:  benefitsHandler,
		TicketsHandler:   ticketsHandler,
		ScheduleHandler:  scheduleHandler,
		IncidentsHandler: incidentsHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
