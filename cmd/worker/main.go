package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/finbook/finbook/internal/app"
	"github.com/finbook/finbook/internal/checks"
	jobmetrics "github.com/finbook/finbook/internal/jobs"
	"github.com/finbook/finbook/internal/platform/db"
	"github.com/finbook/finbook/internal/recon"
	"github.com/finbook/finbook/internal/shared"
	"github.com/finbook/finbook/internal/statements"
	"github.com/finbook/finbook/jobs"
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

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}

	metrics := jobmetrics.NewMetrics(nil)
	auditLogger := shared.NewAuditLogger(pool)

	reconRepo := recon.NewRepository(pool)
	matcher := recon.NewMatcher(reconRepo, logger)
	reconJob := jobs.NewReconRunJob(matcher, redisClient, logger, metrics)

	checksRepo := checks.NewRepository(pool)
	checksService := checks.NewService(checksRepo, auditLogger, logger)
	scanJob := jobs.NewChecksScanJob(pool, checksService, logger, metrics)

	statementsRepo := statements.NewRepository(pool)
	statementsService := statements.NewService(statementsRepo, logger)
	staleJob := jobs.NewStaleStatementsJob(statementsService, cfg.StaleStatementAfter, logger, metrics)

	scanTask, err := jobs.NewChecksScanTask(jobs.ChecksScanPayload{})
	if err != nil {
		logger.Error("build scan task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskReconRun, Handler: reconJob.Handle},
			{Type: jobs.TaskChecksScan, Handler: scanJob.Handle},
			{Type: jobs.TaskStatementsStale, Handler: staleJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "30 1 * * *", Task: scanTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "*/10 * * * *", Task: jobs.NewStatementsStaleTask()},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	router := chi.NewRouter()
	jobs.NewHandler(inspector, logger).MountRoutes(router)
	router.Handle("/metrics", promhttp.Handler())
	healthSrv := &http.Server{
		Addr:              cfg.WorkerHealthAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := healthSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("health server", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = healthSrv.Shutdown(shutdownCtx)
	}()

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
