package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ranchbook/ranchbook/internal/app"
	jobmetrics "github.com/ranchbook/ranchbook/internal/jobs"
	"github.com/ranchbook/ranchbook/internal/observability"
	"github.com/ranchbook/ranchbook/internal/platform/cache"
	"github.com/ranchbook/ranchbook/internal/platform/db"
	"github.com/ranchbook/ranchbook/jobs"
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

	logger := app.NewLogger(cfg).With(slog.String("component", "worker"))

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	jobMetrics := jobmetrics.NewMetrics(metrics.Registerer())
	services := app.NewServices(cfg, logger, pool, redisClient, metrics)
	defer func() {
		if err := services.Publisher.Close(); err != nil {
			logger.Warn("kafka publisher close", slog.Any("error", err))
		}
	}()

	integrity := jobs.NewIntegrityJob(services.Ledger, services.Inventory, logger, jobMetrics)
	cleanup := &jobs.CleanupJob{Store: services.Idempotency, Logger: logger, Metrics: jobMetrics}

	cron := make([]jobs.CronRegistration, 0, 4)
	for _, entry := range []struct {
		spec string
		name string
	}{
		{"10 * * * *", jobs.TaskLedgerIntegrity},
		{"40 2 * * *", jobs.TaskBalancesRebuild},
		{"20 3 * * *", jobs.TaskInventoryReconcile},
		{"0 4 * * *", jobs.TaskIdempotencyCleanup},
	} {
		task, err := jobs.NewTask(entry.name, jobs.CheckPayload{})
		if err != nil {
			logger.Error("build task", slog.String("task", entry.name), slog.Any("error", err))
			os.Exit(1)
		}
		cron = append(cron, jobs.CronRegistration{Spec: entry.spec, Task: task})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB},
		Logger:    logger,
		Handlers:  append(integrity.Handlers(), jobs.TaskHandler{Type: jobs.TaskIdempotencyCleanup, Handler: cleanup.Handle}),
		Cron:      cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	metricsServer := &http.Server{
		Addr:              cfg.WorkerMetricsAddr,
		Handler:           metrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
