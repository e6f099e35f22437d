package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ranchbook/ranchbook/cmd/ranchbook/cli"
	"github.com/ranchbook/ranchbook/internal/app"
	"github.com/ranchbook/ranchbook/internal/observability"
	"github.com/ranchbook/ranchbook/internal/platform/cache"
	"github.com/ranchbook/ranchbook/internal/platform/db"
	"github.com/ranchbook/ranchbook/jobs"
)

type runtime struct {
	cfg    *app.Config
	logger *slog.Logger
}

func (r *runtime) redisOptions() cache.Options {
	return cache.Options{Addr: r.cfg.RedisAddr, Password: r.cfg.RedisPassword, DB: r.cfg.RedisDB}
}

func (r *runtime) asynqOptions() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: r.cfg.RedisAddr, Password: r.cfg.RedisPassword, DB: r.cfg.RedisDB}
}

// open connects postgres and redis and returns the wired services.
func (r *runtime) open(ctx context.Context, metrics *observability.Metrics) (*app.Services, func(), error) {
	pool, err := db.New(ctx, r.cfg.PGDSN, r.cfg.PGMaxConns)
	if err != nil {
		return nil, nil, err
	}
	redisClient, err := cache.New(ctx, r.redisOptions())
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	services := app.NewServices(r.cfg, r.logger, pool, redisClient, metrics)
	cleanup := func() {
		if err := services.Publisher.Close(); err != nil {
			r.logger.Warn("kafka publisher close", slog.Any("error", err))
		}
		if err := redisClient.Close(); err != nil {
			r.logger.Warn("redis close", slog.Any("error", err))
		}
		pool.Close()
	}
	return services, cleanup, nil
}

func (r *runtime) Migrate(ctx context.Context) error {
	return db.Migrate(r.cfg.PGDSN, r.logger)
}

func (r *runtime) Serve(ctx context.Context) error {
	if r.cfg.DBMigrateOnStart {
		if err := db.Migrate(r.cfg.PGDSN, r.logger); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	metrics := observability.NewMetrics()
	services, cleanup, err := r.open(ctx, metrics)
	if err != nil {
		return err
	}
	defer cleanup()

	inspector := asynq.NewInspector(r.asynqOptions())
	defer func() {
		if err := inspector.Close(); err != nil {
			r.logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient := jobs.NewClient(r.asynqOptions())
	defer func() {
		if err := jobClient.Close(); err != nil {
			r.logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	params := services.Handlers(r.logger)
	params.Config = r.cfg
	params.Metrics = metrics
	params.JobHandler = jobs.NewHandler(inspector, jobClient, r.logger)

	server := &http.Server{
		Addr:         r.cfg.AppAddr,
		Handler:      app.NewRouter(params),
		ReadTimeout:  r.cfg.AppReadTimeout,
		WriteTimeout: r.cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		r.logger.Info("starting http server", slog.String("addr", r.cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}
	r.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("graceful shutdown", slog.Any("error", err))
	}
	return nil
}

func (r *runtime) Checkers(ctx context.Context) (cli.Checkers, func(), error) {
	services, cleanup, err := r.open(ctx, nil)
	if err != nil {
		return cli.Checkers{}, nil, err
	}
	return cli.Checkers{Ledger: services.Ledger, Inventory: services.Inventory}, cleanup, nil
}

func (r *runtime) Jobs(ctx context.Context) (*cli.JobsCLI, error) {
	return cli.NewJobsCLI(r.asynqOptions()), nil
}

func (r *runtime) Seeder(ctx context.Context) (cli.Seeder, func(), error) {
	services, cleanup, err := r.open(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	return services.Accounts, cleanup, nil
}

var _ cli.Runtime = (*runtime)(nil)
