package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/ranchbook/ranchbook/internal/accounting/ledger"
	"github.com/ranchbook/ranchbook/internal/inventory"
	jobmetrics "github.com/ranchbook/ranchbook/internal/jobs"
)

const defaultLimit = 500

// ErrFindings marks a run that completed but detected integrity problems.
// Handlers wrap it with asynq.SkipRetry since rerunning will not fix the data.
var ErrFindings = errors.New("jobs: integrity findings")

// LedgerChecker is the ledger side of the integrity checks.
type LedgerChecker interface {
	CheckIntegrity(ctx context.Context, limit int) ([]ledger.IntegrityIssue, error)
	RebuildBalances(ctx context.Context) ([]ledger.BalanceDrift, error)
}

// InventoryReconciler is the inventory side of the integrity checks.
type InventoryReconciler interface {
	Reconcile(ctx context.Context) ([]inventory.Drift, error)
}

// IntegrityJob runs the ledger and inventory integrity tasks.
type IntegrityJob struct {
	Ledger    LedgerChecker
	Inventory InventoryReconciler
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewIntegrityJob initialises the integrity handlers.
func NewIntegrityJob(ledger LedgerChecker, inv InventoryReconciler, logger *slog.Logger, metrics *jobmetrics.Metrics) *IntegrityJob {
	return &IntegrityJob{Ledger: ledger, Inventory: inv, Logger: logger, Metrics: metrics}
}

// Handlers returns the task handlers to register on the worker.
func (j *IntegrityJob) Handlers() []TaskHandler {
	return []TaskHandler{
		{Type: TaskLedgerIntegrity, Handler: j.HandleLedgerIntegrity},
		{Type: TaskBalancesRebuild, Handler: j.HandleBalancesRebuild},
		{Type: TaskInventoryReconcile, Handler: j.HandleInventoryReconcile},
		{Type: TaskIntegritySweep, Handler: j.HandleSweep},
	}
}

// HandleLedgerIntegrity reports unbalanced transactions.
func (j *IntegrityJob) HandleLedgerIntegrity(ctx context.Context, t *asynq.Task) error {
	return j.run(ctx, t, TaskLedgerIntegrity, func(ctx context.Context, p CheckPayload) (int, error) {
		return j.ledgerIntegrity(ctx, p)
	})
}

// HandleBalancesRebuild recomputes drifted running balances. Drift that was repaired is
// counted as findings but does not fail the run.
func (j *IntegrityJob) HandleBalancesRebuild(ctx context.Context, t *asynq.Task) error {
	return j.run(ctx, t, TaskBalancesRebuild, func(ctx context.Context, _ CheckPayload) (int, error) {
		if j.Ledger == nil {
			return 0, errors.New("balances rebuild: ledger not configured")
		}
		drifts, err := j.Ledger.RebuildBalances(ctx)
		if err != nil {
			return 0, err
		}
		j.Metrics.AddFindings("balance_drift", len(drifts))
		return 0, nil
	})
}

// HandleInventoryReconcile reports quantities that disagree with their movements.
func (j *IntegrityJob) HandleInventoryReconcile(ctx context.Context, t *asynq.Task) error {
	return j.run(ctx, t, TaskInventoryReconcile, func(ctx context.Context, _ CheckPayload) (int, error) {
		return j.inventoryReconcile(ctx)
	})
}

// HandleSweep runs the ledger and inventory checks concurrently.
func (j *IntegrityJob) HandleSweep(ctx context.Context, t *asynq.Task) error {
	return j.run(ctx, t, TaskIntegritySweep, func(ctx context.Context, p CheckPayload) (int, error) {
		var ledgerFindings, inventoryFindings int
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			n, err := j.ledgerIntegrity(gctx, p)
			ledgerFindings = n
			return err
		})
		g.Go(func() error {
			n, err := j.inventoryReconcile(gctx)
			inventoryFindings = n
			return err
		})
		if err := g.Wait(); err != nil {
			return 0, err
		}
		return ledgerFindings + inventoryFindings, nil
	})
}

func (j *IntegrityJob) ledgerIntegrity(ctx context.Context, p CheckPayload) (int, error) {
	if j.Ledger == nil {
		return 0, errors.New("ledger integrity: ledger not configured")
	}
	issues, err := j.Ledger.CheckIntegrity(ctx, p.Limit)
	if err != nil {
		return 0, err
	}
	j.Metrics.AddFindings("unbalanced_transaction", len(issues))
	return len(issues), nil
}

func (j *IntegrityJob) inventoryReconcile(ctx context.Context) (int, error) {
	if j.Inventory == nil {
		return 0, errors.New("inventory reconcile: inventory not configured")
	}
	drifts, err := j.Inventory.Reconcile(ctx)
	if err != nil {
		return 0, err
	}
	j.Metrics.AddFindings("inventory_drift", len(drifts))
	return len(drifts), nil
}

func (j *IntegrityJob) run(ctx context.Context, t *asynq.Task, name string, check func(context.Context, CheckPayload) (int, error)) (resultErr error) {
	if j == nil {
		return errors.New("integrity job: handler not configured")
	}
	payload, err := decodePayload(t)
	if err != nil {
		return fmt.Errorf("%s: decode payload: %v: %w", name, err, asynq.SkipRetry)
	}
	if payload.Limit <= 0 {
		payload.Limit = defaultLimit
	}

	start := time.Now()
	tracker := j.Metrics.Track(name)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("job", name))
	logger.Info("starting integrity check")

	findings, err := check(ctx, payload)
	if err != nil {
		logger.Error("integrity check failed", slog.Any("error", err))
		return err
	}
	logger.Info("completed integrity check",
		slog.Int("findings", findings),
		slog.Duration("duration", time.Since(start)),
	)
	if findings > 0 {
		return fmt.Errorf("%s: %d %w: %w", name, findings, ErrFindings, asynq.SkipRetry)
	}
	return nil
}

func (j *IntegrityJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}
