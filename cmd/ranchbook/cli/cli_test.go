package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ranchbook/ranchbook/internal/accounting/accounts"
	"github.com/ranchbook/ranchbook/internal/accounting/ledger"
	"github.com/ranchbook/ranchbook/internal/inventory"
	"github.com/ranchbook/ranchbook/jobs"
)

type stubLedger struct{ issues []ledger.IntegrityIssue }

func (s stubLedger) CheckIntegrity(context.Context, int) ([]ledger.IntegrityIssue, error) {
	return s.issues, nil
}

func (s stubLedger) RebuildBalances(context.Context) ([]ledger.BalanceDrift, error) { return nil, nil }

type stubInventory struct{ drifts []inventory.Drift }

func (s stubInventory) Reconcile(context.Context) ([]inventory.Drift, error) { return s.drifts, nil }

type stubSeeder struct{ tenant uuid.UUID }

func (s *stubSeeder) SeedDefaults(_ context.Context, tenantID uuid.UUID) ([]accounts.Account, error) {
	s.tenant = tenantID
	return []accounts.Account{{Code: "1000", Name: "Cash"}, {Code: "1100", Name: "Accounts Receivable"}}, nil
}

type stubEnqueuer struct{ types []string }

func (s *stubEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	s.types = append(s.types, task.Type())
	return &asynq.TaskInfo{ID: "abc", Type: task.Type(), Queue: jobs.QueueDefault}, nil
}

func (s *stubEnqueuer) Close() error { return nil }

type stubInspector struct{}

func (stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return &asynq.QueueInfo{Queue: jobs.QueueDefault, Pending: 2, Scheduled: 1}, nil
}

func (stubInspector) ListScheduledTasks(string, ...asynq.ListOption) ([]*asynq.TaskInfo, error) {
	return []*asynq.TaskInfo{{ID: "s1", Type: jobs.TaskLedgerIntegrity}}, nil
}

type stubRuntime struct {
	served   bool
	checkers Checkers
	seeder   *stubSeeder
	enqueuer *stubEnqueuer
}

func (r *stubRuntime) Serve(context.Context) error   { r.served = true; return nil }
func (r *stubRuntime) Migrate(context.Context) error { return errors.New("no database") }

func (r *stubRuntime) Checkers(context.Context) (Checkers, func(), error) {
	return r.checkers, func() {}, nil
}

func (r *stubRuntime) Jobs(context.Context) (*JobsCLI, error) {
	return NewJobsCLIWith(jobs.NewClientWith(r.enqueuer), stubInspector{}), nil
}

func (r *stubRuntime) Seeder(context.Context) (Seeder, func(), error) {
	return r.seeder, func() {}, nil
}

func newStubRuntime() *stubRuntime {
	return &stubRuntime{
		checkers: Checkers{Ledger: stubLedger{}, Inventory: stubInventory{}},
		seeder:   &stubSeeder{},
		enqueuer: &stubEnqueuer{},
	}
}

func run(t *testing.T, rt Runtime, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(rt)
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootWithoutArgsServes(t *testing.T) {
	rt := newStubRuntime()
	_, err := run(t, rt)
	require.NoError(t, err)
	require.True(t, rt.served)
}

func TestCheckCommandClean(t *testing.T) {
	out, err := run(t, newStubRuntime(), "check")
	require.NoError(t, err)
	require.Contains(t, out, "Ledger balanced")
}

func TestCheckCommandFindingsExitTen(t *testing.T) {
	rt := newStubRuntime()
	rt.checkers.Ledger = stubLedger{issues: []ledger.IntegrityIssue{{
		TransactionID: uuid.New(),
		Debit:         decimal.RequireFromString("10"),
		Credit:        decimal.RequireFromString("9.5"),
		Entries:       2,
	}}}

	out, err := run(t, rt, "check", "--json")
	require.Error(t, err)
	require.Equal(t, 10, ExitCode(err))

	var summary CheckSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	require.False(t, summary.OK)
	require.Len(t, summary.Unbalanced, 1)
	require.Empty(t, summary.InventoryDrifts)
}

func TestJobsTriggerAndQueue(t *testing.T) {
	rt := newStubRuntime()
	out, err := run(t, rt, "jobs", "trigger", jobs.TaskInventoryReconcile)
	require.NoError(t, err)
	require.Contains(t, out, "enqueued inventory:reconcile")
	require.Equal(t, []string{jobs.TaskInventoryReconcile}, rt.enqueuer.types)

	_, err = run(t, rt, "jobs", "trigger", "mail:send")
	require.Error(t, err)
	require.Equal(t, 1, ExitCode(err))

	out, err = run(t, rt, "jobs", "queue", "--scheduled", "5")
	require.NoError(t, err)
	require.Contains(t, out, "pending=2")
	require.Contains(t, out, "s1 ledger:integrity")
}

func TestAccountsSeed(t *testing.T) {
	rt := newStubRuntime()
	tenant := uuid.New()
	out, err := run(t, rt, "accounts", "seed", "--tenant", tenant.String())
	require.NoError(t, err)
	require.Equal(t, tenant, rt.seeder.tenant)
	require.Contains(t, out, "2 account(s) created")

	_, err = run(t, rt, "accounts", "seed", "--tenant", "ranch")
	require.ErrorContains(t, err, "invalid --tenant")
}

func TestMigrateErrorPropagates(t *testing.T) {
	_, err := run(t, newStubRuntime(), "migrate")
	require.ErrorContains(t, err, "no database")
}
