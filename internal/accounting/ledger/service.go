package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ranchbook/ranchbook/internal/accounting/reports"
	core "github.com/ranchbook/ranchbook/internal/shared"
)

// RepositoryPort abstracts the persistence used by the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetTransaction(ctx context.Context, tenantID, id uuid.UUID) (Transaction, error)
	AccountTotals(ctx context.Context, tenantID uuid.UUID, asOf *time.Time) ([]reports.AccountBalance, error)
	UnbalancedTransactions(ctx context.Context, limit int) ([]IntegrityIssue, error)
	BalanceDrifts(ctx context.Context) ([]BalanceDrift, error)
	RebuildBalance(ctx context.Context, drift BalanceDrift) error
}

// AuditPort records ledger events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log core.AuditLog) error
}

// Invalidator drops derived balance caches after a commit.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Service exposes ledger reads, reports and maintenance, plus standalone postings.
type Service struct {
	repo   RepositoryPort
	writer *Writer
	audit  AuditPort
	cache  Invalidator
	logger *slog.Logger
}

// NewService constructs the ledger service.
func NewService(repo RepositoryPort, writer *Writer, audit AuditPort, cache Invalidator, logger *slog.Logger) *Service {
	if writer == nil {
		writer = NewWriter(DuplicateStrict)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, writer: writer, audit: audit, cache: cache, logger: logger}
}

// Writer returns the writer shared with the posting units.
func (s *Service) Writer() *Writer { return s.writer }

// Post writes one transaction in its own unit.
func (s *Service) Post(ctx context.Context, in PostingInput) (Result, error) {
	var res Result
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		res, err = s.writer.Post(ctx, tx, in)
		return err
	})
	if err != nil {
		return Result{}, err
	}
	if !res.Duplicate {
		s.afterCommit(ctx, "ledger.post", res.Transaction, nil)
	}
	return res, nil
}

// Reverse writes the mirror of a transaction in its own unit.
func (s *Service) Reverse(ctx context.Context, in ReverseInput) (Transaction, error) {
	var reversal Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		_, reversal, err = s.writer.Reverse(ctx, tx, in)
		return err
	})
	if err != nil {
		return Transaction{}, err
	}
	s.afterCommit(ctx, "ledger.reverse", reversal, map[string]any{"reverses": in.TransactionID.String(), "reason": in.Reason})
	return reversal, nil
}

func (s *Service) afterCommit(ctx context.Context, action string, txn Transaction, meta map[string]any) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.logger.Warn("balance cache invalidate", slog.Any("error", err))
		}
	}
	if s.audit == nil {
		return
	}
	if meta == nil {
		meta = map[string]any{}
	}
	meta["idempotency_key"] = txn.IdempotencyKey
	meta["source_type"] = txn.SourceType
	_ = s.audit.Record(ctx, core.AuditLog{
		TenantID: txn.TenantID,
		ActorID:  txn.PostedBy,
		Action:   action,
		Entity:   "ledger_transaction",
		EntityID: txn.ID.String(),
		Meta:     meta,
		At:       txn.CreatedAt,
	})
}

// Get loads a transaction with its entries.
func (s *Service) Get(ctx context.Context, tenantID, id uuid.UUID) (Transaction, error) {
	return s.repo.GetTransaction(ctx, tenantID, id)
}

// TrialBalance builds the trial balance as of the given date.
func (s *Service) TrialBalance(ctx context.Context, tenantID uuid.UUID, asOf *time.Time) (reports.TrialBalance, error) {
	rows, err := s.repo.AccountTotals(ctx, tenantID, asOf)
	if err != nil {
		return reports.TrialBalance{}, err
	}
	return reports.BuildTrialBalance(rows), nil
}

// ProfitAndLoss builds the income statement as of the given date.
func (s *Service) ProfitAndLoss(ctx context.Context, tenantID uuid.UUID, asOf *time.Time) (reports.ProfitAndLoss, error) {
	rows, err := s.repo.AccountTotals(ctx, tenantID, asOf)
	if err != nil {
		return reports.ProfitAndLoss{}, err
	}
	return reports.BuildProfitAndLoss(rows), nil
}

// BalanceSheet builds the balance sheet as of the given date.
func (s *Service) BalanceSheet(ctx context.Context, tenantID uuid.UUID, asOf *time.Time) (reports.BalanceSheet, error) {
	rows, err := s.repo.AccountTotals(ctx, tenantID, asOf)
	if err != nil {
		return reports.BalanceSheet{}, err
	}
	return reports.BuildBalanceSheet(rows), nil
}

// CheckIntegrity lists transactions that break the balance invariant.
func (s *Service) CheckIntegrity(ctx context.Context, limit int) ([]IntegrityIssue, error) {
	issues, err := s.repo.UnbalancedTransactions(ctx, limit)
	if err != nil {
		return nil, err
	}
	for _, issue := range issues {
		s.logger.Error("unbalanced ledger transaction",
			slog.String("tenant", issue.TenantID.String()),
			slog.String("transaction", issue.TransactionID.String()),
			slog.String("debit", issue.Debit.StringFixed(2)),
			slog.String("credit", issue.Credit.StringFixed(2)),
			slog.Int("entries", issue.Entries))
	}
	return issues, nil
}

// RebuildBalances recomputes drifted running balances from their entries.
func (s *Service) RebuildBalances(ctx context.Context) ([]BalanceDrift, error) {
	drifts, err := s.repo.BalanceDrifts(ctx)
	if err != nil {
		return nil, err
	}
	for _, d := range drifts {
		if err := s.repo.RebuildBalance(ctx, d); err != nil {
			return nil, err
		}
		s.logger.Warn("running balance rebuilt",
			slog.String("tenant", d.TenantID.String()),
			slog.String("account", d.Code),
			slog.String("cached", d.Cached.StringFixed(2)),
			slog.String("computed", d.Computed.StringFixed(2)))
	}
	if len(drifts) > 0 && s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.logger.Warn("balance cache invalidate", slog.Any("error", err))
		}
	}
	return drifts, nil
}
