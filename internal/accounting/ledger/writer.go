package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	acctshared "github.com/ranchbook/ranchbook/internal/accounting/shared"
	core "github.com/ranchbook/ranchbook/internal/shared"
)

// TxRepository exposes the transactional operations the writer needs.
type TxRepository interface {
	FindByIdempotencyKey(ctx context.Context, tenantID uuid.UUID, key string) (Transaction, error)
	GetTransactionForUpdate(ctx context.Context, tenantID, id uuid.UUID) (Transaction, error)
	// InactiveOrUnknownAccounts returns the ids that are not active accounts of the tenant.
	InactiveOrUnknownAccounts(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error)
	// InsertTransaction returns acctshared.ErrIdempotencyConflict when the key is taken.
	InsertTransaction(ctx context.Context, txn Transaction) error
	InsertEntries(ctx context.Context, tenantID uuid.UUID, entries []Entry) error
	// ApplyBalanceDeltas adds debit minus credit per account, signed by each account's normal balance.
	ApplyBalanceDeltas(ctx context.Context, tenantID uuid.UUID, netDebits map[uuid.UUID]decimal.Decimal) error
	MarkReversed(ctx context.Context, tenantID, id, reversedBy uuid.UUID) error
}

// Writer persists balanced transactions. It never opens its own transaction; callers pass the unit.
type Writer struct {
	mode DuplicateMode
	now  func() time.Time
}

// NewWriter constructs a Writer.
func NewWriter(mode DuplicateMode) *Writer {
	return &Writer{mode: mode, now: time.Now}
}

// WithNow overrides the clock for testing.
func (w *Writer) WithNow(now func() time.Time) {
	if now != nil {
		w.now = now
	}
}

// Mode returns the configured duplicate handling.
func (w *Writer) Mode() DuplicateMode { return w.mode }

// Post validates and writes one transaction with its entries and running balance updates.
func (w *Writer) Post(ctx context.Context, tx TxRepository, in PostingInput) (Result, error) {
	if err := in.Validate(); err != nil {
		return Result{}, err
	}
	existing, err := tx.FindByIdempotencyKey(ctx, in.TenantID, in.IdempotencyKey)
	switch {
	case err == nil:
		if w.mode == DuplicateReturnExisting {
			return Result{Transaction: existing, Duplicate: true}, nil
		}
		return Result{}, &core.DuplicateError{Message: "already posted", LedgerTransactionID: existing.ID.String()}
	case !errors.Is(err, acctshared.ErrTransactionNotFound):
		return Result{}, err
	}

	ids := make([]uuid.UUID, 0, len(in.Lines))
	for _, line := range in.Lines {
		ids = append(ids, line.AccountID)
	}
	bad, err := tx.InactiveOrUnknownAccounts(ctx, in.TenantID, ids)
	if err != nil {
		return Result{}, err
	}
	if len(bad) > 0 {
		for idx, line := range in.Lines {
			if line.AccountID == bad[0] {
				return Result{}, core.Preconditionf("line %d: account %s is missing or inactive", idx+1, bad[0])
			}
		}
	}

	now := w.now().UTC()
	txn := Transaction{
		ID:                    uuid.New(),
		TenantID:              in.TenantID,
		SiteID:                in.SiteID,
		SourceType:            in.SourceType,
		SourceID:              in.SourceID,
		TransactionDate:       in.Date,
		Description:           in.Description,
		Status:                StatusPosted,
		IdempotencyKey:        in.IdempotencyKey,
		ReversesTransactionID: in.ReversesTransactionID,
		PostedBy:              in.PostedBy,
		CreatedAt:             now,
	}
	if err := tx.InsertTransaction(ctx, txn); err != nil {
		if errors.Is(err, acctshared.ErrIdempotencyConflict) {
			return Result{}, &core.DuplicateError{Message: "already posted"}
		}
		return Result{}, err
	}

	netDebits := make(map[uuid.UUID]decimal.Decimal)
	txn.Entries = make([]Entry, 0, len(in.Lines))
	for idx, line := range in.Lines {
		txn.Entries = append(txn.Entries, Entry{
			ID:            uuid.New(),
			TransactionID: txn.ID,
			LineNo:        idx + 1,
			AccountID:     line.AccountID,
			OccurredAt:    in.Date,
			Debit:         line.Debit.Round(2),
			Credit:        line.Credit.Round(2),
			EntityType:    line.EntityType,
			EntityID:      line.EntityID,
			Memo:          line.Memo,
		})
		netDebits[line.AccountID] = netDebits[line.AccountID].Add(line.Debit.Round(2)).Sub(line.Credit.Round(2))
	}
	if err := tx.InsertEntries(ctx, in.TenantID, txn.Entries); err != nil {
		return Result{}, err
	}
	if err := tx.ApplyBalanceDeltas(ctx, in.TenantID, netDebits); err != nil {
		return Result{}, err
	}
	return Result{Transaction: txn}, nil
}

// Reverse writes the mirror image of a posted transaction and links both ways.
func (w *Writer) Reverse(ctx context.Context, tx TxRepository, in ReverseInput) (Transaction, Transaction, error) {
	original, err := tx.GetTransactionForUpdate(ctx, in.TenantID, in.TransactionID)
	if err != nil {
		return Transaction{}, Transaction{}, err
	}
	if original.ReversesTransactionID != nil {
		return Transaction{}, Transaction{}, acctshared.ErrReverseReversal
	}
	if original.Status != StatusPosted || original.ReversedByTransactionID != nil {
		return Transaction{}, Transaction{}, acctshared.ErrAlreadyReversed
	}

	date := original.TransactionDate
	if in.Date != nil {
		date = *in.Date
	}
	description := fmt.Sprintf("Reversal of %s", original.Description)
	if in.Reason != "" {
		description = fmt.Sprintf("%s: %s", description, in.Reason)
	}
	reversal, err := w.Post(ctx, tx, PostingInput{
		TenantID:              original.TenantID,
		SiteID:                original.SiteID,
		SourceType:            original.SourceType,
		SourceID:              original.SourceID,
		IdempotencyKey:        ReversalKey(original.ID),
		Date:                  date,
		Description:           description,
		PostedBy:              in.PostedBy,
		ReversesTransactionID: &original.ID,
		Lines:                 mirrorLines(original.Entries),
	})
	if err != nil {
		if errors.Is(err, core.ErrDuplicatePosting) {
			return Transaction{}, Transaction{}, acctshared.ErrAlreadyReversed
		}
		return Transaction{}, Transaction{}, err
	}
	if reversal.Duplicate {
		return Transaction{}, Transaction{}, acctshared.ErrAlreadyReversed
	}
	if err := tx.MarkReversed(ctx, original.TenantID, original.ID, reversal.Transaction.ID); err != nil {
		return Transaction{}, Transaction{}, err
	}
	original.Status = StatusReversed
	original.ReversedByTransactionID = &reversal.Transaction.ID
	return original, reversal.Transaction, nil
}

func mirrorLines(entries []Entry) []LineInput {
	lines := make([]LineInput, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, LineInput{
			AccountID:  e.AccountID,
			Debit:      e.Credit,
			Credit:     e.Debit,
			EntityType: e.EntityType,
			EntityID:   e.EntityID,
			Memo:       e.Memo,
		})
	}
	return lines
}
