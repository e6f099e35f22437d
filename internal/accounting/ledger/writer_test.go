package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	acctshared "github.com/ranchbook/ranchbook/internal/accounting/shared"
	core "github.com/ranchbook/ranchbook/internal/shared"
)

type memoryAccount struct {
	active bool
	debit  bool
	bal    decimal.Decimal
}

type memoryLedger struct {
	accounts map[uuid.UUID]*memoryAccount
	txns     map[uuid.UUID]Transaction
	keys     map[string]uuid.UUID
	entries  []Entry
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{
		accounts: make(map[uuid.UUID]*memoryAccount),
		txns:     make(map[uuid.UUID]Transaction),
		keys:     make(map[string]uuid.UUID),
	}
}

func (m *memoryLedger) addAccount(debitNormal bool) uuid.UUID {
	id := uuid.New()
	m.accounts[id] = &memoryAccount{active: true, debit: debitNormal}
	return id
}

func (m *memoryLedger) FindByIdempotencyKey(_ context.Context, tenantID uuid.UUID, key string) (Transaction, error) {
	id, ok := m.keys[tenantID.String()+"/"+key]
	if !ok {
		return Transaction{}, acctshared.ErrTransactionNotFound
	}
	return m.txns[id], nil
}

func (m *memoryLedger) GetTransactionForUpdate(_ context.Context, tenantID, id uuid.UUID) (Transaction, error) {
	txn, ok := m.txns[id]
	if !ok || txn.TenantID != tenantID {
		return Transaction{}, acctshared.ErrTransactionNotFound
	}
	return txn, nil
}

func (m *memoryLedger) InactiveOrUnknownAccounts(_ context.Context, _ uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	var bad []uuid.UUID
	for _, id := range ids {
		if acc, ok := m.accounts[id]; !ok || !acc.active {
			bad = append(bad, id)
		}
	}
	return bad, nil
}

func (m *memoryLedger) InsertTransaction(_ context.Context, txn Transaction) error {
	k := txn.TenantID.String() + "/" + txn.IdempotencyKey
	if _, ok := m.keys[k]; ok {
		return acctshared.ErrIdempotencyConflict
	}
	m.keys[k] = txn.ID
	m.txns[txn.ID] = txn
	return nil
}

func (m *memoryLedger) InsertEntries(_ context.Context, _ uuid.UUID, entries []Entry) error {
	m.entries = append(m.entries, entries...)
	if len(entries) > 0 {
		txn := m.txns[entries[0].TransactionID]
		txn.Entries = append(txn.Entries, entries...)
		m.txns[txn.ID] = txn
	}
	return nil
}

func (m *memoryLedger) ApplyBalanceDeltas(_ context.Context, _ uuid.UUID, netDebits map[uuid.UUID]decimal.Decimal) error {
	for id, delta := range netDebits {
		acc := m.accounts[id]
		if acc.debit {
			acc.bal = acc.bal.Add(delta)
		} else {
			acc.bal = acc.bal.Sub(delta)
		}
	}
	return nil
}

func (m *memoryLedger) MarkReversed(_ context.Context, _ uuid.UUID, id, reversedBy uuid.UUID) error {
	txn := m.txns[id]
	if txn.Status != StatusPosted {
		return acctshared.ErrAlreadyReversed
	}
	txn.Status = StatusReversed
	txn.ReversedByTransactionID = &reversedBy
	m.txns[id] = txn
	return nil
}

func (m *memoryLedger) entryTotals() (decimal.Decimal, decimal.Decimal) {
	debit, credit := decimal.Zero, decimal.Zero
	for _, e := range m.entries {
		debit = debit.Add(e.Debit)
		credit = credit.Add(e.Credit)
	}
	return debit, credit
}

func amount(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func invoiceInput(tenantID, ar, sales uuid.UUID, key, total string) PostingInput {
	return PostingInput{
		TenantID:       tenantID,
		SourceType:     "invoice",
		SourceID:       uuid.New(),
		IdempotencyKey: key,
		Date:           time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Description:    "Invoice INV-1",
		PostedBy:       "u-1",
		Lines: []LineInput{
			{AccountID: ar, Debit: amount(total)},
			{AccountID: sales, Credit: amount(total)},
		},
	}
}

func TestPostingInputValidate(t *testing.T) {
	tenant := uuid.New()
	a, b := uuid.New(), uuid.New()

	valid := invoiceInput(tenant, a, b, "invoice-1", "500")
	require.NoError(t, valid.Validate())

	unbalanced := valid
	unbalanced.Lines = []LineInput{{AccountID: a, Debit: amount("500")}, {AccountID: b, Credit: amount("499.98")}}
	require.ErrorIs(t, unbalanced.Validate(), acctshared.ErrUnbalanced)

	withinTolerance := valid
	withinTolerance.Lines = []LineInput{{AccountID: a, Debit: amount("500")}, {AccountID: b, Credit: amount("499.99")}}
	require.NoError(t, withinTolerance.Validate())

	empty := valid
	empty.Lines = nil
	require.ErrorIs(t, empty.Validate(), acctshared.ErrNoLines)

	bothSides := valid
	bothSides.Lines = []LineInput{{AccountID: a, Debit: amount("5"), Credit: amount("5")}}
	require.ErrorIs(t, bothSides.Validate(), core.ErrValidation)

	negative := valid
	negative.Lines = []LineInput{{AccountID: a, Debit: amount("-5")}, {AccountID: b, Credit: amount("-5")}}
	require.ErrorIs(t, negative.Validate(), core.ErrValidation)

	noKey := valid
	noKey.IdempotencyKey = ""
	var verr *core.ValidationError
	require.ErrorAs(t, noKey.Validate(), &verr)
	require.Contains(t, verr.Fields, "idempotencyKey")
}

func TestWriterPostBalancedAndRunningBalance(t *testing.T) {
	ctx := context.Background()
	mem := newMemoryLedger()
	ar := mem.addAccount(true)
	sales := mem.addAccount(false)
	tenant := uuid.New()
	w := NewWriter(DuplicateStrict)

	res, err := w.Post(ctx, mem, invoiceInput(tenant, ar, sales, "invoice-1", "500"))
	require.NoError(t, err)
	require.False(t, res.Duplicate)
	require.Len(t, res.Transaction.Entries, 2)
	require.Equal(t, 1, res.Transaction.Entries[0].LineNo)

	debit, credit := mem.entryTotals()
	require.True(t, debit.Equal(credit))
	require.True(t, mem.accounts[ar].bal.Equal(amount("500")))
	require.True(t, mem.accounts[sales].bal.Equal(amount("500")))
}

func TestWriterIdempotency(t *testing.T) {
	ctx := context.Background()
	tenant := uuid.New()

	t.Run("strict", func(t *testing.T) {
		mem := newMemoryLedger()
		ar, sales := mem.addAccount(true), mem.addAccount(false)
		w := NewWriter(DuplicateStrict)
		first, err := w.Post(ctx, mem, invoiceInput(tenant, ar, sales, "invoice-9", "500"))
		require.NoError(t, err)

		_, err = w.Post(ctx, mem, invoiceInput(tenant, ar, sales, "invoice-9", "500"))
		var dup *core.DuplicateError
		require.ErrorAs(t, err, &dup)
		require.Equal(t, first.Transaction.ID.String(), dup.LedgerTransactionID)
		require.Len(t, mem.entries, 2)
		require.True(t, mem.accounts[ar].bal.Equal(amount("500")))
	})

	t.Run("retry-safe", func(t *testing.T) {
		mem := newMemoryLedger()
		ar, sales := mem.addAccount(true), mem.addAccount(false)
		w := NewWriter(ParseDuplicateMode("retry-safe"))
		first, err := w.Post(ctx, mem, invoiceInput(tenant, ar, sales, "invoice-9", "500"))
		require.NoError(t, err)

		again, err := w.Post(ctx, mem, invoiceInput(tenant, ar, sales, "invoice-9", "500"))
		require.NoError(t, err)
		require.True(t, again.Duplicate)
		require.Equal(t, first.Transaction.ID, again.Transaction.ID)
		require.Len(t, mem.entries, 2)
	})

	t.Run("same key other tenant", func(t *testing.T) {
		mem := newMemoryLedger()
		ar, sales := mem.addAccount(true), mem.addAccount(false)
		w := NewWriter(DuplicateStrict)
		_, err := w.Post(ctx, mem, invoiceInput(tenant, ar, sales, "invoice-9", "500"))
		require.NoError(t, err)
		_, err = w.Post(ctx, mem, invoiceInput(uuid.New(), ar, sales, "invoice-9", "500"))
		require.NoError(t, err)
	})
}

func TestWriterRejectsInactiveAccount(t *testing.T) {
	ctx := context.Background()
	mem := newMemoryLedger()
	ar, sales := mem.addAccount(true), mem.addAccount(false)
	mem.accounts[sales].active = false

	_, err := NewWriter(DuplicateStrict).Post(ctx, mem, invoiceInput(uuid.New(), ar, sales, "invoice-2", "10"))
	require.ErrorIs(t, err, core.ErrPrecondition)
	require.Contains(t, err.Error(), "line 2")
	require.Empty(t, mem.txns)
}

func TestWriterReverseMirrors(t *testing.T) {
	ctx := context.Background()
	mem := newMemoryLedger()
	ar, sales := mem.addAccount(true), mem.addAccount(false)
	tenant := uuid.New()
	w := NewWriter(DuplicateStrict)

	res, err := w.Post(ctx, mem, invoiceInput(tenant, ar, sales, "invoice-3", "120.50"))
	require.NoError(t, err)

	original, reversal, err := w.Reverse(ctx, mem, ReverseInput{TenantID: tenant, TransactionID: res.Transaction.ID, Reason: "entered twice", PostedBy: "u-2"})
	require.NoError(t, err)
	require.Equal(t, StatusReversed, original.Status)
	require.Equal(t, reversal.ID, *original.ReversedByTransactionID)
	require.Equal(t, res.Transaction.ID, *reversal.ReversesTransactionID)
	require.Equal(t, ReversalKey(res.Transaction.ID), reversal.IdempotencyKey)
	require.Equal(t, "Reversal of Invoice INV-1: entered twice", reversal.Description)

	for i, e := range reversal.Entries {
		orig := res.Transaction.Entries[i]
		require.Equal(t, orig.AccountID, e.AccountID)
		require.True(t, orig.Debit.Equal(e.Credit))
		require.True(t, orig.Credit.Equal(e.Debit))
	}
	require.True(t, mem.accounts[ar].bal.IsZero())
	require.True(t, mem.accounts[sales].bal.IsZero())

	_, _, err = w.Reverse(ctx, mem, ReverseInput{TenantID: tenant, TransactionID: res.Transaction.ID})
	require.ErrorIs(t, err, acctshared.ErrAlreadyReversed)

	_, _, err = w.Reverse(ctx, mem, ReverseInput{TenantID: tenant, TransactionID: reversal.ID})
	require.ErrorIs(t, err, acctshared.ErrReverseReversal)
	require.True(t, errors.Is(err, core.ErrPrecondition))
}
