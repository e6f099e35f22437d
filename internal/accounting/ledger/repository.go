package ledger

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ranchbook/ranchbook/internal/accounting/reports"
	acctshared "github.com/ranchbook/ranchbook/internal/accounting/shared"
	"github.com/ranchbook/ranchbook/internal/platform/db"
)

const transactionColumns = `id, tenant_id, site_id, source_type, source_id, transaction_date, description, status, idempotency_key,
reverses_transaction_id, reversed_by_transaction_id, posted_by, created_at`

// Repository persists ledger transactions.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes fn within a posting transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return errors.New("ledger repository not initialised")
	}
	return db.WithPostingTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

type txRepository struct {
	q db.Querier
}

// NewTxRepository binds the writer operations to an open transaction.
func NewTxRepository(q db.Querier) TxRepository {
	return &txRepository{q: q}
}

func (r *txRepository) FindByIdempotencyKey(ctx context.Context, tenantID uuid.UUID, key string) (Transaction, error) {
	return loadTransaction(ctx, r.q, `SELECT `+transactionColumns+` FROM ledger_transactions WHERE tenant_id=$1 AND idempotency_key=$2`, tenantID, key)
}

func (r *txRepository) GetTransactionForUpdate(ctx context.Context, tenantID, id uuid.UUID) (Transaction, error) {
	return loadTransaction(ctx, r.q, `SELECT `+transactionColumns+` FROM ledger_transactions WHERE tenant_id=$1 AND id=$2 FOR UPDATE`, tenantID, id)
}

func (r *txRepository) InactiveOrUnknownAccounts(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.q.Query(ctx, `SELECT ids.id FROM unnest($2::uuid[]) AS ids(id)
WHERE NOT EXISTS (SELECT 1 FROM accounts a WHERE a.tenant_id=$1 AND a.id=ids.id AND a.is_active)`, tenantID, ids)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

func (r *txRepository) InsertTransaction(ctx context.Context, txn Transaction) error {
	tag, err := r.q.Exec(ctx, `INSERT INTO ledger_transactions (id, tenant_id, site_id, source_type, source_id, transaction_date, description, status,
idempotency_key, reverses_transaction_id, posted_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT ON CONSTRAINT uq_ledger_transactions_idempotency DO NOTHING`,
		txn.ID, txn.TenantID, txn.SiteID, txn.SourceType, txn.SourceID, txn.TransactionDate, txn.Description, txn.Status,
		txn.IdempotencyKey, txn.ReversesTransactionID, txn.PostedBy, txn.CreatedAt)
	if err != nil {
		if db.IsSerializationFailure(err) || db.IsUniqueViolation(err, "uq_ledger_transactions_idempotency") {
			return acctshared.ErrIdempotencyConflict
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return acctshared.ErrIdempotencyConflict
	}
	return nil
}

func (r *txRepository) InsertEntries(ctx context.Context, tenantID uuid.UUID, entries []Entry) error {
	for _, e := range entries {
		if _, err := r.q.Exec(ctx, `INSERT INTO ledger_entries (id, transaction_id, tenant_id, line_no, account_id, occurred_at, debit, credit, entity_type, entity_id, memo)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			e.ID, e.TransactionID, tenantID, e.LineNo, e.AccountID, e.OccurredAt, e.Debit, e.Credit, nullString(e.EntityType), e.EntityID, e.Memo); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) ApplyBalanceDeltas(ctx context.Context, tenantID uuid.UUID, netDebits map[uuid.UUID]decimal.Decimal) error {
	ids := make([]uuid.UUID, 0, len(netDebits))
	for id := range netDebits {
		ids = append(ids, id)
	}
	// fixed lock order across concurrent postings
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	for _, id := range ids {
		if _, err := r.q.Exec(ctx, `UPDATE accounts
SET current_balance = current_balance + CASE WHEN normal_balance = 'DEBIT' THEN $3::numeric ELSE -$3::numeric END, updated_at = NOW()
WHERE tenant_id=$1 AND id=$2`, tenantID, id, netDebits[id]); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) MarkReversed(ctx context.Context, tenantID, id, reversedBy uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `UPDATE ledger_transactions SET status='REVERSED', reversed_by_transaction_id=$3
WHERE tenant_id=$1 AND id=$2 AND status='POSTED'`, tenantID, id, reversedBy)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return acctshared.ErrAlreadyReversed
	}
	return nil
}

// GetTransaction loads a transaction with its entries.
func (r *Repository) GetTransaction(ctx context.Context, tenantID, id uuid.UUID) (Transaction, error) {
	return loadTransaction(ctx, r.pool, `SELECT `+transactionColumns+` FROM ledger_transactions WHERE tenant_id=$1 AND id=$2`, tenantID, id)
}

// AccountTotals aggregates posted entries per account up to asOf (inclusive) when given.
func (r *Repository) AccountTotals(ctx context.Context, tenantID uuid.UUID, asOf *time.Time) ([]reports.AccountBalance, error) {
	rows, err := r.pool.Query(ctx, `SELECT a.code, a.name, a.type, COALESCE(SUM(e.debit),0), COALESCE(SUM(e.credit),0)
FROM accounts a
LEFT JOIN ledger_entries e ON e.account_id = a.id AND e.tenant_id = a.tenant_id AND ($2::timestamptz IS NULL OR e.occurred_at <= $2)
WHERE a.tenant_id = $1
GROUP BY a.code, a.name, a.type
ORDER BY a.code`, tenantID, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []reports.AccountBalance
	for rows.Next() {
		var b reports.AccountBalance
		if err := rows.Scan(&b.Code, &b.Name, &b.Type, &b.Debit, &b.Credit); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// UnbalancedTransactions lists transactions whose entries break the double entry invariant.
func (r *Repository) UnbalancedTransactions(ctx context.Context, limit int) ([]IntegrityIssue, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT t.tenant_id, t.id, COALESCE(SUM(e.debit),0), COALESCE(SUM(e.credit),0), COUNT(e.id)
FROM ledger_transactions t
LEFT JOIN ledger_entries e ON e.transaction_id = t.id
GROUP BY t.tenant_id, t.id
HAVING COUNT(e.id) = 0 OR ABS(COALESCE(SUM(e.debit),0) - COALESCE(SUM(e.credit),0)) > 0.01
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var issues []IntegrityIssue
	for rows.Next() {
		var i IntegrityIssue
		if err := rows.Scan(&i.TenantID, &i.TransactionID, &i.Debit, &i.Credit, &i.Entries); err != nil {
			return nil, err
		}
		issues = append(issues, i)
	}
	return issues, rows.Err()
}

// BalanceDrifts compares cached running balances with their entry sums.
func (r *Repository) BalanceDrifts(ctx context.Context) ([]BalanceDrift, error) {
	rows, err := r.pool.Query(ctx, `SELECT a.tenant_id, a.id, a.code, a.current_balance,
    CASE WHEN a.normal_balance = 'DEBIT' THEN COALESCE(SUM(e.debit - e.credit),0) ELSE COALESCE(SUM(e.credit - e.debit),0) END AS computed
FROM accounts a
LEFT JOIN ledger_entries e ON e.account_id = a.id
GROUP BY a.tenant_id, a.id, a.code, a.current_balance, a.normal_balance
HAVING a.current_balance <> CASE WHEN a.normal_balance = 'DEBIT' THEN COALESCE(SUM(e.debit - e.credit),0) ELSE COALESCE(SUM(e.credit - e.debit),0) END`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var drifts []BalanceDrift
	for rows.Next() {
		var d BalanceDrift
		if err := rows.Scan(&d.TenantID, &d.AccountID, &d.Code, &d.Cached, &d.Computed); err != nil {
			return nil, err
		}
		drifts = append(drifts, d)
	}
	return drifts, rows.Err()
}

// RebuildBalance overwrites the cached running balance of one account with its computed value.
func (r *Repository) RebuildBalance(ctx context.Context, drift BalanceDrift) error {
	_, err := r.pool.Exec(ctx, `UPDATE accounts SET current_balance=$3, updated_at=NOW() WHERE tenant_id=$1 AND id=$2`, drift.TenantID, drift.AccountID, drift.Computed)
	return err
}

func loadTransaction(ctx context.Context, q db.Querier, sql string, args ...any) (Transaction, error) {
	var t Transaction
	err := q.QueryRow(ctx, sql, args...).Scan(&t.ID, &t.TenantID, &t.SiteID, &t.SourceType, &t.SourceID, &t.TransactionDate, &t.Description, &t.Status,
		&t.IdempotencyKey, &t.ReversesTransactionID, &t.ReversedByTransactionID, &t.PostedBy, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, acctshared.ErrTransactionNotFound
	}
	if err != nil {
		return Transaction{}, err
	}
	rows, err := q.Query(ctx, `SELECT id, transaction_id, line_no, account_id, occurred_at, debit, credit, COALESCE(entity_type,''), entity_id, memo
FROM ledger_entries WHERE transaction_id=$1 ORDER BY line_no`, t.ID)
	if err != nil {
		return Transaction{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.TransactionID, &e.LineNo, &e.AccountID, &e.OccurredAt, &e.Debit, &e.Credit, &e.EntityType, &e.EntityID, &e.Memo); err != nil {
			return Transaction{}, err
		}
		t.Entries = append(t.Entries, e)
	}
	return t, rows.Err()
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
