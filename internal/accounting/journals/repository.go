package journals

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ranchbook/ranchbook/internal/accounting/shared"
	"github.com/ranchbook/ranchbook/internal/platform/db"
)

const entryColumns = `id, tenant_id, site_id, entry_number, entry_date, memo, status, total_debits, total_credits, is_balanced,
ledger_transaction_id, reversal_transaction_id, reversal_reason, created_by, posted_at, posted_by, reversed_at, reversed_by, created_at, updated_at`

// TxRepository exposes journal operations available within a transaction.
type TxRepository interface {
	NextNumber(ctx context.Context, tenantID uuid.UUID) (int64, error)
	AccountRefs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]AccountRef, error)
	Insert(ctx context.Context, entry Entry) error
	// ReplaceDraft rewrites header and lines; it fails with ErrInvalidStatus unless the row is DRAFT.
	ReplaceDraft(ctx context.Context, entry Entry) error
	DeleteDraft(ctx context.Context, tenantID, id uuid.UUID) error
	GetForUpdate(ctx context.Context, tenantID, id uuid.UUID) (Entry, error)
	MarkPosted(ctx context.Context, entry Entry) error
	MarkReversed(ctx context.Context, entry Entry) error
}

// Repository encapsulates DB operations for journals.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx runs fn inside a transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithPostingTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

// Get loads an entry with its lines.
func (r *Repository) Get(ctx context.Context, tenantID, id uuid.UUID) (Entry, error) {
	return Load(ctx, r.pool, tenantID, id)
}

// Load reads an entry with its lines through any querier without locking it.
func Load(ctx context.Context, q db.Querier, tenantID, id uuid.UUID) (Entry, error) {
	return loadEntry(ctx, q, `SELECT `+entryColumns+` FROM journal_entries WHERE tenant_id=$1 AND id=$2`, tenantID, id)
}

// List returns headers newest number first.
func (r *Repository) List(ctx context.Context, tenantID uuid.UUID, status Status) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+entryColumns+` FROM journal_entries
WHERE tenant_id=$1 AND ($2 = '' OR status=$2) ORDER BY entry_number DESC`, tenantID, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type txRepository struct {
	q db.Querier
}

// NewTxRepository binds journal operations to an open transaction.
func NewTxRepository(q db.Querier) TxRepository {
	return &txRepository{q: q}
}

func (r *txRepository) NextNumber(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var n int64
	err := r.q.QueryRow(ctx, `INSERT INTO tenant_sequences (tenant_id, name, value) VALUES ($1, $2, 1)
ON CONFLICT (tenant_id, name) DO UPDATE SET value = tenant_sequences.value + 1
RETURNING value`, tenantID, numberSequence).Scan(&n)
	return n, err
}

func (r *txRepository) AccountRefs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]AccountRef, error) {
	rows, err := r.q.Query(ctx, `SELECT id, code, name, is_active FROM accounts WHERE tenant_id=$1 AND id = ANY($2)`, tenantID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	refs := make(map[uuid.UUID]AccountRef)
	for rows.Next() {
		var ref AccountRef
		if err := rows.Scan(&ref.ID, &ref.Code, &ref.Name, &ref.IsActive); err != nil {
			return nil, err
		}
		refs[ref.ID] = ref
	}
	return refs, rows.Err()
}

func (r *txRepository) Insert(ctx context.Context, e Entry) error {
	_, err := r.q.Exec(ctx, `INSERT INTO journal_entries (id, tenant_id, site_id, entry_number, entry_date, memo, status, total_debits, total_credits,
is_balanced, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		e.ID, e.TenantID, e.SiteID, e.EntryNumber, e.EntryDate, e.Memo, e.Status, e.TotalDebits, e.TotalCredits, e.IsBalanced,
		e.CreatedBy, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return err
	}
	return r.insertLines(ctx, e.ID, e.Lines)
}

func (r *txRepository) ReplaceDraft(ctx context.Context, e Entry) error {
	tag, err := r.q.Exec(ctx, `UPDATE journal_entries SET site_id=$3, entry_date=$4, memo=$5, total_debits=$6, total_credits=$7, is_balanced=$8, updated_at=$9
WHERE tenant_id=$1 AND id=$2 AND status='DRAFT'`,
		e.TenantID, e.ID, e.SiteID, e.EntryDate, e.Memo, e.TotalDebits, e.TotalCredits, e.IsBalanced, e.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrInvalidStatus
	}
	if _, err := r.q.Exec(ctx, `DELETE FROM journal_entry_lines WHERE journal_entry_id=$1`, e.ID); err != nil {
		return err
	}
	return r.insertLines(ctx, e.ID, e.Lines)
}

func (r *txRepository) insertLines(ctx context.Context, entryID uuid.UUID, lines []Line) error {
	for _, l := range lines {
		if _, err := r.q.Exec(ctx, `INSERT INTO journal_entry_lines (journal_entry_id, line_no, account_id, account_code, account_name, debit, credit, memo, entity_type, entity_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NULLIF($9,''),$10)`,
			entryID, l.LineNo, l.AccountID, l.AccountCode, l.AccountName, l.Debit, l.Credit, l.Memo, l.EntityType, l.EntityID); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) DeleteDraft(ctx context.Context, tenantID, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM journal_entries WHERE tenant_id=$1 AND id=$2 AND status='DRAFT'`, tenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrInvalidStatus
	}
	return nil
}

func (r *txRepository) GetForUpdate(ctx context.Context, tenantID, id uuid.UUID) (Entry, error) {
	return loadEntry(ctx, r.q, `SELECT `+entryColumns+` FROM journal_entries WHERE tenant_id=$1 AND id=$2 FOR UPDATE`, tenantID, id)
}

func (r *txRepository) MarkPosted(ctx context.Context, e Entry) error {
	_, err := r.q.Exec(ctx, `UPDATE journal_entries SET status='POSTED', ledger_transaction_id=$3, posted_at=$4, posted_by=$5, updated_at=$4
WHERE tenant_id=$1 AND id=$2`, e.TenantID, e.ID, e.LedgerTransactionID, e.PostedAt, e.PostedBy)
	return err
}

func (r *txRepository) MarkReversed(ctx context.Context, e Entry) error {
	_, err := r.q.Exec(ctx, `UPDATE journal_entries SET status='REVERSED', reversal_transaction_id=$3, reversal_reason=$4, reversed_at=$5, reversed_by=$6, updated_at=$5
WHERE tenant_id=$1 AND id=$2`, e.TenantID, e.ID, e.ReversalTransactionID, e.ReversalReason, e.ReversedAt, e.ReversedBy)
	return err
}

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.TenantID, &e.SiteID, &e.EntryNumber, &e.EntryDate, &e.Memo, &e.Status, &e.TotalDebits, &e.TotalCredits, &e.IsBalanced,
		&e.LedgerTransactionID, &e.ReversalTransactionID, &e.ReversalReason, &e.CreatedBy, &e.PostedAt, &e.PostedBy, &e.ReversedAt, &e.ReversedBy,
		&e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, shared.ErrJournalNotFound
	}
	return e, err
}

func loadEntry(ctx context.Context, q db.Querier, sql string, args ...any) (Entry, error) {
	e, err := scanEntry(q.QueryRow(ctx, sql, args...))
	if err != nil {
		return Entry{}, err
	}
	rows, err := q.Query(ctx, `SELECT line_no, account_id, account_code, account_name, debit, credit, memo, COALESCE(entity_type,''), entity_id
FROM journal_entry_lines WHERE journal_entry_id=$1 ORDER BY line_no`, e.ID)
	if err != nil {
		return Entry{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.LineNo, &l.AccountID, &l.AccountCode, &l.AccountName, &l.Debit, &l.Credit, &l.Memo, &l.EntityType, &l.EntityID); err != nil {
			return Entry{}, err
		}
		e.Lines = append(e.Lines, l)
	}
	return e, rows.Err()
}
