package accounts

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	acctshared "github.com/ranchbook/ranchbook/internal/accounting/shared"
	"github.com/ranchbook/ranchbook/internal/platform/db"
)

const accountColumns = `id, tenant_id, code, name, type, subtype, normal_balance, default_for, is_active, is_system, current_balance, created_at, updated_at`

// Repository reads and writes the chart of accounts. It works on the pool or inside a posting transaction.
type Repository struct {
	q db.Querier
}

// NewRepository constructs Repository.
func NewRepository(q db.Querier) *Repository {
	return &Repository{q: q}
}

// List returns every account of the tenant ordered by code.
func (r *Repository) List(ctx context.Context, tenantID uuid.UUID) ([]Account, error) {
	return r.query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE tenant_id=$1 ORDER BY code`, tenantID)
}

// ListActive returns active accounts ordered by code.
func (r *Repository) ListActive(ctx context.Context, tenantID uuid.UUID) ([]Account, error) {
	return r.query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE tenant_id=$1 AND is_active ORDER BY code`, tenantID)
}

// Get loads one account.
func (r *Repository) Get(ctx context.Context, tenantID, id uuid.UUID) (Account, error) {
	accounts, err := r.query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE tenant_id=$1 AND id=$2`, tenantID, id)
	if err != nil {
		return Account{}, err
	}
	if len(accounts) == 0 {
		return Account{}, acctshared.ErrAccountNotFound
	}
	return accounts[0], nil
}

// Insert stores a new account.
func (r *Repository) Insert(ctx context.Context, acc Account) error {
	_, err := r.q.Exec(ctx, `INSERT INTO accounts (id, tenant_id, code, name, type, subtype, normal_balance, default_for, is_active, is_system, current_balance, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$12)`,
		acc.ID, acc.TenantID, acc.Code, acc.Name, acc.Type, acc.Subtype, acc.NormalBalance, nullKind(acc.DefaultFor), acc.IsActive, acc.IsSystem, acc.CurrentBalance, acc.CreatedAt)
	if db.IsUniqueViolation(err, "uq_accounts_tenant_code") {
		return ErrDuplicateCode
	}
	return err
}

// Designate makes id the only account designated for kind.
func (r *Repository) Designate(ctx context.Context, tenantID uuid.UUID, kind ControlKind, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `UPDATE accounts SET default_for = CASE WHEN id = $3 THEN $2 ELSE NULL END, updated_at = NOW()
WHERE tenant_id = $1 AND (default_for = $2 OR id = $3)`, tenantID, string(kind), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return acctshared.ErrAccountNotFound
	}
	return nil
}

// Delete removes an account row.
func (r *Repository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM accounts WHERE tenant_id=$1 AND id=$2`, tenantID, id)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return ErrAccountInUse
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return acctshared.ErrAccountNotFound
	}
	return nil
}

// IsReferenced reports whether postings or drafts use the account.
func (r *Repository) IsReferenced(ctx context.Context, tenantID, id uuid.UUID) (bool, error) {
	var used bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM ledger_entries WHERE tenant_id=$1 AND account_id=$2)
    OR EXISTS (SELECT 1 FROM journal_entry_lines l JOIN journal_entries j ON j.id = l.journal_entry_id WHERE j.tenant_id=$1 AND l.account_id=$2)`, tenantID, id).Scan(&used)
	return used, err
}

// Balance aggregates posted entries for an account.
func (r *Repository) Balance(ctx context.Context, tenantID, id uuid.UUID) (Balance, error) {
	acc, err := r.Get(ctx, tenantID, id)
	if err != nil {
		return Balance{}, err
	}
	bal := Balance{
		AccountID:      acc.ID,
		Code:           acc.Code,
		Name:           acc.Name,
		Type:           acc.Type,
		NormalBalance:  acc.NormalBalance,
		CurrentBalance: acc.CurrentBalance,
	}
	err = r.q.QueryRow(ctx, `SELECT COALESCE(SUM(debit),0), COALESCE(SUM(credit),0), COUNT(*) FROM ledger_entries WHERE tenant_id=$1 AND account_id=$2`, tenantID, id).
		Scan(&bal.Debits, &bal.Credits, &bal.EntryCount)
	if err != nil {
		return Balance{}, err
	}
	bal.Balance = acc.BalanceDelta(bal.Debits, bal.Credits)
	return bal, nil
}

func (r *Repository) query(ctx context.Context, sql string, args ...any) ([]Account, error) {
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acc)
	}
	return accounts, rows.Err()
}

func scanAccount(row pgx.Row) (Account, error) {
	var (
		a          Account
		defaultFor *string
	)
	err := row.Scan(&a.ID, &a.TenantID, &a.Code, &a.Name, &a.Type, &a.Subtype, &a.NormalBalance, &defaultFor, &a.IsActive, &a.IsSystem, &a.CurrentBalance, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, acctshared.ErrAccountNotFound
	}
	if defaultFor != nil {
		a.DefaultFor = ControlKind(*defaultFor)
	}
	return a, err
}

func nullKind(kind ControlKind) *string {
	if kind == "" {
		return nil
	}
	s := string(kind)
	return &s
}
