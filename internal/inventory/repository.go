package inventory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ranchbook/ranchbook/internal/platform/db"
)

const (
	itemColumns     = `id, tenant_id, sku, name, unit, total_quantity, last_purchase_price, reorder_point, asset_account_id, expense_account_id, created_at, updated_at`
	balanceColumns  = `tenant_id, site_id, item_id, quantity, avg_cost, reorder_point, is_below_reorder_point, updated_at`
	movementColumns = `id, tenant_id, site_id, item_id, movement_type, quantity, unit_cost, total_cost, source_type, source_id, reverses_movement_id, note, created_at`
)

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	q db.Querier
}

// NewTxRepository binds mover operations to an open transaction.
func NewTxRepository(q db.Querier) TxRepository {
	return &txRepo{q: q}
}

func (r *txRepo) GetItemForUpdate(ctx context.Context, tenantID, itemID uuid.UUID) (Item, error) {
	return scanItem(r.q.QueryRow(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE tenant_id=$1 AND id=$2 FOR UPDATE`, tenantID, itemID))
}

func (r *txRepo) GetSiteBalanceForUpdate(ctx context.Context, tenantID, siteID, itemID uuid.UUID) (SiteBalance, error) {
	b, err := scanBalance(r.q.QueryRow(ctx, `SELECT `+balanceColumns+` FROM site_inventory WHERE tenant_id=$1 AND site_id=$2 AND item_id=$3 FOR UPDATE`, tenantID, siteID, itemID))
	if errors.Is(err, pgx.ErrNoRows) {
		return SiteBalance{}, ErrBalanceNotFound
	}
	return b, err
}

func (r *txRepo) UpsertSiteBalance(ctx context.Context, b SiteBalance) error {
	_, err := r.q.Exec(ctx, `INSERT INTO site_inventory (tenant_id, site_id, item_id, quantity, avg_cost, reorder_point, is_below_reorder_point, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (tenant_id, site_id, item_id) DO UPDATE
SET quantity=EXCLUDED.quantity, avg_cost=EXCLUDED.avg_cost, reorder_point=EXCLUDED.reorder_point,
    is_below_reorder_point=EXCLUDED.is_below_reorder_point, updated_at=EXCLUDED.updated_at`,
		b.TenantID, b.SiteID, b.ItemID, b.Quantity, b.AvgCost, b.ReorderPoint, b.IsBelowReorderPoint, b.UpdatedAt)
	return err
}

func (r *txRepo) UpdateItemTotals(ctx context.Context, item Item) error {
	_, err := r.q.Exec(ctx, `UPDATE inventory_items SET total_quantity=$3, last_purchase_price=$4, updated_at=$5 WHERE tenant_id=$1 AND id=$2`,
		item.TenantID, item.ID, item.TotalQuantity, item.LastPurchasePrice, item.UpdatedAt)
	return err
}

func (r *txRepo) InsertMovement(ctx context.Context, m Movement) error {
	_, err := r.q.Exec(ctx, `INSERT INTO inventory_movements (`+movementColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		m.ID, m.TenantID, m.SiteID, m.ItemID, m.Type, m.Quantity, m.UnitCost, m.TotalCost, m.SourceType, m.SourceID, m.ReversesMovementID, m.Note, m.CreatedAt)
	return err
}

func (r *txRepo) GetMovement(ctx context.Context, tenantID, id uuid.UUID) (Movement, error) {
	m, err := scanMovement(r.q.QueryRow(ctx, `SELECT `+movementColumns+` FROM inventory_movements WHERE tenant_id=$1 AND id=$2`, tenantID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Movement{}, ErrMovementNotFound
	}
	return m, err
}

func (r *txRepo) IsMovementReversed(ctx context.Context, tenantID, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM inventory_movements WHERE tenant_id=$1 AND reverses_movement_id=$2)`, tenantID, id).Scan(&exists)
	return exists, err
}

func (r *txRepo) ListMovementsBySource(ctx context.Context, tenantID, sourceID uuid.UUID) ([]Movement, error) {
	rows, err := r.q.Query(ctx, `SELECT `+movementColumns+` FROM inventory_movements WHERE tenant_id=$1 AND source_id=$2 ORDER BY created_at, id`, tenantID, sourceID)
	if err != nil {
		return nil, err
	}
	return collectMovements(rows)
}

// InsertItem stores a catalog item.
func (r *Repository) InsertItem(ctx context.Context, item Item) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO inventory_items (`+itemColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		item.ID, item.TenantID, item.SKU, item.Name, item.Unit, item.TotalQuantity, item.LastPurchasePrice, item.ReorderPoint,
		item.AssetAccountID, item.ExpenseAccountID, item.CreatedAt, item.UpdatedAt)
	return err
}

// GetItem loads a catalog item.
func (r *Repository) GetItem(ctx context.Context, tenantID, id uuid.UUID) (Item, error) {
	return scanItem(r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE tenant_id=$1 AND id=$2`, tenantID, id))
}

// ListItems returns the tenant catalog ordered by name.
func (r *Repository) ListItems(ctx context.Context, tenantID uuid.UUID) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE tenant_id=$1 ORDER BY name, id`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListSiteBalances returns the per-site positions of an item.
func (r *Repository) ListSiteBalances(ctx context.Context, tenantID, itemID uuid.UUID) ([]SiteBalance, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+balanceColumns+` FROM site_inventory WHERE tenant_id=$1 AND item_id=$2 ORDER BY site_id`, tenantID, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SiteBalance
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ListMovements returns one page of an item's movements, newest first, and the total count.
func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM inventory_movements WHERE tenant_id=$1 AND item_id=$2 AND ($3::uuid IS NULL OR site_id=$3)`,
		filter.TenantID, filter.ItemID, filter.SiteID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+movementColumns+` FROM inventory_movements
WHERE tenant_id=$1 AND item_id=$2 AND ($3::uuid IS NULL OR site_id=$3)
ORDER BY created_at DESC, id LIMIT $4 OFFSET $5`,
		filter.TenantID, filter.ItemID, filter.SiteID, filter.PerPage, (filter.Page-1)*filter.PerPage)
	if err != nil {
		return nil, 0, err
	}
	movements, err := collectMovements(rows)
	return movements, total, err
}

// SetReorderPoint stores a site override and recomputes the flag in one statement.
func (r *Repository) SetReorderPoint(ctx context.Context, tenantID, siteID, itemID uuid.UUID, point *decimal.Decimal) (SiteBalance, error) {
	return scanBalance(r.pool.QueryRow(ctx, `INSERT INTO site_inventory (tenant_id, site_id, item_id, reorder_point, is_below_reorder_point, updated_at)
VALUES ($1,$2,$3,$4, COALESCE($4 > 0, FALSE), NOW())
ON CONFLICT (tenant_id, site_id, item_id) DO UPDATE
SET reorder_point=EXCLUDED.reorder_point,
    is_below_reorder_point=COALESCE(EXCLUDED.reorder_point > 0 AND site_inventory.quantity <= EXCLUDED.reorder_point, FALSE),
    updated_at=NOW()
RETURNING `+balanceColumns, tenantID, siteID, itemID, point))
}

// Drifts compares site quantities with movement sums and item totals with site sums.
func (r *Repository) Drifts(ctx context.Context) ([]Drift, error) {
	rows, err := r.pool.Query(ctx, `SELECT s.tenant_id, s.item_id, s.site_id, s.quantity, COALESCE(SUM(m.quantity), 0)
FROM site_inventory s
LEFT JOIN inventory_movements m ON m.tenant_id=s.tenant_id AND m.site_id=s.site_id AND m.item_id=s.item_id
GROUP BY s.tenant_id, s.item_id, s.site_id, s.quantity
HAVING s.quantity <> COALESCE(SUM(m.quantity), 0)
UNION ALL
SELECT i.tenant_id, i.id, NULL::uuid, i.total_quantity, COALESCE(SUM(s.quantity), 0)
FROM inventory_items i
LEFT JOIN site_inventory s ON s.tenant_id=i.tenant_id AND s.item_id=i.id
GROUP BY i.tenant_id, i.id, i.total_quantity
HAVING i.total_quantity <> COALESCE(SUM(s.quantity), 0)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var drifts []Drift
	for rows.Next() {
		var d Drift
		if err := rows.Scan(&d.TenantID, &d.ItemID, &d.SiteID, &d.Stored, &d.Computed); err != nil {
			return nil, err
		}
		drifts = append(drifts, d)
	}
	return drifts, rows.Err()
}

func scanItem(row pgx.Row) (Item, error) {
	var item Item
	err := row.Scan(&item.ID, &item.TenantID, &item.SKU, &item.Name, &item.Unit, &item.TotalQuantity, &item.LastPurchasePrice,
		&item.ReorderPoint, &item.AssetAccountID, &item.ExpenseAccountID, &item.CreatedAt, &item.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrItemNotFound
	}
	return item, err
}

func scanBalance(row pgx.Row) (SiteBalance, error) {
	var b SiteBalance
	err := row.Scan(&b.TenantID, &b.SiteID, &b.ItemID, &b.Quantity, &b.AvgCost, &b.ReorderPoint, &b.IsBelowReorderPoint, &b.UpdatedAt)
	return b, err
}

func scanMovement(row pgx.Row) (Movement, error) {
	var m Movement
	err := row.Scan(&m.ID, &m.TenantID, &m.SiteID, &m.ItemID, &m.Type, &m.Quantity, &m.UnitCost, &m.TotalCost, &m.SourceType,
		&m.SourceID, &m.ReversesMovementID, &m.Note, &m.CreatedAt)
	return m, err
}

func collectMovements(rows pgx.Rows) ([]Movement, error) {
	defer rows.Close()
	var out []Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
