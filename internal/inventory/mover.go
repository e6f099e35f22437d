package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const costPrecision = 6

// TxRepository exposes the transactional operations the mover needs.
type TxRepository interface {
	GetItemForUpdate(ctx context.Context, tenantID, itemID uuid.UUID) (Item, error)
	// GetSiteBalanceForUpdate returns ErrBalanceNotFound when the site has never held the item.
	GetSiteBalanceForUpdate(ctx context.Context, tenantID, siteID, itemID uuid.UUID) (SiteBalance, error)
	UpsertSiteBalance(ctx context.Context, balance SiteBalance) error
	UpdateItemTotals(ctx context.Context, item Item) error
	InsertMovement(ctx context.Context, movement Movement) error
	GetMovement(ctx context.Context, tenantID, id uuid.UUID) (Movement, error)
	IsMovementReversed(ctx context.Context, tenantID, id uuid.UUID) (bool, error)
	ListMovementsBySource(ctx context.Context, tenantID, sourceID uuid.UUID) ([]Movement, error)
}

// MoverConfig groups policy settings.
type MoverConfig struct {
	AllowNegative bool
}

// Mover applies quantity changes with weighted average costing.
type Mover struct {
	allowNegative bool
	now           func() time.Time
}

// NewMover constructs a Mover.
func NewMover(cfg MoverConfig) *Mover {
	return &Mover{allowNegative: cfg.AllowNegative, now: time.Now}
}

// WithNow overrides the clock for testing.
func (m *Mover) WithNow(now func() time.Time) {
	if now != nil {
		m.now = now
	}
}

// AllowNegative reports the configured negative on-hand policy.
func (m *Mover) AllowNegative() bool { return m.allowNegative }

// Apply upserts the site balance, appends the movement and refreshes item totals.
func (m *Mover) Apply(ctx context.Context, tx TxRepository, in MovementInput) (Result, error) {
	if err := in.Validate(); err != nil {
		return Result{}, err
	}
	item, err := tx.GetItemForUpdate(ctx, in.TenantID, in.ItemID)
	if err != nil {
		return Result{}, err
	}
	balance, err := tx.GetSiteBalanceForUpdate(ctx, in.TenantID, in.SiteID, in.ItemID)
	if errors.Is(err, ErrBalanceNotFound) {
		balance = SiteBalance{TenantID: in.TenantID, SiteID: in.SiteID, ItemID: in.ItemID}
	} else if err != nil {
		return Result{}, err
	}

	delta := in.QuantityDelta
	newQty := balance.Quantity.Add(delta)
	if !m.allowNegative && newQty.IsNegative() {
		return Result{}, ErrNegativeStock
	}

	unitCost := balance.AvgCost
	switch {
	case in.UnitCost != nil:
		unitCost = *in.UnitCost
	case unitCost.IsZero():
		// stock that was never received at this site is costed at the last purchase price
		unitCost = item.LastPurchasePrice
	}
	newAvg := balance.AvgCost
	switch {
	case delta.IsPositive():
		newAvg = weightedAverage(balance.Quantity, balance.AvgCost, delta, unitCost)
	case in.ReversesMovementID != nil && in.UnitCost != nil && newQty.IsPositive():
		// backing out a receipt removes its value at the cost it came in at
		remaining := balance.Quantity.Mul(balance.AvgCost).Sub(delta.Abs().Mul(unitCost))
		if !remaining.IsNegative() {
			newAvg = remaining.DivRound(newQty, costPrecision)
		}
	}

	now := m.now().UTC()
	balance.Quantity = newQty
	balance.AvgCost = newAvg
	balance.IsBelowReorderPoint = belowReorderPoint(newQty, effectiveReorderPoint(balance, item))
	balance.UpdatedAt = now
	if err := tx.UpsertSiteBalance(ctx, balance); err != nil {
		return Result{}, err
	}

	movement := Movement{
		ID:                 uuid.New(),
		TenantID:           in.TenantID,
		SiteID:             in.SiteID,
		ItemID:             in.ItemID,
		Type:               in.Type,
		Quantity:           delta,
		UnitCost:           unitCost,
		TotalCost:          delta.Abs().Mul(unitCost).Round(2),
		SourceType:         in.SourceType,
		SourceID:           in.SourceID,
		ReversesMovementID: in.ReversesMovementID,
		Note:               in.Note,
		CreatedAt:          now,
	}
	if err := tx.InsertMovement(ctx, movement); err != nil {
		return Result{}, err
	}

	item.TotalQuantity = item.TotalQuantity.Add(delta)
	if in.Type == MovementIn && in.UnitCost != nil {
		item.LastPurchasePrice = unitCost
	}
	item.UpdatedAt = now
	if err := tx.UpdateItemTotals(ctx, item); err != nil {
		return Result{}, err
	}
	return Result{Movement: movement, Balance: balance, Item: item}, nil
}

// Reverse applies the opposite quantity of a movement as an adjustment. The original stays.
func (m *Mover) Reverse(ctx context.Context, tx TxRepository, tenantID, movementID uuid.UUID, note string) (Result, error) {
	original, err := tx.GetMovement(ctx, tenantID, movementID)
	if err != nil {
		return Result{}, err
	}
	reversed, err := tx.IsMovementReversed(ctx, tenantID, movementID)
	if err != nil {
		return Result{}, err
	}
	if reversed {
		return Result{}, ErrAlreadyReversed
	}
	cost := original.UnitCost
	if note == "" {
		note = "Reversal of movement " + original.ID.String()
	}
	return m.Apply(ctx, tx, MovementInput{
		TenantID:           original.TenantID,
		SiteID:             original.SiteID,
		ItemID:             original.ItemID,
		QuantityDelta:      original.Quantity.Neg(),
		Type:               MovementAdjustment,
		UnitCost:           &cost,
		SourceType:         original.SourceType,
		SourceID:           original.SourceID,
		ReversesMovementID: &original.ID,
		Note:               note,
	})
}

// ReverseSource reverses every movement a source document produced that is not itself a reversal.
func (m *Mover) ReverseSource(ctx context.Context, tx TxRepository, tenantID, sourceID uuid.UUID, note string) ([]Result, error) {
	movements, err := tx.ListMovementsBySource(ctx, tenantID, sourceID)
	if err != nil {
		return nil, err
	}
	var results []Result
	for _, mv := range movements {
		if mv.ReversesMovementID != nil {
			continue
		}
		res, err := m.Reverse(ctx, tx, tenantID, mv.ID, note)
		if errors.Is(err, ErrAlreadyReversed) {
			continue
		}
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

// weightedAverage blends the current position with a receipt. A receipt into an empty or
// negative position takes the receipt cost.
func weightedAverage(qty, avg, received, unitCost decimal.Decimal) decimal.Decimal {
	total := qty.Add(received)
	if !qty.IsPositive() || !total.IsPositive() {
		return unitCost
	}
	value := qty.Mul(avg).Add(received.Mul(unitCost))
	return value.DivRound(total, costPrecision)
}

func effectiveReorderPoint(balance SiteBalance, item Item) *decimal.Decimal {
	if balance.ReorderPoint != nil {
		return balance.ReorderPoint
	}
	return item.ReorderPoint
}

// belowReorderPoint is false when no positive reorder point is configured.
func belowReorderPoint(qty decimal.Decimal, point *decimal.Decimal) bool {
	if point == nil || !point.IsPositive() {
		return false
	}
	return qty.LessThanOrEqual(*point)
}
