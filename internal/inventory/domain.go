package inventory

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ranchbook/ranchbook/internal/shared"
)

// MovementType enumerates supported inventory movements.
type MovementType string

const (
	// MovementIn represents a receipt.
	MovementIn MovementType = "in"
	// MovementOut represents consumption or sale.
	MovementOut MovementType = "out"
	// MovementAdjustment represents corrections and reversals.
	MovementAdjustment MovementType = "adjustment"
)

// Valid reports whether t is a known movement type.
func (t MovementType) Valid() bool {
	switch t {
	case MovementIn, MovementOut, MovementAdjustment:
		return true
	}
	return false
}

// Item is a tenant-wide catalog entry.
type Item struct {
	ID                uuid.UUID        `json:"id"`
	TenantID          uuid.UUID        `json:"tenantId"`
	SKU               string           `json:"sku"`
	Name              string           `json:"name"`
	Unit              string           `json:"unit"`
	TotalQuantity     decimal.Decimal  `json:"totalQuantity"`
	LastPurchasePrice decimal.Decimal  `json:"lastPurchasePrice"`
	ReorderPoint      *decimal.Decimal `json:"reorderPoint,omitempty"`
	AssetAccountID    *uuid.UUID       `json:"assetAccountId,omitempty"`
	ExpenseAccountID  *uuid.UUID       `json:"expenseAccountId,omitempty"`
	CreatedAt         time.Time        `json:"createdAt"`
	UpdatedAt         time.Time        `json:"updatedAt"`
}

// SiteBalance is the on-hand position of one item at one site.
type SiteBalance struct {
	TenantID            uuid.UUID        `json:"tenantId"`
	SiteID              uuid.UUID        `json:"siteId"`
	ItemID              uuid.UUID        `json:"itemId"`
	Quantity            decimal.Decimal  `json:"quantity"`
	AvgCost             decimal.Decimal  `json:"avgCost"`
	ReorderPoint        *decimal.Decimal `json:"reorderPoint,omitempty"`
	IsBelowReorderPoint bool             `json:"isBelowReorderPoint"`
	UpdatedAt           time.Time        `json:"updatedAt"`
}

// Movement is an immutable audit record. Quantity is signed.
type Movement struct {
	ID                 uuid.UUID       `json:"id"`
	TenantID           uuid.UUID       `json:"tenantId"`
	SiteID             uuid.UUID       `json:"siteId"`
	ItemID             uuid.UUID       `json:"itemId"`
	Type               MovementType    `json:"movementType"`
	Quantity           decimal.Decimal `json:"quantity"`
	UnitCost           decimal.Decimal `json:"unitCost"`
	TotalCost          decimal.Decimal `json:"totalCost"`
	SourceType         string          `json:"sourceType,omitempty"`
	SourceID           *uuid.UUID      `json:"sourceId,omitempty"`
	ReversesMovementID *uuid.UUID      `json:"reversesMovementId,omitempty"`
	Note               string          `json:"note,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
}

// MovementInput describes one quantity change to apply.
type MovementInput struct {
	TenantID      uuid.UUID
	SiteID        uuid.UUID
	ItemID        uuid.UUID
	QuantityDelta decimal.Decimal
	Type          MovementType
	// UnitCost prices receipts; nil means the current average cost.
	UnitCost           *decimal.Decimal
	SourceType         string
	SourceID           *uuid.UUID
	ReversesMovementID *uuid.UUID
	Note               string
}

// Validate checks the movement shape.
func (in MovementInput) Validate() error {
	fields := make(map[string]string)
	if in.TenantID == uuid.Nil {
		fields["tenantId"] = "is required"
	}
	if in.SiteID == uuid.Nil {
		fields["siteId"] = "is required"
	}
	if in.ItemID == uuid.Nil {
		fields["itemId"] = "is required"
	}
	if !in.Type.Valid() {
		fields["movementType"] = "must be in, out or adjustment"
	}
	switch {
	case in.QuantityDelta.IsZero():
		fields["quantity"] = "must not be zero"
	case in.Type == MovementIn && in.QuantityDelta.IsNegative():
		fields["quantity"] = "receipts must be positive"
	case in.Type == MovementOut && in.QuantityDelta.IsPositive():
		fields["quantity"] = "consumption must be negative"
	}
	if in.UnitCost != nil && in.UnitCost.IsNegative() {
		fields["unitCost"] = "cannot be negative"
	}
	if len(fields) > 0 {
		return shared.NewValidationError("invalid inventory movement", fields)
	}
	return nil
}

// Result reports the state after a movement.
type Result struct {
	Movement Movement    `json:"movement"`
	Balance  SiteBalance `json:"balance"`
	Item     Item        `json:"item"`
}

// Drift reports a stored quantity disagreeing with its movement history.
type Drift struct {
	TenantID uuid.UUID       `json:"tenantId"`
	ItemID   uuid.UUID       `json:"itemId"`
	SiteID   *uuid.UUID      `json:"siteId,omitempty"`
	Stored   decimal.Decimal `json:"stored"`
	Computed decimal.Decimal `json:"computed"`
}

func (d Drift) String() string {
	scope := "item total"
	if d.SiteID != nil {
		scope = "site " + d.SiteID.String()
	}
	return fmt.Sprintf("%s %s: stored %s, computed %s", d.ItemID, scope, d.Stored, d.Computed)
}

var (
	// ErrItemNotFound indicates a missing catalog item.
	ErrItemNotFound = fmt.Errorf("inventory: item %w", shared.ErrNotFound)
	// ErrMovementNotFound indicates a missing movement.
	ErrMovementNotFound = fmt.Errorf("inventory: movement %w", shared.ErrNotFound)
	// ErrBalanceNotFound indicates no site row exists yet.
	ErrBalanceNotFound = fmt.Errorf("inventory: site balance %w", shared.ErrNotFound)
	// ErrNegativeStock is returned when the negative policy rejects a movement.
	ErrNegativeStock = fmt.Errorf("inventory: insufficient stock: %w", shared.ErrPrecondition)
	// ErrAlreadyReversed blocks reversing a movement twice.
	ErrAlreadyReversed = fmt.Errorf("inventory: movement already reversed: %w", shared.ErrPrecondition)
)
