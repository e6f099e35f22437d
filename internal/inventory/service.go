package inventory

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ranchbook/ranchbook/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	InsertItem(ctx context.Context, item Item) error
	GetItem(ctx context.Context, tenantID, id uuid.UUID) (Item, error)
	ListItems(ctx context.Context, tenantID uuid.UUID) ([]Item, error)
	ListSiteBalances(ctx context.Context, tenantID, itemID uuid.UUID) ([]SiteBalance, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, int, error)
	SetReorderPoint(ctx context.Context, tenantID, siteID, itemID uuid.UUID, point *decimal.Decimal) (SiteBalance, error)
	Drifts(ctx context.Context) ([]Drift, error)
}

// CreateItemInput describes a new catalog item.
type CreateItemInput struct {
	TenantID         uuid.UUID        `json:"-"`
	SKU              string           `json:"sku" validate:"max=64"`
	Name             string           `json:"name" validate:"required,max=200"`
	Unit             string           `json:"unit" validate:"max=32"`
	ReorderPoint     *decimal.Decimal `json:"reorderPoint"`
	AssetAccountID   *uuid.UUID       `json:"assetAccountId"`
	ExpenseAccountID *uuid.UUID       `json:"expenseAccountId"`
}

// MovementFilter selects a page of movements.
type MovementFilter struct {
	TenantID uuid.UUID
	ItemID   uuid.UUID
	SiteID   *uuid.UUID
	Page     int
	PerPage  int
}

// MovementPage is one page of movements.
type MovementPage struct {
	Movements  []Movement        `json:"movements"`
	Pagination shared.Pagination `json:"pagination"`
}

// Service coordinates inventory catalog reads and maintenance.
type Service struct {
	repo   RepositoryPort
	mover  *Mover
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, mover *Mover, logger *slog.Logger) *Service {
	if mover == nil {
		mover = NewMover(MoverConfig{AllowNegative: true})
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, mover: mover, logger: logger, now: time.Now}
}

// Mover returns the mover shared with posting units.
func (s *Service) Mover() *Mover { return s.mover }

// CreateItem validates and stores a catalog item.
func (s *Service) CreateItem(ctx context.Context, in CreateItemInput) (Item, error) {
	if err := shared.Validate(in); err != nil {
		return Item{}, err
	}
	if in.ReorderPoint != nil && in.ReorderPoint.IsNegative() {
		return Item{}, shared.NewValidationError("invalid item", map[string]string{"reorderPoint": "cannot be negative"})
	}
	now := s.now().UTC()
	item := Item{
		ID:               uuid.New(),
		TenantID:         in.TenantID,
		SKU:              strings.TrimSpace(in.SKU),
		Name:             strings.TrimSpace(in.Name),
		Unit:             strings.TrimSpace(in.Unit),
		ReorderPoint:     in.ReorderPoint,
		AssetAccountID:   in.AssetAccountID,
		ExpenseAccountID: in.ExpenseAccountID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.InsertItem(ctx, item); err != nil {
		return Item{}, err
	}
	return item, nil
}

// ListItems returns the catalog.
func (s *Service) ListItems(ctx context.Context, tenantID uuid.UUID) ([]Item, error) {
	return s.repo.ListItems(ctx, tenantID)
}

// SiteBalances returns per-site positions for an item.
func (s *Service) SiteBalances(ctx context.Context, tenantID, itemID uuid.UUID) ([]SiteBalance, error) {
	if _, err := s.repo.GetItem(ctx, tenantID, itemID); err != nil {
		return nil, err
	}
	return s.repo.ListSiteBalances(ctx, tenantID, itemID)
}

// Movements returns a page of the item's movement history.
func (s *Service) Movements(ctx context.Context, filter MovementFilter) (MovementPage, error) {
	if _, err := s.repo.GetItem(ctx, filter.TenantID, filter.ItemID); err != nil {
		return MovementPage{}, err
	}
	p := shared.NewPagination(filter.Page, filter.PerPage, 0)
	filter.Page, filter.PerPage = p.Page, p.PerPage
	movements, total, err := s.repo.ListMovements(ctx, filter)
	if err != nil {
		return MovementPage{}, err
	}
	return MovementPage{Movements: movements, Pagination: shared.NewPagination(filter.Page, filter.PerPage, total)}, nil
}

// SetReorderPoint overrides the item reorder point at one site. Nil or zero disables the flag.
func (s *Service) SetReorderPoint(ctx context.Context, tenantID, siteID, itemID uuid.UUID, point *decimal.Decimal) (SiteBalance, error) {
	if point != nil && point.IsNegative() {
		return SiteBalance{}, shared.NewValidationError("invalid reorder point", map[string]string{"reorderPoint": "cannot be negative"})
	}
	if _, err := s.repo.GetItem(ctx, tenantID, itemID); err != nil {
		return SiteBalance{}, err
	}
	return s.repo.SetReorderPoint(ctx, tenantID, siteID, itemID, point)
}

// Reconcile reports quantities that disagree with their movement history.
func (s *Service) Reconcile(ctx context.Context) ([]Drift, error) {
	drifts, err := s.repo.Drifts(ctx)
	if err != nil {
		return nil, err
	}
	for _, d := range drifts {
		s.logger.Error("inventory drift",
			slog.String("tenant", d.TenantID.String()),
			slog.String("detail", d.String()))
	}
	return drifts, nil
}
