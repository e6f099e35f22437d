package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	acctshared "github.com/ranchbook/ranchbook/internal/accounting/shared"
	core "github.com/ranchbook/ranchbook/internal/shared"
)

var (
	// ErrDuplicateCode indicates (tenant, code) is taken.
	ErrDuplicateCode = core.NewValidationError("account code already exists", map[string]string{"code": "already exists"})
	// ErrSystemAccount blocks deleting seeded accounts.
	ErrSystemAccount = fmt.Errorf("accounts: system accounts cannot be deleted: %w", core.ErrPrecondition)
	// ErrAccountInUse blocks deleting accounts referenced by postings.
	ErrAccountInUse = fmt.Errorf("accounts: account is referenced by postings; deactivate it instead: %w", core.ErrPrecondition)
	// ErrInactiveAccount blocks designating an inactive account.
	ErrInactiveAccount = fmt.Errorf("accounts: inactive accounts cannot be designated: %w", core.ErrPrecondition)
)

// Lister is the read side the resolver needs.
type Lister interface {
	ListActive(ctx context.Context, tenantID uuid.UUID) ([]Account, error)
}

// Store is the persistence port of the service.
type Store interface {
	Lister
	List(ctx context.Context, tenantID uuid.UUID) ([]Account, error)
	Get(ctx context.Context, tenantID, id uuid.UUID) (Account, error)
	Insert(ctx context.Context, acc Account) error
	Designate(ctx context.Context, tenantID uuid.UUID, kind ControlKind, id uuid.UUID) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	IsReferenced(ctx context.Context, tenantID, id uuid.UUID) (bool, error)
	Balance(ctx context.Context, tenantID, id uuid.UUID) (Balance, error)
}

// Directory resolves control accounts against one chart of accounts source.
type Directory struct {
	lister   Lister
	resolver *Resolver
}

// NewDirectory constructs a Directory.
func NewDirectory(lister Lister, resolver *Resolver) *Directory {
	if resolver == nil {
		resolver = NewResolver(ResolveFirstMatch)
	}
	return &Directory{lister: lister, resolver: resolver}
}

// FindControlAccount returns the control account for kind, or nil when none qualifies.
func (d *Directory) FindControlAccount(ctx context.Context, tenantID uuid.UUID, kind ControlKind) (*Account, error) {
	accounts, err := d.lister.ListActive(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return d.resolver.Resolve(accounts, kind)
}

// Service manages the chart of accounts.
type Service struct {
	store     Store
	directory *Directory
	cache     *BalanceCache
	logger    *slog.Logger
	group     singleflight.Group
	now       func() time.Time
}

// NewService constructs the account service.
func NewService(store Store, resolver *Resolver, cache *BalanceCache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, directory: NewDirectory(store, resolver), cache: cache, logger: logger, now: time.Now}
}

// Directory exposes the resolver bound to the service store.
func (s *Service) Directory() *Directory { return s.directory }

// List returns the tenant's chart.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID) ([]Account, error) {
	return s.store.List(ctx, tenantID)
}

// FindControlAccount resolves kind; nil means not configured.
func (s *Service) FindControlAccount(ctx context.Context, tenantID uuid.UUID, kind ControlKind) (*Account, error) {
	return s.directory.FindControlAccount(ctx, tenantID, kind)
}

// ControlAccounts resolves every kind. Unresolvable kinds map to nil; ambiguity is reported per kind.
func (s *Service) ControlAccounts(ctx context.Context, tenantID uuid.UUID) (map[ControlKind]*Account, map[ControlKind]string, error) {
	accounts, err := s.store.ListActive(ctx, tenantID)
	if err != nil {
		return nil, nil, err
	}
	resolved := make(map[ControlKind]*Account, len(ControlKinds))
	problems := make(map[ControlKind]string)
	for _, kind := range ControlKinds {
		acc, err := s.directory.resolver.Resolve(accounts, kind)
		if err != nil {
			var amb *AmbiguousError
			if errors.As(err, &amb) {
				problems[kind] = amb.Error()
				resolved[kind] = nil
				continue
			}
			return nil, nil, err
		}
		resolved[kind] = acc
		if acc == nil {
			problems[kind] = MissingMessage(kind)
		}
	}
	return resolved, problems, nil
}

// Create validates and stores a new account.
func (s *Service) Create(ctx context.Context, in CreateInput) (Account, error) {
	if err := core.Validate(in); err != nil {
		return Account{}, err
	}
	now := s.now().UTC()
	acc := Account{
		ID:             uuid.New(),
		TenantID:       in.TenantID,
		Code:           strings.TrimSpace(in.Code),
		Name:           strings.TrimSpace(in.Name),
		Type:           in.Type,
		Subtype:        strings.ToUpper(strings.TrimSpace(in.Subtype)),
		NormalBalance:  in.Type.NormalBalance(),
		IsActive:       true,
		DefaultFor:     in.DefaultFor,
		IsSystem:       in.IsSystem,
		CurrentBalance: decimal.Zero,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.Insert(ctx, acc); err != nil {
		return Account{}, err
	}
	return acc, nil
}

// Designate marks accountID as the tenant default for kind.
func (s *Service) Designate(ctx context.Context, tenantID uuid.UUID, kind ControlKind, accountID uuid.UUID) (Account, error) {
	if !kind.Valid() {
		return Account{}, core.NewValidationError("invalid control kind", map[string]string{"kind": "is invalid"})
	}
	acc, err := s.store.Get(ctx, tenantID, accountID)
	if err != nil {
		return Account{}, err
	}
	if !acc.IsActive {
		return Account{}, ErrInactiveAccount
	}
	if err := s.store.Designate(ctx, tenantID, kind, accountID); err != nil {
		return Account{}, err
	}
	acc.DefaultFor = kind
	return acc, nil
}

// Delete removes a user account that nothing references.
func (s *Service) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	acc, err := s.store.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if acc.IsSystem {
		return ErrSystemAccount
	}
	used, err := s.store.IsReferenced(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if used {
		return ErrAccountInUse
	}
	return s.store.Delete(ctx, tenantID, id)
}

// SeedDefaults creates the default farm chart, skipping codes that already exist.
func (s *Service) SeedDefaults(ctx context.Context, tenantID uuid.UUID) ([]Account, error) {
	existing, err := s.store.List(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	taken := make(map[string]bool, len(existing))
	designated := make(map[ControlKind]bool)
	for _, acc := range existing {
		taken[acc.Code] = true
		if acc.DefaultFor != "" {
			designated[acc.DefaultFor] = true
		}
	}
	var created []Account
	for _, seed := range DefaultChart() {
		if taken[seed.Code] {
			continue
		}
		if designated[seed.DefaultFor] {
			seed.DefaultFor = ""
		}
		seed.TenantID = tenantID
		seed.IsSystem = true
		acc, err := s.Create(ctx, seed)
		if err != nil {
			return created, err
		}
		created = append(created, acc)
	}
	s.logger.Info("chart of accounts seeded", slog.String("tenant", tenantID.String()), slog.Int("created", len(created)))
	return created, nil
}

// Balance returns the aggregated balance of an account through the cache.
func (s *Service) Balance(ctx context.Context, tenantID, id uuid.UUID) (Balance, error) {
	key, err := s.cache.BuildKey(ctx, "ledger", "balance", tenantID.String(), id.String())
	if err != nil {
		s.logger.Warn("balance cache key", slog.Any("error", err))
		return s.store.Balance(ctx, tenantID, id)
	}
	v, err, _ := s.group.Do(key, func() (any, error) {
		var bal Balance
		err := s.cache.FetchJSON(ctx, key, &bal, func(ctx context.Context) (any, error) {
			return s.store.Balance(ctx, tenantID, id)
		})
		return bal, err
	})
	if err != nil {
		if errors.Is(err, acctshared.ErrAccountNotFound) {
			return Balance{}, err
		}
		s.logger.Warn("balance cache fetch", slog.Any("error", err))
		return s.store.Balance(ctx, tenantID, id)
	}
	return v.(Balance), nil
}

// Invalidate drops cached balances after a posting commit.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}
