package accounts

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	acctshared "github.com/ranchbook/ranchbook/internal/accounting/shared"
	core "github.com/ranchbook/ranchbook/internal/shared"
)

type memoryStore struct {
	accounts   map[uuid.UUID]Account
	referenced map[uuid.UUID]bool
	balances   map[uuid.UUID]Balance
	balanceHit int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{accounts: map[uuid.UUID]Account{}, referenced: map[uuid.UUID]bool{}, balances: map[uuid.UUID]Balance{}}
}

func (m *memoryStore) List(_ context.Context, tenantID uuid.UUID) ([]Account, error) {
	var out []Account
	for _, acc := range m.accounts {
		if acc.TenantID == tenantID {
			out = append(out, acc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *memoryStore) ListActive(ctx context.Context, tenantID uuid.UUID) ([]Account, error) {
	all, _ := m.List(ctx, tenantID)
	var out []Account
	for _, acc := range all {
		if acc.IsActive {
			out = append(out, acc)
		}
	}
	return out, nil
}

func (m *memoryStore) Get(_ context.Context, tenantID, id uuid.UUID) (Account, error) {
	acc, ok := m.accounts[id]
	if !ok || acc.TenantID != tenantID {
		return Account{}, acctshared.ErrAccountNotFound
	}
	return acc, nil
}

func (m *memoryStore) Insert(_ context.Context, acc Account) error {
	for _, existing := range m.accounts {
		if existing.TenantID == acc.TenantID && existing.Code == acc.Code {
			return ErrDuplicateCode
		}
	}
	m.accounts[acc.ID] = acc
	return nil
}

func (m *memoryStore) Designate(_ context.Context, tenantID uuid.UUID, kind ControlKind, id uuid.UUID) error {
	for key, acc := range m.accounts {
		if acc.TenantID != tenantID {
			continue
		}
		if acc.DefaultFor == kind {
			acc.DefaultFor = ""
		}
		if acc.ID == id {
			acc.DefaultFor = kind
		}
		m.accounts[key] = acc
	}
	return nil
}

func (m *memoryStore) Delete(_ context.Context, _, id uuid.UUID) error {
	delete(m.accounts, id)
	return nil
}

func (m *memoryStore) IsReferenced(_ context.Context, _, id uuid.UUID) (bool, error) {
	return m.referenced[id], nil
}

func (m *memoryStore) Balance(_ context.Context, _, id uuid.UUID) (Balance, error) {
	m.balanceHit++
	bal, ok := m.balances[id]
	if !ok {
		return Balance{}, acctshared.ErrAccountNotFound
	}
	return bal, nil
}

func TestCreateDerivesNormalBalanceAndRejectsDuplicates(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, nil, nil, nil)
	ctx := context.Background()
	tenant := uuid.New()

	acc, err := svc.Create(ctx, CreateInput{TenantID: tenant, Code: "4000", Name: "Sales", Type: AccountTypeIncome, Subtype: " sales "})
	require.NoError(t, err)
	require.Equal(t, NormalCredit, acc.NormalBalance)
	require.Equal(t, "SALES", acc.Subtype)
	require.True(t, acc.IsActive)

	_, err = svc.Create(ctx, CreateInput{TenantID: tenant, Code: "4000", Name: "Other", Type: AccountTypeIncome})
	require.ErrorIs(t, err, core.ErrValidation)

	_, err = svc.Create(ctx, CreateInput{TenantID: tenant, Code: "9000", Name: "Bad", Type: "REVENUE"})
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "type")
}

func TestSeedDefaultsResolvesEveryControlKind(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, NewResolver(ResolveStrict), nil, nil)
	ctx := context.Background()
	tenant := uuid.New()

	created, err := svc.SeedDefaults(ctx, tenant)
	require.NoError(t, err)
	require.Len(t, created, len(DefaultChart()))

	resolved, problems, err := svc.ControlAccounts(ctx, tenant)
	require.NoError(t, err)
	require.Empty(t, problems)
	require.Equal(t, "1010", resolved[ControlCash].Code)
	require.Equal(t, "1100", resolved[ControlAR].Code)
	require.Equal(t, "2000", resolved[ControlAP].Code)
	require.Equal(t, "4000", resolved[ControlDefaultIncome].Code)
	require.Equal(t, "6900", resolved[ControlDefaultExpense].Code)
	require.Equal(t, "6300", resolved[ControlLaborExpense].Code)

	again, err := svc.SeedDefaults(ctx, tenant)
	require.NoError(t, err)
	require.Empty(t, again)
}

func TestDesignateMovesDefault(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, nil, nil, nil)
	ctx := context.Background()
	tenant := uuid.New()
	_, err := svc.SeedDefaults(ctx, tenant)
	require.NoError(t, err)

	all, _ := store.List(ctx, tenant)
	var cashOnHand Account
	for _, acc := range all {
		if acc.Code == "1000" {
			cashOnHand = acc
		}
	}
	_, err = svc.Designate(ctx, tenant, ControlCash, cashOnHand.ID)
	require.NoError(t, err)

	acc, err := svc.FindControlAccount(ctx, tenant, ControlCash)
	require.NoError(t, err)
	require.Equal(t, "1000", acc.Code)

	_, err = svc.Designate(ctx, tenant, "PETTY", cashOnHand.ID)
	require.ErrorIs(t, err, core.ErrValidation)
}

func TestDeleteGuards(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, nil, nil, nil)
	ctx := context.Background()
	tenant := uuid.New()

	seeded, err := svc.SeedDefaults(ctx, tenant)
	require.NoError(t, err)
	require.ErrorIs(t, svc.Delete(ctx, tenant, seeded[0].ID), ErrSystemAccount)

	custom, err := svc.Create(ctx, CreateInput{TenantID: tenant, Code: "6500", Name: "Fencing", Type: AccountTypeExpense})
	require.NoError(t, err)
	store.referenced[custom.ID] = true
	require.ErrorIs(t, svc.Delete(ctx, tenant, custom.ID), ErrAccountInUse)

	store.referenced[custom.ID] = false
	require.NoError(t, svc.Delete(ctx, tenant, custom.ID))
}

func TestBalanceIsCachedUntilBump(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := newMemoryStore()
	svc := NewService(store, nil, NewBalanceCache(client, time.Minute), nil)
	ctx := context.Background()
	tenant, id := uuid.New(), uuid.New()
	store.balances[id] = Balance{AccountID: id, Code: "1100", Debits: decimal.NewFromInt(500), Balance: decimal.NewFromInt(500)}

	first, err := svc.Balance(ctx, tenant, id)
	require.NoError(t, err)
	require.True(t, first.Balance.Equal(decimal.NewFromInt(500)))

	store.balances[id] = Balance{AccountID: id, Code: "1100", Debits: decimal.NewFromInt(800), Balance: decimal.NewFromInt(800)}
	cached, err := svc.Balance(ctx, tenant, id)
	require.NoError(t, err)
	require.True(t, cached.Balance.Equal(decimal.NewFromInt(500)))
	require.Equal(t, 1, store.balanceHit)

	require.NoError(t, svc.Invalidate(ctx))
	fresh, err := svc.Balance(ctx, tenant, id)
	require.NoError(t, err)
	require.True(t, fresh.Balance.Equal(decimal.NewFromInt(800)))
	require.Equal(t, 2, store.balanceHit)
}

func TestBalanceDeltaFollowsNormalSide(t *testing.T) {
	asset := Account{NormalBalance: NormalDebit}
	liability := Account{NormalBalance: NormalCredit}
	hundred := decimal.NewFromInt(100)
	require.True(t, asset.BalanceDelta(hundred, decimal.Zero).Equal(hundred))
	require.True(t, liability.BalanceDelta(hundred, decimal.Zero).Equal(hundred.Neg()))
}
