package accounts_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/memstore"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type fixture struct {
	store    *memstore.Store
	audit    *internalShared.MemoryAuditLog
	svc      *accounts.Service
	journals *journals.Service
	tenant   uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	audit := internalShared.NewMemoryAuditLog()
	return &fixture{
		store:    store,
		audit:    audit,
		svc:      accounts.NewService(store.Accounts(), audit, nil),
		journals: journals.NewService(store.Journals(), audit, nil),
		tenant:   uuid.New(),
	}
}

func (f *fixture) create(t *testing.T, code string, typ accounts.AccountType, parent *int64) accounts.Account {
	t.Helper()
	acc, err := f.svc.Create(context.Background(), f.tenant, 1, accounts.CreateInput{Code: code, Name: "Account " + code, Type: typ, ParentID: parent})
	require.NoError(t, err)
	return acc
}

func TestCreateDefaultsNormalBalance(t *testing.T) {
	f := newFixture(t)
	asset := f.create(t, "1000", accounts.AccountTypeAsset, nil)
	revenue := f.create(t, "4000", accounts.AccountTypeRevenue, nil)

	assert.Equal(t, accounts.NormalBalanceDebit, asset.NormalBalance)
	assert.Equal(t, accounts.NormalBalanceCredit, revenue.NormalBalance)
	assert.True(t, asset.IsActive)
	assert.Equal(t, []string{"account.create", "account.create"}, f.audit.Actions())
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, "1000", accounts.AccountTypeAsset, nil)

	_, err := f.svc.Create(ctx, f.tenant, 1, accounts.CreateInput{Name: "No code", Type: accounts.AccountTypeAsset})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = f.svc.Create(ctx, f.tenant, 1, accounts.CreateInput{Code: "1000", Name: "Dup", Type: accounts.AccountTypeAsset})
	require.ErrorIs(t, err, shared.ErrDuplicateCode)
	require.ErrorIs(t, err, shared.ErrValidation)
	require.ErrorIs(t, err, shared.ErrConflict)

	missing := int64(999)
	_, err = f.svc.Create(ctx, f.tenant, 1, accounts.CreateInput{Code: "1100", Name: "Orphan", Type: accounts.AccountTypeAsset, ParentID: &missing})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = f.svc.Create(ctx, f.tenant, 1, accounts.CreateInput{Code: "9000", Name: "Bad", Type: "GADGET"})
	require.ErrorIs(t, err, shared.ErrValidation)

	// same code in another tenant is fine
	_, err = f.svc.Create(ctx, uuid.New(), 1, accounts.CreateInput{Code: "1000", Name: "Other tenant", Type: accounts.AccountTypeAsset})
	require.NoError(t, err)
}

func TestCreateParentMustBelongToTenant(t *testing.T) {
	f := newFixture(t)
	foreign, err := f.svc.Create(context.Background(), uuid.New(), 1, accounts.CreateInput{Code: "1000", Name: "Foreign", Type: accounts.AccountTypeAsset})
	require.NoError(t, err)
	_, err = f.svc.Create(context.Background(), f.tenant, 1, accounts.CreateInput{Code: "1100", Name: "Child", Type: accounts.AccountTypeAsset, ParentID: &foreign.ID})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestUpdateRejectsCyclesAndImmutableFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	root := f.create(t, "1000", accounts.AccountTypeAsset, nil)
	child := f.create(t, "1100", accounts.AccountTypeAsset, &root.ID)
	grandchild := f.create(t, "1110", accounts.AccountTypeAsset, &child.ID)

	_, err := f.svc.Update(ctx, f.tenant, 1, root.ID, accounts.UpdateInput{ParentID: &root.ID})
	require.ErrorIs(t, err, shared.ErrValidation, "self parent")

	_, err = f.svc.Update(ctx, f.tenant, 1, root.ID, accounts.UpdateInput{ParentID: &grandchild.ID})
	require.ErrorIs(t, err, shared.ErrValidation, "ancestor cycle")

	liability := accounts.AccountTypeLiability
	_, err = f.svc.Update(ctx, f.tenant, 1, child.ID, accounts.UpdateInput{Type: &liability})
	require.ErrorIs(t, err, shared.ErrValidation)

	credit := accounts.NormalBalanceCredit
	_, err = f.svc.Update(ctx, f.tenant, 1, child.ID, accounts.UpdateInput{NormalBalance: &credit})
	require.ErrorIs(t, err, shared.ErrValidation)

	dup := "1000"
	_, err = f.svc.Update(ctx, f.tenant, 1, child.ID, accounts.UpdateInput{Code: &dup})
	require.ErrorIs(t, err, shared.ErrConflict)

	name := "Cash"
	same := "1100"
	updated, err := f.svc.Update(ctx, f.tenant, 1, child.ID, accounts.UpdateInput{Name: &name, Code: &same})
	require.NoError(t, err)
	assert.Equal(t, "Cash", updated.Name)
	assert.Equal(t, root.ID, *updated.ParentID)

	moved, err := f.svc.Update(ctx, f.tenant, 1, grandchild.ID, accounts.UpdateInput{ParentID: &root.ID})
	require.NoError(t, err)
	assert.Equal(t, root.ID, *moved.ParentID)

	detached, err := f.svc.Update(ctx, f.tenant, 1, grandchild.ID, accounts.UpdateInput{ClearParent: true})
	require.NoError(t, err)
	assert.Nil(t, detached.ParentID)

	_, err = f.svc.Update(ctx, f.tenant, 1, 424242, accounts.UpdateInput{Name: &name})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

type lockingRepo struct {
	accounts.Repository
	locks   int
	lockErr error
}

type lockingTx struct {
	accounts.TxRepository
	repo *lockingRepo
}

func (r *lockingRepo) WithTx(ctx context.Context, fn func(context.Context, accounts.TxRepository) error) error {
	return r.Repository.WithTx(ctx, func(ctx context.Context, tx accounts.TxRepository) error {
		return fn(ctx, &lockingTx{TxRepository: tx, repo: r})
	})
}

func (t *lockingTx) LockHierarchy(ctx context.Context, tenantID uuid.UUID) error {
	t.repo.locks++
	if t.repo.lockErr != nil {
		return t.repo.lockErr
	}
	return t.TxRepository.LockHierarchy(ctx, tenantID)
}

func TestUpdateSerialisesReparenting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	root := f.create(t, "1000", accounts.AccountTypeAsset, nil)
	child := f.create(t, "1100", accounts.AccountTypeAsset, nil)

	repo := &lockingRepo{Repository: f.store.Accounts()}
	svc := accounts.NewService(repo, f.audit, nil)

	name := "Petty cash"
	_, err := svc.Update(ctx, f.tenant, 1, child.ID, accounts.UpdateInput{Name: &name})
	require.NoError(t, err)
	assert.Zero(t, repo.locks, "rename must not take the hierarchy lock")

	moved, err := svc.Update(ctx, f.tenant, 1, child.ID, accounts.UpdateInput{ParentID: &root.ID})
	require.NoError(t, err)
	assert.Equal(t, root.ID, *moved.ParentID)
	assert.Equal(t, 1, repo.locks)

	repo.lockErr = errors.New("lock timeout")
	_, err = svc.Update(ctx, f.tenant, 1, root.ID, accounts.UpdateInput{ParentID: &child.ID})
	require.ErrorContains(t, err, "lock timeout")
	current, err := f.store.Accounts().GetAccount(ctx, f.tenant, root.ID)
	require.NoError(t, err)
	assert.Nil(t, current.ParentID)
}

func TestDeleteGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	parent := f.create(t, "1000", accounts.AccountTypeAsset, nil)
	child := f.create(t, "1100", accounts.AccountTypeAsset, &parent.ID)
	revenue := f.create(t, "4000", accounts.AccountTypeRevenue, nil)

	err := f.svc.Delete(ctx, f.tenant, 1, parent.ID)
	require.ErrorIs(t, err, shared.ErrConflict, "has children")

	_, err = f.journals.Create(ctx, f.tenant, 1, journals.Draft{
		Date: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		Lines: []journals.LineInput{
			{AccountID: child.ID, Debit: shared.MustAmount("10")},
			{AccountID: revenue.ID, Credit: shared.MustAmount("10")},
		},
	})
	require.NoError(t, err)
	err = f.svc.Delete(ctx, f.tenant, 1, child.ID)
	require.ErrorIs(t, err, shared.ErrConflict, "referenced by journal lines")

	seeded, err := f.svc.Create(ctx, f.tenant, 1, accounts.CreateInput{Code: "9999", Name: "System", Type: accounts.AccountTypeExpense, IsSystem: true})
	require.NoError(t, err)
	err = f.svc.Delete(ctx, f.tenant, 1, seeded.ID)
	require.ErrorIs(t, err, shared.ErrConflict, "system account")

	free := f.create(t, "5000", accounts.AccountTypeExpense, nil)
	require.NoError(t, f.svc.Delete(ctx, f.tenant, 1, free.ID))
	_, err = f.svc.Get(ctx, f.tenant, free.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)

	err = f.svc.Delete(ctx, f.tenant, 1, free.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestSeedDefaultsIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	// a pre-existing row is skipped, not an error
	f.create(t, "1100", accounts.AccountTypeAsset, nil)

	first, err := f.svc.SeedDefaults(ctx, f.tenant, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"1100"}, first.Skipped)
	assert.Len(t, first.Created, len(accounts.DefaultChart)-1)

	second, err := f.svc.SeedDefaults(ctx, f.tenant, 1)
	require.NoError(t, err)
	assert.Empty(t, second.Created)
	assert.Len(t, second.Skipped, len(accounts.DefaultChart))

	actions := f.audit.Actions()
	seeds := 0
	for _, a := range actions {
		if a == "account.seed" {
			seeds++
		}
	}
	assert.Equal(t, 1, seeds, "an empty re-seed records nothing")

	roots, err := f.svc.Hierarchy(ctx, f.tenant)
	require.NoError(t, err)
	codes := make([]string, 0, len(roots))
	for _, r := range roots {
		codes = append(codes, r.Code)
	}
	// 1100 existed as a root before seeding and keeps its place
	assert.Equal(t, []string{"1000", "1100", "2000", "3000", "4000", "5000"}, codes)

	all, err := f.svc.List(ctx, f.tenant)
	require.NoError(t, err)
	for _, a := range all {
		if a.Code != "1100" {
			assert.True(t, a.IsSystem, a.Code)
		}
	}
}

func TestBalanceOverRange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cash := f.create(t, "1000", accounts.AccountTypeAsset, nil)
	revenue := f.create(t, "4000", accounts.AccountTypeRevenue, nil)

	post := func(day int, amount string) {
		entry, err := f.journals.Create(ctx, f.tenant, 1, journals.Draft{
			Date: time.Date(2025, 2, day, 0, 0, 0, 0, time.UTC),
			Lines: []journals.LineInput{
				{AccountID: cash.ID, Debit: shared.MustAmount(amount)},
				{AccountID: revenue.ID, Credit: shared.MustAmount(amount)},
			},
		})
		require.NoError(t, err)
		_, err = f.journals.Post(ctx, f.tenant, 2, entry.ID)
		require.NoError(t, err)
	}
	post(1, "100")
	post(10, "250.50")
	post(20, "49.50")

	from := time.Date(2025, 2, 5, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC)
	bal, err := f.svc.Balance(ctx, f.tenant, revenue.ID, shared.DateRange{From: &from, To: &to})
	require.NoError(t, err)
	assert.Equal(t, shared.MustAmount("100"), bal.Opening)
	assert.Equal(t, shared.MustAmount("250.50"), bal.Credit)
	assert.Equal(t, shared.MustAmount("350.50"), bal.Closing)
	assert.Equal(t, shared.MustAmount("400"), bal.Current)
	assert.Equal(t, int64(1), bal.Entries)

	_, err = f.svc.Balance(ctx, f.tenant, revenue.ID, shared.DateRange{From: &to, To: &from})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestAuditFailureDoesNotRollBack(t *testing.T) {
	f := newFixture(t)
	f.audit.FailWith(errors.New("audit down"))
	acc := f.create(t, "1000", accounts.AccountTypeAsset, nil)
	got, err := f.svc.Get(context.Background(), f.tenant, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "1000", got.Code)
}
