package jobs

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/memstore"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type ledgerFixture struct {
	store  *memstore.Store
	tenant uuid.UUID
	cash   accounts.Account
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()
	audit := internalShared.NewMemoryAuditLog()
	registry := accounts.NewService(store.Accounts(), audit, nil)
	svc := journals.NewService(store.Journals(), audit, nil)

	tenant := uuid.New()
	cash, err := registry.Create(ctx, tenant, 1, accounts.CreateInput{Code: "1000", Name: "Cash", Type: accounts.AccountTypeAsset, NormalBalance: accounts.NormalBalanceDebit})
	require.NoError(t, err)
	revenue, err := registry.Create(ctx, tenant, 1, accounts.CreateInput{Code: "4000", Name: "Sales", Type: accounts.AccountTypeRevenue, NormalBalance: accounts.NormalBalanceCredit})
	require.NoError(t, err)

	for _, amount := range []string{"100", "250.50"} {
		entry, err := svc.Create(ctx, tenant, 1, journals.Draft{
			Date: time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC),
			Lines: []journals.LineInput{
				{AccountID: cash.ID, Debit: shared.MustAmount(amount)},
				{AccountID: revenue.ID, Credit: shared.MustAmount(amount)},
			},
		})
		require.NoError(t, err)
		_, err = svc.Post(ctx, tenant, 1, entry.ID)
		require.NoError(t, err)
	}
	return &ledgerFixture{store: store, tenant: tenant, cash: cash}
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestLedgerIntegrityCleanChains(t *testing.T) {
	f := newLedgerFixture(t)
	mr, rdb := newRedis(t)
	job := NewLedgerIntegrityJob(f.store.Chains(), rdb, nil, nil)

	report, err := job.VerifyTenant(context.Background(), f.tenant)
	require.NoError(t, err)
	assert.False(t, report.Skipped)
	assert.Equal(t, 2, report.Accounts)
	assert.Empty(t, report.Discrepancies)
	assert.False(t, mr.Exists(internalShared.LedgerIntegrityLockKey(f.tenant)), "lock must be released")
}

func TestLedgerIntegrityReportsCorruption(t *testing.T) {
	f := newLedgerFixture(t)
	rows := f.store.LedgerRows(f.tenant, f.cash.ID)
	require.Len(t, rows, 2)
	f.store.Corrupt(rows[1].ID, shared.MustAmount("999"))

	registry := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(registry)
	job := NewLedgerIntegrityJob(f.store.Chains(), nil, nil, metrics)

	report, err := job.VerifyTenant(context.Background(), f.tenant)
	require.NoError(t, err)
	require.Len(t, report.Discrepancies, 1)
	d := report.Discrepancies[0]
	assert.Equal(t, f.cash.ID, d.AccountID)
	assert.Equal(t, int64(2), d.Seq)
	assert.Equal(t, shared.MustAmount("350.50"), d.Expected)
	assert.Equal(t, shared.MustAmount("999"), d.Actual)

	assert.Equal(t, 1.0, gathered(t, registry, "odyssey_ledger_discrepancies_total"))
}

func TestLedgerIntegritySkipsLockedTenant(t *testing.T) {
	f := newLedgerFixture(t)
	mr, rdb := newRedis(t)
	key := internalShared.LedgerIntegrityLockKey(f.tenant)
	require.NoError(t, mr.Set(key, "other-worker"))

	job := NewLedgerIntegrityJob(f.store.Chains(), rdb, nil, nil)
	report, err := job.VerifyTenant(context.Background(), f.tenant)
	require.NoError(t, err)
	assert.True(t, report.Skipped)

	got, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "other-worker", got, "foreign lock must survive")
}

func TestLedgerIntegrityHandleSweepsAllTenants(t *testing.T) {
	f := newLedgerFixture(t)
	registry := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(registry)
	_, rdb := newRedis(t)
	job := NewLedgerIntegrityJob(f.store.Chains(), rdb, nil, metrics)

	task, err := NewLedgerIntegrityTask(uuid.Nil)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	assert.NotZero(t, gathered(t, registry, "odyssey_ledger_integrity_last_checked_timestamp_seconds"))
	assert.Equal(t, 1.0, gathered(t, registry, "odyssey_jobs_total"))
}

func TestLedgerIntegrityRejectsBadTenant(t *testing.T) {
	f := newLedgerFixture(t)
	job := NewLedgerIntegrityJob(f.store.Chains(), nil, nil, nil)
	err := job.Handle(context.Background(), asynq.NewTask(TaskLedgerIntegrity, []byte(`{"tenant_id":"nope"}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

// gathered sums every sample of the named family.
func gathered(t *testing.T, registry *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				total += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				total += m.GetGauge().GetValue()
			}
		}
	}
	return total
}
