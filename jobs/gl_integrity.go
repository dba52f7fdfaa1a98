package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/ledger"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

const defaultIntegrityLockTTL = 10 * time.Minute

var releaseLock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0`)

// IntegrityReport is the outcome of one tenant sweep.
type IntegrityReport struct {
	TenantID      uuid.UUID            `json:"tenant_id"`
	Accounts      int                  `json:"accounts"`
	Discrepancies []ledger.Discrepancy `json:"discrepancies,omitempty"`
	Skipped       bool                 `json:"skipped,omitempty"`
}

// LedgerIntegrityJob re-derives every running balance chain and reports
// the rows that disagree.
type LedgerIntegrityJob struct {
	Source  ledger.ChainSource
	Redis   redis.UniversalClient
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	LockTTL time.Duration
}

// NewLedgerIntegrityJob wires the sweep. rdb may be nil, in which case
// tenants are swept without a lock.
func NewLedgerIntegrityJob(source ledger.ChainSource, rdb redis.UniversalClient, logger *slog.Logger, metrics *jobmetrics.Metrics) *LedgerIntegrityJob {
	return &LedgerIntegrityJob{Source: source, Redis: rdb, Logger: logger, Metrics: metrics, LockTTL: defaultIntegrityLockTTL}
}

// Handle processes TaskLedgerIntegrity tasks. Discrepancies are reported, not
// returned: retrying cannot repair them.
func (j *LedgerIntegrityJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Source == nil {
		return errors.New("ledger integrity: source not configured")
	}
	var payload LedgerIntegrityPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("ledger integrity: decode: %v: %w", err, asynq.SkipRetry)
		}
	}

	tracker := j.Metrics.Track(TaskLedgerIntegrity)
	defer func() {
		err = tracker.End(err)
	}()

	tenants, err := j.tenants(ctx, payload.TenantID)
	if err != nil {
		return err
	}
	start := time.Now()
	found := 0
	for _, tenantID := range tenants {
		report, err := j.VerifyTenant(ctx, tenantID)
		if err != nil {
			j.log().Error("verify tenant", slog.String("tenant_id", tenantID.String()), slog.Any("error", err))
			return err
		}
		found += len(report.Discrepancies)
	}
	j.log().Info("ledger integrity sweep finished",
		slog.Int("tenants", len(tenants)),
		slog.Int("discrepancies", found),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// VerifyTenant sweeps one tenant under its redis lock. A tenant whose lock is
// held elsewhere is reported as skipped.
func (j *LedgerIntegrityJob) VerifyTenant(ctx context.Context, tenantID uuid.UUID) (IntegrityReport, error) {
	report := IntegrityReport{TenantID: tenantID}
	release, ok, err := j.lock(ctx, tenantID)
	if err != nil {
		return report, err
	}
	if !ok {
		report.Skipped = true
		j.log().Info("tenant sweep already running", slog.String("tenant_id", tenantID.String()))
		return report, nil
	}
	defer release()

	accs, err := j.Source.Accounts(ctx, tenantID)
	if err != nil {
		return report, err
	}
	report.Accounts = len(accs)
	found, err := ledger.VerifyTenant(ctx, j.Source, tenantID)
	if err != nil {
		return report, err
	}
	report.Discrepancies = found
	j.Metrics.AddDiscrepancies(tenantID.String(), len(found))
	for _, d := range found {
		j.log().Error("ledger discrepancy",
			slog.String("tenant_id", tenantID.String()),
			slog.Int64("account_id", d.AccountID),
			slog.Int64("entry_id", d.EntryID),
			slog.Int64("seq", d.Seq),
			slog.String("expected", d.Expected.String()),
			slog.String("actual", d.Actual.String()),
			slog.String("reason", d.Reason))
	}
	return report, nil
}

func (j *LedgerIntegrityJob) tenants(ctx context.Context, raw string) ([]uuid.UUID, error) {
	if raw == "" {
		return j.Source.Tenants(ctx)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("ledger integrity: invalid tenant %q: %w", raw, asynq.SkipRetry)
	}
	return []uuid.UUID{id}, nil
}

func (j *LedgerIntegrityJob) lock(ctx context.Context, tenantID uuid.UUID) (func(), bool, error) {
	if j.Redis == nil {
		return func() {}, true, nil
	}
	ttl := j.LockTTL
	if ttl <= 0 {
		ttl = defaultIntegrityLockTTL
	}
	key := internalShared.LedgerIntegrityLockKey(tenantID)
	token := uuid.NewString()
	ok, err := j.Redis.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("ledger integrity: lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return func() {
		if err := releaseLock.Run(context.WithoutCancel(ctx), j.Redis, []string{key}, token).Err(); err != nil {
			j.log().Warn("release integrity lock", slog.String("key", key), slog.Any("error", err))
		}
	}, true, nil
}

func (j *LedgerIntegrityJob) log() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLedgerIntegrity))
	}
	return slog.Default().With(slog.String("job", TaskLedgerIntegrity))
}
