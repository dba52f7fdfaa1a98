package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/memstore"
	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

// statsCachePrefix namespaces the journal statistics cache in redis.
const statsCachePrefix = "ledger:stats"

// AuditRecorder is satisfied by every audit port of the ledger services.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// LedgerDeps carries the connections the ledger is built on. Pool is
// required by the postgres driver, Enqueuer by async audit. Redis is optional.
type LedgerDeps struct {
	Logger   *slog.Logger
	Pool     *pgxpool.Pool
	Redis    *redis.Client
	Enqueuer jobs.Enqueuer
	Metrics  *observability.Metrics
}

// Ledger bundles the services behind the HTTP surface and the worker.
type Ledger struct {
	Accounts    *accounts.Service
	Journals    *journals.Service
	Idempotency shared.Idempotency
	Chains      ledger.ChainSource
	Audit       AuditRecorder
	Memory      *memstore.Store
}

// NewLedger assembles the ledger for the configured store driver.
func NewLedger(cfg *Config, deps LedgerDeps) (*Ledger, error) {
	if cfg == nil {
		return nil, errors.New("app: config required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var (
		accountRepo accounts.Repository
		journalRepo journals.Repository
		sink        AuditRecorder
		out         Ledger
	)
	switch cfg.StoreDriver {
	case StoreDriverMemory:
		store := memstore.New()
		accountRepo, journalRepo = store.Accounts(), store.Journals()
		out.Chains = store.Chains()
		out.Idempotency = shared.NewMemoryIdempotency()
		out.Memory = store
		sink = shared.NewMemoryAuditLog()
	case StoreDriverPostgres:
		if deps.Pool == nil {
			return nil, errors.New("app: postgres driver requires a pool")
		}
		accountRepo, journalRepo = accounts.NewRepository(deps.Pool), journals.NewRepository(deps.Pool)
		out.Chains = ledger.NewChainReader(deps.Pool)
		out.Idempotency = shared.NewIdempotencyStore(deps.Pool)
		sink = shared.NewAuditLogger(deps.Pool)
	default:
		return nil, fmt.Errorf("app: unknown store driver %q", cfg.StoreDriver)
	}

	switch cfg.AuditMode {
	case AuditModeSync:
		out.Audit = sink
	case AuditModeAsync:
		if deps.Enqueuer == nil {
			return nil, errors.New("app: async audit requires a job enqueuer")
		}
		out.Audit = jobs.NewAuditDispatcher(deps.Enqueuer)
	case AuditModeOff:
	default:
		return nil, fmt.Errorf("app: unknown audit mode %q", cfg.AuditMode)
	}

	var accountAudit accounts.AuditPort
	var journalAudit journals.AuditPort
	if out.Audit != nil {
		accountAudit, journalAudit = out.Audit, out.Audit
	}
	out.Accounts = accounts.NewService(accountRepo, accountAudit, logger)
	out.Journals = journals.NewService(journalRepo, journalAudit, logger)
	out.Journals.WithMaxRetries(cfg.LedgerPostMaxRetries, cfg.LedgerRetryBackoff)
	if deps.Metrics != nil {
		out.Journals.WithMetrics(deps.Metrics)
	}
	if deps.Redis != nil && cfg.StatsCacheTTL > 0 {
		out.Journals.WithCache(cache.NewVersioned(deps.Redis, statsCachePrefix, cfg.StatsCacheTTL))
	}
	logger.Info("ledger assembled",
		slog.String("store", cfg.StoreDriver),
		slog.String("audit", cfg.AuditMode),
		slog.Bool("stats_cache", deps.Redis != nil && cfg.StatsCacheTTL > 0))
	return &out, nil
}

// Handler builds the HTTP adapter for the ledger.
func (l *Ledger) Handler(cfg *Config, logger *slog.Logger) *accounting.Handler {
	return accounting.NewHandler(logger, l.Accounts, l.Journals, l.Idempotency, RateLimiter(cfg))
}
