package journals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// AuditPort records journal events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// StatsCache caches statistics per tenant. Bump drops a tenant's cached values.
type StatsCache interface {
	BuildKey(ctx context.Context, tenantID uuid.UUID, parts ...string) (string, error)
	FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error
	Bump(ctx context.Context, tenantID uuid.UUID) error
}

// Recorder receives ledger operation metrics.
type Recorder interface {
	ObserveLedgerOp(op, outcome string, elapsed time.Duration)
	IncLedgerRetry(op string)
}

// DefaultMaxRetries bounds transparent retries of retryable store failures.
const DefaultMaxRetries = 3

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// Service runs the journal entry lifecycle against the ledger.
type Service struct {
	repo       Repository
	poster     *ledger.Poster
	audit      AuditPort
	cache      StatsCache
	metrics    Recorder
	logger     *slog.Logger
	now        func() time.Time
	maxRetries int
	backoff    time.Duration
	group      singleflight.Group
}

// NewService wires the journal service.
func NewService(repo Repository, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:       repo,
		poster:     ledger.NewPoster(),
		audit:      audit,
		logger:     logger,
		now:        time.Now,
		maxRetries: DefaultMaxRetries,
		backoff:    20 * time.Millisecond,
	}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
		s.poster.WithNow(now)
	}
}

// WithCache enables statistics caching.
func (s *Service) WithCache(cache StatsCache) { s.cache = cache }

// WithMetrics attaches a metrics recorder.
func (s *Service) WithMetrics(m Recorder) { s.metrics = m }

// WithMaxRetries sets how many times a retryable store failure is retried.
func (s *Service) WithMaxRetries(n int, backoff time.Duration) {
	if n >= 0 {
		s.maxRetries = n
	}
	if backoff >= 0 {
		s.backoff = backoff
	}
}

// Create validates draft and stores it as a DRAFT entry with a fresh number.
func (s *Service) Create(ctx context.Context, tenantID uuid.UUID, actorID int64, draft Draft) (JournalEntry, error) {
	draft, err := normalizeDraft(tenantID, draft)
	if err != nil {
		return JournalEntry{}, err
	}
	totals, err := Validate(draft)
	if err != nil {
		return JournalEntry{}, err
	}
	var created JournalEntry
	err = s.atomic(ctx, "create", func(ctx context.Context, tx TxRepository) error {
		if err := checkAccounts(ctx, tx, tenantID, draft.Lines); err != nil {
			return err
		}
		year := EntryYear(draft.Date)
		seq, err := tx.NextSequence(ctx, tenantID, DocTypeJournalEntry, year)
		if err != nil {
			return err
		}
		now := s.now()
		inserted, err := tx.InsertEntry(ctx, JournalEntry{
			TenantID:    tenantID,
			Number:      FormatEntryNumber(year, seq),
			Date:        draft.Date,
			Description: draft.Description,
			Type:        draft.Type,
			Status:      JournalStatusDraft,
			TotalDebit:  totals.Debit,
			TotalCredit: totals.Credit,
			CreatedBy:   actorID,
			CreatedAt:   now,
			UpdatedAt:   now,
			Lines:       linesFromInput(0, draft.Lines, now),
		})
		if err != nil {
			return err
		}
		created = inserted
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.afterCommit(ctx, actorID, "journal.create", created)
	return created, nil
}

// Update replaces the content of a DRAFT entry.
func (s *Service) Update(ctx context.Context, tenantID uuid.UUID, actorID int64, id int64, draft Draft) (JournalEntry, error) {
	draft, err := normalizeDraft(tenantID, draft)
	if err != nil {
		return JournalEntry{}, err
	}
	totals, err := Validate(draft)
	if err != nil {
		return JournalEntry{}, err
	}
	var updated JournalEntry
	err = s.atomic(ctx, "update", func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetEntryForUpdate(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if err := NewLifecycle(&current).Apply(ctx, ActionUpdate); err != nil {
			return err
		}
		if err := checkAccounts(ctx, tx, tenantID, draft.Lines); err != nil {
			return err
		}
		now := s.now()
		current.Date = draft.Date
		current.Description = draft.Description
		current.Type = draft.Type
		current.TotalDebit = totals.Debit
		current.TotalCredit = totals.Credit
		current.UpdatedAt = now
		current.Lines = linesFromInput(current.ID, draft.Lines, now)
		saved, err := tx.UpdateDraft(ctx, current)
		if err != nil {
			return err
		}
		updated = saved
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.afterCommit(ctx, actorID, "journal.update", updated)
	return updated, nil
}

// Delete removes a DRAFT entry.
func (s *Service) Delete(ctx context.Context, tenantID uuid.UUID, actorID int64, id int64) error {
	var deleted JournalEntry
	err := s.atomic(ctx, "delete", func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetEntryForUpdate(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if err := NewLifecycle(&current).Apply(ctx, ActionDelete); err != nil {
			return err
		}
		deleted = current
		return tx.DeleteEntry(ctx, tenantID, id)
	})
	if err != nil {
		return err
	}
	s.afterCommit(ctx, actorID, "journal.delete", deleted)
	return nil
}

// Post marks a DRAFT entry POSTED and appends its ledger rows in one transaction.
func (s *Service) Post(ctx context.Context, tenantID uuid.UUID, actorID int64, id int64) (JournalEntry, error) {
	var posted JournalEntry
	err := s.atomic(ctx, "post", func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetEntryForUpdate(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if err := NewLifecycle(&current).Apply(ctx, ActionPost); err != nil {
			return err
		}
		if _, err := Validate(draftOf(current)); err != nil {
			return err
		}
		now := s.now()
		if err := tx.MarkPosted(ctx, tenantID, current.ID, actorID, now); err != nil {
			return err
		}
		rows, err := s.poster.Post(ctx, tx, ledger.Posting{
			TenantID:       tenantID,
			JournalEntryID: current.ID,
			Date:           current.Date,
			Description:    current.Description,
			Lines:          postingLines(current.Lines),
		})
		if err != nil {
			return err
		}
		current.PostedBy = &actorID
		current.PostedAt = &now
		current.UpdatedAt = now
		current.LedgerEntries = rows
		posted = current
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.afterCommit(ctx, actorID, "journal.post", posted)
	return posted, nil
}

// Reverse posts a mirror of a POSTED entry and marks the original REVERSED.
func (s *Service) Reverse(ctx context.Context, tenantID uuid.UUID, actorID int64, id int64, in ReverseInput) (ReverseResult, error) {
	var result ReverseResult
	err := s.atomic(ctx, "reverse", func(ctx context.Context, tx TxRepository) error {
		original, err := tx.GetEntryForUpdate(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if original.ReversedByEntryID != nil {
			return shared.ErrAlreadyReversed
		}
		if err := NewLifecycle(&original).Apply(ctx, ActionReverse); err != nil {
			return err
		}
		now := s.now()
		reversal := buildReversal(original, in, actorID, now)
		year := EntryYear(reversal.Date)
		seq, err := tx.NextSequence(ctx, tenantID, DocTypeJournalEntry, year)
		if err != nil {
			return err
		}
		reversal.Number = FormatEntryNumber(year, seq)
		inserted, err := tx.InsertEntry(ctx, reversal)
		if err != nil {
			return err
		}
		rows, err := s.poster.Post(ctx, tx, ledger.Posting{
			TenantID:       tenantID,
			JournalEntryID: inserted.ID,
			Date:           inserted.Date,
			Description:    inserted.Description,
			Lines:          postingLines(inserted.Lines),
		})
		if err != nil {
			return err
		}
		inserted.LedgerEntries = rows
		if err := tx.MarkReversed(ctx, tenantID, original.ID, actorID, now, inserted.ID); err != nil {
			return err
		}
		reversalID := inserted.ID
		original.ReversedBy = &actorID
		original.ReversedAt = &now
		original.ReversedByEntryID = &reversalID
		original.UpdatedAt = now
		result = ReverseResult{Original: original, Reversal: inserted}
		return nil
	})
	if err != nil {
		return ReverseResult{}, err
	}
	s.afterCommit(ctx, actorID, "journal.reverse", result.Original, "reversal_number", result.Reversal.Number, "reason", in.Reason)
	return result, nil
}

// Get returns an entry with its lines and ledger rows.
func (s *Service) Get(ctx context.Context, tenantID uuid.UUID, id int64) (JournalEntry, error) {
	return s.repo.Get(ctx, tenantID, id)
}

// List returns one page of entries, newest first.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID, filter ListFilter) (ListResult, error) {
	if err := filter.Range.Validate(); err != nil {
		return ListResult{}, err
	}
	if filter.Status != "" && filter.Status != JournalStatusDraft && filter.Status != JournalStatusPosted && filter.Status != JournalStatusReversed {
		return ListResult{}, shared.Validationf("accounting: invalid status %q", filter.Status)
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return ListResult{}, shared.Validationf("accounting: invalid entry type %q", filter.Type)
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PerPage <= 0 {
		filter.PerPage = defaultPerPage
	}
	if filter.PerPage > maxPerPage {
		filter.PerPage = maxPerPage
	}
	entries, total, err := s.repo.List(ctx, tenantID, filter)
	if err != nil {
		return ListResult{}, err
	}
	if entries == nil {
		entries = []JournalEntry{}
	}
	return ListResult{
		Entries:    entries,
		Pagination: internalShared.NewPagination(filter.Page, filter.PerPage, total),
	}, nil
}

// Statistics groups entry counts and totals by status and type.
func (s *Service) Statistics(ctx context.Context, tenantID uuid.UUID, rng shared.DateRange) (Statistics, error) {
	if err := rng.Validate(); err != nil {
		return Statistics{}, err
	}
	val, err, _ := s.singleflight(ctx, tenantID.String()+":"+rng.Key(), func(ctx context.Context) (any, error) {
		return s.cachedStatistics(ctx, tenantID, rng)
	})
	if err != nil {
		return Statistics{}, err
	}
	return val.(Statistics), nil
}

func (s *Service) singleflight(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error, bool) {
	resultChan := s.group.DoChan(key, func() (any, error) {
		return fn(ctx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err(), false
	case res := <-resultChan:
		return res.Val, res.Err, res.Shared
	}
}

func (s *Service) cachedStatistics(ctx context.Context, tenantID uuid.UUID, rng shared.DateRange) (Statistics, error) {
	if s.cache == nil {
		return s.loadStatistics(ctx, tenantID, rng)
	}
	key, err := s.cache.BuildKey(ctx, tenantID, "statistics", rng.Key())
	if err == nil {
		var stats Statistics
		err = s.cache.FetchJSON(ctx, key, &stats, func(ctx context.Context) (any, error) {
			return s.loadStatistics(ctx, tenantID, rng)
		})
		if err == nil {
			return stats, nil
		}
		if shared.IsTyped(err) {
			return Statistics{}, err
		}
	}
	s.logger.Warn("statistics cache unavailable", slog.Any("error", err))
	return s.loadStatistics(ctx, tenantID, rng)
}

func (s *Service) loadStatistics(ctx context.Context, tenantID uuid.UUID, rng shared.DateRange) (Statistics, error) {
	rows, err := s.repo.Statistics(ctx, tenantID, rng)
	if err != nil {
		return Statistics{}, err
	}
	stats := Statistics{Range: rng, Rows: []StatisticsRow{}}
	for _, row := range rows {
		stats.TotalEntries += row.Count
		stats.Rows = append(stats.Rows, row)
	}
	return stats, nil
}

// atomic runs fn in a store transaction, retrying retryable store failures.
func (s *Service) atomic(ctx context.Context, op string, fn func(context.Context, TxRepository) error) error {
	start := time.Now()
	var err error
	for attempt := 0; ; attempt++ {
		err = s.repo.WithTx(ctx, fn)
		if err == nil || !shared.IsRetryable(err) || attempt >= s.maxRetries {
			break
		}
		if s.metrics != nil {
			s.metrics.IncLedgerRetry(op)
		}
		s.logger.Warn("retrying ledger transaction", slog.String("op", op), slog.Int("attempt", attempt+1), slog.Any("error", err))
		select {
		case <-ctx.Done():
			err = shared.FromStore(ctx.Err())
		case <-time.After(s.backoff * time.Duration(attempt+1)):
			continue
		}
		break
	}
	if s.metrics != nil {
		s.metrics.ObserveLedgerOp(op, outcome(err), time.Since(start))
	}
	return err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case shared.IsRetryable(err):
		return "retry_exhausted"
	case errors.Is(err, shared.ErrValidation):
		return "validation"
	case errors.Is(err, shared.ErrConflict):
		return "conflict"
	case errors.Is(err, shared.ErrState):
		return "state"
	case errors.Is(err, shared.ErrNotFound):
		return "not_found"
	default:
		return "store"
	}
}

// afterCommit records audit and drops cached statistics. Failures are logged, never returned.
func (s *Service) afterCommit(ctx context.Context, actorID int64, action string, entry JournalEntry, extra ...string) {
	if s.audit != nil {
		meta := map[string]any{
			"number": entry.Number,
			"status": string(entry.Status),
			"total":  DisplayAmount(entry.TotalDebit),
		}
		for i := 0; i+1 < len(extra); i += 2 {
			if extra[i+1] != "" {
				meta[extra[i]] = extra[i+1]
			}
		}
		err := s.audit.Record(ctx, internalShared.AuditLog{
			ActorID:  actorID,
			TenantID: entry.TenantID,
			Action:   action,
			Entity:   "journal_entry",
			EntityID: fmt.Sprintf("%d", entry.ID),
			Meta:     meta,
			At:       s.now(),
		})
		if err != nil {
			s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
		}
	}
	if s.cache != nil {
		if err := s.cache.Bump(ctx, entry.TenantID); err != nil {
			s.logger.Warn("statistics cache bump failed", slog.Any("error", err))
		}
	}
}

func normalizeDraft(tenantID uuid.UUID, d Draft) (Draft, error) {
	if tenantID == uuid.Nil {
		return Draft{}, shared.Validationf("accounting: tenant required")
	}
	if d.Date.IsZero() {
		return Draft{}, shared.Validationf("accounting: entry date required")
	}
	d.Date = shared.DateOnly(d.Date)
	d.Description = strings.TrimSpace(d.Description)
	if d.Type == "" {
		d.Type = EntryTypeStandard
	}
	if !d.Type.Valid() {
		return Draft{}, shared.Validationf("accounting: invalid entry type %q", d.Type)
	}
	return d, nil
}

// checkAccounts ensures every line references an active account of the tenant.
func checkAccounts(ctx context.Context, tx TxRepository, tenantID uuid.UUID, lines []LineInput) error {
	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.AccountID)
	}
	found, err := tx.GetAccounts(ctx, tenantID, ids)
	if err != nil {
		return err
	}
	for i, l := range lines {
		acc, ok := found[l.AccountID]
		if !ok {
			return shared.Validationf("accounting: line %d account %d not found", i+1, l.AccountID)
		}
		if !acc.IsActive {
			return shared.Validationf("accounting: line %d account %s is inactive", i+1, acc.Code)
		}
	}
	return nil
}

func draftOf(e JournalEntry) Draft {
	d := Draft{Date: e.Date, Description: e.Description, Type: e.Type}
	for _, l := range e.Lines {
		d.Lines = append(d.Lines, LineInput{AccountID: l.AccountID, Debit: l.Debit, Credit: l.Credit})
	}
	return d
}
