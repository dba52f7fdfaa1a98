package ledger

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Tx is the slice of a store transaction the poster needs.
type Tx interface {
	// LockAccounts takes a row lock on every id, in the order given, and
	// returns the locked accounts keyed by id. Missing ids are absent from the map.
	LockAccounts(ctx context.Context, tenantID uuid.UUID, ids []int64) (map[int64]accounts.Account, error)
	// LatestEntry returns the row with the highest seq, or shared.ErrNoLedgerEntries.
	LatestEntry(ctx context.Context, tenantID uuid.UUID, accountID int64) (Entry, error)
	AppendEntry(ctx context.Context, e Entry) (Entry, error)
}

// Poster turns journal lines into ledger rows.
type Poster struct {
	now func() time.Time
}

// NewPoster constructs a Poster.
func NewPoster() *Poster {
	return &Poster{now: time.Now}
}

// WithNow overrides the clock for testing.
func (p *Poster) WithNow(now func() time.Time) {
	if now != nil {
		p.now = now
	}
}

// Post appends one ledger row per line, in line-number order, inside tx.
// Accounts are locked in ascending id order before any balance is read so
// concurrent postings against the same account serialise.
func (p *Poster) Post(ctx context.Context, tx Tx, posting Posting) ([]Entry, error) {
	if len(posting.Lines) == 0 {
		return nil, shared.ErrTooFewLines
	}
	lines := make([]Line, len(posting.Lines))
	copy(lines, posting.Lines)
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].LineNumber < lines[j].LineNumber })

	ids := AccountIDs(lines)
	locked, err := tx.LockAccounts(ctx, posting.TenantID, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, ok := locked[id]; !ok {
			return nil, shared.Validationf("accounting: account %d not found", id)
		}
	}

	heads := make(map[int64]Entry, len(ids))
	out := make([]Entry, 0, len(lines))
	for _, line := range lines {
		acc := locked[line.AccountID]
		head, ok := heads[line.AccountID]
		if !ok {
			head, err = tx.LatestEntry(ctx, posting.TenantID, line.AccountID)
			if err != nil && !errors.Is(err, shared.ErrNoLedgerEntries) {
				return nil, err
			}
		}
		balance, err := acc.NormalBalance.Apply(head.Balance, line.Debit, line.Credit)
		if err != nil {
			return nil, shared.Validationf("accounting: account %s balance out of range: %v", acc.Code, err)
		}
		desc := line.Description
		if desc == "" {
			desc = posting.Description
		}
		appended, err := tx.AppendEntry(ctx, Entry{
			TenantID:      posting.TenantID,
			AccountID:     line.AccountID,
			Seq:           head.Seq + 1,
			Date:          posting.Date,
			Description:   desc,
			Debit:         line.Debit,
			Credit:        line.Credit,
			Balance:       balance,
			ReferenceType: ReferenceJournalEntry,
			ReferenceID:   posting.JournalEntryID,
			JournalLineID: line.JournalLineID,
			CreatedAt:     p.now(),
		})
		if err != nil {
			return nil, err
		}
		heads[line.AccountID] = appended
		out = append(out, appended)
	}
	return out, nil
}

// AccountIDs returns the distinct account ids of lines in ascending order.
func AccountIDs(lines []Line) []int64 {
	seen := make(map[int64]struct{}, len(lines))
	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.AccountID]; ok {
			continue
		}
		seen[l.AccountID] = struct{}{}
		ids = append(ids, l.AccountID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
