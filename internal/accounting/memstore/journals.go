package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type journalRepo struct {
	store *Store
}

func (r *journalRepo) WithTx(ctx context.Context, fn func(context.Context, journals.TxRepository) error) error {
	return r.store.withTx(ctx, func(st *state) error {
		return fn(ctx, &journalTx{store: r.store, st: st})
	})
}

func (r *journalRepo) Get(_ context.Context, tenantID uuid.UUID, id int64) (journals.JournalEntry, error) {
	var (
		out journals.JournalEntry
		err error
	)
	r.store.read(func(st *state) {
		out, err = st.entry(tenantID, id)
		if err != nil {
			return
		}
		for _, e := range st.ledger {
			if e.TenantID == tenantID && e.ReferenceType == ledger.ReferenceJournalEntry && e.ReferenceID == id {
				out.LedgerEntries = append(out.LedgerEntries, e)
			}
		}
	})
	return out, err
}

func (r *journalRepo) matching(st *state, tenantID uuid.UUID, filter journals.ListFilter) []journals.JournalEntry {
	var out []journals.JournalEntry
	for _, e := range st.entries {
		if e.TenantID != tenantID {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		if filter.Type != "" && e.Type != filter.Type {
			continue
		}
		if !filter.Range.Contains(e.Date) {
			continue
		}
		e.Lines = append([]journals.JournalLine(nil), e.Lines...)
		out = append(out, e)
	}
	return out
}

func (r *journalRepo) List(_ context.Context, tenantID uuid.UUID, filter journals.ListFilter) ([]journals.JournalEntry, int, error) {
	var all []journals.JournalEntry
	r.store.read(func(st *state) { all = r.matching(st, tenantID, filter) })
	sort.Slice(all, func(i, j int) bool {
		if !all[i].Date.Equal(all[j].Date) {
			return all[i].Date.After(all[j].Date)
		}
		return all[i].ID > all[j].ID
	})
	total := len(all)
	start := internalShared.Offset(filter.Page, filter.PerPage)
	if start >= total {
		return nil, total, nil
	}
	end := start + filter.PerPage
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (r *journalRepo) Statistics(_ context.Context, tenantID uuid.UUID, rng shared.DateRange) ([]journals.StatisticsRow, error) {
	type key struct {
		status journals.JournalStatus
		typ    journals.EntryType
	}
	groups := map[key]*journals.StatisticsRow{}
	r.store.read(func(st *state) {
		for _, e := range r.matching(st, tenantID, journals.ListFilter{Range: rng}) {
			k := key{e.Status, e.Type}
			row, ok := groups[k]
			if !ok {
				row = &journals.StatisticsRow{Status: e.Status, Type: e.Type}
				groups[k] = row
			}
			row.Count++
			row.TotalDebit += e.TotalDebit
			row.TotalCredit += e.TotalCredit
		}
	})
	out := make([]journals.StatisticsRow, 0, len(groups))
	for _, row := range groups {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Status != out[j].Status {
			return out[i].Status < out[j].Status
		}
		return out[i].Type < out[j].Type
	})
	return out, nil
}

type journalTx struct {
	store *Store
	st    *state
}

func (t *journalTx) LockAccounts(_ context.Context, tenantID uuid.UUID, ids []int64) (map[int64]accounts.Account, error) {
	out := make(map[int64]accounts.Account, len(ids))
	for _, id := range ids {
		if a, err := t.st.account(tenantID, id); err == nil {
			out[id] = a
		}
	}
	return out, nil
}

func (t *journalTx) GetAccounts(ctx context.Context, tenantID uuid.UUID, ids []int64) (map[int64]accounts.Account, error) {
	return t.LockAccounts(ctx, tenantID, ids)
}

func (t *journalTx) LatestEntry(_ context.Context, tenantID uuid.UUID, accountID int64) (ledger.Entry, error) {
	rows := t.st.chain(tenantID, accountID)
	if len(rows) == 0 {
		return ledger.Entry{}, shared.ErrNoLedgerEntries
	}
	return rows[len(rows)-1], nil
}

func (t *journalTx) AppendEntry(_ context.Context, e ledger.Entry) (ledger.Entry, error) {
	if err := t.store.trip(FaultAppendEntry); err != nil {
		return ledger.Entry{}, err
	}
	for _, existing := range t.st.ledger {
		if existing.AccountID == e.AccountID && existing.Seq == e.Seq {
			return ledger.Entry{}, shared.Store(errDuplicateSeq, true)
		}
	}
	t.st.nextLedgerID++
	e.ID = t.st.nextLedgerID
	t.st.ledger = append(t.st.ledger, e)
	return e, nil
}

func (t *journalTx) NextSequence(_ context.Context, tenantID uuid.UUID, docType string, year int) (int64, error) {
	if err := t.store.trip(FaultNextSequence); err != nil {
		return 0, err
	}
	k := seqKey{tenant: tenantID, docType: docType, year: year}
	t.st.sequences[k]++
	return t.st.sequences[k], nil
}

func (t *journalTx) InsertEntry(_ context.Context, e journals.JournalEntry) (journals.JournalEntry, error) {
	t.st.nextEntryID++
	e.ID = t.st.nextEntryID
	lines := make([]journals.JournalLine, 0, len(e.Lines))
	for _, l := range e.Lines {
		t.st.nextLineID++
		l.ID = t.st.nextLineID
		l.JournalEntryID = e.ID
		lines = append(lines, l)
	}
	e.Lines = lines
	e.LedgerEntries = nil
	t.st.entries[e.ID] = e
	return e, nil
}

func (t *journalTx) GetEntryForUpdate(_ context.Context, tenantID uuid.UUID, id int64) (journals.JournalEntry, error) {
	return t.st.entry(tenantID, id)
}

func (t *journalTx) UpdateDraft(_ context.Context, e journals.JournalEntry) (journals.JournalEntry, error) {
	current, err := t.st.entry(e.TenantID, e.ID)
	if err != nil || current.Status != journals.JournalStatusDraft {
		return journals.JournalEntry{}, shared.ErrJournalNotFound
	}
	lines := make([]journals.JournalLine, 0, len(e.Lines))
	for _, l := range e.Lines {
		t.st.nextLineID++
		l.ID = t.st.nextLineID
		l.JournalEntryID = e.ID
		lines = append(lines, l)
	}
	current.Date = e.Date
	current.Description = e.Description
	current.Type = e.Type
	current.TotalDebit = e.TotalDebit
	current.TotalCredit = e.TotalCredit
	current.UpdatedAt = e.UpdatedAt
	current.Lines = lines
	t.st.entries[e.ID] = current
	return current, nil
}

func (t *journalTx) MarkPosted(_ context.Context, tenantID uuid.UUID, id, actorID int64, at time.Time) error {
	current, err := t.st.entry(tenantID, id)
	if err != nil {
		return err
	}
	if current.Status != journals.JournalStatusDraft {
		return shared.Statef("accounting: journal entry %d is no longer a draft", id)
	}
	current.Status = journals.JournalStatusPosted
	current.PostedBy = &actorID
	current.PostedAt = &at
	current.UpdatedAt = at
	t.st.entries[id] = current
	return nil
}

func (t *journalTx) MarkReversed(_ context.Context, tenantID uuid.UUID, id, actorID int64, at time.Time, reversalID int64) error {
	if err := t.store.trip(FaultMarkReversed); err != nil {
		return err
	}
	current, err := t.st.entry(tenantID, id)
	if err != nil {
		return err
	}
	if current.Status != journals.JournalStatusPosted || current.ReversedByEntryID != nil {
		return shared.ErrAlreadyReversed
	}
	current.Status = journals.JournalStatusReversed
	current.ReversedBy = &actorID
	current.ReversedAt = &at
	current.ReversedByEntryID = &reversalID
	current.UpdatedAt = at
	t.st.entries[id] = current
	return nil
}

func (t *journalTx) DeleteEntry(_ context.Context, tenantID uuid.UUID, id int64) error {
	current, err := t.st.entry(tenantID, id)
	if err != nil {
		return err
	}
	if current.Status != journals.JournalStatusDraft {
		return shared.ErrJournalNotFound
	}
	delete(t.st.entries, id)
	return nil
}
