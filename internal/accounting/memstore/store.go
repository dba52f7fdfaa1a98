// Package memstore keeps accounting data in process. It backs STORE_DRIVER=memory
// and the service tests. Transactions are serialised by a single mutex and run
// against a copy of the state that is swapped in only on success.
package memstore

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Fault points accepted by InjectFault.
const (
	FaultAppendEntry  = "append_entry"
	FaultNextSequence = "next_sequence"
	FaultMarkReversed = "mark_reversed"
)

var errDuplicateSeq = errors.New("memstore: duplicate ledger seq")

type seqKey struct {
	tenant  uuid.UUID
	docType string
	year    int
}

type state struct {
	accounts      map[int64]accounts.Account
	entries       map[int64]journals.JournalEntry
	ledger        []ledger.Entry
	sequences     map[seqKey]int64
	nextAccountID int64
	nextEntryID   int64
	nextLineID    int64
	nextLedgerID  int64
}

func newState() *state {
	return &state{
		accounts:  make(map[int64]accounts.Account),
		entries:   make(map[int64]journals.JournalEntry),
		sequences: make(map[seqKey]int64),
	}
}

func (s *state) clone() *state {
	c := &state{
		accounts:      make(map[int64]accounts.Account, len(s.accounts)),
		entries:       make(map[int64]journals.JournalEntry, len(s.entries)),
		ledger:        make([]ledger.Entry, len(s.ledger)),
		sequences:     make(map[seqKey]int64, len(s.sequences)),
		nextAccountID: s.nextAccountID,
		nextEntryID:   s.nextEntryID,
		nextLineID:    s.nextLineID,
		nextLedgerID:  s.nextLedgerID,
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.entries {
		v.Lines = append([]journals.JournalLine(nil), v.Lines...)
		c.entries[k] = v
	}
	copy(c.ledger, s.ledger)
	for k, v := range s.sequences {
		c.sequences[k] = v
	}
	return c
}

type fault struct {
	err   error
	after int
	times int
}

// Store is the shared in-memory state.
type Store struct {
	mu     sync.Mutex
	state  *state
	faults map[string]*fault
}

// New returns an empty store.
func New() *Store {
	return &Store{state: newState(), faults: make(map[string]*fault)}
}

// InjectFault makes the named operation fail with err `times` times, after
// letting `after` calls succeed.
func (s *Store) InjectFault(op string, err error, after, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = &fault{err: err, after: after, times: times}
}

func (s *Store) trip(op string) error {
	f, ok := s.faults[op]
	if !ok {
		return nil
	}
	if f.after > 0 {
		f.after--
		return nil
	}
	if f.times <= 0 {
		delete(s.faults, op)
		return nil
	}
	f.times--
	return f.err
}

func (s *Store) withTx(ctx context.Context, fn func(*state) error) error {
	if err := ctx.Err(); err != nil {
		return shared.FromStore(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	working := s.state.clone()
	if err := fn(working); err != nil {
		return shared.FromStore(err)
	}
	if err := ctx.Err(); err != nil {
		return shared.FromStore(err)
	}
	s.state = working
	return nil
}

func (s *Store) read(fn func(*state)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.state)
}

// Accounts returns the accounts.Repository view of the store.
func (s *Store) Accounts() accounts.Repository { return &accountRepo{store: s} }

// Journals returns the journals.Repository view of the store.
func (s *Store) Journals() journals.Repository { return &journalRepo{store: s} }

// Chains returns the ledger.ChainSource view of the store.
func (s *Store) Chains() ledger.ChainSource { return &chainSource{store: s} }

// LedgerRows returns a copy of every ledger row of the account ordered by seq.
func (s *Store) LedgerRows(tenantID uuid.UUID, accountID int64) []ledger.Entry {
	var out []ledger.Entry
	s.read(func(st *state) { out = st.chain(tenantID, accountID) })
	return out
}

// Corrupt overwrites the stored balance of a ledger row. Used to exercise
// integrity checks.
func (s *Store) Corrupt(ledgerID int64, balance shared.Amount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.state.ledger {
		if s.state.ledger[i].ID == ledgerID {
			s.state.ledger[i].Balance = balance
		}
	}
}

func (st *state) chain(tenantID uuid.UUID, accountID int64) []ledger.Entry {
	var out []ledger.Entry
	for _, e := range st.ledger {
		if e.TenantID == tenantID && e.AccountID == accountID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

func (st *state) tenantAccounts(tenantID uuid.UUID) []accounts.Account {
	var out []accounts.Account
	for _, a := range st.accounts {
		if a.TenantID == tenantID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func (st *state) account(tenantID uuid.UUID, id int64) (accounts.Account, error) {
	a, ok := st.accounts[id]
	if !ok || a.TenantID != tenantID {
		return accounts.Account{}, shared.ErrAccountNotFound
	}
	return a, nil
}

func (st *state) entry(tenantID uuid.UUID, id int64) (journals.JournalEntry, error) {
	e, ok := st.entries[id]
	if !ok || e.TenantID != tenantID {
		return journals.JournalEntry{}, shared.ErrJournalNotFound
	}
	e.Lines = append([]journals.JournalLine(nil), e.Lines...)
	return e, nil
}

type chainSource struct {
	store *Store
}

func (c *chainSource) Tenants(context.Context) ([]uuid.UUID, error) {
	var out []uuid.UUID
	c.store.read(func(st *state) {
		seen := map[uuid.UUID]bool{}
		for _, a := range st.accounts {
			if !seen[a.TenantID] {
				seen[a.TenantID] = true
				out = append(out, a.TenantID)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

func (c *chainSource) Accounts(_ context.Context, tenantID uuid.UUID) ([]accounts.Account, error) {
	var out []accounts.Account
	c.store.read(func(st *state) { out = st.tenantAccounts(tenantID) })
	return out, nil
}

func (c *chainSource) Chain(_ context.Context, tenantID uuid.UUID, accountID int64) ([]ledger.Entry, error) {
	return c.store.LedgerRows(tenantID, accountID), nil
}
