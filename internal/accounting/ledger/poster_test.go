package ledger

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

type stubTx struct {
	accounts  map[int64]accounts.Account
	rows      map[int64][]Entry
	lockOrder []int64
	latestErr error
	nextID    int64
}

func newStubTx(accs ...accounts.Account) *stubTx {
	tx := &stubTx{accounts: map[int64]accounts.Account{}, rows: map[int64][]Entry{}}
	for _, a := range accs {
		tx.accounts[a.ID] = a
	}
	return tx
}

func (s *stubTx) LockAccounts(_ context.Context, _ uuid.UUID, ids []int64) (map[int64]accounts.Account, error) {
	out := map[int64]accounts.Account{}
	for _, id := range ids {
		s.lockOrder = append(s.lockOrder, id)
		if a, ok := s.accounts[id]; ok {
			out[id] = a
		}
	}
	return out, nil
}

func (s *stubTx) LatestEntry(_ context.Context, _ uuid.UUID, accountID int64) (Entry, error) {
	if s.latestErr != nil {
		return Entry{}, s.latestErr
	}
	rows := s.rows[accountID]
	if len(rows) == 0 {
		return Entry{}, shared.ErrNoLedgerEntries
	}
	return rows[len(rows)-1], nil
}

func (s *stubTx) AppendEntry(_ context.Context, e Entry) (Entry, error) {
	s.nextID++
	e.ID = s.nextID
	s.rows[e.AccountID] = append(s.rows[e.AccountID], e)
	return e, nil
}

var (
	cash    = accounts.Account{ID: 10, Code: "1000", Type: accounts.AccountTypeAsset, NormalBalance: accounts.NormalBalanceDebit}
	revenue = accounts.Account{ID: 3, Code: "4000", Type: accounts.AccountTypeRevenue, NormalBalance: accounts.NormalBalanceCredit}
)

func TestPostAppendsRunningBalances(t *testing.T) {
	tx := newStubTx(cash, revenue)
	p := NewPoster()
	fixed := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	p.WithNow(func() time.Time { return fixed })

	rows, err := p.Post(context.Background(), tx, Posting{
		JournalEntryID: 7,
		Date:           fixed,
		Description:    "sale",
		Lines: []Line{
			{LineNumber: 2, AccountID: revenue.ID, Credit: shared.MustAmount("500")},
			{LineNumber: 1, AccountID: cash.ID, Debit: shared.MustAmount("500")},
		},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, cash.ID, rows[0].AccountID, "rows follow line-number order")
	require.Equal(t, shared.MustAmount("500"), rows[0].Balance)
	require.Equal(t, shared.MustAmount("500"), rows[1].Balance)
	require.Equal(t, int64(1), rows[0].Seq)
	require.Equal(t, ReferenceJournalEntry, rows[1].ReferenceType)
	require.Equal(t, int64(7), rows[1].ReferenceID)
	require.Equal(t, "sale", rows[0].Description)
	require.Equal(t, []int64{3, 10}, tx.lockOrder, "accounts locked in ascending id order")
}

func TestPostChainsLinesOnSameAccount(t *testing.T) {
	tx := newStubTx(cash, revenue)
	tx.rows[cash.ID] = []Entry{{ID: 99, AccountID: cash.ID, Seq: 4, Balance: shared.MustAmount("100")}}
	p := NewPoster()

	rows, err := p.Post(context.Background(), tx, Posting{Lines: []Line{
		{LineNumber: 1, AccountID: cash.ID, Debit: shared.MustAmount("30")},
		{LineNumber: 2, AccountID: cash.ID, Credit: shared.MustAmount("10")},
		{LineNumber: 3, AccountID: revenue.ID, Credit: shared.MustAmount("20")},
	}})
	require.NoError(t, err)
	require.Equal(t, shared.MustAmount("130"), rows[0].Balance)
	require.Equal(t, int64(5), rows[0].Seq)
	require.Equal(t, shared.MustAmount("120"), rows[1].Balance)
	require.Equal(t, int64(6), rows[1].Seq)
	require.Equal(t, shared.MustAmount("20"), rows[2].Balance)
	require.Equal(t, []int64{3, 10}, tx.lockOrder)
}

func TestPostRejectsUnknownAccount(t *testing.T) {
	tx := newStubTx(cash)
	_, err := NewPoster().Post(context.Background(), tx, Posting{Lines: []Line{
		{LineNumber: 1, AccountID: cash.ID, Debit: 100},
		{LineNumber: 2, AccountID: 404, Credit: 100},
	}})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Empty(t, tx.rows)
}

func TestPostPropagatesStoreFailure(t *testing.T) {
	tx := newStubTx(cash, revenue)
	boom := shared.Store(errors.New("connection reset"), true)
	tx.latestErr = boom
	_, err := NewPoster().Post(context.Background(), tx, Posting{Lines: []Line{
		{LineNumber: 1, AccountID: cash.ID, Debit: 100},
		{LineNumber: 2, AccountID: revenue.ID, Credit: 100},
	}})
	require.ErrorIs(t, err, shared.ErrStore)
	require.True(t, shared.IsRetryable(err))
}

func TestAccountIDsDistinctSorted(t *testing.T) {
	ids := AccountIDs([]Line{{AccountID: 5}, {AccountID: 2}, {AccountID: 5}, {AccountID: 9}})
	require.Equal(t, []int64{2, 5, 9}, ids)
}

func TestPostRejectsBalanceOverflow(t *testing.T) {
	tx := newStubTx(cash, revenue)
	tx.rows[cash.ID] = []Entry{{ID: 1, AccountID: cash.ID, Seq: 1, Balance: shared.Amount(math.MaxInt64 - 10)}}

	_, err := NewPoster().Post(context.Background(), tx, Posting{
		JournalEntryID: 9,
		Lines: []Line{
			{LineNumber: 1, AccountID: cash.ID, Debit: 100},
			{LineNumber: 2, AccountID: revenue.ID, Credit: 100},
		},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Len(t, tx.rows[cash.ID], 1, "no row may be appended past the limit")
	require.Empty(t, tx.rows[revenue.ID])
}
