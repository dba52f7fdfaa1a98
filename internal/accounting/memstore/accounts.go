package memstore

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

type accountRepo struct {
	store *Store
}

func (r *accountRepo) WithTx(ctx context.Context, fn func(context.Context, accounts.TxRepository) error) error {
	return r.store.withTx(ctx, func(st *state) error {
		return fn(ctx, &accountTx{st: st})
	})
}

func (r *accountRepo) ListAccounts(_ context.Context, tenantID uuid.UUID) ([]accounts.Account, error) {
	var out []accounts.Account
	r.store.read(func(st *state) { out = st.tenantAccounts(tenantID) })
	return out, nil
}

func (r *accountRepo) GetAccount(_ context.Context, tenantID uuid.UUID, id int64) (accounts.Account, error) {
	var (
		out accounts.Account
		err error
	)
	r.store.read(func(st *state) { out, err = st.account(tenantID, id) })
	return out, err
}

func (r *accountRepo) LedgerTotals(_ context.Context, tenantID uuid.UUID, accountID int64, rng shared.DateRange) (accounts.LedgerTotals, error) {
	var totals accounts.LedgerTotals
	r.store.read(func(st *state) {
		rows := st.chain(tenantID, accountID)
		for _, e := range rows {
			switch {
			case rng.From != nil && e.Date.Before(*rng.From):
				totals.BeforeDebit += e.Debit
				totals.BeforeCredit += e.Credit
			case rng.Contains(e.Date):
				totals.Debit += e.Debit
				totals.Credit += e.Credit
				totals.Entries++
			}
		}
		if len(rows) > 0 {
			totals.Current = rows[len(rows)-1].Balance
		}
	})
	return totals, nil
}

type accountTx struct {
	st *state
}

func (t *accountTx) GetAccount(_ context.Context, tenantID uuid.UUID, id int64) (accounts.Account, error) {
	return t.st.account(tenantID, id)
}

func (t *accountTx) GetAccountForUpdate(ctx context.Context, tenantID uuid.UUID, id int64) (accounts.Account, error) {
	return t.GetAccount(ctx, tenantID, id)
}

// LockHierarchy is a no-op: transactions already run one at a time.
func (t *accountTx) LockHierarchy(context.Context, uuid.UUID) error {
	return nil
}

func (t *accountTx) FindByCode(_ context.Context, tenantID uuid.UUID, code string) (accounts.Account, error) {
	for _, a := range t.st.accounts {
		if a.TenantID == tenantID && a.Code == code {
			return a, nil
		}
	}
	return accounts.Account{}, shared.ErrAccountNotFound
}

func (t *accountTx) InsertAccount(ctx context.Context, a accounts.Account) (accounts.Account, error) {
	if _, err := t.FindByCode(ctx, a.TenantID, a.Code); err == nil {
		return accounts.Account{}, shared.ErrDuplicateCode
	}
	t.st.nextAccountID++
	now := time.Now().UTC()
	a.ID = t.st.nextAccountID
	a.CreatedAt = now
	a.UpdatedAt = now
	t.st.accounts[a.ID] = a
	return a, nil
}

func (t *accountTx) UpdateAccount(_ context.Context, a accounts.Account) (accounts.Account, error) {
	current, err := t.st.account(a.TenantID, a.ID)
	if err != nil {
		return accounts.Account{}, err
	}
	for _, other := range t.st.accounts {
		if other.ID != a.ID && other.TenantID == a.TenantID && other.Code == a.Code {
			return accounts.Account{}, shared.ErrDuplicateCode
		}
	}
	current.Code = a.Code
	current.Name = a.Name
	current.Category = a.Category
	current.ParentID = a.ParentID
	current.IsActive = a.IsActive
	current.UpdatedAt = time.Now().UTC()
	t.st.accounts[a.ID] = current
	return current, nil
}

func (t *accountTx) DeleteAccount(_ context.Context, tenantID uuid.UUID, id int64) error {
	if _, err := t.st.account(tenantID, id); err != nil {
		return err
	}
	delete(t.st.accounts, id)
	return nil
}

func (t *accountTx) Usage(_ context.Context, tenantID uuid.UUID, id int64) (accounts.Usage, error) {
	var u accounts.Usage
	for _, a := range t.st.accounts {
		if a.TenantID == tenantID && a.ParentID != nil && *a.ParentID == id {
			u.Children++
		}
	}
	for _, e := range t.st.entries {
		if e.TenantID != tenantID {
			continue
		}
		for _, l := range e.Lines {
			if l.AccountID == id {
				u.JournalLines++
			}
		}
	}
	for _, e := range t.st.ledger {
		if e.TenantID == tenantID && e.AccountID == id {
			u.LedgerEntries++
		}
	}
	return u, nil
}
