package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// ChainSource exposes read-only ledger history for integrity sweeps.
type ChainSource interface {
	Tenants(ctx context.Context) ([]uuid.UUID, error)
	Accounts(ctx context.Context, tenantID uuid.UUID) ([]accounts.Account, error)
	Chain(ctx context.Context, tenantID uuid.UUID, accountID int64) ([]Entry, error)
}

// VerifyTenant checks every account chain of the tenant.
func VerifyTenant(ctx context.Context, src ChainSource, tenantID uuid.UUID) ([]Discrepancy, error) {
	accs, err := src.Accounts(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	var out []Discrepancy
	for _, acc := range accs {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		rows, err := src.Chain(ctx, tenantID, acc.ID)
		if err != nil {
			return out, err
		}
		out = append(out, VerifyChain(acc, rows)...)
	}
	return out, nil
}

type chainReader struct {
	db *pgxpool.Pool
}

// NewChainReader returns the pgx-backed ChainSource.
func NewChainReader(db *pgxpool.Pool) ChainSource {
	return &chainReader{db: db}
}

func (r *chainReader) Tenants(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT tenant_id FROM accounts ORDER BY tenant_id`)
	if err != nil {
		return nil, shared.FromStore(err)
	}
	defer rows.Close()
	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, shared.FromStore(err)
		}
		out = append(out, id)
	}
	return out, shared.FromStore(rows.Err())
}

func (r *chainReader) Accounts(ctx context.Context, tenantID uuid.UUID) ([]accounts.Account, error) {
	return accounts.NewRepository(r.db).ListAccounts(ctx, tenantID)
}

func (r *chainReader) Chain(ctx context.Context, tenantID uuid.UUID, accountID int64) ([]Entry, error) {
	rows, err := r.db.Query(ctx, `SELECT id, seq, date, debit, credit, balance, reference_id FROM ledger_entries
WHERE tenant_id=$1 AND account_id=$2 ORDER BY seq`, tenantID, accountID)
	if err != nil {
		return nil, shared.FromStore(err)
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var (
			e                      = Entry{TenantID: tenantID, AccountID: accountID, ReferenceType: ReferenceJournalEntry}
			debit, credit, balance decimal.Decimal
		)
		if err := rows.Scan(&e.ID, &e.Seq, &e.Date, &debit, &credit, &balance, &e.ReferenceID); err != nil {
			return nil, shared.FromStore(err)
		}
		e.Debit = shared.AmountFromNumeric(debit)
		e.Credit = shared.AmountFromNumeric(credit)
		e.Balance = shared.AmountFromNumeric(balance)
		out = append(out, e)
	}
	return out, shared.FromStore(rows.Err())
}
