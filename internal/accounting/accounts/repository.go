package accounts

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// Repository persists chart of accounts data.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListAccounts(ctx context.Context, tenantID uuid.UUID) ([]Account, error)
	GetAccount(ctx context.Context, tenantID uuid.UUID, id int64) (Account, error)
	LedgerTotals(ctx context.Context, tenantID uuid.UUID, accountID int64, rng shared.DateRange) (LedgerTotals, error)
}

// TxRepository exposes account operations inside a transaction.
type TxRepository interface {
	GetAccount(ctx context.Context, tenantID uuid.UUID, id int64) (Account, error)
	GetAccountForUpdate(ctx context.Context, tenantID uuid.UUID, id int64) (Account, error)
	FindByCode(ctx context.Context, tenantID uuid.UUID, code string) (Account, error)
	InsertAccount(ctx context.Context, a Account) (Account, error)
	UpdateAccount(ctx context.Context, a Account) (Account, error)
	DeleteAccount(ctx context.Context, tenantID uuid.UUID, id int64) error
	Usage(ctx context.Context, tenantID uuid.UUID, id int64) (Usage, error)
	// LockHierarchy serialises parent changes for a tenant until the transaction ends.
	LockHierarchy(ctx context.Context, tenantID uuid.UUID) error
}

const accountColumns = `id, tenant_id, code, name, type, category, normal_balance, parent_id, is_active, is_system, created_at, updated_at`

const uqAccountsCode = "uq_accounts_tenant_code"

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs the pgx-backed account repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return shared.FromStore(db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	}))
}

func (r *repository) ListAccounts(ctx context.Context, tenantID uuid.UUID) ([]Account, error) {
	rows, err := r.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE tenant_id=$1 ORDER BY code`, tenantID)
	if err != nil {
		return nil, shared.FromStore(err)
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, shared.FromStore(err)
		}
		accounts = append(accounts, a)
	}
	return accounts, shared.FromStore(rows.Err())
}

func (r *repository) GetAccount(ctx context.Context, tenantID uuid.UUID, id int64) (Account, error) {
	return getAccount(ctx, r.db, tenantID, id, false)
}

func (r *repository) LedgerTotals(ctx context.Context, tenantID uuid.UUID, accountID int64, rng shared.DateRange) (LedgerTotals, error) {
	var (
		beforeDebit, beforeCredit, debit, credit decimal.Decimal
		totals                                   LedgerTotals
	)
	err := r.db.QueryRow(ctx, `SELECT
	COALESCE(SUM(debit) FILTER (WHERE $3::date IS NOT NULL AND date < $3::date), 0),
	COALESCE(SUM(credit) FILTER (WHERE $3::date IS NOT NULL AND date < $3::date), 0),
	COALESCE(SUM(debit) FILTER (WHERE ($3::date IS NULL OR date >= $3::date) AND ($4::date IS NULL OR date <= $4::date)), 0),
	COALESCE(SUM(credit) FILTER (WHERE ($3::date IS NULL OR date >= $3::date) AND ($4::date IS NULL OR date <= $4::date)), 0),
	COUNT(*) FILTER (WHERE ($3::date IS NULL OR date >= $3::date) AND ($4::date IS NULL OR date <= $4::date))
FROM ledger_entries WHERE tenant_id=$1 AND account_id=$2`, tenantID, accountID, nullDate(rng.From), nullDate(rng.To)).
		Scan(&beforeDebit, &beforeCredit, &debit, &credit, &totals.Entries)
	if err != nil {
		return LedgerTotals{}, shared.FromStore(err)
	}
	var current decimal.Decimal
	err = r.db.QueryRow(ctx, `SELECT balance FROM ledger_entries WHERE tenant_id=$1 AND account_id=$2 ORDER BY seq DESC LIMIT 1`, tenantID, accountID).Scan(&current)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return LedgerTotals{}, shared.FromStore(err)
	}
	totals.BeforeDebit = shared.AmountFromNumeric(beforeDebit)
	totals.BeforeCredit = shared.AmountFromNumeric(beforeCredit)
	totals.Debit = shared.AmountFromNumeric(debit)
	totals.Credit = shared.AmountFromNumeric(credit)
	totals.Current = shared.AmountFromNumeric(current)
	return totals, nil
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetAccount(ctx context.Context, tenantID uuid.UUID, id int64) (Account, error) {
	return getAccount(ctx, r.tx, tenantID, id, false)
}

func (r *txRepository) GetAccountForUpdate(ctx context.Context, tenantID uuid.UUID, id int64) (Account, error) {
	return getAccount(ctx, r.tx, tenantID, id, true)
}

func (r *txRepository) LockHierarchy(ctx context.Context, tenantID uuid.UUID) error {
	_, err := r.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, "accounts.hierarchy:"+tenantID.String())
	return shared.FromStore(err)
}

func (r *txRepository) FindByCode(ctx context.Context, tenantID uuid.UUID, code string) (Account, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE tenant_id=$1 AND code=$2`, tenantID, code)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

func (r *txRepository) InsertAccount(ctx context.Context, a Account) (Account, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO accounts (tenant_id, code, name, type, category, normal_balance, parent_id, is_active, is_system)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id, created_at, updated_at`,
		a.TenantID, a.Code, a.Name, a.Type, a.Category, a.NormalBalance, a.ParentID, a.IsActive, a.IsSystem)
	if err := row.Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if shared.IsUniqueViolation(err, uqAccountsCode) {
			return Account{}, shared.ErrDuplicateCode
		}
		return Account{}, err
	}
	return a, nil
}

func (r *txRepository) UpdateAccount(ctx context.Context, a Account) (Account, error) {
	err := r.tx.QueryRow(ctx, `UPDATE accounts SET code=$3, name=$4, category=$5, parent_id=$6, is_active=$7, updated_at=NOW()
WHERE tenant_id=$1 AND id=$2 RETURNING updated_at`, a.TenantID, a.ID, a.Code, a.Name, a.Category, a.ParentID, a.IsActive).Scan(&a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.ErrAccountNotFound
		}
		if shared.IsUniqueViolation(err, uqAccountsCode) {
			return Account{}, shared.ErrDuplicateCode
		}
		return Account{}, err
	}
	return a, nil
}

func (r *txRepository) DeleteAccount(ctx context.Context, tenantID uuid.UUID, id int64) error {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM accounts WHERE tenant_id=$1 AND id=$2`, tenantID, id)
	if err != nil {
		if shared.IsForeignKeyViolation(err) {
			return shared.Conflictf("accounting: account %d is still referenced", id)
		}
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrAccountNotFound
	}
	return nil
}

func (r *txRepository) Usage(ctx context.Context, tenantID uuid.UUID, id int64) (Usage, error) {
	var u Usage
	err := r.tx.QueryRow(ctx, `SELECT
	(SELECT COUNT(*) FROM accounts WHERE tenant_id=$1 AND parent_id=$2),
	(SELECT COUNT(*) FROM journal_lines WHERE account_id=$2),
	(SELECT COUNT(*) FROM ledger_entries WHERE tenant_id=$1 AND account_id=$2)`, tenantID, id).
		Scan(&u.Children, &u.JournalLines, &u.LedgerEntries)
	return u, err
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getAccount(ctx context.Context, q querier, tenantID uuid.UUID, id int64, forUpdate bool) (Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE tenant_id=$1 AND id=$2`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	a, err := scanAccount(q.QueryRow(ctx, query, tenantID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.ErrAccountNotFound
		}
		return Account{}, shared.FromStore(err)
	}
	return a, nil
}

// ScanAccount reads one accounts row selected with the standard column list.
func ScanAccount(row pgx.Row) (Account, error) {
	return scanAccount(row)
}

// Columns is the column list expected by ScanAccount.
const Columns = accountColumns

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.TenantID, &a.Code, &a.Name, &a.Type, &a.Category, &a.NormalBalance, &a.ParentID, &a.IsActive, &a.IsSystem, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func nullDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.DateOnly)
}
