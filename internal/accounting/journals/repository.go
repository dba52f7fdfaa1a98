package journals

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Repository encapsulates DB operations for journals.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, tenantID uuid.UUID, id int64) (JournalEntry, error)
	List(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]JournalEntry, int, error)
	Statistics(ctx context.Context, tenantID uuid.UUID, rng shared.DateRange) ([]StatisticsRow, error)
}

// TxRepository exposes methods available within a transaction. It embeds
// ledger.Tx so the poster runs in the same transaction as the status change.
type TxRepository interface {
	ledger.Tx
	GetAccounts(ctx context.Context, tenantID uuid.UUID, ids []int64) (map[int64]accounts.Account, error)
	NextSequence(ctx context.Context, tenantID uuid.UUID, docType string, year int) (int64, error)
	InsertEntry(ctx context.Context, e JournalEntry) (JournalEntry, error)
	GetEntryForUpdate(ctx context.Context, tenantID uuid.UUID, id int64) (JournalEntry, error)
	UpdateDraft(ctx context.Context, e JournalEntry) (JournalEntry, error)
	MarkPosted(ctx context.Context, tenantID uuid.UUID, id, actorID int64, at time.Time) error
	MarkReversed(ctx context.Context, tenantID uuid.UUID, id, actorID int64, at time.Time, reversalID int64) error
	DeleteEntry(ctx context.Context, tenantID uuid.UUID, id int64) error
}

const entryColumns = `id, tenant_id, number, date, description, type, status, total_debit, total_credit, created_by,
posted_by, posted_at, reversed_by, reversed_at, reversed_by_entry_id, reversal_of_id, created_at, updated_at`

const lineColumns = `id, journal_entry_id, line_number, account_id, description, debit, credit, department_id, project_id, cost_center_id, created_at`

const ledgerColumns = `id, tenant_id, account_id, seq, date, description, debit, credit, balance, reference_type, reference_id, journal_line_id, created_at`

const uqLedgerSeq = "uq_ledger_entries_account_seq"

type queryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs the pgx-backed journal repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return shared.FromStore(db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	}))
}

func (r *repository) Get(ctx context.Context, tenantID uuid.UUID, id int64) (JournalEntry, error) {
	entry, err := loadEntry(ctx, r.db, tenantID, id, false)
	if err != nil {
		return JournalEntry{}, shared.FromStore(err)
	}
	rows, err := r.db.Query(ctx, `SELECT `+ledgerColumns+` FROM ledger_entries
WHERE tenant_id=$1 AND reference_type=$2 AND reference_id=$3 ORDER BY id`, tenantID, ledger.ReferenceJournalEntry, id)
	if err != nil {
		return JournalEntry{}, shared.FromStore(err)
	}
	defer rows.Close()
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return JournalEntry{}, shared.FromStore(err)
		}
		entry.LedgerEntries = append(entry.LedgerEntries, e)
	}
	return entry, shared.FromStore(rows.Err())
}

func (r *repository) List(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]JournalEntry, int, error) {
	where, args := listWhere(tenantID, filter)
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM journal_entries WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, shared.FromStore(err)
	}
	args = append(args, filter.PerPage, internalShared.Offset(filter.Page, filter.PerPage))
	query := fmt.Sprintf(`SELECT %s FROM journal_entries WHERE %s ORDER BY date DESC, id DESC LIMIT $%d OFFSET $%d`,
		entryColumns, where, len(args)-1, len(args))
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, shared.FromStore(err)
	}
	defer rows.Close()
	var entries []JournalEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, shared.FromStore(err)
		}
		entries = append(entries, e)
	}
	return entries, total, shared.FromStore(rows.Err())
}

func listWhere(tenantID uuid.UUID, filter ListFilter) (string, []any) {
	clauses := []string{"tenant_id=$1"}
	args := []any{tenantID}
	add := func(clause string, v any) {
		args = append(args, v)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.Status != "" {
		add("status=$%d", filter.Status)
	}
	if filter.Type != "" {
		add("type=$%d", filter.Type)
	}
	if filter.Range.From != nil {
		add("date >= $%d::date", filter.Range.From.Format(time.DateOnly))
	}
	if filter.Range.To != nil {
		add("date <= $%d::date", filter.Range.To.Format(time.DateOnly))
	}
	return strings.Join(clauses, " AND "), args
}

func (r *repository) Statistics(ctx context.Context, tenantID uuid.UUID, rng shared.DateRange) ([]StatisticsRow, error) {
	where, args := listWhere(tenantID, ListFilter{Range: rng})
	rows, err := r.db.Query(ctx, `SELECT status, type, COUNT(*), COALESCE(SUM(total_debit),0), COALESCE(SUM(total_credit),0)
FROM journal_entries WHERE `+where+` GROUP BY status, type ORDER BY status, type`, args...)
	if err != nil {
		return nil, shared.FromStore(err)
	}
	defer rows.Close()
	var out []StatisticsRow
	for rows.Next() {
		var (
			row           StatisticsRow
			debit, credit decimal.Decimal
		)
		if err := rows.Scan(&row.Status, &row.Type, &row.Count, &debit, &credit); err != nil {
			return nil, shared.FromStore(err)
		}
		row.TotalDebit = shared.AmountFromNumeric(debit)
		row.TotalCredit = shared.AmountFromNumeric(credit)
		out = append(out, row)
	}
	return out, shared.FromStore(rows.Err())
}

type txRepository struct {
	tx pgx.Tx
}

// LockAccounts locks ids in the order given. Callers pass ascending ids.
func (r *txRepository) LockAccounts(ctx context.Context, tenantID uuid.UUID, ids []int64) (map[int64]accounts.Account, error) {
	out := make(map[int64]accounts.Account, len(ids))
	for _, id := range ids {
		acc, err := accounts.ScanAccount(r.tx.QueryRow(ctx, `SELECT `+accounts.Columns+` FROM accounts WHERE tenant_id=$1 AND id=$2 FOR UPDATE`, tenantID, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				continue
			}
			return nil, err
		}
		out[id] = acc
	}
	return out, nil
}

func (r *txRepository) GetAccounts(ctx context.Context, tenantID uuid.UUID, ids []int64) (map[int64]accounts.Account, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+accounts.Columns+` FROM accounts WHERE tenant_id=$1 AND id = ANY($2)`, tenantID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]accounts.Account, len(ids))
	for rows.Next() {
		acc, err := accounts.ScanAccount(rows)
		if err != nil {
			return nil, err
		}
		out[acc.ID] = acc
	}
	return out, rows.Err()
}

func (r *txRepository) LatestEntry(ctx context.Context, tenantID uuid.UUID, accountID int64) (ledger.Entry, error) {
	e, err := scanLedgerEntry(r.tx.QueryRow(ctx, `SELECT `+ledgerColumns+` FROM ledger_entries
WHERE tenant_id=$1 AND account_id=$2 ORDER BY seq DESC LIMIT 1`, tenantID, accountID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.Entry{}, shared.ErrNoLedgerEntries
		}
		return ledger.Entry{}, err
	}
	return e, nil
}

func (r *txRepository) AppendEntry(ctx context.Context, e ledger.Entry) (ledger.Entry, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO ledger_entries (tenant_id, account_id, seq, date, description, debit, credit, balance, reference_type, reference_id, journal_line_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12) RETURNING id`,
		e.TenantID, e.AccountID, e.Seq, e.Date, e.Description, toNumeric(e.Debit), toNumeric(e.Credit), toNumeric(e.Balance),
		e.ReferenceType, e.ReferenceID, nullInt(e.JournalLineID), e.CreatedAt).Scan(&e.ID)
	if err != nil {
		if shared.IsUniqueViolation(err, uqLedgerSeq) {
			return ledger.Entry{}, shared.Store(err, true)
		}
		return ledger.Entry{}, err
	}
	return e, nil
}

// NextSequence bumps the per-tenant, per-year counter. The row lock taken by
// the upsert is held until the surrounding transaction ends.
func (r *txRepository) NextSequence(ctx context.Context, tenantID uuid.UUID, docType string, year int) (int64, error) {
	var seq int64
	err := r.tx.QueryRow(ctx, `INSERT INTO document_sequences (tenant_id, doc_type, year, seq) VALUES ($1,$2,$3,1)
ON CONFLICT (tenant_id, doc_type, year) DO UPDATE SET seq = document_sequences.seq + 1
RETURNING seq`, tenantID, docType, year).Scan(&seq)
	return seq, err
}

func (r *txRepository) InsertEntry(ctx context.Context, e JournalEntry) (JournalEntry, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO journal_entries (tenant_id, number, date, description, type, status, total_debit, total_credit,
created_by, posted_by, posted_at, reversal_of_id, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$13) RETURNING id`,
		e.TenantID, e.Number, e.Date, e.Description, e.Type, e.Status, toNumeric(e.TotalDebit), toNumeric(e.TotalCredit),
		e.CreatedBy, e.PostedBy, e.PostedAt, e.ReversalOfID, e.CreatedAt).Scan(&e.ID)
	if err != nil {
		return JournalEntry{}, err
	}
	e.UpdatedAt = e.CreatedAt
	lines, err := r.insertLines(ctx, e.ID, e.Lines)
	if err != nil {
		return JournalEntry{}, err
	}
	e.Lines = lines
	return e, nil
}

func (r *txRepository) insertLines(ctx context.Context, entryID int64, lines []JournalLine) ([]JournalLine, error) {
	out := make([]JournalLine, 0, len(lines))
	for _, line := range lines {
		line.JournalEntryID = entryID
		err := r.tx.QueryRow(ctx, `INSERT INTO journal_lines (journal_entry_id, line_number, account_id, description, debit, credit, department_id, project_id, cost_center_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id`,
			entryID, line.LineNumber, line.AccountID, line.Description, toNumeric(line.Debit), toNumeric(line.Credit),
			line.DepartmentID, line.ProjectID, line.CostCenterID, line.CreatedAt).Scan(&line.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, nil
}

func (r *txRepository) GetEntryForUpdate(ctx context.Context, tenantID uuid.UUID, id int64) (JournalEntry, error) {
	return loadEntry(ctx, r.tx, tenantID, id, true)
}

func (r *txRepository) UpdateDraft(ctx context.Context, e JournalEntry) (JournalEntry, error) {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET date=$3, description=$4, type=$5, total_debit=$6, total_credit=$7, updated_at=$8
WHERE tenant_id=$1 AND id=$2 AND status='DRAFT'`,
		e.TenantID, e.ID, e.Date, e.Description, e.Type, toNumeric(e.TotalDebit), toNumeric(e.TotalCredit), e.UpdatedAt)
	if err != nil {
		return JournalEntry{}, err
	}
	if cmd.RowsAffected() == 0 {
		return JournalEntry{}, shared.ErrJournalNotFound
	}
	if _, err := r.tx.Exec(ctx, `DELETE FROM journal_lines WHERE journal_entry_id=$1`, e.ID); err != nil {
		return JournalEntry{}, err
	}
	lines, err := r.insertLines(ctx, e.ID, e.Lines)
	if err != nil {
		return JournalEntry{}, err
	}
	e.Lines = lines
	return e, nil
}

func (r *txRepository) MarkPosted(ctx context.Context, tenantID uuid.UUID, id, actorID int64, at time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET status='POSTED', posted_by=$3, posted_at=$4, updated_at=$4
WHERE tenant_id=$1 AND id=$2 AND status='DRAFT'`, tenantID, id, actorID, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.Statef("accounting: journal entry %d is no longer a draft", id)
	}
	return nil
}

func (r *txRepository) MarkReversed(ctx context.Context, tenantID uuid.UUID, id, actorID int64, at time.Time, reversalID int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET status='REVERSED', reversed_by=$3, reversed_at=$4, reversed_by_entry_id=$5, updated_at=$4
WHERE tenant_id=$1 AND id=$2 AND status='POSTED' AND reversed_by_entry_id IS NULL`, tenantID, id, actorID, at, reversalID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrAlreadyReversed
	}
	return nil
}

func (r *txRepository) DeleteEntry(ctx context.Context, tenantID uuid.UUID, id int64) error {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM journal_entries WHERE tenant_id=$1 AND id=$2 AND status='DRAFT'`, tenantID, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrJournalNotFound
	}
	return nil
}

func loadEntry(ctx context.Context, q queryer, tenantID uuid.UUID, id int64, forUpdate bool) (JournalEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM journal_entries WHERE tenant_id=$1 AND id=$2`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	entry, err := scanEntry(q.QueryRow(ctx, query, tenantID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, shared.ErrJournalNotFound
		}
		return JournalEntry{}, err
	}
	rows, err := q.Query(ctx, `SELECT `+lineColumns+` FROM journal_lines WHERE journal_entry_id=$1 ORDER BY line_number`, id)
	if err != nil {
		return JournalEntry{}, err
	}
	defer rows.Close()
	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return JournalEntry{}, err
		}
		entry.Lines = append(entry.Lines, line)
	}
	return entry, rows.Err()
}

func scanEntry(row pgx.Row) (JournalEntry, error) {
	var (
		e             JournalEntry
		debit, credit decimal.Decimal
	)
	err := row.Scan(&e.ID, &e.TenantID, &e.Number, &e.Date, &e.Description, &e.Type, &e.Status, &debit, &credit, &e.CreatedBy,
		&e.PostedBy, &e.PostedAt, &e.ReversedBy, &e.ReversedAt, &e.ReversedByEntryID, &e.ReversalOfID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return JournalEntry{}, err
	}
	e.TotalDebit = shared.AmountFromNumeric(debit)
	e.TotalCredit = shared.AmountFromNumeric(credit)
	return e, nil
}

func scanLine(row pgx.Row) (JournalLine, error) {
	var (
		l             JournalLine
		debit, credit decimal.Decimal
	)
	err := row.Scan(&l.ID, &l.JournalEntryID, &l.LineNumber, &l.AccountID, &l.Description, &debit, &credit,
		&l.DepartmentID, &l.ProjectID, &l.CostCenterID, &l.CreatedAt)
	if err != nil {
		return JournalLine{}, err
	}
	l.Debit = shared.AmountFromNumeric(debit)
	l.Credit = shared.AmountFromNumeric(credit)
	return l, nil
}

func scanLedgerEntry(row pgx.Row) (ledger.Entry, error) {
	var (
		e                      ledger.Entry
		debit, credit, balance decimal.Decimal
		lineID                 *int64
	)
	err := row.Scan(&e.ID, &e.TenantID, &e.AccountID, &e.Seq, &e.Date, &e.Description, &debit, &credit, &balance,
		&e.ReferenceType, &e.ReferenceID, &lineID, &e.CreatedAt)
	if err != nil {
		return ledger.Entry{}, err
	}
	e.Debit = shared.AmountFromNumeric(debit)
	e.Credit = shared.AmountFromNumeric(credit)
	e.Balance = shared.AmountFromNumeric(balance)
	if lineID != nil {
		e.JournalLineID = *lineID
	}
	return e, nil
}

// ScanLedgerEntry reads one ledger_entries row selected with LedgerColumns.
func ScanLedgerEntry(row pgx.Row) (ledger.Entry, error) {
	return scanLedgerEntry(row)
}

// LedgerColumns is the column list expected by ScanLedgerEntry.
const LedgerColumns = ledgerColumns

func nullInt(val int64) any {
	if val == 0 {
		return nil
	}
	return val
}

func toNumeric(a shared.Amount) any {
	return a.String()
}
