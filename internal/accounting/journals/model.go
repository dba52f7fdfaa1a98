package journals

import (
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// JournalStatus enumerates journal lifecycle values.
type JournalStatus string

const (
	JournalStatusDraft    JournalStatus = "DRAFT"
	JournalStatusPosted   JournalStatus = "POSTED"
	JournalStatusReversed JournalStatus = "REVERSED"
)

// EntryType classifies a journal entry.
type EntryType string

const (
	EntryTypeStandard  EntryType = "STANDARD"
	EntryTypeAdjusting EntryType = "ADJUSTING"
	EntryTypeOpening   EntryType = "OPENING"
	EntryTypeClosing   EntryType = "CLOSING"
)

// Valid reports whether t is a known entry type.
func (t EntryType) Valid() bool {
	switch t {
	case EntryTypeStandard, EntryTypeAdjusting, EntryTypeOpening, EntryTypeClosing:
		return true
	}
	return false
}

// JournalEntry captures one accounting transaction with its lines.
type JournalEntry struct {
	ID                int64          `json:"id"`
	TenantID          uuid.UUID      `json:"tenant_id"`
	Number            string         `json:"number"`
	Date              time.Time      `json:"date"`
	Description       string         `json:"description"`
	Type              EntryType      `json:"type"`
	Status            JournalStatus  `json:"status"`
	TotalDebit        shared.Amount  `json:"total_debit"`
	TotalCredit       shared.Amount  `json:"total_credit"`
	CreatedBy         int64          `json:"created_by"`
	PostedBy          *int64         `json:"posted_by,omitempty"`
	PostedAt          *time.Time     `json:"posted_at,omitempty"`
	ReversedBy        *int64         `json:"reversed_by,omitempty"`
	ReversedAt        *time.Time     `json:"reversed_at,omitempty"`
	ReversedByEntryID *int64         `json:"reversed_by_entry_id,omitempty"`
	ReversalOfID      *int64         `json:"reversal_of_id,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	Lines             []JournalLine  `json:"lines"`
	LedgerEntries     []ledger.Entry `json:"ledger_entries,omitempty"`
}

// JournalLine stores debit or credit amount for an account.
type JournalLine struct {
	ID             int64         `json:"id"`
	JournalEntryID int64         `json:"journal_entry_id"`
	LineNumber     int           `json:"line_number"`
	AccountID      int64         `json:"account_id"`
	Description    string        `json:"description,omitempty"`
	Debit          shared.Amount `json:"debit"`
	Credit         shared.Amount `json:"credit"`
	DepartmentID   *int64        `json:"department_id,omitempty"`
	ProjectID      *int64        `json:"project_id,omitempty"`
	CostCenterID   *int64        `json:"cost_center_id,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// LineInput is one requested line of a draft.
type LineInput struct {
	AccountID    int64
	Description  string
	Debit        shared.Amount
	Credit       shared.Amount
	DepartmentID *int64
	ProjectID    *int64
	CostCenterID *int64
}

// Draft is the caller-supplied content of a journal entry.
type Draft struct {
	Date        time.Time
	Description string
	Type        EntryType
	Lines       []LineInput
}

// Totals are the summed sides of a draft.
type Totals struct {
	Debit  shared.Amount
	Credit shared.Amount
}

// ReverseInput wraps parameters for reversal.
type ReverseInput struct {
	Reason string
	// Date of the reversing entry; today (UTC) when nil.
	Date *time.Time
}

// ReverseResult pairs the reversed original with its reversing entry.
type ReverseResult struct {
	Original JournalEntry `json:"original"`
	Reversal JournalEntry `json:"reversal"`
}

// ListFilter narrows List results.
type ListFilter struct {
	Status  JournalStatus
	Type    EntryType
	Range   shared.DateRange
	Page    int
	PerPage int
}

// ListResult is one page of entries.
type ListResult struct {
	Entries    []JournalEntry            `json:"entries"`
	Pagination internalShared.Pagination `json:"pagination"`
}

// StatisticsRow aggregates entries sharing a status and type.
type StatisticsRow struct {
	Status      JournalStatus `json:"status"`
	Type        EntryType     `json:"type"`
	Count       int64         `json:"count"`
	TotalDebit  shared.Amount `json:"total_debit"`
	TotalCredit shared.Amount `json:"total_credit"`
}

// Statistics summarises a tenant's journal activity over a date range.
type Statistics struct {
	Range        shared.DateRange `json:"range"`
	TotalEntries int64            `json:"total_entries"`
	Rows         []StatisticsRow  `json:"rows"`
}

func linesFromInput(entryID int64, in []LineInput, at time.Time) []JournalLine {
	lines := make([]JournalLine, 0, len(in))
	for i, l := range in {
		lines = append(lines, JournalLine{
			JournalEntryID: entryID,
			LineNumber:     i + 1,
			AccountID:      l.AccountID,
			Description:    l.Description,
			Debit:          l.Debit,
			Credit:         l.Credit,
			DepartmentID:   l.DepartmentID,
			ProjectID:      l.ProjectID,
			CostCenterID:   l.CostCenterID,
			CreatedAt:      at,
		})
	}
	return lines
}

func postingLines(lines []JournalLine) []ledger.Line {
	out := make([]ledger.Line, 0, len(lines))
	for _, l := range lines {
		out = append(out, ledger.Line{
			JournalLineID: l.ID,
			LineNumber:    l.LineNumber,
			AccountID:     l.AccountID,
			Description:   l.Description,
			Debit:         l.Debit,
			Credit:        l.Credit,
		})
	}
	return out
}
