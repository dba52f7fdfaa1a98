// Package ledger appends posting rows to the per-account running balance chain.
package ledger

import (
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// ReferenceJournalEntry is the reference type stamped on rows created from journal lines.
const ReferenceJournalEntry = "journal_entry"

// Entry is one append-only ledger row.
type Entry struct {
	ID            int64         `json:"id"`
	TenantID      uuid.UUID     `json:"tenant_id"`
	AccountID     int64         `json:"account_id"`
	Seq           int64         `json:"seq"`
	Date          time.Time     `json:"date"`
	Description   string        `json:"description"`
	Debit         shared.Amount `json:"debit"`
	Credit        shared.Amount `json:"credit"`
	Balance       shared.Amount `json:"balance"`
	ReferenceType string        `json:"reference_type"`
	ReferenceID   int64         `json:"reference_id"`
	JournalLineID int64         `json:"journal_line_id"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Line is one journal line handed to the poster.
type Line struct {
	JournalLineID int64
	LineNumber    int
	AccountID     int64
	Description   string
	Debit         shared.Amount
	Credit        shared.Amount
}

// Posting is a balanced journal entry ready to hit the ledger.
type Posting struct {
	TenantID       uuid.UUID
	JournalEntryID int64
	Date           time.Time
	Description    string
	Lines          []Line
}
