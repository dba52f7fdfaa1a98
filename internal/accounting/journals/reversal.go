package journals

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

var displayPrinter = message.NewPrinter(language.English)

// DisplayAmount renders a with thousands separators, e.g. 1,234.50.
func DisplayAmount(a shared.Amount) string {
	sign := ""
	if a.IsNegative() {
		sign = "-"
		a = -a
	}
	return sign + displayPrinter.Sprintf("%d", int64(a)/100) + fmt.Sprintf(".%02d", int64(a)%100)
}

// ReversalDescription builds the description of the entry reversing original.
func ReversalDescription(original JournalEntry, reason string) string {
	desc := fmt.Sprintf("Reversal of %s", original.Number)
	if reason = strings.TrimSpace(reason); reason != "" {
		desc += ": " + reason
	}
	return desc
}

// MirrorLines copies lines with debit and credit swapped. Accounts, line
// numbers, descriptions and dimensions are preserved.
func MirrorLines(lines []JournalLine, at time.Time) []JournalLine {
	out := make([]JournalLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, JournalLine{
			LineNumber:   l.LineNumber,
			AccountID:    l.AccountID,
			Description:  l.Description,
			Debit:        l.Credit,
			Credit:       l.Debit,
			DepartmentID: l.DepartmentID,
			ProjectID:    l.ProjectID,
			CostCenterID: l.CostCenterID,
			CreatedAt:    at,
		})
	}
	return out
}

// buildReversal prepares the already-posted entry that offsets original.
func buildReversal(original JournalEntry, in ReverseInput, actorID int64, now time.Time) JournalEntry {
	date := shared.DateOnly(now)
	if in.Date != nil {
		date = shared.DateOnly(*in.Date)
	}
	postedBy := actorID
	postedAt := now
	originalID := original.ID
	return JournalEntry{
		TenantID:     original.TenantID,
		Date:         date,
		Description:  ReversalDescription(original, in.Reason),
		Type:         original.Type,
		Status:       JournalStatusPosted,
		TotalDebit:   original.TotalCredit,
		TotalCredit:  original.TotalDebit,
		CreatedBy:    actorID,
		PostedBy:     &postedBy,
		PostedAt:     &postedAt,
		ReversalOfID: &originalID,
		CreatedAt:    now,
		UpdatedAt:    now,
		Lines:        MirrorLines(original.Lines, now),
	}
}
