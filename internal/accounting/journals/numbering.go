package journals

import (
	"fmt"
	"time"
)

// DocTypeJournalEntry is the document_sequences key for journal entries.
const DocTypeJournalEntry = "JE"

// FormatEntryNumber renders JE-<year>-<4-digit-sequence>.
func FormatEntryNumber(year int, seq int64) string {
	return fmt.Sprintf("%s-%d-%04d", DocTypeJournalEntry, year, seq)
}

// EntryYear is the numbering year of an entry dated d.
func EntryYear(d time.Time) int {
	return d.UTC().Year()
}
