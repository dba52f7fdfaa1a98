package ledger

import (
	"fmt"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Discrepancy describes one broken link in an account's balance chain.
type Discrepancy struct {
	AccountID int64         `json:"account_id"`
	EntryID   int64         `json:"entry_id"`
	Seq       int64         `json:"seq"`
	Expected  shared.Amount `json:"expected"`
	Actual    shared.Amount `json:"actual"`
	Reason    string        `json:"reason"`
}

func (d Discrepancy) String() string {
	return fmt.Sprintf("account %d seq %d: %s (expected %s, got %s)", d.AccountID, d.Seq, d.Reason, d.Expected, d.Actual)
}

// VerifyChain re-derives every running balance of acc from zero. rows must be
// the account's complete history ordered by seq.
func VerifyChain(acc accounts.Account, rows []Entry) []Discrepancy {
	var (
		out     []Discrepancy
		running shared.Amount
		prevSeq int64
	)
	for _, row := range rows {
		if row.Seq != prevSeq+1 {
			out = append(out, Discrepancy{
				AccountID: acc.ID, EntryID: row.ID, Seq: row.Seq,
				Reason: fmt.Sprintf("sequence gap after seq %d", prevSeq),
			})
		}
		prevSeq = row.Seq
		if row.Debit.IsNegative() || row.Credit.IsNegative() ||
			(row.Debit.IsPositive() == row.Credit.IsPositive()) {
			out = append(out, Discrepancy{
				AccountID: acc.ID, EntryID: row.ID, Seq: row.Seq,
				Expected: shared.Zero, Actual: row.Debit - row.Credit,
				Reason: "row must carry exactly one positive side",
			})
		}
		running += acc.NormalBalance.Delta(row.Debit, row.Credit)
		if row.Balance != running {
			out = append(out, Discrepancy{
				AccountID: acc.ID, EntryID: row.ID, Seq: row.Seq,
				Expected: running, Actual: row.Balance,
				Reason: "running balance mismatch",
			})
			running = row.Balance
		}
	}
	return out
}
