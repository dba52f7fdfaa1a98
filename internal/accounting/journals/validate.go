package journals

import (
	"fmt"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Validate checks the structural rules of a draft without touching the store.
// Rules run in order: line count, account presence, line shape, balance.
func Validate(d Draft) (Totals, error) {
	if len(d.Lines) < 2 {
		return Totals{}, shared.ErrTooFewLines
	}
	for i, line := range d.Lines {
		if line.AccountID <= 0 {
			return Totals{}, shared.Validationf("accounting: line %d must have an account", i+1)
		}
	}
	var totals Totals
	for i, line := range d.Lines {
		n := i + 1
		switch {
		case line.Debit.IsNegative() || line.Credit.IsNegative():
			return Totals{}, shared.Validationf("accounting: line %d amounts cannot be negative", n)
		case line.Debit.IsPositive() && line.Credit.IsPositive():
			return Totals{}, shared.Validationf("accounting: line %d cannot have both debit and credit", n)
		case !line.Debit.IsPositive() && !line.Credit.IsPositive():
			return Totals{}, shared.Validationf("accounting: line %d must have either debit or credit", n)
		case !line.Debit.InRange() || !line.Credit.InRange():
			return Totals{}, shared.Validationf("accounting: line %d amount exceeds %s", n, shared.MaxAmount)
		}
		var err error
		if totals.Debit, err = totals.Debit.Add(line.Debit); err != nil {
			return Totals{}, err
		}
		if totals.Credit, err = totals.Credit.Add(line.Credit); err != nil {
			return Totals{}, err
		}
	}
	if totals.Debit != totals.Credit {
		return Totals{}, fmt.Errorf("%w: debit %s, credit %s", shared.ErrUnbalanced, totals.Debit, totals.Credit)
	}
	return totals, nil
}
