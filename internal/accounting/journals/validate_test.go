package journals

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

func TestValidateRuleOrder(t *testing.T) {
	cases := []struct {
		name  string
		lines []LineInput
		want  string
	}{
		{"one line", []LineInput{{AccountID: 1, Debit: 100}}, "at least two lines"},
		{"missing account wins over shape", []LineInput{{AccountID: 1, Debit: 100, Credit: 100}, {Credit: 100}}, "must have an account"},
		{"both sides", []LineInput{{AccountID: 1, Debit: 100, Credit: 5}, {AccountID: 2, Credit: 95}}, "cannot have both"},
		{"neither side", []LineInput{{AccountID: 1}, {AccountID: 2, Credit: 100}}, "must have either"},
		{"negative", []LineInput{{AccountID: 1, Debit: -100}, {AccountID: 2, Credit: -100}}, "cannot be negative"},
		{"unbalanced", []LineInput{{AccountID: 1, Debit: 50000}, {AccountID: 2, Credit: 40000}}, "must be balanced"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Validate(Draft{Lines: tc.lines})
			if err == nil {
				t.Fatalf("expected error")
			}
			if !errors.Is(err, shared.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in %q", tc.want, err.Error())
			}
		})
	}
}

func TestValidateUnbalancedMatchesSentinel(t *testing.T) {
	_, err := Validate(Draft{Lines: []LineInput{{AccountID: 1, Debit: 50000}, {AccountID: 2, Credit: 40000}}})
	if !errors.Is(err, shared.ErrUnbalanced) {
		t.Fatalf("expected ErrUnbalanced, got %v", err)
	}
	if !strings.Contains(err.Error(), "debit 500.00, credit 400.00") {
		t.Fatalf("expected totals in message, got %q", err.Error())
	}
}

func TestValidateExactTotals(t *testing.T) {
	totals, err := Validate(Draft{Lines: []LineInput{
		{AccountID: 1, Debit: shared.MustAmount("0.10")},
		{AccountID: 1, Debit: shared.MustAmount("0.20")},
		{AccountID: 2, Credit: shared.MustAmount("0.30")},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if totals.Debit != totals.Credit || totals.Debit != 30 {
		t.Fatalf("unexpected totals %+v", totals)
	}
	// one cent off is unbalanced; there is no tolerance
	_, err = Validate(Draft{Lines: []LineInput{{AccountID: 1, Debit: 1001}, {AccountID: 2, Credit: 1000}}})
	if !errors.Is(err, shared.ErrUnbalanced) {
		t.Fatalf("expected ErrUnbalanced, got %v", err)
	}
}

func TestValidateRejectsAmountsThatWouldWrap(t *testing.T) {
	// real totals are 2^64 and 2^65; int64 sums would both wrap to zero
	maxed := shared.Amount(math.MaxInt64)
	_, err := Validate(Draft{Lines: []LineInput{
		{AccountID: 1, Debit: maxed},
		{AccountID: 1, Debit: maxed},
		{AccountID: 1, Debit: 2},
		{AccountID: 2, Credit: maxed},
		{AccountID: 2, Credit: maxed},
		{AccountID: 2, Credit: maxed},
		{AccountID: 2, Credit: maxed},
		{AccountID: 2, Credit: 4},
	}})
	if !errors.Is(err, shared.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "line 1 amount exceeds") {
		t.Fatalf("unexpected message %q", err.Error())
	}

	totals, err := Validate(Draft{Lines: []LineInput{
		{AccountID: 1, Debit: shared.MaxAmount},
		{AccountID: 2, Credit: shared.MaxAmount},
	}})
	if err != nil {
		t.Fatalf("the largest single amount must still post: %v", err)
	}
	if totals.Debit != shared.MaxAmount {
		t.Fatalf("unexpected totals %+v", totals)
	}
}
