package shared

import (
	"math"

	"github.com/shopspring/decimal"
)

// AmountScale is the number of minor-unit digits carried by Amount.
const AmountScale = 2

// Amount is a monetary value in minor units (cents). Ledger arithmetic is
// exact integer arithmetic; decimal is only used at the boundaries.
type Amount int64

// Zero is the zero amount.
const Zero Amount = 0

// MaxAmount bounds a single amount: 10 trillion in major units. Sums of
// lines are checked separately with Add and Sub.
const MaxAmount Amount = 1_000_000_000_000_000

var maxMinorUnits = decimal.NewFromInt(int64(MaxAmount))

// ParseAmount parses a decimal string such as "500.00".
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, Validationf("accounting: invalid amount %q", s)
	}
	return AmountFromDecimal(d)
}

// AmountFromDecimal converts d to minor units, rejecting sub-cent precision.
func AmountFromDecimal(d decimal.Decimal) (Amount, error) {
	scaled := d.Shift(AmountScale)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, Validationf("accounting: amount %s has more than %d decimal places", d.String(), AmountScale)
	}
	if scaled.Abs().GreaterThan(maxMinorUnits) {
		return 0, Validationf("accounting: amount %s out of range", d.String())
	}
	return Amount(scaled.IntPart()), nil
}

// MustAmount parses s and panics on error. Intended for tests and fixed tables.
func MustAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Decimal returns the amount as a decimal with two fractional digits.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -AmountScale)
}

func (a Amount) String() string {
	return a.Decimal().StringFixed(AmountScale)
}

// InRange reports whether |a| <= MaxAmount.
func (a Amount) InRange() bool { return a >= -MaxAmount && a <= MaxAmount }

// Add returns a+b, or a ValidationError when the sum overflows int64.
func (a Amount) Add(b Amount) (Amount, error) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, Validationf("accounting: amount overflow adding %s and %s", a, b)
	}
	return a + b, nil
}

// Sub returns a-b, or a ValidationError when the difference overflows int64.
func (a Amount) Sub(b Amount) (Amount, error) {
	if (b < 0 && a > math.MaxInt64+b) || (b > 0 && a < math.MinInt64+b) {
		return 0, Validationf("accounting: amount overflow subtracting %s from %s", b, a)
	}
	return a - b, nil
}

// IsPositive reports whether a > 0.
func (a Amount) IsPositive() bool { return a > 0 }

// IsNegative reports whether a < 0.
func (a Amount) IsNegative() bool { return a < 0 }

// MarshalJSON encodes the amount as a fixed-point decimal string.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON accepts both JSON numbers and decimal strings.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return Validationf("accounting: invalid amount %s", string(data))
	}
	v, err := AmountFromDecimal(d)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// AmountFromNumeric converts a NUMERIC(20,2) column value. The store already
// enforces the scale, so no precision check is made.
func AmountFromNumeric(d decimal.Decimal) Amount {
	return Amount(d.Shift(AmountScale).IntPart())
}
