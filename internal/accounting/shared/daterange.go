package shared

import "time"

// DateRange bounds a query by entry date. Nil bounds are open; both bounds are inclusive.
type DateRange struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`
}

// Validate rejects inverted ranges.
func (r DateRange) Validate() error {
	if r.From != nil && r.To != nil && r.To.Before(*r.From) {
		return Validationf("accounting: date range end %s is before start %s", r.To.Format(time.DateOnly), r.From.Format(time.DateOnly))
	}
	return nil
}

// Contains reports whether t falls within the range.
func (r DateRange) Contains(t time.Time) bool {
	if r.From != nil && t.Before(*r.From) {
		return false
	}
	if r.To != nil && t.After(*r.To) {
		return false
	}
	return true
}

// Key renders the range for cache keys.
func (r DateRange) Key() string {
	from, to := "-", "-"
	if r.From != nil {
		from = r.From.Format(time.DateOnly)
	}
	if r.To != nil {
		to = r.To.Format(time.DateOnly)
	}
	return from + ".." + to
}

// DateOnly truncates t to midnight UTC.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDateRange parses optional YYYY-MM-DD bounds.
func ParseDateRange(from, to string) (DateRange, error) {
	var r DateRange
	for _, b := range []struct {
		raw string
		dst **time.Time
	}{{from, &r.From}, {to, &r.To}} {
		if b.raw == "" {
			continue
		}
		t, err := time.Parse(time.DateOnly, b.raw)
		if err != nil {
			return DateRange{}, Validationf("accounting: invalid date %q", b.raw)
		}
		*b.dst = &t
	}
	return r, r.Validate()
}
