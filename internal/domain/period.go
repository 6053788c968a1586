package domain

import (
	"fmt"
	"time"
)

// Period identifies a calendar year+month. It is the unit the automation
// engines use for their idempotency gates: a fee or interest credit is
// processed at most once per Period, regardless of which day the engine
// actually runs.
type Period struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

// PeriodOf returns the period containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// ParsePeriod parses the canonical "YYYY-MM" form used in storage.
func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Period{}, fmt.Errorf("invalid period %q: %w", s, err)
	}
	return Period{Year: t.Year(), Month: t.Month()}, nil
}

// String renders the canonical "YYYY-MM" form.
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// Previous returns the immediately preceding calendar month.
func (p Period) Previous() Period {
	if p.Month == time.January {
		return Period{Year: p.Year - 1, Month: time.December}
	}
	return Period{Year: p.Year, Month: p.Month - 1}
}

// Start returns midnight on the first day of the period in loc.
func (p Period) Start(loc *time.Location) time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, loc)
}

// End returns midnight on the first day of the following period in loc.
// The period covers [Start, End).
func (p Period) End(loc *time.Location) time.Time {
	return p.Start(loc).AddDate(0, 1, 0)
}

// Days returns the number of calendar days in the period.
func (p Period) Days() int {
	// Day zero of the next month is the last day of this month.
	return time.Date(p.Year, p.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Equal reports whether two periods identify the same year+month.
func (p Period) Equal(other Period) bool {
	return p.Year == other.Year && p.Month == other.Month
}
