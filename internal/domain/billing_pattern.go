package domain

import "time"

// BillingPatternKind selects how a monthly billing date is derived.
type BillingPatternKind string

const (
	// PatternFixedDay bills on a fixed day-of-month, clamped to the month's
	// last day when the month is shorter.
	PatternFixedDay BillingPatternKind = "fixed_day"
	// PatternNthWeekday bills on the n-th occurrence of a weekday, e.g. the
	// third Friday. Months without that occurrence are skipped.
	PatternNthWeekday BillingPatternKind = "nth_weekday"
)

// BillingPattern describes when within a month a recurring charge falls.
// It is stored as JSONB on the account's admin fee configuration.
type BillingPattern struct {
	Kind    BillingPatternKind `json:"kind"`
	Day     int                `json:"day,omitempty"`
	Weekday time.Weekday       `json:"weekday,omitempty"`
	Nth     int                `json:"nth,omitempty"`
}

// Validate reports whether the pattern is structurally sound.
func (p BillingPattern) Validate() error {
	switch p.Kind {
	case PatternFixedDay:
		if p.Day < 1 || p.Day > 31 {
			return &ConfigurationError{Reason: "fixed_day pattern requires day between 1 and 31"}
		}
	case PatternNthWeekday:
		if p.Nth < 1 || p.Nth > 5 {
			return &ConfigurationError{Reason: "nth_weekday pattern requires nth between 1 and 5"}
		}
		if p.Weekday < time.Sunday || p.Weekday > time.Saturday {
			return &ConfigurationError{Reason: "nth_weekday pattern requires a valid weekday"}
		}
	default:
		return &ConfigurationError{Reason: "unknown billing pattern kind: " + string(p.Kind)}
	}
	return nil
}
