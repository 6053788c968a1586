/**
 * @description
 * Billing date arithmetic: given a billing pattern and a reference date,
 * compute the pattern's occurrence within the reference date's month. Pure
 * and deterministic; the returned date always falls inside that month.
 */
package billing

import (
	"time"

	"github.com/rroihans/dompetku-sub003/internal/domain"
)

// NextOccurrence computes the billing occurrence of pattern within the
// calendar month containing ref, at midnight in ref's location.
//
// FIXED_DAY patterns clamp to the month's last day when the configured day
// exceeds the month's length (day 31 in April bills on the 30th).
// NTH_WEEKDAY patterns return domain.ErrNoSuchBillingDate when the month has
// no n-th occurrence of the weekday; callers treat that as skip-this-month.
func NextOccurrence(pattern domain.BillingPattern, ref time.Time) (time.Time, error) {
	if err := pattern.Validate(); err != nil {
		return time.Time{}, err
	}

	year, month := ref.Year(), ref.Month()
	loc := ref.Location()
	lastDay := time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()

	switch pattern.Kind {
	case domain.PatternFixedDay:
		day := pattern.Day
		if day > lastDay {
			day = lastDay
		}
		return time.Date(year, month, day, 0, 0, 0, 0, loc), nil

	case domain.PatternNthWeekday:
		count := 0
		for day := 1; day <= lastDay; day++ {
			d := time.Date(year, month, day, 0, 0, 0, 0, loc)
			if d.Weekday() != pattern.Weekday {
				continue
			}
			count++
			if count == pattern.Nth {
				return d, nil
			}
		}
		return time.Time{}, domain.ErrNoSuchBillingDate
	}

	// Validate covers unknown kinds; unreachable.
	return time.Time{}, &domain.ConfigurationError{Reason: "unknown billing pattern kind"}
}
