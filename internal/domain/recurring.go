/**
 * @description
 * This file defines the recurring transaction schedule model: a template
 * from which the recurring executor generates ledger transactions, plus the
 * pure date arithmetic for advancing a schedule's next-due pointer.
 */
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Frequency is the unit of a schedule's recurrence interval.
type Frequency string

const (
	FrequencyDaily   Frequency = "DAILY"
	FrequencyWeekly  Frequency = "WEEKLY"
	FrequencyMonthly Frequency = "MONTHLY"
	FrequencyYearly  Frequency = "YEARLY"
)

// EndType describes how a schedule terminates.
type EndType string

const (
	// EndNever keeps the schedule running until deactivated by the user.
	EndNever EndType = "NEVER"
	// EndAfterOccurrences deactivates after a fixed number of postings.
	EndAfterOccurrences EndType = "AFTER_OCCURRENCES"
	// EndUntilDate deactivates once the next due date passes a cutoff.
	EndUntilDate EndType = "UNTIL_DATE"
)

// RecurringSchedule is a user-defined template for generated transactions
// (subscriptions, installments). NextDue only ever moves forward; a schedule
// past its end condition is deactivated and excluded from future scans.
type RecurringSchedule struct {
	ID              uuid.UUID  `json:"id"`
	Amount          int64      `json:"amount"`
	Category        string     `json:"category"`
	Description     string     `json:"description"`
	DebitAccountID  uuid.UUID  `json:"debit_account_id"`
	CreditAccountID uuid.UUID  `json:"credit_account_id"`
	Frequency       Frequency  `json:"frequency"`
	Interval        int        `json:"interval"`
	NextDue         time.Time  `json:"next_due"`
	EndType         EndType    `json:"end_type"`
	EndAfter        int        `json:"end_after,omitempty"`
	EndUntil        *time.Time `json:"end_until,omitempty"`
	Active          bool       `json:"active"`
	Occurrences     int        `json:"occurrences"`
}

// Advance returns the due date one interval after from.
func (s RecurringSchedule) Advance(from time.Time) time.Time {
	step := s.Interval
	if step < 1 {
		step = 1
	}
	switch s.Frequency {
	case FrequencyDaily:
		return from.AddDate(0, 0, step)
	case FrequencyWeekly:
		return from.AddDate(0, 0, 7*step)
	case FrequencyYearly:
		return from.AddDate(step, 0, 0)
	default:
		return from.AddDate(0, step, 0)
	}
}

// Ended reports whether the schedule's end condition has been reached given
// its current occurrence count and next due date.
func (s RecurringSchedule) Ended() bool {
	switch s.EndType {
	case EndAfterOccurrences:
		return s.Occurrences >= s.EndAfter
	case EndUntilDate:
		return s.EndUntil != nil && s.NextDue.After(*s.EndUntil)
	}
	return false
}
