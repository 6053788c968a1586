package domain

import (
	"time"

	"github.com/google/uuid"
)

// Budget is a per-category monthly spending limit. Budgets are consulted by
// the automation run for alerting only; they carry no ledger invariants.
type Budget struct {
	ID       uuid.UUID `json:"id"`
	Category string    `json:"category"`
	Year     int       `json:"year"`
	Month    time.Month `json:"month"`
	Limit    int64     `json:"limit"`
}

// NetWorthSnapshot records assets minus liabilities at the end of one
// automation run, keyed by calendar date.
type NetWorthSnapshot struct {
	Date     time.Time `json:"date"`
	NetWorth int64     `json:"net_worth"`
}
