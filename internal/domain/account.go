/**
 * @description
 * This file defines the core account model for the bookkeeping service.
 * Accounts are double-entry buckets: user-facing asset/liability accounts
 * (bank, e-wallet, cash, credit card) plus internal income/expense buckets
 * that the automation engines post against.
 */
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountClass categorizes an account bucket.
type AccountClass string

const (
	ClassBank       AccountClass = "BANK"
	ClassEWallet    AccountClass = "E_WALLET"
	ClassCash       AccountClass = "CASH"
	ClassCreditCard AccountClass = "CREDIT_CARD"
	ClassIncome     AccountClass = "INCOME"
	ClassExpense    AccountClass = "EXPENSE"
)

// AssetClasses are the classes counted as assets in the net-worth snapshot.
var AssetClasses = []AccountClass{ClassBank, ClassEWallet, ClassCash}

// LiabilityClasses are the classes counted as liabilities in the net-worth snapshot.
var LiabilityClasses = []AccountClass{ClassCreditCard}

// Account represents a ledger account. Balance is held in integer minor
// currency units; monetary values never touch floating point.
type Account struct {
	ID        uuid.UUID    `json:"id"`
	Name      string       `json:"name"`
	Class     AccountClass `json:"class"`
	Balance   int64        `json:"balance"`
	CreatedAt time.Time    `json:"created_at"`

	// AdminFee and Interest are only meaningful for BANK/E_WALLET accounts.
	AdminFee *AdminFeeConfig `json:"admin_fee,omitempty"`
	Interest *InterestConfig `json:"interest,omitempty"`
}

// AdminFeeConfig carries the per-account monthly admin fee settings.
type AdminFeeConfig struct {
	Enabled bool           `json:"enabled"`
	Amount  int64          `json:"amount"`
	Pattern BillingPattern `json:"pattern"`
	// LastChargedPeriod is the idempotency gate: the most recent year+month
	// for which the fee has already been posted. Nil means never charged.
	LastChargedPeriod *Period `json:"last_charged_period,omitempty"`
}

// InterestConfig carries the per-account tiered interest settings.
type InterestConfig struct {
	Enabled bool           `json:"enabled"`
	Tiers   []InterestTier `json:"tiers"`
	// LastCreditedPeriod is the idempotency gate for interest accrual.
	LastCreditedPeriod *Period `json:"last_credited_period,omitempty"`
}

// InterestTier is one balance range with an annual rate. Max == nil means
// the tier is unbounded above. Tiers on an account must be sorted ascending
// by Min and must not overlap.
type InterestTier struct {
	Min               int64           `json:"min"`
	Max               *int64          `json:"max,omitempty"`
	AnnualRatePercent decimal.Decimal `json:"annual_rate_percent"`
}

// Contains reports whether balance falls inside the tier's inclusive range.
func (t InterestTier) Contains(balance int64) bool {
	if balance < t.Min {
		return false
	}
	return t.Max == nil || balance <= *t.Max
}
