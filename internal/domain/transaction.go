/**
 * @description
 * This file defines the immutable double-entry transaction model. A
 * transaction moves Amount from the credit account to the debit account:
 * posting increments the debit side's balance and decrements the credit
 * side's balance in the same atomic unit.
 */
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Transaction is one immutable ledger line. Amount is a positive integer in
// minor currency units. Once created a transaction's amount and accounts are
// never mutated; automation engines never delete transactions.
type Transaction struct {
	ID              uuid.UUID `json:"id"`
	Amount          int64     `json:"amount"`
	DebitAccountID  uuid.UUID `json:"debit_account_id"`
	CreditAccountID uuid.UUID `json:"credit_account_id"`
	Date            time.Time `json:"date"`
	Description     string    `json:"description"`
	Category        string    `json:"category"`
	// IdempotencyKey is unique when present; replaying a post with the same
	// key returns this transaction instead of creating another.
	IdempotencyKey *string   `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// BalanceDelta returns the signed effect of the transaction on the given
// account's balance: +Amount on the debit side, -Amount on the credit side,
// zero for unrelated accounts.
func (t Transaction) BalanceDelta(accountID uuid.UUID) int64 {
	switch accountID {
	case t.DebitAccountID:
		return t.Amount
	case t.CreditAccountID:
		return -t.Amount
	}
	return 0
}
