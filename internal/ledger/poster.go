/**
 * @description
 * The ledger poster is the single write path into the double-entry ledger.
 * Every transaction the automation engines (or handlers) create goes through
 * Post, which validates the request, replays idempotency keys, and delegates
 * to the store's one atomic commit so the transaction row and both balance
 * updates always move together.
 */
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rroihans/dompetku-sub003/internal/domain"
	"github.com/rroihans/dompetku-sub003/internal/store"
)

// EventsExchange is the topic exchange automation events are published to.
const EventsExchange = "dompetku.events"

// Store defines the database operations the poster needs.
type Store interface {
	FindTransactionByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error)
	CreateLedgerEntry(ctx context.Context, txn *domain.Transaction, auditMessage string) (*domain.Transaction, error)
}

// Publisher defines the interface for publishing events. A nil Publisher
// disables publishing.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
}

// PostRequest describes one posting. Amount moves from the credit account to
// the debit account. IdempotencyKey is optional; when set, a replay with the
// same key returns the original transaction instead of posting again.
type PostRequest struct {
	DebitAccountID  uuid.UUID
	CreditAccountID uuid.UUID
	Amount          int64
	Date            time.Time
	Description     string
	Category        string
	IdempotencyKey  string
}

// PostResult is the outcome of a posting. Duplicate is true when the request
// replayed an existing idempotency key and no balances were touched.
type PostResult struct {
	Transaction *domain.Transaction
	Duplicate   bool
}

// Poster is the atomic posting primitive.
type Poster struct {
	store     Store
	publisher Publisher
	logger    *slog.Logger
}

// NewPoster creates a new Poster. publisher may be nil.
func NewPoster(store Store, publisher Publisher, logger *slog.Logger) *Poster {
	return &Poster{store: store, publisher: publisher, logger: logger}
}

// Post creates a ledger transaction and applies both balance updates in one
// atomic unit, or fails entirely.
func (p *Poster) Post(ctx context.Context, req PostRequest) (*PostResult, error) {
	if req.Amount <= 0 {
		return nil, &domain.ValidationError{Reason: fmt.Sprintf("amount must be positive, got %d", req.Amount)}
	}
	if req.DebitAccountID == req.CreditAccountID {
		return nil, &domain.ValidationError{Reason: "debit and credit accounts must differ"}
	}

	if req.IdempotencyKey != "" {
		existing, err := p.store.FindTransactionByIdempotencyKey(ctx, req.IdempotencyKey)
		if err == nil {
			p.logger.Info("idempotency key replay, returning existing transaction",
				"idempotency_key", req.IdempotencyKey, "transaction_id", existing.ID)
			return &PostResult{Transaction: existing, Duplicate: true}, nil
		}
		if !errors.Is(err, store.ErrTransactionNotFound) {
			return nil, &domain.PersistenceError{Op: "idempotency lookup", Err: err}
		}
	}

	txn := &domain.Transaction{
		ID:              uuid.New(),
		Amount:          req.Amount,
		DebitAccountID:  req.DebitAccountID,
		CreditAccountID: req.CreditAccountID,
		Date:            req.Date,
		Description:     req.Description,
		Category:        req.Category,
	}
	if req.IdempotencyKey != "" {
		key := req.IdempotencyKey
		txn.IdempotencyKey = &key
	}

	auditMessage := fmt.Sprintf("posted %d: %s", req.Amount, req.Description)
	created, err := p.store.CreateLedgerEntry(ctx, txn, auditMessage)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateIdempotencyKey) {
			// Lost a race with a concurrent posting of the same key; the
			// winner's transaction is the canonical one.
			existing, lookupErr := p.store.FindTransactionByIdempotencyKey(ctx, req.IdempotencyKey)
			if lookupErr != nil {
				return nil, &domain.PersistenceError{Op: "duplicate key lookup", Err: lookupErr}
			}
			return &PostResult{Transaction: existing, Duplicate: true}, nil
		}
		if errors.Is(err, store.ErrAccountNotFound) {
			return nil, err
		}
		return nil, &domain.PersistenceError{Op: "ledger commit", Err: err}
	}

	p.logger.Info("transaction posted",
		"transaction_id", created.ID,
		"amount", created.Amount,
		"debit_account", created.DebitAccountID,
		"credit_account", created.CreditAccountID,
	)
	p.publishPosted(ctx, created)

	return &PostResult{Transaction: created}, nil
}

func (p *Poster) publishPosted(ctx context.Context, txn *domain.Transaction) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.Publish(ctx, EventsExchange, "ledger.posted", txn); err != nil {
		// Event fan-out is best-effort; the ledger write already committed.
		p.logger.Warn("failed to publish ledger.posted event", "transaction_id", txn.ID, "error", err)
	}
}
