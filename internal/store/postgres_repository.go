/**
 * @description
 * This file provides the PostgreSQL implementation of the data access layer
 * for the automation core. It contains all SQL for accounts, transactions,
 * recurring schedules, budgets, settings, audit logs and snapshots.
 *
 * The one multi-entity mutation, CreateLedgerEntry, commits the transaction
 * row and both balance updates (plus its audit entry) in a single database
 * transaction with ordered row locks, so a posting either fully applies or
 * not at all.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: PostgreSQL driver and pool.
 * - internal/domain: domain models used for data transfer.
 */

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rroihans/dompetku-sub003/internal/domain"
)

var (
	ErrAccountNotFound         = errors.New("account not found")
	ErrTransactionNotFound     = errors.New("transaction not found")
	ErrScheduleNotFound        = errors.New("recurring schedule not found")
	ErrSettingNotFound         = errors.New("setting not found")
	ErrDuplicateIdempotencyKey = errors.New("idempotency key already used")
)

const pgUniqueViolation = "23505"

// PostgresRepository is the concrete PostgreSQL-backed repository.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const accountColumns = `
	id, name, class, balance, created_at,
	fee_enabled, fee_amount, fee_pattern, last_fee_period,
	interest_enabled, interest_tiers, last_interest_period
`

type accountRow struct {
	id                 uuid.UUID
	name               string
	class              string
	balance            int64
	createdAt          time.Time
	feeEnabled         bool
	feeAmount          *int64
	feePattern         []byte
	lastFeePeriod      *string
	interestEnabled    bool
	interestTiers      []byte
	lastInterestPeriod *string
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var r accountRow
	err := row.Scan(
		&r.id, &r.name, &r.class, &r.balance, &r.createdAt,
		&r.feeEnabled, &r.feeAmount, &r.feePattern, &r.lastFeePeriod,
		&r.interestEnabled, &r.interestTiers, &r.lastInterestPeriod,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return r.toDomain()
}

func (r accountRow) toDomain() (*domain.Account, error) {
	account := &domain.Account{
		ID:        r.id,
		Name:      r.name,
		Class:     domain.AccountClass(r.class),
		Balance:   r.balance,
		CreatedAt: r.createdAt,
	}

	if r.feeEnabled || r.feeAmount != nil {
		fee := &domain.AdminFeeConfig{Enabled: r.feeEnabled}
		if r.feeAmount != nil {
			fee.Amount = *r.feeAmount
		}
		if len(r.feePattern) > 0 {
			if err := json.Unmarshal(r.feePattern, &fee.Pattern); err != nil {
				return nil, fmt.Errorf("account %s: malformed fee pattern: %w", r.id, err)
			}
		}
		if r.lastFeePeriod != nil {
			p, err := domain.ParsePeriod(*r.lastFeePeriod)
			if err != nil {
				return nil, fmt.Errorf("account %s: %w", r.id, err)
			}
			fee.LastChargedPeriod = &p
		}
		account.AdminFee = fee
	}

	if r.interestEnabled || len(r.interestTiers) > 0 {
		interest := &domain.InterestConfig{Enabled: r.interestEnabled}
		if len(r.interestTiers) > 0 {
			if err := json.Unmarshal(r.interestTiers, &interest.Tiers); err != nil {
				return nil, fmt.Errorf("account %s: malformed interest tiers: %w", r.id, err)
			}
		}
		if r.lastInterestPeriod != nil {
			p, err := domain.ParsePeriod(*r.lastInterestPeriod)
			if err != nil {
				return nil, fmt.Errorf("account %s: %w", r.id, err)
			}
			interest.LastCreditedPeriod = &p
		}
		account.Interest = interest
	}

	return account, nil
}

// GetAccount retrieves a single account by ID.
func (r *PostgresRepository) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(r.db.QueryRow(ctx, query, id))
}

func (r *PostgresRepository) queryAccounts(ctx context.Context, query string, args ...any) ([]domain.Account, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *account)
	}
	return accounts, rows.Err()
}

// FindFeeAccounts returns bank and e-wallet accounts with a configured,
// enabled admin fee. Ordered by creation time for deterministic scans.
func (r *PostgresRepository) FindFeeAccounts(ctx context.Context) ([]domain.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE class IN ('BANK', 'E_WALLET')
		  AND fee_enabled = TRUE
		  AND fee_amount IS NOT NULL
		  AND fee_pattern IS NOT NULL
		ORDER BY created_at, id
	`
	return r.queryAccounts(ctx, query)
}

// FindInterestAccounts returns bank and e-wallet accounts with interest
// enabled and a non-empty tier list.
func (r *PostgresRepository) FindInterestAccounts(ctx context.Context) ([]domain.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE class IN ('BANK', 'E_WALLET')
		  AND interest_enabled = TRUE
		  AND interest_tiers IS NOT NULL
		  AND jsonb_array_length(interest_tiers) > 0
		ORDER BY created_at, id
	`
	return r.queryAccounts(ctx, query)
}

// EnsureCategoryAccount returns the internal account with the given class
// and name, creating it when absent. Used for the automation counter
// accounts ("Admin Fees" expense, "Interest" income).
func (r *PostgresRepository) EnsureCategoryAccount(ctx context.Context, class domain.AccountClass, name string) (*domain.Account, error) {
	query := `
		INSERT INTO accounts (id, name, class, balance)
		VALUES ($1, $2, $3, 0)
		ON CONFLICT (class, name) DO UPDATE SET name = EXCLUDED.name
		RETURNING ` + accountColumns
	return scanAccount(r.db.QueryRow(ctx, query, uuid.New(), name, string(class)))
}

// StampFeePeriod records that the admin fee for the given period has been
// posted. The marker only moves forward.
func (r *PostgresRepository) StampFeePeriod(ctx context.Context, accountID uuid.UUID, period domain.Period) error {
	query := `
		UPDATE accounts
		SET last_fee_period = $1, updated_at = NOW()
		WHERE id = $2
		  AND (last_fee_period IS NULL OR last_fee_period < $1)
	`
	result, err := r.db.Exec(ctx, query, period.String(), accountID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		// Either the account vanished or the marker already covers the
		// period; distinguish so callers can log account loss.
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, accountID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrAccountNotFound
		}
	}
	return nil
}

// StampInterestPeriod records that interest for the given period has been
// evaluated (credited or rounded to zero). The marker only moves forward.
func (r *PostgresRepository) StampInterestPeriod(ctx context.Context, accountID uuid.UUID, period domain.Period) error {
	query := `
		UPDATE accounts
		SET last_interest_period = $1, updated_at = NOW()
		WHERE id = $2
		  AND (last_interest_period IS NULL OR last_interest_period < $1)
	`
	result, err := r.db.Exec(ctx, query, period.String(), accountID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, accountID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrAccountNotFound
		}
	}
	return nil
}

// CreateLedgerEntry atomically inserts the transaction row, applies both
// balance updates and writes the audit entry. Account rows are locked in ID
// order so two concurrent postings on the same pair cannot deadlock or lose
// an increment.
func (r *PostgresRepository) CreateLedgerEntry(ctx context.Context, txn *domain.Transaction, auditMessage string) (*domain.Transaction, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	first, second := txn.DebitAccountID, txn.CreditAccountID
	if second.String() < first.String() {
		first, second = second, first
	}
	for _, id := range []uuid.UUID{first, second} {
		var locked uuid.UUID
		err := tx.QueryRow(ctx, `SELECT id FROM accounts WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
		if err != nil {
			if err == pgx.ErrNoRows {
				return nil, ErrAccountNotFound
			}
			return nil, err
		}
	}

	insert := `
		INSERT INTO transactions (id, amount, debit_account_id, credit_account_id, date, description, category, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`
	err = tx.QueryRow(ctx, insert,
		txn.ID,
		txn.Amount,
		txn.DebitAccountID,
		txn.CreditAccountID,
		txn.Date,
		txn.Description,
		txn.Category,
		txn.IdempotencyKey,
	).Scan(&txn.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, ErrDuplicateIdempotencyKey
		}
		return nil, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE accounts SET balance = balance + $1, updated_at = NOW() WHERE id = $2`,
		txn.Amount, txn.DebitAccountID,
	); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE accounts SET balance = balance - $1, updated_at = NOW() WHERE id = $2`,
		txn.Amount, txn.CreditAccountID,
	); err != nil {
		return nil, err
	}

	detail, err := json.Marshal(map[string]any{
		"transaction_id": txn.ID,
		"amount":         txn.Amount,
		"debit_account":  txn.DebitAccountID,
		"credit_account": txn.CreditAccountID,
	})
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO audit_logs (level, module, message, detail) VALUES ('INFO', 'ledger', $1, $2)`,
		auditMessage, detail,
	); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return txn, nil
}

const transactionColumns = `id, amount, debit_account_id, credit_account_id, date, description, category, idempotency_key, created_at`

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var txn domain.Transaction
	err := row.Scan(
		&txn.ID,
		&txn.Amount,
		&txn.DebitAccountID,
		&txn.CreditAccountID,
		&txn.Date,
		&txn.Description,
		&txn.Category,
		&txn.IdempotencyKey,
		&txn.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &txn, nil
}

// FindTransactionByIdempotencyKey returns the transaction previously posted
// with the given key, or ErrTransactionNotFound.
func (r *PostgresRepository) FindTransactionByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE idempotency_key = $1`
	return scanTransaction(r.db.QueryRow(ctx, query, key))
}

// ListAccountTransactions returns the transactions touching an account with
// date in [from, to), in chronological order. Used by the minimum-balance
// replay, which folds them against a start-of-month checkpoint.
func (r *PostgresRepository) ListAccountTransactions(ctx context.Context, accountID uuid.UUID, from, to time.Time) ([]domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE (debit_account_id = $1 OR credit_account_id = $1)
		  AND date >= $2 AND date < $3
		ORDER BY date, created_at, id
	`
	rows, err := r.db.Query(ctx, query, accountID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, *txn)
	}
	return txns, rows.Err()
}

// SumTransactionDeltaSince returns the net signed balance effect on the
// account of all transactions dated at or after since. Subtracting it from
// the current balance yields the balance checkpoint at that instant.
func (r *PostgresRepository) SumTransactionDeltaSince(ctx context.Context, accountID uuid.UUID, since time.Time) (int64, error) {
	query := `
		SELECT COALESCE(SUM(CASE WHEN debit_account_id = $1 THEN amount ELSE -amount END), 0)
		FROM transactions
		WHERE (debit_account_id = $1 OR credit_account_id = $1)
		  AND date >= $2
	`
	var delta int64
	if err := r.db.QueryRow(ctx, query, accountID, since).Scan(&delta); err != nil {
		return 0, err
	}
	return delta, nil
}

// SumCategorySpend returns the total amount posted into expense accounts
// under the given category with date in [from, to). Used for budget alerts.
func (r *PostgresRepository) SumCategorySpend(ctx context.Context, category string, from, to time.Time) (int64, error) {
	query := `
		SELECT COALESCE(SUM(t.amount), 0)
		FROM transactions t
		JOIN accounts a ON a.id = t.debit_account_id
		WHERE a.class = 'EXPENSE'
		  AND t.category = $1
		  AND t.date >= $2 AND t.date < $3
	`
	var total int64
	if err := r.db.QueryRow(ctx, query, category, from, to).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

const scheduleColumns = `id, amount, category, description, debit_account_id, credit_account_id, frequency, recur_interval, next_due, end_type, end_after, end_until, active, occurrences`

func scanSchedule(row pgx.Row) (*domain.RecurringSchedule, error) {
	var s domain.RecurringSchedule
	var endAfter *int
	err := row.Scan(
		&s.ID,
		&s.Amount,
		&s.Category,
		&s.Description,
		&s.DebitAccountID,
		&s.CreditAccountID,
		&s.Frequency,
		&s.Interval,
		&s.NextDue,
		&s.EndType,
		&endAfter,
		&s.EndUntil,
		&s.Active,
		&s.Occurrences,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrScheduleNotFound
		}
		return nil, err
	}
	if endAfter != nil {
		s.EndAfter = *endAfter
	}
	return &s, nil
}

// FindDueSchedules returns active schedules whose next due date is on or
// before asOf, oldest first.
func (r *PostgresRepository) FindDueSchedules(ctx context.Context, asOf time.Time) ([]domain.RecurringSchedule, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM recurring_schedules
		WHERE active = TRUE AND next_due <= $1
		ORDER BY next_due, id
	`
	rows, err := r.db.Query(ctx, query, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var schedules []domain.RecurringSchedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, *s)
	}
	return schedules, rows.Err()
}

// UpdateSchedule persists the mutable execution state of a schedule: its
// next due date, occurrence counter and active flag. The next due date never
// moves backwards.
func (r *PostgresRepository) UpdateSchedule(ctx context.Context, s *domain.RecurringSchedule) error {
	query := `
		UPDATE recurring_schedules
		SET next_due = GREATEST(next_due, $1), occurrences = $2, active = $3, updated_at = NOW()
		WHERE id = $4
	`
	result, err := r.db.Exec(ctx, query, s.NextDue, s.Occurrences, s.Active, s.ID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

// ListBudgets returns the budgets defined for the given period.
func (r *PostgresRepository) ListBudgets(ctx context.Context, period domain.Period) ([]domain.Budget, error) {
	query := `
		SELECT id, category, year, month, limit_amount
		FROM budgets
		WHERE year = $1 AND month = $2
		ORDER BY category
	`
	rows, err := r.db.Query(ctx, query, period.Year, int(period.Month))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var budgets []domain.Budget
	for rows.Next() {
		var b domain.Budget
		var month int
		if err := rows.Scan(&b.ID, &b.Category, &b.Year, &month, &b.Limit); err != nil {
			return nil, err
		}
		b.Month = time.Month(month)
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}

// GetSetting returns the value stored under key, or ErrSettingNotFound.
func (r *PostgresRepository) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRow(ctx, `SELECT value FROM app_settings WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", ErrSettingNotFound
		}
		return "", err
	}
	return value, nil
}

// UpsertSetting creates or replaces the value stored under key.
func (r *PostgresRepository) UpsertSetting(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO app_settings (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`
	_, err := r.db.Exec(ctx, query, key, value)
	return err
}

// AppendAuditLog writes one audit entry. Detail is optional.
func (r *PostgresRepository) AppendAuditLog(ctx context.Context, level, module, message string, detail map[string]any) error {
	var payload []byte
	if detail != nil {
		var err error
		payload, err = json.Marshal(detail)
		if err != nil {
			return err
		}
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO audit_logs (level, module, message, detail) VALUES ($1, $2, $3, $4)`,
		level, module, message, payload,
	)
	return err
}

// SumBalancesByClass returns the total balance across accounts of the given
// classes.
func (r *PostgresRepository) SumBalancesByClass(ctx context.Context, classes []domain.AccountClass) (int64, error) {
	names := make([]string, len(classes))
	for i, c := range classes {
		names[i] = string(c)
	}
	var total int64
	query := `SELECT COALESCE(SUM(balance), 0) FROM accounts WHERE class = ANY($1)`
	if err := r.db.QueryRow(ctx, query, names).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// SaveNetWorthSnapshot upserts the day's net-worth figure.
func (r *PostgresRepository) SaveNetWorthSnapshot(ctx context.Context, date time.Time, netWorth int64) error {
	query := `
		INSERT INTO net_worth_snapshots (snapshot_date, net_worth)
		VALUES ($1, $2)
		ON CONFLICT (snapshot_date) DO UPDATE SET net_worth = EXCLUDED.net_worth
	`
	_, err := r.db.Exec(ctx, query, date, netWorth)
	return err
}
