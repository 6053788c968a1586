/**
 * @description
 * The admin fee engine posts each eligible account's monthly admin fee. An
 * account is charged at most once per calendar month: the stored
 * last-charged period is the idempotency gate, checked by period identity so
 * the engine may run on any day at or after the billing date. A failure on
 * one account is logged and does not abort the scan.
 */
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rroihans/dompetku-sub003/internal/billing"
	"github.com/rroihans/dompetku-sub003/internal/domain"
	"github.com/rroihans/dompetku-sub003/internal/ledger"
)

// AdminFeeEngine scans fee-enabled bank/e-wallet accounts and posts due fees.
type AdminFeeEngine struct {
	repo   Repository
	ledger Ledger
	logger *slog.Logger
}

// NewAdminFeeEngine creates a new AdminFeeEngine.
func NewAdminFeeEngine(repo Repository, ledger Ledger, logger *slog.Logger) *AdminFeeEngine {
	return &AdminFeeEngine{repo: repo, ledger: ledger, logger: logger}
}

// Run charges every account whose billing date for today's month has been
// reached and whose fee has not yet been posted for this period.
func (e *AdminFeeEngine) Run(ctx context.Context, today time.Time) *StageReport {
	report := &StageReport{Name: "admin_fees", OK: true}
	period := domain.PeriodOf(today)

	accounts, err := e.repo.FindFeeAccounts(ctx)
	if err != nil {
		e.logger.Error("admin fee scan failed", "error", err)
		return report.fail(err)
	}
	if len(accounts) == 0 {
		return report
	}

	expense, err := e.repo.EnsureCategoryAccount(ctx, domain.ClassExpense, FeeExpenseAccountName)
	if err != nil {
		e.logger.Error("failed to resolve fee expense account", "error", err)
		return report.fail(err)
	}

	for _, account := range accounts {
		switch e.chargeAccount(ctx, account, expense, period, today) {
		case chargePosted:
			report.Processed++
		case chargeSkipped:
			report.Skipped++
		default:
			// chargeAccount already logged and audited.
			report.recordFailure(fmt.Errorf("account %s: fee posting failed", account.ID))
		}
	}

	e.logger.Info("admin fee run finished",
		"period", period.String(),
		"charged", report.Processed,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
	return report
}

type chargeOutcome int

const (
	chargePosted chargeOutcome = iota
	chargeSkipped
	chargeFailed
)

func (e *AdminFeeEngine) chargeAccount(ctx context.Context, account domain.Account, expense *domain.Account, period domain.Period, today time.Time) chargeOutcome {
	fee := account.AdminFee
	if fee == nil || !fee.Enabled || fee.Amount <= 0 {
		return chargeSkipped
	}

	occurrence, err := billing.NextOccurrence(fee.Pattern, today)
	if errors.Is(err, domain.ErrNoSuchBillingDate) {
		// The pattern has no occurrence this month (e.g. no 5th Friday);
		// not a failure.
		return chargeSkipped
	}
	if err != nil {
		e.auditFailure(ctx, account, fmt.Sprintf("invalid billing pattern: %v", err))
		return chargeFailed
	}

	if today.Before(occurrence) {
		return chargeSkipped
	}
	if fee.LastChargedPeriod != nil && fee.LastChargedPeriod.Equal(period) {
		return chargeSkipped
	}

	result, err := e.ledger.Post(ctx, ledger.PostRequest{
		DebitAccountID:  expense.ID,
		CreditAccountID: account.ID,
		Amount:          fee.Amount,
		Date:            occurrence,
		Description:     fmt.Sprintf("Admin fee %s (%s)", account.Name, period),
		Category:        "Bank Fees",
		IdempotencyKey:  fmt.Sprintf("admin_fee:%s:%s", account.ID, period),
	})
	if err != nil {
		e.auditFailure(ctx, account, fmt.Sprintf("fee posting failed: %v", err))
		return chargeFailed
	}

	if err := e.repo.StampFeePeriod(ctx, account.ID, period); err != nil {
		// The fee itself is committed; the idempotency key protects the next
		// run from double-charging even with a stale marker.
		e.auditFailure(ctx, account, fmt.Sprintf("fee posted but period stamp failed: %v", err))
		return chargeFailed
	}

	e.logger.Info("admin fee charged",
		"account_id", account.ID,
		"amount", fee.Amount,
		"period", period.String(),
		"duplicate", result.Duplicate,
	)
	return chargePosted
}

func (e *AdminFeeEngine) auditFailure(ctx context.Context, account domain.Account, message string) {
	e.logger.Error("admin fee failure", "account_id", account.ID, "message", message)
	if err := e.repo.AppendAuditLog(ctx, "ERROR", "admin_fees", message, map[string]any{"account_id": account.ID}); err != nil {
		e.logger.Error("audit log write failed", "error", err)
	}
}
