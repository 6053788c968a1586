/**
 * @description
 * The interest engine accrues and credits tiered savings interest for the
 * prior calendar month. It runs on the first day of a month; the stored
 * last-credited period is the idempotency gate.
 *
 * The accrual principal is selected by a process-wide setting: the account's
 * balance at run time (default), or the minimum balance the account held at
 * any instant during the prior month. The minimum is derived by replaying
 * that month's transactions in date order against a start-of-month balance
 * checkpoint, because an ending balance can be far above the trough a
 * passbook account actually accrues on.
 *
 * All monetary math is decimal over integer minor units; floating point
 * never touches an amount that is posted.
 */
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rroihans/dompetku-sub003/internal/billing"
	"github.com/rroihans/dompetku-sub003/internal/domain"
	"github.com/rroihans/dompetku-sub003/internal/ledger"
	"github.com/rroihans/dompetku-sub003/internal/store"
)

var daysPerYear = decimal.NewFromInt(365)

// InterestEngine scans interest-enabled accounts and credits accrued
// interest for the prior month.
type InterestEngine struct {
	repo   Repository
	ledger Ledger
	logger *slog.Logger
}

// NewInterestEngine creates a new InterestEngine.
func NewInterestEngine(repo Repository, ledger Ledger, logger *slog.Logger) *InterestEngine {
	return &InterestEngine{repo: repo, ledger: ledger, logger: logger}
}

// Run accrues interest for the calendar month preceding today. The
// orchestrator invokes it on the first of the month only; calling it on a
// later day accrues for the same target period and remains idempotent.
func (e *InterestEngine) Run(ctx context.Context, today time.Time) *StageReport {
	report := &StageReport{Name: "interest", OK: true}
	target := domain.PeriodOf(today).Previous()

	method := e.principalMethod(ctx)

	accounts, err := e.repo.FindInterestAccounts(ctx)
	if err != nil {
		e.logger.Error("interest scan failed", "error", err)
		return report.fail(err)
	}
	if len(accounts) == 0 {
		return report
	}

	income, err := e.repo.EnsureCategoryAccount(ctx, domain.ClassIncome, InterestIncomeAccountName)
	if err != nil {
		e.logger.Error("failed to resolve interest income account", "error", err)
		return report.fail(err)
	}

	for _, account := range accounts {
		posted, err := e.creditAccount(ctx, account, income, target, method, today)
		if err != nil {
			e.auditFailure(ctx, account, target, err)
			report.recordFailure(fmt.Errorf("account %s: %w", account.ID, err))
			continue
		}
		if posted {
			report.Processed++
		} else {
			report.Skipped++
		}
	}

	e.logger.Info("interest run finished",
		"period", target.String(),
		"method", method,
		"credited", report.Processed,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
	return report
}

// principalMethod reads the global principal selection, defaulting to the
// current-balance method when the setting is absent or unrecognized.
func (e *InterestEngine) principalMethod(ctx context.Context) string {
	value, err := e.repo.GetSetting(ctx, domain.SettingInterestPrincipalMethod)
	if err != nil {
		if !errors.Is(err, store.ErrSettingNotFound) {
			e.logger.Warn("could not read interest principal setting, using current balance", "error", err)
		}
		return domain.PrincipalCurrentBalance
	}
	if value == domain.PrincipalMinimumBalance {
		return domain.PrincipalMinimumBalance
	}
	return domain.PrincipalCurrentBalance
}

func (e *InterestEngine) creditAccount(ctx context.Context, account domain.Account, income *domain.Account, target domain.Period, method string, today time.Time) (bool, error) {
	cfg := account.Interest
	if cfg == nil || !cfg.Enabled || len(cfg.Tiers) == 0 {
		return false, nil
	}
	if cfg.LastCreditedPeriod != nil && cfg.LastCreditedPeriod.Equal(target) {
		return false, nil
	}

	principal := account.Balance
	if method == domain.PrincipalMinimumBalance {
		min, err := e.minimumBalance(ctx, account, target, today.Location())
		if err != nil {
			return false, fmt.Errorf("minimum balance replay: %w", err)
		}
		principal = min
	}

	match, err := billing.ResolveTier(cfg.Tiers, principal)
	if err != nil {
		return false, err
	}

	accrued := accrue(principal, match.Rate, target.Days())
	if accrued <= 0 {
		// Zero accrual still stamps the period so the account is not
		// re-evaluated every day of the month.
		if err := e.repo.StampInterestPeriod(ctx, account.ID, target); err != nil {
			return false, fmt.Errorf("period stamp: %w", err)
		}
		return false, nil
	}

	result, err := e.ledger.Post(ctx, ledger.PostRequest{
		DebitAccountID:  account.ID,
		CreditAccountID: income.ID,
		Amount:          accrued,
		Date:            target.End(today.Location()).AddDate(0, 0, -1),
		Description:     fmt.Sprintf("Interest credit %s (%s)", account.Name, target),
		Category:        "Interest",
		IdempotencyKey:  fmt.Sprintf("interest:%s:%s", account.ID, target),
	})
	if err != nil {
		return false, err
	}

	if err := e.repo.StampInterestPeriod(ctx, account.ID, target); err != nil {
		return false, fmt.Errorf("interest posted but period stamp failed: %w", err)
	}

	e.logger.Info("interest credited",
		"account_id", account.ID,
		"period", target.String(),
		"principal", principal,
		"rate", match.Rate.String(),
		"amount", accrued,
		"duplicate", result.Duplicate,
	)
	return true, nil
}

// minimumBalance computes the lowest balance the account held during the
// target period. The start-of-period checkpoint is the current balance minus
// the net effect of everything posted since the period began; the period's
// transactions are then folded in chronological order, tracking the running
// minimum.
func (e *InterestEngine) minimumBalance(ctx context.Context, account domain.Account, target domain.Period, loc *time.Location) (int64, error) {
	start := target.Start(loc)
	end := target.End(loc)

	deltaSinceStart, err := e.repo.SumTransactionDeltaSince(ctx, account.ID, start)
	if err != nil {
		return 0, err
	}
	running := account.Balance - deltaSinceStart

	txns, err := e.repo.ListAccountTransactions(ctx, account.ID, start, end)
	if err != nil {
		return 0, err
	}

	min := running
	for _, txn := range txns {
		running += txn.BalanceDelta(account.ID)
		if running < min {
			min = running
		}
	}
	return min, nil
}

// accrue computes principal * rate% * days/365 in exact decimal arithmetic,
// rounded half-up to the nearest minor currency unit.
func accrue(principal int64, annualRatePercent decimal.Decimal, days int) int64 {
	if principal <= 0 || annualRatePercent.IsZero() {
		return 0
	}
	amount := decimal.NewFromInt(principal).
		Mul(annualRatePercent).
		Div(decimal.NewFromInt(100)).
		Mul(decimal.NewFromInt(int64(days))).
		Div(daysPerYear)
	return amount.Round(0).IntPart()
}

func (e *InterestEngine) auditFailure(ctx context.Context, account domain.Account, target domain.Period, cause error) {
	e.logger.Error("interest failure", "account_id", account.ID, "period", target.String(), "error", cause)
	if err := e.repo.AppendAuditLog(ctx, "ERROR", "interest", cause.Error(), map[string]any{
		"account_id": account.ID,
		"period":     target.String(),
	}); err != nil {
		e.logger.Error("audit log write failed", "error", err)
	}
}
