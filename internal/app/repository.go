/**
 * @description
 * Interfaces and shared report types for the automation engines. The
 * repository interface is declared here, on the consumer side, and is
 * satisfied by store.PostgresRepository.
 */
package app

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/rroihans/dompetku-sub003/internal/domain"
	"github.com/rroihans/dompetku-sub003/internal/ledger"
)

// Repository defines the database operations the engines need.
type Repository interface {
	GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	FindFeeAccounts(ctx context.Context) ([]domain.Account, error)
	FindInterestAccounts(ctx context.Context) ([]domain.Account, error)
	EnsureCategoryAccount(ctx context.Context, class domain.AccountClass, name string) (*domain.Account, error)
	StampFeePeriod(ctx context.Context, accountID uuid.UUID, period domain.Period) error
	StampInterestPeriod(ctx context.Context, accountID uuid.UUID, period domain.Period) error
	FindDueSchedules(ctx context.Context, asOf time.Time) ([]domain.RecurringSchedule, error)
	UpdateSchedule(ctx context.Context, s *domain.RecurringSchedule) error
	ListAccountTransactions(ctx context.Context, accountID uuid.UUID, from, to time.Time) ([]domain.Transaction, error)
	SumTransactionDeltaSince(ctx context.Context, accountID uuid.UUID, since time.Time) (int64, error)
	SumCategorySpend(ctx context.Context, category string, from, to time.Time) (int64, error)
	ListBudgets(ctx context.Context, period domain.Period) ([]domain.Budget, error)
	GetSetting(ctx context.Context, key string) (string, error)
	UpsertSetting(ctx context.Context, key, value string) error
	AppendAuditLog(ctx context.Context, level, module, message string, detail map[string]any) error
	SumBalancesByClass(ctx context.Context, classes []domain.AccountClass) (int64, error)
	SaveNetWorthSnapshot(ctx context.Context, date time.Time, netWorth int64) error
}

// Ledger defines the posting primitive the engines write through.
type Ledger interface {
	Post(ctx context.Context, req ledger.PostRequest) (*ledger.PostResult, error)
}

// Names of the internal counter accounts the engines post against. They are
// created on first use.
const (
	FeeExpenseAccountName     = "Admin Fees"
	InterestIncomeAccountName = "Interest Income"
)

// StageReport summarizes one engine run. OK is false only when the scan
// itself failed (e.g. a data store outage); per-item failures are counted in
// Failed and surface through FirstError while the scan continues.
type StageReport struct {
	Name       string `json:"name"`
	OK         bool   `json:"ok"`
	Processed  int    `json:"processed"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
	FirstError string `json:"first_error,omitempty"`
}

func (r *StageReport) recordFailure(err error) {
	r.Failed++
	if r.FirstError == "" {
		r.FirstError = err.Error()
	}
}

func (r *StageReport) fail(err error) *StageReport {
	r.OK = false
	if r.FirstError == "" {
		r.FirstError = err.Error()
	}
	return r
}
