/**
 * @description
 * The daily orchestrator is the single entry point the scheduler (or the
 * HTTP trigger) invokes once per day. It sequences the recurring executor,
 * the admin fee engine, the interest engine (first of the month only),
 * budget alerting and the net-worth snapshot. Stages are financially
 * independent, so each stage's failure is caught and reported in the run
 * summary instead of aborting the run.
 */
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rroihans/dompetku-sub003/internal/domain"
	"github.com/rroihans/dompetku-sub003/internal/ledger"
)

// Publisher defines the interface for publishing run events. May be nil.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
}

// RunSummary aggregates the per-stage outcomes of one daily run.
type RunSummary struct {
	Date      string        `json:"date"`
	StartedAt time.Time     `json:"started_at"`
	Duration  string        `json:"duration"`
	Stages    []StageReport `json:"stages"`
	OK        bool          `json:"ok"`
}

// Orchestrator composes the automation engines into the daily run.
type Orchestrator struct {
	recurring *RecurringExecutor
	fees      *AdminFeeEngine
	interest  *InterestEngine
	repo      Repository
	publisher Publisher
	logger    *slog.Logger

	mu          sync.Mutex
	lastSummary *RunSummary
}

// NewOrchestrator creates a new Orchestrator. publisher may be nil.
func NewOrchestrator(recurring *RecurringExecutor, fees *AdminFeeEngine, interest *InterestEngine, repo Repository, publisher Publisher, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		recurring: recurring,
		fees:      fees,
		interest:  interest,
		repo:      repo,
		publisher: publisher,
		logger:    logger,
	}
}

// RunDaily executes all automation stages for today and returns the
// aggregated summary. Safe to invoke more than once per day: the period
// markers and idempotency keys inside the engines are the correctness
// boundary, not mutual exclusion of the run itself.
func (o *Orchestrator) RunDaily(ctx context.Context, today time.Time) *RunSummary {
	started := time.Now()
	o.logger.Info("daily automation run starting", "date", today.Format("2006-01-02"))

	summary := &RunSummary{
		Date:      today.Format("2006-01-02"),
		StartedAt: started,
	}

	summary.Stages = append(summary.Stages, *o.recurring.Run(ctx, today))
	summary.Stages = append(summary.Stages, *o.fees.Run(ctx, today))

	if today.Day() == 1 {
		summary.Stages = append(summary.Stages, *o.interest.Run(ctx, today))
	} else {
		summary.Stages = append(summary.Stages, StageReport{Name: "interest", OK: true, Skipped: 1})
	}

	summary.Stages = append(summary.Stages, *o.runBudgetAlerts(ctx, today))
	summary.Stages = append(summary.Stages, *o.runSnapshot(ctx, today))

	summary.OK = true
	for _, stage := range summary.Stages {
		if !stage.OK {
			summary.OK = false
		}
	}
	summary.Duration = time.Since(started).String()

	o.mu.Lock()
	o.lastSummary = summary
	o.mu.Unlock()

	o.logger.Info("daily automation run finished", "date", summary.Date, "ok", summary.OK, "duration", summary.Duration)
	o.publishCompleted(ctx, summary)
	return summary
}

// LastSummary returns the most recent run summary, or nil before any run.
func (o *Orchestrator) LastSummary() *RunSummary {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastSummary
}

// runBudgetAlerts compares this month's category spend against the defined
// budgets and records a warning for each breach. Alerting only: no ledger
// effect.
func (o *Orchestrator) runBudgetAlerts(ctx context.Context, today time.Time) *StageReport {
	report := &StageReport{Name: "budget_alerts", OK: true}
	period := domain.PeriodOf(today)

	budgets, err := o.repo.ListBudgets(ctx, period)
	if err != nil {
		o.logger.Error("budget scan failed", "error", err)
		return report.fail(err)
	}

	for _, budget := range budgets {
		spent, err := o.repo.SumCategorySpend(ctx, budget.Category, period.Start(today.Location()), period.End(today.Location()))
		if err != nil {
			report.recordFailure(fmt.Errorf("budget %s: %w", budget.Category, err))
			continue
		}
		if spent <= budget.Limit {
			report.Skipped++
			continue
		}

		report.Processed++
		message := fmt.Sprintf("budget %q exceeded: spent %d of %d", budget.Category, spent, budget.Limit)
		o.logger.Warn("budget exceeded", "category", budget.Category, "spent", spent, "limit", budget.Limit)
		if err := o.repo.AppendAuditLog(ctx, "WARN", "budget_alerts", message, map[string]any{
			"category": budget.Category,
			"spent":    spent,
			"limit":    budget.Limit,
			"period":   period.String(),
		}); err != nil {
			o.logger.Error("audit log write failed", "error", err)
		}
		if o.publisher != nil {
			if err := o.publisher.Publish(ctx, ledger.EventsExchange, "budget.exceeded", map[string]any{
				"category": budget.Category,
				"spent":    spent,
				"limit":    budget.Limit,
				"period":   period.String(),
			}); err != nil {
				o.logger.Warn("failed to publish budget.exceeded event", "error", err)
			}
		}
	}

	return report
}

// runSnapshot records today's net worth: asset balances minus liability
// balances.
func (o *Orchestrator) runSnapshot(ctx context.Context, today time.Time) *StageReport {
	report := &StageReport{Name: "net_worth_snapshot", OK: true}

	assets, err := o.repo.SumBalancesByClass(ctx, domain.AssetClasses)
	if err != nil {
		o.logger.Error("asset sum failed", "error", err)
		return report.fail(err)
	}
	liabilities, err := o.repo.SumBalancesByClass(ctx, domain.LiabilityClasses)
	if err != nil {
		o.logger.Error("liability sum failed", "error", err)
		return report.fail(err)
	}

	netWorth := assets - liabilities
	if err := o.repo.SaveNetWorthSnapshot(ctx, today, netWorth); err != nil {
		o.logger.Error("snapshot write failed", "error", err)
		return report.fail(err)
	}

	report.Processed = 1
	o.logger.Info("net worth snapshot saved", "date", today.Format("2006-01-02"), "net_worth", netWorth)
	return report
}

func (o *Orchestrator) publishCompleted(ctx context.Context, summary *RunSummary) {
	if o.publisher == nil {
		return
	}
	if err := o.publisher.Publish(ctx, ledger.EventsExchange, "automation.completed", summary); err != nil {
		o.logger.Warn("failed to publish automation.completed event", "error", err)
	}
}
