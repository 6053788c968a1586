/**
 * @description
 * The recurring executor posts user-defined scheduled transactions that have
 * come due. When an invocation was missed for several periods, each missed
 * period is posted exactly once, in chronological order, never collapsed
 * into a single catch-up posting. Schedule state (next due date, occurrence
 * counter, active flag) is persisted after every posting so an interrupted
 * run resumes cleanly; the per-occurrence idempotency key makes the resume
 * safe even when the state write itself was lost.
 */
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rroihans/dompetku-sub003/internal/domain"
	"github.com/rroihans/dompetku-sub003/internal/ledger"
)

// RecurringExecutor posts due occurrences of recurring schedules.
type RecurringExecutor struct {
	repo   Repository
	ledger Ledger
	logger *slog.Logger
}

// NewRecurringExecutor creates a new RecurringExecutor.
func NewRecurringExecutor(repo Repository, ledger Ledger, logger *slog.Logger) *RecurringExecutor {
	return &RecurringExecutor{repo: repo, ledger: ledger, logger: logger}
}

// Run executes every active schedule whose next due date is on or before
// today. A failure on one schedule does not block the others.
func (e *RecurringExecutor) Run(ctx context.Context, today time.Time) *StageReport {
	report := &StageReport{Name: "recurring", OK: true}

	schedules, err := e.repo.FindDueSchedules(ctx, today)
	if err != nil {
		e.logger.Error("recurring schedule scan failed", "error", err)
		return report.fail(err)
	}

	for i := range schedules {
		posted, err := e.executeSchedule(ctx, &schedules[i], today)
		report.Processed += posted
		if err != nil {
			e.auditFailure(ctx, schedules[i], err)
			report.recordFailure(fmt.Errorf("schedule %s: %w", schedules[i].ID, err))
			continue
		}
		if posted == 0 {
			report.Skipped++
		}
	}

	e.logger.Info("recurring run finished",
		"schedules", len(schedules),
		"posted", report.Processed,
		"failed", report.Failed,
	)
	return report
}

// executeSchedule posts every due occurrence of one schedule, oldest first,
// and returns how many were posted. Schedule state is persisted after each
// occurrence; on a posting failure the schedule is left pointing at the
// failed occurrence so the next run retries it.
func (e *RecurringExecutor) executeSchedule(ctx context.Context, s *domain.RecurringSchedule, today time.Time) (int, error) {
	posted := 0

	for s.Active && !s.NextDue.After(today) {
		if s.Ended() {
			s.Active = false
			if err := e.repo.UpdateSchedule(ctx, s); err != nil {
				return posted, fmt.Errorf("deactivate: %w", err)
			}
			break
		}

		due := s.NextDue
		_, err := e.ledger.Post(ctx, ledger.PostRequest{
			DebitAccountID:  s.DebitAccountID,
			CreditAccountID: s.CreditAccountID,
			Amount:          s.Amount,
			Date:            due,
			Description:     s.Description,
			Category:        s.Category,
			IdempotencyKey:  fmt.Sprintf("recurring:%s:%s", s.ID, due.Format("2006-01-02")),
		})
		if err != nil {
			return posted, err
		}
		posted++

		s.Occurrences++
		s.NextDue = s.Advance(due)
		if s.Ended() {
			s.Active = false
		}
		if err := e.repo.UpdateSchedule(ctx, s); err != nil {
			// The occurrence is committed; the idempotency key shields the
			// retry that will see the stale next-due date.
			return posted, fmt.Errorf("state update after posting: %w", err)
		}

		e.logger.Info("recurring occurrence posted",
			"schedule_id", s.ID,
			"due", due.Format("2006-01-02"),
			"occurrences", s.Occurrences,
			"active", s.Active,
		)
	}

	return posted, nil
}

func (e *RecurringExecutor) auditFailure(ctx context.Context, s domain.RecurringSchedule, cause error) {
	e.logger.Error("recurring schedule failure", "schedule_id", s.ID, "error", cause)
	if err := e.repo.AppendAuditLog(ctx, "ERROR", "recurring", cause.Error(), map[string]any{
		"schedule_id": s.ID,
	}); err != nil {
		e.logger.Error("audit log write failed", "error", err)
	}
}
