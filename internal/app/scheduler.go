/**
 * @description
 * Cron scheduler setup for the daily automation run.
 */
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler manages the in-process cron job that triggers the orchestrator.
type Scheduler struct {
	cron         *cron.Cron
	orchestrator *Orchestrator
	logger       *slog.Logger
	schedule     string
	loc          *time.Location
}

// NewScheduler creates a new scheduler instance running in loc's local time.
func NewScheduler(orchestrator *Orchestrator, logger *slog.Logger, schedule string, loc *time.Location) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithLocation(loc), cron.WithChain(cron.Recover(cronLogger)))

	return &Scheduler{
		cron:         c,
		orchestrator: orchestrator,
		logger:       logger,
		schedule:     schedule,
		loc:          loc,
	}
}

// Start registers the daily job and starts the cron scheduler.
func (s *Scheduler) Start() {
	if _, err := s.cron.AddFunc(s.schedule, s.runDaily); err != nil {
		s.logger.Error("failed to schedule daily automation job", "error", err)
	} else {
		s.logger.Info("scheduled daily automation job", "schedule", s.schedule)
	}

	s.cron.Start()
}

func (s *Scheduler) runDaily() {
	today := time.Now().In(s.loc)
	s.orchestrator.RunDaily(context.Background(), today)
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
