package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rroihans/dompetku-sub003/internal/domain"
)

func newOrchestratorFixture() (*memRepo, *memLedger, *recordingPublisher, *Orchestrator) {
	repo := newMemRepo()
	l := newMemLedger(repo)
	publisher := &recordingPublisher{}
	logger := testLogger()
	orchestrator := NewOrchestrator(
		NewRecurringExecutor(repo, l, logger),
		NewAdminFeeEngine(repo, l, logger),
		NewInterestEngine(repo, l, logger),
		repo,
		publisher,
		logger,
	)
	return repo, l, publisher, orchestrator
}

func stageByName(t *testing.T, summary *RunSummary, name string) StageReport {
	t.Helper()
	for _, stage := range summary.Stages {
		if stage.Name == name {
			return stage
		}
	}
	t.Fatalf("stage %q missing from summary %+v", name, summary)
	return StageReport{}
}

func TestRunDaily_SequencesAllStages(t *testing.T) {
	_, _, publisher, orchestrator := newOrchestratorFixture()

	summary := orchestrator.RunDaily(context.Background(), time.Date(2026, time.August, 29, 0, 0, 0, 0, time.UTC))
	if !summary.OK {
		t.Fatalf("empty run should succeed: %+v", summary)
	}

	want := []string{"recurring", "admin_fees", "interest", "budget_alerts", "net_worth_snapshot"}
	if len(summary.Stages) != len(want) {
		t.Fatalf("expected %d stages, got %d", len(want), len(summary.Stages))
	}
	for i, name := range want {
		if summary.Stages[i].Name != name {
			t.Fatalf("stage %d: expected %q, got %q", i, name, summary.Stages[i].Name)
		}
	}

	if len(publisher.events) == 0 || publisher.events[len(publisher.events)-1] != "dompetku.events/automation.completed" {
		t.Fatalf("expected automation.completed event, got %v", publisher.events)
	}
	if orchestrator.LastSummary() == nil {
		t.Fatal("last summary should be retained")
	}
}

func TestRunDaily_InterestOnlyOnFirstOfMonth(t *testing.T) {
	repo, l, _, orchestrator := newOrchestratorFixture()
	repo.addAccount(interestAccount("BCA", 2000000, savingsTiers()))

	midMonth := orchestrator.RunDaily(context.Background(), time.Date(2026, time.August, 29, 0, 0, 0, 0, time.UTC))
	if got := stageByName(t, midMonth, "interest"); got.Processed != 0 {
		t.Fatalf("interest must not run mid-month: %+v", got)
	}
	if len(l.posts) != 0 {
		t.Fatal("no interest may be posted mid-month")
	}

	firstOfMonth := orchestrator.RunDaily(context.Background(), time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC))
	if got := stageByName(t, firstOfMonth, "interest"); got.Processed != 1 {
		t.Fatalf("interest should run on the 1st: %+v", got)
	}
}

func TestRunDaily_StageFailureDoesNotAbortLaterStages(t *testing.T) {
	repo, _, _, orchestrator := newOrchestratorFixture()
	repo.addAccount(&domain.Account{Name: "BCA", Class: domain.ClassBank, Balance: 750000})
	repo.findSchedulesErr = errors.New("database unreachable")

	today := time.Date(2026, time.August, 29, 0, 0, 0, 0, time.UTC)
	summary := orchestrator.RunDaily(context.Background(), today)

	if summary.OK {
		t.Fatal("summary must reflect the failed stage")
	}
	if got := stageByName(t, summary, "recurring"); got.OK {
		t.Fatalf("recurring stage should have failed: %+v", got)
	}
	if got := stageByName(t, summary, "net_worth_snapshot"); !got.OK {
		t.Fatalf("snapshot stage should still run: %+v", got)
	}
	if repo.snapshots["2026-08-29"] != 750000 {
		t.Fatalf("expected snapshot 750000, got %d", repo.snapshots["2026-08-29"])
	}
}

func TestRunDaily_NetWorthSubtractsLiabilities(t *testing.T) {
	repo, _, _, orchestrator := newOrchestratorFixture()
	repo.addAccount(&domain.Account{Name: "BCA", Class: domain.ClassBank, Balance: 4000000})
	repo.addAccount(&domain.Account{Name: "Cash", Class: domain.ClassCash, Balance: 500000})
	repo.addAccount(&domain.Account{Name: "Visa", Class: domain.ClassCreditCard, Balance: 1500000})
	// Income/expense buckets never count toward net worth.
	repo.addAccount(&domain.Account{Name: "Salary", Class: domain.ClassIncome, Balance: 99999999})

	today := time.Date(2026, time.August, 29, 0, 0, 0, 0, time.UTC)
	orchestrator.RunDaily(context.Background(), today)

	if got := repo.snapshots["2026-08-29"]; got != 4000000+500000-1500000 {
		t.Fatalf("expected net worth 3000000, got %d", got)
	}
}

func TestRunDaily_BudgetAlertOnBreach(t *testing.T) {
	repo, _, publisher, orchestrator := newOrchestratorFixture()
	groceries := repo.addAccount(&domain.Account{Name: "Groceries", Class: domain.ClassExpense})
	wallet := repo.addAccount(&domain.Account{Name: "BCA", Class: domain.ClassBank, Balance: 1000000})

	repo.budgets = append(repo.budgets, domain.Budget{
		ID:       uuid.New(),
		Category: "Groceries",
		Year:     2026,
		Month:    time.August,
		Limit:    200000,
	})
	repo.txns = append(repo.txns, domain.Transaction{
		ID:              uuid.New(),
		Amount:          350000,
		DebitAccountID:  groceries.ID,
		CreditAccountID: wallet.ID,
		Category:        "Groceries",
		Date:            time.Date(2026, time.August, 12, 0, 0, 0, 0, time.UTC),
	})

	summary := orchestrator.RunDaily(context.Background(), time.Date(2026, time.August, 29, 0, 0, 0, 0, time.UTC))
	if got := stageByName(t, summary, "budget_alerts"); got.Processed != 1 {
		t.Fatalf("expected one budget breach, got %+v", got)
	}

	foundWarn := false
	for _, entry := range repo.audit {
		if entry.level == "WARN" && entry.module == "budget_alerts" {
			foundWarn = true
		}
	}
	if !foundWarn {
		t.Fatal("expected a WARN audit entry for the breached budget")
	}

	foundEvent := false
	for _, event := range publisher.events {
		if event == "dompetku.events/budget.exceeded" {
			foundEvent = true
		}
	}
	if !foundEvent {
		t.Fatalf("expected budget.exceeded event, got %v", publisher.events)
	}
}

func TestRunDaily_BudgetWithinLimitIsQuiet(t *testing.T) {
	repo, _, _, orchestrator := newOrchestratorFixture()
	repo.budgets = append(repo.budgets, domain.Budget{
		ID:       uuid.New(),
		Category: "Transport",
		Year:     2026,
		Month:    time.August,
		Limit:    500000,
	})

	summary := orchestrator.RunDaily(context.Background(), time.Date(2026, time.August, 29, 0, 0, 0, 0, time.UTC))
	if got := stageByName(t, summary, "budget_alerts"); got.Processed != 0 || got.Skipped != 1 {
		t.Fatalf("expected quiet budget stage, got %+v", got)
	}
}
