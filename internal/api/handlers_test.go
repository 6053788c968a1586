package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rroihans/dompetku-sub003/internal/app"
)

type orchestratorStub struct {
	runs    int
	summary *app.RunSummary
}

func (s *orchestratorStub) RunDaily(ctx context.Context, today time.Time) *app.RunSummary {
	s.runs++
	s.summary = &app.RunSummary{Date: today.Format("2006-01-02"), OK: true}
	return s.summary
}

func (s *orchestratorStub) LastSummary() *app.RunSummary { return s.summary }

type debouncerStub struct {
	first bool
	err   error
}

func (s *debouncerStub) MarkRun(ctx context.Context, date time.Time) (bool, error) {
	return s.first, s.err
}

func newTestHandler(orchestrator *orchestratorStub, debouncer Debouncer) *Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandler(orchestrator, debouncer, logger, time.UTC)
}

func TestHandleDailyTrigger_RunsWhenFirstToday(t *testing.T) {
	orchestrator := &orchestratorStub{}
	h := newTestHandler(orchestrator, &debouncerStub{first: true})

	rec := httptest.NewRecorder()
	h.handleDailyTrigger(rec, httptest.NewRequest(http.MethodPost, "/automation/daily", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if orchestrator.runs != 1 {
		t.Fatalf("expected one run, got %d", orchestrator.runs)
	}
}

func TestHandleDailyTrigger_SkipsWhenAlreadyRanToday(t *testing.T) {
	orchestrator := &orchestratorStub{}
	h := newTestHandler(orchestrator, &debouncerStub{first: false})

	rec := httptest.NewRecorder()
	h.handleDailyTrigger(rec, httptest.NewRequest(http.MethodPost, "/automation/daily", nil))

	if orchestrator.runs != 0 {
		t.Fatal("debounced trigger must not run the orchestrator")
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if body["skipped"] != true {
		t.Fatalf("expected skipped response, got %v", body)
	}
}

func TestHandleDailyTrigger_DebouncerFailureStillRuns(t *testing.T) {
	orchestrator := &orchestratorStub{}
	h := newTestHandler(orchestrator, &debouncerStub{err: context.DeadlineExceeded})

	rec := httptest.NewRecorder()
	h.handleDailyTrigger(rec, httptest.NewRequest(http.MethodPost, "/automation/daily", nil))

	// The marker is a soft debouncer; losing it must not block the run.
	if orchestrator.runs != 1 {
		t.Fatalf("expected the run to proceed, got %d runs", orchestrator.runs)
	}
}

func TestHandleLastSummary(t *testing.T) {
	orchestrator := &orchestratorStub{}
	h := newTestHandler(orchestrator, nil)

	rec := httptest.NewRecorder()
	h.handleLastSummary(rec, httptest.NewRequest(http.MethodGet, "/internal/automation/summary", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before any run, got %d", rec.Code)
	}

	h.handleRunNow(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/internal/automation/run", nil))

	rec = httptest.NewRecorder()
	h.handleLastSummary(rec, httptest.NewRequest(http.MethodGet, "/internal/automation/summary", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 after a run, got %d", rec.Code)
	}
}

func TestInternalAuthMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	guarded := InternalAuthMiddleware("secret")(next)

	rec := httptest.NewRecorder()
	guarded.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/internal/automation/run", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/internal/automation/run", nil)
	req.Header.Set("X-Internal-API-Key", "secret")
	rec = httptest.NewRecorder()
	guarded.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 with key, got %d", rec.Code)
	}

	open := InternalAuthMiddleware("")(next)
	rec = httptest.NewRecorder()
	open.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/internal/automation/run", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected empty key to disable the check, got %d", rec.Code)
	}
}
