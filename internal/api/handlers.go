/**
 * @description
 * HTTP handlers for the automation trigger surface. The internal endpoint
 * forces a run; the client-facing daily endpoint is softly debounced by a
 * last-run marker so an app opening several times a day does not trigger
 * redundant runs. The engines' idempotency gates remain the correctness
 * boundary either way.
 */
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/rroihans/dompetku-sub003/internal/app"
)

// Orchestrator is the automation entry point the handlers invoke.
type Orchestrator interface {
	RunDaily(ctx context.Context, today time.Time) *app.RunSummary
	LastSummary() *app.RunSummary
}

// Debouncer reports whether today's run was already triggered.
type Debouncer interface {
	MarkRun(ctx context.Context, date time.Time) (first bool, err error)
}

// Handler holds the application services the handlers interact with.
type Handler struct {
	orchestrator Orchestrator
	debouncer    Debouncer
	logger       *slog.Logger
	loc          *time.Location
}

// NewHandler creates a new Handler. debouncer may be nil.
func NewHandler(orchestrator Orchestrator, debouncer Debouncer, logger *slog.Logger, loc *time.Location) *Handler {
	return &Handler{orchestrator: orchestrator, debouncer: debouncer, logger: logger, loc: loc}
}

// handleRunNow forces an automation run regardless of the daily marker.
func (h *Handler) handleRunNow(w http.ResponseWriter, r *http.Request) {
	today := time.Now().In(h.loc)
	summary := h.orchestrator.RunDaily(r.Context(), today)
	respondWithJSON(w, http.StatusOK, summary)
}

// handleDailyTrigger runs the automation unless it already ran today. The
// marker is advisory: when the debouncer is unavailable the run proceeds,
// and the engines' period markers keep the extra run harmless.
func (h *Handler) handleDailyTrigger(w http.ResponseWriter, r *http.Request) {
	today := time.Now().In(h.loc)

	if h.debouncer != nil {
		first, err := h.debouncer.MarkRun(r.Context(), today)
		if err != nil {
			h.logger.Warn("run debouncer unavailable, proceeding with run", "error", err)
		} else if !first {
			respondWithJSON(w, http.StatusOK, map[string]any{
				"skipped": true,
				"reason":  "automation already ran today",
			})
			return
		}
	}

	summary := h.orchestrator.RunDaily(r.Context(), today)
	respondWithJSON(w, http.StatusOK, summary)
}

// handleLastSummary returns the most recent run summary.
func (h *Handler) handleLastSummary(w http.ResponseWriter, r *http.Request) {
	summary := h.orchestrator.LastSummary()
	if summary == nil {
		respondWithJSON(w, http.StatusNotFound, map[string]string{"error": "no run recorded yet"})
		return
	}
	respondWithJSON(w, http.StatusOK, summary)
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
