/**
 * @description
 * HTTP router setup for the automation service using go-chi/chi.
 */
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new Chi router and registers the automation routes.
func NewRouter(h *Handler, internalKey string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Internal-API-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("dompetku automation service is healthy"))
	})

	// Client-facing soft trigger: runs at most once per day per marker.
	r.Post("/automation/daily", h.handleDailyTrigger)

	r.Route("/internal/automation", func(r chi.Router) {
		r.Use(InternalAuthMiddleware(internalKey))
		r.Post("/run", h.handleRunNow)
		r.Get("/summary", h.handleLastSummary)
	})

	return r
}
