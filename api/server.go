/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/growers/*         Pending payments, advances, allocation
  /api/distributions/*   Upstream distribution feed
  /api/reconciliation/*  Working set, reconcile, complete, report
  /health                Liveness probe

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Grower routes
		r.Route("/growers", func(r chi.Router) {
			r.Post("/", h.CreateSelection)
			r.Get("/{number}/payment", h.GetPayment)
			r.Get("/{number}/advances", h.ListAdvances)
			r.Post("/{number}/advances", h.CreateAdvance)
			r.Post("/{number}/allocation/preview", h.PreviewAllocation)
			r.Post("/{number}/allocation/commit", h.CommitAllocation)
		})

		// Distribution feed routes
		r.Route("/distributions", func(r chi.Router) {
			r.Post("/", h.CreateDistribution)
			r.Post("/{id}/lines", h.AddLine)
			r.Post("/{id}/source-entries", h.AddSourceEntry)
		})

		// Scenario routes (development/demo)
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})

		// Reconciliation workflow routes
		r.Route("/reconciliation", func(r chi.Router) {
			r.Post("/load", h.LoadWorkingSet)
			r.Get("/distributions", h.ListDistributions)
			r.Post("/distributions/{id}/reconcile", h.ReconcileDistribution)
			r.Post("/distributions/{id}/complete", h.CompleteDistribution)
			r.Get("/report", h.GetCurrentReport)
			r.Post("/report/export", h.ExportReport)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
