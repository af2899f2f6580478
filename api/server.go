/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the case-management frontend

ROUTE GROUPS:
  /api/activities/*    Activity and schedule lifecycle
  /api/schedules/*     Payment generation and reporting
  /api/payments/*      Disbursement recording
  /api/rates/*         Shared rate management
  /api/exclusions/*    Payment date exclusions
  /api/providers/*     Service providers
  /api/admin/*         Recalculation and renewal jobs

SECURITY NOTE:
  No authentication middleware currently. The engine runs behind the
  case-management system's gateway, which authenticates callers.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
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
		// Activity routes
		r.Route("/activities", func(r chi.Router) {
			r.Get("/", h.ListActivities)
			r.Post("/", h.CreateActivity)
			r.Get("/{id}", h.GetActivity)
			r.Post("/{id}/supersede", h.SupersedeActivity)
			r.Get("/{id}/current", h.GetCurrentActivity)
			r.Get("/{id}/history", h.GetActivityHistory)
			r.Get("/{id}/schedule", h.GetActivitySchedule)
		})

		// Schedule routes
		r.Route("/schedules", func(r chi.Router) {
			r.Get("/{id}", h.GetSchedule)
			r.Get("/{id}/payments", h.GetPayments)
			r.Post("/{id}/synchronize", h.SynchronizePayments)
			r.Post("/{id}/generate", h.GeneratePayments)
			r.Get("/{id}/assessments", h.GetAssessments)
			r.Get("/{id}/summary", h.GetYearlySummary)
		})

		// Payment routes
		r.Route("/payments", func(r chi.Router) {
			r.Post("/{id}/paid", h.MarkPaid)
		})

		// Rate routes
		r.Route("/rates", func(r chi.Router) {
			r.Post("/", h.CreateRate)
			r.Get("/flagged", h.ListFlaggedRates)
			r.Get("/{id}", h.GetRate)
			r.Post("/{id}/amount", h.SetRateAmount)
		})

		// Exclusion routes
		r.Route("/exclusions", func(r chi.Router) {
			r.Get("/", h.ListExclusions)
			r.Post("/", h.AddExclusions)
			r.Post("/defaults", h.AddDefaultExclusions)
		})

		// Provider routes
		r.Route("/providers", func(r chi.Router) {
			r.Post("/", h.CreateProvider)
			r.Get("/{id}", h.GetProvider)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/recalculate", h.TriggerRecalculation)
			r.Post("/renew", h.TriggerRenewal)
		})
	})

	return r
}
