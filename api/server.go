/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

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
  4. CORS:       Cross-origin requests for the settings UI

ROUTE GROUPS:
  /api/members/*   Member registry and balance reads
  /api/usages/*    Usage recording and reversal
  /api/policies/*  Policy configuration
  /api/admin/*     Daily update trigger, manual grants, adjustments

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
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Member routes
		r.Route("/members", func(r chi.Router) {
			r.Get("/", h.ListMembers)
			r.Post("/", h.CreateMember)
			r.Get("/{id}", h.GetMember)
			r.Get("/{id}/balance", h.GetBalance)
			r.Get("/{id}/transactions", h.GetTransactions)
		})

		// Usage routes
		r.Route("/usages", func(r chi.Router) {
			r.Post("/", h.RecordUsage)
			r.Post("/{requestID}/cancel", h.ReverseUsage)
		})

		// Policy routes
		r.Route("/policies", func(r chi.Router) {
			r.Get("/active", h.GetActivePolicy)
			r.Post("/", h.CreatePolicy)
			r.Post("/{id}/activate", h.ActivatePolicy)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/daily-update", h.RunDailyUpdate)
			r.Post("/grants", h.CreateManualGrant)
			r.Post("/grants/{id}/cancel", h.CancelGrant)
			r.Post("/adjustments", h.CreateAdjustment)
		})
	})

	return r
}
