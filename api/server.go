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
  /api/clients/*    Client management and debt rollups
  /api/units/*      Unit management and bulk delete
  /api/payments/*   Ledger operations
  /api/admin/*      Migration and sweep triggers

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
		// Client routes
		r.Route("/clients", func(r chi.Router) {
			r.Get("/", h.ListClients)
			r.Post("/", h.SaveClient)
			r.Get("/{id}", h.GetClient)
			r.Delete("/{id}", h.DeleteClient)
			r.Get("/{id}/debt", h.GetClientDebt)
			r.Get("/{id}/payments", h.ListClientPayments)
		})

		// Unit routes
		r.Route("/units", func(r chi.Router) {
			r.Post("/", h.SaveUnit)
			r.Post("/bulk-delete", h.BulkDeleteUnits)
			r.Get("/{id}", h.GetUnit)
			r.Get("/{id}/notifications", h.ListUnitNotifications)
		})

		// Payment routes
		r.Route("/payments", func(r chi.Router) {
			r.Get("/", h.ListPayments)
			r.Post("/", h.RegisterPayment)
			r.Delete("/{id}", h.DeletePayment)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/migrate", h.TriggerMigration)
			r.Post("/sweep", h.TriggerSweep)
		})

		r.Get("/summary", h.GetFleetSummary)
	})

	// Minimal landing page pointing at the API surface.
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Fleet Billing</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Fleet Billing API</h1>
<ul>
<li><a href="/api/clients">/api/clients</a> - List clients</li>
<li><a href="/api/payments">/api/payments</a> - Payment ledger</li>
<li><a href="/api/summary">/api/summary</a> - Fleet summary</li>
</ul>
</body>
</html>`))
	})

	return r
}
