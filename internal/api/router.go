/**
 * @description
 * This file sets up the HTTP router. It defines the API endpoints,
 * associates them with their corresponding handlers, and applies the
 * authentication middleware to the protected groups.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes creates and returns the service router.
func Routes(h *Handlers, jwtSecret string) http.Handler {
	r := chi.NewRouter()

	// Standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Public onboarding endpoints.
	r.Post("/accounts", h.RegisterHandler)
	r.Post("/verification/issue", h.IssueCodeHandler)
	r.Post("/verification/check", h.CheckCodeHandler)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwtSecret))

		r.Get("/me", h.MeHandler)
		r.Post("/transfers/send", h.SendHandler)
		r.Post("/transfers/request", h.RequestHandler)
		r.Get("/transactions", h.HistoryHandler)
		r.Get("/transactions/{id}", h.GetTransactionHandler)

		// Operator endpoints; the admin policy gates access per caller.
		r.Route("/admin/delivery", func(r chi.Router) {
			r.Get("/logs", h.DeliveryLogsHandler)
			r.Get("/pending", h.DeliveryPendingHandler)
			r.Get("/stats", h.DeliveryStatsHandler)
			r.Post("/retry/{id}", h.DeliveryRetryHandler)
		})
	})

	return r
}
