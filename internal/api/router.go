/**
 * @description
 * This file sets up the HTTP router for the entries-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies any
 * necessary middleware, such as for authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// EntryRoutes creates and returns a new router for the entries service.
func EntryRoutes(h *EntryHandlers, jwksURL string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Group routes that require authentication.
	r.Group(func(r chi.Router) {
		// Apply JWT authentication middleware for production
		r.Use(AuthMiddleware(jwksURL))

		// Entry submission endpoints
		r.Post("/entries/single", h.SubmitSingleEntryHandler)
		r.Post("/entries/batch", h.SubmitBatchEntryHandler)
		r.Get("/submission-status", h.GetSubmissionStatusHandler)

		// Payment method management endpoints
		r.Post("/payment-methods/setup-intent", h.CreateSetupIntentHandler)
		r.Post("/payment-methods", h.SavePaymentMethodHandler)
		r.Get("/payment-methods", h.ListPaymentMethodsHandler)
		r.Put("/payment-methods/default", h.SetDefaultPaymentMethodHandler)
	})

	return r
}
