package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Auth endpoints (no auth required)
		r.Post("/auth/login", s.handleLogin)

		// System metrics (no auth required for basic monitoring)
		r.Get("/metrics", s.handleMetrics)

		// WebSocket upgrade. Browsers cannot attach an Authorization
		// header to the handshake, so the consumed single-use ticket
		// (issued by the protected /auth/ws-ticket endpoint) is the auth.
		r.Get("/ws", s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			// WS ticket requires authentication - user must be logged in to request a ticket
			r.Post("/auth/ws-ticket", s.handleWSTicket)

			// Pairing flow endpoints
			r.Route("/flows", func(r chi.Router) {
				r.Get("/", s.handleListFlowDomains)
				r.Post("/", s.handleStartFlow)

				r.Route("/{id}", func(r chi.Router) {
					r.Post("/", s.handleSubmitFlow)
					r.Delete("/", s.handleCancelFlow)
				})
			})

			// Config entry endpoints
			r.Route("/entries", func(r chi.Router) {
				r.Get("/", s.handleListEntries)

				r.Route("/{id}", func(r chi.Router) {
					r.Delete("/", s.handleDeleteEntry)
					r.Post("/reload", s.handleReloadEntry)
				})
			})

			// Entity endpoints
			r.Route("/entities", func(r chi.Router) {
				r.Get("/", s.handleListEntities)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetEntity)
					r.Post("/command", s.handleEntityCommand)
				})
			})

			// Destructive system operations
			r.Post("/system/factory-reset", s.handleFactoryReset)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
