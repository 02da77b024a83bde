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

		// WebSocket. Browsers cannot set headers on the upgrade request,
		// so the JWT arrives as a query parameter and the handler
		// validates it itself.
		r.Get("/ws", s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			// Room endpoints
			r.Route("/rooms", func(r chi.Router) {
				r.Get("/", s.handleListRooms)
				r.Post("/", s.handleCreateRoom)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetRoom)
					r.Patch("/", s.handleUpdateRoom)
					r.Delete("/", s.handleDeleteRoom)
					r.Get("/permissions", s.handleListRoomPermissions)
				})
			})

			// Node endpoints. Nodes self-register via heartbeat, so there
			// is no create route.
			r.Route("/nodes", func(r chi.Router) {
				r.Get("/", s.handleListNodes)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetNode)
					r.Patch("/", s.handleUpdateNode)
					r.Delete("/", s.handleDeleteNode)

					r.Get("/scan", s.handleGetStagedScan)
					r.Delete("/scan", s.handleClearStagedScan)

					r.Post("/enrollment/start", s.handleStartEnrollment)
					r.Post("/enrollment/complete", s.handleCompleteEnrollment)
				})
			})

			// Key user endpoints
			r.Route("/key-users", func(r chi.Router) {
				r.Get("/", s.handleListKeyUsers)
				r.Post("/", s.handleCreateKeyUser)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetKeyUser)
					r.Patch("/", s.handleUpdateKeyUser)
					r.Delete("/", s.handleDeleteKeyUser)
					r.Put("/active", s.handleSetKeyUserActive)

					r.Get("/permissions", s.handleListUserPermissions)
					r.Put("/permissions/{roomId}", s.handleGrantPermission)
					r.Delete("/permissions/{roomId}", s.handleRevokePermission)
				})
			})

			// Key endpoints
			r.Route("/keys", func(r chi.Router) {
				r.Get("/", s.handleListKeys)
				r.Post("/", s.handleCreateKey)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetKey)
					r.Delete("/", s.handleDeleteKey)
					r.Put("/active", s.handleSetKeyActive)
					r.Put("/holder", s.handleAssignKeyHolder)
				})
			})

			// Access ledger (read only)
			r.Get("/access-logs", s.handleListAccessLogs)
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
