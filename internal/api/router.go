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

	// Prometheus scrape endpoint
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler(s.updateGauges))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)

		r.Route("/contexts", func(r chi.Router) {
			r.Get("/", s.handleListContexts)
			r.Post("/", s.handleCreateContext)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetContext)
				r.Delete("/", s.handleReleaseContext)
				r.Get("/sessions", s.handleListContextSessions)
				r.Post("/{action}", s.handleContextAction)
			})
		})

		r.Post("/live/effects", s.handleInsertLiveEffects)

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", s.handleListSessions)
			r.Get("/{id}", s.handleGetSession)
		})

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"version":  s.version,
		"contexts": s.manager.Count(),
	})
}

// updateGauges refreshes point-in-time gauges before a scrape.
func (s *Server) updateGauges() {
	s.metrics.SetContexts(s.manager.Count())
}
