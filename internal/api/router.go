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

	r.Get("/health", s.handleHealth)

	r.Route("/api/appletv", func(r chi.Router) {
		// Discovery and registry
		r.Get("/scan", s.handleScan)
		r.Get("/devices", s.handleListDevices)
		r.Post("/add", s.handleAddDevice)
		r.Route("/devices/{id}", func(r chi.Router) {
			r.Patch("/", s.handleUpdateDevice)
			r.Delete("/", s.handleDeleteDevice)
		})

		// Pairing
		r.Route("/{id}/pair", func(r chi.Router) {
			r.Post("/start", s.handlePairStart)
			r.Post("/pin", s.handlePairPin)
		})

		// Default device
		r.Get("/default", s.handleGetDefault)
		r.Post("/default", s.handleSetDefault)

		// Dispatch
		r.Post("/play", s.handlePlay)
		r.Post("/stop", s.handleStop)
		r.Get("/activity", s.handleActivity)

		// Device-facing: the Apple TV pulls prepared streams from here.
		r.Get("/stream/{id}", s.handleStream)

		// WebSocket activity feed
		r.Get("/ws", s.handleWebSocket)
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
