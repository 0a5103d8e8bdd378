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

	// Inbound cloud events. Outside /api/v1 so the registered callback
	// URL stays short and version-independent.
	r.Post("/webhook/rachio", s.handleWebhookEvent)

	// Zone image proxy
	if s.imgCfg.Enabled {
		r.Get("/img/*", s.handleImageProxy)
	}

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		r.Post("/sync", s.handleSync)

		// Controller endpoints
		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)

			r.Route("/{uid}", func(r chi.Router) {
				r.Get("/", s.handleGetDevice)
				r.Post("/enable", s.handleEnableDevice)
				r.Post("/disable", s.handleDisableDevice)
				r.Post("/stop", s.handleStopWatering)
				r.Post("/rain_delay", s.handleRainDelay)
				r.Post("/run", s.handleRunZones)
				r.Get("/history", s.handleDeviceHistory)
			})
		})

		// Zone endpoints
		r.Route("/zones", func(r chi.Router) {
			r.Route("/{uid}", func(r chi.Router) {
				r.Get("/", s.handleGetZone)
				r.Post("/run", s.handleRunZone)
			})
		})

		// WebSocket event stream
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

// handleSync queues an out-of-band reconciliation run.
func (s *Server) handleSync(w http.ResponseWriter, _ *http.Request) {
	if s.sync == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "reconciliation is not running")
		return
	}

	queued := s.sync.TriggerSync()
	writeJSON(w, http.StatusAccepted, map[string]any{
		"queued": queued,
	})
}
