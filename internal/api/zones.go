package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quietlawn/rachio-bridge/internal/bridge"
)

// handleGetZone returns a single zone by UID.
func (s *Server) handleGetZone(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	zone, _, err := s.store.ZoneByUID(uid)
	if err != nil {
		if errors.Is(err, bridge.ErrZoneNotFound) {
			writeNotFound(w, "unknown zone: "+uid)
		} else {
			writeInternalError(w, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, zone)
}

// runZoneRequest is the body for POST /zones/{uid}/run.
type runZoneRequest struct {
	DurationSeconds int `json:"duration_seconds"`
}

// handleRunZone starts a single zone. A missing or zero duration uses
// the configured default runtime.
func (s *Server) handleRunZone(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	zone, dev, err := s.store.ZoneByUID(uid)
	if err != nil {
		if errors.Is(err, bridge.ErrZoneNotFound) {
			writeNotFound(w, "unknown zone: "+uid)
		} else {
			writeInternalError(w, err.Error())
		}
		return
	}

	var req runZoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	if req.DurationSeconds < 0 {
		writeBadRequest(w, "duration_seconds must not be negative")
		return
	}

	duration := req.DurationSeconds
	if duration == 0 {
		duration = s.defaultRuntime
	}

	s.runCommand(w, r, dev, "zone.run", func() error {
		if err := s.cloud.StartZone(r.Context(), zone.CloudID, duration); err != nil {
			return err
		}
		return s.store.SetZoneDuration(zone.UID, duration)
	})
}
