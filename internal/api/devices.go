package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/quietlawn/rachio-bridge/internal/bridge"
	"github.com/quietlawn/rachio-bridge/internal/rachio"
)

// maxRainDelaySeconds is the longest rain delay the cloud accepts (7 days).
const maxRainDelaySeconds = 7 * 24 * 60 * 60

// handleListDevices returns all known controllers.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	devices := s.store.Devices()
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleGetDevice returns a single controller by UID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	dev, ok := s.deviceFromRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, dev)
}

// handleEnableDevice turns standby mode off.
func (s *Server) handleEnableDevice(w http.ResponseWriter, r *http.Request) {
	dev, ok := s.deviceFromRequest(w, r)
	if !ok {
		return
	}
	s.runCommand(w, r, dev, "device.enable", func() error {
		return s.cloud.EnableDevice(r.Context(), dev.CloudID)
	})
}

// handleDisableDevice puts the controller in standby mode.
func (s *Server) handleDisableDevice(w http.ResponseWriter, r *http.Request) {
	dev, ok := s.deviceFromRequest(w, r)
	if !ok {
		return
	}
	s.runCommand(w, r, dev, "device.disable", func() error {
		return s.cloud.DisableDevice(r.Context(), dev.CloudID)
	})
}

// handleStopWatering halts all watering on the controller.
func (s *Server) handleStopWatering(w http.ResponseWriter, r *http.Request) {
	dev, ok := s.deviceFromRequest(w, r)
	if !ok {
		return
	}
	s.runCommand(w, r, dev, "device.stop_water", func() error {
		return s.cloud.StopWatering(r.Context(), dev.CloudID)
	})
}

// rainDelayRequest is the body for POST /devices/{uid}/rain_delay.
type rainDelayRequest struct {
	DurationSeconds int `json:"duration_seconds"`
}

// handleRainDelay sets a rain delay on the controller. A zero duration
// cancels an active delay.
func (s *Server) handleRainDelay(w http.ResponseWriter, r *http.Request) {
	dev, ok := s.deviceFromRequest(w, r)
	if !ok {
		return
	}

	var req rainDelayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	if req.DurationSeconds < 0 || req.DurationSeconds > maxRainDelaySeconds {
		writeBadRequest(w, "duration_seconds must be between 0 and "+strconv.Itoa(maxRainDelaySeconds))
		return
	}

	s.runCommand(w, r, dev, "device.rain_delay", func() error {
		if err := s.cloud.SetRainDelay(r.Context(), dev.CloudID, req.DurationSeconds); err != nil {
			return err
		}
		return s.store.SetDeviceRainDelay(dev.UID, req.DurationSeconds)
	})
}

// runZonesRequest is the body for POST /devices/{uid}/run.
type runZonesRequest struct {
	Zones           []int `json:"zones"`
	DurationSeconds int   `json:"duration_seconds"`
}

// handleRunZones starts several zones sequentially. An empty zone list
// runs every enabled zone in number order.
func (s *Server) handleRunZones(w http.ResponseWriter, r *http.Request) {
	dev, ok := s.deviceFromRequest(w, r)
	if !ok {
		return
	}

	var req runZonesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}

	duration := req.DurationSeconds
	if duration <= 0 {
		duration = s.defaultRuntime
	}

	zones, err := selectZones(dev, req.Zones)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if len(zones) == 0 {
		writeBadRequest(w, "no enabled zones to run")
		return
	}

	starts := make([]rachio.ZoneStart, len(zones))
	for i, zone := range zones {
		starts[i] = rachio.ZoneStart{
			ID:        zone.CloudID,
			Duration:  duration,
			SortOrder: i + 1,
		}
	}

	s.runCommand(w, r, dev, "zone.run_multiple", func() error {
		if err := s.cloud.StartZones(r.Context(), starts); err != nil {
			return err
		}
		for _, zone := range zones {
			if err := s.store.SetZoneDuration(zone.UID, duration); err != nil {
				return err
			}
		}
		return nil
	})
}

// handleDeviceHistory returns the controller's recorded event log,
// newest first. The limit query parameter caps the page size.
func (s *Server) handleDeviceHistory(w http.ResponseWriter, r *http.Request) {
	if s.historyDB == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "history storage is not configured")
		return
	}

	dev, ok := s.deviceFromRequest(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		var err error
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
	}

	entries, err := s.historyDB.GetHistory(r.Context(), dev.UID, limit)
	if err != nil {
		s.logger.Error("history query failed", "device_uid", dev.UID, "error", err)
		writeInternalError(w, "history query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_uid": dev.UID,
		"entries":    entries,
		"count":      len(entries),
	})
}

// deviceFromRequest resolves the {uid} URL parameter to a controller
// snapshot, writing a 404 when it is unknown.
func (s *Server) deviceFromRequest(w http.ResponseWriter, r *http.Request) (*bridge.Device, bool) {
	uid := chi.URLParam(r, "uid")
	dev, err := s.store.DeviceByUID(uid)
	if err != nil {
		if errors.Is(err, bridge.ErrDeviceNotFound) {
			writeNotFound(w, "unknown device: "+uid)
		} else {
			writeInternalError(w, err.Error())
		}
		return nil, false
	}
	return dev, true
}

// runCommand executes a cloud command for a controller. Failures mark
// the controller's status as a communication error so consumers see the
// device degrade; the next successful reconciliation clears it.
func (s *Server) runCommand(w http.ResponseWriter, r *http.Request, dev *bridge.Device, op string, fn func() error) {
	if err := fn(); err != nil {
		s.logger.Warn("cloud command failed",
			"op", op,
			"device_uid", dev.UID,
			"error", err,
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
		if statusErr := s.store.SetDeviceStatus(dev.UID, bridge.StatusCommError, err.Error()); statusErr != nil {
			s.logger.Error("failed to mark device after command failure", "device_uid", dev.UID, "error", statusErr)
		}
		writeCloudError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"op":     op,
	})
}

// selectZones resolves the requested zone numbers against the
// controller, or returns every enabled zone in number order when the
// request names none.
func selectZones(dev *bridge.Device, numbers []int) ([]*bridge.Zone, error) {
	zones := make([]*bridge.Zone, 0, len(dev.Zones))

	if len(numbers) == 0 {
		for _, zone := range dev.Zones {
			if zone.Enabled {
				zones = append(zones, zone)
			}
		}
		sort.Slice(zones, func(i, j int) bool { return zones[i].Number < zones[j].Number })
		return zones, nil
	}

	byNumber := make(map[int]*bridge.Zone, len(dev.Zones))
	for _, zone := range dev.Zones {
		byNumber[zone.Number] = zone
	}
	for _, n := range numbers {
		zone, ok := byNumber[n]
		if !ok {
			return nil, errors.New("unknown zone number: " + strconv.Itoa(n))
		}
		zones = append(zones, zone)
	}
	return zones, nil
}
