package api

import (
	"io"
	"net/http"

	"github.com/quietlawn/rachio-bridge/internal/history"
	"github.com/quietlawn/rachio-bridge/internal/webhook"
)

// handleWebhookEvent ingests one cloud push notification.
//
// The cloud retries on non-2xx responses and disables callbacks that
// keep failing, so this handler always answers 200 with an empty body;
// bad payloads are logged and dropped, never bounced.
func (s *Server) handleWebhookEvent(w http.ResponseWriter, r *http.Request) {
	// Some webhook POSTs carry the same quota headers as API responses.
	// Feed them to the shared tracker so those pushes keep the picture
	// fresh between polls; headerless deliveries leave it untouched.
	if s.cloud != nil {
		s.cloud.RateLimit().RecordHeaders(r.Header)
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.logger.Warn("webhook body read failed", "error", err)
		w.WriteHeader(http.StatusOK)
		return
	}

	event, err := webhook.ParseEvent(body)
	if err != nil {
		s.logger.Warn("webhook payload dropped", "error", err)
		w.WriteHeader(http.StatusOK)
		return
	}

	outcome := s.webhooks.Route(event)
	s.logger.Debug("webhook event routed",
		"type", event.Type,
		"subtype", event.SubType,
		"device_id", event.DeviceID,
		"outcome", outcome.String(),
	)

	s.recordWebhookOutcome(event, outcome)

	w.WriteHeader(http.StatusOK)
}

// recordWebhookOutcome files the event in the history log, resolving the
// cloud device ID to the local UID when the device is known.
func (s *Server) recordWebhookOutcome(event *webhook.Event, outcome webhook.Outcome) {
	if s.recorder == nil {
		return
	}

	deviceUID := event.DeviceID
	zoneUID := ""
	if dev, err := s.store.DeviceByCloudID(event.DeviceID); err == nil {
		deviceUID = dev.UID
		if event.ZoneID != "" {
			if zone, ok := dev.Zones[event.ZoneID]; ok {
				zoneUID = zone.UID
			}
		}
	}
	if deviceUID == "" {
		return
	}

	s.recorder.Record(history.Entry{
		DeviceUID: deviceUID,
		ZoneUID:   zoneUID,
		Category:  event.Category,
		Type:      event.Type,
		Subtype:   event.SubType,
		Summary:   event.Summary,
		Outcome:   outcome.String(),
	})
}
