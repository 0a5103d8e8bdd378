package history

import (
	"context"
	"time"
)

// Outcome values recorded with each entry.
const (
	OutcomeHandled    = "handled"
	OutcomeUnhandled  = "unhandled"
	OutcomeRejected   = "rejected"
	OutcomeMalformed  = "malformed"
	OutcomeDiscovered = "discovered"
	OutcomeChanged    = "state_changed"
)

// Entry represents a single recorded event for a device or zone.
//
// Webhook events, reconciliation discoveries, and accepted state
// transitions all land here, providing a local audit trail even when the
// time-series database is unavailable.
type Entry struct {
	// ID is the auto-incremented primary key for the history row.
	ID int64 `json:"id"`

	// DeviceUID is the local UID of the device the event concerns.
	DeviceUID string `json:"device_uid"`

	// ZoneUID is the local UID of the affected zone, empty for
	// device-level events.
	ZoneUID string `json:"zone_uid,omitempty"`

	// Category is the upstream event category, when present.
	Category string `json:"category,omitempty"`

	// Type is the event type (DEVICE_STATUS, ZONE_STATUS, ...) or a
	// bridge-internal marker (DISCOVERED, STATE_CHANGED).
	Type string `json:"type"`

	// Subtype narrows the type, when present.
	Subtype string `json:"subtype,omitempty"`

	// Summary is the human-readable event text.
	Summary string `json:"summary,omitempty"`

	// Outcome records how the event was disposed of.
	Outcome string `json:"outcome"`

	// CreatedAt is the timestamp of the record (UTC).
	CreatedAt time.Time `json:"created_at"`
}

// Repository stores and retrieves event history.
//
// Implementations must be thread-safe and use UTC timestamps.
type Repository interface {
	// RecordEvent persists one entry. The CreatedAt and ID fields are
	// assigned by the store.
	RecordEvent(ctx context.Context, entry Entry) error

	// GetHistory returns recent entries for the device, ordered newest
	// first. The limit may be clamped by the implementation.
	GetHistory(ctx context.Context, deviceUID string, limit int) ([]Entry, error)
}
