package webhook

import (
	"github.com/quietlawn/rachio-bridge/internal/bridge"
)

// Outcome is the result of routing one inbound event.
type Outcome int

const (
	// Handled means the event was applied to an entity.
	Handled Outcome = iota

	// Unhandled means the event was recognized but carried nothing to
	// apply, or its target entity is not (yet) known. The next
	// reconciliation will pick up whatever the event described.
	Unhandled

	// Rejected means the event's external ID did not match this
	// account. The event is silently dropped, never applied.
	Rejected
)

// String returns the lowercase tag for the outcome.
func (o Outcome) String() string {
	switch o {
	case Handled:
		return "handled"
	case Unhandled:
		return "unhandled"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Logger defines the logging interface used by the Router.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Router authenticates inbound events by external ID, locates the target
// device or zone, and applies the update through the entity store.
//
// Every event is fully isolated: a malformed or unroutable event never
// affects subsequent events or other entities, and no routing failure
// propagates past Route.
type Router struct {
	store      *bridge.Store
	externalID string
	logger     Logger
}

// NewRouter creates a router bound to one account's store and expected
// external ID.
func NewRouter(store *bridge.Store, externalID string) *Router {
	return &Router{
		store:      store,
		externalID: externalID,
		logger:     noopLogger{},
	}
}

// SetLogger sets a logger for routing decisions.
// Safe to call before events flow; nil restores the no-op logger.
func (r *Router) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	r.logger = logger
}

// Route applies one event to the entity model and reports the outcome.
func (r *Router) Route(ev *Event) Outcome {
	if ev.ExternalID != r.externalID {
		r.logger.Debug("event rejected: external id mismatch",
			"event_type", ev.Type, "device_id", ev.DeviceID)
		return Rejected
	}

	dev, err := r.store.DeviceByCloudID(ev.DeviceID)
	if err != nil {
		r.logger.Warn("event for unknown device",
			"event_type", ev.Type, "device_id", ev.DeviceID)
		return Unhandled
	}

	outcome := r.apply(ev, dev)

	// The most recent event summary is surfaced on the device for any
	// event that authenticated and found its device.
	if ev.Summary != "" {
		_ = r.store.SetDeviceLastEvent(dev.UID, ev.Summary)
	}

	r.logger.Debug("event routed",
		"event_type", ev.Type, "subtype", ev.SubType,
		"device", dev.Name, "outcome", outcome.String())
	return outcome
}

func (r *Router) apply(ev *Event, dev *bridge.Device) Outcome {
	switch ev.Type {
	case TypeZoneStatus:
		return r.applyZoneStatus(ev)

	case TypeDelta:
		if ev.SubType == SubtypeZoneDelta {
			return r.applyZoneDelta(ev)
		}
		return Unhandled

	case TypeDeviceStatus:
		return r.applyDeviceStatus(ev, dev)

	case TypeScheduleStatus:
		// Informational pass-through: surface the schedule name, touch
		// nothing else.
		if ev.ScheduleName != "" {
			_ = r.store.SetDeviceSchedule(dev.UID, ev.ScheduleName)
		}
		return Handled

	default:
		r.logger.Info("unrecognized event type",
			"event_type", ev.Type, "subtype", ev.SubType, "device", dev.Name)
		return Unhandled
	}
}

func (r *Router) applyZoneStatus(ev *Event) Outcome {
	zone, err := r.store.ZoneByNumber(ev.DeviceID, ev.ZoneRunStatus.ZoneNumber)
	if err != nil {
		r.logger.Warn("zone status event for unknown zone",
			"device_id", ev.DeviceID, "zone_number", ev.ZoneRunStatus.ZoneNumber)
		return Unhandled
	}

	state := ev.ZoneRunStatus.State
	if state == "" {
		state = ev.SubType
	}
	_ = r.store.SetZoneStatus(zone.UID, state)

	if ev.DurationMinutes > 0 {
		_ = r.store.SetZoneDuration(zone.UID, ev.DurationMinutes*60)
	}
	return Handled
}

func (r *Router) applyZoneDelta(ev *Event) Outcome {
	zone, err := r.store.ZoneByCloudID(ev.DeviceID, ev.ZoneID)
	if err != nil {
		r.logger.Warn("zone delta for unknown zone",
			"device_id", ev.DeviceID, "zone_id", ev.ZoneID)
		return Unhandled
	}

	// Deltas announce that zone attributes changed without carrying the
	// new values; the follow-up reconciliation fetches them. Surfacing
	// the summary on the parent device (done by Route) is all there is
	// to apply here.
	r.logger.Debug("zone delta received", "zone", zone.Name)
	return Handled
}

func (r *Router) applyDeviceStatus(ev *Event, dev *bridge.Device) Outcome {
	switch ev.SubType {
	case SubtypeColdReboot:
		if ev.Network == nil {
			return Unhandled
		}
		_ = r.store.SetDeviceNetwork(dev.UID, bridge.NetworkInfo{
			IP:      ev.Network.IP,
			Netmask: ev.Network.Netmask,
			Gateway: ev.Network.Gateway,
			DNS1:    ev.Network.DNS1,
			DNS2:    ev.Network.DNS2,
			RSSI:    ev.Network.RSSI,
		})
		return Handled

	case SubtypeOnline:
		_ = r.store.SetDeviceStatus(dev.UID, bridge.StatusOnline, "")
		return Handled

	case SubtypeOffline, SubtypeOfflineNotification:
		_ = r.store.SetDeviceStatus(dev.UID, bridge.StatusOffline, "")
		return Handled

	case SubtypeSleepModeOn:
		_ = r.store.SetDevicePaused(dev.UID, true)
		return Handled

	case SubtypeSleepModeOff:
		_ = r.store.SetDevicePaused(dev.UID, false)
		return Handled

	case SubtypeRainDelayOn, SubtypeRainDelayOff,
		SubtypeRainSensorOn, SubtypeRainSensorOff:
		// The payload carries no durations or sensor values, so there is
		// nothing to apply; acknowledged and left for the next refresh.
		return Unhandled

	default:
		r.logger.Info("unrecognized device status subtype",
			"subtype", ev.SubType, "device", dev.Name)
		return Unhandled
	}
}
