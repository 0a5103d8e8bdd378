package influxdb

import (
	"github.com/quietlawn/rachio-bridge/internal/bridge"
)

// TelemetryWriter is the subset of Client used by the Telemetry
// observer. Declared here so tests can substitute a fake without a
// running server.
type TelemetryWriter interface {
	WriteZoneRun(deviceUID, zoneUID, zoneName string, durationSeconds int)
	WriteSignalStrength(deviceUID string, rssi int)
	WriteDeviceOnline(deviceUID string, online bool)
}

// Telemetry is a bridge.Observer that turns state transitions into
// time-series points.
//
// The underlying write API batches asynchronously, so callbacks return
// without blocking the dispatcher.
type Telemetry struct {
	writer TelemetryWriter
}

// NewTelemetry creates a telemetry observer backed by the given writer.
func NewTelemetry(writer TelemetryWriter) *Telemetry {
	return &Telemetry{writer: writer}
}

// EntityDiscovered implements bridge.Observer. Discoveries carry no
// measurable value; the first state transition provides the data point.
func (t *Telemetry) EntityDiscovered(bridge.EntityRef) {}

// StateChanged implements bridge.Observer.
func (t *Telemetry) StateChanged(ch bridge.Change) {
	switch {
	case ch.Entity.Kind == bridge.KindZone && ch.Field == bridge.FieldDuration:
		if seconds, ok := ch.New.(int); ok {
			t.writer.WriteZoneRun(ch.Entity.DeviceUID, ch.Entity.UID, ch.Entity.Name, seconds)
		}
	case ch.Entity.Kind == bridge.KindDevice && ch.Field == bridge.FieldNetwork:
		if network, ok := ch.New.(bridge.NetworkInfo); ok {
			t.writer.WriteSignalStrength(ch.Entity.UID, network.RSSI)
		}
	case ch.Entity.Kind == bridge.KindDevice && ch.Field == bridge.FieldStatus:
		if status, ok := ch.New.(string); ok {
			t.writer.WriteDeviceOnline(ch.Entity.UID, status == bridge.StatusOnline)
		}
	}
}
