package influxdb

import (
	"testing"

	"github.com/quietlawn/rachio-bridge/internal/bridge"
)

type fakeWriter struct {
	zoneRuns []zoneRun
	signals  []signal
	online   []onlineEdge
}

type zoneRun struct {
	deviceUID, zoneUID, name string
	duration                 int
}

type signal struct {
	deviceUID string
	rssi      int
}

type onlineEdge struct {
	deviceUID string
	online    bool
}

func (w *fakeWriter) WriteZoneRun(deviceUID, zoneUID, zoneName string, durationSeconds int) {
	w.zoneRuns = append(w.zoneRuns, zoneRun{deviceUID, zoneUID, zoneName, durationSeconds})
}

func (w *fakeWriter) WriteSignalStrength(deviceUID string, rssi int) {
	w.signals = append(w.signals, signal{deviceUID, rssi})
}

func (w *fakeWriter) WriteDeviceOnline(deviceUID string, online bool) {
	w.online = append(w.online, onlineEdge{deviceUID, online})
}

func TestTelemetryZoneRun(t *testing.T) {
	writer := &fakeWriter{}
	tel := NewTelemetry(writer)

	tel.StateChanged(bridge.Change{
		Entity: bridge.EntityRef{
			Kind:      bridge.KindZone,
			UID:       "zone-1",
			DeviceUID: "dev-1",
			Name:      "Roses",
		},
		Field: bridge.FieldDuration,
		Old:   0,
		New:   300,
	})

	if len(writer.zoneRuns) != 1 {
		t.Fatalf("recorded %d zone runs, want 1", len(writer.zoneRuns))
	}
	got := writer.zoneRuns[0]
	if got.deviceUID != "dev-1" || got.zoneUID != "zone-1" || got.name != "Roses" || got.duration != 300 {
		t.Errorf("zone run = %+v", got)
	}
}

func TestTelemetrySignalStrength(t *testing.T) {
	writer := &fakeWriter{}
	tel := NewTelemetry(writer)

	tel.StateChanged(bridge.Change{
		Entity: bridge.EntityRef{Kind: bridge.KindDevice, UID: "dev-1"},
		Field:  bridge.FieldNetwork,
		New:    bridge.NetworkInfo{IP: "10.0.0.12", RSSI: -61},
	})

	if len(writer.signals) != 1 {
		t.Fatalf("recorded %d signals, want 1", len(writer.signals))
	}
	if got := writer.signals[0]; got.deviceUID != "dev-1" || got.rssi != -61 {
		t.Errorf("signal = %+v", got)
	}
}

func TestTelemetryDeviceOnline(t *testing.T) {
	writer := &fakeWriter{}
	tel := NewTelemetry(writer)

	tel.StateChanged(bridge.Change{
		Entity: bridge.EntityRef{Kind: bridge.KindDevice, UID: "dev-1"},
		Field:  bridge.FieldStatus,
		Old:    bridge.StatusOnline,
		New:    bridge.StatusOffline,
	})
	tel.StateChanged(bridge.Change{
		Entity: bridge.EntityRef{Kind: bridge.KindDevice, UID: "dev-1"},
		Field:  bridge.FieldStatus,
		Old:    bridge.StatusOffline,
		New:    bridge.StatusOnline,
	})

	want := []onlineEdge{{"dev-1", false}, {"dev-1", true}}
	if len(writer.online) != len(want) {
		t.Fatalf("recorded %d edges, want %d", len(writer.online), len(want))
	}
	for i, edge := range want {
		if writer.online[i] != edge {
			t.Errorf("edge[%d] = %+v, want %+v", i, writer.online[i], edge)
		}
	}
}

func TestTelemetryIgnoresUnrelatedFields(t *testing.T) {
	writer := &fakeWriter{}
	tel := NewTelemetry(writer)

	tel.EntityDiscovered(bridge.EntityRef{Kind: bridge.KindDevice, UID: "dev-1"})
	tel.StateChanged(bridge.Change{
		Entity: bridge.EntityRef{Kind: bridge.KindDevice, UID: "dev-1"},
		Field:  bridge.FieldName,
		Old:    "Front Yard",
		New:    "Back Yard",
	})

	if len(writer.zoneRuns)+len(writer.signals)+len(writer.online) != 0 {
		t.Error("unrelated change produced telemetry")
	}
}
