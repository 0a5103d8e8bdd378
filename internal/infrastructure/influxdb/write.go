package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteZoneRun records a zone run request.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - deviceUID: Bridge UID of the controller
//   - zoneUID: Bridge UID of the zone
//   - zoneName: Human-readable zone name (tag, low cardinality)
//   - durationSeconds: Requested run duration
func (c *Client) WriteZoneRun(deviceUID, zoneUID, zoneName string, durationSeconds int) {
	c.emit("zone_run",
		map[string]string{
			"device_uid": deviceUID,
			"zone_uid":   zoneUID,
			"zone_name":  zoneName,
		},
		map[string]any{"duration_seconds": durationSeconds},
	)
}

// WriteSignalStrength records the controller's reported WiFi RSSI.
//
// RSSI arrives with cold-reboot network reports; a flat-lining series
// usually means the controller has not rebooted, not that the signal is
// stable.
func (c *Client) WriteSignalStrength(deviceUID string, rssi int) {
	c.emit("signal_strength",
		map[string]string{"device_uid": deviceUID},
		map[string]any{"rssi": rssi},
	)
}

// WriteDeviceOnline records a controller availability transition as a
// 0/1 gauge, which graphs as an uptime band.
func (c *Client) WriteDeviceOnline(deviceUID string, online bool) {
	value := 0
	if online {
		value = 1
	}

	c.emit("device_online",
		map[string]string{"device_uid": deviceUID},
		map[string]any{"online": value},
	)
}

// WriteRateLimit records the cloud API quota as reported by response
// headers. Sampled rather than event-driven; gaps mean no API traffic.
func (c *Client) WriteRateLimit(limit, remaining int) {
	c.emit("api_rate_limit", nil, map[string]any{
		"limit":     limit,
		"remaining": remaining,
	})
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.emit(measurement, tags, fields)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., delayed data).
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writer.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}

// emit queues a point stamped now, dropping it when disconnected.
func (c *Client) emit(measurement string, tags map[string]string, fields map[string]any) {
	if !c.IsConnected() {
		return
	}
	c.writer.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}
