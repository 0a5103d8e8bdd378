package bridge

import "time"

// EntityKind distinguishes the two levels of the entity hierarchy.
type EntityKind string

const (
	KindDevice EntityKind = "device"
	KindZone   EntityKind = "zone"
)

// EntityRef identifies an entity to observers without exposing the
// mutable entity itself.
type EntityRef struct {
	Kind      EntityKind `json:"kind"`
	UID       string     `json:"uid"`
	CloudID   string     `json:"cloud_id"`
	DeviceUID string     `json:"device_uid,omitempty"` // parent, set for zones
	Name      string     `json:"name"`
}

// Change describes one accepted field transition on an entity.
type Change struct {
	Entity EntityRef `json:"entity"`
	Field  string    `json:"field"`
	Old    any       `json:"old"`
	New    any       `json:"new"`
	Time   time.Time `json:"time"`
}

// Observable field keys used with the Dispatcher. Values stored under
// these keys must be comparable (strings, numbers, bools, or flat structs
// of those).
const (
	FieldName         = "name"
	FieldStatus       = "status"
	FieldEnabled      = "enabled"
	FieldPaused       = "paused"
	FieldNetwork      = "network"
	FieldRainDelay    = "rain_delay"
	FieldScheduleName = "schedule_name"
	FieldLastEvent    = "last_event"
	FieldDuration     = "duration"
	FieldLastWatered  = "last_watered"
)

// Device status values surfaced to observers. ONLINE and OFFLINE come
// from the cloud; COMM_ERROR is set locally when API calls against the
// device fail persistently.
const (
	StatusOnline    = "ONLINE"
	StatusOffline   = "OFFLINE"
	StatusCommError = "COMM_ERROR"
)

// NetworkInfo is the controller's reported network state, delivered via
// cold-reboot webhook events. Comparable by value.
type NetworkInfo struct {
	IP      string `json:"ip"`
	Netmask string `json:"netmask"`
	Gateway string `json:"gateway"`
	DNS1    string `json:"dns1"`
	DNS2    string `json:"dns2"`
	RSSI    int    `json:"rssi"`
}

// Device is the local model of a cloud controller. Instances are owned
// by the Store; callers outside this package see copies only.
type Device struct {
	UID          string  `json:"uid"`
	CloudID      string  `json:"cloud_id"`
	Name         string  `json:"name"`
	Model        string  `json:"model"`
	SerialNumber string  `json:"serial_number"`
	MacAddress   string  `json:"mac_address"`
	Status       string  `json:"status"`
	StatusDetail string  `json:"status_detail,omitempty"`
	Enabled      bool    `json:"enabled"`
	Paused       bool    `json:"paused"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	ScheduleMode string  `json:"schedule_mode"`

	Network      NetworkInfo `json:"network"`
	RainDelay    int         `json:"rain_delay"`    // seconds, 0 = none
	RunTime      int         `json:"run_time"`      // default zone runtime, seconds
	RunZones     string      `json:"run_zones"`     // zone selection for multi-run
	ScheduleName string      `json:"schedule_name"` // currently running schedule
	LastEvent    string      `json:"last_event"`    // human-readable summary

	// Zones keyed by cloud zone ID.
	Zones map[string]*Zone `json:"zones"`
}

// Zone is the local model of an irrigation zone. Owned by its parent
// Device; the parent reference is set at creation and never changes.
type Zone struct {
	UID       string `json:"uid"`
	CloudID   string `json:"cloud_id"`
	DeviceUID string `json:"device_uid"`
	Number    int    `json:"number"`
	Name      string `json:"name"`
	Enabled   bool   `json:"enabled"`
	Status    string `json:"status"`
	Duration  int    `json:"duration"` // last requested run, seconds

	ImageURL    string `json:"image_url,omitempty"`
	LastWatered int64  `json:"last_watered,omitempty"` // unix millis from the cloud
}

// Ref returns the observer-facing reference for the device.
func (d *Device) Ref() EntityRef {
	return EntityRef{
		Kind:    KindDevice,
		UID:     d.UID,
		CloudID: d.CloudID,
		Name:    d.Name,
	}
}

// Ref returns the observer-facing reference for the zone.
func (z *Zone) Ref() EntityRef {
	return EntityRef{
		Kind:      KindZone,
		UID:       z.UID,
		CloudID:   z.CloudID,
		DeviceUID: z.DeviceUID,
		Name:      z.Name,
	}
}

// Copy returns a deep copy of the device, safe to hand outside the Store.
func (d *Device) Copy() *Device {
	cp := *d
	cp.Zones = make(map[string]*Zone, len(d.Zones))
	for id, z := range d.Zones {
		zc := *z
		cp.Zones[id] = &zc
	}
	return &cp
}

// Copy returns a copy of the zone.
func (z *Zone) Copy() *Zone {
	cp := *z
	return &cp
}
