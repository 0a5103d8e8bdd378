package webhook

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
)

// Event type strings carried in cloud push notifications.
const (
	TypeDeviceStatus   = "DEVICE_STATUS"
	TypeZoneStatus     = "ZONE_STATUS"
	TypeScheduleStatus = "SCHEDULE_STATUS"
	TypeDelta          = "DELTA"
)

// Event subtype strings.
const (
	SubtypeColdReboot          = "COLD_REBOOT"
	SubtypeOnline              = "ONLINE"
	SubtypeOffline             = "OFFLINE"
	SubtypeOfflineNotification = "OFFLINE_NOTIFICATION"
	SubtypeSleepModeOn         = "SLEEP_MODE_ON"
	SubtypeSleepModeOff        = "SLEEP_MODE_OFF"
	SubtypeRainDelayOn         = "RAIN_DELAY_ON"
	SubtypeRainDelayOff        = "RAIN_DELAY_OFF"
	SubtypeRainSensorOn        = "RAIN_SENSOR_DETECTION_ON"
	SubtypeRainSensorOff       = "RAIN_SENSOR_DETECTION_OFF"
	SubtypeZoneDelta           = "ZONE_DELTA"
)

// Event is one inbound push notification. Transient: consumed once by
// the Router and discarded.
type Event struct {
	ID         string `json:"id"`
	Category   string `json:"category"`
	Type       string `json:"type"`
	SubType    string `json:"subType"`
	DeviceID   string `json:"deviceId"`
	ZoneID     string `json:"zoneId"`
	ExternalID string `json:"externalId"`
	Timestamp  string `json:"timestamp"`
	Summary    string `json:"summary"`

	ScheduleName    string `json:"scheduleName"`
	StartTime       string `json:"startTime"`
	EndTime         string `json:"endTime"`
	DurationMinutes int    `json:"durationInMinutes"`

	ZoneName      string        `json:"zoneName"`
	ZoneRunStatus ZoneRunStatus `json:"zoneRunStatus"`

	// Network is present on cold-reboot events only.
	Network *EventNetwork `json:"network"`
}

// ZoneRunStatus nests the zone number and watering state on zone events.
type ZoneRunStatus struct {
	ZoneNumber int    `json:"zoneNumber"`
	State      string `json:"state"`
}

// EventNetwork carries the controller's network settings on cold-reboot
// events.
type EventNetwork struct {
	IP      string `json:"ip"`
	Netmask string `json:"nm"`
	Gateway string `json:"gw"`
	DNS1    string `json:"dns"`
	DNS2    string `json:"dns2"`
	RSSI    int    `json:"rssi"`
}

// NormalizePayload corrects the known malformations in upstream webhook
// bodies before JSON decoding: stray quoting around nested objects,
// escaped backslashes, and literal question marks that break the parser.
func NormalizePayload(body []byte) []byte {
	s := string(body)
	s = strings.ReplaceAll(s, `"{`, `{`)
	s = strings.ReplaceAll(s, `}"`, `}`)
	s = strings.ReplaceAll(s, `\`, ``)
	s = strings.ReplaceAll(s, `"?"`, `'?'`)
	return []byte(s)
}

// ParseEvent normalizes and decodes an inbound payload.
func ParseEvent(body []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(NormalizePayload(body), &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if ev.Type == "" && ev.DeviceID == "" {
		return nil, fmt.Errorf("%w: no event fields present", ErrMalformedPayload)
	}
	return &ev, nil
}

// processSalt is drawn once per process. The external ID only has to be
// stable for the lifetime of the registration this process creates.
var processSalt = rand.Intn(50) + 1

// DeriveExternalID produces the opaque per-account identifier sent with
// webhook registrations and echoed back on every event. It demultiplexes
// events among concurrently configured accounts; it is not a security
// mechanism (the hash goes back to the same cloud that issued the key).
func DeriveExternalID(apiKey string) string {
	return md5hex(fmt.Sprintf("RB_%s_%d", md5hex(apiKey), processSalt))
}

func md5hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
