package rachio

import "time"

// Person is the cloud account record returned by person/{id}, including
// the full device and zone inventory.
type Person struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	FullName string   `json:"fullName"`
	Email    string   `json:"email"`
	Devices  []Device `json:"devices"`
}

// Device is the cloud controller record. Mutable fields are merged into
// the local entity model by the bridge layer; this struct mirrors the
// wire shape only.
type Device struct {
	ID               string  `json:"id"`
	Status           string  `json:"status"`
	Name             string  `json:"name"`
	Model            string  `json:"model"`
	SerialNumber     string  `json:"serialNumber"`
	MacAddress       string  `json:"macAddress"`
	On               bool    `json:"on"`
	Deleted          bool    `json:"deleted"`
	Paused           bool    `json:"paused"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	UTCOffset        int64   `json:"utcOffset"`
	ScheduleModeType string  `json:"scheduleModeType"`
	Zones            []Zone  `json:"zones"`
}

// Zone is the cloud irrigation-zone record, owned by a Device.
type Zone struct {
	ID              string `json:"id"`
	ZoneNumber      int    `json:"zoneNumber"`
	Name            string `json:"name"`
	Enabled         bool   `json:"enabled"`
	ImageURL        string `json:"imageUrl"`
	LastWateredDate int64  `json:"lastWateredDate"`
}

// ZoneStart names a zone and duration for the start_multiple operation.
type ZoneStart struct {
	ID        string `json:"id"`
	Duration  int    `json:"duration"`
	SortOrder int    `json:"sortOrder"`
}

// WebhookEventType identifies an event category subscription by its
// cloud-assigned numeric ID.
type WebhookEventType struct {
	ID int `json:"id"`
}

// Event-type IDs understood by the bridge; webhook registrations
// subscribe to exactly this set.
const (
	EventTypeDeviceStatus        = 5
	EventTypeRainDelay           = 6
	EventTypeWeatherIntelligence = 7
	EventTypeWaterBudget         = 8
	EventTypeScheduleStatus      = 9
	EventTypeZoneStatus          = 10
	EventTypeRainSensorDetection = 11
	EventTypeZoneDelta           = 12
	EventTypeDelta               = 14
)

// SubscribedEventTypes returns the full set of event-type subscriptions
// for a new webhook registration.
func SubscribedEventTypes() []WebhookEventType {
	return []WebhookEventType{
		{ID: EventTypeDeviceStatus},
		{ID: EventTypeRainDelay},
		{ID: EventTypeWeatherIntelligence},
		{ID: EventTypeWaterBudget},
		{ID: EventTypeScheduleStatus},
		{ID: EventTypeZoneStatus},
		{ID: EventTypeRainSensorDetection},
		{ID: EventTypeZoneDelta},
		{ID: EventTypeDelta},
	}
}

// WebhookRegistration is a cloud-side callback registration for a device.
type WebhookRegistration struct {
	ID         string             `json:"id"`
	URL        string             `json:"url"`
	ExternalID string             `json:"externalId"`
	EventTypes []WebhookEventType `json:"eventTypes"`
}

// CallResult is an immutable snapshot of one API call: what was asked,
// what came back, and the quota observed on the response. The client
// caches the last result for diagnostics.
type CallResult struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
	RateLimit  RateLimitState
	Time       time.Time
}
