package mqtt

import "fmt"

// Topic prefixes for the bridge's MQTT surface.
//
// All topics live under a single "rachio" root so a broker shared with
// other services can scope ACLs to one subtree:
//
//	rachio/device/{uid}/state   retained device state
//	rachio/zone/{uid}/state     retained zone state
//	rachio/device/{uid}/event   controller event pass-through (not retained)
//	rachio/bridge/discovery     entity announcements
//	rachio/bridge/status        bridge liveness (LWT)
const (
	// TopicPrefix is the root for all bridge topics.
	TopicPrefix = "rachio"

	// TopicPrefixBridge is the base for bridge lifecycle topics.
	TopicPrefixBridge = "rachio/bridge"
)

// Topics provides builders for the bridge's MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.DeviceState("3c9f2a...")
//	// Returns: "rachio/device/3c9f2a.../state"
type Topics struct{}

// DeviceState returns the retained state topic for a controller.
//
// Example: rachio/device/3c9f2a18-.../state
func (Topics) DeviceState(deviceUID string) string {
	return fmt.Sprintf("%s/device/%s/state", TopicPrefix, deviceUID)
}

// ZoneState returns the retained state topic for a zone.
//
// Example: rachio/zone/7b41d0c2-.../state
func (Topics) ZoneState(zoneUID string) string {
	return fmt.Sprintf("%s/zone/%s/state", TopicPrefix, zoneUID)
}

// DeviceEvent returns the event pass-through topic for a controller.
// Event messages are not retained.
//
// Example: rachio/device/3c9f2a18-.../event
func (Topics) DeviceEvent(deviceUID string) string {
	return fmt.Sprintf("%s/device/%s/event", TopicPrefix, deviceUID)
}

// Discovery returns the entity announcement topic.
//
// Example: rachio/bridge/discovery
func (Topics) Discovery() string {
	return fmt.Sprintf("%s/discovery", TopicPrefixBridge)
}

// BridgeStatus returns the bridge liveness topic. The broker publishes
// the LWT here when the bridge disconnects unexpectedly.
//
// Example: rachio/bridge/status
func (Topics) BridgeStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixBridge)
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllDeviceStates returns a pattern matching all controller state topics.
//
// Pattern: rachio/device/+/state
func (Topics) AllDeviceStates() string {
	return fmt.Sprintf("%s/device/+/state", TopicPrefix)
}

// AllZoneStates returns a pattern matching all zone state topics.
//
// Pattern: rachio/zone/+/state
func (Topics) AllZoneStates() string {
	return fmt.Sprintf("%s/zone/+/state", TopicPrefix)
}

// AllDeviceEvents returns a pattern matching all controller event topics.
//
// Pattern: rachio/device/+/event
func (Topics) AllDeviceEvents() string {
	return fmt.Sprintf("%s/device/+/event", TopicPrefix)
}

// AllTopics returns a pattern matching every bridge topic.
// Use with caution - this receives ALL traffic.
//
// Pattern: rachio/#
func (Topics) AllTopics() string {
	return "rachio/#"
}
