package bridge

import "errors"

// Domain-specific errors for entity lookups and commands.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrDeviceNotFound is returned when no device matches the lookup.
	ErrDeviceNotFound = errors.New("bridge: device not found")

	// ErrZoneNotFound is returned when no zone matches the lookup.
	ErrZoneNotFound = errors.New("bridge: zone not found")
)
