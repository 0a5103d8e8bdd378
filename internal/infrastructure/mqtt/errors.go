package mqtt

import "errors"

// Sentinel errors for MQTT operations, for use with errors.Is.
var (
	// ErrNotConnected means an operation was attempted while disconnected.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrConnectionFailed means the initial connection attempt failed.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrPublishFailed wraps publish failures.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed wraps subscribe failures.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrUnsubscribeFailed wraps unsubscribe failures.
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")

	// ErrInvalidQoS means a QoS outside 0..2 was requested.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	// ErrInvalidTopic means an empty topic was provided.
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")

	// ErrTimeout means an operation did not complete in time.
	ErrTimeout = errors.New("mqtt: operation timed out")
)
