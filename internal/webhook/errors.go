package webhook

import "errors"

// Domain-specific errors for inbound event processing.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrMalformedPayload is returned when a payload cannot be decoded
	// even after normalization. The event is logged and discarded; the
	// cloud owns redelivery.
	ErrMalformedPayload = errors.New("webhook: malformed event payload")
)
