package rachio

import (
	"errors"
	"fmt"
)

// Domain-specific errors for cloud API operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrAuth is returned when the API key is missing or rejected by the
	// cloud. Fatal to initialization; there is no point retrying.
	ErrAuth = errors.New("rachio: missing or invalid api key")

	// ErrTransport is returned on network-level failure (DNS, TCP,
	// timeout). Retried only via the next scheduled reconciliation.
	ErrTransport = errors.New("rachio: transport failure")

	// ErrProtocol is returned when a response body cannot be decoded.
	// The operation is treated as failed; no partial state is applied.
	ErrProtocol = errors.New("rachio: malformed response body")

	// ErrRateLimited is returned when the remaining quota is classified
	// as blocked and the call was refused.
	ErrRateLimited = errors.New("rachio: api rate limit exhausted")

	// ErrNotFound is returned when the cloud reports 404 for an entity.
	ErrNotFound = errors.New("rachio: entity not found")
)

// APIError wraps one of the sentinel errors above together with the call
// that produced it, so callers can log quota numbers and response codes
// without re-querying the client.
type APIError struct {
	// Op is the short operation name, e.g. "device.stop_water".
	Op string

	// Err is the sentinel category; matched via errors.Is.
	Err error

	// Result is the call snapshot, nil when the request never left
	// (missing key, blocked quota with no prior call).
	Result *CallResult
}

func (e *APIError) Error() string {
	if e.Result != nil && e.Result.StatusCode != 0 {
		return fmt.Sprintf("%s (op=%s, status=%d)", e.Err, e.Op, e.Result.StatusCode)
	}
	return fmt.Sprintf("%s (op=%s)", e.Err, e.Op)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// apiError builds an *APIError for op wrapping sentinel, attaching result
// when one exists.
func apiError(op string, sentinel error, result *CallResult) *APIError {
	return &APIError{Op: op, Err: sentinel, Result: result}
}
