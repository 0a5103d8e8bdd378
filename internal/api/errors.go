package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/quietlawn/rachio-bridge/internal/rachio"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeNotFound    = "not_found"
	ErrCodeRateLimited = "rate_limited"
	ErrCodeUpstream    = "upstream_error"
	ErrCodeUnavailable = "unavailable"
	ErrCodeInternal    = "internal_error"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeCloudError maps a cloud API failure onto an HTTP response.
//
// Local quota refusals become 429 so callers can back off; everything
// else a command can fail with is the cloud's fault from the caller's
// perspective and maps to 502.
func writeCloudError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, rachio.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, ErrCodeRateLimited, err.Error())
	case errors.Is(err, rachio.ErrNotFound):
		writeNotFound(w, err.Error())
	default:
		writeError(w, http.StatusBadGateway, ErrCodeUpstream, err.Error())
	}
}
