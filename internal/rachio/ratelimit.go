package rachio

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Rate-limit severity tiers derived from the remaining-quota headers the
// cloud attaches to every response.
type RateLimitSeverity int

const (
	// RateLimitUnknown means no real quota header has been seen yet.
	RateLimitUnknown RateLimitSeverity = iota

	// RateLimitNormal means plenty of quota remains.
	RateLimitNormal

	// RateLimitWarning means remaining quota dropped below the warning
	// threshold; callers should consider spacing out requests.
	RateLimitWarning

	// RateLimitCritical means remaining quota is nearly exhausted.
	RateLimitCritical

	// RateLimitBlocked means further calls should be deferred until the
	// quota window resets.
	RateLimitBlocked
)

// String returns the lowercase tag for the severity.
func (s RateLimitSeverity) String() string {
	switch s {
	case RateLimitNormal:
		return "normal"
	case RateLimitWarning:
		return "warning"
	case RateLimitCritical:
		return "critical"
	case RateLimitBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// Quota thresholds against the remaining-call count. The cloud allows
// 1700 calls per day; these match the margins the vendor recommends.
const (
	rateLimitWarnThreshold  = 300
	rateLimitCritThreshold  = 150
	rateLimitBlockThreshold = 50
)

// Header names carrying quota information on API responses (and,
// occasionally, on inbound webhook deliveries).
const (
	headerRateLimitLimit     = "X-RateLimit-Limit"
	headerRateLimitRemaining = "X-RateLimit-Remaining"
	headerRateLimitReset     = "X-RateLimit-Reset"
)

// RateLimitState is a snapshot of the most recently observed quota.
type RateLimitState struct {
	Limit     int
	Remaining int
	Reset     time.Time
}

// RateLimitTracker stores the latest quota observation and classifies it
// into severity tiers. The state is not persisted; a fresh tracker reports
// RateLimitUnknown until the first real observation.
//
// All methods are safe for concurrent use.
type RateLimitTracker struct {
	mu       sync.Mutex
	state    RateLimitState
	severity RateLimitSeverity
	onRecord func(state RateLimitState, severity RateLimitSeverity)
}

// NewRateLimitTracker returns a tracker with no observations yet.
func NewRateLimitTracker() *RateLimitTracker {
	return &RateLimitTracker{severity: RateLimitUnknown}
}

// SetOnRecord registers a callback invoked after every real quota
// observation, for telemetry. The callback runs outside the tracker's
// lock and never sees the unknown tier; nil removes it.
func (t *RateLimitTracker) SetOnRecord(fn func(RateLimitState, RateLimitSeverity)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onRecord = fn
}

// Record stores a quota observation and returns its classification.
//
// A limit of 0 together with remaining 0 means the headers were absent or
// zero-valued (nothing real observed yet) and classifies as unknown rather
// than blocked, so a fresh client does not false-alarm before its first
// response.
func (t *RateLimitTracker) Record(limit, remaining int, reset time.Time) RateLimitSeverity {
	t.mu.Lock()
	t.state = RateLimitState{Limit: limit, Remaining: remaining, Reset: reset}
	t.severity = classifyRateLimit(limit, remaining)
	state, severity, fn := t.state, t.severity, t.onRecord
	t.mu.Unlock()

	if fn != nil && severity != RateLimitUnknown {
		fn(state, severity)
	}
	return severity
}

// RecordHeaders parses the quota headers from h, when present, and
// records them. Webhook deliveries carry these headers only some of the
// time, so a request with neither the limit nor the remaining header is
// not an observation: the last real state is kept and its severity
// returned.
func (t *RateLimitTracker) RecordHeaders(h http.Header) RateLimitSeverity {
	limitValue := h.Get(headerRateLimitLimit)
	remainingValue := h.Get(headerRateLimitRemaining)
	if limitValue == "" && remainingValue == "" {
		return t.Severity()
	}

	limit, _ := strconv.Atoi(limitValue)
	remaining, _ := strconv.Atoi(remainingValue)

	var reset time.Time
	if v := h.Get(headerRateLimitReset); v != "" {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			reset = ts
		}
	}

	return t.Record(limit, remaining, reset)
}

// State returns the most recent quota snapshot.
func (t *RateLimitTracker) State() RateLimitState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Severity returns the classification of the most recent observation.
func (t *RateLimitTracker) Severity() RateLimitSeverity {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.severity
}

// classifyRateLimit maps a quota observation to a severity tier.
// Severity is monotonic in remaining for a fixed non-zero limit.
func classifyRateLimit(limit, remaining int) RateLimitSeverity {
	if limit == 0 && remaining == 0 {
		return RateLimitUnknown
	}
	switch {
	case remaining <= rateLimitBlockThreshold:
		return RateLimitBlocked
	case remaining <= rateLimitCritThreshold:
		return RateLimitCritical
	case remaining < rateLimitWarnThreshold:
		return RateLimitWarning
	default:
		return RateLimitNormal
	}
}
