package rachio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/quietlawn/rachio-bridge/internal/infrastructure/config"
)

// DefaultBaseURL is the production cloud endpoint family.
const DefaultBaseURL = "https://api.rach.io/1/public"

// requestTimeout bounds every outbound call.
const requestTimeout = 15 * time.Second

// maxResponseBody caps how much of a response is read. Inventory
// responses for large accounts stay well under this.
const maxResponseBody = 1 << 20

// Logger defines the logging interface used by the Client.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Client issues authenticated calls against the cloud REST API.
//
// Every call, success or failure, feeds the response's quota headers into
// the RateLimitTracker before returning, and the last CallResult is kept
// for diagnostics. A call observed while the tracker classifies the quota
// as blocked is refused with ErrRateLimited instead of being sent.
//
// All methods are safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	tracker    *RateLimitTracker
	logger     Logger

	mu         sync.Mutex
	lastResult *CallResult
}

// NewClient creates a Client from the cloud account configuration.
//
// Returns an ErrAuth APIError when the API key is empty; there is no
// anonymous access to the cloud API.
func NewClient(cfg config.RachioConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, apiError("client.new", ErrAuth, nil)
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: requestTimeout},
		tracker:    NewRateLimitTracker(),
		logger:     noopLogger{},
	}, nil
}

// SetLogger sets a logger for quota warnings and call errors.
// Safe to call at any time; nil restores the no-op logger.
func (c *Client) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	c.logger = logger
}

// RateLimit returns the tracker fed by this client's responses. The
// webhook endpoint shares it so inbound quota headers are ingested too.
func (c *Client) RateLimit() *RateLimitTracker {
	return c.tracker
}

// LastResult returns a snapshot of the most recent call, or nil before
// the first call.
func (c *Client) LastResult() *CallResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastResult
}

// PersonID fetches the account ID for the configured API key.
func (c *Client) PersonID(ctx context.Context) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.call(ctx, "person.info", http.MethodGet, "/person/info", nil, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", apiError("person.info", ErrProtocol, c.LastResult())
	}
	return resp.ID, nil
}

// Person fetches the account record including the full device and zone
// inventory.
func (c *Client) Person(ctx context.Context, personID string) (*Person, error) {
	var person Person
	if err := c.call(ctx, "person.get", http.MethodGet, "/person/"+personID, nil, &person); err != nil {
		return nil, err
	}
	return &person, nil
}

// Device fetches a single controller record.
func (c *Client) Device(ctx context.Context, deviceID string) (*Device, error) {
	var device Device
	if err := c.call(ctx, "device.get", http.MethodGet, "/device/"+deviceID, nil, &device); err != nil {
		return nil, err
	}
	return &device, nil
}

// StopWatering stops all watering on the device immediately.
func (c *Client) StopWatering(ctx context.Context, deviceID string) error {
	return c.call(ctx, "device.stop_water", http.MethodPut, "/device/stop_water",
		map[string]string{"id": deviceID}, nil)
}

// EnableDevice turns the controller's standby mode off.
func (c *Client) EnableDevice(ctx context.Context, deviceID string) error {
	return c.call(ctx, "device.on", http.MethodPut, "/device/on",
		map[string]string{"id": deviceID}, nil)
}

// DisableDevice puts the controller into standby; schedules stop running.
func (c *Client) DisableDevice(ctx context.Context, deviceID string) error {
	return c.call(ctx, "device.off", http.MethodPut, "/device/off",
		map[string]string{"id": deviceID}, nil)
}

// SetRainDelay suspends watering on the device for duration seconds.
func (c *Client) SetRainDelay(ctx context.Context, deviceID string, duration int) error {
	return c.call(ctx, "device.rain_delay", http.MethodPut, "/device/rain_delay",
		map[string]any{"id": deviceID, "duration": duration}, nil)
}

// StartZone runs a single zone for duration seconds.
func (c *Client) StartZone(ctx context.Context, zoneID string, duration int) error {
	return c.call(ctx, "zone.start", http.MethodPut, "/zone/start",
		map[string]any{"id": zoneID, "duration": duration}, nil)
}

// StartZones runs multiple zones sequentially in sort order.
func (c *Client) StartZones(ctx context.Context, starts []ZoneStart) error {
	if len(starts) == 0 {
		return nil
	}
	return c.call(ctx, "zone.start_multiple", http.MethodPut, "/zone/start_multiple",
		map[string]any{"zones": starts}, nil)
}

// ListWebhooks returns the callback registrations for a device.
func (c *Client) ListWebhooks(ctx context.Context, deviceID string) ([]WebhookRegistration, error) {
	var hooks []WebhookRegistration
	if err := c.call(ctx, "webhook.list", http.MethodGet,
		"/notification/"+deviceID+"/webhook", nil, &hooks); err != nil {
		return nil, err
	}
	return hooks, nil
}

// RegisterWebhook creates a callback registration for a device,
// subscribing to the full set of event types the bridge understands.
func (c *Client) RegisterWebhook(ctx context.Context, deviceID, callbackURL, externalID string) (*WebhookRegistration, error) {
	payload := map[string]any{
		"device":     map[string]string{"id": deviceID},
		"externalId": externalID,
		"url":        callbackURL,
		"eventTypes": SubscribedEventTypes(),
	}
	var hook WebhookRegistration
	if err := c.call(ctx, "webhook.register", http.MethodPost, "/notification/webhook", payload, &hook); err != nil {
		return nil, err
	}
	return &hook, nil
}

// DeleteWebhook removes a callback registration by its cloud ID.
func (c *Client) DeleteWebhook(ctx context.Context, webhookID string) error {
	return c.call(ctx, "webhook.delete", http.MethodDelete, "/notification/webhook/"+webhookID, nil, nil)
}

// EnsureWebhook makes the device's callback registration converge to
// exactly one entry for callbackURL.
//
// Existing registrations whose URL matches callbackURL are deleted first
// (all of them when clearAll is set), then one fresh registration is
// created. Restarting the bridge therefore never accumulates stale
// registrations on the cloud side.
func (c *Client) EnsureWebhook(ctx context.Context, deviceID, callbackURL, externalID string, clearAll bool) error {
	existing, err := c.ListWebhooks(ctx, deviceID)
	if err != nil {
		return err
	}

	for _, hook := range existing {
		if !clearAll && hook.URL != callbackURL {
			continue
		}
		if err := c.DeleteWebhook(ctx, hook.ID); err != nil {
			return err
		}
		c.logger.Debug("deleted stale webhook registration",
			"device_id", deviceID, "webhook_id", hook.ID, "url", hook.URL)
	}

	hook, err := c.RegisterWebhook(ctx, deviceID, callbackURL, externalID)
	if err != nil {
		return err
	}
	c.logger.Info("webhook registered",
		"device_id", deviceID, "webhook_id", hook.ID, "url", callbackURL)
	return nil
}

// call performs one HTTP round trip: marshal payload, send with bearer
// auth, ingest quota headers, map the status code to the error taxonomy,
// and decode the body into out when non-nil.
func (c *Client) call(ctx context.Context, op, method, path string, payload, out any) error {
	// Refuse outright when the last observation classified as blocked;
	// burning the final quota on a doomed call helps nobody.
	if c.tracker.Severity() == RateLimitBlocked {
		return apiError(op, ErrRateLimited, c.LastResult())
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return apiError(op, fmt.Errorf("encoding request: %w", err), nil)
		}
		body = bytes.NewReader(data)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return apiError(op, fmt.Errorf("building request: %w", err), nil)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apiError(op, fmt.Errorf("%w: %v", ErrTransport, err), nil)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return apiError(op, fmt.Errorf("%w: reading body: %v", ErrTransport, err), nil)
	}

	// Quota headers are ingested on every response, including errors.
	severity := c.tracker.RecordHeaders(resp.Header)

	result := &CallResult{
		Method:     method,
		URL:        url,
		StatusCode: resp.StatusCode,
		Body:       string(raw),
		RateLimit:  c.tracker.State(),
		Time:       time.Now(),
	}
	c.mu.Lock()
	c.lastResult = result
	c.mu.Unlock()

	switch severity {
	case RateLimitWarning:
		c.logger.Warn("api quota running low",
			"remaining", result.RateLimit.Remaining, "limit", result.RateLimit.Limit)
	case RateLimitCritical, RateLimitBlocked:
		c.logger.Error("api quota nearly exhausted",
			"severity", severity.String(),
			"remaining", result.RateLimit.Remaining, "limit", result.RateLimit.Limit)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return apiError(op, ErrAuth, result)
	case resp.StatusCode == http.StatusNotFound:
		return apiError(op, ErrNotFound, result)
	case resp.StatusCode == http.StatusTooManyRequests:
		return apiError(op, ErrRateLimited, result)
	case resp.StatusCode >= 500:
		return apiError(op, ErrTransport, result)
	case resp.StatusCode >= 300:
		return apiError(op, ErrProtocol, result)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return apiError(op, fmt.Errorf("%w: %v", ErrProtocol, err), result)
		}
	}

	return nil
}
