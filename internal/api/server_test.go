package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/quietlawn/rachio-bridge/internal/bridge"
	"github.com/quietlawn/rachio-bridge/internal/history"
	"github.com/quietlawn/rachio-bridge/internal/infrastructure/config"
	"github.com/quietlawn/rachio-bridge/internal/infrastructure/logging"
	"github.com/quietlawn/rachio-bridge/internal/rachio"
	"github.com/quietlawn/rachio-bridge/internal/webhook"
)

const testExternalID = "ext-test-id"

// fakeCloud records commands and fails on demand.
type fakeCloud struct {
	tracker *rachio.RateLimitTracker
	err     error

	stopped    []string
	enabled    []string
	disabled   []string
	rainDelays map[string]int
	zoneRuns   map[string]int
	multiRuns  [][]rachio.ZoneStart
}

func newFakeCloud() *fakeCloud {
	return &fakeCloud{
		tracker:    rachio.NewRateLimitTracker(),
		rainDelays: make(map[string]int),
		zoneRuns:   make(map[string]int),
	}
}

func (f *fakeCloud) StopWatering(_ context.Context, deviceID string) error {
	if f.err != nil {
		return f.err
	}
	f.stopped = append(f.stopped, deviceID)
	return nil
}

func (f *fakeCloud) EnableDevice(_ context.Context, deviceID string) error {
	if f.err != nil {
		return f.err
	}
	f.enabled = append(f.enabled, deviceID)
	return nil
}

func (f *fakeCloud) DisableDevice(_ context.Context, deviceID string) error {
	if f.err != nil {
		return f.err
	}
	f.disabled = append(f.disabled, deviceID)
	return nil
}

func (f *fakeCloud) SetRainDelay(_ context.Context, deviceID string, duration int) error {
	if f.err != nil {
		return f.err
	}
	f.rainDelays[deviceID] = duration
	return nil
}

func (f *fakeCloud) StartZone(_ context.Context, zoneID string, duration int) error {
	if f.err != nil {
		return f.err
	}
	f.zoneRuns[zoneID] = duration
	return nil
}

func (f *fakeCloud) StartZones(_ context.Context, starts []rachio.ZoneStart) error {
	if f.err != nil {
		return f.err
	}
	f.multiRuns = append(f.multiRuns, starts)
	return nil
}

func (f *fakeCloud) RateLimit() *rachio.RateLimitTracker {
	return f.tracker
}

// fakeSync counts reconciliation trigger requests.
type fakeSync struct {
	triggered int
}

func (f *fakeSync) TriggerSync() bool {
	f.triggered++
	return true
}

// fakeHistory is an in-memory history repository.
type fakeHistory struct {
	entries []history.Entry
}

func (f *fakeHistory) RecordEvent(_ context.Context, entry history.Entry) error {
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeHistory) GetHistory(_ context.Context, deviceUID string, _ int) ([]history.Entry, error) {
	var out []history.Entry
	for _, e := range f.entries {
		if e.DeviceUID == deviceUID {
			out = append(out, e)
		}
	}
	return out, nil
}

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stderr"}, "test")
}

// seedRecords is the cloud inventory used in the test fixture.
func seedRecords() []rachio.Device {
	return []rachio.Device{
		{
			ID:     "cloud-dev-1",
			Status: "ONLINE",
			Name:   "Front Yard",
			Model:  "GENERATION2_8ZONE",
			On:     true,
			Zones: []rachio.Zone{
				{ID: "cloud-zone-1", ZoneNumber: 1, Name: "Lawn", Enabled: true},
				{ID: "cloud-zone-2", ZoneNumber: 2, Name: "Beds", Enabled: false},
				{ID: "cloud-zone-3", ZoneNumber: 3, Name: "Roses", Enabled: true},
			},
		},
	}
}

type fixture struct {
	server  *Server
	router  http.Handler
	store   *bridge.Store
	cloud   *fakeCloud
	sync    *fakeSync
	history *fakeHistory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dispatcher := bridge.NewDispatcher()
	store := bridge.NewStore("account-1", dispatcher)
	store.SyncInventory(seedRecords())

	cloud := newFakeCloud()
	sync := &fakeSync{}
	hist := &fakeHistory{}

	srv, err := New(Deps{
		Config:         config.APIConfig{},
		WS:             config.WebSocketConfig{MaxMessageSize: 4096, PingInterval: 30, PongTimeout: 60},
		ImageProxy:     config.ImageProxyConfig{},
		Logger:         testLogger(),
		Store:          store,
		Cloud:          cloud,
		Webhooks:       webhook.NewRouter(store, testExternalID),
		ExternalID:     testExternalID,
		Sync:           sync,
		History:        hist,
		DefaultRuntime: 120,
		Version:        "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	srv.hub = NewHub(srv.wsCfg, srv.logger)

	return &fixture{
		server:  srv,
		router:  srv.buildRouter(),
		store:   store,
		cloud:   cloud,
		sync:    sync,
		history: hist,
	}
}

func (f *fixture) device(t *testing.T) *bridge.Device {
	t.Helper()
	dev, err := f.store.DeviceByCloudID("cloud-dev-1")
	if err != nil {
		t.Fatalf("seed device missing: %v", err)
	}
	return dev
}

func (f *fixture) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

// =============================================================================
// Health and Metrics
// =============================================================================

func TestHandleHealth(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/v1/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d, want 200", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("health body: %v", err)
	}
	if body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("health body = %v", body)
	}
}

func TestHandleMetrics(t *testing.T) {
	f := newFixture(t)
	f.cloud.tracker.Record(1700, 200, time.Time{})

	rec := f.do(http.MethodGet, "/api/v1/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d, want 200", rec.Code)
	}

	var metrics SystemMetrics
	if err := json.Unmarshal(rec.Body.Bytes(), &metrics); err != nil {
		t.Fatalf("metrics body: %v", err)
	}
	if metrics.Store.Devices != 1 || metrics.Store.Zones != 3 {
		t.Errorf("store metrics = %+v", metrics.Store)
	}
	if metrics.RateLimit.Severity != "warning" {
		t.Errorf("rate limit severity = %q, want warning", metrics.RateLimit.Severity)
	}
	if metrics.RateLimit.Remaining != 200 {
		t.Errorf("rate limit remaining = %d, want 200", metrics.RateLimit.Remaining)
	}
}

// =============================================================================
// Device Reads
// =============================================================================

func TestListDevices(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/v1/devices", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200", rec.Code)
	}

	var body struct {
		Devices []bridge.Device `json:"devices"`
		Count   int             `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("list body: %v", err)
	}
	if body.Count != 1 || len(body.Devices) != 1 {
		t.Fatalf("count = %d, devices = %d, want 1", body.Count, len(body.Devices))
	}
	if body.Devices[0].Name != "Front Yard" {
		t.Errorf("device name = %q", body.Devices[0].Name)
	}
}

func TestGetDevice(t *testing.T) {
	f := newFixture(t)
	dev := f.device(t)

	rec := f.do(http.MethodGet, "/api/v1/devices/"+dev.UID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d, want 200", rec.Code)
	}

	var got bridge.Device
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("get body: %v", err)
	}
	if got.UID != dev.UID || got.CloudID != "cloud-dev-1" {
		t.Errorf("device = %+v", got)
	}
}

func TestGetDevice_NotFound(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/v1/devices/no-such-uid", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	var apiErr Error
	if err := json.Unmarshal(rec.Body.Bytes(), &apiErr); err != nil {
		t.Fatalf("error body: %v", err)
	}
	if apiErr.Code != ErrCodeNotFound {
		t.Errorf("error code = %q, want %q", apiErr.Code, ErrCodeNotFound)
	}
}

// =============================================================================
// Device Commands
// =============================================================================

func TestStopWatering(t *testing.T) {
	f := newFixture(t)
	dev := f.device(t)

	rec := f.do(http.MethodPost, "/api/v1/devices/"+dev.UID+"/stop", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stop status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if len(f.cloud.stopped) != 1 || f.cloud.stopped[0] != "cloud-dev-1" {
		t.Errorf("stopped = %v, want [cloud-dev-1]", f.cloud.stopped)
	}
}

func TestEnableDisableDevice(t *testing.T) {
	f := newFixture(t)
	dev := f.device(t)

	if rec := f.do(http.MethodPost, "/api/v1/devices/"+dev.UID+"/disable", nil); rec.Code != http.StatusOK {
		t.Fatalf("disable status = %d, want 200", rec.Code)
	}
	if rec := f.do(http.MethodPost, "/api/v1/devices/"+dev.UID+"/enable", nil); rec.Code != http.StatusOK {
		t.Fatalf("enable status = %d, want 200", rec.Code)
	}

	if len(f.cloud.disabled) != 1 || len(f.cloud.enabled) != 1 {
		t.Errorf("disabled = %v, enabled = %v", f.cloud.disabled, f.cloud.enabled)
	}
}

func TestCommandFailureMarksDevice(t *testing.T) {
	f := newFixture(t)
	dev := f.device(t)
	f.cloud.err = errors.New("connection refused")

	rec := f.do(http.MethodPost, "/api/v1/devices/"+dev.UID+"/stop", nil)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}

	after, err := f.store.DeviceByUID(dev.UID)
	if err != nil {
		t.Fatalf("device lookup: %v", err)
	}
	if after.Status != bridge.StatusCommError {
		t.Errorf("status = %q, want %q", after.Status, bridge.StatusCommError)
	}
	if !strings.Contains(after.StatusDetail, "connection refused") {
		t.Errorf("status detail = %q, want the command error", after.StatusDetail)
	}
}

func TestCommandRateLimited(t *testing.T) {
	f := newFixture(t)
	dev := f.device(t)
	f.cloud.err = rachio.ErrRateLimited

	rec := f.do(http.MethodPost, "/api/v1/devices/"+dev.UID+"/stop", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
}

func TestRainDelay(t *testing.T) {
	f := newFixture(t)
	dev := f.device(t)

	rec := f.do(http.MethodPost, "/api/v1/devices/"+dev.UID+"/rain_delay", rainDelayRequest{DurationSeconds: 3600})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if f.cloud.rainDelays["cloud-dev-1"] != 3600 {
		t.Errorf("rain delay = %v", f.cloud.rainDelays)
	}

	after, _ := f.store.DeviceByUID(dev.UID)
	if after.RainDelay != 3600 {
		t.Errorf("stored rain delay = %d, want 3600", after.RainDelay)
	}
}

func TestRainDelay_Validation(t *testing.T) {
	f := newFixture(t)
	dev := f.device(t)

	tests := []struct {
		name    string
		seconds int
	}{
		{"negative", -1},
		{"beyond seven days", maxRainDelaySeconds + 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodPost, "/api/v1/devices/"+dev.UID+"/rain_delay", rainDelayRequest{DurationSeconds: tt.seconds})
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestRunZones_AllEnabledByDefault(t *testing.T) {
	f := newFixture(t)
	dev := f.device(t)

	rec := f.do(http.MethodPost, "/api/v1/devices/"+dev.UID+"/run", runZonesRequest{})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	if len(f.cloud.multiRuns) != 1 {
		t.Fatalf("multi runs = %d, want 1", len(f.cloud.multiRuns))
	}
	starts := f.cloud.multiRuns[0]

	// Zone 2 is disabled; zones 1 and 3 run in number order with the
	// default runtime.
	if len(starts) != 2 {
		t.Fatalf("start count = %d, want 2", len(starts))
	}
	if starts[0].ID != "cloud-zone-1" || starts[1].ID != "cloud-zone-3" {
		t.Errorf("start order = %v", starts)
	}
	for i, start := range starts {
		if start.Duration != 120 {
			t.Errorf("start[%d] duration = %d, want default 120", i, start.Duration)
		}
		if start.SortOrder != i+1 {
			t.Errorf("start[%d] sort order = %d, want %d", i, start.SortOrder, i+1)
		}
	}
}

func TestRunZones_ExplicitSelection(t *testing.T) {
	f := newFixture(t)
	dev := f.device(t)

	rec := f.do(http.MethodPost, "/api/v1/devices/"+dev.UID+"/run", runZonesRequest{
		Zones:           []int{3, 1},
		DurationSeconds: 600,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	starts := f.cloud.multiRuns[0]
	if len(starts) != 2 || starts[0].ID != "cloud-zone-3" || starts[1].ID != "cloud-zone-1" {
		t.Errorf("starts = %v, want requested order preserved", starts)
	}
	if starts[0].Duration != 600 {
		t.Errorf("duration = %d, want 600", starts[0].Duration)
	}
}

func TestRunZones_UnknownNumber(t *testing.T) {
	f := newFixture(t)
	dev := f.device(t)

	rec := f.do(http.MethodPost, "/api/v1/devices/"+dev.UID+"/run", runZonesRequest{Zones: []int{9}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

// =============================================================================
// Zone Commands
// =============================================================================

func TestRunZone_DefaultRuntime(t *testing.T) {
	f := newFixture(t)
	zone, err := f.store.ZoneByNumber("cloud-dev-1", 3)
	if err != nil {
		t.Fatalf("zone lookup: %v", err)
	}

	rec := f.do(http.MethodPost, "/api/v1/zones/"+zone.UID+"/run", runZoneRequest{})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	if f.cloud.zoneRuns["cloud-zone-3"] != 120 {
		t.Errorf("zone runs = %v, want cloud-zone-3 with default 120", f.cloud.zoneRuns)
	}

	after, _, err := f.store.ZoneByUID(zone.UID)
	if err != nil {
		t.Fatalf("zone lookup after run: %v", err)
	}
	if after.Duration != 120 {
		t.Errorf("stored duration = %d, want 120", after.Duration)
	}
}

func TestRunZone_Unknown(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/v1/zones/no-such-zone/run", runZoneRequest{DurationSeconds: 60})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

// =============================================================================
// Sync
// =============================================================================

func TestSyncTrigger(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/v1/sync", nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if f.sync.triggered != 1 {
		t.Errorf("triggered = %d, want 1", f.sync.triggered)
	}
}

// =============================================================================
// Webhook Endpoint
// =============================================================================

func TestWebhookEvent_Applied(t *testing.T) {
	f := newFixture(t)
	dev := f.device(t)

	// Push the device offline first so the ONLINE event is a transition.
	if err := f.store.SetDeviceStatus(dev.UID, bridge.StatusOffline, ""); err != nil {
		t.Fatalf("seeding offline: %v", err)
	}

	payload := `{"externalId":"` + testExternalID + `","type":"DEVICE_STATUS","subType":"ONLINE","deviceId":"cloud-dev-1","summary":"Device is online"}`
	req := httptest.NewRequest(http.MethodPost, "/webhook/rachio", strings.NewReader(payload))
	req.Header.Set("X-RateLimit-Limit", "1700")
	req.Header.Set("X-RateLimit-Remaining", "1500")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("body = %q, want empty", rec.Body.String())
	}

	after, _ := f.store.DeviceByUID(dev.UID)
	if after.Status != bridge.StatusOnline {
		t.Errorf("status = %q, want ONLINE", after.Status)
	}

	// Quota headers on the push must land in the shared tracker.
	if got := f.cloud.tracker.State().Remaining; got != 1500 {
		t.Errorf("tracker remaining = %d, want 1500", got)
	}
}

func TestWebhookEvent_WrongExternalID(t *testing.T) {
	f := newFixture(t)
	dev := f.device(t)

	payload := `{"externalId":"someone-else","type":"DEVICE_STATUS","subType":"OFFLINE","deviceId":"cloud-dev-1"}`
	rec := f.do(http.MethodPost, "/webhook/rachio", json.RawMessage(payload))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 even for rejected events", rec.Code)
	}

	after, _ := f.store.DeviceByUID(dev.UID)
	if after.Status != bridge.StatusOnline {
		t.Errorf("status = %q, rejected event must not apply", after.Status)
	}
}

func TestWebhookEvent_Malformed(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/webhook/rachio", strings.NewReader("not json at all"))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for malformed payloads", rec.Code)
	}
}

// =============================================================================
// History
// =============================================================================

func TestDeviceHistory(t *testing.T) {
	f := newFixture(t)
	dev := f.device(t)

	f.history.entries = append(f.history.entries, history.Entry{
		DeviceUID: dev.UID,
		Type:      "DEVICE_STATUS",
		Subtype:   "ONLINE",
		Outcome:   history.OutcomeHandled,
	})

	rec := f.do(http.MethodGet, "/api/v1/devices/"+dev.UID+"/history?limit=10", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Entries []history.Entry `json:"entries"`
		Count   int             `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("history body: %v", err)
	}
	if body.Count != 1 || body.Entries[0].Subtype != "ONLINE" {
		t.Errorf("history = %+v", body)
	}
}

func TestDeviceHistory_BadLimit(t *testing.T) {
	f := newFixture(t)
	dev := f.device(t)

	rec := f.do(http.MethodGet, "/api/v1/devices/"+dev.UID+"/history?limit=banana", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

// =============================================================================
// Image Proxy
// =============================================================================

func TestImageProxy(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/zone/lawn.jpg" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("jpeg-bytes"))
	}))
	defer backend.Close()

	f := newFixture(t)
	f.server.imgCfg = config.ImageProxyConfig{Enabled: true, BaseURL: backend.URL}
	router := f.server.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/img/zone/lawn.jpg", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "image/jpeg" {
		t.Errorf("content type = %q", got)
	}
	if rec.Body.String() != "jpeg-bytes" {
		t.Errorf("body = %q", rec.Body.String())
	}
	if got := rec.Header().Get("Cache-Control"); !strings.Contains(got, "max-age") {
		t.Errorf("cache control = %q", got)
	}
}

func TestImageProxy_DisabledRouteAbsent(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/img/zone/lawn.jpg", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when proxy disabled", rec.Code)
	}
}

// =============================================================================
// New() validation
// =============================================================================

func TestNew_MissingDependencies(t *testing.T) {
	base := func() Deps {
		dispatcher := bridge.NewDispatcher()
		store := bridge.NewStore("account-1", dispatcher)
		return Deps{
			Logger:   testLogger(),
			Store:    store,
			Cloud:    newFakeCloud(),
			Webhooks: webhook.NewRouter(store, testExternalID),
		}
	}

	tests := []struct {
		name   string
		mutate func(*Deps)
	}{
		{"no logger", func(d *Deps) { d.Logger = nil }},
		{"no store", func(d *Deps) { d.Store = nil }},
		{"no cloud client", func(d *Deps) { d.Cloud = nil }},
		{"no webhook router", func(d *Deps) { d.Webhooks = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := base()
			tt.mutate(&deps)
			if _, err := New(deps); err == nil {
				t.Error("New() should fail")
			}
		})
	}
}
