package mqtt

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// These tests cover input validation and topic construction without a
// broker. Connection and round-trip behaviour is exercised by the
// integration tests (go test -tags=integration).

// =============================================================================
// Connection State Tests
// =============================================================================

func TestIsConnected_InitialState(t *testing.T) {
	client := &Client{}

	if client.IsConnected() {
		t.Error("IsConnected() should be false for uninitialised client")
	}
}

func TestCloseNil(t *testing.T) {
	client := &Client{}
	err := client.Close()
	if err != nil {
		t.Errorf("Close() on nil client error = %v, want nil", err)
	}
}

func TestHealthCheckDisconnected(t *testing.T) {
	client := &Client{}

	err := client.HealthCheck(context.Background())
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestHealthCheckCancelled(t *testing.T) {
	client := &Client{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := client.HealthCheck(ctx)
	if err == nil {
		t.Error("HealthCheck() expected error for cancelled context")
	}
}

// =============================================================================
// Publish Validation Tests
// =============================================================================

func TestPublishValidation(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{
			name:    "empty topic",
			payload: []byte("x"),
			qos:     1,
			wantErr: ErrInvalidTopic,
		},
		{
			name:    "qos out of range",
			topic:   "rachio/device/abc/state",
			payload: []byte("x"),
			qos:     3,
			wantErr: ErrInvalidQoS,
		},
		{
			name:    "oversized payload",
			topic:   "rachio/device/abc/state",
			payload: make([]byte, maxPayloadSize+1),
			qos:     1,
			wantErr: ErrPublishFailed,
		},
		{
			name:    "disconnected",
			topic:   "rachio/device/abc/state",
			payload: []byte("x"),
			qos:     1,
			wantErr: ErrNotConnected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &Client{}
			err := client.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPublishOversizedPayloadDetail(t *testing.T) {
	client := &Client{}

	err := client.Publish("rachio/device/abc/state", make([]byte, maxPayloadSize+1), 1, false)
	if err == nil || !strings.Contains(err.Error(), "payload size") {
		t.Errorf("Publish() error = %v, want payload size detail", err)
	}
}

// =============================================================================
// Subscribe Validation Tests
// =============================================================================

func TestSubscribeValidation(t *testing.T) {
	noop := func(string, []byte) error { return nil }

	tests := []struct {
		name    string
		topic   string
		qos     byte
		handler MessageHandler
		wantErr error
	}{
		{
			name:    "empty topic",
			qos:     1,
			handler: noop,
			wantErr: ErrInvalidTopic,
		},
		{
			name:    "qos out of range",
			topic:   "rachio/device/+/state",
			qos:     3,
			handler: noop,
			wantErr: ErrInvalidQoS,
		},
		{
			name:    "nil handler",
			topic:   "rachio/device/+/state",
			qos:     1,
			wantErr: ErrSubscribeFailed,
		},
		{
			name:    "disconnected",
			topic:   "rachio/device/+/state",
			qos:     1,
			handler: noop,
			wantErr: ErrNotConnected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &Client{}
			err := client.Subscribe(tt.topic, tt.qos, tt.handler)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Subscribe() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestUnsubscribeEmptyTopic(t *testing.T) {
	client := &Client{}

	if err := client.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe() error = %v, want ErrInvalidTopic", err)
	}
}

// =============================================================================
// Subscription Tracking Tests
// =============================================================================

func TestSubscriptionCount_Empty(t *testing.T) {
	client := &Client{subs: make(map[string]subscription)}

	if client.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", client.SubscriptionCount())
	}
}

func TestHasSubscription_NotSubscribed(t *testing.T) {
	client := &Client{subs: make(map[string]subscription)}

	if client.HasSubscription("nonexistent/topic") {
		t.Error("HasSubscription() should be false for unsubscribed topic")
	}
}

// =============================================================================
// Topics Tests
// =============================================================================

func TestTopicBuilders(t *testing.T) {
	tests := []struct {
		name     string
		builder  func() string
		expected string
	}{
		{
			name: "DeviceState",
			builder: func() string {
				return Topics{}.DeviceState("3c9f2a18")
			},
			expected: "rachio/device/3c9f2a18/state",
		},
		{
			name: "ZoneState",
			builder: func() string {
				return Topics{}.ZoneState("7b41d0c2")
			},
			expected: "rachio/zone/7b41d0c2/state",
		},
		{
			name: "DeviceEvent",
			builder: func() string {
				return Topics{}.DeviceEvent("3c9f2a18")
			},
			expected: "rachio/device/3c9f2a18/event",
		},
		{
			name: "Discovery",
			builder: func() string {
				return Topics{}.Discovery()
			},
			expected: "rachio/bridge/discovery",
		},
		{
			name: "BridgeStatus",
			builder: func() string {
				return Topics{}.BridgeStatus()
			},
			expected: "rachio/bridge/status",
		},
		{
			name: "AllDeviceStates",
			builder: func() string {
				return Topics{}.AllDeviceStates()
			},
			expected: "rachio/device/+/state",
		},
		{
			name: "AllZoneStates",
			builder: func() string {
				return Topics{}.AllZoneStates()
			},
			expected: "rachio/zone/+/state",
		},
		{
			name: "AllDeviceEvents",
			builder: func() string {
				return Topics{}.AllDeviceEvents()
			},
			expected: "rachio/device/+/event",
		},
		{
			name: "AllTopics",
			builder: func() string {
				return Topics{}.AllTopics()
			},
			expected: "rachio/#",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.builder()
			if result != tt.expected {
				t.Errorf("%s() = %q, want %q", tt.name, result, tt.expected)
			}
		})
	}
}

// =============================================================================
// LWT Payload Tests
// =============================================================================

func TestOnlineOfflinePayloads(t *testing.T) {
	online := buildOnlinePayload("rachio-bridge")
	if !strings.Contains(online, `"status":"online"`) {
		t.Errorf("online payload missing status: %s", online)
	}
	if !strings.Contains(online, `"client_id":"rachio-bridge"`) {
		t.Errorf("online payload missing client id: %s", online)
	}

	offline := buildOfflinePayload("rachio-bridge")
	if !strings.Contains(offline, `"status":"offline"`) {
		t.Errorf("offline payload missing status: %s", offline)
	}
	if !strings.Contains(offline, `"reason":"graceful_shutdown"`) {
		t.Errorf("offline payload missing reason: %s", offline)
	}
}
