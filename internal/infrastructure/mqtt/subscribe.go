package mqtt

import (
	"fmt"
)

// Subscribe registers a handler for messages matching topic.
//
// Topics may use MQTT wildcards: "+" matches one level
// ("rachio/device/+/state" covers every controller's state topic) and
// "#" matches the rest ("rachio/#" covers every bridge topic).
//
// The handler runs on a paho goroutine per message and should not block
// for long. Subscriptions are tracked and re-established after a
// reconnect.
//
// Parameters:
//   - topic: The topic pattern to subscribe to
//   - qos: Maximum QoS level for delivered messages (0, 1, or 2)
//   - handler: Callback invoked for each message
//
// Returns:
//   - error: nil on success, or a wrapped sentinel describing the failure
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	// Track first so a reconnect racing this call still restores it.
	c.subsMu.Lock()
	c.subs[topic] = subscription{
		topic:   topic,
		qos:     qos,
		handler: handler,
	}
	c.subsMu.Unlock()

	untrack := func() {
		c.subsMu.Lock()
		delete(c.subs, topic)
		c.subsMu.Unlock()
	}

	token := c.paho.Subscribe(topic, qos, c.wrapHandler(handler))
	if !token.WaitTimeout(defaultPublishTimeout) {
		untrack()
		return fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		untrack()
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}
	return nil
}

// Unsubscribe stops delivery for an exact topic pattern. Messages already
// in flight may still reach the handler.
//
// Parameters:
//   - topic: The exact topic pattern passed to Subscribe
//
// Returns:
//   - error: nil on success, or a wrapped sentinel describing the failure
func (c *Client) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.subsMu.Lock()
	delete(c.subs, topic)
	c.subsMu.Unlock()

	token := c.paho.Unsubscribe(topic)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrUnsubscribeFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnsubscribeFailed, err)
	}
	return nil
}

// SubscriptionCount returns the number of tracked subscriptions.
func (c *Client) SubscriptionCount() int {
	c.subsMu.RLock()
	defer c.subsMu.RUnlock()
	return len(c.subs)
}

// HasSubscription reports whether an exact topic pattern is tracked.
// No wildcard matching is attempted.
func (c *Client) HasSubscription(topic string) bool {
	c.subsMu.RLock()
	defer c.subsMu.RUnlock()
	_, exists := c.subs[topic]
	return exists
}
