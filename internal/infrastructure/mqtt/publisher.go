package mqtt

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/quietlawn/rachio-bridge/internal/bridge"
)

// publisherQueueSize bounds the async publish queue. Updates beyond it
// are dropped; the retained topics converge on the next change anyway.
const publisherQueueSize = 256

// Broker is the subset of Client used by the Publisher. Declared here so
// tests can substitute a fake without a running broker.
type Broker interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// EntityReader provides entity snapshots for publishing. Satisfied by
// bridge.Store.
type EntityReader interface {
	DeviceByUID(uid string) (*bridge.Device, error)
	ZoneByUID(uid string) (*bridge.Zone, *bridge.Device, error)
}

// Publisher is a bridge.Observer that mirrors entity state onto MQTT.
//
// Every accepted change republishes the full entity snapshot, retained,
// on rachio/device/{uid}/state or rachio/zone/{uid}/state, so a consumer
// connecting late still sees the current picture. Discoveries are
// additionally announced on rachio/bridge/discovery (not retained).
//
// Observer callbacks run inside the dispatcher's critical section and
// must not read the store or block on the network, so work goes through
// a buffered queue serviced by a single worker.
type Publisher struct {
	broker Broker
	store  EntityReader
	qos    byte
	logger Logger

	queue    chan publishItem
	done     chan struct{}
	closeOne sync.Once
	dropped  int64
	mu       sync.Mutex
}

type publishItem struct {
	ref        bridge.EntityRef
	discovered bool
}

// discoveryMessage is the payload published on the discovery topic.
type discoveryMessage struct {
	Kind      bridge.EntityKind `json:"kind"`
	UID       string            `json:"uid"`
	CloudID   string            `json:"cloud_id"`
	DeviceUID string            `json:"device_uid,omitempty"`
	Name      string            `json:"name"`
	Time      time.Time         `json:"time"`
}

// NewPublisher creates a publisher and starts its worker.
func NewPublisher(broker Broker, store EntityReader, qos byte, logger Logger) *Publisher {
	if logger == nil {
		logger = noopPubLogger{}
	}
	p := &Publisher{
		broker: broker,
		store:  store,
		qos:    qos,
		logger: logger,
		queue:  make(chan publishItem, publisherQueueSize),
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

// SetStore wires the entity source after construction. The store is
// built after its observers, so wiring happens in two steps; call
// before the first inventory pull.
func (p *Publisher) SetStore(store EntityReader) {
	p.mu.Lock()
	p.store = store
	p.mu.Unlock()
}

// EntityDiscovered implements bridge.Observer.
func (p *Publisher) EntityDiscovered(ref bridge.EntityRef) {
	p.enqueue(publishItem{ref: ref, discovered: true})
}

// StateChanged implements bridge.Observer.
func (p *Publisher) StateChanged(ch bridge.Change) {
	p.enqueue(publishItem{ref: ch.Entity})
}

// Dropped returns the number of updates discarded because the queue was
// full.
func (p *Publisher) Dropped() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}

// Close stops the worker after draining queued updates. The publisher
// must not receive observer callbacks after Close.
func (p *Publisher) Close() {
	p.closeOne.Do(func() {
		close(p.queue)
		<-p.done
	})
}

func (p *Publisher) enqueue(item publishItem) {
	defer func() {
		// Enqueue after Close is a harmless race during shutdown.
		_ = recover()
	}()

	select {
	case p.queue <- item:
	default:
		p.mu.Lock()
		p.dropped++
		p.mu.Unlock()
	}
}

func (p *Publisher) run() {
	defer close(p.done)

	for item := range p.queue {
		if item.discovered {
			p.publishDiscovery(item.ref)
		}
		p.publishState(item.ref)
	}
}

func (p *Publisher) publishDiscovery(ref bridge.EntityRef) {
	msg := discoveryMessage{
		Kind:      ref.Kind,
		UID:       ref.UID,
		CloudID:   ref.CloudID,
		DeviceUID: ref.DeviceUID,
		Name:      ref.Name,
		Time:      time.Now().UTC(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		p.logger.Error("mqtt publisher: marshal discovery", "uid", ref.UID, "error", err)
		return
	}
	if err := p.broker.Publish(Topics{}.Discovery(), payload, p.qos, false); err != nil {
		p.logger.Warn("mqtt publisher: discovery publish failed", "uid", ref.UID, "error", err)
	}
}

// publishState looks up the current snapshot and republishes it retained.
// The entity may have changed again since the observer fired; publishing
// the latest state is the desired behaviour.
func (p *Publisher) publishState(ref bridge.EntityRef) {
	p.mu.Lock()
	store := p.store
	p.mu.Unlock()
	if store == nil {
		return
	}

	var (
		topic   string
		payload []byte
		err     error
	)

	switch ref.Kind {
	case bridge.KindDevice:
		var dev *bridge.Device
		dev, err = store.DeviceByUID(ref.UID)
		if err == nil {
			topic = Topics{}.DeviceState(dev.UID)
			payload, err = json.Marshal(dev)
		}
	case bridge.KindZone:
		var zone *bridge.Zone
		zone, _, err = store.ZoneByUID(ref.UID)
		if err == nil {
			topic = Topics{}.ZoneState(zone.UID)
			payload, err = json.Marshal(zone)
		}
	default:
		return
	}

	if err != nil {
		// Not-found happens only if a discovery raced shutdown; anything
		// else is a marshal failure worth surfacing.
		if !errors.Is(err, bridge.ErrDeviceNotFound) && !errors.Is(err, bridge.ErrZoneNotFound) {
			p.logger.Error("mqtt publisher: snapshot failed", "uid", ref.UID, "error", err)
		}
		return
	}

	if err := p.broker.Publish(topic, payload, p.qos, true); err != nil {
		p.logger.Warn("mqtt publisher: state publish failed", "topic", topic, "error", err)
	}
}

// noopPubLogger satisfies Logger when no logger is supplied. The client's
// Logger interface only carries Warn/Error plus what the publisher needs.
type noopPubLogger struct{}

func (noopPubLogger) Error(string, ...any) {}
func (noopPubLogger) Warn(string, ...any)  {}
