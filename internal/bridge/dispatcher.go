package bridge

import (
	"sync"
	"time"
)

// Observer receives outward notifications from the bridge. Implementations
// must not block: slow sinks should queue internally and drop on overflow.
//
// Observers are registered at construction time, before any events flow,
// and the set never changes afterwards; dispatch is a direct call.
type Observer interface {
	// EntityDiscovered fires once when an entity is first seen.
	EntityDiscovered(ref EntityRef)

	// StateChanged fires once per accepted field transition.
	StateChanged(change Change)
}

// Dispatcher is the single choke point for observable state changes.
//
// It caches the last accepted value per (entity, field) pair and notifies
// observers only when a submitted value differs, making notification
// delivery idempotent under repeated polling of unchanged state.
//
// The compare-record-notify cycle runs under one mutex, so two concurrent
// updates of the same field can never both observe "changed".
type Dispatcher struct {
	mu        sync.Mutex
	last      map[dispatchKey]any
	observers []Observer
}

type dispatchKey struct {
	uid   string
	field string
}

// NewDispatcher creates a dispatcher delivering to the given observers.
func NewDispatcher(observers ...Observer) *Dispatcher {
	return &Dispatcher{
		last:      make(map[dispatchKey]any),
		observers: observers,
	}
}

// UpdateIfChanged records value for the entity field and notifies
// observers, but only when value differs from the last accepted one (or
// none exists yet). Returns true when a notification fired.
//
// Values are compared by equality, so only comparable types may be used.
func (d *Dispatcher) UpdateIfChanged(ref EntityRef, field string, value any) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := dispatchKey{uid: ref.UID, field: field}
	old, seen := d.last[key]
	if seen && old == value {
		return false
	}

	d.last[key] = value

	change := Change{
		Entity: ref,
		Field:  field,
		New:    value,
		Time:   time.Now(),
	}
	if seen {
		change.Old = old
	}

	for _, obs := range d.observers {
		obs.StateChanged(change)
	}
	return true
}

// NotifyDiscovered announces a newly seen entity to all observers.
func (d *Dispatcher) NotifyDiscovered(ref EntityRef) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, obs := range d.observers {
		obs.EntityDiscovered(ref)
	}
}
