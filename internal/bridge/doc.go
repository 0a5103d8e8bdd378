// Package bridge holds the local entity model and its change pipeline.
//
// This package manages:
//   - Device and Zone entities mirroring the cloud controller hierarchy
//   - The Store: identity mapping from cloud IDs to deterministic local UIDs,
//     lookups, and serialized mutation of shared state
//   - The Dispatcher: per-field last-value cache that makes outward
//     notifications idempotent, fanning out to registered observers
//
// # Concurrency
//
// The Store's RWMutex covers full inventory merges as well as individual
// mutations, so webhook routing never observes a half-rebuilt store.
// The Dispatcher serializes its compare-record-notify cycle under its own
// mutex. Observers run inside that cycle and must not block or call back
// into the Store's mutators.
//
// # Identity
//
// Local UIDs are uuid.NewSHA1 over an account-scoped namespace and the
// cloud ID: stable across rediscovery and restarts, assigned exactly once.
package bridge
