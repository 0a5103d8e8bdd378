// Package history persists a local audit trail of bridge activity.
//
// Every routed webhook event, reconciliation discovery, and accepted
// state transition is recorded in the SQLite event_history table and
// exposed through the REST API. The Recorder observer decouples writes
// from the dispatcher's critical section with a bounded async queue.
package history
