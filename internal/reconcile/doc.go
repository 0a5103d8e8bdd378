// Package reconcile runs the periodic pull-and-diff cycle against the
// cloud inventory.
//
// Each run fetches the full person → device → zone inventory, merges it
// atomically into the entity store, and announces newly seen entities to
// observers. Entities absent from a pull are never removed; a cloud-side
// omission is treated as transient. Failed pulls leave the prior
// snapshot untouched and mark known devices with a communication-error
// status that clears on the next successful run.
package reconcile
