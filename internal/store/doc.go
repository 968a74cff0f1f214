// Package store exposes the public feedback status API consumed by UI
// layers: explicit construction and disposal, local optimistic writes that
// obey the same monotonic merge as remote events, partition-scoped stats,
// reference-stable snapshots, and refcounted realtime subscriptions.
//
// A single mutex serializes every table and snapshot mutation, standing in
// for the single-threaded event queue of the original design. The store also
// implements realtime.Applier, so the subscription manager feeds channel
// events and reconciliation slices straight into it.
package store
