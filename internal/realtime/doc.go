// Package realtime owns the per-analysis subscription lifecycle: opening the
// push channel, reconciling after each connect, reconnecting with capped
// exponential backoff and jitter after channel loss, and reference counting
// so independent consumers of one analysis share a single channel.
//
// The manager never interprets status semantics itself; merged mutations are
// delegated to an Applier (the store). Only the first connect attempt can
// fail a Subscribe call. Later transport errors are absorbed into the
// subscription state and retried internally.
package realtime
