package realtime

import (
	"context"

	"cadence/internal/feedback"
)

// State is the lifecycle of one analysis subscription.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateActive     State = "active"
	StateError      State = "error"
)

// Conn is one open push channel scoped to a single analysis. The transport
// is opaque to this package; implementations deliver decoded events until
// the channel dies, then close Events and expose the cause via Err.
type Conn interface {
	// Events yields inbound events. The channel is closed when the
	// connection is lost or Close is called.
	Events() <-chan feedback.Event
	// Err reports why Events closed. It is nil after a clean Close.
	Err() error
	Close() error
}

// Opener dials the push channel for an analysis. A nil error means the
// subscription reached the subscribed state on the wire.
type Opener interface {
	Open(ctx context.Context, analysisID string) (Conn, error)
}

// Fetcher retrieves the full status slice for an analysis, used for the
// initial load and for post-reconnect reconciliation.
type Fetcher interface {
	FetchFeedbackStatus(ctx context.Context, analysisID string) ([]feedback.Record, error)
}

// Applier receives channel data from the manager. Apply returns true when
// the event referenced an unknown record and a reconciling fetch is needed.
type Applier interface {
	Apply(ev feedback.Event) (needsReconcile bool)
	Reconcile(analysisID string, records []feedback.Record)
}
