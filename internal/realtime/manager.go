package realtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"cadence/internal/logging"
)

// ErrClosed is returned by Subscribe after the manager has been closed.
var ErrClosed = errors.New("subscription manager closed")

// Options configures a Manager. Opener, Fetcher, and Applier are required.
type Options struct {
	Opener  Opener
	Fetcher Fetcher
	Applier Applier
	Backoff BackoffConfig
	Logger  *slog.Logger
}

// Manager owns the mapping from analysis id to subscription and the full
// connect/error/reconnect state machine. All consumers of one analysis share
// a single channel and backoff cycle.
type Manager struct {
	opener  Opener
	fetcher Fetcher
	applier Applier
	backoff BackoffConfig
	logger  *slog.Logger

	mu     sync.Mutex
	subs   map[string]*subscription
	closed bool
}

type subscription struct {
	analysisID string
	refs       int
	state      State
	attempts   int
	cancel     context.CancelFunc
	done       chan struct{}

	readyOnce sync.Once
	ready     chan struct{}
	readyErr  error
}

func (s *subscription) signalReady(err error) {
	s.readyOnce.Do(func() {
		s.readyErr = err
		close(s.ready)
	})
}

// NewManager constructs a Manager.
func NewManager(opts Options) (*Manager, error) {
	if opts.Opener == nil || opts.Fetcher == nil || opts.Applier == nil {
		return nil, errors.New("manager requires opener, fetcher, and applier")
	}
	return &Manager{
		opener:  opts.Opener,
		fetcher: opts.Fetcher,
		applier: opts.Applier,
		backoff: opts.Backoff,
		logger:  logging.NewComponentLogger(opts.Logger, "realtime"),
		subs:    make(map[string]*subscription),
	}, nil
}

// Subscribe registers interest in an analysis and blocks until the shared
// subscription first reaches active. It returns an error only when the
// initial connection attempt fails outright or ctx is cancelled; transient
// errors after the first success are handled internally via reconnect.
func (m *Manager) Subscribe(ctx context.Context, analysisID string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	sub, ok := m.subs[analysisID]
	if ok {
		sub.refs++
	} else {
		runCtx, cancel := context.WithCancel(context.Background())
		sub = &subscription{
			analysisID: analysisID,
			refs:       1,
			state:      StateConnecting,
			cancel:     cancel,
			done:       make(chan struct{}),
			ready:      make(chan struct{}),
		}
		m.subs[analysisID] = sub
		go m.run(runCtx, sub)
	}
	m.mu.Unlock()

	select {
	case <-ctx.Done():
		m.Unsubscribe(analysisID)
		return ctx.Err()
	case <-sub.ready:
		if sub.readyErr != nil {
			return sub.readyErr
		}
		return nil
	}
}

// Unsubscribe drops one consumer reference. When the last consumer leaves,
// the channel handle is released and any pending reconnect timer or
// in-flight reconcile fetch is cancelled. Unknown ids are a no-op.
func (m *Manager) Unsubscribe(analysisID string) {
	m.mu.Lock()
	sub, ok := m.subs[analysisID]
	if !ok {
		m.mu.Unlock()
		return
	}
	sub.refs--
	if sub.refs > 0 {
		m.mu.Unlock()
		return
	}
	delete(m.subs, analysisID)
	m.mu.Unlock()
	sub.cancel()
}

// State reports the subscription state for an analysis; idle when none
// exists.
func (m *Manager) State(analysisID string) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sub, ok := m.subs[analysisID]; ok {
		return sub.state
	}
	return StateIdle
}

// ReconnectAttempts reports consecutive failed attempts since the last
// successful connect.
func (m *Manager) ReconnectAttempts(analysisID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sub, ok := m.subs[analysisID]; ok {
		return sub.attempts
	}
	return 0
}

// UnsubscribeAll releases every subscription regardless of refcounts, used
// on store reset. The manager stays usable for new subscriptions.
func (m *Manager) UnsubscribeAll() {
	m.mu.Lock()
	subs := m.subs
	m.subs = make(map[string]*subscription)
	m.mu.Unlock()

	for _, sub := range subs {
		sub.cancel()
	}
}

// Close releases every subscription. Subsequent Subscribe calls fail with
// ErrClosed.
func (m *Manager) Close() {
	m.mu.Lock()
	subs := m.subs
	m.subs = make(map[string]*subscription)
	m.closed = true
	m.mu.Unlock()

	for _, sub := range subs {
		sub.cancel()
	}
}

func (m *Manager) run(ctx context.Context, sub *subscription) {
	defer close(sub.done)

	back := newBackoff(m.backoff)
	first := true
	for {
		if ctx.Err() != nil {
			return
		}
		m.setState(sub, StateConnecting)

		conn, err := m.opener.Open(ctx, sub.analysisID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if first {
				// Initial bootstrap failure is the one error consumers
				// must handle; the subscription entry is dropped so a
				// retry starts clean.
				sub.signalReady(err)
				m.drop(sub)
				return
			}
			m.noteFailure(sub, err)
			if !m.waitBackoff(ctx, back, sub.analysisID) {
				return
			}
			continue
		}
		first = false

		m.setActive(sub)
		back.Reset()
		sub.signalReady(nil)

		m.reconcile(ctx, sub.analysisID)
		err = m.consume(ctx, sub, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		m.noteFailure(sub, err)
		if !m.waitBackoff(ctx, back, sub.analysisID) {
			return
		}
	}
}

func (m *Manager) consume(ctx context.Context, sub *subscription, conn Conn) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-conn.Events():
			if !ok {
				return conn.Err()
			}
			if ev.AnalysisID != sub.analysisID {
				m.logger.Warn("event for foreign analysis dropped",
					logging.String(logging.FieldAnalysisID, sub.analysisID),
					logging.String("event_analysis_id", ev.AnalysisID),
					logging.String(logging.FieldFeedbackID, ev.ID))
				continue
			}
			if m.applier.Apply(ev) {
				m.reconcile(ctx, sub.analysisID)
			}
		}
	}
}

// reconcile fetches the full partition and hands it to the applier. A fetch
// that resolves after the subscription was cancelled is discarded.
func (m *Manager) reconcile(ctx context.Context, analysisID string) {
	records, err := m.fetcher.FetchFeedbackStatus(ctx, analysisID)
	if err != nil {
		if ctx.Err() == nil {
			m.logger.Warn("reconciliation fetch failed",
				logging.String(logging.FieldAnalysisID, analysisID),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "will retry on next reconnect"),
				logging.String(logging.FieldImpact, "status view may lag until the next fetch"))
		}
		return
	}
	if ctx.Err() != nil {
		return
	}
	m.applier.Reconcile(analysisID, records)
}

func (m *Manager) waitBackoff(ctx context.Context, back *backoff, analysisID string) bool {
	d := back.Next()
	m.logger.Info("channel lost; reconnecting",
		logging.String(logging.FieldAnalysisID, analysisID),
		logging.Duration("delay", d))

	timer := time.NewTimer(d)
	select {
	case <-ctx.Done():
		timer.Stop()
		return false
	case <-timer.C:
		return true
	}
}

func (m *Manager) setState(sub *subscription, state State) {
	m.mu.Lock()
	sub.state = state
	m.mu.Unlock()
}

func (m *Manager) setActive(sub *subscription) {
	m.mu.Lock()
	sub.state = StateActive
	sub.attempts = 0
	m.mu.Unlock()
}

func (m *Manager) noteFailure(sub *subscription, err error) {
	m.mu.Lock()
	sub.state = StateError
	sub.attempts++
	attempts := sub.attempts
	m.mu.Unlock()

	m.logger.Warn("channel error",
		logging.String(logging.FieldAnalysisID, sub.analysisID),
		logging.Int("reconnect_attempts", attempts),
		logging.Error(err))
}

func (m *Manager) drop(sub *subscription) {
	m.mu.Lock()
	if current, ok := m.subs[sub.analysisID]; ok && current == sub {
		delete(m.subs, sub.analysisID)
	}
	m.mu.Unlock()
	sub.cancel()
}
