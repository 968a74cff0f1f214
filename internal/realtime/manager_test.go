package realtime_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cadence/internal/feedback"
	"cadence/internal/logging"
	"cadence/internal/realtime"
	"cadence/internal/testsupport"
)

type fakeConn struct {
	events chan feedback.Event
	err    error
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{events: make(chan feedback.Event, 16)}
}

func (c *fakeConn) Events() <-chan feedback.Event { return c.events }

func (c *fakeConn) Err() error { return c.err }

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.events) })
	return nil
}

// fail closes the event stream with a transport error, as a dropped
// connection would.
func (c *fakeConn) fail(err error) {
	c.err = err
	c.once.Do(func() { close(c.events) })
}

type fakeOpener struct {
	mu       sync.Mutex
	failures int
	opens    int
	conns    chan *fakeConn
}

func newFakeOpener(failures int) *fakeOpener {
	return &fakeOpener{failures: failures, conns: make(chan *fakeConn, 16)}
}

func (o *fakeOpener) Open(ctx context.Context, analysisID string) (realtime.Conn, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opens++
	if o.failures > 0 {
		o.failures--
		return nil, errors.New("connection refused")
	}
	conn := newFakeConn()
	o.conns <- conn
	return conn, nil
}

func (o *fakeOpener) openCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opens
}

type fakeSink struct {
	mu         sync.Mutex
	records    []feedback.Record
	applied    []feedback.Event
	reconciles int
	fetches    int
	unknownIDs map[string]struct{}

	reconciled chan struct{}
}

func newFakeSink() *fakeSink {
	return &fakeSink{
		unknownIDs: make(map[string]struct{}),
		reconciled: make(chan struct{}, 16),
	}
}

func (s *fakeSink) FetchFeedbackStatus(ctx context.Context, analysisID string) ([]feedback.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	return s.records, nil
}

func (s *fakeSink) Apply(ev feedback.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applied = append(s.applied, ev)
	_, unknown := s.unknownIDs[ev.ID]
	return unknown
}

func (s *fakeSink) Reconcile(analysisID string, records []feedback.Record) {
	s.mu.Lock()
	s.reconciles++
	s.mu.Unlock()
	s.reconciled <- struct{}{}
}

func (s *fakeSink) appliedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.applied)
}

func (s *fakeSink) appliedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.applied))
	for _, ev := range s.applied {
		ids = append(ids, ev.ID)
	}
	return ids
}

func newTestManager(t *testing.T, opener realtime.Opener, sink *fakeSink) *realtime.Manager {
	t.Helper()
	manager, err := realtime.NewManager(realtime.Options{
		Opener:  opener,
		Fetcher: sink,
		Applier: sink,
		Backoff: realtime.BackoffConfig{Base: time.Millisecond, Max: 5 * time.Millisecond},
		Logger:  logging.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(manager.Close)
	return manager
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSubscribeBecomesActiveAndReconciles(t *testing.T) {
	opener := newFakeOpener(0)
	sink := newFakeSink()
	manager := newTestManager(t, opener, sink)

	if err := manager.Subscribe(context.Background(), "analysis-1"); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if state := manager.State("analysis-1"); state != realtime.StateActive {
		t.Fatalf("state = %s, want active", state)
	}

	select {
	case <-sink.reconciled:
	case <-time.After(2 * time.Second):
		t.Fatal("reconcile never ran after connect")
	}
}

func TestSubscribeInitialFailureSurfaces(t *testing.T) {
	opener := newFakeOpener(1)
	sink := newFakeSink()
	manager := newTestManager(t, opener, sink)

	if err := manager.Subscribe(context.Background(), "analysis-1"); err == nil {
		t.Fatal("expected initial connect failure to surface")
	}
	if state := manager.State("analysis-1"); state != realtime.StateIdle {
		t.Fatalf("failed subscription should be dropped, state = %s", state)
	}

	// A fresh Subscribe starts a clean bootstrap and succeeds.
	if err := manager.Subscribe(context.Background(), "analysis-1"); err != nil {
		t.Fatalf("retry Subscribe: %v", err)
	}
}

func TestEventsFlowToApplier(t *testing.T) {
	opener := newFakeOpener(0)
	sink := newFakeSink()
	manager := newTestManager(t, opener, sink)

	if err := manager.Subscribe(context.Background(), "analysis-1"); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	conn := <-opener.conns

	rec := testsupport.NewRecord(t, "fb-1", "analysis-1")
	conn.events <- feedback.Event{
		ID:         "fb-1",
		AnalysisID: "analysis-1",
		Pipeline:   feedback.PipelineSSML,
		Status:     feedback.StatusProcessing,
		UpdatedAt:  rec.UpdatedAt,
	}

	waitFor(t, "event to reach applier", func() bool { return sink.appliedCount() == 1 })
}

func TestForeignAnalysisEventsAreDropped(t *testing.T) {
	opener := newFakeOpener(0)
	sink := newFakeSink()
	manager := newTestManager(t, opener, sink)

	if err := manager.Subscribe(context.Background(), "analysis-1"); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	conn := <-opener.conns

	now := time.Now().UTC()
	conn.events <- feedback.Event{ID: "fb-x", AnalysisID: "analysis-2", Pipeline: feedback.PipelineSSML, Status: feedback.StatusQueued, UpdatedAt: now}
	conn.events <- feedback.Event{ID: "fb-1", AnalysisID: "analysis-1", Pipeline: feedback.PipelineSSML, Status: feedback.StatusQueued, UpdatedAt: now}

	waitFor(t, "matching event to arrive", func() bool { return sink.appliedCount() == 1 })
	if ids := sink.appliedIDs(); ids[0] != "fb-1" {
		t.Fatalf("applier saw foreign event %q", ids[0])
	}
}

func TestUnknownRecordTriggersReconcile(t *testing.T) {
	opener := newFakeOpener(0)
	sink := newFakeSink()
	sink.unknownIDs["fb-new"] = struct{}{}
	manager := newTestManager(t, opener, sink)

	if err := manager.Subscribe(context.Background(), "analysis-1"); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	<-sink.reconciled
	conn := <-opener.conns

	conn.events <- feedback.Event{
		ID:         "fb-new",
		AnalysisID: "analysis-1",
		Pipeline:   feedback.PipelineSSML,
		Status:     feedback.StatusQueued,
		UpdatedAt:  time.Now().UTC(),
	}

	select {
	case <-sink.reconciled:
	case <-time.After(2 * time.Second):
		t.Fatal("unknown record did not trigger a reconcile fetch")
	}
}

func TestReconnectAfterChannelLoss(t *testing.T) {
	opener := newFakeOpener(0)
	sink := newFakeSink()
	manager := newTestManager(t, opener, sink)

	if err := manager.Subscribe(context.Background(), "analysis-1"); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	conn := <-opener.conns
	conn.fail(errors.New("stream reset"))

	waitFor(t, "reconnect", func() bool { return opener.openCount() >= 2 })
	waitFor(t, "active state after reconnect", func() bool {
		return manager.State("analysis-1") == realtime.StateActive
	})
	if attempts := manager.ReconnectAttempts("analysis-1"); attempts != 0 {
		t.Fatalf("attempts after successful reconnect = %d, want 0", attempts)
	}
}

func TestRefcountedUnsubscribe(t *testing.T) {
	opener := newFakeOpener(0)
	sink := newFakeSink()
	manager := newTestManager(t, opener, sink)

	ctx := context.Background()
	if err := manager.Subscribe(ctx, "analysis-1"); err != nil {
		t.Fatalf("first Subscribe: %v", err)
	}
	if err := manager.Subscribe(ctx, "analysis-1"); err != nil {
		t.Fatalf("second Subscribe: %v", err)
	}
	if opener.openCount() != 1 {
		t.Fatalf("shared subscription opened %d channels, want 1", opener.openCount())
	}

	manager.Unsubscribe("analysis-1")
	if state := manager.State("analysis-1"); state != realtime.StateActive {
		t.Fatalf("state after partial unsubscribe = %s, want active", state)
	}

	manager.Unsubscribe("analysis-1")
	if state := manager.State("analysis-1"); state != realtime.StateIdle {
		t.Fatalf("state after final unsubscribe = %s, want idle", state)
	}

	// Releasing an unknown id is a no-op.
	manager.Unsubscribe("analysis-unknown")
}

func TestSubscribeAfterClose(t *testing.T) {
	opener := newFakeOpener(0)
	sink := newFakeSink()
	manager := newTestManager(t, opener, sink)

	manager.Close()
	if err := manager.Subscribe(context.Background(), "analysis-1"); !errors.Is(err, realtime.ErrClosed) {
		t.Fatalf("Subscribe after Close = %v, want ErrClosed", err)
	}
}

func TestUnsubscribeAllKeepsManagerUsable(t *testing.T) {
	opener := newFakeOpener(0)
	sink := newFakeSink()
	manager := newTestManager(t, opener, sink)

	if err := manager.Subscribe(context.Background(), "analysis-1"); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	manager.UnsubscribeAll()
	if state := manager.State("analysis-1"); state != realtime.StateIdle {
		t.Fatalf("state after UnsubscribeAll = %s, want idle", state)
	}

	if err := manager.Subscribe(context.Background(), "analysis-2"); err != nil {
		t.Fatalf("Subscribe after UnsubscribeAll: %v", err)
	}
}
