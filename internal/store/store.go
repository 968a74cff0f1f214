package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"cadence/internal/feedback"
	"cadence/internal/logging"
	"cadence/internal/realtime"
	"cadence/internal/snapshot"
)

// ErrNotFound is returned by setters referencing an unknown feedback id.
var ErrNotFound = errors.New("feedback record not found")

// ErrNoChannel is returned by Subscribe when the store was built without a
// channel opener and fetcher.
var ErrNoChannel = errors.New("store has no realtime channel configured")

// AudioPathStore persists rendered audio file paths keyed by feedback id.
// Implemented by the sqlite audio cache; optional.
type AudioPathStore interface {
	Put(ctx context.Context, feedbackID, analysisID, path string) error
}

// Options configures a Store. Opener and Fetcher enable realtime
// subscriptions; leaving them nil yields a local-only store.
type Options struct {
	Opener     realtime.Opener
	Fetcher    realtime.Fetcher
	Backoff    realtime.BackoffConfig
	AudioPaths AudioPathStore
	Logger     *slog.Logger

	// Now overrides the clock used for local writes; tests only.
	Now func() time.Time
}

// Store is the session-scoped feedback status store. Construct with New and
// release with Close; there is no ambient global instance.
type Store struct {
	logger     *slog.Logger
	audioPaths AudioPathStore
	now        func() time.Time

	mu      sync.Mutex
	table   *feedback.Table
	emitter *snapshot.Emitter

	manager *realtime.Manager
}

// AnalysisSnapshot is the externally consumed view of one partition.
// Consumers compare snapshots by identity: an unchanged partition yields the
// exact same pointer as the previous call.
type AnalysisSnapshot struct {
	AnalysisID   string
	Records      []feedback.Record
	Stats        feedback.Stats
	Subscription realtime.State
}

// New constructs a Store.
func New(opts Options) (*Store, error) {
	s := &Store{
		logger:     logging.NewComponentLogger(opts.Logger, "store"),
		audioPaths: opts.AudioPaths,
		now:        opts.Now,
		table:      feedback.NewTable(),
		emitter:    snapshot.NewEmitter(),
	}
	if s.now == nil {
		s.now = time.Now
	}

	if opts.Opener != nil || opts.Fetcher != nil {
		if opts.Opener == nil || opts.Fetcher == nil {
			return nil, errors.New("realtime requires both opener and fetcher")
		}
		manager, err := realtime.NewManager(realtime.Options{
			Opener:  opts.Opener,
			Fetcher: opts.Fetcher,
			Applier: s,
			Backoff: opts.Backoff,
			Logger:  opts.Logger,
		})
		if err != nil {
			return nil, err
		}
		s.manager = manager
	}
	return s, nil
}

// Close releases every subscription. The store remains readable afterwards.
func (s *Store) Close() {
	if s.manager != nil {
		s.manager.Close()
	}
}

// AddFeedback inserts a feedback item created client-side ahead of any push
// event. Missing id, statuses, and timestamps are defaulted.
func (s *Store) AddFeedback(rec feedback.Record) (feedback.Record, error) {
	if strings.TrimSpace(rec.ID) == "" {
		rec.ID = uuid.NewString()
	}
	if rec.SSMLStatus == "" {
		rec.SSMLStatus = feedback.StatusQueued
	}
	if rec.AudioStatus == "" {
		rec.AudioStatus = feedback.StatusQueued
	}
	now := s.now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}
	if err := rec.Validate(); err != nil {
		return feedback.Record{}, fmt.Errorf("add feedback: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.table.Get(rec.ID); ok {
		merged, _ := feedback.MergeRecords(existing, rec)
		s.table.Upsert(merged)
		return merged, nil
	}
	s.table.Upsert(rec)
	return rec, nil
}

// GetFeedbackByID fetches one record.
func (s *Store) GetFeedbackByID(id string) (feedback.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.Get(id)
}

// SetSSMLStatus applies a local optimistic SSML status change. It goes
// through the same monotonic merge as remote events, so a newer server
// update can never be overwritten by a stale local write.
func (s *Store) SetSSMLStatus(id string, status feedback.PipelineStatus) error {
	return s.setStatus(id, feedback.PipelineSSML, status)
}

// SetAudioStatus applies a local optimistic audio status change.
func (s *Store) SetAudioStatus(id string, status feedback.PipelineStatus) error {
	return s.setStatus(id, feedback.PipelineAudio, status)
}

func (s *Store) setStatus(id string, pipeline feedback.Pipeline, status feedback.PipelineStatus) error {
	if !feedback.ValidStatus(pipeline, status) {
		return fmt.Errorf("invalid %s status %q", pipeline, status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.table.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	_, attempts, lastError, _ := rec.PipelineState(pipeline)
	ev := feedback.Event{
		ID:         rec.ID,
		AnalysisID: rec.AnalysisID,
		Pipeline:   pipeline,
		Status:     status,
		Attempts:   attempts,
		LastError:  lastError,
		UpdatedAt:  s.now().UTC(),
	}
	merged, _ := feedback.MergeEvent(rec, ev)
	s.table.Upsert(merged)
	return nil
}

// ListByAnalysis returns the partition's records in stable order.
func (s *Store) ListByAnalysis(analysisID string) []feedback.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.ListByAnalysis(analysisID)
}

// GetStats computes aggregate pipeline counts for a partition.
func (s *Store) GetStats(analysisID string) feedback.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return feedback.ComputeStats(s.table.ListByAnalysis(analysisID))
}

// Snapshot returns the reference-stable view of one partition. The
// fingerprint covers record identity, both status cohorts, and the
// subscription state; cohort timestamps are delivery metadata and excluded,
// so duplicate event redeliveries keep the previous snapshot pointer.
func (s *Store) Snapshot(analysisID string) *AnalysisSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.table.ListByAnalysis(analysisID)
	state := s.subscriptionState(analysisID)

	fields := make([]any, 0, len(records)*7+2)
	fields = append(fields, len(records), state)
	for _, rec := range records {
		fields = append(fields,
			rec.ID,
			rec.SSMLStatus, rec.SSMLAttempts, rec.SSMLLastError,
			rec.AudioStatus, rec.AudioAttempts, rec.AudioLastError,
		)
	}

	view := s.emitter.Emit("analysis/"+analysisID, fields, func() any {
		return &AnalysisSnapshot{
			AnalysisID:   analysisID,
			Records:      records,
			Stats:        feedback.ComputeStats(records),
			Subscription: state,
		}
	})
	return view.(*AnalysisSnapshot)
}

// SubscribeToAnalysisFeedbacks opens (or joins) the shared realtime
// subscription for an analysis. It returns once the subscription first
// reaches active; only the initial connect failure is returned as an error.
func (s *Store) SubscribeToAnalysisFeedbacks(ctx context.Context, analysisID string) error {
	if s.manager == nil {
		return ErrNoChannel
	}
	return s.manager.Subscribe(ctx, analysisID)
}

// Unsubscribe drops one consumer reference for an analysis.
func (s *Store) Unsubscribe(analysisID string) {
	if s.manager != nil {
		s.manager.Unsubscribe(analysisID)
	}
}

// SubscriptionStatus reports the channel state for an analysis.
func (s *Store) SubscriptionStatus(analysisID string) realtime.State {
	return s.subscriptionState(analysisID)
}

// Reset clears all state, used on sign-out. Every subscription is released
// and every snapshot baseline dropped.
func (s *Store) Reset() {
	if s.manager != nil {
		s.manager.UnsubscribeAll()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table.Clear()
	s.emitter.Reset()
}

// Apply implements realtime.Applier for incremental channel events. A
// malformed event is dropped with a warning and never corrupts the table.
// The return value signals that the event referenced an unknown record
// without carrying it, so the manager should run a reconciling fetch.
func (s *Store) Apply(ev feedback.Event) bool {
	if err := ev.Validate(); err != nil {
		s.logger.Warn("malformed event dropped",
			logging.String(logging.FieldEventType, "event_invalid"),
			logging.String(logging.FieldFeedbackID, ev.ID),
			logging.String(logging.FieldAnalysisID, ev.AnalysisID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "other records are unaffected"))
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.table.Get(ev.ID)
	if !ok {
		if ev.Record != nil {
			s.table.Upsert(*ev.Record)
			s.persistAudioPath(ev)
			return false
		}
		s.logger.Debug("event for unknown record; reconcile requested",
			logging.String(logging.FieldFeedbackID, ev.ID),
			logging.String(logging.FieldAnalysisID, ev.AnalysisID))
		return true
	}

	if ev.Record != nil {
		merged, _ := feedback.MergeRecords(current, *ev.Record)
		s.table.Upsert(merged)
		s.persistAudioPath(ev)
		return false
	}

	merged, changed := feedback.MergeEvent(current, ev)
	s.table.Upsert(merged)
	if !changed {
		s.logger.Debug("stale or duplicate event discarded",
			logging.String(logging.FieldFeedbackID, ev.ID),
			logging.String(logging.FieldPipeline, string(ev.Pipeline)))
	}
	s.persistAudioPath(ev)
	return false
}

// Reconcile implements realtime.Applier for bulk catch-up fetches. Fetched
// records merge per cohort against held ones; records held in memory but
// absent from the fetch are left untouched.
func (s *Store) Reconcile(analysisID string, records []feedback.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			s.logger.Warn("invalid record in reconciliation fetch skipped",
				logging.String(logging.FieldFeedbackID, rec.ID),
				logging.String(logging.FieldAnalysisID, analysisID),
				logging.Error(err))
			continue
		}
		if rec.AnalysisID != analysisID {
			continue
		}
		if current, ok := s.table.Get(rec.ID); ok {
			merged, _ := feedback.MergeRecords(current, rec)
			s.table.Upsert(merged)
			continue
		}
		s.table.Upsert(rec)
	}
}

func (s *Store) subscriptionState(analysisID string) realtime.State {
	if s.manager == nil {
		return realtime.StateIdle
	}
	return s.manager.State(analysisID)
}

// persistAudioPath records the rendered audio location once the audio
// pipeline completes with a path payload. Failures are soft; the in-memory
// state already advanced.
func (s *Store) persistAudioPath(ev feedback.Event) {
	if s.audioPaths == nil {
		return
	}
	if ev.Pipeline != feedback.PipelineAudio || ev.Status != feedback.StatusCompleted {
		return
	}
	if strings.TrimSpace(ev.AudioPath) == "" {
		return
	}
	if err := s.audioPaths.Put(context.Background(), ev.ID, ev.AnalysisID, ev.AudioPath); err != nil {
		s.logger.Warn("persist audio path failed",
			logging.String(logging.FieldFeedbackID, ev.ID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "path will be cached on the next completion event"))
	}
}
