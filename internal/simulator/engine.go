package simulator

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"cadence/internal/feedback"
)

var sampleMessages = []struct {
	message  string
	category string
}{
	{"Slow down through the opening phrase.", "pacing"},
	{"Emphasize the contrast in the second clause.", "emphasis"},
	{"Pitch drifts upward at the sentence end.", "intonation"},
	{"Insert a short pause before the conclusion.", "pacing"},
	{"The technical term needs clearer articulation.", "clarity"},
	{"Energy drops noticeably in this section.", "delivery"},
}

// Engine holds simulated feedback items and advances their pipelines.
type Engine struct {
	mu      sync.Mutex
	table   *feedback.Table
	subs    map[int]chan feedback.Event
	nextSub int
	now     func() time.Time
	randFn  func() float64
}

// NewEngine returns an empty engine.
func NewEngine() *Engine {
	return &Engine{
		table:  feedback.NewTable(),
		subs:   make(map[int]chan feedback.Event),
		now:    time.Now,
		randFn: rand.Float64,
	}
}

// Seed creates n queued feedback items under an analysis.
func (e *Engine) Seed(analysisID string, n int) []feedback.Record {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now().UTC()
	records := make([]feedback.Record, 0, n)
	for i := 0; i < n; i++ {
		sample := sampleMessages[i%len(sampleMessages)]
		rec := feedback.Record{
			ID:               uuid.NewString(),
			AnalysisID:       analysisID,
			Message:          sample.message,
			Category:         sample.category,
			TimestampSeconds: float64(i*7) + 2.5,
			Confidence:       0.6 + 0.05*float64(i%8),
			SSMLStatus:       feedback.StatusQueued,
			AudioStatus:      feedback.StatusQueued,
			SSMLUpdatedAt:    now,
			AudioUpdatedAt:   now,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		e.table.Upsert(rec)
		records = append(records, rec)
	}
	return records
}

// Add inserts one item, assigning an id and queued pipelines.
func (e *Engine) Add(rec feedback.Record) feedback.Record {
	e.mu.Lock()
	defer e.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := e.now().UTC()
	rec.SSMLStatus = feedback.StatusQueued
	rec.AudioStatus = feedback.StatusQueued
	rec.SSMLAttempts = 0
	rec.AudioAttempts = 0
	rec.SSMLUpdatedAt = now
	rec.AudioUpdatedAt = now
	rec.CreatedAt = now
	rec.UpdatedAt = now
	e.table.Upsert(rec)

	insert := feedback.Event{
		ID:         rec.ID,
		AnalysisID: rec.AnalysisID,
		Pipeline:   feedback.PipelineSSML,
		Status:     rec.SSMLStatus,
		UpdatedAt:  now,
		Record:     &rec,
	}
	e.broadcast(insert)
	return rec
}

// Records returns the current partition slice.
func (e *Engine) Records(analysisID string) []feedback.Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.table.ListByAnalysis(analysisID)
}

// Subscribe registers an event listener. The returned cancel func must be
// called to release it.
func (e *Engine) Subscribe() (<-chan feedback.Event, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextSub
	e.nextSub++
	ch := make(chan feedback.Event, 64)
	e.subs[id] = ch

	cancel := func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if sub, ok := e.subs[id]; ok {
			delete(e.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Step advances every unfinished record by one pipeline transition and
// broadcasts the resulting events.
func (e *Engine) Step() []feedback.Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	var events []feedback.Event
	for _, analysisID := range e.table.AnalysisIDs() {
		for _, rec := range e.table.ListByAnalysis(analysisID) {
			if ev, ok := e.advance(rec); ok {
				events = append(events, ev)
			}
		}
	}
	for _, ev := range events {
		e.broadcast(ev)
	}
	return events
}

// Run steps the engine on a fixed interval until ctx is done.
func (e *Engine) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Step()
		}
	}
}

// advance applies one pipeline transition. Audio waits for SSML completion,
// mirroring the real backend's ordering.
func (e *Engine) advance(rec feedback.Record) (feedback.Event, bool) {
	now := e.now().UTC()

	switch rec.SSMLStatus {
	case feedback.StatusQueued:
		rec.SSMLStatus = feedback.StatusProcessing
		rec.SSMLAttempts++
		return e.commitSSML(rec, now), true
	case feedback.StatusProcessing:
		if e.randFn() < 0.8 {
			rec.SSMLStatus = feedback.StatusCompleted
			rec.SSMLLastError = ""
		} else {
			rec.SSMLStatus = feedback.StatusFailed
			rec.SSMLLastError = "ssml synthesis failed: invalid prosody span"
		}
		return e.commitSSML(rec, now), true
	case feedback.StatusFailed:
		if e.randFn() < 0.5 {
			rec.SSMLStatus = feedback.StatusProcessing
			rec.SSMLAttempts++
			return e.commitSSML(rec, now), true
		}
		return feedback.Event{}, false
	}

	switch rec.AudioStatus {
	case feedback.StatusQueued:
		rec.AudioStatus = feedback.StatusProcessing
		rec.AudioAttempts++
		return e.commitAudio(rec, now, ""), true
	case feedback.StatusProcessing:
		if e.randFn() < 0.7 {
			rec.AudioStatus = feedback.StatusCompleted
			rec.AudioLastError = ""
			path := fmt.Sprintf("audio/%s/%s.ogg", rec.AnalysisID, rec.ID)
			return e.commitAudio(rec, now, path), true
		}
		rec.AudioStatus = feedback.StatusRetrying
		rec.AudioLastError = "audio render failed: synthesis backend busy"
		return e.commitAudio(rec, now, ""), true
	case feedback.StatusRetrying:
		rec.AudioStatus = feedback.StatusProcessing
		rec.AudioAttempts++
		return e.commitAudio(rec, now, ""), true
	}

	return feedback.Event{}, false
}

func (e *Engine) commitSSML(rec feedback.Record, now time.Time) feedback.Event {
	rec.SSMLUpdatedAt = now
	rec.UpdatedAt = now
	e.table.Upsert(rec)
	return feedback.Event{
		ID:         rec.ID,
		AnalysisID: rec.AnalysisID,
		Pipeline:   feedback.PipelineSSML,
		Status:     rec.SSMLStatus,
		Attempts:   rec.SSMLAttempts,
		LastError:  rec.SSMLLastError,
		UpdatedAt:  now,
	}
}

func (e *Engine) commitAudio(rec feedback.Record, now time.Time, audioPath string) feedback.Event {
	rec.AudioUpdatedAt = now
	rec.UpdatedAt = now
	e.table.Upsert(rec)
	return feedback.Event{
		ID:         rec.ID,
		AnalysisID: rec.AnalysisID,
		Pipeline:   feedback.PipelineAudio,
		Status:     rec.AudioStatus,
		Attempts:   rec.AudioAttempts,
		LastError:  rec.AudioLastError,
		AudioPath:  audioPath,
		UpdatedAt:  now,
	}
}

// broadcast fans an event out to subscribers; slow listeners drop events
// rather than stalling the engine (the client reconciles on reconnect).
func (e *Engine) broadcast(ev feedback.Event) {
	for _, sub := range e.subs {
		select {
		case sub <- ev:
		default:
		}
	}
}
