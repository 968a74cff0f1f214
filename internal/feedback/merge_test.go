package feedback_test

import (
	"testing"
	"time"

	"cadence/internal/feedback"
	"cadence/internal/testsupport"
)

func baseTime() time.Time {
	return time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
}

func TestMergeEventAppliesNewerUpdate(t *testing.T) {
	rec := testsupport.NewRecord(t, "fb-1", "analysis-1")

	ev := feedback.Event{
		ID:         "fb-1",
		AnalysisID: "analysis-1",
		Pipeline:   feedback.PipelineSSML,
		Status:     feedback.StatusProcessing,
		Attempts:   1,
		UpdatedAt:  baseTime().Add(time.Second),
	}
	merged, changed := feedback.MergeEvent(rec, ev)
	if !changed {
		t.Fatal("expected newer event to change the record")
	}
	if merged.SSMLStatus != feedback.StatusProcessing {
		t.Fatalf("ssml status = %q, want processing", merged.SSMLStatus)
	}
	if merged.SSMLAttempts != 1 {
		t.Fatalf("ssml attempts = %d, want 1", merged.SSMLAttempts)
	}
	if !merged.SSMLUpdatedAt.Equal(ev.UpdatedAt) {
		t.Fatalf("ssml updated at = %v, want %v", merged.SSMLUpdatedAt, ev.UpdatedAt)
	}
	if merged.AudioStatus != rec.AudioStatus {
		t.Fatal("merging an ssml event must not touch the audio cohort")
	}
}

func TestMergeEventRejectsStaleUpdate(t *testing.T) {
	rec := testsupport.NewRecord(t, "fb-1", "analysis-1")
	rec.SSMLStatus = feedback.StatusCompleted
	rec.SSMLAttempts = 2
	rec.SSMLUpdatedAt = baseTime().Add(time.Minute)

	ev := feedback.Event{
		ID:         "fb-1",
		AnalysisID: "analysis-1",
		Pipeline:   feedback.PipelineSSML,
		Status:     feedback.StatusProcessing,
		Attempts:   1,
		UpdatedAt:  baseTime(),
	}
	merged, changed := feedback.MergeEvent(rec, ev)
	if changed {
		t.Fatal("stale event must not report a change")
	}
	if merged.SSMLStatus != feedback.StatusCompleted || merged.SSMLAttempts != 2 {
		t.Fatalf("stale event mutated record: %#v", merged)
	}
}

func TestMergeEventEqualTimestampIsIdempotent(t *testing.T) {
	rec := testsupport.NewRecord(t, "fb-1", "analysis-1")

	ev := feedback.Event{
		ID:         "fb-1",
		AnalysisID: "analysis-1",
		Pipeline:   feedback.PipelineAudio,
		Status:     feedback.StatusProcessing,
		Attempts:   1,
		UpdatedAt:  baseTime().Add(time.Second),
	}

	first, changed := feedback.MergeEvent(rec, ev)
	if !changed {
		t.Fatal("first delivery should change the record")
	}
	second, changed := feedback.MergeEvent(first, ev)
	if changed {
		t.Fatal("redelivery of the same event must be a no-op")
	}
	if second != first {
		t.Fatalf("redelivery mutated record: %#v vs %#v", second, first)
	}
}

func TestMergeEventAttemptsNeverDecrease(t *testing.T) {
	rec := testsupport.NewRecord(t, "fb-1", "analysis-1")
	rec.AudioStatus = feedback.StatusRetrying
	rec.AudioAttempts = 3
	rec.AudioUpdatedAt = baseTime()

	ev := feedback.Event{
		ID:         "fb-1",
		AnalysisID: "analysis-1",
		Pipeline:   feedback.PipelineAudio,
		Status:     feedback.StatusProcessing,
		Attempts:   1,
		UpdatedAt:  baseTime().Add(time.Second),
	}
	merged, changed := feedback.MergeEvent(rec, ev)
	if !changed {
		t.Fatal("status transition should count as a change")
	}
	if merged.AudioAttempts != 3 {
		t.Fatalf("audio attempts = %d, want 3", merged.AudioAttempts)
	}
}

func TestMergeEventCompletedClampsAttempts(t *testing.T) {
	rec := testsupport.NewRecord(t, "fb-1", "analysis-1")

	ev := feedback.Event{
		ID:         "fb-1",
		AnalysisID: "analysis-1",
		Pipeline:   feedback.PipelineAudio,
		Status:     feedback.StatusCompleted,
		Attempts:   0,
		UpdatedAt:  baseTime().Add(time.Second),
	}
	merged, _ := feedback.MergeEvent(rec, ev)
	if merged.AudioAttempts != 1 {
		t.Fatalf("completed with zero attempts should clamp to 1, got %d", merged.AudioAttempts)
	}
}

func TestMergeEventClearsErrorOnCleanStates(t *testing.T) {
	for _, status := range []feedback.PipelineStatus{feedback.StatusQueued, feedback.StatusCompleted} {
		rec := testsupport.NewRecord(t, "fb-1", "analysis-1")
		rec.SSMLStatus = feedback.StatusFailed
		rec.SSMLLastError = "synthesis timeout"
		rec.SSMLAttempts = 1
		rec.SSMLUpdatedAt = baseTime()

		ev := feedback.Event{
			ID:         "fb-1",
			AnalysisID: "analysis-1",
			Pipeline:   feedback.PipelineSSML,
			Status:     status,
			Attempts:   1,
			LastError:  "synthesis timeout",
			UpdatedAt:  baseTime().Add(time.Second),
		}
		merged, _ := feedback.MergeEvent(rec, ev)
		if merged.SSMLLastError != "" {
			t.Fatalf("status %s should clear last error, got %q", status, merged.SSMLLastError)
		}
	}
}

func TestMergeEventKeepsErrorWhileFailed(t *testing.T) {
	rec := testsupport.NewRecord(t, "fb-1", "analysis-1")

	ev := feedback.Event{
		ID:         "fb-1",
		AnalysisID: "analysis-1",
		Pipeline:   feedback.PipelineAudio,
		Status:     feedback.StatusFailed,
		Attempts:   2,
		LastError:  "voice model unavailable",
		UpdatedAt:  baseTime().Add(time.Second),
	}
	merged, _ := feedback.MergeEvent(rec, ev)
	if merged.AudioLastError != "voice model unavailable" {
		t.Fatalf("failed status should keep last error, got %q", merged.AudioLastError)
	}
}

func TestMergeRecordsKeepsDescriptivePayload(t *testing.T) {
	current := testsupport.NewRecord(t, "fb-1", "analysis-1")
	incoming := current
	incoming.Message = "rewritten remotely"
	incoming.Category = "other"
	incoming.SSMLStatus = feedback.StatusCompleted
	incoming.SSMLAttempts = 1
	incoming.SSMLUpdatedAt = baseTime().Add(time.Minute)

	merged, changed := feedback.MergeRecords(current, incoming)
	if !changed {
		t.Fatal("expected cohort change")
	}
	if merged.Message != current.Message || merged.Category != current.Category {
		t.Fatalf("descriptive payload must stay immutable: %#v", merged)
	}
	if merged.SSMLStatus != feedback.StatusCompleted {
		t.Fatalf("ssml status = %q, want completed", merged.SSMLStatus)
	}
}

func TestMergeRecordsCohortsMoveIndependently(t *testing.T) {
	current := testsupport.NewRecord(t, "fb-1", "analysis-1")
	current.SSMLStatus = feedback.StatusCompleted
	current.SSMLAttempts = 1
	current.SSMLUpdatedAt = baseTime().Add(time.Minute)

	// Incoming is ahead on audio but behind on ssml.
	incoming := testsupport.NewRecord(t, "fb-1", "analysis-1")
	incoming.AudioStatus = feedback.StatusProcessing
	incoming.AudioAttempts = 1
	incoming.AudioUpdatedAt = baseTime().Add(30 * time.Second)

	merged, changed := feedback.MergeRecords(current, incoming)
	if !changed {
		t.Fatal("expected audio cohort change")
	}
	if merged.SSMLStatus != feedback.StatusCompleted {
		t.Fatalf("stale ssml cohort overwrote newer one: %q", merged.SSMLStatus)
	}
	if merged.AudioStatus != feedback.StatusProcessing {
		t.Fatalf("audio status = %q, want processing", merged.AudioStatus)
	}
}

func TestMergeEventTimestampOnlyUpdateIsNotAChange(t *testing.T) {
	rec := testsupport.NewRecord(t, "fb-1", "analysis-1")

	ev := feedback.Event{
		ID:         "fb-1",
		AnalysisID: "analysis-1",
		Pipeline:   feedback.PipelineSSML,
		Status:     rec.SSMLStatus,
		Attempts:   rec.SSMLAttempts,
		UpdatedAt:  rec.SSMLUpdatedAt.Add(time.Second),
	}
	merged, changed := feedback.MergeEvent(rec, ev)
	if changed {
		t.Fatal("timestamp-only update must not report a change")
	}
	if !merged.SSMLUpdatedAt.Equal(ev.UpdatedAt) {
		t.Fatal("timestamp should still advance")
	}
}
