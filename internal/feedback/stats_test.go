package feedback_test

import (
	"testing"

	"cadence/internal/feedback"
	"cadence/internal/testsupport"
)

func TestComputeStats(t *testing.T) {
	a := testsupport.NewRecord(t, "fb-a", "analysis-1")
	a.SSMLStatus = feedback.StatusCompleted
	a.SSMLAttempts = 2
	a.AudioStatus = feedback.StatusProcessing
	a.AudioAttempts = 1

	b := testsupport.NewRecord(t, "fb-b", "analysis-1")
	b.SSMLStatus = feedback.StatusFailed
	b.SSMLAttempts = 3
	b.AudioStatus = feedback.StatusRetrying
	b.AudioAttempts = 4

	c := testsupport.NewRecord(t, "fb-c", "analysis-1")

	stats := feedback.ComputeStats([]feedback.Record{a, b, c})

	if stats.Total != 3 {
		t.Fatalf("Total = %d, want 3", stats.Total)
	}
	if stats.SSMLCompleted != 1 || stats.SSMLFailed != 1 || stats.SSMLQueued != 1 {
		t.Fatalf("ssml counts off: %+v", stats)
	}
	if stats.AudioProcessing != 1 || stats.AudioRetrying != 1 || stats.AudioQueued != 1 {
		t.Fatalf("audio counts off: %+v", stats)
	}
	if stats.MaxSSMLAttempts != 3 {
		t.Fatalf("MaxSSMLAttempts = %d, want 3", stats.MaxSSMLAttempts)
	}
	if stats.MaxAudioAttempts != 4 {
		t.Fatalf("MaxAudioAttempts = %d, want 4", stats.MaxAudioAttempts)
	}
}

func TestComputeStatsEmpty(t *testing.T) {
	stats := feedback.ComputeStats(nil)
	if stats != (feedback.Stats{}) {
		t.Fatalf("empty input should yield zero stats, got %+v", stats)
	}
}
