package testsupport

import (
	"testing"
	"time"

	"cadence/internal/feedback"
)

// NewRecord builds a queued feedback record for tests. The caller may
// mutate the returned value before handing it to a table or store.
func NewRecord(t testing.TB, id, analysisID string) feedback.Record {
	t.Helper()

	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	return feedback.Record{
		ID:               id,
		AnalysisID:       analysisID,
		Message:          "Pace the opening line more slowly",
		Category:         "pacing",
		TimestampSeconds: 1.5,
		Confidence:       0.9,
		SSMLStatus:       feedback.StatusQueued,
		SSMLUpdatedAt:    now,
		AudioStatus:      feedback.StatusQueued,
		AudioUpdatedAt:   now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}
