package feedback

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Event is one inbound cohort update for a single record, delivered over the
// realtime channel or synthesized by a local optimistic write. When Record is
// set the event is an insert carrying the full record.
type Event struct {
	ID         string
	AnalysisID string
	Pipeline   Pipeline
	Status     PipelineStatus
	Attempts   int
	LastError  string
	AudioPath  string
	UpdatedAt  time.Time
	Record     *Record
}

// Validate rejects events missing required fields. Invalid events are dropped
// by the store with a warning; they never corrupt the table.
func (e Event) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return errors.New("event id is required")
	}
	if strings.TrimSpace(e.AnalysisID) == "" {
		return errors.New("event analysis id is required")
	}
	if e.Record != nil {
		if err := e.Record.Validate(); err != nil {
			return fmt.Errorf("event record: %w", err)
		}
		if e.Record.ID != e.ID || e.Record.AnalysisID != e.AnalysisID {
			return errors.New("event record id mismatch")
		}
		return nil
	}
	if e.Pipeline != PipelineSSML && e.Pipeline != PipelineAudio {
		return fmt.Errorf("unknown pipeline %q", e.Pipeline)
	}
	if !ValidStatus(e.Pipeline, e.Status) {
		return fmt.Errorf("invalid %s status %q", e.Pipeline, e.Status)
	}
	if e.Attempts < 0 {
		return errors.New("event attempts must not be negative")
	}
	if e.UpdatedAt.IsZero() {
		return errors.New("event updated_at is required")
	}
	return nil
}
