// Package wire defines the JSON payloads shared between the remote client
// and the simulator server, plus conversions to and from domain types. The
// domain packages stay free of serialization concerns.
package wire

import (
	"time"

	"cadence/internal/feedback"
)

// SSE event names used on the feedback event stream.
const (
	EventReady    = "ready"
	EventFeedback = "feedback"
)

// Record is the wire form of a feedback status record.
type Record struct {
	ID               string  `json:"id"`
	AnalysisID       string  `json:"analysis_id"`
	Message          string  `json:"message"`
	Category         string  `json:"category"`
	TimestampSeconds float64 `json:"timestamp_seconds"`
	Confidence       float64 `json:"confidence"`

	SSMLStatus    string    `json:"ssml_status"`
	SSMLAttempts  int       `json:"ssml_attempts"`
	SSMLLastError string    `json:"ssml_last_error,omitempty"`
	SSMLUpdatedAt time.Time `json:"ssml_updated_at"`

	AudioStatus    string    `json:"audio_status"`
	AudioAttempts  int       `json:"audio_attempts"`
	AudioLastError string    `json:"audio_last_error,omitempty"`
	AudioUpdatedAt time.Time `json:"audio_updated_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Event is the wire form of one incremental cohort update. Record is set on
// insert events so the client can materialize unknown items without a
// refetch.
type Event struct {
	ID         string    `json:"id"`
	AnalysisID string    `json:"analysis_id"`
	Pipeline   string    `json:"pipeline"`
	Status     string    `json:"status"`
	Attempts   int       `json:"attempts"`
	LastError  string    `json:"last_error,omitempty"`
	AudioPath  string    `json:"audio_path,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
	Record     *Record   `json:"record,omitempty"`
}

// ToDomain converts a wire record to its domain form.
func (r Record) ToDomain() feedback.Record {
	return feedback.Record{
		ID:               r.ID,
		AnalysisID:       r.AnalysisID,
		Message:          r.Message,
		Category:         r.Category,
		TimestampSeconds: r.TimestampSeconds,
		Confidence:       r.Confidence,
		SSMLStatus:       feedback.PipelineStatus(r.SSMLStatus),
		SSMLAttempts:     r.SSMLAttempts,
		SSMLLastError:    r.SSMLLastError,
		SSMLUpdatedAt:    r.SSMLUpdatedAt,
		AudioStatus:      feedback.PipelineStatus(r.AudioStatus),
		AudioAttempts:    r.AudioAttempts,
		AudioLastError:   r.AudioLastError,
		AudioUpdatedAt:   r.AudioUpdatedAt,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

// FromRecord converts a domain record to its wire form.
func FromRecord(rec feedback.Record) Record {
	return Record{
		ID:               rec.ID,
		AnalysisID:       rec.AnalysisID,
		Message:          rec.Message,
		Category:         rec.Category,
		TimestampSeconds: rec.TimestampSeconds,
		Confidence:       rec.Confidence,
		SSMLStatus:       string(rec.SSMLStatus),
		SSMLAttempts:     rec.SSMLAttempts,
		SSMLLastError:    rec.SSMLLastError,
		SSMLUpdatedAt:    rec.SSMLUpdatedAt,
		AudioStatus:      string(rec.AudioStatus),
		AudioAttempts:    rec.AudioAttempts,
		AudioLastError:   rec.AudioLastError,
		AudioUpdatedAt:   rec.AudioUpdatedAt,
		CreatedAt:        rec.CreatedAt,
		UpdatedAt:        rec.UpdatedAt,
	}
}

// ToDomain converts a wire event to its domain form.
func (e Event) ToDomain() feedback.Event {
	out := feedback.Event{
		ID:         e.ID,
		AnalysisID: e.AnalysisID,
		Pipeline:   feedback.Pipeline(e.Pipeline),
		Status:     feedback.PipelineStatus(e.Status),
		Attempts:   e.Attempts,
		LastError:  e.LastError,
		AudioPath:  e.AudioPath,
		UpdatedAt:  e.UpdatedAt,
	}
	if e.Record != nil {
		rec := e.Record.ToDomain()
		out.Record = &rec
	}
	return out
}

// FromEvent converts a domain event to its wire form.
func FromEvent(ev feedback.Event) Event {
	out := Event{
		ID:         ev.ID,
		AnalysisID: ev.AnalysisID,
		Pipeline:   string(ev.Pipeline),
		Status:     string(ev.Status),
		Attempts:   ev.Attempts,
		LastError:  ev.LastError,
		AudioPath:  ev.AudioPath,
		UpdatedAt:  ev.UpdatedAt,
	}
	if ev.Record != nil {
		rec := FromRecord(*ev.Record)
		out.Record = &rec
	}
	return out
}
