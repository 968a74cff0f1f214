package feedback

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// PipelineStatus represents the lifecycle of one generation pipeline.
type PipelineStatus string

const (
	StatusQueued     PipelineStatus = "queued"
	StatusProcessing PipelineStatus = "processing"
	StatusCompleted  PipelineStatus = "completed"
	StatusFailed     PipelineStatus = "failed"
	StatusRetrying   PipelineStatus = "retrying"
)

// Pipeline names one of the two generation pipelines attached to a record.
type Pipeline string

const (
	PipelineSSML  Pipeline = "ssml"
	PipelineAudio Pipeline = "audio"
)

// Audio supports the extra retrying state; SSML retries are represented by
// incrementing attempts while the status stays processing or failed.
var ssmlStatuses = map[PipelineStatus]struct{}{
	StatusQueued:     {},
	StatusProcessing: {},
	StatusCompleted:  {},
	StatusFailed:     {},
}

var audioStatuses = map[PipelineStatus]struct{}{
	StatusQueued:     {},
	StatusProcessing: {},
	StatusCompleted:  {},
	StatusFailed:     {},
	StatusRetrying:   {},
}

// SSMLStatuses returns the ordered list of states the SSML pipeline supports.
func SSMLStatuses() []PipelineStatus {
	return []PipelineStatus{StatusQueued, StatusProcessing, StatusCompleted, StatusFailed}
}

// AudioStatuses returns the ordered list of states the audio pipeline supports.
func AudioStatuses() []PipelineStatus {
	return []PipelineStatus{StatusQueued, StatusProcessing, StatusCompleted, StatusFailed, StatusRetrying}
}

// ParsePipeline converts a string into a known Pipeline.
func ParsePipeline(value string) (Pipeline, bool) {
	switch Pipeline(strings.ToLower(strings.TrimSpace(value))) {
	case PipelineSSML:
		return PipelineSSML, true
	case PipelineAudio:
		return PipelineAudio, true
	default:
		return "", false
	}
}

// ParseStatus converts a string into a known PipelineStatus for the pipeline.
func ParseStatus(pipeline Pipeline, value string) (PipelineStatus, bool) {
	normalized := PipelineStatus(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	if !ValidStatus(pipeline, normalized) {
		return "", false
	}
	return normalized, true
}

// ValidStatus reports whether status is legal for the given pipeline.
func ValidStatus(pipeline Pipeline, status PipelineStatus) bool {
	switch pipeline {
	case PipelineSSML:
		_, ok := ssmlStatuses[status]
		return ok
	case PipelineAudio:
		_, ok := audioStatuses[status]
		return ok
	default:
		return false
	}
}

// Record is the status of one feedback item across both generation pipelines.
// Message, Category, TimestampSeconds, and Confidence are descriptive payload
// set once on creation; the per-pipeline cohorts move under merge control.
type Record struct {
	ID         string
	AnalysisID string

	Message          string
	Category         string
	TimestampSeconds float64
	Confidence       float64

	SSMLStatus    PipelineStatus
	SSMLAttempts  int
	SSMLLastError string
	SSMLUpdatedAt time.Time

	AudioStatus    PipelineStatus
	AudioAttempts  int
	AudioLastError string
	AudioUpdatedAt time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks the fields every stored record must carry.
func (r Record) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("record id is required")
	}
	if strings.TrimSpace(r.AnalysisID) == "" {
		return errors.New("record analysis id is required")
	}
	if !ValidStatus(PipelineSSML, r.SSMLStatus) {
		return fmt.Errorf("invalid ssml status %q", r.SSMLStatus)
	}
	if !ValidStatus(PipelineAudio, r.AudioStatus) {
		return fmt.Errorf("invalid audio status %q", r.AudioStatus)
	}
	if r.SSMLAttempts < 0 || r.AudioAttempts < 0 {
		return errors.New("attempt counters must not be negative")
	}
	return nil
}

// PipelineState returns the status cohort for one pipeline.
func (r Record) PipelineState(pipeline Pipeline) (PipelineStatus, int, string, time.Time) {
	if pipeline == PipelineAudio {
		return r.AudioStatus, r.AudioAttempts, r.AudioLastError, r.AudioUpdatedAt
	}
	return r.SSMLStatus, r.SSMLAttempts, r.SSMLLastError, r.SSMLUpdatedAt
}

// Done reports whether both pipelines reached a terminal state.
func (r Record) Done() bool {
	ssmlDone := r.SSMLStatus == StatusCompleted || r.SSMLStatus == StatusFailed
	audioDone := r.AudioStatus == StatusCompleted || r.AudioStatus == StatusFailed
	return ssmlDone && audioDone
}
