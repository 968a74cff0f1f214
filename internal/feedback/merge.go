package feedback

import "time"

// cohort is the unit of merge: status, attempts, last error, and the cohort
// timestamp always replace together so a record can never be half-updated.
type cohort struct {
	status    PipelineStatus
	attempts  int
	lastError string
	updatedAt time.Time
}

// mergeCohort applies incoming onto current under the monotonic rule: the
// incoming cohort wins iff its timestamp is not older than the held one. The
// >= comparison makes re-delivery of the same event a no-op rather than an
// error. Attempt counters never decrease.
func mergeCohort(current, incoming cohort) (cohort, bool) {
	if incoming.updatedAt.Before(current.updatedAt) {
		return current, false
	}

	merged := incoming
	if merged.attempts < current.attempts {
		merged.attempts = current.attempts
	}
	// A completed pipeline implies at least one underlying attempt.
	if merged.status == StatusCompleted && merged.attempts == 0 {
		merged.attempts = 1
	}
	// Errors only survive while the pipeline is in a non-clean state.
	if merged.status == StatusQueued || merged.status == StatusCompleted {
		merged.lastError = ""
	}
	if merged.updatedAt.Before(current.updatedAt) {
		merged.updatedAt = current.updatedAt
	}

	changed := merged.status != current.status ||
		merged.attempts != current.attempts ||
		merged.lastError != current.lastError
	return merged, changed
}

// MergeEvent applies one cohort update to a record and returns the merged
// record plus whether observable state changed. Timestamp bookkeeping alone
// does not count as a change, so duplicate deliveries cannot invalidate
// snapshots.
func MergeEvent(current Record, ev Event) (Record, bool) {
	merged := current

	incoming := cohort{
		status:    ev.Status,
		attempts:  ev.Attempts,
		lastError: ev.LastError,
		updatedAt: ev.UpdatedAt,
	}

	var changed bool
	switch ev.Pipeline {
	case PipelineAudio:
		var next cohort
		next, changed = mergeCohort(audioCohort(current), incoming)
		merged.AudioStatus = next.status
		merged.AudioAttempts = next.attempts
		merged.AudioLastError = next.lastError
		merged.AudioUpdatedAt = next.updatedAt
	default:
		var next cohort
		next, changed = mergeCohort(ssmlCohort(current), incoming)
		merged.SSMLStatus = next.status
		merged.SSMLAttempts = next.attempts
		merged.SSMLLastError = next.lastError
		merged.SSMLUpdatedAt = next.updatedAt
	}

	if ev.UpdatedAt.After(merged.UpdatedAt) {
		merged.UpdatedAt = ev.UpdatedAt
	}
	return merged, changed
}

// MergeRecords reconciles a fetched record against the held one, cohort by
// cohort. Descriptive payload is immutable after creation, so the held copy
// keeps its message, category, timestamp, and confidence.
func MergeRecords(current, incoming Record) (Record, bool) {
	merged := current

	ssml, ssmlChanged := mergeCohort(ssmlCohort(current), ssmlCohort(incoming))
	merged.SSMLStatus = ssml.status
	merged.SSMLAttempts = ssml.attempts
	merged.SSMLLastError = ssml.lastError
	merged.SSMLUpdatedAt = ssml.updatedAt

	audio, audioChanged := mergeCohort(audioCohort(current), audioCohort(incoming))
	merged.AudioStatus = audio.status
	merged.AudioAttempts = audio.attempts
	merged.AudioLastError = audio.lastError
	merged.AudioUpdatedAt = audio.updatedAt

	if incoming.UpdatedAt.After(merged.UpdatedAt) {
		merged.UpdatedAt = incoming.UpdatedAt
	}
	return merged, ssmlChanged || audioChanged
}

func ssmlCohort(r Record) cohort {
	return cohort{status: r.SSMLStatus, attempts: r.SSMLAttempts, lastError: r.SSMLLastError, updatedAt: r.SSMLUpdatedAt}
}

func audioCohort(r Record) cohort {
	return cohort{status: r.AudioStatus, attempts: r.AudioAttempts, lastError: r.AudioLastError, updatedAt: r.AudioUpdatedAt}
}
