// Package feedback holds the in-memory status table for feedback items and
// the merge rules that keep it consistent under out-of-order delivery.
//
// Each feedback item carries two generation pipelines, SSML markup synthesis
// and audio rendering. Their status, attempt counter, last error, and update
// timestamp form a cohort that always moves together; MergeEvent and
// MergeRecords accept a cohort only when its timestamp is not older than the
// one already held, which makes re-delivered and stale events harmless.
//
// Treat this package as the single source of truth for status semantics; when
// you add pipeline states or record fields, update the merge rules and stats
// aggregation together.
package feedback
