// Package audiocache persists rendered audio file paths in SQLite so a
// restarted client can resolve playback locations without refetching. The
// cache is keyed by feedback id; entries are written when the audio pipeline
// completes with a path payload and dropped on explicit clear.
package audiocache
