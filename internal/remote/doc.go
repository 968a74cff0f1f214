// Package remote implements the production channel and fetch capabilities
// against the generation backend: a JSON fetch of feedback status used for
// initial load and post-reconnect reconciliation, and a server-sent-events
// stream delivering incremental cohort updates. The Client satisfies both
// realtime.Fetcher and realtime.Opener.
package remote
