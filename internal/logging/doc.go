// Package logging builds slog loggers for the CLI and library components.
//
// It supports console and JSON output, multiple output paths, and component
// loggers that stamp every record with a standardized component attribute.
// Merge discards and malformed channel events are logged here at debug/warn
// levels; they are never surfaced to callers as errors.
package logging
