// Package config loads, normalizes, and validates cadence configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// CADENCE_API_TOKEN. The Config type centralizes every knob the CLI and the
// sync library need: server endpoints, cache and log directories, reconnect
// backoff tuning, and log output settings.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
