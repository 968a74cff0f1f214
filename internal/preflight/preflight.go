// Package preflight runs environment checks before the watch and status
// commands start talking to the feedback server.
package preflight

import (
	"context"

	"cadence/internal/config"
	"cadence/internal/remote"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config, client *remote.Client) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Cache directory", cfg.Paths.CacheDir))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	results = append(results, CheckFreeDiskSpace("Cache disk space", cfg.Paths.CacheDir))

	if client != nil {
		results = append(results, CheckServer(ctx, client))
	}

	return results
}

// AllPassed reports whether every result in the slice passed.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}
