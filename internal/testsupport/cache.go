package testsupport

import (
	"testing"

	"cadence/internal/audiocache"
	"cadence/internal/config"
)

// MustOpenCache opens an audio path cache for tests and registers cleanup.
func MustOpenCache(t testing.TB, cfg *config.Config) *audiocache.Cache {
	t.Helper()

	cache, err := audiocache.Open(cfg)
	if err != nil {
		t.Fatalf("audiocache.Open: %v", err)
	}
	t.Cleanup(func() {
		cache.Close()
	})
	return cache
}
