package preflight_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cadence/internal/logging"
	"cadence/internal/preflight"
	"cadence/internal/remote"
	"cadence/internal/testsupport"
)

func TestCheckDirectoryAccess(t *testing.T) {
	dir := t.TempDir()
	if res := preflight.CheckDirectoryAccess("Cache directory", dir); !res.Passed {
		t.Fatalf("writable directory failed: %s", res.Detail)
	}
	if res := preflight.CheckDirectoryAccess("Cache directory", filepath.Join(dir, "missing")); res.Passed {
		t.Fatal("missing directory passed")
	}
	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if res := preflight.CheckDirectoryAccess("Cache directory", file); res.Passed {
		t.Fatal("regular file passed as directory")
	}
}

func TestCheckServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := remote.NewClient(server.URL, "", time.Second, logging.NewNop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if res := preflight.CheckServer(context.Background(), client); !res.Passed {
		t.Fatalf("reachable server failed: %s", res.Detail)
	}

	server.Close()
	if res := preflight.CheckServer(context.Background(), client); res.Passed {
		t.Fatal("unreachable server passed")
	}
}

func TestRunAllAndAllPassed(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	results := preflight.RunAll(context.Background(), cfg, nil)
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if !preflight.AllPassed(results) {
		t.Fatalf("directory checks failed: %+v", results)
	}

	if preflight.RunAll(context.Background(), nil, nil) != nil {
		t.Fatal("nil config must yield no results")
	}
	if !preflight.AllPassed(nil) {
		t.Fatal("empty result set counts as passed")
	}
}
