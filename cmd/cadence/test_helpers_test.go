package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type cliTestEnv struct {
	baseDir    string
	configPath string
	logDir     string
	cacheDir   string
}

// setupCLITestEnv isolates HOME and writes a config file pointing at temp
// directories so commands never touch the real user environment.
func setupCLITestEnv(t *testing.T, baseURL string) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	env := &cliTestEnv{
		baseDir:    base,
		configPath: filepath.Join(base, "config.toml"),
		logDir:     filepath.Join(base, "logs"),
		cacheDir:   filepath.Join(base, "cache"),
	}
	if baseURL == "" {
		baseURL = "http://127.0.0.1:0"
	}
	contents := fmt.Sprintf(`[server]
base_url = %q
api_token = "test-token"

[paths]
log_dir = %q
cache_dir = %q
`, baseURL, env.logDir, env.cacheDir)
	if err := os.WriteFile(env.configPath, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", env.configPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("output %q does not contain %q", haystack, needle)
	}
}
