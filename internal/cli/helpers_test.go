package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeTestConfig writes a config that keeps every file under a temp dir
// and logs only to a file.
func writeTestConfig(t *testing.T, baseURL string) string {
	t.Helper()

	dir := t.TempDir()
	cfg := map[string]any{
		"chat": map[string]any{
			"base_url":        baseURL,
			"auth_token":      "demo_token",
			"timeout_seconds": 5,
		},
		"session": map[string]any{
			"backend":        "file",
			"dir":            filepath.Join(dir, "sessions"),
			"max_age_hours":  24,
			"sweep_schedule": "@every 1h",
		},
		"logging": map[string]any{
			"level":     "debug",
			"file":      filepath.Join(dir, "ezoverthinking.log"),
			"console":   false,
			"redaction": true,
		},
		"data_dir": dir,
	}

	data, err := json.Marshal(cfg)
	require.NoError(t, err)

	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, data, 0600))
	return path
}

// runCmd executes a fresh command tree and returns everything it printed.
func runCmd(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}
