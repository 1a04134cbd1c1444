//go:build e2e

// Package e2e drives the dashsync binary against a live backend. Required
// environment (or .env at the module root):
//
//	DASHSYNC_TEST_BASE_URL       backend root serving /api/backup and /api/sessions
//	DASHSYNC_TEST_USER           user whose dashboard the run overwrites
//	DASHSYNC_ALLOWED_TEST_USERS  allowlist guarding DASHSYNC_TEST_USER
//
// DASHSYNC_API_TOKEN is passed through when set.
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/dashsync/testutil"
)

var (
	binaryPath string
	user       string
	configPath string
	tempRoot   string
)

func TestMain(m *testing.M) {
	moduleRoot := testutil.FindModuleRoot("..")
	testutil.LoadDotEnv(filepath.Join(moduleRoot, ".env"))

	user = testutil.ValidateAllowlist("DASHSYNC_TEST_USER")

	baseURL := strings.TrimRight(os.Getenv("DASHSYNC_TEST_BASE_URL"), "/")
	if baseURL == "" {
		fmt.Fprintln(os.Stderr, "FATAL: DASHSYNC_TEST_BASE_URL not set")
		os.Exit(1)
	}

	var err error

	tempRoot, err = os.MkdirTemp("", "dashsync-e2e-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "creating temp dir: %v\n", err)
		os.Exit(1)
	}

	binaryPath = filepath.Join(tempRoot, "dashsync")

	build := exec.Command("go", "build", "-o", binaryPath, ".")
	build.Dir = moduleRoot
	build.Stdout = os.Stdout
	build.Stderr = os.Stderr

	if err := build.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "building binary: %v\n", err)
		os.RemoveAll(tempRoot)
		os.Exit(1)
	}

	isolate(tempRoot)

	configPath = filepath.Join(tempRoot, "config.toml")
	cfg := fmt.Sprintf("user_id = %q\nsource = \"e2e\"\n[remote]\nbackup_url = %q\nsession_url = %q\n",
		user, baseURL+"/api/backup", baseURL+"/api/sessions")

	if err := os.WriteFile(configPath, []byte(cfg), 0o600); err != nil {
		fmt.Fprintf(os.Stderr, "writing config: %v\n", err)
		os.RemoveAll(tempRoot)
		os.Exit(1)
	}

	code := m.Run()

	os.RemoveAll(tempRoot)
	os.Exit(code)
}

// isolate points HOME and XDG directories into root so the binary never
// touches a developer's real data directory.
func isolate(root string) {
	os.Unsetenv("DASHSYNC_CONFIG")
	os.Unsetenv("DASHSYNC_DATA_DIR")
	os.Unsetenv("DASHSYNC_USER_ID")

	for env, sub := range map[string]string{
		"HOME":            "home",
		"XDG_CONFIG_HOME": "config",
		"XDG_DATA_HOME":   "data",
	} {
		dir := filepath.Join(root, sub)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: creating %s: %v\n", dir, err)
			os.Exit(1)
		}

		os.Setenv(env, dir)
	}
}

// runCLI runs the binary against dataDir and fails the test on a non-zero
// exit.
func runCLI(t *testing.T, dataDir string, args ...string) (string, string) {
	t.Helper()

	stdout, stderr, err := runCLIErr(t, dataDir, args...)
	if err != nil {
		t.Fatalf("CLI command %v failed: %v\nstdout: %s\nstderr: %s", args, err, stdout, stderr)
	}

	return stdout, stderr
}

func runCLIErr(t *testing.T, dataDir string, args ...string) (string, string, error) {
	t.Helper()

	full := append([]string{"--config", configPath, "--data-dir", dataDir}, args...)
	cmd := exec.Command(binaryPath, full...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	return stdout.String(), stderr.String(), err
}

type summary struct {
	Present bool `json:"present"`
	Logs    int  `json:"logs"`
}

type logEntry struct {
	Message string `json:"message"`
}

func listLogs(t *testing.T, dataDir string) []logEntry {
	t.Helper()

	stdout, _ := runCLI(t, dataDir, "--json", "log", "list", "--limit", "0")

	var entries []logEntry
	require.NoError(t, json.Unmarshal([]byte(stdout), &entries))

	return entries
}

func messages(entries []logEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Message
	}

	return out
}

func TestE2E_TwoClientsConverge(t *testing.T) {
	a := t.TempDir()
	b := t.TempDir()
	stamp := time.Now().UnixNano()
	fromA := fmt.Sprintf("e2e from A %d", stamp)
	fromB := fmt.Sprintf("e2e from B %d", stamp)

	t.Run("A logs and pushes", func(t *testing.T) {
		runCLI(t, a, "log", "add", fromA)
		runCLI(t, a, "push")
	})

	t.Run("B adopts the remote copy", func(t *testing.T) {
		stdout, _ := runCLI(t, b, "--json", "pull")

		var s summary
		require.NoError(t, json.Unmarshal([]byte(stdout), &s))
		assert.True(t, s.Present)
		assert.Contains(t, messages(listLogs(t, b)), fromA)
	})

	t.Run("B logs, A merges", func(t *testing.T) {
		runCLI(t, b, "log", "add", fromB)
		runCLI(t, a, "pull")

		got := messages(listLogs(t, a))
		assert.Contains(t, got, fromA)
		assert.Contains(t, got, fromB)
	})
}

func TestE2E_EditGuardBlocksPull(t *testing.T) {
	a := t.TempDir()
	b := t.TempDir()
	marker := fmt.Sprintf("e2e guard %d", time.Now().UnixNano())

	runCLI(t, b, "pull")
	before := listLogs(t, b)

	runCLI(t, b, "edit", "start")
	t.Cleanup(func() { _, _, _ = runCLIErr(t, b, "edit", "stop") })

	runCLI(t, a, "log", "add", marker)
	runCLI(t, b, "pull")

	assert.Equal(t, before, listLogs(t, b), "pull must not touch local data while editing")

	runCLI(t, b, "edit", "stop")
	runCLI(t, b, "pull")
	assert.Contains(t, messages(listLogs(t, b)), marker)
}

func TestE2E_StatusReportsBackup(t *testing.T) {
	dir := t.TempDir()

	runCLI(t, dir, "log", "add", "e2e status check")

	stdout, _ := runCLI(t, dir, "--json", "status")

	var st struct {
		SessionID      string     `json:"sessionId"`
		LastBackupTime *time.Time `json:"lastBackupTime"`
		ActiveSessions *int       `json:"activeSessions"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &st))
	assert.NotEmpty(t, st.SessionID)
	assert.NotNil(t, st.LastBackupTime)
	assert.NotNil(t, st.ActiveSessions)
}

func TestE2E_IsolatedFromRealHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(home, tempRoot), "HOME should point into the isolation root")
}
