package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/dashsync/internal/config"
)

func reloadTestContext(t *testing.T, path string) (*CLIContext, *config.Holder) {
	t.Helper()

	env := config.EnvOverrides{ConfigPath: path, DataDir: t.TempDir()}

	cfg, err := config.Resolve(env, config.CLIOverrides{})
	require.NoError(t, err)

	level := new(slog.LevelVar)
	level.Set(logLevel(cfg.LogLevel, CLIFlags{}))

	cc := &CLIContext{Cfg: cfg, Env: env, Level: level, Logger: quietLogger()}

	return cc, config.NewHolder(cfg, path)
}

const reloadBase = `user_id = "ada"
[remote]
backup_url = "http://localhost/api/backup"
session_url = "http://localhost/api/sessions"
`

func TestReloadConfig_AppliesLogLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(reloadBase+"[logging]\nlog_level = \"warn\"\n"), 0o600))

	cc, holder := reloadTestContext(t, path)
	assert.Equal(t, slog.LevelWarn, cc.Level.Level())

	require.NoError(t, os.WriteFile(path, []byte(reloadBase+"[logging]\nlog_level = \"debug\"\n"), 0o600))
	reloadConfig(cc, holder)

	assert.Equal(t, slog.LevelDebug, cc.Level.Level())
	assert.Equal(t, "debug", holder.Config().LogLevel)
}

func TestReloadConfig_KeepsPreviousOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(reloadBase), 0o600))

	cc, holder := reloadTestContext(t, path)
	prev := holder.Config()

	require.NoError(t, os.WriteFile(path, []byte(reloadBase+"bogus_key = 1\n"), 0o600))
	reloadConfig(cc, holder)

	assert.Same(t, prev, holder.Config())
	assert.Equal(t, slog.LevelInfo, cc.Level.Level())
}

func TestNeedsRestart(t *testing.T) {
	base := config.Resolved{UserID: "ada", LogLevel: "info", LogFormat: "text", Debounce: time.Second}

	logOnly := base
	logOnly.LogLevel = "debug"
	logOnly.LogFormat = "json"
	assert.False(t, needsRestart(&base, &logOnly))

	tuned := base
	tuned.Debounce = 3 * time.Second
	assert.True(t, needsRestart(&base, &tuned))
}

func TestWatchConfigFile_SignalsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(reloadBase), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 1)
	done := make(chan error, 1)

	go func() { done <- watchConfigFile(ctx, path, changed, quietLogger()) }()

	// Keep writing until the watcher is registered and reports a change.
	require.Eventually(t, func() bool {
		if err := os.WriteFile(path, []byte(reloadBase), 0o600); err != nil {
			return false
		}

		select {
		case <-changed:
			return true
		case <-time.After(pollInterval):
			return false
		}
	}, waitTimeout, pollInterval)

	cancel()
	require.NoError(t, <-done)
}

func TestWatchConfigFile_IgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 1)
	done := make(chan error, 1)

	go func() { done <- watchConfigFile(ctx, path, changed, quietLogger()) }()

	for range 5 {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "other.toml"), []byte("x"), 0o600))
		time.Sleep(pollInterval)
	}

	select {
	case <-changed:
		t.Fatal("write to a sibling file reported as config change")
	default:
	}

	cancel()
	require.NoError(t, <-done)
}

func TestWatchConfigFile_MissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent", "config.toml")

	err := watchConfigFile(context.Background(), path, make(chan struct{}, 1), quietLogger())
	assert.NoError(t, err)
}
