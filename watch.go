package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tonimelisma/dashsync/internal/config"
)

// Backoff applied after consecutive config watcher errors.
const (
	watchErrInitBackoff = 1 * time.Second
	watchErrMaxBackoff  = 30 * time.Second
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Keep the dashboard in sync until interrupted",
		Long: `Run the sync client in the foreground: heartbeat presence, pull on the
adaptive interval, deliver edits and react to change notifications.

The config file is reloaded on SIGHUP or when it changes on disk. Log level
changes apply immediately; anything else takes effect after a restart.`,
		Args: cobra.NoArgs,
		RunE: runWatch,
	}
}

func runWatch(cmd *cobra.Command, _ []string) (err error) {
	cc := mustCLIContext(cmd.Context())
	ctx, hup := watchSignals(cmd.Context(), cc.Logger)

	client, err := openClient(ctx, cc)
	if err != nil {
		return err
	}

	defer disposeClient(ctx, client, &err)

	doc, err := client.Start(ctx)
	if err != nil {
		return err
	}

	cc.Statusf("Watching dashboard for %s (session %s, %d phases). Press Ctrl-C to stop.\n",
		client.UserID(), client.SessionID(), summarize(doc).Phases)

	holder := config.NewHolder(cc.Cfg, config.ConfigPath(cc.Env, cc.CLI))
	changed := make(chan struct{}, 1)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return watchConfigFile(gctx, holder.Path(), changed, cc.Logger) })
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-hup:
				cc.Logger.Info("SIGHUP received, reloading config")
				reloadConfig(cc, holder)
			case <-changed:
				cc.Logger.Info("config file changed, reloading")
				reloadConfig(cc, holder)
			}
		}
	})

	if err := g.Wait(); err != nil {
		return err
	}

	cc.Statusf("Stopped.\n")

	return nil
}

// reloadConfig re-resolves configuration and swaps it into holder. A config
// that fails to resolve is logged and the previous one stays in effect.
func reloadConfig(cc *CLIContext, holder *config.Holder) {
	cfg, err := config.Resolve(cc.Env, cc.CLI)
	if err != nil {
		cc.Logger.Warn("config reload failed, keeping previous config",
			slog.String("error", err.Error()))

		return
	}

	prev := holder.Config()
	holder.Update(cfg)
	cc.Level.Set(logLevel(cfg.LogLevel, cc.Flags))

	if needsRestart(prev, cfg) {
		cc.Logger.Warn("config changed beyond logging settings; restart watch to apply",
			slog.String("path", holder.Path()))
	}
}

// needsRestart reports whether anything other than the logging settings
// differs between a and b.
func needsRestart(a, b *config.Resolved) bool {
	x, y := *a, *b
	x.LogLevel, y.LogLevel = "", ""
	x.LogFormat, y.LogFormat = "", ""

	return x != y
}

// watchConfigFile signals changed whenever path is written, created or
// renamed over. The parent directory is watched so editors that replace
// the file atomically are seen. A missing directory disables watching.
func watchConfigFile(ctx context.Context, path string, changed chan<- struct{}, logger *slog.Logger) error {
	if path == "" {
		return nil
	}

	path = filepath.Clean(path)
	dir := filepath.Dir(path)

	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		logger.Debug("config directory missing, not watching", slog.String("dir", dir))
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return err
	}

	logger.Debug("watching config file", slog.String("path", path))

	backoff := watchErrInitBackoff

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			backoff = watchErrInitBackoff

			if filepath.Clean(ev.Name) != path {
				continue
			}

			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}

			select {
			case changed <- struct{}{}:
			default:
			}

		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			logger.Warn("config watcher error",
				slog.String("error", watchErr.Error()),
				slog.Duration("backoff", backoff))

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}

			backoff = min(backoff*2, watchErrMaxBackoff)
		}
	}
}
