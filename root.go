package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/tonimelisma/dashsync/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// localOnlyAnnotation marks commands that work without a user or remote
// endpoints configured.
const localOnlyAnnotation = "dashsync/local-only"

// CLIFlags holds the global persistent flags.
type CLIFlags struct {
	ConfigPath string
	DataDir    string
	UserID     string
	JSON       bool
	Verbose    bool
	Quiet      bool
}

// CLIContext is built once per invocation by the root pre-run hook and
// carried to subcommands on the command context.
type CLIContext struct {
	Flags  CLIFlags
	Cfg    *config.Resolved
	Env    config.EnvOverrides
	CLI    config.CLIOverrides
	Level  *slog.LevelVar
	Logger *slog.Logger
	Out    io.Writer
}

type cliContextKey struct{}

// mustCLIContext returns the CLIContext installed by the root pre-run hook.
func mustCLIContext(ctx context.Context) *CLIContext {
	cc, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok {
		panic("dashsync: CLI context missing; command ran without the root pre-run hook")
	}

	return cc
}

// Statusf prints a status message to stderr unless --quiet is set.
func (cc *CLIContext) Statusf(format string, args ...any) {
	statusf(cc.Flags.Quiet, format, args...)
}

// newRootCmd builds the root command with all subcommands registered.
func newRootCmd() *cobra.Command {
	flags := &CLIFlags{}

	cmd := &cobra.Command{
		Use:     "dashsync",
		Short:   "Realtime sync for a shared project dashboard",
		Long:    "Keeps a local copy of a project dashboard in step with its remote backup.",
		Version: version,
		// Errors are printed by main.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := newCLIContext(cmd, *flags)
			if err != nil {
				return err
			}

			cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey{}, cc))

			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&flags.DataDir, "data-dir", "", "directory holding the local database")
	cmd.PersistentFlags().StringVar(&flags.UserID, "user", "", "user whose dashboard is synced")
	cmd.PersistentFlags().BoolVar(&flags.JSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flags.Verbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flags.Quiet, "quiet", "q", false, "suppress informational output")

	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newPushCmd())
	cmd.AddCommand(newPullCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newLogCmd())
	cmd.AddCommand(newEditCmd())

	return cmd
}

// newCLIContext resolves configuration for cmd and builds its logger.
func newCLIContext(cmd *cobra.Command, flags CLIFlags) (*CLIContext, error) {
	cli := config.CLIOverrides{ConfigPath: flags.ConfigPath}

	// Only explicitly passed flags override the lower layers.
	if cmd.Flags().Changed("data-dir") {
		cli.DataDir = &flags.DataDir
	}

	if cmd.Flags().Changed("user") {
		cli.UserID = &flags.UserID
	}

	env := config.ReadEnvOverrides()

	resolve := config.Resolve
	if isLocalOnly(cmd) {
		resolve = config.ResolveLocal
	}

	cfg, err := resolve(env, cli)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	level := new(slog.LevelVar)
	level.Set(logLevel(cfg.LogLevel, flags))

	return &CLIContext{
		Flags:  flags,
		Cfg:    cfg,
		Env:    env,
		CLI:    cli,
		Level:  level,
		Logger: buildLogger(os.Stderr, cfg.LogFormat, level),
		Out:    cmd.OutOrStdout(),
	}, nil
}

func isLocalOnly(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[localOnlyAnnotation] == "true" {
			return true
		}
	}

	return false
}

// logLevel maps the configured level name to a slog.Level. --verbose and
// --quiet win over the config file.
func logLevel(name string, flags CLIFlags) slog.Level {
	if flags.Verbose {
		return slog.LevelDebug
	}

	if flags.Quiet {
		return slog.LevelError
	}

	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// buildLogger creates the process logger. Format "auto" writes text to a
// terminal and JSON anywhere else.
func buildLogger(w io.Writer, format string, level slog.Leveler) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	if wantJSON(w, format) {
		return slog.New(slog.NewJSONHandler(w, opts))
	}

	return slog.New(slog.NewTextHandler(w, opts))
}

func wantJSON(w io.Writer, format string) bool {
	switch format {
	case "json":
		return true
	case "text":
		return false
	}

	f, ok := w.(*os.File)
	if !ok {
		return true
	}

	return !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd())
}
