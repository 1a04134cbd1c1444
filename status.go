package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/dashsync/internal/activity"
	"github.com/tonimelisma/dashsync/internal/config"
	"github.com/tonimelisma/dashsync/internal/localstore"
	"github.com/tonimelisma/dashsync/internal/remote"
)

// presenceTimeout bounds the optional registry lookup made by status.
const presenceTimeout = 5 * time.Second

// statusOutput is the JSON shape of `dashsync status --json`.
type statusOutput struct {
	DataDir        string     `json:"dataDir"`
	SessionID      string     `json:"sessionId,omitempty"`
	Editing        bool       `json:"editing"`
	ActiveTab      string     `json:"activeTab,omitempty"`
	LastBackupTime *time.Time `json:"lastBackupTime,omitempty"`
	Document       docSummary `json:"document"`
	ActiveSessions *int       `json:"activeSessions,omitempty"`
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show local sync state",
		Long: `Show the local dashboard summary, the last successful backup, and
whether an edit is in progress. When a session registry is configured the
number of active sessions is included.`,
		Annotations: map[string]string{localOnlyAnnotation: "true"},
		Args:        cobra.NoArgs,
		RunE:        runStatus,
	}
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)

	out, err := collectStatus(ctx, cc.Cfg, cc.Logger)
	if err != nil {
		return err
	}

	if cc.Flags.JSON {
		return printJSON(cc.Out, out)
	}

	printStatus(cc.Out, out, time.Now())

	return nil
}

func collectStatus(ctx context.Context, cfg *config.Resolved, logger *slog.Logger) (*statusOutput, error) {
	store, err := localstore.Open(ctx, cfg.DataDir, logger)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	doc, err := store.Load(ctx)
	if err != nil {
		logger.Warn("local dashboard unreadable", slog.String("error", err.Error()))
	}

	out := &statusOutput{
		DataDir:  cfg.DataDir,
		Editing:  activity.NewGuard(store, logger).IsEditing(ctx),
		Document: summarize(doc),
	}

	if out.SessionID, _, err = store.Get(ctx, localstore.KeySessionID); err != nil {
		return nil, err
	}

	if out.ActiveTab, _, err = store.Get(ctx, localstore.KeyActiveTab); err != nil {
		return nil, err
	}

	last, err := store.GetTime(ctx, localstore.KeyLastBackupTime)
	if err != nil {
		return nil, err
	}

	if !last.IsZero() {
		out.LastBackupTime = &last
	}

	if cfg.SessionURL != "" {
		out.ActiveSessions = activeSessions(ctx, cfg, logger)
	}

	return out, nil
}

// activeSessions asks the registry for its session count. Failures are
// logged and reported as unknown.
func activeSessions(ctx context.Context, cfg *config.Resolved, logger *slog.Logger) *int {
	ctx, cancel := context.WithTimeout(ctx, presenceTimeout)
	defer cancel()

	rc := remote.NewClient(remote.Config{
		SessionURL: cfg.SessionURL,
		HTTPClient: remote.NewHTTPClient(cfg.APIToken, cfg.RequestTimeout),
		UserAgent:  cfg.UserAgent,
		Logger:     logger,
	})

	list, err := rc.Sessions(ctx)
	if err != nil {
		logger.Warn("session registry unavailable", slog.String("error", err.Error()))
		return nil
	}

	n := len(list.ActiveSessions)

	return &n
}

func printStatus(w io.Writer, s *statusOutput, now time.Time) {
	fmt.Fprintf(w, "Data dir:    %s\n", s.DataDir)

	if s.SessionID != "" {
		fmt.Fprintf(w, "Session:     %s\n", s.SessionID)
	}

	last := time.Time{}
	if s.LastBackupTime != nil {
		last = *s.LastBackupTime
	}

	fmt.Fprintf(w, "Last backup: %s\n", formatAge(last, now))
	fmt.Fprintf(w, "Editing:     %t\n", s.Editing)

	if s.ActiveTab != "" {
		fmt.Fprintf(w, "Active tab:  %s\n", s.ActiveTab)
	}

	if s.ActiveSessions != nil {
		fmt.Fprintf(w, "Sessions:    %d active\n", *s.ActiveSessions)
	}

	fmt.Fprintln(w)
	printSummary(w, s.Document)
}
