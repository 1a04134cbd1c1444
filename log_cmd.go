package main

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/dashsync/internal/localstore"
)

const defaultLogListLimit = 20

func newLogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Read or append the dashboard activity log",
	}

	cmd.AddCommand(newLogAddCmd())
	cmd.AddCommand(newLogListCmd())

	return cmd
}

func newLogAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <message...>",
		Short: "Append an entry to the activity log",
		Long: `Append a timestamped entry to the activity log and back up the result.
The entry is saved locally first, so it survives a failed upload.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runLogAdd,
	}
}

func runLogAdd(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)

	message := strings.TrimSpace(strings.Join(args, " "))
	if message == "" {
		return errors.New("log message is empty")
	}

	client, err := openClient(ctx, cc)
	if err != nil {
		return err
	}

	// Dispose flushes the pending debounced backup.
	defer disposeClient(ctx, client, &err)

	if _, initErr := client.Init(ctx); initErr != nil {
		cc.Logger.Warn("pull before log add failed", "error", initErr)
	}

	doc, err := client.AddLog(ctx, message)
	if err != nil {
		return err
	}

	cc.Statusf("Logged %q (%d entries).\n", message, len(doc.Logs))

	return nil
}

func newLogListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "list",
		Short:       "List recent activity log entries",
		Annotations: map[string]string{localOnlyAnnotation: "true"},
		Args:        cobra.NoArgs,
		RunE:        runLogList,
	}

	cmd.Flags().Int("limit", defaultLogListLimit, "maximum entries to show (0 for all)")

	return cmd
}

func runLogList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)

	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}

	store, err := localstore.Open(ctx, cc.Cfg.DataDir, cc.Logger)
	if err != nil {
		return err
	}
	defer store.Close()

	doc, err := store.Load(ctx)
	if err != nil {
		return err
	}

	if doc == nil || len(doc.Logs) == 0 {
		if cc.Flags.JSON {
			return printJSON(cc.Out, []struct{}{})
		}

		cc.Statusf("No log entries.\n")

		return nil
	}

	entries := doc.Logs
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}

	if cc.Flags.JSON {
		return printJSON(cc.Out, entries)
	}

	rows := make([][]string, 0, len(entries))
	for i, e := range entries {
		rows = append(rows, []string{
			strconv.Itoa(len(doc.Logs) - len(entries) + i + 1),
			e.Timestamp.Local().Format(time.DateTime),
			e.Message,
		})
	}

	printTable(cc.Out, []string{"#", "TIME", "MESSAGE"}, rows)

	return nil
}
