package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/dashsync/internal/document"
	"github.com/tonimelisma/dashsync/pkg/syncclient"
)

func newPushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Back up the local dashboard now",
		Long: `Reconcile with the remote copy, then send the local dashboard as a
manual backup. When the remote cannot be reached the local copy is kept
and a later push or watch delivers it.`,
		Args: cobra.NoArgs,
		RunE: runPush,
	}
}

func runPush(cmd *cobra.Command, _ []string) (err error) {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)

	client, err := openClient(ctx, cc)
	if err != nil {
		return err
	}

	defer disposeClient(ctx, client, &err)

	if _, initErr := client.Init(ctx); initErr != nil {
		cc.Logger.Warn("pull before push failed", "error", initErr)
	}

	if client.Document() == nil {
		cc.Statusf("Nothing to push: no local dashboard.\n")
		return nil
	}

	err = client.ForceSync(ctx)

	switch {
	case err == nil:
		cc.Statusf("Backed up %s.\n", formatSize(int64(document.Size(client.Document()))))
		return nil
	case errors.Is(err, syncclient.ErrPayloadTooLarge):
		return fmt.Errorf("dashboard too large to back up: %w", err)
	case errors.Is(err, syncclient.ErrQueued):
		cc.Statusf("Remote unavailable; local copy kept.\n")
		return err
	default:
		return fmt.Errorf("push: %w", err)
	}
}
