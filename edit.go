package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/dashsync/internal/activity"
	"github.com/tonimelisma/dashsync/internal/localstore"
)

func newEditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Mark an edit in progress",
		Long: `Set or clear the edit-in-progress flag shared by every process using
the same data directory. While it is set, pulls never replace local data.`,
		Annotations: map[string]string{localOnlyAnnotation: "true"},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "start",
		Short: "Set the edit flag",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withGuard(cmd, func(ctx context.Context, cc *CLIContext, g *activity.Guard) error {
				if err := g.StartEditing(ctx); err != nil {
					return err
				}

				cc.Statusf("Editing started; pulls are paused.\n")

				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "stop",
		Short: "Clear the edit flag",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withGuard(cmd, func(ctx context.Context, cc *CLIContext, g *activity.Guard) error {
				if err := g.StopEditing(ctx); err != nil {
					return err
				}

				cc.Statusf("Editing stopped.\n")

				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Report whether the edit flag is set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withGuard(cmd, func(ctx context.Context, cc *CLIContext, g *activity.Guard) error {
				editing := g.IsEditing(ctx)

				if cc.Flags.JSON {
					return printJSON(cc.Out, map[string]bool{"editing": editing})
				}

				fmt.Fprintf(cc.Out, "editing: %t\n", editing)

				return nil
			})
		},
	})

	return cmd
}

// withGuard opens the local store for the duration of fn.
func withGuard(cmd *cobra.Command, fn func(context.Context, *CLIContext, *activity.Guard) error) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)

	store, err := localstore.Open(ctx, cc.Cfg.DataDir, cc.Logger)
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(ctx, cc, activity.NewGuard(store, cc.Logger))
}
