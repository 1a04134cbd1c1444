package main

import (
	"github.com/spf13/cobra"
)

func newPullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Fetch and merge the remote dashboard",
		Long: `Restore the remote copy and reconcile it with local data. Local edits
are never overwritten: diverging copies are merged and the result is
pushed back.`,
		Args: cobra.NoArgs,
		RunE: runPull,
	}
}

func runPull(cmd *cobra.Command, _ []string) (err error) {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)

	client, err := openClient(ctx, cc)
	if err != nil {
		return err
	}

	defer disposeClient(ctx, client, &err)

	doc, err := client.Init(ctx)
	if err != nil {
		return err
	}

	summary := summarize(doc)
	summary.SessionID = client.SessionID()

	if cc.Flags.JSON {
		return printJSON(cc.Out, summary)
	}

	printSummary(cc.Out, summary)

	return nil
}
