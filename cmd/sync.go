package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/insuratask/insuratask/internal/calsync"
)

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one Google Calendar sync pass",
		Long: `Run one sync pass between tasks and the configured Google Calendar using
the stored sync settings. Connect an account first with
'insuratask calendar connect'.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, appOptions{}, func(ctx context.Context, a *app) error {
				res, err := a.sync.Sync(ctx)
				if err != nil {
					return err
				}
				printSyncResult(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}
}

func printSyncResult(w io.Writer, res *calsync.Result) {
	fmt.Fprintf(w, "Sync finished in %dms\n", res.DurationMs)
	fmt.Fprintf(w, "  created:   %d\n", res.Created)
	fmt.Fprintf(w, "  updated:   %d\n", res.Updated)
	fmt.Fprintf(w, "  pulled:    %d\n", res.Pulled)
	fmt.Fprintf(w, "  imported:  %d\n", res.Imported)
	fmt.Fprintf(w, "  deleted:   %d\n", res.Deleted)
	fmt.Fprintf(w, "  conflicts: %d\n", res.Conflicts)
	if len(res.Errors) > 0 {
		fmt.Fprintf(w, "\n%d items failed:\n", len(res.Errors))
		for _, e := range res.Errors {
			fmt.Fprintf(w, "  - %s\n", e)
		}
	}
}
