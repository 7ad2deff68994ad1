package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/insuratask/insuratask/internal/calsync"
	"github.com/insuratask/insuratask/internal/google"
)

func newCalendarCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Manage the Google Calendar connection",
		Long: `Connect a Google account for calendar sync and inspect the sync state.

Connecting requires google.client_id and google.client_secret in the config
(or INSURATASK_GOOGLE_CLIENT_ID / INSURATASK_GOOGLE_CLIENT_SECRET).`,
	}

	cmd.AddCommand(newCalendarAuthURLCmd())
	cmd.AddCommand(newCalendarConnectCmd())
	cmd.AddCommand(newCalendarStatusCmd())
	cmd.AddCommand(newCalendarDisconnectCmd())
	cmd.AddCommand(newCalendarConflictsCmd())
	cmd.AddCommand(newCalendarResolveCmd())
	return cmd
}

func newCalendarAuthURLCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auth-url",
		Short: "Print the Google consent URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, appOptions{}, func(ctx context.Context, a *app) error {
				url, err := a.tokens.AuthURL(google.NewState())
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				fmt.Fprintln(w, "Open this URL in your browser and grant calendar access:")
				fmt.Fprintf(w, "\n  %s\n\n", url)
				fmt.Fprintln(w, "Then run: insuratask calendar connect <code>")
				return nil
			})
		},
	}
}

func newCalendarConnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "connect <code>",
		Short: "Exchange an authorization code and store the token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, appOptions{}, func(ctx context.Context, a *app) error {
				if err := a.tokens.Connect(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "✓ Google Calendar connected")
				return nil
			})
		},
	}
}

func newCalendarStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the connection state and sync settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, appOptions{}, func(ctx context.Context, a *app) error {
				st, err := a.sync.Status(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), st)
			})
		},
	}
}

func newCalendarDisconnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect",
		Short: "Forget the connected account and all sync mappings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, appOptions{}, func(ctx context.Context, a *app) error {
				if err := a.sync.Disconnect(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Google Calendar disconnected")
				return nil
			})
		},
	}
}

func newCalendarConflictsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "conflicts",
		Short: "List tasks whose calendar event changed on both sides",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, appOptions{}, func(ctx context.Context, a *app) error {
				conflicts, err := a.sync.Conflicts(ctx)
				if err != nil {
					return err
				}
				printConflicts(cmd.OutOrStdout(), conflicts)
				return nil
			})
		},
	}
}

func newCalendarResolveCmd() *cobra.Command {
	var keep string

	cmd := &cobra.Command{
		Use:   "resolve <task-id>",
		Short: "Resolve a sync conflict by keeping one side",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid task id %q", args[0])
			}
			rule := calsync.ConflictRule(keep)
			if rule != calsync.RuleLocal && rule != calsync.RuleRemote {
				return fmt.Errorf("invalid --keep value %q (expected local or remote)", keep)
			}
			return withApp(cmd, appOptions{}, func(ctx context.Context, a *app) error {
				if err := a.sync.Resolve(ctx, id, rule); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Conflict on task %d resolved (kept %s)\n", id, rule)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&keep, "keep", string(calsync.RuleLocal), "Side to keep: local or remote")
	return cmd
}

func printConflicts(w io.Writer, conflicts []calsync.Conflict) {
	if len(conflicts) == 0 {
		fmt.Fprintln(w, "No sync conflicts")
		return
	}
	for _, c := range conflicts {
		title := ""
		if c.Local != nil {
			title = c.Local.Title
		}
		fmt.Fprintf(w, "#%d %s (event %s): %s\n", c.TaskID, title, c.EventID, c.Reason)
	}
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
