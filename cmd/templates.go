package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/insuratask/insuratask/internal/store"
	"github.com/insuratask/insuratask/internal/templates"
)

func newTemplatesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "templates",
		Aliases: []string{"template"},
		Short:   "Manage recurring task templates",
	}

	cmd.AddCommand(newTemplatesListCmd())
	cmd.AddCommand(newTemplatesRunCmd())
	cmd.AddCommand(newTemplatesImportCmd())
	cmd.AddCommand(newTemplatesExportCmd())
	return cmd
}

func newTemplatesListCmd() *cobra.Command {
	var enabledOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List templates and their next run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, appOptions{}, func(ctx context.Context, a *app) error {
				list := a.templates.List
				if enabledOnly {
					list = a.templates.ListEnabled
				}
				templateList, err := list(ctx)
				if err != nil {
					return err
				}
				return printTemplates(cmd.OutOrStdout(), templateList, a.loc)
			})
		},
	}
	cmd.Flags().BoolVar(&enabledOnly, "enabled", false, "Only list enabled templates")
	return cmd
}

func newTemplatesRunCmd() *cobra.Command {
	var vars map[string]string

	cmd := &cobra.Command{
		Use:   "run <id>",
		Short: "Create a task from a template now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid template id %q", args[0])
			}
			return withApp(cmd, appOptions{}, func(ctx context.Context, a *app) error {
				exec, err := a.templates.Execute(ctx, id, vars, templates.TriggerManual)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created task #%d: %s\n", exec.Task.ID, exec.Task.Title)
				return nil
			})
		},
	}
	cmd.Flags().StringToStringVar(&vars, "var", nil, "Variable override as name=value (repeatable)")
	return cmd
}

func newTemplatesImportCmd() *cobra.Command {
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import template definitions from a YAML file",
		Long: `Import template definitions from a YAML file written by 'templates export'.

Templates are matched by name. Existing templates are skipped unless
--overwrite is set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			return withApp(cmd, appOptions{}, func(ctx context.Context, a *app) error {
				res, err := a.templates.Import(ctx, data, overwrite)
				if err != nil {
					return err
				}
				printImportResult(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace templates that already exist")
	return cmd
}

func newTemplatesExportCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write all template definitions as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, appOptions{}, func(ctx context.Context, a *app) error {
				data, err := a.templates.Export(ctx)
				if err != nil {
					return err
				}
				if output == "" || output == "-" {
					_, err := cmd.OutOrStdout().Write(data)
					return err
				}
				if err := os.WriteFile(output, data, 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", output, err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Templates written to %s\n", output)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")
	return cmd
}

func printTemplates(w io.Writer, list []store.Template, loc *time.Location) error {
	if len(list) == 0 {
		_, err := fmt.Fprintln(w, "No templates")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSCHEDULE\tENABLED\tNEXT RUN")
	for _, t := range list {
		spec, err := templates.CronSpec(t.Recurrence)
		if err != nil {
			spec = "invalid: " + err.Error()
		}
		next := "-"
		if t.Enabled && t.NextRunAt != nil {
			next = t.NextRunAt.In(loc).Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%t\t%s\n", t.ID, t.Name, spec, t.Enabled, next)
	}
	return tw.Flush()
}

func printImportResult(w io.Writer, res *templates.ImportResult) {
	fmt.Fprintf(w, "Imported templates: %d created, %d updated, %d skipped\n", res.Created, res.Updated, res.Skipped)
	for _, e := range res.Errors {
		fmt.Fprintf(w, "  - %s\n", e)
	}
}
