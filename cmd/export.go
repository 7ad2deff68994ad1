package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/insuratask/insuratask/internal/export"
	"github.com/insuratask/insuratask/internal/store"
)

type exportOptions struct {
	format    string
	output    string
	status    string
	category  string
	priority  string
	client    string
	completed string
	from      string
	to        string
}

func newExportCmd() *cobra.Command {
	var opts exportOptions

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a task report as PDF, Excel, CSV or iCalendar",
		Long: `Write the tasks matching the filter flags to a report file.

The file is named tasks-YYYYMMDD.<ext> in the current directory unless
--output is given. Use --output - to write to standard output.`,
		Example: `  insuratask export --format pdf
  insuratask export --format excel --category claims --completed false
  insuratask export --format ics --from 2025-01-01 --to 2025-03-31 -o q1.ics`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, appOptions{}, func(ctx context.Context, a *app) error {
				return runExport(ctx, a.export, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			})
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", "pdf", "Output format: pdf, excel, csv or ics")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output file path, or - for stdout")
	cmd.Flags().StringVar(&opts.status, "status", "", "Only tasks with this status")
	cmd.Flags().StringVar(&opts.category, "category", "", "Only tasks in this category")
	cmd.Flags().StringVar(&opts.priority, "priority", "", "Only tasks with this priority")
	cmd.Flags().StringVar(&opts.client, "client", "", "Only tasks for this client")
	cmd.Flags().StringVar(&opts.completed, "completed", "", "Only completed (true) or open (false) tasks")
	cmd.Flags().StringVar(&opts.from, "from", "", "Only tasks due on or after YYYY-MM-DD")
	cmd.Flags().StringVar(&opts.to, "to", "", "Only tasks due on or before YYYY-MM-DD")

	return cmd
}

func (o exportOptions) filter() (export.Filter, error) {
	f := export.Filter{
		Status:   store.Status(o.status),
		Category: store.Category(o.category),
		Priority: store.Priority(o.priority),
		Client:   o.client,
		DueFrom:  o.from,
		DueTo:    o.to,
	}
	if o.completed != "" {
		b, err := strconv.ParseBool(o.completed)
		if err != nil {
			return export.Filter{}, fmt.Errorf("invalid --completed value %q (expected true or false)", o.completed)
		}
		f.Completed = &b
	}
	return f, nil
}

// exporter renders a report file.
type exporter interface {
	Export(ctx context.Context, f export.Format, filter export.Filter) (*export.File, error)
}

func runExport(ctx context.Context, svc exporter, opts exportOptions, stdout, stderr io.Writer) error {
	format, err := export.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	filter, err := opts.filter()
	if err != nil {
		return err
	}

	file, err := svc.Export(ctx, format, filter)
	if err != nil {
		return err
	}

	if opts.output == "-" {
		_, err := stdout.Write(file.Data)
		return err
	}

	path := opts.output
	if path == "" {
		path = file.Name
	}
	if err := os.WriteFile(path, file.Data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Fprintf(stderr, "Exported %d tasks to %s\n", file.Count, path)
	return nil
}
