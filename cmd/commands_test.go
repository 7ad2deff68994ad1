package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insuratask/insuratask/internal/calsync"
	"github.com/insuratask/insuratask/internal/export"
	"github.com/insuratask/insuratask/internal/store"
	"github.com/insuratask/insuratask/internal/templates"
)

type fakeExporter struct {
	format export.Format
	filter export.Filter
	err    error
}

func (f *fakeExporter) Export(_ context.Context, format export.Format, filter export.Filter) (*export.File, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.format = format
	f.filter = filter
	return &export.File{
		Name:        export.FileName(format, time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)),
		ContentType: format.ContentType(),
		Data:        []byte("report"),
		Count:       4,
	}, nil
}

func TestRunExport(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "claims.xlsx")
	svc := &fakeExporter{}
	var stdout, stderr bytes.Buffer

	err := runExport(context.Background(), svc, exportOptions{
		format:    "xlsx",
		output:    out,
		category:  "claims",
		completed: "false",
		from:      "2025-01-01",
	}, &stdout, &stderr)
	require.NoError(t, err)

	assert.Equal(t, export.FormatExcel, svc.format)
	assert.Equal(t, store.CategoryClaims, svc.filter.Category)
	require.NotNil(t, svc.filter.Completed)
	assert.False(t, *svc.filter.Completed)
	assert.Equal(t, "2025-01-01", svc.filter.DueFrom)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "report", string(data))
	assert.Contains(t, stderr.String(), "Exported 4 tasks to "+out)
	assert.Empty(t, stdout.String())
}

func TestRunExport_Stdout(t *testing.T) {
	var stdout, stderr bytes.Buffer
	require.NoError(t, runExport(context.Background(), &fakeExporter{}, exportOptions{format: "csv", output: "-"}, &stdout, &stderr))
	assert.Equal(t, "report", stdout.String())
	assert.Empty(t, stderr.String())
}

func TestRunExport_DefaultFileName(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	var stdout, stderr bytes.Buffer
	require.NoError(t, runExport(context.Background(), &fakeExporter{}, exportOptions{format: "ics"}, &stdout, &stderr))
	assert.FileExists(t, filepath.Join(dir, "tasks-20250314.ics"))
}

func TestRunExport_Errors(t *testing.T) {
	tests := []struct {
		name string
		opts exportOptions
		svc  *fakeExporter
		want string
	}{
		{"bad format", exportOptions{format: "docx"}, &fakeExporter{}, "unknown export format"},
		{"bad completed", exportOptions{format: "pdf", completed: "maybe"}, &fakeExporter{}, "invalid --completed"},
		{"service error", exportOptions{format: "pdf"}, &fakeExporter{err: errors.New("db closed")}, "db closed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			err := runExport(context.Background(), tt.svc, tt.opts, &stdout, &stderr)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestPrintTemplates(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	_, err := a.templates.Create(ctx, templates.Input{
		Name:     "monthly-renewals",
		Title:    "Renewal check",
		Category: store.CategoryPolicyRenewal,
		Priority: store.PriorityHigh,
		Recurrence: store.Recurrence{
			Type:       store.RecurrenceMonthly,
			Time:       "09:00",
			DayOfMonth: 1,
		},
	})
	require.NoError(t, err)

	list, err := a.templates.List(ctx)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, printTemplates(&buf, list, a.loc))
	out := buf.String()
	assert.Contains(t, out, "monthly-renewals")
	assert.Contains(t, out, "0 9 1 * *")
	assert.Contains(t, out, "NEXT RUN")

	buf.Reset()
	require.NoError(t, printTemplates(&buf, nil, a.loc))
	assert.Equal(t, "No templates\n", buf.String())
}

func TestPrintConflicts(t *testing.T) {
	var buf bytes.Buffer
	printConflicts(&buf, nil)
	assert.Equal(t, "No sync conflicts\n", buf.String())

	buf.Reset()
	printConflicts(&buf, []calsync.Conflict{{
		TaskID:  3,
		EventID: "ev3",
		Reason:  "changed on both sides",
		Local:   &store.Task{ID: 3, Title: "Call Acme"},
	}})
	assert.Equal(t, "#3 Call Acme (event ev3): changed on both sides\n", buf.String())
}

func TestPrintSyncResult(t *testing.T) {
	var buf bytes.Buffer
	printSyncResult(&buf, &calsync.Result{Created: 2, Pulled: 1, Errors: []string{"task 9: rate limited"}, DurationMs: 120})
	out := buf.String()
	assert.Contains(t, out, "Sync finished in 120ms")
	assert.Contains(t, out, "created:   2")
	assert.Contains(t, out, "1 items failed")
	assert.Contains(t, out, "task 9: rate limited")
}

func TestGenerateToolsDocs(t *testing.T) {
	a := newTestApp(t)

	md, err := generateToolsDocs(a)
	require.NoError(t, err)

	assert.Contains(t, md, "# MCP Tools Reference")
	assert.Contains(t, md, "## Task Tools")
	assert.Contains(t, md, "## Template Tools")
	assert.Contains(t, md, "## Google Calendar Tools")
	assert.Contains(t, md, "### tasks_list\n")
	assert.Contains(t, md, "### tasks_create *(write)*")
	assert.Contains(t, md, "### calendar_sync *(write)*")
	assert.Contains(t, md, "`policy_renewal`")
}

func TestTemplatesRunCreatesTask(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	tmpl, err := a.templates.Create(ctx, templates.Input{
		Name:      "follow-up",
		Title:     "Follow up with {{client}}",
		Category:  store.CategoryFollowUp,
		Priority:  store.PriorityMedium,
		Variables: map[string]string{"client": "Acme"},
		Recurrence: store.Recurrence{
			Type: store.RecurrenceDaily,
			Time: "08:00",
		},
	})
	require.NoError(t, err)

	exec, err := a.templates.Execute(ctx, tmpl.ID, map[string]string{"client": "Globex"}, templates.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, "Follow up with Globex", exec.Task.Title)

	stats, err := a.tasks.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
}
