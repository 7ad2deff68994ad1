package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/insuratask/insuratask/internal/store"
	"github.com/insuratask/insuratask/internal/task"
)

// Format is an output file type.
type Format string

const (
	FormatPDF   Format = "pdf"
	FormatExcel Format = "excel"
	FormatCSV   Format = "csv"
	FormatICS   Format = "ics"
)

// Formats lists the supported formats.
var Formats = []Format{FormatPDF, FormatExcel, FormatCSV, FormatICS}

// ParseFormat accepts a format name or file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "pdf":
		return FormatPDF, nil
	case "excel", "xlsx":
		return FormatExcel, nil
	case "csv":
		return FormatCSV, nil
	case "ics", "ical", "icalendar":
		return FormatICS, nil
	}
	return "", fmt.Errorf("unknown export format %q (valid: pdf, excel, csv, ics)", s)
}

// Ext returns the file extension without the dot.
func (f Format) Ext() string {
	if f == FormatExcel {
		return "xlsx"
	}
	return string(f)
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	case FormatExcel:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatICS:
		return "text/calendar; charset=utf-8"
	}
	return "application/octet-stream"
}

// FileName returns tasks-YYYYMMDD.<ext> for day.
func FileName(f Format, day time.Time) string {
	return fmt.Sprintf("tasks-%s.%s", day.Format("20060102"), f.Ext())
}

// Report is the data every writer renders.
type Report struct {
	Title       string
	GeneratedAt time.Time
	Location    *time.Location
	Tasks       []store.Task
	Stats       *task.Stats
	// EventDuration is the length of timed events in calendar exports.
	EventDuration time.Duration
}

// DefaultEventDuration is the length of timed events when none is configured.
const DefaultEventDuration = 30 * time.Minute

// NewReport builds a report over tasks at now.
func NewReport(title string, tasks []store.Task, now time.Time, loc *time.Location) *Report {
	if loc == nil {
		loc = time.Local
	}
	now = now.In(loc)
	return &Report{
		Title:         title,
		GeneratedAt:   now,
		Location:      loc,
		Tasks:         tasks,
		Stats:         task.ComputeStats(tasks, now.Format(task.DateLayout)),
		EventDuration: DefaultEventDuration,
	}
}

// Write renders r in format f.
func Write(w io.Writer, f Format, r *Report) error {
	switch f {
	case FormatPDF:
		return PDF(w, r)
	case FormatExcel:
		return Excel(w, r)
	case FormatCSV:
		return CSV(w, r)
	case FormatICS:
		return ICS(w, r)
	}
	return fmt.Errorf("unknown export format %q", f)
}

// File is a rendered export.
type File struct {
	Name        string
	ContentType string
	Data        []byte
	Count       int
}

// TaskLister lists tasks.
type TaskLister interface {
	List(ctx context.Context, f store.TaskFilter) ([]store.Task, error)
}

// DurationFunc returns the current length of timed calendar events.
type DurationFunc func(ctx context.Context) time.Duration

// Service renders exports of the stored tasks.
type Service struct {
	tasks    TaskLister
	loc      *time.Location
	now      func() time.Time
	duration DurationFunc
}

// NewService creates a Service.
func NewService(tasks TaskLister, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{tasks: tasks, loc: loc, now: time.Now}
}

// SetClock overrides the service clock.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// SetEventDuration makes calendar exports use the event length fn reports,
// so they match the events the calendar sync writes.
func (s *Service) SetEventDuration(fn DurationFunc) {
	s.duration = fn
}

// Export renders the tasks matching filter.
func (s *Service) Export(ctx context.Context, f Format, filter Filter) (*File, error) {
	all, err := s.tasks.List(ctx, store.TaskFilter{})
	if err != nil {
		return nil, err
	}
	tasks := filter.Apply(all)

	now := s.now().In(s.loc)
	r := NewReport("InsuraTask Report", tasks, now, s.loc)
	if s.duration != nil {
		if d := s.duration(ctx); d > 0 {
			r.EventDuration = d
		}
	}

	var buf bytes.Buffer
	if err := Write(&buf, f, r); err != nil {
		return nil, fmt.Errorf("failed to render %s export: %w", f, err)
	}
	return &File{
		Name:        FileName(f, now),
		ContentType: f.ContentType(),
		Data:        buf.Bytes(),
		Count:       len(tasks),
	}, nil
}
