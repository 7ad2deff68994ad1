package calendar

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	calendar "google.golang.org/api/calendar/v3"

	"github.com/insuratask/insuratask/internal/store"
	"github.com/insuratask/insuratask/internal/task"
)

// Private extended property keys written on every event created for a task.
const (
	PropTaskID   = "insuratask_task_id"
	PropCategory = "insuratask_category"
	PropPriority = "insuratask_priority"
	PropClient   = "insuratask_client"
)

// CompletedPrefix marks the summary of an event whose task is completed.
const CompletedPrefix = "✓ "

// StatusCancelled is the status of a deleted event when deleted events are
// listed.
const StatusCancelled = "cancelled"

// DefaultEventDuration is the length of a timed event.
const DefaultEventDuration = 30 * time.Minute

var priorityColors = map[store.Priority]string{
	store.PriorityHigh:   "11", // tomato
	store.PriorityMedium: "5",  // banana
	store.PriorityLow:    "2",  // sage
}

// ColorForPriority returns the event colorId used for a task priority.
func ColorForPriority(p store.Priority) string {
	return priorityColors[p]
}

// CalendarInfo represents information about a calendar
type CalendarInfo struct {
	ID         string `json:"id"`
	Summary    string `json:"summary"`
	TimeZone   string `json:"timeZone"`
	Primary    bool   `json:"primary"`
	AccessRole string `json:"accessRole"` // "owner", "writer", "reader", "freeBusyReader"
}

// EventOptions controls how tasks are rendered as events.
type EventOptions struct {
	// Duration of timed events. Zero means DefaultEventDuration.
	Duration time.Duration
	// Location the task's due date and time are interpreted in.
	Location *time.Location
}

func (o EventOptions) location() *time.Location {
	if o.Location == nil {
		return time.Local
	}
	return o.Location
}

// TaskFields are the task fields that travel through a calendar event.
type TaskFields struct {
	Title       string
	Description string
	DueDate     string
	DueTime     string
	Completed   bool
}

// FieldsOf returns the synchronised fields of t.
func FieldsOf(t *store.Task) TaskFields {
	return TaskFields{
		Title:       strings.TrimSpace(t.Title),
		Description: strings.TrimSpace(t.Description),
		DueDate:     t.DueDate,
		DueTime:     t.DueTime,
		Completed:   t.Completed,
	}
}

// TaskToEvent renders t as an event. The task must have a due date.
func TaskToEvent(t *store.Task, opts EventOptions) (*calendar.Event, error) {
	if t == nil {
		return nil, fmt.Errorf("could not convert nil task")
	}
	if t.DueDate == "" {
		return nil, fmt.Errorf("task %d has no due date", t.ID)
	}

	summary := t.Title
	if t.Completed {
		summary = CompletedPrefix + summary
	}

	event := &calendar.Event{
		Summary:     summary,
		Description: t.Description,
		ColorId:     ColorForPriority(t.Priority),
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: taskProperties(t),
		},
	}

	loc := opts.location()
	if t.DueTime != "" {
		start, err := time.ParseInLocation(task.DateLayout+" "+task.TimeLayout, t.DueDate+" "+t.DueTime, loc)
		if err != nil {
			return nil, fmt.Errorf("task %d has an invalid due date or time: %w", t.ID, err)
		}
		duration := opts.Duration
		if duration <= 0 {
			duration = DefaultEventDuration
		}
		event.Start = &calendar.EventDateTime{DateTime: start.Format(time.RFC3339), TimeZone: ianaName(loc)}
		event.End = &calendar.EventDateTime{DateTime: start.Add(duration).Format(time.RFC3339), TimeZone: ianaName(loc)}
		return event, nil
	}

	day, err := time.Parse(task.DateLayout, t.DueDate)
	if err != nil {
		return nil, fmt.Errorf("task %d has an invalid due date: %w", t.ID, err)
	}
	event.Start = &calendar.EventDateTime{Date: day.Format(task.DateLayout)}
	event.End = &calendar.EventDateTime{Date: day.AddDate(0, 0, 1).Format(task.DateLayout)}
	return event, nil
}

func taskProperties(t *store.Task) map[string]string {
	return map[string]string{
		PropTaskID:   strconv.FormatInt(t.ID, 10),
		PropCategory: string(t.Category),
		PropPriority: string(t.Priority),
		PropClient:   t.Client,
	}
}

// TagEvent returns a copy of e that carries the private properties of t.
// Everything else on e is left as it is.
func TagEvent(e *calendar.Event, t *store.Task) *calendar.Event {
	tagged := *e
	private := map[string]string{}
	var shared map[string]string
	if e.ExtendedProperties != nil {
		for k, v := range e.ExtendedProperties.Private {
			private[k] = v
		}
		shared = e.ExtendedProperties.Shared
	}
	for k, v := range taskProperties(t) {
		private[k] = v
	}
	tagged.ExtendedProperties = &calendar.EventExtendedProperties{Private: private, Shared: shared}
	return &tagged
}

// EventToTaskFields reads the task fields from an event. Timed events are
// converted to loc. Only events created for a task can carry the completed
// prefix; the summary of any other event is taken as it is.
func EventToTaskFields(e *calendar.Event, loc *time.Location) (TaskFields, error) {
	if e == nil || e.Start == nil {
		return TaskFields{}, fmt.Errorf("event has no start")
	}
	if loc == nil {
		loc = time.Local
	}

	f := TaskFields{Description: strings.TrimSpace(e.Description)}

	summary := strings.TrimSpace(e.Summary)
	if HasTaskProperty(e) {
		if rest, ok := strings.CutPrefix(summary, CompletedPrefix); ok {
			f.Completed = true
			summary = strings.TrimSpace(rest)
		}
	}
	f.Title = summary

	switch {
	case e.Start.DateTime != "":
		start, err := time.Parse(time.RFC3339, e.Start.DateTime)
		if err != nil {
			return TaskFields{}, fmt.Errorf("event %s has an invalid start: %w", e.Id, err)
		}
		start = start.In(loc)
		f.DueDate = start.Format(task.DateLayout)
		f.DueTime = start.Format(task.TimeLayout)
	case e.Start.Date != "":
		if _, err := time.Parse(task.DateLayout, e.Start.Date); err != nil {
			return TaskFields{}, fmt.Errorf("event %s has an invalid start date: %w", e.Id, err)
		}
		f.DueDate = e.Start.Date
	default:
		return TaskFields{}, fmt.Errorf("event %s has no start", e.Id)
	}
	return f, nil
}

// TaskIDFromEvent returns the task id stored on e, if any.
func TaskIDFromEvent(e *calendar.Event) (int64, bool) {
	if e == nil || e.ExtendedProperties == nil {
		return 0, false
	}
	raw, ok := e.ExtendedProperties.Private[PropTaskID]
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// HasTaskProperty reports whether e was created for a task.
func HasTaskProperty(e *calendar.Event) bool {
	_, ok := TaskIDFromEvent(e)
	return ok
}

// IsCancelled reports whether e has been deleted.
func IsCancelled(e *calendar.Event) bool {
	return e != nil && e.Status == StatusCancelled
}

// UpdatedAt returns the last modification time of e. The zero time is
// returned when Google did not report one.
func UpdatedAt(e *calendar.Event) time.Time {
	if e == nil || e.Updated == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, e.Updated)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ianaName returns the zone name Google accepts, or "" for zones such as
// Local that have no IANA name. The offset in the RFC3339 time is used then.
func ianaName(loc *time.Location) string {
	name := loc.String()
	if name == "Local" || name == "" {
		return ""
	}
	return name
}

func toCalendarInfo(entry *calendar.CalendarListEntry) CalendarInfo {
	if entry == nil {
		return CalendarInfo{}
	}
	return CalendarInfo{
		ID:         entry.Id,
		Summary:    entry.Summary,
		TimeZone:   entry.TimeZone,
		Primary:    entry.Primary,
		AccessRole: entry.AccessRole,
	}
}
