package export

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/insuratask/insuratask/internal/store"
	"github.com/insuratask/insuratask/internal/task"
)

const (
	icsDateLayout     = "20060102"
	icsDateTimeLayout = "20060102T150405Z"
	icsLineLimit      = 75
)

// ICS writes the dated tasks of r as an iCalendar feed. Undated tasks are
// skipped.
func ICS(w io.Writer, r *Report) error {
	stamp := r.GeneratedAt.UTC().Format(icsDateTimeLayout)
	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//InsuraTask//Task Export//EN",
		"CALSCALE:GREGORIAN",
		"METHOD:PUBLISH",
		"X-WR-CALNAME:" + escapeICSText(r.Title),
	}
	for _, t := range r.Tasks {
		event, err := icsEvent(t, r, stamp)
		if err != nil {
			return err
		}
		lines = append(lines, event...)
	}
	lines = append(lines, "END:VCALENDAR")

	var b strings.Builder
	for _, l := range lines {
		b.WriteString(foldICSLine(l))
		b.WriteString("\r\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func icsEvent(t store.Task, r *Report, stamp string) ([]string, error) {
	if t.DueDate == "" {
		return nil, nil
	}
	day, err := time.ParseInLocation(task.DateLayout, t.DueDate, r.Location)
	if err != nil {
		return nil, fmt.Errorf("task %d: invalid due date %q", t.ID, t.DueDate)
	}

	summary := strings.TrimSpace(t.Title)
	if t.Completed {
		summary = "✓ " + summary
	}

	lines := []string{
		"BEGIN:VEVENT",
		fmt.Sprintf("UID:task-%d@insuratask", t.ID),
		"DTSTAMP:" + stamp,
		"SUMMARY:" + escapeICSText(summary),
	}
	if t.DueTime != "" {
		clock, err := time.Parse(task.TimeLayout, t.DueTime)
		if err != nil {
			return nil, fmt.Errorf("task %d: invalid due time %q", t.ID, t.DueTime)
		}
		start := time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, r.Location)
		dur := r.EventDuration
		if dur <= 0 {
			dur = DefaultEventDuration
		}
		lines = append(lines,
			"DTSTART:"+start.UTC().Format(icsDateTimeLayout),
			"DTEND:"+start.Add(dur).UTC().Format(icsDateTimeLayout),
		)
	} else {
		lines = append(lines,
			"DTSTART;VALUE=DATE:"+day.Format(icsDateLayout),
			"DTEND;VALUE=DATE:"+day.AddDate(0, 0, 1).Format(icsDateLayout),
		)
	}
	if desc := icsDescription(t); desc != "" {
		lines = append(lines, "DESCRIPTION:"+escapeICSText(desc))
	}
	lines = append(lines,
		"CATEGORIES:"+escapeICSText(categoryLabel(t.Category)),
		fmt.Sprintf("PRIORITY:%d", icsPriority(t.Priority)),
	)
	if t.Completed {
		lines = append(lines, "STATUS:CONFIRMED", "X-INSURATASK-COMPLETED:TRUE")
	}
	if !t.UpdatedAt.IsZero() {
		lines = append(lines, "LAST-MODIFIED:"+t.UpdatedAt.UTC().Format(icsDateTimeLayout))
	}
	lines = append(lines, "END:VEVENT")
	return lines, nil
}

func icsDescription(t store.Task) string {
	desc := strings.TrimSpace(t.Description)
	if t.Client == "" {
		return desc
	}
	if desc == "" {
		return "Client: " + t.Client
	}
	return desc + "\nClient: " + t.Client
}

// icsPriority maps to the RFC 5545 scale where 1 is highest.
func icsPriority(p store.Priority) int {
	switch p {
	case store.PriorityHigh:
		return 1
	case store.PriorityLow:
		return 9
	}
	return 5
}

func escapeICSText(s string) string {
	repl := strings.NewReplacer(
		"\\", "\\\\",
		";", "\\;",
		",", "\\,",
		"\r\n", "\\n",
		"\n", "\\n",
		"\r", "\\n",
	)
	return repl.Replace(s)
}

// foldICSLine splits lines longer than 75 octets without breaking a UTF-8
// sequence.
func foldICSLine(line string) string {
	if len(line) <= icsLineLimit {
		return line
	}
	var b strings.Builder
	limit := icsLineLimit
	for len(line) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(line[cut]) {
			cut--
		}
		b.WriteString(line[:cut])
		b.WriteString("\r\n ")
		line = line[cut:]
		limit = icsLineLimit - 1
	}
	b.WriteString(line)
	return b.String()
}
