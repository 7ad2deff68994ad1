package templates

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/insuratask/insuratask/internal/store"
	"github.com/insuratask/insuratask/internal/task"
)

// DefaultRunTime is used when a recurrence has no time.
const DefaultRunTime = "09:00"

// CronSpec compiles a recurrence into a standard 5-field cron expression and
// checks that it parses.
func CronSpec(r store.Recurrence) (string, error) {
	var spec string

	if r.Type == store.RecurrenceCustom {
		if r.Cron == "" {
			return "", fmt.Errorf("custom recurrence requires a cron expression")
		}
		spec = r.Cron
	} else {
		at := r.Time
		if at == "" {
			at = DefaultRunTime
		}
		clock, err := time.Parse(task.TimeLayout, at)
		if err != nil {
			return "", fmt.Errorf("recurrence time %q must be HH:MM", r.Time)
		}
		minute, hour := clock.Minute(), clock.Hour()

		switch r.Type {
		case store.RecurrenceDaily:
			spec = fmt.Sprintf("%d %d * * *", minute, hour)
		case store.RecurrenceWeekly:
			if r.DayOfWeek < 0 || r.DayOfWeek > 6 {
				return "", fmt.Errorf("dayOfWeek must be between 0 (Sunday) and 6, got %d", r.DayOfWeek)
			}
			spec = fmt.Sprintf("%d %d * * %d", minute, hour, r.DayOfWeek)
		case store.RecurrenceMonthly:
			if r.DayOfMonth < 1 || r.DayOfMonth > 31 {
				return "", fmt.Errorf("dayOfMonth must be between 1 and 31, got %d", r.DayOfMonth)
			}
			spec = fmt.Sprintf("%d %d %d * *", minute, hour, r.DayOfMonth)
		default:
			return "", fmt.Errorf("unknown recurrence type %q (valid: daily, weekly, monthly, custom)", r.Type)
		}
	}

	if _, err := cron.ParseStandard(spec); err != nil {
		return "", fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}
	return spec, nil
}

// NextRuns returns the next n activation times of r after from, in loc.
func NextRuns(r store.Recurrence, from time.Time, loc *time.Location, n int) ([]time.Time, error) {
	spec, err := CronSpec(r)
	if err != nil {
		return nil, err
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, err
	}

	runs := make([]time.Time, 0, n)
	next := from.In(loc)
	for i := 0; i < n; i++ {
		next = sched.Next(next)
		if next.IsZero() {
			break
		}
		runs = append(runs, next)
	}
	return runs, nil
}

// NextRun returns the next activation time of r after from.
func NextRun(r store.Recurrence, from time.Time, loc *time.Location) (*time.Time, error) {
	runs, err := NextRuns(r, from, loc, 1)
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return &runs[0], nil
}
