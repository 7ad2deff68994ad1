package export

import (
	"strings"

	"github.com/insuratask/insuratask/internal/store"
)

// Filter selects the tasks of an export. Zero values match everything.
type Filter struct {
	Status    store.Status   `form:"status"`
	Category  store.Category `form:"category"`
	Priority  store.Priority `form:"priority"`
	Client    string         `form:"client"`
	Completed *bool          `form:"completed"`
	DueFrom   string         `form:"dueFrom"`
	DueTo     string         `form:"dueTo"`
}

// Match reports whether t passes the filter. Date bounds are inclusive and
// exclude undated tasks.
func (f Filter) Match(t store.Task) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Category != "" && t.Category != f.Category {
		return false
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	if f.Client != "" && !strings.EqualFold(strings.TrimSpace(t.Client), strings.TrimSpace(f.Client)) {
		return false
	}
	if f.Completed != nil && t.Completed != *f.Completed {
		return false
	}
	if f.DueFrom != "" && (t.DueDate == "" || t.DueDate < f.DueFrom) {
		return false
	}
	if f.DueTo != "" && (t.DueDate == "" || t.DueDate > f.DueTo) {
		return false
	}
	return true
}

// Apply returns the tasks that match, keeping their order.
func (f Filter) Apply(tasks []store.Task) []store.Task {
	out := make([]store.Task, 0, len(tasks))
	for _, t := range tasks {
		if f.Match(t) {
			out = append(out, t)
		}
	}
	return out
}
