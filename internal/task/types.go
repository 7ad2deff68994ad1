package task

import (
	"sort"
	"strings"

	"github.com/insuratask/insuratask/internal/store"
)

// Date and time layouts for dueDate and dueTime.
const (
	DateLayout  = "2006-01-02"
	TimeLayout  = "15:04"
	MonthLayout = "2006-01"
)

const (
	maxTitleLength       = 200
	maxDescriptionLength = 5000
)

// CreateInput is the payload for creating a task.
type CreateInput struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Category    store.Category `json:"category"`
	Client      string         `json:"client"`
	Priority    store.Priority `json:"priority"`
	Status      store.Status   `json:"status"`
	DueDate     string         `json:"dueDate"`
	DueTime     string         `json:"dueTime"`
	Completed   bool           `json:"completed"`
}

// UpdateInput is a partial update; nil fields are left untouched.
type UpdateInput struct {
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	Category    *store.Category `json:"category"`
	Client      *string         `json:"client"`
	Priority    *store.Priority `json:"priority"`
	Status      *store.Status   `json:"status"`
	DueDate     *string         `json:"dueDate"`
	DueTime     *string         `json:"dueTime"`
	Completed   *bool           `json:"completed"`
}

// Empty reports whether the update changes nothing.
func (u UpdateInput) Empty() bool {
	return u.Title == nil && u.Description == nil && u.Category == nil && u.Client == nil &&
		u.Priority == nil && u.Status == nil && u.DueDate == nil && u.DueTime == nil && u.Completed == nil
}

// Stats summarises the task list for the dashboard.
type Stats struct {
	Total          int                    `json:"total"`
	Completed      int                    `json:"completed"`
	Pending        int                    `json:"pending"`
	Overdue        int                    `json:"overdue"`
	DueToday       int                    `json:"dueToday"`
	CompletionRate float64                `json:"completionRate"`
	ByCategory     map[store.Category]int `json:"byCategory"`
	ByPriority     map[store.Priority]int `json:"byPriority"`
	ByStatus       map[store.Status]int   `json:"byStatus"`
}

// ValidationError reports invalid fields. Fields maps field name to message.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	e.Fields[field] = msg
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}
