package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// Category classifies a task by line of insurance work.
type Category string

const (
	CategoryPolicyRenewal  Category = "policy_renewal"
	CategoryClaims         Category = "claims"
	CategoryClientMeeting  Category = "client_meeting"
	CategoryFollowUp       Category = "follow_up"
	CategoryAdministrative Category = "administrative"
)

// Categories lists every valid category in display order.
var Categories = []Category{
	CategoryPolicyRenewal,
	CategoryClaims,
	CategoryClientMeeting,
	CategoryFollowUp,
	CategoryAdministrative,
}

func (c Category) Valid() bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

// Priority of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// Status of a task. It is set independently of the completed flag and of the
// due date; overdue detection happens at query time.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusOverdue   Status = "overdue"
)

var Statuses = []Status{StatusPending, StatusCompleted, StatusOverdue}

func (s Status) Valid() bool {
	return s == StatusPending || s == StatusCompleted || s == StatusOverdue
}

// Task is an agent's to-do item.
type Task struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Category    Category   `json:"category"`
	Client      string     `json:"client"`
	Priority    Priority   `json:"priority"`
	Status      Status     `json:"status"`
	DueDate     string     `json:"dueDate"`
	DueTime     string     `json:"dueTime"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completedAt"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// IsOverdue reports whether the task is incomplete and due before today
// (YYYY-MM-DD).
func (t *Task) IsOverdue(today string) bool {
	return !t.Completed && t.DueDate != "" && t.DueDate < today
}

// TaskFilter narrows ListTasks. Zero values match everything.
type TaskFilter struct {
	Status    Status
	Category  Category
	Priority  Priority
	Client    string
	Completed *bool
	Search    string
	DueFrom   string
	DueTo     string
	// OverdueBefore keeps only incomplete tasks due before this date.
	OverdueBefore string
	HasDueDate    bool
	Limit         int
}

// RecurrenceType selects how a template's schedule is built.
type RecurrenceType string

const (
	RecurrenceDaily   RecurrenceType = "daily"
	RecurrenceWeekly  RecurrenceType = "weekly"
	RecurrenceMonthly RecurrenceType = "monthly"
	RecurrenceCustom  RecurrenceType = "custom"
)

// Recurrence describes when a template fires.
type Recurrence struct {
	Type RecurrenceType `json:"type" yaml:"type"`
	// Time is HH:MM in the scheduler's timezone.
	Time string `json:"time,omitempty" yaml:"time,omitempty"`
	// DayOfWeek is 0 (Sunday) through 6, used by weekly.
	DayOfWeek int `json:"dayOfWeek,omitempty" yaml:"day_of_week,omitempty"`
	// DayOfMonth is 1 through 31, used by monthly.
	DayOfMonth int `json:"dayOfMonth,omitempty" yaml:"day_of_month,omitempty"`
	// Cron is a standard 5-field expression, used by custom.
	Cron string `json:"cron,omitempty" yaml:"cron,omitempty"`
}

// Template is a recurring task definition. Title and Description may contain
// {{name}} placeholders.
type Template struct {
	ID            int64             `json:"id" yaml:"-"`
	Name          string            `json:"name" yaml:"name"`
	Title         string            `json:"title" yaml:"title"`
	Description   string            `json:"description" yaml:"description,omitempty"`
	Category      Category          `json:"category" yaml:"category"`
	Priority      Priority          `json:"priority" yaml:"priority"`
	Client        string            `json:"client" yaml:"client,omitempty"`
	Variables     map[string]string `json:"variables" yaml:"variables,omitempty"`
	Recurrence    Recurrence        `json:"recurrence" yaml:"recurrence"`
	DueOffsetDays int               `json:"dueOffsetDays" yaml:"due_offset_days"`
	DueTime       string            `json:"dueTime" yaml:"due_time,omitempty"`
	Enabled       bool              `json:"enabled" yaml:"enabled"`
	LastRunAt     *time.Time        `json:"lastRunAt" yaml:"-"`
	NextRunAt     *time.Time        `json:"nextRunAt" yaml:"-"`
	CreatedAt     time.Time         `json:"createdAt" yaml:"-"`
	UpdatedAt     time.Time         `json:"updatedAt" yaml:"-"`
}

// InstanceStatus is the outcome of one template execution.
type InstanceStatus string

const (
	InstanceCreated InstanceStatus = "created"
	InstanceFailed  InstanceStatus = "failed"
)

// TemplateInstance is the audit row written for every template execution.
type TemplateInstance struct {
	ID         string         `json:"id"`
	TemplateID int64          `json:"templateId"`
	TaskID     *int64         `json:"taskId"`
	Title      string         `json:"title"`
	Trigger    string         `json:"trigger"`
	Status     InstanceStatus `json:"status"`
	Error      string         `json:"error,omitempty"`
	ExecutedAt time.Time      `json:"executedAt"`
}

// SyncStatus of a task/event mapping.
type SyncStatus string

const (
	SyncStatusSynced   SyncStatus = "synced"
	SyncStatusConflict SyncStatus = "conflict"
	SyncStatusPending  SyncStatus = "pending"
)

// Mapping links a task to a Google Calendar event.
type Mapping struct {
	TaskID         int64      `json:"taskId"`
	EventID        string     `json:"eventId"`
	CalendarID     string     `json:"calendarId"`
	SyncStatus     SyncStatus `json:"syncStatus"`
	ConflictReason string     `json:"conflictReason,omitempty"`
	LastSyncedAt   time.Time  `json:"lastSyncedAt"`
	CreatedAt      time.Time  `json:"createdAt"`
}
