package task

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/insuratask/insuratask/internal/instrumentation"
	"github.com/insuratask/insuratask/internal/logging"
	"github.com/insuratask/insuratask/internal/store"
)

// Repository is the persistence the service needs.
type Repository interface {
	CreateTask(ctx context.Context, t *store.Task) error
	GetTask(ctx context.Context, id int64) (*store.Task, error)
	ListTasks(ctx context.Context, f store.TaskFilter) ([]store.Task, error)
	UpdateTask(ctx context.Context, t *store.Task) error
	DeleteTask(ctx context.Context, id int64) error
	MarkOverdue(ctx context.Context, today string) (int64, error)
}

// Config holds the optional collaborators of a Service.
type Config struct {
	Logger   *slog.Logger
	Metrics  *instrumentation.Metrics
	Audit    *instrumentation.AuditLogger
	Location *time.Location
}

// Service implements task operations on top of a Repository.
type Service struct {
	repo    Repository
	logger  *slog.Logger
	metrics *instrumentation.Metrics
	audit   *instrumentation.AuditLogger
	loc     *time.Location
	now     func() time.Time
}

// NewService creates a Service.
func NewService(repo Repository, cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		repo:    repo,
		logger:  logging.WithComponent(logger, "tasks"),
		metrics: cfg.Metrics,
		audit:   cfg.Audit,
		loc:     loc,
		now:     time.Now,
	}
}

// SetClock overrides the service clock.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Today returns the current date (YYYY-MM-DD) in the service timezone.
func (s *Service) Today() string {
	return s.now().In(s.loc).Format(DateLayout)
}

type sourceKey struct{}

// WithSource tags ctx with the origin of a mutation (api, mcp, template, sync)
// for metrics and audit logs.
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

// SourceFrom returns the source set by WithSource, defaulting to api.
func SourceFrom(ctx context.Context) string {
	if s, ok := ctx.Value(sourceKey{}).(string); ok && s != "" {
		return s
	}
	return instrumentation.SourceAPI
}

func (s *Service) record(ctx context.Context, operation string, id int64, err error, event *instrumentation.AuditEvent) {
	if err == nil {
		s.metrics.RecordTaskMutation(ctx, operation, SourceFrom(ctx))
	}
	if id != 0 {
		event.WithResource("task", strconv.FormatInt(id, 10))
	}
	s.audit.Log(event.WithSpanContext(ctx).Complete(err))
}

// Create validates input, applies defaults and persists a new task.
func (s *Service) Create(ctx context.Context, in CreateInput) (*store.Task, error) {
	event := instrumentation.NewAuditEvent("task.create", SourceFrom(ctx))

	t := &store.Task{
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Category:    in.Category,
		Client:      strings.TrimSpace(in.Client),
		Priority:    in.Priority,
		Status:      in.Status,
		DueDate:     strings.TrimSpace(in.DueDate),
		DueTime:     strings.TrimSpace(in.DueTime),
	}
	if t.Priority == "" {
		t.Priority = store.PriorityMedium
	}
	if t.Status == "" {
		t.Status = store.StatusPending
		if in.Completed {
			t.Status = store.StatusCompleted
		}
	}
	s.setCompleted(t, in.Completed)

	if err := validate(t); err != nil {
		s.record(ctx, instrumentation.OperationCreate, 0, err, event)
		return nil, err
	}
	if err := s.repo.CreateTask(ctx, t); err != nil {
		err = fmt.Errorf("failed to create task: %w", err)
		s.record(ctx, instrumentation.OperationCreate, 0, err, event)
		return nil, err
	}

	s.record(ctx, instrumentation.OperationCreate, t.ID, nil, event)
	s.logger.Debug("task created", logging.TaskID(t.ID))
	return t, nil
}

// Get returns a task by id.
func (s *Service) Get(ctx context.Context, id int64) (*store.Task, error) {
	return s.repo.GetTask(ctx, id)
}

// List returns tasks matching f.
func (s *Service) List(ctx context.Context, f store.TaskFilter) ([]store.Task, error) {
	return s.repo.ListTasks(ctx, f)
}

// Update applies a partial update. Flipping completed sets or clears
// completedAt; status is only changed when given explicitly.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (*store.Task, error) {
	event := instrumentation.NewAuditEvent("task.update", SourceFrom(ctx))

	t, err := s.repo.GetTask(ctx, id)
	if err != nil {
		s.record(ctx, instrumentation.OperationUpdate, id, err, event)
		return nil, err
	}

	if in.Title != nil {
		t.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		t.Description = strings.TrimSpace(*in.Description)
	}
	if in.Category != nil {
		t.Category = *in.Category
	}
	if in.Client != nil {
		t.Client = strings.TrimSpace(*in.Client)
	}
	if in.Priority != nil {
		t.Priority = *in.Priority
	}
	if in.Status != nil {
		t.Status = *in.Status
	}
	if in.DueDate != nil {
		t.DueDate = strings.TrimSpace(*in.DueDate)
	}
	if in.DueTime != nil {
		t.DueTime = strings.TrimSpace(*in.DueTime)
	}
	if in.Completed != nil {
		s.setCompleted(t, *in.Completed)
	}

	if err := validate(t); err != nil {
		s.record(ctx, instrumentation.OperationUpdate, id, err, event)
		return nil, err
	}
	if err := s.repo.UpdateTask(ctx, t); err != nil {
		s.record(ctx, instrumentation.OperationUpdate, id, err, event)
		return nil, err
	}

	s.record(ctx, instrumentation.OperationUpdate, id, nil, event)
	return t, nil
}

// ToggleComplete flips the completed flag and moves status to completed or
// back to pending.
func (s *Service) ToggleComplete(ctx context.Context, id int64) (*store.Task, error) {
	event := instrumentation.NewAuditEvent("task.toggle", SourceFrom(ctx))

	t, err := s.repo.GetTask(ctx, id)
	if err != nil {
		s.record(ctx, instrumentation.OperationToggle, id, err, event)
		return nil, err
	}

	s.setCompleted(t, !t.Completed)
	if t.Completed {
		t.Status = store.StatusCompleted
	} else {
		t.Status = store.StatusPending
	}

	if err := s.repo.UpdateTask(ctx, t); err != nil {
		s.record(ctx, instrumentation.OperationToggle, id, err, event)
		return nil, err
	}
	s.record(ctx, instrumentation.OperationToggle, id, nil, event)
	return t, nil
}

// Delete removes a task.
func (s *Service) Delete(ctx context.Context, id int64) error {
	event := instrumentation.NewAuditEvent("task.delete", SourceFrom(ctx))
	err := s.repo.DeleteTask(ctx, id)
	s.record(ctx, instrumentation.OperationDelete, id, err, event)
	return err
}

// Overdue returns incomplete tasks due before today.
func (s *Service) Overdue(ctx context.Context) ([]store.Task, error) {
	return s.repo.ListTasks(ctx, store.TaskFilter{OverdueBefore: s.Today()})
}

// DueToday returns incomplete tasks due today.
func (s *Service) DueToday(ctx context.Context) ([]store.Task, error) {
	today := s.Today()
	done := false
	return s.repo.ListTasks(ctx, store.TaskFilter{DueFrom: today, DueTo: today, Completed: &done})
}

// Stats summarises every task.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	tasks, err := s.repo.ListTasks(ctx, store.TaskFilter{})
	if err != nil {
		return nil, err
	}
	return ComputeStats(tasks, s.Today()), nil
}

// ComputeStats summarises tasks as of today (YYYY-MM-DD).
func ComputeStats(tasks []store.Task, today string) *Stats {
	st := &Stats{
		Total:      len(tasks),
		ByCategory: map[store.Category]int{},
		ByPriority: map[store.Priority]int{},
		ByStatus:   map[store.Status]int{},
	}
	for _, c := range store.Categories {
		st.ByCategory[c] = 0
	}
	for _, p := range store.Priorities {
		st.ByPriority[p] = 0
	}
	for _, v := range store.Statuses {
		st.ByStatus[v] = 0
	}

	for i := range tasks {
		t := &tasks[i]
		st.ByCategory[t.Category]++
		st.ByPriority[t.Priority]++
		st.ByStatus[t.Status]++

		switch {
		case t.Completed:
			st.Completed++
		case t.IsOverdue(today):
			st.Overdue++
			st.Pending++
		default:
			st.Pending++
		}
		if !t.Completed && t.DueDate == today {
			st.DueToday++
		}
	}
	if st.Total > 0 {
		st.CompletionRate = float64(st.Completed) / float64(st.Total)
	}
	return st
}

// CalendarMonth groups the tasks due in month (YYYY-MM) by due date.
func (s *Service) CalendarMonth(ctx context.Context, month string) (map[string][]store.Task, error) {
	if month == "" {
		month = s.now().In(s.loc).Format(MonthLayout)
	}
	start, err := time.Parse(MonthLayout, month)
	if err != nil {
		return nil, &ValidationError{Fields: map[string]string{"month": "must be in YYYY-MM format"}}
	}
	end := start.AddDate(0, 1, -1)

	tasks, err := s.repo.ListTasks(ctx, store.TaskFilter{
		DueFrom: start.Format(DateLayout),
		DueTo:   end.Format(DateLayout),
	})
	if err != nil {
		return nil, err
	}

	days := map[string][]store.Task{}
	for _, t := range tasks {
		days[t.DueDate] = append(days[t.DueDate], t)
	}
	return days, nil
}

// SweepOverdue moves pending tasks that are past due to the overdue status.
func (s *Service) SweepOverdue(ctx context.Context) (int64, error) {
	n, err := s.repo.MarkOverdue(ctx, s.Today())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("marked tasks overdue", slog.Int64("count", n))
	}
	return n, nil
}

// setCompleted keeps completed and completedAt in lockstep.
func (s *Service) setCompleted(t *store.Task, completed bool) {
	if completed == t.Completed && (completed == (t.CompletedAt != nil)) {
		return
	}
	t.Completed = completed
	if completed {
		now := s.now().UTC()
		t.CompletedAt = &now
	} else {
		t.CompletedAt = nil
	}
}
