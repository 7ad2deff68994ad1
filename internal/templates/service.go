package templates

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/insuratask/insuratask/internal/instrumentation"
	"github.com/insuratask/insuratask/internal/logging"
	"github.com/insuratask/insuratask/internal/store"
	"github.com/insuratask/insuratask/internal/task"
)

// Execution triggers.
const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
)

// Repository is the persistence the service needs.
type Repository interface {
	CreateTemplate(ctx context.Context, t *store.Template) error
	GetTemplate(ctx context.Context, id int64) (*store.Template, error)
	GetTemplateByName(ctx context.Context, name string) (*store.Template, error)
	ListTemplates(ctx context.Context, enabledOnly bool) ([]store.Template, error)
	UpdateTemplate(ctx context.Context, t *store.Template) error
	DeleteTemplate(ctx context.Context, id int64) error
	SetTemplateRun(ctx context.Context, id int64, lastRun, nextRun *time.Time) error
	CreateInstance(ctx context.Context, inst *store.TemplateInstance) error
	ListInstances(ctx context.Context, templateID int64, limit int) ([]store.TemplateInstance, error)
}

// TaskCreator creates the task a template run produces.
type TaskCreator interface {
	Create(ctx context.Context, in task.CreateInput) (*store.Task, error)
}

// Scheduler is notified when a template's schedule changes.
type Scheduler interface {
	Register(t store.Template) error
	Unregister(id int64)
}

// Input is the payload for creating or replacing a template.
type Input struct {
	Name          string            `json:"name" yaml:"name"`
	Title         string            `json:"title" yaml:"title"`
	Description   string            `json:"description" yaml:"description"`
	Category      store.Category    `json:"category" yaml:"category"`
	Priority      store.Priority    `json:"priority" yaml:"priority"`
	Client        string            `json:"client" yaml:"client"`
	Variables     map[string]string `json:"variables" yaml:"variables"`
	Recurrence    store.Recurrence  `json:"recurrence" yaml:"recurrence"`
	DueOffsetDays int               `json:"dueOffsetDays" yaml:"due_offset_days"`
	DueTime       string            `json:"dueTime" yaml:"due_time"`
	Enabled       *bool             `json:"enabled" yaml:"enabled"`
}

// Preview is a rendered template that has not been persisted.
type Preview struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	DueDate     string      `json:"dueDate"`
	CronSpec    string      `json:"cronSpec"`
	NextRuns    []time.Time `json:"nextRuns"`
	Unresolved  []string    `json:"unresolved"`
}

// Execution is the outcome of one template run.
type Execution struct {
	Instance *store.TemplateInstance `json:"instance"`
	Task     *store.Task             `json:"task,omitempty"`
}

// Config holds the optional collaborators of a Service.
type Config struct {
	Logger   *slog.Logger
	Metrics  *instrumentation.Metrics
	Location *time.Location
}

// Service manages templates and runs them.
type Service struct {
	repo      Repository
	tasks     TaskCreator
	scheduler Scheduler
	logger    *slog.Logger
	metrics   *instrumentation.Metrics
	loc       *time.Location
	now       func() time.Time
}

// NewService creates a Service.
func NewService(repo Repository, tasks TaskCreator, cfg Config) *Service {
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
		tasks:   tasks,
		logger:  logging.WithComponent(logger, "templates"),
		metrics: cfg.Metrics,
		loc:     loc,
		now:     time.Now,
	}
}

// SetScheduler attaches the scheduler kept in step with template writes.
func (s *Service) SetScheduler(sched Scheduler) {
	s.scheduler = sched
}

// SetClock overrides the service clock.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Location returns the timezone schedules are evaluated in.
func (s *Service) Location() *time.Location {
	return s.loc
}

func (s *Service) build(in Input, t *store.Template) error {
	verr := &task.ValidationError{Fields: map[string]string{}}

	t.Name = strings.TrimSpace(in.Name)
	t.Title = strings.TrimSpace(in.Title)
	t.Description = strings.TrimSpace(in.Description)
	t.Category = in.Category
	t.Priority = in.Priority
	t.Client = strings.TrimSpace(in.Client)
	t.Variables = in.Variables
	t.Recurrence = in.Recurrence
	t.DueOffsetDays = in.DueOffsetDays
	t.DueTime = strings.TrimSpace(in.DueTime)
	if in.Enabled != nil {
		t.Enabled = *in.Enabled
	}

	if t.Priority == "" {
		t.Priority = store.PriorityMedium
	}
	if t.Variables == nil {
		t.Variables = map[string]string{}
	}

	if t.Name == "" {
		verr.Fields["name"] = "is required"
	}
	if t.Title == "" {
		verr.Fields["title"] = "is required"
	} else if _, err := Render(t.Title, nil); err != nil {
		verr.Fields["title"] = err.Error()
	}
	if _, err := Render(t.Description, nil); err != nil {
		verr.Fields["description"] = err.Error()
	}
	if !t.Category.Valid() {
		verr.Fields["category"] = fmt.Sprintf("must be one of %v", store.Categories)
	}
	if !t.Priority.Valid() {
		verr.Fields["priority"] = fmt.Sprintf("must be one of %v", store.Priorities)
	}
	if _, err := CronSpec(t.Recurrence); err != nil {
		verr.Fields["recurrence"] = err.Error()
	}
	if t.DueOffsetDays < 0 {
		verr.Fields["dueOffsetDays"] = "must not be negative"
	}
	if t.DueTime != "" && !task.ValidTime(t.DueTime) {
		verr.Fields["dueTime"] = "must be a time in HH:MM format"
	}

	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

func (s *Service) refreshNextRun(t *store.Template) {
	t.NextRunAt = nil
	if !t.Enabled {
		return
	}
	next, err := NextRun(t.Recurrence, s.now(), s.loc)
	if err == nil {
		t.NextRunAt = next
	}
}

func (s *Service) reschedule(t *store.Template) {
	if s.scheduler == nil {
		return
	}
	if !t.Enabled {
		s.scheduler.Unregister(t.ID)
		return
	}
	if err := s.scheduler.Register(*t); err != nil {
		s.logger.Error("failed to schedule template", logging.TemplateID(t.ID), logging.Err(err))
	}
}

// Create validates and stores a new template and schedules it.
func (s *Service) Create(ctx context.Context, in Input) (*store.Template, error) {
	t := &store.Template{Enabled: true}
	if err := s.build(in, t); err != nil {
		return nil, err
	}
	s.refreshNextRun(t)
	if err := s.repo.CreateTemplate(ctx, t); err != nil {
		return nil, err
	}
	s.reschedule(t)
	return t, nil
}

// Get returns a template by id.
func (s *Service) Get(ctx context.Context, id int64) (*store.Template, error) {
	return s.repo.GetTemplate(ctx, id)
}

// List returns all templates.
func (s *Service) List(ctx context.Context) ([]store.Template, error) {
	return s.repo.ListTemplates(ctx, false)
}

// ListEnabled returns the templates that should be scheduled.
func (s *Service) ListEnabled(ctx context.Context) ([]store.Template, error) {
	return s.repo.ListTemplates(ctx, true)
}

// Update replaces a template definition and reschedules it. A nil Enabled
// keeps the stored value.
func (s *Service) Update(ctx context.Context, id int64, in Input) (*store.Template, error) {
	t, err := s.repo.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.build(in, t); err != nil {
		return nil, err
	}
	s.refreshNextRun(t)
	if err := s.repo.UpdateTemplate(ctx, t); err != nil {
		return nil, err
	}
	s.reschedule(t)
	return t, nil
}

// Delete removes a template and its schedule. Instances are kept.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.DeleteTemplate(ctx, id); err != nil {
		return err
	}
	if s.scheduler != nil {
		s.scheduler.Unregister(id)
	}
	return nil
}

// Instances returns a template's execution history, newest first.
func (s *Service) Instances(ctx context.Context, id int64, limit int) ([]store.TemplateInstance, error) {
	if _, err := s.repo.GetTemplate(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListInstances(ctx, id, limit)
}

// Preview renders in without persisting anything.
func (s *Service) Preview(in Input, overrides map[string]string) (*Preview, error) {
	t := &store.Template{Enabled: true}
	if err := s.build(in, t); err != nil {
		return nil, err
	}

	now := s.now().In(s.loc)
	vars := Variables(t, now, overrides)
	title, err := Render(t.Title, vars)
	if err != nil {
		return nil, err
	}
	description, err := Render(t.Description, vars)
	if err != nil {
		return nil, err
	}
	spec, err := CronSpec(t.Recurrence)
	if err != nil {
		return nil, err
	}
	runs, err := NextRuns(t.Recurrence, now, s.loc, 3)
	if err != nil {
		return nil, err
	}

	var unresolved []string
	for _, name := range append(Placeholders(t.Title), Placeholders(t.Description)...) {
		if _, ok := vars[name]; !ok {
			unresolved = append(unresolved, name)
		}
	}

	return &Preview{
		Title:       title,
		Description: description,
		DueDate:     DueDate(t, now),
		CronSpec:    spec,
		NextRuns:    runs,
		Unresolved:  unresolved,
	}, nil
}

// Execute runs template id once: it renders the placeholders, creates a task
// and records an instance. A failed task creation is recorded as a failed
// instance and returned as an error.
func (s *Service) Execute(ctx context.Context, id int64, overrides map[string]string, trigger string) (*Execution, error) {
	t, err := s.repo.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}

	logger := s.logger.With(logging.TemplateID(id), slog.String("trigger", trigger))
	now := s.now().In(s.loc)
	vars := Variables(t, now, overrides)

	inst := &store.TemplateInstance{
		ID:         uuid.NewString(),
		TemplateID: t.ID,
		Trigger:    trigger,
		ExecutedAt: now,
	}

	created, runErr := s.run(ctx, t, vars, inst)
	if runErr != nil {
		inst.Status = store.InstanceFailed
		inst.Error = runErr.Error()
	} else {
		inst.Status = store.InstanceCreated
		inst.TaskID = &created.ID
	}

	if err := s.repo.CreateInstance(ctx, inst); err != nil {
		return nil, errors.Join(runErr, fmt.Errorf("failed to record template instance: %w", err))
	}

	var next *time.Time
	if t.Enabled {
		next, _ = NextRun(t.Recurrence, now, s.loc)
	}
	if err := s.repo.SetTemplateRun(ctx, t.ID, &now, next); err != nil {
		logger.Warn("failed to record template run", logging.Err(err))
	}

	status := instrumentation.StatusSuccess
	if runErr != nil {
		status = instrumentation.StatusError
	}
	s.metrics.RecordTemplateExecution(ctx, trigger, status)

	if runErr != nil {
		logger.Error("template execution failed", logging.Err(runErr))
		return &Execution{Instance: inst}, runErr
	}
	logger.Info("template executed", logging.TaskID(created.ID))
	return &Execution{Instance: inst, Task: created}, nil
}

func (s *Service) run(ctx context.Context, t *store.Template, vars map[string]string, inst *store.TemplateInstance) (*store.Task, error) {
	title, err := Render(t.Title, vars)
	if err != nil {
		inst.Title = t.Title
		return nil, err
	}
	inst.Title = title

	description, err := Render(t.Description, vars)
	if err != nil {
		return nil, err
	}

	created, err := s.tasks.Create(task.WithSource(ctx, instrumentation.SourceTemplate), task.CreateInput{
		Title:       title,
		Description: description,
		Category:    t.Category,
		Client:      t.Client,
		Priority:    t.Priority,
		DueDate:     vars["dueDate"],
		DueTime:     t.DueTime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return created, nil
}

// InputFromTemplate converts a stored template back into an Input.
func InputFromTemplate(t store.Template) Input {
	enabled := t.Enabled
	return Input{
		Name:          t.Name,
		Title:         t.Title,
		Description:   t.Description,
		Category:      t.Category,
		Priority:      t.Priority,
		Client:        t.Client,
		Variables:     t.Variables,
		Recurrence:    t.Recurrence,
		DueOffsetDays: t.DueOffsetDays,
		DueTime:       t.DueTime,
		Enabled:       &enabled,
	}
}
