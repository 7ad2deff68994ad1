package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/insuratask/insuratask/internal/logging"
	"github.com/insuratask/insuratask/internal/store"
	"github.com/insuratask/insuratask/internal/templates"
)

// TemplateRunner executes a template once.
type TemplateRunner interface {
	Execute(ctx context.Context, id int64, overrides map[string]string, trigger string) (*templates.Execution, error)
}

// TemplateSource lists the templates that should be scheduled.
type TemplateSource interface {
	ListEnabled(ctx context.Context) ([]store.Template, error)
}

// Config holds scheduler settings.
type Config struct {
	Logger   *slog.Logger
	Location *time.Location
	// JobTimeout bounds a single run. Zero means no limit.
	JobTimeout time.Duration
}

// Scheduler owns the cron instance and the entry ids of everything on it.
type Scheduler struct {
	cron       *cron.Cron
	runner     TemplateRunner
	source     TemplateSource
	logger     *slog.Logger
	loc        *time.Location
	jobTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	templates map[int64]cron.EntryID
	jobs      map[string]cron.EntryID
	started   bool
}

// New creates a Scheduler. It does not start the cron loop.
func New(runner TemplateRunner, source TemplateSource, cfg Config) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logging.WithComponent(logger, "scheduler")

	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}

	cronLogger := logging.NewCronLogger(logger)
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:       c,
		runner:     runner,
		source:     source,
		logger:     logger,
		loc:        loc,
		jobTimeout: cfg.JobTimeout,
		ctx:        ctx,
		cancel:     cancel,
		templates:  make(map[int64]cron.EntryID),
		jobs:       make(map[string]cron.EntryID),
	}
}

// Start begins firing entries in the background.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.cron.Start()
	s.logger.Info("scheduler started",
		slog.Int("templates", len(s.templates)),
		slog.Int("jobs", len(s.jobs)),
		slog.String("timezone", s.loc.String()))
}

// Stop stops the cron loop and waits for running jobs until ctx is done.
// Jobs still running when ctx expires see their context cancelled.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	defer s.cancel()

	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler did not stop in time: %w", ctx.Err())
	}
}

// Register schedules t, replacing any existing entry for it. A disabled
// template is unregistered instead.
func (s *Scheduler) Register(t store.Template) error {
	if !t.Enabled {
		s.Unregister(t.ID)
		return nil
	}

	spec, err := templates.CronSpec(t.Recurrence)
	if err != nil {
		return fmt.Errorf("template %d: %w", t.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.templates[t.ID]; ok {
		s.cron.Remove(old)
		delete(s.templates, t.ID)
	}

	id := t.ID
	entryID, err := s.cron.AddFunc(spec, func() { s.runTemplate(id) })
	if err != nil {
		return fmt.Errorf("failed to schedule template %d: %w", t.ID, err)
	}
	s.templates[t.ID] = entryID

	s.logger.Debug("template scheduled",
		logging.TemplateID(t.ID),
		slog.String("spec", spec))
	return nil
}

// Unregister removes the entry for template id, if any.
func (s *Scheduler) Unregister(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entryID, ok := s.templates[id]; ok {
		s.cron.Remove(entryID)
		delete(s.templates, id)
		s.logger.Debug("template unscheduled", logging.TemplateID(id))
	}
}

// Reload replaces all template entries with the currently enabled templates.
// Templates that fail to register are skipped and reported in the error.
func (s *Scheduler) Reload(ctx context.Context) (int, error) {
	list, err := s.source.ListEnabled(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list templates: %w", err)
	}

	s.mu.Lock()
	for id, entryID := range s.templates {
		s.cron.Remove(entryID)
		delete(s.templates, id)
	}
	s.mu.Unlock()

	var errs []error
	registered := 0
	for _, t := range list {
		if err := s.Register(t); err != nil {
			errs = append(errs, err)
			continue
		}
		registered++
	}

	s.logger.Info("templates loaded",
		slog.Int("registered", registered),
		slog.Int("failed", len(errs)))
	return registered, errors.Join(errs...)
}

// Next returns the next activation time of template id.
func (s *Scheduler) Next(id int64) (time.Time, bool) {
	s.mu.Lock()
	entryID, ok := s.templates[id]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	return s.next(entryID)
}

// AddJob registers a named job on spec. Runs of the same job never overlap;
// a tick that arrives while the previous run is still going is skipped.
func (s *Scheduler) AddJob(name, spec string, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.jobs[name]; ok {
		s.cron.Remove(old)
		delete(s.jobs, name)
	}

	cronLogger := logging.NewCronLogger(s.logger)
	job := cron.NewChain(cron.SkipIfStillRunning(cronLogger)).Then(cron.FuncJob(func() {
		s.runJob(name, fn)
	}))

	entryID, err := s.cron.AddJob(spec, job)
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}
	s.jobs[name] = entryID
	s.logger.Debug("job scheduled", slog.String("job", name), slog.String("spec", spec))
	return nil
}

// RemoveJob drops the named job if it is scheduled.
func (s *Scheduler) RemoveJob(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entryID, ok := s.jobs[name]; ok {
		s.cron.Remove(entryID)
		delete(s.jobs, name)
		s.logger.Debug("job removed", slog.String("job", name))
	}
}

// JobNext returns the next activation time of the named job.
func (s *Scheduler) JobNext(name string) (time.Time, bool) {
	s.mu.Lock()
	entryID, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	return s.next(entryID)
}

// EveryMinutes returns a cron spec firing every n minutes.
func EveryMinutes(n int) string {
	return fmt.Sprintf("@every %dm", n)
}

func (s *Scheduler) next(entryID cron.EntryID) (time.Time, bool) {
	e := s.cron.Entry(entryID)
	if !e.Valid() {
		return time.Time{}, false
	}
	if !e.Next.IsZero() {
		return e.Next, true
	}
	// Entries have no Next until the cron loop starts.
	return e.Schedule.Next(time.Now().In(s.loc)), true
}

func (s *Scheduler) jobContext() (context.Context, context.CancelFunc) {
	if s.jobTimeout > 0 {
		return context.WithTimeout(s.ctx, s.jobTimeout)
	}
	return context.WithCancel(s.ctx)
}

func (s *Scheduler) runTemplate(id int64) {
	ctx, cancel := s.jobContext()
	defer cancel()

	if _, err := s.runner.Execute(ctx, id, nil, templates.TriggerSchedule); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("scheduled template no longer exists", logging.TemplateID(id))
			s.Unregister(id)
		}
		// Execute logs and records failed runs itself.
		return
	}
}

func (s *Scheduler) runJob(name string, fn func(ctx context.Context) error) {
	ctx, cancel := s.jobContext()
	defer cancel()

	start := time.Now()
	logger := s.logger.With(slog.String("job", name))
	if err := fn(ctx); err != nil {
		logger.Error("scheduled job failed",
			logging.Err(err),
			slog.Duration(logging.KeyDuration, time.Since(start)))
		return
	}
	logger.Debug("scheduled job finished", slog.Duration(logging.KeyDuration, time.Since(start)))
}
