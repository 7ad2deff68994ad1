package calsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	gcal "google.golang.org/api/calendar/v3"

	"github.com/insuratask/insuratask/internal/calendar"
	"github.com/insuratask/insuratask/internal/config"
	"github.com/insuratask/insuratask/internal/instrumentation"
	"github.com/insuratask/insuratask/internal/logging"
	"github.com/insuratask/insuratask/internal/store"
	"github.com/insuratask/insuratask/internal/task"
)

var (
	// ErrNotConnected is returned when no Google account is connected.
	ErrNotConnected = errors.New("google calendar is not connected")
	// ErrSyncInProgress is returned when a pass is already running.
	ErrSyncInProgress = errors.New("calendar sync already in progress")
	// ErrNoConflict is returned by Resolve for a task that is not in conflict.
	ErrNoConflict = errors.New("task has no sync conflict")
)

// Repository is the persistence the sync needs.
type Repository interface {
	GetTask(ctx context.Context, id int64) (*store.Task, error)
	ListTasks(ctx context.Context, f store.TaskFilter) ([]store.Task, error)

	GetMapping(ctx context.Context, taskID int64) (*store.Mapping, error)
	ListMappings(ctx context.Context, status store.SyncStatus) ([]store.Mapping, error)
	SaveMapping(ctx context.Context, m *store.Mapping) error
	DeleteMapping(ctx context.Context, taskID int64) error
	DeleteAllMappings(ctx context.Context) error
	CountMappings(ctx context.Context) (map[store.SyncStatus]int, error)

	GetSetting(ctx context.Context, key string, v any) (bool, error)
	PutSetting(ctx context.Context, key string, v any) error
}

// TaskWriter applies pulled changes through the task service so they are
// validated and audited like any other mutation.
type TaskWriter interface {
	Create(ctx context.Context, in task.CreateInput) (*store.Task, error)
	Update(ctx context.Context, id int64, in task.UpdateInput) (*store.Task, error)
}

// Authorizer reports and forgets the connected account.
type Authorizer interface {
	Configured() bool
	HasToken(ctx context.Context) bool
	DeleteToken(ctx context.Context) error
}

// EventsFunc returns an events client for the connected account.
type EventsFunc func(ctx context.Context) (calendar.EventService, error)

// Config holds the optional collaborators of a Service.
type Config struct {
	Logger   *slog.Logger
	Metrics  *instrumentation.Metrics
	Location *time.Location
	Defaults config.SyncConfig
}

// Service runs sync passes and manages their settings.
type Service struct {
	repo     Repository
	tasks    TaskWriter
	auth     Authorizer
	events   EventsFunc
	logger   *slog.Logger
	metrics  *instrumentation.Metrics
	loc      *time.Location
	defaults Settings
	now      func() time.Time

	// running is set for the duration of a pass, a resolve or a disconnect.
	running atomic.Bool

	hookMu sync.Mutex
	hooks  []func(Settings)
}

// NewService creates a Service.
func NewService(repo Repository, tasks TaskWriter, auth Authorizer, events EventsFunc, cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		repo:     repo,
		tasks:    tasks,
		auth:     auth,
		events:   events,
		logger:   logging.WithComponent(logger, "calsync"),
		metrics:  cfg.Metrics,
		loc:      loc,
		defaults: DefaultSettings(cfg.Defaults),
		now:      time.Now,
	}
}

// SetClock overrides the service clock.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Result summarises one pass.
type Result struct {
	Created    int       `json:"created"`
	Updated    int       `json:"updated"`
	Pulled     int       `json:"pulled"`
	Imported   int       `json:"imported"`
	Deleted    int       `json:"deleted"`
	Conflicts  int       `json:"conflicts"`
	Errors     []string  `json:"errors"`
	StartedAt  time.Time `json:"startedAt"`
	DurationMs int64     `json:"durationMs"`
}

func (r *Result) fail(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Status describes the connection and the mapping table.
type Status struct {
	Configured bool                     `json:"configured"`
	Connected  bool                     `json:"connected"`
	Syncing    bool                     `json:"syncing"`
	Settings   Settings                 `json:"settings"`
	Mappings   map[store.SyncStatus]int `json:"mappings"`
}

// Conflict is a task whose event diverged.
type Conflict struct {
	TaskID       int64                `json:"taskId"`
	EventID      string               `json:"eventId"`
	Reason       string               `json:"reason"`
	LastSyncedAt time.Time            `json:"lastSyncedAt"`
	Local        *store.Task          `json:"local"`
	Remote       *calendar.TaskFields `json:"remote,omitempty"`
}

// Connected reports whether a Google account is connected.
func (s *Service) Connected(ctx context.Context) bool {
	return s.auth != nil && s.auth.HasToken(ctx)
}

// Status returns the current connection state.
func (s *Service) Status(ctx context.Context) (*Status, error) {
	settings, err := s.Settings(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := s.repo.CountMappings(ctx)
	if err != nil {
		return nil, err
	}

	return &Status{
		Configured: s.auth != nil && s.auth.Configured(),
		Connected:  s.Connected(ctx),
		Syncing:    s.running.Load(),
		Settings:   settings,
		Mappings:   counts,
	}, nil
}

// Disconnect forgets the account and every mapping. Events already on the
// calendar are left alone. It fails with ErrSyncInProgress while a pass runs.
func (s *Service) Disconnect(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrSyncInProgress
	}
	defer s.running.Store(false)

	if s.auth != nil {
		if err := s.auth.DeleteToken(ctx); err != nil {
			return fmt.Errorf("failed to delete google token: %w", err)
		}
	}
	if err := s.repo.DeleteAllMappings(ctx); err != nil {
		return err
	}
	s.logger.Info("google calendar disconnected")
	return nil
}

// Conflicts lists mappings in conflict. The remote side is included when the
// event can be fetched.
func (s *Service) Conflicts(ctx context.Context) ([]Conflict, error) {
	mappings, err := s.repo.ListMappings(ctx, store.SyncStatusConflict)
	if err != nil {
		return nil, err
	}

	var events calendar.EventService
	if len(mappings) > 0 && s.Connected(ctx) {
		if events, err = s.events(ctx); err != nil {
			s.logger.Warn("conflict details unavailable", logging.Err(err))
			events = nil
		}
	}

	conflicts := make([]Conflict, 0, len(mappings))
	for _, m := range mappings {
		c := Conflict{
			TaskID:       m.TaskID,
			EventID:      m.EventID,
			Reason:       m.ConflictReason,
			LastSyncedAt: m.LastSyncedAt,
		}
		if t, err := s.repo.GetTask(ctx, m.TaskID); err == nil {
			c.Local = t
		}
		if events != nil {
			if e, err := events.GetEvent(ctx, m.CalendarID, m.EventID); err == nil {
				if f, err := calendar.EventToTaskFields(e, s.loc); err == nil {
					c.Remote = &f
				}
			}
		}
		conflicts = append(conflicts, c)
	}
	return conflicts, nil
}

// Resolve settles the conflict of taskID by keeping the local task
// (RuleLocal) or the remote event (RuleRemote).
func (s *Service) Resolve(ctx context.Context, taskID int64, keep ConflictRule) error {
	if keep != RuleLocal && keep != RuleRemote {
		return &task.ValidationError{Fields: map[string]string{"resolution": "must be local or remote"}}
	}
	if !s.running.CompareAndSwap(false, true) {
		return ErrSyncInProgress
	}
	defer s.running.Store(false)

	m, err := s.repo.GetMapping(ctx, taskID)
	if err != nil {
		return err
	}
	if m.SyncStatus != store.SyncStatusConflict {
		return ErrNoConflict
	}
	if !s.Connected(ctx) {
		return ErrNotConnected
	}

	settings, err := s.Settings(ctx)
	if err != nil {
		return err
	}
	events, err := s.events(ctx)
	if err != nil {
		return fmt.Errorf("failed to create calendar client: %w", err)
	}
	t, err := s.repo.GetTask(ctx, taskID)
	if err != nil {
		return err
	}

	p := s.newPass(ctx, events, settings, &Result{})
	e, err := events.GetEvent(ctx, m.CalendarID, m.EventID)
	if err != nil && !errors.Is(err, calendar.ErrEventNotFound) {
		return err
	}
	if e == nil || calendar.IsCancelled(e) {
		// The event is gone; only the task can survive.
		return p.insert(t, m)
	}

	if keep == RuleLocal {
		err = p.push(t, m, e)
	} else {
		err = p.pull(t, m, e)
	}
	if err != nil {
		return err
	}
	s.logger.Info("sync conflict resolved", logging.TaskID(taskID), slog.String("kept", string(keep)))
	return nil
}

// RunScheduled is the periodic job: it runs a pass when periodic sync is
// enabled and an account is connected, and ignores overlap with a manual
// pass.
func (s *Service) RunScheduled(ctx context.Context) error {
	settings, err := s.Settings(ctx)
	if err != nil {
		return err
	}
	if !settings.Enabled || !s.Connected(ctx) {
		return nil
	}
	_, err = s.Sync(ctx)
	if errors.Is(err, ErrSyncInProgress) {
		return nil
	}
	return err
}

// Sync runs one pass.
func (s *Service) Sync(ctx context.Context) (*Result, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrSyncInProgress
	}
	defer s.running.Store(false)

	start := s.now()
	res, err := s.sync(ctx, start)

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
	}
	s.metrics.RecordSyncRun(ctx, status, time.Since(start))

	if err != nil {
		s.logger.Error("calendar sync failed", logging.Err(err))
		return nil, err
	}

	res.DurationMs = s.now().Sub(start).Milliseconds()
	for action, n := range map[string]int{
		"created":   res.Created,
		"updated":   res.Updated,
		"pulled":    res.Pulled,
		"imported":  res.Imported,
		"deleted":   res.Deleted,
		"conflicts": res.Conflicts,
		"errors":    len(res.Errors),
	} {
		s.metrics.RecordSyncItems(ctx, action, n)
	}

	s.logger.Info("calendar sync finished",
		slog.Int("created", res.Created),
		slog.Int("updated", res.Updated),
		slog.Int("pulled", res.Pulled),
		slog.Int("imported", res.Imported),
		slog.Int("deleted", res.Deleted),
		slog.Int("conflicts", res.Conflicts),
		slog.Int("errors", len(res.Errors)))
	return res, nil
}

func (s *Service) sync(ctx context.Context, start time.Time) (*Result, error) {
	if !s.Connected(ctx) {
		return nil, ErrNotConnected
	}

	settings, err := s.Settings(ctx)
	if err != nil {
		return nil, err
	}
	events, err := s.events(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar client: %w", err)
	}

	res := &Result{StartedAt: start, Errors: []string{}}

	timeMin := start.AddDate(0, 0, -settings.LookbackDays)
	timeMax := start.AddDate(0, 0, settings.LookaheadDays)
	remote, err := events.ListEvents(ctx, settings.CalendarID, timeMin, timeMax)
	if err != nil {
		return nil, err
	}

	tasks, err := s.repo.ListTasks(ctx, store.TaskFilter{HasDueDate: true})
	if err != nil {
		return nil, err
	}
	mappings, err := s.repo.ListMappings(ctx, "")
	if err != nil {
		return nil, err
	}

	p := s.newPass(ctx, events, settings, res)
	p.index(remote, mappings)
	if err := p.loadIgnored(timeMin); err != nil {
		return nil, err
	}

	for i := range tasks {
		p.reconcile(&tasks[i])
	}
	p.removeOrphans(mappings)
	if settings.canPull() && settings.ImportEvents {
		p.importEvents(remote)
	}
	if err := p.saveIgnored(); err != nil {
		res.fail("record ignored events: %v", err)
	}

	if err := s.recordLastSync(ctx, start); err != nil {
		res.fail("record last sync: %v", err)
	}
	return res, nil
}

// taskEvent renders t for the configured calendar.
func (s *Service) taskEvent(t *store.Task, settings Settings) (*gcal.Event, error) {
	return calendar.TaskToEvent(t, calendar.EventOptions{
		Duration: settings.eventDuration(),
		Location: s.loc,
	})
}
