package calsync

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gcal "google.golang.org/api/calendar/v3"

	"github.com/insuratask/insuratask/internal/calendar"
	"github.com/insuratask/insuratask/internal/config"
	"github.com/insuratask/insuratask/internal/store"
	"github.com/insuratask/insuratask/internal/task"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fakeEvents is an in-memory calendar.EventService. Events foreign to
// InsuraTask are added to the primary calendar.
type fakeEvents struct {
	mu        sync.Mutex
	now       func() time.Time
	order     []string
	events    map[string]*gcal.Event
	calendars map[string]string // event id -> calendar id
	seq       int
}

func newFakeEvents(now func() time.Time) *fakeEvents {
	return &fakeEvents{now: now, events: map[string]*gcal.Event{}, calendars: map[string]string{}}
}

func (f *fakeEvents) stamp(e *gcal.Event) {
	e.Updated = f.now().UTC().Format(time.RFC3339Nano)
}

// lookup returns the event when it exists in calendarID. Callers hold mu.
func (f *fakeEvents) lookup(calendarID, eventID string) (*gcal.Event, bool) {
	e, ok := f.events[eventID]
	if !ok || f.calendars[eventID] != calendarID {
		return nil, false
	}
	return e, true
}

func (f *fakeEvents) ListEvents(_ context.Context, calendarID string, _, _ time.Time) ([]*gcal.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*gcal.Event
	for _, id := range f.order {
		if e, ok := f.lookup(calendarID, id); ok {
			c := *e
			out = append(out, &c)
		}
	}
	return out, nil
}

func (f *fakeEvents) GetEvent(_ context.Context, calendarID, eventID string) (*gcal.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.lookup(calendarID, eventID)
	if !ok {
		return nil, calendar.ErrEventNotFound
	}
	c := *e
	return &c, nil
}

func (f *fakeEvents) InsertEvent(_ context.Context, calendarID string, event *gcal.Event) (*gcal.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	c := *event
	c.Id = fmt.Sprintf("evt%d", f.seq)
	c.Status = "confirmed"
	f.stamp(&c)
	f.events[c.Id] = &c
	f.calendars[c.Id] = calendarID
	f.order = append(f.order, c.Id)
	out := c
	return &out, nil
}

func (f *fakeEvents) UpdateEvent(_ context.Context, calendarID, eventID string, event *gcal.Event) (*gcal.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.lookup(calendarID, eventID); !ok {
		return nil, calendar.ErrEventNotFound
	}
	c := *event
	c.Id = eventID
	f.stamp(&c)
	f.events[eventID] = &c
	out := c
	return &out, nil
}

func (f *fakeEvents) DeleteEvent(_ context.Context, calendarID, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.lookup(calendarID, eventID); !ok {
		return calendar.ErrEventNotFound
	}
	delete(f.events, eventID)
	delete(f.calendars, eventID)
	return nil
}

func (f *fakeEvents) ListCalendars(context.Context) ([]calendar.CalendarInfo, error) {
	return nil, nil
}

// edit changes an event as if a user did it in Google Calendar.
func (f *fakeEvents) edit(id string, fn func(e *gcal.Event)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.events[id]
	fn(e)
	f.stamp(e)
}

// add creates a foreign event.
func (f *fakeEvents) add(e *gcal.Event) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	e.Id = fmt.Sprintf("ext%d", f.seq)
	if e.Status == "" {
		e.Status = "confirmed"
	}
	f.stamp(e)
	f.events[e.Id] = e
	f.calendars[e.Id] = "primary"
	f.order = append(f.order, e.Id)
	return e.Id
}

func (f *fakeEvents) calendarOf(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calendars[id]
}

func (f *fakeEvents) get(id string) *gcal.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events[id]
}

func (f *fakeEvents) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

type fakeAuth struct {
	connected bool
	deleted   bool
}

func (a *fakeAuth) Configured() bool              { return true }
func (a *fakeAuth) HasToken(context.Context) bool { return a.connected }
func (a *fakeAuth) DeleteToken(context.Context) error {
	a.connected = false
	a.deleted = true
	return nil
}

type fixture struct {
	clock  *clock
	db     *store.DB
	tasks  *task.Service
	events *fakeEvents
	auth   *fakeAuth
	svc    *Service
}

func newFixture(t *testing.T, rule ConflictRule) *fixture {
	t.Helper()
	clk := &clock{t: time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)}

	db, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "sync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	db.SetNow(clk.now)

	tasks := task.NewService(db, task.Config{Location: time.UTC})
	tasks.SetClock(clk.now)

	events := newFakeEvents(clk.now)
	auth := &fakeAuth{connected: true}

	defaults := config.Default().Sync
	defaults.ConflictResolution = string(rule)

	svc := NewService(db, tasks, auth, func(context.Context) (calendar.EventService, error) {
		return events, nil
	}, Config{Location: time.UTC, Defaults: defaults})
	svc.SetClock(clk.now)

	return &fixture{clock: clk, db: db, tasks: tasks, events: events, auth: auth, svc: svc}
}

func (f *fixture) createTask(t *testing.T, title, due string) *store.Task {
	t.Helper()
	created, err := f.tasks.Create(context.Background(), task.CreateInput{
		Title:    title,
		Category: store.CategoryPolicyRenewal,
		Priority: store.PriorityHigh,
		Client:   "Acme",
		DueDate:  due,
	})
	require.NoError(t, err)
	return created
}

func (f *fixture) sync(t *testing.T) *Result {
	t.Helper()
	res, err := f.svc.Sync(context.Background())
	require.NoError(t, err)
	require.Empty(t, res.Errors)
	return res
}

func (f *fixture) mapping(t *testing.T, taskID int64) *store.Mapping {
	t.Helper()
	m, err := f.db.GetMapping(context.Background(), taskID)
	require.NoError(t, err)
	return m
}

func TestSync_NotConnected(t *testing.T) {
	f := newFixture(t, RuleManual)
	f.auth.connected = false

	_, err := f.svc.Sync(context.Background())
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestSync_InProgress(t *testing.T) {
	f := newFixture(t, RuleManual)

	ctx := context.Background()

	f.svc.running.Store(true)
	_, err := f.svc.Sync(ctx)
	assert.ErrorIs(t, err, ErrSyncInProgress)
	assert.ErrorIs(t, f.svc.Disconnect(ctx), ErrSyncInProgress)

	status, err := f.svc.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.Syncing)
	f.svc.running.Store(false)

	// looking at the status never blocks a pass
	status, err = f.svc.Status(ctx)
	require.NoError(t, err)
	assert.False(t, status.Syncing)
	_, err = f.svc.Sync(ctx)
	assert.NoError(t, err)
	assert.False(t, f.svc.running.Load())
}

func TestSync_PushesNewTasks(t *testing.T) {
	f := newFixture(t, RuleManual)
	ctx := context.Background()

	tk := f.createTask(t, "Renew Acme policy", "2024-06-20")
	_, err := f.tasks.Create(ctx, task.CreateInput{Title: "No date", Category: store.CategoryClaims})
	require.NoError(t, err)

	res := f.sync(t)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, f.events.count())

	m := f.mapping(t, tk.ID)
	assert.Equal(t, store.SyncStatusSynced, m.SyncStatus)
	assert.Equal(t, "primary", m.CalendarID)

	e := f.events.get(m.EventID)
	assert.Equal(t, "Renew Acme policy", e.Summary)
	assert.Equal(t, "2024-06-20", e.Start.Date)
	assert.Equal(t, "11", e.ColorId)

	// nothing changed, nothing written
	res = f.sync(t)
	assert.Equal(t, Result{StartedAt: res.StartedAt, Errors: []string{}}, *res)

	settings, err := f.svc.Settings(ctx)
	require.NoError(t, err)
	require.NotNil(t, settings.LastSyncAt)
	assert.True(t, f.clock.now().Equal(*settings.LastSyncAt))
}

func TestSync_LocalChangeUpdatesEvent(t *testing.T) {
	f := newFixture(t, RuleManual)
	ctx := context.Background()

	tk := f.createTask(t, "Renew Acme policy", "2024-06-20")
	f.sync(t)

	f.clock.advance(time.Minute)
	_, err := f.tasks.ToggleComplete(ctx, tk.ID)
	require.NoError(t, err)

	res := f.sync(t)
	assert.Equal(t, 1, res.Updated)

	e := f.events.get(f.mapping(t, tk.ID).EventID)
	assert.Equal(t, "✓ Renew Acme policy", e.Summary)

	res = f.sync(t)
	assert.Zero(t, res.Updated)
	assert.Zero(t, res.Pulled)
}

func TestSync_UpdateKeepsForeignEventFields(t *testing.T) {
	f := newFixture(t, RuleManual)
	ctx := context.Background()

	tk := f.createTask(t, "Renew Acme policy", "2024-06-20")
	f.sync(t)
	eventID := f.mapping(t, tk.ID).EventID

	f.events.edit(eventID, func(e *gcal.Event) { e.Location = "Acme HQ" })
	f.sync(t)

	f.clock.advance(time.Minute)
	title := "Renew Acme fleet policy"
	_, err := f.tasks.Update(ctx, tk.ID, task.UpdateInput{Title: &title})
	require.NoError(t, err)
	f.sync(t)

	e := f.events.get(eventID)
	assert.Equal(t, "Renew Acme fleet policy", e.Summary)
	assert.Equal(t, "Acme HQ", e.Location)
}

func TestSync_RemoteChangeIsPulled(t *testing.T) {
	f := newFixture(t, RuleManual)
	ctx := context.Background()

	tk := f.createTask(t, "Renew Acme policy", "2024-06-20")
	f.sync(t)
	eventID := f.mapping(t, tk.ID).EventID

	f.clock.advance(time.Minute)
	f.events.edit(eventID, func(e *gcal.Event) {
		e.Summary = "✓ Renew Acme policy (signed)"
		e.Start = &gcal.EventDateTime{DateTime: "2024-06-21T15:00:00Z"}
		e.End = &gcal.EventDateTime{DateTime: "2024-06-21T15:30:00Z"}
	})

	res := f.sync(t)
	assert.Equal(t, 1, res.Pulled)

	got, err := f.tasks.Get(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renew Acme policy (signed)", got.Title)
	assert.Equal(t, "2024-06-21", got.DueDate)
	assert.Equal(t, "15:00", got.DueTime)
	assert.True(t, got.Completed)
	assert.Equal(t, store.StatusCompleted, got.Status)
	assert.Equal(t, store.CategoryPolicyRenewal, got.Category)

	res = f.sync(t)
	assert.Zero(t, res.Pulled)
	assert.Zero(t, res.Updated)
}

func bothChanged(t *testing.T, f *fixture) (*store.Task, string) {
	t.Helper()
	ctx := context.Background()

	tk := f.createTask(t, "Renew Acme policy", "2024-06-20")
	f.sync(t)
	eventID := f.mapping(t, tk.ID).EventID

	f.clock.advance(time.Minute)
	f.events.edit(eventID, func(e *gcal.Event) { e.Summary = "Remote title" })
	f.clock.advance(time.Minute)
	title := "Local title"
	_, err := f.tasks.Update(ctx, tk.ID, task.UpdateInput{Title: &title})
	require.NoError(t, err)
	return tk, eventID
}

func TestSync_ConflictManual(t *testing.T) {
	f := newFixture(t, RuleManual)
	ctx := context.Background()
	tk, eventID := bothChanged(t, f)

	res := f.sync(t)
	assert.Equal(t, 1, res.Conflicts)
	assert.Zero(t, res.Updated)
	assert.Zero(t, res.Pulled)

	m := f.mapping(t, tk.ID)
	assert.Equal(t, store.SyncStatusConflict, m.SyncStatus)
	assert.NotEmpty(t, m.ConflictReason)

	// conflicts stay flagged on later passes
	res = f.sync(t)
	assert.Equal(t, 1, res.Conflicts)

	conflicts, err := f.svc.Conflicts(ctx)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, tk.ID, conflicts[0].TaskID)
	assert.Equal(t, "Local title", conflicts[0].Local.Title)
	require.NotNil(t, conflicts[0].Remote)
	assert.Equal(t, "Remote title", conflicts[0].Remote.Title)

	require.NoError(t, f.svc.Resolve(ctx, tk.ID, RuleLocal))
	assert.Equal(t, "Local title", f.events.get(eventID).Summary)
	assert.Equal(t, store.SyncStatusSynced, f.mapping(t, tk.ID).SyncStatus)

	assert.ErrorIs(t, f.svc.Resolve(ctx, tk.ID, RuleLocal), ErrNoConflict)
}

func TestResolve_Remote(t *testing.T) {
	f := newFixture(t, RuleManual)
	ctx := context.Background()
	tk, _ := bothChanged(t, f)
	f.sync(t)

	var verr *task.ValidationError
	assert.True(t, errors.As(f.svc.Resolve(ctx, tk.ID, RuleNewest), &verr))

	require.NoError(t, f.svc.Resolve(ctx, tk.ID, RuleRemote))
	got, err := f.tasks.Get(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, "Remote title", got.Title)

	assert.ErrorIs(t, f.svc.Resolve(ctx, 999, RuleRemote), store.ErrNotFound)
}

func TestSync_ConflictRules(t *testing.T) {
	tests := []struct {
		rule      ConflictRule
		wantTitle string
	}{
		{RuleLocal, "Local title"},
		{RuleRemote, "Remote title"},
		{RuleNewest, "Local title"},
	}

	for _, tt := range tests {
		t.Run(string(tt.rule), func(t *testing.T) {
			f := newFixture(t, tt.rule)
			tk, eventID := bothChanged(t, f)

			res := f.sync(t)
			assert.Zero(t, res.Conflicts)
			assert.Equal(t, 1, res.Updated+res.Pulled)

			got, err := f.tasks.Get(context.Background(), tk.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTitle, got.Title)
			assert.Equal(t, tt.wantTitle, f.events.get(eventID).Summary)
			assert.Equal(t, store.SyncStatusSynced, f.mapping(t, tk.ID).SyncStatus)
		})
	}
}

func TestSync_DeletedTaskRemovesEvent(t *testing.T) {
	f := newFixture(t, RuleManual)
	ctx := context.Background()

	tk := f.createTask(t, "Renew Acme policy", "2024-06-20")
	cleared := f.createTask(t, "Call Globex", "2024-06-21")
	f.sync(t)
	require.Equal(t, 2, f.events.count())

	require.NoError(t, f.tasks.Delete(ctx, tk.ID))
	f.clock.advance(time.Minute)
	empty := ""
	_, err := f.tasks.Update(ctx, cleared.ID, task.UpdateInput{DueDate: &empty})
	require.NoError(t, err)

	res := f.sync(t)
	assert.Equal(t, 2, res.Deleted)
	assert.Zero(t, f.events.count())

	_, err = f.db.GetMapping(ctx, tk.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSync_DeletedEventIsRecreated(t *testing.T) {
	f := newFixture(t, RuleManual)
	ctx := context.Background()

	tk := f.createTask(t, "Renew Acme policy", "2024-06-20")
	f.sync(t)
	oldID := f.mapping(t, tk.ID).EventID
	require.NoError(t, f.events.DeleteEvent(ctx, "primary", oldID))

	res := f.sync(t)
	assert.Equal(t, 1, res.Created)

	newID := f.mapping(t, tk.ID).EventID
	assert.NotEqual(t, oldID, newID)
	assert.NotNil(t, f.events.get(newID))
}

func TestSync_CancelledEventPullOnlyDropsMapping(t *testing.T) {
	f := newFixture(t, RuleManual)
	ctx := context.Background()

	tk := f.createTask(t, "Renew Acme policy", "2024-06-20")
	f.sync(t)
	f.events.edit(f.mapping(t, tk.ID).EventID, func(e *gcal.Event) { e.Status = calendar.StatusCancelled })

	settings, err := f.svc.Settings(ctx)
	require.NoError(t, err)
	settings.Direction = DirectionPull
	_, err = f.svc.UpdateSettings(ctx, settings)
	require.NoError(t, err)

	res := f.sync(t)
	assert.Zero(t, res.Created)
	_, err = f.db.GetMapping(ctx, tk.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	// pull-only never pushes new tasks
	f.createTask(t, "Call Globex", "2024-06-21")
	res = f.sync(t)
	assert.Zero(t, res.Created)
}

func TestSync_AdoptsTaggedEvent(t *testing.T) {
	f := newFixture(t, RuleManual)
	ctx := context.Background()

	tk := f.createTask(t, "Renew Acme policy", "2024-06-20")
	f.sync(t)
	eventID := f.mapping(t, tk.ID).EventID
	require.NoError(t, f.db.DeleteAllMappings(ctx))

	res := f.sync(t)
	assert.Zero(t, res.Created)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, eventID, f.mapping(t, tk.ID).EventID)
	assert.Equal(t, 1, f.events.count())
}

func TestSync_ImportsForeignEvents(t *testing.T) {
	f := newFixture(t, RuleManual)
	ctx := context.Background()

	settings, err := f.svc.Settings(ctx)
	require.NoError(t, err)
	settings.ImportEvents = true
	_, err = f.svc.UpdateSettings(ctx, settings)
	require.NoError(t, err)

	foreign := f.events.add(&gcal.Event{
		Summary: "Lunch with Globex",
		Start:   &gcal.EventDateTime{DateTime: "2024-06-18T12:00:00Z"},
		End:     &gcal.EventDateTime{DateTime: "2024-06-18T13:00:00Z"},
	})
	f.events.add(&gcal.Event{Summary: "Gone", Status: "cancelled", Start: &gcal.EventDateTime{Date: "2024-06-18"}})
	f.events.add(&gcal.Event{Summary: "", Start: &gcal.EventDateTime{Date: "2024-06-18"}})

	res := f.sync(t)
	assert.Equal(t, 1, res.Imported)

	tasks, err := f.tasks.List(ctx, store.TaskFilter{})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Lunch with Globex", tasks[0].Title)
	assert.Equal(t, "2024-06-18", tasks[0].DueDate)
	assert.Equal(t, "12:00", tasks[0].DueTime)
	assert.Equal(t, store.CategoryClientMeeting, tasks[0].Category)
	assert.Equal(t, foreign, f.mapping(t, tasks[0].ID).EventID)

	res = f.sync(t)
	assert.Zero(t, res.Imported)
	assert.Zero(t, res.Created)
}

func (f *fixture) updateSettings(t *testing.T, fn func(s *Settings)) {
	t.Helper()
	ctx := context.Background()
	s, err := f.svc.Settings(ctx)
	require.NoError(t, err)
	fn(&s)
	_, err = f.svc.UpdateSettings(ctx, s)
	require.NoError(t, err)
}

func (f *fixture) addLunch() string {
	return f.events.add(&gcal.Event{
		Summary: "Lunch with Globex",
		Start:   &gcal.EventDateTime{DateTime: "2024-06-18T12:00:00Z"},
		End:     &gcal.EventDateTime{DateTime: "2024-06-18T13:00:00Z"},
	})
}

func TestSync_ImportedEventIsTagged(t *testing.T) {
	f := newFixture(t, RuleManual)
	f.updateSettings(t, func(s *Settings) { s.ImportEvents = true })
	foreign := f.addLunch()

	res := f.sync(t)
	require.Equal(t, 1, res.Imported)
	assert.Zero(t, res.Updated)

	id, ok := calendar.TaskIDFromEvent(f.events.get(foreign))
	require.True(t, ok)
	assert.Equal(t, foreign, f.mapping(t, id).EventID)
	assert.Equal(t, "2024-06-18T13:00:00Z", f.events.get(foreign).End.DateTime, "the event keeps its own length")
}

func TestSync_DeletedImportedTaskStaysDeleted(t *testing.T) {
	f := newFixture(t, RuleManual)
	ctx := context.Background()
	f.updateSettings(t, func(s *Settings) { s.ImportEvents = true })
	foreign := f.addLunch()

	res := f.sync(t)
	require.Equal(t, 1, res.Imported)
	tasks, err := f.tasks.List(ctx, store.TaskFilter{})
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	require.NoError(t, f.tasks.Delete(ctx, tasks[0].ID))

	res = f.sync(t)
	assert.Equal(t, 1, res.Deleted)
	assert.Zero(t, res.Imported)
	assert.Nil(t, f.events.get(foreign))

	res = f.sync(t)
	assert.Zero(t, res.Created)
	assert.Zero(t, res.Imported)

	tasks, err = f.tasks.List(ctx, store.TaskFilter{})
	require.NoError(t, err)
	assert.Empty(t, tasks)
	assert.Zero(t, f.events.count())
}

func TestSync_DeletedImportedTaskStaysDeletedPullOnly(t *testing.T) {
	f := newFixture(t, RuleManual)
	ctx := context.Background()
	f.updateSettings(t, func(s *Settings) {
		s.ImportEvents = true
		s.Direction = DirectionPull
	})
	foreign := f.addLunch()

	res := f.sync(t)
	require.Equal(t, 1, res.Imported)
	assert.False(t, calendar.HasTaskProperty(f.events.get(foreign)), "pull-only never writes to the calendar")

	tasks, err := f.tasks.List(ctx, store.TaskFilter{})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.NoError(t, f.tasks.Delete(ctx, tasks[0].ID))

	for i := 0; i < 2; i++ {
		res = f.sync(t)
		assert.Zero(t, res.Imported)
	}
	assert.NotNil(t, f.events.get(foreign))

	tasks, err = f.tasks.List(ctx, store.TaskFilter{})
	require.NoError(t, err)
	assert.Empty(t, tasks)

	var ignored map[string]string
	ok, err := f.db.GetSetting(ctx, store.SettingSyncIgnoredEvents, &ignored)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, map[string]string{foreign: "2024-06-18"}, ignored)

	// once the event falls behind the window it is forgotten
	require.NoError(t, f.events.DeleteEvent(ctx, "primary", foreign))
	f.clock.advance(60 * 24 * time.Hour)
	f.sync(t)
	ignored = nil
	_, err = f.db.GetSetting(ctx, store.SettingSyncIgnoredEvents, &ignored)
	require.NoError(t, err)
	assert.Empty(t, ignored)
}

func TestSync_CalendarChangeMovesEvent(t *testing.T) {
	f := newFixture(t, RuleManual)

	tk := f.createTask(t, "Renew Acme policy", "2024-06-20")
	f.sync(t)
	oldID := f.mapping(t, tk.ID).EventID

	f.updateSettings(t, func(s *Settings) { s.CalendarID = "team@example.com" })

	res := f.sync(t)
	assert.Equal(t, 1, res.Created)
	assert.Nil(t, f.events.get(oldID), "the event is removed from the previous calendar")
	assert.Equal(t, 1, f.events.count())

	m := f.mapping(t, tk.ID)
	assert.Equal(t, "team@example.com", m.CalendarID)
	assert.Equal(t, "team@example.com", f.events.calendarOf(m.EventID))

	res = f.sync(t)
	assert.Zero(t, res.Created)
}

func TestSettings(t *testing.T) {
	f := newFixture(t, RuleManual)
	ctx := context.Background()

	s, err := f.svc.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "primary", s.CalendarID)
	assert.Equal(t, DirectionBoth, s.Direction)
	assert.Equal(t, RuleManual, s.ConflictResolution)
	assert.False(t, s.Enabled)
	assert.Equal(t, 30, s.EventDurationMinutes)

	var got []Settings
	f.svc.OnSettingsChange(func(s Settings) { got = append(got, s) })

	s.Enabled = true
	s.IntervalMinutes = 15
	s.CalendarID = "team@example.com"
	saved, err := f.svc.UpdateSettings(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, "team@example.com", saved.CalendarID)
	require.Len(t, got, 1)
	assert.Equal(t, 15, got[0].IntervalMinutes)

	reloaded, err := f.svc.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, saved, reloaded)

	bad := s
	bad.Direction = "sideways"
	bad.IntervalMinutes = 0
	_, err = f.svc.UpdateSettings(ctx, bad)
	var verr *task.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "direction")
	assert.Contains(t, verr.Fields, "intervalMinutes")
	assert.Len(t, got, 1)
}

func TestEventDuration(t *testing.T) {
	f := newFixture(t, RuleManual)
	ctx := context.Background()

	assert.Equal(t, 30*time.Minute, f.svc.EventDuration(ctx))
	f.updateSettings(t, func(s *Settings) { s.EventDurationMinutes = 45 })
	assert.Equal(t, 45*time.Minute, f.svc.EventDuration(ctx))
}

func TestRunScheduled(t *testing.T) {
	f := newFixture(t, RuleManual)
	ctx := context.Background()
	f.createTask(t, "Renew Acme policy", "2024-06-20")

	// periodic sync disabled by default
	require.NoError(t, f.svc.RunScheduled(ctx))
	assert.Zero(t, f.events.count())

	s, err := f.svc.Settings(ctx)
	require.NoError(t, err)
	s.Enabled = true
	s.IntervalMinutes = 5
	_, err = f.svc.UpdateSettings(ctx, s)
	require.NoError(t, err)

	require.NoError(t, f.svc.RunScheduled(ctx))
	assert.Equal(t, 1, f.events.count())

	f.svc.running.Store(true)
	assert.NoError(t, f.svc.RunScheduled(ctx))
	f.svc.running.Store(false)
}

func TestStatusAndDisconnect(t *testing.T) {
	f := newFixture(t, RuleManual)
	ctx := context.Background()

	f.createTask(t, "Renew Acme policy", "2024-06-20")
	f.sync(t)

	status, err := f.svc.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.Configured)
	assert.True(t, status.Connected)
	assert.Equal(t, 1, status.Mappings[store.SyncStatusSynced])

	require.NoError(t, f.svc.Disconnect(ctx))
	assert.True(t, f.auth.deleted)

	status, err = f.svc.Status(ctx)
	require.NoError(t, err)
	assert.False(t, status.Connected)
	assert.Empty(t, status.Mappings)
	assert.Equal(t, 1, f.events.count(), "events are left on the calendar")
}

func TestOverlay(t *testing.T) {
	existing := &gcal.Event{
		Id:       "evt1",
		Location: "HQ",
		ExtendedProperties: &gcal.EventExtendedProperties{
			Private: map[string]string{"other": "x"},
			Shared:  map[string]string{"s": "y"},
		},
	}
	rendered := &gcal.Event{
		Summary: "New",
		ColorId: "11",
		ExtendedProperties: &gcal.EventExtendedProperties{
			Private: map[string]string{calendar.PropTaskID: "7"},
		},
	}

	merged := overlay(existing, rendered)
	assert.Equal(t, "evt1", merged.Id)
	assert.Equal(t, "HQ", merged.Location)
	assert.Equal(t, "New", merged.Summary)
	assert.Equal(t, map[string]string{"other": "x", calendar.PropTaskID: "7"}, merged.ExtendedProperties.Private)
	assert.Equal(t, map[string]string{"s": "y"}, merged.ExtendedProperties.Shared)
	assert.Equal(t, map[string]string{"other": "x"}, existing.ExtendedProperties.Private, "existing is not modified")
}
