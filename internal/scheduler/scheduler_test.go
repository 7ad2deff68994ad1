package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insuratask/insuratask/internal/store"
	"github.com/insuratask/insuratask/internal/templates"
)

type call struct {
	id      int64
	trigger string
}

type fakeRunner struct {
	mu    sync.Mutex
	calls []call
	err   error
}

func (f *fakeRunner) Execute(_ context.Context, id int64, _ map[string]string, trigger string) (*templates.Execution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{id: id, trigger: trigger})
	if f.err != nil {
		return nil, f.err
	}
	return &templates.Execution{Instance: &store.TemplateInstance{TemplateID: id}}, nil
}

type fakeSource struct {
	list []store.Template
	err  error
}

func (f *fakeSource) ListEnabled(context.Context) ([]store.Template, error) {
	return f.list, f.err
}

func daily(id int64, at string) store.Template {
	return store.Template{
		ID:         id,
		Name:       "t",
		Enabled:    true,
		Recurrence: store.Recurrence{Type: store.RecurrenceDaily, Time: at},
	}
}

func newTestScheduler(runner *fakeRunner, source *fakeSource) *Scheduler {
	return New(runner, source, Config{Location: time.UTC})
}

func TestRegisterAndNext(t *testing.T) {
	s := newTestScheduler(&fakeRunner{}, &fakeSource{})

	require.NoError(t, s.Register(daily(1, "07:30")))

	next, ok := s.Next(1)
	require.True(t, ok)
	assert.Equal(t, 7, next.Hour())
	assert.Equal(t, 30, next.Minute())
	assert.True(t, next.After(time.Now()))

	// re-registering replaces the entry
	require.NoError(t, s.Register(daily(1, "18:00")))
	next, ok = s.Next(1)
	require.True(t, ok)
	assert.Equal(t, 18, next.Hour())
	assert.Len(t, s.cron.Entries(), 1)

	_, ok = s.Next(2)
	assert.False(t, ok)
}

func TestRegister_DisabledUnregisters(t *testing.T) {
	s := newTestScheduler(&fakeRunner{}, &fakeSource{})
	require.NoError(t, s.Register(daily(1, "07:30")))

	tpl := daily(1, "07:30")
	tpl.Enabled = false
	require.NoError(t, s.Register(tpl))

	_, ok := s.Next(1)
	assert.False(t, ok)
	assert.Empty(t, s.cron.Entries())
}

func TestRegister_InvalidRecurrence(t *testing.T) {
	s := newTestScheduler(&fakeRunner{}, &fakeSource{})
	tpl := daily(1, "")
	tpl.Recurrence = store.Recurrence{Type: store.RecurrenceCustom, Cron: "not a cron"}

	assert.Error(t, s.Register(tpl))
	assert.Empty(t, s.cron.Entries())
}

func TestUnregister(t *testing.T) {
	s := newTestScheduler(&fakeRunner{}, &fakeSource{})
	require.NoError(t, s.Register(daily(1, "07:30")))

	s.Unregister(1)
	s.Unregister(1)

	assert.Empty(t, s.cron.Entries())
}

func TestReload(t *testing.T) {
	bad := daily(3, "")
	bad.Recurrence = store.Recurrence{Type: store.RecurrenceMonthly}
	source := &fakeSource{list: []store.Template{daily(1, "08:00"), daily(2, "09:00"), bad}}
	s := newTestScheduler(&fakeRunner{}, source)

	require.NoError(t, s.Register(daily(99, "10:00")))

	n, err := s.Reload(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 2, n)

	_, ok := s.Next(99)
	assert.False(t, ok, "stale entries are dropped")
	_, ok = s.Next(1)
	assert.True(t, ok)
	_, ok = s.Next(2)
	assert.True(t, ok)

	source.err = errors.New("db down")
	_, err = s.Reload(context.Background())
	assert.ErrorContains(t, err, "db down")
}

func TestTemplateEntryExecutesWithScheduleTrigger(t *testing.T) {
	runner := &fakeRunner{}
	s := newTestScheduler(runner, &fakeSource{})
	require.NoError(t, s.Register(daily(5, "07:30")))

	s.cron.Entry(s.templates[5]).WrappedJob.Run()

	require.Len(t, runner.calls, 1)
	assert.Equal(t, call{id: 5, trigger: templates.TriggerSchedule}, runner.calls[0])
}

func TestTemplateEntry_MissingTemplateIsUnregistered(t *testing.T) {
	runner := &fakeRunner{err: store.ErrNotFound}
	s := newTestScheduler(runner, &fakeSource{})
	require.NoError(t, s.Register(daily(5, "07:30")))

	s.cron.Entry(s.templates[5]).WrappedJob.Run()

	_, ok := s.Next(5)
	assert.False(t, ok)
}

func TestAddJob(t *testing.T) {
	s := newTestScheduler(&fakeRunner{}, &fakeSource{})

	var runs int
	require.NoError(t, s.AddJob("sync", EveryMinutes(15), func(context.Context) error {
		runs++
		return errors.New("remote unavailable")
	}))

	next, ok := s.JobNext("sync")
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), next, time.Minute)

	s.cron.Entry(s.jobs["sync"]).WrappedJob.Run()
	assert.Equal(t, 1, runs)

	// replacing keeps a single entry
	require.NoError(t, s.AddJob("sync", EveryMinutes(5), func(context.Context) error { return nil }))
	assert.Len(t, s.cron.Entries(), 1)

	assert.Error(t, s.AddJob("bad", "61 * * * *", func(context.Context) error { return nil }))

	_, ok = s.JobNext("missing")
	assert.False(t, ok)

	s.RemoveJob("sync")
	assert.Empty(t, s.cron.Entries())
	s.RemoveJob("sync")
}

func TestJobPanicIsRecovered(t *testing.T) {
	s := newTestScheduler(&fakeRunner{}, &fakeSource{})
	require.NoError(t, s.AddJob("boom", EveryMinutes(1), func(context.Context) error {
		panic("boom")
	}))

	assert.NotPanics(t, func() {
		s.cron.Entry(s.jobs["boom"]).WrappedJob.Run()
	})
}

func TestStartStop(t *testing.T) {
	s := newTestScheduler(&fakeRunner{}, &fakeSource{})
	require.NoError(t, s.Register(daily(1, "07:30")))

	s.Start()
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.Error(t, s.ctx.Err(), "job context is cancelled after stop")
}

func TestEveryMinutes(t *testing.T) {
	assert.Equal(t, "@every 30m", EveryMinutes(30))
}
