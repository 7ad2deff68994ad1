package calsync

import (
	"context"
	"errors"
	"time"

	gcal "google.golang.org/api/calendar/v3"

	"github.com/insuratask/insuratask/internal/calendar"
	"github.com/insuratask/insuratask/internal/instrumentation"
	"github.com/insuratask/insuratask/internal/logging"
	"github.com/insuratask/insuratask/internal/store"
	"github.com/insuratask/insuratask/internal/task"
)

const reasonBothChanged = "task and event both changed since the last sync"

// importCategory is assigned to tasks created from foreign events.
const importCategory = store.CategoryClientMeeting

// pass carries the state of one sync walk.
type pass struct {
	s        *Service
	ctx      context.Context
	events   calendar.EventService
	settings Settings
	res      *Result

	remote   map[string]*gcal.Event // by event id
	tagged   map[int64]*gcal.Event  // by the task id stored on the event
	mappings map[int64]*store.Mapping
	mapped   map[string]bool // event ids that have a mapping
	seen     map[int64]bool  // tasks reconciled in this pass
	dropped  map[string]bool // event ids whose mapping was removed in this pass

	// ignored holds events, by id with their date, that must not be
	// imported again because their task was removed while the event stays.
	ignored      map[string]string
	ignoredDirty bool
}

func (s *Service) newPass(ctx context.Context, events calendar.EventService, settings Settings, res *Result) *pass {
	return &pass{
		s:        s,
		ctx:      task.WithSource(ctx, instrumentation.SourceSync),
		events:   events,
		settings: settings,
		res:      res,
		remote:   map[string]*gcal.Event{},
		tagged:   map[int64]*gcal.Event{},
		mappings: map[int64]*store.Mapping{},
		mapped:   map[string]bool{},
		seen:     map[int64]bool{},
		dropped:  map[string]bool{},
		ignored:  map[string]string{},
	}
}

func (p *pass) index(remote []*gcal.Event, mappings []store.Mapping) {
	for _, e := range remote {
		p.remote[e.Id] = e
		if id, ok := calendar.TaskIDFromEvent(e); ok && !calendar.IsCancelled(e) {
			p.tagged[id] = e
		}
	}
	for i := range mappings {
		m := &mappings[i]
		p.mappings[m.TaskID] = m
		p.mapped[m.EventID] = true
	}
}

// reconcile brings one task with a due date and its event in step.
func (p *pass) reconcile(t *store.Task) {
	p.seen[t.ID] = true
	logger := p.s.logger.With(logging.TaskID(t.ID))

	m := p.mappings[t.ID]
	if m == nil || m.CalendarID != p.settings.CalendarID {
		if !p.settings.canPush() {
			return
		}
		if m != nil {
			// The sync calendar was switched; the event moves with the task.
			if err := p.deleteEvent(m); err != nil {
				p.res.fail("task %d: remove event %s from %s: %v", t.ID, m.EventID, m.CalendarID, err)
				return
			}
		}
		// An event we created earlier whose mapping was lost is adopted
		// instead of duplicated.
		if e := p.tagged[t.ID]; e != nil && !p.mapped[e.Id] {
			adopted := &store.Mapping{TaskID: t.ID, EventID: e.Id, CalendarID: p.settings.CalendarID}
			if err := p.push(t, adopted, e); err != nil {
				p.res.fail("task %d: adopt event %s: %v", t.ID, e.Id, err)
			}
			return
		}
		if err := p.insert(t, m); err != nil {
			p.res.fail("task %d: create event: %v", t.ID, err)
		}
		return
	}

	e, err := p.event(m)
	if err != nil {
		p.res.fail("task %d: fetch event %s: %v", t.ID, m.EventID, err)
		return
	}
	if e == nil || calendar.IsCancelled(e) {
		if p.settings.canPush() {
			logger.Debug("event missing, recreating", logging.EventID(m.EventID))
			if err := p.insert(t, m); err != nil {
				p.res.fail("task %d: recreate event: %v", t.ID, err)
			}
			return
		}
		if err := p.s.repo.DeleteMapping(p.ctx, t.ID); err != nil {
			p.res.fail("task %d: drop mapping: %v", t.ID, err)
		}
		return
	}

	if m.SyncStatus == store.SyncStatusConflict {
		if p.settings.ConflictResolution == RuleManual {
			p.res.Conflicts++
			return
		}
		if err := p.applyRule(t, m, e); err != nil {
			p.res.fail("task %d: resolve conflict: %v", t.ID, err)
		}
		return
	}

	remote, err := calendar.EventToTaskFields(e, p.s.loc)
	if err != nil {
		p.res.fail("task %d: read event %s: %v", t.ID, e.Id, err)
		return
	}
	same := calendar.FieldsOf(t) == remote
	taskChanged := t.UpdatedAt.After(m.LastSyncedAt)
	eventChanged := calendar.UpdatedAt(e).After(m.LastSyncedAt)

	switch {
	case taskChanged && eventChanged:
		switch {
		case same:
			err = p.markSynced(t, m, e)
		case p.settings.Direction == DirectionPush:
			err = p.push(t, m, e)
		case p.settings.Direction == DirectionPull:
			err = p.pull(t, m, e)
		default:
			err = p.applyRule(t, m, e)
		}
	case taskChanged:
		if !p.settings.canPush() {
			return
		}
		err = p.push(t, m, e)
	case eventChanged:
		switch {
		case same:
			err = p.markSynced(t, m, e)
		case p.settings.canPull():
			err = p.pull(t, m, e)
		}
	default:
		if m.SyncStatus != store.SyncStatusSynced {
			err = p.markSynced(t, m, e)
		}
	}
	if err != nil {
		p.res.fail("task %d: %v", t.ID, err)
	}
}

// event returns the mapped event, fetching it when it lies outside the
// listed window. A nil event means it no longer exists.
func (p *pass) event(m *store.Mapping) (*gcal.Event, error) {
	if e, ok := p.remote[m.EventID]; ok {
		return e, nil
	}
	e, err := p.events.GetEvent(p.ctx, m.CalendarID, m.EventID)
	if errors.Is(err, calendar.ErrEventNotFound) {
		return nil, nil
	}
	return e, err
}

// applyRule settles a divergence with the configured conflict rule, or flags
// the mapping when the rule is manual.
func (p *pass) applyRule(t *store.Task, m *store.Mapping, e *gcal.Event) error {
	switch p.settings.ConflictResolution {
	case RuleLocal:
		return p.push(t, m, e)
	case RuleRemote:
		return p.pull(t, m, e)
	case RuleNewest:
		if t.UpdatedAt.After(calendar.UpdatedAt(e)) {
			return p.push(t, m, e)
		}
		return p.pull(t, m, e)
	}

	m.SyncStatus = store.SyncStatusConflict
	m.ConflictReason = reasonBothChanged
	if err := p.s.repo.SaveMapping(p.ctx, m); err != nil {
		return err
	}
	p.res.Conflicts++
	p.s.logger.Warn("sync conflict", logging.TaskID(t.ID), logging.EventID(e.Id))
	return nil
}

func (p *pass) insert(t *store.Task, prev *store.Mapping) error {
	ev, err := p.s.taskEvent(t, p.settings)
	if err != nil {
		return err
	}
	created, err := p.events.InsertEvent(p.ctx, p.settings.CalendarID, ev)
	if err != nil {
		return err
	}

	m := &store.Mapping{TaskID: t.ID, CalendarID: p.settings.CalendarID}
	if prev != nil {
		m.CreatedAt = prev.CreatedAt
	}
	if err := p.save(m, created.Id, t, created); err != nil {
		return err
	}
	p.res.Created++
	return nil
}

// push writes the task onto its event. Fields the task does not own, such as
// location or attendees, are kept.
func (p *pass) push(t *store.Task, m *store.Mapping, e *gcal.Event) error {
	ev, err := p.s.taskEvent(t, p.settings)
	if err != nil {
		return err
	}
	updated, err := p.events.UpdateEvent(p.ctx, m.CalendarID, e.Id, overlay(e, ev))
	if err != nil {
		return err
	}
	if err := p.save(m, updated.Id, t, updated); err != nil {
		return err
	}
	p.res.Updated++
	return nil
}

// pull copies the event onto its task.
func (p *pass) pull(t *store.Task, m *store.Mapping, e *gcal.Event) error {
	f, err := calendar.EventToTaskFields(e, p.s.loc)
	if err != nil {
		return err
	}

	in := task.UpdateInput{
		Title:       &f.Title,
		Description: &f.Description,
		DueDate:     &f.DueDate,
		DueTime:     &f.DueTime,
		Completed:   &f.Completed,
	}
	if f.Completed != t.Completed {
		status := store.StatusPending
		if f.Completed {
			status = store.StatusCompleted
		}
		in.Status = &status
	}

	updated, err := p.s.tasks.Update(p.ctx, t.ID, in)
	if err != nil {
		return err
	}
	if err := p.save(m, e.Id, updated, e); err != nil {
		return err
	}
	p.res.Pulled++
	return nil
}

func (p *pass) markSynced(t *store.Task, m *store.Mapping, e *gcal.Event) error {
	return p.save(m, e.Id, t, e)
}

func (p *pass) save(m *store.Mapping, eventID string, t *store.Task, e *gcal.Event) error {
	m.EventID = eventID
	m.SyncStatus = store.SyncStatusSynced
	m.ConflictReason = ""
	m.LastSyncedAt = p.syncedAt(t, e)
	if err := p.s.repo.SaveMapping(p.ctx, m); err != nil {
		return err
	}
	p.mappings[m.TaskID] = m
	p.mapped[eventID] = true
	return nil
}

// syncedAt is the watermark stored after a write: no earlier than the last
// change on either side, so the write itself does not count as a change.
func (p *pass) syncedAt(t *store.Task, e *gcal.Event) time.Time {
	at := p.s.now().UTC()
	if t != nil && t.UpdatedAt.After(at) {
		at = t.UpdatedAt
	}
	if u := calendar.UpdatedAt(e); u.After(at) {
		at = u
	}
	return at
}

// removeOrphans deletes mappings, and their events, for tasks that were
// deleted or lost their due date.
func (p *pass) removeOrphans(mappings []store.Mapping) {
	for _, m := range mappings {
		if p.seen[m.TaskID] {
			continue
		}
		if _, err := p.s.repo.GetTask(p.ctx, m.TaskID); err != nil && !errors.Is(err, store.ErrNotFound) {
			p.res.fail("task %d: %v", m.TaskID, err)
			continue
		}

		if p.settings.canPush() {
			if err := p.deleteEvent(&m); err != nil {
				p.res.fail("task %d: delete event %s: %v", m.TaskID, m.EventID, err)
				continue
			}
		}
		if err := p.s.repo.DeleteMapping(p.ctx, m.TaskID); err != nil && !errors.Is(err, store.ErrNotFound) {
			p.res.fail("task %d: drop mapping: %v", m.TaskID, err)
			continue
		}
		delete(p.mapped, m.EventID)
		p.dropped[m.EventID] = true
		if !p.settings.canPush() {
			p.ignore(m.EventID)
		}
		p.res.Deleted++
	}
}

// deleteEvent removes the event of m from the calendar m recorded. An event
// that is already gone is not an error.
func (p *pass) deleteEvent(m *store.Mapping) error {
	err := p.events.DeleteEvent(p.ctx, m.CalendarID, m.EventID)
	if err != nil && !errors.Is(err, calendar.ErrEventNotFound) {
		return err
	}
	delete(p.mapped, m.EventID)
	return nil
}

// ignore keeps eventID out of later imports. The event date is kept so the
// entry can be forgotten once the event falls behind the sync window.
func (p *pass) ignore(eventID string) {
	var day string
	if e, ok := p.remote[eventID]; ok {
		if f, err := calendar.EventToTaskFields(e, p.s.loc); err == nil {
			day = f.DueDate
		}
	}
	p.ignored[eventID] = day
	p.ignoredDirty = true
}

// loadIgnored reads the ignored events and forgets those dated before
// windowStart.
func (p *pass) loadIgnored(windowStart time.Time) error {
	if _, err := p.s.repo.GetSetting(p.ctx, store.SettingSyncIgnoredEvents, &p.ignored); err != nil {
		return err
	}
	if p.ignored == nil {
		p.ignored = map[string]string{}
	}
	oldest := windowStart.In(p.s.loc).Format(task.DateLayout)
	for id, day := range p.ignored {
		if day != "" && day < oldest {
			delete(p.ignored, id)
			p.ignoredDirty = true
		}
	}
	return nil
}

func (p *pass) saveIgnored() error {
	if !p.ignoredDirty {
		return nil
	}
	return p.s.repo.PutSetting(p.ctx, store.SettingSyncIgnoredEvents, p.ignored)
}

// importEvents creates tasks for events that were not created by us and are
// not mapped yet. Events whose task was removed are left alone. When the
// pass may write to the calendar, an imported event is tagged with its task
// so later passes treat it like an event we created.
func (p *pass) importEvents(remote []*gcal.Event) {
	for _, e := range remote {
		if calendar.IsCancelled(e) || p.mapped[e.Id] || calendar.HasTaskProperty(e) {
			continue
		}
		if _, ok := p.ignored[e.Id]; ok || p.dropped[e.Id] {
			continue
		}
		f, err := calendar.EventToTaskFields(e, p.s.loc)
		if err != nil || f.Title == "" {
			continue
		}

		created, err := p.s.tasks.Create(p.ctx, task.CreateInput{
			Title:       f.Title,
			Description: f.Description,
			Category:    importCategory,
			Priority:    store.PriorityMedium,
			DueDate:     f.DueDate,
			DueTime:     f.DueTime,
			Completed:   f.Completed,
		})
		if err != nil {
			p.res.fail("event %s: import: %v", e.Id, err)
			continue
		}

		if p.settings.canPush() {
			tagged, err := p.events.UpdateEvent(p.ctx, p.settings.CalendarID, e.Id, calendar.TagEvent(e, created))
			if err != nil {
				p.res.fail("event %s: tag: %v", e.Id, err)
			} else {
				e = tagged
			}
		}

		m := &store.Mapping{TaskID: created.ID, CalendarID: p.settings.CalendarID}
		if err := p.save(m, e.Id, created, e); err != nil {
			p.res.fail("event %s: save mapping: %v", e.Id, err)
			continue
		}
		p.seen[created.ID] = true
		p.res.Imported++
	}
}

// overlay returns a copy of existing with the task-owned fields of rendered.
func overlay(existing, rendered *gcal.Event) *gcal.Event {
	merged := *existing
	merged.Summary = rendered.Summary
	merged.Description = rendered.Description
	merged.ColorId = rendered.ColorId
	merged.Start = rendered.Start
	merged.End = rendered.End

	private := map[string]string{}
	var shared map[string]string
	if existing.ExtendedProperties != nil {
		for k, v := range existing.ExtendedProperties.Private {
			private[k] = v
		}
		shared = existing.ExtendedProperties.Shared
	}
	for k, v := range rendered.ExtendedProperties.Private {
		private[k] = v
	}
	merged.ExtendedProperties = &gcal.EventExtendedProperties{Private: private, Shared: shared}
	return &merged
}
