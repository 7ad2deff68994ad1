package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// fakeCalendarAPI serves the events endpoints of one calendar from memory.
// Lists return one event per page.
type fakeCalendarAPI struct {
	mu     sync.Mutex
	events []*calendar.Event
	nextID int
}

func (f *fakeCalendarAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	if r.URL.Path == "/users/me/calendarList" {
		_ = json.NewEncoder(w).Encode(calendar.CalendarList{Items: []*calendar.CalendarListEntry{
			{Id: "primary@example.com", Summary: "Work", Primary: true, AccessRole: "owner", TimeZone: "Europe/Berlin"},
		}})
		return
	}

	rest, ok := strings.CutPrefix(r.URL.Path, "/calendars/primary/events")
	if !ok {
		notFound(w)
		return
	}
	eventID := strings.TrimPrefix(rest, "/")

	switch {
	case r.Method == http.MethodGet && eventID == "":
		idx, _ := strconv.Atoi(r.URL.Query().Get("pageToken"))
		page := calendar.Events{}
		if idx < len(f.events) {
			page.Items = []*calendar.Event{f.events[idx]}
		}
		if idx+1 < len(f.events) {
			page.NextPageToken = strconv.Itoa(idx + 1)
		}
		_ = json.NewEncoder(w).Encode(page)
	case r.Method == http.MethodPost:
		var e calendar.Event
		_ = json.NewDecoder(r.Body).Decode(&e)
		f.nextID++
		e.Id = fmt.Sprintf("evt%d", f.nextID)
		e.Status = "confirmed"
		f.events = append(f.events, &e)
		_ = json.NewEncoder(w).Encode(e)
	case r.Method == http.MethodGet:
		if e := f.find(eventID); e != nil {
			_ = json.NewEncoder(w).Encode(e)
			return
		}
		notFound(w)
	case r.Method == http.MethodPut:
		e := f.find(eventID)
		if e == nil {
			notFound(w)
			return
		}
		var upd calendar.Event
		_ = json.NewDecoder(r.Body).Decode(&upd)
		upd.Id = e.Id
		*e = upd
		_ = json.NewEncoder(w).Encode(e)
	case r.Method == http.MethodDelete:
		for i, e := range f.events {
			if e.Id == eventID {
				f.events = append(f.events[:i], f.events[i+1:]...)
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		w.WriteHeader(http.StatusGone)
		_, _ = w.Write([]byte(`{"error":{"code":410,"message":"Resource has been deleted"}}`))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeCalendarAPI) find(id string) *calendar.Event {
	for _, e := range f.events {
		if e.Id == id {
			return e
		}
	}
	return nil
}

func notFound(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte(`{"error":{"code":404,"message":"Not Found"}}`))
}

func newTestClient(t *testing.T) (*Client, *fakeCalendarAPI) {
	t.Helper()
	api := &fakeCalendarAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	c, err := NewClientWithOptions(context.Background(), nil,
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)
	return c, api
}

func TestClient_EventLifecycle(t *testing.T) {
	c, api := newTestClient(t)
	ctx := context.Background()

	created, err := c.InsertEvent(ctx, "primary", &calendar.Event{
		Summary: "Renew Acme policy",
		Start:   &calendar.EventDateTime{Date: "2024-06-20"},
		End:     &calendar.EventDateTime{Date: "2024-06-21"},
	})
	require.NoError(t, err)
	assert.Equal(t, "evt1", created.Id)

	got, err := c.GetEvent(ctx, "primary", created.Id)
	require.NoError(t, err)
	assert.Equal(t, "Renew Acme policy", got.Summary)

	got.Summary = "✓ Renew Acme policy"
	updated, err := c.UpdateEvent(ctx, "primary", got.Id, got)
	require.NoError(t, err)
	assert.Equal(t, "✓ Renew Acme policy", updated.Summary)
	assert.Equal(t, "✓ Renew Acme policy", api.events[0].Summary)

	require.NoError(t, c.DeleteEvent(ctx, "primary", created.Id))
	assert.Empty(t, api.events)
}

func TestClient_NotFound(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	_, err := c.GetEvent(ctx, "primary", "missing")
	assert.ErrorIs(t, err, ErrEventNotFound)

	_, err = c.UpdateEvent(ctx, "primary", "missing", &calendar.Event{Summary: "x"})
	assert.ErrorIs(t, err, ErrEventNotFound)

	err = c.DeleteEvent(ctx, "primary", "missing")
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestClient_ListEventsFollowsPages(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := c.InsertEvent(ctx, "primary", &calendar.Event{
			Summary: fmt.Sprintf("event %d", i),
			Start:   &calendar.EventDateTime{Date: "2024-06-20"},
			End:     &calendar.EventDateTime{Date: "2024-06-21"},
		})
		require.NoError(t, err)
	}

	events, err := c.ListEvents(ctx, "primary", time.Now().AddDate(0, -1, 0), time.Now().AddDate(0, 1, 0))
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "event 2", events[2].Summary)
}

func TestClient_ListCalendars(t *testing.T) {
	c, _ := newTestClient(t)

	cals, err := c.ListCalendars(context.Background())
	require.NoError(t, err)
	require.Len(t, cals, 1)
	assert.Equal(t, CalendarInfo{
		ID:         "primary@example.com",
		Summary:    "Work",
		TimeZone:   "Europe/Berlin",
		Primary:    true,
		AccessRole: "owner",
	}, cals[0])
}

func TestToCalendarInfo_Nil(t *testing.T) {
	assert.Equal(t, CalendarInfo{}, toCalendarInfo(nil))
}
