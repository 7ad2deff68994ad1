package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	calendar "google.golang.org/api/calendar/v3"

	"github.com/insuratask/insuratask/internal/store"
)

func sampleTask() *store.Task {
	return &store.Task{
		ID:          42,
		Title:       "Renew Acme policy",
		Description: "Send renewal quote",
		Category:    store.CategoryPolicyRenewal,
		Client:      "Acme",
		Priority:    store.PriorityHigh,
		Status:      store.StatusPending,
		DueDate:     "2024-06-20",
	}
}

func TestTaskToEvent_AllDay(t *testing.T) {
	e, err := TaskToEvent(sampleTask(), EventOptions{})
	require.NoError(t, err)

	assert.Equal(t, "Renew Acme policy", e.Summary)
	assert.Equal(t, "Send renewal quote", e.Description)
	assert.Equal(t, "11", e.ColorId)
	assert.Equal(t, "2024-06-20", e.Start.Date)
	assert.Equal(t, "2024-06-21", e.End.Date)
	assert.Empty(t, e.Start.DateTime)
	assert.Equal(t, map[string]string{
		PropTaskID:   "42",
		PropCategory: "policy_renewal",
		PropPriority: "high",
		PropClient:   "Acme",
	}, e.ExtendedProperties.Private)
}

func TestTaskToEvent_Timed(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	tk := sampleTask()
	tk.DueTime = "14:30"
	tk.Completed = true
	tk.Priority = store.PriorityLow

	e, err := TaskToEvent(tk, EventOptions{Duration: 45 * time.Minute, Location: berlin})
	require.NoError(t, err)

	assert.Equal(t, "✓ Renew Acme policy", e.Summary)
	assert.Equal(t, "2", e.ColorId)
	assert.Equal(t, "2024-06-20T14:30:00+02:00", e.Start.DateTime)
	assert.Equal(t, "2024-06-20T15:15:00+02:00", e.End.DateTime)
	assert.Equal(t, "Europe/Berlin", e.Start.TimeZone)
	assert.Empty(t, e.Start.Date)
}

func TestTaskToEvent_Errors(t *testing.T) {
	_, err := TaskToEvent(nil, EventOptions{})
	assert.Error(t, err)

	tk := sampleTask()
	tk.DueDate = ""
	_, err = TaskToEvent(tk, EventOptions{})
	assert.Error(t, err)

	tk = sampleTask()
	tk.DueTime = "25:00"
	_, err = TaskToEvent(tk, EventOptions{})
	assert.Error(t, err)
}

func TestEventToTaskFields(t *testing.T) {
	tests := []struct {
		name    string
		event   *calendar.Event
		want    TaskFields
		wantErr bool
	}{
		{
			name: "all-day",
			event: &calendar.Event{
				Summary:     "Call Globex",
				Description: " about claim ",
				Start:       &calendar.EventDateTime{Date: "2024-07-01"},
			},
			want: TaskFields{Title: "Call Globex", Description: "about claim", DueDate: "2024-07-01"},
		},
		{
			name: "timed converted to location",
			event: &calendar.Event{
				Summary: "Meeting",
				Start:   &calendar.EventDateTime{DateTime: "2024-07-01T08:00:00Z"},
			},
			want: TaskFields{Title: "Meeting", DueDate: "2024-07-01", DueTime: "10:00"},
		},
		{
			name: "completed prefix stripped",
			event: &calendar.Event{
				Summary:            "✓ Renew Acme policy",
				Start:              &calendar.EventDateTime{Date: "2024-06-20"},
				ExtendedProperties: taskProps("42"),
			},
			want: TaskFields{Title: "Renew Acme policy", DueDate: "2024-06-20", Completed: true},
		},
		{
			name: "check mark without space is part of the title",
			event: &calendar.Event{
				Summary:            "✓Renew Acme policy",
				Start:              &calendar.EventDateTime{Date: "2024-06-20"},
				ExtendedProperties: taskProps("42"),
			},
			want: TaskFields{Title: "✓Renew Acme policy", DueDate: "2024-06-20"},
		},
		{
			name: "foreign event keeps its check mark",
			event: &calendar.Event{
				Summary: "✓ Team offsite",
				Start:   &calendar.EventDateTime{Date: "2024-06-20"},
			},
			want: TaskFields{Title: "✓ Team offsite", DueDate: "2024-06-20"},
		},
		{
			name:    "no start",
			event:   &calendar.Event{Summary: "x"},
			wantErr: true,
		},
		{
			name: "bad datetime",
			event: &calendar.Event{
				Summary: "x",
				Start:   &calendar.EventDateTime{DateTime: "yesterday"},
			},
			wantErr: true,
		},
	}

	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EventToTaskFields(tt.event, berlin)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func taskProps(id string) *calendar.EventExtendedProperties {
	return &calendar.EventExtendedProperties{Private: map[string]string{PropTaskID: id}}
}

func TestTagEvent(t *testing.T) {
	e := &calendar.Event{
		Id:      "ext1",
		Summary: "Lunch with Globex",
		ColorId: "7",
		Start:   &calendar.EventDateTime{DateTime: "2024-06-18T12:00:00Z"},
		End:     &calendar.EventDateTime{DateTime: "2024-06-18T13:30:00Z"},
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{"other": "x"},
			Shared:  map[string]string{"s": "y"},
		},
	}

	tagged := TagEvent(e, sampleTask())

	id, ok := TaskIDFromEvent(tagged)
	require.True(t, ok)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, "x", tagged.ExtendedProperties.Private["other"])
	assert.Equal(t, "policy_renewal", tagged.ExtendedProperties.Private[PropCategory])
	assert.Equal(t, map[string]string{"s": "y"}, tagged.ExtendedProperties.Shared)
	assert.Equal(t, "Lunch with Globex", tagged.Summary)
	assert.Equal(t, "7", tagged.ColorId)
	assert.Equal(t, "2024-06-18T13:30:00Z", tagged.End.DateTime)

	assert.False(t, HasTaskProperty(e), "e is not modified")
	assert.True(t, HasTaskProperty(TagEvent(&calendar.Event{}, sampleTask())))
}

func TestRoundTrip(t *testing.T) {
	tk := sampleTask()
	tk.DueTime = "09:15"
	tk.Completed = true

	e, err := TaskToEvent(tk, EventOptions{Location: time.UTC})
	require.NoError(t, err)

	fields, err := EventToTaskFields(e, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, FieldsOf(tk), fields)
}

func TestTaskIDFromEvent(t *testing.T) {
	e, err := TaskToEvent(sampleTask(), EventOptions{})
	require.NoError(t, err)

	id, ok := TaskIDFromEvent(e)
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)
	assert.True(t, HasTaskProperty(e))

	assert.False(t, HasTaskProperty(&calendar.Event{}))
	assert.False(t, HasTaskProperty(nil))
	_, ok = TaskIDFromEvent(&calendar.Event{ExtendedProperties: &calendar.EventExtendedProperties{
		Private: map[string]string{PropTaskID: "abc"},
	}})
	assert.False(t, ok)
}

func TestEventHelpers(t *testing.T) {
	assert.True(t, IsCancelled(&calendar.Event{Status: "cancelled"}))
	assert.False(t, IsCancelled(&calendar.Event{Status: "confirmed"}))

	assert.True(t, UpdatedAt(&calendar.Event{}).IsZero())
	assert.Equal(t, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		UpdatedAt(&calendar.Event{Updated: "2024-06-01T12:00:00.000Z"}).UTC())

	assert.Equal(t, "5", ColorForPriority(store.PriorityMedium))
	assert.Equal(t, "", ianaName(time.Local))
	assert.Equal(t, "UTC", ianaName(time.UTC))
}
