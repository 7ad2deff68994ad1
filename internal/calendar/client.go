package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/insuratask/insuratask/internal/instrumentation"
)

// ErrEventNotFound is returned when an event does not exist or was purged.
var ErrEventNotFound = errors.New("calendar event not found")

// listPageSize is the page size used when listing events.
const listPageSize = 250

// EventService is the subset of the Calendar API used by the sync.
type EventService interface {
	ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]*calendar.Event, error)
	GetEvent(ctx context.Context, calendarID, eventID string) (*calendar.Event, error)
	InsertEvent(ctx context.Context, calendarID string, event *calendar.Event) (*calendar.Event, error)
	UpdateEvent(ctx context.Context, calendarID, eventID string, event *calendar.Event) (*calendar.Event, error)
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
	ListCalendars(ctx context.Context) ([]CalendarInfo, error)
}

// Client wraps the Google Calendar service
type Client struct {
	svc     *calendar.Service
	metrics *instrumentation.Metrics
}

var _ EventService = (*Client)(nil)

// NewClient creates a Calendar client that authenticates with httpClient.
func NewClient(ctx context.Context, httpClient *http.Client, metrics *instrumentation.Metrics) (*Client, error) {
	return NewClientWithOptions(ctx, metrics, option.WithHTTPClient(httpClient))
}

// NewClientWithOptions creates a Calendar client from raw client options.
func NewClientWithOptions(ctx context.Context, metrics *instrumentation.Metrics, opts ...option.ClientOption) (*Client, error) {
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}
	return &Client{svc: svc, metrics: metrics}, nil
}

// observe runs fn inside a client span and records its duration.
func (c *Client) observe(ctx context.Context, operation, calendarID string, fn func(ctx context.Context) error) error {
	ctx, span := instrumentation.StartCalendarSpan(ctx, operation, calendarID)
	defer span.End()

	start := time.Now()
	err := fn(ctx)

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	c.metrics.RecordCalendarOperation(ctx, operation, status, time.Since(start))
	return err
}

// ListEvents lists the single events of a calendar that overlap
// [timeMin, timeMax), including cancelled ones. All pages are fetched.
func (c *Client) ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]*calendar.Event, error) {
	var events []*calendar.Event
	err := c.observe(ctx, "list_events", calendarID, func(ctx context.Context) error {
		call := c.svc.Events.List(calendarID).
			TimeMin(timeMin.Format(time.RFC3339)).
			TimeMax(timeMax.Format(time.RFC3339)).
			SingleEvents(true).
			ShowDeleted(true).
			MaxResults(listPageSize)

		return call.Pages(ctx, func(page *calendar.Events) error {
			events = append(events, page.Items...)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", wrapNotFound(err))
	}
	return events, nil
}

// GetEvent retrieves a specific event by ID
func (c *Client) GetEvent(ctx context.Context, calendarID, eventID string) (*calendar.Event, error) {
	var event *calendar.Event
	err := c.observe(ctx, "get_event", calendarID, func(ctx context.Context) error {
		var err error
		event, err = c.svc.Events.Get(calendarID, eventID).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get event %s: %w", eventID, wrapNotFound(err))
	}
	return event, nil
}

// InsertEvent creates a new calendar event
func (c *Client) InsertEvent(ctx context.Context, calendarID string, event *calendar.Event) (*calendar.Event, error) {
	var created *calendar.Event
	err := c.observe(ctx, "insert_event", calendarID, func(ctx context.Context) error {
		var err error
		created, err = c.svc.Events.Insert(calendarID, event).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	return created, nil
}

// UpdateEvent replaces an existing calendar event
func (c *Client) UpdateEvent(ctx context.Context, calendarID, eventID string, event *calendar.Event) (*calendar.Event, error) {
	var updated *calendar.Event
	err := c.observe(ctx, "update_event", calendarID, func(ctx context.Context) error {
		var err error
		updated, err = c.svc.Events.Update(calendarID, eventID, event).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update event %s: %w", eventID, wrapNotFound(err))
	}
	return updated, nil
}

// DeleteEvent deletes a calendar event
func (c *Client) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	err := c.observe(ctx, "delete_event", calendarID, func(ctx context.Context) error {
		return c.svc.Events.Delete(calendarID, eventID).Context(ctx).Do()
	})
	if err != nil {
		return fmt.Errorf("failed to delete event %s: %w", eventID, wrapNotFound(err))
	}
	return nil
}

// ListCalendars lists all calendars accessible to the user
func (c *Client) ListCalendars(ctx context.Context) ([]CalendarInfo, error) {
	var calendars []CalendarInfo
	err := c.observe(ctx, "list_calendars", "", func(ctx context.Context) error {
		return c.svc.CalendarList.List().Pages(ctx, func(page *calendar.CalendarList) error {
			for _, entry := range page.Items {
				calendars = append(calendars, toCalendarInfo(entry))
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list calendars: %w", err)
	}
	return calendars, nil
}

// wrapNotFound maps 404 and 410 responses to ErrEventNotFound.
func wrapNotFound(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && (gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone) {
		return fmt.Errorf("%w: %s", ErrEventNotFound, gerr.Message)
	}
	return err
}
