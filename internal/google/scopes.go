package google

import (
	calendar "google.golang.org/api/calendar/v3"
)

// DefaultOAuthScopes are the scopes requested when connecting an account.
// Calendar sync needs read and write access to events.
var DefaultOAuthScopes = []string{
	calendar.CalendarScope,
}
