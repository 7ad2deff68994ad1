// Package calendar provides a client for the Google Calendar API and the
// conversion between tasks and calendar events.
//
// A task with a due date maps to one event. Tasks with a due time become timed
// events of a configurable length; other tasks become all-day events. The
// task id and its category, priority and client are stored as private
// extended properties so events created by this program can be recognised on
// later passes.
//
// Example usage:
//
//	client, err := calendar.NewClient(ctx, httpClient, metrics)
//	if err != nil {
//	    return err
//	}
//
//	event, err := calendar.TaskToEvent(task, calendar.EventOptions{Duration: 30 * time.Minute})
//	if err != nil {
//	    return err
//	}
//	created, err := client.InsertEvent(ctx, "primary", event)
package calendar
