// Package scheduler fires recurring work on cron schedules.
//
// Each enabled template gets one cron entry that executes the template with
// the "schedule" trigger. Named jobs, such as the periodic calendar sync and
// the overdue sweep, share the same cron instance. Job panics are recovered
// and logged through slog.
package scheduler
