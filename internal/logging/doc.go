// Package logging provides structured logging utilities for InsuraTask.
//
// Everything logs through log/slog. This package keeps attribute names
// consistent across the store, the scheduler, the calendar sync and the HTTP
// layer, builds the process logger from the configured level and format, and
// bridges third-party loggers (the cron scheduler) onto slog.
//
// # Usage Patterns
//
//	logger := logging.WithOperation(slog.Default(), "calsync.push")
//	logger.Info("event created",
//	    logging.TaskID(task.ID),
//	    logging.EventID(event.Id))
//
// OAuth tokens are never logged directly; use SanitizeToken.
package logging
