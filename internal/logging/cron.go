package logging

import (
	"log/slog"
)

// CronLogger adapts an slog.Logger to the logger interface expected by
// github.com/robfig/cron/v3 (Info and Error with alternating key-value pairs).
type CronLogger struct {
	logger *slog.Logger
}

// NewCronLogger creates a CronLogger. If logger is nil, slog.Default() is used.
func NewCronLogger(logger *slog.Logger) *CronLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &CronLogger{logger: logger}
}

// Info logs routine scheduler messages at debug level; cron emits one per tick.
func (l *CronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

// Error logs scheduler errors, including recovered job panics.
func (l *CronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	args := append([]interface{}{Err(err)}, keysAndValues...)
	l.logger.Error("cron: "+msg, args...)
}
