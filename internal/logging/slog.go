package logging

import (
	"fmt"
	"log/slog"
	"strconv"
)

// Common log attribute keys for consistent naming across the codebase.
const (
	KeyOperation  = "operation"
	KeyComponent  = "component"
	KeyTaskID     = "task_id"
	KeyTemplateID = "template_id"
	KeyEventID    = "event_id"
	KeyCalendarID = "calendar_id"
	KeyRequestID  = "request_id"
	KeyDuration   = "duration"
	KeyStatus     = "status"
	KeyError      = "error"
	KeyTool       = "tool"
)

// Status values for consistent logging.
// Duplicated from instrumentation to avoid an import cycle.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// WithOperation returns a logger with the operation attribute set.
func WithOperation(logger *slog.Logger, operation string) *slog.Logger {
	return logger.With(slog.String(KeyOperation, operation))
}

// WithComponent returns a logger with the component attribute set.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With(slog.String(KeyComponent, component))
}

// WithTool returns a logger with the tool attribute set.
func WithTool(logger *slog.Logger, tool string) *slog.Logger {
	return logger.With(slog.String(KeyTool, tool))
}

func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

func Tool(tool string) slog.Attr {
	return slog.String(KeyTool, tool)
}

func Status(status string) slog.Attr {
	return slog.String(KeyStatus, status)
}

// TaskID returns a slog attribute for a task id.
func TaskID(id int64) slog.Attr {
	return slog.String(KeyTaskID, strconv.FormatInt(id, 10))
}

// TemplateID returns a slog attribute for a template id.
func TemplateID(id int64) slog.Attr {
	return slog.String(KeyTemplateID, strconv.FormatInt(id, 10))
}

// EventID returns a slog attribute for a Google Calendar event id.
func EventID(id string) slog.Attr {
	return slog.String(KeyEventID, id)
}

func CalendarID(id string) slog.Attr {
	return slog.String(KeyCalendarID, id)
}

func RequestID(id string) slog.Attr {
	return slog.String(KeyRequestID, id)
}

// Err returns a slog attribute for an error.
// If err is nil, returns an empty Group attribute that slog omits from output,
// so Err(maybeNilErr) is always safe to pass.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}

// SanitizeToken returns a masked version of a token for logging.
// Only the length is reported; no token content is ever exposed.
func SanitizeToken(token string) string {
	if token == "" {
		return "<empty>"
	}
	return fmt.Sprintf("[token:%d chars]", len(token))
}
