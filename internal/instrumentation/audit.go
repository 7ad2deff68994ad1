package instrumentation

import (
	"context"
	"log/slog"
	"time"
)

// AuditEvent captures one auditable action: a task mutation, a template run,
// a calendar connection change, or an MCP tool call.
type AuditEvent struct {
	// Action, e.g. task.create, template.execute, calendar.disconnect, tool.tasks_list.
	Action string
	// Source is where the action came from (api, mcp, scheduler, sync).
	Source       string
	ResourceType string
	ResourceID   string

	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string
	TraceID   string
}

// NewAuditEvent starts timing an event.
func NewAuditEvent(action, source string) *AuditEvent {
	return &AuditEvent{
		Action:    action,
		Source:    source,
		StartTime: time.Now(),
	}
}

// WithResource sets the affected resource.
func (e *AuditEvent) WithResource(resourceType, resourceID string) *AuditEvent {
	e.ResourceType = resourceType
	e.ResourceID = resourceID
	return e
}

// WithSpanContext copies the trace id from ctx.
func (e *AuditEvent) WithSpanContext(ctx context.Context) *AuditEvent {
	e.TraceID = GetTraceID(ctx)
	return e
}

// Complete stops the timer and records the outcome.
func (e *AuditEvent) Complete(err error) *AuditEvent {
	e.Duration = time.Since(e.StartTime)
	e.Success = err == nil
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// Status returns "success" or "error".
func (e *AuditEvent) Status() string {
	if e.Success {
		return StatusSuccess
	}
	return StatusError
}

// LogAttrs returns the structured attributes for the event.
func (e *AuditEvent) LogAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("action", e.Action),
		slog.String("source", e.Source),
		slog.Duration("duration", e.Duration),
		slog.Bool("success", e.Success),
	}
	if e.ResourceType != "" {
		attrs = append(attrs, slog.String("resource_type", e.ResourceType))
	}
	if e.ResourceID != "" {
		attrs = append(attrs, slog.String("resource_id", e.ResourceID))
	}
	if e.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", e.TraceID))
	}
	if e.Error != "" {
		attrs = append(attrs, slog.String("error", e.Error))
	}
	return attrs
}

// AuditLogger writes audit events through slog. A nil *AuditLogger is a
// valid no-op logger.
type AuditLogger struct {
	logger  *slog.Logger
	enabled bool
}

// NewAuditLogger creates an AuditLogger. If logger is nil, slog.Default() is used.
func NewAuditLogger(logger *slog.Logger, enabled bool) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:  logger.With(slog.String("log_type", "audit")),
		enabled: enabled,
	}
}

// Log writes e at info level on success and warn level on failure.
func (al *AuditLogger) Log(e *AuditEvent) {
	if al == nil || !al.enabled || e == nil {
		return
	}
	args := make([]any, 0, 8)
	for _, attr := range e.LogAttrs() {
		args = append(args, attr)
	}
	if e.Success {
		al.logger.Info("audit", args...)
	} else {
		al.logger.Warn("audit", args...)
	}
}
