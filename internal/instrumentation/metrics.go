package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	attrMethod    = "method"
	attrRoute     = "route"
	attrStatus    = "status"
	attrOperation = "operation"
	attrSource    = "source"
	attrTrigger   = "trigger"
	attrAction    = "action"
	attrTool      = "tool"
)

// Metrics records InsuraTask metrics. The zero value is a valid no-op
// recorder, and all methods are safe on a nil receiver.
type Metrics struct {
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	taskMutationsTotal      metric.Int64Counter
	templateExecutionsTotal metric.Int64Counter

	calendarOperationsTotal   metric.Int64Counter
	calendarOperationDuration metric.Float64Histogram

	syncRunsTotal   metric.Int64Counter
	syncItemsTotal  metric.Int64Counter
	syncRunDuration metric.Float64Histogram

	toolInvocationsTotal metric.Int64Counter
	toolDuration         metric.Float64Histogram
}

// NewMetrics creates every instrument on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	counter := func(name, desc, unit string) metric.Int64Counter {
		if err != nil {
			return nil
		}
		var c metric.Int64Counter
		c, err = meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
		if err != nil {
			err = fmt.Errorf("failed to create %s counter: %w", name, err)
		}
		return c
	}
	histogram := func(name, desc string, bounds ...float64) metric.Float64Histogram {
		if err != nil {
			return nil
		}
		var h metric.Float64Histogram
		h, err = meter.Float64Histogram(name,
			metric.WithDescription(desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(bounds...))
		if err != nil {
			err = fmt.Errorf("failed to create %s histogram: %w", name, err)
		}
		return h
	}

	m.httpRequestsTotal = counter("http_requests_total", "Total number of HTTP requests", "{request}")
	m.httpRequestDuration = histogram("http_request_duration_seconds", "HTTP request duration in seconds",
		0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0)

	m.taskMutationsTotal = counter("task_mutations_total", "Total number of task writes", "{mutation}")
	m.templateExecutionsTotal = counter("template_executions_total", "Total number of template executions", "{execution}")

	m.calendarOperationsTotal = counter("google_calendar_operations_total", "Total number of Google Calendar API calls", "{operation}")
	m.calendarOperationDuration = histogram("google_calendar_operation_duration_seconds", "Google Calendar API call duration in seconds",
		0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0)

	m.syncRunsTotal = counter("calendar_sync_runs_total", "Total number of calendar sync passes", "{run}")
	m.syncItemsTotal = counter("calendar_sync_items_total", "Total number of per-task calendar sync actions", "{item}")
	m.syncRunDuration = histogram("calendar_sync_duration_seconds", "Calendar sync pass duration in seconds",
		0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0, 120.0)

	m.toolInvocationsTotal = counter("mcp_tool_invocations_total", "Total number of MCP tool invocations", "{invocation}")
	m.toolDuration = histogram("mcp_tool_duration_seconds", "MCP tool execution duration in seconds",
		0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0)

	if err != nil {
		return nil, err
	}
	return m, nil
}

// RecordHTTPRequest records an HTTP request. route is the matched route
// pattern, not the raw path, to keep cardinality bounded.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, route string, statusCode int, duration time.Duration) {
	if m == nil || m.httpRequestsTotal == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(attrMethod, method),
		attribute.String(attrRoute, route),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	)
	m.httpRequestsTotal.Add(ctx, 1, attrs)
	m.httpRequestDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordTaskMutation records a task write (create, update, toggle, delete)
// and where it came from (api, mcp, template, sync).
func (m *Metrics) RecordTaskMutation(ctx context.Context, operation, source string) {
	if m == nil || m.taskMutationsTotal == nil {
		return
	}
	m.taskMutationsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrOperation, operation),
		attribute.String(attrSource, source),
	))
}

// RecordTemplateExecution records one template run.
func (m *Metrics) RecordTemplateExecution(ctx context.Context, trigger, status string) {
	if m == nil || m.templateExecutionsTotal == nil {
		return
	}
	m.templateExecutionsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrTrigger, trigger),
		attribute.String(attrStatus, status),
	))
}

// RecordCalendarOperation records a Google Calendar API call.
func (m *Metrics) RecordCalendarOperation(ctx context.Context, operation, status string, duration time.Duration) {
	if m == nil || m.calendarOperationsTotal == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	)
	m.calendarOperationsTotal.Add(ctx, 1, attrs)
	m.calendarOperationDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordSyncRun records a completed sync pass.
func (m *Metrics) RecordSyncRun(ctx context.Context, status string, duration time.Duration) {
	if m == nil || m.syncRunsTotal == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String(attrStatus, status))
	m.syncRunsTotal.Add(ctx, 1, attrs)
	m.syncRunDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordSyncItems adds n items for a sync action such as created or pulled.
func (m *Metrics) RecordSyncItems(ctx context.Context, action string, n int) {
	if m == nil || m.syncItemsTotal == nil || n == 0 {
		return
	}
	m.syncItemsTotal.Add(ctx, int64(n), metric.WithAttributes(attribute.String(attrAction, action)))
}

// RecordToolInvocation records an MCP tool invocation.
func (m *Metrics) RecordToolInvocation(ctx context.Context, toolName, status string, duration time.Duration) {
	if m == nil || m.toolInvocationsTotal == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	)
	m.toolInvocationsTotal.Add(ctx, 1, attrs)
	m.toolDuration.Record(ctx, duration.Seconds(), attrs)
}
