package instrumentation

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope for InsuraTask spans.
const TracerName = "github.com/insuratask/insuratask"

// Span attribute keys.
const (
	SpanAttrTool       = "mcp.tool"
	SpanAttrOperation  = "calendar.operation"
	SpanAttrCalendarID = "calendar.id"
	SpanAttrTaskID     = "insuratask.task_id"
	SpanAttrTemplateID = "insuratask.template_id"
)

// StartSpan starts a span with the given name and attributes. The caller ends it.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// StartToolSpan starts a server span for an MCP tool invocation.
func StartToolSpan(ctx context.Context, toolName string) (context.Context, trace.Span) {
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, "tool."+toolName,
		trace.WithAttributes(attribute.String(SpanAttrTool, toolName)),
		trace.WithSpanKind(trace.SpanKindServer),
	)
}

// StartCalendarSpan starts a client span for a Google Calendar API call.
func StartCalendarSpan(ctx context.Context, operation, calendarID string) (context.Context, trace.Span) {
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, "google.calendar."+operation,
		trace.WithAttributes(
			attribute.String(SpanAttrOperation, operation),
			attribute.String(SpanAttrCalendarID, calendarID),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// SetSpanError records err on the span. A nil err is ignored.
func SetSpanError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanSuccess sets the span status to OK.
func SetSpanSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// GetTraceID returns the trace id in ctx, or "" without a valid span.
func GetTraceID(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if sc.IsValid() {
		return sc.TraceID().String()
	}
	return ""
}
