// Package instrumentation provides OpenTelemetry metrics, tracing and audit
// logging for InsuraTask.
//
// # Metrics
//
// HTTP:
//   - http_requests_total: requests by method, route and status
//   - http_request_duration_seconds: request latency
//
// Tasks and templates:
//   - task_mutations_total: task writes by operation and source
//   - template_executions_total: template runs by trigger and status
//
// Google Calendar:
//   - google_calendar_operations_total: API calls by operation and status
//   - google_calendar_operation_duration_seconds: API call latency
//   - calendar_sync_runs_total: sync passes by status
//   - calendar_sync_items_total: per-task sync actions (created, updated, pulled, ...)
//   - calendar_sync_duration_seconds: sync pass latency
//
// MCP:
//   - mcp_tool_invocations_total, mcp_tool_duration_seconds
//
// Prometheus is the default exporter and is served by the dedicated metrics
// server (see internal/server). OTLP and stdout exporters are available for
// both metrics and traces.
//
// # Configuration
//
//   - INSTRUMENTATION_ENABLED (default: true)
//   - METRICS_EXPORTER: prometheus, otlp, stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout, none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_EXPORTER_OTLP_INSECURE
//   - OTEL_TRACES_SAMPLER_ARG (default: 0.1)
//   - OTEL_SERVICE_NAME (default: insuratask)
//   - AUDIT_LOGGING_ENABLED (default: true)
package instrumentation
