package common

import (
	"context"
	"errors"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/insuratask/insuratask/internal/instrumentation"
	"github.com/insuratask/insuratask/internal/task"
)

// Instrumentation carries the optional metrics and audit sinks of the tools.
// Both may be nil.
type Instrumentation struct {
	Metrics *instrumentation.Metrics
	Audit   *instrumentation.AuditLogger
}

// InstrumentedToolHandler wraps a tool handler with tracing, metrics and
// audit logging. Task mutations made by the handler are tagged with the mcp
// source.
//
// Usage:
//
//	s.AddTool(myTool, common.InstrumentedToolHandler("my_tool", inst, handler))
func InstrumentedToolHandler(toolName string, inst Instrumentation, handler mcpserver.ToolHandlerFunc) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx = task.WithSource(ctx, instrumentation.SourceMCP)
		ctx, span := instrumentation.StartToolSpan(ctx, toolName)
		defer span.End()

		start := time.Now()
		event := instrumentation.NewAuditEvent("tool."+toolName, instrumentation.SourceMCP).
			WithSpanContext(ctx)

		result, err := handler(ctx, request)
		duration := time.Since(start)

		failure := err
		if failure == nil && result != nil && result.IsError {
			failure = errors.New(resultText(result))
		}

		status := instrumentation.StatusSuccess
		if failure != nil {
			status = instrumentation.StatusError
			instrumentation.SetSpanError(span, failure)
		} else {
			instrumentation.SetSpanSuccess(span)
		}

		inst.Metrics.RecordToolInvocation(ctx, toolName, status, duration)
		inst.Audit.Log(event.Complete(failure))

		return result, err
	}
}

// resultText returns the first text content of r.
func resultText(r *mcp.CallToolResult) string {
	for _, c := range r.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return "tool returned an error"
}
