package instrumentation

import (
	"context"
	"testing"
	"time"
)

func TestMetrics_Record(t *testing.T) {
	provider := newTestProvider(t)
	metrics := provider.Metrics()
	ctx := context.Background()

	// None of these should panic.
	metrics.RecordHTTPRequest(ctx, "GET", "/api/tasks", 200, 10*time.Millisecond)
	metrics.RecordHTTPRequest(ctx, "POST", "/api/tasks", 400, time.Millisecond)
	metrics.RecordTaskMutation(ctx, OperationToggle, SourceMCP)
	metrics.RecordTemplateExecution(ctx, "schedule", StatusSuccess)
	metrics.RecordCalendarOperation(ctx, OperationList, StatusSuccess, 200*time.Millisecond)
	metrics.RecordSyncRun(ctx, StatusError, 2*time.Second)
	metrics.RecordSyncItems(ctx, "created", 3)
	metrics.RecordSyncItems(ctx, "pulled", 0)
	metrics.RecordToolInvocation(ctx, "tasks_list", StatusSuccess, 5*time.Millisecond)
}

func TestMetrics_NilAndZeroValue(t *testing.T) {
	ctx := context.Background()

	var nilMetrics *Metrics
	nilMetrics.RecordHTTPRequest(ctx, "GET", "/", 200, time.Millisecond)
	nilMetrics.RecordSyncRun(ctx, StatusSuccess, time.Second)
	nilMetrics.RecordToolInvocation(ctx, "x", StatusSuccess, time.Second)

	zero := &Metrics{}
	zero.RecordTaskMutation(ctx, OperationCreate, SourceAPI)
	zero.RecordCalendarOperation(ctx, OperationGet, StatusSuccess, time.Second)
	zero.RecordTemplateExecution(ctx, "manual", StatusError)
	zero.RecordSyncItems(ctx, "deleted", 1)
}
