package instrumentation

import (
	"context"
	"errors"
	"testing"
)

func TestStartSpans(t *testing.T) {
	ctx := context.Background()

	ctx1, span := StartSpan(ctx, "calsync.sync")
	if ctx1 == nil || span == nil {
		t.Fatal("StartSpan returned nil")
	}
	SetSpanSuccess(span)
	span.End()

	_, span = StartToolSpan(ctx, "tasks_list")
	SetSpanError(span, errors.New("boom"))
	SetSpanError(span, nil)
	span.End()

	_, span = StartCalendarSpan(ctx, OperationCreate, "primary")
	span.End()
}

func TestGetTraceID_NoSpan(t *testing.T) {
	if id := GetTraceID(context.Background()); id != "" {
		t.Errorf("expected empty trace id, got %q", id)
	}
}
