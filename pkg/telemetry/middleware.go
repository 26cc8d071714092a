package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Phase names used as span names by WrapPhase.
const (
	PhaseAllocate      = "taskplanner.allocate"
	PhaseSchedule      = "taskplanner.schedule"
	PhaseReallocate    = "taskplanner.reallocate"
	PhaseLocalSchedule = "taskplanner.local_schedule"
)

// WrapPhase runs fn inside a span named phase, attaching attrs and recording
// err (if any) before returning it unchanged. Every phase entry point in
// cmd/taskplanner calls through this instead of starting its own span, so
// span naming and error recording stay consistent across phases.
func WrapPhase(ctx context.Context, phase string, attrs []attribute.KeyValue, fn func(ctx context.Context) error) error {
	ctx, span := StartSpan(ctx, phase, WithAttributes(attrs...))
	defer span.End()

	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}
