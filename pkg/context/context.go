// Package context carries scheduling-cycle tracing values through
// collaborator calls.
package context

import (
	"context"
	"time"
)

// Unexported key types prevent collisions with values set elsewhere.
type (
	cycleKey     struct{}
	operationKey struct{}
	startTimeKey struct{}
)

// WithCycle tags the context with the scheduling cycle number.
func WithCycle(parent context.Context, cycle int64) context.Context {
	return context.WithValue(parent, cycleKey{}, cycle)
}

// Cycle retrieves the scheduling cycle number, or 0 when untagged.
func Cycle(ctx context.Context) int64 {
	if n, ok := ctx.Value(cycleKey{}).(int64); ok {
		return n
	}
	return 0
}

// WithOperation tags the context with the current cycle step
// ("ingest", "rescore", "sweep", "assign").
func WithOperation(parent context.Context, operation string) context.Context {
	return context.WithValue(parent, operationKey{}, operation)
}

// Operation retrieves the current cycle step, or "" when untagged.
func Operation(ctx context.Context) string {
	if op, ok := ctx.Value(operationKey{}).(string); ok {
		return op
	}
	return ""
}

// WithStartTime records when the cycle began.
func WithStartTime(parent context.Context, startTime time.Time) context.Context {
	return context.WithValue(parent, startTimeKey{}, startTime)
}

// Duration returns the elapsed time since the recorded cycle start, or 0
// when untagged.
func Duration(ctx context.Context) time.Duration {
	if t, ok := ctx.Value(startTimeKey{}).(time.Time); ok {
		return time.Since(t)
	}
	return 0
}
