package context_test

import (
	stdctx "context"
	"testing"
	"time"

	matchactx "github.com/Farewellez/matcha-schedule/pkg/context"
)

func TestTaggedValuesDoNotShadowEachOther(t *testing.T) {
	start := time.Now().Add(-time.Second)

	ctx := stdctx.Background()
	ctx = matchactx.WithCycle(ctx, 7)
	ctx = matchactx.WithOperation(ctx, "sweep")
	ctx = matchactx.WithStartTime(ctx, start)

	if got := matchactx.Cycle(ctx); got != 7 {
		t.Errorf("Cycle = %d, want 7", got)
	}
	if got := matchactx.Operation(ctx); got != "sweep" {
		t.Errorf("Operation = %q, want %q", got, "sweep")
	}
	if matchactx.Duration(ctx) <= 0 {
		t.Error("Duration should be positive for a past start time")
	}
}

func TestUntaggedContextReturnsZeroValues(t *testing.T) {
	ctx := stdctx.Background()

	if got := matchactx.Cycle(ctx); got != 0 {
		t.Errorf("Cycle on untagged context = %d, want 0", got)
	}
	if got := matchactx.Operation(ctx); got != "" {
		t.Errorf("Operation on untagged context = %q, want empty", got)
	}
	if got := matchactx.Duration(ctx); got != 0 {
		t.Errorf("Duration on untagged context = %v, want 0", got)
	}
}
