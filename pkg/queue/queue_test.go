package queue_test

import (
	"testing"
	"time"

	"github.com/Farewellez/matcha-schedule/pkg/mocks"
	"github.com/Farewellez/matcha-schedule/pkg/priority"
	"github.com/Farewellez/matcha-schedule/pkg/queue"
	"github.com/Farewellez/matcha-schedule/pkg/types"
)

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestQueue(weights types.PriorityWeights) (*queue.ProductionQueue, *mocks.FixedClock) {
	clock := mocks.NewFixedClock(testNow)
	engine := priority.NewEngine(weights, clock)
	return queue.New(engine, nil), clock
}

func order(id int64, createdAt time.Time, deadline time.Time, quantity int) *types.Order {
	return &types.Order{
		ID:            id,
		CreatedAt:     createdAt,
		Deadline:      deadline,
		TotalQuantity: quantity,
	}
}

func TestPopHighestEmptyQueue(t *testing.T) {
	q, _ := newTestQueue(types.DefaultPriorityWeights())

	if got := q.PopHighest(); got != nil {
		t.Errorf("PopHighest on empty queue = %v, want nil", got)
	}
	if q.Len() != 0 {
		t.Errorf("Len = %d, want 0", q.Len())
	}
}

func TestPopOrderByScore(t *testing.T) {
	q, _ := newTestQueue(types.DefaultPriorityWeights())

	created := testNow.Add(-time.Hour)
	q.Add(order(1, created, testNow.Add(8*time.Hour), 5))
	q.Add(order(2, created, testNow.Add(10*time.Minute), 5))
	q.Add(order(3, created, testNow.Add(2*time.Hour), 5))

	want := []int64{2, 3, 1}
	for i, id := range want {
		got := q.PopHighest()
		if got == nil || got.ID != id {
			t.Fatalf("pop %d: got %v, want order %d", i, got, id)
		}
	}
}

func TestTieBreakByCreationTime(t *testing.T) {
	// Zero weights force equal scores so only tie-breaks decide.
	q, _ := newTestQueue(types.PriorityWeights{})

	deadline := testNow.Add(time.Hour)
	q.Add(order(7, testNow.Add(-time.Minute), deadline, 1))
	q.Add(order(3, testNow.Add(-time.Hour), deadline, 1))

	if got := q.PopHighest(); got.ID != 3 {
		t.Errorf("first pop = order %d, want earlier-created order 3", got.ID)
	}
}

func TestTieBreakByID(t *testing.T) {
	q, _ := newTestQueue(types.PriorityWeights{})

	created := testNow.Add(-time.Hour)
	deadline := testNow.Add(time.Hour)
	q.Add(order(9, created, deadline, 1))
	q.Add(order(4, created, deadline, 1))

	if got := q.PopHighest(); got.ID != 4 {
		t.Errorf("first pop = order %d, want lower id 4", got.ID)
	}
}

func TestAddIdempotent(t *testing.T) {
	q, _ := newTestQueue(types.DefaultPriorityWeights())

	o := order(1, testNow.Add(-time.Hour), testNow.Add(time.Hour), 2)
	q.Add(o)
	q.Add(o)
	q.Add(order(1, testNow.Add(-time.Hour), testNow.Add(time.Hour), 2))

	if q.Len() != 1 {
		t.Errorf("Len after duplicate adds = %d, want 1", q.Len())
	}
}

func TestContains(t *testing.T) {
	q, _ := newTestQueue(types.DefaultPriorityWeights())

	q.Add(order(5, testNow.Add(-time.Hour), testNow.Add(time.Hour), 2))

	if !q.Contains(5) {
		t.Error("Contains(5) = false after Add")
	}
	if q.Contains(6) {
		t.Error("Contains(6) = true, order never added")
	}

	q.PopHighest()
	if q.Contains(5) {
		t.Error("Contains(5) = true after Pop")
	}
}

func TestRecalculateAllStockBonusUniform(t *testing.T) {
	q, _ := newTestQueue(types.DefaultPriorityWeights())

	created := testNow.Add(-time.Hour)
	q.Add(order(1, created, testNow.Add(time.Hour), 3))
	q.Add(order(2, created, testNow.Add(2*time.Hour), 8))

	before := make(map[int64]float64)
	for _, o := range q.Snapshot() {
		before[o.ID] = o.PriorityScore
	}

	q.RecalculateAll(true)

	for _, o := range q.Snapshot() {
		if o.PriorityScore != before[o.ID]+100 {
			t.Errorf("order %d score = %v, want %v + bonus 100",
				o.ID, o.PriorityScore, before[o.ID])
		}
	}
}

func TestRecalculateReordersAfterTimePasses(t *testing.T) {
	q, clock := newTestQueue(types.DefaultPriorityWeights())

	created := testNow.Add(-time.Hour)
	// Order 1 wins on quantity now, order 2's deadline overtakes later.
	q.Add(order(1, created, testNow.Add(10*time.Hour), 500))
	q.Add(order(2, created, testNow.Add(30*time.Minute), 1))

	clock.Advance(29 * time.Minute)
	q.RecalculateAll(false)

	if got := q.PopHighest(); got.ID != 2 {
		t.Errorf("after deadline approached, top = order %d, want 2", got.ID)
	}
}

func TestRecalculateAllScoped(t *testing.T) {
	q, _ := newTestQueue(types.DefaultPriorityWeights())

	created := testNow.Add(-time.Hour)
	deadline := testNow.Add(time.Hour)
	q.Add(order(1, created, deadline, 3))
	q.Add(order(2, created, deadline, 3))

	base := make(map[int64]float64)
	for _, o := range q.Snapshot() {
		base[o.ID] = o.PriorityScore
	}

	recipes := map[int64][]string{
		1: {"matcha powder", "milk"},
		2: {"flour"},
	}
	q.RecalculateAllScoped(map[string]bool{"matcha powder": true}, func(id int64) []string {
		return recipes[id]
	})

	for _, o := range q.Snapshot() {
		want := base[o.ID]
		if o.ID == 1 {
			want += 100
		}
		if o.PriorityScore != want {
			t.Errorf("order %d score = %v, want %v", o.ID, o.PriorityScore, want)
		}
	}
}

func TestRecalculateIdempotent(t *testing.T) {
	q, _ := newTestQueue(types.DefaultPriorityWeights())

	created := testNow.Add(-time.Hour)
	q.Add(order(1, created, testNow.Add(time.Hour), 3))
	q.Add(order(2, created, testNow.Add(4*time.Hour), 9))

	q.RecalculateAll(true)
	first := make(map[int64]float64)
	for _, o := range q.Snapshot() {
		first[o.ID] = o.PriorityScore
	}

	q.RecalculateAll(true)
	for _, o := range q.Snapshot() {
		if o.PriorityScore != first[o.ID] {
			t.Errorf("order %d score drifted on repeat rescore: %v != %v",
				o.ID, o.PriorityScore, first[o.ID])
		}
	}
}

func TestPopDrainsCompletely(t *testing.T) {
	q, _ := newTestQueue(types.DefaultPriorityWeights())

	created := testNow.Add(-time.Hour)
	for i := int64(1); i <= 20; i++ {
		q.Add(order(i, created, testNow.Add(time.Duration(i)*time.Hour), int(i)))
	}

	seen := make(map[int64]bool)
	for q.Len() > 0 {
		o := q.PopHighest()
		if seen[o.ID] {
			t.Fatalf("order %d popped twice", o.ID)
		}
		seen[o.ID] = true
	}

	if len(seen) != 20 {
		t.Errorf("drained %d orders, want 20", len(seen))
	}
	if got := q.PopHighest(); got != nil {
		t.Errorf("pop after drain = %v, want nil", got)
	}
}
