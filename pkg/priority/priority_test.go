package priority_test

import (
	"testing"
	"time"

	"github.com/Farewellez/matcha-schedule/pkg/mocks"
	"github.com/Farewellez/matcha-schedule/pkg/priority"
	"github.com/Farewellez/matcha-schedule/pkg/types"
)

func baseOrder(id int64, deadline time.Time, quantity int) *types.Order {
	return &types.Order{
		ID:            id,
		CreatedAt:     deadline.Add(-2 * time.Hour),
		Deadline:      deadline,
		TotalQuantity: quantity,
	}
}

func TestScoreDeadlineUrgency(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := mocks.NewFixedClock(now)
	engine := priority.NewEngine(types.DefaultPriorityWeights(), clock)

	urgent := baseOrder(1, now.Add(10*time.Minute), 5)
	relaxed := baseOrder(2, now.Add(10*time.Hour), 5)

	if engine.Score(urgent, false) <= engine.Score(relaxed, false) {
		t.Error("order with closer deadline should score higher")
	}
}

func TestScoreOverdueClampsToFullWeight(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := mocks.NewFixedClock(now)
	weights := types.PriorityWeights{Deadline: 1000, Quantity: 0, StockBonus: 0}
	engine := priority.NewEngine(weights, clock)

	overdue := baseOrder(1, now.Add(-time.Hour), 1)
	imminent := baseOrder(2, now.Add(500*time.Millisecond), 1)

	if got := engine.Score(overdue, false); got != 1000 {
		t.Errorf("overdue order score = %v, want full deadline weight 1000", got)
	}
	if got := engine.Score(imminent, false); got != 1000 {
		t.Errorf("sub-second deadline score = %v, want full deadline weight 1000", got)
	}
}

func TestScoreQuantityTerm(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := mocks.NewFixedClock(now)
	engine := priority.NewEngine(types.DefaultPriorityWeights(), clock)

	deadline := now.Add(time.Hour)
	small := baseOrder(1, deadline, 2)
	large := baseOrder(2, deadline, 20)

	diff := engine.Score(large, false) - engine.Score(small, false)
	if diff != 18 {
		t.Errorf("quantity difference contributed %v, want 18 with unit weight", diff)
	}
}

func TestScoreStockBonus(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := mocks.NewFixedClock(now)
	engine := priority.NewEngine(types.DefaultPriorityWeights(), clock)

	order := baseOrder(1, now.Add(time.Hour), 3)

	without := engine.Score(order, false)
	with := engine.Score(order, true)

	if with-without != 100 {
		t.Errorf("stock bonus contributed %v, want 100", with-without)
	}
}

func TestScoreDeterministic(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := mocks.NewFixedClock(now)
	engine := priority.NewEngine(types.DefaultPriorityWeights(), clock)

	order := baseOrder(1, now.Add(time.Hour), 3)

	first := engine.Score(order, true)
	for i := 0; i < 10; i++ {
		if got := engine.Score(order, true); got != first {
			t.Fatalf("score changed between identical calls: %v != %v", got, first)
		}
	}
}

func TestApplyWritesScore(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := mocks.NewFixedClock(now)
	engine := priority.NewEngine(types.DefaultPriorityWeights(), clock)

	order := baseOrder(1, now.Add(time.Hour), 3)
	score := engine.Apply(order, false)

	if order.PriorityScore != score {
		t.Errorf("Apply did not store score on order: %v != %v", order.PriorityScore, score)
	}
	if order.PriorityScore == 0 {
		t.Error("expected non-zero score")
	}
}

func TestSetWeightsTakesEffect(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := mocks.NewFixedClock(now)
	engine := priority.NewEngine(types.PriorityWeights{Deadline: 0, Quantity: 1}, clock)

	order := baseOrder(1, now.Add(time.Hour), 10)
	if got := engine.Score(order, false); got != 10 {
		t.Fatalf("initial score = %v, want 10", got)
	}

	engine.SetWeights(types.PriorityWeights{Deadline: 0, Quantity: 3})
	if got := engine.Score(order, false); got != 30 {
		t.Errorf("score after weight update = %v, want 30", got)
	}
}
