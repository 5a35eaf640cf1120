package scheduler_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/Farewellez/matcha-schedule/pkg/interfaces"
	"github.com/Farewellez/matcha-schedule/pkg/mocks"
	"github.com/Farewellez/matcha-schedule/pkg/priority"
	"github.com/Farewellez/matcha-schedule/pkg/queue"
	"github.com/Farewellez/matcha-schedule/pkg/scheduler"
	"github.com/Farewellez/matcha-schedule/pkg/types"
)

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store    *mocks.MockStore
	notifier *mocks.MockNotifier
	states   *mocks.MockStateManager
	clock    *mocks.FixedClock
	queue    *queue.ProductionQueue
	sched    *scheduler.Scheduler
}

func newTestScheduler(t *testing.T, cfg types.SchedulingConfig) *fixture {
	return newTestSchedulerWithStock(t, cfg, types.StockConfig{LowStockThreshold: 100})
}

func newTestSchedulerWithStock(t *testing.T, cfg types.SchedulingConfig, stockCfg types.StockConfig) *fixture {
	t.Helper()

	f := &fixture{
		store:    mocks.NewMockStore(),
		notifier: mocks.NewMockNotifier(),
		states:   mocks.NewMockStateManager(),
		clock:    mocks.NewFixedClock(testNow),
	}
	engine := priority.NewEngine(types.DefaultPriorityWeights(), f.clock)
	f.queue = queue.New(engine, nil)

	f.sched = scheduler.New(cfg, stockCfg, nil, interfaces.SchedulerDependencies{
		Store:        f.store,
		Queue:        f.queue,
		Notifier:     f.notifier,
		StateManager: f.states,
		Clock:        f.clock,
	})
	return f
}

func readyOrder(id int64, deadline time.Time, quantity int) *types.Order {
	return &types.Order{
		ID:            id,
		CustomerID:    id,
		CreatedAt:     testNow.Add(-time.Hour),
		Deadline:      deadline,
		StatusID:      types.StatusIDReady,
		TotalQuantity: quantity,
	}
}

func TestCycleAssignsHighestPriorityFirst(t *testing.T) {
	f := newTestScheduler(t, types.SchedulingConfig{MachineCount: 2, MinutesPerUnit: 1})

	f.store.ReadyOrders = []*types.Order{
		readyOrder(1, testNow.Add(8*time.Hour), 5),
		readyOrder(2, testNow.Add(10*time.Minute), 5),
		readyOrder(3, testNow.Add(2*time.Hour), 5),
	}

	if err := f.sched.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}

	if len(f.store.BeginCalls) != 2 {
		t.Fatalf("started %d orders with 2 machines, want 2", len(f.store.BeginCalls))
	}
	// Machine 1 gets the most urgent order, machine 2 the next one.
	if f.store.BeginCalls[0].OrderID != 2 || f.store.BeginCalls[0].MachineID != 1 {
		t.Errorf("first assignment = %+v, want order 2 on machine 1", f.store.BeginCalls[0])
	}
	if f.store.BeginCalls[1].OrderID != 3 || f.store.BeginCalls[1].MachineID != 2 {
		t.Errorf("second assignment = %+v, want order 3 on machine 2", f.store.BeginCalls[1])
	}

	if f.queue.Len() != 1 || !f.queue.Contains(1) {
		t.Errorf("queue should hold only order 1, len=%d", f.queue.Len())
	}

	if len(f.notifier.Starts) != 2 {
		t.Errorf("start notifications = %v, want 2", f.notifier.Starts)
	}
}

func TestCycleSweepsCompletionsAndReassigns(t *testing.T) {
	f := newTestScheduler(t, types.SchedulingConfig{MachineCount: 1, MinutesPerUnit: 1})

	f.store.ReadyOrders = []*types.Order{
		readyOrder(1, testNow.Add(10*time.Minute), 5),
		readyOrder(2, testNow.Add(2*time.Hour), 5),
	}

	if err := f.sched.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle 1 failed: %v", err)
	}
	if len(f.store.BeginCalls) != 1 || f.store.BeginCalls[0].OrderID != 1 {
		t.Fatalf("cycle 1 assignments = %+v, want order 1", f.store.BeginCalls)
	}

	// 5 units at 1 minute each: due after 5 minutes.
	f.clock.Advance(6 * time.Minute)
	if err := f.sched.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle 2 failed: %v", err)
	}

	if len(f.store.FinishCalls) != 1 || f.store.FinishCalls[0].OrderID != 1 {
		t.Errorf("finish calls = %+v, want order 1", f.store.FinishCalls)
	}
	if len(f.store.DeductCalls) != 1 || f.store.DeductCalls[0] != 1 {
		t.Errorf("deduct calls = %v, want [1]", f.store.DeductCalls)
	}
	if len(f.notifier.Finishes) != 1 || f.notifier.Finishes[0] != 1 {
		t.Errorf("finish notifications = %v, want [1]", f.notifier.Finishes)
	}

	// The freed machine picks up the next order in the same cycle.
	if len(f.store.BeginCalls) != 2 || f.store.BeginCalls[1].OrderID != 2 {
		t.Errorf("assignments = %+v, want order 2 started after sweep", f.store.BeginCalls)
	}
}

func TestFinishFailureKeepsMachineBusy(t *testing.T) {
	f := newTestScheduler(t, types.SchedulingConfig{MachineCount: 1, MinutesPerUnit: 1})

	f.store.ReadyOrders = []*types.Order{readyOrder(1, testNow.Add(time.Hour), 2)}
	f.sched.RunCycle(context.Background())

	f.clock.Advance(time.Hour)
	f.store.FinishError = errors.New("deadlock detected")
	f.sched.RunCycle(context.Background())

	if len(f.notifier.Failures) != 1 || f.notifier.Failures[0] != 1 {
		t.Errorf("failure notifications = %v, want [1]", f.notifier.Failures)
	}
	if len(f.store.DeductCalls) != 0 {
		t.Error("no deduction should happen while finish is unpersisted")
	}
	if f.sched.Machines()[0].IsIdle() {
		t.Error("machine should stay busy until the finish persists")
	}

	// Store recovers; the same order completes on the next cycle.
	f.store.FinishError = nil
	f.sched.RunCycle(context.Background())
	if len(f.store.FinishCalls) != 1 || f.store.FinishCalls[0].OrderID != 1 {
		t.Errorf("finish calls after recovery = %+v, want order 1", f.store.FinishCalls)
	}
	if !f.sched.Machines()[0].IsIdle() {
		t.Error("machine should be idle after recovered finish")
	}
}

func TestStartFailureRequeuesOrder(t *testing.T) {
	f := newTestScheduler(t, types.SchedulingConfig{MachineCount: 1, MinutesPerUnit: 1})

	f.store.ReadyOrders = []*types.Order{readyOrder(1, testNow.Add(time.Hour), 2)}
	f.store.BeginError = errors.New("connection refused")

	f.sched.RunCycle(context.Background())

	if !f.queue.Contains(1) {
		t.Error("order should be back in the queue after failed start")
	}
	if !f.sched.Machines()[0].IsIdle() {
		t.Error("machine should remain idle after failed start")
	}

	// Store recovers; the order is assigned on the next cycle.
	f.store.BeginError = nil
	f.sched.RunCycle(context.Background())
	if len(f.store.BeginCalls) != 1 || f.store.BeginCalls[0].OrderID != 1 {
		t.Errorf("assignments after recovery = %+v, want order 1", f.store.BeginCalls)
	}
}

func TestStartFailureDropsWhenRequeueDisabled(t *testing.T) {
	requeue := false
	f := newTestScheduler(t, types.SchedulingConfig{
		MachineCount:          1,
		MinutesPerUnit:        1,
		RequeueOnStartFailure: &requeue,
	})

	f.store.ReadyOrders = []*types.Order{readyOrder(1, testNow.Add(time.Hour), 2)}
	f.store.BeginError = errors.New("connection refused")

	f.sched.RunCycle(context.Background())

	if f.queue.Contains(1) {
		t.Error("order should not be requeued when requeue is disabled")
	}
}

func TestIngestSkipsMalformedOrders(t *testing.T) {
	f := newTestScheduler(t, types.SchedulingConfig{MachineCount: 1, MinutesPerUnit: 1})

	f.store.ReadyOrders = []*types.Order{
		{ID: 0, Deadline: testNow.Add(time.Hour), TotalQuantity: 1},
		{ID: 2, TotalQuantity: 1},
		{ID: 3, Deadline: testNow.Add(time.Hour), TotalQuantity: 0},
		readyOrder(4, testNow.Add(time.Hour), 2),
	}
	// Park the machine so the valid order stays visible in the queue.
	f.store.BeginError = errors.New("unavailable")

	f.sched.RunCycle(context.Background())

	if f.queue.Len() != 1 || !f.queue.Contains(4) {
		t.Errorf("queue len = %d, want only valid order 4", f.queue.Len())
	}
}

func TestStockAlertRaisesScores(t *testing.T) {
	f := newTestScheduler(t, types.SchedulingConfig{MachineCount: 1, MinutesPerUnit: 1})

	// The urgent decoy occupies the single machine; order 1 stays
	// queued with its rescored priority observable.
	f.store.ReadyOrders = []*types.Order{
		readyOrder(99, testNow.Add(time.Minute), 1),
		readyOrder(1, testNow.Add(time.Hour), 2),
	}
	f.store.LowStock = []string{"matcha powder"}

	f.sched.RunCycle(context.Background())

	snap := f.sched.Status()
	if !snap.StockAlert {
		t.Error("scheduler status should report stock alert")
	}
	if len(f.notifier.LowStocks) != 1 {
		t.Errorf("low stock notifications = %d, want 1", len(f.notifier.LowStocks))
	}

	orders := f.queue.Snapshot()
	if len(orders) != 1 || orders[0].ID != 1 {
		t.Fatalf("queue should hold only order 1, got %d entries", len(orders))
	}
	weights := types.DefaultPriorityWeights()
	base := weights.Deadline/(time.Hour).Seconds() + weights.Quantity*2
	if got := orders[0].PriorityScore; got != base+weights.StockBonus {
		t.Errorf("alerted score = %v, want %v", got, base+weights.StockBonus)
	}
}

func TestScopedStockBoostOnlyAffectsConsumers(t *testing.T) {
	f := newTestSchedulerWithStock(t,
		types.SchedulingConfig{MachineCount: 1, MinutesPerUnit: 1},
		types.StockConfig{LowStockThreshold: 100, ScopedStockBoost: true})

	f.store.ReadyOrders = []*types.Order{
		readyOrder(99, testNow.Add(time.Minute), 1),
		readyOrder(1, testNow.Add(time.Hour), 2),
		readyOrder(2, testNow.Add(time.Hour), 2),
	}
	f.store.LowStock = []string{"matcha powder"}
	f.store.Recipes[1] = []string{"matcha powder", "milk"}
	f.store.Recipes[2] = []string{"flour"}

	f.sched.RunCycle(context.Background())

	var consumer, bystander float64
	for _, o := range f.queue.Snapshot() {
		switch o.ID {
		case 1:
			consumer = o.PriorityScore
		case 2:
			bystander = o.PriorityScore
		}
	}
	gap := consumer - bystander
	if math.Abs(gap-types.DefaultPriorityWeights().StockBonus) > 1e-9 {
		t.Errorf("score gap = %v, want the stock bonus", gap)
	}
}

func TestCycleIdempotentIngestion(t *testing.T) {
	f := newTestScheduler(t, types.SchedulingConfig{MachineCount: 1, MinutesPerUnit: 1})

	f.store.ReadyOrders = []*types.Order{
		readyOrder(1, testNow.Add(time.Hour), 2),
		readyOrder(2, testNow.Add(2*time.Hour), 2),
	}

	f.sched.RunCycle(context.Background())
	f.sched.RunCycle(context.Background())

	// Order 1 went to the machine; order 2 must appear exactly once.
	if f.queue.Len() != 1 || !f.queue.Contains(2) {
		t.Errorf("queue after repeated cycles: len=%d", f.queue.Len())
	}
	if len(f.store.BeginCalls) != 1 {
		t.Errorf("order started %d times, want 1", len(f.store.BeginCalls))
	}
}

func TestMachineStatePersisted(t *testing.T) {
	f := newTestScheduler(t, types.SchedulingConfig{MachineCount: 2, MinutesPerUnit: 1})

	if len(f.states.States) != 2 {
		t.Fatalf("initialized %d machine states, want 2", len(f.states.States))
	}

	f.store.ReadyOrders = []*types.Order{readyOrder(1, testNow.Add(time.Hour), 2)}
	f.sched.RunCycle(context.Background())

	snap := f.states.States[1]
	if snap.Status != types.MachineStatusBusy || snap.CurrentOrderID != 1 {
		t.Errorf("persisted state = %+v, want busy with order 1", snap)
	}
	if f.states.States[2].Status != types.MachineStatusIdle {
		t.Errorf("machine 2 state = %+v, want idle", f.states.States[2])
	}
}

func TestHeartbeatRefreshesMachineState(t *testing.T) {
	f := newTestScheduler(t, types.SchedulingConfig{MachineCount: 2, MinutesPerUnit: 1})

	f.store.ReadyOrders = []*types.Order{readyOrder(1, testNow.Add(time.Hour), 2)}
	f.sched.RunCycle(context.Background())

	// Simulate lost state files between cycles; the heartbeat must
	// restore them without touching the machines.
	f.states.States = map[int]types.MachineSnapshot{}

	f.sched.RefreshMachineState()

	if len(f.states.States) != 2 {
		t.Fatalf("refreshed %d machine states, want 2", len(f.states.States))
	}
	if snap := f.states.States[1]; snap.Status != types.MachineStatusBusy || snap.CurrentOrderID != 1 {
		t.Errorf("refreshed state = %+v, want busy with order 1", snap)
	}
	if f.states.States[2].Status != types.MachineStatusIdle {
		t.Errorf("machine 2 state = %+v, want idle", f.states.States[2])
	}
}

func TestStartPollingStopsOnCancel(t *testing.T) {
	f := newTestScheduler(t, types.SchedulingConfig{MachineCount: 1, MinutesPerUnit: 1})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- f.sched.StartPolling(ctx, 10*time.Millisecond)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("StartPolling returned %v after cancel, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("StartPolling did not return after cancellation")
	}

	snap := f.sched.Status()
	if snap.CycleCount < 1 {
		t.Error("expected at least one completed cycle")
	}
}

func TestStartPollingRejectsDoubleStart(t *testing.T) {
	f := newTestScheduler(t, types.SchedulingConfig{MachineCount: 1, MinutesPerUnit: 1})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go f.sched.StartPolling(ctx, time.Hour)
	time.Sleep(20 * time.Millisecond)

	if err := f.sched.StartPolling(ctx, time.Hour); err == nil {
		t.Error("second StartPolling should fail while the first runs")
	}
}
