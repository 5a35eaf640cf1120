// Package scheduler orchestrates the production polling cycle
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	matchactx "github.com/Farewellez/matcha-schedule/pkg/context"
	"github.com/Farewellez/matcha-schedule/pkg/interfaces"
	"github.com/Farewellez/matcha-schedule/pkg/logger"
	"github.com/Farewellez/matcha-schedule/pkg/machine"
	"github.com/Farewellez/matcha-schedule/pkg/stock"
	"github.com/Farewellez/matcha-schedule/pkg/types"
)

// Scheduler runs the polling cycle: ingest new orders, rescore the queue
// under current stock pressure, sweep machines for completions, deduct
// inventory, and assign idle machines from the queue. One cycle at a
// time; the next does not start until the previous one completes.
type Scheduler struct {
	config   types.SchedulingConfig
	stockCfg types.StockConfig
	log      logger.Logger

	store        interfaces.ProductionStore
	queue        interfaces.OrderQueue
	notifier     interfaces.ProductionNotifier
	stateManager interfaces.MachineStateManager
	clock        interfaces.Clock
	monitor      *stock.Monitor
	machines     []*machine.Machine

	mu          sync.RWMutex
	cycleCount  int64
	lastCycleAt time.Time
	stockAlert  bool
	isRunning   bool
}

// New creates a scheduler with a fixed machine pool. Machines are created
// once with ids 1..N and live for the process lifetime.
func New(config types.SchedulingConfig, stockCfg types.StockConfig, log logger.Logger, deps interfaces.SchedulerDependencies) *Scheduler {
	if deps.Store == nil {
		panic("Store dependency is required")
	}
	if deps.Queue == nil {
		panic("Queue dependency is required")
	}
	if deps.Clock == nil {
		panic("Clock dependency is required")
	}

	count := config.MachineCount
	if count <= 0 {
		count = 2
	}

	machines := make([]*machine.Machine, 0, count)
	for i := 1; i <= count; i++ {
		var mlog logger.Logger
		if log != nil {
			mlog = log.WithMachine(i)
		}
		machines = append(machines, machine.New(i, deps.Store, deps.Clock, mlog))
	}

	s := &Scheduler{
		config:       config,
		stockCfg:     stockCfg,
		log:          log,
		store:        deps.Store,
		queue:        deps.Queue,
		notifier:     deps.Notifier,
		stateManager: deps.StateManager,
		clock:        deps.Clock,
		monitor:      stock.NewMonitor(deps.Store, deps.Notifier, stockCfg, log),
		machines:     machines,
	}

	if s.stateManager != nil {
		for _, m := range s.machines {
			if err := s.stateManager.InitializeState(m.ID()); err != nil && log != nil {
				log.Warn("Failed to initialize machine state",
					logger.WithField("machine", m.ID()),
					logger.WithField("error", err))
			}
		}
	}
	return s
}

// Machines returns the machine pool in ascending id order.
func (s *Scheduler) Machines() []*machine.Machine {
	out := make([]*machine.Machine, len(s.machines))
	copy(out, s.machines)
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// RunCycle performs one scheduling cycle. Steps run strictly in order and
// collaborator failures never abort the remaining steps: a failed order
// stays where it is and is retried on a later cycle.
func (s *Scheduler) RunCycle(ctx context.Context) error {
	s.mu.Lock()
	s.cycleCount++
	cycle := s.cycleCount
	s.lastCycleAt = s.clock.Now()
	s.mu.Unlock()

	ctx = matchactx.WithCycle(ctx, cycle)
	ctx = matchactx.WithStartTime(ctx, time.Now())

	s.ingestOrders(matchactx.WithOperation(ctx, "ingest"))
	s.rescoreQueue(matchactx.WithOperation(ctx, "rescore"))
	s.sweepCompletions(matchactx.WithOperation(ctx, "sweep"))
	s.assignMachines(matchactx.WithOperation(ctx, "assign"))

	if s.notifier != nil {
		busy := 0
		for _, m := range s.machines {
			if !m.IsIdle() {
				busy++
			}
		}
		s.notifier.NotifyQueueStatus(busy, s.queue.Len())
	}

	if s.log != nil {
		s.log.Debug("Cycle completed",
			logger.WithField("cycle", cycle),
			logger.WithField("queued", s.queue.Len()),
			logger.WithField("elapsed", matchactx.Duration(ctx).Round(time.Millisecond)))
	}
	return ctx.Err()
}

// ingestOrders pulls ready orders from the store into the queue. A
// malformed record is skipped; the rest proceed.
func (s *Scheduler) ingestOrders(ctx context.Context) {
	orders, err := s.store.FetchReadyOrders(ctx)
	if err != nil {
		if s.log != nil {
			s.log.Error("Failed to fetch ready orders", logger.WithField("error", err))
		}
		return
	}

	for _, order := range orders {
		if order == nil || order.ID == 0 || order.Deadline.IsZero() || order.TotalQuantity <= 0 {
			if s.log != nil && order != nil {
				s.log.Warn("Skipping malformed order record", logger.WithField("order", order.ID))
			}
			continue
		}
		if s.inProduction(order.ID) {
			continue
		}
		s.queue.Add(order)
	}
}

// rescoreQueue recomputes every queued order's priority under the current
// stock pressure, so assignment decisions this cycle see fresh scores.
func (s *Scheduler) rescoreQueue(ctx context.Context) {
	lowStock, err := s.monitor.LowStockIngredients(ctx)
	if err != nil {
		if s.log != nil {
			s.log.Error("Stock check failed, rescoring without alert", logger.WithField("error", err))
		}
		lowStock = nil
	}

	alert := len(lowStock) > 0
	s.mu.Lock()
	s.stockAlert = alert
	s.mu.Unlock()

	if s.stockCfg.ScopedStockBoost {
		lowSet := make(map[string]bool, len(lowStock))
		for _, name := range lowStock {
			lowSet[name] = true
		}
		s.queue.RecalculateAllScoped(lowSet, func(orderID int64) []string {
			names, err := s.store.IngredientsForOrder(ctx, orderID)
			if err != nil {
				if s.log != nil {
					s.log.Warn("Recipe lookup failed for scoped boost",
						logger.WithField("order", orderID),
						logger.WithField("error", err))
				}
				return nil
			}
			return names
		})
		return
	}

	s.queue.RecalculateAll(alert)
}

// sweepCompletions checks every machine for a finished batch, in
// ascending machine id for reproducible cycles, and deducts inventory
// for each finished order.
func (s *Scheduler) sweepCompletions(ctx context.Context) {
	for _, m := range s.Machines() {
		finished, err := m.CheckFinish(ctx)
		if err != nil {
			// Machine stays busy; same order re-checked next cycle.
			if s.log != nil {
				s.log.Warn("Finish persistence failed, retrying next cycle",
					logger.WithField("machine", m.ID()),
					logger.WithField("error", err))
			}
			if s.notifier != nil {
				snap := m.Snapshot()
				s.notifier.NotifyProductionFailure(snap.CurrentOrderID, m.ID(), err)
			}
			continue
		}
		if finished == nil {
			continue
		}

		if err := s.monitor.DeductForOrder(ctx, finished); err != nil {
			if s.log != nil {
				s.log.Error("Inventory deduction failed",
					logger.WithField("order", finished.ID),
					logger.WithField("error", err))
			}
		}
		if s.notifier != nil {
			s.notifier.NotifyProductionFinished(finished.ID, m.ID(), s.estimateDuration(finished))
		}
		s.persistMachineState(m)
	}
}

// assignMachines hands the highest-priority orders to idle machines, in
// ascending machine id. A start that fails to persist re-enqueues the
// order rather than dropping it.
func (s *Scheduler) assignMachines(ctx context.Context) {
	for _, m := range s.Machines() {
		if !m.IsIdle() {
			continue
		}

		order := s.queue.PopHighest()
		if order == nil {
			return
		}

		duration := s.estimateDuration(order)
		if err := m.Start(ctx, order, duration); err != nil {
			if s.log != nil {
				s.log.Warn("Start persistence failed",
					logger.WithField("machine", m.ID()),
					logger.WithField("order", order.ID),
					logger.WithField("error", err))
			}
			if s.config.RequeueEnabled() {
				s.queue.Add(order)
			} else if s.log != nil {
				s.log.Error("Order dropped after start failure",
					logger.WithField("order", order.ID))
			}
			continue
		}

		if s.notifier != nil {
			s.notifier.NotifyProductionStart(order.ID, m.ID())
		}
		s.persistMachineState(m)
	}
}

// inProduction reports whether any machine currently owns the order.
func (s *Scheduler) inProduction(orderID int64) bool {
	for _, m := range s.machines {
		if snap := m.Snapshot(); snap.CurrentOrderID == orderID {
			return true
		}
	}
	return false
}

// estimateDuration is a deterministic function of order size.
func (s *Scheduler) estimateDuration(order *types.Order) time.Duration {
	perUnit := s.config.MinutesPerUnit
	if perUnit <= 0 {
		perUnit = 1.0
	}
	return time.Duration(float64(order.TotalQuantity) * perUnit * float64(time.Minute))
}

// RefreshMachineState re-persists every machine snapshot. Runs as the
// process heartbeat so state files stay current between polling cycles.
func (s *Scheduler) RefreshMachineState() {
	for _, m := range s.machines {
		s.persistMachineState(m)
	}
}

func (s *Scheduler) persistMachineState(m *machine.Machine) {
	if s.stateManager == nil {
		return
	}
	if err := s.stateManager.UpdateState(m.ID(), m.Snapshot()); err != nil && s.log != nil {
		s.log.Warn("Failed to persist machine state",
			logger.WithField("machine", m.ID()),
			logger.WithField("error", err))
	}
}

// StartPolling blocks, running one cycle every interval until the context
// is cancelled. The in-flight cycle always completes before return so no
// machine is left in a partially-applied state.
func (s *Scheduler) StartPolling(ctx context.Context, interval time.Duration) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
	}()

	if s.log != nil {
		s.log.Info("Scheduler polling started",
			logger.WithField("machines", len(s.machines)),
			logger.WithField("interval", interval))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// First cycle immediately, then on every tick. RunCycle is called
	// with context.Background-derived semantics intact: cancellation is
	// observed between cycles, never mid-cycle.
	if err := s.RunCycle(ctx); err != nil {
		return s.shutdown()
	}

	for {
		select {
		case <-ctx.Done():
			return s.shutdown()
		case <-ticker.C:
			if err := s.RunCycle(ctx); err != nil {
				return s.shutdown()
			}
		}
	}
}

func (s *Scheduler) shutdown() error {
	if s.log != nil {
		s.log.Info("Scheduler polling stopped")
	}
	return nil
}

// Status returns a read-only snapshot of machines and queue for display.
func (s *Scheduler) Status() types.SchedulerSnapshot {
	s.mu.RLock()
	snap := types.SchedulerSnapshot{
		CycleCount:  s.cycleCount,
		LastCycleAt: s.lastCycleAt,
		StockAlert:  s.stockAlert,
	}
	s.mu.RUnlock()

	for _, m := range s.Machines() {
		snap.Machines = append(snap.Machines, m.Snapshot())
	}
	snap.QueuedCount = s.queue.Len()
	return snap
}
