// Package machine implements the production machine state machine
package machine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Farewellez/matcha-schedule/pkg/interfaces"
	"github.com/Farewellez/matcha-schedule/pkg/logger"
	"github.com/Farewellez/matcha-schedule/pkg/types"
)

var (
	// ErrMachineBusy indicates a start was attempted while producing
	ErrMachineBusy = errors.New("machine is busy")

	// ErrInconsistentState indicates a partially-applied machine state,
	// which is a core bug rather than an environmental failure
	ErrInconsistentState = errors.New("machine state is inconsistent")
)

// Machine is a single production unit cycling between idle and busy.
// Current order, estimated finish time, and batch reference are set and
// cleared together; observing only some of them set means corruption.
type Machine struct {
	id    int
	store interfaces.ProductionStore
	clock interfaces.Clock
	log   logger.Logger

	status          types.MachineStatus
	currentOrder    *types.Order
	estimatedFinish time.Time
	batchRef        string

	mu sync.Mutex
}

// New creates an idle machine with a fixed id. Machines live for the
// whole scheduler process.
func New(id int, store interfaces.ProductionStore, clock interfaces.Clock, log logger.Logger) *Machine {
	return &Machine{
		id:     id,
		store:  store,
		clock:  clock,
		log:    log,
		status: types.MachineStatusIdle,
	}
}

// ID returns the machine id.
func (m *Machine) ID() int { return m.id }

// Status returns the current machine status.
func (m *Machine) Status() types.MachineStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// IsIdle reports whether the machine can accept an order.
func (m *Machine) IsIdle() bool {
	return m.Status() == types.MachineStatusIdle
}

// Start transitions IDLE -> BUSY with the given order and production
// duration. The "production started" record is persisted before any local
// state survives: if persistence fails, the machine behaves as if Start
// was never called.
func (m *Machine) Start(ctx context.Context, order *types.Order, duration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status != types.MachineStatusIdle {
		return fmt.Errorf("machine %d: %w", m.id, ErrMachineBusy)
	}

	batchRef, err := m.store.BeginProduction(ctx, order.ID, m.id)
	if err != nil {
		return fmt.Errorf("machine %d: begin production for order %d: %w", m.id, order.ID, err)
	}

	m.status = types.MachineStatusBusy
	m.currentOrder = order
	m.estimatedFinish = m.clock.Now().Add(duration)
	m.batchRef = batchRef

	if m.log != nil {
		m.log.Info("Production started",
			logger.WithField("machine", m.id),
			logger.WithField("order", order.ID),
			logger.WithField("batch", batchRef),
			logger.WithField("finish", m.estimatedFinish.Format(time.RFC3339)))
	}
	return nil
}

// CheckFinish fires the BUSY -> IDLE transition when the estimated finish
// time has passed. It returns the finished order on success and nil when
// there is nothing to do (idle machine, or still producing). If the
// finish persistence fails the machine stays BUSY and the same order is
// re-checked next cycle.
func (m *Machine) CheckFinish(ctx context.Context) (*types.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status != types.MachineStatusBusy {
		return nil, nil
	}
	if m.currentOrder == nil || m.batchRef == "" {
		return nil, fmt.Errorf("machine %d: busy without order or batch: %w", m.id, ErrInconsistentState)
	}
	if m.clock.Now().Before(m.estimatedFinish) {
		return nil, nil
	}

	if err := m.store.FinishProduction(ctx, m.currentOrder.ID, m.batchRef); err != nil {
		return nil, fmt.Errorf("machine %d: finish production for order %d: %w", m.id, m.currentOrder.ID, err)
	}

	finished := m.currentOrder
	m.status = types.MachineStatusIdle
	m.currentOrder = nil
	m.estimatedFinish = time.Time{}
	m.batchRef = ""

	if m.log != nil {
		m.log.Success("Production finished",
			logger.WithField("machine", m.id),
			logger.WithField("order", finished.ID))
	}
	return finished, nil
}

// Snapshot returns a read-only view of the machine.
func (m *Machine) Snapshot() types.MachineSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := types.MachineSnapshot{
		MachineID: m.id,
		Status:    m.status,
	}
	if m.currentOrder != nil {
		snap.CurrentOrderID = m.currentOrder.ID
		snap.EstimatedFinish = m.estimatedFinish
		snap.BatchRef = m.batchRef
	}
	return snap
}
