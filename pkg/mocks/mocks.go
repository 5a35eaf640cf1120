// Package mocks provides mock implementations of interfaces for testing.
package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Farewellez/matcha-schedule/pkg/types"
)

// FixedClock is a settable clock for deterministic scoring tests
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixedClock creates a clock pinned at the given instant
func NewFixedClock(now time.Time) *FixedClock {
	return &FixedClock{now: now}
}

// Now returns the pinned instant
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set pins the clock at a new instant
func (c *FixedClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// MockStore is a ProductionStore test double with injectable failures
type MockStore struct {
	mu sync.Mutex

	ReadyOrders []*types.Order
	LowStock    []string
	Recipes     map[int64][]string

	FetchError  error
	StockError  error
	BeginError  error
	FinishError error
	DeductError error

	BeginCalls  []BeginCall
	FinishCalls []FinishCall
	DeductCalls []int64

	batchSeq int
}

// BeginCall records one BeginProduction invocation
type BeginCall struct {
	OrderID   int64
	MachineID int
}

// FinishCall records one FinishProduction invocation
type FinishCall struct {
	OrderID  int64
	BatchRef string
}

// NewMockStore creates an empty mock store
func NewMockStore() *MockStore {
	return &MockStore{Recipes: make(map[int64][]string)}
}

// FetchReadyOrders returns the configured ready orders
func (s *MockStore) FetchReadyOrders(ctx context.Context) ([]*types.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FetchError != nil {
		return nil, s.FetchError
	}
	out := make([]*types.Order, len(s.ReadyOrders))
	copy(out, s.ReadyOrders)
	return out, nil
}

// LowStockIngredients returns the configured low-stock list
func (s *MockStore) LowStockIngredients(ctx context.Context, threshold float64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.StockError != nil {
		return nil, s.StockError
	}
	return s.LowStock, nil
}

// IngredientsForOrder returns the configured recipe lookup
func (s *MockStore) IngredientsForOrder(ctx context.Context, orderID int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Recipes[orderID], nil
}

// BeginProduction records the call and returns a synthetic batch ref
func (s *MockStore) BeginProduction(ctx context.Context, orderID int64, machineID int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.BeginError != nil {
		return "", s.BeginError
	}
	s.BeginCalls = append(s.BeginCalls, BeginCall{OrderID: orderID, MachineID: machineID})
	s.batchSeq++

	// Started orders drop out of the ready set.
	remaining := s.ReadyOrders[:0]
	for _, o := range s.ReadyOrders {
		if o.ID != orderID {
			remaining = append(remaining, o)
		}
	}
	s.ReadyOrders = remaining

	return fmt.Sprintf("batch-%d", s.batchSeq), nil
}

// FinishProduction records the call
func (s *MockStore) FinishProduction(ctx context.Context, orderID int64, batchRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FinishError != nil {
		return s.FinishError
	}
	s.FinishCalls = append(s.FinishCalls, FinishCall{OrderID: orderID, BatchRef: batchRef})
	return nil
}

// DeductIngredientsForOrder records the call
func (s *MockStore) DeductIngredientsForOrder(ctx context.Context, orderID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.DeductError != nil {
		return s.DeductError
	}
	s.DeductCalls = append(s.DeductCalls, orderID)
	return nil
}

// Close is a no-op
func (s *MockStore) Close() error { return nil }

// MockNotifier records notification calls for assertions
type MockNotifier struct {
	mu sync.Mutex

	Starts    []int64
	Finishes  []int64
	Failures  []int64
	LowStocks [][]string
	Statuses  []QueueStatus
}

// QueueStatus records one NotifyQueueStatus invocation
type QueueStatus struct {
	Busy   int
	Queued int
}

// NewMockNotifier creates an empty mock notifier
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

// NotifyProductionStart records the order that started
func (n *MockNotifier) NotifyProductionStart(orderID int64, machineID int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Starts = append(n.Starts, orderID)
}

// NotifyProductionFinished records the order that finished
func (n *MockNotifier) NotifyProductionFinished(orderID int64, machineID int, duration time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Finishes = append(n.Finishes, orderID)
}

// NotifyProductionFailure records the order that failed
func (n *MockNotifier) NotifyProductionFailure(orderID int64, machineID int, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Failures = append(n.Failures, orderID)
}

// NotifyLowStock records the low-stock ingredient set
func (n *MockNotifier) NotifyLowStock(ingredients []string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.LowStocks = append(n.LowStocks, ingredients)
}

// NotifyQueueStatus records the queue pressure report
func (n *MockNotifier) NotifyQueueStatus(busy int, queued int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Statuses = append(n.Statuses, QueueStatus{Busy: busy, Queued: queued})
}

// MockStateManager is a MachineStateManager test double
type MockStateManager struct {
	mu sync.RWMutex

	States      map[int]types.MachineSnapshot
	InitError   error
	UpdateError error
}

// NewMockStateManager creates an empty mock state manager
func NewMockStateManager() *MockStateManager {
	return &MockStateManager{States: make(map[int]types.MachineSnapshot)}
}

// InitializeState registers a machine as idle
func (m *MockStateManager) InitializeState(machineID int) error {
	if m.InitError != nil {
		return m.InitError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.States[machineID] = types.MachineSnapshot{
		MachineID: machineID,
		Status:    types.MachineStatusIdle,
	}
	return nil
}

// UpdateState stores the snapshot
func (m *MockStateManager) UpdateState(machineID int, snapshot types.MachineSnapshot) error {
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.States[machineID] = snapshot
	return nil
}

// ReadState returns the stored snapshot
func (m *MockStateManager) ReadState(machineID int) (*types.MachineSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if snap, ok := m.States[machineID]; ok {
		out := snap
		return &out, nil
	}
	return nil, fmt.Errorf("machine state not found: %d", machineID)
}

// DiscoverStates returns all stored snapshots
func (m *MockStateManager) DiscoverStates() (map[int]*types.MachineSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[int]*types.MachineSnapshot, len(m.States))
	for id, snap := range m.States {
		s := snap
		out[id] = &s
	}
	return out, nil
}

// Cleanup clears all stored snapshots
func (m *MockStateManager) Cleanup() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.States = make(map[int]types.MachineSnapshot)
	return nil
}
