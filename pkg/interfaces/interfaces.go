// Package interfaces provides abstractions for dependency injection and testability
package interfaces

import (
	"context"
	"time"

	"github.com/Farewellez/matcha-schedule/pkg/types"
)

// Clock abstracts wall-clock time so scoring and machine transitions are
// deterministic under test.
type Clock interface {
	Now() time.Time
}

// ProductionStore is the persistence collaborator the scheduler talks to.
// Implementations own transactions and timeouts; the core only sees the
// contract.
type ProductionStore interface {
	// FetchReadyOrders returns orders in "ready for production" status.
	// The query excludes orders already advanced past that status, which
	// is what makes ingestion idempotent.
	FetchReadyOrders(ctx context.Context) ([]*types.Order, error)

	// LowStockIngredients returns the names of ingredients whose stock
	// is below threshold.
	LowStockIngredients(ctx context.Context, threshold float64) ([]string, error)

	// IngredientsForOrder returns the names of ingredients consumed by
	// the order's recipe. Used only by scoped stock boosts.
	IngredientsForOrder(ctx context.Context, orderID int64) ([]string, error)

	// BeginProduction marks the order as processing and inserts a
	// production batch record, returning its reference.
	BeginProduction(ctx context.Context, orderID int64, machineID int) (string, error)

	// FinishProduction closes the batch record and marks the order
	// finished.
	FinishProduction(ctx context.Context, orderID int64, batchRef string) error

	// DeductIngredientsForOrder applies recipe-based consumption
	// atomically; on failure stock is unchanged.
	DeductIngredientsForOrder(ctx context.Context, orderID int64) error

	Close() error
}

// OrderQueue manages prioritized production orders
type OrderQueue interface {
	Add(order *types.Order)
	PopHighest() *types.Order
	RecalculateAll(stockAlert bool)
	RecalculateAllScoped(lowStock map[string]bool, needs func(orderID int64) []string)
	Len() int
	Contains(orderID int64) bool
	Snapshot() []*types.Order
}

// ProductionNotifier surfaces production events to the operator
type ProductionNotifier interface {
	NotifyProductionStart(orderID int64, machineID int)
	NotifyProductionFinished(orderID int64, machineID int, duration time.Duration)
	NotifyProductionFailure(orderID int64, machineID int, err error)
	NotifyLowStock(ingredients []string)
	NotifyQueueStatus(busy int, queued int)
}

// MachineStateManager persists per-machine runtime state for status display
type MachineStateManager interface {
	InitializeState(machineID int) error
	UpdateState(machineID int, snapshot types.MachineSnapshot) error
	ReadState(machineID int) (*types.MachineSnapshot, error)
	DiscoverStates() (map[int]*types.MachineSnapshot, error)
	Cleanup() error
}

// ProcessManager handles process lifecycle and signals
type ProcessManager interface {
	RegisterShutdownHandler(handler func())
	Start(ctx context.Context)
	Stop()
	IsRunning() bool
}

// ConfigManager handles configuration loading and validation
type ConfigManager interface {
	LoadConfig(path string) (*types.MatchaConfig, error)
	ValidateConfig(config *types.MatchaConfig) error
	GetDefaultConfig() *types.MatchaConfig
}

// SchedulerDependencies contains all injectable dependencies
type SchedulerDependencies struct {
	Store        ProductionStore
	Queue        OrderQueue
	Notifier     ProductionNotifier
	StateManager MachineStateManager
	Clock        Clock
}
