// Package priority computes production priority scores for queued orders
package priority

import (
	"sync"
	"time"

	"github.com/Farewellez/matcha-schedule/pkg/interfaces"
	"github.com/Farewellez/matcha-schedule/pkg/types"
)

// systemClock is the default Clock backed by time.Now.
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by the real wall clock.
func SystemClock() interfaces.Clock { return systemClock{} }

// Engine scores orders from an explicit weight configuration passed in at
// construction. Weights can be swapped as a whole on config reload but
// are never read from ambient globals.
type Engine struct {
	clock interfaces.Clock

	mu      sync.RWMutex
	weights types.PriorityWeights
}

// NewEngine creates a scoring engine. A nil clock falls back to the
// system clock.
func NewEngine(weights types.PriorityWeights, clock interfaces.Clock) *Engine {
	if clock == nil {
		clock = systemClock{}
	}
	return &Engine{weights: weights, clock: clock}
}

// Weights returns the engine's weight configuration.
func (e *Engine) Weights() types.PriorityWeights {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.weights
}

// SetWeights replaces the weight configuration. Scores of already-queued
// orders change on the next rescoring pass, not retroactively.
func (e *Engine) SetWeights(weights types.PriorityWeights) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.weights = weights
}

// Score computes an order's priority without mutating it.
//
// Urgency is 1/max(1, secondsToDeadline): overdue and imminent orders
// both collapse to the full deadline weight instead of blowing up, while
// far deadlines contribute almost nothing. Quantity adds a linear term so
// large orders are not starved, and the stock bonus is a flat boost
// applied while any tracked ingredient is low.
func (e *Engine) Score(order *types.Order, stockAlert bool) float64 {
	e.mu.RLock()
	weights := e.weights
	e.mu.RUnlock()

	timeRemaining := order.Deadline.Sub(e.clock.Now()).Seconds()
	if timeRemaining < 1 {
		timeRemaining = 1
	}

	score := weights.Deadline/timeRemaining + weights.Quantity*float64(order.TotalQuantity)
	if stockAlert {
		score += weights.StockBonus
	}
	return score
}

// Apply computes the score and writes it onto the order. This is the only
// side effect the engine has.
func (e *Engine) Apply(order *types.Order, stockAlert bool) float64 {
	order.PriorityScore = e.Score(order, stockAlert)
	return order.PriorityScore
}
