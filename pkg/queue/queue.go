// Package queue provides the prioritized production order queue
package queue

import (
	"container/heap"
	"sync"

	"github.com/Farewellez/matcha-schedule/pkg/logger"
	"github.com/Farewellez/matcha-schedule/pkg/priority"
	"github.com/Farewellez/matcha-schedule/pkg/types"
)

// orderHeap is a max-heap over orders keyed by
// (priority score desc, created-at asc, order id asc).
type orderHeap []*types.Order

func (h orderHeap) Len() int { return len(h) }

func (h orderHeap) Less(i, j int) bool {
	if h[i].PriorityScore != h[j].PriorityScore {
		return h[i].PriorityScore > h[j].PriorityScore
	}
	if !h[i].CreatedAt.Equal(h[j].CreatedAt) {
		return h[i].CreatedAt.Before(h[j].CreatedAt)
	}
	return h[i].ID < h[j].ID
}

func (h orderHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

// Push adds an order. Called by heap.Push, not directly.
func (h *orderHeap) Push(x any) {
	*h = append(*h, x.(*types.Order))
}

// Pop removes the root order. Called by heap.Pop, not directly.
func (h *orderHeap) Pop() any {
	old := *h
	n := len(old)
	order := old[n-1]
	old[n-1] = nil // avoid memory leak
	*h = old[:n-1]
	return order
}

// ProductionQueue is a max-priority queue of orders awaiting a machine.
// The id map is the authoritative membership record; the heap is a
// derived index rebuilt wholesale on rescoring.
type ProductionQueue struct {
	engine *priority.Engine
	logger logger.Logger

	heap   orderHeap
	orders map[int64]*types.Order

	mu sync.RWMutex
}

// New creates a production queue scoring with the given engine.
func New(engine *priority.Engine, log logger.Logger) *ProductionQueue {
	return &ProductionQueue{
		engine: engine,
		logger: log,
		orders: make(map[int64]*types.Order),
	}
}

// Add scores the order with no stock alert and inserts it. An order
// already resident is left untouched.
func (q *ProductionQueue) Add(order *types.Order) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.orders[order.ID]; ok {
		return
	}

	q.engine.Apply(order, false)
	q.orders[order.ID] = order
	heap.Push(&q.heap, order)

	if q.logger != nil {
		q.logger.Debug("Queued order",
			logger.WithField("order", order.ID),
			logger.WithField("score", order.PriorityScore),
			logger.WithField("queued", len(q.orders)))
	}
}

// PopHighest removes and returns the highest-priority order, or nil when
// the queue is empty. Ownership of the order transfers to the caller.
func (q *ProductionQueue) PopHighest() *types.Order {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.heap.Len() == 0 {
		return nil
	}

	order := heap.Pop(&q.heap).(*types.Order)
	delete(q.orders, order.ID)
	return order
}

// RecalculateAll rescores every resident order with the given stock alert
// flag and rebuilds the heap from scratch. Idempotent for a fixed flag
// and clock.
func (q *ProductionQueue) RecalculateAll(stockAlert bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.rebuild(func(order *types.Order) {
		q.engine.Apply(order, stockAlert)
	})
}

// RecalculateAllScoped rescores resident orders, applying the stock bonus
// only to orders whose recipe touches a low-stock ingredient. needs
// resolves an order to its consumed ingredient names.
func (q *ProductionQueue) RecalculateAllScoped(lowStock map[string]bool, needs func(orderID int64) []string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.rebuild(func(order *types.Order) {
		alerted := false
		if len(lowStock) > 0 && needs != nil {
			for _, name := range needs(order.ID) {
				if lowStock[name] {
					alerted = true
					break
				}
			}
		}
		q.engine.Apply(order, alerted)
	})
}

// rebuild rescoring strategy: there is no decrease-key on the heap, so a
// full rebuild from the authoritative map is the simplest correct move.
// Callers hold the lock.
func (q *ProductionQueue) rebuild(rescore func(*types.Order)) {
	rebuilt := make(orderHeap, 0, len(q.orders))
	for _, order := range q.orders {
		rescore(order)
		rebuilt = append(rebuilt, order)
	}
	heap.Init(&rebuilt)
	q.heap = rebuilt
}

// Len returns the number of queued orders.
func (q *ProductionQueue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.orders)
}

// Contains reports whether the order is resident in the queue.
func (q *ProductionQueue) Contains(orderID int64) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	_, ok := q.orders[orderID]
	return ok
}

// Snapshot returns the resident orders for status display. Order of the
// slice is unspecified.
func (q *ProductionQueue) Snapshot() []*types.Order {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make([]*types.Order, 0, len(q.orders))
	for _, order := range q.orders {
		out = append(out, order)
	}
	return out
}
