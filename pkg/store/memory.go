// Package store provides persistence backends for the production scheduler
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Farewellez/matcha-schedule/pkg/types"
)

var (
	// ErrOrderNotFound indicates the referenced order does not exist
	ErrOrderNotFound = errors.New("order not found")

	// ErrBatchNotFound indicates the referenced production batch does not exist
	ErrBatchNotFound = errors.New("production batch not found")

	// ErrInsufficientStock indicates a deduction would drive stock negative
	ErrInsufficientStock = errors.New("insufficient ingredient stock")
)

// MemoryStore is an in-memory ProductionStore used by the demo mode and
// the integration tests. It applies the same status transitions as the
// database-backed store.
type MemoryStore struct {
	mu          sync.Mutex
	orders      map[int64]*types.Order
	products    map[int64]*types.Product
	ingredients map[int64]*types.Ingredient
	recipes     []types.RecipeItem
	batches     map[string]*types.ProductionBatch
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders:      make(map[int64]*types.Order),
		products:    make(map[int64]*types.Product),
		ingredients: make(map[int64]*types.Ingredient),
		batches:     make(map[string]*types.ProductionBatch),
	}
}

// PutOrder inserts or replaces an order record.
func (s *MemoryStore) PutOrder(order *types.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.ID] = order
}

// PutProduct inserts or replaces a product record.
func (s *MemoryStore) PutProduct(product *types.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[product.ID] = product
}

// PutIngredient inserts or replaces an ingredient record.
func (s *MemoryStore) PutIngredient(ingredient *types.Ingredient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ingredients[ingredient.ID] = ingredient
}

// PutRecipeItem appends one recipe line.
func (s *MemoryStore) PutRecipeItem(item types.RecipeItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recipes = append(s.recipes, item)
}

// IngredientStock returns the current stock of an ingredient by name, or
// -1 when unknown.
func (s *MemoryStore) IngredientStock(name string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ing := range s.ingredients {
		if ing.Name == name {
			return ing.CurrentStock
		}
	}
	return -1
}

// Batch returns a copy of the batch record for inspection.
func (s *MemoryStore) Batch(ref string) (types.ProductionBatch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.batches[ref]; ok {
		return *b, true
	}
	return types.ProductionBatch{}, false
}

// FetchReadyOrders returns copies of orders still in ready status. Orders
// advanced by BeginProduction drop out of this query, which is what makes
// re-ingestion idempotent.
func (s *MemoryStore) FetchReadyOrders(ctx context.Context) ([]*types.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*types.Order
	for _, o := range s.orders {
		if o.StatusID != types.StatusIDReady {
			continue
		}
		c := *o
		c.Items = append([]types.OrderItem(nil), o.Items...)
		out = append(out, &c)
	}
	return out, nil
}

// LowStockIngredients returns names of ingredients below threshold.
func (s *MemoryStore) LowStockIngredients(ctx context.Context, threshold float64) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var names []string
	for _, ing := range s.ingredients {
		if ing.CurrentStock < threshold {
			names = append(names, ing.Name)
		}
	}
	return names, nil
}

// IngredientsForOrder resolves the order's recipe to ingredient names.
func (s *MemoryStore) IngredientsForOrder(ctx context.Context, orderID int64) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("order %d: %w", orderID, ErrOrderNotFound)
	}

	seen := make(map[string]bool)
	var names []string
	for _, item := range order.Items {
		for _, r := range s.recipes {
			if r.ProductID != item.ProductID {
				continue
			}
			if ing, ok := s.ingredients[r.IngredientID]; ok && !seen[ing.Name] {
				seen[ing.Name] = true
				names = append(names, ing.Name)
			}
		}
	}
	return names, nil
}

// BeginProduction advances the order to processing and opens a batch.
func (s *MemoryStore) BeginProduction(ctx context.Context, orderID int64, machineID int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return "", fmt.Errorf("order %d: %w", orderID, ErrOrderNotFound)
	}

	order.StatusID = types.StatusIDProcessing
	order.StatusName = string(types.OrderStatusProcessing)

	batch := &types.ProductionBatch{
		ID:        uuid.New().String(),
		OrderID:   orderID,
		MachineID: machineID,
		StartTime: time.Now(),
		Status:    types.BatchStatusInProgress,
	}
	s.batches[batch.ID] = batch
	return batch.ID, nil
}

// FinishProduction closes the batch and marks the order finished.
func (s *MemoryStore) FinishProduction(ctx context.Context, orderID int64, batchRef string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batch, ok := s.batches[batchRef]
	if !ok {
		return fmt.Errorf("batch %s: %w", batchRef, ErrBatchNotFound)
	}
	order, ok := s.orders[orderID]
	if !ok {
		return fmt.Errorf("order %d: %w", orderID, ErrOrderNotFound)
	}

	now := time.Now()
	batch.FinishTime = &now
	batch.Status = types.BatchStatusCompleted
	order.StatusID = types.StatusIDFinished
	order.StatusName = string(types.OrderStatusFinished)
	return nil
}

// DeductIngredientsForOrder applies recipe consumption atomically: every
// line is validated before any stock changes, so a failure leaves stock
// untouched.
func (s *MemoryStore) DeductIngredientsForOrder(ctx context.Context, orderID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return fmt.Errorf("order %d: %w", orderID, ErrOrderNotFound)
	}

	changes := make(map[int64]float64)
	for _, item := range order.Items {
		for _, r := range s.recipes {
			if r.ProductID == item.ProductID {
				changes[r.IngredientID] += r.AmountPerUnit * float64(item.Quantity)
			}
		}
	}

	for id, amount := range changes {
		ing, ok := s.ingredients[id]
		if !ok || ing.CurrentStock < amount {
			return fmt.Errorf("ingredient %d: %w", id, ErrInsufficientStock)
		}
	}
	for id, amount := range changes {
		s.ingredients[id].CurrentStock -= amount
	}
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }
