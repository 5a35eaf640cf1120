package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Farewellez/matcha-schedule/pkg/store"
	"github.com/Farewellez/matcha-schedule/pkg/types"
)

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func seededStore() *store.MemoryStore {
	s := store.NewMemoryStore()

	s.PutProduct(&types.Product{ID: 1, Name: "Matcha Latte", Price: 5.5})
	s.PutIngredient(&types.Ingredient{ID: 1, Name: "matcha powder", CurrentStock: 100, Unit: "g"})
	s.PutIngredient(&types.Ingredient{ID: 2, Name: "milk", CurrentStock: 1000, Unit: "ml"})
	s.PutRecipeItem(types.RecipeItem{ProductID: 1, IngredientID: 1, AmountPerUnit: 4})
	s.PutRecipeItem(types.RecipeItem{ProductID: 1, IngredientID: 2, AmountPerUnit: 200})

	items := []types.OrderItem{{ID: 1, OrderID: 10, ProductID: 1, Quantity: 3}}
	s.PutOrder(types.NewOrder(10, 1, testNow, testNow.Add(time.Hour),
		16.5, types.StatusIDReady, string(types.OrderStatusReady), items, 0))

	return s
}

func TestFetchReadyOrdersExcludesStarted(t *testing.T) {
	s := seededStore()
	ctx := context.Background()

	orders, err := s.FetchReadyOrders(ctx)
	if err != nil {
		t.Fatalf("FetchReadyOrders failed: %v", err)
	}
	if len(orders) != 1 || orders[0].ID != 10 {
		t.Fatalf("got %d orders, want just order 10", len(orders))
	}
	if orders[0].TotalQuantity != 3 {
		t.Errorf("total quantity = %d, want 3 derived from items", orders[0].TotalQuantity)
	}

	if _, err := s.BeginProduction(ctx, 10, 1); err != nil {
		t.Fatalf("BeginProduction failed: %v", err)
	}

	orders, err = s.FetchReadyOrders(ctx)
	if err != nil {
		t.Fatalf("second FetchReadyOrders failed: %v", err)
	}
	if len(orders) != 0 {
		t.Errorf("started order still returned as ready: %v", orders)
	}
}

func TestBeginProductionOpensBatch(t *testing.T) {
	s := seededStore()
	ctx := context.Background()

	ref, err := s.BeginProduction(ctx, 10, 2)
	if err != nil {
		t.Fatalf("BeginProduction failed: %v", err)
	}
	if ref == "" {
		t.Fatal("empty batch ref")
	}

	batch, ok := s.Batch(ref)
	if !ok {
		t.Fatal("batch record not stored")
	}
	if batch.OrderID != 10 || batch.MachineID != 2 || batch.Status != types.BatchStatusInProgress {
		t.Errorf("batch = %+v, want in-progress for order 10 machine 2", batch)
	}
}

func TestBeginProductionUnknownOrder(t *testing.T) {
	s := seededStore()

	_, err := s.BeginProduction(context.Background(), 999, 1)
	if !errors.Is(err, store.ErrOrderNotFound) {
		t.Errorf("error = %v, want ErrOrderNotFound", err)
	}
}

func TestFinishProductionClosesBatch(t *testing.T) {
	s := seededStore()
	ctx := context.Background()

	ref, _ := s.BeginProduction(ctx, 10, 1)
	if err := s.FinishProduction(ctx, 10, ref); err != nil {
		t.Fatalf("FinishProduction failed: %v", err)
	}

	batch, _ := s.Batch(ref)
	if batch.Status != types.BatchStatusCompleted || batch.FinishTime == nil {
		t.Errorf("batch = %+v, want completed with finish time", batch)
	}

	if err := s.FinishProduction(ctx, 10, "no-such-batch"); !errors.Is(err, store.ErrBatchNotFound) {
		t.Errorf("error = %v, want ErrBatchNotFound", err)
	}
}

func TestDeductIngredients(t *testing.T) {
	s := seededStore()

	if err := s.DeductIngredientsForOrder(context.Background(), 10); err != nil {
		t.Fatalf("deduction failed: %v", err)
	}

	// 3 lattes at 4g powder and 200ml milk each.
	if got := s.IngredientStock("matcha powder"); got != 88 {
		t.Errorf("matcha powder stock = %v, want 88", got)
	}
	if got := s.IngredientStock("milk"); got != 400 {
		t.Errorf("milk stock = %v, want 400", got)
	}
}

func TestDeductIngredientsAtomicOnShortage(t *testing.T) {
	s := seededStore()

	// Drain milk below what the order needs; powder alone would suffice.
	s.PutIngredient(&types.Ingredient{ID: 2, Name: "milk", CurrentStock: 100, Unit: "ml"})

	err := s.DeductIngredientsForOrder(context.Background(), 10)
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("error = %v, want ErrInsufficientStock", err)
	}

	// Nothing was applied, including the satisfiable powder line.
	if got := s.IngredientStock("matcha powder"); got != 100 {
		t.Errorf("matcha powder stock = %v, want untouched 100", got)
	}
	if got := s.IngredientStock("milk"); got != 100 {
		t.Errorf("milk stock = %v, want untouched 100", got)
	}
}

func TestLowStockIngredients(t *testing.T) {
	s := seededStore()

	names, err := s.LowStockIngredients(context.Background(), 150)
	if err != nil {
		t.Fatalf("LowStockIngredients failed: %v", err)
	}
	if len(names) != 1 || names[0] != "matcha powder" {
		t.Errorf("low stock = %v, want [matcha powder]", names)
	}
}

func TestIngredientsForOrder(t *testing.T) {
	s := seededStore()

	names, err := s.IngredientsForOrder(context.Background(), 10)
	if err != nil {
		t.Fatalf("IngredientsForOrder failed: %v", err)
	}

	want := map[string]bool{"matcha powder": true, "milk": true}
	if len(names) != 2 {
		t.Fatalf("got %v, want two ingredients", names)
	}
	for _, n := range names {
		if !want[n] {
			t.Errorf("unexpected ingredient %q", n)
		}
	}
}

func TestCancelledContext(t *testing.T) {
	s := seededStore()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.FetchReadyOrders(ctx); err == nil {
		t.Error("expected context error from FetchReadyOrders")
	}
	if _, err := s.BeginProduction(ctx, 10, 1); err == nil {
		t.Error("expected context error from BeginProduction")
	}
}

func TestSeedDemoData(t *testing.T) {
	s := store.NewMemoryStore()
	store.SeedDemoData(s, testNow)

	orders, err := s.FetchReadyOrders(context.Background())
	if err != nil {
		t.Fatalf("FetchReadyOrders failed: %v", err)
	}
	if len(orders) == 0 {
		t.Fatal("demo seed produced no ready orders")
	}
	for _, o := range orders {
		if o.TotalQuantity <= 0 {
			t.Errorf("order %d has non-positive quantity", o.ID)
		}
		if o.Deadline.IsZero() {
			t.Errorf("order %d has no deadline", o.ID)
		}
	}

	// The seed includes at least one ingredient under the default threshold.
	low, err := s.LowStockIngredients(context.Background(), 100)
	if err != nil {
		t.Fatalf("LowStockIngredients failed: %v", err)
	}
	if len(low) == 0 {
		t.Error("demo seed should include a low-stock ingredient")
	}
}
