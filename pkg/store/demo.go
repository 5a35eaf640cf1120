package store

import (
	"time"

	"github.com/Farewellez/matcha-schedule/pkg/types"
)

// SeedDemoData loads a small bakery dataset into a memory store so the
// scheduler can be exercised without a database. One ingredient starts
// below the default low-stock threshold to trigger the alert path.
func SeedDemoData(s *MemoryStore, now time.Time) {
	s.PutProduct(&types.Product{ID: 1, Name: "Matcha Latte", Price: 5.50})
	s.PutProduct(&types.Product{ID: 2, Name: "Matcha Croissant", Price: 4.25})
	s.PutProduct(&types.Product{ID: 3, Name: "Green Tea Mochi", Price: 3.00})

	s.PutIngredient(&types.Ingredient{ID: 1, Name: "matcha powder", CurrentStock: 80, Unit: "g"})
	s.PutIngredient(&types.Ingredient{ID: 2, Name: "flour", CurrentStock: 5000, Unit: "g"})
	s.PutIngredient(&types.Ingredient{ID: 3, Name: "milk", CurrentStock: 9000, Unit: "ml"})
	s.PutIngredient(&types.Ingredient{ID: 4, Name: "rice flour", CurrentStock: 2400, Unit: "g"})

	s.PutRecipeItem(types.RecipeItem{ProductID: 1, IngredientID: 1, AmountPerUnit: 4})
	s.PutRecipeItem(types.RecipeItem{ProductID: 1, IngredientID: 3, AmountPerUnit: 200})
	s.PutRecipeItem(types.RecipeItem{ProductID: 2, IngredientID: 1, AmountPerUnit: 2})
	s.PutRecipeItem(types.RecipeItem{ProductID: 2, IngredientID: 2, AmountPerUnit: 60})
	s.PutRecipeItem(types.RecipeItem{ProductID: 3, IngredientID: 4, AmountPerUnit: 30})

	orders := []struct {
		id       int64
		customer int64
		deadline time.Duration
		items    []types.OrderItem
	}{
		{101, 11, 30 * time.Minute, []types.OrderItem{
			{ID: 1, OrderID: 101, ProductID: 1, Quantity: 2, ProductName: "Matcha Latte"},
		}},
		{102, 12, 2 * time.Hour, []types.OrderItem{
			{ID: 2, OrderID: 102, ProductID: 2, Quantity: 12, ProductName: "Matcha Croissant"},
		}},
		{103, 13, 45 * time.Minute, []types.OrderItem{
			{ID: 3, OrderID: 103, ProductID: 3, Quantity: 6, ProductName: "Green Tea Mochi"},
			{ID: 4, OrderID: 103, ProductID: 1, Quantity: 1, ProductName: "Matcha Latte"},
		}},
		{104, 14, 6 * time.Hour, []types.OrderItem{
			{ID: 5, OrderID: 104, ProductID: 2, Quantity: 24, ProductName: "Matcha Croissant"},
		}},
	}

	for _, o := range orders {
		order := types.NewOrder(o.id, o.customer, now, now.Add(o.deadline),
			0, types.StatusIDReady, string(types.OrderStatusReady), o.items, 0)
		s.PutOrder(order)
	}
}
