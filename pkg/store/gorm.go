package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Farewellez/matcha-schedule/pkg/types"
)

// OrderRecord maps the orders table.
type OrderRecord struct {
	ID            int64     `gorm:"primaryKey;column:order_id"`
	CustomerID    int64     `gorm:"column:customer_id;index"`
	CreatedAt     time.Time `gorm:"column:order_timestamp"`
	Deadline      time.Time `gorm:"column:deadline"`
	TotalPrice    float64   `gorm:"column:total_price"`
	StatusID      int       `gorm:"column:status_id;index"`
	StatusName    string    `gorm:"column:status_name;size:64"`
	TotalQuantity int       `gorm:"column:total_quantity"`

	Items []OrderItemRecord `gorm:"foreignKey:OrderID"`
}

func (OrderRecord) TableName() string { return "orders" }

// OrderItemRecord maps the order_items table.
type OrderItemRecord struct {
	ID          int64  `gorm:"primaryKey;column:order_item_id"`
	OrderID     int64  `gorm:"column:order_id;index"`
	ProductID   int64  `gorm:"column:product_id;index"`
	Quantity    int    `gorm:"column:quantity"`
	ProductName string `gorm:"column:product_name;size:256"`
}

func (OrderItemRecord) TableName() string { return "order_items" }

// ProductRecord maps the products table.
type ProductRecord struct {
	ID          int64   `gorm:"primaryKey;column:product_id"`
	Name        string  `gorm:"column:product_name;size:256;not null"`
	Description string  `gorm:"column:description"`
	Price       float64 `gorm:"column:price"`
}

func (ProductRecord) TableName() string { return "products" }

// IngredientRecord maps the inventory table.
type IngredientRecord struct {
	ID           int64   `gorm:"primaryKey;column:ingredient_id"`
	Name         string  `gorm:"column:item_name;size:256;not null;uniqueIndex"`
	CurrentStock float64 `gorm:"column:current_stock"`
	Unit         string  `gorm:"column:unit;size:32"`
}

func (IngredientRecord) TableName() string { return "inventory" }

// RecipeItemRecord maps the recipe_items table.
type RecipeItemRecord struct {
	ProductID     int64   `gorm:"primaryKey;column:product_id"`
	IngredientID  int64   `gorm:"primaryKey;column:ingredient_id"`
	AmountPerUnit float64 `gorm:"column:amount_per_unit"`
}

func (RecipeItemRecord) TableName() string { return "recipe_items" }

// ProductionBatchRecord maps the production_batch table.
type ProductionBatchRecord struct {
	ID         string     `gorm:"primaryKey;column:production_id;size:36"`
	OrderID    int64      `gorm:"column:order_id;index"`
	MachineID  int        `gorm:"column:machine_id"`
	StartTime  time.Time  `gorm:"column:start_time"`
	FinishTime *time.Time `gorm:"column:finish_time"`
	Status     string     `gorm:"column:status;size:32"`
}

func (ProductionBatchRecord) TableName() string { return "production_batch" }

// GormStore is the Postgres-backed ProductionStore.
type GormStore struct {
	db *gorm.DB
}

// OpenPostgres connects to Postgres and migrates the schema.
func OpenPostgres(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := db.AutoMigrate(
		&ProductRecord{},
		&IngredientRecord{},
		&RecipeItemRecord{},
		&OrderRecord{},
		&OrderItemRecord{},
		&ProductionBatchRecord{},
	); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &GormStore{db: db}, nil
}

// NewGormStore wraps an existing gorm.DB (used by tests with sqlite or a
// prepared connection).
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// FetchReadyOrders returns orders in ready status with their line items.
func (s *GormStore) FetchReadyOrders(ctx context.Context) ([]*types.Order, error) {
	var records []OrderRecord
	err := s.db.WithContext(ctx).
		Preload("Items").
		Where("status_id = ?", types.StatusIDReady).
		Order("order_timestamp ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("fetch ready orders: %w", err)
	}

	orders := make([]*types.Order, 0, len(records))
	for _, r := range records {
		items := make([]types.OrderItem, 0, len(r.Items))
		for _, it := range r.Items {
			items = append(items, types.OrderItem{
				ID:          it.ID,
				OrderID:     it.OrderID,
				ProductID:   it.ProductID,
				Quantity:    it.Quantity,
				ProductName: it.ProductName,
			})
		}
		orders = append(orders, types.NewOrder(
			r.ID, r.CustomerID, r.CreatedAt, r.Deadline,
			r.TotalPrice, r.StatusID, r.StatusName, items, r.TotalQuantity,
		))
	}
	return orders, nil
}

// LowStockIngredients returns ingredient names below the threshold.
func (s *GormStore) LowStockIngredients(ctx context.Context, threshold float64) ([]string, error) {
	var names []string
	err := s.db.WithContext(ctx).
		Model(&IngredientRecord{}).
		Where("current_stock < ?", threshold).
		Pluck("item_name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("low stock query: %w", err)
	}
	return names, nil
}

// IngredientsForOrder resolves the recipe of every line item to the
// distinct ingredient names it consumes.
func (s *GormStore) IngredientsForOrder(ctx context.Context, orderID int64) ([]string, error) {
	var names []string
	err := s.db.WithContext(ctx).
		Model(&IngredientRecord{}).
		Distinct("inventory.item_name").
		Joins("JOIN recipe_items ON recipe_items.ingredient_id = inventory.ingredient_id").
		Joins("JOIN order_items ON order_items.product_id = recipe_items.product_id").
		Where("order_items.order_id = ?", orderID).
		Pluck("inventory.item_name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("ingredients for order %d: %w", orderID, err)
	}
	return names, nil
}

// BeginProduction advances the order to processing and inserts a batch
// record in one transaction.
func (s *GormStore) BeginProduction(ctx context.Context, orderID int64, machineID int) (string, error) {
	batchRef := uuid.New().String()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&OrderRecord{}).
			Where("order_id = ?", orderID).
			Updates(map[string]interface{}{
				"status_id":   types.StatusIDProcessing,
				"status_name": string(types.OrderStatusProcessing),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("order %d: %w", orderID, ErrOrderNotFound)
		}

		return tx.Create(&ProductionBatchRecord{
			ID:        batchRef,
			OrderID:   orderID,
			MachineID: machineID,
			StartTime: time.Now(),
			Status:    string(types.BatchStatusInProgress),
		}).Error
	})
	if err != nil {
		return "", fmt.Errorf("begin production for order %d: %w", orderID, err)
	}
	return batchRef, nil
}

// FinishProduction closes the batch record and marks the order finished
// in one transaction.
func (s *GormStore) FinishProduction(ctx context.Context, orderID int64, batchRef string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		res := tx.Model(&ProductionBatchRecord{}).
			Where("production_id = ?", batchRef).
			Updates(map[string]interface{}{
				"finish_time": &now,
				"status":      string(types.BatchStatusCompleted),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("batch %s: %w", batchRef, ErrBatchNotFound)
		}

		return tx.Model(&OrderRecord{}).
			Where("order_id = ?", orderID).
			Updates(map[string]interface{}{
				"status_id":   types.StatusIDFinished,
				"status_name": string(types.OrderStatusFinished),
			}).Error
	})
	if err != nil {
		return fmt.Errorf("finish production for order %d: %w", orderID, err)
	}
	return nil
}

// DeductIngredientsForOrder computes the order's recipe consumption and
// applies it in one transaction. Any shortfall rolls the whole deduction
// back, leaving stock unchanged.
func (s *GormStore) DeductIngredientsForOrder(ctx context.Context, orderID int64) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var items []OrderItemRecord
		if err := tx.Where("order_id = ?", orderID).Find(&items).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return fmt.Errorf("order %d: %w", orderID, ErrOrderNotFound)
		}

		changes := make(map[int64]float64)
		for _, item := range items {
			var lines []RecipeItemRecord
			if err := tx.Where("product_id = ?", item.ProductID).Find(&lines).Error; err != nil {
				return err
			}
			for _, line := range lines {
				changes[line.IngredientID] += line.AmountPerUnit * float64(item.Quantity)
			}
		}

		for id, amount := range changes {
			res := tx.Model(&IngredientRecord{}).
				Where("ingredient_id = ? AND current_stock >= ?", id, amount).
				Update("current_stock", gorm.Expr("current_stock - ?", amount))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("ingredient %d: %w", id, ErrInsufficientStock)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("deduct ingredients for order %d: %w", orderID, err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
