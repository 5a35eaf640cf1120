// Package types provides core types and configurations for Matcha Schedule
package types

import (
	"time"
)

// OrderStatus represents the lifecycle status of a customer order
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusReady      OrderStatus = "ready"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusFinished   OrderStatus = "finished"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// Numeric status identifiers as persisted by the order store.
const (
	StatusIDPending    = 1
	StatusIDReady      = 2
	StatusIDProcessing = 3
	StatusIDFinished   = 4
	StatusIDCancelled  = 5
)

// MachineStatus represents the current state of a production machine
type MachineStatus string

const (
	MachineStatusIdle MachineStatus = "idle"
	MachineStatusBusy MachineStatus = "busy"
)

// BatchStatus represents the state of a persisted production batch
type BatchStatus string

const (
	BatchStatusInProgress BatchStatus = "in_progress"
	BatchStatusCompleted  BatchStatus = "completed"
)

// LogLevel represents logging verbosity levels
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// OrderItem is one line item of an order, joined with its product name.
type OrderItem struct {
	ID          int64  `json:"id"`
	OrderID     int64  `json:"orderId"`
	ProductID   int64  `json:"productId"`
	Quantity    int    `json:"quantity"`
	ProductName string `json:"productName,omitempty"`
}

// Order holds the production-relevant facts of a customer order plus a
// derived priority score. TotalQuantity is fixed at construction; the
// score is the only field the scheduler mutates afterwards.
type Order struct {
	ID            int64       `json:"id"`
	CustomerID    int64       `json:"customerId"`
	CreatedAt     time.Time   `json:"createdAt"`
	Deadline      time.Time   `json:"deadline"`
	TotalPrice    float64     `json:"totalPrice"`
	StatusID      int         `json:"statusId"`
	StatusName    string      `json:"statusName"`
	Items         []OrderItem `json:"items,omitempty"`
	TotalQuantity int         `json:"totalQuantity"`

	// PriorityScore is derived and recomputed; never persisted as
	// source of truth.
	PriorityScore float64 `json:"priorityScore"`
}

// NewOrder builds an Order and fixes its total quantity. When quantity is
// zero it is computed from the line items instead.
func NewOrder(id, customerID int64, createdAt, deadline time.Time, totalPrice float64, statusID int, statusName string, items []OrderItem, quantity int) *Order {
	if quantity == 0 {
		for _, item := range items {
			quantity += item.Quantity
		}
	}
	return &Order{
		ID:            id,
		CustomerID:    customerID,
		CreatedAt:     createdAt,
		Deadline:      deadline,
		TotalPrice:    totalPrice,
		StatusID:      statusID,
		StatusName:    statusName,
		Items:         items,
		TotalQuantity: quantity,
	}
}

// Less compares two orders by score only. Timestamp and id tie-breaks are
// the queue's responsibility, not the order's.
func (o *Order) Less(other *Order) bool {
	return o.PriorityScore < other.PriorityScore
}

// Product is a sellable product backed by a recipe.
type Product struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price"`
}

// Ingredient is a tracked raw material with stock on hand.
type Ingredient struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	CurrentStock float64 `json:"currentStock"`
	Unit         string  `json:"unit,omitempty"`
}

// RecipeItem links a product to one ingredient and the amount consumed
// per produced unit.
type RecipeItem struct {
	ProductID     int64   `json:"productId"`
	IngredientID  int64   `json:"ingredientId"`
	AmountPerUnit float64 `json:"amountPerUnit"`
}

// ProductionBatch records one machine run for one order.
type ProductionBatch struct {
	ID         string      `json:"id"`
	OrderID    int64       `json:"orderId"`
	MachineID  int         `json:"machineId"`
	StartTime  time.Time   `json:"startTime"`
	FinishTime *time.Time  `json:"finishTime,omitempty"`
	Status     BatchStatus `json:"status"`
}

// MachineSnapshot is a read-only view of one machine for status display.
type MachineSnapshot struct {
	MachineID       int           `json:"machineId"`
	Status          MachineStatus `json:"status"`
	CurrentOrderID  int64         `json:"currentOrderId,omitempty"`
	EstimatedFinish time.Time     `json:"estimatedFinish,omitempty"`
	BatchRef        string        `json:"batchRef,omitempty"`
}

// SchedulerSnapshot is a read-only view of the whole scheduler.
type SchedulerSnapshot struct {
	Machines    []MachineSnapshot `json:"machines"`
	QueuedCount int               `json:"queuedCount"`
	CycleCount  int64             `json:"cycleCount"`
	LastCycleAt time.Time         `json:"lastCycleAt,omitempty"`
	StockAlert  bool              `json:"stockAlert"`
}
