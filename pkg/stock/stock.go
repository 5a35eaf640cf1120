// Package stock watches ingredient levels and applies production consumption
package stock

import (
	"context"
	"fmt"
	"sync"

	"github.com/Farewellez/matcha-schedule/pkg/interfaces"
	"github.com/Farewellez/matcha-schedule/pkg/logger"
	"github.com/Farewellez/matcha-schedule/pkg/types"
)

// Monitor evaluates low-stock pressure against the store and deducts
// consumed ingredients for finished orders.
type Monitor struct {
	store    interfaces.ProductionStore
	notifier interfaces.ProductionNotifier
	config   types.StockConfig
	log      logger.Logger

	mu       sync.Mutex
	alerting bool
}

// NewMonitor creates a stock monitor.
func NewMonitor(store interfaces.ProductionStore, notifier interfaces.ProductionNotifier, config types.StockConfig, log logger.Logger) *Monitor {
	return &Monitor{
		store:    store,
		notifier: notifier,
		config:   config,
		log:      log,
	}
}

// LowStockIngredients returns the names of ingredients below the
// configured threshold. The operator is notified once per transition into
// the low-stock state, not on every poll.
func (m *Monitor) LowStockIngredients(ctx context.Context) ([]string, error) {
	names, err := m.store.LowStockIngredients(ctx, m.config.LowStockThreshold)
	if err != nil {
		return nil, fmt.Errorf("low stock query: %w", err)
	}

	m.mu.Lock()
	wasAlerting := m.alerting
	m.alerting = len(names) > 0
	m.mu.Unlock()

	if len(names) > 0 && !wasAlerting {
		if m.log != nil {
			m.log.Warn("Low stock detected", logger.WithField("ingredients", names))
		}
		if m.notifier != nil {
			m.notifier.NotifyLowStock(names)
		}
	}
	return names, nil
}

// Alerting reports whether the last poll found any low ingredient.
func (m *Monitor) Alerting() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.alerting
}

// DeductForOrder applies the recipe-based consumption of a finished
// order. The store applies it atomically; on error stock is unchanged
// and the caller decides whether to retry.
func (m *Monitor) DeductForOrder(ctx context.Context, order *types.Order) error {
	if err := m.store.DeductIngredientsForOrder(ctx, order.ID); err != nil {
		return fmt.Errorf("deduct ingredients for order %d: %w", order.ID, err)
	}
	if m.log != nil {
		m.log.Debug("Stock deducted",
			logger.WithField("order", order.ID),
			logger.WithField("units", order.TotalQuantity))
	}
	return nil
}
