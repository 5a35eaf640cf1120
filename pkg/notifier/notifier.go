// Package notifier provides production event notifications
package notifier

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/gen2brain/beeep"

	"github.com/Farewellez/matcha-schedule/pkg/logger"
)

// ProductionNotifier surfaces scheduler events as desktop notifications
type ProductionNotifier struct {
	enabled      bool
	successSound string
	failureSound string
	logger       logger.Logger
}

// Config represents notification configuration
type Config struct {
	Enabled      bool
	SuccessSound string
	FailureSound string
}

// New creates a new production notifier
func New(config Config, log logger.Logger) *ProductionNotifier {
	return &ProductionNotifier{
		enabled:      config.Enabled,
		successSound: config.SuccessSound,
		failureSound: config.FailureSound,
		logger:       log,
	}
}

// NotifyProductionStart notifies that a machine picked up an order
func (n *ProductionNotifier) NotifyProductionStart(orderID int64, machineID int) {
	if !n.enabled {
		return
	}

	title := "🍵 Matcha Schedule"
	message := fmt.Sprintf("Machine %d started order #%d", machineID, orderID)

	n.sendNotification(title, message, "")
}

// NotifyProductionFinished notifies that an order completed production
func (n *ProductionNotifier) NotifyProductionFinished(orderID int64, machineID int, duration time.Duration) {
	if !n.enabled {
		return
	}

	title := "✅ Production Finished"
	message := fmt.Sprintf("Order #%d done on machine %d in %s", orderID, machineID, formatDuration(duration))

	n.sendNotification(title, message, n.successSound)
}

// NotifyProductionFailure notifies that an order failed to persist its transition
func (n *ProductionNotifier) NotifyProductionFailure(orderID int64, machineID int, err error) {
	if !n.enabled {
		return
	}

	title := "❌ Production Failure"
	message := fmt.Sprintf("Order #%d on machine %d: %v", orderID, machineID, err)

	n.sendNotification(title, message, n.failureSound)
}

// NotifyLowStock warns the operator about ingredients running low
func (n *ProductionNotifier) NotifyLowStock(ingredients []string) {
	if !n.enabled || len(ingredients) == 0 {
		return
	}

	title := "⚠️ Low Stock"
	message := fmt.Sprintf("Running low: %s", strings.Join(ingredients, ", "))

	n.sendNotification(title, message, n.failureSound)
}

// NotifyQueueStatus notifies about queue pressure
func (n *ProductionNotifier) NotifyQueueStatus(busy int, queued int) {
	if !n.enabled {
		return
	}

	// Only notify when the backlog is significant
	if queued > 5 {
		title := "⏳ Production Queue"
		message := fmt.Sprintf("%d machines busy, %d orders queued", busy, queued)
		n.sendNotification(title, message, "")
	}
}

// Private methods

func (n *ProductionNotifier) sendNotification(title, message, soundName string) {
	switch runtime.GOOS {
	case "darwin":
		n.sendDesktopNotification(title, message, soundName)
	case "linux", "windows":
		n.sendDesktopNotification(title, message, "")
	default:
		// Fallback to console
		n.logger.Info(fmt.Sprintf("%s: %s", title, message))
	}
}

func (n *ProductionNotifier) sendDesktopNotification(title, message, soundName string) {
	if err := beeep.Notify(title, message, ""); err != nil {
		n.logger.Debug("Failed to send notification", logger.WithField("error", err))
	}

	if soundName != "" {
		if err := beeep.Beep(beeep.DefaultFreq, beeep.DefaultDuration); err != nil {
			n.logger.Debug("Failed to play sound", logger.WithField("error", err))
		}
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}
