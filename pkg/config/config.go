// Package config handles configuration loading and management
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Farewellez/matcha-schedule/pkg/types"
	"gopkg.in/yaml.v3"
)

// Manager handles configuration operations
type Manager struct{}

// NewManager creates a new configuration manager
func NewManager() *Manager {
	return &Manager{}
}

// LoadConfig loads configuration from a file
func (m *Manager) LoadConfig(path string) (*types.MatchaConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg types.MatchaConfig

	// Try JSON first
	if err := json.Unmarshal(data, &cfg); err == nil {
		return m.validateConfig(&cfg)
	}

	if err := yaml.Unmarshal(data, &cfg); err == nil {
		return m.validateConfig(&cfg)
	}

	return nil, fmt.Errorf("failed to parse config as JSON or YAML")
}

// ValidateConfig validates a configuration
func (m *Manager) ValidateConfig(config *types.MatchaConfig) error {
	// Check version
	if config.Version != "1.0" {
		return fmt.Errorf("unsupported config version: %s", config.Version)
	}

	if config.Scheduling.MachineCount < 0 {
		return fmt.Errorf("machineCount must not be negative")
	}
	if config.Scheduling.PollingIntervalSecs < 0 {
		return fmt.Errorf("pollingIntervalSecs must not be negative")
	}
	if config.Scheduling.MinutesPerUnit < 0 {
		return fmt.Errorf("minutesPerUnit must not be negative")
	}

	if config.Weights.Deadline < 0 || config.Weights.Quantity < 0 || config.Weights.StockBonus < 0 {
		return fmt.Errorf("priority weights must not be negative")
	}

	if config.Stock.LowStockThreshold < 0 {
		return fmt.Errorf("lowStockThreshold must not be negative")
	}

	switch config.Store.Driver {
	case "", "memory":
	case "postgres":
		if config.Store.DSN == "" {
			return fmt.Errorf("postgres store requires a dsn")
		}
	default:
		return fmt.Errorf("invalid store driver: %s", config.Store.Driver)
	}

	return nil
}

// GetDefaultConfig returns a configuration with the stock defaults filled in
func (m *Manager) GetDefaultConfig() *types.MatchaConfig {
	enabled := true

	return &types.MatchaConfig{
		Version: "1.0",
		Scheduling: types.SchedulingConfig{
			MachineCount:        2,
			PollingIntervalSecs: 10,
			MinutesPerUnit:      1.0,
		},
		Weights: types.DefaultPriorityWeights(),
		Stock: types.StockConfig{
			LowStockThreshold: 100.0,
		},
		Store: types.StoreConfig{
			Driver: "memory",
		},
		Notifications: &types.NotificationConfig{
			Enabled: &enabled,
		},
		Logging: &types.LoggingConfig{
			Level: types.LogLevelInfo,
		},
	}
}

// ApplyDefaults fills zero-valued fields with the stock defaults so a
// minimal config file still produces a runnable scheduler.
func (m *Manager) ApplyDefaults(cfg *types.MatchaConfig) {
	def := m.GetDefaultConfig()

	if cfg.Scheduling.MachineCount == 0 {
		cfg.Scheduling.MachineCount = def.Scheduling.MachineCount
	}
	if cfg.Scheduling.PollingIntervalSecs == 0 {
		cfg.Scheduling.PollingIntervalSecs = def.Scheduling.PollingIntervalSecs
	}
	if cfg.Scheduling.MinutesPerUnit == 0 {
		cfg.Scheduling.MinutesPerUnit = def.Scheduling.MinutesPerUnit
	}
	if cfg.Weights == (types.PriorityWeights{}) {
		cfg.Weights = def.Weights
	}
	if cfg.Stock.LowStockThreshold == 0 {
		cfg.Stock.LowStockThreshold = def.Stock.LowStockThreshold
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = def.Store.Driver
	}
}

// Private methods

func (m *Manager) validateConfig(cfg *types.MatchaConfig) (*types.MatchaConfig, error) {
	if err := m.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
