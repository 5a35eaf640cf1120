package types

// PriorityWeights holds the scoring weights. Constructed once at startup
// and passed explicitly; scoring never reads ambient globals.
type PriorityWeights struct {
	Deadline   float64 `json:"deadline" yaml:"deadline"`
	Quantity   float64 `json:"quantity" yaml:"quantity"`
	StockBonus float64 `json:"stockBonus" yaml:"stockBonus"`
}

// DefaultPriorityWeights returns the stock weighting used when the config
// file does not override it.
func DefaultPriorityWeights() PriorityWeights {
	return PriorityWeights{
		Deadline:   500000.0,
		Quantity:   1.0,
		StockBonus: 100.0,
	}
}

// SchedulingConfig controls the polling loop and the machine pool.
type SchedulingConfig struct {
	MachineCount          int     `json:"machineCount" yaml:"machineCount"`
	PollingIntervalSecs   int     `json:"pollingIntervalSecs" yaml:"pollingIntervalSecs"`
	MinutesPerUnit        float64 `json:"minutesPerUnit" yaml:"minutesPerUnit"`
	RequeueOnStartFailure *bool   `json:"requeueOnStartFailure,omitempty" yaml:"requeueOnStartFailure,omitempty"`
}

// StockConfig controls low-stock detection and how the resulting bonus is
// applied to queued orders.
type StockConfig struct {
	LowStockThreshold float64 `json:"lowStockThreshold" yaml:"lowStockThreshold"`

	// ScopedStockBoost restricts the stock bonus to orders whose recipe
	// actually consumes a low-stock ingredient. Off by default: the
	// uniform bonus matches the historical behavior.
	ScopedStockBoost bool `json:"scopedStockBoost" yaml:"scopedStockBoost"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Driver string `json:"driver" yaml:"driver"` // "postgres" or "memory"
	DSN    string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
}

// NotificationConfig represents notification preferences
type NotificationConfig struct {
	Enabled      *bool  `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	SuccessSound string `json:"successSound,omitempty" yaml:"successSound,omitempty"`
	FailureSound string `json:"failureSound,omitempty" yaml:"failureSound,omitempty"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	File  string   `json:"file" yaml:"file"`
	Level LogLevel `json:"level" yaml:"level"`
}

// MatchaConfig represents the main configuration
type MatchaConfig struct {
	Version       string              `json:"version" yaml:"version"`
	Scheduling    SchedulingConfig    `json:"scheduling" yaml:"scheduling"`
	Weights       PriorityWeights     `json:"weights" yaml:"weights"`
	Stock         StockConfig         `json:"stock" yaml:"stock"`
	Store         StoreConfig         `json:"store" yaml:"store"`
	Notifications *NotificationConfig `json:"notifications,omitempty" yaml:"notifications,omitempty"`
	Logging       *LoggingConfig      `json:"logging,omitempty" yaml:"logging,omitempty"`
}

// RequeueEnabled reports whether an order whose production start failed
// to persist goes back into the queue. Defaults to true so the order is
// not lost until the next restart.
func (c *SchedulingConfig) RequeueEnabled() bool {
	return c.RequeueOnStartFailure == nil || *c.RequeueOnStartFailure
}
