// Package daemon provides the background scheduler daemon
package daemon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Farewellez/matcha-schedule/pkg/config"
	"github.com/Farewellez/matcha-schedule/pkg/interfaces"
	"github.com/Farewellez/matcha-schedule/pkg/logger"
	"github.com/Farewellez/matcha-schedule/pkg/notifier"
	"github.com/Farewellez/matcha-schedule/pkg/priority"
	"github.com/Farewellez/matcha-schedule/pkg/process"
	"github.com/Farewellez/matcha-schedule/pkg/queue"
	"github.com/Farewellez/matcha-schedule/pkg/scheduler"
	"github.com/Farewellez/matcha-schedule/pkg/state"
	"github.com/Farewellez/matcha-schedule/pkg/store"
	"github.com/Farewellez/matcha-schedule/pkg/types"
)

// Manager manages the Matcha Schedule daemon
type Manager struct {
	projectRoot    string
	configPath     string
	pidFile        string
	logFile        string
	stateDir       string
	demo           bool
	logger         logger.Logger
	processManager *process.Manager
	scheduler      *scheduler.Scheduler
	engine         *priority.Engine
	reload         *config.ReloadManager
	store          interfaces.ProductionStore
	group          *errgroup.Group
	mu             sync.RWMutex
	stopOnce       sync.Once
}

// Config represents daemon configuration
type Config struct {
	ProjectRoot string
	ConfigPath  string
	LogFile     string
	LogLevel    string

	// Demo forces the in-memory store and seeds it with sample data.
	Demo bool
}

// NewManager creates a new daemon manager
func NewManager(cfg Config) *Manager {
	stateDir := filepath.Join(cfg.ProjectRoot, ".matcha-schedule")
	pidFile := filepath.Join(stateDir, "daemon.pid")

	log := logger.CreateLogger(cfg.LogFile, cfg.LogLevel)

	return &Manager{
		projectRoot:    cfg.ProjectRoot,
		configPath:     cfg.ConfigPath,
		pidFile:        pidFile,
		logFile:        cfg.LogFile,
		stateDir:       stateDir,
		demo:           cfg.Demo,
		logger:         log,
		processManager: process.NewManager(log),
	}
}

// StartWithContext starts the daemon and runs the polling loop until the
// context is cancelled.
func (m *Manager) StartWithContext(ctx context.Context) error {
	m.mu.Lock()

	if m.isRunning() {
		m.mu.Unlock()
		return ErrDaemonAlreadyRunning
	}

	if err := os.MkdirAll(m.stateDir, 0755); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	if err := m.writePIDFile(); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	cfg, err := m.loadConfig()
	if err != nil {
		m.removePIDFile()
		m.mu.Unlock()
		return fmt.Errorf("failed to load config: %w", err)
	}

	deps, err := m.buildDependencies(cfg)
	if err != nil {
		m.removePIDFile()
		m.mu.Unlock()
		return err
	}

	m.scheduler = scheduler.New(cfg.Scheduling, cfg.Stock, m.logger, deps)

	m.processManager.RegisterShutdownHandler(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		m.StopWithContext(shutdownCtx)
	})
	m.processManager.SetHeartbeat(m.scheduler.RefreshMachineState)
	m.processManager.Start(ctx)

	// Hot-reload priority weights without restarting the loop.
	m.reload = config.NewReloadManager(m.configPath, m.logger)
	m.reload.AddCallback(func(newCfg *types.MatchaConfig, err error) {
		if err != nil || newCfg == nil {
			return
		}
		m.engine.SetWeights(newCfg.Weights)
		m.logger.Info("Priority weights updated",
			logger.WithField("deadline", newCfg.Weights.Deadline),
			logger.WithField("quantity", newCfg.Weights.Quantity),
			logger.WithField("stockBonus", newCfg.Weights.StockBonus))
	})
	if err := m.reload.StartWatching(); err != nil {
		m.logger.Warn("Config watching unavailable", logger.WithField("error", err))
	}

	interval := time.Duration(cfg.Scheduling.PollingIntervalSecs) * time.Second

	group, groupCtx := errgroup.WithContext(ctx)
	m.group = group
	group.Go(func() error {
		return m.scheduler.StartPolling(groupCtx, interval)
	})

	m.logger.Info("Daemon started successfully",
		logger.WithField("machines", cfg.Scheduling.MachineCount),
		logger.WithField("interval", interval))

	m.mu.Unlock()
	return nil
}

// RunOnce executes a single scheduling cycle without starting the
// polling loop or touching the PID file.
func (m *Manager) RunOnce(ctx context.Context) error {
	cfg, err := m.loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	deps, err := m.buildDependencies(cfg)
	if err != nil {
		return err
	}
	defer deps.Store.Close()

	sched := scheduler.New(cfg.Scheduling, cfg.Stock, m.logger, deps)
	return sched.RunCycle(ctx)
}

// Wait blocks until the polling loop exits.
func (m *Manager) Wait() error {
	m.mu.RLock()
	group := m.group
	m.mu.RUnlock()

	if group == nil {
		return ErrDaemonNotRunning
	}
	return group.Wait()
}

// StopWithContext stops the daemon, releasing the store and state files.
// Safe to call from both the foreground and the signal-handler goroutine;
// the second caller returns once the first stop has run.
func (m *Manager) StopWithContext(ctx context.Context) error {
	m.mu.Lock()
	if m.group == nil {
		m.mu.Unlock()
		return ErrDaemonNotRunning
	}
	reloadManager := m.reload
	productionStore := m.store
	m.mu.Unlock()

	var err error
	m.stopOnce.Do(func() {
		m.logger.Info("Stopping daemon...")

		if reloadManager != nil {
			reloadManager.StopWatching()
		}

		if productionStore != nil {
			if cerr := productionStore.Close(); cerr != nil {
				m.logger.Warn("Error closing store", logger.WithField("error", cerr))
			}
		}

		// Stop blocks until the signal goroutine drains. The daemon
		// mutex must not be held here: that goroutine may be running
		// the shutdown handler, which calls back into this method.
		done := make(chan struct{})
		go func() {
			m.processManager.Stop()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			m.logger.Warn("Shutdown deadline reached before the process manager drained")
			err = fmt.Errorf("daemon stop: %w", ctx.Err())
		}

		m.removePIDFile()
		m.logger.Info("Daemon stopped")
	})
	return err
}

// Status returns the daemon status
func (m *Manager) Status() (*Status, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.isRunning() {
		return nil, nil
	}

	status := &Status{Running: true}

	pid, err := m.readPIDFile()
	if err == nil {
		status.PID = pid
		if info, err := process.GetProcessInfo(pid); err == nil {
			status.StartTime = info.StartTime
		}
	}

	if m.scheduler != nil {
		snap := m.scheduler.Status()
		status.Scheduler = &snap
	}

	return status, nil
}

// IsRunning checks if the daemon is running
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isRunning()
}

// Scheduler exposes the running scheduler, nil before start.
func (m *Manager) Scheduler() *scheduler.Scheduler {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.scheduler
}

// Private methods

func (m *Manager) buildDependencies(cfg *types.MatchaConfig) (interfaces.SchedulerDependencies, error) {
	var productionStore interfaces.ProductionStore

	driver := cfg.Store.Driver
	if m.demo {
		driver = "memory"
	}

	switch driver {
	case "postgres":
		gs, err := store.OpenPostgres(cfg.Store.DSN)
		if err != nil {
			return interfaces.SchedulerDependencies{}, fmt.Errorf("failed to open postgres store: %w", err)
		}
		productionStore = gs
	default:
		ms := store.NewMemoryStore()
		if m.demo {
			store.SeedDemoData(ms, time.Now())
			m.logger.Info("Seeded demo data into memory store")
		}
		productionStore = ms
	}
	m.store = productionStore

	clock := priority.SystemClock()
	m.engine = priority.NewEngine(cfg.Weights, clock)

	notifEnabled := cfg.Notifications == nil ||
		cfg.Notifications.Enabled == nil || *cfg.Notifications.Enabled
	notifCfg := notifier.Config{Enabled: notifEnabled}
	if cfg.Notifications != nil {
		notifCfg.SuccessSound = cfg.Notifications.SuccessSound
		notifCfg.FailureSound = cfg.Notifications.FailureSound
	}

	return interfaces.SchedulerDependencies{
		Store:        productionStore,
		Queue:        queue.New(m.engine, m.logger),
		Notifier:     notifier.New(notifCfg, m.logger),
		StateManager: state.NewManager(m.projectRoot, m.logger),
		Clock:        clock,
	}, nil
}

func (m *Manager) isRunning() bool {
	pid, err := m.readPIDFile()
	if err != nil {
		return false
	}

	info, err := process.GetProcessInfo(pid)
	if err != nil {
		return false
	}
	return info.IsRunning
}

func (m *Manager) writePIDFile() error {
	pid := os.Getpid()
	return os.WriteFile(m.pidFile, []byte(fmt.Sprintf("%d", pid)), 0644)
}

func (m *Manager) readPIDFile() (int, error) {
	data, err := os.ReadFile(m.pidFile)
	if err != nil {
		return 0, err
	}

	var pid int
	if _, err := fmt.Sscanf(string(data), "%d", &pid); err != nil {
		return 0, err
	}
	return pid, nil
}

func (m *Manager) removePIDFile() {
	os.Remove(m.pidFile)
}

func (m *Manager) loadConfig() (*types.MatchaConfig, error) {
	manager := config.NewManager()

	if m.configPath == "" {
		if m.demo {
			return manager.GetDefaultConfig(), nil
		}
		return nil, fmt.Errorf("no configuration file specified")
	}

	cfg, err := manager.LoadConfig(m.configPath)
	if err != nil {
		return nil, err
	}
	manager.ApplyDefaults(cfg)
	return cfg, nil
}

// Status represents daemon status
type Status struct {
	Running   bool
	PID       int
	StartTime time.Time
	Scheduler *types.SchedulerSnapshot
}
