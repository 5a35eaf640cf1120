// Package state persists per-machine runtime state for status display
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Farewellez/matcha-schedule/pkg/logger"
	"github.com/Farewellez/matcha-schedule/pkg/types"
)

// MachineState is the on-disk record for one machine. The status CLI
// reads these files so the scheduler daemon never has to answer queries.
type MachineState struct {
	MachineID       int                 `json:"machineId"`
	Status          types.MachineStatus `json:"status"`
	CurrentOrderID  int64               `json:"currentOrderId,omitempty"`
	EstimatedFinish time.Time           `json:"estimatedFinish,omitempty"`
	BatchRef        string              `json:"batchRef,omitempty"`
	ProcessID       int                 `json:"processId"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

// Manager handles machine state files under the project state directory.
type Manager struct {
	stateDir string
	logger   logger.Logger

	mu     sync.RWMutex
	states map[int]*MachineState
}

// NewManager creates a state manager rooted at projectRoot.
func NewManager(projectRoot string, log logger.Logger) *Manager {
	stateDir := filepath.Join(projectRoot, ".matcha-schedule", "state")

	if err := os.MkdirAll(stateDir, 0755); err != nil && log != nil {
		log.Error("Failed to create state directory", logger.WithField("error", err))
	}

	return &Manager{
		stateDir: stateDir,
		logger:   log,
		states:   make(map[int]*MachineState),
	}
}

// InitializeState creates the state file for a machine at startup.
func (m *Manager) InitializeState(machineID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := &MachineState{
		MachineID: machineID,
		Status:    types.MachineStatusIdle,
		ProcessID: os.Getpid(),
		UpdatedAt: time.Now(),
	}
	if err := m.saveStateFile(s); err != nil {
		return fmt.Errorf("failed to save initial state: %w", err)
	}
	m.states[machineID] = s
	return nil
}

// UpdateState writes the machine's current snapshot to its state file.
func (m *Manager) UpdateState(machineID int, snap types.MachineSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.states[machineID]
	if !ok {
		s = &MachineState{MachineID: machineID, ProcessID: os.Getpid()}
		m.states[machineID] = s
	}

	s.Status = snap.Status
	s.CurrentOrderID = snap.CurrentOrderID
	s.EstimatedFinish = snap.EstimatedFinish
	s.BatchRef = snap.BatchRef
	s.UpdatedAt = time.Now()

	return m.saveStateFile(s)
}

// ReadState loads one machine's snapshot, preferring memory over disk.
func (m *Manager) ReadState(machineID int) (*types.MachineSnapshot, error) {
	m.mu.RLock()
	if s, ok := m.states[machineID]; ok {
		m.mu.RUnlock()
		return toSnapshot(s), nil
	}
	m.mu.RUnlock()

	s, err := m.loadStateFile(machineID)
	if err != nil {
		return nil, err
	}
	return toSnapshot(s), nil
}

// DiscoverStates scans the state directory for all machine state files.
// Used by the status command, which runs in a separate process from the
// scheduler daemon.
func (m *Manager) DiscoverStates() (map[int]*types.MachineSnapshot, error) {
	entries, err := os.ReadDir(m.stateDir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[int]*types.MachineSnapshot{}, nil
		}
		return nil, fmt.Errorf("failed to read state directory: %w", err)
	}

	out := make(map[int]*types.MachineSnapshot)
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "machine-") || !strings.HasSuffix(name, ".state.json") {
			continue
		}
		idStr := strings.TrimSuffix(strings.TrimPrefix(name, "machine-"), ".state.json")
		id, err := strconv.Atoi(idStr)
		if err != nil {
			continue
		}
		s, err := m.loadStateFile(id)
		if err != nil {
			if m.logger != nil {
				m.logger.Warn("Skipping unreadable state file", logger.WithField("file", name))
			}
			continue
		}
		out[id] = toSnapshot(s)
	}
	return out, nil
}

// Cleanup removes all state files, typically on daemon shutdown.
func (m *Manager) Cleanup() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for id := range m.states {
		if err := os.Remove(m.stateFilePath(id)); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}
	m.states = make(map[int]*MachineState)
	return firstErr
}

func (m *Manager) stateFilePath(machineID int) string {
	return filepath.Join(m.stateDir, fmt.Sprintf("machine-%d.state.json", machineID))
}

func (m *Manager) saveStateFile(s *MachineState) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	// Write-then-rename so a concurrent reader never sees a torn file.
	tmp := m.stateFilePath(s.MachineID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, m.stateFilePath(s.MachineID))
}

func (m *Manager) loadStateFile(machineID int) (*MachineState, error) {
	data, err := os.ReadFile(m.stateFilePath(machineID))
	if err != nil {
		return nil, fmt.Errorf("machine state not found: %d", machineID)
	}

	var s MachineState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("corrupt state file for machine %d: %w", machineID, err)
	}
	return &s, nil
}

func toSnapshot(s *MachineState) *types.MachineSnapshot {
	return &types.MachineSnapshot{
		MachineID:       s.MachineID,
		Status:          s.Status,
		CurrentOrderID:  s.CurrentOrderID,
		EstimatedFinish: s.EstimatedFinish,
		BatchRef:        s.BatchRef,
	}
}
