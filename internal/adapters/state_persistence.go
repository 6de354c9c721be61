package adapters

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Rajchodisetti/stock-insights/internal/observ"
)

const stateVersion = 1

// PersistedState is the on-disk budget snapshot
type PersistedState struct {
	Version     int          `json:"version"`
	LastUpdated string       `json:"last_updated"`
	Limiter     LimiterState `json:"limiter"`
}

// StatePersistenceManager saves limiter windows and throttle state so a
// restart does not hand out a fresh daily budget.
type StatePersistenceManager struct {
	mu           sync.Mutex
	filePath     string
	saveInterval time.Duration
	limiter      *RateLimiter
	stopCh       chan struct{}
	wg           sync.WaitGroup
	started      bool
}

// NewStatePersistenceManager creates a new state persistence manager
func NewStatePersistenceManager(filePath string, saveInterval time.Duration, limiter *RateLimiter) *StatePersistenceManager {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		observ.Warn("state_persistence_dir_error", map[string]any{
			"error": err.Error(),
			"dir":   dir,
		})
	}
	if saveInterval <= 0 {
		saveInterval = 30 * time.Second
	}
	return &StatePersistenceManager{
		filePath:     filePath,
		saveInterval: saveInterval,
		limiter:      limiter,
	}
}

// Start begins periodic state persistence
func (spm *StatePersistenceManager) Start() {
	spm.mu.Lock()
	if spm.started {
		spm.mu.Unlock()
		return
	}
	spm.started = true
	spm.stopCh = make(chan struct{})
	stop := spm.stopCh
	spm.mu.Unlock()

	spm.wg.Add(1)
	go spm.persistenceLoop(stop)

	observ.Log("state_persistence_started", map[string]any{
		"file_path":     spm.filePath,
		"save_interval": spm.saveInterval.String(),
	})
}

// Stop ends the loop and writes a final snapshot
func (spm *StatePersistenceManager) Stop() error {
	spm.mu.Lock()
	started := spm.started
	stop := spm.stopCh
	spm.started = false
	spm.mu.Unlock()
	if started {
		close(stop)
		spm.wg.Wait()
	}

	if err := spm.Save(); err != nil {
		observ.Error("state_persistence_final_save_error", map[string]any{
			"error": err.Error(),
		})
		return err
	}
	observ.Log("state_persistence_stopped", nil)
	return nil
}

// Load reads the state file into the limiter. A missing file is not an error.
func (spm *StatePersistenceManager) Load() (bool, error) {
	data, err := os.ReadFile(spm.filePath)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read state file: %w", err)
	}

	var state PersistedState
	if err := json.Unmarshal(data, &state); err != nil {
		return false, fmt.Errorf("failed to parse state file: %w", err)
	}
	if state.Version != stateVersion {
		return false, fmt.Errorf("unsupported state version %d", state.Version)
	}

	spm.limiter.Restore(state.Limiter)
	restored := spm.limiter.Export()
	observ.Log("state_persistence_loaded", map[string]any{
		"file_path":    spm.filePath,
		"last_updated": state.LastUpdated,
		"day_calls":    len(restored.DayCalls),
		"throttled":    restored.Throttle.Throttled,
	})
	return true, nil
}

// Save writes the limiter state atomically (temp file + rename).
func (spm *StatePersistenceManager) Save() error {
	spm.mu.Lock()
	defer spm.mu.Unlock()

	state := PersistedState{
		Version:     stateVersion,
		LastUpdated: spm.limiter.Clock().Now().UTC().Format(time.RFC3339),
		Limiter:     spm.limiter.Export(),
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tempPath := spm.filePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temporary state file: %w", err)
	}
	if err := os.Rename(tempPath, spm.filePath); err != nil {
		return fmt.Errorf("failed to rename state file: %w", err)
	}
	observ.Debug("state_persistence_saved", map[string]any{
		"file_path": spm.filePath,
		"day_calls": len(state.Limiter.DayCalls),
	})
	return nil
}

// persistenceLoop runs the periodic save loop
func (spm *StatePersistenceManager) persistenceLoop(stop <-chan struct{}) {
	defer spm.wg.Done()

	ticker := time.NewTicker(spm.saveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := spm.Save(); err != nil {
				observ.Warn("state_persistence_save_error", map[string]any{
					"error": err.Error(),
				})
			}
		case <-stop:
			return
		}
	}
}
