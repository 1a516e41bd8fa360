package state

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryManager is an in-memory implementation of the Manager interface.
// This is useful for testing and for dry runs.
type MemoryManager struct {
	runs  map[string]*Run
	locks map[string]time.Time
	mu    sync.RWMutex
}

// NewMemoryManager creates a new in-memory state manager.
func NewMemoryManager() *MemoryManager {
	return &MemoryManager{
		runs:  make(map[string]*Run),
		locks: make(map[string]time.Time),
	}
}

// GetRun retrieves a run by ID.
func (m *MemoryManager) GetRun(ctx context.Context, id string) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if run, exists := m.runs[id]; exists {
		copied := *run
		return &copied, nil
	}
	return nil, nil
}

// CreateRun stores a new run record.
func (m *MemoryManager) CreateRun(ctx context.Context, run *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.runs[run.ID]; exists {
		return fmt.Errorf("run already exists: %s", run.ID)
	}
	copied := *run
	m.runs[run.ID] = &copied
	return nil
}

// UpdateRun replaces an existing run record.
func (m *MemoryManager) UpdateRun(ctx context.Context, run *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.runs[run.ID]; !exists {
		return fmt.Errorf("run not found: %s", run.ID)
	}
	copied := *run
	m.runs[run.ID] = &copied
	return nil
}

// DeleteRun removes a run record.
func (m *MemoryManager) DeleteRun(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.runs, id)
	return nil
}

// ListRuns returns all runs, optionally filtered by connector.
func (m *MemoryManager) ListRuns(ctx context.Context, connector string) ([]*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	runs := make([]*Run, 0, len(m.runs))
	for _, run := range m.runs {
		if connector != "" && run.Connector != connector {
			continue
		}
		copied := *run
		runs = append(runs, &copied)
	}
	return runs, nil
}

// Lock attempts to acquire a named lock for the given duration.
func (m *MemoryManager) Lock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if expiry, exists := m.locks[key]; exists && expiry.After(time.Now()) {
		return false, nil
	}
	m.locks[key] = time.Now().Add(ttl)
	return true, nil
}

// Unlock releases a named lock.
func (m *MemoryManager) Unlock(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.locks, key)
	return nil
}
