package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileManager implements the Manager interface using files on disk, one
// file per run plus one file per held lock.
type FileManager struct {
	baseDir string
	mu      sync.RWMutex
}

type fileLock struct {
	Expires time.Time `json:"expires"`
}

// NewFileManager creates a file-based state manager rooted at baseDir.
func NewFileManager(baseDir string) (*FileManager, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %v", err)
	}
	return &FileManager{baseDir: baseDir}, nil
}

func (m *FileManager) runPath(id string) string {
	return filepath.Join(m.baseDir, fmt.Sprintf("%s.run.json", id))
}

func (m *FileManager) lockPath(key string) string {
	return filepath.Join(m.baseDir, fmt.Sprintf("%s.lock", key))
}

// GetRun retrieves a run by ID. A missing run returns (nil, nil).
func (m *FileManager) GetRun(ctx context.Context, id string) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.readRun(id)
}

func (m *FileManager) readRun(id string) (*Run, error) {
	data, err := os.ReadFile(m.runPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read run file: %v", err)
	}

	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %v", err)
	}
	return &run, nil
}

func (m *FileManager) writeRun(run *Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %v", err)
	}
	if err := os.WriteFile(m.runPath(run.ID), data, 0644); err != nil {
		return fmt.Errorf("failed to write run file: %v", err)
	}
	return nil
}

// CreateRun stores a new run record.
func (m *FileManager) CreateRun(ctx context.Context, run *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, err := m.readRun(run.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("run already exists: %s", run.ID)
	}
	return m.writeRun(run)
}

// UpdateRun replaces an existing run record.
func (m *FileManager) UpdateRun(ctx context.Context, run *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, err := m.readRun(run.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("run not found: %s", run.ID)
	}
	return m.writeRun(run)
}

// DeleteRun removes a run record.
func (m *FileManager) DeleteRun(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.Remove(m.runPath(id)); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to delete run file: %v", err)
	}
	return nil
}

// ListRuns returns all runs, optionally filtered by connector.
func (m *FileManager) ListRuns(ctx context.Context, connector string) ([]*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries, err := os.ReadDir(m.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read state directory: %v", err)
	}

	var runs []*Run
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".run.json") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".run.json")
		run, err := m.readRun(id)
		if err != nil || run == nil {
			continue
		}
		if connector != "" && run.Connector != connector {
			continue
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// Lock attempts to acquire a named lock for the given duration. Stale
// lock files left by crashed runs are taken over once expired.
func (m *FileManager) Lock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	path := m.lockPath(key)
	if data, err := os.ReadFile(path); err == nil {
		var lock fileLock
		if err := json.Unmarshal(data, &lock); err == nil && lock.Expires.After(time.Now()) {
			return false, nil
		}
	}

	data, err := json.Marshal(fileLock{Expires: time.Now().Add(ttl)})
	if err != nil {
		return false, fmt.Errorf("failed to marshal lock: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return false, fmt.Errorf("failed to write lock file: %v", err)
	}
	return true, nil
}

// Unlock releases a named lock.
func (m *FileManager) Unlock(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.Remove(m.lockPath(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete lock file: %v", err)
	}
	return nil
}
