package state

import (
	"context"
	"time"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
)

// Run records a single connector deployment attempt.
type Run struct {
	ID         string    `json:"id"`
	Connector  string    `json:"connector"`
	Status     string    `json:"status"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt,omitempty"`
	LogObject  string    `json:"logObject,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Manager defines the interface for deployment state management.
type Manager interface {
	// GetRun retrieves a run by ID. A missing run returns (nil, nil).
	GetRun(ctx context.Context, id string) (*Run, error)

	// CreateRun stores a new run record.
	CreateRun(ctx context.Context, run *Run) error

	// UpdateRun replaces an existing run record.
	UpdateRun(ctx context.Context, run *Run) error

	// DeleteRun removes a run record.
	DeleteRun(ctx context.Context, id string) error

	// ListRuns retrieves all runs, optionally filtered by connector.
	ListRuns(ctx context.Context, connector string) ([]*Run, error)

	// Lock acquires a named lock for the given duration. It returns false
	// when another holder has the lock.
	Lock(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Unlock releases a named lock.
	Unlock(ctx context.Context, key string) error
}
