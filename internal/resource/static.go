package resource

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// StaticChecker validates constraints against a fixed, in-memory inventory.
// This is useful for tests and for dry runs where no cloud access exists.
type StaticChecker struct {
	mu       sync.RWMutex
	datasets map[string]string // dataset id -> location
	readOnly map[string]bool   // dataset id -> write denied
	buckets  map[string]string // bucket name -> location
}

// NewStaticChecker creates an empty static checker.
func NewStaticChecker() *StaticChecker {
	return &StaticChecker{
		datasets: make(map[string]string),
		readOnly: make(map[string]bool),
		buckets:  make(map[string]string),
	}
}

// AddDataset registers a dataset with its location.
func (s *StaticChecker) AddDataset(id, location string) *StaticChecker {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.datasets[id] = location
	return s
}

// AddReadOnlyDataset registers a dataset that denies writes.
func (s *StaticChecker) AddReadOnlyDataset(id, location string) *StaticChecker {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.datasets[id] = location
	s.readOnly[id] = true
	return s
}

// AddBucket registers a bucket with its location.
func (s *StaticChecker) AddBucket(name, location string) *StaticChecker {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buckets[name] = location
	return s
}

func (s *StaticChecker) CheckDataset(ctx context.Context, c DatasetConstraint) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	location, exists := s.datasets[c.ID]
	if !exists {
		if c.MustExist {
			return fmt.Errorf("dataset does not exist")
		}
		return nil
	}
	if c.Location != "" && !strings.EqualFold(location, c.Location) {
		return fmt.Errorf("dataset is in location %s, expected %s", location, c.Location)
	}
	if c.Writable && s.readOnly[c.ID] {
		return fmt.Errorf("dataset is not writable")
	}
	return nil
}

func (s *StaticChecker) CheckBucket(ctx context.Context, c BucketConstraint) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	location, exists := s.buckets[c.Name]
	if !exists {
		if c.MustExist {
			return fmt.Errorf("bucket does not exist")
		}
		return nil
	}
	if c.Location != "" && !locationCovers(location, c.Location) {
		return fmt.Errorf("bucket is in location %s, expected %s", location, c.Location)
	}
	return nil
}
