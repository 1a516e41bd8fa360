package state

import (
	"context"
	"sync"
	"testing"
	"time"
)

// managerTest exercises the Manager contract shared by all backends.
func managerTest(t *testing.T, manager Manager) {
	ctx := context.Background()

	t.Run("Basic Operations", func(t *testing.T) {
		run := &Run{
			ID:        "run-1",
			Connector: "GoogleAds",
			Status:    StatusRunning,
			StartedAt: time.Now(),
		}
		if err := manager.CreateRun(ctx, run); err != nil {
			t.Fatalf("Failed to create run: %v", err)
		}

		got, err := manager.GetRun(ctx, "run-1")
		if err != nil {
			t.Fatalf("Failed to get run: %v", err)
		}
		if got == nil || got.Connector != "GoogleAds" {
			t.Errorf("Expected GoogleAds run, got %+v", got)
		}

		run.Status = StatusCompleted
		run.FinishedAt = time.Now()
		if err := manager.UpdateRun(ctx, run); err != nil {
			t.Fatalf("Failed to update run: %v", err)
		}
		got, err = manager.GetRun(ctx, "run-1")
		if err != nil {
			t.Fatalf("Failed to get updated run: %v", err)
		}
		if got.Status != StatusCompleted {
			t.Errorf("Expected status %s, got %s", StatusCompleted, got.Status)
		}

		if err := manager.DeleteRun(ctx, "run-1"); err != nil {
			t.Fatalf("Failed to delete run: %v", err)
		}
		got, err = manager.GetRun(ctx, "run-1")
		if err != nil {
			t.Fatalf("Failed to get deleted run: %v", err)
		}
		if got != nil {
			t.Errorf("Expected nil for deleted run, got %+v", got)
		}
	})

	t.Run("Duplicate Create", func(t *testing.T) {
		run := &Run{ID: "run-dup", Connector: "CM360", Status: StatusRunning, StartedAt: time.Now()}
		if err := manager.CreateRun(ctx, run); err != nil {
			t.Fatalf("Failed to create run: %v", err)
		}
		if err := manager.CreateRun(ctx, run); err == nil {
			t.Error("Expected error creating duplicate run")
		}
	})

	t.Run("List By Connector", func(t *testing.T) {
		for _, r := range []*Run{
			{ID: "run-ga-1", Connector: "GoogleAds", Status: StatusCompleted, StartedAt: time.Now()},
			{ID: "run-ga-2", Connector: "GoogleAds", Status: StatusFailed, StartedAt: time.Now()},
			{ID: "run-cm-1", Connector: "CM360", Status: StatusCompleted, StartedAt: time.Now()},
		} {
			if err := manager.CreateRun(ctx, r); err != nil {
				t.Fatalf("Failed to create run %s: %v", r.ID, err)
			}
		}

		runs, err := manager.ListRuns(ctx, "GoogleAds")
		if err != nil {
			t.Fatalf("Failed to list runs: %v", err)
		}
		if len(runs) != 2 {
			t.Errorf("Expected 2 GoogleAds runs, got %d", len(runs))
		}
		for _, r := range runs {
			if r.Connector != "GoogleAds" {
				t.Errorf("Expected GoogleAds run, got %s", r.Connector)
			}
		}
	})

	t.Run("Locking Mechanism", func(t *testing.T) {
		locked, err := manager.Lock(ctx, "deploy-googleads", time.Minute)
		if err != nil {
			t.Fatalf("Failed to acquire lock: %v", err)
		}
		if !locked {
			t.Fatal("Expected to acquire lock")
		}

		locked, err = manager.Lock(ctx, "deploy-googleads", time.Minute)
		if err != nil {
			t.Fatalf("Failed on second lock attempt: %v", err)
		}
		if locked {
			t.Error("Expected second lock attempt to fail")
		}

		if err := manager.Unlock(ctx, "deploy-googleads"); err != nil {
			t.Fatalf("Failed to unlock: %v", err)
		}
		locked, err = manager.Lock(ctx, "deploy-googleads", time.Minute)
		if err != nil {
			t.Fatalf("Failed to re-acquire lock: %v", err)
		}
		if !locked {
			t.Error("Expected to re-acquire lock after unlock")
		}
		if err := manager.Unlock(ctx, "deploy-googleads"); err != nil {
			t.Fatalf("Failed to unlock: %v", err)
		}
	})

	t.Run("Lock Expiry", func(t *testing.T) {
		locked, err := manager.Lock(ctx, "deploy-cm360", 10*time.Millisecond)
		if err != nil || !locked {
			t.Fatalf("Failed to acquire lock: locked=%v err=%v", locked, err)
		}
		time.Sleep(20 * time.Millisecond)
		locked, err = manager.Lock(ctx, "deploy-cm360", time.Minute)
		if err != nil {
			t.Fatalf("Failed to take over expired lock: %v", err)
		}
		if !locked {
			t.Error("Expected to take over expired lock")
		}
		if err := manager.Unlock(ctx, "deploy-cm360"); err != nil {
			t.Fatalf("Failed to unlock: %v", err)
		}
	})

	t.Run("Concurrent Operations", func(t *testing.T) {
		run := &Run{ID: "run-concurrent", Connector: "GoogleAds", Status: StatusRunning, StartedAt: time.Now()}
		if err := manager.CreateRun(ctx, run); err != nil {
			t.Fatalf("Failed to create run: %v", err)
		}

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 50; j++ {
					update := *run
					update.Status = StatusCompleted
					if err := manager.UpdateRun(ctx, &update); err != nil {
						t.Errorf("Failed concurrent update: %v", err)
					}
				}
			}()
		}
		wg.Wait()

		got, err := manager.GetRun(ctx, "run-concurrent")
		if err != nil {
			t.Fatalf("Failed to get final run: %v", err)
		}
		if got.Status != StatusCompleted {
			t.Errorf("Expected status %s, got %s", StatusCompleted, got.Status)
		}
	})
}

func TestMemoryManager(t *testing.T) {
	managerTest(t, NewMemoryManager())
}

func TestFileManager(t *testing.T) {
	manager, err := NewFileManager(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create file manager: %v", err)
	}
	managerTest(t, manager)
}
