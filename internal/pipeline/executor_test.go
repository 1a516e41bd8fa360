package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/gmartner/mktdeploy/internal/logger"
)

var testLog = logger.New("test", "error")

var testSubs = Substitutions{SubLogsBucket: "logs"}

// recorder tracks which steps ran and in what order.
type recorder struct {
	mu    sync.Mutex
	order []string
}

func (r *recorder) step(id string) StepFunc {
	return func(ctx context.Context) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.order = append(r.order, id)
		return nil
	}
}

func (r *recorder) ran(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, got := range r.order {
		if got == id {
			return true
		}
	}
	return false
}

func (r *recorder) index(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, got := range r.order {
		if got == id {
			return i
		}
	}
	return -1
}

func TestExecutorWaitForOrdering(t *testing.T) {
	rec := &recorder{}
	p, err := New([]Step{
		{ID: "validate", WaitFor: []string{StartImmediately}, Run: rec.step("validate")},
		{ID: "deploy_a", WaitFor: []string{"validate"}, Run: rec.step("deploy_a")},
		{ID: "deploy_b", WaitFor: []string{"validate"}, Run: rec.step("deploy_b")},
	}, testSubs)
	if err != nil {
		t.Fatalf("Failed to build pipeline: %v", err)
	}

	results, err := NewExecutor(testLog).Run(context.Background(), p)
	if err != nil {
		t.Fatalf("Pipeline failed: %v", err)
	}
	for _, id := range []string{"validate", "deploy_a", "deploy_b"} {
		if results[id] == nil || results[id].State != StateCompleted {
			t.Errorf("Expected %s completed, got %+v", id, results[id])
		}
	}
	if rec.index("validate") != 0 {
		t.Errorf("Expected validate to run first, order %v", rec.order)
	}
}

func TestExecutorParallelWave(t *testing.T) {
	// Both deploy steps wait only on the validator, so they run in the
	// same wave. Each blocks until the other has started.
	aStarted := make(chan struct{})
	bStarted := make(chan struct{})

	p, err := New([]Step{
		{ID: "init", Run: noop},
		{ID: "a", WaitFor: []string{"init"}, Run: func(ctx context.Context) error {
			close(aStarted)
			select {
			case <-bStarted:
				return nil
			case <-time.After(5 * time.Second):
				return errors.New("step b never started")
			}
		}},
		{ID: "b", WaitFor: []string{"init"}, Run: func(ctx context.Context) error {
			close(bStarted)
			select {
			case <-aStarted:
				return nil
			case <-time.After(5 * time.Second):
				return errors.New("step a never started")
			}
		}},
	}, testSubs)
	if err != nil {
		t.Fatalf("Failed to build pipeline: %v", err)
	}

	if _, err := NewExecutor(testLog).Run(context.Background(), p); err != nil {
		t.Fatalf("Expected parallel execution, got %v", err)
	}
}

func TestExecutorSkip(t *testing.T) {
	rec := &recorder{}
	p, err := New([]Step{
		{ID: "init", Run: rec.step("init")},
		{
			ID:      "gated",
			WaitFor: []string{"init"},
			SkipIf: func(ctx context.Context) (bool, string) {
				return true, "gated is not being deployed. Skipping."
			},
			Run: rec.step("gated"),
		},
		{ID: "after", WaitFor: []string{"gated"}, Run: rec.step("after")},
	}, testSubs)
	if err != nil {
		t.Fatalf("Failed to build pipeline: %v", err)
	}

	results, err := NewExecutor(testLog).Run(context.Background(), p)
	if err != nil {
		t.Fatalf("Pipeline failed: %v", err)
	}
	if rec.ran("gated") {
		t.Error("Skipped step must not run")
	}
	if results["gated"].State != StateSkipped {
		t.Errorf("Expected skipped state, got %s", results["gated"].State)
	}
	if results["gated"].Message == "" {
		t.Error("Expected a skip message")
	}
	// A skipped dependency still unblocks downstream steps.
	if !rec.ran("after") {
		t.Error("Step after a skipped dependency must still run")
	}
}

func TestExecutorFailFast(t *testing.T) {
	rec := &recorder{}
	p, err := New([]Step{
		{ID: "boom", Run: func(ctx context.Context) error { return errors.New("exit status 1") }},
		{ID: "next", WaitFor: []string{"boom"}, Run: rec.step("next")},
	}, testSubs)
	if err != nil {
		t.Fatalf("Failed to build pipeline: %v", err)
	}

	results, err := NewExecutor(testLog).Run(context.Background(), p)
	if err == nil {
		t.Fatal("Expected pipeline failure")
	}
	if results["boom"].State != StateFailed {
		t.Errorf("Expected failed state, got %s", results["boom"].State)
	}
	if rec.ran("next") {
		t.Error("Steps after a failed dependency must not run")
	}
	if _, exists := results["next"]; exists {
		t.Error("Never-started step should have no result")
	}
}

func TestExecutorContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rec := &recorder{}
	p, err := New([]Step{
		{ID: "first", Run: func(c context.Context) error {
			cancel()
			return nil
		}},
		{ID: "second", WaitFor: []string{"first"}, Run: rec.step("second")},
	}, testSubs)
	if err != nil {
		t.Fatalf("Failed to build pipeline: %v", err)
	}

	_, err = NewExecutor(testLog).Run(ctx, p)
	if err != context.Canceled {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if rec.ran("second") {
		t.Error("No step may start after cancellation")
	}
}
