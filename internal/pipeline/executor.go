package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/gmartner/mktdeploy/internal/logger"
)

// StepState represents the state of a step execution.
type StepState string

const (
	StatePending   StepState = "pending"
	StateRunning   StepState = "running"
	StateCompleted StepState = "completed"
	StateSkipped   StepState = "skipped"
	StateFailed    StepState = "failed"
)

// StepResult holds the execution outcome of a single step.
type StepResult struct {
	State    StepState
	Message  string
	Duration time.Duration
	Error    error
}

// Executor runs a pipeline's steps, honoring waitFor dependencies.
// Steps whose dependencies are satisfied run concurrently; the first
// failing step fails the whole run after its wave drains.
type Executor struct {
	log logger.Logger
}

// NewExecutor creates a pipeline executor.
func NewExecutor(log logger.Logger) *Executor {
	return &Executor{log: log}
}

// Run executes the pipeline and returns per-step results. The results map
// is complete for every step that reached a terminal state; steps never
// started because of an earlier failure are absent.
func (e *Executor) Run(ctx context.Context, p *Pipeline) (map[string]*StepResult, error) {
	results := make(map[string]*StepResult, len(p.Steps))
	var mu sync.Mutex

	steps := make(map[string]*Step, len(p.Steps))
	pending := make(map[string]bool, len(p.Steps))
	for i := range p.Steps {
		steps[p.Steps[i].ID] = &p.Steps[i]
		pending[p.Steps[i].ID] = true
	}

	for len(pending) > 0 {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		default:
		}

		ready := findReadySteps(steps, pending, results)
		if len(ready) == 0 {
			return results, errors.New("no runnable steps remain, dependency cycle in pipeline")
		}

		var wg sync.WaitGroup
		for _, id := range ready {
			step := steps[id]

			if step.SkipIf != nil {
				if skip, msg := step.SkipIf(ctx); skip {
					e.log.Infof("%s", msg)
					mu.Lock()
					results[id] = &StepResult{State: StateSkipped, Message: msg}
					mu.Unlock()
					continue
				}
			}

			wg.Add(1)
			go func(s *Step) {
				defer wg.Done()
				result := e.executeStep(ctx, s)
				mu.Lock()
				results[s.ID] = result
				mu.Unlock()
			}(step)
		}
		wg.Wait()

		for _, id := range ready {
			result := results[id]
			if result.Error != nil {
				return results, errors.Wrapf(result.Error, "step %s failed", id)
			}
			delete(pending, id)
		}
	}

	return results, nil
}

func (e *Executor) executeStep(ctx context.Context, step *Step) *StepResult {
	e.log.Infof("Starting step %s", step.ID)
	start := time.Now()
	err := step.Run(ctx)
	elapsed := time.Since(start)
	if err != nil {
		e.log.Errorf("Step %s failed after %s: %v", step.ID, elapsed, err)
		return &StepResult{State: StateFailed, Duration: elapsed, Error: err}
	}
	e.log.Infof("Step %s completed in %s", step.ID, elapsed)
	return &StepResult{State: StateCompleted, Duration: elapsed}
}

// findReadySteps returns the pending steps whose dependencies all reached
// a successful terminal state. Dependencies outside the pipeline were
// rejected at construction, so only results need consulting here.
func findReadySteps(steps map[string]*Step, pending map[string]bool, results map[string]*StepResult) []string {
	var ready []string
	for id := range pending {
		step := steps[id]

		allDepsDone := true
		for _, dep := range step.WaitFor {
			if dep == StartImmediately {
				continue
			}
			result, exists := results[dep]
			if !exists || (result.State != StateCompleted && result.State != StateSkipped) {
				allDepsDone = false
				break
			}
		}
		if allDepsDone {
			ready = append(ready, id)
		}
	}
	return ready
}
