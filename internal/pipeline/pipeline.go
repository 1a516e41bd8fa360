package pipeline

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// Built-in substitution keys, named as they appear in build pipelines.
const (
	SubConfigFile = "_CONFIG_FILE"
	SubLogsBucket = "_GCS_LOGS_BUCKET"
)

// DefaultConfigFile is used when _CONFIG_FILE is not supplied.
const DefaultConfigFile = "config/marketing_config.json"

// Substitutions are the parameter values available to every step.
type Substitutions map[string]string

// ResolveSubstitutions applies defaults and checks required keys. Failing
// here means no step has started yet.
func ResolveSubstitutions(subs Substitutions) (Substitutions, error) {
	resolved := make(Substitutions, len(subs)+2)
	for k, v := range subs {
		resolved[k] = v
	}
	if resolved[SubConfigFile] == "" {
		resolved[SubConfigFile] = DefaultConfigFile
	}
	if resolved[SubLogsBucket] == "" {
		return nil, errors.Errorf("missing required substitution %s", SubLogsBucket)
	}
	return resolved, nil
}

// Env renders the substitutions as KEY=VALUE pairs for step processes.
func (s Substitutions) Env() []string {
	env := make([]string, 0, len(s))
	for k, v := range s {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	return env
}

// StepFunc is the work a step performs.
type StepFunc func(ctx context.Context) error

// SkipFunc decides whether a step is skipped; the returned message is
// logged in place of running the step.
type SkipFunc func(ctx context.Context) (bool, string)

// Step is a unit of work in a pipeline. Steps with the same dependencies
// run in parallel.
type Step struct {
	ID      string
	WaitFor []string
	SkipIf  SkipFunc
	Run     StepFunc
}

// StartImmediately is the waitFor entry meaning "do not wait for anything".
const StartImmediately = "-"

// Pipeline is an ordered set of steps plus their substitutions.
type Pipeline struct {
	Steps         []Step
	Substitutions Substitutions
}

// New builds a pipeline, resolving substitutions and validating the step
// graph. Any error here aborts before execution.
func New(steps []Step, subs Substitutions) (*Pipeline, error) {
	resolved, err := ResolveSubstitutions(subs)
	if err != nil {
		return nil, err
	}

	ids := make(map[string]bool, len(steps))
	for _, s := range steps {
		if s.ID == "" {
			return nil, errors.New("step with empty id")
		}
		if ids[s.ID] {
			return nil, errors.Errorf("duplicate step id %s", s.ID)
		}
		ids[s.ID] = true
	}
	for _, s := range steps {
		for _, dep := range s.WaitFor {
			if dep == StartImmediately {
				continue
			}
			if !ids[dep] {
				return nil, errors.Errorf("step %s waits for unknown step %s", s.ID, dep)
			}
			if dep == s.ID {
				return nil, errors.Errorf("step %s waits for itself", s.ID)
			}
		}
	}

	return &Pipeline{Steps: steps, Substitutions: resolved}, nil
}
