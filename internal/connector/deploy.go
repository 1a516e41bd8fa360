package connector

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/xid"

	"github.com/gmartner/mktdeploy/internal/config"
	"github.com/gmartner/mktdeploy/internal/gcs"
	"github.com/gmartner/mktdeploy/internal/logger"
	"github.com/gmartner/mktdeploy/internal/pipeline"
	"github.com/gmartner/mktdeploy/internal/resource"
	"github.com/gmartner/mktdeploy/internal/state"
)

// ValidatorStepID is the step every connector deploy waits for.
const ValidatorStepID = "init_deploy_config"

// lockTTL bounds how long a crashed deployment can block the next one.
const lockTTL = 2 * time.Hour

// Deployment wires the marketing pipeline together: the config validator
// step followed by one gated deploy step per connector. The connector
// steps wait only on the validator, so they run in parallel.
type Deployment struct {
	Runner  pipeline.Runner
	Sink    gcs.Sink
	States  state.Manager
	Checker resource.Checker
	Log     logger.Logger

	runID string

	mu  sync.Mutex
	cfg *config.Config
}

// NewDeployment creates a deployment with a fresh run ID.
func NewDeployment(runner pipeline.Runner, sink gcs.Sink, states state.Manager, checker resource.Checker, log logger.Logger) *Deployment {
	return &Deployment{
		Runner:  runner,
		Sink:    sink,
		States:  states,
		Checker: checker,
		Log:     log,
		runID:   xid.New().String(),
	}
}

// RunID identifies this deployment in state records and log object names.
func (d *Deployment) RunID() string {
	return d.runID
}

// Config returns the processed config. Only valid after the validator
// step has completed.
func (d *Deployment) Config() *config.Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

func (d *Deployment) setConfig(cfg *config.Config) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cfg = cfg
}

// Pipeline builds the marketing deployment pipeline. Substitution
// resolution happens here, so a missing logs bucket fails before any step
// starts.
func (d *Deployment) Pipeline(subs pipeline.Substitutions) (*pipeline.Pipeline, error) {
	resolved, err := pipeline.ResolveSubstitutions(subs)
	if err != nil {
		return nil, err
	}

	steps := []pipeline.Step{d.validatorStep(resolved)}
	for _, c := range All() {
		steps = append(steps, d.deployStep(c, resolved))
	}
	return pipeline.New(steps, resolved)
}

// validatorStep loads, normalizes, validates and rewrites the config
// file. Connector steps re-read the rewritten file, so it must land on
// disk before this step reports success.
func (d *Deployment) validatorStep(subs pipeline.Substitutions) pipeline.Step {
	configFile := subs[pipeline.SubConfigFile]
	return pipeline.Step{
		ID:      ValidatorStepID,
		WaitFor: []string{pipeline.StartImmediately},
		Run: func(ctx context.Context) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			cfg.ApplyDefaults()
			if err := config.Validate(ctx, cfg, d.Checker, d.Log); err != nil {
				return err
			}
			if err := config.Save(cfg, configFile); err != nil {
				return err
			}
			d.setConfig(cfg)
			return nil
		},
	}
}

// deployStep builds the gated deploy step for one connector.
func (d *Deployment) deployStep(c Connector, subs pipeline.Substitutions) pipeline.Step {
	return pipeline.Step{
		ID:      c.StepID,
		WaitFor: []string{ValidatorStepID},
		SkipIf: func(ctx context.Context) (bool, string) {
			return !c.Enabled(d.Config()), c.SkipMessage()
		},
		Run: func(ctx context.Context) error {
			return d.deployConnector(ctx, c, subs)
		},
	}
}

func (d *Deployment) deployConnector(ctx context.Context, c Connector, subs pipeline.Substitutions) error {
	lockKey := fmt.Sprintf("deploy-%s", strings.ToLower(c.Name))
	locked, err := d.States.Lock(ctx, lockKey, lockTTL)
	if err != nil {
		return errors.Wrapf(err, "failed to lock %s deployment", c.Name)
	}
	if !locked {
		return errors.Errorf("another %s deployment is already in progress", c.Name)
	}
	defer func() {
		if uerr := d.States.Unlock(context.Background(), lockKey); uerr != nil {
			d.Log.Warnf("Failed to unlock %s deployment: %v", c.Name, uerr)
		}
	}()

	run := &state.Run{
		ID:        fmt.Sprintf("%s-%s", d.runID, strings.ToLower(c.Name)),
		Connector: c.Name,
		Status:    state.StatusRunning,
		StartedAt: time.Now(),
		LogObject: gcs.StepObject(d.runID, c.StepID),
	}
	if err := d.States.CreateRun(ctx, run); err != nil {
		return errors.Wrapf(err, "failed to record %s run", c.Name)
	}

	d.Log.Infof("Deploying %s...", c.Name)
	var logBuf bytes.Buffer
	runErr := d.Runner.Run(ctx, "./deploy.sh", c.ScriptDir, subs.Env(), &logBuf)

	if d.Sink != nil {
		// Best effort either way: the step log is evidence for failures too.
		if serr := d.Sink.Upload(context.Background(), run.LogObject, &logBuf); serr != nil {
			d.Log.Warnf("Failed to upload %s deploy log: %v", c.Name, serr)
		}
	}

	run.FinishedAt = time.Now()
	if runErr != nil {
		run.Status = state.StatusFailed
		run.Error = runErr.Error()
	} else {
		run.Status = state.StatusCompleted
	}
	if uerr := d.States.UpdateRun(context.Background(), run); uerr != nil {
		d.Log.Warnf("Failed to update %s run record: %v", c.Name, uerr)
	}

	if runErr != nil {
		return errors.Wrapf(runErr, "%s deployment failed", c.Name)
	}
	d.Log.Infof("%s deployment finished.", c.Name)
	return nil
}
