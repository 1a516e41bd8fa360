package pipeline

import (
	"context"
	"io"
	"os"
	"os/exec"

	"github.com/pkg/errors"
)

// Runner executes a step's shell script. Implementations must propagate
// the script's exit status as an error.
type Runner interface {
	Run(ctx context.Context, script string, dir string, env []string, logw io.Writer) error
}

// ExecRunner runs scripts through bash with errexit set, so any failing
// command aborts the step.
type ExecRunner struct{}

// NewExecRunner creates a shell-backed runner.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes the script, streaming stdout and stderr to logw. The
// process inherits the parent environment with env appended.
func (r *ExecRunner) Run(ctx context.Context, script string, dir string, env []string, logw io.Writer) error {
	cmd := exec.CommandContext(ctx, "bash", "-ec", script)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdout = logw
	cmd.Stderr = logw

	if err := cmd.Run(); err != nil {
		return errors.Wrap(err, "script failed")
	}
	return nil
}
