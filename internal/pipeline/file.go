package pipeline

import (
	"context"
	"io"
	"os"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

// File is a pipeline definition loaded from YAML, shaped like a build
// config: a step list plus default substitutions.
type File struct {
	Steps         []FileStep        `yaml:"steps"`
	Substitutions map[string]string `yaml:"substitutions"`
}

// FileStep is one step of a YAML pipeline.
type FileStep struct {
	ID      string   `yaml:"id"`
	WaitFor []string `yaml:"waitFor"`
	Dir     string   `yaml:"dir"`
	Env     []string `yaml:"env"`
	Script  string   `yaml:"script"`
}

// LoadFile parses a pipeline definition from disk.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read pipeline file")
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "failed to parse pipeline file")
	}
	if len(f.Steps) == 0 {
		return nil, errors.New("pipeline file has no steps")
	}
	return &f, nil
}

// Build turns the file into an executable pipeline. Substitutions passed
// in override those in the file; both are exported to every step's
// environment. logw receives the combined output of all steps.
func (f *File) Build(runner Runner, overrides Substitutions, logw io.Writer) (*Pipeline, error) {
	subs := make(Substitutions, len(f.Substitutions)+len(overrides))
	for k, v := range f.Substitutions {
		subs[k] = v
	}
	for k, v := range overrides {
		subs[k] = v
	}
	resolved, err := ResolveSubstitutions(subs)
	if err != nil {
		return nil, err
	}

	steps := make([]Step, 0, len(f.Steps))
	for _, fs := range f.Steps {
		fs := fs
		env := append(resolved.Env(), fs.Env...)
		steps = append(steps, Step{
			ID:      fs.ID,
			WaitFor: fs.WaitFor,
			Run: func(ctx context.Context) error {
				return runner.Run(ctx, fs.Script, fs.Dir, env, logw)
			},
		})
	}
	return New(steps, resolved)
}
