package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

const samplePipeline = `
steps:
  - id: init_deploy_config
    waitFor: ['-']
    script: |
      echo "config is $_CONFIG_FILE"
  - id: googleads_deploy
    waitFor: ['init_deploy_config']
    script: |
      echo "logs to $_GCS_LOGS_BUCKET"
  - id: cm360_deploy
    waitFor: ['init_deploy_config']
    script: |
      echo "cm360"
substitutions:
  _CONFIG_FILE: config/marketing_config.json
`

func writePipeline(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cloudbuild.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write pipeline file: %v", err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	f, err := LoadFile(writePipeline(t, samplePipeline))
	if err != nil {
		t.Fatalf("Failed to load pipeline: %v", err)
	}
	if len(f.Steps) != 3 {
		t.Fatalf("Expected 3 steps, got %d", len(f.Steps))
	}
	if f.Steps[1].WaitFor[0] != "init_deploy_config" {
		t.Errorf("Unexpected waitFor: %v", f.Steps[1].WaitFor)
	}
	if f.Substitutions["_CONFIG_FILE"] != "config/marketing_config.json" {
		t.Errorf("Unexpected substitutions: %v", f.Substitutions)
	}

	t.Run("No Steps", func(t *testing.T) {
		if _, err := LoadFile(writePipeline(t, "substitutions: {}")); err == nil {
			t.Error("Expected error for pipeline without steps")
		}
	})
}

// syncWriter serializes writes from parallel steps.
type syncWriter struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (w *syncWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func (w *syncWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

func TestFileBuildAndRun(t *testing.T) {
	f, err := LoadFile(writePipeline(t, samplePipeline))
	if err != nil {
		t.Fatalf("Failed to load pipeline: %v", err)
	}

	out := &syncWriter{}
	p, err := f.Build(NewExecRunner(), Substitutions{SubLogsBucket: "my-logs"}, out)
	if err != nil {
		t.Fatalf("Failed to build pipeline: %v", err)
	}

	if _, err := NewExecutor(testLog).Run(context.Background(), p); err != nil {
		t.Fatalf("Pipeline failed: %v", err)
	}

	output := out.String()
	if !strings.Contains(output, "config is config/marketing_config.json") {
		t.Errorf("Expected substitution in environment, got %q", output)
	}
	if !strings.Contains(output, "logs to my-logs") {
		t.Errorf("Expected logs bucket override in environment, got %q", output)
	}
}

func TestFileBuildMissingLogsBucket(t *testing.T) {
	f, err := LoadFile(writePipeline(t, samplePipeline))
	if err != nil {
		t.Fatalf("Failed to load pipeline: %v", err)
	}
	if _, err := f.Build(NewExecRunner(), nil, &bytes.Buffer{}); err == nil {
		t.Error("Expected error when no logs bucket is supplied")
	}
}

func TestExecRunnerFailure(t *testing.T) {
	var out bytes.Buffer
	err := NewExecRunner().Run(context.Background(), "echo before\nfalse\necho after", "", nil, &out)
	if err == nil {
		t.Fatal("Expected error from failing script")
	}
	if !strings.Contains(out.String(), "before") {
		t.Error("Expected output before the failing command")
	}
	if strings.Contains(out.String(), "after") {
		t.Error("errexit must stop the script at the first failure")
	}
}
