package gcs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestStepObject(t *testing.T) {
	got := StepObject("cmfx1run", "googleads_deploy")
	if got != "cmfx1run/googleads_deploy.log" {
		t.Errorf("Unexpected object name: %s", got)
	}
}

func TestDirSink(t *testing.T) {
	dir := t.TempDir()
	sink := NewDirSink(dir)

	object := StepObject("run1", "cm360_deploy")
	if err := sink.Upload(context.Background(), object, strings.NewReader("step output\n")); err != nil {
		t.Fatalf("Failed to upload: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "run1", "cm360_deploy.log"))
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if string(data) != "step output\n" {
		t.Errorf("Unexpected log contents: %q", string(data))
	}
}
