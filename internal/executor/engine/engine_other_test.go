//go:build !linux

package engine_test

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"codequest/internal/executor/engine"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func newFallbackEngine(t *testing.T) engine.Engine {
	t.Helper()
	eng, err := engine.NewEngine(engine.Config{})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return eng
}

func TestFallbackRunDiscardsStreamsWithoutPaths(t *testing.T) {
	requireShell(t)
	eng := newFallbackEngine(t)

	raw, err := eng.Run(context.Background(), engine.RunSpec{
		RunID:   "no-paths",
		WorkDir: t.TempDir(),
		Cmd:     []string{"sh", "-c", "echo out; echo err >&2; exit 7"},
	})
	if err != nil {
		t.Fatalf("run with empty stdout/stderr paths must not fail: %v", err)
	}
	if raw.ExitCode != 7 {
		t.Fatalf("expected exit code 7, got %d", raw.ExitCode)
	}
	if raw.Stdout != "" || raw.Stderr != "" {
		t.Fatalf("discarded streams must be empty, got stdout %q stderr %q", raw.Stdout, raw.Stderr)
	}
}

func TestFallbackRunCapturesStderrOnly(t *testing.T) {
	requireShell(t)
	eng := newFallbackEngine(t)
	workDir := t.TempDir()

	raw, err := eng.Run(context.Background(), engine.RunSpec{
		RunID:      "stderr-only",
		WorkDir:    workDir,
		Cmd:        []string{"sh", "-c", "echo boom >&2; exit 1"},
		StderrPath: filepath.Join(workDir, "check.log"),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if raw.ExitCode != 1 {
		t.Fatalf("expected exit code 1, got %d", raw.ExitCode)
	}
	if !strings.Contains(raw.Stderr, "boom") {
		t.Fatalf("stderr not captured: %q", raw.Stderr)
	}
}

func TestFallbackRunCapturesStdout(t *testing.T) {
	requireShell(t)
	eng := newFallbackEngine(t)
	workDir := t.TempDir()

	raw, err := eng.Run(context.Background(), engine.RunSpec{
		RunID:      "stdout",
		WorkDir:    workDir,
		Cmd:        []string{"sh", "-c", "echo hello"},
		StdoutPath: filepath.Join(workDir, "output.txt"),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if raw.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %d", raw.ExitCode)
	}
	if strings.TrimSpace(raw.Stdout) != "hello" {
		t.Fatalf("stdout not captured: %q", raw.Stdout)
	}
}
