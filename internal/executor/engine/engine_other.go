//go:build !linux

package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"
)

// fallbackEngine runs the command as a plain child process. It keeps
// the wall-clock limit and output capture but provides no namespace,
// cgroup or seccomp isolation. Intended for development machines only.
type fallbackEngine struct {
	cfg Config
}

func NewEngine(cfg Config) (Engine, error) {
	if cfg.StdoutStderrMaxBytes <= 0 {
		cfg.StdoutStderrMaxBytes = 64 * 1024
	}
	return &fallbackEngine{cfg: cfg}, nil
}

func (e *fallbackEngine) Run(ctx context.Context, runSpec RunSpec) (RawResult, error) {
	if runSpec.RunID == "" || runSpec.WorkDir == "" || len(runSpec.Cmd) == 0 {
		return RawResult{}, fmt.Errorf("incomplete run spec")
	}

	runCtx := ctx
	cancel := context.CancelFunc(func() {})
	if runSpec.Limits.WallTimeMs > 0 {
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(runSpec.Limits.WallTimeMs)*time.Millisecond)
	}
	defer cancel()

	cmd := exec.CommandContext(runCtx, runSpec.Cmd[0], runSpec.Cmd[1:]...)
	cmd.Dir = runSpec.WorkDir
	cmd.Env = runSpec.Env

	if runSpec.StdinPath != "" {
		stdin, err := os.Open(runSpec.StdinPath)
		if err != nil {
			return RawResult{}, fmt.Errorf("open stdin: %w", err)
		}
		defer stdin.Close()
		cmd.Stdin = stdin
	}

	// A phase may leave an output path empty to discard that stream.
	stdoutPath := runSpec.StdoutPath
	if stdoutPath == "" {
		stdoutPath = os.DevNull
	}
	stderrPath := runSpec.StderrPath
	if stderrPath == "" {
		stderrPath = os.DevNull
	}
	stdout, err := os.Create(stdoutPath)
	if err != nil {
		return RawResult{}, fmt.Errorf("create stdout: %w", err)
	}
	defer stdout.Close()
	stderr, err := os.Create(stderrPath)
	if err != nil {
		return RawResult{}, fmt.Errorf("create stderr: %w", err)
	}
	defer stderr.Close()
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	waitErr := cmd.Run()
	wall := time.Since(start).Milliseconds()

	exitCode := 0
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	} else if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	timedOut := errors.Is(runCtx.Err(), context.DeadlineExceeded)
	if timedOut && exitCode == 0 {
		exitCode = -1
	}

	return RawResult{
		ExitCode:   exitCode,
		WallTimeMs: wall,
		OutputKB:   fileSizeKB(runSpec.StdoutPath),
		Stdout:     readCapped(runSpec.StdoutPath, e.cfg.StdoutStderrMaxBytes),
		Stderr:     readCapped(runSpec.StderrPath, e.cfg.StdoutStderrMaxBytes),
		TimedOut:   timedOut,
	}, nil
}

func (e *fallbackEngine) KillRun(ctx context.Context, runID string) error {
	return nil
}

func fileSizeKB(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size() / 1024
}

func readCapped(path string, maxBytes int64) string {
	file, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxBytes))
	if err != nil {
		return ""
	}
	return string(data)
}
