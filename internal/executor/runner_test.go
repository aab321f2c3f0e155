package executor_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"codequest/internal/executor"
	"codequest/internal/executor/engine"
)

// fakeEngine returns canned results per run ID suffix and records the
// specs it was asked to execute.
type fakeEngine struct {
	mu       sync.Mutex
	specs    []engine.RunSpec
	checkRes engine.RawResult
	runRes   engine.RawResult
	failures int
	err      error
}

func (e *fakeEngine) Run(_ context.Context, spec engine.RunSpec) (engine.RawResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.specs = append(e.specs, spec)
	if e.failures > 0 {
		e.failures--
		return engine.RawResult{}, errors.New("engine transport failure")
	}
	if e.err != nil {
		return engine.RawResult{}, e.err
	}
	if strings.HasSuffix(spec.RunID, "-check") {
		return e.checkRes, nil
	}
	return e.runRes, nil
}

func (e *fakeEngine) KillRun(context.Context, string) error { return nil }

func (e *fakeEngine) specCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.specs)
}

func newTestRunner(t *testing.T, eng engine.Engine) *executor.DefaultRunner {
	t.Helper()
	cfg := executor.DefaultRunnerConfig()
	cfg.WorkRoot = t.TempDir()
	cfg.InfraRetries = 2
	return executor.NewRunner(eng, executor.DefaultLanguages(), cfg)
}

func TestRunnerUnsupportedLanguage(t *testing.T) {
	r := newTestRunner(t, &fakeEngine{})
	res, err := r.Run(context.Background(), executor.RunRequest{
		RunID: "r1", Language: "cobol", Code: "DISPLAY 'HI'.",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Fault != executor.FaultUnsupportedLanguage {
		t.Fatalf("expected unsupported language fault, got %q", res.Fault)
	}
	if !strings.Contains(res.FaultDetail, "cobol") {
		t.Fatalf("detail should name the language, got %q", res.FaultDetail)
	}
}

func TestRunnerRequiresRunID(t *testing.T) {
	r := newTestRunner(t, &fakeEngine{})
	if _, err := r.Run(context.Background(), executor.RunRequest{Language: "python", Code: "pass"}); err == nil {
		t.Fatal("expected error for missing run id")
	}
}

func TestRunnerBuildErrorFault(t *testing.T) {
	eng := &fakeEngine{checkRes: engine.RawResult{
		ExitCode: 1,
		Stderr:   "  SyntaxError: invalid syntax\n",
	}}
	r := newTestRunner(t, eng)

	res, err := r.Run(context.Background(), executor.RunRequest{
		RunID: "r1", Language: "python", Code: "def (",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Fault != executor.FaultBuildError {
		t.Fatalf("expected build error fault, got %q", res.Fault)
	}
	if res.FaultDetail != "SyntaxError: invalid syntax" {
		t.Fatalf("expected trimmed stderr, got %q", res.FaultDetail)
	}
	if eng.specCount() != 1 {
		t.Fatalf("run phase must not execute after a failed check, got %d engine calls", eng.specCount())
	}
}

func TestRunnerTimeoutFault(t *testing.T) {
	eng := &fakeEngine{runRes: engine.RawResult{ExitCode: -1, TimedOut: true}}
	r := newTestRunner(t, eng)

	res, err := r.Run(context.Background(), executor.RunRequest{
		RunID: "r1", Language: "python", Code: "while True: pass",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Fault != executor.FaultTimeout {
		t.Fatalf("expected timeout fault, got %q", res.Fault)
	}
}

func TestRunnerMemoryFault(t *testing.T) {
	eng := &fakeEngine{runRes: engine.RawResult{ExitCode: 137, OomKilled: true}}
	r := newTestRunner(t, eng)

	res, err := r.Run(context.Background(), executor.RunRequest{
		RunID: "r1", Language: "python", Code: "x = 'a' * 10**10",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Fault != executor.FaultMemoryExceeded {
		t.Fatalf("expected memory fault, got %q", res.Fault)
	}
}

func TestRunnerMemoryFaultFromPeakUsage(t *testing.T) {
	// Peak usage above the limit counts even without an OOM kill.
	eng := &fakeEngine{runRes: engine.RawResult{MemoryKB: 300 * 1024}}
	r := newTestRunner(t, eng)

	res, err := r.Run(context.Background(), executor.RunRequest{
		RunID: "r1", Language: "python", Code: "pass",
		Limits: executor.Limits{MemoryMB: 64},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Fault != executor.FaultMemoryExceeded {
		t.Fatalf("expected memory fault, got %q", res.Fault)
	}
}

func TestRunnerOutputFault(t *testing.T) {
	eng := &fakeEngine{runRes: engine.RawResult{OutputKB: 100 * 1024}}
	r := newTestRunner(t, eng)

	res, err := r.Run(context.Background(), executor.RunRequest{
		RunID: "r1", Language: "python", Code: "print('x' * 10**9)",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Fault != executor.FaultOutputExceeded {
		t.Fatalf("expected output fault, got %q", res.Fault)
	}
}

func TestRunnerInfraRetriesThenFault(t *testing.T) {
	eng := &fakeEngine{err: errors.New("cgroup unavailable")}
	r := newTestRunner(t, eng)

	res, err := r.Run(context.Background(), executor.RunRequest{
		RunID: "r1", Language: "python", Code: "pass",
	})
	if err == nil {
		t.Fatal("expected infrastructure error")
	}
	if res.Fault != executor.FaultInfrastructure {
		t.Fatalf("expected infrastructure fault, got %q", res.Fault)
	}
	// InfraRetries 2 means three attempts of the check phase.
	if eng.specCount() != 3 {
		t.Fatalf("expected 3 attempts, got %d", eng.specCount())
	}
}

func TestRunnerRecoversAfterTransientFailure(t *testing.T) {
	eng := &fakeEngine{failures: 1, runRes: engine.RawResult{Stdout: "ok\n"}}
	r := newTestRunner(t, eng)

	res, err := r.Run(context.Background(), executor.RunRequest{
		RunID: "r1", Language: "python", Code: "print('ok')",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Faulted() {
		t.Fatalf("expected clean run after retry, got fault %q", res.Fault)
	}
	if res.Stdout != "ok\n" {
		t.Fatalf("unexpected stdout %q", res.Stdout)
	}
}

func TestRunnerCleansScratchDir(t *testing.T) {
	eng := &fakeEngine{runRes: engine.RawResult{Stdout: "ok"}}
	cfg := executor.DefaultRunnerConfig()
	cfg.WorkRoot = t.TempDir()
	r := executor.NewRunner(eng, executor.DefaultLanguages(), cfg)

	if _, err := r.Run(context.Background(), executor.RunRequest{
		RunID: "r1", Language: "python", Code: "print('ok')",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries, err := os.ReadDir(cfg.WorkRoot)
	if err != nil {
		t.Fatalf("read work root: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("scratch dir left behind: %v", entries)
	}
}

func TestRunnerMaterializesSourceAndStdin(t *testing.T) {
	var sawSource, sawStdin bool
	eng := &fakeEngine{}
	cfg := executor.DefaultRunnerConfig()
	cfg.WorkRoot = t.TempDir()
	r := executor.NewRunner(eng, map[string]*executor.LanguageSpec{
		"python": {
			ID:         "python",
			SourceFile: "main.py",
			RunCmdTpl:  "python3 {src}",
		},
	}, cfg)

	// Without a check phase the single engine call sees the scratch
	// dir while it still exists.
	probe := &probeEngine{inner: eng, onRun: func(spec engine.RunSpec) {
		if data, err := os.ReadFile(filepath.Join(spec.WorkDir, "main.py")); err == nil {
			sawSource = string(data) == "print(input())"
		}
		if data, err := os.ReadFile(spec.StdinPath); err == nil {
			sawStdin = string(data) == "42\n"
		}
	}}
	r = executor.NewRunner(probe, map[string]*executor.LanguageSpec{
		"python": {ID: "python", SourceFile: "main.py", RunCmdTpl: "python3 {src}"},
	}, cfg)

	if _, err := r.Run(context.Background(), executor.RunRequest{
		RunID: "r1", Language: "python", Code: "print(input())", Stdin: "42\n",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sawSource {
		t.Fatal("source file was not materialized before the run")
	}
	if !sawStdin {
		t.Fatal("stdin file was not materialized before the run")
	}
}

type probeEngine struct {
	inner engine.Engine
	onRun func(engine.RunSpec)
}

func (p *probeEngine) Run(ctx context.Context, spec engine.RunSpec) (engine.RawResult, error) {
	p.onRun(spec)
	return p.inner.Run(ctx, spec)
}

func (p *probeEngine) KillRun(ctx context.Context, runID string) error {
	return p.inner.KillRun(ctx, runID)
}

func TestRunnerAppliesLanguageMultipliers(t *testing.T) {
	eng := &fakeEngine{}
	cfg := executor.DefaultRunnerConfig()
	cfg.WorkRoot = t.TempDir()
	cfg.DefaultLimits = executor.Limits{
		CPUTimeMs:  1000,
		WallTimeMs: 3000,
		MemoryMB:   100,
		StackMB:    64,
		OutputMB:   4,
		PIDs:       64,
	}
	r := executor.NewRunner(eng, executor.DefaultLanguages(), cfg)

	if _, err := r.Run(context.Background(), executor.RunRequest{
		RunID: "r1", Language: "javascript", Code: "console.log(1)",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eng.specCount() == 0 {
		t.Fatal("engine was never called")
	}
	limits := eng.specs[len(eng.specs)-1].Limits
	if limits.CPUTimeMs != 1500 {
		t.Fatalf("expected cpu limit 1500 after 1.5x multiplier, got %d", limits.CPUTimeMs)
	}
	if limits.WallTimeMs != 4500 {
		t.Fatalf("expected wall limit 4500, got %d", limits.WallTimeMs)
	}
	if limits.MemoryMB != 150 {
		t.Fatalf("expected memory limit 150, got %d", limits.MemoryMB)
	}
}

func TestRunnerLimitOverrides(t *testing.T) {
	eng := &fakeEngine{}
	r := newTestRunner(t, eng)

	if _, err := r.Run(context.Background(), executor.RunRequest{
		RunID: "r1", Language: "python", Code: "pass",
		Limits: executor.Limits{WallTimeMs: 10000, MemoryMB: 256},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	limits := eng.specs[len(eng.specs)-1].Limits
	if limits.WallTimeMs != 10000 {
		t.Fatalf("expected wall override 10000, got %d", limits.WallTimeMs)
	}
	if limits.MemoryMB != 256 {
		t.Fatalf("expected memory override 256, got %d", limits.MemoryMB)
	}
	// Defaults fill what the override leaves unset.
	if limits.PIDs != 64 {
		t.Fatalf("expected default pids 64, got %d", limits.PIDs)
	}
}
