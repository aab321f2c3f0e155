package executor

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/shlex"
	"go.uber.org/zap"

	"codequest/internal/executor/engine"
	"codequest/internal/metrics"
	appErr "codequest/pkg/errors"
	"codequest/pkg/utils/logger"
)

const (
	containerWorkDir = "/work"
	stdinFileName    = "input.txt"
	stdoutFileName   = "output.txt"
	stderrFileName   = "runtime.log"
	checkLogName     = "check.log"
)

// RunnerConfig controls the sandbox runner.
type RunnerConfig struct {
	// WorkRoot is the host directory scratch dirs are created under.
	WorkRoot string `yaml:"workRoot"`
	// ContainerPaths switches command and IO paths to the bind-mounted
	// container view. Enable together with engine namespaces.
	ContainerPaths bool `yaml:"containerPaths"`
	// InfraRetries is how many times an engine failure is retried
	// before the run is reported as an infrastructure fault.
	InfraRetries  int    `yaml:"infraRetries"`
	DefaultLimits Limits `yaml:"defaultLimits"`
}

// DefaultRunnerConfig returns conservative limits for short exercises.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		WorkRoot:     os.TempDir(),
		InfraRetries: 2,
		DefaultLimits: Limits{
			CPUTimeMs:  2000,
			WallTimeMs: 5000,
			MemoryMB:   128,
			StackMB:    64,
			OutputMB:   4,
			PIDs:       64,
		},
	}
}

// DefaultRunner materializes source code into a scratch directory,
// checks it, runs it and maps the raw engine outcome onto a fault
// taxonomy. The scratch directory is removed on every exit path.
type DefaultRunner struct {
	eng       engine.Engine
	languages map[string]*LanguageSpec
	cfg       RunnerConfig
}

// NewRunner creates a runner backed by the sandbox engine.
func NewRunner(eng engine.Engine, languages map[string]*LanguageSpec, cfg RunnerConfig) *DefaultRunner {
	if languages == nil {
		languages = DefaultLanguages()
	}
	if cfg.WorkRoot == "" {
		cfg.WorkRoot = os.TempDir()
	}
	if cfg.InfraRetries <= 0 {
		cfg.InfraRetries = 2
	}
	return &DefaultRunner{eng: eng, languages: languages, cfg: cfg}
}

// Languages returns the IDs of the configured languages.
func (r *DefaultRunner) Languages() []string {
	ids := make([]string, 0, len(r.languages))
	for id := range r.languages {
		ids = append(ids, id)
	}
	return ids
}

// Supports reports whether the language is on the allow-list.
func (r *DefaultRunner) Supports(language string) bool {
	_, ok := r.languages[language]
	return ok
}

func (r *DefaultRunner) Run(ctx context.Context, req RunRequest) (RunResult, error) {
	lang, ok := r.languages[req.Language]
	if !ok {
		return RunResult{
			Fault:       FaultUnsupportedLanguage,
			FaultDetail: fmt.Sprintf("language %q is not supported", req.Language),
		}, nil
	}
	if req.RunID == "" {
		return RunResult{}, appErr.New(appErr.InvalidParams).WithMessage("run id is required")
	}

	start := time.Now()
	defer func() {
		metrics.ObserveSandboxRun(req.Language, time.Since(start))
	}()

	workDir, err := os.MkdirTemp(r.cfg.WorkRoot, "run-"+req.RunID+"-")
	if err != nil {
		return r.infraFault(req, fmt.Errorf("create scratch dir: %w", err))
	}
	defer func() {
		if rmErr := os.RemoveAll(workDir); rmErr != nil {
			logger.Warn(ctx, "remove scratch dir failed", zap.String("dir", workDir), zap.Error(rmErr))
		}
	}()

	if err := os.WriteFile(filepath.Join(workDir, lang.SourceFile), []byte(req.Code), 0644); err != nil {
		return r.infraFault(req, fmt.Errorf("write source: %w", err))
	}
	if err := os.WriteFile(filepath.Join(workDir, stdinFileName), []byte(req.Stdin), 0644); err != nil {
		return r.infraFault(req, fmt.Errorf("write stdin: %w", err))
	}

	limits := r.mergeLimits(req.Limits, lang)

	if lang.CheckEnabled {
		res, done, err := r.checkPhase(ctx, req, lang, workDir, limits)
		if done || err != nil {
			return res, err
		}
	}

	return r.runPhase(ctx, req, lang, workDir, limits)
}

// checkPhase runs the syntax check. done is true when the result is
// final, either a build fault or an infrastructure fault.
func (r *DefaultRunner) checkPhase(ctx context.Context, req RunRequest, lang *LanguageSpec, workDir string, limits engine.ResourceLimit) (RunResult, bool, error) {
	cmd, err := r.buildCommand(lang.CheckCmdTpl, lang)
	if err != nil {
		return RunResult{}, true, err
	}

	runSpec := engine.RunSpec{
		RunID:      req.RunID + "-check",
		WorkDir:    r.innerPath(workDir, ""),
		Cmd:        cmd,
		Env:        buildEnv(lang.Env),
		StderrPath: r.innerPath(workDir, checkLogName),
		Limits:     limits,
		BindMounts: r.bindMounts(workDir),
	}

	raw, runErr := r.runWithRetries(ctx, runSpec)
	if runErr != nil {
		res, err := r.infraFault(req, runErr)
		return res, true, err
	}
	if raw.ExitCode != 0 {
		return RunResult{
			ExitCode:    raw.ExitCode,
			Fault:       FaultBuildError,
			FaultDetail: strings.TrimSpace(raw.Stderr),
		}, true, nil
	}
	return RunResult{}, false, nil
}

func (r *DefaultRunner) runPhase(ctx context.Context, req RunRequest, lang *LanguageSpec, workDir string, limits engine.ResourceLimit) (RunResult, error) {
	cmd, err := r.buildCommand(lang.RunCmdTpl, lang)
	if err != nil {
		return RunResult{}, err
	}

	runSpec := engine.RunSpec{
		RunID:      req.RunID,
		WorkDir:    r.innerPath(workDir, ""),
		Cmd:        cmd,
		Env:        buildEnv(lang.Env),
		StdinPath:  r.innerPath(workDir, stdinFileName),
		StdoutPath: r.innerPath(workDir, stdoutFileName),
		StderrPath: r.innerPath(workDir, stderrFileName),
		Limits:     limits,
		BindMounts: r.bindMounts(workDir),
	}

	raw, runErr := r.runWithRetries(ctx, runSpec)
	if runErr != nil {
		return r.infraFault(req, runErr)
	}

	res := RunResult{
		Stdout:     raw.Stdout,
		Stderr:     raw.Stderr,
		ExitCode:   raw.ExitCode,
		TimeMs:     raw.TimeMs,
		WallTimeMs: raw.WallTimeMs,
		MemoryKB:   raw.MemoryKB,
	}

	switch {
	case raw.TimedOut:
		res.Fault = FaultTimeout
		res.FaultDetail = fmt.Sprintf("wall time limit %dms exceeded", limits.WallTimeMs)
	case raw.OomKilled, limits.MemoryMB > 0 && raw.MemoryKB > limits.MemoryMB*1024:
		res.Fault = FaultMemoryExceeded
		res.FaultDetail = fmt.Sprintf("memory limit %dMB exceeded", limits.MemoryMB)
	case limits.OutputMB > 0 && raw.OutputKB > limits.OutputMB*1024:
		res.Fault = FaultOutputExceeded
		res.FaultDetail = fmt.Sprintf("output limit %dMB exceeded", limits.OutputMB)
	}
	if res.Faulted() {
		metrics.ObserveSandboxFault(string(res.Fault))
	}
	return res, nil
}

func (r *DefaultRunner) runWithRetries(ctx context.Context, runSpec engine.RunSpec) (engine.RawResult, error) {
	var lastErr error
	for attempt := 0; attempt <= r.cfg.InfraRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return engine.RawResult{}, ctx.Err()
			case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
			}
			logger.Warn(ctx, "retrying sandbox run",
				zap.String("run_id", runSpec.RunID), zap.Int("attempt", attempt), zap.Error(lastErr))
		}
		raw, err := r.eng.Run(ctx, runSpec)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return engine.RawResult{}, lastErr
		}
	}
	return engine.RawResult{}, lastErr
}

func (r *DefaultRunner) infraFault(req RunRequest, err error) (RunResult, error) {
	metrics.ObserveSandboxFault(string(FaultInfrastructure))
	return RunResult{
		Fault:       FaultInfrastructure,
		FaultDetail: err.Error(),
	}, appErr.Wrapf(err, appErr.SandboxUnavailable, "sandbox run %s failed", req.RunID)
}

// innerPath returns the path the sandboxed process sees for a scratch
// file. With container paths the scratch dir is bind mounted at /work.
func (r *DefaultRunner) innerPath(workDir, name string) string {
	base := workDir
	if r.cfg.ContainerPaths {
		base = containerWorkDir
	}
	if name == "" {
		return base
	}
	return filepath.Join(base, name)
}

func (r *DefaultRunner) bindMounts(workDir string) []engine.MountSpec {
	if !r.cfg.ContainerPaths {
		return nil
	}
	return []engine.MountSpec{{
		Source:   workDir,
		Target:   containerWorkDir,
		ReadOnly: false,
	}}
}

func (r *DefaultRunner) buildCommand(tpl string, lang *LanguageSpec) ([]string, error) {
	if strings.TrimSpace(tpl) == "" {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("command template is required")
	}
	expanded := lang.ExpandCmd(tpl, filepath.Base(lang.SourceFile))
	fields, err := shlex.Split(expanded)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.InvalidParams, "parse command template failed")
	}
	if len(fields) == 0 {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("command is empty after expansion")
	}
	return fields, nil
}

func (r *DefaultRunner) mergeLimits(override Limits, lang *LanguageSpec) engine.ResourceLimit {
	base := r.cfg.DefaultLimits
	if override.CPUTimeMs > 0 {
		base.CPUTimeMs = override.CPUTimeMs
	}
	if override.WallTimeMs > 0 {
		base.WallTimeMs = override.WallTimeMs
	}
	if override.MemoryMB > 0 {
		base.MemoryMB = override.MemoryMB
	}
	if override.StackMB > 0 {
		base.StackMB = override.StackMB
	}
	if override.OutputMB > 0 {
		base.OutputMB = override.OutputMB
	}
	if override.PIDs > 0 {
		base.PIDs = override.PIDs
	}
	return engine.ResourceLimit{
		CPUTimeMs:  scaleLimit(base.CPUTimeMs, lang.TimeMultiplier),
		WallTimeMs: scaleLimit(base.WallTimeMs, lang.TimeMultiplier),
		MemoryMB:   scaleLimit(base.MemoryMB, lang.MemoryMultiplier),
		StackMB:    base.StackMB,
		OutputMB:   base.OutputMB,
		PIDs:       base.PIDs,
	}
}

func scaleLimit(value int64, multiplier float64) int64 {
	if value <= 0 {
		return 0
	}
	if multiplier <= 0 {
		return value
	}
	return int64(math.Ceil(float64(value) * multiplier))
}

func buildEnv(env map[string]string) []string {
	out := []string{
		"PATH=/usr/local/bin:/usr/bin:/bin",
		"HOME=/tmp",
		"LANG=C.UTF-8",
	}
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}
