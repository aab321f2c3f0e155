// Package executor runs untrusted submission code inside a sandbox and
// reports either the observed program behavior or a fault attributing
// why no behavior could be observed.
package executor

import "context"

// FaultKind classifies why a run produced no usable program output.
type FaultKind string

const (
	// FaultNone means the program ran to completion. A nonzero exit
	// code is still FaultNone; the exit code and stderr carry it.
	FaultNone FaultKind = ""

	FaultTimeout             FaultKind = "timeout"
	FaultMemoryExceeded      FaultKind = "memory_exceeded"
	FaultOutputExceeded      FaultKind = "output_exceeded"
	FaultBuildError          FaultKind = "build_error"
	FaultUnsupportedLanguage FaultKind = "unsupported_language"
	FaultInfrastructure      FaultKind = "infrastructure"
)

// Limits are per-run resource caps. Zero fields fall back to the
// configured defaults.
type Limits struct {
	CPUTimeMs  int64
	WallTimeMs int64
	MemoryMB   int64
	StackMB    int64
	OutputMB   int64
	PIDs       int64
}

// RunRequest describes one execution of untrusted code.
type RunRequest struct {
	// RunID groups all phases of one execution for cleanup and logs.
	RunID    string
	Language string
	Code     string
	Stdin    string
	Limits   Limits
}

// RunResult reports what the program did, or why it could not run.
// When Fault is not FaultNone the remaining fields describe whatever
// was observed before the fault.
type RunResult struct {
	Stdout      string
	Stderr      string
	ExitCode    int
	TimeMs      int64
	WallTimeMs  int64
	MemoryKB    int64
	Fault       FaultKind
	FaultDetail string
}

// Faulted reports whether the run ended in a fault.
func (r RunResult) Faulted() bool {
	return r.Fault != FaultNone
}

// Runner executes untrusted code. Implementations must remove all
// per-run scratch state on every exit path, including cancellation.
type Runner interface {
	Run(ctx context.Context, req RunRequest) (RunResult, error)
}
