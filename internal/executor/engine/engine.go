// Package engine executes a prepared command inside an isolated
// sandbox and reports raw process facts. Policy (faults, retries,
// language handling) lives in the caller.
package engine

import "context"

// ResourceLimit describes hard limits enforced by the sandbox.
type ResourceLimit struct {
	CPUTimeMs  int64
	WallTimeMs int64
	MemoryMB   int64
	StackMB    int64
	OutputMB   int64
	PIDs       int64
}

// MountSpec describes a bind mount inside the sandbox.
type MountSpec struct {
	Source   string
	Target   string
	ReadOnly bool
}

// Isolation describes filesystem and syscall confinement for a run.
type Isolation struct {
	RootFS         string `yaml:"rootFS"`
	SeccompProfile string `yaml:"seccompProfile"`
	DisableNetwork bool   `yaml:"disableNetwork"`
}

// RunSpec is the execution specification for one sandboxed process.
type RunSpec struct {
	RunID      string
	WorkDir    string
	Cmd        []string
	Env        []string
	StdinPath  string
	StdoutPath string
	StderrPath string
	BindMounts []MountSpec
	Limits     ResourceLimit
}

// RawResult captures raw sandbox execution data.
type RawResult struct {
	ExitCode   int
	TimeMs     int64
	WallTimeMs int64
	MemoryKB   int64
	OutputKB   int64
	Stdout     string
	Stderr     string
	OomKilled  bool
	TimedOut   bool
}

// Engine executes a RunSpec inside the sandbox.
type Engine interface {
	Run(ctx context.Context, runSpec RunSpec) (RawResult, error)
	// KillRun force-kills every live process of the given run.
	KillRun(ctx context.Context, runID string) error
}

// Config controls sandbox engine behavior.
type Config struct {
	CgroupRoot           string    `yaml:"cgroupRoot"`
	HelperPath           string    `yaml:"helperPath"`
	StdoutStderrMaxBytes int64     `yaml:"stdoutStderrMaxBytes"`
	EnableSeccomp        bool      `yaml:"enableSeccomp"`
	EnableCgroup         bool      `yaml:"enableCgroup"`
	EnableNamespaces     bool      `yaml:"enableNamespaces"`
	Isolation            Isolation `yaml:"isolation"`
}

type initRequest struct {
	RunSpec       RunSpec
	Isolation     Isolation
	EnableSeccomp bool
	EnableNs      bool
}
