package executor

import "strings"

// LanguageSpec describes how to materialize, check and run source code
// for one language. Command templates are shell-style strings expanded
// with {src} before being split into argv.
type LanguageSpec struct {
	ID         string            `yaml:"id" json:"id"`
	Name       string            `yaml:"name" json:"name"`
	Version    string            `yaml:"version" json:"version"`
	SourceFile string            `yaml:"sourceFile" json:"source_file"`
	// CheckEnabled gates a pre-run syntax check. Supported languages
	// are interpreted, so the check replaces a compile step and its
	// diagnostics surface as build errors.
	CheckEnabled bool              `yaml:"checkEnabled" json:"check_enabled"`
	CheckCmdTpl  string            `yaml:"checkCmd" json:"check_cmd"`
	RunCmdTpl    string            `yaml:"runCmd" json:"run_cmd"`
	Env          map[string]string `yaml:"env" json:"env"`

	// Multipliers scale the request limits for slow runtimes.
	TimeMultiplier   float64 `yaml:"timeMultiplier" json:"time_multiplier"`
	MemoryMultiplier float64 `yaml:"memoryMultiplier" json:"memory_multiplier"`
}

// ExpandCmd substitutes {src} in a command template.
func (s *LanguageSpec) ExpandCmd(tpl, src string) string {
	return strings.ReplaceAll(tpl, "{src}", src)
}

// ScaleTime applies the language time multiplier to a millisecond limit.
func (s *LanguageSpec) ScaleTime(ms int64) int64 {
	if s.TimeMultiplier <= 0 {
		return ms
	}
	return int64(float64(ms) * s.TimeMultiplier)
}

// ScaleMemory applies the language memory multiplier to a MB limit.
func (s *LanguageSpec) ScaleMemory(mb int64) int64 {
	if s.MemoryMultiplier <= 0 {
		return mb
	}
	return int64(float64(mb) * s.MemoryMultiplier)
}

// DefaultLanguages returns the built-in language table keyed by ID.
func DefaultLanguages() map[string]*LanguageSpec {
	return map[string]*LanguageSpec{
		"python": {
			ID:           "python",
			Name:         "Python",
			Version:      "3.11",
			SourceFile:   "main.py",
			CheckEnabled: true,
			CheckCmdTpl:  "python3 -m py_compile {src}",
			RunCmdTpl:    "python3 {src}",
			Env: map[string]string{
				"PYTHONDONTWRITEBYTECODE": "1",
				"PYTHONIOENCODING":        "utf-8",
			},
			TimeMultiplier:   1.0,
			MemoryMultiplier: 1.0,
		},
		"javascript": {
			ID:           "javascript",
			Name:         "JavaScript",
			Version:      "20",
			SourceFile:   "main.js",
			CheckEnabled: true,
			CheckCmdTpl:  "node --check {src}",
			RunCmdTpl:    "node {src}",
			Env: map[string]string{
				"NODE_OPTIONS": "--max-old-space-size=192",
			},
			TimeMultiplier:   1.5,
			MemoryMultiplier: 1.5,
		},
	}
}
