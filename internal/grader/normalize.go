package grader

import (
	"strings"

	"codequest/internal/challenge/model"
)

// NormalizeOutput canonicalizes program output before comparison.
//
// Exact mode keeps line content as-is but ignores trailing whitespace
// at the end of each line and trailing blank lines, so a final newline
// never decides a verdict. Token mode ignores all whitespace layout
// and compares the whitespace-separated tokens.
func NormalizeOutput(mode, s string) string {
	switch mode {
	case model.NormalizeTokens:
		return strings.Join(strings.Fields(s), " ")
	default:
		lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
		for i := range lines {
			lines[i] = strings.TrimRight(lines[i], " \t")
		}
		out := strings.Join(lines, "\n")
		return strings.TrimRight(out, "\n")
	}
}

// OutputsMatch compares expected and actual output under the mode.
func OutputsMatch(mode, expected, actual string) bool {
	return NormalizeOutput(mode, expected) == NormalizeOutput(mode, actual)
}
