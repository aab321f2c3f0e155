// Package grader decides whether a submission solves a challenge. It
// drives the sandbox for coding challenges and compares answers for
// multiple choice, and is deterministic for a given challenge and
// submission.
package grader

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"codequest/internal/challenge/model"
	"codequest/internal/executor"
	appErr "codequest/pkg/errors"
	"codequest/pkg/utils/logger"
)

// Result is the verdict for one graded submission.
type Result struct {
	Passed bool
	// Output is the stdout of the last executed test, capped by the
	// sandbox. Empty for multiple choice.
	Output string
	// Error carries the failure diagnostic shown to the user. Empty
	// when the submission passed.
	Error string
	// TestsRun and TestsPassed describe coding progress. Grading
	// short-circuits, so TestsRun can be lower than the total.
	TestsRun    int
	TestsPassed int
}

// Grader grades submissions against challenge specs.
type Grader struct {
	runner executor.Runner
}

func NewGrader(runner executor.Runner) *Grader {
	return &Grader{runner: runner}
}

// GradeCode runs the submitted code against the stored test cases in
// order, stopping at the first failure.
func (g *Grader) GradeCode(ctx context.Context, ch *model.Challenge, language, code string) (Result, error) {
	if ch.Coding == nil {
		return Result{}, appErr.New(appErr.InvalidParams).WithMessage("challenge does not accept code submissions")
	}
	if language == "" {
		language = ch.Coding.Language
	}

	mode := ch.NormalizeMode()
	tests := ch.Coding.TestCases
	if len(tests) == 0 {
		// No stored tests means a free-run challenge: the program
		// only has to run cleanly.
		tests = []model.TestCase{{}}
	}

	var res Result
	for i, tc := range tests {
		runRes, err := g.runner.Run(ctx, executor.RunRequest{
			RunID:    uuid.NewString(),
			Language: language,
			Code:     code,
			Stdin:    tc.Stdin,
		})
		if err != nil {
			logger.Error(ctx, "sandbox run failed",
				zap.String("challenge_id", ch.ID), zap.Int("test", i), zap.Error(err))
			return Result{}, err
		}

		res.TestsRun = i + 1
		res.Output = runRes.Stdout

		if runRes.Faulted() {
			res.Error = faultMessage(runRes)
			return res, nil
		}
		if runRes.ExitCode != 0 {
			res.Error = runtimeErrorMessage(runRes)
			return res, nil
		}
		if tc.Expected != "" && !OutputsMatch(mode, tc.Expected, runRes.Stdout) {
			res.Error = mismatchMessage(i, tc, runRes.Stdout, mode)
			return res, nil
		}
		res.TestsPassed = i + 1
	}

	res.Passed = true
	return res, nil
}

// GradeChoice compares the submitted answer with the stored one.
// Comparison is exact and case sensitive.
func (g *Grader) GradeChoice(ch *model.Challenge, answer string) (Result, error) {
	if ch.Choice == nil {
		return Result{}, appErr.New(appErr.InvalidParams).WithMessage("challenge does not accept answer submissions")
	}
	if answer == ch.Choice.CorrectAnswer {
		return Result{Passed: true}, nil
	}
	return Result{}, nil
}

func faultMessage(r executor.RunResult) string {
	switch r.Fault {
	case executor.FaultTimeout:
		return "Time limit exceeded"
	case executor.FaultMemoryExceeded:
		return "Memory limit exceeded"
	case executor.FaultOutputExceeded:
		return "Output limit exceeded"
	case executor.FaultBuildError:
		if r.FaultDetail != "" {
			return r.FaultDetail
		}
		return "Build error"
	case executor.FaultUnsupportedLanguage:
		return r.FaultDetail
	default:
		return "Execution failed, please try again"
	}
}

func runtimeErrorMessage(r executor.RunResult) string {
	stderr := strings.TrimSpace(r.Stderr)
	if stderr != "" {
		return stderr
	}
	return fmt.Sprintf("program exited with code %d", r.ExitCode)
}

func mismatchMessage(index int, tc model.TestCase, actual, mode string) string {
	expected := NormalizeOutput(mode, tc.Expected)
	got := NormalizeOutput(mode, actual)
	if tc.Stdin != "" {
		return fmt.Sprintf("test %d failed: for input %q expected %q, got %q", index+1, tc.Stdin, expected, got)
	}
	return fmt.Sprintf("test %d failed: expected %q, got %q", index+1, expected, got)
}
