package grader_test

import (
	"context"
	"strings"
	"testing"

	"codequest/internal/challenge/model"
	"codequest/internal/executor"
	"codequest/internal/grader"
)

// scriptedRunner replays canned results keyed by stdin, falling back
// to the zero result. It records every request it saw.
type scriptedRunner struct {
	byStdin  map[string]executor.RunResult
	fallback executor.RunResult
	requests []executor.RunRequest
}

func (r *scriptedRunner) Run(_ context.Context, req executor.RunRequest) (executor.RunResult, error) {
	r.requests = append(r.requests, req)
	if res, ok := r.byStdin[req.Stdin]; ok {
		return res, nil
	}
	return r.fallback, nil
}

func codingChallenge(tests ...model.TestCase) *model.Challenge {
	return &model.Challenge{
		ID:   "ch-1",
		Type: model.TypeCoding,
		Coding: &model.CodingSpec{
			Language:  "python",
			TestCases: tests,
		},
	}
}

func TestGradeCodeAllTestsPass(t *testing.T) {
	runner := &scriptedRunner{byStdin: map[string]executor.RunResult{
		"3 4":  {Stdout: "7\n"},
		"10 5": {Stdout: "15\n"},
	}}
	g := grader.NewGrader(runner)

	ch := codingChallenge(
		model.TestCase{Stdin: "3 4", Expected: "7"},
		model.TestCase{Stdin: "10 5", Expected: "15"},
	)
	res, err := g.GradeCode(context.Background(), ch, "", "print(sum(map(int, input().split())))")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Passed {
		t.Fatalf("expected pass, got error %q", res.Error)
	}
	if res.TestsRun != 2 || res.TestsPassed != 2 {
		t.Fatalf("expected 2/2 tests, got %d/%d", res.TestsPassed, res.TestsRun)
	}
	if runner.requests[0].Language != "python" {
		t.Fatalf("expected challenge language to apply, got %q", runner.requests[0].Language)
	}
}

func TestGradeCodeIsDeterministicPerRun(t *testing.T) {
	runner := &scriptedRunner{fallback: executor.RunResult{Stdout: "ok"}}
	g := grader.NewGrader(runner)
	ch := codingChallenge(model.TestCase{Expected: "ok"})

	first, err := g.GradeCode(context.Background(), ch, "", "print('ok')")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := g.GradeCode(context.Background(), ch, "", "print('ok')")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Fatalf("same submission produced different verdicts: %+v vs %+v", first, second)
	}
}

func TestGradeCodeShortCircuitsOnFirstFailure(t *testing.T) {
	runner := &scriptedRunner{byStdin: map[string]executor.RunResult{
		"1": {Stdout: "wrong"},
		"2": {Stdout: "2"},
	}}
	g := grader.NewGrader(runner)

	ch := codingChallenge(
		model.TestCase{Stdin: "1", Expected: "1"},
		model.TestCase{Stdin: "2", Expected: "2"},
	)
	res, err := g.GradeCode(context.Background(), ch, "", "print(input())")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Passed {
		t.Fatal("expected failure")
	}
	if len(runner.requests) != 1 {
		t.Fatalf("expected grading to stop after the first failure, ran %d tests", len(runner.requests))
	}
	if res.TestsRun != 1 || res.TestsPassed != 0 {
		t.Fatalf("expected 0/1 tests, got %d/%d", res.TestsPassed, res.TestsRun)
	}
}

func TestGradeCodeMismatchDiagnostic(t *testing.T) {
	runner := &scriptedRunner{fallback: executor.RunResult{Stdout: "9\n"}}
	g := grader.NewGrader(runner)

	ch := codingChallenge(model.TestCase{Stdin: "5 5", Expected: "10"})
	res, err := g.GradeCode(context.Background(), ch, "", "print(9)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Passed {
		t.Fatal("expected failure")
	}
	for _, want := range []string{"test 1 failed", `"5 5"`, `"10"`, `"9"`} {
		if !strings.Contains(res.Error, want) {
			t.Fatalf("diagnostic %q missing %q", res.Error, want)
		}
	}
}

func TestGradeCodeFaultMessages(t *testing.T) {
	cases := []struct {
		name     string
		result   executor.RunResult
		expected string
	}{
		{"timeout", executor.RunResult{Fault: executor.FaultTimeout}, "Time limit exceeded"},
		{"memory", executor.RunResult{Fault: executor.FaultMemoryExceeded}, "Memory limit exceeded"},
		{"output", executor.RunResult{Fault: executor.FaultOutputExceeded}, "Output limit exceeded"},
		{"build detail", executor.RunResult{Fault: executor.FaultBuildError, FaultDetail: "SyntaxError: invalid syntax"}, "SyntaxError: invalid syntax"},
		{"build bare", executor.RunResult{Fault: executor.FaultBuildError}, "Build error"},
		{"infra", executor.RunResult{Fault: executor.FaultInfrastructure}, "Execution failed, please try again"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			runner := &scriptedRunner{fallback: tc.result}
			g := grader.NewGrader(runner)
			res, err := g.GradeCode(context.Background(), codingChallenge(model.TestCase{Expected: "x"}), "", "pass")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Passed {
				t.Fatal("expected failure")
			}
			if res.Error != tc.expected {
				t.Fatalf("expected %q, got %q", tc.expected, res.Error)
			}
		})
	}
}

func TestGradeCodeRuntimeError(t *testing.T) {
	runner := &scriptedRunner{fallback: executor.RunResult{
		ExitCode: 1,
		Stderr:   "Traceback (most recent call last):\nZeroDivisionError: division by zero\n",
	}}
	g := grader.NewGrader(runner)
	res, err := g.GradeCode(context.Background(), codingChallenge(model.TestCase{Expected: "1"}), "", "1/0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Passed {
		t.Fatal("expected failure")
	}
	if !strings.Contains(res.Error, "ZeroDivisionError") {
		t.Fatalf("expected stderr in diagnostic, got %q", res.Error)
	}
}

func TestGradeCodeRuntimeErrorWithoutStderr(t *testing.T) {
	runner := &scriptedRunner{fallback: executor.RunResult{ExitCode: 2}}
	g := grader.NewGrader(runner)
	res, err := g.GradeCode(context.Background(), codingChallenge(model.TestCase{Expected: "1"}), "", "exit(2)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Error != "program exited with code 2" {
		t.Fatalf("unexpected diagnostic %q", res.Error)
	}
}

func TestGradeCodeFreeRun(t *testing.T) {
	runner := &scriptedRunner{fallback: executor.RunResult{Stdout: "Hello, World!\n"}}
	g := grader.NewGrader(runner)

	res, err := g.GradeCode(context.Background(), codingChallenge(), "", "print('Hello, World!')")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Passed {
		t.Fatalf("expected free-run pass, got %q", res.Error)
	}
	if len(runner.requests) != 1 {
		t.Fatalf("expected exactly one run, got %d", len(runner.requests))
	}
	if res.Output != "Hello, World!\n" {
		t.Fatalf("expected program output to be kept, got %q", res.Output)
	}
}

func TestGradeCodeRejectsNonCodingChallenge(t *testing.T) {
	g := grader.NewGrader(&scriptedRunner{})
	ch := &model.Challenge{ID: "quiz", Type: model.TypeMultipleChoice, Choice: &model.ChoiceSpec{CorrectAnswer: "A"}}
	if _, err := g.GradeCode(context.Background(), ch, "", "print()"); err == nil {
		t.Fatal("expected error for non-coding challenge")
	}
}

func TestGradeChoice(t *testing.T) {
	g := grader.NewGrader(&scriptedRunner{})
	ch := &model.Challenge{
		ID:     "quiz",
		Type:   model.TypeMultipleChoice,
		Choice: &model.ChoiceSpec{Options: []string{"A", "B"}, CorrectAnswer: "B"},
	}

	res, err := g.GradeChoice(ch, "B")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Passed {
		t.Fatal("expected correct answer to pass")
	}

	res, err = g.GradeChoice(ch, "b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Passed {
		t.Fatal("comparison must be case sensitive")
	}

	if _, err := g.GradeChoice(&model.Challenge{Type: model.TypeCoding, Coding: &model.CodingSpec{}}, "A"); err == nil {
		t.Fatal("expected error for non-choice challenge")
	}
}
