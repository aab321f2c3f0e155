package grader_test

import (
	"testing"

	"codequest/internal/challenge/model"
	"codequest/internal/grader"
)

func TestNormalizeOutputExact(t *testing.T) {
	cases := []struct {
		name     string
		input    string
		expected string
	}{
		{"trailing newline", "hello\n", "hello"},
		{"trailing newlines", "hello\n\n\n", "hello"},
		{"trailing spaces per line", "a  \nb\t\nc", "a\nb\nc"},
		{"crlf", "a\r\nb\r\n", "a\nb"},
		{"interior whitespace kept", "a b\n c", "a b\n c"},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := grader.NormalizeOutput(model.NormalizeExact, tc.input)
			if got != tc.expected {
				t.Fatalf("expected %q, got %q", tc.expected, got)
			}
		})
	}
}

func TestNormalizeOutputTokens(t *testing.T) {
	got := grader.NormalizeOutput(model.NormalizeTokens, "  1\t2\n\n3  ")
	if got != "1 2 3" {
		t.Fatalf("expected %q, got %q", "1 2 3", got)
	}
}

func TestOutputsMatch(t *testing.T) {
	if !grader.OutputsMatch(model.NormalizeExact, "42\n", "42") {
		t.Fatal("trailing newline should not decide the verdict")
	}
	if grader.OutputsMatch(model.NormalizeExact, "a b", "a  b") {
		t.Fatal("exact mode must keep interior whitespace significant")
	}
	if !grader.OutputsMatch(model.NormalizeTokens, "1 2 3", "1\n2\n3") {
		t.Fatal("token mode should ignore whitespace layout")
	}
}
