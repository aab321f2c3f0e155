package command_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"codequest/internal/cli/command"
)

func mustCommand(t *testing.T, key string) command.Command {
	t.Helper()
	cmd, ok := command.Registry()[key]
	if !ok {
		t.Fatalf("command %q not registered", key)
	}
	return cmd
}

func decodeBody(t *testing.T, body []byte) map[string]string {
	t.Helper()
	payload := map[string]string{}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return payload
}

func TestRegistryCoversAllServices(t *testing.T) {
	reg := command.Registry()
	for _, key := range []string{
		"auth register", "auth login",
		"user profile",
		"challenge list", "challenge get",
		"submit code", "submit choice", "submit history",
		"board top", "board me",
	} {
		if _, ok := reg[key]; !ok {
			t.Errorf("missing command %q", key)
		}
	}
}

func TestBuildRequestPathParameter(t *testing.T) {
	cmd := mustCommand(t, "challenge get")

	spec, err := command.BuildRequest(cmd, command.Params{"id": "two-sum"})
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if spec.Method != "GET" || spec.Path != "/api/challenges/two-sum" {
		t.Fatalf("unexpected spec %+v", spec)
	}
	if spec.Body != nil {
		t.Fatal("GET requests carry no body")
	}
}

func TestBuildRequestEscapesPathParameter(t *testing.T) {
	cmd := mustCommand(t, "challenge get")

	spec, err := command.BuildRequest(cmd, command.Params{"id": "a b/c"})
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if strings.Contains(spec.Path, " ") || strings.Contains(spec.Path, "a b") {
		t.Fatalf("path parameter not escaped: %q", spec.Path)
	}
}

func TestBuildRequestMissingPathParameter(t *testing.T) {
	cmd := mustCommand(t, "challenge get")

	if _, err := command.BuildRequest(cmd, command.Params{}); err == nil {
		t.Fatal("expected error for missing id")
	}
}

func TestBuildRequestQueryParameters(t *testing.T) {
	cmd := mustCommand(t, "submit history")

	spec, err := command.BuildRequest(cmd, command.Params{"limit": "5"})
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if spec.Path != "/api/submissions?limit=5" {
		t.Fatalf("unexpected path %q", spec.Path)
	}

	spec, err = command.BuildRequest(cmd, command.Params{})
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if spec.Path != "/api/submissions" {
		t.Fatalf("empty params must not add a query string, got %q", spec.Path)
	}
}

func TestBuildRequestAuthPayload(t *testing.T) {
	cmd := mustCommand(t, "auth login")

	spec, err := command.BuildRequest(cmd, command.Params{"username": "alice", "password": "secret1"})
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	payload := decodeBody(t, spec.Body)
	if payload["username"] != "alice" || payload["password"] != "secret1" {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestBuildRequestSubmitCodeAliases(t *testing.T) {
	cmd := mustCommand(t, "submit code")

	spec, err := command.BuildRequest(cmd, command.Params{
		"id":   "two-sum",
		"code": "print(1)",
		"lang": "python",
	})
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	payload := decodeBody(t, spec.Body)
	if payload["challenge_id"] != "two-sum" {
		t.Fatalf("id alias not canonicalized: %v", payload)
	}
	if payload["language"] != "python" {
		t.Fatalf("lang alias not canonicalized: %v", payload)
	}
}

func TestBuildRequestSubmitCodeOmitsEmptyLanguage(t *testing.T) {
	cmd := mustCommand(t, "submit code")

	spec, err := command.BuildRequest(cmd, command.Params{
		"challenge_id": "two-sum",
		"code":         "print(1)",
	})
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	payload := decodeBody(t, spec.Body)
	if _, ok := payload["language"]; ok {
		t.Fatal("empty language must be omitted from the payload")
	}
}

func TestBuildRequestSubmitCodeFromFile(t *testing.T) {
	src := filepath.Join(t.TempDir(), "solution.py")
	if err := os.WriteFile(src, []byte("print('hi')\n"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	cmd := mustCommand(t, "submit code")

	spec, err := command.BuildRequest(cmd, command.Params{
		"challenge_id": "two-sum",
		"code":         "_file_",
		"code_file":    src,
	})
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	payload := decodeBody(t, spec.Body)
	if payload["code"] != "print('hi')\n" {
		t.Fatalf("code not loaded from file: %q", payload["code"])
	}
}

func TestBuildRequestSubmitCodeRequiresCode(t *testing.T) {
	cmd := mustCommand(t, "submit code")

	if _, err := command.BuildRequest(cmd, command.Params{"challenge_id": "two-sum"}); err == nil {
		t.Fatal("expected error when code and code_file are both missing")
	}
}

func TestParamsCanonicalizeIsCaseInsensitive(t *testing.T) {
	params := command.Params{}
	params.Set("ID", "two-sum")
	if params.Get("id") != "two-sum" {
		t.Fatal("keys must be case insensitive")
	}

	cmd := mustCommand(t, "submit choice")
	params = command.Params{"id": "quiz-1", "answer": "B"}
	spec, err := command.BuildRequest(cmd, params)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	payload := decodeBody(t, spec.Body)
	if payload["challenge_id"] != "quiz-1" || payload["answer"] != "B" {
		t.Fatalf("unexpected payload %v", payload)
	}
}
