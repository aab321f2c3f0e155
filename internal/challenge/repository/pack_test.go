package repository_test

import (
	"archive/tar"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"

	"codequest/internal/challenge/model"
	"codequest/internal/challenge/repository"
)

type packEntry struct {
	name string
	body []byte
}

func writePack(t *testing.T, entries ...packEntry) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "challenges.tar.zst")
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create pack: %v", err)
	}
	zw, err := zstd.NewWriter(file)
	if err != nil {
		t.Fatalf("zstd writer: %v", err)
	}
	tw := tar.NewWriter(zw)
	for _, entry := range entries {
		hdr := &tar.Header{
			Name:     entry.name,
			Mode:     0o644,
			Size:     int64(len(entry.body)),
			Typeflag: tar.TypeReg,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("write header %s: %v", entry.name, err)
		}
		if _, err := tw.Write(entry.body); err != nil {
			t.Fatalf("write body %s: %v", entry.name, err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("close tar: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zstd: %v", err)
	}
	if err := file.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}
	return path
}

func challengeJSON(t *testing.T, ch *model.Challenge) []byte {
	t.Helper()
	data, err := json.Marshal(ch)
	if err != nil {
		t.Fatalf("marshal challenge: %v", err)
	}
	return data
}

func validCoding(id string) *model.Challenge {
	return &model.Challenge{
		ID:       id,
		Title:    "Sum",
		Type:     model.TypeCoding,
		XPReward: 25,
		Coding: &model.CodingSpec{
			Language:  "python",
			TestCases: []model.TestCase{{Stdin: "1 2", Expected: "3"}},
		},
	}
}

func TestLoadPackPreservesOrder(t *testing.T) {
	path := writePack(t,
		packEntry{"01_first.json", challengeJSON(t, validCoding("first"))},
		packEntry{"02_second.json", challengeJSON(t, validCoding("second"))},
		packEntry{"03_third.json", challengeJSON(t, validCoding("third"))},
	)

	challenges, err := repository.LoadPack(path)
	if err != nil {
		t.Fatalf("load pack: %v", err)
	}
	if len(challenges) != 3 {
		t.Fatalf("expected 3 challenges, got %d", len(challenges))
	}
	for i, want := range []string{"first", "second", "third"} {
		if challenges[i].ID != want {
			t.Errorf("position %d: expected %q, got %q", i, want, challenges[i].ID)
		}
	}
}

func TestLoadPackAssignsMissingIDs(t *testing.T) {
	ch := validCoding("")
	path := writePack(t, packEntry{"anon.json", challengeJSON(t, ch)})

	challenges, err := repository.LoadPack(path)
	if err != nil {
		t.Fatalf("load pack: %v", err)
	}
	if len(challenges) != 1 || challenges[0].ID == "" {
		t.Fatalf("expected a generated id, got %+v", challenges)
	}
	if challenges[0].CreatedAt.IsZero() {
		t.Fatal("expected a backfilled created_at")
	}
}

func TestLoadPackSkipsNonJSONEntries(t *testing.T) {
	path := writePack(t,
		packEntry{"README.md", []byte("not a challenge")},
		packEntry{"one.json", challengeJSON(t, validCoding("one"))},
	)

	challenges, err := repository.LoadPack(path)
	if err != nil {
		t.Fatalf("load pack: %v", err)
	}
	if len(challenges) != 1 || challenges[0].ID != "one" {
		t.Fatalf("expected only the json entry, got %+v", challenges)
	}
}

func TestLoadPackRejectsInvalidChallenge(t *testing.T) {
	bad := validCoding("bad")
	bad.Coding = nil
	path := writePack(t, packEntry{"bad.json", challengeJSON(t, bad)})

	if _, err := repository.LoadPack(path); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadPackRejectsEscapingEntries(t *testing.T) {
	path := writePack(t, packEntry{"../evil.json", challengeJSON(t, validCoding("evil"))})

	_, err := repository.LoadPack(path)
	if err == nil || !strings.Contains(err.Error(), "escapes pack root") {
		t.Fatalf("expected path traversal rejection, got %v", err)
	}
}

func TestLoadPackMissingFile(t *testing.T) {
	if _, err := repository.LoadPack(filepath.Join(t.TempDir(), "nope.tar.zst")); err == nil {
		t.Fatal("expected error for missing pack")
	}
}
