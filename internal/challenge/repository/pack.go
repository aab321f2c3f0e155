package repository

import (
	"archive/tar"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"codequest/internal/challenge/model"
)

// maxPackEntryBytes caps one challenge document inside a pack.
const maxPackEntryBytes = 4 << 20

// LoadPack reads a challenge pack: a zstd-compressed tar whose entries
// are JSON challenge documents. Entry order is preserved. Challenges
// without an id get one assigned.
func LoadPack(path string) ([]*model.Challenge, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open challenge pack failed: %w", err)
	}
	defer func() { _ = file.Close() }()

	zstdReader, err := zstd.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("create zstd reader failed: %w", err)
	}
	defer zstdReader.Close()

	var challenges []*model.Challenge
	tr := tar.NewReader(zstdReader)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read tar entry failed: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		cleanName := filepath.Clean(hdr.Name)
		if strings.HasPrefix(cleanName, "..") || filepath.IsAbs(cleanName) {
			return nil, fmt.Errorf("challenge pack entry escapes pack root: %s", hdr.Name)
		}
		if !strings.HasSuffix(cleanName, ".json") {
			continue
		}
		if hdr.Size > maxPackEntryBytes {
			return nil, fmt.Errorf("challenge pack entry too large: %s", hdr.Name)
		}

		data, err := io.ReadAll(io.LimitReader(tr, maxPackEntryBytes))
		if err != nil {
			return nil, fmt.Errorf("read pack entry %s failed: %w", hdr.Name, err)
		}
		challenge := &model.Challenge{}
		if err := json.Unmarshal(data, challenge); err != nil {
			return nil, fmt.Errorf("parse pack entry %s failed: %w", hdr.Name, err)
		}
		if challenge.ID == "" {
			challenge.ID = uuid.NewString()
		}
		if challenge.CreatedAt.IsZero() {
			challenge.CreatedAt = time.Now().UTC()
		}
		if err := challenge.Validate(); err != nil {
			return nil, fmt.Errorf("invalid challenge in pack entry %s: %w", hdr.Name, err)
		}
		challenges = append(challenges, challenge)
	}
	return challenges, nil
}
