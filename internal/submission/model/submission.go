// Package model defines the submission audit record.
package model

import (
	"time"

	challenge "codequest/internal/challenge/model"
)

// Submission is one graded attempt. Rows are append-only.
type Submission struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id"`
	ChallengeID string         `json:"challenge_id"`
	Type        challenge.Type `json:"type"`
	Language    string         `json:"language,omitempty"`
	CodeSize    int            `json:"code_size"`
	Passed      bool           `json:"passed"`
	Output      string         `json:"output,omitempty"`
	Error       string         `json:"error,omitempty"`
	XPEarned    int            `json:"xp_earned"`
	// ArchiveKey is the object storage key of the submitted source,
	// empty when archiving was skipped or failed.
	ArchiveKey string    `json:"archive_key,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
