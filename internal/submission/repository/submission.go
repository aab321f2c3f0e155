package repository

import (
	"context"
	"errors"

	challenge "codequest/internal/challenge/model"
	"codequest/internal/common/db"
	"codequest/internal/submission/model"
)

var ErrSubmissionNotFound = errors.New("submission not found")

type SubmissionRepository interface {
	Create(ctx context.Context, sub *model.Submission) error
	GetByID(ctx context.Context, id string) (*model.Submission, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*model.Submission, error)
}

type MySQLSubmissionRepository struct {
	db db.Database
}

func NewSubmissionRepository(database db.Database) SubmissionRepository {
	return &MySQLSubmissionRepository{db: database}
}

func (r *MySQLSubmissionRepository) Create(ctx context.Context, sub *model.Submission) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO submissions
		 (id, user_id, challenge_id, type, language, code_size, passed, output, error, xp_earned, archive_key, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.UserID, sub.ChallengeID, string(sub.Type), sub.Language, sub.CodeSize,
		sub.Passed, sub.Output, sub.Error, sub.XPEarned, sub.ArchiveKey, sub.CreatedAt)
	return err
}

func (r *MySQLSubmissionRepository) GetByID(ctx context.Context, id string) (*model.Submission, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, user_id, challenge_id, type, language, code_size, passed, output, error, xp_earned, archive_key, created_at
		 FROM submissions WHERE id = ?`, id)
	sub, err := scanSubmission(row)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}
	return sub, nil
}

func (r *MySQLSubmissionRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*model.Submission, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, challenge_id, type, language, code_size, passed, output, error, xp_earned, archive_key, created_at
		 FROM submissions WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	subs := []*model.Submission{}
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func scanSubmission(row db.Scanner) (*model.Submission, error) {
	var sub model.Submission
	var typ string
	err := row.Scan(&sub.ID, &sub.UserID, &sub.ChallengeID, &typ, &sub.Language, &sub.CodeSize,
		&sub.Passed, &sub.Output, &sub.Error, &sub.XPEarned, &sub.ArchiveKey, &sub.CreatedAt)
	if err != nil {
		return nil, err
	}
	sub.Type = challenge.Type(typ)
	return &sub, nil
}
