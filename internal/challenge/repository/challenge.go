package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"codequest/internal/challenge/model"
	"codequest/internal/common/cache"
	"codequest/internal/common/db"
)

const (
	defaultChallengeTTL      = 30 * time.Minute
	defaultChallengeEmptyTTL = 5 * time.Minute
	challengeKeyPrefix       = "challenge:id:"
)

var (
	ErrChallengeNotFound = errors.New("challenge not found")
)

type ChallengeRepository interface {
	GetByID(ctx context.Context, id string) (*model.Challenge, error)
	List(ctx context.Context) ([]*model.Challenge, error)
	Create(ctx context.Context, tx db.Transaction, challenge *model.Challenge) error
	Count(ctx context.Context) (int64, error)
}

type MySQLChallengeRepository struct {
	db       db.Database
	cache    cache.Cache
	ttl      time.Duration
	emptyTTL time.Duration
}

func NewChallengeRepository(database db.Database, cacheClient cache.Cache) ChallengeRepository {
	return &MySQLChallengeRepository{
		db:       database,
		cache:    cacheClient,
		ttl:      defaultChallengeTTL,
		emptyTTL: defaultChallengeEmptyTTL,
	}
}

func (r *MySQLChallengeRepository) GetByID(ctx context.Context, id string) (*model.Challenge, error) {
	if r.cache != nil {
		challenge, err := cache.GetWithCached[*model.Challenge](
			ctx,
			r.cache,
			challengeKey(id),
			cache.JitterTTL(r.ttl),
			cache.JitterTTL(r.emptyTTL),
			func(c *model.Challenge) bool { return c == nil },
			marshalChallenge,
			unmarshalChallenge,
			func(ctx context.Context) (*model.Challenge, error) {
				c, err := r.getByIDFromDB(ctx, id)
				if err != nil {
					if errors.Is(err, ErrChallengeNotFound) {
						return nil, nil
					}
					return nil, err
				}
				return c, nil
			},
		)
		if err != nil {
			return nil, err
		}
		if challenge == nil {
			return nil, ErrChallengeNotFound
		}
		return challenge, nil
	}
	return r.getByIDFromDB(ctx, id)
}

func (r *MySQLChallengeRepository) List(ctx context.Context) ([]*model.Challenge, error) {
	query := `
		SELECT id, title, description, type, difficulty, xp_reward,
		       language, starter_code, solution, normalize_mode, test_cases,
		       options, correct_answer, created_at
		FROM challenges
		ORDER BY created_at ASC, id ASC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var challenges []*model.Challenge
	for rows.Next() {
		challenge, err := scanChallenge(rows)
		if err != nil {
			return nil, err
		}
		challenges = append(challenges, challenge)
	}
	return challenges, rows.Err()
}

func (r *MySQLChallengeRepository) Create(ctx context.Context, tx db.Transaction, challenge *model.Challenge) error {
	if challenge == nil {
		return errors.New("challenge is nil")
	}
	if err := challenge.Validate(); err != nil {
		return err
	}

	var (
		language, starterCode, solution, normalize sql.NullString
		testCases, options, correctAnswer          sql.NullString
	)
	if challenge.Coding != nil {
		language = nullString(challenge.Coding.Language)
		starterCode = nullString(challenge.Coding.StarterCode)
		solution = nullString(challenge.Coding.Solution)
		normalize = nullString(challenge.Coding.Normalize)
		if len(challenge.Coding.TestCases) > 0 {
			payload, err := json.Marshal(challenge.Coding.TestCases)
			if err != nil {
				return err
			}
			testCases = nullString(string(payload))
		}
	}
	if challenge.Choice != nil {
		payload, err := json.Marshal(challenge.Choice.Options)
		if err != nil {
			return err
		}
		options = nullString(string(payload))
		correctAnswer = nullString(challenge.Choice.CorrectAnswer)
	}

	query := `
		INSERT INTO challenges
			(id, title, description, type, difficulty, xp_reward,
			 language, starter_code, solution, normalize_mode, test_cases,
			 options, correct_answer, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.GetQuerier(r.db, tx).Exec(ctx, query,
		challenge.ID, challenge.Title, challenge.Description,
		string(challenge.Type), string(challenge.Difficulty), challenge.XPReward,
		language, starterCode, solution, normalize, testCases,
		options, correctAnswer, challenge.CreatedAt,
	)
	if err != nil {
		return err
	}
	if r.cache != nil {
		_ = r.cache.Del(ctx, challengeKey(challenge.ID))
	}
	return nil
}

func (r *MySQLChallengeRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	row := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM challenges")
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *MySQLChallengeRepository) getByIDFromDB(ctx context.Context, id string) (*model.Challenge, error) {
	query := `
		SELECT id, title, description, type, difficulty, xp_reward,
		       language, starter_code, solution, normalize_mode, test_cases,
		       options, correct_answer, created_at
		FROM challenges
		WHERE id = ?`

	row := r.db.QueryRow(ctx, query, id)
	challenge, err := scanChallenge(row)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrChallengeNotFound
		}
		return nil, err
	}
	return challenge, nil
}

func scanChallenge(scanner db.Scanner) (*model.Challenge, error) {
	var (
		challenge                                  model.Challenge
		typ, difficulty                            string
		language, starterCode, solution, normalize sql.NullString
		testCases, options, correctAnswer          sql.NullString
	)
	err := scanner.Scan(
		&challenge.ID, &challenge.Title, &challenge.Description,
		&typ, &difficulty, &challenge.XPReward,
		&language, &starterCode, &solution, &normalize, &testCases,
		&options, &correctAnswer, &challenge.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	challenge.Type = model.Type(typ)
	challenge.Difficulty = model.Difficulty(difficulty)

	switch challenge.Type {
	case model.TypeCoding:
		spec := &model.CodingSpec{
			Language:    language.String,
			StarterCode: starterCode.String,
			Solution:    solution.String,
			Normalize:   normalize.String,
		}
		if testCases.Valid && testCases.String != "" {
			if err := json.Unmarshal([]byte(testCases.String), &spec.TestCases); err != nil {
				return nil, err
			}
		}
		challenge.Coding = spec
	case model.TypeMultipleChoice:
		spec := &model.ChoiceSpec{CorrectAnswer: correctAnswer.String}
		if options.Valid && options.String != "" {
			if err := json.Unmarshal([]byte(options.String), &spec.Options); err != nil {
				return nil, err
			}
		}
		challenge.Choice = spec
	}
	return &challenge, nil
}

func challengeKey(id string) string {
	return challengeKeyPrefix + id
}

func marshalChallenge(c *model.Challenge) string {
	payload, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return string(payload)
}

func unmarshalChallenge(data string) (*model.Challenge, error) {
	if data == "" {
		return nil, nil
	}
	var challenge model.Challenge
	if err := json.Unmarshal([]byte(data), &challenge); err != nil {
		return nil, err
	}
	return &challenge, nil
}

func nullString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}
