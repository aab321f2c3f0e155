package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"codequest/internal/challenge/model"
	"codequest/internal/challenge/repository"
	pkgerrors "codequest/pkg/errors"
	"codequest/pkg/utils/logger"
)

// ChallengeService handles challenge queries and store seeding.
type ChallengeService struct {
	repo     repository.ChallengeRepository
	packPath string
}

// NewChallengeService creates a new ChallengeService. packPath may be
// empty; seeding then falls back to the built-in starter set.
func NewChallengeService(repo repository.ChallengeRepository, packPath string) *ChallengeService {
	return &ChallengeService{repo: repo, packPath: packPath}
}

// List returns public summaries for all challenges.
func (s *ChallengeService) List(ctx context.Context) ([]model.Summary, error) {
	challenges, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(fmt.Errorf("list challenges failed: %w", err), pkgerrors.DatabaseError)
	}
	summaries := make([]model.Summary, 0, len(challenges))
	for _, challenge := range challenges {
		summaries = append(summaries, challenge.ToSummary())
	}
	return summaries, nil
}

// Get returns the public detail view of one challenge.
func (s *ChallengeService) Get(ctx context.Context, id string) (model.Detail, error) {
	challenge, err := s.GetFull(ctx, id)
	if err != nil {
		return model.Detail{}, err
	}
	return challenge.ToDetail(), nil
}

// GetFull returns the full challenge including judging data.
// For server-side use only; never serialize the result to clients.
func (s *ChallengeService) GetFull(ctx context.Context, id string) (*model.Challenge, error) {
	if id == "" {
		return nil, pkgerrors.New(pkgerrors.InvalidParams)
	}
	challenge, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrChallengeNotFound {
			return nil, pkgerrors.New(pkgerrors.ChallengeNotFound)
		}
		return nil, pkgerrors.Wrap(fmt.Errorf("get challenge failed: %w", err), pkgerrors.DatabaseError)
	}
	return challenge, nil
}

// Create stores a new challenge.
func (s *ChallengeService) Create(ctx context.Context, challenge *model.Challenge) error {
	if challenge == nil {
		return pkgerrors.New(pkgerrors.InvalidParams)
	}
	if challenge.ID == "" {
		challenge.ID = uuid.NewString()
	}
	if challenge.CreatedAt.IsZero() {
		challenge.CreatedAt = time.Now().UTC()
	}
	if err := challenge.Validate(); err != nil {
		return pkgerrors.New(pkgerrors.InvalidParams).WithMessage(err.Error())
	}
	if err := s.repo.Create(ctx, nil, challenge); err != nil {
		return pkgerrors.Wrap(fmt.Errorf("create challenge failed: %w", err), pkgerrors.DatabaseError)
	}
	return nil
}

// Seed populates an empty challenge store, from the configured pack if
// present, otherwise from the built-in starter set.
func (s *ChallengeService) Seed(ctx context.Context) error {
	count, err := s.repo.Count(ctx)
	if err != nil {
		return pkgerrors.Wrap(fmt.Errorf("count challenges failed: %w", err), pkgerrors.DatabaseError)
	}
	if count > 0 {
		return nil
	}

	var challenges []*model.Challenge
	if s.packPath != "" {
		challenges, err = repository.LoadPack(s.packPath)
		if err != nil {
			return pkgerrors.Wrap(err, pkgerrors.ChallengeSeedFailed)
		}
	} else {
		challenges = defaultChallenges()
	}

	now := time.Now().UTC()
	for i, challenge := range challenges {
		if challenge.ID == "" {
			challenge.ID = uuid.NewString()
		}
		if challenge.CreatedAt.IsZero() {
			// Spread timestamps so list order stays stable.
			challenge.CreatedAt = now.Add(time.Duration(i) * time.Millisecond)
		}
		if err := s.repo.Create(ctx, nil, challenge); err != nil {
			return pkgerrors.Wrap(fmt.Errorf("seed challenge %q failed: %w", challenge.Title, err), pkgerrors.ChallengeSeedFailed)
		}
	}
	logger.Info(ctx, "challenge store seeded", zap.Int("count", len(challenges)))
	return nil
}
