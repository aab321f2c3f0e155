// Package service orchestrates the submission pipeline: validation,
// admission, grading, awarding and the audit trail.
package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	challenge "codequest/internal/challenge/model"
	"codequest/internal/common/storage"
	"codequest/internal/grader"
	"codequest/internal/metrics"
	"codequest/internal/progression"
	"codequest/internal/submission/model"
	"codequest/internal/submission/repository"
	pkgerrors "codequest/pkg/errors"
	"codequest/pkg/utils/logger"
)

const (
	defaultMaxCodeBytes = 64 * 1024
	defaultWorkers      = 8
	defaultSlotWait     = 500 * time.Millisecond
)

// ChallengeLoader resolves full challenge specs, judging data included.
type ChallengeLoader interface {
	GetFull(ctx context.Context, id string) (*challenge.Challenge, error)
}

// Grader turns a submission into a verdict.
type Grader interface {
	GradeCode(ctx context.Context, ch *challenge.Challenge, language, code string) (grader.Result, error)
	GradeChoice(ch *challenge.Challenge, answer string) (grader.Result, error)
}

// Awarder commits passed submissions to the progression ledger.
type Awarder interface {
	RecordCompletion(ctx context.Context, userID string, ch *challenge.Challenge) (progression.Award, error)
}

// LanguageChecker is the sandbox language allow-list.
type LanguageChecker interface {
	Supports(language string) bool
}

// UserInvalidator drops stale cached user rows after an award.
type UserInvalidator interface {
	Invalidate(ctx context.Context, id string) error
}

// Config tunes the submission pipeline.
type Config struct {
	// MaxCodeBytes rejects oversized sources before they reach the
	// sandbox.
	MaxCodeBytes int `yaml:"maxCodeBytes"`
	// Workers bounds concurrent sandbox runs.
	Workers int `yaml:"workers"`
	// SlotWait is how long a submission waits for a worker slot
	// before being turned away.
	SlotWait time.Duration `yaml:"slotWait"`
	// ArchiveBucket stores submitted sources. Empty disables
	// archiving.
	ArchiveBucket string `yaml:"archiveBucket"`
}

// SubmissionService runs the pipeline.
type SubmissionService struct {
	challenges ChallengeLoader
	grader     Grader
	ledger     Awarder
	languages  LanguageChecker
	users      UserInvalidator
	subs       repository.SubmissionRepository
	store      storage.ObjectStorage
	cfg        Config
	slots      chan struct{}
}

func NewSubmissionService(
	challenges ChallengeLoader,
	g Grader,
	ledger Awarder,
	languages LanguageChecker,
	users UserInvalidator,
	subs repository.SubmissionRepository,
	store storage.ObjectStorage,
	cfg Config,
) *SubmissionService {
	if cfg.MaxCodeBytes <= 0 {
		cfg.MaxCodeBytes = defaultMaxCodeBytes
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.SlotWait <= 0 {
		cfg.SlotWait = defaultSlotWait
	}
	return &SubmissionService{
		challenges: challenges,
		grader:     g,
		ledger:     ledger,
		languages:  languages,
		users:      users,
		subs:       subs,
		store:      store,
		cfg:        cfg,
		slots:      make(chan struct{}, cfg.Workers),
	}
}

// CodeOutcome is the result of a code submission.
type CodeOutcome struct {
	Success bool
	Output  string
	ErrMsg  string
	Award   progression.Award
}

// ChoiceOutcome is the result of a multiple choice submission.
type ChoiceOutcome struct {
	Success       bool
	CorrectAnswer string
	Award         progression.Award
}

// SubmitCode validates, sandboxes and grades a code submission, then
// awards XP for a first-time pass.
func (s *SubmissionService) SubmitCode(ctx context.Context, userID, challengeID, language, code string) (CodeOutcome, error) {
	if strings.TrimSpace(code) == "" {
		return CodeOutcome{}, pkgerrors.New(pkgerrors.InvalidParams).WithMessage("code is required")
	}
	if len(code) > s.cfg.MaxCodeBytes {
		return CodeOutcome{}, pkgerrors.New(pkgerrors.CodeTooLarge)
	}

	ch, err := s.challenges.GetFull(ctx, challengeID)
	if err != nil {
		return CodeOutcome{}, err
	}
	if ch.Type != challenge.TypeCoding {
		return CodeOutcome{}, pkgerrors.New(pkgerrors.ChallengeTypeMismatch).
			WithMessage("challenge does not accept code submissions")
	}
	effectiveLang := language
	if effectiveLang == "" {
		effectiveLang = ch.Coding.Language
	}
	if s.languages != nil && !s.languages.Supports(effectiveLang) {
		return CodeOutcome{}, pkgerrors.New(pkgerrors.LanguageNotSupported).
			WithDetail("language", effectiveLang)
	}

	if err := s.acquireSlot(ctx); err != nil {
		return CodeOutcome{}, err
	}
	defer s.releaseSlot()

	verdict, err := s.grader.GradeCode(ctx, ch, effectiveLang, code)
	if err != nil {
		metrics.ObserveSubmission(string(ch.Type), "error")
		return CodeOutcome{}, err
	}

	outcome := CodeOutcome{
		Success: verdict.Passed,
		Output:  verdict.Output,
		ErrMsg:  verdict.Error,
	}
	if verdict.Passed {
		award, err := s.award(ctx, userID, ch)
		if err != nil {
			return CodeOutcome{}, err
		}
		outcome.Award = award
	}
	metrics.ObserveSubmission(string(ch.Type), outcomeLabel(verdict.Passed, outcome.Award))

	s.recordAudit(ctx, &model.Submission{
		ID:          uuid.NewString(),
		UserID:      userID,
		ChallengeID: ch.ID,
		Type:        ch.Type,
		Language:    effectiveLang,
		CodeSize:    len(code),
		Passed:      verdict.Passed,
		Output:      verdict.Output,
		Error:       verdict.Error,
		XPEarned:    outcome.Award.XPEarned,
		CreatedAt:   time.Now().UTC(),
	}, code)

	return outcome, nil
}

// SubmitChoice grades a multiple choice answer. The stored correct
// answer is disclosed in the outcome regardless of the verdict.
func (s *SubmissionService) SubmitChoice(ctx context.Context, userID, challengeID, answer string) (ChoiceOutcome, error) {
	if answer == "" {
		return ChoiceOutcome{}, pkgerrors.New(pkgerrors.InvalidParams).WithMessage("answer is required")
	}

	ch, err := s.challenges.GetFull(ctx, challengeID)
	if err != nil {
		return ChoiceOutcome{}, err
	}
	if ch.Type != challenge.TypeMultipleChoice {
		return ChoiceOutcome{}, pkgerrors.New(pkgerrors.ChallengeTypeMismatch).
			WithMessage("challenge does not accept answer submissions")
	}

	verdict, err := s.grader.GradeChoice(ch, answer)
	if err != nil {
		return ChoiceOutcome{}, err
	}

	outcome := ChoiceOutcome{
		Success:       verdict.Passed,
		CorrectAnswer: ch.Choice.CorrectAnswer,
	}
	if verdict.Passed {
		award, err := s.award(ctx, userID, ch)
		if err != nil {
			return ChoiceOutcome{}, err
		}
		outcome.Award = award
	}
	metrics.ObserveSubmission(string(ch.Type), outcomeLabel(verdict.Passed, outcome.Award))

	s.recordAudit(ctx, &model.Submission{
		ID:          uuid.NewString(),
		UserID:      userID,
		ChallengeID: ch.ID,
		Type:        ch.Type,
		CodeSize:    len(answer),
		Passed:      verdict.Passed,
		XPEarned:    outcome.Award.XPEarned,
		CreatedAt:   time.Now().UTC(),
	}, "")

	return outcome, nil
}

// History lists the user's recent submissions.
func (s *SubmissionService) History(ctx context.Context, userID string, limit int) ([]*model.Submission, error) {
	subs, err := s.subs.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.DatabaseError)
	}
	return subs, nil
}

func (s *SubmissionService) award(ctx context.Context, userID string, ch *challenge.Challenge) (progression.Award, error) {
	award, err := s.ledger.RecordCompletion(ctx, userID, ch)
	if err != nil {
		return progression.Award{}, err
	}
	if !award.AlreadyCompleted && s.users != nil {
		if err := s.users.Invalidate(ctx, userID); err != nil {
			logger.Warn(ctx, "invalidate user cache failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return award, nil
}

func (s *SubmissionService) acquireSlot(ctx context.Context) error {
	select {
	case s.slots <- struct{}{}:
		return nil
	default:
	}
	select {
	case s.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.cfg.SlotWait):
		return pkgerrors.New(pkgerrors.WorkerPoolFull)
	}
}

func (s *SubmissionService) releaseSlot() {
	<-s.slots
}

// recordAudit persists the attempt and archives the source. Both are
// best-effort: the user already has their verdict.
func (s *SubmissionService) recordAudit(ctx context.Context, sub *model.Submission, code string) {
	if code != "" && s.store != nil && s.cfg.ArchiveBucket != "" {
		key := archiveKey(sub)
		err := s.store.PutObject(ctx, s.cfg.ArchiveBucket, key,
			strings.NewReader(code), int64(len(code)), "text/plain; charset=utf-8")
		if err != nil {
			logger.Warn(ctx, "archive submission failed",
				zap.String("submission_id", sub.ID), zap.Error(err))
		} else {
			sub.ArchiveKey = key
		}
	}
	if s.subs == nil {
		return
	}
	if err := s.subs.Create(ctx, sub); err != nil {
		logger.Error(ctx, "persist submission failed",
			zap.String("submission_id", sub.ID), zap.Error(err))
	}
}

func archiveKey(sub *model.Submission) string {
	ext := "txt"
	switch sub.Language {
	case "python":
		ext = "py"
	case "javascript":
		ext = "js"
	}
	return "submissions/" + sub.UserID + "/" + sub.ID + "." + ext
}

func outcomeLabel(passed bool, award progression.Award) string {
	switch {
	case !passed:
		return "failed"
	case award.AlreadyCompleted:
		return "duplicate"
	default:
		return "passed"
	}
}
