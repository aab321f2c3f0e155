package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	challenge "codequest/internal/challenge/model"
	"codequest/internal/grader"
	"codequest/internal/progression"
	"codequest/internal/submission/model"
	"codequest/internal/submission/service"
	pkgerrors "codequest/pkg/errors"
)

type fakeChallenges struct {
	byID map[string]*challenge.Challenge
}

func (f *fakeChallenges) GetFull(_ context.Context, id string) (*challenge.Challenge, error) {
	if ch, ok := f.byID[id]; ok {
		return ch, nil
	}
	return nil, pkgerrors.New(pkgerrors.ChallengeNotFound)
}

type fakeGrader struct {
	codeResult   grader.Result
	choiceResult grader.Result
	err          error
	// block lets a test hold a worker slot occupied.
	block chan struct{}
}

func (f *fakeGrader) GradeCode(ctx context.Context, _ *challenge.Challenge, _, _ string) (grader.Result, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return grader.Result{}, ctx.Err()
		}
	}
	return f.codeResult, f.err
}

func (f *fakeGrader) GradeChoice(*challenge.Challenge, string) (grader.Result, error) {
	return f.choiceResult, f.err
}

type fakeLedger struct {
	award progression.Award
	err   error
	calls int
}

func (f *fakeLedger) RecordCompletion(context.Context, string, *challenge.Challenge) (progression.Award, error) {
	f.calls++
	return f.award, f.err
}

type fakeLanguages struct{ supported map[string]bool }

func (f *fakeLanguages) Supports(language string) bool { return f.supported[language] }

type fakeInvalidator struct {
	mu  sync.Mutex
	ids []string
}

func (f *fakeInvalidator) Invalidate(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, id)
	return nil
}

type fakeSubmissions struct {
	mu      sync.Mutex
	created []*model.Submission
	err     error
}

func (f *fakeSubmissions) Create(_ context.Context, sub *model.Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, sub)
	return nil
}

func (f *fakeSubmissions) GetByID(context.Context, string) (*model.Submission, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeSubmissions) ListByUser(context.Context, string, int) ([]*model.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created, nil
}

type deps struct {
	challenges  *fakeChallenges
	grader      *fakeGrader
	ledger      *fakeLedger
	languages   *fakeLanguages
	invalidator *fakeInvalidator
	subs        *fakeSubmissions
}

func newDeps() *deps {
	return &deps{
		challenges: &fakeChallenges{byID: map[string]*challenge.Challenge{
			"code-1": {
				ID: "code-1", Type: challenge.TypeCoding, XPReward: 25,
				Coding: &challenge.CodingSpec{Language: "python"},
			},
			"quiz-1": {
				ID: "quiz-1", Type: challenge.TypeMultipleChoice, XPReward: 10,
				Choice: &challenge.ChoiceSpec{Options: []string{"A", "B"}, CorrectAnswer: "B"},
			},
		}},
		grader:      &fakeGrader{},
		ledger:      &fakeLedger{},
		languages:   &fakeLanguages{supported: map[string]bool{"python": true, "javascript": true}},
		invalidator: &fakeInvalidator{},
		subs:        &fakeSubmissions{},
	}
}

func newService(d *deps, cfg service.Config) *service.SubmissionService {
	return service.NewSubmissionService(
		d.challenges, d.grader, d.ledger, d.languages, d.invalidator, d.subs, nil, cfg)
}

func TestSubmitCodeRejectsEmptyCode(t *testing.T) {
	svc := newService(newDeps(), service.Config{})
	_, err := svc.SubmitCode(context.Background(), "u1", "code-1", "python", "   \n")
	if pkgerrors.GetCode(err) != pkgerrors.InvalidParams {
		t.Fatalf("expected invalid params, got %v", err)
	}
}

func TestSubmitCodeRejectsOversizedCode(t *testing.T) {
	d := newDeps()
	svc := newService(d, service.Config{MaxCodeBytes: 10})
	_, err := svc.SubmitCode(context.Background(), "u1", "code-1", "python", strings.Repeat("x", 11))
	if pkgerrors.GetCode(err) != pkgerrors.CodeTooLarge {
		t.Fatalf("expected code too large, got %v", err)
	}
	if d.ledger.calls != 0 {
		t.Fatal("rejection must happen before grading or awarding")
	}
}

func TestSubmitCodeRejectsTypeMismatch(t *testing.T) {
	svc := newService(newDeps(), service.Config{})
	_, err := svc.SubmitCode(context.Background(), "u1", "quiz-1", "python", "print()")
	if pkgerrors.GetCode(err) != pkgerrors.ChallengeTypeMismatch {
		t.Fatalf("expected type mismatch, got %v", err)
	}
}

func TestSubmitCodeRejectsUnknownLanguage(t *testing.T) {
	svc := newService(newDeps(), service.Config{})
	_, err := svc.SubmitCode(context.Background(), "u1", "code-1", "cobol", "DISPLAY.")
	if pkgerrors.GetCode(err) != pkgerrors.LanguageNotSupported {
		t.Fatalf("expected language not supported, got %v", err)
	}
}

func TestSubmitCodeDefaultsToChallengeLanguage(t *testing.T) {
	d := newDeps()
	d.grader.codeResult = grader.Result{Passed: true}
	d.ledger.award = progression.Award{XPEarned: 25, NewXP: 25, NewLevel: 1}
	svc := newService(d, service.Config{})

	outcome, err := svc.SubmitCode(context.Background(), "u1", "code-1", "", "print('hi')")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcome.Success {
		t.Fatal("expected pass")
	}
}

func TestSubmitCodePassAwardsAndInvalidates(t *testing.T) {
	d := newDeps()
	d.grader.codeResult = grader.Result{Passed: true, Output: "hi\n"}
	d.ledger.award = progression.Award{XPEarned: 25, NewXP: 125, NewLevel: 2, NewBadges: []string{"First Steps"}}
	svc := newService(d, service.Config{})

	outcome, err := svc.SubmitCode(context.Background(), "u1", "code-1", "python", "print('hi')")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcome.Success || outcome.Award.XPEarned != 25 {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if d.ledger.calls != 1 {
		t.Fatalf("expected one award, got %d", d.ledger.calls)
	}
	if len(d.invalidator.ids) != 1 || d.invalidator.ids[0] != "u1" {
		t.Fatalf("user cache must be invalidated after an award, got %v", d.invalidator.ids)
	}
	if len(d.subs.created) != 1 {
		t.Fatalf("expected one audit row, got %d", len(d.subs.created))
	}
	audit := d.subs.created[0]
	if !audit.Passed || audit.XPEarned != 25 || audit.Language != "python" {
		t.Fatalf("audit row mismatch: %+v", audit)
	}
}

func TestSubmitCodeFailureDoesNotAward(t *testing.T) {
	d := newDeps()
	d.grader.codeResult = grader.Result{Passed: false, Error: "test 1 failed"}
	svc := newService(d, service.Config{})

	outcome, err := svc.SubmitCode(context.Background(), "u1", "code-1", "python", "print('no')")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Success {
		t.Fatal("expected failure")
	}
	if d.ledger.calls != 0 {
		t.Fatal("failed submissions must not touch the ledger")
	}
	if len(d.invalidator.ids) != 0 {
		t.Fatal("failed submissions must not invalidate the cache")
	}
	if len(d.subs.created) != 1 {
		t.Fatal("failed attempts still get an audit row")
	}
}

func TestSubmitCodeDuplicateCompletion(t *testing.T) {
	d := newDeps()
	d.grader.codeResult = grader.Result{Passed: true}
	d.ledger.award = progression.Award{AlreadyCompleted: true, NewXP: 125, NewLevel: 2}
	svc := newService(d, service.Config{})

	outcome, err := svc.SubmitCode(context.Background(), "u1", "code-1", "python", "print('hi')")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcome.Success {
		t.Fatal("duplicate of a passing solution is still a pass")
	}
	if !outcome.Award.AlreadyCompleted || outcome.Award.XPEarned != 0 {
		t.Fatalf("unexpected award %+v", outcome.Award)
	}
	if len(d.invalidator.ids) != 0 {
		t.Fatal("duplicates must not invalidate the cache")
	}
}

func TestSubmitCodeWorkerPoolFull(t *testing.T) {
	d := newDeps()
	d.grader.block = make(chan struct{})
	d.grader.codeResult = grader.Result{Passed: false}
	svc := newService(d, service.Config{Workers: 1, SlotWait: 20 * time.Millisecond})

	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		close(started)
		_, err := svc.SubmitCode(context.Background(), "u1", "code-1", "python", "print(1)")
		done <- err
	}()
	<-started
	// Give the first submission time to claim the only slot.
	time.Sleep(50 * time.Millisecond)

	_, err := svc.SubmitCode(context.Background(), "u2", "code-1", "python", "print(2)")
	if pkgerrors.GetCode(err) != pkgerrors.WorkerPoolFull {
		t.Fatalf("expected worker pool full, got %v", err)
	}

	close(d.grader.block)
	if err := <-done; err != nil {
		t.Fatalf("first submission failed: %v", err)
	}
}

func TestSubmitChoice(t *testing.T) {
	d := newDeps()
	d.grader.choiceResult = grader.Result{Passed: true}
	d.ledger.award = progression.Award{XPEarned: 10, NewXP: 10, NewLevel: 1}
	svc := newService(d, service.Config{})

	outcome, err := svc.SubmitChoice(context.Background(), "u1", "quiz-1", "B")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcome.Success || outcome.CorrectAnswer != "B" {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if outcome.Award.XPEarned != 10 {
		t.Fatalf("unexpected award %+v", outcome.Award)
	}
}

func TestSubmitChoiceWrongAnswerDisclosesCorrect(t *testing.T) {
	d := newDeps()
	d.grader.choiceResult = grader.Result{Passed: false}
	svc := newService(d, service.Config{})

	outcome, err := svc.SubmitChoice(context.Background(), "u1", "quiz-1", "A")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Success {
		t.Fatal("expected failure")
	}
	if outcome.CorrectAnswer != "B" {
		t.Fatalf("correct answer must be disclosed, got %q", outcome.CorrectAnswer)
	}
	if d.ledger.calls != 0 {
		t.Fatal("wrong answers must not award")
	}
}

func TestSubmitChoiceValidation(t *testing.T) {
	svc := newService(newDeps(), service.Config{})

	if _, err := svc.SubmitChoice(context.Background(), "u1", "quiz-1", ""); pkgerrors.GetCode(err) != pkgerrors.InvalidParams {
		t.Fatalf("expected invalid params for empty answer, got %v", err)
	}
	if _, err := svc.SubmitChoice(context.Background(), "u1", "code-1", "A"); pkgerrors.GetCode(err) != pkgerrors.ChallengeTypeMismatch {
		t.Fatalf("expected type mismatch for coding challenge, got %v", err)
	}
}

func TestAuditFailureDoesNotFailSubmission(t *testing.T) {
	d := newDeps()
	d.grader.codeResult = grader.Result{Passed: true}
	d.subs.err = errors.New("db down")
	svc := newService(d, service.Config{})

	outcome, err := svc.SubmitCode(context.Background(), "u1", "code-1", "python", "print('hi')")
	if err != nil {
		t.Fatalf("audit persistence is best-effort, got %v", err)
	}
	if !outcome.Success {
		t.Fatal("expected pass despite audit failure")
	}
}

func TestHistory(t *testing.T) {
	d := newDeps()
	d.grader.codeResult = grader.Result{Passed: true}
	svc := newService(d, service.Config{})

	if _, err := svc.SubmitCode(context.Background(), "u1", "code-1", "python", "print('hi')"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	subs, err := svc.History(context.Background(), "u1", 20)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(subs) != 1 {
		t.Fatalf("expected one submission, got %d", len(subs))
	}
}
