package progression_test

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"

	"codequest/internal/challenge/model"
	"codequest/internal/common/db"
	"codequest/internal/common/mq"
	"codequest/internal/progression"
	pkgerrors "codequest/pkg/errors"
)

type fakeRow struct {
	scan func(dest ...interface{}) error
}

func (r fakeRow) Scan(dest ...interface{}) error { return r.scan(dest...) }

type fakeRows struct {
	values []string
	pos    int
}

func (r *fakeRows) Next() bool { return r.pos < len(r.values) }
func (r *fakeRows) Scan(dest ...interface{}) error {
	*(dest[0].(*string)) = r.values[r.pos]
	r.pos++
	return nil
}
func (r *fakeRows) Close() error { return nil }
func (r *fakeRows) Err() error   { return nil }

// userState is the mutable row backing the fake transaction.
type userState struct {
	username  string
	xp        int64
	level     int
	createdAt time.Time

	completed map[string]bool
	badges    map[string]bool
}

type fakeTx struct {
	state *userState
}

func (t *fakeTx) QueryRow(_ context.Context, query string, _ ...interface{}) db.Row {
	switch {
	case strings.Contains(query, "FOR UPDATE"):
		return fakeRow{scan: func(dest ...interface{}) error {
			*(dest[0].(*string)) = t.state.username
			*(dest[1].(*int64)) = t.state.xp
			*(dest[2].(*int)) = t.state.level
			*(dest[3].(*time.Time)) = t.state.createdAt
			return nil
		}}
	case strings.Contains(query, "COUNT(*)"):
		return fakeRow{scan: func(dest ...interface{}) error {
			*(dest[0].(*int)) = len(t.state.completed)
			return nil
		}}
	}
	return fakeRow{scan: func(...interface{}) error { return nil }}
}

func (t *fakeTx) Query(_ context.Context, query string, _ ...interface{}) (db.Rows, error) {
	if strings.Contains(query, "SELECT badge") {
		var badges []string
		for b := range t.state.badges {
			badges = append(badges, b)
		}
		return &fakeRows{values: badges}, nil
	}
	return &fakeRows{}, nil
}

func (t *fakeTx) Exec(_ context.Context, query string, args ...interface{}) (db.Result, error) {
	switch {
	case strings.Contains(query, "INSERT INTO completed_challenges"):
		challengeID := args[1].(string)
		if t.state.completed[challengeID] {
			return nil, &mysql.MySQLError{Number: 1062, Message: "Duplicate entry for key 'PRIMARY'"}
		}
		t.state.completed[challengeID] = true
	case strings.Contains(query, "INSERT INTO user_badges"):
		t.state.badges[args[1].(string)] = true
	case strings.Contains(query, "UPDATE users"):
		t.state.xp = args[0].(int64)
		t.state.level = args[1].(int)
	}
	return fakeResult{}, nil
}

func (t *fakeTx) Commit() error   { return nil }
func (t *fakeTx) Rollback() error { return nil }

type fakeResult struct{}

func (fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (fakeResult) RowsAffected() (int64, error) { return 1, nil }

type fakeDB struct {
	// mu serializes transactions the way the FOR UPDATE row lock does.
	mu        sync.Mutex
	state     *userState
	deadlocks int
}

func (d *fakeDB) Transaction(_ context.Context, fn func(tx db.Transaction) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.deadlocks > 0 {
		d.deadlocks--
		return &mysql.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock"}
	}
	return fn(&fakeTx{state: d.state})
}

func (d *fakeDB) Query(context.Context, string, ...interface{}) (db.Rows, error) {
	return &fakeRows{}, nil
}
func (d *fakeDB) QueryRow(context.Context, string, ...interface{}) db.Row {
	return fakeRow{scan: func(...interface{}) error { return nil }}
}
func (d *fakeDB) Exec(context.Context, string, ...interface{}) (db.Result, error) {
	return fakeResult{}, nil
}
func (d *fakeDB) BeginTx(context.Context, *db.TxOptions) (db.Transaction, error) {
	return &fakeTx{state: d.state}, nil
}
func (d *fakeDB) Ping(context.Context) error { return nil }
func (d *fakeDB) Close() error               { return nil }
func (d *fakeDB) Stats() db.Stats            { return db.Stats{} }

type fakeProducer struct {
	mu       sync.Mutex
	messages []*mq.Message
	topics   []string
}

func (p *fakeProducer) Publish(_ context.Context, topic string, msg *mq.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.messages = append(p.messages, msg)
	return nil
}

func (p *fakeProducer) PublishBatch(ctx context.Context, topic string, msgs []*mq.Message) error {
	for _, msg := range msgs {
		if err := p.Publish(ctx, topic, msg); err != nil {
			return err
		}
	}
	return nil
}

func newState() *userState {
	return &userState{
		username:  "alice",
		xp:        90,
		level:     1,
		createdAt: time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
		completed: map[string]bool{},
		badges:    map[string]bool{},
	}
}

func easyChallenge(id string, xp int) *model.Challenge {
	return &model.Challenge{ID: id, Type: model.TypeCoding, Difficulty: model.DifficultyEasy, XPReward: xp,
		Coding: &model.CodingSpec{Language: "python"}}
}

func TestRecordCompletionAwardsXPAndLevelsUp(t *testing.T) {
	state := newState()
	producer := &fakeProducer{}
	ledger := progression.NewLedger(&fakeDB{state: state}, producer, progression.DefaultConfig())

	award, err := ledger.RecordCompletion(context.Background(), "u1", easyChallenge("ch-1", 25))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if award.AlreadyCompleted {
		t.Fatal("first completion must not be a duplicate")
	}
	if award.XPEarned != 25 || award.NewXP != 115 {
		t.Fatalf("expected 25 xp to total 115, got %+v", award)
	}
	if award.NewLevel != 2 {
		t.Fatalf("crossing 100 xp must level up, got level %d", award.NewLevel)
	}
	if len(award.NewBadges) != 1 || award.NewBadges[0] != "First Steps" {
		t.Fatalf("expected First Steps badge, got %v", award.NewBadges)
	}
	if state.xp != 115 || state.level != 2 {
		t.Fatalf("user row not updated: xp=%d level=%d", state.xp, state.level)
	}
}

func TestRecordCompletionIsIdempotent(t *testing.T) {
	state := newState()
	producer := &fakeProducer{}
	ledger := progression.NewLedger(&fakeDB{state: state}, producer, progression.DefaultConfig())

	ch := easyChallenge("ch-1", 25)
	if _, err := ledger.RecordCompletion(context.Background(), "u1", ch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	xpAfterFirst := state.xp

	award, err := ledger.RecordCompletion(context.Background(), "u1", ch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !award.AlreadyCompleted {
		t.Fatal("second completion must report AlreadyCompleted")
	}
	if award.XPEarned != 0 {
		t.Fatalf("duplicate must award no xp, got %d", award.XPEarned)
	}
	if award.NewXP != xpAfterFirst {
		t.Fatalf("duplicate must report current totals, got %d", award.NewXP)
	}
	if state.xp != xpAfterFirst {
		t.Fatalf("duplicate must not change the row, xp=%d", state.xp)
	}
	if len(producer.messages) != 1 {
		t.Fatalf("duplicate must not publish an event, got %d messages", len(producer.messages))
	}
}

func TestRecordCompletionHardModeBadge(t *testing.T) {
	state := newState()
	ledger := progression.NewLedger(&fakeDB{state: state}, nil, progression.DefaultConfig())

	ch := easyChallenge("ch-hard", 50)
	ch.Difficulty = model.DifficultyHard
	award, err := ledger.RecordCompletion(context.Background(), "u1", ch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var hasHardMode bool
	for _, b := range award.NewBadges {
		if b == progression.HardModeBadge {
			hasHardMode = true
		}
	}
	if !hasHardMode {
		t.Fatalf("expected Hard Mode badge, got %v", award.NewBadges)
	}
}

func TestRecordCompletionPublishesEvent(t *testing.T) {
	state := newState()
	producer := &fakeProducer{}
	ledger := progression.NewLedger(&fakeDB{state: state}, producer, progression.DefaultConfig())

	if _, err := ledger.RecordCompletion(context.Background(), "u1", easyChallenge("ch-1", 25)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(producer.messages) != 1 {
		t.Fatalf("expected one event, got %d", len(producer.messages))
	}
	if producer.topics[0] != progression.TopicXPCommitted {
		t.Fatalf("unexpected topic %q", producer.topics[0])
	}

	var event progression.XPCommittedEvent
	if err := json.Unmarshal(producer.messages[0].Body, &event); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if event.Username != "alice" || event.XP != 115 || event.Level != 2 {
		t.Fatalf("event carries wrong totals: %+v", event)
	}
	if event.ChallengeID != "ch-1" || event.XPEarned != 25 {
		t.Fatalf("event carries wrong award: %+v", event)
	}
}

func TestRecordCompletionConcurrentDistinctChallenges(t *testing.T) {
	state := newState()
	producer := &fakeProducer{}
	ledger := progression.NewLedger(&fakeDB{state: state}, producer, progression.DefaultConfig())

	const n = 8
	const reward = 10
	earned := make([]int, n)
	duplicates := make([]bool, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			award, err := ledger.RecordCompletion(context.Background(), "u1",
				easyChallenge(fmt.Sprintf("ch-%d", i), reward))
			earned[i] = award.XPEarned
			duplicates[i] = award.AlreadyCompleted
			errs[i] = err
		}(i)
	}
	wg.Wait()

	total := 0
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("completion %d failed: %v", i, errs[i])
		}
		if duplicates[i] {
			t.Fatalf("completion %d of a distinct challenge reported as duplicate", i)
		}
		total += earned[i]
	}
	if total != n*reward {
		t.Fatalf("rewards lost: earned %d, want %d", total, n*reward)
	}
	if state.xp != 90+n*reward {
		t.Fatalf("final xp %d, want %d", state.xp, 90+n*reward)
	}
	if len(state.completed) != n {
		t.Fatalf("expected %d completions recorded, got %d", n, len(state.completed))
	}
	if len(producer.messages) != n {
		t.Fatalf("expected %d events, got %d", n, len(producer.messages))
	}
}

func TestRecordCompletionRetriesDeadlocks(t *testing.T) {
	state := newState()
	ledger := progression.NewLedger(&fakeDB{state: state, deadlocks: 2}, nil, progression.DefaultConfig())

	award, err := ledger.RecordCompletion(context.Background(), "u1", easyChallenge("ch-1", 10))
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if award.XPEarned != 10 {
		t.Fatalf("unexpected award %+v", award)
	}
}

func TestRecordCompletionDeadlockExhaustion(t *testing.T) {
	state := newState()
	cfg := progression.DefaultConfig()
	cfg.TxRetries = 1
	ledger := progression.NewLedger(&fakeDB{state: state, deadlocks: 10}, nil, cfg)

	_, err := ledger.RecordCompletion(context.Background(), "u1", easyChallenge("ch-1", 10))
	if err == nil {
		t.Fatal("expected error after retry exhaustion")
	}
	if pkgerrors.GetCode(err) != pkgerrors.LedgerConflict {
		t.Fatalf("expected ledger conflict code, got %v", err)
	}
}
