// Package progression owns the XP ledger: the single write path for
// XP totals, levels, badges and the completed-challenge set. Awards
// are transactional and idempotent per (user, challenge).
package progression

import (
	"context"
	"time"

	"go.uber.org/zap"

	"codequest/internal/challenge/model"
	"codequest/internal/common/db"
	"codequest/internal/common/mq"
	"codequest/internal/metrics"
	appErr "codequest/pkg/errors"
	"codequest/pkg/utils/logger"
)

const defaultLevelStep = 100

// Config tunes award computation.
type Config struct {
	// LevelStep is the XP per level. Level = xp/step + 1.
	LevelStep int64 `yaml:"levelStep"`
	// BadgeRules is the count-based badge ladder. Thresholds must not
	// decrease between deploys or already-awarded badges go stale.
	BadgeRules []BadgeRule `yaml:"badgeRules"`
	// TxRetries is how many times a deadlocked award transaction is
	// retried.
	TxRetries int `yaml:"txRetries"`
}

func DefaultConfig() Config {
	return Config{
		LevelStep:  defaultLevelStep,
		BadgeRules: DefaultBadgeRules(),
		TxRetries:  3,
	}
}

// Award is the outcome of recording one passed submission.
type Award struct {
	AlreadyCompleted bool
	XPEarned         int
	NewXP            int64
	NewLevel         int
	NewBadges        []string
}

// Ledger applies awards to user state.
type Ledger struct {
	db       db.Database
	producer mq.Producer
	cfg      Config
}

func NewLedger(database db.Database, producer mq.Producer, cfg Config) *Ledger {
	if cfg.LevelStep <= 0 {
		cfg.LevelStep = defaultLevelStep
	}
	if len(cfg.BadgeRules) == 0 {
		cfg.BadgeRules = DefaultBadgeRules()
	}
	if cfg.TxRetries <= 0 {
		cfg.TxRetries = 3
	}
	return &Ledger{db: database, producer: producer, cfg: cfg}
}

// RecordCompletion awards the challenge's XP to the user exactly once.
// A repeat completion commits nothing and reports AlreadyCompleted.
// The row lock on the user serializes concurrent awards; deadlocks are
// retried with backoff.
func (l *Ledger) RecordCompletion(ctx context.Context, userID string, ch *model.Challenge) (Award, error) {
	var award Award
	var event XPCommittedEvent

	var lastErr error
	for attempt := 0; attempt <= l.cfg.TxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Award{}, ctx.Err()
			case <-time.After(time.Duration(attempt) * 20 * time.Millisecond):
			}
			logger.Warn(ctx, "retrying award transaction",
				zap.String("user_id", userID), zap.Int("attempt", attempt))
		}

		award = Award{}
		err := l.db.Transaction(ctx, func(tx db.Transaction) error {
			return l.applyAward(ctx, tx, userID, ch, &award, &event)
		})
		if err == nil {
			lastErr = nil
			break
		}
		lastErr = err
		if !db.IsDeadlock(err) {
			return Award{}, err
		}
	}
	if lastErr != nil {
		return Award{}, appErr.Wrapf(lastErr, appErr.LedgerConflict, "award transaction kept deadlocking")
	}

	if !award.AlreadyCompleted {
		metrics.ObserveXPAwarded(award.XPEarned)
		publishXPCommitted(ctx, l.producer, event)
	}
	return award, nil
}

func (l *Ledger) applyAward(ctx context.Context, tx db.Transaction, userID string, ch *model.Challenge, award *Award, event *XPCommittedEvent) error {
	row := tx.QueryRow(ctx,
		"SELECT username, xp, level, created_at FROM users WHERE id = ? FOR UPDATE", userID)
	var username string
	var xp int64
	var level int
	var createdAt time.Time
	if err := row.Scan(&username, &xp, &level, &createdAt); err != nil {
		if db.IsNoRows(err) {
			return appErr.New(appErr.UserNotFound)
		}
		return appErr.Wrap(err, appErr.DatabaseError)
	}

	// The composite primary key is the idempotency guard: a second
	// completion of the same challenge hits the duplicate key.
	_, err := tx.Exec(ctx,
		"INSERT INTO completed_challenges (user_id, challenge_id, completed_at) VALUES (?, ?, ?)",
		userID, ch.ID, time.Now().UTC())
	if err != nil {
		if _, dup := db.UniqueViolation(err); dup {
			*award = Award{
				AlreadyCompleted: true,
				NewXP:            xp,
				NewLevel:         level,
			}
			return nil
		}
		return appErr.Wrap(err, appErr.DatabaseError)
	}

	var completedCount int
	row = tx.QueryRow(ctx,
		"SELECT COUNT(*) FROM completed_challenges WHERE user_id = ?", userID)
	if err := row.Scan(&completedCount); err != nil {
		return appErr.Wrap(err, appErr.DatabaseError)
	}

	held, err := l.heldBadges(ctx, tx, userID)
	if err != nil {
		return err
	}
	newBadges := earnedBadges(l.cfg.BadgeRules, completedCount, ch.Difficulty, held)
	now := time.Now().UTC()
	for _, badge := range newBadges {
		if _, err := tx.Exec(ctx,
			"INSERT INTO user_badges (user_id, badge, awarded_at) VALUES (?, ?, ?)",
			userID, badge, now); err != nil {
			if _, dup := db.UniqueViolation(err); dup {
				continue
			}
			return appErr.Wrap(err, appErr.DatabaseError)
		}
	}

	newXP := xp + int64(ch.XPReward)
	newLevel := levelFor(newXP, l.cfg.LevelStep)
	if _, err := tx.Exec(ctx,
		"UPDATE users SET xp = ?, level = ? WHERE id = ?", newXP, newLevel, userID); err != nil {
		return appErr.Wrap(err, appErr.DatabaseError)
	}

	*award = Award{
		XPEarned:  ch.XPReward,
		NewXP:     newXP,
		NewLevel:  newLevel,
		NewBadges: newBadges,
	}
	*event = XPCommittedEvent{
		UserID:        userID,
		Username:      username,
		XP:            newXP,
		Level:         newLevel,
		ChallengeID:   ch.ID,
		XPEarned:      ch.XPReward,
		NewBadges:     newBadges,
		UserCreatedAt: createdAt,
		CommittedAt:   now,
	}
	return nil
}

func (l *Ledger) heldBadges(ctx context.Context, tx db.Transaction, userID string) (map[string]bool, error) {
	rows, err := tx.Query(ctx, "SELECT badge FROM user_badges WHERE user_id = ?", userID)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.DatabaseError)
	}
	defer rows.Close()

	held := make(map[string]bool)
	for rows.Next() {
		var badge string
		if err := rows.Scan(&badge); err != nil {
			return nil, appErr.Wrap(err, appErr.DatabaseError)
		}
		held[badge] = true
	}
	return held, rows.Err()
}
