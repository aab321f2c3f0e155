package progression

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"codequest/internal/common/mq"
	"codequest/pkg/utils/logger"
)

// TopicXPCommitted carries one event per durably committed award.
const TopicXPCommitted = "xp.committed"

// XPCommittedEvent is published after an award transaction commits.
// Consumers may apply it out of order; XP and Level are absolute
// totals, not deltas.
type XPCommittedEvent struct {
	UserID        string    `json:"user_id"`
	Username      string    `json:"username"`
	XP            int64     `json:"xp"`
	Level         int       `json:"level"`
	ChallengeID   string    `json:"challenge_id"`
	XPEarned      int       `json:"xp_earned"`
	NewBadges     []string  `json:"new_badges,omitempty"`
	UserCreatedAt time.Time `json:"user_created_at"`
	CommittedAt   time.Time `json:"committed_at"`
}

// publishXPCommitted emits the event best-effort. The ledger row is
// already committed, so a publish failure is logged, not returned; the
// periodic leaderboard rebuild repairs any gap.
func publishXPCommitted(ctx context.Context, producer mq.Producer, event XPCommittedEvent) {
	if producer == nil {
		return
	}
	body, err := json.Marshal(event)
	if err != nil {
		logger.Error(ctx, "marshal xp event failed", zap.Error(err))
		return
	}
	if err := producer.Publish(ctx, TopicXPCommitted, mq.NewMessage(body)); err != nil {
		logger.Warn(ctx, "publish xp event failed",
			zap.String("user_id", event.UserID), zap.Error(err))
	}
}
