package leaderboard

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"codequest/internal/common/mq"
	"codequest/internal/progression"
	"codequest/pkg/utils/logger"
)

// Consumer feeds committed awards into the index.
type Consumer struct {
	queue mq.MessageQueue
	index *Index
}

func NewConsumer(queue mq.MessageQueue, index *Index) *Consumer {
	return &Consumer{queue: queue, index: index}
}

// Subscribe registers the handler on the award topic. Call before the
// queue is started.
func (c *Consumer) Subscribe(ctx context.Context) error {
	return c.queue.SubscribeWithOptions(ctx, progression.TopicXPCommitted, c.handle, &mq.SubscribeOptions{
		ConsumerGroup: "codequest-leaderboard",
		Concurrency:   1,
	})
}

func (c *Consumer) handle(ctx context.Context, message *mq.Message) error {
	var event progression.XPCommittedEvent
	if err := json.Unmarshal(message.Body, &event); err != nil {
		// A malformed event will never parse; drop it instead of
		// cycling through retries.
		logger.Error(ctx, "drop malformed xp event",
			zap.String("message_id", message.ID), zap.Error(err))
		return nil
	}
	if event.Username == "" {
		logger.Warn(ctx, "drop xp event without username", zap.String("message_id", message.ID))
		return nil
	}
	if err := c.index.Apply(ctx, event.Username, event.XP, event.UserCreatedAt); err != nil {
		logger.Error(ctx, "apply xp event failed",
			zap.String("username", event.Username), zap.Error(err))
		return err
	}
	return nil
}
