package leaderboard

import (
	"context"
	"time"

	"go.uber.org/zap"

	"codequest/internal/common/db"
	"codequest/internal/metrics"
	appErr "codequest/pkg/errors"
	"codequest/pkg/utils/logger"
)

// Rebuilder periodically overwrites the index from database truth,
// repairing any drift from lost events.
type Rebuilder struct {
	db       db.Database
	index    *Index
	interval time.Duration
}

func NewRebuilder(database db.Database, index *Index, interval time.Duration) *Rebuilder {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Rebuilder{db: database, index: index, interval: interval}
}

// Run rebuilds once immediately and then on every tick until the
// context is cancelled.
func (r *Rebuilder) Run(ctx context.Context) {
	if err := r.Rebuild(ctx); err != nil {
		logger.Error(ctx, "leaderboard rebuild failed", zap.Error(err))
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Rebuild(ctx); err != nil {
				logger.Error(ctx, "leaderboard rebuild failed", zap.Error(err))
			}
		}
	}
}

// Rebuild scans all users and overwrites their scores.
func (r *Rebuilder) Rebuild(ctx context.Context) error {
	rows, err := r.db.Query(ctx, "SELECT username, xp, created_at FROM users")
	if err != nil {
		return appErr.Wrap(err, appErr.DatabaseError)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var username string
		var xp int64
		var createdAt time.Time
		if err := rows.Scan(&username, &xp, &createdAt); err != nil {
			return appErr.Wrap(err, appErr.DatabaseError)
		}
		if err := r.index.Set(ctx, username, xp, createdAt); err != nil {
			return err
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return appErr.Wrap(err, appErr.DatabaseError)
	}

	metrics.ObserveLeaderboardRebuild()
	logger.Info(ctx, "leaderboard rebuilt", zap.Int("users", count))
	return nil
}
