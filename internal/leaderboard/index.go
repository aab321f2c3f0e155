// Package leaderboard maintains the XP ranking in a Redis sorted set.
// The database is the source of truth; the index is a projection fed
// by award events and repaired by periodic rebuilds.
package leaderboard

import (
	"context"
	"math"
	"time"

	"codequest/internal/common/cache"
	appErr "codequest/pkg/errors"
)

const (
	defaultKey = "leaderboard:xp"

	// scoreBase packs xp and a tie-break into one float. XP occupies
	// the high part; the low part prefers the older account. Unix
	// timestamps stay below scoreBase until the year 2286.
	scoreBase = 1e10
)

// Entry is one leaderboard row.
type Entry struct {
	Username string `json:"username"`
	XP       int64  `json:"xp"`
	Level    int    `json:"level"`
}

// Index wraps the sorted set.
type Index struct {
	cache     cache.Cache
	key       string
	levelStep int64
}

func NewIndex(cacheClient cache.Cache, levelStep int64) *Index {
	if levelStep <= 0 {
		levelStep = 100
	}
	return &Index{cache: cacheClient, key: defaultKey, levelStep: levelStep}
}

// Score packs total XP and account age into a sortable composite.
// Higher XP always wins; equal XP ranks the older account first.
func Score(xp int64, createdAt time.Time) float64 {
	tiebreak := scoreBase - float64(createdAt.Unix())
	if tiebreak < 0 {
		tiebreak = 0
	}
	return float64(xp)*scoreBase + tiebreak
}

func xpFromScore(score float64) int64 {
	return int64(math.Floor(score / scoreBase))
}

// Apply records a new XP total for the user. Events can arrive out of
// order, so a score lower than the current one is ignored.
func (i *Index) Apply(ctx context.Context, username string, xp int64, createdAt time.Time) error {
	newScore := Score(xp, createdAt)
	current, err := i.cache.ZScore(ctx, i.key, username)
	if err != nil {
		return appErr.Wrap(err, appErr.CacheError)
	}
	if current >= newScore {
		return nil
	}
	if err := i.cache.ZAdd(ctx, i.key, cache.ZMember{Score: newScore, Member: username}); err != nil {
		return appErr.Wrap(err, appErr.CacheError)
	}
	return nil
}

// Set overwrites the user's score from database truth, used by the
// rebuild path.
func (i *Index) Set(ctx context.Context, username string, xp int64, createdAt time.Time) error {
	err := i.cache.ZAdd(ctx, i.key, cache.ZMember{Score: Score(xp, createdAt), Member: username})
	if err != nil {
		return appErr.Wrap(err, appErr.CacheError)
	}
	return nil
}

// TopN returns the first n entries in rank order.
func (i *Index) TopN(ctx context.Context, n int64) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}
	members, err := i.cache.ZRevRangeWithScores(ctx, i.key, 0, n-1)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CacheError)
	}
	entries := make([]Entry, 0, len(members))
	for _, m := range members {
		xp := xpFromScore(m.Score)
		entries = append(entries, Entry{
			Username: m.Member,
			XP:       xp,
			Level:    int(xp/i.levelStep) + 1,
		})
	}
	return entries, nil
}

// RankOf returns the user's 1-based rank and entry.
func (i *Index) RankOf(ctx context.Context, username string) (int64, Entry, error) {
	rank, err := i.cache.ZRevRank(ctx, i.key, username)
	if err != nil {
		return 0, Entry{}, appErr.Wrap(err, appErr.CacheError)
	}
	if rank < 0 {
		return 0, Entry{}, appErr.New(appErr.UserNotRanked)
	}
	score, err := i.cache.ZScore(ctx, i.key, username)
	if err != nil {
		return 0, Entry{}, appErr.Wrap(err, appErr.CacheError)
	}
	xp := xpFromScore(score)
	return rank + 1, Entry{
		Username: username,
		XP:       xp,
		Level:    int(xp/i.levelStep) + 1,
	}, nil
}

// Size returns the number of ranked users.
func (i *Index) Size(ctx context.Context) (int64, error) {
	n, err := i.cache.ZCard(ctx, i.key)
	if err != nil {
		return 0, appErr.Wrap(err, appErr.CacheError)
	}
	return n, nil
}
