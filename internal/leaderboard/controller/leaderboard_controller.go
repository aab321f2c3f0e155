package controller

import (
	"github.com/gin-gonic/gin"

	"codequest/internal/common/http/middleware"
	"codequest/internal/leaderboard"
	pkgerrors "codequest/pkg/errors"
	"codequest/pkg/utils/response"
)

const topSize = 10

type LeaderboardController struct {
	index *leaderboard.Index
}

func NewLeaderboardController(index *leaderboard.Index) *LeaderboardController {
	return &LeaderboardController{index: index}
}

// Top handles GET /api/leaderboard with the top-10 ranking.
func (ctl *LeaderboardController) Top(c *gin.Context) {
	entries, err := ctl.index.TopN(c.Request.Context(), topSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	if entries == nil {
		entries = []leaderboard.Entry{}
	}
	c.JSON(200, entries)
}

// Rank handles GET /api/leaderboard/me with the caller's own rank.
func (ctl *LeaderboardController) Rank(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.ErrorWithCode(c, pkgerrors.Unauthorized, "")
		return
	}
	rank, entry, err := ctl.index.RankOf(c.Request.Context(), user.Username)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(200, gin.H{
		"rank":     rank,
		"username": entry.Username,
		"xp":       entry.XP,
		"level":    entry.Level,
	})
}
