package controller

import (
	"github.com/gin-gonic/gin"

	"codequest/internal/common/http/middleware"
	"codequest/internal/submission/service"
	pkgerrors "codequest/pkg/errors"
	"codequest/pkg/utils/response"
)

type SubmissionController struct {
	submissions *service.SubmissionService
}

func NewSubmissionController(submissions *service.SubmissionService) *SubmissionController {
	return &SubmissionController{submissions: submissions}
}

type codeSubmission struct {
	ChallengeID string `json:"challenge_id" binding:"required"`
	Code        string `json:"code" binding:"required"`
	Language    string `json:"language"`
}

type choiceSubmission struct {
	ChallengeID string `json:"challenge_id" binding:"required"`
	Answer      string `json:"answer" binding:"required"`
}

// SubmitCode handles POST /api/submit/code. The response mirrors the
// public contract clients already depend on, so it is emitted as-is
// rather than through the standard envelope.
func (ctl *SubmissionController) SubmitCode(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.ErrorWithCode(c, pkgerrors.Unauthorized, "")
		return
	}
	var req codeSubmission
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "challenge_id and code are required")
		return
	}

	outcome, err := ctl.submissions.SubmitCode(c.Request.Context(), user.ID, req.ChallengeID, req.Language, req.Code)
	if err != nil {
		response.Error(c, err)
		return
	}

	result := gin.H{
		"success": outcome.Success,
		"output":  outcome.Output,
		"error":   nullable(outcome.ErrMsg),
	}
	if outcome.Success && !outcome.Award.AlreadyCompleted {
		c.JSON(200, gin.H{
			"success":    true,
			"result":     result,
			"xp_earned":  outcome.Award.XPEarned,
			"new_xp":     outcome.Award.NewXP,
			"new_level":  outcome.Award.NewLevel,
			"new_badges": badgeList(outcome.Award.NewBadges),
		})
		return
	}
	c.JSON(200, gin.H{
		"success":   outcome.Success,
		"result":    result,
		"xp_earned": 0,
		"message":   alreadyCompletedMessage(outcome.Success && outcome.Award.AlreadyCompleted),
	})
}

// SubmitChoice handles POST /api/submit/multiple-choice.
func (ctl *SubmissionController) SubmitChoice(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.ErrorWithCode(c, pkgerrors.Unauthorized, "")
		return
	}
	var req choiceSubmission
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "challenge_id and answer are required")
		return
	}

	outcome, err := ctl.submissions.SubmitChoice(c.Request.Context(), user.ID, req.ChallengeID, req.Answer)
	if err != nil {
		response.Error(c, err)
		return
	}

	if outcome.Success && !outcome.Award.AlreadyCompleted {
		c.JSON(200, gin.H{
			"success":        true,
			"correct_answer": outcome.CorrectAnswer,
			"xp_earned":      outcome.Award.XPEarned,
			"new_xp":         outcome.Award.NewXP,
			"new_level":      outcome.Award.NewLevel,
			"new_badges":     badgeList(outcome.Award.NewBadges),
		})
		return
	}
	// The stored answer is only disclosed on a wrong guess; a repeat
	// correct answer does not need it.
	var correct interface{}
	if !outcome.Success {
		correct = outcome.CorrectAnswer
	}
	c.JSON(200, gin.H{
		"success":        outcome.Success,
		"correct_answer": correct,
		"xp_earned":      0,
		"message":        alreadyCompletedMessage(outcome.Success && outcome.Award.AlreadyCompleted),
	})
}

// History handles GET /api/submissions.
func (ctl *SubmissionController) History(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.ErrorWithCode(c, pkgerrors.Unauthorized, "")
		return
	}
	subs, err := ctl.submissions.History(c.Request.Context(), user.ID, 20)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(200, subs)
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func badgeList(badges []string) []string {
	if badges == nil {
		return []string{}
	}
	return badges
}

func alreadyCompletedMessage(already bool) interface{} {
	if already {
		return "Challenge already completed"
	}
	return nil
}
