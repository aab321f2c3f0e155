package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"codequest/internal/challenge/service"
	"codequest/pkg/utils/response"
)

// ChallengeController handles challenge HTTP endpoints.
type ChallengeController struct {
	challengeService *service.ChallengeService
}

// NewChallengeController creates a new ChallengeController.
func NewChallengeController(challengeService *service.ChallengeService) *ChallengeController {
	return &ChallengeController{challengeService: challengeService}
}

// List handles GET /api/challenges.
func (h *ChallengeController) List(c *gin.Context) {
	summaries, err := h.challengeService.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, summaries)
}

// Get handles GET /api/challenges/:id.
func (h *ChallengeController) Get(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, "Invalid challenge id")
		return
	}
	detail, err := h.challengeService.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}
