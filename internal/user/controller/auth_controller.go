package controller

import (
	"github.com/gin-gonic/gin"

	"codequest/internal/common/http/middleware"
	"codequest/internal/user/model"
	"codequest/internal/user/service"
	pkgerrors "codequest/pkg/errors"
	"codequest/pkg/utils/response"
)

type AuthController struct {
	auth *service.AuthService
}

func NewAuthController(auth *service.AuthService) *AuthController {
	return &AuthController{auth: auth}
}

type credentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Register handles POST /api/auth/register.
func (ctl *AuthController) Register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "username and password are required")
		return
	}
	result, err := ctl.auth.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(200, authPayload(result))
}

// Login handles POST /api/auth/login.
func (ctl *AuthController) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "username and password are required")
		return
	}
	result, err := ctl.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(200, authPayload(result))
}

// Profile handles GET /api/user/profile.
func (ctl *AuthController) Profile(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.ErrorWithCode(c, pkgerrors.Unauthorized, "")
		return
	}
	profile, err := ctl.auth.Profile(c.Request.Context(), user.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(200, profile)
}

func authPayload(result service.AuthResult) gin.H {
	return gin.H{
		"access_token": result.AccessToken,
		"token_type":   "bearer",
		"expires_at":   result.ExpiresAt,
		"user":         publicUser(result.User),
	}
}

func publicUser(u *model.User) gin.H {
	return gin.H{
		"id":       u.ID,
		"username": u.Username,
		"xp":       u.XP,
		"level":    u.Level,
	}
}
