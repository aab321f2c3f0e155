package middleware

import (
	"context"
	"strings"

	"codequest/pkg/errors"
	"codequest/pkg/utils/contextkey"
	"codequest/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// UserInfo identifies the authenticated caller.
type UserInfo struct {
	ID       string
	Username string
}

// TokenVerifier validates a bearer token and resolves the caller.
type TokenVerifier interface {
	Authenticate(ctx context.Context, raw string) (UserInfo, error)
}

// AuthMiddleware enforces JWT validation for protected routes.
func AuthMiddleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if verifier == nil {
			response.AbortWithErrorCode(c, errors.ServiceUnavailable, "auth service unavailable")
			return
		}

		token := extractBearerToken(c.GetHeader("Authorization"))
		info, err := verifier.Authenticate(c.Request.Context(), token)
		if err != nil {
			response.AbortWithError(c, err)
			return
		}

		c.Set(userIDContextKey, info.ID)
		c.Set("username", info.Username)
		ctx := context.WithValue(c.Request.Context(), contextkey.UserID, info.ID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// CurrentUser returns the authenticated caller set by AuthMiddleware.
func CurrentUser(c *gin.Context) (UserInfo, bool) {
	value, ok := c.Get(userIDContextKey)
	if !ok {
		return UserInfo{}, false
	}
	id, ok := value.(string)
	if !ok || id == "" {
		return UserInfo{}, false
	}
	return UserInfo{ID: id, Username: c.GetString("username")}, true
}

func extractBearerToken(authHeader string) string {
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
