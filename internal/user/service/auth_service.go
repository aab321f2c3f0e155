// Package service implements account registration, login and token
// verification.
package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"codequest/internal/common/db"
	"codequest/internal/common/http/middleware"
	"codequest/internal/user/model"
	"codequest/internal/user/repository"
	pkgerrors "codequest/pkg/errors"
	"codequest/pkg/utils/logger"
)

const (
	defaultAccessTokenTTL = 24 * time.Hour
	defaultJWTIssuer      = "codequest"
)

// AuthConfig holds token settings.
type AuthConfig struct {
	JWTSecret      []byte
	JWTIssuer      string
	AccessTokenTTL time.Duration
}

// AuthService handles registration, login and token verification. It
// implements middleware.TokenVerifier.
type AuthService struct {
	users repository.UserRepository
	cfg   AuthConfig
}

func NewAuthService(users repository.UserRepository, cfg AuthConfig) *AuthService {
	if cfg.AccessTokenTTL == 0 {
		cfg.AccessTokenTTL = defaultAccessTokenTTL
	}
	if cfg.JWTIssuer == "" {
		cfg.JWTIssuer = defaultJWTIssuer
	}
	return &AuthService{users: users, cfg: cfg}
}

// AuthResult is the outcome of register and login.
type AuthResult struct {
	AccessToken string
	ExpiresAt   time.Time
	User        *model.User
}

type tokenClaims struct {
	Username  string `json:"username"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// Register creates an account and issues a token.
func (s *AuthService) Register(ctx context.Context, username, password string) (AuthResult, error) {
	if err := validateUsername(username); err != nil {
		return AuthResult{}, err
	}
	if err := validatePassword(password); err != nil {
		return AuthResult{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return AuthResult{}, pkgerrors.Wrap(err, pkgerrors.InternalServerError)
	}

	user := &model.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		XP:           0,
		Level:        1,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if _, dup := db.UniqueViolation(err); dup {
			return AuthResult{}, pkgerrors.New(pkgerrors.UsernameAlreadyExists)
		}
		return AuthResult{}, pkgerrors.Wrap(err, pkgerrors.DatabaseError)
	}

	logger.Info(ctx, "user registered", zap.String("user_id", user.ID), zap.String("username", username))
	return s.issueToken(user)
}

// Login verifies credentials and issues a token.
func (s *AuthService) Login(ctx context.Context, username, password string) (AuthResult, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if stderrors.Is(err, repository.ErrUserNotFound) {
			return AuthResult{}, pkgerrors.New(pkgerrors.InvalidCredentials)
		}
		return AuthResult{}, pkgerrors.Wrap(err, pkgerrors.DatabaseError)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return AuthResult{}, pkgerrors.New(pkgerrors.InvalidCredentials)
	}
	return s.issueToken(user)
}

// Authenticate validates a bearer token and resolves the caller.
func (s *AuthService) Authenticate(ctx context.Context, raw string) (middleware.UserInfo, error) {
	if raw == "" {
		return middleware.UserInfo{}, pkgerrors.New(pkgerrors.TokenInvalid)
	}
	claims, err := s.parseToken(raw)
	if err != nil {
		return middleware.UserInfo{}, err
	}
	return middleware.UserInfo{ID: claims.Subject, Username: claims.Username}, nil
}

// Profile assembles the public account view.
func (s *AuthService) Profile(ctx context.Context, userID string) (*model.Profile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if stderrors.Is(err, repository.ErrUserNotFound) {
			return nil, pkgerrors.New(pkgerrors.UserNotFound)
		}
		return nil, pkgerrors.Wrap(err, pkgerrors.DatabaseError)
	}
	badges, err := s.users.Badges(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.DatabaseError)
	}
	completed, err := s.users.CompletedChallengeIDs(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.DatabaseError)
	}
	return &model.Profile{
		ID:                  user.ID,
		Username:            user.Username,
		XP:                  user.XP,
		Level:               user.Level,
		Badges:              badges,
		CompletedChallenges: completed,
		CreatedAt:           user.CreatedAt,
	}, nil
}

func (s *AuthService) issueToken(user *model.User) (AuthResult, error) {
	if len(s.cfg.JWTSecret) == 0 {
		return AuthResult{}, pkgerrors.New(pkgerrors.TokenGenerationFailed).WithMessage("jwt secret is not configured")
	}
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTokenTTL)
	claims := tokenClaims{
		Username:  user.Username,
		TokenType: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    s.cfg.JWTIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.JWTSecret)
	if err != nil {
		return AuthResult{}, pkgerrors.Wrap(err, pkgerrors.TokenGenerationFailed)
	}
	return AuthResult{AccessToken: token, ExpiresAt: expiresAt, User: user}, nil
}

func (s *AuthService) parseToken(raw string) (*tokenClaims, error) {
	if len(s.cfg.JWTSecret) == 0 {
		return nil, pkgerrors.New(pkgerrors.TokenInvalid)
	}
	parsed, err := jwt.ParseWithClaims(raw, &tokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.cfg.JWTSecret, nil
	})
	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return nil, pkgerrors.New(pkgerrors.TokenExpired)
		}
		return nil, pkgerrors.New(pkgerrors.TokenInvalid)
	}
	if !parsed.Valid {
		return nil, pkgerrors.New(pkgerrors.TokenInvalid)
	}
	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.TokenInvalid)
	}
	if claims.Issuer != s.cfg.JWTIssuer {
		return nil, pkgerrors.New(pkgerrors.TokenInvalid)
	}
	if claims.TokenType != "access" || claims.Subject == "" {
		return nil, pkgerrors.New(pkgerrors.TokenInvalid)
	}
	return claims, nil
}
