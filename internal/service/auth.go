package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"flagpole/internal/dto/resp"
	"flagpole/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"flagpole/pkg/logger"
)

const (
	sessionKeyPrefix = "flagpole:auth:session:"
	issuer           = "flagpole-auth"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenInvalid       = errors.New("token invalid")
	ErrSessionExpired     = errors.New("session expired")
)

type UserClaims struct {
	UserID uint64 `json:"uid"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// AuthService issues HS256 access/refresh token pairs. Refresh tokens are
// allow-listed in redis so a rotation or logout revokes them immediately.
type AuthService struct {
	users           repository.UserInterface
	redis           *redis.Client
	signingKey      []byte
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
}

func NewAuthService(users repository.UserInterface, rdb *redis.Client, signingKey []byte, accessTokenTTL, refreshTokenTTL time.Duration) *AuthService {
	return &AuthService{
		users:           users,
		redis:           rdb,
		signingKey:      signingKey,
		accessTokenTTL:  accessTokenTTL,
		refreshTokenTTL: refreshTokenTTL,
	}
}

func (s *AuthService) SigningKey() []byte {
	return s.signingKey
}

// Login authenticates by email and password and returns a token pair.
func (s *AuthService) Login(ctx context.Context, email, password string) (*resp.TokenResp, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	tokens, err := s.generateTokens(ctx, user.ID, user.Email, user.Name, user.Role)
	if err != nil {
		return nil, err
	}
	tokens.User = resp.UserInfo{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
		Role:  user.Role,
	}
	return tokens, nil
}

// Refresh rotates the token pair. The presented refresh token must match the
// allow-listed one for that user.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*resp.TokenResp, error) {
	claims, err := s.ParseClaims(refreshToken)
	if err != nil {
		return nil, ErrTokenInvalid
	}

	key := sessionKeyPrefix + strconv.FormatUint(claims.UserID, 10)
	stored, err := s.redis.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionExpired
	}
	if err != nil {
		return nil, err
	}
	if stored != refreshToken {
		// A mismatch means the token was already rotated; treat reuse as
		// compromise and drop the session.
		if delErr := s.redis.Del(ctx, key).Err(); delErr != nil {
			logger.Warn("failed to revoke reused session", zap.Error(delErr))
		}
		return nil, ErrTokenInvalid
	}

	return s.generateTokens(ctx, claims.UserID, claims.Email, claims.Name, claims.Role)
}

func (s *AuthService) Logout(ctx context.Context, userID uint64) error {
	key := sessionKeyPrefix + strconv.FormatUint(userID, 10)
	return s.redis.Del(ctx, key).Err()
}

// ParseClaims validates the signature and expiry and returns the claims.
func (s *AuthService) ParseClaims(tokenString string) (*UserClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &UserClaims{}, func(t *jwt.Token) (interface{}, error) {
		return s.signingKey, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrTokenInvalid
	}
	claims, ok := token.Claims.(*UserClaims)
	if !ok {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func (s *AuthService) generateTokens(ctx context.Context, userID uint64, email, name, role string) (*resp.TokenResp, error) {
	now := time.Now()
	atClaims := UserClaims{
		UserID: userID,
		Email:  email,
		Name:   name,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, atClaims).SignedString(s.signingKey)
	if err != nil {
		return nil, err
	}

	rtClaims := UserClaims{
		UserID: userID,
		Email:  email,
		Name:   name,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.refreshTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			ID:        uuid.New().String(),
		},
	}
	refreshToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, rtClaims).SignedString(s.signingKey)
	if err != nil {
		return nil, err
	}

	key := sessionKeyPrefix + strconv.FormatUint(userID, 10)
	if err := s.redis.Set(ctx, key, refreshToken, s.refreshTokenTTL).Err(); err != nil {
		return nil, fmt.Errorf("storing refresh session: %w", err)
	}

	return &resp.TokenResp{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.accessTokenTTL.Seconds()),
	}, nil
}
