package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/crypto/bcrypt"

	"github.com/medbook/clinic-api/internal/config"
	"github.com/medbook/clinic-api/internal/model"
	"github.com/medbook/clinic-api/internal/repository"
	apperrors "github.com/medbook/clinic-api/pkg/errors"
)

const (
	maxLoginAttempts = 5
	lockoutWindow    = 15 * time.Minute
)

type tokenClaims struct {
	UserID int64      `json:"user_id"`
	Role   model.Role `json:"role"`
	jwt.RegisteredClaims
}

// Service issues and validates access tokens. Repeated failed logins
// for the same email are throttled within a rolling window; only
// attempt counters are cached, never user records.
type Service struct {
	users    repository.UserRepository
	cfg      config.JWTConfig
	attempts *gocache.Cache
}

func NewService(users repository.UserRepository, cfg config.JWTConfig) *Service {
	return &Service{
		users:    users,
		cfg:      cfg,
		attempts: gocache.New(lockoutWindow, 2*lockoutWindow),
	}
}

// Login verifies credentials and returns a signed access token plus
// the sanitized user record.
func (s *Service) Login(ctx context.Context, req *model.LoginRequest) (string, *model.User, error) {
	if s.isThrottled(req.Email) {
		return "", nil, apperrors.Forbidden("too many failed login attempts, try again later")
	}

	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if apperrors.IsNotFound(err) {
			s.recordFailure(req.Email)
			return "", nil, apperrors.Forbidden("invalid credentials")
		}
		return "", nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.recordFailure(req.Email)
		return "", nil, apperrors.Forbidden("invalid credentials")
	}

	s.attempts.Delete(req.Email)

	token, err := s.generateToken(user)
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return token, user.Sanitize(), nil
}

// ValidateToken parses and verifies an access token, returning the
// actor context embedded in it.
func (s *Service) ValidateToken(tokenString string) (*model.TokenClaims, error) {
	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.Secret), nil
	})
	if err != nil || !token.Valid {
		return nil, apperrors.Forbidden("invalid token")
	}

	return &model.TokenClaims{UserID: claims.UserID, Role: claims.Role}, nil
}

func (s *Service) generateToken(user *model.User) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(s.cfg.ExpiryHours) * time.Hour)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.Secret))
}

func (s *Service) isThrottled(email string) bool {
	if count, ok := s.attempts.Get(email); ok {
		return count.(int) >= maxLoginAttempts
	}
	return false
}

func (s *Service) recordFailure(email string) {
	if _, err := s.attempts.IncrementInt(email, 1); err != nil {
		s.attempts.Set(email, 1, lockoutWindow)
	}
}
