// Package services contains server-side business logic: sessions and
// registration (AuthService), access rules, the upload pipeline and
// read paths (FileService), and liveness reporting (StatusService).
package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/cryptox"
	"github.com/dmitrijs2005/filevault/internal/logging"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/dmitrijs2005/filevault/internal/server/queue"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/users"
	"github.com/dmitrijs2005/filevault/internal/server/sessions"
)

// tokenBytes is the entropy of a session token; it is hex encoded.
const tokenBytes = 32

// AuthService registers users and issues, resolves and revokes opaque
// session tokens. Sessions have a fixed lifetime and are never extended.
type AuthService struct {
	users    users.Repository
	sessions sessions.Store
	hasher   cryptox.PasswordHasher
	broker   queue.Broker
	ttl      time.Duration
	logger   logging.Logger
}

func NewAuthService(u users.Repository, s sessions.Store, h cryptox.PasswordHasher, b queue.Broker, ttl time.Duration, l logging.Logger) *AuthService {
	return &AuthService{
		users:    u,
		sessions: s,
		hasher:   h,
		broker:   b,
		ttl:      ttl,
		logger:   l.With("module", "auth_service"),
	}
}

// Register creates a user and schedules the welcome job. A failed publish
// is logged; the account exists either way.
func (s *AuthService) Register(ctx context.Context, email, password string) (*models.User, error) {
	if email == "" {
		return nil, common.NewMissingFieldError("email")
	}
	if password == "" {
		return nil, common.NewMissingFieldError("password")
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u, err := s.users.Create(ctx, &models.User{Email: email, PasswordHash: hash})
	if err != nil {
		return nil, err
	}

	if err := queue.PublishJSON(ctx, s.broker, queue.UserQueue, models.WelcomeJob{UserID: u.ID}); err != nil {
		s.logger.Error(ctx, "publish welcome job", "user_id", u.ID, "error", err)
	}

	s.logger.Info(ctx, "user registered", "user_id", u.ID)
	return u, nil
}

// Login checks base64("email:password") credentials and returns a new
// session token. Every mismatch is reported as common.ErrorUnauthorized.
func (s *AuthService) Login(ctx context.Context, credentials string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(credentials)
	if err != nil {
		return "", common.ErrorUnauthorized
	}
	email, password, ok := strings.Cut(string(raw), ":")
	if !ok || email == "" {
		return "", common.ErrorUnauthorized
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrorUnauthorized
		}
		return "", err
	}

	match, err := s.hasher.Verify(password, u.PasswordHash)
	if err != nil {
		return "", fmt.Errorf("verify password: %w", err)
	}
	if !match {
		return "", common.ErrorUnauthorized
	}

	token, err := common.MakeRandHexString(tokenBytes)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	if err := s.sessions.Set(ctx, sessionKey(token), strconv.FormatInt(u.ID, 10), s.ttl); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}

	s.logger.Info(ctx, "user connected", "user_id", u.ID)
	return token, nil
}

// Logout revokes token. A second call with the same token fails.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if _, err := s.Resolve(ctx, token); err != nil {
		return err
	}
	if err := s.sessions.Delete(ctx, sessionKey(token)); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Resolve returns the user behind token. Unknown, expired and orphaned
// sessions all yield common.ErrorUnauthorized.
func (s *AuthService) Resolve(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, common.ErrorUnauthorized
	}

	v, err := s.sessions.Get(ctx, sessionKey(token))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, fmt.Errorf("read session: %w", err)
	}

	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, common.ErrorUnauthorized
	}

	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, err
	}
	return u, nil
}

// Me is Resolve under the name the API uses.
func (s *AuthService) Me(ctx context.Context, token string) (*models.User, error) {
	return s.Resolve(ctx, token)
}

func sessionKey(token string) string {
	return common.SessionKeyPrefix + token
}
