package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vaultarc/archive-backend/internal/audit"
	"github.com/vaultarc/archive-backend/internal/users"
	pkgauth "github.com/vaultarc/archive-backend/pkg/auth"
	"github.com/vaultarc/archive-backend/pkg/auth/session"
	"github.com/vaultarc/archive-backend/pkg/config"
	"github.com/vaultarc/archive-backend/pkg/db/models"
	"github.com/vaultarc/archive-backend/pkg/enums"
	pkgerrors "github.com/vaultarc/archive-backend/pkg/errors"
	"github.com/vaultarc/archive-backend/pkg/logger"
	"github.com/vaultarc/archive-backend/pkg/security"
)

// Service authenticates users, tracks their sessions, and leaves an audit
// trail for every attempt, including failed ones against unknown usernames.
type Service interface {
	Login(ctx context.Context, input LoginInput) (*LoginResult, error)
	Logout(ctx context.Context, user *models.User, accessID, ipAddress, userAgent string) error
	// ReverifyCredential re-checks the actor's password immediately before a
	// signing operation and returns the verification instant on success.
	ReverifyCredential(ctx context.Context, user *models.User, password string) (time.Time, error)
	RecordSessionTimeout(ctx context.Context, userID uuid.UUID, ipAddress, userAgent string) error
	TerminateSession(ctx context.Context, terminator *models.User, targetUserID uuid.UUID, accessID, reason string) error
}

type sessionManager interface {
	Start(ctx context.Context, accessID string, userID uuid.UUID) error
	Terminate(ctx context.Context, accessID string) error
}

type service struct {
	users    users.Repository
	audits   audit.Service
	sessions sessionManager
	jwt      config.JWTConfig
	logg     *logger.Logger
}

// NewService builds the authentication provider.
func NewService(repo users.Repository, audits audit.Service, sessions sessionManager, jwt config.JWTConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if audits == nil {
		return nil, fmt.Errorf("audit service required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{users: repo, audits: audits, sessions: sessions, jwt: jwt, logg: logg}, nil
}

func (s *service) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	username := strings.TrimSpace(input.Username)
	if username == "" || input.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "username and password are required")
	}

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Unknown usernames are audited by the name that was typed.
			s.auditFailure(ctx, nil, username, "unknown username", input)
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up user")
	}

	if !user.IsActive {
		s.auditFailure(ctx, &user.ID, "", "account deactivated", input)
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}

	ok, err := security.VerifyPassword(input.Password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !ok {
		s.auditFailure(ctx, &user.ID, "", "wrong password", input)
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}

	now := time.Now().UTC()
	accessID := session.NewAccessID()
	token, err := pkgauth.MintAccessToken(s.jwt, now, pkgauth.AccessTokenPayload{
		UserID:   user.ID,
		Username: user.Username,
		UnitID:   user.UnitID,
		JTI:      accessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token")
	}
	if err := s.sessions.Start(ctx, accessID, user.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "start session")
	}

	if _, err := s.audits.Append(ctx, nil, audit.AppendInput{
		Action:    enums.AuditActionLogin,
		ActorID:   &user.ID,
		Message:   fmt.Sprintf("user %s logged in", user.Username),
		IPAddress: input.IPAddress,
		UserAgent: input.UserAgent,
	}); err != nil {
		return nil, err
	}

	return &LoginResult{
		AccessToken: token,
		ExpiresAt:   now.Add(time.Duration(s.jwt.ExpirationMinutes) * time.Minute),
		User:        user,
	}, nil
}

func (s *service) Logout(ctx context.Context, user *models.User, accessID, ipAddress, userAgent string) error {
	if user == nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}
	if err := s.sessions.Terminate(ctx, accessID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "terminate session")
	}
	_, err := s.audits.Append(ctx, nil, audit.AppendInput{
		Action:    enums.AuditActionLogout,
		ActorID:   &user.ID,
		Message:   fmt.Sprintf("user %s logged out", user.Username),
		IPAddress: ipAddress,
		UserAgent: userAgent,
	})
	return err
}

func (s *service) ReverifyCredential(ctx context.Context, user *models.User, password string) (time.Time, error) {
	if user == nil {
		return time.Time{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}
	if password == "" {
		return time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "password is required")
	}

	// Read the stored hash fresh; the request-scoped user may be stale.
	stored, err := s.users.FindByID(ctx, user.ID)
	if err != nil {
		return time.Time{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up user")
	}
	if !stored.IsActive {
		return time.Time{}, pkgerrors.New(pkgerrors.CodeForbidden, "account is deactivated")
	}
	ok, err := security.VerifyPassword(password, stored.PasswordHash)
	if err != nil {
		return time.Time{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !ok {
		s.auditFailure(ctx, &stored.ID, "", "signing re-verification failed", LoginInput{})
		return time.Time{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}
	return time.Now().UTC(), nil
}

func (s *service) RecordSessionTimeout(ctx context.Context, userID uuid.UUID, ipAddress, userAgent string) error {
	_, err := s.audits.Append(ctx, nil, audit.AppendInput{
		Action:    enums.AuditActionSessionTimeout,
		ActorID:   &userID,
		Message:   "session expired after inactivity",
		IPAddress: ipAddress,
		UserAgent: userAgent,
	})
	return err
}

func (s *service) TerminateSession(ctx context.Context, terminator *models.User, targetUserID uuid.UUID, accessID, reason string) error {
	if terminator == nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}
	if err := s.sessions.Terminate(ctx, accessID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "terminate session")
	}
	message := fmt.Sprintf("session of user %s terminated by %s", targetUserID, terminator.Username)
	if reason != "" {
		message = fmt.Sprintf("%s: %s", message, reason)
	}
	_, err := s.audits.Append(ctx, nil, audit.AppendInput{
		Action:  enums.AuditActionSessionTerminated,
		ActorID: &terminator.ID,
		Message: message,
	})
	return err
}

func (s *service) auditFailure(ctx context.Context, actorID *uuid.UUID, attemptedUsername, reason string, input LoginInput) {
	_, err := s.audits.Append(ctx, nil, audit.AppendInput{
		Action:            enums.AuditActionLoginFailed,
		ActorID:           actorID,
		AttemptedUsername: attemptedUsername,
		Message:           "login failed: " + reason,
		IPAddress:         input.IPAddress,
		UserAgent:         input.UserAgent,
	})
	if err != nil {
		s.logg.Error(ctx, "recording failed login", err)
	}
}
