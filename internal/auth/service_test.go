package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/vaultarc/archive-backend/internal/audit"
	"github.com/vaultarc/archive-backend/internal/users"
	pkgauth "github.com/vaultarc/archive-backend/pkg/auth"
	"github.com/vaultarc/archive-backend/pkg/config"
	"github.com/vaultarc/archive-backend/pkg/db/models"
	"github.com/vaultarc/archive-backend/pkg/enums"
	pkgerrors "github.com/vaultarc/archive-backend/pkg/errors"
	"github.com/vaultarc/archive-backend/pkg/logger"
	"github.com/vaultarc/archive-backend/pkg/security"
)

type stubUserRepo struct {
	byUsername map[string]*models.User
	byID       map[uuid.UUID]*models.User
}

func (s *stubUserRepo) WithTx(tx *gorm.DB) users.Repository { return s }

func (s *stubUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, ok := s.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (s *stubUserRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	user, ok := s.byUsername[username]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

type stubAuditService struct {
	appended []audit.AppendInput
}

func (s *stubAuditService) Append(ctx context.Context, tx *gorm.DB, input audit.AppendInput) (*models.AuditEntry, error) {
	s.appended = append(s.appended, input)
	return &models.AuditEntry{ID: uuid.New()}, nil
}

func (s *stubAuditService) Query(ctx context.Context, params audit.QueryParams) (*audit.EntryList, error) {
	return &audit.EntryList{}, nil
}

func (s *stubAuditService) Get(ctx context.Context, id uuid.UUID) (*models.AuditEntry, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubAuditService) lastAction() enums.AuditAction {
	if len(s.appended) == 0 {
		return ""
	}
	return s.appended[len(s.appended)-1].Action
}

type stubSessions struct {
	started    map[string]uuid.UUID
	terminated []string
}

func (s *stubSessions) Start(ctx context.Context, accessID string, userID uuid.UUID) error {
	if s.started == nil {
		s.started = map[string]uuid.UUID{}
	}
	s.started[accessID] = userID
	return nil
}

func (s *stubSessions) Terminate(ctx context.Context, accessID string) error {
	s.terminated = append(s.terminated, accessID)
	return nil
}

var testPasswordConfig = config.PasswordConfig{
	ArgonMemoryKB:    8,
	ArgonTime:        1,
	ArgonParallelism: 1,
	ArgonSaltLen:     8,
	ArgonKeyLen:      16,
}

var testJWTConfig = config.JWTConfig{
	Secret:            "auth-test-secret",
	Issuer:            "archive-backend",
	ExpirationMinutes: 30,
}

type authTestEnv struct {
	svc      Service
	repo     *stubUserRepo
	audits   *stubAuditService
	sessions *stubSessions
	user     *models.User
}

func newAuthTestEnv(t *testing.T) *authTestEnv {
	t.Helper()

	hash, err := security.HashPassword("correct horse", testPasswordConfig)
	require.NoError(t, err)

	unitID := uuid.New()
	user := &models.User{
		ID:           uuid.New(),
		Username:     "j.ortega",
		FullName:     "Julia Ortega",
		Email:        "j.ortega@vaultarc.test",
		PasswordHash: hash,
		UnitID:       &unitID,
		IsActive:     true,
	}
	repo := &stubUserRepo{
		byUsername: map[string]*models.User{user.Username: user},
		byID:       map[uuid.UUID]*models.User{user.ID: user},
	}
	audits := &stubAuditService{}
	sessions := &stubSessions{}
	logg := logger.New(logger.Options{ServiceName: "auth-test", Level: zerolog.ErrorLevel})

	svc, err := NewService(repo, audits, sessions, testJWTConfig, logg)
	require.NoError(t, err)
	return &authTestEnv{svc: svc, repo: repo, audits: audits, sessions: sessions, user: user}
}

func TestLoginSuccess(t *testing.T) {
	env := newAuthTestEnv(t)

	result, err := env.svc.Login(context.Background(), LoginInput{
		Username:  "j.ortega",
		Password:  "correct horse",
		IPAddress: "10.1.4.20",
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.AccessToken)
	assert.Equal(t, env.user.ID, result.User.ID)
	assert.True(t, result.ExpiresAt.After(time.Now()))

	// The JWT jti doubles as the session key.
	claims, err := pkgauth.ParseAccessToken(testJWTConfig, result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, env.user.ID, claims.UserID)
	assert.Equal(t, env.user.ID, env.sessions.started[claims.ID])

	assert.Equal(t, enums.AuditActionLogin, env.audits.lastAction())
	assert.Equal(t, "10.1.4.20", env.audits.appended[0].IPAddress)
}

func TestLoginUnknownUsernameAudited(t *testing.T) {
	env := newAuthTestEnv(t)

	_, err := env.svc.Login(context.Background(), LoginInput{Username: "ghost", Password: "whatever"})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	require.Len(t, env.audits.appended, 1)
	entry := env.audits.appended[0]
	assert.Equal(t, enums.AuditActionLoginFailed, entry.Action)
	assert.Nil(t, entry.ActorID)
	assert.Equal(t, "ghost", entry.AttemptedUsername)
}

func TestLoginWrongPasswordAudited(t *testing.T) {
	env := newAuthTestEnv(t)

	_, err := env.svc.Login(context.Background(), LoginInput{Username: "j.ortega", Password: "wrong"})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	require.Len(t, env.audits.appended, 1)
	entry := env.audits.appended[0]
	assert.Equal(t, enums.AuditActionLoginFailed, entry.Action)
	require.NotNil(t, entry.ActorID)
	assert.Equal(t, env.user.ID, *entry.ActorID)
	assert.Empty(t, env.sessions.started)
}

func TestLoginDeactivatedAccount(t *testing.T) {
	env := newAuthTestEnv(t)
	env.user.IsActive = false

	_, err := env.svc.Login(context.Background(), LoginInput{Username: "j.ortega", Password: "correct horse"})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
	assert.Equal(t, enums.AuditActionLoginFailed, env.audits.lastAction())
}

func TestLogoutTerminatesSessionAndAudits(t *testing.T) {
	env := newAuthTestEnv(t)

	err := env.svc.Logout(context.Background(), env.user, "access-123", "10.1.4.20", "test")
	require.NoError(t, err)
	assert.Equal(t, []string{"access-123"}, env.sessions.terminated)
	assert.Equal(t, enums.AuditActionLogout, env.audits.lastAction())
}

func TestReverifyCredential(t *testing.T) {
	env := newAuthTestEnv(t)
	ctx := context.Background()

	verifiedAt, err := env.svc.ReverifyCredential(ctx, env.user, "correct horse")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC(), verifiedAt, 5*time.Second)

	_, err = env.svc.ReverifyCredential(ctx, env.user, "wrong")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
	assert.Equal(t, enums.AuditActionLoginFailed, env.audits.lastAction())

	_, err = env.svc.ReverifyCredential(ctx, env.user, "")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestSessionLifecycleAudits(t *testing.T) {
	env := newAuthTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.svc.RecordSessionTimeout(ctx, env.user.ID, "10.1.4.20", "test"))
	assert.Equal(t, enums.AuditActionSessionTimeout, env.audits.lastAction())

	admin := &models.User{ID: uuid.New(), Username: "admin", IsActive: true}
	require.NoError(t, env.svc.TerminateSession(ctx, admin, env.user.ID, "access-456", "shift ended"))
	assert.Equal(t, []string{"access-456"}, env.sessions.terminated)
	assert.Equal(t, enums.AuditActionSessionTerminated, env.audits.lastAction())
}
