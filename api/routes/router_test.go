package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/vaultarc/archive-backend/internal/audit"
	"github.com/vaultarc/archive-backend/internal/auth"
	"github.com/vaultarc/archive-backend/internal/policy"
	"github.com/vaultarc/archive-backend/internal/signature"
	"github.com/vaultarc/archive-backend/internal/storageloc"
	"github.com/vaultarc/archive-backend/internal/users"
	"github.com/vaultarc/archive-backend/internal/workflow"
	pkgauth "github.com/vaultarc/archive-backend/pkg/auth"
	"github.com/vaultarc/archive-backend/pkg/config"
	"github.com/vaultarc/archive-backend/pkg/db/models"
	"github.com/vaultarc/archive-backend/pkg/enums"
	pkgerrors "github.com/vaultarc/archive-backend/pkg/errors"
	"github.com/vaultarc/archive-backend/pkg/logger"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubSessions struct {
	alive bool
}

func (s stubSessions) HasSession(ctx context.Context, accessID string) (bool, error) {
	return s.alive, nil
}

func (s stubSessions) Touch(ctx context.Context, accessID string) (bool, error) {
	return s.alive, nil
}

type stubUsersRepo struct {
	user *models.User
}

func (r stubUsersRepo) WithTx(tx *gorm.DB) users.Repository {
	return r
}

func (r stubUsersRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if r.user != nil && r.user.ID == id {
		return r.user, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r stubUsersRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return nil, gorm.ErrRecordNotFound
}

type stubAuthService struct {
	timeoutRecorded *bool
}

func (stubAuthService) Login(ctx context.Context, input auth.LoginInput) (*auth.LoginResult, error) {
	return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
}

func (stubAuthService) Logout(ctx context.Context, user *models.User, accessID, ipAddress, userAgent string) error {
	return nil
}

func (stubAuthService) ReverifyCredential(ctx context.Context, user *models.User, password string) (time.Time, error) {
	return time.Now().UTC(), nil
}

func (s stubAuthService) RecordSessionTimeout(ctx context.Context, userID uuid.UUID, ipAddress, userAgent string) error {
	if s.timeoutRecorded != nil {
		*s.timeoutRecorded = true
	}
	return nil
}

func (stubAuthService) TerminateSession(ctx context.Context, terminator *models.User, targetUserID uuid.UUID, accessID, reason string) error {
	return nil
}

type stubAuditService struct{}

func (stubAuditService) Append(ctx context.Context, tx *gorm.DB, input audit.AppendInput) (*models.AuditEntry, error) {
	panic("unimplemented")
}

func (stubAuditService) Query(ctx context.Context, params audit.QueryParams) (*audit.EntryList, error) {
	return &audit.EntryList{}, nil
}

func (stubAuditService) Get(ctx context.Context, id uuid.UUID) (*models.AuditEntry, error) {
	panic("unimplemented")
}

type stubSignatureService struct{}

func (stubSignatureService) Sign(ctx context.Context, tx *gorm.DB, input signature.SignInput) (*models.SignatureRecord, error) {
	panic("unimplemented")
}

func (stubSignatureService) Get(ctx context.Context, id uuid.UUID) (*models.SignatureRecord, error) {
	panic("unimplemented")
}

func (stubSignatureService) ListForTarget(ctx context.Context, kind enums.TargetKind, targetID uuid.UUID) ([]models.SignatureRecord, error) {
	return nil, nil
}

func (stubSignatureService) VerifyIntegrity(ctx context.Context, signatureID uuid.UUID, verifier *models.User) (*signature.VerificationResult, error) {
	panic("unimplemented")
}

func (stubSignatureService) Invalidate(ctx context.Context, input signature.InvalidateInput) (*models.SignatureRecord, error) {
	panic("unimplemented")
}

func (stubSignatureService) ListVerifications(ctx context.Context, signatureID uuid.UUID) ([]models.SignatureVerification, error) {
	panic("unimplemented")
}

type stubPrivilegeService struct {
	grants map[enums.Privilege]bool
}

func (s stubPrivilegeService) Has(ctx context.Context, user *models.User, privilege enums.Privilege) (bool, error) {
	return s.grants[privilege], nil
}

func (s stubPrivilegeService) Require(ctx context.Context, user *models.User, privilege enums.Privilege) error {
	if !s.grants[privilege] {
		return pkgerrors.New(pkgerrors.CodeForbidden, "missing privilege")
	}
	return nil
}

func (s stubPrivilegeService) ListForUser(ctx context.Context, user *models.User) ([]enums.Privilege, error) {
	return nil, nil
}

type stubWorkflowService struct{}

func (stubWorkflowService) CreateRequest(ctx context.Context, actor workflow.Actor, input workflow.CreateRequestInput) (*models.Request, error) {
	panic("unimplemented")
}

func (stubWorkflowService) Approve(ctx context.Context, actor workflow.Actor, requestID uuid.UUID) (*models.Request, error) {
	panic("unimplemented")
}

func (stubWorkflowService) Reject(ctx context.Context, actor workflow.Actor, requestID uuid.UUID, reason string) (*models.Request, error) {
	panic("unimplemented")
}

func (stubWorkflowService) SendBack(ctx context.Context, actor workflow.Actor, requestID uuid.UUID, reason string) (*models.Request, error) {
	panic("unimplemented")
}

func (stubWorkflowService) Resubmit(ctx context.Context, actor workflow.Actor, requestID uuid.UUID, input workflow.ResubmitInput) (*models.Request, error) {
	panic("unimplemented")
}

func (stubWorkflowService) AllocateStorage(ctx context.Context, actor workflow.Actor, requestID, storageLocationID uuid.UUID) (*models.Request, error) {
	panic("unimplemented")
}

func (stubWorkflowService) IssueDocuments(ctx context.Context, actor workflow.Actor, requestID uuid.UUID) (*models.Request, error) {
	panic("unimplemented")
}

func (stubWorkflowService) ReturnDocuments(ctx context.Context, actor workflow.Actor, requestID uuid.UUID, input workflow.ReturnInput) (*models.Request, error) {
	panic("unimplemented")
}

func (stubWorkflowService) ConfirmDestruction(ctx context.Context, actor workflow.Actor, requestID uuid.UUID) (*models.Request, error) {
	panic("unimplemented")
}

func (stubWorkflowService) GetRequest(ctx context.Context, id uuid.UUID) (*models.Request, error) {
	panic("unimplemented")
}

func (stubWorkflowService) ListRequests(ctx context.Context, params workflow.ListParams) (*workflow.RequestList, error) {
	return &workflow.RequestList{}, nil
}

func (stubWorkflowService) ListOverdueWithdrawals(ctx context.Context, asOf time.Time) ([]models.Request, error) {
	return nil, nil
}

type stubStorageService struct{}

func (stubStorageService) Create(ctx context.Context, input storageloc.CreateInput) (*storageloc.Location, error) {
	panic("unimplemented")
}

func (stubStorageService) Get(ctx context.Context, id uuid.UUID) (*storageloc.Location, error) {
	panic("unimplemented")
}

func (stubStorageService) ListByUnit(ctx context.Context, unitID uuid.UUID) ([]storageloc.Location, error) {
	panic("unimplemented")
}

func (stubStorageService) Delete(ctx context.Context, id uuid.UUID) error {
	panic("unimplemented")
}

type stubPolicyService struct{}

func (stubPolicyService) Resolve(ctx context.Context) (policy.Effective, error) {
	panic("unimplemented")
}

func (stubPolicyService) Get(ctx context.Context) (*models.SystemPolicy, error) {
	panic("unimplemented")
}

func (stubPolicyService) Update(ctx context.Context, actor *models.User, input policy.UpdateInput) (*models.SystemPolicy, error) {
	panic("unimplemented")
}

func testRouterConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret:            "router-test-secret",
			Issuer:            "archive-backend",
			ExpirationMinutes: 30,
		},
	}
}

type routerOptions struct {
	sessionsAlive   bool
	grants          map[enums.Privilege]bool
	timeoutRecorded *bool
}

func newTestRouter(cfg *config.Config, user *models.User, opts routerOptions) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "router-test", Level: zerolog.ErrorLevel})
	return NewRouter(Dependencies{
		Config:         cfg,
		Logger:         logg,
		DBPinger:       stubPinger{},
		RedisPing:      stubPinger{},
		Sessions:       stubSessions{alive: opts.sessionsAlive},
		UsersRepo:      stubUsersRepo{user: user},
		AuthService:    stubAuthService{timeoutRecorded: opts.timeoutRecorded},
		AuditService:   stubAuditService{},
		Signatures:     stubSignatureService{},
		Privileges:     stubPrivilegeService{grants: opts.grants},
		Workflows:      stubWorkflowService{},
		StorageService: stubStorageService{},
		Policies:       stubPolicyService{},
	})
}

func testUser() *models.User {
	return &models.User{ID: uuid.New(), Username: "m.reyes", FullName: "Miguel Reyes", IsActive: true}
}

func buildToken(t *testing.T, cfg *config.Config, user *models.User) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(cfg.JWT, time.Now(), pkgauth.AccessTokenPayload{
		UserID:   user.ID,
		Username: user.Username,
		JTI:      "router-test-session",
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestHealthLiveIsPublic(t *testing.T) {
	router := newTestRouter(testRouterConfig(), nil, routerOptions{})
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for liveness got %d", resp.Code)
	}
}

func TestProtectedGroupRejectsMissingToken(t *testing.T) {
	router := newTestRouter(testRouterConfig(), nil, routerOptions{sessionsAlive: true})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/requests", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestProtectedGroupAcceptsValidToken(t *testing.T) {
	cfg := testRouterConfig()
	user := testUser()
	router := newTestRouter(cfg, user, routerOptions{sessionsAlive: true})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, user))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 with valid token got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestLogoutReachableThroughAuthSubtree(t *testing.T) {
	cfg := testRouterConfig()
	user := testUser()
	router := newTestRouter(cfg, user, routerOptions{sessionsAlive: true})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, user))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for logout got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestExpiredSessionIsUnauthorizedAndAudited(t *testing.T) {
	cfg := testRouterConfig()
	user := testUser()
	recorded := false
	router := newTestRouter(cfg, user, routerOptions{sessionsAlive: false, timeoutRecorded: &recorded})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, user))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired session got %d", resp.Code)
	}
	if !recorded {
		t.Fatal("expected the session timeout to be recorded")
	}
}

func TestDeactivatedUserIsForbidden(t *testing.T) {
	cfg := testRouterConfig()
	user := testUser()
	user.IsActive = false
	router := newTestRouter(cfg, user, routerOptions{sessionsAlive: true})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, user))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for deactivated account got %d", resp.Code)
	}
}

func TestAuditGroupRequiresPrivilege(t *testing.T) {
	cfg := testRouterConfig()
	user := testUser()

	router := newTestRouter(cfg, user, routerOptions{sessionsAlive: true})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/audit", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, user))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without view_audit got %d", resp.Code)
	}

	granted := newTestRouter(cfg, user, routerOptions{
		sessionsAlive: true,
		grants:        map[enums.Privilege]bool{enums.PrivilegeViewAudit: true},
	})
	resp = httptest.NewRecorder()
	granted.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 with view_audit got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestLoginRejectsMalformedBody(t *testing.T) {
	router := newTestRouter(testRouterConfig(), nil, routerOptions{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"username":"m.reyes"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing password got %d", resp.Code)
	}
}
