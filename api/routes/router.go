package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vaultarc/archive-backend/api/controllers"
	"github.com/vaultarc/archive-backend/api/middleware"
	"github.com/vaultarc/archive-backend/internal/audit"
	"github.com/vaultarc/archive-backend/internal/auth"
	"github.com/vaultarc/archive-backend/internal/policy"
	"github.com/vaultarc/archive-backend/internal/privilege"
	"github.com/vaultarc/archive-backend/internal/signature"
	"github.com/vaultarc/archive-backend/internal/storageloc"
	"github.com/vaultarc/archive-backend/internal/users"
	"github.com/vaultarc/archive-backend/internal/workflow"
	"github.com/vaultarc/archive-backend/pkg/auth/session"
	"github.com/vaultarc/archive-backend/pkg/config"
	"github.com/vaultarc/archive-backend/pkg/enums"
	"github.com/vaultarc/archive-backend/pkg/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies carries everything the router wires into handlers.
type Dependencies struct {
	Config    *config.Config
	Logger    *logger.Logger
	DBPinger  pinger
	RedisPing pinger

	Sessions       session.AccessSessionChecker
	UsersRepo      users.Repository
	AuthService    auth.Service
	AuditService   audit.Service
	Signatures     signature.Service
	Privileges     privilege.Service
	Workflows      workflow.Service
	StorageService storageloc.Service
	Policies       policy.Service

	MetricsHandler http.Handler
}

func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DBPinger, deps.RedisPing))
	})

	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Login shares the mux with the protected routes so the rest of
		// /api/v1/auth stays routable, but skips the auth middleware.
		r.Group(func(r chi.Router) {
			r.Post("/auth/login", controllers.AuthLogin(deps.AuthService, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, deps.Sessions, deps.AuthService, deps.UsersRepo, logg))

			r.Post("/auth/logout", controllers.AuthLogout(deps.AuthService, logg))
			r.Get("/auth/me", controllers.AuthMe(logg))

			r.Route("/requests", func(r chi.Router) {
				r.Post("/", controllers.RequestCreate(deps.Workflows, deps.AuthService, logg))
				r.Get("/", controllers.RequestList(deps.Workflows, logg))
				r.Get("/overdue", controllers.RequestListOverdue(deps.Workflows, logg))
				r.Route("/{requestId}", func(r chi.Router) {
					r.Get("/", controllers.RequestGet(deps.Workflows, logg))
					r.Post("/approve", controllers.RequestApprove(deps.Workflows, deps.AuthService, logg))
					r.Post("/reject", controllers.RequestReject(deps.Workflows, deps.AuthService, logg))
					r.Post("/send-back", controllers.RequestSendBack(deps.Workflows, deps.AuthService, logg))
					r.Post("/resubmit", controllers.RequestResubmit(deps.Workflows, deps.AuthService, logg))
					r.Post("/allocate", controllers.RequestAllocate(deps.Workflows, deps.AuthService, logg))
					r.Post("/issue", controllers.RequestIssue(deps.Workflows, deps.AuthService, logg))
					r.Post("/return", controllers.RequestReturn(deps.Workflows, deps.AuthService, logg))
					r.Post("/confirm-destruction", controllers.RequestConfirmDestruction(deps.Workflows, deps.AuthService, logg))
				})
			})

			r.Route("/audit", func(r chi.Router) {
				r.Use(middleware.RequirePrivilege(enums.PrivilegeViewAudit, deps.Privileges, logg))
				r.Get("/", controllers.AuditList(deps.AuditService, logg))
				r.Get("/{entryId}", controllers.AuditGet(deps.AuditService, logg))
			})

			r.Route("/signatures", func(r chi.Router) {
				r.Get("/targets/{targetKind}/{targetId}", controllers.SignatureListForTarget(deps.Signatures, logg))
				r.Route("/{signatureId}", func(r chi.Router) {
					r.Get("/", controllers.SignatureGet(deps.Signatures, logg))
					r.Get("/verifications", controllers.SignatureListVerifications(deps.Signatures, logg))
					r.With(middleware.RequirePrivilege(enums.PrivilegeVerifySignature, deps.Privileges, logg)).
						Post("/verify", controllers.SignatureVerify(deps.Signatures, logg))
					r.With(middleware.RequirePrivilege(enums.PrivilegeInvalidateSignature, deps.Privileges, logg)).
						Post("/invalidate", controllers.SignatureInvalidate(deps.Signatures, logg))
				})
			})

			r.Route("/policy", func(r chi.Router) {
				r.Get("/", controllers.PolicyGet(deps.Policies, logg))
				r.With(middleware.RequirePrivilege(enums.PrivilegeManageUsers, deps.Privileges, logg)).
					Put("/", controllers.PolicyUpdate(deps.Policies, logg))
			})

			r.Route("/storage-locations", func(r chi.Router) {
				r.With(middleware.RequirePrivilege(enums.PrivilegeManageStorage, deps.Privileges, logg)).
					Post("/", controllers.StorageLocationCreate(deps.StorageService, logg))
				r.With(middleware.RequirePrivilege(enums.PrivilegeManageStorage, deps.Privileges, logg)).
					Delete("/{locationId}", controllers.StorageLocationDelete(deps.StorageService, logg))
				r.Get("/{locationId}", controllers.StorageLocationGet(deps.StorageService, logg))
				r.Get("/units/{unitId}", controllers.StorageLocationListByUnit(deps.StorageService, logg))
			})
		})
	})

	return r
}
