package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vaultarc/archive-backend/api/responses"
	"github.com/vaultarc/archive-backend/internal/users"
	pkgAuth "github.com/vaultarc/archive-backend/pkg/auth"
	"github.com/vaultarc/archive-backend/pkg/config"
	pkgerrors "github.com/vaultarc/archive-backend/pkg/errors"
	"github.com/vaultarc/archive-backend/pkg/logger"
)

// sessionToucher extends the sliding inactivity window and reports whether
// the session was still alive.
type sessionToucher interface {
	Touch(ctx context.Context, accessID string) (bool, error)
}

// timeoutRecorder writes the session-timeout audit entry when a request
// arrives on an expired session.
type timeoutRecorder interface {
	RecordSessionTimeout(ctx context.Context, userID uuid.UUID, ipAddress, userAgent string) error
}

// Auth validates the bearer token, touches the session, and seeds the
// request context with the live user row so downstream privilege checks and
// signature snapshots see current role membership.
func Auth(cfg config.JWTConfig, sessions sessionToucher, timeouts timeoutRecorder, repo users.Repository, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}
			if claims.ID == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id"))
				return
			}

			if sessions != nil {
				alive, err := sessions.Touch(r.Context(), claims.ID)
				if err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session"))
					return
				}
				if !alive {
					if timeouts != nil {
						if err := timeouts.RecordSessionTimeout(r.Context(), claims.UserID, clientIP(r), r.UserAgent()); err != nil && logg != nil {
							logg.Error(r.Context(), "recording session timeout", err)
						}
					}
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "session expired"))
					return
				}
			}

			user, err := repo.FindByID(r.Context(), claims.UserID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "unknown user"))
					return
				}
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user"))
				return
			}
			if !user.IsActive {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "account is deactivated"))
				return
			}

			ctx := WithUser(r.Context(), user)
			ctx = WithAccessID(ctx, claims.ID)

			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{
					"user_id":    user.ID.String(),
					"actor_role": user.RoleName(),
				})
				if user.UnitID != nil {
					ctx = logg.WithUnitID(ctx, user.UnitID.String())
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
