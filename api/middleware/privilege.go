package middleware

import (
	"net/http"

	"github.com/vaultarc/archive-backend/api/responses"
	"github.com/vaultarc/archive-backend/internal/privilege"
	"github.com/vaultarc/archive-backend/pkg/enums"
	pkgerrors "github.com/vaultarc/archive-backend/pkg/errors"
	"github.com/vaultarc/archive-backend/pkg/logger"
)

// RequirePrivilege rejects requests whose authenticated user lacks the
// privilege. Services recheck their own privileges; this guard exists so
// read surfaces like the audit ledger fail before any query runs.
func RequirePrivilege(required enums.Privilege, privileges privilege.Service, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := UserFromContext(r.Context())
			if user == nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
				return
			}
			if err := privileges.Require(r.Context(), user, required); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
