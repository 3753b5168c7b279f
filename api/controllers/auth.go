package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/vaultarc/archive-backend/api/middleware"
	"github.com/vaultarc/archive-backend/api/responses"
	"github.com/vaultarc/archive-backend/api/validators"
	"github.com/vaultarc/archive-backend/internal/auth"
	"github.com/vaultarc/archive-backend/pkg/db/models"
	pkgerrors "github.com/vaultarc/archive-backend/pkg/errors"
	"github.com/vaultarc/archive-backend/pkg/logger"
)

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	AccessToken string       `json:"access_token"`
	ExpiresAt   time.Time    `json:"expires_at"`
	User        userResponse `json:"user"`
}

type userResponse struct {
	ID       uuid.UUID  `json:"id"`
	Username string     `json:"username"`
	FullName string     `json:"full_name"`
	Email    string     `json:"email"`
	Role     string     `json:"role"`
	UnitID   *uuid.UUID `json:"unit_id,omitempty"`
}

func userResponseFromModel(m *models.User) userResponse {
	return userResponse{
		ID:       m.ID,
		Username: m.Username,
		FullName: m.FullName,
		Email:    m.Email,
		Role:     m.RoleName(),
		UnitID:   m.UnitID,
	}
}

func AuthLogin(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload loginRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Login(r.Context(), auth.LoginInput{
			Username:  payload.Username,
			Password:  payload.Password,
			IPAddress: middleware.ClientIP(r),
			UserAgent: r.UserAgent(),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, loginResponse{
			AccessToken: result.AccessToken,
			ExpiresAt:   result.ExpiresAt,
			User:        userResponseFromModel(result.User),
		})
	}
}

func AuthLogout(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := middleware.UserFromContext(r.Context())
		if user == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		accessID := middleware.AccessIDFromContext(r.Context())
		if err := svc.Logout(r.Context(), user, accessID, middleware.ClientIP(r), r.UserAgent()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "logged_out"})
	}
}

func AuthMe(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := middleware.UserFromContext(r.Context())
		if user == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}
		responses.WriteSuccess(w, userResponseFromModel(user))
	}
}
