package controllers

import (
	"net/http"
	"time"

	"github.com/vaultarc/archive-backend/api/middleware"
	"github.com/vaultarc/archive-backend/api/responses"
	"github.com/vaultarc/archive-backend/api/validators"
	"github.com/vaultarc/archive-backend/internal/policy"
	"github.com/vaultarc/archive-backend/pkg/db/models"
	"github.com/vaultarc/archive-backend/pkg/logger"
)

type updatePolicyRequest struct {
	SessionTimeoutMinutes     *int  `json:"session_timeout_minutes" validate:"omitempty,min=1"`
	PasswordExpiryDays        *int  `json:"password_expiry_days" validate:"omitempty,min=1"`
	WithdrawalMaxDays         *int  `json:"withdrawal_max_days" validate:"omitempty,min=1"`
	EnforceSeparationOfDuties *bool `json:"enforce_separation_of_duties"`
}

func PolicyGet(svc policy.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		row, err := svc.Get(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, policyResponseFromModel(row))
	}
}

func PolicyUpdate(svc policy.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload updatePolicyRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		row, err := svc.Update(r.Context(), middleware.UserFromContext(r.Context()), policy.UpdateInput{
			SessionTimeoutMinutes:     payload.SessionTimeoutMinutes,
			PasswordExpiryDays:        payload.PasswordExpiryDays,
			WithdrawalMaxDays:         payload.WithdrawalMaxDays,
			EnforceSeparationOfDuties: payload.EnforceSeparationOfDuties,
			IPAddress:                 middleware.ClientIP(r),
			UserAgent:                 r.UserAgent(),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, policyResponseFromModel(row))
	}
}

type policyResponse struct {
	SessionTimeoutMinutes     int       `json:"session_timeout_minutes"`
	PasswordExpiryDays        int       `json:"password_expiry_days"`
	WithdrawalMaxDays         int       `json:"withdrawal_max_days"`
	EnforceSeparationOfDuties bool      `json:"enforce_separation_of_duties"`
	UpdatedAt                 time.Time `json:"updated_at"`
}

func policyResponseFromModel(m *models.SystemPolicy) policyResponse {
	return policyResponse{
		SessionTimeoutMinutes:     m.SessionTimeoutMinutes,
		PasswordExpiryDays:        m.PasswordExpiryDays,
		WithdrawalMaxDays:         m.WithdrawalMaxDays,
		EnforceSeparationOfDuties: m.EnforceSeparationOfDuties,
		UpdatedAt:                 m.UpdatedAt,
	}
}
