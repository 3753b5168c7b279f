package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vaultarc/archive-backend/api/middleware"
	"github.com/vaultarc/archive-backend/api/responses"
	"github.com/vaultarc/archive-backend/api/validators"
	"github.com/vaultarc/archive-backend/internal/signature"
	"github.com/vaultarc/archive-backend/pkg/db/models"
	"github.com/vaultarc/archive-backend/pkg/enums"
	pkgerrors "github.com/vaultarc/archive-backend/pkg/errors"
	"github.com/vaultarc/archive-backend/pkg/logger"
)

func SignatureListForTarget(svc signature.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, err := enums.ParseTargetKind(chi.URLParam(r, "targetKind"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid target kind"))
			return
		}
		targetID, err := validators.ParsePathUUID(chi.URLParam(r, "targetId"), "targetId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		records, err := svc.ListForTarget(r.Context(), kind, targetID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items := make([]signatureResponse, len(records))
		for i := range records {
			items[i] = signatureResponseFromModel(&records[i])
		}
		responses.WriteSuccess(w, map[string]any{"signatures": items})
	}
}

func SignatureGet(svc signature.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		signatureID, err := validators.ParsePathUUID(chi.URLParam(r, "signatureId"), "signatureId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		record, err := svc.Get(r.Context(), signatureID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, signatureResponseFromModel(record))
	}
}

// SignatureVerify re-computes both hashes of a stored signature and records
// the verification outcome.
func SignatureVerify(svc signature.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		signatureID, err := validators.ParsePathUUID(chi.URLParam(r, "signatureId"), "signatureId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		user := middleware.UserFromContext(r.Context())
		if user == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		result, err := svc.VerifyIntegrity(r.Context(), signatureID, user)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

type invalidateRequest struct {
	Reason string `json:"reason" validate:"required"`
}

func SignatureInvalidate(svc signature.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		signatureID, err := validators.ParsePathUUID(chi.URLParam(r, "signatureId"), "signatureId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		user := middleware.UserFromContext(r.Context())
		if user == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}
		var payload invalidateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.Invalidate(r.Context(), signature.InvalidateInput{
			SignatureID:   signatureID,
			InvalidatedBy: user,
			Reason:        payload.Reason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, signatureResponseFromModel(record))
	}
}

func SignatureListVerifications(svc signature.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		signatureID, err := validators.ParsePathUUID(chi.URLParam(r, "signatureId"), "signatureId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.ListVerifications(r.Context(), signatureID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items := make([]verificationResponse, len(rows))
		for i, row := range rows {
			items[i] = verificationResponse{
				ID:           row.ID,
				SignatureID:  row.SignatureID,
				VerifiedByID: row.VerifiedByID,
				VerifiedAt:   row.VerifiedAt,
				Result:       row.Result,
				Message:      row.Message,
			}
		}
		responses.WriteSuccess(w, map[string]any{"verifications": items})
	}
}

type signatureResponse struct {
	ID                 uuid.UUID           `json:"id"`
	SignerUsername     string              `json:"signer_username"`
	SignerFullName     string              `json:"signer_full_name"`
	SignerRole         string              `json:"signer_role"`
	Type               enums.SignatureType `json:"type"`
	Purpose            string              `json:"purpose"`
	SignedAt           time.Time           `json:"signed_at"`
	TargetKind         enums.TargetKind    `json:"target_kind"`
	TargetID           uuid.UUID           `json:"target_id"`
	TargetDescription  string              `json:"target_description,omitempty"`
	DataHash           string              `json:"data_hash"`
	SignatureHash      string              `json:"signature_hash"`
	IsValid            bool                `json:"is_valid"`
	InvalidationReason string              `json:"invalidation_reason,omitempty"`
	InvalidatedAt      *time.Time          `json:"invalidated_at,omitempty"`
}

func signatureResponseFromModel(m *models.SignatureRecord) signatureResponse {
	return signatureResponse{
		ID:                 m.ID,
		SignerUsername:     m.SignerUsername,
		SignerFullName:     m.SignerFullName,
		SignerRole:         m.SignerRole,
		Type:               m.SignatureType,
		Purpose:            m.Purpose,
		SignedAt:           m.SignedAt,
		TargetKind:         m.TargetKind,
		TargetID:           m.TargetID,
		TargetDescription:  m.TargetDescription,
		DataHash:           m.DataHash,
		SignatureHash:      m.SignatureHash,
		IsValid:            m.IsValid,
		InvalidationReason: m.InvalidationReason,
		InvalidatedAt:      m.InvalidatedAt,
	}
}

type verificationResponse struct {
	ID           uuid.UUID `json:"id"`
	SignatureID  uuid.UUID `json:"signature_id"`
	VerifiedByID uuid.UUID `json:"verified_by_id"`
	VerifiedAt   time.Time `json:"verified_at"`
	Result       bool      `json:"result"`
	Message      string    `json:"message"`
}
