package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vaultarc/archive-backend/api/responses"
	"github.com/vaultarc/archive-backend/api/validators"
	"github.com/vaultarc/archive-backend/internal/audit"
	"github.com/vaultarc/archive-backend/pkg/db/models"
	"github.com/vaultarc/archive-backend/pkg/enums"
	pkgerrors "github.com/vaultarc/archive-backend/pkg/errors"
	"github.com/vaultarc/archive-backend/pkg/logger"
	pkgpagination "github.com/vaultarc/archive-backend/pkg/pagination"
)

func AuditList(svc audit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", 0, 0, pkgpagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := audit.QueryParams{}
		params.Limit = limit
		params.Cursor = r.URL.Query().Get("cursor")

		if raw := r.URL.Query().Get("action"); raw != "" {
			action, err := enums.ParseAuditAction(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid audit action"))
				return
			}
			params.Filters.Action = &action
		}
		if params.Filters.ActorID, err = validators.ParseQueryUUID(r, "actor_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if params.Filters.RequestID, err = validators.ParseQueryUUID(r, "request_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if params.Filters.CrateID, err = validators.ParseQueryUUID(r, "crate_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if params.Filters.From, err = validators.ParseQueryTime(r, "from"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if params.Filters.To, err = validators.ParseQueryTime(r, "to"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.Query(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]auditEntryResponse, len(list.Entries))
		for i := range list.Entries {
			items[i] = auditEntryResponseFromModel(&list.Entries[i])
		}
		responses.WriteSuccess(w, map[string]any{
			"entries":     items,
			"next_cursor": list.NextCursor,
		})
	}
}

func AuditGet(svc audit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entryID, err := validators.ParsePathUUID(chi.URLParam(r, "entryId"), "entryId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entry, err := svc.Get(r.Context(), entryID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, auditEntryResponseFromModel(entry))
	}
}

type auditEntryResponse struct {
	ID                uuid.UUID         `json:"id"`
	ActionTime        time.Time         `json:"action_time"`
	Action            enums.AuditAction `json:"action"`
	ActorID           *uuid.UUID        `json:"actor_id,omitempty"`
	AttemptedUsername string            `json:"attempted_username,omitempty"`
	RequestID         *uuid.UUID        `json:"request_id,omitempty"`
	CrateID           *uuid.UUID        `json:"crate_id,omitempty"`
	StorageLocationID *uuid.UUID        `json:"storage_location_id,omitempty"`
	DocumentID        *uuid.UUID        `json:"document_id,omitempty"`
	Message           string            `json:"message"`
	IPAddress         string            `json:"ip_address,omitempty"`
	UserAgent         string            `json:"user_agent,omitempty"`
}

func auditEntryResponseFromModel(m *models.AuditEntry) auditEntryResponse {
	return auditEntryResponse{
		ID:                m.ID,
		ActionTime:        m.ActionTime,
		Action:            m.Action,
		ActorID:           m.ActorID,
		AttemptedUsername: m.AttemptedUsername,
		RequestID:         m.RequestID,
		CrateID:           m.CrateID,
		StorageLocationID: m.StorageLocationID,
		DocumentID:        m.DocumentID,
		Message:           m.Message,
		IPAddress:         m.IPAddress,
		UserAgent:         m.UserAgent,
	}
}
