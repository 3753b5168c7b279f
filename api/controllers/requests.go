package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vaultarc/archive-backend/api/middleware"
	"github.com/vaultarc/archive-backend/api/responses"
	"github.com/vaultarc/archive-backend/api/validators"
	"github.com/vaultarc/archive-backend/internal/auth"
	"github.com/vaultarc/archive-backend/internal/workflow"
	"github.com/vaultarc/archive-backend/pkg/db/models"
	"github.com/vaultarc/archive-backend/pkg/enums"
	pkgerrors "github.com/vaultarc/archive-backend/pkg/errors"
	"github.com/vaultarc/archive-backend/pkg/logger"
	pkgpagination "github.com/vaultarc/archive-backend/pkg/pagination"
)

// resolveActor re-verifies the caller's password and assembles the signing
// identity every transition endpoint requires.
func resolveActor(r *http.Request, authSvc auth.Service, password string) (workflow.Actor, error) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		return workflow.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	verifiedAt, err := authSvc.ReverifyCredential(r.Context(), user, password)
	if err != nil {
		return workflow.Actor{}, err
	}
	return workflow.Actor{
		User:               user,
		PasswordVerifiedAt: verifiedAt,
		IPAddress:          middleware.ClientIP(r),
		UserAgent:          r.UserAgent(),
	}, nil
}

type documentSpecRequest struct {
	Name        string `json:"name" validate:"required"`
	Number      string `json:"number" validate:"required"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

type newCrateRequest struct {
	DepartmentID    string                `json:"department_id" validate:"required,uuid"`
	SectionID       *string               `json:"section_id" validate:"omitempty,uuid"`
	ToCentral       bool                  `json:"to_central"`
	ToBeRetained    bool                  `json:"to_be_retained"`
	DestructionDate *time.Time            `json:"destruction_date"`
	Documents       []documentSpecRequest `json:"documents" validate:"required,min=1,dive"`
}

type createRequestRequest struct {
	Type               string           `json:"type" validate:"required"`
	Purpose            string           `json:"purpose" validate:"required"`
	Password           string           `json:"password" validate:"required"`
	NewCrate           *newCrateRequest `json:"new_crate"`
	CrateID            *string          `json:"crate_id" validate:"omitempty,uuid"`
	ExpectedReturnDate *time.Time       `json:"expected_return_date"`
	FullWithdrawal     *bool            `json:"full_withdrawal"`
	DocumentIDs        []string         `json:"document_ids" validate:"omitempty,dive,uuid"`
}

func (req createRequestRequest) toInput() (workflow.CreateRequestInput, error) {
	requestType, err := enums.ParseRequestType(req.Type)
	if err != nil {
		return workflow.CreateRequestInput{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid request type")
	}

	input := workflow.CreateRequestInput{
		Type:               requestType,
		Purpose:            req.Purpose,
		ExpectedReturnDate: req.ExpectedReturnDate,
		FullWithdrawal:     req.FullWithdrawal == nil || *req.FullWithdrawal,
	}

	if req.CrateID != nil {
		crateID, err := uuid.Parse(*req.CrateID)
		if err != nil {
			return workflow.CreateRequestInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid crate_id")
		}
		input.CrateID = &crateID
	}

	for _, raw := range req.DocumentIDs {
		documentID, err := uuid.Parse(raw)
		if err != nil {
			return workflow.CreateRequestInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid document id")
		}
		input.DocumentIDs = append(input.DocumentIDs, documentID)
	}

	if req.NewCrate != nil {
		departmentID, err := uuid.Parse(req.NewCrate.DepartmentID)
		if err != nil {
			return workflow.CreateRequestInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid department_id")
		}
		spec := &workflow.NewCrateSpec{
			DepartmentID:    departmentID,
			ToCentral:       req.NewCrate.ToCentral,
			ToBeRetained:    req.NewCrate.ToBeRetained,
			DestructionDate: req.NewCrate.DestructionDate,
		}
		if req.NewCrate.SectionID != nil {
			sectionID, err := uuid.Parse(*req.NewCrate.SectionID)
			if err != nil {
				return workflow.CreateRequestInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid section_id")
			}
			spec.SectionID = &sectionID
		}
		for _, doc := range req.NewCrate.Documents {
			docType := enums.DocumentTypePhysical
			if doc.Type != "" {
				docType, err = enums.ParseDocumentType(doc.Type)
				if err != nil {
					return workflow.CreateRequestInput{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid document type")
				}
			}
			spec.Documents = append(spec.Documents, workflow.DocumentSpec{
				Name:        doc.Name,
				Number:      doc.Number,
				Type:        docType,
				Description: doc.Description,
			})
		}
		input.NewCrate = spec
	}

	return input, nil
}

func RequestCreate(svc workflow.Service, authSvc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createRequestRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actor, err := resolveActor(r, authSvc, payload.Password)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		request, err := svc.CreateRequest(r.Context(), actor, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, requestResponseFromModel(request))
	}
}

func RequestGet(svc workflow.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID, err := validators.ParsePathUUID(chi.URLParam(r, "requestId"), "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		request, err := svc.GetRequest(r.Context(), requestID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, requestResponseFromModel(request))
	}
}

func RequestList(svc workflow.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", 0, 0, pkgpagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := workflow.ListParams{}
		params.Limit = limit
		params.Cursor = r.URL.Query().Get("cursor")

		if raw := r.URL.Query().Get("type"); raw != "" {
			requestType, err := enums.ParseRequestType(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid request type"))
				return
			}
			params.Filters.Type = &requestType
		}
		if raw := r.URL.Query().Get("status"); raw != "" {
			status, err := enums.ParseRequestStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid request status"))
				return
			}
			params.Filters.Status = &status
		}
		if params.Filters.UnitID, err = validators.ParseQueryUUID(r, "unit_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if params.Filters.CrateID, err = validators.ParseQueryUUID(r, "crate_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListRequests(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]requestResponse, len(list.Requests))
		for i := range list.Requests {
			items[i] = requestResponseFromModel(&list.Requests[i])
		}
		responses.WriteSuccess(w, map[string]any{
			"requests":    items,
			"next_cursor": list.NextCursor,
		})
	}
}

func RequestListOverdue(svc workflow.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		asOf, err := validators.ParseQueryTime(r, "as_of")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		at := time.Now().UTC()
		if asOf != nil {
			at = *asOf
		}

		rows, err := svc.ListOverdueWithdrawals(r.Context(), at)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items := make([]requestResponse, len(rows))
		for i := range rows {
			items[i] = requestResponseFromModel(&rows[i])
		}
		responses.WriteSuccess(w, map[string]any{"requests": items})
	}
}

type transitionRequest struct {
	Password string `json:"password" validate:"required"`
}

type reasonedTransitionRequest struct {
	Password string `json:"password" validate:"required"`
	Reason   string `json:"reason" validate:"required"`
}

func RequestApprove(svc workflow.Service, authSvc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return transitionHandler(authSvc, logg, func(r *http.Request, actor workflow.Actor, requestID uuid.UUID) (*models.Request, error) {
		return svc.Approve(r.Context(), actor, requestID)
	})
}

func RequestIssue(svc workflow.Service, authSvc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return transitionHandler(authSvc, logg, func(r *http.Request, actor workflow.Actor, requestID uuid.UUID) (*models.Request, error) {
		return svc.IssueDocuments(r.Context(), actor, requestID)
	})
}

func RequestConfirmDestruction(svc workflow.Service, authSvc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return transitionHandler(authSvc, logg, func(r *http.Request, actor workflow.Actor, requestID uuid.UUID) (*models.Request, error) {
		return svc.ConfirmDestruction(r.Context(), actor, requestID)
	})
}

// transitionHandler covers the verbs whose body is just the signing password.
func transitionHandler(authSvc auth.Service, logg *logger.Logger, apply func(*http.Request, workflow.Actor, uuid.UUID) (*models.Request, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID, err := validators.ParsePathUUID(chi.URLParam(r, "requestId"), "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload transitionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor, err := resolveActor(r, authSvc, payload.Password)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		request, err := apply(r, actor, requestID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, requestResponseFromModel(request))
	}
}

func RequestReject(svc workflow.Service, authSvc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return reasonedTransitionHandler(authSvc, logg, func(r *http.Request, actor workflow.Actor, requestID uuid.UUID, reason string) (*models.Request, error) {
		return svc.Reject(r.Context(), actor, requestID, reason)
	})
}

func RequestSendBack(svc workflow.Service, authSvc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return reasonedTransitionHandler(authSvc, logg, func(r *http.Request, actor workflow.Actor, requestID uuid.UUID, reason string) (*models.Request, error) {
		return svc.SendBack(r.Context(), actor, requestID, reason)
	})
}

func reasonedTransitionHandler(authSvc auth.Service, logg *logger.Logger, apply func(*http.Request, workflow.Actor, uuid.UUID, string) (*models.Request, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID, err := validators.ParsePathUUID(chi.URLParam(r, "requestId"), "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload reasonedTransitionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor, err := resolveActor(r, authSvc, payload.Password)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		request, err := apply(r, actor, requestID, payload.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, requestResponseFromModel(request))
	}
}

type resubmitRequest struct {
	Password           string     `json:"password" validate:"required"`
	Purpose            string     `json:"purpose" validate:"required"`
	ExpectedReturnDate *time.Time `json:"expected_return_date"`
	DestructionDate    *time.Time `json:"destruction_date"`
	FullWithdrawal     *bool      `json:"full_withdrawal"`
	DocumentIDs        []string   `json:"document_ids" validate:"omitempty,dive,uuid"`
}

func RequestResubmit(svc workflow.Service, authSvc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID, err := validators.ParsePathUUID(chi.URLParam(r, "requestId"), "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload resubmitRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor, err := resolveActor(r, authSvc, payload.Password)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := workflow.ResubmitInput{
			Purpose:            payload.Purpose,
			ExpectedReturnDate: payload.ExpectedReturnDate,
			DestructionDate:    payload.DestructionDate,
			FullWithdrawal:     payload.FullWithdrawal,
		}
		for _, raw := range payload.DocumentIDs {
			documentID, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid document id"))
				return
			}
			input.DocumentIDs = append(input.DocumentIDs, documentID)
		}

		request, err := svc.Resubmit(r.Context(), actor, requestID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, requestResponseFromModel(request))
	}
}

type allocateRequest struct {
	Password          string `json:"password" validate:"required"`
	StorageLocationID string `json:"storage_location_id" validate:"required,uuid"`
}

func RequestAllocate(svc workflow.Service, authSvc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID, err := validators.ParsePathUUID(chi.URLParam(r, "requestId"), "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload allocateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor, err := resolveActor(r, authSvc, payload.Password)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		locationID, err := uuid.Parse(payload.StorageLocationID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid storage_location_id"))
			return
		}

		request, err := svc.AllocateStorage(r.Context(), actor, requestID, locationID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, requestResponseFromModel(request))
	}
}

type returnRequest struct {
	Password             string `json:"password" validate:"required"`
	DestinationStorageID string `json:"destination_storage_id" validate:"required,uuid"`
	Note                 string `json:"note"`
}

func RequestReturn(svc workflow.Service, authSvc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID, err := validators.ParsePathUUID(chi.URLParam(r, "requestId"), "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload returnRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor, err := resolveActor(r, authSvc, payload.Password)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		destinationID, err := uuid.Parse(payload.DestinationStorageID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid destination_storage_id"))
			return
		}

		request, err := svc.ReturnDocuments(r.Context(), actor, requestID, workflow.ReturnInput{
			DestinationStorageID: destinationID,
			Note:                 payload.Note,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, requestResponseFromModel(request))
	}
}

type crateResponse struct {
	ID              uuid.UUID         `json:"id"`
	Barcode         string            `json:"barcode"`
	Status          enums.CrateStatus `json:"status"`
	StorageLocation string            `json:"storage_location,omitempty"`
	DestructionDate *time.Time        `json:"destruction_date,omitempty"`
	UnitID          uuid.UUID         `json:"unit_id"`
	DepartmentID    uuid.UUID         `json:"department_id"`
	SectionID       *uuid.UUID        `json:"section_id,omitempty"`
	ToCentral       bool              `json:"to_central"`
	ToBeRetained    bool              `json:"to_be_retained"`
}

type sendBackResponse struct {
	Kind      enums.SendBackKind `json:"kind"`
	Reason    string             `json:"reason"`
	CreatedAt time.Time          `json:"created_at"`
}

type requestResponse struct {
	ID                 uuid.UUID           `json:"id"`
	Type               enums.RequestType   `json:"type"`
	Status             enums.RequestStatus `json:"status"`
	Crate              *crateResponse      `json:"crate,omitempty"`
	UnitID             uuid.UUID           `json:"unit_id"`
	RequestedByID      uuid.UUID           `json:"requested_by_id"`
	RequestDate        time.Time           `json:"request_date"`
	ApprovedByID       *uuid.UUID          `json:"approved_by_id,omitempty"`
	ApprovalDate       *time.Time          `json:"approval_date,omitempty"`
	AllocationDate     *time.Time          `json:"allocation_date,omitempty"`
	IssueDate          *time.Time          `json:"issue_date,omitempty"`
	ReturnDate         *time.Time          `json:"return_date,omitempty"`
	ExpectedReturnDate *time.Time          `json:"expected_return_date,omitempty"`
	Purpose            string              `json:"purpose"`
	FullWithdrawal     bool                `json:"full_withdrawal"`
	DocumentIDs        []uuid.UUID         `json:"document_ids,omitempty"`
	SendBacks          []sendBackResponse  `json:"send_backs,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
}

func requestResponseFromModel(m *models.Request) requestResponse {
	resp := requestResponse{
		ID:                 m.ID,
		Type:               m.RequestType,
		Status:             m.Status,
		UnitID:             m.UnitID,
		RequestedByID:      m.RequestedByID,
		RequestDate:        m.RequestDate,
		ApprovedByID:       m.ApprovedByID,
		ApprovalDate:       m.ApprovalDate,
		AllocationDate:     m.AllocationDate,
		IssueDate:          m.IssueDate,
		ReturnDate:         m.ReturnDate,
		ExpectedReturnDate: m.ExpectedReturnDate,
		Purpose:            m.Purpose,
		FullWithdrawal:     m.FullWithdrawal,
		CreatedAt:          m.CreatedAt,
	}
	if m.Crate != nil {
		crate := &crateResponse{
			ID:              m.Crate.ID,
			Barcode:         m.Crate.Barcode,
			Status:          m.Crate.Status,
			DestructionDate: m.Crate.DestructionDate,
			UnitID:          m.Crate.UnitID,
			DepartmentID:    m.Crate.DepartmentID,
			SectionID:       m.Crate.SectionID,
			ToCentral:       m.Crate.ToCentral,
			ToBeRetained:    m.Crate.ToBeRetained,
		}
		if m.Crate.StorageLocation != nil {
			crate.StorageLocation = m.Crate.StorageLocation.LocationString()
		}
		resp.Crate = crate
	}
	for _, link := range m.Documents {
		resp.DocumentIDs = append(resp.DocumentIDs, link.DocumentID)
	}
	for _, sb := range m.SendBacks {
		resp.SendBacks = append(resp.SendBacks, sendBackResponse{
			Kind:      sb.Kind,
			Reason:    sb.Reason,
			CreatedAt: sb.CreatedAt,
		})
	}
	return resp
}
