package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vaultarc/archive-backend/internal/audit"
	"github.com/vaultarc/archive-backend/internal/barcode"
	"github.com/vaultarc/archive-backend/internal/notify"
	"github.com/vaultarc/archive-backend/internal/policy"
	"github.com/vaultarc/archive-backend/internal/privilege"
	"github.com/vaultarc/archive-backend/internal/signature"
	"github.com/vaultarc/archive-backend/pkg/db/models"
	"github.com/vaultarc/archive-backend/pkg/enums"
	pkgerrors "github.com/vaultarc/archive-backend/pkg/errors"
	"github.com/vaultarc/archive-backend/pkg/logger"
	"github.com/vaultarc/archive-backend/pkg/metrics"
	pkgpagination "github.com/vaultarc/archive-backend/pkg/pagination"
)

// Service owns every request and crate transition. Each operation is one
// atomic unit: guard checks, state mutation, signature, and audit entry
// commit together or not at all. Notification happens after commit and is
// allowed to fail.
type Service interface {
	CreateRequest(ctx context.Context, actor Actor, input CreateRequestInput) (*models.Request, error)
	Approve(ctx context.Context, actor Actor, requestID uuid.UUID) (*models.Request, error)
	Reject(ctx context.Context, actor Actor, requestID uuid.UUID, reason string) (*models.Request, error)
	SendBack(ctx context.Context, actor Actor, requestID uuid.UUID, reason string) (*models.Request, error)
	Resubmit(ctx context.Context, actor Actor, requestID uuid.UUID, input ResubmitInput) (*models.Request, error)
	AllocateStorage(ctx context.Context, actor Actor, requestID, storageLocationID uuid.UUID) (*models.Request, error)
	IssueDocuments(ctx context.Context, actor Actor, requestID uuid.UUID) (*models.Request, error)
	ReturnDocuments(ctx context.Context, actor Actor, requestID uuid.UUID, input ReturnInput) (*models.Request, error)
	ConfirmDestruction(ctx context.Context, actor Actor, requestID uuid.UUID) (*models.Request, error)
	GetRequest(ctx context.Context, id uuid.UUID) (*models.Request, error)
	ListRequests(ctx context.Context, params ListParams) (*RequestList, error)
	ListOverdueWithdrawals(ctx context.Context, asOf time.Time) ([]models.Request, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// policySource resolves the live compliance policy; transitions consult it
// rather than caching a value at construction so a policy change applies to
// the very next call.
type policySource interface {
	Resolve(ctx context.Context) (policy.Effective, error)
}

type service struct {
	db         txRunner
	repo       Repository
	audits     audit.Service
	signatures signature.Service
	privileges privilege.Service
	sequencer  barcode.Sequencer
	dispatcher *notify.Dispatcher
	logg       *logger.Logger
	metrics    *metrics.ComplianceMetrics
	policies   policySource
}

// NewService builds the workflow engine.
func NewService(
	db txRunner,
	repo Repository,
	audits audit.Service,
	signatures signature.Service,
	privileges privilege.Service,
	sequencer barcode.Sequencer,
	dispatcher *notify.Dispatcher,
	logg *logger.Logger,
	m *metrics.ComplianceMetrics,
	policies policySource,
) (Service, error) {
	if db == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("workflow repository required")
	}
	if audits == nil {
		return nil, fmt.Errorf("audit service required")
	}
	if signatures == nil {
		return nil, fmt.Errorf("signature service required")
	}
	if privileges == nil {
		return nil, fmt.Errorf("privilege service required")
	}
	if sequencer == nil {
		return nil, fmt.Errorf("barcode sequencer required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if policies == nil {
		return nil, fmt.Errorf("policy source required")
	}
	return &service{
		db:         db,
		repo:       repo,
		audits:     audits,
		signatures: signatures,
		privileges: privileges,
		sequencer:  sequencer,
		dispatcher: dispatcher,
		logg:       logg,
		metrics:    m,
		policies:   policies,
	}, nil
}

func (s *service) CreateRequest(ctx context.Context, actor Actor, input CreateRequestInput) (*models.Request, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown request type")
	}
	if err := s.privileges.Require(ctx, actor.User, enums.PrivilegeCreateRequest); err != nil {
		s.metrics.IncGuardFailure(input.Type.String(), "create")
		return nil, err
	}
	if actor.User.UnitID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "requester has no unit assignment")
	}
	if input.Type == enums.RequestTypeWithdrawal && input.ExpectedReturnDate != nil {
		pol, err := s.policies.Resolve(ctx)
		if err != nil {
			return nil, err
		}
		if pol.WithdrawalMaxDays > 0 {
			latest := time.Now().UTC().AddDate(0, 0, pol.WithdrawalMaxDays)
			if input.ExpectedReturnDate.After(latest) {
				return nil, pkgerrors.New(pkgerrors.CodeValidation,
					fmt.Sprintf("expected return date exceeds the %d-day withdrawal window", pol.WithdrawalMaxDays))
			}
		}
	}

	var requestID uuid.UUID
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		var crate *models.Crate
		var err error
		switch input.Type {
		case enums.RequestTypeStorage:
			crate, err = s.createCrate(ctx, tx, txRepo, actor, input)
		case enums.RequestTypeWithdrawal:
			crate, err = s.claimCrateForWithdrawal(ctx, txRepo, input)
		case enums.RequestTypeDestruction:
			crate, err = s.claimCrateForDestruction(ctx, txRepo, input)
		}
		if err != nil {
			return err
		}

		request := &models.Request{
			ID:                 uuid.New(),
			RequestType:        input.Type,
			Status:             enums.RequestStatusPending,
			CrateID:            crate.ID,
			UnitID:             *actor.User.UnitID,
			RequestedByID:      actor.User.ID,
			RequestDate:        time.Now().UTC(),
			ExpectedReturnDate: input.ExpectedReturnDate,
			Purpose:            input.Purpose,
			FullWithdrawal:     input.Type != enums.RequestTypeWithdrawal || input.FullWithdrawal,
		}
		if err := txRepo.CreateRequest(ctx, request); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create request")
		}
		requestID = request.ID

		if input.Type == enums.RequestTypeWithdrawal && !input.FullWithdrawal {
			if len(input.DocumentIDs) == 0 {
				return pkgerrors.New(pkgerrors.CodeValidation, "partial withdrawal requires document ids")
			}
			links := make([]models.RequestDocument, len(input.DocumentIDs))
			for i, documentID := range input.DocumentIDs {
				links[i] = models.RequestDocument{ID: uuid.New(), RequestID: request.ID, DocumentID: documentID}
			}
			if err := txRepo.CreateRequestDocuments(ctx, links); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "link withdrawal documents")
			}
		}

		entry, err := s.audits.Append(ctx, tx, audit.AppendInput{
			Action:    enums.AuditActionCreated,
			ActorID:   &actor.User.ID,
			RequestID: &request.ID,
			CrateID:   &crate.ID,
			Message:   fmt.Sprintf("%s request created for crate %s", input.Type, crate.Barcode),
			IPAddress: actor.IPAddress,
			UserAgent: actor.UserAgent,
		})
		if err != nil {
			return err
		}

		_, err = s.signatures.Sign(ctx, tx, signature.SignInput{
			Signer:             actor.User,
			PasswordVerifiedAt: actor.PasswordVerifiedAt,
			Type:               enums.SignatureTypeCreate,
			Purpose:            fmt.Sprintf("Create %s request", input.Type),
			TargetKind:         enums.TargetKindRequest,
			TargetID:           request.ID,
			TargetDescription:  fmt.Sprintf("%s request on crate %s", input.Type, crate.Barcode),
			Payload:            transitionPayload(request, crate, string(enums.RequestStatusPending)),
			AuditEntryID:       &entry.ID,
			IPAddress:          actor.IPAddress,
			UserAgent:          actor.UserAgent,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition(input.Type.String(), "create")
	request, err := s.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	s.notifyAfterCommit(request, actor, "request.created", fmt.Sprintf("%s request created", input.Type))
	return request, nil
}

// createCrate registers the crate and its documents for a storage request.
// The barcode counter row stays locked until the surrounding transaction
// commits, which is what keeps sequences gapless.
func (s *service) createCrate(ctx context.Context, tx *gorm.DB, txRepo Repository, actor Actor, input CreateRequestInput) (*models.Crate, error) {
	if input.NewCrate == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "storage request requires a crate specification")
	}
	spec := input.NewCrate
	if len(spec.Documents) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "storage request requires at least one document")
	}

	unit, err := txRepo.FindUnitByID(ctx, *actor.User.UnitID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "requester unit not found")
	}
	department, err := txRepo.FindDepartmentByID(ctx, spec.DepartmentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "department not found")
	}
	sectionName := ""
	if spec.SectionID != nil {
		section, err := txRepo.FindSectionByID(ctx, *spec.SectionID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "section not found")
		}
		sectionName = section.Name
	}

	code, err := s.sequencer.Next(ctx, tx, barcode.Scope{
		UnitID:       unit.ID,
		UnitCode:     unit.Code,
		DepartmentID: department.ID,
		Department:   department.Name,
		SectionID:    spec.SectionID,
		Section:      sectionName,
		Year:         time.Now().UTC().Year(),
	})
	if err != nil {
		return nil, err
	}

	crate := &models.Crate{
		ID:              uuid.New(),
		Barcode:         code,
		Status:          enums.CrateStatusActive,
		DestructionDate: spec.DestructionDate,
		UnitID:          unit.ID,
		DepartmentID:    department.ID,
		SectionID:       spec.SectionID,
		CreatedByID:     actor.User.ID,
		ToCentral:       spec.ToCentral,
		ToBeRetained:    spec.ToBeRetained,
	}
	if err := txRepo.CreateCrate(ctx, crate); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create crate")
	}

	documents := make([]models.Document, len(spec.Documents))
	links := make([]models.CrateDocument, len(spec.Documents))
	for i, doc := range spec.Documents {
		if doc.Name == "" || doc.Number == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "documents require a name and number")
		}
		docType := doc.Type
		if docType == "" {
			docType = enums.DocumentTypePhysical
		}
		documents[i] = models.Document{
			ID:          uuid.New(),
			Name:        doc.Name,
			Number:      doc.Number,
			Type:        docType,
			Description: doc.Description,
		}
		links[i] = models.CrateDocument{ID: uuid.New(), CrateID: crate.ID, DocumentID: documents[i].ID}
	}
	if err := txRepo.CreateDocuments(ctx, documents); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "register documents")
	}
	if err := txRepo.CreateCrateDocuments(ctx, links); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "link documents to crate")
	}
	return crate, nil
}

// claimCrateForWithdrawal locks the crate and flips it to Withdrawn before
// any approval happens, so a second withdrawal or a relocation cannot start
// against the same crate while this one is open.
func (s *service) claimCrateForWithdrawal(ctx context.Context, txRepo Repository, input CreateRequestInput) (*models.Crate, error) {
	if input.CrateID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "withdrawal request requires a crate id")
	}
	crate, err := s.lockCrate(ctx, txRepo, *input.CrateID)
	if err != nil {
		return nil, err
	}
	if !crate.Status.Withdrawable() {
		s.metrics.IncGuardFailure(enums.RequestTypeWithdrawal.String(), "create")
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("crate %s is %s and cannot be withdrawn", crate.Barcode, crate.Status))
	}
	if err := txRepo.UpdateCrateFields(ctx, crate.ID, map[string]any{"status": enums.CrateStatusWithdrawn}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark crate withdrawn")
	}
	crate.Status = enums.CrateStatusWithdrawn
	return crate, nil
}

func (s *service) claimCrateForDestruction(ctx context.Context, txRepo Repository, input CreateRequestInput) (*models.Crate, error) {
	if input.CrateID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "destruction request requires a crate id")
	}
	crate, err := s.lockCrate(ctx, txRepo, *input.CrateID)
	if err != nil {
		return nil, err
	}
	if !crate.Status.Withdrawable() {
		s.metrics.IncGuardFailure(enums.RequestTypeDestruction.String(), "create")
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("crate %s is %s and cannot be destroyed", crate.Barcode, crate.Status))
	}
	return crate, nil
}

func (s *service) Approve(ctx context.Context, actor Actor, requestID uuid.UUID) (*models.Request, error) {
	return s.review(ctx, actor, requestID, ActionApprove, "")
}

func (s *service) Reject(ctx context.Context, actor Actor, requestID uuid.UUID, reason string) (*models.Request, error) {
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rejection requires a reason")
	}
	return s.review(ctx, actor, requestID, ActionReject, reason)
}

func (s *service) SendBack(ctx context.Context, actor Actor, requestID uuid.UUID, reason string) (*models.Request, error) {
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "send-back requires a reason")
	}
	return s.review(ctx, actor, requestID, ActionSendBack, reason)
}

// review handles the three approval-capability verbs, which share guards:
// reviewable status, approve privilege, and separation of duties.
func (s *service) review(ctx context.Context, actor Actor, requestID uuid.UUID, action Action, reason string) (*models.Request, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	var (
		outcomeType enums.RequestType
		eventKind   string
	)
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		request, err := s.lockRequest(ctx, txRepo, requestID)
		if err != nil {
			return err
		}
		outcomeType = request.RequestType

		next, err := NextStatus(request.RequestType, action, request.Status)
		if err != nil {
			s.metrics.IncGuardFailure(request.RequestType.String(), string(action))
			return err
		}
		if err := s.privileges.Require(ctx, actor.User, enums.PrivilegeApproveRequest); err != nil {
			s.metrics.IncGuardFailure(request.RequestType.String(), string(action))
			return err
		}
		pol, err := s.policies.Resolve(ctx)
		if err != nil {
			return err
		}
		if pol.EnforceSeparationOfDuties && actor.User.ID == request.RequestedByID {
			s.metrics.IncGuardFailure(request.RequestType.String(), string(action))
			return pkgerrors.New(pkgerrors.CodeForbidden, "requester cannot review their own request")
		}

		now := time.Now().UTC()
		fields := map[string]any{"status": next}
		if action == ActionApprove {
			fields["approved_by_id"] = actor.User.ID
			fields["approval_date"] = now
		}
		if err := txRepo.UpdateRequestFields(ctx, request.ID, fields); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update request status")
		}

		crate, err := txRepo.FindCrateByID(ctx, request.CrateID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load crate")
		}

		// Rejecting a still-unissued withdrawal releases the crate.
		if action == ActionReject && request.RequestType == enums.RequestTypeWithdrawal && crate.Status == enums.CrateStatusWithdrawn {
			if err := txRepo.UpdateCrateFields(ctx, crate.ID, map[string]any{"status": enums.CrateStatusActive}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release crate")
			}
		}

		if action == ActionSendBack {
			if err := txRepo.CreateSendBack(ctx, &models.SendBack{
				ID:          uuid.New(),
				RequestID:   request.ID,
				Kind:        enums.SendBackKindChangeRequest,
				Reason:      reason,
				CreatedByID: &actor.User.ID,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record send-back reason")
			}
		}

		auditAction := map[Action]enums.AuditAction{
			ActionApprove:  enums.AuditActionApproved,
			ActionReject:   enums.AuditActionRejected,
			ActionSendBack: enums.AuditActionSentBack,
		}[action]
		message := fmt.Sprintf("%s request %s", request.RequestType, auditAction)
		if reason != "" {
			message = fmt.Sprintf("%s: %s", message, reason)
		}
		entry, err := s.audits.Append(ctx, tx, audit.AppendInput{
			Action:    auditAction,
			ActorID:   &actor.User.ID,
			RequestID: &request.ID,
			CrateID:   &request.CrateID,
			Message:   message,
			IPAddress: actor.IPAddress,
			UserAgent: actor.UserAgent,
		})
		if err != nil {
			return err
		}

		signatureType := map[Action]enums.SignatureType{
			ActionApprove:  enums.SignatureTypeApprove,
			ActionReject:   enums.SignatureTypeReject,
			ActionSendBack: enums.SignatureTypeReview,
		}[action]
		request.Status = next
		_, err = s.signatures.Sign(ctx, tx, signature.SignInput{
			Signer:             actor.User,
			PasswordVerifiedAt: actor.PasswordVerifiedAt,
			Type:               signatureType,
			Purpose:            message,
			TargetKind:         enums.TargetKindRequest,
			TargetID:           request.ID,
			TargetDescription:  fmt.Sprintf("%s request on crate %s", request.RequestType, crate.Barcode),
			Payload:            transitionPayload(request, crate, reason),
			AuditEntryID:       &entry.ID,
			IPAddress:          actor.IPAddress,
			UserAgent:          actor.UserAgent,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition(outcomeType.String(), string(action))
	request, err := s.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	eventKind = "request." + string(map[Action]enums.AuditAction{
		ActionApprove:  enums.AuditActionApproved,
		ActionReject:   enums.AuditActionRejected,
		ActionSendBack: enums.AuditActionSentBack,
	}[action])
	s.notifyAfterCommit(request, actor, eventKind, fmt.Sprintf("%s request %s", request.RequestType, request.Status))
	return request, nil
}

func (s *service) Resubmit(ctx context.Context, actor Actor, requestID uuid.UUID, input ResubmitInput) (*models.Request, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	var outcomeType enums.RequestType
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		request, err := s.lockRequest(ctx, txRepo, requestID)
		if err != nil {
			return err
		}
		outcomeType = request.RequestType

		next, err := NextStatus(request.RequestType, ActionResubmit, request.Status)
		if err != nil {
			s.metrics.IncGuardFailure(request.RequestType.String(), string(ActionResubmit))
			return err
		}
		if request.RequestedByID != actor.User.ID {
			s.metrics.IncGuardFailure(request.RequestType.String(), string(ActionResubmit))
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the requester may resubmit")
		}

		// Full payload replacement: the request restarts approval with the
		// amended values, not a patch of the old ones.
		fields := map[string]any{
			"status":  next,
			"purpose": input.Purpose,
		}
		if request.RequestType == enums.RequestTypeWithdrawal {
			fields["expected_return_date"] = input.ExpectedReturnDate
			if input.FullWithdrawal != nil {
				fields["full_withdrawal"] = *input.FullWithdrawal
			}
		}
		if err := txRepo.UpdateRequestFields(ctx, request.ID, fields); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update request")
		}

		if request.RequestType == enums.RequestTypeWithdrawal && len(input.DocumentIDs) > 0 {
			links := make([]models.RequestDocument, len(input.DocumentIDs))
			for i, documentID := range input.DocumentIDs {
				links[i] = models.RequestDocument{ID: uuid.New(), RequestID: request.ID, DocumentID: documentID}
			}
			if err := txRepo.ReplaceRequestDocuments(ctx, request.ID, links); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replace withdrawal documents")
			}
		}
		if input.DestructionDate != nil {
			if err := txRepo.UpdateCrateFields(ctx, request.CrateID, map[string]any{"destruction_date": input.DestructionDate}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update crate destruction date")
			}
		}

		crate, err := txRepo.FindCrateByID(ctx, request.CrateID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load crate")
		}

		entry, err := s.audits.Append(ctx, tx, audit.AppendInput{
			Action:    enums.AuditActionUpdated,
			ActorID:   &actor.User.ID,
			RequestID: &request.ID,
			CrateID:   &request.CrateID,
			Message:   fmt.Sprintf("%s request amended and resubmitted", request.RequestType),
			IPAddress: actor.IPAddress,
			UserAgent: actor.UserAgent,
		})
		if err != nil {
			return err
		}

		request.Status = next
		request.Purpose = input.Purpose
		_, err = s.signatures.Sign(ctx, tx, signature.SignInput{
			Signer:             actor.User,
			PasswordVerifiedAt: actor.PasswordVerifiedAt,
			Type:               enums.SignatureTypeModify,
			Purpose:            fmt.Sprintf("Resubmit %s request", request.RequestType),
			TargetKind:         enums.TargetKindRequest,
			TargetID:           request.ID,
			TargetDescription:  fmt.Sprintf("%s request on crate %s", request.RequestType, crate.Barcode),
			Payload:            transitionPayload(request, crate, input.Purpose),
			AuditEntryID:       &entry.ID,
			IPAddress:          actor.IPAddress,
			UserAgent:          actor.UserAgent,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition(outcomeType.String(), string(ActionResubmit))
	request, err := s.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	s.notifyAfterCommit(request, actor, "request.resubmitted", fmt.Sprintf("%s request resubmitted", request.RequestType))
	return request, nil
}

func (s *service) AllocateStorage(ctx context.Context, actor Actor, requestID, storageLocationID uuid.UUID) (*models.Request, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if storageLocationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "storage location id is required")
	}
	if err := s.privileges.Require(ctx, actor.User, enums.PrivilegeAllocateStorage); err != nil {
		return nil, err
	}

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		request, err := s.lockRequest(ctx, txRepo, requestID)
		if err != nil {
			return err
		}
		if request.RequestType != enums.RequestTypeStorage {
			s.metrics.IncGuardFailure(request.RequestType.String(), string(ActionAllocate))
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only storage requests are allocated")
		}
		next, err := NextStatus(request.RequestType, ActionAllocate, request.Status)
		if err != nil {
			s.metrics.IncGuardFailure(request.RequestType.String(), string(ActionAllocate))
			return err
		}

		// The crate is the contended resource: two allocators racing for it
		// serialize here, and the loser fails the status guard above on retry.
		crate, err := s.lockCrate(ctx, txRepo, request.CrateID)
		if err != nil {
			return err
		}
		location, err := txRepo.FindStorageLocationByID(ctx, storageLocationID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "storage location not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load storage location")
		}

		now := time.Now().UTC()
		if err := txRepo.UpdateRequestFields(ctx, request.ID, map[string]any{
			"status":          next,
			"allocated_by_id": actor.User.ID,
			"allocation_date": now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete request")
		}
		if err := txRepo.UpdateCrateFields(ctx, crate.ID, map[string]any{
			"storage_location_id": location.ID,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign storage location")
		}

		entry, err := s.audits.Append(ctx, tx, audit.AppendInput{
			Action:            enums.AuditActionAllocated,
			ActorID:           &actor.User.ID,
			RequestID:         &request.ID,
			CrateID:           &crate.ID,
			StorageLocationID: &location.ID,
			Message:           fmt.Sprintf("crate %s allocated to %s", crate.Barcode, location.LocationString()),
			IPAddress:         actor.IPAddress,
			UserAgent:         actor.UserAgent,
		})
		if err != nil {
			return err
		}

		request.Status = next
		_, err = s.signatures.Sign(ctx, tx, signature.SignInput{
			Signer:             actor.User,
			PasswordVerifiedAt: actor.PasswordVerifiedAt,
			Type:               enums.SignatureTypeAllocate,
			Purpose:            fmt.Sprintf("Allocate crate %s to %s", crate.Barcode, location.LocationString()),
			TargetKind:         enums.TargetKindRequest,
			TargetID:           request.ID,
			TargetDescription:  fmt.Sprintf("storage request on crate %s", crate.Barcode),
			Payload:            transitionPayload(request, crate, location.LocationString()),
			AuditEntryID:       &entry.ID,
			IPAddress:          actor.IPAddress,
			UserAgent:          actor.UserAgent,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition(enums.RequestTypeStorage.String(), string(ActionAllocate))
	request, err := s.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	s.notifyAfterCommit(request, actor, "request.allocated", "storage request completed")
	return request, nil
}

func (s *service) IssueDocuments(ctx context.Context, actor Actor, requestID uuid.UUID) (*models.Request, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := s.privileges.Require(ctx, actor.User, enums.PrivilegeIssueDocuments); err != nil {
		return nil, err
	}

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		request, err := s.lockRequest(ctx, txRepo, requestID)
		if err != nil {
			return err
		}
		next, err := NextStatus(request.RequestType, ActionIssue, request.Status)
		if err != nil {
			s.metrics.IncGuardFailure(request.RequestType.String(), string(ActionIssue))
			return err
		}

		now := time.Now().UTC()
		if err := txRepo.UpdateRequestFields(ctx, request.ID, map[string]any{
			"status":       next,
			"issued_by_id": actor.User.ID,
			"issue_date":   now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "issue request")
		}

		crate, err := txRepo.FindCrateByID(ctx, request.CrateID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load crate")
		}

		entry, err := s.audits.Append(ctx, tx, audit.AppendInput{
			Action:    enums.AuditActionIssued,
			ActorID:   &actor.User.ID,
			RequestID: &request.ID,
			CrateID:   &crate.ID,
			Message:   fmt.Sprintf("documents issued from crate %s", crate.Barcode),
			IPAddress: actor.IPAddress,
			UserAgent: actor.UserAgent,
		})
		if err != nil {
			return err
		}

		request.Status = next
		_, err = s.signatures.Sign(ctx, tx, signature.SignInput{
			Signer:             actor.User,
			PasswordVerifiedAt: actor.PasswordVerifiedAt,
			Type:               enums.SignatureTypeIssue,
			Purpose:            fmt.Sprintf("Issue documents from crate %s", crate.Barcode),
			TargetKind:         enums.TargetKindRequest,
			TargetID:           request.ID,
			TargetDescription:  fmt.Sprintf("withdrawal request on crate %s", crate.Barcode),
			Payload:            transitionPayload(request, crate, ""),
			AuditEntryID:       &entry.ID,
			IPAddress:          actor.IPAddress,
			UserAgent:          actor.UserAgent,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition(enums.RequestTypeWithdrawal.String(), string(ActionIssue))
	request, err := s.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	s.notifyAfterCommit(request, actor, "request.issued", "documents issued")
	return request, nil
}

// ReturnDocuments closes an issued withdrawal. The return is a storage
// re-allocation, so it takes the same crate lock as AllocateStorage.
func (s *service) ReturnDocuments(ctx context.Context, actor Actor, requestID uuid.UUID, input ReturnInput) (*models.Request, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if input.DestinationStorageID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "destination storage id is required")
	}
	if err := s.privileges.Require(ctx, actor.User, enums.PrivilegeIssueDocuments); err != nil {
		return nil, err
	}

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		request, err := s.lockRequest(ctx, txRepo, requestID)
		if err != nil {
			return err
		}
		next, err := NextStatus(request.RequestType, ActionReturn, request.Status)
		if err != nil {
			s.metrics.IncGuardFailure(request.RequestType.String(), string(ActionReturn))
			return err
		}

		crate, err := s.lockCrate(ctx, txRepo, request.CrateID)
		if err != nil {
			return err
		}
		location, err := txRepo.FindStorageLocationByID(ctx, input.DestinationStorageID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "storage location not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load storage location")
		}

		now := time.Now().UTC()
		if err := txRepo.UpdateRequestFields(ctx, request.ID, map[string]any{
			"status":      next,
			"return_date": now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "close withdrawal")
		}
		if err := txRepo.UpdateCrateFields(ctx, crate.ID, map[string]any{
			"status":              enums.CrateStatusActive,
			"storage_location_id": location.ID,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore crate")
		}

		if input.Note != "" {
			if err := txRepo.CreateSendBack(ctx, &models.SendBack{
				ID:          uuid.New(),
				RequestID:   request.ID,
				Kind:        enums.SendBackKindReturnNote,
				Reason:      input.Note,
				CreatedByID: &actor.User.ID,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record return note")
			}
		}

		entry, err := s.audits.Append(ctx, tx, audit.AppendInput{
			Action:            enums.AuditActionReturned,
			ActorID:           &actor.User.ID,
			RequestID:         &request.ID,
			CrateID:           &crate.ID,
			StorageLocationID: &location.ID,
			Message:           fmt.Sprintf("documents returned to %s", location.LocationString()),
			IPAddress:         actor.IPAddress,
			UserAgent:         actor.UserAgent,
		})
		if err != nil {
			return err
		}

		request.Status = next
		_, err = s.signatures.Sign(ctx, tx, signature.SignInput{
			Signer:             actor.User,
			PasswordVerifiedAt: actor.PasswordVerifiedAt,
			Type:               enums.SignatureTypeReturn,
			Purpose:            fmt.Sprintf("Return documents to %s", location.LocationString()),
			TargetKind:         enums.TargetKindRequest,
			TargetID:           request.ID,
			TargetDescription:  fmt.Sprintf("withdrawal request on crate %s", crate.Barcode),
			Payload:            transitionPayload(request, crate, location.LocationString()),
			AuditEntryID:       &entry.ID,
			IPAddress:          actor.IPAddress,
			UserAgent:          actor.UserAgent,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition(enums.RequestTypeWithdrawal.String(), string(ActionReturn))
	request, err := s.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	s.notifyAfterCommit(request, actor, "request.returned", "documents returned")
	return request, nil
}

func (s *service) ConfirmDestruction(ctx context.Context, actor Actor, requestID uuid.UUID) (*models.Request, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := s.privileges.Require(ctx, actor.User, enums.PrivilegeConfirmDestruction); err != nil {
		return nil, err
	}

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		request, err := s.lockRequest(ctx, txRepo, requestID)
		if err != nil {
			return err
		}
		next, err := NextStatus(request.RequestType, ActionConfirmDestruction, request.Status)
		if err != nil {
			s.metrics.IncGuardFailure(request.RequestType.String(), string(ActionConfirmDestruction))
			return err
		}

		crate, err := s.lockCrate(ctx, txRepo, request.CrateID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if err := txRepo.UpdateRequestFields(ctx, request.ID, map[string]any{
			"status": next,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete destruction request")
		}
		// The storage location reference stays on the crate: the slot is
		// freed for future allocation, not erased from history.
		if err := txRepo.UpdateCrateFields(ctx, crate.ID, map[string]any{
			"status":           enums.CrateStatusDestroyed,
			"destruction_date": now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "destroy crate")
		}

		entry, err := s.audits.Append(ctx, tx, audit.AppendInput{
			Action:    enums.AuditActionDestroyed,
			ActorID:   &actor.User.ID,
			RequestID: &request.ID,
			CrateID:   &crate.ID,
			Message:   fmt.Sprintf("crate %s destroyed", crate.Barcode),
			IPAddress: actor.IPAddress,
			UserAgent: actor.UserAgent,
		})
		if err != nil {
			return err
		}

		request.Status = next
		_, err = s.signatures.Sign(ctx, tx, signature.SignInput{
			Signer:             actor.User,
			PasswordVerifiedAt: actor.PasswordVerifiedAt,
			Type:               enums.SignatureTypeDestroy,
			Purpose:            fmt.Sprintf("Confirm destruction of crate %s", crate.Barcode),
			TargetKind:         enums.TargetKindCrate,
			TargetID:           crate.ID,
			TargetDescription:  fmt.Sprintf("crate %s", crate.Barcode),
			Payload:            transitionPayload(request, crate, ""),
			AuditEntryID:       &entry.ID,
			IPAddress:          actor.IPAddress,
			UserAgent:          actor.UserAgent,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition(enums.RequestTypeDestruction.String(), string(ActionConfirmDestruction))
	request, err := s.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	s.notifyAfterCommit(request, actor, "request.destroyed", "crate destroyed")
	return request, nil
}

func (s *service) GetRequest(ctx context.Context, id uuid.UUID) (*models.Request, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request id is required")
	}
	request, err := s.repo.FindRequestByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load request")
	}
	return request, nil
}

func (s *service) ListRequests(ctx context.Context, params ListParams) (*RequestList, error) {
	limit := pkgpagination.NormalizeLimit(params.Limit)
	query := listQuery{
		filters: params.Filters,
		limit:   pkgpagination.LimitWithBuffer(params.Limit),
	}
	if params.Cursor != "" {
		cursor, err := pkgpagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.cursor = cursor
	}

	rows, err := s.repo.ListRequests(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list requests")
	}

	nextCursor := ""
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		nextCursor = pkgpagination.EncodeCursor(pkgpagination.Cursor{
			Timestamp: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return &RequestList{Requests: rows, NextCursor: nextCursor}, nil
}

func (s *service) ListOverdueWithdrawals(ctx context.Context, asOf time.Time) ([]models.Request, error) {
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}
	rows, err := s.repo.ListOverdueWithdrawals(ctx, asOf)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list overdue withdrawals")
	}
	return rows, nil
}

func (s *service) lockRequest(ctx context.Context, txRepo Repository, id uuid.UUID) (*models.Request, error) {
	request, err := txRepo.FindRequestByIDLocked(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock request")
	}
	return request, nil
}

func (s *service) lockCrate(ctx context.Context, txRepo Repository, id uuid.UUID) (*models.Crate, error) {
	crate, err := txRepo.FindCrateByIDLocked(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "crate not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock crate")
	}
	return crate, nil
}

func (s *service) notifyAfterCommit(request *models.Request, actor Actor, kind, message string) {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.DispatchAsync(notify.Event{
		Kind:        kind,
		RequestID:   request.ID,
		RequestType: request.RequestType,
		Status:      request.Status,
		UnitID:      request.UnitID,
		CrateID:     request.CrateID,
		ActorID:     actor.User.ID,
		Message:     message,
	})
}

func requireActor(actor Actor) error {
	if actor.User == nil || actor.User.ID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}
	return nil
}

// transitionPayload is the canonical data a transition signature binds to.
func transitionPayload(request *models.Request, crate *models.Crate, detail string) map[string]any {
	payload := map[string]any{
		"request_id":   request.ID.String(),
		"request_type": request.RequestType.String(),
		"status":       request.Status.String(),
		"crate_id":     crate.ID.String(),
		"barcode":      crate.Barcode,
		"purpose":      request.Purpose,
	}
	if detail != "" {
		payload["detail"] = detail
	}
	return payload
}
