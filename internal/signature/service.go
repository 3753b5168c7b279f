package signature

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vaultarc/archive-backend/internal/audit"
	"github.com/vaultarc/archive-backend/pkg/db/models"
	"github.com/vaultarc/archive-backend/pkg/enums"
	pkgerrors "github.com/vaultarc/archive-backend/pkg/errors"
	"github.com/vaultarc/archive-backend/pkg/logger"
	"github.com/vaultarc/archive-backend/pkg/metrics"
)

// Service implements the digital signature ceremony: bind an attested signer
// to a snapshot of data, verify that binding later, and invalidate it without
// ever deleting it.
type Service interface {
	Sign(ctx context.Context, tx *gorm.DB, input SignInput) (*models.SignatureRecord, error)
	Get(ctx context.Context, id uuid.UUID) (*models.SignatureRecord, error)
	ListForTarget(ctx context.Context, kind enums.TargetKind, targetID uuid.UUID) ([]models.SignatureRecord, error)
	VerifyIntegrity(ctx context.Context, signatureID uuid.UUID, verifier *models.User) (*VerificationResult, error)
	Invalidate(ctx context.Context, input InvalidateInput) (*models.SignatureRecord, error)
	ListVerifications(ctx context.Context, signatureID uuid.UUID) ([]models.SignatureVerification, error)
}

type service struct {
	repo    Repository
	audits  audit.Service
	db      txRunner
	logg    *logger.Logger
	metrics *metrics.ComplianceMetrics
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// NewService builds the signature service.
func NewService(repo Repository, audits audit.Service, db txRunner, logg *logger.Logger, m *metrics.ComplianceMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("signature repository required")
	}
	if audits == nil {
		return nil, fmt.Errorf("audit service required")
	}
	if db == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, audits: audits, db: db, logg: logg, metrics: m}, nil
}

// Sign creates one signature record. The caller supplies the transaction so
// the signature commits atomically with the action it authorizes.
func (s *service) Sign(ctx context.Context, tx *gorm.DB, input SignInput) (*models.SignatureRecord, error) {
	if input.Signer == nil || input.Signer.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "signer identity missing")
	}
	if !input.Signer.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "inactive accounts cannot sign")
	}
	if input.PasswordVerifiedAt.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "signing requires fresh credential verification")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown signature type")
	}
	if !input.TargetKind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown signature target kind")
	}
	if input.TargetID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "signature target id is required")
	}
	if input.Purpose == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "signature purpose is required")
	}
	if input.Payload == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "signature payload is required")
	}

	dataHash, snapshot, err := HashPayload(input.Payload)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "hash signature payload")
	}

	// timestamptz keeps microseconds; anything finer would change the hash
	// material after a database round-trip.
	signedAt := time.Now().UTC().Truncate(time.Microsecond)
	record := &models.SignatureRecord{
		ID:                   uuid.New(),
		SignerID:             input.Signer.ID,
		SignerUsername:       input.Signer.Username,
		SignerFullName:       input.Signer.FullName,
		SignerRole:           input.Signer.RoleName(),
		SignerEmail:          input.Signer.Email,
		AuthenticationMethod: "password",
		PasswordVerifiedAt:   input.PasswordVerifiedAt.UTC(),
		SignatureType:        input.Type,
		Purpose:              input.Purpose,
		SignedAt:             signedAt,
		TargetKind:           input.TargetKind,
		TargetID:             input.TargetID,
		TargetDescription:    input.TargetDescription,
		DataHash:             dataHash,
		PayloadSnapshot:      snapshot,
		IPAddress:            input.IPAddress,
		UserAgent:            input.UserAgent,
		IsValid:              true,
		AuditEntryID:         input.AuditEntryID,
	}
	record.SignatureHash = ComputeSignatureHash(signatureHashInput{
		Username:      record.SignerUsername,
		FullName:      record.SignerFullName,
		Role:          record.SignerRole,
		SignatureType: record.SignatureType,
		SignedAt:      record.SignedAt,
		TargetKind:    record.TargetKind,
		TargetID:      record.TargetID,
		DataHash:      record.DataHash,
	})

	if err := s.repo.WithTx(tx).Create(ctx, record); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist signature")
	}
	return record, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.SignatureRecord, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "signature id is required")
	}
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "signature not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load signature")
	}
	return record, nil
}

func (s *service) ListForTarget(ctx context.Context, kind enums.TargetKind, targetID uuid.UUID) ([]models.SignatureRecord, error) {
	if !kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown signature target kind")
	}
	if targetID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "target id is required")
	}
	records, err := s.repo.ListByTarget(ctx, kind, targetID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list signatures")
	}
	return records, nil
}

// VerifyIntegrity recomputes both hashes for a stored signature and records
// the check. A hash mismatch means the stored record no longer matches what
// was signed; that raises an alarm and counts as an integrity failure.
func (s *service) VerifyIntegrity(ctx context.Context, signatureID uuid.UUID, verifier *models.User) (*VerificationResult, error) {
	if verifier == nil || verifier.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "verifier identity missing")
	}
	record, err := s.Get(ctx, signatureID)
	if err != nil {
		return nil, err
	}

	recomputedData, _, err := HashPayload(record.PayloadSnapshot)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "rehash signature snapshot")
	}
	dataMatch := recomputedData == record.DataHash

	recomputedSig := ComputeSignatureHash(signatureHashInput{
		Username:      record.SignerUsername,
		FullName:      record.SignerFullName,
		Role:          record.SignerRole,
		SignatureType: record.SignatureType,
		SignedAt:      record.SignedAt,
		TargetKind:    record.TargetKind,
		TargetID:      record.TargetID,
		DataHash:      record.DataHash,
	})
	sigMatch := recomputedSig == record.SignatureHash

	result := &VerificationResult{
		SignatureID:       record.ID,
		DataHashMatch:     dataMatch,
		SignatureHashOK:   sigMatch,
		RecordMarkedValid: record.IsValid,
		Valid:             dataMatch && sigMatch && record.IsValid,
		VerifiedAt:        time.Now().UTC(),
	}
	switch {
	case !dataMatch:
		result.Message = "payload snapshot does not match the signed data hash"
	case !sigMatch:
		result.Message = "signature hash does not match the signed attributes"
	case !record.IsValid:
		result.Message = "signature has been invalidated"
	default:
		result.Message = "signature intact"
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).CreateVerification(ctx, &models.SignatureVerification{
			ID:           uuid.New(),
			SignatureID:  record.ID,
			VerifiedByID: verifier.ID,
			VerifiedAt:   result.VerifiedAt,
			Result:       dataMatch && sigMatch,
			Message:      result.Message,
		}); err != nil {
			return err
		}
		_, err := s.audits.Append(ctx, tx, audit.AppendInput{
			Action:  enums.AuditActionVerified,
			ActorID: &verifier.ID,
			Message: fmt.Sprintf("signature %s verified: %s", record.ID, result.Message),
		})
		return err
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record signature verification")
	}

	if !dataMatch || !sigMatch {
		s.metrics.IncIntegrityFailure()
		s.metrics.IncVerification("tampered")
		s.logg.Alarm(ctx, fmt.Sprintf("signature %s failed integrity verification", record.ID), nil)
	} else if result.Valid {
		s.metrics.IncVerification("valid")
	} else {
		s.metrics.IncVerification("invalidated")
	}
	return result, nil
}

// Invalidate marks a signature invalid while preserving the full record.
// This is the only update a signature ever accepts.
func (s *service) Invalidate(ctx context.Context, input InvalidateInput) (*models.SignatureRecord, error) {
	if input.InvalidatedBy == nil || input.InvalidatedBy.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalidator identity missing")
	}
	if input.Reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalidation reason is required")
	}
	record, err := s.Get(ctx, input.SignatureID)
	if err != nil {
		return nil, err
	}
	if !record.IsValid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "signature is already invalidated")
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := txRepo.MarkInvalid(ctx, record, input.InvalidatedBy.ID, input.Reason); err != nil {
			return err
		}
		_, err := s.audits.Append(ctx, tx, audit.AppendInput{
			Action:  enums.AuditActionInvalidated,
			ActorID: &input.InvalidatedBy.ID,
			Message: fmt.Sprintf("signature %s invalidated: %s", record.ID, input.Reason),
		})
		return err
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "invalidate signature")
	}

	return s.Get(ctx, input.SignatureID)
}

func (s *service) ListVerifications(ctx context.Context, signatureID uuid.UUID) ([]models.SignatureVerification, error) {
	if signatureID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "signature id is required")
	}
	rows, err := s.repo.ListVerifications(ctx, signatureID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list signature verifications")
	}
	return rows, nil
}
