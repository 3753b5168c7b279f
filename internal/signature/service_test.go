package signature

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/vaultarc/archive-backend/internal/audit"
	"github.com/vaultarc/archive-backend/pkg/db/models"
	"github.com/vaultarc/archive-backend/pkg/enums"
	pkgerrors "github.com/vaultarc/archive-backend/pkg/errors"
	"github.com/vaultarc/archive-backend/pkg/logger"
)

type stubSignatureRepo struct {
	records       map[uuid.UUID]*models.SignatureRecord
	verifications []models.SignatureVerification
}

func newStubSignatureRepo() *stubSignatureRepo {
	return &stubSignatureRepo{records: map[uuid.UUID]*models.SignatureRecord{}}
}

func (s *stubSignatureRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubSignatureRepo) Create(ctx context.Context, record *models.SignatureRecord) error {
	copied := *record
	s.records[record.ID] = &copied
	return nil
}

func (s *stubSignatureRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.SignatureRecord, error) {
	record, ok := s.records[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *record
	return &copied, nil
}

func (s *stubSignatureRepo) ListByTarget(ctx context.Context, kind enums.TargetKind, targetID uuid.UUID) ([]models.SignatureRecord, error) {
	var out []models.SignatureRecord
	for _, record := range s.records {
		if record.TargetKind == kind && record.TargetID == targetID {
			out = append(out, *record)
		}
	}
	return out, nil
}

func (s *stubSignatureRepo) MarkInvalid(ctx context.Context, record *models.SignatureRecord, byID uuid.UUID, reason string) error {
	stored := s.records[record.ID]
	now := time.Now().UTC()
	stored.IsValid = false
	stored.InvalidationReason = reason
	stored.InvalidatedAt = &now
	stored.InvalidatedByID = &byID
	return nil
}

func (s *stubSignatureRepo) CreateVerification(ctx context.Context, v *models.SignatureVerification) error {
	s.verifications = append(s.verifications, *v)
	return nil
}

func (s *stubSignatureRepo) ListVerifications(ctx context.Context, signatureID uuid.UUID) ([]models.SignatureVerification, error) {
	var out []models.SignatureVerification
	for _, v := range s.verifications {
		if v.SignatureID == signatureID {
			out = append(out, v)
		}
	}
	return out, nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubAuditService struct {
	entries []audit.AppendInput
}

func (s *stubAuditService) Append(ctx context.Context, tx *gorm.DB, input audit.AppendInput) (*models.AuditEntry, error) {
	s.entries = append(s.entries, input)
	return &models.AuditEntry{ID: uuid.New(), Action: input.Action}, nil
}

func (s *stubAuditService) Query(ctx context.Context, params audit.QueryParams) (*audit.EntryList, error) {
	return &audit.EntryList{}, nil
}

func (s *stubAuditService) Get(ctx context.Context, id uuid.UUID) (*models.AuditEntry, error) {
	return nil, gorm.ErrRecordNotFound
}

func testSigner() *models.User {
	return &models.User{
		ID:       uuid.New(),
		Username: "jdoe",
		FullName: "Jane Doe",
		Email:    "jdoe@example.com",
		IsActive: true,
		Role:     &models.Role{ID: uuid.New(), Name: "Section Head"},
	}
}

func newSignatureService(t *testing.T, repo Repository, audits audit.Service) Service {
	t.Helper()
	svc, err := NewService(repo, audits, stubTxRunner{}, logger.New(logger.Options{ServiceName: "test", Level: zerolog.ErrorLevel}), nil)
	require.NoError(t, err)
	return svc
}

func TestSignBindsSignerSnapshotAndHashes(t *testing.T) {
	repo := newStubSignatureRepo()
	svc := newSignatureService(t, repo, &stubAuditService{})

	signer := testSigner()
	targetID := uuid.New()
	record, err := svc.Sign(context.Background(), nil, SignInput{
		Signer:             signer,
		PasswordVerifiedAt: time.Now().UTC(),
		Type:               enums.SignatureTypeApprove,
		Purpose:            "Approve storage request",
		TargetKind:         enums.TargetKindRequest,
		TargetID:           targetID,
		Payload:            map[string]any{"status": "approved", "request_id": targetID.String()},
	})
	require.NoError(t, err)
	assert.Equal(t, "jdoe", record.SignerUsername)
	assert.Equal(t, "Section Head", record.SignerRole)
	assert.True(t, record.IsValid)
	assert.NotEmpty(t, record.DataHash)
	assert.NotEmpty(t, record.SignatureHash)
	assert.NotEmpty(t, record.PayloadSnapshot)

	result, err := svc.VerifyIntegrity(context.Background(), record.ID, signer)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.True(t, result.DataHashMatch)
	assert.True(t, result.SignatureHashOK)
}

func TestVerifyIntegrityAfterTimestampStorageRoundTrip(t *testing.T) {
	repo := newStubSignatureRepo()
	svc := newSignatureService(t, repo, &stubAuditService{})

	signer := testSigner()
	record, err := svc.Sign(context.Background(), nil, SignInput{
		Signer:             signer,
		PasswordVerifiedAt: time.Now().UTC(),
		Type:               enums.SignatureTypeApprove,
		Purpose:            "Approve storage request",
		TargetKind:         enums.TargetKindRequest,
		TargetID:           uuid.New(),
		Payload:            map[string]any{"x": 1},
	})
	require.NoError(t, err)

	// The signing time goes into the hash, so it must already be at the
	// microsecond resolution timestamptz columns keep.
	assert.True(t, record.SignedAt.Equal(record.SignedAt.Truncate(time.Microsecond)))

	// Simulate the column dropping anything finer than a microsecond.
	repo.records[record.ID].SignedAt = record.SignedAt.Truncate(time.Microsecond)

	result, err := svc.VerifyIntegrity(context.Background(), record.ID, signer)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.True(t, result.SignatureHashOK)
}

func TestSignRequiresFreshCredentialCheck(t *testing.T) {
	svc := newSignatureService(t, newStubSignatureRepo(), &stubAuditService{})

	_, err := svc.Sign(context.Background(), nil, SignInput{
		Signer:     testSigner(),
		Type:       enums.SignatureTypeApprove,
		Purpose:    "Approve",
		TargetKind: enums.TargetKindRequest,
		TargetID:   uuid.New(),
		Payload:    map[string]any{"x": 1},
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

func TestVerifyIntegrityDetectsTamperedSnapshot(t *testing.T) {
	repo := newStubSignatureRepo()
	svc := newSignatureService(t, repo, &stubAuditService{})

	signer := testSigner()
	record, err := svc.Sign(context.Background(), nil, SignInput{
		Signer:             signer,
		PasswordVerifiedAt: time.Now().UTC(),
		Type:               enums.SignatureTypeDestroy,
		Purpose:            "Confirm destruction",
		TargetKind:         enums.TargetKindCrate,
		TargetID:           uuid.New(),
		Payload:            map[string]any{"crate": "MFG01/QA/2026/00001"},
	})
	require.NoError(t, err)

	// Rewrite the stored snapshot behind the service's back.
	repo.records[record.ID].PayloadSnapshot = json.RawMessage(`{"crate":"MFG01/QA/2026/00002"}`)

	result, err := svc.VerifyIntegrity(context.Background(), record.ID, signer)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.False(t, result.DataHashMatch)
	require.Len(t, repo.verifications, 1)
	assert.False(t, repo.verifications[0].Result)
}

func TestVerifyIntegrityDetectsRewrittenAttributes(t *testing.T) {
	repo := newStubSignatureRepo()
	svc := newSignatureService(t, repo, &stubAuditService{})

	signer := testSigner()
	record, err := svc.Sign(context.Background(), nil, SignInput{
		Signer:             signer,
		PasswordVerifiedAt: time.Now().UTC(),
		Type:               enums.SignatureTypeApprove,
		Purpose:            "Approve",
		TargetKind:         enums.TargetKindRequest,
		TargetID:           uuid.New(),
		Payload:            map[string]any{"x": 1},
	})
	require.NoError(t, err)

	repo.records[record.ID].SignerRole = "Store Head"

	result, err := svc.VerifyIntegrity(context.Background(), record.ID, signer)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.True(t, result.DataHashMatch)
	assert.False(t, result.SignatureHashOK)
}

func TestInvalidatePreservesRecordAndAudits(t *testing.T) {
	repo := newStubSignatureRepo()
	audits := &stubAuditService{}
	svc := newSignatureService(t, repo, audits)

	signer := testSigner()
	record, err := svc.Sign(context.Background(), nil, SignInput{
		Signer:             signer,
		PasswordVerifiedAt: time.Now().UTC(),
		Type:               enums.SignatureTypeApprove,
		Purpose:            "Approve",
		TargetKind:         enums.TargetKindRequest,
		TargetID:           uuid.New(),
		Payload:            map[string]any{"x": 1},
	})
	require.NoError(t, err)

	qa := testSigner()
	invalidated, err := svc.Invalidate(context.Background(), InvalidateInput{
		SignatureID:   record.ID,
		InvalidatedBy: qa,
		Reason:        "signed against the wrong revision",
	})
	require.NoError(t, err)
	assert.False(t, invalidated.IsValid)
	assert.Equal(t, "signed against the wrong revision", invalidated.InvalidationReason)
	assert.NotNil(t, invalidated.InvalidatedAt)
	assert.Equal(t, record.DataHash, invalidated.DataHash)
	require.Len(t, audits.entries, 1)
	assert.Equal(t, enums.AuditActionInvalidated, audits.entries[0].Action)

	_, err = svc.Invalidate(context.Background(), InvalidateInput{
		SignatureID:   record.ID,
		InvalidatedBy: qa,
		Reason:        "again",
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}
