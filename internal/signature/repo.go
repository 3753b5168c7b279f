package signature

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vaultarc/archive-backend/pkg/db/models"
	"github.com/vaultarc/archive-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a signature repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, record *models.SignatureRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.SignatureRecord, error) {
	var record models.SignatureRecord
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) ListByTarget(ctx context.Context, kind enums.TargetKind, targetID uuid.UUID) ([]models.SignatureRecord, error) {
	var records []models.SignatureRecord
	err := r.db.WithContext(ctx).
		Where("target_kind = ? AND target_id = ?", kind, targetID).
		Order("signed_at ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// MarkInvalid flips is_valid and stamps the invalidation fields. The
// sanctioned-write marker lets the update through the model hook; the
// storage trigger independently checks the same column set.
func (r *repository) MarkInvalid(ctx context.Context, record *models.SignatureRecord, byID uuid.UUID, reason string) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).
		Model(record).
		InstanceSet(models.SignatureInvalidationKey, true).
		Updates(map[string]any{
			"is_valid":            false,
			"invalidation_reason": reason,
			"invalidated_at":      now,
			"invalidated_by_id":   byID,
		}).Error
}

func (r *repository) CreateVerification(ctx context.Context, v *models.SignatureVerification) error {
	return r.db.WithContext(ctx).Create(v).Error
}

func (r *repository) ListVerifications(ctx context.Context, signatureID uuid.UUID) ([]models.SignatureVerification, error) {
	var rows []models.SignatureVerification
	err := r.db.WithContext(ctx).
		Where("signature_id = ?", signatureID).
		Order("verified_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
