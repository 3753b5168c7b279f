package signature

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vaultarc/archive-backend/pkg/db/models"
	"github.com/vaultarc/archive-backend/pkg/enums"
)

// Repository persists signature records and their verification trail.
// There is no delete; invalidation is the only update and it must go through
// MarkInvalid so the sanctioned-write marker is set.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, record *models.SignatureRecord) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.SignatureRecord, error)
	ListByTarget(ctx context.Context, kind enums.TargetKind, targetID uuid.UUID) ([]models.SignatureRecord, error)
	MarkInvalid(ctx context.Context, record *models.SignatureRecord, byID uuid.UUID, reason string) error
	CreateVerification(ctx context.Context, v *models.SignatureVerification) error
	ListVerifications(ctx context.Context, signatureID uuid.UUID) ([]models.SignatureVerification, error)
}
