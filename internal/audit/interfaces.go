package audit

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vaultarc/archive-backend/pkg/db/models"
)

// Repository is the storage surface of the audit ledger. There is no update
// or delete; the ledger only ever grows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.AuditEntry) error
	List(ctx context.Context, opts listQuery) ([]models.AuditEntry, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.AuditEntry, error)
}
