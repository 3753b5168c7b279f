package policy

import (
	"context"

	"gorm.io/gorm"

	"github.com/vaultarc/archive-backend/pkg/db/models"
)

// Repository reads and writes the single system policy row.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Find(ctx context.Context) (*models.SystemPolicy, error)
	Save(ctx context.Context, policy *models.SystemPolicy) error
}
