package policy

import (
	"context"

	"gorm.io/gorm"

	"github.com/vaultarc/archive-backend/pkg/db/models"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a policy repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Find(ctx context.Context) (*models.SystemPolicy, error) {
	var row models.SystemPolicy
	err := r.db.WithContext(ctx).
		Where("singleton = ?", true).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) Save(ctx context.Context, policy *models.SystemPolicy) error {
	return r.db.WithContext(ctx).Save(policy).Error
}
