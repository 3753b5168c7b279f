package privilege

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vaultarc/archive-backend/pkg/db/models"
	"github.com/vaultarc/archive-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a privilege repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindPrivilegesByRole(ctx context.Context, roleID uuid.UUID) ([]enums.Privilege, error) {
	var rows []models.RolePrivilege
	err := r.db.WithContext(ctx).
		Where("role_id = ?", roleID).
		Order("privilege ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	privileges := make([]enums.Privilege, len(rows))
	for i, row := range rows {
		privileges[i] = row.Privilege
	}
	return privileges, nil
}

func (r *repository) RoleHasPrivilege(ctx context.Context, roleID uuid.UUID, privilege enums.Privilege) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.RolePrivilege{}).
		Where("role_id = ? AND privilege = ?", roleID, privilege).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
