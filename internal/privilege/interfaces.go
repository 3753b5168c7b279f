package privilege

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vaultarc/archive-backend/pkg/enums"
)

// Repository reads role privilege grants.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindPrivilegesByRole(ctx context.Context, roleID uuid.UUID) ([]enums.Privilege, error)
	RoleHasPrivilege(ctx context.Context, roleID uuid.UUID, privilege enums.Privilege) (bool, error)
}
