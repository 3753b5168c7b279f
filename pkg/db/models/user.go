package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/vaultarc/archive-backend/pkg/enums"
)

// User is an accountable actor. The password hash is only ever consulted by
// the authentication provider; signature records snapshot identity fields
// instead of referencing the live row.
type User struct {
	ID           uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Username     string     `gorm:"column:username;not null;uniqueIndex"`
	FullName     string     `gorm:"column:full_name;not null"`
	Email        string     `gorm:"column:email;not null;uniqueIndex"`
	PasswordHash string     `gorm:"column:password_hash;not null"`
	RoleID       *uuid.UUID `gorm:"column:role_id;type:uuid"`
	Role         *Role      `gorm:"foreignKey:RoleID"`
	UnitID       *uuid.UUID `gorm:"column:unit_id;type:uuid"`
	IsSuperuser  bool       `gorm:"column:is_superuser;not null;default:false"`
	IsActive     bool       `gorm:"column:is_active;not null;default:true"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// RoleName returns the role name or a placeholder for signature snapshots.
func (u *User) RoleName() string {
	if u == nil || u.Role == nil {
		return "No Role"
	}
	return u.Role.Name
}

// Role is a named bundle of privileges. Custom roles are plain rows; nothing
// outside seed data keys off the name.
type Role struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name        string          `gorm:"column:name;not null;uniqueIndex"`
	Description string          `gorm:"column:description"`
	Privileges  []RolePrivilege `gorm:"foreignKey:RoleID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// RolePrivilege grants one privilege atom to a role.
type RolePrivilege struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RoleID    uuid.UUID       `gorm:"column:role_id;type:uuid;not null;uniqueIndex:idx_role_privileges_role_privilege"`
	Privilege enums.Privilege `gorm:"column:privilege;not null;uniqueIndex:idx_role_privileges_role_privilege"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}
