package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vaultarc/archive-backend/pkg/enums"
	pkgerrors "github.com/vaultarc/archive-backend/pkg/errors"
)

// AuditEntry is one immutable fact in the compliance ledger. ActorID is null
// for actions that failed authentication; AttemptedUsername then carries the
// identity that was claimed. Postgres triggers reject UPDATE and DELETE on the
// table; the hooks below stop the same attempts before they leave the
// application.
type AuditEntry struct {
	ID                uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ActionTime        time.Time         `gorm:"column:action_time;autoCreateTime;index"`
	Action            enums.AuditAction `gorm:"column:action;not null;index"`
	ActorID           *uuid.UUID        `gorm:"column:actor_id;type:uuid;index"`
	AttemptedUsername string            `gorm:"column:attempted_username"`
	RequestID         *uuid.UUID        `gorm:"column:request_id;type:uuid;index"`
	CrateID           *uuid.UUID        `gorm:"column:crate_id;type:uuid"`
	StorageLocationID *uuid.UUID        `gorm:"column:storage_location_id;type:uuid"`
	DocumentID        *uuid.UUID        `gorm:"column:document_id;type:uuid"`
	Message           string            `gorm:"column:message;not null"`
	IPAddress         string            `gorm:"column:ip_address"`
	UserAgent         string            `gorm:"column:user_agent"`
}

// BeforeUpdate blocks every update attempt. The ledger is append-only.
func (AuditEntry) BeforeUpdate(*gorm.DB) error {
	return pkgerrors.New(pkgerrors.CodeIntegrity, "audit entries are immutable")
}

// BeforeDelete blocks every delete attempt.
func (AuditEntry) BeforeDelete(*gorm.DB) error {
	return pkgerrors.New(pkgerrors.CodeIntegrity, "audit entries cannot be deleted")
}
