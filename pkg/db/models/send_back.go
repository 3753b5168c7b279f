package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/vaultarc/archive-backend/pkg/enums"
)

// SendBack records an approver returning a request to its originator for
// correction, or a return note acknowledging documents coming back. Each
// reason is preserved across resubmission cycles.
type SendBack struct {
	ID          uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RequestID   uuid.UUID          `gorm:"column:request_id;type:uuid;not null"`
	Kind        enums.SendBackKind `gorm:"column:kind;not null;default:'change_request'"`
	Reason      string             `gorm:"column:reason;not null"`
	CreatedByID *uuid.UUID         `gorm:"column:created_by_id;type:uuid"`
	CreatedAt   time.Time          `gorm:"column:created_at;autoCreateTime"`
}
