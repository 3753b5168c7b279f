package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/vaultarc/archive-backend/pkg/enums"
)

// Document is one tracked record. No file bytes are managed here, only the
// identity and whereabouts of the physical (or referenced digital) document.
type Document struct {
	ID          uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name        string             `gorm:"column:name;not null"`
	Number      string             `gorm:"column:number;not null;uniqueIndex"`
	Type        enums.DocumentType `gorm:"column:type;not null;default:'physical'"`
	Description string             `gorm:"column:description"`
	CreatedAt   time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// CrateDocument links a document into a crate.
type CrateDocument struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CrateID    uuid.UUID `gorm:"column:crate_id;type:uuid;not null;uniqueIndex:idx_crate_documents_pair"`
	DocumentID uuid.UUID `gorm:"column:document_id;type:uuid;not null;uniqueIndex:idx_crate_documents_pair"`
	AddedAt    time.Time `gorm:"column:added_at;autoCreateTime"`
}
