package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/vaultarc/archive-backend/pkg/enums"
)

// Crate is the container tracking a batch of documents through storage,
// withdrawal and destruction. The barcode is assigned once at creation and
// never changes; Destroyed is terminal and keeps the storage reference for
// history.
type Crate struct {
	ID                uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Barcode           string            `gorm:"column:barcode;not null;uniqueIndex"`
	Status            enums.CrateStatus `gorm:"column:status;not null;default:'active'"`
	StorageLocationID *uuid.UUID        `gorm:"column:storage_location_id;type:uuid"`
	StorageLocation   *StorageLocation  `gorm:"foreignKey:StorageLocationID"`
	DestructionDate   *time.Time        `gorm:"column:destruction_date"`
	UnitID            uuid.UUID         `gorm:"column:unit_id;type:uuid;not null"`
	DepartmentID      uuid.UUID         `gorm:"column:department_id;type:uuid;not null"`
	SectionID         *uuid.UUID        `gorm:"column:section_id;type:uuid"`
	CreatedByID       uuid.UUID         `gorm:"column:created_by_id;type:uuid;not null"`
	ToCentral         bool              `gorm:"column:to_central;not null;default:false"`
	ToBeRetained      bool              `gorm:"column:to_be_retained;not null;default:false"`
	Documents         []CrateDocument   `gorm:"foreignKey:CrateID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// BarcodeCounter is the per-scope sequence source for crate barcodes. The row
// for a (unit, department, section, year) tuple is locked for update while a
// crate is created, so concurrent creations sequence gaplessly.
type BarcodeCounter struct {
	ID           uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UnitID       uuid.UUID  `gorm:"column:unit_id;type:uuid;not null;uniqueIndex:idx_barcode_counters_scope"`
	DepartmentID uuid.UUID  `gorm:"column:department_id;type:uuid;not null;uniqueIndex:idx_barcode_counters_scope"`
	SectionID    *uuid.UUID `gorm:"column:section_id;type:uuid;uniqueIndex:idx_barcode_counters_scope"`
	Year         int        `gorm:"column:year;not null;uniqueIndex:idx_barcode_counters_scope"`
	LastSeq      int        `gorm:"column:last_seq;not null;default:0"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
