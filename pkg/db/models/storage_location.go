package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StorageLocation is one slot in the physical storage hierarchy:
// Unit -> Room -> Rack -> Compartment -> Shelf, shelf optional for
// three-level stores.
type StorageLocation struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UnitID      uuid.UUID `gorm:"column:unit_id;type:uuid;not null;uniqueIndex:idx_storage_locations_slot"`
	Unit        *Unit     `gorm:"foreignKey:UnitID"`
	Room        string    `gorm:"column:room;not null;uniqueIndex:idx_storage_locations_slot"`
	Rack        string    `gorm:"column:rack;not null;uniqueIndex:idx_storage_locations_slot"`
	Compartment string    `gorm:"column:compartment;not null;uniqueIndex:idx_storage_locations_slot"`
	Shelf       *string   `gorm:"column:shelf;uniqueIndex:idx_storage_locations_slot"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// LocationString renders the compact human-readable location, e.g.
// "MFG01-RoomA-Rack1C1". Requires Unit to be preloaded.
func (s *StorageLocation) LocationString() string {
	unitCode := ""
	if s.Unit != nil {
		unitCode = s.Unit.Code
	}
	loc := fmt.Sprintf("%s-%s-%s%s", unitCode, s.Room, s.Rack, s.Compartment)
	if s.Shelf != nil && *s.Shelf != "" {
		loc += *s.Shelf
	}
	return loc
}
