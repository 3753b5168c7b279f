package storageloc

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgdb "github.com/vaultarc/archive-backend/pkg/db"
	"github.com/vaultarc/archive-backend/pkg/db/models"
	pkgerrors "github.com/vaultarc/archive-backend/pkg/errors"
)

// CreateInput describes one new slot in the storage hierarchy.
type CreateInput struct {
	UnitID      uuid.UUID
	Room        string
	Rack        string
	Compartment string
	Shelf       *string
}

// Location pairs a catalog row with its rendered location string.
type Location struct {
	models.StorageLocation
	Location string `json:"location"`
}

// Service manages the physical storage catalog.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*Location, error)
	Get(ctx context.Context, id uuid.UUID) (*Location, error)
	ListByUnit(ctx context.Context, unitID uuid.UUID) ([]Location, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo Repository
}

// NewService builds the storage catalog service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("storage location repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*Location, error) {
	if input.UnitID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit id is required")
	}
	if input.Room == "" || input.Rack == "" || input.Compartment == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "room, rack, and compartment are required")
	}

	location := &models.StorageLocation{
		ID:          uuid.New(),
		UnitID:      input.UnitID,
		Room:        input.Room,
		Rack:        input.Rack,
		Compartment: input.Compartment,
		Shelf:       input.Shelf,
	}
	taken, err := s.repo.SlotTaken(ctx, location)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check storage slot")
	}
	if taken {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "storage location already exists")
	}
	if err := s.repo.Create(ctx, location); err != nil {
		if pkgdb.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "storage location already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create storage location")
	}
	return s.Get(ctx, location.ID)
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*Location, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "storage location id is required")
	}
	location, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "storage location not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load storage location")
	}
	return &Location{StorageLocation: *location, Location: location.LocationString()}, nil
}

func (s *service) ListByUnit(ctx context.Context, unitID uuid.UUID) ([]Location, error) {
	if unitID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit id is required")
	}
	rows, err := s.repo.ListByUnit(ctx, unitID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list storage locations")
	}
	locations := make([]Location, len(rows))
	for i, row := range rows {
		locations[i] = Location{StorageLocation: row, Location: row.LocationString()}
	}
	return locations, nil
}

// Delete removes an empty slot from the catalog. A location holding any
// crate that is not destroyed cannot be removed; the crates move first.
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "storage location id is required")
	}
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	occupied, err := s.repo.CountCratesAt(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count crates at location")
	}
	if occupied > 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "storage location still holds crates")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete storage location")
	}
	return nil
}
