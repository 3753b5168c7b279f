package storageloc

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vaultarc/archive-backend/pkg/db/models"
	"github.com/vaultarc/archive-backend/pkg/enums"
)

// Repository persists the physical storage catalog.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, location *models.StorageLocation) error
	SlotTaken(ctx context.Context, location *models.StorageLocation) (bool, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.StorageLocation, error)
	ListByUnit(ctx context.Context, unitID uuid.UUID) ([]models.StorageLocation, error)
	CountCratesAt(ctx context.Context, locationID uuid.UUID) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a storage catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, location *models.StorageLocation) error {
	return r.db.WithContext(ctx).Create(location).Error
}

// SlotTaken reports whether the slot already exists. The unique constraint
// alone cannot enforce this for shelf-less slots because NULL shelves compare
// as distinct.
func (r *repository) SlotTaken(ctx context.Context, location *models.StorageLocation) (bool, error) {
	q := r.db.WithContext(ctx).
		Model(&models.StorageLocation{}).
		Where("unit_id = ? AND room = ? AND rack = ? AND compartment = ?",
			location.UnitID, location.Room, location.Rack, location.Compartment)
	if location.Shelf == nil {
		q = q.Where("shelf IS NULL")
	} else {
		q = q.Where("shelf = ?", *location.Shelf)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.StorageLocation, error) {
	var location models.StorageLocation
	err := r.db.WithContext(ctx).
		Preload("Unit").
		Where("id = ?", id).
		First(&location).Error
	if err != nil {
		return nil, err
	}
	return &location, nil
}

func (r *repository) ListByUnit(ctx context.Context, unitID uuid.UUID) ([]models.StorageLocation, error) {
	var locations []models.StorageLocation
	err := r.db.WithContext(ctx).
		Preload("Unit").
		Where("unit_id = ?", unitID).
		Order("room ASC, rack ASC, compartment ASC, shelf ASC").
		Find(&locations).Error
	if err != nil {
		return nil, err
	}
	return locations, nil
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.StorageLocation{}).Error
}

func (r *repository) CountCratesAt(ctx context.Context, locationID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Crate{}).
		Where("storage_location_id = ? AND status <> ?", locationID, enums.CrateStatusDestroyed).
		Count(&count).Error
	return count, err
}
