package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgdb "github.com/vaultarc/archive-backend/pkg/db"
	"github.com/vaultarc/archive-backend/pkg/db/models"
	"github.com/vaultarc/archive-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a workflow repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateRequest(ctx context.Context, request *models.Request) error {
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *repository) FindRequestByID(ctx context.Context, id uuid.UUID) (*models.Request, error) {
	var request models.Request
	err := r.db.WithContext(ctx).
		Preload("Crate").
		Preload("Crate.StorageLocation").
		Preload("Crate.StorageLocation.Unit").
		Preload("Documents").
		Preload("SendBacks").
		Where("id = ?", id).
		First(&request).Error
	if err != nil {
		return nil, err
	}
	return &request, nil
}

// FindRequestByIDLocked takes the request row FOR UPDATE. Associations are
// not preloaded; locked reads stay narrow.
func (r *repository) FindRequestByIDLocked(ctx context.Context, id uuid.UUID) (*models.Request, error) {
	var request models.Request
	err := pkgdb.LockForUpdate(r.db.WithContext(ctx)).
		Where("id = ?", id).
		First(&request).Error
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *repository) UpdateRequestFields(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Request{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *repository) ListRequests(ctx context.Context, opts listQuery) ([]models.Request, error) {
	query := r.db.WithContext(ctx).Model(&models.Request{}).Preload("Crate")

	f := opts.filters
	if f.Type != nil {
		query = query.Where("request_type = ?", *f.Type)
	}
	if f.Status != nil {
		query = query.Where("status = ?", *f.Status)
	}
	if f.UnitID != nil {
		query = query.Where("unit_id = ?", *f.UnitID)
	}
	if f.CrateID != nil {
		query = query.Where("crate_id = ?", *f.CrateID)
	}

	if opts.cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", opts.cursor.Timestamp, opts.cursor.Timestamp, opts.cursor.ID)
	}

	query = query.Order("created_at DESC").Order("id DESC").Limit(opts.limit)

	var rows []models.Request
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListOverdueWithdrawals(ctx context.Context, asOf time.Time) ([]models.Request, error) {
	var rows []models.Request
	err := r.db.WithContext(ctx).
		Preload("Crate").
		Where("request_type = ? AND status = ?", enums.RequestTypeWithdrawal, enums.RequestStatusIssued).
		Where("expected_return_date IS NOT NULL AND expected_return_date < ?", asOf).
		Order("expected_return_date ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) CreateCrate(ctx context.Context, crate *models.Crate) error {
	return r.db.WithContext(ctx).Create(crate).Error
}

func (r *repository) FindCrateByID(ctx context.Context, id uuid.UUID) (*models.Crate, error) {
	var crate models.Crate
	err := r.db.WithContext(ctx).
		Preload("StorageLocation").
		Preload("StorageLocation.Unit").
		Preload("Documents").
		Where("id = ?", id).
		First(&crate).Error
	if err != nil {
		return nil, err
	}
	return &crate, nil
}

// FindCrateByIDLocked takes the crate row FOR UPDATE. The crate is the
// contended resource during allocation and return.
func (r *repository) FindCrateByIDLocked(ctx context.Context, id uuid.UUID) (*models.Crate, error) {
	var crate models.Crate
	err := pkgdb.LockForUpdate(r.db.WithContext(ctx)).
		Where("id = ?", id).
		First(&crate).Error
	if err != nil {
		return nil, err
	}
	return &crate, nil
}

func (r *repository) UpdateCrateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Crate{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *repository) CreateDocuments(ctx context.Context, documents []models.Document) error {
	if len(documents) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&documents).Error
}

func (r *repository) CreateCrateDocuments(ctx context.Context, links []models.CrateDocument) error {
	if len(links) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&links).Error
}

func (r *repository) CreateRequestDocuments(ctx context.Context, links []models.RequestDocument) error {
	if len(links) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&links).Error
}

func (r *repository) ReplaceRequestDocuments(ctx context.Context, requestID uuid.UUID, links []models.RequestDocument) error {
	if err := r.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Delete(&models.RequestDocument{}).Error; err != nil {
		return err
	}
	return r.CreateRequestDocuments(ctx, links)
}

func (r *repository) CreateSendBack(ctx context.Context, sendBack *models.SendBack) error {
	return r.db.WithContext(ctx).Create(sendBack).Error
}

func (r *repository) FindStorageLocationByID(ctx context.Context, id uuid.UUID) (*models.StorageLocation, error) {
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

func (r *repository) FindUnitByID(ctx context.Context, id uuid.UUID) (*models.Unit, error) {
	var unit models.Unit
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&unit).Error; err != nil {
		return nil, err
	}
	return &unit, nil
}

func (r *repository) FindDepartmentByID(ctx context.Context, id uuid.UUID) (*models.Department, error) {
	var department models.Department
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&department).Error; err != nil {
		return nil, err
	}
	return &department, nil
}

func (r *repository) FindSectionByID(ctx context.Context, id uuid.UUID) (*models.Section, error) {
	var section models.Section
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&section).Error; err != nil {
		return nil, err
	}
	return &section, nil
}
