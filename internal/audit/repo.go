package audit

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vaultarc/archive-backend/pkg/db/models"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an audit ledger repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entry *models.AuditEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.AuditEntry, error) {
	var entry models.AuditEntry
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// List returns ledger entries newest first using cursor pagination keyed on
// (action_time, id).
func (r *repository) List(ctx context.Context, opts listQuery) ([]models.AuditEntry, error) {
	query := r.db.WithContext(ctx).Model(&models.AuditEntry{})

	f := opts.filters
	if f.ActorID != nil {
		query = query.Where("actor_id = ?", *f.ActorID)
	}
	if f.Action != nil {
		query = query.Where("action = ?", *f.Action)
	}
	if f.RequestID != nil {
		query = query.Where("request_id = ?", *f.RequestID)
	}
	if f.CrateID != nil {
		query = query.Where("crate_id = ?", *f.CrateID)
	}
	if f.From != nil {
		query = query.Where("action_time >= ?", *f.From)
	}
	if f.To != nil {
		query = query.Where("action_time <= ?", *f.To)
	}

	if opts.cursor != nil {
		query = query.Where("(action_time < ?) OR (action_time = ? AND id < ?)", opts.cursor.Timestamp, opts.cursor.Timestamp, opts.cursor.ID)
	}

	query = query.Order("action_time DESC").Order("id DESC").Limit(opts.limit)

	var rows []models.AuditEntry
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
