package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vaultarc/archive-backend/pkg/db/models"
)

// Repository is the persistence surface of the state machine. Requests and
// crates are mutated only through the narrow field-update methods so every
// write stays inside a transition's transaction.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateRequest(ctx context.Context, request *models.Request) error
	FindRequestByID(ctx context.Context, id uuid.UUID) (*models.Request, error)
	FindRequestByIDLocked(ctx context.Context, id uuid.UUID) (*models.Request, error)
	UpdateRequestFields(ctx context.Context, id uuid.UUID, fields map[string]any) error
	ListRequests(ctx context.Context, opts listQuery) ([]models.Request, error)
	ListOverdueWithdrawals(ctx context.Context, asOf time.Time) ([]models.Request, error)

	CreateCrate(ctx context.Context, crate *models.Crate) error
	FindCrateByID(ctx context.Context, id uuid.UUID) (*models.Crate, error)
	FindCrateByIDLocked(ctx context.Context, id uuid.UUID) (*models.Crate, error)
	UpdateCrateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error

	CreateDocuments(ctx context.Context, documents []models.Document) error
	CreateCrateDocuments(ctx context.Context, links []models.CrateDocument) error
	CreateRequestDocuments(ctx context.Context, links []models.RequestDocument) error
	ReplaceRequestDocuments(ctx context.Context, requestID uuid.UUID, links []models.RequestDocument) error
	CreateSendBack(ctx context.Context, sendBack *models.SendBack) error

	FindStorageLocationByID(ctx context.Context, id uuid.UUID) (*models.StorageLocation, error)
	FindUnitByID(ctx context.Context, id uuid.UUID) (*models.Unit, error)
	FindDepartmentByID(ctx context.Context, id uuid.UUID) (*models.Department, error)
	FindSectionByID(ctx context.Context, id uuid.UUID) (*models.Section, error)
}
