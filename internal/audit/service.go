package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vaultarc/archive-backend/pkg/db/models"
	pkgerrors "github.com/vaultarc/archive-backend/pkg/errors"
	"github.com/vaultarc/archive-backend/pkg/metrics"
	pkgpagination "github.com/vaultarc/archive-backend/pkg/pagination"
)

// Service exposes the append-only compliance ledger. Append is the only way
// the system records who did what; every workflow transition calls it inside
// the same transaction that commits the transition.
type Service interface {
	Append(ctx context.Context, tx *gorm.DB, input AppendInput) (*models.AuditEntry, error)
	Query(ctx context.Context, params QueryParams) (*EntryList, error)
	Get(ctx context.Context, id uuid.UUID) (*models.AuditEntry, error)
}

type service struct {
	repo    Repository
	metrics *metrics.ComplianceMetrics
}

// NewService builds the audit ledger service.
func NewService(repo Repository, m *metrics.ComplianceMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	return &service{repo: repo, metrics: m}, nil
}

// Append records one event. When tx is non-nil the entry commits or rolls
// back with the caller's transaction.
func (s *service) Append(ctx context.Context, tx *gorm.DB, input AppendInput) (*models.AuditEntry, error) {
	if !input.Action.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown audit action")
	}
	if input.ActorID == nil && input.AttemptedUsername == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "audit entry requires an actor or an attempted username")
	}
	if input.Message == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "audit entry requires a message")
	}

	entry := &models.AuditEntry{
		ID:                uuid.New(),
		ActionTime:        time.Now().UTC(),
		Action:            input.Action,
		ActorID:           input.ActorID,
		AttemptedUsername: input.AttemptedUsername,
		RequestID:         input.RequestID,
		CrateID:           input.CrateID,
		StorageLocationID: input.StorageLocationID,
		DocumentID:        input.DocumentID,
		Message:           input.Message,
		IPAddress:         input.IPAddress,
		UserAgent:         input.UserAgent,
	}
	if err := s.repo.WithTx(tx).Create(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append audit entry")
	}
	s.metrics.IncAuditAppend()
	return entry, nil
}

func (s *service) Query(ctx context.Context, params QueryParams) (*EntryList, error) {
	if params.Filters.Action != nil && !params.Filters.Action.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown audit action")
	}
	if params.Filters.From != nil && params.Filters.To != nil && params.Filters.To.Before(*params.Filters.From) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "time range end precedes start")
	}

	limit := pkgpagination.NormalizeLimit(params.Limit)
	query := listQuery{
		filters: params.Filters,
		limit:   pkgpagination.LimitWithBuffer(params.Limit),
	}
	if params.Cursor != "" {
		cursor, err := pkgpagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.cursor = cursor
	}

	rows, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "query audit ledger")
	}

	nextCursor := ""
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		nextCursor = pkgpagination.EncodeCursor(pkgpagination.Cursor{
			Timestamp: last.ActionTime,
			ID:        last.ID,
		})
	}

	return &EntryList{Entries: rows, NextCursor: nextCursor}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.AuditEntry, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "audit entry id is required")
	}
	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "audit entry not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load audit entry")
	}
	return entry, nil
}
