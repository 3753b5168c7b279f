package audit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/vaultarc/archive-backend/pkg/db/models"
	"github.com/vaultarc/archive-backend/pkg/enums"
	pkgerrors "github.com/vaultarc/archive-backend/pkg/errors"
	"github.com/vaultarc/archive-backend/pkg/pagination"
)

type stubAuditRepo struct {
	created []models.AuditEntry
	rows    []models.AuditEntry
	err     error
	lastTx  *gorm.DB
}

func (s *stubAuditRepo) WithTx(tx *gorm.DB) Repository {
	s.lastTx = tx
	return s
}

func (s *stubAuditRepo) Create(ctx context.Context, entry *models.AuditEntry) error {
	if s.err != nil {
		return s.err
	}
	s.created = append(s.created, *entry)
	return nil
}

func (s *stubAuditRepo) List(ctx context.Context, opts listQuery) ([]models.AuditEntry, error) {
	if s.err != nil {
		return nil, s.err
	}
	if opts.limit > 0 && len(s.rows) > opts.limit {
		return s.rows[:opts.limit], nil
	}
	return s.rows, nil
}

func (s *stubAuditRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.AuditEntry, error) {
	if s.err != nil {
		return nil, s.err
	}
	for _, row := range s.rows {
		if row.ID == id {
			entry := row
			return &entry, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func TestAppendStampsIdentityAndTime(t *testing.T) {
	repo := &stubAuditRepo{}
	svc, err := NewService(repo, nil)
	require.NoError(t, err)

	actor := uuid.New()
	entry, err := svc.Append(context.Background(), nil, AppendInput{
		Action:  enums.AuditActionApproved,
		ActorID: &actor,
		Message: "request approved",
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, entry.ID)
	assert.WithinDuration(t, time.Now().UTC(), entry.ActionTime, time.Minute)
	require.Len(t, repo.created, 1)
}

func TestAppendRequiresIdentity(t *testing.T) {
	svc, err := NewService(&stubAuditRepo{}, nil)
	require.NoError(t, err)

	_, err = svc.Append(context.Background(), nil, AppendInput{
		Action:  enums.AuditActionLoginFailed,
		Message: "bad credentials",
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	// Failed logins carry the claimed username instead of an actor id.
	entry, err := svc.Append(context.Background(), nil, AppendInput{
		Action:            enums.AuditActionLoginFailed,
		AttemptedUsername: "jdoe",
		Message:           "bad credentials",
	})
	require.NoError(t, err)
	assert.Nil(t, entry.ActorID)
	assert.Equal(t, "jdoe", entry.AttemptedUsername)
}

func TestAppendRejectsUnknownAction(t *testing.T) {
	svc, err := NewService(&stubAuditRepo{}, nil)
	require.NoError(t, err)

	actor := uuid.New()
	_, err = svc.Append(context.Background(), nil, AppendInput{
		Action:  enums.AuditAction("vanished"),
		ActorID: &actor,
		Message: "x",
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestQueryBuildsNextCursor(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	rows := make([]models.AuditEntry, 3)
	for i := range rows {
		rows[i] = models.AuditEntry{
			ID:         uuid.New(),
			ActionTime: base.Add(-time.Duration(i) * time.Minute),
			Action:     enums.AuditActionLogin,
			Message:    "seed",
		}
	}
	repo := &stubAuditRepo{rows: rows}
	svc, err := NewService(repo, nil)
	require.NoError(t, err)

	list, err := svc.Query(context.Background(), QueryParams{Params: pagination.Params{Limit: 2}})
	require.NoError(t, err)
	require.Len(t, list.Entries, 2)
	require.NotEmpty(t, list.NextCursor)

	cursor, err := pagination.ParseCursor(list.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, list.Entries[1].ID, cursor.ID)
}

func TestQueryRejectsBadCursorAndRange(t *testing.T) {
	svc, err := NewService(&stubAuditRepo{}, nil)
	require.NoError(t, err)

	_, err = svc.Query(context.Background(), QueryParams{Params: pagination.Params{Cursor: "notbase64"}})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	from := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	to := from.Add(-time.Hour)
	_, err = svc.Query(context.Background(), QueryParams{Filters: QueryFilters{From: &from, To: &to}})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
