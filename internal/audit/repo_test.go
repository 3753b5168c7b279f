package audit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/vaultarc/archive-backend/pkg/db/models"
	"github.com/vaultarc/archive-backend/pkg/enums"
	pkgerrors "github.com/vaultarc/archive-backend/pkg/errors"
	"github.com/vaultarc/archive-backend/pkg/pagination"
)

func setupAuditTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS audit_entries (
  id TEXT PRIMARY KEY,
  action_time DATETIME NOT NULL,
  action TEXT NOT NULL,
  actor_id TEXT,
  attempted_username TEXT,
  request_id TEXT,
  crate_id TEXT,
  storage_location_id TEXT,
  document_id TEXT,
  message TEXT NOT NULL,
  ip_address TEXT,
  user_agent TEXT
);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

func seedEntry(t *testing.T, db *gorm.DB, action enums.AuditAction, actorID *uuid.UUID, at time.Time) models.AuditEntry {
	t.Helper()

	entry := models.AuditEntry{
		ID:         uuid.New(),
		ActionTime: at,
		Action:     action,
		ActorID:    actorID,
		Message:    "seed entry",
	}
	require.NoError(t, db.Create(&entry).Error)
	return entry
}

func TestAuditRepoListNewestFirst(t *testing.T) {
	db := setupAuditTestDB(t)
	repo := NewRepository(db)

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	first := seedEntry(t, db, enums.AuditActionLogin, nil, base)
	second := seedEntry(t, db, enums.AuditActionCreated, nil, base.Add(time.Minute))

	rows, err := repo.List(context.Background(), listQuery{limit: 10})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, second.ID, rows[0].ID)
	assert.Equal(t, first.ID, rows[1].ID)
}

func TestAuditRepoListCursorWalksPages(t *testing.T) {
	db := setupAuditTestDB(t)
	repo := NewRepository(db)

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		seedEntry(t, db, enums.AuditActionLogin, nil, base.Add(time.Duration(i)*time.Minute))
	}

	page, err := repo.List(context.Background(), listQuery{limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)

	cursor := &pagination.Cursor{Timestamp: page[1].ActionTime, ID: page[1].ID}
	rest, err := repo.List(context.Background(), listQuery{limit: 2, cursor: cursor})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.True(t, rest[0].ActionTime.Before(page[1].ActionTime))
}

func TestAuditRepoListFilters(t *testing.T) {
	db := setupAuditTestDB(t)
	repo := NewRepository(db)

	actor := uuid.New()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	seedEntry(t, db, enums.AuditActionLogin, &actor, base)
	seedEntry(t, db, enums.AuditActionApproved, nil, base.Add(time.Hour))

	action := enums.AuditActionLogin
	rows, err := repo.List(context.Background(), listQuery{
		filters: QueryFilters{ActorID: &actor, Action: &action},
		limit:   10,
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.AuditActionLogin, rows[0].Action)

	from := base.Add(30 * time.Minute)
	rows, err = repo.List(context.Background(), listQuery{
		filters: QueryFilters{From: &from},
		limit:   10,
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.AuditActionApproved, rows[0].Action)
}

func TestAuditEntriesRejectMutation(t *testing.T) {
	db := setupAuditTestDB(t)

	entry := seedEntry(t, db, enums.AuditActionLogin, nil, time.Now().UTC())

	err := db.Model(&entry).Update("message", "rewritten").Error
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeIntegrity))

	err = db.Delete(&entry).Error
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeIntegrity))

	var count int64
	require.NoError(t, db.Model(&models.AuditEntry{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
