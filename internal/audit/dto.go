package audit

import (
	"time"

	"github.com/google/uuid"

	"github.com/vaultarc/archive-backend/pkg/db/models"
	"github.com/vaultarc/archive-backend/pkg/enums"
	pkgpagination "github.com/vaultarc/archive-backend/pkg/pagination"
)

// AppendInput describes one event to record. Exactly one of ActorID and
// AttemptedUsername must be set: real actors by id, failed logins by the
// username string they claimed.
type AppendInput struct {
	Action            enums.AuditAction
	ActorID           *uuid.UUID
	AttemptedUsername string
	RequestID         *uuid.UUID
	CrateID           *uuid.UUID
	StorageLocationID *uuid.UUID
	DocumentID        *uuid.UUID
	Message           string
	IPAddress         string
	UserAgent         string
}

// QueryFilters narrows a ledger listing. Zero-valued fields are ignored.
type QueryFilters struct {
	ActorID   *uuid.UUID
	Action    *enums.AuditAction
	RequestID *uuid.UUID
	CrateID   *uuid.UUID
	From      *time.Time
	To        *time.Time
}

// QueryParams combines filters with cursor pagination inputs.
type QueryParams struct {
	Filters QueryFilters
	pkgpagination.Params
}

// EntryList is one reverse-chronological page of the ledger.
type EntryList struct {
	Entries    []models.AuditEntry `json:"entries"`
	NextCursor string              `json:"next_cursor,omitempty"`
}

type listQuery struct {
	filters QueryFilters
	limit   int
	cursor  *pkgpagination.Cursor
}
