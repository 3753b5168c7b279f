package workflow

import (
	"time"

	"github.com/google/uuid"

	"github.com/vaultarc/archive-backend/pkg/db/models"
	"github.com/vaultarc/archive-backend/pkg/enums"
	pkgpagination "github.com/vaultarc/archive-backend/pkg/pagination"
)

// Actor is the authenticated identity performing a transition, together with
// the proof that their credentials were just re-verified for signing.
type Actor struct {
	User               *models.User
	PasswordVerifiedAt time.Time
	IPAddress          string
	UserAgent          string
}

// DocumentSpec describes a document registered as part of a storage request.
type DocumentSpec struct {
	Name        string
	Number      string
	Type        enums.DocumentType
	Description string
}

// NewCrateSpec describes the crate a storage request brings into the archive.
type NewCrateSpec struct {
	DepartmentID    uuid.UUID
	SectionID       *uuid.UUID
	ToCentral       bool
	ToBeRetained    bool
	DestructionDate *time.Time
	Documents       []DocumentSpec
}

// CreateRequestInput starts one workflow. Storage requests carry NewCrate;
// withdrawal and destruction requests reference an existing crate.
type CreateRequestInput struct {
	Type               enums.RequestType
	Purpose            string
	NewCrate           *NewCrateSpec
	CrateID            *uuid.UUID
	ExpectedReturnDate *time.Time
	FullWithdrawal     bool
	DocumentIDs        []uuid.UUID
}

// ResubmitInput is the full payload replacement accepted on a sent-back
// request. The request restarts approval from scratch with these values.
type ResubmitInput struct {
	Purpose            string
	ExpectedReturnDate *time.Time
	DestructionDate    *time.Time
	FullWithdrawal     *bool
	DocumentIDs        []uuid.UUID
}

// ReturnInput closes an issued withdrawal. Documents always come back to a
// named destination; Note optionally records the condition they came back in.
type ReturnInput struct {
	DestinationStorageID uuid.UUID
	Note                 string
}

// ListFilters narrows a request listing. Zero-valued fields are ignored.
type ListFilters struct {
	Type    *enums.RequestType
	Status  *enums.RequestStatus
	UnitID  *uuid.UUID
	CrateID *uuid.UUID
}

// ListParams combines filters with cursor pagination inputs.
type ListParams struct {
	Filters ListFilters
	pkgpagination.Params
}

// RequestList is one reverse-chronological page of requests.
type RequestList struct {
	Requests   []models.Request `json:"requests"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

type listQuery struct {
	filters ListFilters
	limit   int
	cursor  *pkgpagination.Cursor
}
