package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/vaultarc/archive-backend/pkg/enums"
)

// Request is one workflow instance over a crate. Rows are never deleted;
// terminal requests stay as history and a crate accumulates them over its
// life.
type Request struct {
	ID                 uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RequestType        enums.RequestType   `gorm:"column:request_type;not null"`
	Status             enums.RequestStatus `gorm:"column:status;not null;default:'pending'"`
	CrateID            uuid.UUID           `gorm:"column:crate_id;type:uuid;not null"`
	Crate              *Crate              `gorm:"foreignKey:CrateID"`
	UnitID             uuid.UUID           `gorm:"column:unit_id;type:uuid;not null"`
	RequestedByID      uuid.UUID           `gorm:"column:requested_by_id;type:uuid;not null"`
	RequestDate        time.Time           `gorm:"column:request_date;autoCreateTime"`
	ApprovedByID       *uuid.UUID          `gorm:"column:approved_by_id;type:uuid"`
	ApprovalDate       *time.Time          `gorm:"column:approval_date"`
	AllocatedByID      *uuid.UUID          `gorm:"column:allocated_by_id;type:uuid"`
	AllocationDate     *time.Time          `gorm:"column:allocation_date"`
	IssuedByID         *uuid.UUID          `gorm:"column:issued_by_id;type:uuid"`
	IssueDate          *time.Time          `gorm:"column:issue_date"`
	ReturnDate         *time.Time          `gorm:"column:return_date"`
	ExpectedReturnDate *time.Time          `gorm:"column:expected_return_date"`
	Purpose            string              `gorm:"column:purpose"`
	// No default tag here: gorm drops zero-valued fields carrying one from
	// the INSERT, which would turn every partial withdrawal into a full one.
	FullWithdrawal     bool                `gorm:"column:full_withdrawal;not null"`
	Documents          []RequestDocument   `gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE"`
	SendBacks          []SendBack          `gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE"`
	CreatedAt          time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// IsOverdue reports whether an issued withdrawal has passed its expected
// return date.
func (r *Request) IsOverdue(now time.Time) bool {
	if r.RequestType != enums.RequestTypeWithdrawal || r.Status != enums.RequestStatusIssued {
		return false
	}
	return r.ExpectedReturnDate != nil && now.After(*r.ExpectedReturnDate)
}

// RequestDocument scopes a request to specific documents, used for partial
// withdrawals.
type RequestDocument struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RequestID  uuid.UUID `gorm:"column:request_id;type:uuid;not null;uniqueIndex:idx_request_documents_pair"`
	DocumentID uuid.UUID `gorm:"column:document_id;type:uuid;not null;uniqueIndex:idx_request_documents_pair"`
	AddedAt    time.Time `gorm:"column:added_at;autoCreateTime"`
}
