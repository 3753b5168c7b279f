package signature

import (
	"time"

	"github.com/google/uuid"

	"github.com/vaultarc/archive-backend/pkg/db/models"
	"github.com/vaultarc/archive-backend/pkg/enums"
)

// SignInput carries one signing ceremony. The caller has already
// re-authenticated the signer; PasswordVerifiedAt attests when. Payload is
// the business data being signed, hashed and snapshotted verbatim.
type SignInput struct {
	Signer             *models.User
	PasswordVerifiedAt time.Time
	Type               enums.SignatureType
	Purpose            string
	TargetKind         enums.TargetKind
	TargetID           uuid.UUID
	TargetDescription  string
	Payload            any
	AuditEntryID       *uuid.UUID
	IPAddress          string
	UserAgent          string
}

// InvalidateInput marks a signature invalid without erasing it.
type InvalidateInput struct {
	SignatureID   uuid.UUID
	InvalidatedBy *models.User
	Reason        string
}

// VerificationResult reports one integrity check of a stored signature.
type VerificationResult struct {
	SignatureID       uuid.UUID `json:"signature_id"`
	Valid             bool      `json:"valid"`
	DataHashMatch     bool      `json:"data_hash_match"`
	SignatureHashOK   bool      `json:"signature_hash_ok"`
	RecordMarkedValid bool      `json:"record_marked_valid"`
	Message           string    `json:"message"`
	VerifiedAt        time.Time `json:"verified_at"`
}
