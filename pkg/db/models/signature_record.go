package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vaultarc/archive-backend/pkg/enums"
	pkgerrors "github.com/vaultarc/archive-backend/pkg/errors"
)

// SignatureInvalidationKey marks a statement as the sanctioned QA
// invalidation write, the only update a signature row ever accepts. The
// storage trigger whitelists the same column set independently.
const SignatureInvalidationKey = "archive:signature_invalidation"

// SignatureRecord is a digital signature: a cryptographically bound proof
// that a specific authenticated actor authorized a specific action on
// specific data at a specific time. Signer fields are snapshots taken at
// signing time so later role or name changes cannot rewrite history. The
// re-entered password is verified and discarded; only PasswordVerifiedAt
// survives.
type SignatureRecord struct {
	ID                   uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SignerID             uuid.UUID           `gorm:"column:signer_id;type:uuid;not null;index:idx_signature_records_signer_time"`
	SignerUsername       string              `gorm:"column:signer_username;not null"`
	SignerFullName       string              `gorm:"column:signer_full_name;not null"`
	SignerRole           string              `gorm:"column:signer_role;not null"`
	SignerEmail          string              `gorm:"column:signer_email;not null"`
	AuthenticationMethod string              `gorm:"column:authentication_method;not null;default:'password'"`
	PasswordVerifiedAt   time.Time           `gorm:"column:password_verified_at;not null"`
	SignatureType        enums.SignatureType `gorm:"column:signature_type;not null;index"`
	Purpose              string              `gorm:"column:purpose;not null"`
	SignedAt             time.Time           `gorm:"column:signed_at;not null;index:idx_signature_records_signer_time"`
	TargetKind           enums.TargetKind    `gorm:"column:target_kind;not null;index:idx_signature_records_target"`
	TargetID             uuid.UUID           `gorm:"column:target_id;type:uuid;not null;index:idx_signature_records_target"`
	TargetDescription    string              `gorm:"column:target_description"`
	DataHash             string              `gorm:"column:data_hash;not null;index"`
	PayloadSnapshot      json.RawMessage     `gorm:"column:payload_snapshot;type:jsonb;not null"`
	SignatureHash        string              `gorm:"column:signature_hash;not null"`
	IPAddress            string              `gorm:"column:ip_address"`
	UserAgent            string              `gorm:"column:user_agent"`
	IsValid              bool                `gorm:"column:is_valid;not null;default:true"`
	InvalidationReason   string              `gorm:"column:invalidation_reason"`
	InvalidatedAt        *time.Time          `gorm:"column:invalidated_at"`
	InvalidatedByID      *uuid.UUID          `gorm:"column:invalidated_by_id;type:uuid"`
	AuditEntryID         *uuid.UUID          `gorm:"column:audit_entry_id;type:uuid"`
}

// BeforeUpdate rejects every write except the marked QA invalidation path.
func (SignatureRecord) BeforeUpdate(tx *gorm.DB) error {
	if _, ok := tx.InstanceGet(SignatureInvalidationKey); ok {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeIntegrity, "signature records are immutable")
}

// BeforeDelete blocks every delete attempt.
func (SignatureRecord) BeforeDelete(*gorm.DB) error {
	return pkgerrors.New(pkgerrors.CodeIntegrity, "signature records cannot be deleted")
}

// SignatureVerification records one integrity check of a signature, so the
// review trail itself is reviewable.
type SignatureVerification struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SignatureID  uuid.UUID `gorm:"column:signature_id;type:uuid;not null;index"`
	VerifiedByID uuid.UUID `gorm:"column:verified_by_id;type:uuid;not null"`
	VerifiedAt   time.Time `gorm:"column:verified_at;autoCreateTime"`
	Result       bool      `gorm:"column:result;not null"`
	Message      string    `gorm:"column:message;not null"`
}
