package signature

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vaultarc/archive-backend/pkg/enums"
)

// canonicalJSON renders v as JSON with object keys sorted at every level, so
// the same logical payload always hashes to the same bytes regardless of
// field order in the source struct or map.
func canonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	var normalized any
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return nil, fmt.Errorf("normalize payload: %w", err)
	}
	out, err := json.Marshal(normalized)
	if err != nil {
		return nil, fmt.Errorf("remarshal payload: %w", err)
	}
	return out, nil
}

// HashPayload returns the hex SHA-256 of the canonical JSON form of payload
// along with the canonical bytes that were hashed. The bytes are stored as
// the signature's snapshot so the hash can be recomputed later.
func HashPayload(payload any) (string, json.RawMessage, error) {
	canonical, err := canonicalJSON(payload)
	if err != nil {
		return "", nil, err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), canonical, nil
}

// signatureHashInput is everything the signature hash binds together. Any
// change to any field changes the hash.
type signatureHashInput struct {
	Username      string
	FullName      string
	Role          string
	SignatureType enums.SignatureType
	SignedAt      time.Time
	TargetKind    enums.TargetKind
	TargetID      uuid.UUID
	DataHash      string
}

// ComputeSignatureHash derives the tamper-evident hash binding signer
// identity, intent, time, target, and data state into one value.
func ComputeSignatureHash(in signatureHashInput) string {
	material := fmt.Sprintf("%s|%s|%s|%s|%s|%s|%s|%s",
		in.Username,
		in.FullName,
		in.Role,
		in.SignatureType,
		in.SignedAt.UTC().Truncate(time.Microsecond).Format(time.RFC3339Nano),
		in.TargetKind,
		in.TargetID,
		in.DataHash,
	)
	sum := sha256.Sum256([]byte(material))
	return hex.EncodeToString(sum[:])
}
