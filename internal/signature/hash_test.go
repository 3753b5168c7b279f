package signature

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultarc/archive-backend/pkg/enums"
)

func TestHashPayloadIgnoresKeyOrder(t *testing.T) {
	a := map[string]any{"status": "approved", "request_id": "r1", "documents": []string{"d1", "d2"}}
	b := map[string]any{"documents": []string{"d1", "d2"}, "request_id": "r1", "status": "approved"}

	hashA, _, err := HashPayload(a)
	require.NoError(t, err)
	hashB, _, err := HashPayload(b)
	require.NoError(t, err)
	assert.Equal(t, hashA, hashB)
}

func TestHashPayloadStableAcrossSnapshotReencoding(t *testing.T) {
	payload := map[string]any{"barcode": "MFG01/QA/2026/00001", "to_central": true}
	hash, snapshot, err := HashPayload(payload)
	require.NoError(t, err)

	// Simulate jsonb round-tripping the snapshot with different formatting.
	var decoded any
	require.NoError(t, json.Unmarshal(snapshot, &decoded))
	pretty, err := json.MarshalIndent(decoded, "", "  ")
	require.NoError(t, err)

	rehash, _, err := HashPayload(json.RawMessage(pretty))
	require.NoError(t, err)
	assert.Equal(t, hash, rehash)
}

func TestHashPayloadDetectsChanges(t *testing.T) {
	hashA, _, err := HashPayload(map[string]any{"qty": 5})
	require.NoError(t, err)
	hashB, _, err := HashPayload(map[string]any{"qty": 6})
	require.NoError(t, err)
	assert.NotEqual(t, hashA, hashB)
}

func TestComputeSignatureHashBindsEveryField(t *testing.T) {
	base := signatureHashInput{
		Username:      "jdoe",
		FullName:      "Jane Doe",
		Role:          "Section Head",
		SignatureType: enums.SignatureTypeApprove,
		SignedAt:      time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		TargetKind:    enums.TargetKindRequest,
		TargetID:      uuid.New(),
		DataHash:      "abc123",
	}
	original := ComputeSignatureHash(base)

	tampered := base
	tampered.Role = "Store Head"
	assert.NotEqual(t, original, ComputeSignatureHash(tampered))

	tampered = base
	tampered.SignedAt = base.SignedAt.Add(time.Second)
	assert.NotEqual(t, original, ComputeSignatureHash(tampered))

	tampered = base
	tampered.DataHash = "abc124"
	assert.NotEqual(t, original, ComputeSignatureHash(tampered))

	assert.Equal(t, original, ComputeSignatureHash(base))
}

func TestComputeSignatureHashSurvivesMicrosecondStorage(t *testing.T) {
	base := signatureHashInput{
		Username:      "jdoe",
		FullName:      "Jane Doe",
		Role:          "Section Head",
		SignatureType: enums.SignatureTypeApprove,
		SignedAt:      time.Date(2026, 3, 1, 9, 0, 0, 123456789, time.UTC),
		TargetKind:    enums.TargetKindRequest,
		TargetID:      uuid.New(),
		DataHash:      "abc123",
	}
	original := ComputeSignatureHash(base)

	// timestamptz keeps microseconds only; the hash must not depend on the
	// sub-microsecond digits the database drops.
	stored := base
	stored.SignedAt = base.SignedAt.Truncate(time.Microsecond)
	assert.Equal(t, original, ComputeSignatureHash(stored))

	shifted := base
	shifted.SignedAt = base.SignedAt.Add(time.Microsecond)
	assert.NotEqual(t, original, ComputeSignatureHash(shifted))
}
