package enums

import "fmt"

// TargetKind tags the entity a signature is bound to. Signatures reference
// their target as (kind, id) rather than a foreign key so any entity can be
// signed without schema churn.
type TargetKind string

const (
	TargetKindRequest         TargetKind = "request"
	TargetKindCrate           TargetKind = "crate"
	TargetKindDocument        TargetKind = "document"
	TargetKindStorageLocation TargetKind = "storage_location"
	TargetKindUser            TargetKind = "user"
	TargetKindSignature       TargetKind = "signature"
)

var validTargetKinds = []TargetKind{
	TargetKindRequest,
	TargetKindCrate,
	TargetKindDocument,
	TargetKindStorageLocation,
	TargetKindUser,
	TargetKindSignature,
}

// String implements fmt.Stringer.
func (t TargetKind) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TargetKind.
func (t TargetKind) IsValid() bool {
	for _, candidate := range validTargetKinds {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTargetKind converts raw input into a TargetKind.
func ParseTargetKind(value string) (TargetKind, error) {
	for _, candidate := range validTargetKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid target kind %q", value)
}
