package enums

import "fmt"

// SignatureType names the action a digital signature authorizes.
type SignatureType string

const (
	SignatureTypeApprove     SignatureType = "approve"
	SignatureTypeReject      SignatureType = "reject"
	SignatureTypeAcknowledge SignatureType = "acknowledge"
	SignatureTypeCreate      SignatureType = "create"
	SignatureTypeAllocate    SignatureType = "allocate"
	SignatureTypeIssue       SignatureType = "issue"
	SignatureTypeReturn      SignatureType = "return"
	SignatureTypeDestroy     SignatureType = "destroy"
	SignatureTypeModify      SignatureType = "modify"
	SignatureTypeReview      SignatureType = "review"
)

var validSignatureTypes = []SignatureType{
	SignatureTypeApprove,
	SignatureTypeReject,
	SignatureTypeAcknowledge,
	SignatureTypeCreate,
	SignatureTypeAllocate,
	SignatureTypeIssue,
	SignatureTypeReturn,
	SignatureTypeDestroy,
	SignatureTypeModify,
	SignatureTypeReview,
}

// String implements fmt.Stringer.
func (s SignatureType) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SignatureType.
func (s SignatureType) IsValid() bool {
	for _, candidate := range validSignatureTypes {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSignatureType converts raw input into a SignatureType.
func ParseSignatureType(value string) (SignatureType, error) {
	for _, candidate := range validSignatureTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid signature type %q", value)
}
