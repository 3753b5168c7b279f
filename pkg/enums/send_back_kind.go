package enums

import "fmt"

// SendBackKind distinguishes change requests from return acknowledgements.
type SendBackKind string

const (
	SendBackKindChangeRequest SendBackKind = "change_request"
	SendBackKindReturnNote    SendBackKind = "return_note"
)

var validSendBackKinds = []SendBackKind{
	SendBackKindChangeRequest,
	SendBackKindReturnNote,
}

// String implements fmt.Stringer.
func (s SendBackKind) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SendBackKind.
func (s SendBackKind) IsValid() bool {
	for _, candidate := range validSendBackKinds {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSendBackKind converts raw input into a SendBackKind.
func ParseSendBackKind(value string) (SendBackKind, error) {
	for _, candidate := range validSendBackKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid send back kind %q", value)
}
