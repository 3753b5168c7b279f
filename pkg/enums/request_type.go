package enums

import "fmt"

// RequestType identifies which workflow a request runs through.
type RequestType string

const (
	RequestTypeStorage     RequestType = "storage"
	RequestTypeWithdrawal  RequestType = "withdrawal"
	RequestTypeDestruction RequestType = "destruction"
)

var validRequestTypes = []RequestType{
	RequestTypeStorage,
	RequestTypeWithdrawal,
	RequestTypeDestruction,
}

// String implements fmt.Stringer.
func (r RequestType) String() string {
	return string(r)
}

// IsValid reports whether the value is a known RequestType.
func (r RequestType) IsValid() bool {
	for _, candidate := range validRequestTypes {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRequestType converts raw input into a RequestType.
func ParseRequestType(value string) (RequestType, error) {
	for _, candidate := range validRequestTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid request type %q", value)
}
