package enums

import "fmt"

// RequestStatus tracks the lifecycle of an archive request.
type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusSentBack  RequestStatus = "sent_back"
	RequestStatusApproved  RequestStatus = "approved"
	RequestStatusIssued    RequestStatus = "issued"
	RequestStatusReturned  RequestStatus = "returned"
	RequestStatusRejected  RequestStatus = "rejected"
	RequestStatusCompleted RequestStatus = "completed"
)

var validRequestStatuses = []RequestStatus{
	RequestStatusPending,
	RequestStatusSentBack,
	RequestStatusApproved,
	RequestStatusIssued,
	RequestStatusReturned,
	RequestStatusRejected,
	RequestStatusCompleted,
}

// String implements fmt.Stringer.
func (r RequestStatus) String() string {
	return string(r)
}

// IsValid reports whether the value is a known RequestStatus.
func (r RequestStatus) IsValid() bool {
	for _, candidate := range validRequestStatuses {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are legal from the status.
func (r RequestStatus) IsTerminal() bool {
	switch r {
	case RequestStatusRejected, RequestStatusReturned, RequestStatusCompleted:
		return true
	}
	return false
}

// ParseRequestStatus converts raw input into a RequestStatus.
func ParseRequestStatus(value string) (RequestStatus, error) {
	for _, candidate := range validRequestStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid request status %q", value)
}
