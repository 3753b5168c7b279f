package enums

import "fmt"

// AuditAction categorizes an audit ledger entry.
type AuditAction string

const (
	AuditActionCreated           AuditAction = "created"
	AuditActionUpdated           AuditAction = "updated"
	AuditActionDeleted           AuditAction = "deleted"
	AuditActionViewed            AuditAction = "viewed"
	AuditActionApproved          AuditAction = "approved"
	AuditActionRejected          AuditAction = "rejected"
	AuditActionSentBack          AuditAction = "sent_back"
	AuditActionIssued            AuditAction = "issued"
	AuditActionReturned          AuditAction = "returned"
	AuditActionAllocated         AuditAction = "allocated"
	AuditActionDestroyed         AuditAction = "destroyed"
	AuditActionSigned            AuditAction = "signed"
	AuditActionVerified          AuditAction = "verified"
	AuditActionInvalidated       AuditAction = "invalidated"
	AuditActionLogin             AuditAction = "login"
	AuditActionLoginFailed       AuditAction = "login_failed"
	AuditActionLogout            AuditAction = "logout"
	AuditActionSessionTimeout    AuditAction = "session_timeout"
	AuditActionSessionTerminated AuditAction = "session_terminated"
)

var validAuditActions = []AuditAction{
	AuditActionCreated,
	AuditActionUpdated,
	AuditActionDeleted,
	AuditActionViewed,
	AuditActionApproved,
	AuditActionRejected,
	AuditActionSentBack,
	AuditActionIssued,
	AuditActionReturned,
	AuditActionAllocated,
	AuditActionDestroyed,
	AuditActionSigned,
	AuditActionVerified,
	AuditActionInvalidated,
	AuditActionLogin,
	AuditActionLoginFailed,
	AuditActionLogout,
	AuditActionSessionTimeout,
	AuditActionSessionTerminated,
}

// String implements fmt.Stringer.
func (a AuditAction) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AuditAction.
func (a AuditAction) IsValid() bool {
	for _, candidate := range validAuditActions {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAuditAction converts raw input into an AuditAction.
func ParseAuditAction(value string) (AuditAction, error) {
	for _, candidate := range validAuditActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid audit action %q", value)
}
