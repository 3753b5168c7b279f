package enums

import "fmt"

// Privilege is a named capability atom granted to a role. Transitions are
// guarded by privilege membership, never by role names.
type Privilege string

const (
	PrivilegeCreateRequest       Privilege = "create_request"
	PrivilegeApproveRequest      Privilege = "approve_request"
	PrivilegeAllocateStorage     Privilege = "allocate_storage"
	PrivilegeIssueDocuments      Privilege = "issue_documents"
	PrivilegeConfirmDestruction  Privilege = "confirm_destruction"
	PrivilegeInvalidateSignature Privilege = "invalidate_signature"
	PrivilegeVerifySignature     Privilege = "verify_signature"
	PrivilegeViewAudit           Privilege = "view_audit"
	PrivilegeManageUsers         Privilege = "manage_users"
	PrivilegeManageStorage       Privilege = "manage_storage"
)

var validPrivileges = []Privilege{
	PrivilegeCreateRequest,
	PrivilegeApproveRequest,
	PrivilegeAllocateStorage,
	PrivilegeIssueDocuments,
	PrivilegeConfirmDestruction,
	PrivilegeInvalidateSignature,
	PrivilegeVerifySignature,
	PrivilegeViewAudit,
	PrivilegeManageUsers,
	PrivilegeManageStorage,
}

// AllPrivileges returns every known privilege atom.
func AllPrivileges() []Privilege {
	return validPrivileges
}

// String implements fmt.Stringer.
func (p Privilege) String() string {
	return string(p)
}

// IsValid reports whether the value is a known Privilege.
func (p Privilege) IsValid() bool {
	for _, candidate := range validPrivileges {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePrivilege converts raw input into a Privilege.
func ParsePrivilege(value string) (Privilege, error) {
	for _, candidate := range validPrivileges {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid privilege %q", value)
}
