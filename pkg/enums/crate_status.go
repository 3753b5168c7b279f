package enums

import "fmt"

// CrateStatus tracks the physical state of a document crate.
type CrateStatus string

const (
	CrateStatusActive    CrateStatus = "active"
	CrateStatusWithdrawn CrateStatus = "withdrawn"
	CrateStatusArchived  CrateStatus = "archived"
	CrateStatusDestroyed CrateStatus = "destroyed"
)

var validCrateStatuses = []CrateStatus{
	CrateStatusActive,
	CrateStatusWithdrawn,
	CrateStatusArchived,
	CrateStatusDestroyed,
}

// String implements fmt.Stringer.
func (c CrateStatus) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CrateStatus.
func (c CrateStatus) IsValid() bool {
	for _, candidate := range validCrateStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// Withdrawable reports whether a crate in this state may enter a withdrawal flow.
func (c CrateStatus) Withdrawable() bool {
	return c == CrateStatusActive || c == CrateStatusArchived
}

// ParseCrateStatus converts raw input into a CrateStatus.
func ParseCrateStatus(value string) (CrateStatus, error) {
	for _, candidate := range validCrateStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid crate status %q", value)
}
