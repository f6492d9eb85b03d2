package enums

import "fmt"

// ModerationStatus tracks the review queue state of a product review.
type ModerationStatus string

const (
	ModerationStatusPending  ModerationStatus = "pending"
	ModerationStatusApproved ModerationStatus = "approved"
	ModerationStatusRejected ModerationStatus = "rejected"
)

var validModerationStatuses = []ModerationStatus{
	ModerationStatusPending,
	ModerationStatusApproved,
	ModerationStatusRejected,
}

// String implements fmt.Stringer.
func (m ModerationStatus) String() string {
	return string(m)
}

// IsValid reports whether the value is a known ModerationStatus.
func (m ModerationStatus) IsValid() bool {
	for _, candidate := range validModerationStatuses {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseModerationStatus converts raw input into a ModerationStatus.
func ParseModerationStatus(value string) (ModerationStatus, error) {
	for _, candidate := range validModerationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid moderation status %q", value)
}
