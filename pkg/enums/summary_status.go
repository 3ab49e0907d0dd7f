package enums

import "fmt"

// SummaryStatus tracks the AI summary attached to an event.
// Once success or failed is reached the record never changes again.
type SummaryStatus string

const (
	SummaryStatusPending SummaryStatus = "pending"
	SummaryStatusSuccess SummaryStatus = "success"
	SummaryStatusFailed  SummaryStatus = "failed"
)

var validSummaryStatuses = []SummaryStatus{
	SummaryStatusPending,
	SummaryStatusSuccess,
	SummaryStatusFailed,
}

// IsValid reports whether the value matches the canonical summary status enum.
func (s SummaryStatus) IsValid() bool {
	for _, candidate := range validSummaryStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the summary record is finalized.
func (s SummaryStatus) IsTerminal() bool {
	return s == SummaryStatusSuccess || s == SummaryStatusFailed
}

// ParseSummaryStatus converts the raw string to SummaryStatus.
func ParseSummaryStatus(value string) (SummaryStatus, error) {
	for _, candidate := range validSummaryStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid summary status %q", value)
}
