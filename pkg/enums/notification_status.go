package enums

import "fmt"

// NotificationStatus tracks an event through the notification lifecycle.
// Transitions only move forward; nothing ever returns to pending.
type NotificationStatus string

const (
	NotificationStatusPending   NotificationStatus = "pending"
	NotificationStatusEnriching NotificationStatus = "enriching"
	NotificationStatusSending   NotificationStatus = "sending"
	NotificationStatusSent      NotificationStatus = "sent"
	NotificationStatusFailed    NotificationStatus = "failed"
)

var validNotificationStatuses = []NotificationStatus{
	NotificationStatusPending,
	NotificationStatusEnriching,
	NotificationStatusSending,
	NotificationStatusSent,
	NotificationStatusFailed,
}

var notificationStatusRank = map[NotificationStatus]int{
	NotificationStatusPending:   0,
	NotificationStatusEnriching: 1,
	NotificationStatusSending:   2,
	NotificationStatusSent:      3,
	NotificationStatusFailed:    3,
}

// IsValid reports whether the value matches the canonical status enum.
func (s NotificationStatus) IsValid() bool {
	for _, candidate := range validNotificationStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the pipeline is done with the event.
func (s NotificationStatus) IsTerminal() bool {
	return s == NotificationStatusSent || s == NotificationStatusFailed
}

// CanAdvanceTo reports whether moving to next keeps the lifecycle monotonic.
func (s NotificationStatus) CanAdvanceTo(next NotificationStatus) bool {
	from, ok := notificationStatusRank[s]
	if !ok {
		return false
	}
	to, ok := notificationStatusRank[next]
	if !ok {
		return false
	}
	if s.IsTerminal() {
		return false
	}
	return to > from
}

// ParseNotificationStatus converts the raw string to NotificationStatus.
func ParseNotificationStatus(value string) (NotificationStatus, error) {
	for _, candidate := range validNotificationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification status %q", value)
}
