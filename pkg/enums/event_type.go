package enums

import "fmt"

// EventType is the closed set of captured domain changes.
type EventType string

const (
	EventTypeClassInsert   EventType = "class_insert"
	EventTypeClassUpdate   EventType = "class_update"
	EventTypeClassDelete   EventType = "class_delete"
	EventTypeStatusChange  EventType = "status_change"
	EventTypeLearnerAdd    EventType = "learner_add"
	EventTypeLearnerRemove EventType = "learner_remove"
	EventTypeLearnerUpdate EventType = "learner_update"
)

var validEventTypes = []EventType{
	EventTypeClassInsert,
	EventTypeClassUpdate,
	EventTypeClassDelete,
	EventTypeStatusChange,
	EventTypeLearnerAdd,
	EventTypeLearnerRemove,
	EventTypeLearnerUpdate,
}

// IsValid reports whether the value matches the canonical event type enum.
func (e EventType) IsValid() bool {
	for _, candidate := range validEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseEventType converts the raw string to EventType.
func ParseEventType(value string) (EventType, error) {
	for _, candidate := range validEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// EventTypes returns the canonical set in declaration order.
func EventTypes() []EventType {
	out := make([]EventType, len(validEventTypes))
	copy(out, validEventTypes)
	return out
}

// Operation maps the event type to the coarse operation used for
// presentation and the legacy recipient settings.
func (e EventType) Operation() Operation {
	switch e {
	case EventTypeClassInsert, EventTypeLearnerAdd:
		return OperationInsert
	case EventTypeClassDelete, EventTypeLearnerRemove:
		return OperationDelete
	default:
		return OperationUpdate
	}
}

// Entity maps the event type to the kind of row it is captured for.
func (e EventType) Entity() EntityType {
	switch e {
	case EventTypeLearnerAdd, EventTypeLearnerRemove, EventTypeLearnerUpdate:
		return EntityTypeLearner
	default:
		return EntityTypeClass
	}
}

// SkipsEnrichment reports whether the event type never benefits from an AI
// narration and goes straight to email.
func (e EventType) SkipsEnrichment() bool {
	switch e {
	case EventTypeClassInsert, EventTypeClassDelete, EventTypeLearnerAdd, EventTypeLearnerRemove:
		return true
	default:
		return false
	}
}
