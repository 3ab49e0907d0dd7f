package enums

import "fmt"

// EntityType identifies the kind of row an event was captured for.
type EntityType string

const (
	EntityTypeClass   EntityType = "class"
	EntityTypeLearner EntityType = "learner"
)

var validEntityTypes = []EntityType{
	EntityTypeClass,
	EntityTypeLearner,
}

// IsValid reports whether the value matches the canonical entity type enum.
func (e EntityType) IsValid() bool {
	for _, candidate := range validEntityTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseEntityType converts the raw string to EntityType.
func ParseEntityType(value string) (EntityType, error) {
	for _, candidate := range validEntityTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid entity type %q", value)
}
