package enums

import "fmt"

// Operation is the coarse insert/update/delete category used for email
// presentation and the legacy single-recipient settings.
type Operation string

const (
	OperationInsert Operation = "insert"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

var validOperations = []Operation{
	OperationInsert,
	OperationUpdate,
	OperationDelete,
}

// IsValid reports whether the value matches the canonical operation enum.
func (o Operation) IsValid() bool {
	for _, candidate := range validOperations {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOperation converts the raw string to Operation.
func ParseOperation(value string) (Operation, error) {
	for _, candidate := range validOperations {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid operation %q", value)
}
