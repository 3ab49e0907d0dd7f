package events

import (
	"encoding/json"
	"fmt"
	"sort"

	dbtypes "github.com/coursetrak/coursetrak-backend/pkg/db/types"
)

// ComputeDiff compares two row snapshots field by field. Scalars compare by
// string coercion so that 5 and "5" read as unchanged; arrays and nested
// objects compare structurally. A key present only in the old row records a
// removal with a nil new value, a key present only in the new row records an
// addition with a nil old value.
func ComputeDiff(oldRow, newRow map[string]any) dbtypes.Diff {
	diff := dbtypes.Diff{}

	keys := make(map[string]struct{}, len(oldRow)+len(newRow))
	for k := range oldRow {
		keys[k] = struct{}{}
	}
	for k := range newRow {
		keys[k] = struct{}{}
	}

	for key := range keys {
		oldVal, inOld := oldRow[key]
		newVal, inNew := newRow[key]

		switch {
		case inOld && !inNew:
			diff[key] = dbtypes.FieldChange{Old: oldVal, New: nil}
		case !inOld && inNew:
			diff[key] = dbtypes.FieldChange{Old: nil, New: newVal}
		default:
			if !valuesEqual(oldVal, newVal) {
				diff[key] = dbtypes.FieldChange{Old: oldVal, New: newVal}
			}
		}
	}

	return diff
}

// SortedFields returns the diff's field names in lexical order so emails and
// logs render deterministically.
func SortedFields(diff dbtypes.Diff) []string {
	fields := diff.Fields()
	sort.Strings(fields)
	return fields
}

func valuesEqual(oldVal, newVal any) bool {
	if oldVal == nil && newVal == nil {
		return true
	}
	if oldVal == nil || newVal == nil {
		return false
	}
	if isComposite(oldVal) || isComposite(newVal) {
		return structurallyEqual(oldVal, newVal)
	}
	return coerceString(oldVal) == coerceString(newVal)
}

func isComposite(v any) bool {
	switch v.(type) {
	case map[string]any, []any, []string, []int64, []float64:
		return true
	default:
		return false
	}
}

// structurallyEqual compares through a JSON round trip so that []any and
// typed slices with the same contents read as equal.
func structurallyEqual(a, b any) bool {
	ab, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return string(ab) == string(bb)
}

// coerceString normalizes scalars before comparing. JSON decoding hands every
// number back as float64, so integral floats print without the fraction.
func coerceString(v any) string {
	switch n := v.(type) {
	case float64:
		if n == float64(int64(n)) {
			return fmt.Sprintf("%d", int64(n))
		}
		return fmt.Sprintf("%v", n)
	case float32:
		return coerceString(float64(n))
	default:
		return fmt.Sprintf("%v", v)
	}
}
