package events

import (
	"testing"
)

func TestComputeDiff_EmptyWhenEqual(t *testing.T) {
	oldRow := map[string]any{
		"class_status": "active",
		"capacity":     float64(20),
		"learner_ids":  []any{float64(1), float64(2)},
	}
	newRow := map[string]any{
		"class_status": "active",
		"capacity":     "20",
		"learner_ids":  []any{float64(1), float64(2)},
	}

	diff := ComputeDiff(oldRow, newRow)
	if len(diff) != 0 {
		t.Fatalf("expected empty diff, got %v", diff)
	}
}

func TestComputeDiff_ScalarCoercion(t *testing.T) {
	diff := ComputeDiff(
		map[string]any{"capacity": float64(20), "title": "Welding 101"},
		map[string]any{"capacity": "25", "title": "Welding 101"},
	)

	if len(diff) != 1 {
		t.Fatalf("expected 1 changed field, got %d", len(diff))
	}
	change, ok := diff["capacity"]
	if !ok {
		t.Fatal("expected capacity in diff")
	}
	if change.Old != float64(20) || change.New != "25" {
		t.Fatalf("unexpected change %+v", change)
	}
}

func TestComputeDiff_NullVsEmptyString(t *testing.T) {
	diff := ComputeDiff(
		map[string]any{"coach": nil},
		map[string]any{"coach": ""},
	)
	if _, ok := diff["coach"]; !ok {
		t.Fatal("nil and empty string must differ")
	}

	diff = ComputeDiff(
		map[string]any{"coach": nil},
		map[string]any{"coach": nil},
	)
	if len(diff) != 0 {
		t.Fatalf("both nil must be equal, got %v", diff)
	}
}

func TestComputeDiff_StructuralArrays(t *testing.T) {
	diff := ComputeDiff(
		map[string]any{"learner_ids": []any{float64(1), float64(2)}},
		map[string]any{"learner_ids": []any{float64(1), float64(3)}},
	)
	if _, ok := diff["learner_ids"]; !ok {
		t.Fatal("expected learner_ids in diff")
	}

	diff = ComputeDiff(
		map[string]any{"meta": map[string]any{"site": "north"}},
		map[string]any{"meta": map[string]any{"site": "north"}},
	)
	if len(diff) != 0 {
		t.Fatalf("equal nested objects must not diff, got %v", diff)
	}
}

func TestComputeDiff_RemovedAndAddedKeys(t *testing.T) {
	diff := ComputeDiff(
		map[string]any{"end_date": "2026-03-01"},
		map[string]any{"start_date": "2026-01-01"},
	)

	removed, ok := diff["end_date"]
	if !ok {
		t.Fatal("expected removed key in diff")
	}
	if removed.Old != "2026-03-01" || removed.New != nil {
		t.Fatalf("unexpected removed change %+v", removed)
	}

	added, ok := diff["start_date"]
	if !ok {
		t.Fatal("expected added key in diff")
	}
	if added.Old != nil || added.New != "2026-01-01" {
		t.Fatalf("unexpected added change %+v", added)
	}
}

func TestSortedFields(t *testing.T) {
	diff := ComputeDiff(
		map[string]any{"b": "1", "a": "1", "c": "1"},
		map[string]any{"b": "2", "a": "2", "c": "2"},
	)
	fields := SortedFields(diff)
	if len(fields) != 3 || fields[0] != "a" || fields[1] != "b" || fields[2] != "c" {
		t.Fatalf("expected sorted fields, got %v", fields)
	}
}
