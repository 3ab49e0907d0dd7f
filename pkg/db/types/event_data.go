package dbtypes

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// FieldChange holds the before/after values for one changed field.
type FieldChange struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// Diff maps a field name to its before/after values.
type Diff map[string]FieldChange

// Fields returns the changed field names.
func (d Diff) Fields() []string {
	out := make([]string, 0, len(d))
	for name := range d {
		out = append(out, name)
	}
	return out
}

// EventMetadata carries capture-time context for an event payload.
type EventMetadata struct {
	CapturedAt    string   `json:"captured_at"`
	ChangedFields []string `json:"changed_fields,omitempty"`
	ClassID       int64    `json:"class_id,omitempty"`
	Source        string   `json:"source,omitempty"`
}

// EventData is the structured jsonb payload stored with every event.
type EventData struct {
	NewRow   map[string]any `json:"new_row"`
	OldRow   map[string]any `json:"old_row,omitempty"`
	Diff     Diff           `json:"diff,omitempty"`
	Metadata EventMetadata  `json:"metadata"`
}

func (e EventData) Value() (driver.Value, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("EventData: marshal: %w", err)
	}
	return string(raw), nil
}

func (e *EventData) Scan(src any) error {
	if src == nil {
		*e = EventData{}
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, e)
	case string:
		return json.Unmarshal([]byte(v), e)
	default:
		return fmt.Errorf("EventData: unsupported Scan type %T", src)
	}
}

// AISummary is the jsonb record tracking the enrichment of one event.
type AISummary struct {
	Summary          string     `json:"summary,omitempty"`
	Status           string     `json:"status"`
	Attempts         int        `json:"attempts"`
	ErrorCode        string     `json:"error_code,omitempty"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	Model            string     `json:"model,omitempty"`
	TokensUsed       int        `json:"tokens_used,omitempty"`
	ProcessingTimeMS int64      `json:"processing_time_ms,omitempty"`
	GeneratedAt      *time.Time `json:"generated_at,omitempty"`
}

func (s AISummary) Value() (driver.Value, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("AISummary: marshal: %w", err)
	}
	return string(raw), nil
}

func (s *AISummary) Scan(src any) error {
	if src == nil {
		*s = AISummary{}
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("AISummary: unsupported Scan type %T", src)
	}
}
