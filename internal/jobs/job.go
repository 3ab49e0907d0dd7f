package jobs

import (
	"encoding/json"
	"fmt"
)

// Kind discriminates the job variants carried on the jobs topic.
type Kind string

const (
	KindEnrichEvent Kind = "enrich_event"
	KindSendEmail   Kind = "send_email"
)

// Job is one unit of asynchronous pipeline work.
type Job interface {
	Kind() Kind
}

// EnrichEvent asks a worker to run enrichment for one stored event.
type EnrichEvent struct {
	EventID int64 `json:"event_id"`
}

func (EnrichEvent) Kind() Kind { return KindEnrichEvent }

// EmailContext carries the alias table and obfuscated payloads produced
// during enrichment so the rendered email stays consistent with the summary.
// Empty for events that skip enrichment.
type EmailContext struct {
	Aliases    map[string]string `json:"aliases,omitempty"`
	Obfuscated map[string]any    `json:"obfuscated,omitempty"`
}

// SendEmail asks a worker to deliver one notification email.
type SendEmail struct {
	EventID   int64        `json:"event_id"`
	Recipient string       `json:"recipient"`
	Context   EmailContext `json:"context"`
}

func (SendEmail) Kind() Kind { return KindSendEmail }

type envelope struct {
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// Encode serializes a job into the wire envelope.
func Encode(job Job) ([]byte, error) {
	if job == nil {
		return nil, fmt.Errorf("job is required")
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", job.Kind(), err)
	}
	raw, err := json.Marshal(envelope{Kind: job.Kind(), Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", job.Kind(), err)
	}
	return raw, nil
}

// Decode parses the wire envelope back into its concrete job variant.
func Decode(data []byte) (Job, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal job envelope: %w", err)
	}

	switch env.Kind {
	case KindEnrichEvent:
		var job EnrichEvent
		if err := json.Unmarshal(env.Payload, &job); err != nil {
			return nil, fmt.Errorf("unmarshal %s payload: %w", env.Kind, err)
		}
		if job.EventID <= 0 {
			return nil, fmt.Errorf("%s job missing event id", env.Kind)
		}
		return job, nil
	case KindSendEmail:
		var job SendEmail
		if err := json.Unmarshal(env.Payload, &job); err != nil {
			return nil, fmt.Errorf("unmarshal %s payload: %w", env.Kind, err)
		}
		if job.EventID <= 0 {
			return nil, fmt.Errorf("%s job missing event id", env.Kind)
		}
		if job.Recipient == "" {
			return nil, fmt.Errorf("%s job missing recipient", env.Kind)
		}
		return job, nil
	default:
		return nil, fmt.Errorf("unknown job kind %q", env.Kind)
	}
}
