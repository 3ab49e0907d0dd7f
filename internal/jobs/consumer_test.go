package jobs

import (
	"context"
	"errors"
	"testing"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/coursetrak/coursetrak-backend/pkg/logger"
)

type stubEnricher struct {
	calls []int64
	err   error
}

func (s *stubEnricher) Enrich(ctx context.Context, eventID int64) error {
	s.calls = append(s.calls, eventID)
	return s.err
}

type stubSender struct {
	calls []SendEmail
	err   error
}

func (s *stubSender) Send(ctx context.Context, job SendEmail) error {
	s.calls = append(s.calls, job)
	return s.err
}

func newTestConsumer(t *testing.T, enricher *stubEnricher, sender *stubSender) *Consumer {
	t.Helper()
	c := &Consumer{
		enricher: enricher,
		sender:   sender,
		logg:     logger.New(logger.Options{ServiceName: "test"}),
	}
	return c
}

func messageFor(t *testing.T, job Job) *pubsub.Message {
	t.Helper()
	raw, err := Encode(job)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return &pubsub.Message{
		Data:       raw,
		Attributes: map[string]string{"kind": string(job.Kind())},
	}
}

func TestProcess_DispatchesEnrich(t *testing.T) {
	enricher := &stubEnricher{}
	sender := &stubSender{}
	c := newTestConsumer(t, enricher, sender)

	result := c.process(context.Background(), messageFor(t, EnrichEvent{EventID: 42}))
	if result.nack {
		t.Fatal("expected ack")
	}
	if len(enricher.calls) != 1 || enricher.calls[0] != 42 {
		t.Fatalf("unexpected enrich calls %v", enricher.calls)
	}
	if len(sender.calls) != 0 {
		t.Fatal("sender must not be called")
	}
}

func TestProcess_DispatchesSend(t *testing.T) {
	enricher := &stubEnricher{}
	sender := &stubSender{}
	c := newTestConsumer(t, enricher, sender)

	job := SendEmail{EventID: 7, Recipient: "ops@coursetrak.io"}
	result := c.process(context.Background(), messageFor(t, job))
	if result.nack {
		t.Fatal("expected ack")
	}
	if len(sender.calls) != 1 || sender.calls[0].Recipient != "ops@coursetrak.io" {
		t.Fatalf("unexpected send calls %v", sender.calls)
	}
}

func TestProcess_EnrichFailureNacksForRedelivery(t *testing.T) {
	enricher := &stubEnricher{err: errors.New("db unavailable")}
	c := newTestConsumer(t, enricher, &stubSender{})

	result := c.process(context.Background(), messageFor(t, EnrichEvent{EventID: 42}))
	if !result.nack {
		t.Fatal("transient enrich failures must be redelivered")
	}
}

func TestProcess_SendFailureAcksTerminally(t *testing.T) {
	sender := &stubSender{err: errors.New("smtp down")}
	c := newTestConsumer(t, &stubEnricher{}, sender)

	job := SendEmail{EventID: 7, Recipient: "ops@coursetrak.io"}
	result := c.process(context.Background(), messageFor(t, job))
	if result.nack {
		t.Fatal("failed sends are terminal and must not be redelivered")
	}
}

func TestProcess_MalformedPayloadIsDropped(t *testing.T) {
	c := newTestConsumer(t, &stubEnricher{}, &stubSender{})

	result := c.process(context.Background(), &pubsub.Message{Data: []byte("not json")})
	if result.nack {
		t.Fatal("malformed payloads are dropped, not redelivered")
	}
}
