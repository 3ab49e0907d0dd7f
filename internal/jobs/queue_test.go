package jobs

import (
	"context"
	"errors"
	"testing"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/coursetrak/coursetrak-backend/pkg/logger"
)

type stubPublishResult struct {
	id  string
	err error
}

func (s stubPublishResult) Get(ctx context.Context) (string, error) {
	return s.id, s.err
}

type stubPublisher struct {
	published []*gcppubsub.Message
	err       error
}

func (s *stubPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	s.published = append(s.published, msg)
	return stubPublishResult{id: "m1", err: s.err}
}

func newTestQueue(pub publisher) *PubSubQueue {
	return &PubSubQueue{
		pub:            pub,
		logg:           logger.New(logger.Options{ServiceName: "test"}),
		publishTimeout: defaultPublishTimeout,
	}
}

func TestSubmit_PublishesEnvelopeWithKindAttribute(t *testing.T) {
	pub := &stubPublisher{}
	q := newTestQueue(pub)

	if err := q.Submit(context.Background(), EnrichEvent{EventID: 42}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if len(pub.published) != 1 {
		t.Fatalf("expected 1 message, got %d", len(pub.published))
	}
	msg := pub.published[0]
	if msg.Attributes["kind"] != string(KindEnrichEvent) {
		t.Fatalf("unexpected attributes %v", msg.Attributes)
	}

	decoded, err := Decode(msg.Data)
	if err != nil {
		t.Fatalf("decode published payload: %v", err)
	}
	if decoded.(EnrichEvent).EventID != 42 {
		t.Fatalf("unexpected payload %+v", decoded)
	}
}

func TestSubmit_PublishFailure(t *testing.T) {
	pub := &stubPublisher{err: errors.New("topic gone")}
	q := newTestQueue(pub)

	if err := q.Submit(context.Background(), EnrichEvent{EventID: 42}); err == nil {
		t.Fatal("expected publish error")
	}
}

func TestSubmit_InvalidJob(t *testing.T) {
	q := newTestQueue(&stubPublisher{})
	if err := q.Submit(context.Background(), nil); err == nil {
		t.Fatal("expected encode error")
	}
}
