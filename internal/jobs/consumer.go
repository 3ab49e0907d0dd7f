package jobs

import (
	"context"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/coursetrak/coursetrak-backend/pkg/logger"
)

// EnrichHandler runs enrichment for one event.
type EnrichHandler interface {
	Enrich(ctx context.Context, eventID int64) error
}

// SendHandler delivers one notification email.
type SendHandler interface {
	Send(ctx context.Context, job SendEmail) error
}

// Consumer receives jobs from the shared subscription and dispatches each
// variant to its handler.
type Consumer struct {
	subscription *pubsub.Subscriber
	enricher     EnrichHandler
	sender       SendHandler
	logg         *logger.Logger
}

// ConsumerParams wires the consumer dependencies.
type ConsumerParams struct {
	Subscription *pubsub.Subscriber
	Enricher     EnrichHandler
	Sender       SendHandler
	Logger       *logger.Logger
}

// NewConsumer builds the jobs consumer.
func NewConsumer(params ConsumerParams) (*Consumer, error) {
	if params.Subscription == nil {
		return nil, fmt.Errorf("jobs subscription required")
	}
	if params.Enricher == nil {
		return nil, fmt.Errorf("enrich handler required")
	}
	if params.Sender == nil {
		return nil, fmt.Errorf("send handler required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		subscription: params.Subscription,
		enricher:     params.Enricher,
		sender:       params.Sender,
		logg:         params.Logger,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"kind":       msg.Attributes["kind"],
	})

	job, err := Decode(msg.Data)
	if err != nil {
		// Malformed payloads never become valid; drop them.
		c.logg.Error(logCtx, "failed to decode job", err)
		return processResult{ack: true}
	}

	switch j := job.(type) {
	case EnrichEvent:
		logCtx = c.logg.WithEventID(logCtx, j.EventID)
		if err := c.enricher.Enrich(logCtx, j.EventID); err != nil {
			c.logg.Error(logCtx, "enrich job failed", err)
			return processResult{nack: true}
		}
	case SendEmail:
		logCtx = c.logg.WithEventID(logCtx, j.EventID)
		logCtx = c.logg.WithRecipient(logCtx, j.Recipient)
		if err := c.sender.Send(logCtx, j); err != nil {
			// A failed send is terminal for the event; redelivery would
			// resend against an already failed row.
			c.logg.Error(logCtx, "send job failed", err)
			return processResult{ack: true}
		}
	default:
		c.logg.Warn(logCtx, "unhandled job kind")
		return processResult{ack: true}
	}

	return processResult{ack: true}
}
