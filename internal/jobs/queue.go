package jobs

import (
	"context"
	"errors"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/coursetrak/coursetrak-backend/pkg/logger"
)

const defaultPublishTimeout = 15 * time.Second

// Queue submits pipeline jobs for asynchronous execution.
type Queue interface {
	Submit(ctx context.Context, job Job) error
}

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type gcpPublisher struct {
	inner *gcppubsub.Publisher
}

func (p gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return p.inner.Publish(ctx, msg)
}

// PubSubQueue publishes jobs to the shared jobs topic.
type PubSubQueue struct {
	pub            publisher
	logg           *logger.Logger
	publishTimeout time.Duration
}

// PubSubQueueParams wires the queue dependencies.
type PubSubQueueParams struct {
	Publisher      *gcppubsub.Publisher
	Logger         *logger.Logger
	PublishTimeout time.Duration
}

// NewPubSubQueue returns a queue backed by the jobs topic publisher.
func NewPubSubQueue(params PubSubQueueParams) (*PubSubQueue, error) {
	if params.Publisher == nil {
		return nil, errors.New("jobs publisher is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	timeout := params.PublishTimeout
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	return &PubSubQueue{
		pub:            gcpPublisher{inner: params.Publisher},
		logg:           params.Logger,
		publishTimeout: timeout,
	}, nil
}

func (q *PubSubQueue) Submit(ctx context.Context, job Job) error {
	raw, err := Encode(job)
	if err != nil {
		return err
	}

	publishCtx, cancel := context.WithTimeout(ctx, q.publishTimeout)
	defer cancel()

	result := q.pub.Publish(publishCtx, &gcppubsub.Message{
		Data: raw,
		Attributes: map[string]string{
			"kind": string(job.Kind()),
		},
	})
	if _, err := result.Get(publishCtx); err != nil {
		return err
	}

	logCtx := q.logg.WithJob(ctx, string(job.Kind()))
	q.logg.Info(logCtx, "job submitted")
	return nil
}
