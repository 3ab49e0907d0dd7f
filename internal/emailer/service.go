package emailer

import (
	"context"
	"time"

	"github.com/coursetrak/coursetrak-backend/internal/events"
	"github.com/coursetrak/coursetrak-backend/internal/jobs"
	pkgerrors "github.com/coursetrak/coursetrak-backend/pkg/errors"
	"github.com/coursetrak/coursetrak-backend/pkg/logger"
	"github.com/coursetrak/coursetrak-backend/pkg/mailer"
	"github.com/coursetrak/coursetrak-backend/pkg/metrics"
)

type mailClient interface {
	Send(ctx context.Context, msg mailer.Message) error
}

// Service delivers one rendered notification email and marks the event's
// terminal status. Sends are single-shot: nothing here retries or
// re-enqueues, and a resubmitted job for an already sent event will resend.
type Service interface {
	Send(ctx context.Context, job jobs.SendEmail) error
}

// ServiceParams wires the emailer dependencies.
type ServiceParams struct {
	Events  events.Repository
	Mailer  mailClient
	Logger  *logger.Logger
	Metrics *metrics.PipelineMetrics
	Now     func() time.Time
}

type service struct {
	events  events.Repository
	mailer  mailClient
	logg    *logger.Logger
	metrics *metrics.PipelineMetrics
	now     func() time.Time
}

// NewService wires email dispatch.
func NewService(params ServiceParams) (Service, error) {
	if params.Events == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "events repository required")
	}
	if params.Mailer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "mail client required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		events:  params.Events,
		mailer:  params.Mailer,
		logg:    params.Logger,
		metrics: params.Metrics,
		now:     now,
	}, nil
}

func (s *service) Send(ctx context.Context, job jobs.SendEmail) error {
	if job.EventID <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "event id required")
	}
	if job.Recipient == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "recipient required")
	}

	event, err := s.events.Get(ctx, job.EventID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "load event")
	}

	logCtx := s.logg.WithEventID(ctx, event.ID)
	logCtx = s.logg.WithRecipient(logCtx, job.Recipient)

	rendered := render(event, job.Context)
	sendErr := s.mailer.Send(ctx, mailer.Message{
		To:      job.Recipient,
		Subject: rendered.Subject,
		Body:    rendered.Body,
		Headers: rendered.Headers,
	})
	if sendErr != nil {
		s.metrics.IncEmailResult("failed")
		if _, err := s.events.MarkSendFailed(ctx, event.ID); err != nil {
			s.logg.Error(logCtx, "mark event failed", err)
		}
		s.logg.Error(logCtx, "notification email failed", sendErr)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, sendErr, "send notification email")
	}

	s.metrics.IncEmailResult("sent")
	if _, err := s.events.MarkSent(ctx, event.ID, s.now()); err != nil {
		s.logg.Error(logCtx, "mark event sent", err)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark event sent")
	}

	s.logg.Info(logCtx, "notification email sent")
	return nil
}
