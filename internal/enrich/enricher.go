package enrich

import (
	"context"
	"strconv"
	"time"

	"github.com/coursetrak/coursetrak-backend/internal/events"
	"github.com/coursetrak/coursetrak-backend/internal/jobs"
	"github.com/coursetrak/coursetrak-backend/internal/recipients"
	dbtypes "github.com/coursetrak/coursetrak-backend/pkg/db/types"
	"github.com/coursetrak/coursetrak-backend/pkg/enums"
	pkgerrors "github.com/coursetrak/coursetrak-backend/pkg/errors"
	"github.com/coursetrak/coursetrak-backend/pkg/logger"
)

// Eligibility is the AI eligibility verdict for one event.
type Eligibility struct {
	Eligible bool
	// Reason is set when ineligible: config_missing or feature_disabled.
	Reason enums.SummaryErrorCode
}

// EligibilityFunc decides AI eligibility per event id, so future per-event
// overrides slot in without touching the enricher.
type EligibilityFunc func(ctx context.Context, eventID int64) Eligibility

// Result is what one enrichment run hands to the email step.
type Result struct {
	Recipients []string
	Context    jobs.EmailContext
}

// Enricher orchestrates the enrichment of one stored event.
type Enricher interface {
	Enrich(ctx context.Context, eventID int64) (*Result, error)
}

// EnricherParams wires the enricher dependencies.
type EnricherParams struct {
	Events      events.Repository
	Recipients  recipients.Service
	Summarizer  Summarizer
	Queue       jobs.Queue
	Logger      *logger.Logger
	Eligibility EligibilityFunc
}

type enricher struct {
	events      events.Repository
	recipients  recipients.Service
	summarizer  Summarizer
	queue       jobs.Queue
	logg        *logger.Logger
	eligibility EligibilityFunc
}

// NewEnricher wires per-event enrichment orchestration.
func NewEnricher(params EnricherParams) (Enricher, error) {
	if params.Events == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "events repository required")
	}
	if params.Recipients == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "recipients service required")
	}
	if params.Summarizer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "summarizer required")
	}
	if params.Queue == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "jobs queue required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	if params.Eligibility == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "eligibility predicate required")
	}
	return &enricher{
		events:      params.Events,
		recipients:  params.Recipients,
		summarizer:  params.Summarizer,
		queue:       params.Queue,
		logg:        params.Logger,
		eligibility: params.Eligibility,
	}, nil
}

func (e *enricher) Enrich(ctx context.Context, eventID int64) (*Result, error) {
	if eventID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event id required")
	}

	event, err := e.events.Get(ctx, eventID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "load event")
	}
	if event.NotificationStatus.IsTerminal() {
		return &Result{}, nil
	}

	logCtx := e.logg.WithEventID(ctx, event.ID)
	logCtx = e.logg.WithEventType(logCtx, string(event.EventType))

	// Recipients are authoritative at send time, not at capture time.
	resolved, err := e.recipients.Resolve(ctx, event.EventType)
	if err != nil {
		return nil, err
	}
	if len(resolved) == 0 {
		e.logg.Info(logCtx, "no recipients configured, no email needed")
		return &Result{}, nil
	}

	verdict := e.eligibility(ctx, event.ID)
	emailCtx := jobs.EmailContext{}

	switch {
	case !verdict.Eligible:
		// Finalize the summary record once; a terminal record is never
		// touched again.
		if !event.SummaryTerminal() {
			record := finalizeIneligible(event.AISummary, verdict.Reason)
			if err := e.events.SaveSummary(ctx, event.ID, record); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save summary")
			}
		}
		emailCtx = buildEmailContext(event)
	case !event.SummaryTerminal():
		record, built := e.summarizer.Generate(ctx, event, event.AISummary)
		emailCtx = built
		if err := e.events.SaveSummary(ctx, event.ID, record); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save summary")
		}
		// A record still pending holds a retryable failure. The event must
		// not advance until the summary is terminal; erroring out here makes
		// the queue redeliver the job, which runs the next attempt against
		// the durable attempt count.
		if record.Status == string(enums.SummaryStatusPending) {
			e.logg.Warn(logCtx, "summary attempt failed, awaiting redelivery")
			return nil, pkgerrors.New(pkgerrors.CodeDependency, "summary not terminal after attempt "+strconv.Itoa(record.Attempts))
		}
	default:
		emailCtx = buildEmailContext(event)
	}

	if _, err := e.events.AdvanceStatus(ctx, event.ID, event.NotificationStatus, enums.NotificationStatusSending); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "advance to sending")
	}

	for _, recipient := range resolved {
		job := jobs.SendEmail{EventID: event.ID, Recipient: recipient, Context: emailCtx}
		if err := e.queue.Submit(ctx, job); err != nil {
			sendCtx := e.logg.WithRecipient(logCtx, recipient)
			e.logg.Error(sendCtx, "submit send job", err)
		}
	}

	return &Result{Recipients: resolved, Context: emailCtx}, nil
}

// finalizeIneligible stamps a one-time terminal failure explaining why no
// summary will ever be generated for the event.
func finalizeIneligible(existing *dbtypes.AISummary, reason enums.SummaryErrorCode) *dbtypes.AISummary {
	record := cloneSummary(existing)
	if reason == "" {
		reason = enums.SummaryErrorConfigMissing
	}
	record.Status = string(enums.SummaryStatusFailed)
	record.ErrorCode = string(reason)
	generated := time.Now().UTC()
	record.GeneratedAt = &generated
	return record
}

// EligibilityFromConfig builds the default predicate from the feature flag
// and credential presence.
func EligibilityFromConfig(aiEnabled, credentialsPresent bool) EligibilityFunc {
	return func(ctx context.Context, eventID int64) Eligibility {
		if !aiEnabled {
			return Eligibility{Reason: enums.SummaryErrorFeatureDisabled}
		}
		if !credentialsPresent {
			return Eligibility{Reason: enums.SummaryErrorConfigMissing}
		}
		return Eligibility{Eligible: true}
	}
}
