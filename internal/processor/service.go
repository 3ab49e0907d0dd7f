package processor

import (
	"context"
	"runtime"
	"time"

	"github.com/coursetrak/coursetrak-backend/internal/enrich"
	"github.com/coursetrak/coursetrak-backend/internal/events"
	"github.com/coursetrak/coursetrak-backend/internal/jobs"
	"github.com/coursetrak/coursetrak-backend/internal/recipients"
	"github.com/coursetrak/coursetrak-backend/pkg/db/models"
	"github.com/coursetrak/coursetrak-backend/pkg/enums"
	pkgerrors "github.com/coursetrak/coursetrak-backend/pkg/errors"
	"github.com/coursetrak/coursetrak-backend/pkg/logger"
	"github.com/coursetrak/coursetrak-backend/pkg/metrics"
)

const (
	defaultBatchSize    = 50
	defaultRunBudget    = 90 * time.Second
	defaultSafetyMargin = 5 * time.Second
	defaultInterval     = time.Minute
	gcInterval          = 50
)

// ServiceParams wires the batch processor dependencies.
type ServiceParams struct {
	Events      events.Repository
	Recipients  recipients.Service
	Queue       jobs.Queue
	Lock        Lock
	Eligibility enrich.EligibilityFunc
	Logger      *logger.Logger
	Metrics     *metrics.PipelineMetrics

	BatchSize    int
	RunBudget    time.Duration
	SafetyMargin time.Duration
	Interval     time.Duration
	// Clock is injectable for tests; defaults to time.Now.
	Clock func() time.Time
}

// Service drains pending events under a global advisory lock, deciding
// enrich-vs-skip per event and scheduling the follow-on jobs.
type Service struct {
	events      events.Repository
	recipients  recipients.Service
	queue       jobs.Queue
	lock        Lock
	eligibility enrich.EligibilityFunc
	logg        *logger.Logger
	metrics     *metrics.PipelineMetrics

	batchSize    int
	runBudget    time.Duration
	safetyMargin time.Duration
	interval     time.Duration
	clock        func() time.Time
}

// NewService builds the batch processor.
func NewService(params ServiceParams) (*Service, error) {
	if params.Events == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "events repository required")
	}
	if params.Recipients == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "recipients service required")
	}
	if params.Queue == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "jobs queue required")
	}
	if params.Lock == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "lock required")
	}
	if params.Eligibility == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "eligibility predicate required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}

	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	runBudget := params.RunBudget
	if runBudget <= 0 {
		runBudget = defaultRunBudget
	}
	safetyMargin := params.SafetyMargin
	if safetyMargin <= 0 {
		safetyMargin = defaultSafetyMargin
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Service{
		events:       params.Events,
		recipients:   params.Recipients,
		queue:        params.Queue,
		lock:         params.Lock,
		eligibility:  params.Eligibility,
		logg:         params.Logger,
		metrics:      params.Metrics,
		batchSize:    batchSize,
		runBudget:    runBudget,
		safetyMargin: safetyMargin,
		interval:     interval,
		clock:        clock,
	}, nil
}

// Run drains once immediately, then on every tick until the context is
// canceled.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := s.RunOnce(ctx); err != nil {
		s.logg.Error(ctx, "batch run failed", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "batch processor context canceled")
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logg.Error(ctx, "batch run failed", err)
			}
		}
	}
}

// RunOnce performs a single locked, time-boxed drain. It returns the number
// of events that were moved out of pending. A held lock is not an error; the
// run is simply skipped.
func (s *Service) RunOnce(ctx context.Context) (int, error) {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire batch lock")
	}
	if !locked {
		s.logg.Info(ctx, "another batch drain is in progress; skipping")
		return 0, nil
	}
	defer func() {
		if relErr := s.lock.Release(ctx); relErr != nil {
			s.logg.Error(ctx, "release batch lock", relErr)
		}
	}()

	start := s.clock()

	pending, err := s.events.FetchPending(ctx, s.batchSize)
	if err != nil {
		s.observeBatch("error", s.clock().Sub(start))
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch pending events")
	}

	processed := 0
	outcome := "complete"
	for i := range pending {
		if i > 0 {
			elapsed := s.clock().Sub(start)
			if elapsed >= s.runBudget || s.runBudget-elapsed < s.safetyMargin {
				outcome = "budget_exhausted"
				s.logg.Info(ctx, "run budget exhausted; deferring remaining events")
				break
			}
		}

		if s.processEvent(ctx, &pending[i]) {
			processed++
		}

		if processed > 0 && processed%gcInterval == 0 {
			runtime.GC()
		}
	}

	s.observeBatch(outcome, s.clock().Sub(start))
	return processed, nil
}

// processEvent decides the path for one pending event. It reports whether
// the event left pending; configuration gaps leave it untouched for a later
// run.
func (s *Service) processEvent(ctx context.Context, event *models.NotificationEvent) bool {
	logCtx := s.logg.WithEventID(ctx, event.ID)
	logCtx = s.logg.WithEventType(logCtx, string(event.EventType))

	resolved, err := s.recipients.Resolve(ctx, event.EventType)
	if err != nil {
		s.logg.Error(logCtx, "resolve recipients", err)
		return false
	}
	if len(resolved) == 0 {
		s.recordDecision("no_recipients")
		return false
	}

	if event.EventType.SkipsEnrichment() {
		return s.sendDirectly(logCtx, event, resolved)
	}

	verdict := s.eligibility(ctx, event.ID)
	if !verdict.Eligible {
		return s.sendDirectly(logCtx, event, resolved)
	}

	ok, err := s.events.AdvanceStatus(ctx, event.ID, enums.NotificationStatusPending, enums.NotificationStatusEnriching)
	if err != nil {
		s.logg.Error(logCtx, "advance to enriching", err)
		return false
	}
	if !ok {
		return false
	}

	if err := s.queue.Submit(ctx, jobs.EnrichEvent{EventID: event.ID}); err != nil {
		s.logg.Error(logCtx, "submit enrich job", err)
	}
	s.recordDecision("enrich")
	return true
}

func (s *Service) sendDirectly(ctx context.Context, event *models.NotificationEvent, resolved []string) bool {
	ok, err := s.events.AdvanceStatus(ctx, event.ID, enums.NotificationStatusPending, enums.NotificationStatusSending)
	if err != nil {
		s.logg.Error(ctx, "advance to sending", err)
		return false
	}
	if !ok {
		return false
	}

	for _, recipient := range resolved {
		job := jobs.SendEmail{EventID: event.ID, Recipient: recipient}
		if err := s.queue.Submit(ctx, job); err != nil {
			sendCtx := s.logg.WithRecipient(ctx, recipient)
			s.logg.Error(sendCtx, "submit send job", err)
		}
	}
	s.recordDecision("send_direct")
	return true
}

func (s *Service) observeBatch(outcome string, duration time.Duration) {
	if s.metrics != nil {
		s.metrics.ObserveBatchDuration(outcome, duration)
	}
}

func (s *Service) recordDecision(decision string) {
	if s.metrics != nil {
		s.metrics.IncEventDecision(decision)
	}
}
