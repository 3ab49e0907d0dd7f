package processor

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/coursetrak/coursetrak-backend/internal/enrich"
	"github.com/coursetrak/coursetrak-backend/internal/events"
	"github.com/coursetrak/coursetrak-backend/internal/jobs"
	"github.com/coursetrak/coursetrak-backend/pkg/db/models"
	dbtypes "github.com/coursetrak/coursetrak-backend/pkg/db/types"
	"github.com/coursetrak/coursetrak-backend/pkg/enums"
	"github.com/coursetrak/coursetrak-backend/pkg/logger"
)

type fakeLock struct {
	held     bool
	acquired int
	released int
}

func (f *fakeLock) Acquire(ctx context.Context) (bool, error) {
	f.acquired++
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(ctx context.Context) error {
	f.released++
	f.held = false
	return nil
}

type fakeEventsRepo struct {
	pending  []models.NotificationEvent
	statuses map[int64]enums.NotificationStatus
}

func newFakeEventsRepo(pending ...models.NotificationEvent) *fakeEventsRepo {
	repo := &fakeEventsRepo{pending: pending, statuses: map[int64]enums.NotificationStatus{}}
	for _, event := range pending {
		repo.statuses[event.ID] = event.NotificationStatus
	}
	return repo
}

func (f *fakeEventsRepo) WithTx(tx *gorm.DB) events.Repository { return f }

func (f *fakeEventsRepo) Create(ctx context.Context, event *models.NotificationEvent) error {
	return nil
}

func (f *fakeEventsRepo) Get(ctx context.Context, id int64) (*models.NotificationEvent, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeEventsRepo) FetchPending(ctx context.Context, limit int) ([]models.NotificationEvent, error) {
	if len(f.pending) > limit {
		return f.pending[:limit], nil
	}
	return f.pending, nil
}

func (f *fakeEventsRepo) AdvanceStatus(ctx context.Context, id int64, from, to enums.NotificationStatus) (bool, error) {
	if f.statuses[id] != from {
		return false, nil
	}
	f.statuses[id] = to
	return true, nil
}

func (f *fakeEventsRepo) SaveSummary(ctx context.Context, id int64, summary *dbtypes.AISummary) error {
	return nil
}

func (f *fakeEventsRepo) MarkSent(ctx context.Context, id int64, now time.Time) (bool, error) {
	return true, nil
}

func (f *fakeEventsRepo) MarkSendFailed(ctx context.Context, id int64) (bool, error) {
	return true, nil
}

func (f *fakeEventsRepo) pendingCount() int {
	n := 0
	for _, status := range f.statuses {
		if status == enums.NotificationStatusPending {
			n++
		}
	}
	return n
}

type fakeRecipients struct {
	byType map[enums.EventType][]string
}

func (f *fakeRecipients) Resolve(ctx context.Context, eventType enums.EventType) ([]string, error) {
	return f.byType[eventType], nil
}

func (f *fakeRecipients) ResolveRaw(ctx context.Context, typeOrOperation string) ([]string, error) {
	return nil, nil
}

func (f *fakeRecipients) Set(ctx context.Context, eventType enums.EventType, addresses []string) error {
	return nil
}

func (f *fakeRecipients) All(ctx context.Context) (map[enums.EventType][]string, error) {
	return f.byType, nil
}

type fakeQueue struct {
	submitted []jobs.Job
}

func (f *fakeQueue) Submit(ctx context.Context, job jobs.Job) error {
	f.submitted = append(f.submitted, job)
	return nil
}

// fakeClock advances a fixed step on every reading.
type fakeClock struct {
	now  time.Time
	step time.Duration
}

func (f *fakeClock) read() time.Time {
	current := f.now
	f.now = f.now.Add(f.step)
	return current
}

func eventOfType(id int64, eventType enums.EventType) models.NotificationEvent {
	return models.NotificationEvent{
		ID:                 id,
		EventType:          eventType,
		EntityType:         enums.EntityTypeClass,
		EntityID:           id,
		NotificationStatus: enums.NotificationStatusPending,
	}
}

func newTestService(t *testing.T, params ServiceParams) *Service {
	t.Helper()
	if params.Logger == nil {
		params.Logger = logger.New(logger.Options{ServiceName: "test"})
	}
	if params.Eligibility == nil {
		params.Eligibility = func(ctx context.Context, eventID int64) enrich.Eligibility {
			return enrich.Eligibility{Eligible: true}
		}
	}
	svc, err := NewService(params)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestRunOnce_HeldLockIsNoOp(t *testing.T) {
	lock := &fakeLock{held: true}
	repo := newFakeEventsRepo(eventOfType(1, enums.EventTypeClassUpdate))
	queue := &fakeQueue{}
	svc := newTestService(t, ServiceParams{
		Events:     repo,
		Recipients: &fakeRecipients{byType: map[enums.EventType][]string{enums.EventTypeClassUpdate: {"ops@coursetrak.io"}}},
		Queue:      queue,
		Lock:       lock,
	})

	processed, err := svc.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if processed != 0 {
		t.Fatalf("expected no work, processed %d", processed)
	}
	if len(queue.submitted) != 0 {
		t.Fatal("no jobs may be submitted")
	}
	if lock.released != 0 {
		t.Fatal("a lock that was never acquired must not be released")
	}
}

func TestRunOnce_EligibleEventGoesToEnriching(t *testing.T) {
	repo := newFakeEventsRepo(eventOfType(1, enums.EventTypeClassUpdate))
	queue := &fakeQueue{}
	lock := &fakeLock{}
	svc := newTestService(t, ServiceParams{
		Events:     repo,
		Recipients: &fakeRecipients{byType: map[enums.EventType][]string{enums.EventTypeClassUpdate: {"ops@coursetrak.io"}}},
		Queue:      queue,
		Lock:       lock,
	})

	processed, err := svc.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if processed != 1 {
		t.Fatalf("expected 1 processed, got %d", processed)
	}
	if repo.statuses[1] != enums.NotificationStatusEnriching {
		t.Fatalf("expected enriching, got %s", repo.statuses[1])
	}
	if len(queue.submitted) != 1 {
		t.Fatalf("expected 1 job, got %d", len(queue.submitted))
	}
	if _, ok := queue.submitted[0].(jobs.EnrichEvent); !ok {
		t.Fatalf("expected enrich job, got %T", queue.submitted[0])
	}
	if lock.released != 1 {
		t.Fatal("lock must be released after the run")
	}
}

func TestRunOnce_SkipEnrichmentTypesGoStraightToSending(t *testing.T) {
	repo := newFakeEventsRepo(eventOfType(1, enums.EventTypeLearnerAdd))
	queue := &fakeQueue{}
	svc := newTestService(t, ServiceParams{
		Events: repo,
		Recipients: &fakeRecipients{byType: map[enums.EventType][]string{
			enums.EventTypeLearnerAdd: {"ops@coursetrak.io", "lead@coursetrak.io"},
		}},
		Queue: queue,
		Lock:  &fakeLock{},
	})

	if _, err := svc.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if repo.statuses[1] != enums.NotificationStatusSending {
		t.Fatalf("expected sending, got %s", repo.statuses[1])
	}
	if len(queue.submitted) != 2 {
		t.Fatalf("expected one send job per recipient, got %d", len(queue.submitted))
	}
	for _, job := range queue.submitted {
		if _, ok := job.(jobs.SendEmail); !ok {
			t.Fatalf("expected send job, got %T", job)
		}
	}
}

func TestRunOnce_IneligibleFallsBackToDirectSend(t *testing.T) {
	repo := newFakeEventsRepo(eventOfType(1, enums.EventTypeClassUpdate))
	queue := &fakeQueue{}
	svc := newTestService(t, ServiceParams{
		Events:     repo,
		Recipients: &fakeRecipients{byType: map[enums.EventType][]string{enums.EventTypeClassUpdate: {"ops@coursetrak.io"}}},
		Queue:      queue,
		Lock:       &fakeLock{},
		Eligibility: func(ctx context.Context, eventID int64) enrich.Eligibility {
			return enrich.Eligibility{Reason: enums.SummaryErrorFeatureDisabled}
		},
	})

	if _, err := svc.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if repo.statuses[1] != enums.NotificationStatusSending {
		t.Fatalf("expected sending, got %s", repo.statuses[1])
	}
	if _, ok := queue.submitted[0].(jobs.SendEmail); !ok {
		t.Fatalf("expected send job, got %T", queue.submitted[0])
	}
}

func TestRunOnce_NoRecipientsLeavesPending(t *testing.T) {
	repo := newFakeEventsRepo(eventOfType(1, enums.EventTypeClassUpdate))
	queue := &fakeQueue{}
	svc := newTestService(t, ServiceParams{
		Events:     repo,
		Recipients: &fakeRecipients{byType: map[enums.EventType][]string{}},
		Queue:      queue,
		Lock:       &fakeLock{},
	})

	processed, err := svc.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if processed != 0 {
		t.Fatalf("expected 0 processed, got %d", processed)
	}
	if repo.statuses[1] != enums.NotificationStatusPending {
		t.Fatalf("event must stay pending, got %s", repo.statuses[1])
	}
	if len(queue.submitted) != 0 {
		t.Fatal("no jobs may be submitted")
	}
}

func TestRunOnce_BudgetExhaustionDefersRemainder(t *testing.T) {
	var pending []models.NotificationEvent
	recips := map[enums.EventType][]string{enums.EventTypeClassUpdate: {"ops@coursetrak.io"}}
	for i := int64(1); i <= 10; i++ {
		pending = append(pending, eventOfType(i, enums.EventTypeClassUpdate))
	}
	repo := newFakeEventsRepo(pending...)
	queue := &fakeQueue{}

	// Each clock reading advances 30s: start, then the check before event 2
	// sees 30s, before event 3 sees 60s, before event 4 sees 90s and stops.
	clock := &fakeClock{now: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC), step: 30 * time.Second}
	svc := newTestService(t, ServiceParams{
		Events:     repo,
		Recipients: &fakeRecipients{byType: recips},
		Queue:      queue,
		Lock:       &fakeLock{},
		Clock:      clock.read,
	})

	processed, err := svc.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if processed != 3 {
		t.Fatalf("expected 3 processed before budget exhaustion, got %d", processed)
	}
	if repo.pendingCount() != 7 {
		t.Fatalf("expected 7 events still pending, got %d", repo.pendingCount())
	}
}

func TestRunOnce_RespectsBatchSize(t *testing.T) {
	var pending []models.NotificationEvent
	for i := int64(1); i <= 5; i++ {
		pending = append(pending, eventOfType(i, enums.EventTypeClassUpdate))
	}
	repo := newFakeEventsRepo(pending...)
	queue := &fakeQueue{}
	svc := newTestService(t, ServiceParams{
		Events:     repo,
		Recipients: &fakeRecipients{byType: map[enums.EventType][]string{enums.EventTypeClassUpdate: {"ops@coursetrak.io"}}},
		Queue:      queue,
		Lock:       &fakeLock{},
		BatchSize:  2,
	})

	processed, err := svc.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if processed != 2 {
		t.Fatalf("expected batch size cap of 2, got %d", processed)
	}
}
