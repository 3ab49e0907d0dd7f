package events

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/coursetrak/coursetrak-backend/internal/jobs"
	"github.com/coursetrak/coursetrak-backend/pkg/config"
	"github.com/coursetrak/coursetrak-backend/pkg/db/models"
	dbtypes "github.com/coursetrak/coursetrak-backend/pkg/db/types"
	"github.com/coursetrak/coursetrak-backend/pkg/enums"
	"github.com/coursetrak/coursetrak-backend/pkg/logger"
)

type fakeRepository struct {
	created []*models.NotificationEvent
	nextID  int64
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) Create(ctx context.Context, event *models.NotificationEvent) error {
	f.nextID++
	event.ID = f.nextID
	f.created = append(f.created, event)
	return nil
}

func (f *fakeRepository) Get(ctx context.Context, id int64) (*models.NotificationEvent, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) FetchPending(ctx context.Context, limit int) ([]models.NotificationEvent, error) {
	return nil, nil
}

func (f *fakeRepository) AdvanceStatus(ctx context.Context, id int64, from, to enums.NotificationStatus) (bool, error) {
	return true, nil
}

func (f *fakeRepository) SaveSummary(ctx context.Context, id int64, summary *dbtypes.AISummary) error {
	return nil
}

func (f *fakeRepository) MarkSent(ctx context.Context, id int64, now time.Time) (bool, error) {
	return true, nil
}

func (f *fakeRepository) MarkSendFailed(ctx context.Context, id int64) (bool, error) {
	return true, nil
}

type fakeQueue struct {
	submitted []jobs.Job
	err       error
}

func (f *fakeQueue) Submit(ctx context.Context, job jobs.Job) error {
	if f.err != nil {
		return f.err
	}
	f.submitted = append(f.submitted, job)
	return nil
}

type denyPolicy struct {
	denied map[enums.EventType]bool
}

func (p denyPolicy) ShouldDispatch(eventType enums.EventType) bool {
	return !p.denied[eventType]
}

func newTestDispatcher(t *testing.T, repo Repository, queue jobs.Queue, policy Policy) Dispatcher {
	t.Helper()
	d, err := NewDispatcher(DispatcherParams{
		Repository: repo,
		Queue:      queue,
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		Policy:     policy,
		Now:        func() time.Time { return time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	return d
}

func TestDispatchClassEvent_SignificantUpdate(t *testing.T) {
	repo := &fakeRepository{}
	queue := &fakeQueue{}
	d := newTestDispatcher(t, repo, queue, nil)

	id, err := d.DispatchClassEvent(context.Background(), ClassEventParams{
		EventType: enums.EventTypeClassUpdate,
		ClassID:   42,
		OldRow:    map[string]any{"class_status": "active", "updated_at": "a"},
		NewRow:    map[string]any{"class_status": "stopped", "updated_at": "b"},
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if id == 0 {
		t.Fatal("expected event to be captured")
	}

	if len(repo.created) != 1 {
		t.Fatalf("expected 1 persisted event, got %d", len(repo.created))
	}
	event := repo.created[0]
	if event.NotificationStatus != enums.NotificationStatusPending {
		t.Fatalf("expected pending status, got %s", event.NotificationStatus)
	}
	if _, ok := event.EventData.Diff["class_status"]; !ok {
		t.Fatalf("expected class_status in diff, got %v", event.EventData.Diff)
	}
	if event.EventData.Metadata.CapturedAt == "" {
		t.Fatal("expected captured_at metadata")
	}

	if len(queue.submitted) != 1 {
		t.Fatalf("expected 1 job, got %d", len(queue.submitted))
	}
	job, ok := queue.submitted[0].(jobs.EnrichEvent)
	if !ok {
		t.Fatalf("expected enrich job, got %T", queue.submitted[0])
	}
	if job.EventID != id {
		t.Fatalf("job keyed by %d, want %d", job.EventID, id)
	}
}

func TestDispatchClassEvent_InsignificantUpdateSkipped(t *testing.T) {
	repo := &fakeRepository{}
	queue := &fakeQueue{}
	d := newTestDispatcher(t, repo, queue, nil)

	id, err := d.DispatchClassEvent(context.Background(), ClassEventParams{
		EventType: enums.EventTypeClassUpdate,
		ClassID:   42,
		OldRow:    map[string]any{"updated_at": "a", "notes": "x"},
		NewRow:    map[string]any{"updated_at": "b", "notes": "y"},
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if id != 0 {
		t.Fatalf("expected skip, got id %d", id)
	}
	if len(repo.created) != 0 {
		t.Fatal("no row must be persisted")
	}
	if len(queue.submitted) != 0 {
		t.Fatal("no job must be submitted")
	}
}

func TestDispatchClassEvent_InsertAlwaysSignificant(t *testing.T) {
	repo := &fakeRepository{}
	queue := &fakeQueue{}
	d := newTestDispatcher(t, repo, queue, nil)

	id, err := d.DispatchClassEvent(context.Background(), ClassEventParams{
		EventType: enums.EventTypeClassInsert,
		ClassID:   7,
		NewRow:    map[string]any{"title": "Welding 101"},
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if id == 0 {
		t.Fatal("insert events are always significant")
	}
}

func TestDispatchClassEvent_PolicyVeto(t *testing.T) {
	repo := &fakeRepository{}
	queue := &fakeQueue{}
	d := newTestDispatcher(t, repo, queue, denyPolicy{denied: map[enums.EventType]bool{
		enums.EventTypeClassInsert: true,
	}})

	id, err := d.DispatchClassEvent(context.Background(), ClassEventParams{
		EventType: enums.EventTypeClassInsert,
		ClassID:   7,
		NewRow:    map[string]any{"title": "Welding 101"},
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if id != 0 {
		t.Fatal("vetoed type must not persist")
	}
	if len(repo.created) != 0 || len(queue.submitted) != 0 {
		t.Fatal("veto happens before any side effects")
	}
}

func TestPolicyFromConfig_DispatchDisabledVetoesEverything(t *testing.T) {
	policy := PolicyFromConfig(config.FeatureFlagsConfig{NotifyDispatch: false})
	for _, eventType := range enums.EventTypes() {
		if policy.ShouldDispatch(eventType) {
			t.Fatalf("%s must be vetoed when dispatch is off", eventType)
		}
	}

	repo := &fakeRepository{}
	queue := &fakeQueue{}
	d := newTestDispatcher(t, repo, queue, policy)
	id, err := d.DispatchClassEvent(context.Background(), ClassEventParams{
		EventType: enums.EventTypeClassInsert,
		ClassID:   7,
		NewRow:    map[string]any{"title": "Welding 101"},
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if id != 0 || len(repo.created) != 0 || len(queue.submitted) != 0 {
		t.Fatal("disabled dispatch must not persist or schedule anything")
	}
}

func TestPolicyFromConfig_ClassOnlyVetoesLearnerTypes(t *testing.T) {
	policy := PolicyFromConfig(config.FeatureFlagsConfig{NotifyDispatch: true, NotifyClassOnly: true})

	for _, eventType := range []enums.EventType{
		enums.EventTypeLearnerAdd,
		enums.EventTypeLearnerRemove,
		enums.EventTypeLearnerUpdate,
	} {
		if policy.ShouldDispatch(eventType) {
			t.Fatalf("%s must be vetoed in class-only mode", eventType)
		}
	}
	for _, eventType := range []enums.EventType{
		enums.EventTypeClassInsert,
		enums.EventTypeClassUpdate,
		enums.EventTypeClassDelete,
		enums.EventTypeStatusChange,
	} {
		if !policy.ShouldDispatch(eventType) {
			t.Fatalf("%s must pass in class-only mode", eventType)
		}
	}
}

func TestDispatchLearnerEvent_AttachesClassID(t *testing.T) {
	repo := &fakeRepository{}
	queue := &fakeQueue{}
	d := newTestDispatcher(t, repo, queue, nil)

	id, err := d.DispatchLearnerEvent(context.Background(), LearnerEventParams{
		EventType: enums.EventTypeLearnerAdd,
		LearnerID: 99,
		ClassID:   42,
		Data:      map[string]any{"learner_name": "Jo"},
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if id == 0 {
		t.Fatal("learner events are always significant")
	}

	event := repo.created[0]
	if event.EntityType != enums.EntityTypeLearner || event.EntityID != 99 {
		t.Fatalf("unexpected entity %s/%d", event.EntityType, event.EntityID)
	}
	if event.EventData.NewRow["class_id"] != int64(42) {
		t.Fatalf("expected class_id in payload, got %v", event.EventData.NewRow["class_id"])
	}
	if event.EventData.Metadata.ClassID != 42 {
		t.Fatal("expected class_id in metadata")
	}
}

func TestDispatchStatusChange_BuildsSingleFieldDiff(t *testing.T) {
	repo := &fakeRepository{}
	queue := &fakeQueue{}
	d := newTestDispatcher(t, repo, queue, nil)

	id, err := d.DispatchStatusChange(context.Background(), StatusChangeParams{
		ClassID:   42,
		OldStatus: "active",
		NewStatus: "stopped",
		ClassData: map[string]any{"class_status": "stopped"},
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if id == 0 {
		t.Fatal("status changes are always significant")
	}

	event := repo.created[0]
	if event.EventType != enums.EventTypeStatusChange {
		t.Fatalf("unexpected type %s", event.EventType)
	}
	change := event.EventData.Diff["class_status"]
	if change.Old != "active" || change.New != "stopped" {
		t.Fatalf("unexpected diff %+v", change)
	}
}

func TestDispatch_QueueFailureStillReturnsID(t *testing.T) {
	repo := &fakeRepository{}
	queue := &fakeQueue{err: context.DeadlineExceeded}
	d := newTestDispatcher(t, repo, queue, nil)

	id, err := d.DispatchClassEvent(context.Background(), ClassEventParams{
		EventType: enums.EventTypeClassInsert,
		ClassID:   7,
		NewRow:    map[string]any{"title": "Welding 101"},
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if id == 0 {
		t.Fatal("row is persisted even when the submit fails")
	}
}
