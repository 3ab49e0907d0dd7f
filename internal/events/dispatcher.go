package events

import (
	"context"
	"time"

	"github.com/coursetrak/coursetrak-backend/internal/jobs"
	"github.com/coursetrak/coursetrak-backend/pkg/config"
	"github.com/coursetrak/coursetrak-backend/pkg/db/models"
	dbtypes "github.com/coursetrak/coursetrak-backend/pkg/db/types"
	"github.com/coursetrak/coursetrak-backend/pkg/enums"
	pkgerrors "github.com/coursetrak/coursetrak-backend/pkg/errors"
	"github.com/coursetrak/coursetrak-backend/pkg/logger"
	"github.com/coursetrak/coursetrak-backend/pkg/metrics"
)

// significantClassFields is the allow-list consulted for CLASS_UPDATE events.
// Updates touching none of these fields never produce an event.
var significantClassFields = map[string]struct{}{
	"class_status":        {},
	"start_date":          {},
	"end_date":            {},
	"learner_ids":         {},
	"event_dates":         {},
	"class_facilitator":   {},
	"class_coach":         {},
	"class_assessor":      {},
	"original_start_date": {},
	"client_id":           {},
	"class_type":          {},
	"class_subject":       {},
}

// Policy can veto dispatch per event type for site-specific rules. A nil
// Policy allows everything.
type Policy interface {
	ShouldDispatch(eventType enums.EventType) bool
}

type flagPolicy struct {
	dispatch  bool
	classOnly bool
}

// PolicyFromConfig builds the standard Policy from the deployment feature
// flags: NotifyDispatch gates capture entirely, NotifyClassOnly restricts it
// to class entities.
func PolicyFromConfig(flags config.FeatureFlagsConfig) Policy {
	return flagPolicy{dispatch: flags.NotifyDispatch, classOnly: flags.NotifyClassOnly}
}

func (p flagPolicy) ShouldDispatch(eventType enums.EventType) bool {
	if !p.dispatch {
		return false
	}
	if p.classOnly && eventType.Entity() == enums.EntityTypeLearner {
		return false
	}
	return true
}

// Dispatcher captures significant domain changes as pending events and
// submits the first pipeline job. Every method returns the new event id, or
// 0 when the change was intentionally skipped.
type Dispatcher interface {
	DispatchClassEvent(ctx context.Context, params ClassEventParams) (int64, error)
	DispatchLearnerEvent(ctx context.Context, params LearnerEventParams) (int64, error)
	DispatchStatusChange(ctx context.Context, params StatusChangeParams) (int64, error)
}

// ClassEventParams describes one class mutation.
type ClassEventParams struct {
	EventType enums.EventType
	ClassID   int64
	NewRow    map[string]any
	OldRow    map[string]any
	UserID    *int64
}

// LearnerEventParams describes one learner roster change.
type LearnerEventParams struct {
	EventType enums.EventType
	LearnerID int64
	ClassID   int64
	Data      map[string]any
	UserID    *int64
}

// StatusChangeParams describes a class status transition.
type StatusChangeParams struct {
	ClassID   int64
	OldStatus string
	NewStatus string
	ClassData map[string]any
	UserID    *int64
}

// DispatcherParams wires the dispatcher dependencies.
type DispatcherParams struct {
	Repository Repository
	Queue      jobs.Queue
	Logger     *logger.Logger
	Metrics    *metrics.PipelineMetrics
	Policy     Policy
	Now        func() time.Time
}

type dispatcher struct {
	repo    Repository
	queue   jobs.Queue
	logg    *logger.Logger
	metrics *metrics.PipelineMetrics
	policy  Policy
	now     func() time.Time
}

// NewDispatcher wires the capture stage.
func NewDispatcher(params DispatcherParams) (Dispatcher, error) {
	if params.Repository == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "events repository required")
	}
	if params.Queue == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "jobs queue required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &dispatcher{
		repo:    params.Repository,
		queue:   params.Queue,
		logg:    params.Logger,
		metrics: params.Metrics,
		policy:  params.Policy,
		now:     now,
	}, nil
}

func (d *dispatcher) DispatchClassEvent(ctx context.Context, params ClassEventParams) (int64, error) {
	if !params.EventType.IsValid() {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "invalid event type")
	}
	if params.ClassID <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "class id required")
	}
	if !d.allowed(params.EventType) {
		return 0, nil
	}

	var diff dbtypes.Diff
	if params.OldRow != nil {
		diff = ComputeDiff(params.OldRow, params.NewRow)
	}

	if params.EventType == enums.EventTypeClassUpdate && !hasSignificantField(diff) {
		d.recordDecision("insignificant")
		return 0, nil
	}

	data := dbtypes.EventData{
		NewRow: params.NewRow,
		OldRow: params.OldRow,
		Diff:   diff,
		Metadata: dbtypes.EventMetadata{
			CapturedAt:    d.now().Format(time.RFC3339),
			ChangedFields: SortedFields(diff),
			ClassID:       params.ClassID,
			Source:        "class",
		},
	}

	return d.persistAndSchedule(ctx, &models.NotificationEvent{
		EventType:  params.EventType,
		EntityType: enums.EntityTypeClass,
		EntityID:   params.ClassID,
		EventData:  data,
		UserID:     params.UserID,
	})
}

func (d *dispatcher) DispatchLearnerEvent(ctx context.Context, params LearnerEventParams) (int64, error) {
	if !params.EventType.IsValid() {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "invalid event type")
	}
	if params.LearnerID <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "learner id required")
	}
	if !d.allowed(params.EventType) {
		return 0, nil
	}

	newRow := make(map[string]any, len(params.Data)+1)
	for k, v := range params.Data {
		newRow[k] = v
	}
	newRow["class_id"] = params.ClassID

	data := dbtypes.EventData{
		NewRow: newRow,
		Metadata: dbtypes.EventMetadata{
			CapturedAt: d.now().Format(time.RFC3339),
			ClassID:    params.ClassID,
			Source:     "learner",
		},
	}

	return d.persistAndSchedule(ctx, &models.NotificationEvent{
		EventType:  params.EventType,
		EntityType: enums.EntityTypeLearner,
		EntityID:   params.LearnerID,
		EventData:  data,
		UserID:     params.UserID,
	})
}

func (d *dispatcher) DispatchStatusChange(ctx context.Context, params StatusChangeParams) (int64, error) {
	if params.ClassID <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "class id required")
	}
	if !d.allowed(enums.EventTypeStatusChange) {
		return 0, nil
	}

	diff := dbtypes.Diff{
		"class_status": dbtypes.FieldChange{Old: params.OldStatus, New: params.NewStatus},
	}
	data := dbtypes.EventData{
		NewRow: params.ClassData,
		Diff:   diff,
		Metadata: dbtypes.EventMetadata{
			CapturedAt:    d.now().Format(time.RFC3339),
			ChangedFields: SortedFields(diff),
			ClassID:       params.ClassID,
			Source:        "class",
		},
	}

	return d.persistAndSchedule(ctx, &models.NotificationEvent{
		EventType:  enums.EventTypeStatusChange,
		EntityType: enums.EntityTypeClass,
		EntityID:   params.ClassID,
		EventData:  data,
		UserID:     params.UserID,
	})
}

func (d *dispatcher) persistAndSchedule(ctx context.Context, event *models.NotificationEvent) (int64, error) {
	event.NotificationStatus = enums.NotificationStatusPending

	if err := d.repo.Create(ctx, event); err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist event")
	}

	logCtx := d.logg.WithEventID(ctx, event.ID)
	logCtx = d.logg.WithEventType(logCtx, string(event.EventType))

	// The batch processor also drains pending rows, so a lost submit here
	// delays the event instead of dropping it.
	if err := d.queue.Submit(ctx, jobs.EnrichEvent{EventID: event.ID}); err != nil {
		d.logg.Error(logCtx, "submit process job", err)
	}

	d.recordDecision("captured")
	d.logg.Info(logCtx, "event captured")
	return event.ID, nil
}

func (d *dispatcher) allowed(eventType enums.EventType) bool {
	if d.policy == nil {
		return true
	}
	return d.policy.ShouldDispatch(eventType)
}

func (d *dispatcher) recordDecision(decision string) {
	if d.metrics != nil {
		d.metrics.IncEventDecision(decision)
	}
}

func hasSignificantField(diff dbtypes.Diff) bool {
	for field := range diff {
		if _, ok := significantClassFields[field]; ok {
			return true
		}
	}
	return false
}
