package events

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/coursetrak/coursetrak-backend/pkg/db/models"
	dbtypes "github.com/coursetrak/coursetrak-backend/pkg/db/types"
	"github.com/coursetrak/coursetrak-backend/pkg/enums"
)

// Repository exposes persistence helpers for notification events.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, event *models.NotificationEvent) error
	Get(ctx context.Context, id int64) (*models.NotificationEvent, error)
	FetchPending(ctx context.Context, limit int) ([]models.NotificationEvent, error)
	AdvanceStatus(ctx context.Context, id int64, from, to enums.NotificationStatus) (bool, error)
	SaveSummary(ctx context.Context, id int64, summary *dbtypes.AISummary) error
	MarkSent(ctx context.Context, id int64, now time.Time) (bool, error)
	MarkSendFailed(ctx context.Context, id int64) (bool, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns an events repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, event *models.NotificationEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repositoryImpl) Get(ctx context.Context, id int64) (*models.NotificationEvent, error) {
	var event models.NotificationEvent
	if err := r.db.WithContext(ctx).First(&event, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *repositoryImpl) FetchPending(ctx context.Context, limit int) ([]models.NotificationEvent, error) {
	var rows []models.NotificationEvent
	err := r.db.WithContext(ctx).
		Where("notification_status = ?", enums.NotificationStatusPending).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// AdvanceStatus moves the event forward guarded by the expected current
// status, so a stale stage can never rewind the lifecycle. It reports whether
// the row was updated.
func (r *repositoryImpl) AdvanceStatus(ctx context.Context, id int64, from, to enums.NotificationStatus) (bool, error) {
	if !from.CanAdvanceTo(to) {
		return false, nil
	}
	result := r.db.WithContext(ctx).
		Model(&models.NotificationEvent{}).
		Where("id = ? AND notification_status = ?", id, from).
		UpdateColumn("notification_status", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// SaveSummary replaces the ai_summary record and stamps enriched_at when the
// record is terminal successful.
func (r *repositoryImpl) SaveSummary(ctx context.Context, id int64, summary *dbtypes.AISummary) error {
	updates := map[string]any{"ai_summary": summary}
	if summary != nil && summary.Status == string(enums.SummaryStatusSuccess) && summary.GeneratedAt != nil {
		updates["enriched_at"] = *summary.GeneratedAt
	}
	return r.db.WithContext(ctx).
		Model(&models.NotificationEvent{}).
		Where("id = ?", id).
		UpdateColumns(updates).Error
}

func (r *repositoryImpl) MarkSent(ctx context.Context, id int64, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.NotificationEvent{}).
		Where("id = ? AND notification_status NOT IN ?", id, terminalStatuses()).
		UpdateColumns(map[string]any{
			"notification_status": enums.NotificationStatusSent,
			"sent_at":             now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) MarkSendFailed(ctx context.Context, id int64) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.NotificationEvent{}).
		Where("id = ? AND notification_status NOT IN ?", id, terminalStatuses()).
		UpdateColumn("notification_status", enums.NotificationStatusFailed)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func terminalStatuses() []enums.NotificationStatus {
	return []enums.NotificationStatus{
		enums.NotificationStatusSent,
		enums.NotificationStatusFailed,
	}
}
