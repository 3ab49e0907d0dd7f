package models

import (
	"time"

	dbtypes "github.com/coursetrak/coursetrak-backend/pkg/db/types"
	"github.com/coursetrak/coursetrak-backend/pkg/enums"
)

// NotificationEvent is one captured, significant domain change together with
// its notification lifecycle. Rows are created by the capture stage and only
// ever advanced by the processor, enricher and emailer; the dashboard sets
// viewed_at/acknowledged_at on the read side.
type NotificationEvent struct {
	ID                 int64                    `gorm:"column:id;primaryKey;autoIncrement"`
	EventType          enums.EventType          `gorm:"column:event_type;type:text;not null;index:idx_notification_events_type"`
	EntityType         enums.EntityType         `gorm:"column:entity_type;type:text;not null"`
	EntityID           int64                    `gorm:"column:entity_id;not null"`
	EventData          dbtypes.EventData        `gorm:"column:event_data;type:jsonb;not null"`
	NotificationStatus enums.NotificationStatus `gorm:"column:notification_status;type:text;not null;default:'pending';index:idx_notification_events_status_created,priority:1"`
	AISummary          *dbtypes.AISummary       `gorm:"column:ai_summary;type:jsonb"`
	UserID             *int64                   `gorm:"column:user_id"`
	CreatedAt          time.Time                `gorm:"column:created_at;autoCreateTime;index:idx_notification_events_status_created,priority:2"`
	EnrichedAt         *time.Time               `gorm:"column:enriched_at"`
	SentAt             *time.Time               `gorm:"column:sent_at"`
	ViewedAt           *time.Time               `gorm:"column:viewed_at"`
	AcknowledgedAt     *time.Time               `gorm:"column:acknowledged_at"`
}

func (NotificationEvent) TableName() string {
	return "notification_events"
}

// SummaryTerminal reports whether the attached summary record is finalized.
func (e NotificationEvent) SummaryTerminal() bool {
	if e.AISummary == nil {
		return false
	}
	return enums.SummaryStatus(e.AISummary.Status).IsTerminal()
}
