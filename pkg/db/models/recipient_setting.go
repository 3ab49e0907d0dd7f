package models

import (
	"time"

	dbtypes "github.com/coursetrak/coursetrak-backend/pkg/db/types"
	"github.com/coursetrak/coursetrak-backend/pkg/enums"
)

// RecipientSetting maps one event type to its notification recipients.
type RecipientSetting struct {
	ID         int64              `gorm:"column:id;primaryKey;autoIncrement"`
	EventType  enums.EventType    `gorm:"column:event_type;type:text;not null;uniqueIndex:ux_recipient_settings_event_type"`
	Recipients dbtypes.StringList `gorm:"column:recipients;type:jsonb;not null"`
	CreatedAt  time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (RecipientSetting) TableName() string {
	return "recipient_settings"
}

// LegacyRecipientSetting is the pre-migration single-recipient setting keyed
// by the coarse operation. Consulted only when no per-type row exists.
type LegacyRecipientSetting struct {
	ID        int64           `gorm:"column:id;primaryKey;autoIncrement"`
	Operation enums.Operation `gorm:"column:operation;type:text;not null;uniqueIndex:ux_legacy_recipient_settings_operation"`
	Recipient string          `gorm:"column:recipient;type:text;not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (LegacyRecipientSetting) TableName() string {
	return "legacy_recipient_settings"
}
