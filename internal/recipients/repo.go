package recipients

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/coursetrak/coursetrak-backend/pkg/db/models"
	"github.com/coursetrak/coursetrak-backend/pkg/enums"
)

// Repository exposes persistence helpers for recipient settings.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetByEventType(ctx context.Context, eventType enums.EventType) (*models.RecipientSetting, error)
	Upsert(ctx context.Context, setting *models.RecipientSetting) error
	List(ctx context.Context) ([]models.RecipientSetting, error)
	GetLegacy(ctx context.Context, operation enums.Operation) (*models.LegacyRecipientSetting, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a recipient settings repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) GetByEventType(ctx context.Context, eventType enums.EventType) (*models.RecipientSetting, error) {
	var setting models.RecipientSetting
	err := r.db.WithContext(ctx).
		First(&setting, "event_type = ?", eventType).Error
	if err != nil {
		return nil, err
	}
	return &setting, nil
}

func (r *repositoryImpl) Upsert(ctx context.Context, setting *models.RecipientSetting) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_type"}},
			DoUpdates: clause.AssignmentColumns([]string{"recipients", "updated_at"}),
		}).
		Create(setting).Error
}

func (r *repositoryImpl) List(ctx context.Context) ([]models.RecipientSetting, error) {
	var settings []models.RecipientSetting
	if err := r.db.WithContext(ctx).Order("event_type ASC").Find(&settings).Error; err != nil {
		return nil, err
	}
	return settings, nil
}

func (r *repositoryImpl) GetLegacy(ctx context.Context, operation enums.Operation) (*models.LegacyRecipientSetting, error) {
	var setting models.LegacyRecipientSetting
	err := r.db.WithContext(ctx).
		First(&setting, "operation = ?", operation).Error
	if err != nil {
		return nil, err
	}
	return &setting, nil
}
