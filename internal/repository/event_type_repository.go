package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"score_tracker/internal/models"
)

type EventTypeRepository interface {
	Create(ctx context.Context, eventType *models.EventType) error
	List(ctx context.Context, userID uint) ([]models.EventType, error)
	GetByID(ctx context.Context, userID uint, id string) (*models.EventType, error)
	Update(ctx context.Context, eventType *models.EventType) error
	Delete(ctx context.Context, userID uint, id string) error
}

type eventTypeRepository struct {
	db *gorm.DB
}

func NewEventTypeRepository(db *gorm.DB) EventTypeRepository {
	return &eventTypeRepository{db: db}
}

func (r *eventTypeRepository) Create(ctx context.Context, eventType *models.EventType) error {
	if err := r.db.WithContext(ctx).Create(eventType).Error; err != nil {
		return fmt.Errorf("create event type: %w", err)
	}
	return nil
}

func (r *eventTypeRepository) List(ctx context.Context, userID uint) ([]models.EventType, error) {
	var types []models.EventType
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("name ASC").Find(&types).Error
	return types, err
}

func (r *eventTypeRepository) GetByID(ctx context.Context, userID uint, id string) (*models.EventType, error) {
	var eventType models.EventType
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, id).First(&eventType).Error; err != nil {
		return nil, err
	}
	return &eventType, nil
}

func (r *eventTypeRepository) Update(ctx context.Context, eventType *models.EventType) error {
	err := r.db.WithContext(ctx).Model(eventType).Select("name", "color", "updated_at").Updates(eventType).Error
	if err != nil {
		return fmt.Errorf("update event type: %w", err)
	}
	return nil
}

func (r *eventTypeRepository) Delete(ctx context.Context, userID uint, id string) error {
	return r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, id).Delete(&models.EventType{}).Error
}
