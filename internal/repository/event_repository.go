package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"score_tracker/internal/models"
)

// batchSize caps rows per INSERT when persisting a recurrence expansion.
const batchSize = 100

type EventRepository interface {
	Create(ctx context.Context, event *models.Event) error
	CreateBatch(ctx context.Context, events []models.Event) error
	GetByID(ctx context.Context, userID uint, id string) (*models.Event, error)
	GetByIDForUpdate(ctx context.Context, userID uint, id string) (*models.Event, error)
	List(ctx context.Context, userID uint, from, to *time.Time) ([]models.Event, error)
	ListBetween(ctx context.Context, userID uint, start, end time.Time) ([]models.Event, error)
	ListCompletedBetween(ctx context.Context, userID uint, start, end time.Time) ([]models.Event, error)
	ListByGroup(ctx context.Context, userID uint, groupID string) ([]models.Event, error)
	Update(ctx context.Context, event *models.Event) error
	Delete(ctx context.Context, userID uint, ids []string) error
	DetachType(ctx context.Context, userID uint, typeID string) error
	UsersWithCompletedBetween(ctx context.Context, start, end time.Time) ([]uint, error)
}

type eventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) Create(ctx context.Context, event *models.Event) error {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

func (r *eventRepository) CreateBatch(ctx context.Context, events []models.Event) error {
	if len(events) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).CreateInBatches(events, batchSize).Error; err != nil {
		return fmt.Errorf("create events: %w", err)
	}
	return nil
}

func (r *eventRepository) GetByID(ctx context.Context, userID uint, id string) (*models.Event, error) {
	var event models.Event
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, id).First(&event).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *eventRepository) GetByIDForUpdate(ctx context.Context, userID uint, id string) (*models.Event, error) {
	var event models.Event
	if err := forUpdate(r.db.WithContext(ctx)).Where("user_id = ? AND id = ?", userID, id).First(&event).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *eventRepository) List(ctx context.Context, userID uint, from, to *time.Time) ([]models.Event, error) {
	var events []models.Event
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if from != nil {
		query = query.Where("start >= ?", *from)
	}
	if to != nil {
		query = query.Where("start < ?", *to)
	}
	err := query.Order("start ASC, id ASC").Find(&events).Error
	return events, err
}

func (r *eventRepository) ListBetween(ctx context.Context, userID uint, start, end time.Time) ([]models.Event, error) {
	var events []models.Event
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND start >= ? AND start < ?", userID, start, end).
		Order("start ASC, id ASC").
		Find(&events).Error
	return events, err
}

func (r *eventRepository) ListCompletedBetween(ctx context.Context, userID uint, start, end time.Time) ([]models.Event, error) {
	var events []models.Event
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_completed = ? AND start >= ? AND start < ?", userID, true, start, end).
		Find(&events).Error
	return events, err
}

func (r *eventRepository) ListByGroup(ctx context.Context, userID uint, groupID string) ([]models.Event, error) {
	var events []models.Event
	err := forUpdate(r.db.WithContext(ctx)).
		Where("user_id = ? AND repeat_group_id = ?", userID, groupID).
		Find(&events).Error
	return events, err
}

func (r *eventRepository) Update(ctx context.Context, event *models.Event) error {
	if err := r.db.WithContext(ctx).Save(event).Error; err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	return nil
}

func (r *eventRepository) Delete(ctx context.Context, userID uint, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id IN ?", userID, ids).Delete(&models.Event{}).Error; err != nil {
		return fmt.Errorf("delete events: %w", err)
	}
	return nil
}

func (r *eventRepository) DetachType(ctx context.Context, userID uint, typeID string) error {
	return r.db.WithContext(ctx).Model(&models.Event{}).
		Where("user_id = ? AND custom_type_id = ?", userID, typeID).
		Update("custom_type_id", nil).Error
}

func (r *eventRepository) UsersWithCompletedBetween(ctx context.Context, start, end time.Time) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Event{}).
		Distinct("user_id").
		Where("is_completed = ? AND start >= ? AND start < ?", true, start, end).
		Order("user_id").
		Pluck("user_id", &ids).Error
	return ids, err
}
