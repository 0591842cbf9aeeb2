package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"score_tracker/internal/models"
	"score_tracker/internal/repository"
)

type EventTypeInput struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type EventTypeService interface {
	List(ctx context.Context, userID uint) ([]models.EventType, error)
	Create(ctx context.Context, userID uint, in EventTypeInput) (*models.EventType, error)
	Update(ctx context.Context, userID uint, id string, in EventTypeInput) (*models.EventType, error)
	// Delete removes the type and detaches it from the user's events.
	Delete(ctx context.Context, userID uint, id string) error
}

type eventTypeService struct {
	store *repository.Store
	stats StatsService
}

func NewEventTypeService(store *repository.Store, stats StatsService) EventTypeService {
	return &eventTypeService{store: store, stats: stats}
}

func (s *eventTypeService) List(ctx context.Context, userID uint) ([]models.EventType, error) {
	types, err := s.store.EventTypes.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list event types: %w", err)
	}
	return types, nil
}

func (s *eventTypeService) Create(ctx context.Context, userID uint, in EventTypeInput) (*models.EventType, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalid("event type name is required")
	}
	eventType := &models.EventType{
		UserID: userID,
		Name:   name,
		Color:  orDefault(in.Color, defaultTypeColor),
	}
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := ensureUniqueTypeName(ctx, tx, userID, name, ""); err != nil {
			return err
		}
		return tx.EventTypes.Create(ctx, eventType)
	})
	if err != nil {
		return nil, err
	}
	return eventType, nil
}

func (s *eventTypeService) Update(ctx context.Context, userID uint, id string, in EventTypeInput) (*models.EventType, error) {
	var eventType *models.EventType
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		eventType, err = tx.EventTypes.GetByID(ctx, userID, id)
		if err != nil {
			return notFound("event type", err)
		}
		if name := strings.TrimSpace(in.Name); name != "" {
			if err := ensureUniqueTypeName(ctx, tx, userID, name, id); err != nil {
				return err
			}
			eventType.Name = name
		}
		if in.Color != "" {
			eventType.Color = in.Color
		}
		return tx.EventTypes.Update(ctx, eventType)
	})
	if err != nil {
		return nil, err
	}
	s.stats.Invalidate(ctx, userID)
	return eventType, nil
}

func (s *eventTypeService) Delete(ctx context.Context, userID uint, id string) error {
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		if _, err := tx.EventTypes.GetByID(ctx, userID, id); err != nil {
			return notFound("event type", err)
		}
		if err := tx.Events.DetachType(ctx, userID, id); err != nil {
			return fmt.Errorf("detach event type: %w", err)
		}
		return tx.EventTypes.Delete(ctx, userID, id)
	})
	if err != nil {
		return err
	}
	s.stats.Invalidate(ctx, userID)
	return nil
}

func ensureUniqueTypeName(ctx context.Context, tx *repository.Store, userID uint, name, selfID string) error {
	types, err := tx.EventTypes.List(ctx, userID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("list event types: %w", err)
	}
	for _, t := range types {
		if t.ID != selfID && strings.EqualFold(t.Name, name) {
			return fmt.Errorf("event type %q: %w", name, ErrConflict)
		}
	}
	return nil
}
