package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store bundles the repositories that share one *gorm.DB handle so a service
// can run several of them inside one transaction.
type Store struct {
	db         *gorm.DB
	Users      UserRepository
	Events     EventRepository
	Scores     DailyScoreRepository
	Plans      PlanRepository
	EventTypes EventTypeRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:         db,
		Users:      NewUserRepository(db),
		Events:     NewEventRepository(db),
		Scores:     NewDailyScoreRepository(db),
		Plans:      NewPlanRepository(db),
		EventTypes: NewEventTypeRepository(db),
	}
}

// Transaction runs fn against a Store bound to a single transaction. It
// commits when fn returns nil and rolls back on error or panic.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}

// forUpdate adds SELECT ... FOR UPDATE. Dialects without row locks (sqlite)
// drop the clause.
func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}
