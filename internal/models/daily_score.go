package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DailyScore is derived data: it can always be rebuilt from the user's
// completed events on that date.
type DailyScore struct {
	ID         string         `json:"id" gorm:"primaryKey;size:36"`
	UserID     uint           `json:"user_id" gorm:"not null;uniqueIndex:idx_daily_scores_user_date,priority:1"`
	Date       datatypes.Date `json:"date" gorm:"not null;uniqueIndex:idx_daily_scores_user_date,priority:2"`
	TotalScore int            `json:"total_score" gorm:"not null;default:0"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

func (d *DailyScore) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}

// DateOf returns the calendar day of t as a UTC-midnight date, so the same
// day always maps to the same stored key regardless of t's location.
func DateOf(t time.Time) datatypes.Date {
	y, m, d := t.Date()
	return datatypes.Date(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}
