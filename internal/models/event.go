package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Event struct {
	ID            string          `json:"id" gorm:"primaryKey;size:36"`
	UserID        uint            `json:"user_id" gorm:"not null;index:idx_events_user_start,priority:1"`
	Title         string          `json:"title" gorm:"size:128;not null"`
	Start         time.Time       `json:"start" gorm:"not null;index:idx_events_user_start,priority:2"`
	End           time.Time       `json:"end" gorm:"not null"`
	AllDay        bool            `json:"all_day" gorm:"default:false"`
	Category      string          `json:"category" gorm:"size:32"`
	Time          string          `json:"time" gorm:"size:32"`
	Urgency       string          `json:"urgency" gorm:"size:16"`
	Remark        *string         `json:"remark" gorm:"size:512"`
	IsCompleted   bool            `json:"is_completed" gorm:"default:false;index"`
	Efficiency    *string         `json:"efficiency" gorm:"size:16"` // high, medium, low
	CustomTypeID  *string         `json:"custom_type_id" gorm:"size:36;index"`
	IsRepeat      bool            `json:"is_repeat" gorm:"default:false"`
	RepeatType    *string         `json:"repeat_type" gorm:"size:16"` // daily, weekday, weekend, workday, holiday
	RepeatEndDate *datatypes.Date `json:"repeat_end_date"`
	RepeatGroupID *string         `json:"repeat_group_id" gorm:"size:36;index"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (e *Event) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

type Efficiency string

const (
	EfficiencyHigh   Efficiency = "high"
	EfficiencyMedium Efficiency = "medium"
	EfficiencyLow    Efficiency = "low"
)

type RepeatType string

const (
	RepeatDaily   RepeatType = "daily"
	RepeatWeekday RepeatType = "weekday"
	RepeatWeekend RepeatType = "weekend"
	RepeatWorkday RepeatType = "workday"
	RepeatHoliday RepeatType = "holiday"
)

// EventType is a user-defined label events can be attached to.
type EventType struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	UserID    uint      `json:"user_id" gorm:"not null;uniqueIndex:idx_event_types_user_name,priority:1"`
	Name      string    `json:"name" gorm:"size:64;not null;uniqueIndex:idx_event_types_user_name,priority:2"`
	Color     string    `json:"color" gorm:"size:16;not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (t *EventType) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}
