package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AnnualPlan struct {
	ID              string     `json:"id" gorm:"primaryKey;size:36"`
	UserID          uint       `json:"user_id" gorm:"not null;index"`
	Title           string     `json:"title" gorm:"size:120;not null"`
	Description     *string    `json:"description" gorm:"type:text"`
	ScoreAllocation int        `json:"score_allocation" gorm:"not null;default:0"`
	PlanYear        *int       `json:"plan_year"`
	Status          string     `json:"status" gorm:"size:16;not null;default:'draft';index"` // draft, active, archived
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Goals           []PlanGoal `json:"goals" gorm:"foreignKey:PlanID;constraint:OnDelete:CASCADE"`
}

func (p *AnnualPlan) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

type PlanGoal struct {
	ID                string    `json:"id" gorm:"primaryKey;size:36"`
	PlanID            string    `json:"plan_id" gorm:"size:36;not null;index"`
	Name              string    `json:"name" gorm:"size:120;not null"`
	Details           *string   `json:"details" gorm:"type:text"`
	ExpectedTimeframe *string   `json:"expected_timeframe" gorm:"size:64"`
	ScoreAllocation   int       `json:"score_allocation" gorm:"not null;default:0"`
	SortOrder         int       `json:"sort_order" gorm:"not null;default:0"`
	Status            string    `json:"status" gorm:"size:16;not null;default:'pending';index"` // pending, executing, done
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (g *PlanGoal) BeforeCreate(tx *gorm.DB) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	return nil
}

// PlanBudget is the per-user lock anchor for budget changes. Allocated
// mirrors the sum of the user's plan allocations as of the last write.
type PlanBudget struct {
	UserID    uint      `json:"user_id" gorm:"primaryKey;autoIncrement:false"`
	Allocated int       `json:"allocated" gorm:"not null;default:0"`
	UpdatedAt time.Time `json:"updated_at"`
}

type PlanStatus string

const (
	PlanDraft    PlanStatus = "draft"
	PlanActive   PlanStatus = "active"
	PlanArchived PlanStatus = "archived"
)

type GoalStatus string

const (
	GoalPending   GoalStatus = "pending"
	GoalExecuting GoalStatus = "executing"
	GoalDone      GoalStatus = "done"
)

// ScoreBudget is the number of points a user may spread across all plans.
const ScoreBudget = 100
