package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"score_tracker/internal/models"
)

type PlanRepository interface {
	// LockBudget ensures the user's budget anchor exists and holds a row
	// lock on it until the transaction ends. Every write that changes the
	// user's allocations takes this lock first.
	LockBudget(ctx context.Context, userID uint) (*models.PlanBudget, error)
	SetAllocated(ctx context.Context, userID uint, allocated int) error

	List(ctx context.Context, userID uint) ([]models.AnnualPlan, error)
	ListForUpdate(ctx context.Context, userID uint) ([]models.AnnualPlan, error)
	GetByID(ctx context.Context, userID uint, planID string) (*models.AnnualPlan, error)
	GetForUpdate(ctx context.Context, userID uint, planID string) (*models.AnnualPlan, error)
	Create(ctx context.Context, plan *models.AnnualPlan) error
	UpdateFields(ctx context.Context, plan *models.AnnualPlan) error
	Delete(ctx context.Context, plan *models.AnnualPlan) error

	CreateGoals(ctx context.Context, goals []models.PlanGoal) error
	UpdateGoal(ctx context.Context, goal *models.PlanGoal) error
	DeleteGoals(ctx context.Context, planID string, ids []string) error
	SetGoalOrder(ctx context.Context, planID string, order []string) error
	GetGoal(ctx context.Context, userID uint, goalID string) (*models.PlanGoal, error)
	SetGoalStatus(ctx context.Context, goal *models.PlanGoal, status string) error
}

type planRepository struct {
	db *gorm.DB
}

func NewPlanRepository(db *gorm.DB) PlanRepository {
	return &planRepository{db: db}
}

func orderedGoals(db *gorm.DB) *gorm.DB {
	return db.Order("sort_order ASC, created_at ASC, id ASC")
}

func (r *planRepository) LockBudget(ctx context.Context, userID uint) (*models.PlanBudget, error) {
	db := r.db.WithContext(ctx)
	anchor := models.PlanBudget{UserID: userID}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&anchor).Error
	if err != nil {
		return nil, fmt.Errorf("insert plan budget: %w", err)
	}

	var budget models.PlanBudget
	if err := forUpdate(db).Where("user_id = ?", userID).First(&budget).Error; err != nil {
		return nil, fmt.Errorf("lock plan budget: %w", err)
	}
	return &budget, nil
}

func (r *planRepository) SetAllocated(ctx context.Context, userID uint, allocated int) error {
	return r.db.WithContext(ctx).Model(&models.PlanBudget{}).
		Where("user_id = ?", userID).
		Update("allocated", allocated).Error
}

func (r *planRepository) List(ctx context.Context, userID uint) ([]models.AnnualPlan, error) {
	var plans []models.AnnualPlan
	err := r.db.WithContext(ctx).
		Preload("Goals", orderedGoals).
		Where("user_id = ?", userID).
		Order("created_at DESC, id ASC").
		Find(&plans).Error
	return plans, err
}

func (r *planRepository) ListForUpdate(ctx context.Context, userID uint) ([]models.AnnualPlan, error) {
	var plans []models.AnnualPlan
	err := forUpdate(r.db.WithContext(ctx)).
		Where("user_id = ?", userID).
		Order("created_at DESC, id ASC").
		Find(&plans).Error
	return plans, err
}

func (r *planRepository) GetByID(ctx context.Context, userID uint, planID string) (*models.AnnualPlan, error) {
	var plan models.AnnualPlan
	err := r.db.WithContext(ctx).
		Preload("Goals", orderedGoals).
		Where("user_id = ? AND id = ?", userID, planID).
		First(&plan).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *planRepository) GetForUpdate(ctx context.Context, userID uint, planID string) (*models.AnnualPlan, error) {
	var plan models.AnnualPlan
	err := forUpdate(r.db.WithContext(ctx)).
		Where("user_id = ? AND id = ?", userID, planID).
		First(&plan).Error
	if err != nil {
		return nil, err
	}
	var goals []models.PlanGoal
	if err := orderedGoals(forUpdate(r.db.WithContext(ctx))).Where("plan_id = ?", plan.ID).Find(&goals).Error; err != nil {
		return nil, err
	}
	plan.Goals = goals
	return &plan, nil
}

func (r *planRepository) Create(ctx context.Context, plan *models.AnnualPlan) error {
	if err := r.db.WithContext(ctx).Create(plan).Error; err != nil {
		return fmt.Errorf("create plan: %w", err)
	}
	return nil
}

func (r *planRepository) UpdateFields(ctx context.Context, plan *models.AnnualPlan) error {
	err := r.db.WithContext(ctx).Model(plan).
		Select("title", "description", "score_allocation", "plan_year", "status", "updated_at").
		Updates(plan).Error
	if err != nil {
		return fmt.Errorf("update plan: %w", err)
	}
	return nil
}

func (r *planRepository) Delete(ctx context.Context, plan *models.AnnualPlan) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("plan_id = ?", plan.ID).Delete(&models.PlanGoal{}).Error; err != nil {
		return fmt.Errorf("delete plan goals: %w", err)
	}
	if err := db.Delete(&models.AnnualPlan{}, "id = ?", plan.ID).Error; err != nil {
		return fmt.Errorf("delete plan: %w", err)
	}
	return nil
}

func (r *planRepository) CreateGoals(ctx context.Context, goals []models.PlanGoal) error {
	if len(goals) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&goals).Error; err != nil {
		return fmt.Errorf("create goals: %w", err)
	}
	return nil
}

func (r *planRepository) UpdateGoal(ctx context.Context, goal *models.PlanGoal) error {
	err := r.db.WithContext(ctx).Model(goal).
		Select("name", "details", "expected_timeframe", "score_allocation", "sort_order", "status", "updated_at").
		Updates(goal).Error
	if err != nil {
		return fmt.Errorf("update goal: %w", err)
	}
	return nil
}

func (r *planRepository) DeleteGoals(ctx context.Context, planID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Where("plan_id = ? AND id IN ?", planID, ids).
		Delete(&models.PlanGoal{}).Error
	if err != nil {
		return fmt.Errorf("delete goals: %w", err)
	}
	return nil
}

func (r *planRepository) SetGoalOrder(ctx context.Context, planID string, order []string) error {
	db := r.db.WithContext(ctx)
	for i, id := range order {
		err := db.Model(&models.PlanGoal{}).
			Where("plan_id = ? AND id = ?", planID, id).
			Update("sort_order", i).Error
		if err != nil {
			return fmt.Errorf("reorder goal %s: %w", id, err)
		}
	}
	return nil
}

func (r *planRepository) GetGoal(ctx context.Context, userID uint, goalID string) (*models.PlanGoal, error) {
	var goal models.PlanGoal
	err := r.db.WithContext(ctx).
		Joins("JOIN annual_plans ON annual_plans.id = plan_goals.plan_id").
		Where("plan_goals.id = ? AND annual_plans.user_id = ?", goalID, userID).
		First(&goal).Error
	if err != nil {
		return nil, err
	}
	return &goal, nil
}

func (r *planRepository) SetGoalStatus(ctx context.Context, goal *models.PlanGoal, status string) error {
	if err := r.db.WithContext(ctx).Model(goal).Update("status", status).Error; err != nil {
		return fmt.Errorf("update goal status: %w", err)
	}
	goal.Status = status
	return nil
}
