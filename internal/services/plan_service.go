package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"score_tracker/internal/models"
	"score_tracker/internal/repository"
)

const (
	minPlanYear = 2000
	maxPlanYear = 2100
)

// GoalInput is one goal in a create or update payload. ID and Status are
// only meaningful on update.
type GoalInput struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	Details           *string `json:"details"`
	ExpectedTimeframe *string `json:"expected_timeframe"`
	ScoreAllocation   *int    `json:"score_allocation"`
	Status            *string `json:"status"`
}

type CreatePlanRequest struct {
	Title       string      `json:"title"`
	Description *string     `json:"description"`
	Year        *int        `json:"year"`
	Goals       []GoalInput `json:"goals"`
}

// UpdatePlanRequest fields left nil keep their stored value. A non-nil Goals
// replaces the whole goal list.
type UpdatePlanRequest struct {
	Title       *string      `json:"title"`
	Description *string      `json:"description"`
	Year        *int         `json:"year"`
	Status      *string      `json:"status"`
	Goals       *[]GoalInput `json:"goals"`
}

type GoalView struct {
	ID                string  `json:"id"`
	PlanID            string  `json:"plan_id"`
	Name              string  `json:"name"`
	Details           *string `json:"details"`
	ExpectedTimeframe *string `json:"expected_timeframe"`
	ScoreAllocation   int     `json:"score_allocation"`
	Status            string  `json:"status"`
	SortOrder         int     `json:"sort_order"`
	CreatedAt         string  `json:"created_at"`
	UpdatedAt         string  `json:"updated_at"`
}

type PlanView struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     *string    `json:"description"`
	Year            *int       `json:"year"`
	ScoreAllocation int        `json:"score_allocation"`
	Status          string     `json:"status"`
	CreatedAt       string     `json:"created_at"`
	UpdatedAt       string     `json:"updated_at"`
	Goals           []GoalView `json:"goals"`
}

type PlanList struct {
	RemainingScore int        `json:"remaining_score"`
	Plans          []PlanView `json:"plans"`
}

type PlanResult struct {
	Plan           PlanView `json:"plan"`
	RemainingScore int      `json:"remaining_score"`
}

type PlanService interface {
	List(ctx context.Context, userID uint) (*PlanList, error)
	Create(ctx context.Context, userID uint, req CreatePlanRequest) (*PlanResult, error)
	Update(ctx context.Context, userID uint, planID string, req UpdatePlanRequest) (*PlanResult, error)
	Delete(ctx context.Context, userID uint, planID string) (int, error)
	Reorder(ctx context.Context, userID uint, planID string, goalIDs []string) (*PlanView, error)
	UpdateGoalStatus(ctx context.Context, userID uint, goalID string, status string) (*GoalView, error)
}

type planService struct {
	store *repository.Store
	now   func() time.Time
}

func NewPlanService(store *repository.Store) PlanService {
	return &planService{store: store, now: time.Now}
}

// goalDraft is a validated GoalInput.
type goalDraft struct {
	id                string
	name              string
	details           *string
	expectedTimeframe *string
	score             int
	status            *string
}

func (s *planService) List(ctx context.Context, userID uint) (*PlanList, error) {
	plans, err := s.store.Plans.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	views := make([]PlanView, 0, len(plans))
	for i := range plans {
		views = append(views, planView(&plans[i]))
	}
	return &PlanList{
		RemainingScore: remainingScore(sumAllocations(plans)),
		Plans:          views,
	}, nil
}

func (s *planService) Create(ctx context.Context, userID uint, req CreatePlanRequest) (*PlanResult, error) {
	title, err := normalizeTitle(req.Title)
	if err != nil {
		return nil, err
	}
	drafts, err := prepareGoals(req.Goals, false)
	if err != nil {
		return nil, err
	}
	total := draftTotal(drafts)
	year := s.now().UTC().Year()
	if req.Year != nil {
		if year, err = validateYear(*req.Year); err != nil {
			return nil, err
		}
	}

	var result *PlanResult
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		if _, err := tx.Plans.LockBudget(ctx, userID); err != nil {
			return err
		}
		plans, err := tx.Plans.ListForUpdate(ctx, userID)
		if err != nil {
			return fmt.Errorf("lock plans: %w", err)
		}
		current := sumAllocations(plans)
		remaining := remainingScore(current)
		if total > remaining {
			return &BudgetExceededError{Remaining: remaining, Requested: total}
		}

		plan := &models.AnnualPlan{
			UserID:          userID,
			Title:           title,
			Description:     trimmedOrNil(req.Description),
			ScoreAllocation: total,
			PlanYear:        &year,
			Status:          string(models.PlanActive),
		}
		for i, d := range drafts {
			status := string(models.GoalPending)
			if d.status != nil {
				status = *d.status
			}
			plan.Goals = append(plan.Goals, models.PlanGoal{
				Name:              d.name,
				Details:           d.details,
				ExpectedTimeframe: d.expectedTimeframe,
				ScoreAllocation:   d.score,
				SortOrder:         i,
				Status:            status,
			})
		}
		if err := tx.Plans.Create(ctx, plan); err != nil {
			return err
		}
		if err := tx.Plans.SetAllocated(ctx, userID, current+total); err != nil {
			return err
		}
		result = &PlanResult{Plan: planView(plan), RemainingScore: remainingScore(current + total)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *planService) Update(ctx context.Context, userID uint, planID string, req UpdatePlanRequest) (*PlanResult, error) {
	var drafts []goalDraft
	if req.Goals != nil {
		var err error
		if drafts, err = prepareGoals(*req.Goals, true); err != nil {
			return nil, err
		}
	}
	var year *int
	if req.Year != nil {
		y, err := validateYear(*req.Year)
		if err != nil {
			return nil, err
		}
		year = &y
	}
	if req.Status != nil && !validPlanStatus(*req.Status) {
		return nil, invalid("invalid plan status %q", *req.Status)
	}

	var result *PlanResult
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		if _, err := tx.Plans.LockBudget(ctx, userID); err != nil {
			return err
		}
		plans, err := tx.Plans.ListForUpdate(ctx, userID)
		if err != nil {
			return fmt.Errorf("lock plans: %w", err)
		}
		plan, err := tx.Plans.GetForUpdate(ctx, userID, planID)
		if err != nil {
			return notFound("plan", err)
		}

		if req.Title != nil {
			if plan.Title, err = normalizeTitle(*req.Title); err != nil {
				return err
			}
		}
		if req.Description != nil {
			plan.Description = trimmedOrNil(req.Description)
		}

		var newScore int
		if req.Goals != nil {
			newScore = draftTotal(drafts)
		} else {
			for _, g := range plan.Goals {
				newScore += g.ScoreAllocation
			}
			if newScore <= 0 {
				return invalid("plan goals must carry a positive score")
			}
		}

		other := 0
		for _, p := range plans {
			if p.ID != plan.ID {
				other += p.ScoreAllocation
			}
		}
		if newScore > models.ScoreBudget-other {
			return &BudgetExceededError{Remaining: remainingScore(other), Requested: newScore}
		}

		plan.ScoreAllocation = newScore
		if year != nil {
			plan.PlanYear = year
		} else if plan.PlanYear == nil {
			y := s.now().UTC().Year()
			plan.PlanYear = &y
		}
		if req.Status != nil {
			plan.Status = *req.Status
		}

		if req.Goals != nil {
			created, updated, deleted := reconcileGoals(plan.ID, plan.Goals, drafts)
			if err := tx.Plans.DeleteGoals(ctx, plan.ID, deleted); err != nil {
				return err
			}
			for i := range updated {
				if err := tx.Plans.UpdateGoal(ctx, &updated[i]); err != nil {
					return err
				}
			}
			if err := tx.Plans.CreateGoals(ctx, created); err != nil {
				return err
			}
		}
		if err := tx.Plans.UpdateFields(ctx, plan); err != nil {
			return err
		}
		if err := tx.Plans.SetAllocated(ctx, userID, other+newScore); err != nil {
			return err
		}

		fresh, err := tx.Plans.GetByID(ctx, userID, plan.ID)
		if err != nil {
			return notFound("plan", err)
		}
		if len(fresh.Goals) == 0 {
			return invalid("a plan needs at least one goal")
		}
		result = &PlanResult{Plan: planView(fresh), RemainingScore: remainingScore(other + newScore)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// reconcileGoals partitions the stored goals against the submitted list.
// Submitted goals whose id matches a stored goal update it in place and keep
// its status unless one is given. Everything else is inserted under a fresh
// id. Stored goals absent from the submission are deleted. sort_order
// follows submission order.
func reconcileGoals(planID string, stored []models.PlanGoal, drafts []goalDraft) (created, updated []models.PlanGoal, deleted []string) {
	byID := make(map[string]models.PlanGoal, len(stored))
	for _, g := range stored {
		byID[g.ID] = g
	}
	kept := make(map[string]bool, len(drafts))

	for i, d := range drafts {
		if g, ok := byID[d.id]; ok && d.id != "" {
			g.Name = d.name
			g.Details = d.details
			g.ExpectedTimeframe = d.expectedTimeframe
			g.ScoreAllocation = d.score
			g.SortOrder = i
			if d.status != nil {
				g.Status = *d.status
			}
			updated = append(updated, g)
			kept[g.ID] = true
			continue
		}
		status := string(models.GoalPending)
		if d.status != nil {
			status = *d.status
		}
		created = append(created, models.PlanGoal{
			PlanID:            planID,
			Name:              d.name,
			Details:           d.details,
			ExpectedTimeframe: d.expectedTimeframe,
			ScoreAllocation:   d.score,
			SortOrder:         i,
			Status:            status,
		})
	}

	for _, g := range stored {
		if !kept[g.ID] {
			deleted = append(deleted, g.ID)
		}
	}
	return created, updated, deleted
}

func (s *planService) Delete(ctx context.Context, userID uint, planID string) (int, error) {
	if strings.TrimSpace(planID) == "" {
		return 0, invalid("plan id is required")
	}
	var remaining int
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		if _, err := tx.Plans.LockBudget(ctx, userID); err != nil {
			return err
		}
		plan, err := tx.Plans.GetForUpdate(ctx, userID, planID)
		if err != nil {
			return notFound("plan", err)
		}
		if err := tx.Plans.Delete(ctx, plan); err != nil {
			return err
		}
		plans, err := tx.Plans.ListForUpdate(ctx, userID)
		if err != nil {
			return fmt.Errorf("lock plans: %w", err)
		}
		total := sumAllocations(plans)
		if err := tx.Plans.SetAllocated(ctx, userID, total); err != nil {
			return err
		}
		remaining = remainingScore(total)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return remaining, nil
}

func (s *planService) Reorder(ctx context.Context, userID uint, planID string, goalIDs []string) (*PlanView, error) {
	if len(goalIDs) == 0 {
		return nil, invalid("goal order is required")
	}
	seen := make(map[string]bool, len(goalIDs))
	for _, id := range goalIDs {
		if strings.TrimSpace(id) == "" {
			return nil, invalid("goal order contains an empty id")
		}
		if seen[id] {
			return nil, invalid("goal order contains duplicate id %s", id)
		}
		seen[id] = true
	}

	var view *PlanView
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		if _, err := tx.Plans.LockBudget(ctx, userID); err != nil {
			return err
		}
		plan, err := tx.Plans.GetForUpdate(ctx, userID, planID)
		if err != nil {
			return notFound("plan", err)
		}
		if len(plan.Goals) == 0 {
			return invalid("plan has no goals to reorder")
		}
		if len(plan.Goals) != len(goalIDs) {
			return invalid("goal order has %d ids, plan has %d goals", len(goalIDs), len(plan.Goals))
		}
		for _, g := range plan.Goals {
			if !seen[g.ID] {
				return invalid("goal order does not match the plan's goals")
			}
		}
		if err := tx.Plans.SetGoalOrder(ctx, plan.ID, goalIDs); err != nil {
			return err
		}
		fresh, err := tx.Plans.GetByID(ctx, userID, plan.ID)
		if err != nil {
			return notFound("plan", err)
		}
		v := planView(fresh)
		view = &v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *planService) UpdateGoalStatus(ctx context.Context, userID uint, goalID string, status string) (*GoalView, error) {
	if !validGoalStatus(status) {
		return nil, invalid("invalid goal status %q", status)
	}
	var view *GoalView
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		goal, err := tx.Plans.GetGoal(ctx, userID, goalID)
		if err != nil {
			return notFound("goal", err)
		}
		if err := tx.Plans.SetGoalStatus(ctx, goal, status); err != nil {
			return err
		}
		v := goalView(goal)
		view = &v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func normalizeTitle(raw string) (string, error) {
	title := strings.TrimSpace(raw)
	if title == "" {
		return "", invalid("plan title is required")
	}
	return title, nil
}

func validateYear(year int) (int, error) {
	if year < minPlanYear || year > maxPlanYear {
		return 0, invalid("plan year must be between %d and %d", minPlanYear, maxPlanYear)
	}
	return year, nil
}

// prepareGoals validates a goal payload. withIDs keeps submitted ids, which
// must then be unique.
func prepareGoals(inputs []GoalInput, withIDs bool) ([]goalDraft, error) {
	if len(inputs) == 0 {
		return nil, invalid("a plan needs at least one goal")
	}
	drafts := make([]goalDraft, 0, len(inputs))
	ids := make(map[string]bool)
	for _, in := range inputs {
		name := strings.TrimSpace(in.Name)
		if name == "" {
			return nil, invalid("every goal needs a name")
		}
		if in.ScoreAllocation == nil {
			return nil, invalid("goal %q needs a score", name)
		}
		score := *in.ScoreAllocation
		if score <= 0 || score > models.ScoreBudget {
			return nil, invalid("goal score must be between 1 and %d", models.ScoreBudget)
		}
		if in.Status != nil && !validGoalStatus(*in.Status) {
			return nil, invalid("invalid goal status %q", *in.Status)
		}
		d := goalDraft{
			name:              name,
			details:           trimmedOrNil(in.Details),
			expectedTimeframe: trimmedOrNil(in.ExpectedTimeframe),
			score:             score,
			status:            in.Status,
		}
		if withIDs && in.ID != "" {
			if ids[in.ID] {
				return nil, invalid("goal %s is listed twice", in.ID)
			}
			ids[in.ID] = true
			d.id = in.ID
		}
		drafts = append(drafts, d)
	}
	return drafts, nil
}

func draftTotal(drafts []goalDraft) int {
	total := 0
	for _, d := range drafts {
		total += d.score
	}
	return total
}

func sumAllocations(plans []models.AnnualPlan) int {
	total := 0
	for _, p := range plans {
		total += p.ScoreAllocation
	}
	return total
}

func remainingScore(allocated int) int {
	if remaining := models.ScoreBudget - allocated; remaining > 0 {
		return remaining
	}
	return 0
}

func validPlanStatus(status string) bool {
	switch models.PlanStatus(status) {
	case models.PlanDraft, models.PlanActive, models.PlanArchived:
		return true
	}
	return false
}

func validGoalStatus(status string) bool {
	switch models.GoalStatus(status) {
	case models.GoalPending, models.GoalExecuting, models.GoalDone:
		return true
	}
	return false
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func goalView(g *models.PlanGoal) GoalView {
	return GoalView{
		ID:                g.ID,
		PlanID:            g.PlanID,
		Name:              g.Name,
		Details:           g.Details,
		ExpectedTimeframe: g.ExpectedTimeframe,
		ScoreAllocation:   g.ScoreAllocation,
		Status:            g.Status,
		SortOrder:         g.SortOrder,
		CreatedAt:         formatTime(g.CreatedAt),
		UpdatedAt:         formatTime(g.UpdatedAt),
	}
}

func planView(p *models.AnnualPlan) PlanView {
	goals := make([]models.PlanGoal, len(p.Goals))
	copy(goals, p.Goals)
	sort.SliceStable(goals, func(i, j int) bool {
		if goals[i].SortOrder != goals[j].SortOrder {
			return goals[i].SortOrder < goals[j].SortOrder
		}
		if !goals[i].CreatedAt.Equal(goals[j].CreatedAt) {
			return goals[i].CreatedAt.Before(goals[j].CreatedAt)
		}
		return goals[i].ID < goals[j].ID
	})
	views := make([]GoalView, 0, len(goals))
	for i := range goals {
		views = append(views, goalView(&goals[i]))
	}
	return PlanView{
		ID:              p.ID,
		Title:           p.Title,
		Description:     p.Description,
		Year:            p.PlanYear,
		ScoreAllocation: p.ScoreAllocation,
		Status:          p.Status,
		CreatedAt:       formatTime(p.CreatedAt),
		UpdatedAt:       formatTime(p.UpdatedAt),
		Goals:           views,
	}
}
