package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"score_tracker/internal/models"
	"score_tracker/internal/services"
)

func createPlan(t *testing.T, env *testEnv, userID uint, title string, goals ...services.GoalInput) *services.PlanResult {
	t.Helper()
	res, err := env.plans.Create(context.Background(), userID, services.CreatePlanRequest{Title: title, Goals: goals})
	if err != nil {
		t.Fatalf("Create(%s) error = %v", title, err)
	}
	return res
}

func goalIDs(p services.PlanView) []string {
	ids := make([]string, 0, len(p.Goals))
	for _, g := range p.Goals {
		ids = append(ids, g.ID)
	}
	return ids
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestCreatePlan(t *testing.T) {
	env := newTestEnv(t)

	res := createPlan(t, env, 1, "  Health  ", goal("Run", 25), goal("Sleep", 15))

	if res.RemainingScore != 60 {
		t.Errorf("RemainingScore = %d, want 60", res.RemainingScore)
	}
	p := res.Plan
	if p.Title != "Health" || p.ScoreAllocation != 40 || p.Status != string(models.PlanActive) {
		t.Errorf("plan = %+v", p)
	}
	if p.Year == nil || *p.Year < 2000 {
		t.Errorf("Year = %v, want current year", p.Year)
	}
	if len(p.Goals) != 2 {
		t.Fatalf("len(Goals) = %d, want 2", len(p.Goals))
	}
	for i, g := range p.Goals {
		if g.SortOrder != i || g.Status != string(models.GoalPending) || g.PlanID != p.ID {
			t.Errorf("goal %d = %+v", i, g)
		}
	}

	list, err := env.plans.List(context.Background(), 1)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if list.RemainingScore != 60 || len(list.Plans) != 1 {
		t.Errorf("List() = remaining %d, %d plans", list.RemainingScore, len(list.Plans))
	}

	other, err := env.plans.List(context.Background(), 2)
	if err != nil {
		t.Fatalf("List(other) error = %v", err)
	}
	if other.RemainingScore != 100 || len(other.Plans) != 0 {
		t.Errorf("other user sees remaining %d, %d plans", other.RemainingScore, len(other.Plans))
	}
}

func TestCreatePlanValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		req  services.CreatePlanRequest
	}{
		{"blank title", services.CreatePlanRequest{Title: "  ", Goals: []services.GoalInput{goal("a", 1)}}},
		{"no goals", services.CreatePlanRequest{Title: "t"}},
		{"blank goal name", services.CreatePlanRequest{Title: "t", Goals: []services.GoalInput{goal(" ", 1)}}},
		{"zero score", services.CreatePlanRequest{Title: "t", Goals: []services.GoalInput{goal("a", 0)}}},
		{"score over budget unit", services.CreatePlanRequest{Title: "t", Goals: []services.GoalInput{goal("a", 101)}}},
		{"missing score", services.CreatePlanRequest{Title: "t", Goals: []services.GoalInput{{Name: "a"}}}},
		{"year too early", services.CreatePlanRequest{Title: "t", Year: intPtr(1999), Goals: []services.GoalInput{goal("a", 1)}}},
		{"year too late", services.CreatePlanRequest{Title: "t", Year: intPtr(2101), Goals: []services.GoalInput{goal("a", 1)}}},
		{"bad goal status", services.CreatePlanRequest{Title: "t", Goals: []services.GoalInput{{Name: "a", ScoreAllocation: intPtr(1), Status: strPtr("finished")}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.plans.Create(context.Background(), 1, tt.req)
			var verr *services.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Create() error = %v, want ValidationError", err)
			}
		})
	}

	list, _ := env.plans.List(context.Background(), 1)
	if len(list.Plans) != 0 || list.RemainingScore != 100 {
		t.Errorf("rejected creates left %d plans, remaining %d", len(list.Plans), list.RemainingScore)
	}
}

func TestCreatePlanBudgetExceeded(t *testing.T) {
	env := newTestEnv(t)
	createPlan(t, env, 1, "Big", goal("a", 70))

	_, err := env.plans.Create(context.Background(), 1, services.CreatePlanRequest{
		Title: "Too much",
		Goals: []services.GoalInput{goal("b", 20), goal("c", 20)},
	})
	var budget *services.BudgetExceededError
	if !errors.As(err, &budget) {
		t.Fatalf("Create() error = %v, want BudgetExceededError", err)
	}
	if budget.Remaining != 30 || budget.Requested != 40 {
		t.Errorf("BudgetExceededError = %+v, want remaining 30 requested 40", budget)
	}

	// Exactly filling the budget is allowed.
	res := createPlan(t, env, 1, "Rest", goal("d", 30))
	if res.RemainingScore != 0 {
		t.Errorf("RemainingScore = %d, want 0", res.RemainingScore)
	}
}

func TestCreatePlanConcurrentRequestsRespectBudget(t *testing.T) {
	env := newTestEnv(t)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		exceeded  int
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.plans.Create(context.Background(), 1, services.CreatePlanRequest{
				Title: "Sixty",
				Goals: []services.GoalInput{goal("g", 60)},
			})
			mu.Lock()
			defer mu.Unlock()
			var budget *services.BudgetExceededError
			switch {
			case err == nil:
				succeeded++
			case errors.As(err, &budget):
				exceeded++
			default:
				t.Errorf("Create() unexpected error = %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 || exceeded != 1 {
		t.Errorf("succeeded = %d, exceeded = %d, want 1 and 1", succeeded, exceeded)
	}
	list, err := env.plans.List(context.Background(), 1)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if list.RemainingScore != 40 {
		t.Errorf("RemainingScore = %d, want 40", list.RemainingScore)
	}
}

func TestUpdatePlanExcludesOwnAllocation(t *testing.T) {
	env := newTestEnv(t)
	a := createPlan(t, env, 1, "A", goal("a1", 60))
	createPlan(t, env, 1, "B", goal("b1", 30))

	goals := []services.GoalInput{{ID: a.Plan.Goals[0].ID, Name: "a1", ScoreAllocation: intPtr(70)}}
	res, err := env.plans.Update(context.Background(), 1, a.Plan.ID, services.UpdatePlanRequest{Goals: &goals})
	if err != nil {
		t.Fatalf("Update() to 70 error = %v", err)
	}
	if res.Plan.ScoreAllocation != 70 || res.RemainingScore != 0 {
		t.Errorf("Update() = allocation %d remaining %d, want 70 and 0", res.Plan.ScoreAllocation, res.RemainingScore)
	}

	goals[0].ScoreAllocation = intPtr(71)
	_, err = env.plans.Update(context.Background(), 1, a.Plan.ID, services.UpdatePlanRequest{Goals: &goals})
	var budget *services.BudgetExceededError
	if !errors.As(err, &budget) {
		t.Fatalf("Update() to 71 error = %v, want BudgetExceededError", err)
	}
	if budget.Remaining != 70 || budget.Requested != 71 {
		t.Errorf("BudgetExceededError = %+v, want remaining 70 requested 71", budget)
	}
}

func TestUpdatePlanReconcilesGoals(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	created := createPlan(t, env, 1, "Work", goal("first", 10), goal("second", 20))
	first, second := created.Plan.Goals[0], created.Plan.Goals[1]

	if _, err := env.plans.UpdateGoalStatus(ctx, 1, second.ID, string(models.GoalExecuting)); err != nil {
		t.Fatalf("UpdateGoalStatus() error = %v", err)
	}

	goals := []services.GoalInput{
		{ID: second.ID, Name: "second renamed", ScoreAllocation: intPtr(5)},
		{Name: "brand new", ScoreAllocation: intPtr(7)},
		{ID: "not-a-stored-id", Name: "foreign", ScoreAllocation: intPtr(1)},
	}
	res, err := env.plans.Update(ctx, 1, created.Plan.ID, services.UpdatePlanRequest{
		Title:  strPtr("Work 2"),
		Status: strPtr(string(models.PlanArchived)),
		Goals:  &goals,
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	p := res.Plan
	if p.Title != "Work 2" || p.Status != string(models.PlanArchived) {
		t.Errorf("plan fields = %q %q", p.Title, p.Status)
	}
	if p.ScoreAllocation != 13 || res.RemainingScore != 87 {
		t.Errorf("allocation %d remaining %d, want 13 and 87", p.ScoreAllocation, res.RemainingScore)
	}
	if len(p.Goals) != 3 {
		t.Fatalf("len(Goals) = %d, want 3", len(p.Goals))
	}
	if g := p.Goals[0]; g.ID != second.ID || g.Name != "second renamed" || g.Status != string(models.GoalExecuting) || g.SortOrder != 0 {
		t.Errorf("matched goal = %+v", g)
	}
	for i, g := range p.Goals[1:] {
		if g.ID == first.ID || g.ID == second.ID || g.ID == "not-a-stored-id" {
			t.Errorf("inserted goal %d reused id %s", i+1, g.ID)
		}
		if g.Status != string(models.GoalPending) || g.SortOrder != i+1 {
			t.Errorf("inserted goal %d = %+v", i+1, g)
		}
	}

	var count int64
	env.db.Model(&models.PlanGoal{}).Where("id = ?", first.ID).Count(&count)
	if count != 0 {
		t.Errorf("goal %s missing from payload was not deleted", first.ID)
	}
}

func TestUpdatePlanWithoutGoalsKeepsAllocation(t *testing.T) {
	env := newTestEnv(t)
	created := createPlan(t, env, 1, "Read", goal("books", 12))

	res, err := env.plans.Update(context.Background(), 1, created.Plan.ID, services.UpdatePlanRequest{
		Description: strPtr("  fiction only "),
		Year:        intPtr(2030),
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if res.Plan.ScoreAllocation != 12 || len(res.Plan.Goals) != 1 {
		t.Errorf("plan = %+v", res.Plan)
	}
	if res.Plan.Description == nil || *res.Plan.Description != "fiction only" {
		t.Errorf("Description = %v", res.Plan.Description)
	}
	if res.Plan.Year == nil || *res.Plan.Year != 2030 {
		t.Errorf("Year = %v, want 2030", res.Plan.Year)
	}
}

func TestUpdatePlanErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	created := createPlan(t, env, 1, "Mine", goal("g", 10))

	empty := []services.GoalInput{}
	_, err := env.plans.Update(ctx, 1, created.Plan.ID, services.UpdatePlanRequest{Goals: &empty})
	var verr *services.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("empty goal list error = %v, want ValidationError", err)
	}

	dup := []services.GoalInput{
		{ID: created.Plan.Goals[0].ID, Name: "a", ScoreAllocation: intPtr(1)},
		{ID: created.Plan.Goals[0].ID, Name: "b", ScoreAllocation: intPtr(1)},
	}
	_, err = env.plans.Update(ctx, 1, created.Plan.ID, services.UpdatePlanRequest{Goals: &dup})
	if !errors.As(err, &verr) {
		t.Errorf("duplicate goal ids error = %v, want ValidationError", err)
	}

	_, err = env.plans.Update(ctx, 1, created.Plan.ID, services.UpdatePlanRequest{Status: strPtr("paused")})
	if !errors.As(err, &verr) {
		t.Errorf("bad status error = %v, want ValidationError", err)
	}

	_, err = env.plans.Update(ctx, 2, created.Plan.ID, services.UpdatePlanRequest{Title: strPtr("stolen")})
	if !errors.Is(err, services.ErrNotFound) {
		t.Errorf("other user's update error = %v, want ErrNotFound", err)
	}
}

func TestDeletePlan(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := createPlan(t, env, 1, "A", goal("a1", 30), goal("a2", 10))
	createPlan(t, env, 1, "B", goal("b1", 25))

	if _, err := env.plans.Delete(ctx, 2, a.Plan.ID); !errors.Is(err, services.ErrNotFound) {
		t.Errorf("Delete() by other user error = %v, want ErrNotFound", err)
	}

	remaining, err := env.plans.Delete(ctx, 1, a.Plan.ID)
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if remaining != 75 {
		t.Errorf("remaining = %d, want 75", remaining)
	}

	var goals int64
	env.db.Model(&models.PlanGoal{}).Where("plan_id = ?", a.Plan.ID).Count(&goals)
	if goals != 0 {
		t.Errorf("%d goals survived their plan", goals)
	}

	if _, err := env.plans.Delete(ctx, 1, a.Plan.ID); !errors.Is(err, services.ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestReorderGoals(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	created := createPlan(t, env, 1, "Order", goal("A", 1), goal("B", 1), goal("C", 1))
	ids := goalIDs(created.Plan)
	a, b, c := ids[0], ids[1], ids[2]

	view, err := env.plans.Reorder(ctx, 1, created.Plan.ID, []string{c, a, b})
	if err != nil {
		t.Fatalf("Reorder() error = %v", err)
	}
	if got := goalIDs(*view); !equalIDs(got, []string{c, a, b}) {
		t.Errorf("order after Reorder() = %v, want [C A B]", got)
	}

	list, _ := env.plans.List(ctx, 1)
	if got := goalIDs(list.Plans[0]); !equalIDs(got, []string{c, a, b}) {
		t.Errorf("order after List() = %v, want [C A B]", got)
	}
	for i, g := range list.Plans[0].Goals {
		if g.SortOrder != i {
			t.Errorf("goal %s sort_order = %d, want %d", g.ID, g.SortOrder, i)
		}
	}
}

func TestReorderGoalsRejectsMismatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	created := createPlan(t, env, 1, "Order", goal("A", 1), goal("B", 1), goal("C", 1))
	ids := goalIDs(created.Plan)
	other := createPlan(t, env, 1, "Other", goal("X", 1))

	tests := []struct {
		name string
		ids  []string
	}{
		{"empty", nil},
		{"partial", []string{ids[0], ids[1]}},
		{"duplicate", []string{ids[0], ids[0], ids[1]}},
		{"foreign", []string{ids[0], ids[1], other.Plan.Goals[0].ID}},
		{"extra", []string{ids[0], ids[1], ids[2], other.Plan.Goals[0].ID}},
		{"blank", []string{ids[0], "", ids[2]}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.plans.Reorder(ctx, 1, created.Plan.ID, tt.ids)
			var verr *services.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Reorder() error = %v, want ValidationError", err)
			}
		})
	}

	list, _ := env.plans.List(ctx, 1)
	for _, p := range list.Plans {
		if p.ID == created.Plan.ID && !equalIDs(goalIDs(p), ids) {
			t.Errorf("order changed after rejected reorders: %v", goalIDs(p))
		}
	}

	if _, err := env.plans.Reorder(ctx, 2, created.Plan.ID, ids); !errors.Is(err, services.ErrNotFound) {
		t.Errorf("other user's Reorder() error = %v, want ErrNotFound", err)
	}
}

func TestUpdateGoalStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	created := createPlan(t, env, 1, "Status", goal("g", 5))
	goalID := created.Plan.Goals[0].ID

	g, err := env.plans.UpdateGoalStatus(ctx, 1, goalID, string(models.GoalDone))
	if err != nil {
		t.Fatalf("UpdateGoalStatus() error = %v", err)
	}
	if g.Status != string(models.GoalDone) {
		t.Errorf("Status = %q, want done", g.Status)
	}

	var verr *services.ValidationError
	if _, err := env.plans.UpdateGoalStatus(ctx, 1, goalID, "later"); !errors.As(err, &verr) {
		t.Errorf("invalid status error = %v, want ValidationError", err)
	}
	if _, err := env.plans.UpdateGoalStatus(ctx, 2, goalID, string(models.GoalPending)); !errors.Is(err, services.ErrNotFound) {
		t.Errorf("other user's status error = %v, want ErrNotFound", err)
	}
}
