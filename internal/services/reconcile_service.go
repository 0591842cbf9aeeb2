package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"score_tracker/internal/models"
	"score_tracker/internal/repository"
	"score_tracker/internal/scoring"
)

// ReconcileService rebuilds stored daily scores from events. It repairs rows
// left stale by writes that bypassed the event service.
type ReconcileService interface {
	// ReconcileDay recomputes day for every user with a completed event or a
	// stored score on it and returns how many rows were rewritten.
	ReconcileDay(ctx context.Context, day time.Time) (int, error)
	// ReconcileUser recomputes every day in [from, to] for one user.
	ReconcileUser(ctx context.Context, userID uint, from, to time.Time) (int, error)
	// Yesterday runs ReconcileDay for the previous calendar day.
	Yesterday()
}

type reconcileService struct {
	store  *repository.Store
	scores DailyScoreService
	stats  StatsService
	loc    *time.Location
	now    func() time.Time
}

func NewReconcileService(store *repository.Store, scores DailyScoreService, stats StatsService, loc *time.Location) ReconcileService {
	if loc == nil {
		loc = time.UTC
	}
	return &reconcileService{store: store, scores: scores, stats: stats, loc: loc, now: time.Now}
}

func (s *reconcileService) ReconcileDay(ctx context.Context, day time.Time) (int, error) {
	local := day.In(s.loc)
	start, end := scoring.DayWindow(local, s.loc)
	withEvents, err := s.store.Events.UsersWithCompletedBetween(ctx, start, end)
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}
	withScores, err := s.store.Scores.UserIDsOn(ctx, models.DateOf(local))
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}
	users := mergeIDs(withEvents, withScores)
	for _, userID := range users {
		if _, err := s.scores.Recompute(ctx, userID, start); err != nil {
			return 0, fmt.Errorf("recompute user %d: %w", userID, err)
		}
		s.stats.Invalidate(ctx, userID)
	}
	return len(users), nil
}

func (s *reconcileService) ReconcileUser(ctx context.Context, userID uint, from, to time.Time) (int, error) {
	first, _ := scoring.DayWindow(from.In(s.loc), s.loc)
	last, _ := scoring.DayWindow(to.In(s.loc), s.loc)
	if last.Before(first) {
		return 0, invalid("range end is before its start")
	}
	n := 0
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		if _, err := s.scores.Recompute(ctx, userID, day); err != nil {
			return n, fmt.Errorf("recompute %s: %w", day.Format(dateLayout), err)
		}
		n++
	}
	s.stats.Invalidate(ctx, userID)
	return n, nil
}

func (s *reconcileService) Yesterday() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	day := s.now().In(s.loc).AddDate(0, 0, -1)
	n, err := s.ReconcileDay(ctx, day)
	if err != nil {
		log.Printf("Daily score reconcile for %s failed: %v", day.Format(dateLayout), err)
		return
	}
	log.Printf("Daily score reconcile for %s rewrote %d rows", day.Format(dateLayout), n)
}

// mergeIDs returns the sorted union of two ascending id lists.
func mergeIDs(a, b []uint) []uint {
	out := make([]uint, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		switch {
		case j == len(b) || (i < len(a) && a[i] < b[j]):
			out = append(out, a[i])
			i++
		case i == len(a) || b[j] < a[i]:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}
