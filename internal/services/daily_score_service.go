package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"score_tracker/internal/models"
	"score_tracker/internal/repository"
	"score_tracker/internal/scoring"
)

const (
	dateLayout       = "2006-01-02"
	defaultTypeKey   = "default"
	defaultTypeColor = "#667eea"
)

type DailyScoreView struct {
	ID         string `json:"id"`
	Date       string `json:"date"`
	TotalScore int    `json:"total_score"`
}

type EfficiencyDetail struct {
	Units float64 `json:"count"`
	Score int     `json:"score"`
}

// TypeBreakdown is one event type's share of a day's score, split by
// efficiency rating.
type TypeBreakdown struct {
	TypeID    string                       `json:"type_id"`
	TypeName  string                       `json:"type_name"`
	TypeColor string                       `json:"type_color"`
	Details   map[string]*EfficiencyDetail `json:"details"`
}

type DailyScoreService interface {
	// Recompute rebuilds the user's score for the calendar day of day in its
	// own transaction.
	Recompute(ctx context.Context, userID uint, day time.Time) (*models.DailyScore, error)
	// RecomputeTx does the same inside a caller's transaction.
	RecomputeTx(ctx context.Context, tx *repository.Store, userID uint, day time.Time) (*models.DailyScore, error)
	ListRange(ctx context.Context, userID uint, from, to *time.Time) ([]DailyScoreView, error)
	Details(ctx context.Context, userID uint, day time.Time) ([]TypeBreakdown, error)
}

type dailyScoreService struct {
	store *repository.Store
	loc   *time.Location
}

func NewDailyScoreService(store *repository.Store, loc *time.Location) DailyScoreService {
	if loc == nil {
		loc = time.UTC
	}
	return &dailyScoreService{store: store, loc: loc}
}

func (s *dailyScoreService) Recompute(ctx context.Context, userID uint, day time.Time) (*models.DailyScore, error) {
	var score *models.DailyScore
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		score, err = s.RecomputeTx(ctx, tx, userID, day)
		return err
	})
	if err != nil {
		return nil, err
	}
	return score, nil
}

func (s *dailyScoreService) RecomputeTx(ctx context.Context, tx *repository.Store, userID uint, day time.Time) (*models.DailyScore, error) {
	local := day.In(s.loc)
	start, end := scoring.DayWindow(local, s.loc)

	row, err := tx.Scores.GetOrCreateForUpdate(ctx, userID, models.DateOf(local))
	if err != nil {
		return nil, err
	}
	events, err := tx.Events.ListCompletedBetween(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("load completed events: %w", err)
	}
	if err := tx.Scores.SetTotal(ctx, row, scoring.TotalScore(events)); err != nil {
		return nil, err
	}
	return row, nil
}

func (s *dailyScoreService) ListRange(ctx context.Context, userID uint, from, to *time.Time) ([]DailyScoreView, error) {
	var lo, hi *datatypes.Date
	if from != nil {
		d := models.DateOf(from.In(s.loc))
		lo = &d
	}
	if to != nil {
		d := models.DateOf(to.In(s.loc))
		hi = &d
	}
	scores, err := s.store.Scores.ListRange(ctx, userID, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("list daily scores: %w", err)
	}
	views := make([]DailyScoreView, 0, len(scores))
	for _, sc := range scores {
		views = append(views, NewDailyScoreView(sc))
	}
	return views, nil
}

func (s *dailyScoreService) Details(ctx context.Context, userID uint, day time.Time) ([]TypeBreakdown, error) {
	types, err := s.store.EventTypes.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list event types: %w", err)
	}
	start, end := scoring.DayWindow(day.In(s.loc), s.loc)
	events, err := s.store.Events.ListCompletedBetween(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("load completed events: %w", err)
	}

	result := make([]TypeBreakdown, 0, len(types)+1)
	index := make(map[string]int, len(types))
	for _, t := range types {
		index[t.ID] = len(result)
		result = append(result, newBreakdown(t.ID, t.Name, t.Color))
	}

	for _, e := range events {
		if e.Efficiency == nil {
			continue
		}
		eff, ok := scoring.ParseEfficiency(*e.Efficiency)
		if !ok {
			continue
		}
		key := defaultTypeKey
		if e.CustomTypeID != nil {
			if _, known := index[*e.CustomTypeID]; known {
				key = *e.CustomTypeID
			}
		}
		pos, ok := index[key]
		if !ok {
			// Untyped events (or ones whose type was removed) share one
			// bucket named after the first such event's category.
			name := e.Category
			if name == "" {
				name = defaultTypeKey
			}
			pos = len(result)
			index[key] = pos
			result = append(result, newBreakdown(key, name, defaultTypeColor))
		}
		detail := result[pos].Details[string(eff)]
		detail.Units += scoring.HalfHourUnits(e)
		detail.Score += scoring.EventScore(e)
	}
	return result, nil
}

func newBreakdown(id, name, color string) TypeBreakdown {
	return TypeBreakdown{
		TypeID:    id,
		TypeName:  name,
		TypeColor: color,
		Details: map[string]*EfficiencyDetail{
			string(models.EfficiencyHigh):   {},
			string(models.EfficiencyMedium): {},
			string(models.EfficiencyLow):    {},
		},
	}
}

func NewDailyScoreView(sc models.DailyScore) DailyScoreView {
	return DailyScoreView{
		ID:         sc.ID,
		Date:       time.Time(sc.Date).Format(dateLayout),
		TotalScore: sc.TotalScore,
	}
}
