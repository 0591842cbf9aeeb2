package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"strconv"
	"time"

	"gorm.io/datatypes"

	"score_tracker/internal/models"
	"score_tracker/internal/repository"
)

// recordableHoursPerDay is the waking-hours denominator of the record rate.
const recordableHoursPerDay = 17

// StatsCache stores serialized Stats per user and period.
type StatsCache interface {
	Get(ctx context.Context, userID uint, period string) ([]byte, error)
	Set(ctx context.Context, userID uint, period string, payload []byte) error
	InvalidateUser(ctx context.Context, userID uint) error
}

// NoopStatsCache never holds anything. It is used when no redis is configured.
type NoopStatsCache struct{}

func (NoopStatsCache) Get(context.Context, uint, string) ([]byte, error) { return nil, nil }
func (NoopStatsCache) Set(context.Context, uint, string, []byte) error { return nil }
func (NoopStatsCache) InvalidateUser(context.Context, uint) error { return nil }

type EfficiencyCounts struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

type ScoreSummary struct {
	Total   int     `json:"total"`
	Average float64 `json:"average"`
}

type TypeCount struct {
	TypeName  string `json:"type_name"`
	TypeColor string `json:"type_color"`
	Count     int    `json:"count"`
}

type DayScore struct {
	Date  string `json:"date"`
	Day   int    `json:"day"`
	Score int    `json:"score"`
}

type Stats struct {
	Year             *int             `json:"year"`
	Month            *int             `json:"month"`
	TotalEvents      int              `json:"total_events"`
	CompletedEvents  int              `json:"completed_events"`
	PendingEvents    int              `json:"pending_events"`
	CompletionRate   float64          `json:"completion_rate"`
	RecordRate       float64          `json:"record_rate"`
	RecordedHours    float64          `json:"recorded_hours"`
	AvailableHours   int              `json:"available_hours"`
	Efficiency       EfficiencyCounts `json:"efficiency"`
	Score            ScoreSummary     `json:"score"`
	TypeDistribution []TypeCount      `json:"type_distribution"`
	DailyScores      []DayScore       `json:"daily_scores"`
}

type StatsService interface {
	// Get returns statistics for all time, a year, or a month of a year.
	// month is ignored without year.
	Get(ctx context.Context, userID uint, year, month *int) (*Stats, error)
	// Invalidate drops the user's cached statistics. Failures are logged.
	Invalidate(ctx context.Context, userID uint)
}

type statsService struct {
	store *repository.Store
	cache StatsCache
	loc   *time.Location
}

func NewStatsService(store *repository.Store, cache StatsCache, loc *time.Location) StatsService {
	if cache == nil {
		cache = NoopStatsCache{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &statsService{store: store, cache: cache, loc: loc}
}

func (s *statsService) Invalidate(ctx context.Context, userID uint) {
	if err := s.cache.InvalidateUser(ctx, userID); err != nil {
		log.Printf("Failed to invalidate stats cache for user %d: %v", userID, err)
	}
}

func (s *statsService) Get(ctx context.Context, userID uint, year, month *int) (*Stats, error) {
	if year == nil {
		month = nil
	}
	if year != nil && (*year < minPlanYear || *year > maxPlanYear) {
		return nil, invalid("year must be between %d and %d", minPlanYear, maxPlanYear)
	}
	if month != nil && (*month < 1 || *month > 12) {
		return nil, invalid("month must be between 1 and 12")
	}

	period := periodKey(year, month)
	if payload, err := s.cache.Get(ctx, userID, period); err != nil {
		log.Printf("Stats cache read failed for user %d: %v", userID, err)
	} else if payload != nil {
		var cached Stats
		if err := json.Unmarshal(payload, &cached); err == nil {
			return &cached, nil
		}
	}

	stats, err := s.compute(ctx, userID, year, month)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(stats); err == nil {
		if err := s.cache.Set(ctx, userID, period, payload); err != nil {
			log.Printf("Stats cache write failed for user %d: %v", userID, err)
		}
	}
	return stats, nil
}

func (s *statsService) compute(ctx context.Context, userID uint, year, month *int) (*Stats, error) {
	stats := &Stats{Year: year, Month: month, TypeDistribution: []TypeCount{}, DailyScores: []DayScore{}}

	var (
		events []models.Event
		scores []models.DailyScore
		days   int
		err    error
	)
	if year == nil {
		events, err = s.store.Events.List(ctx, userID, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("list events: %w", err)
		}
		scores, err = s.store.Scores.ListRange(ctx, userID, nil, nil)
	} else {
		var start, end time.Time
		if month != nil {
			start = time.Date(*year, time.Month(*month), 1, 0, 0, 0, 0, s.loc)
			end = start.AddDate(0, 1, 0)
		} else {
			start = time.Date(*year, time.January, 1, 0, 0, 0, 0, s.loc)
			end = start.AddDate(1, 0, 0)
		}
		days = int(end.Sub(start).Round(24*time.Hour).Hours() / 24)
		events, err = s.store.Events.ListBetween(ctx, userID, start, end)
		if err != nil {
			return nil, fmt.Errorf("list events: %w", err)
		}
		from := models.DateOf(start)
		to := datatypes.Date(time.Time(models.DateOf(end)).AddDate(0, 0, -1))
		scores, err = s.store.Scores.ListRange(ctx, userID, &from, &to)
	}
	if err != nil {
		return nil, fmt.Errorf("list daily scores: %w", err)
	}

	typeCounts := make(map[string]int)
	for _, e := range events {
		stats.TotalEvents++
		if e.IsCompleted {
			stats.CompletedEvents++
		}
		if e.Efficiency != nil {
			switch models.Efficiency(*e.Efficiency) {
			case models.EfficiencyHigh:
				stats.Efficiency.High++
			case models.EfficiencyMedium:
				stats.Efficiency.Medium++
			case models.EfficiencyLow:
				stats.Efficiency.Low++
			}
		}
		if e.CustomTypeID != nil {
			typeCounts[*e.CustomTypeID]++
		}
		if month != nil && !e.AllDay {
			stats.RecordedHours += e.End.Sub(e.Start).Hours()
		}
	}
	stats.PendingEvents = stats.TotalEvents - stats.CompletedEvents
	if stats.TotalEvents > 0 {
		stats.CompletionRate = round2(float64(stats.CompletedEvents) / float64(stats.TotalEvents) * 100)
	}

	if days > 0 {
		stats.AvailableHours = days * recordableHoursPerDay
	}
	if month != nil && stats.AvailableHours > 0 {
		stats.RecordRate = round2(stats.RecordedHours / float64(stats.AvailableHours) * 100)
	}
	stats.RecordedHours = round2(stats.RecordedHours)

	for _, sc := range scores {
		stats.Score.Total += sc.TotalScore
	}
	if len(scores) > 0 {
		stats.Score.Average = round2(float64(stats.Score.Total) / float64(len(scores)))
	}
	if month != nil {
		for _, sc := range scores {
			d := time.Time(sc.Date)
			stats.DailyScores = append(stats.DailyScores, DayScore{
				Date:  d.Format(dateLayout),
				Day:   d.Day(),
				Score: sc.TotalScore,
			})
		}
	}

	types, err := s.store.EventTypes.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list event types: %w", err)
	}
	for _, t := range types {
		if n := typeCounts[t.ID]; n > 0 {
			stats.TypeDistribution = append(stats.TypeDistribution, TypeCount{
				TypeName:  t.Name,
				TypeColor: t.Color,
				Count:     n,
			})
		}
	}
	return stats, nil
}

func periodKey(year, month *int) string {
	y, m := "all", "all"
	if year != nil {
		y = strconv.Itoa(*year)
	}
	if month != nil {
		m = strconv.Itoa(*month)
	}
	return y + ":" + m
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
