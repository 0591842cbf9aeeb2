package scoring

import (
	"time"

	"score_tracker/internal/models"
)

// HalfHour is the duration unit efficiency weights are applied to.
const HalfHour = 30 * time.Minute

var efficiencyWeights = map[models.Efficiency]float64{
	models.EfficiencyHigh:   2,
	models.EfficiencyMedium: 1,
	models.EfficiencyLow:    -1,
}

// ParseEfficiency reports whether raw names a known efficiency rating.
func ParseEfficiency(raw string) (models.Efficiency, bool) {
	eff := models.Efficiency(raw)
	_, ok := efficiencyWeights[eff]
	return eff, ok
}

// HalfHourUnits returns the event duration in (fractional) half-hour units.
func HalfHourUnits(e models.Event) float64 {
	return e.End.Sub(e.Start).Minutes() / HalfHour.Minutes()
}

// EventScore returns the points a single event contributes to its day.
// Incomplete or unrated events score 0. The product is truncated toward zero
// per event, so totals differ from rounding the daily sum.
func EventScore(e models.Event) int {
	if !e.IsCompleted || e.Efficiency == nil {
		return 0
	}
	weight, ok := efficiencyWeights[models.Efficiency(*e.Efficiency)]
	if !ok {
		return 0
	}
	return int(HalfHourUnits(e) * weight)
}

// TotalScore sums EventScore over events.
func TotalScore(events []models.Event) int {
	total := 0
	for _, e := range events {
		total += EventScore(e)
	}
	return total
}

// StartOfDay returns 00:00:00 of t's day in t's location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DayWindow returns the half-open interval [day 00:00, next day 00:00) in loc.
func DayWindow(day time.Time, loc *time.Location) (time.Time, time.Time) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}
