package scoring

import (
	"time"

	"github.com/google/uuid"

	"score_tracker/internal/models"
)

// OpenEndedDays bounds a recurrence without an end date.
const OpenEndedDays = 365

// EventTemplate holds the fields copied onto every generated instance.
type EventTemplate struct {
	UserID       uint
	Title        string
	Start        time.Time
	End          time.Time
	AllDay       bool
	Category     string
	Time         string
	Urgency      string
	Remark       *string
	CustomTypeID *string
}

// ParseRepeatType reports whether raw names a supported recurrence rule.
func ParseRepeatType(raw string) (models.RepeatType, bool) {
	switch rt := models.RepeatType(raw); rt {
	case models.RepeatDaily, models.RepeatWeekday, models.RepeatWeekend, models.RepeatWorkday, models.RepeatHoliday:
		return rt, true
	}
	return "", false
}

// Matches reports whether day satisfies rule.
//
// workday and holiday are approximated as weekday and weekend: there is no
// public-holiday calendar behind them.
func Matches(rule models.RepeatType, day time.Time) bool {
	weekend := day.Weekday() == time.Saturday || day.Weekday() == time.Sunday
	switch rule {
	case models.RepeatDaily:
		return true
	case models.RepeatWeekday, models.RepeatWorkday:
		return !weekend
	case models.RepeatWeekend, models.RepeatHoliday:
		return weekend
	}
	return false
}

// ExpandRecurrence generates one event per calendar day from base.Start's
// date through endDate (inclusive) that matches rule. A nil endDate resolves
// to the start date plus OpenEndedDays. Every instance keeps the base
// time-of-day and duration and shares groupID; an empty groupID gets a fresh
// one. The result may be empty.
func ExpandRecurrence(base EventTemplate, rule models.RepeatType, endDate *time.Time, groupID string) []models.Event {
	if groupID == "" {
		groupID = uuid.NewString()
	}

	firstDay := StartOfDay(base.Start)
	var lastDay time.Time
	if endDate == nil {
		lastDay = firstDay.AddDate(0, 0, OpenEndedDays)
	} else {
		lastDay = time.Date(endDate.Year(), endDate.Month(), endDate.Day(), 0, 0, 0, 0, base.Start.Location())
	}

	duration := base.End.Sub(base.Start)
	repeatEnd := models.DateOf(lastDay)
	ruleName := string(rule)

	var events []models.Event
	for day := firstDay; !day.After(lastDay); day = day.AddDate(0, 0, 1) {
		if !Matches(rule, day) {
			continue
		}
		start := time.Date(day.Year(), day.Month(), day.Day(),
			base.Start.Hour(), base.Start.Minute(), base.Start.Second(), base.Start.Nanosecond(), base.Start.Location())
		group := groupID
		rt := ruleName
		end := repeatEnd
		events = append(events, models.Event{
			UserID:        base.UserID,
			Title:         base.Title,
			Start:         start,
			End:           start.Add(duration),
			AllDay:        base.AllDay,
			Category:      base.Category,
			Time:          base.Time,
			Urgency:       base.Urgency,
			Remark:        base.Remark,
			CustomTypeID:  base.CustomTypeID,
			IsRepeat:      true,
			RepeatType:    &rt,
			RepeatEndDate: &end,
			RepeatGroupID: &group,
		})
	}
	return events
}
