package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"score_tracker/internal/models"
	"score_tracker/internal/repository"
	"score_tracker/internal/scoring"
)

const (
	defaultEventTitle    = "Untitled event"
	defaultEventCategory = "default"
	defaultEventUrgency  = "normal"

	// maxEchoedInstances caps how many generated instances a repeat create
	// returns in its response.
	maxEchoedInstances = 10
)

var timestampLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	dateLayout,
}

type CreateEventRequest struct {
	Title         string  `json:"title"`
	Start         string  `json:"start"`
	End           string  `json:"end"`
	AllDay        bool    `json:"all_day"`
	Category      string  `json:"category"`
	Time          string  `json:"time"`
	Urgency       string  `json:"urgency"`
	Remark        *string `json:"remark"`
	CustomTypeID  *string `json:"custom_type_id"`
	IsRepeat      bool    `json:"is_repeat"`
	RepeatType    string  `json:"repeat_type"`
	RepeatEndDate string  `json:"repeat_end_date"`
}

// UpdateEventRequest is a partial update: nil fields are left alone.
type UpdateEventRequest struct {
	Title        *string `json:"title"`
	Start        *string `json:"start"`
	End          *string `json:"end"`
	AllDay       *bool   `json:"all_day"`
	Category     *string `json:"category"`
	Time         *string `json:"time"`
	Urgency      *string `json:"urgency"`
	Remark       *string `json:"remark"`
	CustomTypeID *string `json:"custom_type_id"`
}

type CreateEventResult struct {
	Count  int            `json:"count"`
	Events []models.Event `json:"events"`
}

type EventService interface {
	List(ctx context.Context, userID uint, from, to *time.Time) ([]models.Event, error)
	Create(ctx context.Context, userID uint, req CreateEventRequest) (*CreateEventResult, error)
	Update(ctx context.Context, userID uint, id string, req UpdateEventRequest) (*models.Event, error)
	Delete(ctx context.Context, userID uint, id string, deleteAll bool) error
	Complete(ctx context.Context, userID uint, id string, efficiency string) (*models.Event, error)
	Uncomplete(ctx context.Context, userID uint, id string) (*models.Event, error)
}

type eventService struct {
	store  *repository.Store
	scores DailyScoreService
	stats  StatsService
	loc    *time.Location
	now    func() time.Time
}

func NewEventService(store *repository.Store, scores DailyScoreService, stats StatsService, loc *time.Location) EventService {
	if loc == nil {
		loc = time.UTC
	}
	return &eventService{store: store, scores: scores, stats: stats, loc: loc, now: time.Now}
}

// ParseTimestamp accepts RFC 3339 or a zone-less ISO-8601 date/time, the
// latter interpreted in loc.
func ParseTimestamp(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.In(loc), nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, invalid("invalid timestamp %q", raw)
}

func (s *eventService) List(ctx context.Context, userID uint, from, to *time.Time) ([]models.Event, error) {
	events, err := s.store.Events.List(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

func (s *eventService) Create(ctx context.Context, userID uint, req CreateEventRequest) (*CreateEventResult, error) {
	start := s.now().In(s.loc)
	if req.Start != "" {
		var err error
		if start, err = ParseTimestamp(req.Start, s.loc); err != nil {
			return nil, err
		}
	}
	end := start
	if req.End != "" {
		var err error
		if end, err = ParseTimestamp(req.End, s.loc); err != nil {
			return nil, err
		}
	}
	if end.Before(start) {
		return nil, invalid("event end is before its start")
	}

	var (
		rule     models.RepeatType
		repeatTo *time.Time
	)
	if req.IsRepeat {
		raw := req.RepeatType
		if raw == "" {
			raw = string(models.RepeatDaily)
		}
		var ok bool
		if rule, ok = scoring.ParseRepeatType(raw); !ok {
			return nil, invalid("invalid repeat type %q", raw)
		}
		if req.RepeatEndDate != "" {
			t, err := ParseTimestamp(req.RepeatEndDate, s.loc)
			if err != nil {
				return nil, err
			}
			repeatTo = &t
		}
	}

	base := scoring.EventTemplate{
		UserID:       userID,
		Title:        orDefault(req.Title, defaultEventTitle),
		Start:        start,
		End:          end,
		AllDay:       req.AllDay,
		Category:     orDefault(req.Category, defaultEventCategory),
		Time:         req.Time,
		Urgency:      orDefault(req.Urgency, defaultEventUrgency),
		Remark:       trimmedOrNil(req.Remark),
		CustomTypeID: trimmedOrNil(req.CustomTypeID),
	}

	result := &CreateEventResult{}
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := checkEventType(ctx, tx, userID, base.CustomTypeID); err != nil {
			return err
		}
		if !req.IsRepeat {
			event := models.Event{
				UserID:       base.UserID,
				Title:        base.Title,
				Start:        base.Start,
				End:          base.End,
				AllDay:       base.AllDay,
				Category:     base.Category,
				Time:         base.Time,
				Urgency:      base.Urgency,
				Remark:       base.Remark,
				CustomTypeID: base.CustomTypeID,
			}
			if err := tx.Events.Create(ctx, &event); err != nil {
				return err
			}
			result.Count = 1
			result.Events = []models.Event{event}
			return nil
		}

		instances := scoring.ExpandRecurrence(base, rule, repeatTo, "")
		if err := tx.Events.CreateBatch(ctx, instances); err != nil {
			return err
		}
		result.Count = len(instances)
		if len(instances) > maxEchoedInstances {
			instances = instances[:maxEchoedInstances]
		}
		result.Events = instances
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.Events == nil {
		result.Events = []models.Event{}
	}
	s.stats.Invalidate(ctx, userID)
	return result, nil
}

func (s *eventService) Update(ctx context.Context, userID uint, id string, req UpdateEventRequest) (*models.Event, error) {
	var event *models.Event
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		event, err = tx.Events.GetByIDForUpdate(ctx, userID, id)
		if err != nil {
			return notFound("event", err)
		}
		previousStart := event.Start

		if req.Title != nil {
			event.Title = *req.Title
		}
		if req.Start != nil {
			if event.Start, err = ParseTimestamp(*req.Start, s.loc); err != nil {
				return err
			}
		}
		if req.End != nil {
			if event.End, err = ParseTimestamp(*req.End, s.loc); err != nil {
				return err
			}
		}
		if event.End.Before(event.Start) {
			return invalid("event end is before its start")
		}
		if req.AllDay != nil {
			event.AllDay = *req.AllDay
			if event.AllDay {
				event.Time = ""
			}
		}
		if req.Category != nil {
			event.Category = *req.Category
		}
		if req.Time != nil {
			event.Time = *req.Time
		}
		if req.Urgency != nil {
			event.Urgency = *req.Urgency
		}
		if req.Remark != nil {
			event.Remark = trimmedOrNil(req.Remark)
		}
		if req.CustomTypeID != nil {
			event.CustomTypeID = trimmedOrNil(req.CustomTypeID)
			if err := checkEventType(ctx, tx, userID, event.CustomTypeID); err != nil {
				return err
			}
		}
		if err := tx.Events.Update(ctx, event); err != nil {
			return err
		}

		if !event.IsCompleted {
			return nil
		}
		if !s.sameDay(previousStart, event.Start) {
			if _, err := s.scores.RecomputeTx(ctx, tx, userID, previousStart); err != nil {
				return err
			}
		}
		_, err = s.scores.RecomputeTx(ctx, tx, userID, event.Start)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.stats.Invalidate(ctx, userID)
	return event, nil
}

func (s *eventService) Delete(ctx context.Context, userID uint, id string, deleteAll bool) error {
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		event, err := tx.Events.GetByIDForUpdate(ctx, userID, id)
		if err != nil {
			return notFound("event", err)
		}
		victims := []models.Event{*event}
		if deleteAll && event.IsRepeat && event.RepeatGroupID != nil {
			if victims, err = tx.Events.ListByGroup(ctx, userID, *event.RepeatGroupID); err != nil {
				return fmt.Errorf("load repeat group: %w", err)
			}
		}

		ids := make([]string, 0, len(victims))
		affected := make(map[string]time.Time)
		for _, v := range victims {
			ids = append(ids, v.ID)
			if v.IsCompleted {
				local := v.Start.In(s.loc)
				affected[local.Format(dateLayout)] = local
			}
		}
		if err := tx.Events.Delete(ctx, userID, ids); err != nil {
			return err
		}

		days := make([]time.Time, 0, len(affected))
		for _, d := range affected {
			days = append(days, d)
		}
		sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
		for _, d := range days {
			if _, err := s.scores.RecomputeTx(ctx, tx, userID, d); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.stats.Invalidate(ctx, userID)
	return nil
}

func (s *eventService) Complete(ctx context.Context, userID uint, id string, efficiency string) (*models.Event, error) {
	eff, ok := scoring.ParseEfficiency(efficiency)
	if !ok {
		return nil, invalid("efficiency must be high, medium or low")
	}
	var event *models.Event
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		event, err = tx.Events.GetByIDForUpdate(ctx, userID, id)
		if err != nil {
			return notFound("event", err)
		}
		rating := string(eff)
		event.IsCompleted = true
		event.Efficiency = &rating
		if err := tx.Events.Update(ctx, event); err != nil {
			return err
		}
		_, err = s.scores.RecomputeTx(ctx, tx, userID, event.Start)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.stats.Invalidate(ctx, userID)
	return event, nil
}

func (s *eventService) Uncomplete(ctx context.Context, userID uint, id string) (*models.Event, error) {
	var (
		event   *models.Event
		changed bool
	)
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		event, err = tx.Events.GetByIDForUpdate(ctx, userID, id)
		if err != nil {
			return notFound("event", err)
		}
		if !event.IsCompleted {
			return nil
		}
		changed = true
		event.IsCompleted = false
		event.Efficiency = nil
		if err := tx.Events.Update(ctx, event); err != nil {
			return err
		}
		_, err = s.scores.RecomputeTx(ctx, tx, userID, event.Start)
		return err
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.stats.Invalidate(ctx, userID)
	}
	return event, nil
}

func (s *eventService) sameDay(a, b time.Time) bool {
	return a.In(s.loc).Format(dateLayout) == b.In(s.loc).Format(dateLayout)
}

func checkEventType(ctx context.Context, tx *repository.Store, userID uint, typeID *string) error {
	if typeID == nil {
		return nil
	}
	_, err := tx.EventTypes.GetByID(ctx, userID, *typeID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return invalid("unknown event type %s", *typeID)
	}
	if err != nil {
		return fmt.Errorf("load event type: %w", err)
	}
	return nil
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
