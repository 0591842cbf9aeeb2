package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"score_tracker/internal/services"
)

type APIHandler struct {
	eventService      services.EventService
	dailyScoreService services.DailyScoreService
	statsService      services.StatsService
	eventTypeService  services.EventTypeService
	loc               *time.Location
}

func NewAPIHandler(
	eventService services.EventService,
	dailyScoreService services.DailyScoreService,
	statsService services.StatsService,
	eventTypeService services.EventTypeService,
	loc *time.Location,
) *APIHandler {
	return &APIHandler{
		eventService:      eventService,
		dailyScoreService: dailyScoreService,
		statsService:      statsService,
		eventTypeService:  eventTypeService,
		loc:               loc,
	}
}

// optionalTime parses an optional query parameter; ok is false after an
// error response has been written.
func (h *APIHandler) optionalTime(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	t, err := services.ParseTimestamp(raw, h.loc)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return &t, true
}

func (h *APIHandler) requiredDate(c *gin.Context) (time.Time, bool) {
	t, ok := h.optionalTime(c, "date")
	if !ok {
		return time.Time{}, false
	}
	if t == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date is required"})
		return time.Time{}, false
	}
	return *t, true
}

func optionalInt(c *gin.Context, name string) (*int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be an integer"})
		return nil, false
	}
	return &v, true
}

// Events

func (h *APIHandler) ListEvents(c *gin.Context) {
	from, ok := h.optionalTime(c, "from")
	if !ok {
		return
	}
	to, ok := h.optionalTime(c, "to")
	if !ok {
		return
	}
	events, err := h.eventService.List(c.Request.Context(), currentUserID(c), from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (h *APIHandler) CreateEvent(c *gin.Context) {
	var req services.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	result, err := h.eventService.Create(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *APIHandler) UpdateEvent(c *gin.Context) {
	var req services.UpdateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	event, err := h.eventService.Update(c.Request.Context(), currentUserID(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, event)
}

func (h *APIHandler) DeleteEvent(c *gin.Context) {
	deleteAll := c.Query("deleteAll") == "true"
	if err := h.eventService.Delete(c.Request.Context(), currentUserID(c), c.Param("id"), deleteAll); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *APIHandler) CompleteEvent(c *gin.Context) {
	var req struct {
		Efficiency string `json:"efficiency"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	event, err := h.eventService.Complete(c.Request.Context(), currentUserID(c), c.Param("id"), req.Efficiency)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, event)
}

func (h *APIHandler) UncompleteEvent(c *gin.Context) {
	event, err := h.eventService.Uncomplete(c.Request.Context(), currentUserID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, event)
}

// Daily scores

func (h *APIHandler) ListDailyScores(c *gin.Context) {
	from, ok := h.optionalTime(c, "start_date")
	if !ok {
		return
	}
	to, ok := h.optionalTime(c, "end_date")
	if !ok {
		return
	}
	scores, err := h.dailyScoreService.ListRange(c.Request.Context(), currentUserID(c), from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"daily_scores": scores})
}

func (h *APIHandler) RecomputeDailyScore(c *gin.Context) {
	day, ok := h.requiredDate(c)
	if !ok {
		return
	}
	userID := currentUserID(c)
	score, err := h.dailyScoreService.Recompute(c.Request.Context(), userID, day)
	if err != nil {
		respondError(c, err)
		return
	}
	h.statsService.Invalidate(c.Request.Context(), userID)
	c.JSON(http.StatusOK, gin.H{"daily_score": services.NewDailyScoreView(*score)})
}

func (h *APIHandler) DailyScoreDetails(c *gin.Context) {
	day, ok := h.requiredDate(c)
	if !ok {
		return
	}
	details, err := h.dailyScoreService.Details(c.Request.Context(), currentUserID(c), day)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"details": details})
}

// Stats

func (h *APIHandler) GetStats(c *gin.Context) {
	year, ok := optionalInt(c, "year")
	if !ok {
		return
	}
	month, ok := optionalInt(c, "month")
	if !ok {
		return
	}
	stats, err := h.statsService.Get(c.Request.Context(), currentUserID(c), year, month)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Event types

func (h *APIHandler) ListEventTypes(c *gin.Context) {
	types, err := h.eventTypeService.List(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"event_types": types})
}

func (h *APIHandler) CreateEventType(c *gin.Context) {
	var req services.EventTypeInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	eventType, err := h.eventTypeService.Create(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, eventType)
}

func (h *APIHandler) UpdateEventType(c *gin.Context) {
	var req services.EventTypeInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	eventType, err := h.eventTypeService.Update(c.Request.Context(), currentUserID(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, eventType)
}

func (h *APIHandler) DeleteEventType(c *gin.Context) {
	if err := h.eventTypeService.Delete(c.Request.Context(), currentUserID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
