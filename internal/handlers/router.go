package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"score_tracker/internal/services"
)

// NewRouter wires every route. Everything under /api except auth
// registration and login requires a bearer token.
func NewRouter(userService services.UserService, auth *AuthHandler, api *APIHandler, plans *PlanHandler, timeout time.Duration) *gin.Engine {
	router := gin.Default()
	router.Use(RequestTimeout(timeout))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.POST("/api/auth/register", auth.Register)
	router.POST("/api/auth/login", auth.Login)

	protected := router.Group("/api", AuthRequired(userService))
	{
		protected.GET("/auth/me", auth.Me)

		protected.GET("/events", api.ListEvents)
		protected.POST("/events", api.CreateEvent)
		protected.PUT("/events/:id", api.UpdateEvent)
		protected.DELETE("/events/:id", api.DeleteEvent)
		protected.POST("/events/:id/complete", api.CompleteEvent)
		protected.DELETE("/events/:id/complete", api.UncompleteEvent)

		protected.GET("/daily-scores", api.ListDailyScores)
		protected.POST("/daily-scores/recompute", api.RecomputeDailyScore)
		protected.GET("/daily-score-details", api.DailyScoreDetails)
		protected.GET("/stats", api.GetStats)

		protected.GET("/event-types", api.ListEventTypes)
		protected.POST("/event-types", api.CreateEventType)
		protected.PUT("/event-types/:id", api.UpdateEventType)
		protected.DELETE("/event-types/:id", api.DeleteEventType)

		protected.GET("/plans", plans.ListPlans)
		protected.POST("/plans", plans.CreatePlan)
		protected.PUT("/plans/:plan_id", plans.UpdatePlan)
		protected.DELETE("/plans/:plan_id", plans.DeletePlan)
		protected.PATCH("/plans/:plan_id/goal-order", plans.ReorderGoals)
		protected.PATCH("/goals/:goal_id/status", plans.UpdateGoalStatus)
	}

	return router
}
