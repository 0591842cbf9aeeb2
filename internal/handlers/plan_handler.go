package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"score_tracker/internal/services"
)

type PlanHandler struct {
	planService services.PlanService
}

func NewPlanHandler(planService services.PlanService) *PlanHandler {
	return &PlanHandler{planService: planService}
}

func (h *PlanHandler) ListPlans(c *gin.Context) {
	list, err := h.planService.List(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *PlanHandler) CreatePlan(c *gin.Context) {
	var req services.CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	result, err := h.planService.Create(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *PlanHandler) UpdatePlan(c *gin.Context) {
	var req services.UpdatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	result, err := h.planService.Update(c.Request.Context(), currentUserID(c), c.Param("plan_id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *PlanHandler) DeletePlan(c *gin.Context) {
	remaining, err := h.planService.Delete(c.Request.Context(), currentUserID(c), c.Param("plan_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true, "remaining_score": remaining})
}

func (h *PlanHandler) ReorderGoals(c *gin.Context) {
	var req struct {
		GoalIDs []string `json:"goal_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	plan, err := h.planService.Reorder(c.Request.Context(), currentUserID(c), c.Param("plan_id"), req.GoalIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"plan": plan})
}

func (h *PlanHandler) UpdateGoalStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	goal, err := h.planService.UpdateGoalStatus(c.Request.Context(), currentUserID(c), c.Param("goal_id"), req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"goal": goal})
}
