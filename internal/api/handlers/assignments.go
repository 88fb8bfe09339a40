package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/platewise/printrelay/internal/core"
)

type CreateAssignmentRequest struct {
	RestaurantID string `json:"restaurantId" binding:"required"`
	PrinterID    string `json:"printerId" binding:"required"`
	Type         string `json:"assignmentType" binding:"required"`
	TargetID     string `json:"targetId" binding:"required"`
	Priority     int    `json:"priority"`
}

type UpdateAssignmentRequest struct {
	PrinterID string `json:"printerId" binding:"required"`
	Type      string `json:"assignmentType" binding:"required"`
	TargetID  string `json:"targetId" binding:"required"`
	Priority  int    `json:"priority"`
	IsActive  *bool  `json:"isActive"`
}

type SetDefaultPrinterRequest struct {
	PrinterID string `json:"printerId"`
}

// AssignmentHandler exposes the admin routing-rule CRUD. All routes sit
// behind the JWT middleware.
type AssignmentHandler struct {
	store *core.AssignmentStore
}

func NewAssignmentHandler(store *core.AssignmentStore) *AssignmentHandler {
	return &AssignmentHandler{store: store}
}

func (h *AssignmentHandler) List(c *gin.Context) {
	restaurantID := c.Query("restaurantId")
	if restaurantID == "" {
		fail(c, http.StatusBadRequest, "restaurantId is required")
		return
	}

	list := h.store.List(restaurantID)
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"assignments": list,
		"count":       len(list),
	})
}

func (h *AssignmentHandler) Create(c *gin.Context) {
	var req CreateAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "restaurantId, printerId, assignmentType and targetId are required")
		return
	}

	a := &core.PrinterAssignment{
		RestaurantID: req.RestaurantID,
		PrinterID:    req.PrinterID,
		Type:         core.AssignmentType(req.Type),
		TargetID:     req.TargetID,
		Priority:     req.Priority,
	}
	if err := h.store.Create(c.Request.Context(), a); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "assignment": a})
}

func (h *AssignmentHandler) Update(c *gin.Context) {
	var req UpdateAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "printerId, assignmentType and targetId are required")
		return
	}

	a := &core.PrinterAssignment{
		ID:        c.Param("id"),
		PrinterID: req.PrinterID,
		Type:      core.AssignmentType(req.Type),
		TargetID:  req.TargetID,
		Priority:  req.Priority,
		IsActive:  true,
	}
	if req.IsActive != nil {
		a.IsActive = *req.IsActive
	}
	if err := h.store.Update(c.Request.Context(), a); err != nil {
		fail(c, http.StatusNotFound, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "assignment": a})
}

func (h *AssignmentHandler) Deactivate(c *gin.Context) {
	if err := h.store.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, http.StatusNotFound, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *AssignmentHandler) SetDefaultPrinter(c *gin.Context) {
	var req SetDefaultPrinterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	h.store.SetDefaultPrinter(c.Param("restaurantId"), req.PrinterID)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *AssignmentHandler) RegisterRoutes(g *gin.RouterGroup) {
	g.GET("/assignments", h.List)
	g.POST("/assignments", h.Create)
	g.PUT("/assignments/:id", h.Update)
	g.DELETE("/assignments/:id", h.Deactivate)
	g.PUT("/restaurants/:restaurantId/default-printer", h.SetDefaultPrinter)
}
