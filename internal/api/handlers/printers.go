package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/platewise/printrelay/internal/core"
	"github.com/platewise/printrelay/internal/printers"
)

type RegisterPrinterRequest struct {
	PrinterID    string `json:"printerId" binding:"required"`
	Name         string `json:"name" binding:"required"`
	Address      string `json:"address" binding:"required"`
	Port         int    `json:"port"`
	Type         string `json:"type"`
	Mode         string `json:"connectivityMode"`
	RestaurantID string `json:"restaurantId" binding:"required"`
}

type PrinterHandler struct {
	registry *printers.Registry
}

func NewPrinterHandler(registry *printers.Registry) *PrinterHandler {
	return &PrinterHandler{registry: registry}
}

func (h *PrinterHandler) Register(c *gin.Context) {
	var req RegisterPrinterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "printerId, name, address and restaurantId are required")
		return
	}

	p := &core.PrinterDescriptor{
		ID:           req.PrinterID,
		RestaurantID: req.RestaurantID,
		Name:         req.Name,
		Mode:         core.ConnectivityMode(req.Mode),
		Address:      req.Address,
		Port:         req.Port,
		Type:         req.Type,
	}
	if err := h.registry.Register(c.Request.Context(), p); err != nil {
		fail(c, http.StatusInternalServerError, "Failed to register printer")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "printer": p})
}

func (h *PrinterHandler) List(c *gin.Context) {
	restaurantID := c.Query("restaurantId")
	if restaurantID == "" {
		fail(c, http.StatusBadRequest, "restaurantId is required")
		return
	}

	list := h.registry.ListByRestaurant(restaurantID)
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"printers": list,
		"count":    len(list),
	})
}

func (h *PrinterHandler) RegisterRoutes(r *gin.Engine) {
	r.POST("/printers/register", h.Register)
	r.GET("/printers", h.List)
}
