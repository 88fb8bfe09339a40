package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/platewise/printrelay/internal/core"
)

type DispatchHandler struct {
	dispatcher *core.Dispatcher
}

func NewDispatchHandler(dispatcher *core.Dispatcher) *DispatchHandler {
	return &DispatchHandler{dispatcher: dispatcher}
}

// Dispatch routes an order's items to their printers and delivers each batch
// either directly or via the durable queue. Unroutable items come back in the
// result body; they never fail the whole request.
func (h *DispatchHandler) Dispatch(c *gin.Context) {
	var order core.Order
	if err := c.ShouldBindJSON(&order); err != nil {
		fail(c, http.StatusBadRequest, "Invalid order payload")
		return
	}

	result, err := h.dispatcher.Dispatch(c.Request.Context(), &order)
	if err != nil {
		if errors.Is(err, core.ErrInvalidJob) {
			fail(c, http.StatusBadRequest, "orderId, restaurantId and items are required")
			return
		}
		fail(c, http.StatusInternalServerError, "Dispatch failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "result": result})
}

func (h *DispatchHandler) RegisterRoutes(r *gin.Engine) {
	r.POST("/orders/dispatch", h.Dispatch)
}
