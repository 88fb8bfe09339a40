package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	database string
}

// NewHealthHandler takes the backing-store label reported by /health,
// "sqlite" or "memory".
func NewHealthHandler(database string) *HealthHandler {
	return &HealthHandler{database: database}
}

func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"service":   "printrelay",
		"database":  h.database,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
}
