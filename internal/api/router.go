package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/platewise/printrelay/internal/api/handlers"
	"github.com/platewise/printrelay/internal/api/middleware"
)

// Handlers bundles everything the router needs. Dispatch and Assignments may
// be nil when the corresponding feature is not wired (e.g. the bridge-facing
// relay without an admin surface).
type Handlers struct {
	Health      *handlers.HealthHandler
	Jobs        *handlers.JobHandler
	Printers    *handlers.PrinterHandler
	Dispatch    *handlers.DispatchHandler
	Assignments *handlers.AssignmentHandler
	Auth        *middleware.Auth
}

// NewRouter assembles the gin engine with panic recovery and JSON error
// responses for unknown routes.
func NewRouter(h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.CustomRecovery(func(c *gin.Context, err any) {
		log.Printf("[api] panic recovered: %v", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Internal server error",
		})
	}))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Not found"})
	})

	h.Health.RegisterRoutes(r)
	h.Jobs.RegisterRoutes(r)
	h.Printers.RegisterRoutes(r)
	if h.Dispatch != nil {
		h.Dispatch.RegisterRoutes(r)
	}

	if h.Auth != nil && h.Auth.Enabled() {
		r.POST("/auth/login", h.Auth.Login)
		if h.Assignments != nil {
			admin := r.Group("/admin", h.Auth.RequireAuth())
			h.Assignments.RegisterRoutes(admin)
		}
	}

	return r
}
