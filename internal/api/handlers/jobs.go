package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/platewise/printrelay/internal/core"
)

// Notifier receives job status transitions for webhook fan-out.
type Notifier interface {
	JobStatusChanged(job *core.PrintJob)
}

type CreateJobRequest struct {
	OrderID         string                   `json:"orderId" binding:"required"`
	OrderNumber     string                   `json:"orderNumber"`
	RestaurantID    string                   `json:"restaurantId" binding:"required"`
	TargetPrinterID string                   `json:"targetPrinterId" binding:"required"`
	Items           []core.OrderItemSnapshot `json:"items" binding:"required,min=1"`
	Priority        int                      `json:"priority"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Error  string `json:"error"`
}

type JobHandler struct {
	queue        core.JobQueue
	notifier     Notifier
	statusWindow time.Duration
	maxClaim     int
}

func NewJobHandler(queue core.JobQueue, notifier Notifier, statusWindow time.Duration, maxClaim int) *JobHandler {
	if statusWindow <= 0 {
		statusWindow = 5 * time.Minute
	}
	if maxClaim <= 0 {
		maxClaim = core.MaxClaimBatch
	}
	return &JobHandler{
		queue:        queue,
		notifier:     notifier,
		statusWindow: statusWindow,
		maxClaim:     maxClaim,
	}
}

func (h *JobHandler) CreateJob(c *gin.Context) {
	var req CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Missing required fields")
		return
	}

	job := &core.PrintJob{
		OrderID:         req.OrderID,
		OrderNumber:     req.OrderNumber,
		RestaurantID:    req.RestaurantID,
		TargetPrinterID: req.TargetPrinterID,
		Items:           req.Items,
		Priority:        req.Priority,
	}

	jobID, err := h.queue.Enqueue(c.Request.Context(), job)
	if err != nil {
		if errors.Is(err, core.ErrInvalidJob) {
			fail(c, http.StatusBadRequest, "Missing required fields")
			return
		}
		fail(c, http.StatusInternalServerError, "Failed to enqueue job")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"jobId":    jobID,
		"printJob": job,
	})
}

// PrinterJobs hands the next batch of jobs to a bridge agent. A request for
// status=pending performs an atomic claim under a lease; other status values
// are read-only listings.
func (h *JobHandler) PrinterJobs(c *gin.Context) {
	printerID := c.Param("printerId")
	status := c.DefaultQuery("status", string(core.JobStatusPending))

	if !core.JobStatus(status).Valid() {
		fail(c, http.StatusBadRequest, "Unknown status value")
		return
	}

	var jobs []core.PrintJob
	var err error
	if core.JobStatus(status) == core.JobStatusPending {
		jobs, err = h.queue.Claim(c.Request.Context(), printerID, c.ClientIP(), h.maxClaim)
	} else {
		jobs, err = h.queue.ListByPrinter(c.Request.Context(), printerID, core.JobStatus(status), h.maxClaim)
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to fetch jobs")
		return
	}

	if jobs == nil {
		jobs = []core.PrintJob{}
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"jobs":    jobs,
		"count":   len(jobs),
	})
}

func (h *JobHandler) GetJob(c *gin.Context) {
	job, err := h.queue.GetJob(c.Request.Context(), c.Param("jobId"))
	if err != nil {
		if errors.Is(err, core.ErrJobNotFound) {
			fail(c, http.StatusNotFound, "Job not found")
			return
		}
		fail(c, http.StatusInternalServerError, "Failed to get job")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "printJob": job})
}

func (h *JobHandler) UpdateStatus(c *gin.Context) {
	jobID := c.Param("jobId")

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Status is required")
		return
	}

	status := core.JobStatus(req.Status)
	if !status.Valid() {
		fail(c, http.StatusBadRequest, "Unknown status value")
		return
	}

	err := h.queue.UpdateStatus(c.Request.Context(), jobID, status, req.Error)
	if err != nil {
		if errors.Is(err, core.ErrJobNotFound) {
			fail(c, http.StatusNotFound, "Job not found")
			return
		}
		if errors.Is(err, core.ErrInvalidStatus) {
			fail(c, http.StatusBadRequest, "Unknown status value")
			return
		}
		fail(c, http.StatusInternalServerError, "Failed to update status")
		return
	}

	if h.notifier != nil {
		if job, err := h.queue.GetJob(c.Request.Context(), jobID); err == nil && job.Status.IsTerminal() {
			h.notifier.JobStatusChanged(job)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"jobId":   jobID,
		"status":  req.Status,
	})
}

// OrderJobs lists every print job fanned out from one order, optionally
// filtered by status. The POS uses it to show per-station progress.
func (h *JobHandler) OrderJobs(c *gin.Context) {
	status := core.JobStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		fail(c, http.StatusBadRequest, "Unknown status value")
		return
	}

	jobs, err := h.queue.QueryByOrder(c.Request.Context(), c.Param("orderId"), status)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to query order jobs")
		return
	}

	if jobs == nil {
		jobs = []core.PrintJob{}
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"jobs":    jobs,
		"count":   len(jobs),
	})
}

// RestaurantStatus reports terminal jobs from the last few minutes, split
// into confirmations and failures for the POS status banner.
func (h *JobHandler) RestaurantStatus(c *gin.Context) {
	restaurantID := c.Query("restaurantId")
	if restaurantID == "" {
		fail(c, http.StatusBadRequest, "restaurantId is required")
		return
	}

	jobs, err := h.queue.RecentTerminal(c.Request.Context(), restaurantID, h.statusWindow)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to query status")
		return
	}

	confirmations := make([]core.PrintJob, 0)
	failed := make([]core.PrintJob, 0)
	for _, j := range jobs {
		switch j.Status {
		case core.JobStatusCompleted:
			confirmations = append(confirmations, j)
		case core.JobStatusFailed:
			failed = append(failed, j)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success":            true,
		"orderConfirmations": confirmations,
		"failedOrders":       failed,
	})
}

func (h *JobHandler) RestaurantStats(c *gin.Context) {
	stats, err := h.queue.Stats(c.Request.Context(), c.Param("restaurantId"))
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to compute stats")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "stats": stats})
}

func (h *JobHandler) RegisterRoutes(r *gin.Engine) {
	r.POST("/print-jobs", h.CreateJob)
	r.GET("/print-jobs/:jobId", h.GetJob)
	r.PUT("/print-jobs/:jobId/status", h.UpdateStatus)
	r.GET("/printers/:printerId/jobs", h.PrinterJobs)
	r.GET("/orders/:orderId/jobs", h.OrderJobs)
	r.GET("/status", h.RestaurantStatus)
	r.GET("/restaurants/:restaurantId/stats", h.RestaurantStats)
}

func fail(c *gin.Context, code int, msg string) {
	c.JSON(code, gin.H{"success": false, "error": msg})
}
