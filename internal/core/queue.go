package core

import (
	"context"
	"time"
)

// MaxClaimBatch caps how many jobs a single claim can take.
const MaxClaimBatch = 10

// DefaultClaimLease is how long a claimed job stays reserved before an
// unreported claim is returned to pending.
const DefaultClaimLease = 2 * time.Minute

// JobQueue is the durable store decoupling job producers from bridge agents.
// The contract is identical for the sqlite and in-memory backings.
//
// Claim atomically moves pending jobs to claimed under a lease; a claim that
// is never reported back is released by ReleaseExpired. UpdateStatus on an
// already-terminal job is a no-op returning success, so bridge agents can
// safely retry status reports.
type JobQueue interface {
	Enqueue(ctx context.Context, job *PrintJob) (string, error)
	Claim(ctx context.Context, printerID, claimedBy string, max int) ([]PrintJob, error)
	UpdateStatus(ctx context.Context, jobID string, status JobStatus, errMsg string) error
	GetJob(ctx context.Context, jobID string) (*PrintJob, error)
	ListByPrinter(ctx context.Context, printerID string, status JobStatus, limit int) ([]PrintJob, error)
	QueryByOrder(ctx context.Context, orderID string, status JobStatus) ([]PrintJob, error)
	RecentTerminal(ctx context.Context, restaurantID string, window time.Duration) ([]PrintJob, error)
	Stats(ctx context.Context, restaurantID string) (*QueueStats, error)
	ReleaseExpired(ctx context.Context, lease time.Duration) (int, error)
}

// prepareJob validates and normalizes a job before insertion. Jobs with a
// missing target, order or item list are rejected outright, never queued.
func prepareJob(job *PrintJob) error {
	if job.TargetPrinterID == "" || job.OrderID == "" || job.RestaurantID == "" || len(job.Items) == 0 {
		return ErrInvalidJob
	}
	if job.ID == "" {
		job.ID = NewJobID()
	}
	if job.Priority == 0 {
		job.Priority = DefaultJobPriority
	}
	if job.Status == "" {
		job.Status = JobStatusPending
	}
	now := time.Now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	return nil
}

func clampClaimBatch(max int) int {
	if max <= 0 || max > MaxClaimBatch {
		return MaxClaimBatch
	}
	return max
}
