package core

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemQueue is the in-process JobQueue. State is volatile and resets on
// restart; the contract matches SQLQueue exactly.
type MemQueue struct {
	jobs map[string]*PrintJob
	mu   sync.Mutex
}

func NewMemQueue() *MemQueue {
	return &MemQueue{jobs: make(map[string]*PrintJob)}
}

func (q *MemQueue) Enqueue(ctx context.Context, job *PrintJob) (string, error) {
	if err := prepareJob(job); err != nil {
		return "", err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	cp := copyJob(job)
	q.jobs[job.ID] = cp
	return job.ID, nil
}

func (q *MemQueue) Claim(ctx context.Context, printerID, claimedBy string, max int) ([]PrintJob, error) {
	max = clampClaimBatch(max)

	q.mu.Lock()
	defer q.mu.Unlock()

	var pending []*PrintJob
	for _, j := range q.jobs {
		if j.TargetPrinterID == printerID && j.Status == JobStatusPending {
			pending = append(pending, j)
		}
	}
	sortClaimOrder(pending)

	if len(pending) > max {
		pending = pending[:max]
	}

	now := time.Now()
	out := make([]PrintJob, 0, len(pending))
	for _, j := range pending {
		j.Status = JobStatusClaimed
		j.ClaimedBy = claimedBy
		claimed := now
		j.ClaimedAt = &claimed
		j.UpdatedAt = now
		out = append(out, *copyJob(j))
	}
	return out, nil
}

func (q *MemQueue) UpdateStatus(ctx context.Context, jobID string, status JobStatus, errMsg string) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	j, ok := q.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	if j.Status.IsTerminal() {
		// first terminal transition wins; retried reports are no-ops
		return nil
	}

	j.Status = status
	j.ErrorMessage = errMsg
	j.UpdatedAt = time.Now()
	return nil
}

func (q *MemQueue) GetJob(ctx context.Context, jobID string) (*PrintJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	j, ok := q.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	return copyJob(j), nil
}

func (q *MemQueue) ListByPrinter(ctx context.Context, printerID string, status JobStatus, limit int) ([]PrintJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var matched []*PrintJob
	for _, j := range q.jobs {
		if j.TargetPrinterID == printerID && (status == "" || j.Status == status) {
			matched = append(matched, j)
		}
	}
	sortClaimOrder(matched)

	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}

	out := make([]PrintJob, 0, len(matched))
	for _, j := range matched {
		out = append(out, *copyJob(j))
	}
	return out, nil
}

func (q *MemQueue) QueryByOrder(ctx context.Context, orderID string, status JobStatus) ([]PrintJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []PrintJob
	for _, j := range q.jobs {
		if j.OrderID == orderID && (status == "" || j.Status == status) {
			out = append(out, *copyJob(j))
		}
	}
	sort.Slice(out, func(i, k int) bool {
		return out[i].CreatedAt.Before(out[k].CreatedAt)
	})
	return out, nil
}

func (q *MemQueue) RecentTerminal(ctx context.Context, restaurantID string, window time.Duration) ([]PrintJob, error) {
	cutoff := time.Now().Add(-window)

	q.mu.Lock()
	defer q.mu.Unlock()

	var out []PrintJob
	for _, j := range q.jobs {
		if j.RestaurantID == restaurantID && j.Status.IsTerminal() && j.UpdatedAt.After(cutoff) {
			out = append(out, *copyJob(j))
		}
	}
	sort.Slice(out, func(i, k int) bool {
		return out[i].UpdatedAt.After(out[k].UpdatedAt)
	})
	return out, nil
}

func (q *MemQueue) Stats(ctx context.Context, restaurantID string) (*QueueStats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats := &QueueStats{}
	printers := make(map[string]bool)
	for _, j := range q.jobs {
		if j.RestaurantID != restaurantID {
			continue
		}
		stats.TotalJobs++
		printers[j.TargetPrinterID] = true
		switch j.Status {
		case JobStatusCompleted:
			stats.CompletedJobs++
		case JobStatusFailed:
			stats.FailedJobs++
		case JobStatusPending, JobStatusClaimed:
			stats.PendingJobs++
		}
	}
	stats.Printers = len(printers)
	return stats, nil
}

func (q *MemQueue) ReleaseExpired(ctx context.Context, lease time.Duration) (int, error) {
	cutoff := time.Now().Add(-lease)

	q.mu.Lock()
	defer q.mu.Unlock()

	released := 0
	for _, j := range q.jobs {
		if j.Status == JobStatusClaimed && j.ClaimedAt != nil && j.ClaimedAt.Before(cutoff) {
			j.Status = JobStatusPending
			j.ClaimedBy = ""
			j.ClaimedAt = nil
			j.UpdatedAt = time.Now()
			released++
		}
	}
	return released, nil
}

func sortClaimOrder(jobs []*PrintJob) {
	sort.SliceStable(jobs, func(i, j int) bool {
		if jobs[i].Priority != jobs[j].Priority {
			return jobs[i].Priority < jobs[j].Priority
		}
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})
}

func copyJob(j *PrintJob) *PrintJob {
	cp := *j
	cp.Items = make([]OrderItemSnapshot, len(j.Items))
	copy(cp.Items, j.Items)
	if j.ClaimedAt != nil {
		t := *j.ClaimedAt
		cp.ClaimedAt = &t
	}
	return &cp
}
