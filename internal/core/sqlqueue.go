package core

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/platewise/printrelay/internal/db"
)

// SQLQueue is the sqlite-backed JobQueue.
type SQLQueue struct {
	db *sql.DB
}

func NewSQLQueue(database *sql.DB) *SQLQueue {
	return &SQLQueue{db: database}
}

func (q *SQLQueue) Enqueue(ctx context.Context, job *PrintJob) (string, error) {
	if err := prepareJob(job); err != nil {
		return "", err
	}

	itemsJSON, err := json.Marshal(job.Items)
	if err != nil {
		return "", fmt.Errorf("failed to serialize items: %w", err)
	}

	_, err = q.db.ExecContext(ctx, db.InsertJob,
		job.ID, job.OrderID, job.OrderNumber, job.RestaurantID, job.TargetPrinterID,
		string(itemsJSON), job.Priority, string(job.Status), job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert job: %w", err)
	}

	return job.ID, nil
}

func (q *SQLQueue) Claim(ctx context.Context, printerID, claimedBy string, max int) ([]PrintJob, error) {
	max = clampClaimBatch(max)

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin claim transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, db.ListPendingByPrinter, printerID, max)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending jobs: %w", err)
	}

	candidates, err := scanJobs(rows)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	claimed := make([]PrintJob, 0, len(candidates))
	for i := range candidates {
		res, err := tx.ExecContext(ctx, db.ClaimJob, claimedBy, now, now, candidates[i].ID)
		if err != nil {
			return nil, fmt.Errorf("failed to claim job %s: %w", candidates[i].ID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to read claim result: %w", err)
		}
		if affected == 0 {
			// lost the race to a concurrent claim, skip
			continue
		}
		j := candidates[i]
		j.Status = JobStatusClaimed
		j.ClaimedBy = claimedBy
		claimedAt := now
		j.ClaimedAt = &claimedAt
		j.UpdatedAt = now
		claimed = append(claimed, j)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}

	return claimed, nil
}

func (q *SQLQueue) UpdateStatus(ctx context.Context, jobID string, status JobStatus, errMsg string) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}

	res, err := q.db.ExecContext(ctx, db.FinishJob, string(status), errMsg, time.Now(), jobID)
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected > 0 {
		return nil
	}

	// nothing changed: either the job is already terminal (idempotent
	// success, the agent may be retrying its report) or it does not exist
	var existing string
	err = q.db.QueryRowContext(ctx, `SELECT status FROM print_jobs WHERE id = ?`, jobID).Scan(&existing)
	if err == sql.ErrNoRows {
		return ErrJobNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check job status: %w", err)
	}
	return nil
}

func (q *SQLQueue) GetJob(ctx context.Context, jobID string) (*PrintJob, error) {
	row := q.db.QueryRowContext(ctx, db.GetJobByID, jobID)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

func (q *SQLQueue) ListByPrinter(ctx context.Context, printerID string, status JobStatus, limit int) ([]PrintJob, error) {
	if limit <= 0 {
		limit = MaxClaimBatch
	}

	var rows *sql.Rows
	var err error
	if status == "" {
		rows, err = q.db.QueryContext(ctx, db.ListByPrinter, printerID, limit)
	} else {
		rows, err = q.db.QueryContext(ctx, db.ListByPrinterAndStatus, printerID, string(status), limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return scanJobs(rows)
}

func (q *SQLQueue) QueryByOrder(ctx context.Context, orderID string, status JobStatus) ([]PrintJob, error) {
	var rows *sql.Rows
	var err error
	if status == "" {
		rows, err = q.db.QueryContext(ctx, db.ListByOrder, orderID)
	} else {
		rows, err = q.db.QueryContext(ctx, db.ListByOrderAndStatus, orderID, string(status))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs by order: %w", err)
	}
	return scanJobs(rows)
}

func (q *SQLQueue) RecentTerminal(ctx context.Context, restaurantID string, window time.Duration) ([]PrintJob, error) {
	cutoff := time.Now().Add(-window)
	rows, err := q.db.QueryContext(ctx, db.ListRecentTerminal, restaurantID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent jobs: %w", err)
	}
	return scanJobs(rows)
}

func (q *SQLQueue) Stats(ctx context.Context, restaurantID string) (*QueueStats, error) {
	stats := &QueueStats{}

	rows, err := q.db.QueryContext(ctx, db.CountJobsByStatus, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan job count: %w", err)
		}
		stats.TotalJobs += count
		switch JobStatus(status) {
		case JobStatusCompleted:
			stats.CompletedJobs = count
		case JobStatusFailed:
			stats.FailedJobs = count
		case JobStatusPending, JobStatusClaimed:
			stats.PendingJobs += count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate job counts: %w", err)
	}

	if err := q.db.QueryRowContext(ctx, db.CountJobPrinters, restaurantID).Scan(&stats.Printers); err != nil {
		return nil, fmt.Errorf("failed to count printers: %w", err)
	}

	return stats, nil
}

func (q *SQLQueue) ReleaseExpired(ctx context.Context, lease time.Duration) (int, error) {
	now := time.Now()
	res, err := q.db.ExecContext(ctx, db.ReleaseExpiredClaims, now, now.Add(-lease))
	if err != nil {
		return 0, fmt.Errorf("failed to release expired claims: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read release result: %w", err)
	}
	return int(affected), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*PrintJob, error) {
	var job PrintJob
	var itemsJSON string
	var claimedAt sql.NullTime

	err := row.Scan(
		&job.ID, &job.OrderID, &job.OrderNumber, &job.RestaurantID, &job.TargetPrinterID,
		&itemsJSON, &job.Priority, &job.Status, &job.ErrorMessage, &job.ClaimedBy,
		&claimedAt, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if claimedAt.Valid {
		job.ClaimedAt = &claimedAt.Time
	}
	if err := json.Unmarshal([]byte(itemsJSON), &job.Items); err != nil {
		return nil, fmt.Errorf("failed to decode items for job %s: %w", job.ID, err)
	}
	return &job, nil
}

func scanJobs(rows *sql.Rows) ([]PrintJob, error) {
	defer rows.Close()

	var jobs []PrintJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}
