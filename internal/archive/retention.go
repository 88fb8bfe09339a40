package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/platewise/printrelay/internal/core"
	"github.com/platewise/printrelay/internal/db"
)

// Retention archives terminal jobs older than the retention window to a JSON
// file, then deletes them. It runs once a day in the background; active and
// pending jobs are never touched.
type Retention struct {
	db          *sql.DB
	days        int
	archivePath string

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewRetention(database *sql.DB, days int, archivePath string) *Retention {
	return &Retention{
		db:          database,
		days:        days,
		archivePath: archivePath,
		stopCh:      make(chan struct{}),
	}
}

func (r *Retention) Start() {
	if r.db == nil || r.days <= 0 {
		return
	}
	r.wg.Add(1)
	go r.loop()
}

func (r *Retention) Stop() {
	close(r.stopCh)
	r.wg.Wait()
}

func (r *Retention) loop() {
	defer r.wg.Done()

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	if err := r.RunOnce(context.Background()); err != nil {
		log.Printf("[archive] run failed: %v", err)
	}
	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			if err := r.RunOnce(context.Background()); err != nil {
				log.Printf("[archive] run failed: %v", err)
			}
		}
	}
}

// RunOnce archives and deletes one batch of expired terminal jobs.
func (r *Retention) RunOnce(ctx context.Context) error {
	cutoff := time.Now().AddDate(0, 0, -r.days)

	rows, err := r.db.QueryContext(ctx, db.SelectTerminalBefore, cutoff)
	if err != nil {
		return fmt.Errorf("failed to select expired jobs: %w", err)
	}
	jobs, err := scanArchiveJobs(rows)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		return nil
	}

	if r.archivePath != "" {
		if err := r.writeArchive(jobs); err != nil {
			return err
		}
	}

	res, err := r.db.ExecContext(ctx, db.DeleteTerminalBefore, cutoff)
	if err != nil {
		return fmt.Errorf("failed to delete expired jobs: %w", err)
	}
	deleted, _ := res.RowsAffected()
	log.Printf("[archive] archived and removed %d jobs older than %d days", deleted, r.days)
	return nil
}

func (r *Retention) writeArchive(jobs []core.PrintJob) error {
	if err := os.MkdirAll(r.archivePath, 0o755); err != nil {
		return fmt.Errorf("failed to create archive dir: %w", err)
	}

	name := fmt.Sprintf("jobs-%s.json", time.Now().Format("2006-01-02T15-04-05"))
	path := filepath.Join(r.archivePath, name)

	data, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode archive: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write archive file: %w", err)
	}
	return nil
}

func scanArchiveJobs(rows *sql.Rows) ([]core.PrintJob, error) {
	defer rows.Close()

	var jobs []core.PrintJob
	for rows.Next() {
		var job core.PrintJob
		var itemsJSON string
		var claimedAt sql.NullTime
		err := rows.Scan(
			&job.ID, &job.OrderID, &job.OrderNumber, &job.RestaurantID, &job.TargetPrinterID,
			&itemsJSON, &job.Priority, &job.Status, &job.ErrorMessage, &job.ClaimedBy,
			&claimedAt, &job.CreatedAt, &job.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		if claimedAt.Valid {
			job.ClaimedAt = &claimedAt.Time
		}
		if err := json.Unmarshal([]byte(itemsJSON), &job.Items); err != nil {
			return nil, fmt.Errorf("failed to decode items for job %s: %w", job.ID, err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}
