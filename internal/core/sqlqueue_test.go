package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/platewise/printrelay/internal/db"
)

func newTestSQLQueue(t *testing.T) *SQLQueue {
	t.Helper()
	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewSQLQueue(database)
}

func TestSQLQueueRoundTrip(t *testing.T) {
	q := newTestSQLQueue(t)
	ctx := context.Background()

	job := testJob("order-1", "printer-1")
	job.OrderNumber = "42"
	job.Items[0].Modifiers = []string{"extra spicy"}
	job.Items[0].Instructions = "no peanuts"

	id, err := q.Enqueue(ctx, job)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	got, err := q.GetJob(ctx, id)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.OrderID != "order-1" || got.OrderNumber != "42" || got.TargetPrinterID != "printer-1" {
		t.Errorf("job fields lost in round trip: %+v", got)
	}
	if len(got.Items) != 1 || got.Items[0].Instructions != "no peanuts" {
		t.Errorf("items lost in round trip: %+v", got.Items)
	}
	if got.Status != JobStatusPending || got.Priority != DefaultJobPriority {
		t.Errorf("defaults not applied: status=%q priority=%d", got.Status, got.Priority)
	}
}

func TestSQLQueueGetJobNotFound(t *testing.T) {
	q := newTestSQLQueue(t)

	_, err := q.GetJob(context.Background(), "job_1_aaaaaaaaa")
	if !errors.Is(err, ErrJobNotFound) {
		t.Errorf("err = %v, want ErrJobNotFound", err)
	}
}

func TestSQLQueueClaimExactlyOnce(t *testing.T) {
	q := newTestSQLQueue(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Minute)
	for i := 0; i < 5; i++ {
		job := testJob("order-1", "printer-1")
		job.CreatedAt = base.Add(time.Duration(i) * time.Second)
		if _, err := q.Enqueue(ctx, job); err != nil {
			t.Fatal(err)
		}
	}

	first, err := q.Claim(ctx, "printer-1", "agent-a", 3)
	if err != nil {
		t.Fatalf("first Claim: %v", err)
	}
	if len(first) != 3 {
		t.Fatalf("first claim got %d jobs, want 3", len(first))
	}

	second, err := q.Claim(ctx, "printer-1", "agent-b", 10)
	if err != nil {
		t.Fatalf("second Claim: %v", err)
	}
	if len(second) != 2 {
		t.Fatalf("second claim got %d jobs, want 2", len(second))
	}

	seen := make(map[string]bool)
	for _, j := range append(first, second...) {
		if seen[j.ID] {
			t.Fatalf("job %s claimed twice", j.ID)
		}
		seen[j.ID] = true
		if j.Status != JobStatusClaimed {
			t.Errorf("job %s status = %q, want claimed", j.ID, j.Status)
		}
	}
}

func TestSQLQueueClaimOrdering(t *testing.T) {
	q := newTestSQLQueue(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Minute)
	urgent := testJob("order-urgent", "printer-1")
	urgent.Priority = UrgentJobPriority
	urgent.CreatedAt = base.Add(30 * time.Second)

	older := testJob("order-older", "printer-1")
	older.CreatedAt = base

	newer := testJob("order-newer", "printer-1")
	newer.CreatedAt = base.Add(10 * time.Second)

	for _, j := range []*PrintJob{newer, urgent, older} {
		if _, err := q.Enqueue(ctx, j); err != nil {
			t.Fatal(err)
		}
	}

	claimed, err := q.Claim(ctx, "printer-1", "agent", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(claimed) != 3 {
		t.Fatalf("claimed %d, want 3", len(claimed))
	}
	wantOrder := []string{"order-urgent", "order-older", "order-newer"}
	for i, want := range wantOrder {
		if claimed[i].OrderID != want {
			t.Errorf("claim[%d] = %s, want %s", i, claimed[i].OrderID, want)
		}
	}
}

func TestSQLQueueTerminalStatusIsSticky(t *testing.T) {
	q := newTestSQLQueue(t)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, testJob("order-1", "printer-1"))
	if err != nil {
		t.Fatal(err)
	}

	if err := q.UpdateStatus(ctx, id, JobStatusFailed, "printer offline"); err != nil {
		t.Fatalf("first UpdateStatus: %v", err)
	}
	if err := q.UpdateStatus(ctx, id, JobStatusCompleted, ""); err != nil {
		t.Fatalf("retried UpdateStatus: %v", err)
	}

	got, err := q.GetJob(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != JobStatusFailed {
		t.Errorf("status = %q, want failed to stick", got.Status)
	}
	if got.ErrorMessage != "printer offline" {
		t.Errorf("error message = %q", got.ErrorMessage)
	}
}

func TestSQLQueueUpdateStatusUnknownJob(t *testing.T) {
	q := newTestSQLQueue(t)

	err := q.UpdateStatus(context.Background(), "job_1_aaaaaaaaa", JobStatusCompleted, "")
	if !errors.Is(err, ErrJobNotFound) {
		t.Errorf("err = %v, want ErrJobNotFound", err)
	}
}

func TestSQLQueueReleaseExpired(t *testing.T) {
	q := newTestSQLQueue(t)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, testJob("order-1", "printer-1"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := q.Claim(ctx, "printer-1", "agent", 10); err != nil {
		t.Fatal(err)
	}

	time.Sleep(10 * time.Millisecond)
	released, err := q.ReleaseExpired(ctx, time.Millisecond)
	if err != nil {
		t.Fatalf("ReleaseExpired: %v", err)
	}
	if released != 1 {
		t.Fatalf("released %d, want 1", released)
	}

	claimed, err := q.Claim(ctx, "printer-1", "agent-2", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(claimed) != 1 || claimed[0].ID != id {
		t.Errorf("released job was not claimable again: %+v", claimed)
	}
}

func TestSQLQueueStatusWindow(t *testing.T) {
	q := newTestSQLQueue(t)
	ctx := context.Background()

	doneID, _ := q.Enqueue(ctx, testJob("order-done", "p1"))
	failedID, _ := q.Enqueue(ctx, testJob("order-failed", "p1"))
	if _, err := q.Enqueue(ctx, testJob("order-pending", "p1")); err != nil {
		t.Fatal(err)
	}

	if err := q.UpdateStatus(ctx, doneID, JobStatusCompleted, ""); err != nil {
		t.Fatal(err)
	}
	if err := q.UpdateStatus(ctx, failedID, JobStatusFailed, "jam"); err != nil {
		t.Fatal(err)
	}

	recent, err := q.RecentTerminal(ctx, "rest-1", 5*time.Minute)
	if err != nil {
		t.Fatalf("RecentTerminal: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("got %d terminal jobs, want 2", len(recent))
	}

	stats, err := q.Stats(ctx, "rest-1")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalJobs != 3 || stats.CompletedJobs != 1 || stats.FailedJobs != 1 || stats.PendingJobs != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.Printers != 1 {
		t.Errorf("printers = %d, want 1", stats.Printers)
	}
}
