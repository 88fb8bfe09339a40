package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testItems() []OrderItemSnapshot {
	return []OrderItemSnapshot{{ItemID: "item-1", Name: "Pad Thai", Quantity: 2}}
}

func testJob(orderID, printerID string) *PrintJob {
	return &PrintJob{
		OrderID:         orderID,
		RestaurantID:    "rest-1",
		TargetPrinterID: printerID,
		Items:           testItems(),
	}
}

func TestMemQueueEnqueueDefaults(t *testing.T) {
	q := NewMemQueue()
	ctx := context.Background()

	job := testJob("order-1", "printer-1")
	id, err := q.Enqueue(ctx, job)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if !ValidJobID(id) {
		t.Errorf("assigned id %q does not match wire format", id)
	}

	got, err := q.GetJob(ctx, id)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != JobStatusPending {
		t.Errorf("new job status = %q, want pending", got.Status)
	}
	if got.Priority != DefaultJobPriority {
		t.Errorf("new job priority = %d, want %d", got.Priority, DefaultJobPriority)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps were not set")
	}
}

func TestMemQueueEnqueueRejectsIncompleteJobs(t *testing.T) {
	q := NewMemQueue()
	ctx := context.Background()

	bad := []*PrintJob{
		{RestaurantID: "r", TargetPrinterID: "p", Items: testItems()},
		{OrderID: "o", TargetPrinterID: "p", Items: testItems()},
		{OrderID: "o", RestaurantID: "r", Items: testItems()},
		{OrderID: "o", RestaurantID: "r", TargetPrinterID: "p"},
	}
	for i, job := range bad {
		if _, err := q.Enqueue(ctx, job); !errors.Is(err, ErrInvalidJob) {
			t.Errorf("case %d: Enqueue err = %v, want ErrInvalidJob", i, err)
		}
	}
}

func TestMemQueueClaimOrderAndCap(t *testing.T) {
	q := NewMemQueue()
	ctx := context.Background()

	base := time.Now().Add(-time.Minute)
	for i := 0; i < 12; i++ {
		job := testJob("order-1", "printer-1")
		job.Priority = DefaultJobPriority
		job.CreatedAt = base.Add(time.Duration(i) * time.Second)
		if i == 7 {
			job.Priority = UrgentJobPriority
		}
		if _, err := q.Enqueue(ctx, job); err != nil {
			t.Fatalf("Enqueue %d: %v", i, err)
		}
	}

	claimed, err := q.Claim(ctx, "printer-1", "agent-1", 0)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if len(claimed) != MaxClaimBatch {
		t.Fatalf("claimed %d jobs, want %d", len(claimed), MaxClaimBatch)
	}

	if claimed[0].Priority != UrgentJobPriority {
		t.Errorf("first claimed priority = %d, want urgent job first", claimed[0].Priority)
	}
	for i := 1; i < len(claimed); i++ {
		a, b := claimed[i-1], claimed[i]
		if a.Priority > b.Priority {
			t.Fatalf("claim order violated at %d: priority %d before %d", i, a.Priority, b.Priority)
		}
		if a.Priority == b.Priority && a.CreatedAt.After(b.CreatedAt) {
			t.Fatalf("fifo order violated at %d within same priority", i)
		}
	}
	for _, j := range claimed {
		if j.Status != JobStatusClaimed {
			t.Errorf("job %s status = %q, want claimed", j.ID, j.Status)
		}
		if j.ClaimedBy != "agent-1" || j.ClaimedAt == nil {
			t.Errorf("job %s missing claim metadata", j.ID)
		}
	}

	rest, err := q.Claim(ctx, "printer-1", "agent-1", 0)
	if err != nil {
		t.Fatalf("second Claim: %v", err)
	}
	if len(rest) != 2 {
		t.Errorf("second claim got %d jobs, want 2", len(rest))
	}

	empty, err := q.Claim(ctx, "printer-1", "agent-1", 0)
	if err != nil {
		t.Fatalf("third Claim: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("third claim got %d jobs, want 0", len(empty))
	}
}

func TestMemQueueClaimIsolatedByPrinter(t *testing.T) {
	q := NewMemQueue()
	ctx := context.Background()

	if _, err := q.Enqueue(ctx, testJob("order-1", "printer-a")); err != nil {
		t.Fatal(err)
	}
	if _, err := q.Enqueue(ctx, testJob("order-1", "printer-b")); err != nil {
		t.Fatal(err)
	}

	claimed, err := q.Claim(ctx, "printer-a", "agent", 0)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if len(claimed) != 1 || claimed[0].TargetPrinterID != "printer-a" {
		t.Errorf("claim leaked across printers: %+v", claimed)
	}
}

func TestMemQueueTerminalStatusIsSticky(t *testing.T) {
	q := NewMemQueue()
	ctx := context.Background()

	id, err := q.Enqueue(ctx, testJob("order-1", "printer-1"))
	if err != nil {
		t.Fatal(err)
	}

	if err := q.UpdateStatus(ctx, id, JobStatusCompleted, ""); err != nil {
		t.Fatalf("first UpdateStatus: %v", err)
	}
	// a retried or conflicting report must not overwrite the first outcome
	if err := q.UpdateStatus(ctx, id, JobStatusFailed, "late failure"); err != nil {
		t.Fatalf("second UpdateStatus: %v", err)
	}

	got, err := q.GetJob(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != JobStatusCompleted {
		t.Errorf("status = %q, want completed to stick", got.Status)
	}
	if got.ErrorMessage != "" {
		t.Errorf("error message = %q, want empty", got.ErrorMessage)
	}
}

func TestMemQueueUpdateStatusErrors(t *testing.T) {
	q := NewMemQueue()
	ctx := context.Background()

	if err := q.UpdateStatus(ctx, "job_1_aaaaaaaaa", JobStatusCompleted, ""); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("unknown job err = %v, want ErrJobNotFound", err)
	}

	id, _ := q.Enqueue(ctx, testJob("order-1", "printer-1"))
	if err := q.UpdateStatus(ctx, id, JobStatus("exploded"), ""); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("bogus status err = %v, want ErrInvalidStatus", err)
	}
}

func TestMemQueueCancelledIsTerminal(t *testing.T) {
	q := NewMemQueue()
	ctx := context.Background()

	id, _ := q.Enqueue(ctx, testJob("order-1", "printer-1"))
	if err := q.UpdateStatus(ctx, id, JobStatusCancelled, ""); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := q.UpdateStatus(ctx, id, JobStatusCompleted, ""); err != nil {
		t.Fatalf("report after cancel: %v", err)
	}

	got, _ := q.GetJob(ctx, id)
	if got.Status != JobStatusCancelled {
		t.Errorf("status = %q, want cancelled to stick", got.Status)
	}

	claimed, _ := q.Claim(ctx, "printer-1", "agent", 0)
	if len(claimed) != 0 {
		t.Errorf("cancelled job was claimed: %+v", claimed)
	}
}

func TestMemQueueReleaseExpired(t *testing.T) {
	q := NewMemQueue()
	ctx := context.Background()

	id, _ := q.Enqueue(ctx, testJob("order-1", "printer-1"))
	if _, err := q.Claim(ctx, "printer-1", "agent", 0); err != nil {
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

	got, _ := q.GetJob(ctx, id)
	if got.Status != JobStatusPending {
		t.Errorf("status after release = %q, want pending", got.Status)
	}
	if got.ClaimedBy != "" || got.ClaimedAt != nil {
		t.Error("claim metadata survived release")
	}

	// fresh claims stay claimed
	if _, err := q.Claim(ctx, "printer-1", "agent", 0); err != nil {
		t.Fatal(err)
	}
	released, _ = q.ReleaseExpired(ctx, time.Hour)
	if released != 0 {
		t.Errorf("released %d fresh claims, want 0", released)
	}
}

func TestMemQueueStats(t *testing.T) {
	q := NewMemQueue()
	ctx := context.Background()

	ids := make([]string, 0, 4)
	for _, printer := range []string{"p1", "p1", "p2", "p2"} {
		job := testJob("order-1", printer)
		job.OrderID = "order-" + printer
		id, err := q.Enqueue(ctx, job)
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}
	if err := q.UpdateStatus(ctx, ids[0], JobStatusCompleted, ""); err != nil {
		t.Fatal(err)
	}
	if err := q.UpdateStatus(ctx, ids[1], JobStatusFailed, "paper jam"); err != nil {
		t.Fatal(err)
	}

	stats, err := q.Stats(ctx, "rest-1")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalJobs != 4 || stats.CompletedJobs != 1 || stats.FailedJobs != 1 || stats.PendingJobs != 2 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.Printers != 2 {
		t.Errorf("printers = %d, want 2", stats.Printers)
	}
}

func TestMemQueueRecentTerminalWindow(t *testing.T) {
	q := NewMemQueue()
	ctx := context.Background()

	doneID, _ := q.Enqueue(ctx, testJob("order-done", "p1"))
	failedID, _ := q.Enqueue(ctx, testJob("order-failed", "p1"))
	pendingID, _ := q.Enqueue(ctx, testJob("order-pending", "p1"))

	_ = q.UpdateStatus(ctx, doneID, JobStatusCompleted, "")
	_ = q.UpdateStatus(ctx, failedID, JobStatusFailed, "offline")

	recent, err := q.RecentTerminal(ctx, "rest-1", 5*time.Minute)
	if err != nil {
		t.Fatalf("RecentTerminal: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("got %d terminal jobs, want 2", len(recent))
	}
	for _, j := range recent {
		if j.ID == pendingID {
			t.Error("pending job leaked into terminal window")
		}
	}

	// a zero-width window excludes everything
	none, err := q.RecentTerminal(ctx, "rest-1", -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Errorf("got %d jobs for negative window, want 0", len(none))
	}
}

func TestMemQueueSnapshotIsolation(t *testing.T) {
	q := NewMemQueue()
	ctx := context.Background()

	job := testJob("order-1", "printer-1")
	id, _ := q.Enqueue(ctx, job)

	// mutating the caller's copy must not reach the queue
	job.Items[0].Name = "changed"

	got, _ := q.GetJob(ctx, id)
	if got.Items[0].Name != "Pad Thai" {
		t.Errorf("queue state shared memory with caller: %q", got.Items[0].Name)
	}

	got.Items[0].Name = "changed again"
	again, _ := q.GetJob(ctx, id)
	if again.Items[0].Name != "Pad Thai" {
		t.Errorf("returned job shared memory with queue: %q", again.Items[0].Name)
	}
}
