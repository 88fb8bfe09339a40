package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/platewise/printrelay/internal/config"
	"github.com/platewise/printrelay/internal/core"
)

// fakeRelay is a minimal in-memory relay for agent tests.
type fakeRelay struct {
	mu      sync.Mutex
	jobs    []core.PrintJob
	lookup  map[string]core.PrintJob
	reports map[string]string // jobID -> reported status
	errors  map[string]string // jobID -> reported error message
}

func newFakeRelay() *fakeRelay {
	return &fakeRelay{
		lookup:  make(map[string]core.PrintJob),
		reports: make(map[string]string),
		errors:  make(map[string]string),
	}
}

func (f *fakeRelay) serve(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/printers/register", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": true})
	})

	mux.HandleFunc("/printers/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		jobs := f.jobs
		f.jobs = nil
		f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]any{"success": true, "jobs": jobs, "count": len(jobs)})
	})

	mux.HandleFunc("/print-jobs/", func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/print-jobs/"), "/")
		jobID := parts[0]

		if r.Method == http.MethodPut {
			var body struct {
				Status string `json:"status"`
				Error  string `json:"error"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "bad body"})
				return
			}
			f.mu.Lock()
			f.reports[jobID] = body.Status
			f.errors[jobID] = body.Error
			f.mu.Unlock()
			json.NewEncoder(w).Encode(map[string]any{"success": true, "jobId": jobID, "status": body.Status})
			return
		}

		f.mu.Lock()
		job, ok := f.lookup[jobID]
		f.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "Job not found"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"success": true, "printJob": job})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func (f *fakeRelay) reported(jobID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reports[jobID]
}

type scriptedTransport struct {
	mu    sync.Mutex
	calls int
	errs  []error
}

func (s *scriptedTransport) Send(ctx context.Context, address string, port int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	if s.calls < len(s.errs) {
		err = s.errs[s.calls]
	}
	s.calls++
	return err
}

func (s *scriptedTransport) Probe(address string, port int) bool { return true }

func (s *scriptedTransport) sends() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func testBridgeConfig(relayURL string) *config.BridgeConfig {
	return &config.BridgeConfig{
		RelayURL:     relayURL,
		RestaurantID: "rest-1",
		PrinterID:    "printer-1",
		PrinterAddr:  "127.0.0.1",
		PrinterPort:  9100,
		PollInterval: 10 * time.Millisecond,
		MaxRetries:   2,
		RetryDelay:   time.Millisecond,
		HTTPTimeout:  2 * time.Second,
		DialTimeout:  time.Second,
		WriteTimeout: time.Second,
	}
}

func claimedJob(id string) core.PrintJob {
	return core.PrintJob{
		ID:              id,
		OrderID:         "order-1",
		RestaurantID:    "rest-1",
		TargetPrinterID: "printer-1",
		Items:           []core.OrderItemSnapshot{{ItemID: "i1", Name: "Soup", Quantity: 1}},
		Priority:        core.DefaultJobPriority,
		Status:          core.JobStatusClaimed,
	}
}

func TestAgentPrintsAndReportsCompleted(t *testing.T) {
	relay := newFakeRelay()
	job := claimedJob("job_1_aaaaaaaaa")
	relay.jobs = []core.PrintJob{job}
	relay.lookup[job.ID] = job
	srv := relay.serve(t)

	tr := &scriptedTransport{}
	cfg := testBridgeConfig(srv.URL)
	agent := NewAgent(cfg, NewClient(srv.URL, cfg.HTTPTimeout), tr, nil)

	if err := agent.cycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if got := relay.reported(job.ID); got != string(core.JobStatusCompleted) {
		t.Errorf("reported status = %q, want completed", got)
	}
	if tr.sends() != 1 {
		t.Errorf("transport sends = %d, want 1", tr.sends())
	}
}

func TestAgentRetriesThenSucceeds(t *testing.T) {
	relay := newFakeRelay()
	job := claimedJob("job_2_aaaaaaaaa")
	relay.jobs = []core.PrintJob{job}
	relay.lookup[job.ID] = job
	srv := relay.serve(t)

	tr := &scriptedTransport{errs: []error{errors.New("refused"), nil}}
	cfg := testBridgeConfig(srv.URL)
	agent := NewAgent(cfg, NewClient(srv.URL, cfg.HTTPTimeout), tr, nil)

	if err := agent.cycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if got := relay.reported(job.ID); got != string(core.JobStatusCompleted) {
		t.Errorf("reported status = %q, want completed after retry", got)
	}
	if tr.sends() != 2 {
		t.Errorf("transport sends = %d, want 2", tr.sends())
	}
}

func TestAgentReportsFailureAfterExhaustedRetries(t *testing.T) {
	relay := newFakeRelay()
	job := claimedJob("job_3_aaaaaaaaa")
	relay.jobs = []core.PrintJob{job}
	relay.lookup[job.ID] = job
	srv := relay.serve(t)

	boom := errors.New("printer on fire")
	tr := &scriptedTransport{errs: []error{boom, boom, boom}}
	cfg := testBridgeConfig(srv.URL)
	agent := NewAgent(cfg, NewClient(srv.URL, cfg.HTTPTimeout), tr, nil)

	if err := agent.cycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if got := relay.reported(job.ID); got != string(core.JobStatusFailed) {
		t.Errorf("reported status = %q, want failed", got)
	}
	// initial attempt plus MaxRetries
	if tr.sends() != 3 {
		t.Errorf("transport sends = %d, want 3", tr.sends())
	}

	relay.mu.Lock()
	errMsg := relay.errors[job.ID]
	relay.mu.Unlock()
	if !strings.Contains(errMsg, "printer on fire") {
		t.Errorf("failure report missing cause: %q", errMsg)
	}
}

func TestAgentSkipsCancelledJob(t *testing.T) {
	relay := newFakeRelay()
	job := claimedJob("job_4_aaaaaaaaa")
	relay.jobs = []core.PrintJob{job}

	cancelled := job
	cancelled.Status = core.JobStatusCancelled
	relay.lookup[job.ID] = cancelled
	srv := relay.serve(t)

	tr := &scriptedTransport{}
	cfg := testBridgeConfig(srv.URL)
	agent := NewAgent(cfg, NewClient(srv.URL, cfg.HTTPTimeout), tr, nil)

	if err := agent.cycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if tr.sends() != 0 {
		t.Errorf("cancelled job was printed, sends = %d", tr.sends())
	}
	if got := relay.reported(job.ID); got != "" {
		t.Errorf("cancelled job reported status %q, want no report", got)
	}
}

func TestAgentPollBackoff(t *testing.T) {
	base := 10 * time.Millisecond

	if got := backoffInterval(base, 1); got != 20*time.Millisecond {
		t.Errorf("backoff(1) = %v", got)
	}
	if got := backoffInterval(base, 3); got != 80*time.Millisecond {
		t.Errorf("backoff(3) = %v", got)
	}
	// deep failure counts stay capped
	if got := backoffInterval(time.Minute, 20); got != maxPollBackoff {
		t.Errorf("backoff cap = %v, want %v", got, maxPollBackoff)
	}
}

func TestJitterStaysWithinBounds(t *testing.T) {
	base := 100 * time.Millisecond
	for i := 0; i < 100; i++ {
		d := jitter(base)
		if d < 80*time.Millisecond || d > 120*time.Millisecond {
			t.Fatalf("jitter(%v) = %v, outside +-20%%", base, d)
		}
	}
}
