package events

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/platewise/printrelay/internal/core"
)

// Event names published on job status transitions.
const (
	EventJobQueued    = "job_queued"
	EventJobCompleted = "job_completed"
	EventJobFailed    = "job_failed"
	EventJobCancelled = "job_cancelled"
	EventPrinterState = "printer_status_changed"
)

// Target is one webhook destination.
type Target struct {
	URL    string
	Secret string
}

type Payload struct {
	Event     string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Signature string    `json:"signature,omitempty"`
}

type JobEventData struct {
	JobID        string `json:"jobId"`
	OrderID      string `json:"orderId"`
	RestaurantID string `json:"restaurantId"`
	PrinterID    string `json:"printerId"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error,omitempty"`
}

type PrinterEventData struct {
	PrinterID    string `json:"printerId"`
	RestaurantID string `json:"restaurantId"`
	OldStatus    string `json:"oldStatus"`
	NewStatus    string `json:"newStatus"`
}

type task struct {
	target  Target
	payload *Payload
	attempt int
}

// Config tunes the notifier's delivery workers.
type Config struct {
	RetryCount  int
	RetryDelay  time.Duration
	Timeout     time.Duration
	WorkerCount int
	QueueSize   int
}

// Notifier publishes job status transitions to configured webhook targets.
// Delivery is best effort: bounded retries with backoff, and when the
// internal queue is full the event is dropped with a warning rather than
// blocking the status update that triggered it.
type Notifier struct {
	targets    []Target
	httpClient *http.Client
	retryCount int
	retryDelay time.Duration
	queue      chan *task
	stopCh     chan struct{}
	wg         sync.WaitGroup
	workers    int
}

func NewNotifier(targets []Target, cfg Config) *Notifier {
	if cfg.RetryCount <= 0 {
		cfg.RetryCount = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}

	return &Notifier{
		targets:    targets,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		retryCount: cfg.RetryCount,
		retryDelay: cfg.RetryDelay,
		queue:      make(chan *task, cfg.QueueSize),
		stopCh:     make(chan struct{}),
		workers:    cfg.WorkerCount,
	}
}

func (n *Notifier) Start() {
	for i := 0; i < n.workers; i++ {
		n.wg.Add(1)
		go n.worker(i)
	}
}

func (n *Notifier) Stop() {
	close(n.stopCh)
	n.wg.Wait()
}

// JobStatusChanged publishes the transition of one job into a new status.
func (n *Notifier) JobStatusChanged(job *core.PrintJob) {
	event := EventJobQueued
	switch job.Status {
	case core.JobStatusCompleted:
		event = EventJobCompleted
	case core.JobStatusFailed:
		event = EventJobFailed
	case core.JobStatusCancelled:
		event = EventJobCancelled
	}

	n.publish(event, &JobEventData{
		JobID:        job.ID,
		OrderID:      job.OrderID,
		RestaurantID: job.RestaurantID,
		PrinterID:    job.TargetPrinterID,
		Status:       string(job.Status),
		ErrorMessage: job.ErrorMessage,
	})
}

// PrinterStatusChanged publishes a printer connectivity transition.
func (n *Notifier) PrinterStatusChanged(p core.PrinterDescriptor, old, new core.ConnectionStatus) {
	n.publish(EventPrinterState, &PrinterEventData{
		PrinterID:    p.ID,
		RestaurantID: p.RestaurantID,
		OldStatus:    string(old),
		NewStatus:    string(new),
	})
}

func (n *Notifier) publish(event string, data any) {
	for _, target := range n.targets {
		t := &task{
			target: target,
			payload: &Payload{
				Event:     event,
				Timestamp: time.Now(),
				Data:      data,
			},
		}
		select {
		case n.queue <- t:
		default:
			log.Printf("[events] queue full, dropping %s for %s", event, target.URL)
		}
	}
}

func (n *Notifier) worker(id int) {
	defer n.wg.Done()

	for {
		select {
		case <-n.stopCh:
			return
		case t := <-n.queue:
			if err := n.sendWithRetry(t); err != nil {
				log.Printf("[events worker %d] giving up on %s after %d attempts: %v",
					id, t.target.URL, t.attempt, err)
			}
		}
	}
}

func (n *Notifier) sendWithRetry(t *task) error {
	var lastErr error
	for t.attempt < n.retryCount {
		t.attempt++

		err := n.send(t.target, t.payload)
		if err == nil {
			return nil
		}
		lastErr = err

		if t.attempt < n.retryCount {
			backoff := n.retryDelay * time.Duration(1<<(t.attempt-1))
			select {
			case <-n.stopCh:
				return fmt.Errorf("shutdown requested")
			case <-time.After(backoff):
			}
		}
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (n *Notifier) send(target Target, payload *Payload) error {
	dataBytes, err := json.Marshal(payload.Data)
	if err != nil {
		return fmt.Errorf("marshal data: %w", err)
	}

	if target.Secret != "" {
		payload.Signature = sign(dataBytes, target.Secret)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, target.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Event", payload.Event)
	if payload.Signature != "" {
		req.Header.Set("X-Webhook-Signature", payload.Signature)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("http error: %d", resp.StatusCode)
	}
	return nil
}

func sign(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
