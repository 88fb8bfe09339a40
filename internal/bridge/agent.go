package bridge

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"time"

	"github.com/platewise/printrelay/internal/config"
	"github.com/platewise/printrelay/internal/core"
	"github.com/platewise/printrelay/internal/transport"
)

const maxPollBackoff = 5 * time.Minute

// Agent is the on-site bridge process for one physical printer. It polls the
// relay for jobs addressed to its printer id, prints them over the local
// transport, and reports outcomes back. Exactly one agent per printer.
type Agent struct {
	cfg       *config.BridgeConfig
	client    *Client
	transport transport.Transport
	encoder   core.Encoder
}

func NewAgent(cfg *config.BridgeConfig, client *Client, tr transport.Transport, encoder core.Encoder) *Agent {
	if encoder == nil {
		encoder = core.TextEncoder{}
	}
	return &Agent{
		cfg:       cfg,
		client:    client,
		transport: tr,
		encoder:   encoder,
	}
}

// Run registers the printer and polls until the context is cancelled. Poll
// failures back off exponentially (capped) instead of crash-looping.
func (a *Agent) Run(ctx context.Context) error {
	if err := a.register(ctx); err != nil {
		log.Printf("[bridge] initial registration failed, will keep polling: %v", err)
	}

	interval := a.cfg.PollInterval
	consecutiveFailures := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(jitter(interval)):
		}

		if err := a.cycle(ctx); err != nil {
			consecutiveFailures++
			interval = backoffInterval(a.cfg.PollInterval, consecutiveFailures)
			log.Printf("[bridge] poll failed (%d in a row), next poll in %v: %v", consecutiveFailures, interval, err)
			continue
		}
		consecutiveFailures = 0
		interval = a.cfg.PollInterval
	}
}

func (a *Agent) register(ctx context.Context) error {
	return a.client.RegisterPrinter(ctx,
		a.cfg.RestaurantID, a.cfg.PrinterID, a.cfg.PrinterID,
		a.cfg.PrinterAddr, a.cfg.PrinterPort, "thermal")
}

func (a *Agent) cycle(ctx context.Context) error {
	jobs, err := a.client.FetchJobs(ctx, a.cfg.PrinterID)
	if err != nil {
		return err
	}

	for i := range jobs {
		a.processJob(ctx, &jobs[i])
	}
	return nil
}

func (a *Agent) processJob(ctx context.Context, job *core.PrintJob) {
	// the order may have been voided between claim and print
	if current, err := a.client.GetJob(ctx, job.ID); err == nil {
		if current.Status == core.JobStatusCancelled {
			log.Printf("[bridge] job %s cancelled, skipping print", job.ID)
			return
		}
	} else if !errors.Is(err, ErrRelayUnavailable) {
		log.Printf("[bridge] status re-check for %s failed: %v", job.ID, err)
	}

	err := a.printWithRetry(ctx, job)
	if err != nil {
		log.Printf("[bridge] job %s failed after %d attempts: %v", job.ID, a.cfg.MaxRetries+1, err)
		a.report(ctx, job.ID, core.JobStatusFailed, err.Error())
		return
	}

	log.Printf("[bridge] job %s printed (order %s, %d items)", job.ID, job.OrderID, len(job.Items))
	a.report(ctx, job.ID, core.JobStatusCompleted, "")
}

// printWithRetry retries locally with exponential backoff; it never
// re-enqueues the job.
func (a *Agent) printWithRetry(ctx context.Context, job *core.PrintJob) error {
	data, err := a.encoder.Encode(job)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt <= a.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := a.cfg.RetryDelay * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		sendCtx, cancel := context.WithTimeout(ctx, a.cfg.WriteTimeout+a.cfg.DialTimeout)
		err := a.transport.Send(sendCtx, a.cfg.PrinterAddr, a.cfg.PrinterPort, data)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return lastErr
}

// report pushes a terminal status to the relay. Transient report failures
// are retried a few times; the queue treats duplicate reports as no-ops so
// retrying is always safe.
func (a *Agent) report(ctx context.Context, jobID string, status core.JobStatus, errMsg string) {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}
		if err := a.client.ReportStatus(ctx, jobID, status, errMsg); err != nil {
			lastErr = err
			continue
		}
		return
	}
	log.Printf("[bridge] failed to report status for %s: %v", jobID, lastErr)
}

// jitter spreads polls ±20% so a fleet of agents does not hit the relay in
// lockstep.
func jitter(d time.Duration) time.Duration {
	spread := int64(d) / 5
	if spread == 0 {
		return d
	}
	return d + time.Duration(rand.Int63n(2*spread)-spread)
}

func backoffInterval(base time.Duration, failures int) time.Duration {
	if failures > 6 {
		failures = 6
	}
	d := base * time.Duration(1<<failures)
	if d > maxPollBackoff {
		d = maxPollBackoff
	}
	return d
}
