package core

import (
	"context"
	"fmt"
	"log"
	"time"
)

// OutcomeKind classifies what happened to one printer's batch.
type OutcomeKind string

const (
	OutcomePrintedDirect OutcomeKind = "printed_direct"
	OutcomeQueued        OutcomeKind = "queued"
	OutcomeUnroutable    OutcomeKind = "unroutable_items"
	OutcomeFailed        OutcomeKind = "failed"
)

// PrinterDispatchOutcome is the per-printer result of a dispatch.
type PrinterDispatchOutcome struct {
	Kind  OutcomeKind `json:"outcome"`
	JobID string      `json:"jobId,omitempty"`
	Error string      `json:"error,omitempty"`
}

// OrderDispatchResult aggregates per-printer outcomes. Success means every
// printer batch was either printed directly or durably queued; queued counts
// as success because delivery then belongs to the bridge agent. Unroutable
// items are reported separately and do not block routable batches.
type OrderDispatchResult struct {
	OrderID    string                            `json:"orderId"`
	PerPrinter map[string]PrinterDispatchOutcome `json:"perPrinter"`
	Unroutable []OrderItemSnapshot               `json:"unroutable,omitempty"`
	Success    bool                              `json:"success"`
}

// PrinterDirectory resolves printer ids to descriptors at dispatch time.
type PrinterDirectory interface {
	Get(id string) (*PrinterDescriptor, error)
}

// DirectSender writes rendered bytes straight to a printer endpoint.
type DirectSender interface {
	Send(ctx context.Context, address string, port int, data []byte) error
}

// DispatcherConfig tunes the direct-dispatch retry policy.
type DispatcherConfig struct {
	DirectRetries int           // attempts after the first, default 2
	DirectBackoff time.Duration // fixed pause between attempts, default 500ms
	SendTimeout   time.Duration // per-attempt socket budget, default 4s
	UnknownGrace  time.Duration // how stale an unknown printer may be, default 2m
}

func (c *DispatcherConfig) applyDefaults() {
	if c.DirectRetries <= 0 {
		c.DirectRetries = 2
	}
	if c.DirectBackoff <= 0 {
		c.DirectBackoff = 500 * time.Millisecond
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 4 * time.Second
	}
	if c.UnknownGrace <= 0 {
		c.UnknownGrace = 2 * time.Minute
	}
}

// Dispatcher decides, per printer batch, between a direct socket write and
// the durable queue, and aggregates the order-level result. It runs
// synchronously in the order-submission path.
type Dispatcher struct {
	segregator *Segregator
	printers   PrinterDirectory
	queue      JobQueue
	sender     DirectSender
	encoder    Encoder
	cfg        DispatcherConfig
}

func NewDispatcher(segregator *Segregator, printers PrinterDirectory, queue JobQueue, sender DirectSender, encoder Encoder, cfg DispatcherConfig) *Dispatcher {
	cfg.applyDefaults()
	if encoder == nil {
		encoder = TextEncoder{}
	}
	return &Dispatcher{
		segregator: segregator,
		printers:   printers,
		queue:      queue,
		sender:     sender,
		encoder:    encoder,
		cfg:        cfg,
	}
}

// Dispatch segregates the order and delivers each batch. Validation and
// routing problems come back inside the result, never as an error; the
// returned error is reserved for queue-level failures that prevented any
// aggregation at all.
func (d *Dispatcher) Dispatch(ctx context.Context, order *Order) (*OrderDispatchResult, error) {
	if order.ID == "" || order.RestaurantID == "" || len(order.Items) == 0 {
		return nil, ErrInvalidJob
	}

	seg := d.segregator.Segregate(order)

	result := &OrderDispatchResult{
		OrderID:    order.ID,
		PerPrinter: make(map[string]PrinterDispatchOutcome),
		Unroutable: seg.Unroutable,
	}

	priority := DefaultJobPriority
	if order.Urgent {
		priority = UrgentJobPriority
	}

	allDelivered := true
	for _, batch := range seg.Batches {
		outcome := d.dispatchBatch(ctx, order, batch, priority)
		result.PerPrinter[batch.PrinterID] = outcome
		if outcome.Kind != OutcomePrintedDirect && outcome.Kind != OutcomeQueued {
			allDelivered = false
		}
	}

	result.Success = allDelivered && len(seg.Batches) > 0
	if len(seg.Batches) == 0 && len(seg.Unroutable) == 0 {
		result.Success = true
	}
	return result, nil
}

func (d *Dispatcher) dispatchBatch(ctx context.Context, order *Order, batch PrinterBatch, priority int) PrinterDispatchOutcome {
	job := &PrintJob{
		OrderID:         order.ID,
		OrderNumber:     order.Number,
		RestaurantID:    order.RestaurantID,
		TargetPrinterID: batch.PrinterID,
		Items:           batch.Items,
		Priority:        priority,
	}

	printer, err := d.printers.Get(batch.PrinterID)
	if err != nil {
		// stale reference: the assignment named a printer that is gone
		log.Printf("[dispatch] order %s targets unregistered printer %s", order.ID, batch.PrinterID)
		return PrinterDispatchOutcome{Kind: OutcomeUnroutable, Error: fmt.Sprintf("printer %s is not registered", batch.PrinterID)}
	}

	if d.directEligible(printer) {
		err := d.sendDirect(ctx, printer, job)
		if err == nil {
			return PrinterDispatchOutcome{Kind: OutcomePrintedDirect}
		}
		log.Printf("[dispatch] direct print to %s failed, falling back to queue: %v", printer.ID, err)
	}

	jobID, err := d.queue.Enqueue(ctx, job)
	if err != nil {
		return PrinterDispatchOutcome{Kind: OutcomeFailed, Error: fmt.Sprintf("enqueue failed: %v", err)}
	}
	return PrinterDispatchOutcome{Kind: OutcomeQueued, JobID: jobID}
}

// directEligible gates the direct path: only local printers, and only when
// the advisory status is connected or recently unknown. Status is never
// authoritative, so unknown-but-fresh printers still get one direct try.
func (d *Dispatcher) directEligible(p *PrinterDescriptor) bool {
	if d.sender == nil || p.Mode != ConnectivityLocal {
		return false
	}
	switch p.Status {
	case ConnectionConnected:
		return true
	case ConnectionUnknown, ConnectionConnecting:
		return p.LastConnectedAt == nil || time.Since(*p.LastConnectedAt) <= d.cfg.UnknownGrace
	}
	return false
}

func (d *Dispatcher) sendDirect(ctx context.Context, printer *PrinterDescriptor, job *PrintJob) error {
	data, err := d.encoder.Encode(job)
	if err != nil {
		return fmt.Errorf("encode failed: %w", err)
	}

	attempts := d.cfg.DirectRetries + 1
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d.cfg.DirectBackoff):
			}
		}

		sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
		err := d.sender.Send(sendCtx, printer.Address, printer.Port, data)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return lastErr
}
