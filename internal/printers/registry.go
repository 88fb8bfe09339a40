package printers

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/platewise/printrelay/internal/core"
	"github.com/platewise/printrelay/internal/db"
)

const defaultPrinterPort = 9100

// Prober answers whether a printer endpoint currently accepts connections.
type Prober interface {
	Probe(address string, port int) bool
}

// StatusListener is notified after a printer's connection status changes.
type StatusListener func(p core.PrinterDescriptor, old, new core.ConnectionStatus)

// Registry tracks registered printers and keeps their advisory connection
// status fresh with a periodic reachability probe.
type Registry struct {
	db       *sql.DB
	prober   Prober
	interval time.Duration
	listener StatusListener

	printers map[string]*core.PrinterDescriptor
	mu       sync.RWMutex

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewRegistry(database *sql.DB, prober Prober, probeInterval time.Duration) *Registry {
	if probeInterval <= 0 {
		probeInterval = 30 * time.Second
	}
	return &Registry{
		db:       database,
		prober:   prober,
		interval: probeInterval,
		printers: make(map[string]*core.PrinterDescriptor),
		stopCh:   make(chan struct{}),
	}
}

// OnStatusChange registers the listener invoked on status transitions.
func (r *Registry) OnStatusChange(fn StatusListener) {
	r.listener = fn
}

// Load pulls persisted printers into memory.
func (r *Registry) Load(ctx context.Context) error {
	if r.db == nil {
		return nil
	}

	rows, err := r.db.QueryContext(ctx, db.ListAllPrinters)
	if err != nil {
		return fmt.Errorf("failed to load printers: %w", err)
	}
	defer rows.Close()

	r.mu.Lock()
	defer r.mu.Unlock()
	for rows.Next() {
		var p core.PrinterDescriptor
		var lastConnected sql.NullTime
		err := rows.Scan(&p.ID, &p.RestaurantID, &p.Name, &p.Mode, &p.Address, &p.Port, &p.Type, &p.Status, &lastConnected, &p.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to scan printer: %w", err)
		}
		if lastConnected.Valid {
			p.LastConnectedAt = &lastConnected.Time
		}
		r.printers[p.ID] = &p
	}
	return rows.Err()
}

// Register adds or updates a printer. Registration is idempotent on id so a
// bridge agent can re-register on every start.
func (r *Registry) Register(ctx context.Context, p *core.PrinterDescriptor) error {
	if p.ID == "" || p.Name == "" || p.Address == "" || p.RestaurantID == "" {
		return fmt.Errorf("printer id, name, address and restaurantId are required")
	}
	if p.Port == 0 {
		p.Port = defaultPrinterPort
	}
	if p.Mode == "" {
		p.Mode = core.ConnectivityRemote
	}
	if p.Status == "" {
		p.Status = core.ConnectionUnknown
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}

	if r.db != nil {
		_, err := r.db.ExecContext(ctx, db.UpsertPrinter,
			p.ID, p.RestaurantID, p.Name, string(p.Mode), p.Address, p.Port, p.Type, string(p.Status), p.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to persist printer: %w", err)
		}
	}

	r.mu.Lock()
	if existing, ok := r.printers[p.ID]; ok {
		p.Status = existing.Status
		p.LastConnectedAt = existing.LastConnectedAt
		p.CreatedAt = existing.CreatedAt
	}
	cp := *p
	r.printers[p.ID] = &cp
	r.mu.Unlock()

	return nil
}

func (r *Registry) Get(id string) (*core.PrinterDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.printers[id]
	if !ok {
		return nil, core.ErrPrinterNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *Registry) ListByRestaurant(restaurantID string) []core.PrinterDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]core.PrinterDescriptor, 0)
	for _, p := range r.printers {
		if p.RestaurantID == restaurantID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// HasPrinter implements core.PrinterLookup for the assignment resolver.
func (r *Registry) HasPrinter(restaurantID, printerID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.printers[printerID]
	return ok && p.RestaurantID == restaurantID
}

// SetStatus updates a printer's advisory connection status, persisting and
// notifying on change.
func (r *Registry) SetStatus(id string, status core.ConnectionStatus) {
	r.mu.Lock()
	p, ok := r.printers[id]
	if !ok {
		r.mu.Unlock()
		return
	}

	old := p.Status
	p.Status = status
	var lastConnected *time.Time
	if status == core.ConnectionConnected {
		now := time.Now()
		p.LastConnectedAt = &now
	}
	lastConnected = p.LastConnectedAt
	snapshot := *p
	r.mu.Unlock()

	if r.db != nil {
		var ts any
		if lastConnected != nil {
			ts = *lastConnected
		}
		if _, err := r.db.Exec(db.UpdatePrinterStatus, string(status), ts, id); err != nil {
			log.Printf("[printers] failed to persist status for %s: %v", id, err)
		}
	}

	if old != status && r.listener != nil {
		r.listener(snapshot, old, status)
	}
}

// Start launches the background probe loop.
func (r *Registry) Start() {
	if r.prober == nil {
		return
	}
	r.wg.Add(1)
	go r.probeLoop()
}

func (r *Registry) Stop() {
	close(r.stopCh)
	r.wg.Wait()
}

func (r *Registry) probeLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.probeAll()
	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.probeAll()
		}
	}
}

// probeAll refreshes status for locally reachable printers. Remote printers
// live behind NAT and cannot be probed from here; they stay as reported by
// their bridge agent.
func (r *Registry) probeAll() {
	r.mu.RLock()
	targets := make([]core.PrinterDescriptor, 0, len(r.printers))
	for _, p := range r.printers {
		if p.Mode == core.ConnectivityLocal {
			targets = append(targets, *p)
		}
	}
	r.mu.RUnlock()

	for _, p := range targets {
		if r.prober.Probe(p.Address, p.Port) {
			r.SetStatus(p.ID, core.ConnectionConnected)
		} else {
			r.SetStatus(p.ID, core.ConnectionDisconnected)
		}
	}
}
