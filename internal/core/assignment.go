package core

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// AssignmentPersister is the durable backing for assignment rules. The store
// works without one (volatile, reset on restart).
type AssignmentPersister interface {
	InsertAssignment(ctx context.Context, a *PrinterAssignment) error
	SetAssignmentActive(ctx context.Context, id string, active bool) error
	UpdateAssignment(ctx context.Context, a *PrinterAssignment) error
	ListAssignments(ctx context.Context, restaurantID string) ([]PrinterAssignment, error)
}

// AssignmentStore holds printer assignment rules and the per-restaurant
// default printer. Rules are deactivated, never deleted.
type AssignmentStore struct {
	persister   AssignmentPersister
	assignments map[string]*PrinterAssignment
	defaults    map[string]string
	mu          sync.RWMutex
}

func NewAssignmentStore(persister AssignmentPersister) *AssignmentStore {
	return &AssignmentStore{
		persister:   persister,
		assignments: make(map[string]*PrinterAssignment),
		defaults:    make(map[string]string),
	}
}

// Load pulls all persisted assignments for a restaurant into memory.
func (s *AssignmentStore) Load(ctx context.Context, restaurantID string) error {
	if s.persister == nil {
		return nil
	}

	rules, err := s.persister.ListAssignments(ctx, restaurantID)
	if err != nil {
		return fmt.Errorf("failed to load assignments: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range rules {
		a := rules[i]
		s.assignments[a.ID] = &a
	}
	return nil
}

func (s *AssignmentStore) Create(ctx context.Context, a *PrinterAssignment) error {
	if a.RestaurantID == "" || a.PrinterID == "" || a.TargetID == "" {
		return ErrInvalidJob
	}
	if a.Type != AssignmentCategory && a.Type != AssignmentMenuItem {
		return fmt.Errorf("unknown assignment type %q", a.Type)
	}

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	a.IsActive = true

	if s.persister != nil {
		if err := s.persister.InsertAssignment(ctx, a); err != nil {
			return fmt.Errorf("failed to persist assignment: %w", err)
		}
	}

	s.mu.Lock()
	cp := *a
	s.assignments[a.ID] = &cp
	s.mu.Unlock()

	return nil
}

func (s *AssignmentStore) Update(ctx context.Context, a *PrinterAssignment) error {
	s.mu.RLock()
	existing, ok := s.assignments[a.ID]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("assignment %s not found", a.ID)
	}

	a.CreatedAt = existing.CreatedAt
	a.RestaurantID = existing.RestaurantID

	if s.persister != nil {
		if err := s.persister.UpdateAssignment(ctx, a); err != nil {
			return fmt.Errorf("failed to update assignment: %w", err)
		}
	}

	s.mu.Lock()
	cp := *a
	s.assignments[a.ID] = &cp
	s.mu.Unlock()

	return nil
}

// Deactivate disables a rule without removing it.
func (s *AssignmentStore) Deactivate(ctx context.Context, id string) error {
	s.mu.Lock()
	a, ok := s.assignments[id]
	if ok {
		a.IsActive = false
	}
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("assignment %s not found", id)
	}

	if s.persister != nil {
		if err := s.persister.SetAssignmentActive(ctx, id, false); err != nil {
			return fmt.Errorf("failed to deactivate assignment: %w", err)
		}
	}
	return nil
}

func (s *AssignmentStore) List(restaurantID string) []PrinterAssignment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]PrinterAssignment, 0)
	for _, a := range s.assignments {
		if a.RestaurantID == restaurantID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// ActiveAssignments returns a snapshot of the active rules for a restaurant.
func (s *AssignmentStore) ActiveAssignments(restaurantID string) []PrinterAssignment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]PrinterAssignment, 0)
	for _, a := range s.assignments {
		if a.RestaurantID == restaurantID && a.IsActive {
			out = append(out, *a)
		}
	}
	return out
}

// SetDefaultPrinter configures the restaurant-level fallback printer used
// when no assignment matches an item.
func (s *AssignmentStore) SetDefaultPrinter(restaurantID, printerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if printerID == "" {
		delete(s.defaults, restaurantID)
		return
	}
	s.defaults[restaurantID] = printerID
}

func (s *AssignmentStore) DefaultPrinter(restaurantID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaults[restaurantID]
}

// PrinterLookup answers whether a printer id is registered. Used to detect
// assignments that point at printers that no longer exist.
type PrinterLookup interface {
	HasPrinter(restaurantID, printerID string) bool
}

// Resolver turns an order item into the ordered list of candidate printers.
// Resolution is a pure function over the current assignment snapshot.
type Resolver struct {
	store    *AssignmentStore
	printers PrinterLookup
}

func NewResolver(store *AssignmentStore, printers PrinterLookup) *Resolver {
	return &Resolver{store: store, printers: printers}
}

// Resolve returns candidate printer ids, highest precedence first.
//
// Item-level assignments always outrank category-level ones, regardless of
// priority values. Within a tier: priority descending, then createdAt
// descending. Assignments referencing unregistered printers are skipped with
// a warning. An empty result falls back to the restaurant default printer;
// with no default the item is unroutable and the caller must surface it.
func (r *Resolver) Resolve(restaurantID string, item OrderItemSnapshot) []string {
	rules := r.store.ActiveAssignments(restaurantID)

	var itemRules, categoryRules []PrinterAssignment
	for _, a := range rules {
		switch {
		case a.Type == AssignmentMenuItem && a.TargetID == item.ItemID:
			itemRules = append(itemRules, a)
		case a.Type == AssignmentCategory && item.CategoryID != "" && a.TargetID == item.CategoryID:
			categoryRules = append(categoryRules, a)
		}
	}

	sortTier(itemRules)
	sortTier(categoryRules)

	seen := make(map[string]bool)
	candidates := make([]string, 0, len(itemRules)+len(categoryRules))
	for _, a := range append(itemRules, categoryRules...) {
		if seen[a.PrinterID] {
			continue
		}
		if r.printers != nil && !r.printers.HasPrinter(restaurantID, a.PrinterID) {
			log.Printf("[resolver] assignment %s references unregistered printer %s, skipping", a.ID, a.PrinterID)
			continue
		}
		seen[a.PrinterID] = true
		candidates = append(candidates, a.PrinterID)
	}

	if len(candidates) == 0 {
		if def := r.store.DefaultPrinter(restaurantID); def != "" {
			if r.printers == nil || r.printers.HasPrinter(restaurantID, def) {
				candidates = append(candidates, def)
			}
		}
	}

	return candidates
}

func sortTier(rules []PrinterAssignment) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority > rules[j].Priority
		}
		return rules[i].CreatedAt.After(rules[j].CreatedAt)
	})
}
