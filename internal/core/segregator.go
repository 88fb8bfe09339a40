package core

import "sort"

// PrinterBatch is the slice of an order routed to one printer. Items keep
// their original order-entry sequence.
type PrinterBatch struct {
	PrinterID string              `json:"printerId"`
	Items     []OrderItemSnapshot `json:"items"`
	// Urgency is the best (highest) assignment priority seen among the
	// batch's items; batches are returned most urgent first.
	Urgency int `json:"-"`
}

// SegregationResult partitions an order into per-printer batches. Items that
// matched no printer land in Unroutable instead of being silently dropped.
type SegregationResult struct {
	Batches    []PrinterBatch      `json:"batches"`
	Unroutable []OrderItemSnapshot `json:"unroutable,omitempty"`
}

// HasUnroutable reports whether any item could not be routed.
func (r *SegregationResult) HasUnroutable() bool {
	return len(r.Unroutable) > 0
}

// Batch returns the batch for a printer id, or nil.
func (r *SegregationResult) Batch(printerID string) *PrinterBatch {
	for i := range r.Batches {
		if r.Batches[i].PrinterID == printerID {
			return &r.Batches[i]
		}
	}
	return nil
}

// Segregator splits an order's items into per-printer batches using the
// assignment resolver.
type Segregator struct {
	resolver *Resolver
}

func NewSegregator(resolver *Resolver) *Segregator {
	return &Segregator{resolver: resolver}
}

// Segregate routes every item of the order. The first resolved candidate is
// the primary target; when the order asks for redundancy, remaining
// candidates receive a copy as well. Batches come back ordered by urgency
// (most urgent first, ties by printer id for determinism).
func (s *Segregator) Segregate(order *Order) *SegregationResult {
	result := &SegregationResult{}

	batches := make(map[string]*PrinterBatch)
	var batchOrder []string

	appendItem := func(printerID string, item OrderItemSnapshot, urgency int) {
		b, ok := batches[printerID]
		if !ok {
			b = &PrinterBatch{PrinterID: printerID, Urgency: urgency}
			batches[printerID] = b
			batchOrder = append(batchOrder, printerID)
		}
		if urgency > b.Urgency {
			b.Urgency = urgency
		}
		b.Items = append(b.Items, item)
	}

	for _, item := range order.Items {
		candidates := s.resolver.Resolve(order.RestaurantID, item)
		if len(candidates) == 0 {
			result.Unroutable = append(result.Unroutable, item)
			continue
		}

		urgency := s.itemUrgency(order.RestaurantID, item)
		appendItem(candidates[0], item, urgency)

		if order.Redundant {
			for _, secondary := range candidates[1:] {
				appendItem(secondary, item, urgency)
			}
		}
	}

	result.Batches = make([]PrinterBatch, 0, len(batchOrder))
	for _, id := range batchOrder {
		result.Batches = append(result.Batches, *batches[id])
	}
	sortBatches(result.Batches)

	return result
}

// itemUrgency is the winning assignment priority for the item, so that
// batches carrying higher-priority assignments print first.
func (s *Segregator) itemUrgency(restaurantID string, item OrderItemSnapshot) int {
	best := 0
	for _, a := range s.resolver.store.ActiveAssignments(restaurantID) {
		matches := (a.Type == AssignmentMenuItem && a.TargetID == item.ItemID) ||
			(a.Type == AssignmentCategory && item.CategoryID != "" && a.TargetID == item.CategoryID)
		if matches && a.Priority > best {
			best = a.Priority
		}
	}
	return best
}

func sortBatches(batches []PrinterBatch) {
	sort.SliceStable(batches, func(i, j int) bool {
		if batches[i].Urgency != batches[j].Urgency {
			return batches[i].Urgency > batches[j].Urgency
		}
		return batches[i].PrinterID < batches[j].PrinterID
	})
}
