package strategy

import (
	"sync"

	"github.com/shopspring/decimal"

	"ladderbot/pkg/types"
)

// OrderTracker is the in-memory record of every order the Strategy Engine
// has placed, indexed by order id. It is the single
// writer of TrackedOrder.ProcessedSize, enforcing invariant 1: processed
// size never decreases.
type OrderTracker struct {
	mu     sync.Mutex
	orders map[string]*types.TrackedOrder
}

// NewOrderTracker creates an empty tracker.
func NewOrderTracker() *OrderTracker {
	return &OrderTracker{orders: make(map[string]*types.TrackedOrder)}
}

// Add inserts a newly placed or recovered order.
func (t *OrderTracker) Add(o *types.TrackedOrder) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.orders[o.OrderID] = o
}

// Get returns the tracked order for an id, if known.
func (t *OrderTracker) Get(orderID string) (*types.TrackedOrder, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	o, ok := t.orders[orderID]
	return o, ok
}

// AdvanceProcessedSize raises an order's ProcessedSize to newSize if newSize
// is greater, returning the delta actually applied. Never decreases
// ProcessedSize, enforcing invariant 1 even if called with a stale reading.
func (t *OrderTracker) AdvanceProcessedSize(orderID string, newSize decimal.Decimal) decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()

	o, ok := t.orders[orderID]
	if !ok {
		return decimal.Zero
	}
	if newSize.LessThanOrEqual(o.ProcessedSize) {
		return decimal.Zero
	}
	delta := newSize.Sub(o.ProcessedSize)
	o.ProcessedSize = newSize
	return delta
}

// MarkTerminal marks an order as terminally known — it will never be
// reconciled against again.
func (t *OrderTracker) MarkTerminal(orderID string, status types.OrderStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if o, ok := t.orders[orderID]; ok {
		o.Status = status
		o.Terminal = true
	}
}

// IncrementAPIFail bumps an order's consecutive get_order failure counter
// and returns the new count.
func (t *OrderTracker) IncrementAPIFail(orderID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	o, ok := t.orders[orderID]
	if !ok {
		return 0
	}
	o.APIFailCount++
	return o.APIFailCount
}

// ResetAPIFail clears an order's consecutive failure counter.
func (t *OrderTracker) ResetAPIFail(orderID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if o, ok := t.orders[orderID]; ok {
		o.APIFailCount = 0
	}
}

// ForEvent returns every tracked order (buy or sell) for an event.
func (t *OrderTracker) ForEvent(eventSlug string) []*types.TrackedOrder {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []*types.TrackedOrder
	for _, o := range t.orders {
		if o.EventSlug == eventSlug {
			out = append(out, o)
		}
	}
	return out
}

// NonTerminalByType returns an event's live orders of the given action
// (BUY or SELL).
func (t *OrderTracker) NonTerminalByType(eventSlug string, action types.OrderAction) []*types.TrackedOrder {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []*types.TrackedOrder
	for _, o := range t.orders {
		if o.EventSlug == eventSlug && o.Type == action && !o.Terminal {
			out = append(out, o)
		}
	}
	return out
}

// FindSiblingByEntry finds the non-terminal order matching a side and entry
// price within tolerance, used for OCO pairing — excluding the
// order id given, since the caller already holds a reference to one side
// of the pair.
func (t *OrderTracker) FindSiblingByEntry(eventSlug string, side types.Side, entryPrice, tolerance decimal.Decimal, excludeOrderID string) (*types.TrackedOrder, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, o := range t.orders {
		if o.EventSlug != eventSlug || o.OrderID == excludeOrderID || o.Terminal {
			continue
		}
		if o.Side != side {
			continue
		}
		if o.MatchesEntry(entryPrice, tolerance) {
			return o, true
		}
	}
	return nil, false
}
