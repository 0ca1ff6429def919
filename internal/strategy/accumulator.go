package strategy

import (
	"sync"

	"github.com/shopspring/decimal"

	"ladderbot/pkg/types"
)

// Accumulator aggregates sub-minimum partial buy fills per
// (event, side, token, exit_price) until a sellable lot forms.
// The exit price must be part of the key because two ladder rungs on the
// same outcome can target different exit prices and must not be merged.
type Accumulator struct {
	mu      sync.Mutex
	entries map[types.AccumulatorKey]*types.AccumulatorEntry
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{entries: make(map[types.AccumulatorKey]*types.AccumulatorEntry)}
}

// Add increments the entry for key by delta shares at entryPrice, creating
// the entry if it doesn't yet exist. Returns the entry's new state.
func (a *Accumulator) Add(key types.AccumulatorKey, delta, entryPrice decimal.Decimal) types.AccumulatorEntry {
	a.mu.Lock()
	defer a.mu.Unlock()

	e, ok := a.entries[key]
	if !ok {
		e = &types.AccumulatorEntry{}
		a.entries[key] = e
	}
	e.Size = e.Size.Add(delta)
	e.TotalEntryValue = e.TotalEntryValue.Add(delta.Mul(entryPrice))
	return *e
}

// Get returns a copy of the entry for key, if any.
func (a *Accumulator) Get(key types.AccumulatorKey) (types.AccumulatorEntry, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.entries[key]
	if !ok {
		return types.AccumulatorEntry{}, false
	}
	return *e, true
}

// Reset zeroes an entry, done after its shares are emitted as a sell lot.
func (a *Accumulator) Reset(key types.AccumulatorKey) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.entries, key)
}

// Shrink reduces an entry's size (and proportionally its value) when a sell
// lot is balance-limited to less than the full accumulated size, leaving
// the residual for future accumulation.
func (a *Accumulator) Shrink(key types.AccumulatorKey, soldSize, soldValue decimal.Decimal) {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.entries[key]
	if !ok {
		return
	}
	e.Size = e.Size.Sub(soldSize)
	e.TotalEntryValue = e.TotalEntryValue.Sub(soldValue)
	if e.Size.LessThanOrEqual(decimal.Zero) {
		delete(a.entries, key)
	}
}

// FlushEvent removes and returns every non-empty entry for an event, used
// on the LIVE transition.
func (a *Accumulator) FlushEvent(eventSlug string) map[types.AccumulatorKey]types.AccumulatorEntry {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[types.AccumulatorKey]types.AccumulatorEntry)
	for key, e := range a.entries {
		if key.EventSlug != eventSlug {
			continue
		}
		if e.Size.GreaterThan(decimal.Zero) {
			out[key] = *e
		}
		delete(a.entries, key)
	}
	return out
}
