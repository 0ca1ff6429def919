// reload_guard.go caps the reload cycles a single ladder rung can go
// through within one event, so a mid price that oscillates repeatedly
// across a take-profit boundary cannot drive unbounded order flow.
package strategy

import (
	"sync"

	"ladderbot/pkg/types"
)

// RungKey identifies one ladder rung within one event for reload counting.
type RungKey struct {
	EventSlug  string
	Side       types.Side
	EntryPrice string // decimal.Decimal.StringFixed(2) of the rung's entry price
}

// ReloadGuard tracks how many times each rung has reloaded and refuses
// further reloads once a configured cap is reached, using a simple
// mutex-protected per-key counter.
type ReloadGuard struct {
	mu     sync.Mutex
	counts map[RungKey]int
	cap    int
}

// NewReloadGuard creates a guard that permits up to maxReloads reloads per
// rung per event.
func NewReloadGuard(maxReloads int) *ReloadGuard {
	return &ReloadGuard{
		counts: make(map[RungKey]int),
		cap:    maxReloads,
	}
}

// Allow reports whether a rung may reload, and if so records the attempt.
// Returns false once the rung has hit the cap — the caller must skip the
// reload and log it rather than posting another buy.
func (g *ReloadGuard) Allow(key RungKey) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.counts[key] >= g.cap {
		return false
	}
	g.counts[key]++
	return true
}

// Count returns how many reloads have been recorded for a rung.
func (g *ReloadGuard) Count(key RungKey) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.counts[key]
}

// Reset clears the reload count for a rung, used when a fresh ladder is
// placed for the event because state recovery found nothing on restart.
func (g *ReloadGuard) Reset(key RungKey) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.counts, key)
}
