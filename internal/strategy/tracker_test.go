package strategy

import (
	"testing"

	"github.com/shopspring/decimal"

	"ladderbot/pkg/types"
)

func TestAdvanceProcessedSizeMonotonic(t *testing.T) {
	t.Parallel()
	tr := NewOrderTracker()
	tr.Add(&types.TrackedOrder{OrderID: "o1", OriginalSize: decimal.NewFromFloat(10)})

	delta := tr.AdvanceProcessedSize("o1", decimal.NewFromFloat(4))
	if !delta.Equal(decimal.NewFromFloat(4)) {
		t.Fatalf("delta = %v, want 4", delta)
	}

	// A stale or equal reading must never move ProcessedSize backward.
	delta = tr.AdvanceProcessedSize("o1", decimal.NewFromFloat(3))
	if !delta.IsZero() {
		t.Fatalf("delta for stale read = %v, want 0", delta)
	}
	delta = tr.AdvanceProcessedSize("o1", decimal.NewFromFloat(4))
	if !delta.IsZero() {
		t.Fatalf("delta for equal read = %v, want 0", delta)
	}

	delta = tr.AdvanceProcessedSize("o1", decimal.NewFromFloat(9))
	if !delta.Equal(decimal.NewFromFloat(5)) {
		t.Fatalf("delta = %v, want 5", delta)
	}

	o, ok := tr.Get("o1")
	if !ok || !o.ProcessedSize.Equal(decimal.NewFromFloat(9)) {
		t.Fatalf("ProcessedSize = %v, want 9", o.ProcessedSize)
	}
}

func TestAdvanceProcessedSizeUnknownOrder(t *testing.T) {
	t.Parallel()
	tr := NewOrderTracker()
	delta := tr.AdvanceProcessedSize("missing", decimal.NewFromFloat(5))
	if !delta.IsZero() {
		t.Fatalf("delta for unknown order = %v, want 0", delta)
	}
}

func TestMarkTerminalStopsReconciliation(t *testing.T) {
	t.Parallel()
	tr := NewOrderTracker()
	tr.Add(&types.TrackedOrder{OrderID: "o1", EventSlug: "ev", Type: types.BUY})
	tr.MarkTerminal("o1", types.StatusMatched)

	o, ok := tr.Get("o1")
	if !ok || !o.Terminal || o.Status != types.StatusMatched {
		t.Fatalf("order not marked terminal: %+v", o)
	}

	if got := tr.NonTerminalByType("ev", types.BUY); len(got) != 0 {
		t.Fatalf("expected no non-terminal orders, got %d", len(got))
	}
}

func TestAPIFailCounter(t *testing.T) {
	t.Parallel()
	tr := NewOrderTracker()
	tr.Add(&types.TrackedOrder{OrderID: "o1"})

	if n := tr.IncrementAPIFail("o1"); n != 1 {
		t.Fatalf("count = %d, want 1", n)
	}
	if n := tr.IncrementAPIFail("o1"); n != 2 {
		t.Fatalf("count = %d, want 2", n)
	}
	tr.ResetAPIFail("o1")
	if n := tr.IncrementAPIFail("o1"); n != 1 {
		t.Fatalf("count after reset = %d, want 1", n)
	}
}

func TestNonTerminalByTypeFiltersEventAndAction(t *testing.T) {
	t.Parallel()
	tr := NewOrderTracker()
	tr.Add(&types.TrackedOrder{OrderID: "buy-a", EventSlug: "a", Type: types.BUY})
	tr.Add(&types.TrackedOrder{OrderID: "sell-a", EventSlug: "a", Type: types.SELL})
	tr.Add(&types.TrackedOrder{OrderID: "buy-b", EventSlug: "b", Type: types.BUY})

	got := tr.NonTerminalByType("a", types.BUY)
	if len(got) != 1 || got[0].OrderID != "buy-a" {
		t.Fatalf("got %+v, want only buy-a", got)
	}
}

func TestFindSiblingByEntryExcludesSelf(t *testing.T) {
	t.Parallel()
	tr := NewOrderTracker()
	entry := decimal.NewFromFloat(0.44)
	tol := decimal.NewFromFloat(0.001)

	tr.Add(&types.TrackedOrder{
		OrderID: "sell-1", EventSlug: "ev", Side: types.YES, Type: types.SELL,
		EntryPrice: entry, HasEntryPrice: true,
	})

	if _, ok := tr.FindSiblingByEntry("ev", types.YES, entry, tol, "sell-1"); ok {
		t.Fatal("should not match itself")
	}

	tr.Add(&types.TrackedOrder{
		OrderID: "sell-2", EventSlug: "ev", Side: types.YES, Type: types.SELL,
		EntryPrice: entry, HasEntryPrice: true,
	})

	sibling, ok := tr.FindSiblingByEntry("ev", types.YES, entry, tol, "sell-1")
	if !ok || sibling.OrderID != "sell-2" {
		t.Fatalf("sibling = %+v, ok = %v", sibling, ok)
	}
}

func TestFindSiblingByEntryIgnoresTerminal(t *testing.T) {
	t.Parallel()
	tr := NewOrderTracker()
	entry := decimal.NewFromFloat(0.44)
	tol := decimal.NewFromFloat(0.001)

	tr.Add(&types.TrackedOrder{
		OrderID: "sell-2", EventSlug: "ev", Side: types.YES, Type: types.SELL,
		EntryPrice: entry, HasEntryPrice: true,
	})
	tr.MarkTerminal("sell-2", types.StatusCancelled)

	if _, ok := tr.FindSiblingByEntry("ev", types.YES, entry, tol, "sell-1"); ok {
		t.Fatal("terminal sibling must not match")
	}
}
