package strategy

import (
	"testing"

	"github.com/shopspring/decimal"

	"ladderbot/pkg/types"
)

func testKey(slug string, price decimal.Decimal) types.AccumulatorKey {
	return types.AccumulatorKey{
		EventSlug: slug,
		Side:      types.YES,
		TokenID:   "tok-yes",
		ExitPrice: price.String(),
	}
}

func TestAccumulatorAddAccumulates(t *testing.T) {
	t.Parallel()
	a := NewAccumulator()
	key := testKey("ev", decimal.NewFromFloat(0.6))

	e := a.Add(key, decimal.NewFromFloat(3), decimal.NewFromFloat(0.4))
	if !e.Size.Equal(decimal.NewFromFloat(3)) {
		t.Fatalf("Size = %v, want 3", e.Size)
	}

	e = a.Add(key, decimal.NewFromFloat(2), decimal.NewFromFloat(0.5))
	if !e.Size.Equal(decimal.NewFromFloat(5)) {
		t.Fatalf("Size = %v, want 5", e.Size)
	}
	wantValue := decimal.NewFromFloat(3).Mul(decimal.NewFromFloat(0.4)).Add(decimal.NewFromFloat(2).Mul(decimal.NewFromFloat(0.5)))
	if !e.TotalEntryValue.Equal(wantValue) {
		t.Fatalf("TotalEntryValue = %v, want %v", e.TotalEntryValue, wantValue)
	}
}

func TestAccumulatorDistinctExitPricesDoNotMerge(t *testing.T) {
	t.Parallel()
	a := NewAccumulator()
	k1 := testKey("ev", decimal.NewFromFloat(0.6))
	k2 := testKey("ev", decimal.NewFromFloat(0.65))

	a.Add(k1, decimal.NewFromFloat(3), decimal.NewFromFloat(0.4))
	a.Add(k2, decimal.NewFromFloat(7), decimal.NewFromFloat(0.4))

	e1, ok := a.Get(k1)
	if !ok || !e1.Size.Equal(decimal.NewFromFloat(3)) {
		t.Fatalf("k1 entry = %+v, ok=%v", e1, ok)
	}
	e2, ok := a.Get(k2)
	if !ok || !e2.Size.Equal(decimal.NewFromFloat(7)) {
		t.Fatalf("k2 entry = %+v, ok=%v", e2, ok)
	}
}

func TestAccumulatorReset(t *testing.T) {
	t.Parallel()
	a := NewAccumulator()
	key := testKey("ev", decimal.NewFromFloat(0.6))
	a.Add(key, decimal.NewFromFloat(3), decimal.NewFromFloat(0.4))

	a.Reset(key)
	if _, ok := a.Get(key); ok {
		t.Fatal("entry should be gone after Reset")
	}
}

func TestAccumulatorShrinkPartial(t *testing.T) {
	t.Parallel()
	a := NewAccumulator()
	key := testKey("ev", decimal.NewFromFloat(0.6))
	a.Add(key, decimal.NewFromFloat(10), decimal.NewFromFloat(0.4))

	a.Shrink(key, decimal.NewFromFloat(4), decimal.NewFromFloat(4).Mul(decimal.NewFromFloat(0.4)))

	e, ok := a.Get(key)
	if !ok {
		t.Fatal("entry should survive a partial shrink")
	}
	if !e.Size.Equal(decimal.NewFromFloat(6)) {
		t.Fatalf("Size = %v, want 6", e.Size)
	}
}

func TestAccumulatorShrinkToZeroDeletes(t *testing.T) {
	t.Parallel()
	a := NewAccumulator()
	key := testKey("ev", decimal.NewFromFloat(0.6))
	a.Add(key, decimal.NewFromFloat(10), decimal.NewFromFloat(0.4))

	a.Shrink(key, decimal.NewFromFloat(10), decimal.NewFromFloat(10).Mul(decimal.NewFromFloat(0.4)))

	if _, ok := a.Get(key); ok {
		t.Fatal("entry should be deleted once shrunk to zero")
	}
}

func TestAccumulatorFlushEventFiltersBySlugAndDrops(t *testing.T) {
	t.Parallel()
	a := NewAccumulator()
	keyA := testKey("ev-a", decimal.NewFromFloat(0.6))
	keyB := testKey("ev-b", decimal.NewFromFloat(0.6))
	a.Add(keyA, decimal.NewFromFloat(3), decimal.NewFromFloat(0.4))
	a.Add(keyB, decimal.NewFromFloat(5), decimal.NewFromFloat(0.4))

	out := a.FlushEvent("ev-a")
	if len(out) != 1 {
		t.Fatalf("flushed %d entries, want 1", len(out))
	}
	if _, ok := out[keyA]; !ok {
		t.Fatal("expected ev-a entry in flush result")
	}

	// ev-a entries must be gone from the accumulator after flush.
	if _, ok := a.Get(keyA); ok {
		t.Fatal("ev-a entry should be removed after FlushEvent")
	}
	// ev-b must be untouched.
	if _, ok := a.Get(keyB); !ok {
		t.Fatal("ev-b entry should be untouched by FlushEvent(\"ev-a\")")
	}
}

func TestAccumulatorFlushEventOmitsEmptyEntries(t *testing.T) {
	t.Parallel()
	a := NewAccumulator()
	key := testKey("ev", decimal.NewFromFloat(0.6))
	a.Add(key, decimal.NewFromFloat(3), decimal.NewFromFloat(0.4))
	a.Shrink(key, decimal.NewFromFloat(3), decimal.NewFromFloat(3).Mul(decimal.NewFromFloat(0.4)))

	out := a.FlushEvent("ev")
	if len(out) != 0 {
		t.Fatalf("flushed %d entries, want 0 (entry was already emptied)", len(out))
	}
}
