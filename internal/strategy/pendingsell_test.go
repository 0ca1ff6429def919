package strategy

import (
	"testing"

	"github.com/shopspring/decimal"

	"ladderbot/pkg/types"
)

func TestPendingSellQueuePushSnapshotLen(t *testing.T) {
	t.Parallel()
	q := NewPendingSellQueue()
	if q.Len() != 0 {
		t.Fatalf("Len = %d, want 0", q.Len())
	}

	p1 := &types.PendingSell{EventSlug: "ev", Size: decimal.NewFromFloat(5)}
	p2 := &types.PendingSell{EventSlug: "ev", Size: decimal.NewFromFloat(3)}
	q.Push(p1)
	q.Push(p2)

	if q.Len() != 2 {
		t.Fatalf("Len = %d, want 2", q.Len())
	}

	snap := q.Snapshot()
	if len(snap) != 2 || snap[0] != p1 || snap[1] != p2 {
		t.Fatalf("Snapshot = %+v, want [p1, p2] in order", snap)
	}
}

func TestPendingSellQueueSnapshotIsACopy(t *testing.T) {
	t.Parallel()
	q := NewPendingSellQueue()
	q.Push(&types.PendingSell{EventSlug: "ev"})

	snap := q.Snapshot()
	snap[0] = nil // mutating the snapshot slice must not affect the queue

	if q.Len() != 1 {
		t.Fatalf("Len = %d, want 1 (queue must be unaffected by snapshot mutation)", q.Len())
	}
	if q.Snapshot()[0] == nil {
		t.Fatal("queue's own entry should still be intact")
	}
}

func TestPendingSellQueueRemove(t *testing.T) {
	t.Parallel()
	q := NewPendingSellQueue()
	p1 := &types.PendingSell{EventSlug: "a"}
	p2 := &types.PendingSell{EventSlug: "b"}
	p3 := &types.PendingSell{EventSlug: "c"}
	q.Push(p1)
	q.Push(p2)
	q.Push(p3)

	q.Remove(p2)

	if q.Len() != 2 {
		t.Fatalf("Len = %d, want 2", q.Len())
	}
	for _, item := range q.Snapshot() {
		if item == p2 {
			t.Fatal("p2 should have been removed")
		}
	}
}

func TestPendingSellQueueRemoveMissingIsNoop(t *testing.T) {
	t.Parallel()
	q := NewPendingSellQueue()
	p1 := &types.PendingSell{EventSlug: "a"}
	q.Push(p1)

	q.Remove(&types.PendingSell{EventSlug: "ghost"})

	if q.Len() != 1 {
		t.Fatalf("Len = %d, want 1 (removing an absent item must be a no-op)", q.Len())
	}
}
