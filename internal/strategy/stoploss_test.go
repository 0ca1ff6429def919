package strategy

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ladderbot/pkg/types"
)

func testEngine(ex *fakeExchange, notif *fakeNotifier) *Engine {
	return &Engine{
		cfg: params{
			stopLossEntries: map[string]bool{"0.40": true},
			stopLossPrice:   decimal.NewFromFloat(0.30),
			minShares:       decimal.NewFromFloat(5),
			minNotional:     decimal.NewFromFloat(1),
		},
		exchange:     ex,
		notifier:     notif,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracker:      NewOrderTracker(),
		accumulator:  NewAccumulator(),
		pendingSells: NewPendingSellQueue(),
		reloadGuard:  NewReloadGuard(3),
		events:       make(map[string]*eventRuntime),
	}
}

func TestRunStopLossMonitorTriggersOnBreach(t *testing.T) {
	t.Parallel()
	ex := newFakeExchange()
	notif := &fakeNotifier{}
	e := testEngine(ex, notif)

	event := &types.Event{Slug: "ev", YesTokenID: "tok-yes"}
	event.SetBestBid(types.YES, decimal.NewFromFloat(0.20), decimal.Zero)

	sell := &types.TrackedOrder{
		OrderID: "sell-1", EventSlug: "ev", Side: types.YES, Type: types.SELL,
		TokenID: "tok-yes", OriginalSize: decimal.NewFromFloat(10),
		EntryPrice: decimal.NewFromFloat(0.40), HasEntryPrice: true,
		Status: types.StatusLive,
	}
	e.tracker.Add(sell)

	e.RunStopLossMonitor(context.Background(), event)

	if len(ex.cancelled) != 1 || ex.cancelled[0] != "sell-1" {
		t.Fatalf("cancelled = %v, want [sell-1]", ex.cancelled)
	}
	o, _ := e.tracker.Get("sell-1")
	if !o.Terminal {
		t.Fatal("original take-profit should be marked terminal")
	}
	if len(ex.posted) != 1 || ex.posted[0].Action != types.SELL || !ex.posted[0].Price.Equal(minTick) {
		t.Fatalf("expected one market-crossing sell at min tick, got %+v", ex.posted)
	}
}

func TestRunStopLossMonitorIgnoresAboveThreshold(t *testing.T) {
	t.Parallel()
	ex := newFakeExchange()
	notif := &fakeNotifier{}
	e := testEngine(ex, notif)

	event := &types.Event{Slug: "ev", YesTokenID: "tok-yes"}
	event.SetBestBid(types.YES, decimal.NewFromFloat(0.50), decimal.Zero)

	e.tracker.Add(&types.TrackedOrder{
		OrderID: "sell-1", EventSlug: "ev", Side: types.YES, Type: types.SELL,
		EntryPrice: decimal.NewFromFloat(0.40), HasEntryPrice: true, Status: types.StatusLive,
	})

	e.RunStopLossMonitor(context.Background(), event)

	if len(ex.cancelled) != 0 {
		t.Fatalf("no cancel expected above the stop-loss threshold, got %v", ex.cancelled)
	}
}

func TestRunStopLossMonitorSkipsUnprotectedEntries(t *testing.T) {
	t.Parallel()
	ex := newFakeExchange()
	notif := &fakeNotifier{}
	e := testEngine(ex, notif)

	event := &types.Event{Slug: "ev", YesTokenID: "tok-yes"}
	event.SetBestBid(types.YES, decimal.NewFromFloat(0.10), decimal.Zero)

	// Entry price 0.35 has no configured stop-loss protection.
	e.tracker.Add(&types.TrackedOrder{
		OrderID: "sell-1", EventSlug: "ev", Side: types.YES, Type: types.SELL,
		EntryPrice: decimal.NewFromFloat(0.35), HasEntryPrice: true, Status: types.StatusLive,
	})

	e.RunStopLossMonitor(context.Background(), event)

	if len(ex.cancelled) != 0 {
		t.Fatalf("unprotected entry must not trigger a stop-loss cancel, got %v", ex.cancelled)
	}
}

func TestRunStopLossMonitorSkipsAlreadyStopLoss(t *testing.T) {
	t.Parallel()
	ex := newFakeExchange()
	notif := &fakeNotifier{}
	e := testEngine(ex, notif)

	event := &types.Event{Slug: "ev", YesTokenID: "tok-yes"}
	event.SetBestBid(types.YES, decimal.NewFromFloat(0.10), decimal.Zero)

	e.tracker.Add(&types.TrackedOrder{
		OrderID: "sell-1", EventSlug: "ev", Side: types.YES, Type: types.SELL,
		EntryPrice: decimal.NewFromFloat(0.40), HasEntryPrice: true,
		IsStopLoss: true, Status: types.StatusLive,
	})

	e.RunStopLossMonitor(context.Background(), event)

	if len(ex.cancelled) != 0 {
		t.Fatalf("the market-crossing sell itself must never be cancelled by the monitor, got %v", ex.cancelled)
	}
}

func TestTriggerStopLossDefersOnAmbiguousCancel(t *testing.T) {
	t.Parallel()
	ex := newFakeExchange()
	ex.cancelResult["sell-1"] = false
	ex.getOrderErr["sell-1"] = context.DeadlineExceeded
	notif := &fakeNotifier{}
	e := testEngine(ex, notif)

	event := &types.Event{Slug: "ev", YesTokenID: "tok-yes"}
	sell := &types.TrackedOrder{
		OrderID: "sell-1", EventSlug: "ev", Side: types.YES, Type: types.SELL,
		EntryPrice: decimal.NewFromFloat(0.40), HasEntryPrice: true,
		OriginalSize: decimal.NewFromFloat(10), Status: types.StatusLive,
		PlacedAt: time.Now(),
	}
	e.tracker.Add(sell)

	e.triggerStopLoss(context.Background(), event, sell)

	o, _ := e.tracker.Get("sell-1")
	if o.Terminal {
		t.Fatal("order must not be marked terminal when cancel outcome is unknown")
	}
	if len(ex.posted) != 0 {
		t.Fatal("no market sell should be posted while the cancel outcome is unresolved")
	}
}
