// Package engine is the central orchestrator of the ladder market-making
// bot.
//
// It wires together all subsystems and drives a single-threaded
// cooperative tick loop:
//
//  1. Scanner discovers this hour's and upcoming hours' Bitcoin
//     up-or-down events by deterministic slug.
//  2. Strategy Engine places ladder buys on PRE_MARKET events, reconciles
//     fills, accumulates partials into sellable lots, and tracks each
//     event through ACCUMULATING -> EXITING -> COMPLETED.
//  3. The tick itself fetches the account's open orders once and shares
//     them across every tracked event, then runs fill reconciliation,
//     pending-sell retry, stop-loss evaluation, and completion checks in
//     a fixed order every cycle.
//
// Lifecycle: New() -> Start() -> [runs until SIGINT] -> Stop()
package engine

import (
	"context"
	"log/slog"
	"time"

	"ladderbot/internal/config"
	"ladderbot/internal/exchange"
	"ladderbot/internal/market"
	"ladderbot/internal/notify"
	"ladderbot/internal/strategy"
	"ladderbot/pkg/types"
)

// Engine orchestrates the ladder bot. Nothing here holds per-event state
// directly — that lives in strategy.Engine and market.Scanner. Engine only
// sequences calls between them every tick.
type Engine struct {
	cfg      config.Config
	scanner  *market.Scanner
	strategy *strategy.Engine
	client   *exchange.Client
	notifier *notify.Telegram
	logger   *slog.Logger

	stopCh chan struct{}
	doneCh chan struct{}

	lastScan      time.Time
	lastHeartbeat time.Time
}

// New creates and wires all engine components.
// If L2 API credentials aren't configured, it derives them via L1 (EIP-712) auth.
func New(cfg config.Config, logger *slog.Logger) (*Engine, error) {
	auth, err := exchange.NewAuth(cfg)
	if err != nil {
		return nil, err
	}

	client := exchange.NewClient(cfg, auth, logger)

	if !auth.HasL2Credentials() {
		logger.Info("no L2 credentials, deriving API key via L1...")
		if _, err := client.DeriveAPIKey(context.Background()); err != nil {
			return nil, err
		}
	}

	notifier := notify.NewTelegram(cfg.Notifier, logger)
	scanner := market.NewScanner(cfg, logger)
	strat := strategy.NewEngine(cfg.Strategy, client, notifier, logger)

	return &Engine{
		cfg:      cfg,
		scanner:  scanner,
		strategy: strat,
		client:   client,
		notifier: notifier,
		logger:   logger.With("component", "engine"),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start fetches the opening balance, announces startup, and begins the
// tick loop in a background goroutine.
func (e *Engine) Start() error {
	ctx := context.Background()

	balance, err := e.client.GetBalance(ctx)
	if err != nil {
		e.logger.Warn("failed to fetch opening balance", "error", err)
	} else {
		e.notifier.SendStartup(balance)
	}

	go e.run(ctx)
	return nil
}

// Stop signals the tick loop to exit, waits for it to finish, and cancels
// every open order as a safety net.
func (e *Engine) Stop() {
	e.logger.Info("shutting down...")

	close(e.stopCh)
	<-e.doneCh

	cancelCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if resp, err := e.client.CancelAll(cancelCtx); err != nil {
		e.logger.Error("failed to cancel all orders on shutdown", "error", err)
	} else {
		e.logger.Info("shutdown cancel_all complete", "cancelled", len(resp.Canceled))
	}

	e.logger.Info("shutdown complete")
}

// run is the orchestrator's tick loop. It blocks until Stop signals.
func (e *Engine) run(ctx context.Context) {
	defer close(e.doneCh)

	ticker := time.NewTicker(e.cfg.Strategy.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

// tick runs one full orchestrator cycle: scan, phase update, fill
// reconciliation, pending-sell retry, stop-loss evaluation, completion
// check, heartbeat — always in this order.
func (e *Engine) tick(ctx context.Context) {
	now := time.Now()

	if now.Sub(e.lastScan) >= e.cfg.Scanner.ScanInterval {
		e.scanEvents(ctx, now)
		e.lastScan = now
	}

	for _, event := range e.scanner.UpdatePhases(now) {
		if err := e.strategy.TransitionToLive(ctx, event); err != nil {
			e.logger.Error("transition to live failed", "event", event.Slug, "error", err)
		}
	}

	events := e.scanner.GetActiveEvents()
	if maxEvents := e.cfg.Strategy.MaxConcurrentEvents; maxEvents > 0 && len(events) > maxEvents {
		e.logger.Warn("active events exceed max_concurrent_events, deferring the rest to next tick", "active", len(events), "cap", maxEvents)
		events = events[:maxEvents]
	}

	openOrderIDs, err := e.fetchOpenOrderIDs(ctx)
	if err != nil {
		e.logger.Error("fetch open orders failed, skipping the rest of this tick", "error", err)
		return
	}

	for _, event := range events {
		e.refreshBestBids(ctx, event)
		e.strategy.CheckFills(ctx, event, openOrderIDs)
	}

	e.strategy.ProcessPendingSells(ctx)

	for _, event := range events {
		e.strategy.RunStopLossMonitor(ctx, event)
	}

	for _, event := range events {
		if e.strategy.State(event.Slug) != types.Exiting {
			continue
		}
		completed, err := e.strategy.CheckCompletion(ctx, event, openOrderIDs)
		if err != nil {
			e.logger.Error("check completion failed", "event", event.Slug, "error", err)
			continue
		}
		if completed {
			e.scanner.RemoveEvent(event.Slug)
		}
	}

	if now.Sub(e.lastHeartbeat) >= e.cfg.Strategy.HeartbeatInterval {
		e.logHeartbeat(events)
		e.lastHeartbeat = now
	}
}

// scanEvents discovers new events and initializes the PRE_MARKET ones.
// This is the only call site that invokes InitializeEvent, which keeps
// the ladder-placement guard (never place buys on an already-LIVE event)
// in one place.
func (e *Engine) scanEvents(ctx context.Context, now time.Time) {
	discovered, err := e.scanner.ScanForEvents(ctx, now)
	if err != nil {
		e.logger.Error("event scan failed", "error", err)
		return
	}

	for _, event := range discovered {
		e.notifier.SendEventDiscovered(event)

		if event.Phase != types.PreMarket {
			e.logger.Warn("discovered event not PRE_MARKET, skipping initialization", "event", event.Slug, "phase", event.Phase)
			continue
		}

		if _, err := e.strategy.InitializeEvent(ctx, event); err != nil {
			e.logger.Error("initialize event failed", "event", event.Slug, "error", err)
		}
	}
}

// refreshBestBids fetches the order book for each outcome token and
// records the best bid on the event.
func (e *Engine) refreshBestBids(ctx context.Context, event *types.Event) {
	for _, side := range []types.Side{types.YES, types.NO} {
		resp, err := e.client.GetOrderBook(ctx, event.TokenID(side))
		if err != nil {
			e.logger.Warn("book fetch failed", "event", event.Slug, "side", side, "error", err)
			continue
		}
		if bid, ok := market.BestBid(resp); ok {
			event.SetBestBid(side, bid, market.SpamFloor)
		}
	}
}

// fetchOpenOrderIDs fetches the account's open orders once per tick,
// amortising the call across every tracked event.
func (e *Engine) fetchOpenOrderIDs(ctx context.Context) (map[string]bool, error) {
	orders, err := e.client.GetOpenOrders(ctx)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]bool, len(orders))
	for _, o := range orders {
		ids[o.ID] = true
	}
	return ids, nil
}

// logHeartbeat logs the active event count and minutes until the next
// event goes live.
func (e *Engine) logHeartbeat(events []*types.Event) {
	now := time.Now()
	nextLive := time.Duration(-1)
	for _, event := range events {
		if event.Phase != types.PreMarket {
			continue
		}
		until := event.TimeUntilStart(now)
		if nextLive < 0 || until < nextLive {
			nextLive = until
		}
	}

	fields := []any{"active_events", len(events), "pending_sells", e.strategy.PendingSellCount()}
	if nextLive >= 0 {
		fields = append(fields, "minutes_to_next_live", int(nextLive.Minutes()))
	}
	e.logger.Info("heartbeat", fields...)
}
