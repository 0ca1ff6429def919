// Package strategy implements the per-event ladder Strategy Engine: ladder
// placement, fill tracking with explicit delta accounting, partial-fill
// accumulation, a pending-sell retry queue, a cancel/fill race-condition
// audit, a client-side stop-loss monitor with OCO semantics, and the
// pre-market→live state transition.
package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"ladderbot/internal/config"
	"ladderbot/pkg/types"
)

// fillEpsilon is the minimum delta worth processing, guarding against
// float/string round-trip noise surfaced through decimal conversion.
var fillEpsilon = decimal.NewFromFloat(0.000001)

// entryTolerance is the matching tolerance for pairing a sell with its
// originating position/sibling order.
var entryTolerance = decimal.NewFromFloat(0.001)

// minTick is the exchange's minimum tick size, used for the stop-loss
// monitor's market-crossing sell.
var minTick = decimal.NewFromFloat(0.01)

// params is the decimal-quantised form of config.StrategyConfig. Money is
// tick-quantised decimal internally; floats only exist at the YAML/env
// config boundary.
type params struct {
	ladderLevels          []decimal.Decimal
	exitPrices            map[string]decimal.Decimal // keyed by price.StringFixed(2)
	orderSize             decimal.Decimal
	stopLossPrice         decimal.Decimal
	stopLossEntries       map[string]bool // keyed by price.StringFixed(2)
	minNotional           decimal.Decimal
	minShares             decimal.Decimal
	highPriorityThreshold decimal.Decimal
	maxReloadsPerRung     int
	apiFailAlertThreshold int
	pendingSellMaxRetry   int   // attempts before alert+drop on transient API error
	pendingSellMaxSettle  int   // attempts before alert on zero balance / settlement delay
}

func newParams(cfg config.StrategyConfig) params {
	p := params{
		exitPrices:            make(map[string]decimal.Decimal, len(cfg.ExitPrices)),
		stopLossEntries:       make(map[string]bool, len(cfg.StopLossEntries)),
		orderSize:             decimal.NewFromFloat(cfg.OrderSize),
		stopLossPrice:         decimal.NewFromFloat(cfg.StopLossPrice),
		minNotional:           decimal.NewFromFloat(cfg.MinNotional),
		minShares:             decimal.NewFromFloat(cfg.MinShares),
		highPriorityThreshold: decimal.NewFromFloat(cfg.HighPriorityThreshold),
		maxReloadsPerRung:     cfg.MaxReloadsPerRung,
		apiFailAlertThreshold: cfg.ApiFailAlertThreshold,
		pendingSellMaxRetry:   cfg.PendingSellMaxAttempts,
		pendingSellMaxSettle:  60,
	}
	for _, lvl := range cfg.LadderLevels {
		p.ladderLevels = append(p.ladderLevels, decimal.NewFromFloat(lvl))
	}
	for priceStr, exit := range cfg.ExitPrices {
		key := decimal.NewFromFloat(mustParseFloat(priceStr)).StringFixed(2)
		p.exitPrices[key] = decimal.NewFromFloat(exit)
	}
	for _, entry := range cfg.StopLossEntries {
		p.stopLossEntries[decimal.NewFromFloat(entry).StringFixed(2)] = true
	}
	return p
}

func mustParseFloat(s string) float64 {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	f, _ := d.Float64()
	return f
}

// eventRuntime holds the Strategy Engine's per-event bookkeeping that
// doesn't belong to the Order Tracker or Accumulator: lifecycle state and
// the running Cycle Result.
type eventRuntime struct {
	state  types.StrategyState
	result types.CycleResult
}

// Engine is the Strategy Engine. It exclusively owns all per-event
// collections. Its mutex guards the per-event runtime map; the Order
// Tracker, Accumulator, Pending-Sell Queue and ReloadGuard each carry their
// own mutex.
type Engine struct {
	mu sync.Mutex

	cfg      params
	exchange ExchangeClient
	notifier Notifier
	logger   *slog.Logger

	tracker      *OrderTracker
	accumulator  *Accumulator
	pendingSells *PendingSellQueue
	reloadGuard  *ReloadGuard

	events map[string]*eventRuntime // eventSlug -> runtime state
}

// NewEngine creates a Strategy Engine.
func NewEngine(cfg config.StrategyConfig, exchange ExchangeClient, notifier Notifier, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:          newParams(cfg),
		exchange:     exchange,
		notifier:     notifier,
		logger:       logger.With("component", "strategy"),
		tracker:      NewOrderTracker(),
		accumulator:  NewAccumulator(),
		pendingSells: NewPendingSellQueue(),
		reloadGuard:  NewReloadGuard(cfg.MaxReloadsPerRung),
		events:       make(map[string]*eventRuntime),
	}
}

// State returns an event's current strategy state, or "" if unknown.
func (e *Engine) State(eventSlug string) types.StrategyState {
	e.mu.Lock()
	defer e.mu.Unlock()
	if rt, ok := e.events[eventSlug]; ok {
		return rt.state
	}
	return ""
}

// PendingSellCount returns how many sells are currently queued for retry,
// reported in the orchestrator's heartbeat.
func (e *Engine) PendingSellCount() int {
	return e.pendingSells.Len()
}

// exitPriceFor looks up the exit price for a quantised entry price, falling
// back to the highest configured exit price with a warning on miss.
func (e *Engine) exitPriceFor(entryPrice decimal.Decimal) decimal.Decimal {
	key := entryPrice.StringFixed(2)
	if exit, ok := e.cfg.exitPrices[key]; ok {
		return exit
	}

	var fallback decimal.Decimal
	for _, exit := range e.cfg.exitPrices {
		if exit.GreaterThan(fallback) {
			fallback = exit
		}
	}
	e.logger.Warn("exit price miss, using conservative fallback", "entry_price", key, "fallback", fallback)
	return fallback
}

// minLotFor computes the minimum sellable lot size at a given exit price:
// max(MIN_SHARES, ceil(MIN_NOTIONAL / exitPrice) * 1.01).
func (e *Engine) minLotFor(exitPrice decimal.Decimal) decimal.Decimal {
	if exitPrice.IsZero() {
		return e.cfg.minShares
	}
	raw := e.cfg.minNotional.Div(exitPrice)
	ceiled := raw.Ceil()
	withMargin := ceiled.Mul(decimal.NewFromFloat(1.01))
	if withMargin.GreaterThan(e.cfg.minShares) {
		return withMargin
	}
	return e.cfg.minShares
}

// InitializeEvent places the initial ladder for a fresh event, or recovers
// a pre-existing book on restart. Rejects any event not in
// PRE_MARKET as a fatal logic error.
func (e *Engine) InitializeEvent(ctx context.Context, event *types.Event) (int, error) {
	if event.Phase != types.PreMarket {
		return 0, fmt.Errorf("event %s: %w", event.Slug, ErrNotPreMarket)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.events[event.Slug]; exists {
		return 0, nil
	}

	openOrders, err := e.exchange.GetOpenOrders(ctx)
	if err != nil {
		return 0, transientf("initialize_event %s: get_open_orders: %v", event.Slug, err)
	}

	recovered := 0
	for _, o := range openOrders {
		if o.AssetID != event.YesTokenID && o.AssetID != event.NoTokenID {
			continue
		}
		tracked := reconstructTrackedOrder(o, event.Slug, event.SideForToken(o.AssetID))
		e.tracker.Add(tracked)
		recovered++
	}

	e.events[event.Slug] = &eventRuntime{
		state:  types.Accumulating,
		result: types.CycleResult{EventSlug: event.Slug, StartTime: time.Now()},
	}

	if recovered > 0 {
		e.logger.Info("state recovered, adopting existing book", "event", event.Slug, "orders", recovered)
		return 0, nil
	}

	placed := 0
	for _, side := range []types.Side{types.YES, types.NO} {
		tokenID := event.TokenID(side)
		for _, price := range e.cfg.ladderLevels {
			e.reloadGuard.Reset(RungKey{EventSlug: event.Slug, Side: side, EntryPrice: price.StringFixed(2)})

			order := types.UserOrder{
				TokenID: tokenID,
				Price:   price,
				Size:    e.cfg.orderSize,
				Action:  types.BUY,
			}
			resp, err := e.exchange.PostOrder(ctx, order)
			if err != nil || resp == nil || !resp.Success {
				e.logger.Warn("ladder rung failed to place", "event", event.Slug, "side", side, "price", price, "error", err)
				continue
			}
			e.tracker.Add(&types.TrackedOrder{
				OrderID:      resp.OrderID,
				TokenID:      tokenID,
				Side:         side,
				Type:         types.BUY,
				Price:        price,
				OriginalSize: e.cfg.orderSize,
				EventSlug:    event.Slug,
				PlacedAt:     time.Now(),
				Status:       types.StatusLive,
			})
			placed++
		}
	}

	e.notifier.SendLadderPlaced(event.Slug, placed)
	return placed, nil
}

// reconstructTrackedOrder rebuilds a TrackedOrder from an exchange-reported
// open order during state recovery.
func reconstructTrackedOrder(o types.OpenOrder, eventSlug string, side types.Side) *types.TrackedOrder {
	price, _ := decimal.NewFromString(o.Price)
	originalSize, _ := decimal.NewFromString(o.OriginalSize)
	processedSize, _ := decimal.NewFromString(o.SizeMatched)

	action := types.BUY
	if o.Side == string(types.SELL) {
		action = types.SELL
	}

	return &types.TrackedOrder{
		OrderID:       o.ID,
		TokenID:       o.AssetID,
		Side:          side,
		Type:          action,
		Price:         price,
		OriginalSize:  originalSize,
		ProcessedSize: processedSize,
		EventSlug:     eventSlug,
		PlacedAt:      time.Now(),
		Status:        types.OrderStatus(o.Status),
	}
}

// CheckFills reconciles every non-terminal order for an event against the
// exchange. openOrderIDs is the shared open-orders snapshot fetched
// once per tick by the Orchestrator.
func (e *Engine) CheckFills(ctx context.Context, event *types.Event, openOrderIDs map[string]bool) {
	for _, order := range e.tracker.NonTerminalByType(event.Slug, types.BUY) {
		e.reconcileOrder(ctx, event, order, openOrderIDs, false)
	}
	for _, order := range e.tracker.NonTerminalByType(event.Slug, types.SELL) {
		e.reconcileOrder(ctx, event, order, openOrderIDs, true)
	}
}

// reconcileOrder fetches one order's authoritative status and advances its
// tracked fill delta. Sells are always queried (sell count is small and
// they sit on the profit-critical path); buys are sampled — queried only
// if missing from the snapshot or high-priority.
func (e *Engine) reconcileOrder(ctx context.Context, event *types.Event, order *types.TrackedOrder, openOrderIDs map[string]bool, isSell bool) {
	present := openOrderIDs[order.OrderID]
	highPriority := order.Price.GreaterThanOrEqual(e.cfg.highPriorityThreshold)

	if !isSell && present && !highPriority {
		return
	}

	data, err := e.exchange.GetOrder(ctx, order.OrderID)
	if err != nil || data == nil {
		count := e.tracker.IncrementAPIFail(order.OrderID)
		if count >= e.cfg.apiFailAlertThreshold {
			e.notifier.SendError(fmt.Sprintf("order %s: %d consecutive status-fetch failures", order.OrderID, count))
		}
		return
	}
	e.tracker.ResetAPIFail(order.OrderID)

	sizeMatched, _ := decimal.NewFromString(data.SizeMatched)
	status := types.OrderStatus(data.Status)

	delta := e.tracker.AdvanceProcessedSize(order.OrderID, sizeMatched)
	if delta.GreaterThan(fillEpsilon) {
		if isSell {
			e.processSellFill(ctx, event, order, delta, order.IsStopLoss)
		} else {
			e.processBuyFill(ctx, event, order, delta)
		}
	}

	if sizeMatched.GreaterThanOrEqual(order.OriginalSize) || status == types.StatusMatched || status == types.StatusCancelled {
		e.tracker.MarkTerminal(order.OrderID, status)
		return
	}
	if (status == types.StatusCancelled || status == types.StatusCanceled || status == types.StatusInvalid ||
		status == types.StatusExpired || status == types.StatusRejected) && sizeMatched.IsZero() {
		e.tracker.MarkTerminal(order.OrderID, status)
	}
}

// processBuyFill records a buy delta, accumulates partials into a sellable
// lot, and posts the take-profit sell once the lot clears the minimum.
func (e *Engine) processBuyFill(ctx context.Context, event *types.Event, order *types.TrackedOrder, delta decimal.Decimal) {
	e.mu.Lock()
	rt := e.events[event.Slug]
	if order.Side == types.YES {
		rt.result.FillsYes = append(rt.result.FillsYes, order.Price)
	} else {
		rt.result.FillsNo = append(rt.result.FillsNo, order.Price)
	}
	e.mu.Unlock()

	exitPrice := e.exitPriceFor(order.Price)
	key := types.AccumulatorKey{EventSlug: event.Slug, Side: order.Side, TokenID: order.TokenID, ExitPrice: exitPrice.StringFixed(2)}
	entry := e.accumulator.Add(key, delta, order.Price)

	minLot := e.minLotFor(exitPrice)
	if entry.Size.LessThan(minLot) {
		return
	}

	avgEntry := entry.AvgEntry()
	sellSize := entry.Size

	available, err := e.reconcileAvailable(ctx, order.TokenID)
	if err != nil {
		e.logger.Error("balance reconciliation failed, leaving accumulator intact", "event", event.Slug, "token", order.TokenID, "error", err)
		return
	}
	if available.LessThan(sellSize) {
		if available.GreaterThanOrEqual(minLot) {
			sellSize = available
		} else {
			return
		}
	}

	soldValue := sellSize.Mul(avgEntry)
	if sellSize.Equal(entry.Size) {
		e.accumulator.Reset(key)
	} else {
		e.accumulator.Shrink(key, sellSize, soldValue)
	}

	sellOrder := types.UserOrder{TokenID: order.TokenID, Price: exitPrice, Size: sellSize, Action: types.SELL}
	resp, err := e.exchange.PostOrder(ctx, sellOrder)
	if err != nil || resp == nil || !resp.Success {
		e.pendingSells.Push(&types.PendingSell{
			TokenID: order.TokenID, Side: order.Side, ExitPrice: exitPrice, Size: sellSize,
			EventSlug: event.Slug, EntryPrice: avgEntry, Attempts: 1,
		})
		return
	}

	e.tracker.Add(&types.TrackedOrder{
		OrderID: resp.OrderID, TokenID: order.TokenID, Side: order.Side, Type: types.SELL,
		Price: exitPrice, OriginalSize: sellSize, EventSlug: event.Slug, PlacedAt: time.Now(),
		EntryPrice: avgEntry, HasEntryPrice: true, Status: types.StatusLive,
	})
}

// reconcileAvailable returns token_balance minus the sum of all other open
// sell reservations for that token, account-wide.
func (e *Engine) reconcileAvailable(ctx context.Context, tokenID string) (decimal.Decimal, error) {
	balance, err := e.exchange.GetTokenBalance(ctx, tokenID)
	if err != nil {
		return decimal.Zero, transientf("get_token_balance %s: %v", tokenID, err)
	}
	reserved := e.openSellReservations(tokenID)
	available := balance.Sub(reserved)
	if available.IsNegative() {
		return decimal.Zero, nil
	}
	return available, nil
}

// openSellReservations sums the remaining size of every non-terminal sell
// order for a token, across all events.
func (e *Engine) openSellReservations(tokenID string) decimal.Decimal {
	total := decimal.Zero
	for _, eventSlug := range e.trackedEventSlugs() {
		for _, o := range e.tracker.NonTerminalByType(eventSlug, types.SELL) {
			if o.TokenID == tokenID {
				total = total.Add(o.Remaining())
			}
		}
	}
	return total
}

func (e *Engine) trackedEventSlugs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	slugs := make([]string, 0, len(e.events))
	for slug := range e.events {
		slugs = append(slugs, slug)
	}
	return slugs
}

// processSellFill credits realized PnL, cancels a stop-loss-protected
// sibling once its take-profit fills (OCO), and reloads a fresh buy at the
// same rung while still accumulating.
func (e *Engine) processSellFill(ctx context.Context, event *types.Event, order *types.TrackedOrder, delta decimal.Decimal, isStopLoss bool) {
	if !order.HasEntryPrice {
		return
	}
	pnl := order.Price.Sub(order.EntryPrice).Mul(delta)

	e.mu.Lock()
	rt := e.events[event.Slug]
	rt.result.TotalPnL = rt.result.TotalPnL.Add(pnl)
	state := rt.state
	e.mu.Unlock()

	e.notifier.SendFill(order, pnl)

	if e.cfg.stopLossEntries[order.EntryPrice.StringFixed(2)] {
		if sibling, ok := e.tracker.FindSiblingByEntry(event.Slug, order.Side, order.EntryPrice, entryTolerance, order.OrderID); ok {
			if ok, _ := e.exchange.CancelOrder(ctx, sibling.OrderID); ok {
				e.tracker.MarkTerminal(sibling.OrderID, types.StatusCancelled)
			}
		}
	}

	if state == types.Accumulating && !isStopLoss {
		key := RungKey{EventSlug: event.Slug, Side: order.Side, EntryPrice: order.EntryPrice.StringFixed(2)}
		if e.reloadGuard.Allow(key) {
			reload := types.UserOrder{TokenID: order.TokenID, Price: order.EntryPrice, Size: e.cfg.orderSize, Action: types.BUY}
			resp, err := e.exchange.PostOrder(ctx, reload)
			if err == nil && resp != nil && resp.Success {
				e.tracker.Add(&types.TrackedOrder{
					OrderID: resp.OrderID, TokenID: order.TokenID, Side: order.Side, Type: types.BUY,
					Price: order.EntryPrice, OriginalSize: e.cfg.orderSize, EventSlug: event.Slug,
					PlacedAt: time.Now(), Status: types.StatusLive,
				})
			}
		} else {
			e.logger.Warn("reload cap reached, skipping reload", "event", event.Slug, "entry_price", order.EntryPrice)
		}
	}
}

// TransitionToLive batch-cancels remaining buys, audits for a cancel/fill
// race, flushes the accumulator, and moves the event to EXITING.
func (e *Engine) TransitionToLive(ctx context.Context, event *types.Event) error {
	e.mu.Lock()
	rt, ok := e.events[event.Slug]
	if !ok || rt.state != types.Accumulating {
		e.mu.Unlock()
		return fmt.Errorf("event %s: %w", event.Slug, ErrNotAccumulating)
	}
	e.mu.Unlock()

	buys := e.tracker.NonTerminalByType(event.Slug, types.BUY)
	ids := make([]string, 0, len(buys))
	for _, o := range buys {
		ids = append(ids, o.OrderID)
	}

	if len(ids) > 0 {
		if _, err := e.exchange.CancelOrders(ctx, ids); err != nil {
			e.logger.Warn("batch cancel on LIVE transition failed, tolerated", "event", event.Slug, "error", err)
		}
	}

	for _, orderID := range ids {
		order, ok := e.tracker.Get(orderID)
		if !ok {
			continue
		}
		data, err := e.exchange.GetOrder(ctx, orderID)
		if err != nil || data == nil {
			continue
		}
		sizeMatched, _ := decimal.NewFromString(data.SizeMatched)
		delta := e.tracker.AdvanceProcessedSize(orderID, sizeMatched)
		if delta.GreaterThan(fillEpsilon) {
			e.processBuyFill(ctx, event, order, delta)
		}
		e.tracker.MarkTerminal(orderID, types.OrderStatus(data.Status))
	}

	flushed := e.accumulator.FlushEvent(event.Slug)
	for key, entry := range flushed {
		if entry.Size.Mul(decimal.RequireFromString(key.ExitPrice)).GreaterThanOrEqual(e.cfg.minNotional) && entry.Size.GreaterThanOrEqual(e.cfg.minShares) {
			exitPrice := decimal.RequireFromString(key.ExitPrice)
			e.pendingSells.Push(&types.PendingSell{
				TokenID: key.TokenID, Side: key.Side, ExitPrice: exitPrice, Size: entry.Size,
				EventSlug: event.Slug, EntryPrice: entry.AvgEntry(), Attempts: 0,
			})
		} else {
			e.notifier.SendMessage(fmt.Sprintf("dust dropped at LIVE transition: %s %s %s shares", event.Slug, key.Side, entry.Size.String()))
		}
	}

	e.mu.Lock()
	rt.state = types.Exiting
	e.mu.Unlock()

	e.notifier.SendPhaseTransition(event.Slug, len(ids))
	return nil
}

// CheckCompletion checks whether every take-profit sell has either filled
// or vanished, and marks the event COMPLETED once none remain open.
func (e *Engine) CheckCompletion(ctx context.Context, event *types.Event, openOrderIDs map[string]bool) (bool, error) {
	e.mu.Lock()
	rt, ok := e.events[event.Slug]
	if !ok || rt.state != types.Exiting {
		e.mu.Unlock()
		return false, fmt.Errorf("event %s: %w", event.Slug, ErrNotExiting)
	}
	e.mu.Unlock()

	sells := e.tracker.NonTerminalByType(event.Slug, types.SELL)
	for _, sell := range sells {
		if openOrderIDs[sell.OrderID] {
			continue
		}

		data, err := e.exchange.GetOrder(ctx, sell.OrderID)
		if err != nil || data == nil {
			continue
		}
		sizeMatched, _ := decimal.NewFromString(data.SizeMatched)

		if sizeMatched.GreaterThan(decimal.Zero) {
			delta := e.tracker.AdvanceProcessedSize(sell.OrderID, sizeMatched)
			if delta.GreaterThan(fillEpsilon) {
				e.processSellFill(ctx, event, sell, delta, sell.IsStopLoss)
			}
			e.tracker.MarkTerminal(sell.OrderID, types.OrderStatus(data.Status))
			continue
		}

		// Vanished without a fill — resilience path for spurious
		// cancellations.
		balance, err := e.exchange.GetTokenBalance(ctx, sell.TokenID)
		if err == nil && balance.GreaterThan(decimal.Zero) {
			e.pendingSells.Push(&types.PendingSell{
				TokenID: sell.TokenID, Side: sell.Side, ExitPrice: sell.Price, Size: balance,
				EventSlug: event.Slug, EntryPrice: sell.EntryPrice, Attempts: 0, IsStopLoss: sell.IsStopLoss,
			})
		}
		e.tracker.MarkTerminal(sell.OrderID, types.StatusCancelled)
	}

	remaining := e.tracker.NonTerminalByType(event.Slug, types.SELL)
	if len(remaining) > 0 {
		return false, nil
	}

	e.mu.Lock()
	rt.state = types.Completed
	rt.result.EndTime = time.Now()
	result := rt.result
	e.mu.Unlock()

	e.notifier.SendCycleReport(result)
	return true, nil
}

// ProcessPendingSells retries every queued sell once. Called once per
// orchestrator tick, not per event.
func (e *Engine) ProcessPendingSells(ctx context.Context) {
	for _, p := range e.pendingSells.Snapshot() {
		e.processPendingSell(ctx, p)
	}
}

func (e *Engine) processPendingSell(ctx context.Context, p *types.PendingSell) {
	if p.Size.Mul(p.ExitPrice).LessThan(e.cfg.minNotional) {
		err := semanticf("dust dropped from pending queue: %s %s %s shares unrecoverable", p.EventSlug, p.Side, p.Size.String())
		e.logger.Warn("dropping unrecoverable pending sell", "event", p.EventSlug, "error", err)
		e.notifier.SendMessage(err.Error())
		e.pendingSells.Remove(p)
		return
	}

	order := types.UserOrder{TokenID: p.TokenID, Price: p.ExitPrice, Size: p.Size, Action: types.SELL}
	resp, err := e.exchange.PostOrder(ctx, order)
	if err == nil && resp != nil && resp.Success {
		e.tracker.Add(&types.TrackedOrder{
			OrderID: resp.OrderID, TokenID: p.TokenID, Side: p.Side, Type: types.SELL,
			Price: p.ExitPrice, OriginalSize: p.Size, EventSlug: p.EventSlug, PlacedAt: time.Now(),
			EntryPrice: p.EntryPrice, HasEntryPrice: true, IsStopLoss: p.IsStopLoss, Status: types.StatusLive,
		})
		e.notifier.SendMessage(fmt.Sprintf("pending sell placed: %s %s @ %s x%s", p.EventSlug, p.Side, p.ExitPrice, p.Size))
		e.pendingSells.Remove(p)
		return
	}

	available, balErr := e.reconcileAvailable(ctx, p.TokenID)
	if balErr != nil {
		p.Attempts++
		return
	}

	switch {
	case available.IsZero():
		p.Attempts++
		if p.Attempts >= e.cfg.pendingSellMaxSettle {
			e.notifier.SendError(fmt.Sprintf("pending sell stuck on zero balance after %d attempts: %s", p.Attempts, p.EventSlug))
		}
	case available.LessThan(p.Size):
		p.Size = available.Round(6)
		p.Attempts = 0
	case e.hasMatchingOpenSell(p):
		// The prior PostOrder above (or an earlier attempt) likely did go
		// through — the request may have timed out before the response
		// arrived, or a retry raced an already-accepted order. Reservations
		// already cover this size and a sibling sell sits at the same exit
		// price, so treat this attempt as already placed and drop quietly.
		e.logger.Info("pending sell already placed, dropping duplicate", "event", p.EventSlug, "token", p.TokenID, "exit_price", p.ExitPrice)
		e.pendingSells.Remove(p)
	default:
		p.Attempts++
		if p.Attempts >= e.cfg.pendingSellMaxRetry {
			err := semanticf("pending sell dropped after %d attempts: %s", p.Attempts, p.EventSlug)
			e.logger.Error("dropping pending sell", "event", p.EventSlug, "error", err)
			e.notifier.SendError(err.Error())
			e.pendingSells.Remove(p)
		}
	}
}

// hasMatchingOpenSell reports whether a non-terminal sell already exists for
// the pending sell's token at its exit price — evidence that an earlier
// PostOrder attempt actually succeeded despite looking like a failure.
func (e *Engine) hasMatchingOpenSell(p *types.PendingSell) bool {
	for _, o := range e.tracker.NonTerminalByType(p.EventSlug, types.SELL) {
		if o.TokenID == p.TokenID && o.Price.Equal(p.ExitPrice) {
			return true
		}
	}
	return false
}
