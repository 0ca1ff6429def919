package strategy

import (
	"context"
	"fmt"
	"time"

	"ladderbot/pkg/types"
)

// RunStopLossMonitor checks every non-terminal sell on a protected entry:
// it compares the event's last-refreshed best bid against the configured
// threshold and, on breach, cancels the take-profit and dumps the position
// at the exchange's minimum tick. Invoked per event per tick, after fill
// reconciliation.
func (e *Engine) RunStopLossMonitor(ctx context.Context, event *types.Event) {
	for _, sell := range e.tracker.NonTerminalByType(event.Slug, types.SELL) {
		if sell.IsStopLoss {
			continue // already the market-crossing sell itself
		}
		if !e.cfg.stopLossEntries[sell.EntryPrice.StringFixed(2)] {
			continue
		}

		bid, ok := event.BestBid(sell.Side)
		if !ok || bid.GreaterThan(e.cfg.stopLossPrice) {
			continue
		}

		e.triggerStopLoss(ctx, event, sell)
	}
}

// triggerStopLoss cancels the take-profit sell and posts a market-crossing
// sell for the full remaining size.
func (e *Engine) triggerStopLoss(ctx context.Context, event *types.Event, takeProfit *types.TrackedOrder) {
	ok, err := e.exchange.CancelOrder(ctx, takeProfit.OrderID)
	if !ok {
		data, getErr := e.exchange.GetOrder(ctx, takeProfit.OrderID)
		if getErr != nil || data == nil {
			e.logger.Warn("stop-loss cancel failed and status unknown, deferring", "order", takeProfit.OrderID, "error", err)
			return
		}
		status := types.OrderStatus(data.Status)
		if !status.IsTerminal() {
			e.logger.Warn("stop-loss cancel failed, order still live, deferring", "order", takeProfit.OrderID)
			return
		}
	}
	e.tracker.MarkTerminal(takeProfit.OrderID, types.StatusCancelled)

	remaining := takeProfit.Remaining()
	if remaining.LessThanOrEqual(fillEpsilon) {
		return
	}

	marketOrder := types.UserOrder{TokenID: takeProfit.TokenID, Price: minTick, Size: remaining, Action: types.SELL}
	resp, err := e.exchange.PostOrder(ctx, marketOrder)
	if err != nil || resp == nil || !resp.Success {
		e.notifier.SendError(fmt.Sprintf("stop-loss market sell failed for %s, manual intervention required", event.Slug))
		return
	}

	e.tracker.Add(&types.TrackedOrder{
		OrderID: resp.OrderID, TokenID: takeProfit.TokenID, Side: takeProfit.Side, Type: types.SELL,
		Price: minTick, OriginalSize: remaining, EventSlug: event.Slug, PlacedAt: time.Now(),
		EntryPrice: takeProfit.EntryPrice, HasEntryPrice: true, IsStopLoss: true, Status: types.StatusLive,
	})
	e.logger.Warn("stop-loss triggered", "event", event.Slug, "side", takeProfit.Side, "entry_price", takeProfit.EntryPrice, "size", remaining)
}
