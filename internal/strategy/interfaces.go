package strategy

import (
	"context"

	"github.com/shopspring/decimal"

	"ladderbot/pkg/types"
)

// ExchangeClient is the authenticated CLOB wrapper the Strategy Engine
// consumes. internal/exchange.Client satisfies it; tests inject fakes
// directly.
type ExchangeClient interface {
	PostOrder(ctx context.Context, order types.UserOrder) (*types.OrderResponse, error)
	CancelOrder(ctx context.Context, orderID string) (bool, error)
	CancelOrders(ctx context.Context, orderIDs []string) (*types.CancelResponse, error)
	GetOpenOrders(ctx context.Context) ([]types.OpenOrder, error)
	GetOrder(ctx context.Context, orderID string) (*types.OpenOrder, error)
	GetBalance(ctx context.Context) (decimal.Decimal, error)
	GetTokenBalance(ctx context.Context, tokenID string) (decimal.Decimal, error)
}

// Notifier is the best-effort user-messaging collaborator. Every
// method is fire-and-forget; failures are logged but never propagated to
// the caller.
type Notifier interface {
	SendMessage(text string)
	SendEventDiscovered(event *types.Event)
	SendLadderPlaced(eventSlug string, orderCount int)
	SendFill(order *types.TrackedOrder, pnl decimal.Decimal)
	SendPhaseTransition(eventSlug string, cancelledOrders int)
	SendCycleReport(result types.CycleResult)
	SendError(errMsg string)
}
