package strategy

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"ladderbot/pkg/types"
)

// fakeExchange is a fully in-memory ExchangeClient used across strategy
// package tests. Responses are scripted per-orderID/tokenID; the zero value
// is a happy-path client that accepts every order it's asked to post.
type fakeExchange struct {
	mu sync.Mutex

	nextOrderID int
	posted      []types.UserOrder
	cancelled   []string

	cancelResult  map[string]bool
	cancelErr     map[string]error
	getOrderResp  map[string]*types.OpenOrder
	getOrderErr   map[string]error
	postOrderErr  error
	postOrderFail bool
	balance       decimal.Decimal
	tokenBalances map[string]decimal.Decimal
	openOrders    []types.OpenOrder
}

func newFakeExchange() *fakeExchange {
	return &fakeExchange{
		cancelResult:  make(map[string]bool),
		cancelErr:     make(map[string]error),
		getOrderResp:  make(map[string]*types.OpenOrder),
		getOrderErr:   make(map[string]error),
		tokenBalances: make(map[string]decimal.Decimal),
	}
}

func (f *fakeExchange) PostOrder(ctx context.Context, order types.UserOrder) (*types.OrderResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posted = append(f.posted, order)
	if f.postOrderErr != nil {
		return nil, f.postOrderErr
	}
	if f.postOrderFail {
		return &types.OrderResponse{Success: false, ErrorMsg: "rejected"}, nil
	}
	f.nextOrderID++
	return &types.OrderResponse{Success: true, OrderID: fmt.Sprintf("order-%d", f.nextOrderID), Status: "LIVE"}, nil
}

func (f *fakeExchange) CancelOrder(ctx context.Context, orderID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, orderID)
	if err, ok := f.cancelErr[orderID]; ok {
		return false, err
	}
	if ok, scripted := f.cancelResult[orderID]; scripted {
		return ok, nil
	}
	return true, nil
}

func (f *fakeExchange) CancelOrders(ctx context.Context, orderIDs []string) (*types.CancelResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, orderIDs...)
	return &types.CancelResponse{Canceled: orderIDs}, nil
}

func (f *fakeExchange) GetOpenOrders(ctx context.Context) ([]types.OpenOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.openOrders, nil
}

func (f *fakeExchange) GetOrder(ctx context.Context, orderID string) (*types.OpenOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.getOrderErr[orderID]; ok {
		return nil, err
	}
	return f.getOrderResp[orderID], nil
}

func (f *fakeExchange) GetBalance(ctx context.Context) (decimal.Decimal, error) {
	return f.balance, nil
}

func (f *fakeExchange) GetTokenBalance(ctx context.Context, tokenID string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokenBalances[tokenID], nil
}

// fakeNotifier records every notification fired by the engine without
// sending anything over the network.
type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
	errors   []string
	fills    int
	ladders  int
	phases   int
	cycles   int
}

func (n *fakeNotifier) SendMessage(text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, text)
}

func (n *fakeNotifier) SendEventDiscovered(event *types.Event) {}

func (n *fakeNotifier) SendLadderPlaced(eventSlug string, orderCount int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ladders++
}

func (n *fakeNotifier) SendFill(order *types.TrackedOrder, pnl decimal.Decimal) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.fills++
}

func (n *fakeNotifier) SendPhaseTransition(eventSlug string, cancelledOrders int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.phases++
}

func (n *fakeNotifier) SendCycleReport(result types.CycleResult) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cycles++
}

func (n *fakeNotifier) SendError(errMsg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, errMsg)
}
