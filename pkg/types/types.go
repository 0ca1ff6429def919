// Package types defines shared data structures used across all packages.
//
// This package is the common vocabulary for the bot — order types, market
// metadata, order book snapshots, and exchange wire formats. It has no
// dependencies on internal packages, so it can be imported by any layer.
package types

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// ————————————————————————————————————————————————————————————————————————
// Core enums
// ————————————————————————————————————————————————————————————————————————

// Side represents a binary market outcome: YES or NO.
type Side string

const (
	YES Side = "YES"
	NO  Side = "NO"
)

// DisplayName returns the human-readable outcome name.
func (s Side) DisplayName() string {
	if s == YES {
		return "YES"
	}
	return "NO"
}

// OrderAction is the direction of an order on one outcome's book.
type OrderAction string

const (
	BUY  OrderAction = "BUY"
	SELL OrderAction = "SELL"
)

// OrderType enumerates the supported order lifecycles.
type OrderType string

const (
	OrderTypeGTC OrderType = "GTC" // Good-Til-Cancelled: stays on book until filled or cancelled
)

// SignatureType identifies the signing scheme for the CTF exchange contract.
type SignatureType int

const (
	SigEOA        SignatureType = 0 // externally-owned account (standard wallet)
	SigProxy      SignatureType = 1 // Polymarket proxy / Magic wallet
	SigGnosisSafe SignatureType = 2 // Gnosis Safe multisig
)

// TickSize represents the price granularity for a market.
type TickSize string

const (
	Tick01    TickSize = "0.1"
	Tick001   TickSize = "0.01" // standard for the hourly up-or-down markets this bot trades
	Tick0001  TickSize = "0.001"
	Tick00001 TickSize = "0.0001"
)

// Decimals returns the number of decimal places for a tick size.
func (t TickSize) Decimals() int {
	switch t {
	case Tick01:
		return 1
	case Tick001:
		return 2
	case Tick0001:
		return 3
	case Tick00001:
		return 4
	default:
		return 2
	}
}

// AmountDecimals returns the rounding precision for USDC amounts.
func (t TickSize) AmountDecimals() int {
	switch t {
	case Tick01:
		return 3
	case Tick001:
		return 4
	case Tick0001:
		return 5
	case Tick00001:
		return 6
	default:
		return 4
	}
}

// OrderStatus mirrors the exchange's order lifecycle states.
type OrderStatus string

const (
	StatusLive      OrderStatus = "LIVE"
	StatusMatched   OrderStatus = "MATCHED"
	StatusCancelled OrderStatus = "CANCELLED"
	StatusCanceled  OrderStatus = "CANCELED" // the exchange spells it both ways
	StatusInvalid   OrderStatus = "INVALID"
	StatusExpired   OrderStatus = "EXPIRED"
	StatusRejected  OrderStatus = "REJECTED"
)

// IsTerminal reports whether the status will never change again.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case StatusMatched, StatusCancelled, StatusCanceled, StatusInvalid, StatusExpired, StatusRejected:
		return true
	default:
		return false
	}
}

// MarketPhase is a pure function of wall-clock time vs. an event's scheduled
// start: PRE_MARKET before start, LIVE after start, ENDED once the event's
// outcome window has fully closed.
type MarketPhase string

const (
	PreMarket MarketPhase = "PRE_MARKET"
	Live      MarketPhase = "LIVE"
	Ended     MarketPhase = "ENDED"
)

// StrategyState tracks per-event progress through the ladder lifecycle.
type StrategyState string

const (
	Accumulating StrategyState = "ACCUMULATING"
	Exiting      StrategyState = "EXITING"
	Completed    StrategyState = "COMPLETED"
)

// ————————————————————————————————————————————————————————————————————————
// Domain model
// ————————————————————————————————————————————————————————————————————————

// Event is a single discovered hourly up-or-down market, identified by a
// slug derived from its scheduled start timestamp.
type Event struct {
	Slug        string
	ConditionID string
	YesTokenID  string
	NoTokenID   string
	StartTime   time.Time
	Phase       MarketPhase
	YesBid      decimal.Decimal // last-refreshed best bid for YES, zero value = not yet known
	NoBid       decimal.Decimal
	HasYesBid   bool
	HasNoBid    bool
}

// UpdatePhase derives Phase from wall-clock time vs. StartTime. It never
// consults any external signal or timer callback — phase is always a pure
// function of the current time.
func (e *Event) UpdatePhase(now time.Time) MarketPhase {
	switch {
	case now.Before(e.StartTime):
		e.Phase = PreMarket
	case now.Before(e.StartTime.Add(time.Hour)):
		e.Phase = Live
	default:
		e.Phase = Ended
	}
	return e.Phase
}

// TimeUntilStart returns how long until the event's scheduled start.
// Negative once the event has started.
func (e *Event) TimeUntilStart(now time.Time) time.Duration {
	return e.StartTime.Sub(now)
}

// TokenID returns the outcome token id for the given side.
func (e *Event) TokenID(side Side) string {
	if side == YES {
		return e.YesTokenID
	}
	return e.NoTokenID
}

// SideForToken returns which outcome a token id belongs to. Used during
// state recovery, where the exchange reports orders by asset id rather
// than by outcome.
func (e *Event) SideForToken(tokenID string) Side {
	if tokenID == e.YesTokenID {
		return YES
	}
	return NO
}

// BestBid returns the last-refreshed best bid for the given side, and
// whether a bid has ever been observed (bids below the 0.10 spam floor are
// never recorded).
func (e *Event) BestBid(side Side) (decimal.Decimal, bool) {
	if side == YES {
		return e.YesBid, e.HasYesBid
	}
	return e.NoBid, e.HasNoBid
}

// SetBestBid records a refreshed best bid, applying the spam floor.
func (e *Event) SetBestBid(side Side, bid decimal.Decimal, spamFloor decimal.Decimal) {
	if bid.LessThan(spamFloor) {
		return
	}
	if side == YES {
		e.YesBid, e.HasYesBid = bid, true
	} else {
		e.NoBid, e.HasNoBid = bid, true
	}
}

// TrackedOrder is the in-memory record of a placed order and the
// last-observed filled size the engine has reconciled against it.
type TrackedOrder struct {
	OrderID       string
	TokenID       string
	Side          Side
	Type          OrderAction
	Price         decimal.Decimal
	OriginalSize  decimal.Decimal
	ProcessedSize decimal.Decimal // monotonically increasing; never decreases
	EventSlug     string
	PlacedAt      time.Time
	EntryPrice    decimal.Decimal // populated on SELLs, pairs a take-profit with its originating buy
	HasEntryPrice bool
	IsStopLoss    bool // true for the market-crossing sell issued by the Stop-Loss Monitor

	Status       OrderStatus
	Terminal     bool // set once the order will never be reconciled again
	APIFailCount int  // consecutive get_order failures; gates phantom-fill protection
	ReloadCount  int  // not written by the Strategy Engine; per-rung reload counts are kept by ReloadGuard
}

// Remaining returns OriginalSize - ProcessedSize.
func (o *TrackedOrder) Remaining() decimal.Decimal {
	return o.OriginalSize.Sub(o.ProcessedSize)
}

// MatchesEntry reports whether this order's EntryPrice is within tolerance
// of the given price — used for OCO pairing.
func (o *TrackedOrder) MatchesEntry(price decimal.Decimal, tolerance decimal.Decimal) bool {
	if !o.HasEntryPrice {
		return false
	}
	diff := o.EntryPrice.Sub(price).Abs()
	return diff.LessThanOrEqual(tolerance)
}

// Position describes an open exposure from a buy fill. No code in the
// module creates, stores or removes Position values.
type Position struct {
	Side       Side
	EntryPrice decimal.Decimal
	Size       decimal.Decimal
	TokenID    string
	EventSlug  string
	EntryTime  time.Time
}

// CycleResult aggregates the outcome of a single event's full ladder cycle.
type CycleResult struct {
	EventSlug string
	FillsYes  []decimal.Decimal // prices at which YES buys filled
	FillsNo   []decimal.Decimal
	TotalPnL  decimal.Decimal
	StartTime time.Time
	EndTime   time.Time
}

// TotalFills returns the combined count of YES and NO fills.
func (c *CycleResult) TotalFills() int {
	return len(c.FillsYes) + len(c.FillsNo)
}

// AccumulatorKey identifies one Fill Accumulator entry. exit_price must be
// part of the key because two ladder rungs on the same outcome can map to
// different exit targets and must not be merged.
type AccumulatorKey struct {
	EventSlug string
	Side      Side
	TokenID   string
	ExitPrice string // decimal.Decimal.StringFixed(2) of the quantised exit price — used as a map key
}

// AccumulatorEntry aggregates sub-minimum partial buy fills until a
// sellable lot forms.
type AccumulatorEntry struct {
	Size            decimal.Decimal
	TotalEntryValue decimal.Decimal // sum of delta * entry_price, for the weighted average
}

// AvgEntry returns the share-weighted average entry price, or zero if empty.
func (a *AccumulatorEntry) AvgEntry() decimal.Decimal {
	if a.Size.IsZero() {
		return decimal.Zero
	}
	return a.TotalEntryValue.Div(a.Size)
}

// PendingSell is a sell placement queued for retry after a failed attempt.
type PendingSell struct {
	TokenID    string
	Side       Side
	ExitPrice  decimal.Decimal
	Size       decimal.Decimal
	EventSlug  string
	EntryPrice decimal.Decimal
	Attempts   int
	IsStopLoss bool
}

// ————————————————————————————————————————————————————————————————————————
// Exchange wire formats
// ————————————————————————————————————————————————————————————————————————

// UserOrder is the high-level order representation produced by the strategy.
// The exchange client converts it to a SignedOrder for the CLOB API.
type UserOrder struct {
	TokenID    string
	Price      decimal.Decimal
	Size       decimal.Decimal
	Action     OrderAction
	OrderType  OrderType
	TickSize   TickSize
	Expiration int64
	FeeRateBps int
}

// SignedOrder is the on-chain order format the CLOB API expects.
// MakerAmount and TakerAmount are 6-decimal fixed point (1e6 = one USDC or
// one share): a BUY's maker side is USDC and its taker side shares, a SELL's
// the reverse.
type SignedOrder struct {
	Salt          string        `json:"salt"`
	Maker         string        `json:"maker"`
	Signer        string        `json:"signer"`
	Taker         string        `json:"taker"`
	TokenID       string        `json:"tokenId"`
	MakerAmount   *big.Int      `json:"makerAmount"`
	TakerAmount   *big.Int      `json:"takerAmount"`
	Side          OrderAction   `json:"side"`
	Expiration    string        `json:"expiration"`
	Nonce         string        `json:"nonce"`
	FeeRateBps    string        `json:"feeRateBps"`
	SignatureType SignatureType `json:"signatureType"`
	Signature     string        `json:"signature"`
}

// OrderPayload is the REST API request body for POST /orders (batch).
type OrderPayload struct {
	Order     SignedOrder `json:"order"`
	Owner     string      `json:"owner"`
	OrderType OrderType   `json:"orderType"`
	PostOnly  bool        `json:"postOnly,omitempty"`
}

// OrderResponse is the REST API response for each order in a batch POST.
type OrderResponse struct {
	Success  bool   `json:"success"`
	ErrorMsg string `json:"errorMsg"`
	OrderID  string `json:"orderID"`
	Status   string `json:"status"`
}

// OpenOrder represents a live or recently-terminal order as reported by
// GET /data/order or GET /orders.
type OpenOrder struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Market       string `json:"market"`
	AssetID      string `json:"asset_id"`
	Side         string `json:"side"`
	OriginalSize string `json:"original_size"`
	SizeMatched  string `json:"size_matched"`
	Price        string `json:"price"`
}

// CancelResponse is returned by DELETE /orders, /cancel-all, /order.
type CancelResponse struct {
	Canceled []string `json:"canceled"`
}

// PriceLevel is a single bid or ask level in the order book.
type PriceLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// BookResponse is the REST response from GET /book for a single token.
// Bids are not assumed sorted — callers must scan for max(bid.price).
type BookResponse struct {
	Market       string       `json:"market"`
	AssetID      string       `json:"asset_id"`
	Bids         []PriceLevel `json:"bids"`
	Asks         []PriceLevel `json:"asks"`
	Hash         string       `json:"hash"`
	Timestamp    string       `json:"timestamp"`
	MinOrderSize string       `json:"min_order_size"`
	TickSize     string       `json:"tick_size"`
	NegRisk      bool         `json:"neg_risk"`
}

// BalanceAllowanceResponse is the REST response from GET /balance-allowance.
type BalanceAllowanceResponse struct {
	Balance   string `json:"balance"`
	Allowance string `json:"allowance"`
}

// GammaEvent is the JSON shape returned by the Gamma API's /events?slug=
// endpoint, filtered to the fields the Event Scanner needs.
type GammaEvent struct {
	ID      string        `json:"id"`
	Slug    string        `json:"slug"`
	Markets []GammaMarket `json:"markets"`
}

// GammaMarket is the nested market object within a GammaEvent.
type GammaMarket struct {
	ConditionID  string `json:"conditionId"`
	ClobTokenIds string `json:"clobTokenIds"` // JSON-encoded array: ["yesTokenId","noTokenId"]
}
