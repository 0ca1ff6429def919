// Package market discovers events and reads order books for the ladder
// strategy. Best-bid refresh is pure REST polling: the exchange client
// fetches a book snapshot per token each tick and the best bid is computed
// inline, with no local order-book mirror or push feed.
package market

import (
	"github.com/shopspring/decimal"

	"ladderbot/pkg/types"
)

// SpamFloor is the minimum bid price treated as real liquidity; anything
// below it is ignored as exchange noise.
var SpamFloor = decimal.NewFromFloat(0.10)

// BestBid scans a book response's bids for the maximum price, since bids
// are not assumed sorted by the exchange. Returns false if no bid clears
// the spam floor.
func BestBid(resp *types.BookResponse) (decimal.Decimal, bool) {
	best := decimal.Zero
	found := false

	for _, level := range resp.Bids {
		price, err := decimal.NewFromString(level.Price)
		if err != nil {
			continue
		}
		if price.LessThan(SpamFloor) {
			continue
		}
		if !found || price.GreaterThan(best) {
			best = price
			found = true
		}
	}

	return best, found
}
