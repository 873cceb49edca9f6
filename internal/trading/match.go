// Package trading matches incoming orders against simulated book snapshots
// and settles the results atomically across accounts, positions and orders.
package trading

import (
	"github.com/HtFilia/trading-board/internal/schema"
)

// Match walks the opposite side of the book in stored order and returns the
// fills plus the unfilled remainder. It is pure: the snapshot is read-only
// and no liquidity is consumed between calls.
//
// BUY orders take asks, SELL orders take bids. MARKET orders accept every
// level; LIMIT orders accept asks at or below the limit and bids at or above
// it. Levels failing the limit predicate are skipped, not treated as a stop.
func Match(order schema.OrderRequest, book schema.OrderBookSnapshot) ([]schema.Fill, int64) {
	remaining := order.Quantity
	var fills []schema.Fill

	levels := book.Asks
	if order.Side == schema.SideSell {
		levels = book.Bids
	}

	for _, level := range levels {
		if remaining <= 0 {
			break
		}
		if !priceAcceptable(order, level.Price) {
			continue
		}
		available := int64(level.Quantity)
		if available <= 0 {
			continue
		}
		quantity := available
		if remaining < quantity {
			quantity = remaining
		}
		fills = append(fills, schema.Fill{Price: level.Price, Quantity: quantity})
		remaining -= quantity
	}

	return fills, remaining
}

func priceAcceptable(order schema.OrderRequest, price float64) bool {
	if order.OrderType == schema.OrderTypeMarket {
		return true
	}
	if order.LimitPrice == nil {
		return false
	}
	if order.Side == schema.SideBuy {
		return price <= *order.LimitPrice
	}
	return price >= *order.LimitPrice
}

// Consideration totals the cash value of the fills.
func Consideration(fills []schema.Fill) float64 {
	total := 0.0
	for _, fill := range fills {
		total += fill.Price * float64(fill.Quantity)
	}
	return total
}

// FilledQuantity totals the filled size across the fills.
func FilledQuantity(fills []schema.Fill) int64 {
	var total int64
	for _, fill := range fills {
		total += fill.Quantity
	}
	return total
}
