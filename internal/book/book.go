// Package book implements a two-sided price-time priority order book.
//
// The book holds limit orders in two btree-sorted ladders (bids descending,
// asks ascending). Each price level keeps its resting orders in arrival
// order, so matching walks best-opposite levels in price order and orders
// within a level in FIFO order. Every fill executes at the resting order's
// price and is appended to an immutable trade log.
//
// Policies:
//   - A marketable limit order crosses first, then rests its remainder.
//   - A market order never rests: unfilled remainder is discarded.
//   - Self-matching is permitted; the book does not track ownership.
//
// The book is not concurrency-safe. It is owned by a single simulator and
// accessed only from the tick-processing path.
package book

import (
	"fmt"

	"github.com/tidwall/btree"

	"mmsim/pkg/types"
)

// priceLevel holds all resting orders at one price, in arrival order.
type priceLevel struct {
	price  int64
	orders []*types.Order
	total  int64 // sum of remaining sizes, kept in sync with orders
}

// OrderBook is a single-instrument limit order book.
type OrderBook struct {
	bids *btree.BTreeG[*priceLevel] // sorted best (highest) first
	asks *btree.BTreeG[*priceLevel] // sorted best (lowest) first

	// index maps live resting order ids to their level for O(level) cancel.
	index map[uint64]*priceLevel

	trades    []types.Trade
	lastTrade types.Trade
	hasTrade  bool

	nextID  uint64
	nextSeq uint64
}

// New creates an empty order book.
func New() *OrderBook {
	return &OrderBook{
		bids: btree.NewBTreeG(func(a, b *priceLevel) bool {
			return a.price > b.price
		}),
		asks: btree.NewBTreeG(func(a, b *priceLevel) bool {
			return a.price < b.price
		}),
		index: make(map[uint64]*priceLevel),
	}
}

// Submit validates and inserts an order, returning its assigned id and any
// trades produced by matching. A limit order with non-positive size or
// price fails with ErrInvalidOrder; a market order fails on non-positive
// size only (its price field is ignored).
func (b *OrderBook) Submit(side types.Side, kind types.OrderKind, price, size int64) (uint64, []types.Trade, error) {
	if size <= 0 {
		return 0, nil, fmt.Errorf("%w: size %d", types.ErrInvalidOrder, size)
	}
	if kind == types.Limit && price <= 0 {
		return 0, nil, fmt.Errorf("%w: price %d", types.ErrInvalidOrder, price)
	}

	b.nextID++
	b.nextSeq++
	o := &types.Order{
		ID:    b.nextID,
		Side:  side,
		Kind:  kind,
		Price: price,
		Size:  size,
		Seq:   b.nextSeq,
	}

	trades := b.match(o)

	// A limit remainder rests; a market remainder is discarded.
	if o.Size > 0 && kind == types.Limit {
		b.rest(o)
	}

	return o.ID, trades, nil
}

// match crosses the incoming order against the opposite side for as long
// as it is marketable and liquidity remains. Fills execute at the resting
// order's price, best price level first, FIFO within a level.
func (b *OrderBook) match(o *types.Order) []types.Trade {
	opp := b.asks
	if o.Side == types.Ask {
		opp = b.bids
	}

	var out []types.Trade
	for o.Size > 0 {
		level, ok := opp.Min()
		if !ok {
			break
		}
		if o.Kind == types.Limit && !crosses(o.Side, o.Price, level.price) {
			break
		}

		var i int
		for i < len(level.orders) && o.Size > 0 {
			resting := level.orders[i]
			qty := min(o.Size, resting.Size)
			o.Size -= qty
			resting.Size -= qty
			level.total -= qty

			b.nextSeq++
			tr := types.Trade{
				TakerID: o.ID,
				MakerID: resting.ID,
				Price:   level.price,
				Size:    qty,
				Seq:     b.nextSeq,
			}
			b.trades = append(b.trades, tr)
			b.lastTrade = tr
			b.hasTrade = true
			out = append(out, tr)

			if resting.Size == 0 {
				delete(b.index, resting.ID)
				i++
			}
		}

		if i > 0 {
			level.orders = level.orders[i:]
		}
		if len(level.orders) == 0 {
			opp.Delete(level)
		}
	}
	return out
}

// rest places the order's remainder on its own side of the book, appended
// to the existing level (price-time priority) or on a fresh level.
func (b *OrderBook) rest(o *types.Order) {
	side := b.bids
	if o.Side == types.Ask {
		side = b.asks
	}

	level, ok := side.Get(&priceLevel{price: o.Price})
	if !ok {
		level = &priceLevel{price: o.Price}
		side.Set(level)
	}
	level.orders = append(level.orders, o)
	level.total += o.Size
	b.index[o.ID] = level
}

// Cancel removes a resting order. Returns false when the id is unknown,
// already filled, or was a market order (which never rests).
func (b *OrderBook) Cancel(orderID uint64) bool {
	level, ok := b.index[orderID]
	if !ok {
		return false
	}

	for i, o := range level.orders {
		if o.ID != orderID {
			continue
		}
		level.total -= o.Size
		level.orders = append(level.orders[:i], level.orders[i+1:]...)
		delete(b.index, orderID)

		if len(level.orders) == 0 {
			if o.Side == types.Bid {
				b.bids.Delete(level)
			} else {
				b.asks.Delete(level)
			}
		}
		return true
	}
	return false
}

// crosses reports whether an incoming limit price is marketable against
// the best opposite price.
func crosses(side types.Side, price, opposite int64) bool {
	if side == types.Bid {
		return price >= opposite
	}
	return price <= opposite
}

// --- Observational queries ---

// BestBid returns the highest resting bid price.
func (b *OrderBook) BestBid() (int64, bool) {
	level, ok := b.bids.Min()
	if !ok {
		return 0, false
	}
	return level.price, true
}

// BestAsk returns the lowest resting ask price.
func (b *OrderBook) BestAsk() (int64, bool) {
	level, ok := b.asks.Min()
	if !ok {
		return 0, false
	}
	return level.price, true
}

// Mid returns (bestBid + bestAsk) / 2 in fractional ticks.
func (b *OrderBook) Mid() (float64, bool) {
	bid, okB := b.BestBid()
	ask, okA := b.BestAsk()
	if !okB || !okA {
		return 0, false
	}
	return float64(bid+ask) / 2, true
}

// Spread returns bestAsk - bestBid in ticks.
func (b *OrderBook) Spread() (int64, bool) {
	bid, okB := b.BestBid()
	ask, okA := b.BestAsk()
	if !okB || !okA {
		return 0, false
	}
	return ask - bid, true
}

// Depth returns the top k levels on one side with aggregate sizes,
// best price first.
func (b *OrderBook) Depth(side types.Side, k int) []types.LevelDepth {
	if k <= 0 {
		return nil
	}
	tree := b.bids
	if side == types.Ask {
		tree = b.asks
	}

	out := make([]types.LevelDepth, 0, k)
	tree.Scan(func(level *priceLevel) bool {
		out = append(out, types.LevelDepth{Price: level.price, Size: level.total})
		return len(out) < k
	})
	return out
}

// LastTrade returns the most recent trade.
func (b *OrderBook) LastTrade() (types.Trade, bool) {
	return b.lastTrade, b.hasTrade
}

// Trades returns the full trade log. The returned slice is shared; callers
// must not modify it.
func (b *OrderBook) Trades() []types.Trade {
	return b.trades
}

// IsLive reports whether an order id is still resting on the book.
func (b *OrderBook) IsLive(orderID uint64) bool {
	_, ok := b.index[orderID]
	return ok
}

// RestingSize returns the total resting size on one side.
func (b *OrderBook) RestingSize(side types.Side) int64 {
	tree := b.bids
	if side == types.Ask {
		tree = b.asks
	}
	var total int64
	tree.Scan(func(level *priceLevel) bool {
		total += level.total
		return true
	})
	return total
}
