package book

import (
	"errors"

	"gungnir/internal/common"
)

var (
	ErrInvalidOrder     = errors.New("invalid order")
	ErrDuplicateOrderID = errors.New("duplicate order id")
)

// orderRef locates a resting order for cancellation: side picks the ladder,
// price picks the level, and the level's queue is scanned for the id.
type orderRef struct {
	side  common.Side
	price uint64
}

// Book is a single instrument's central limit order book. It owns the two
// price ladders and the id index, and is driven from one goroutine; callers
// wanting concurrent access serialize through the exchange runtime.
type Book struct {
	bids ladder
	asks ladder

	// Resting order ids, for the cancellation cold path.
	index map[uint64]orderRef

	seq       uint64 // ingress sequence, breaks ties within a level
	tradeSeq  uint64
	lastTrade uint64 // 0 until the first trade prints
}

func New() *Book {
	return &Book{
		bids:  newBidLadder(),
		asks:  newAskLadder(),
		index: make(map[uint64]orderRef),
	}
}

func (b *Book) side(s common.Side) *ladder {
	if s == common.Buy {
		return &b.bids
	}
	return &b.asks
}

// PlaceOrder runs the incoming order through matching and rests any
// unfilled remainder at its limit price. Trades are returned in execution
// order; the book keeps no record of them.
func (b *Book) PlaceOrder(side common.Side, price, quantity, id uint64) ([]common.Trade, error) {
	if !side.Valid() || price == 0 || quantity == 0 {
		return nil, ErrInvalidOrder
	}
	if _, ok := b.index[id]; ok {
		return nil, ErrDuplicateOrderID
	}

	incoming := common.Order{
		ID:       id,
		Side:     side,
		Price:    price,
		Quantity: quantity,
	}
	trades := b.sweep(&incoming)

	if incoming.Quantity > 0 {
		b.seq++
		incoming.Sequence = b.seq
		rest := incoming
		b.side(side).append(&rest)
		b.index[id] = orderRef{side: side, price: price}
	}
	return trades, nil
}

// Cancel removes a resting order. Returns whether the id was resting;
// cancelling an unknown id is a no-op.
func (b *Book) Cancel(id uint64) bool {
	ref, ok := b.index[id]
	if !ok {
		return false
	}
	if _, ok := b.side(ref.side).remove(ref.price, id); !ok {
		return false
	}
	delete(b.index, id)
	return true
}

// BestBuy returns the best bid price and its total resting quantity.
func (b *Book) BestBuy() (price, quantity uint64, ok bool) {
	level, ok := b.bids.best()
	if !ok {
		return 0, 0, false
	}
	return level.Price, level.TotalQuantity, true
}

// BestSell returns the best ask price and its total resting quantity.
func (b *Book) BestSell() (price, quantity uint64, ok bool) {
	level, ok := b.asks.best()
	if !ok {
		return 0, 0, false
	}
	return level.Price, level.TotalQuantity, true
}

// Mid is the arithmetic mean of the best bid and ask, defined only when
// both sides have resting orders.
func (b *Book) Mid() (float64, bool) {
	bid, _, bidOk := b.BestBuy()
	ask, _, askOk := b.BestSell()
	if !bidOk || !askOk {
		return 0, false
	}
	return (float64(bid) + float64(ask)) / 2, true
}

// LastTradePrice returns the most recent fill price, for the fair-price
// fallback when the book is one-sided.
func (b *Book) LastTradePrice() (uint64, bool) {
	return b.lastTrade, b.lastTrade != 0
}

// Depth returns the top maxLevels levels of one side in priority order.
func (b *Book) Depth(side common.Side, maxLevels int) []Level {
	return b.side(side).depth(maxLevels)
}

// Resting reports whether an id is currently resting in the book.
func (b *Book) Resting(id uint64) bool {
	_, ok := b.index[id]
	return ok
}

// Orders reports the number of resting orders across both ladders.
func (b *Book) Orders() int {
	return len(b.index)
}
