package book

import (
	"time"

	"gungnir/internal/common"
)

// crosses reports whether the incoming order's limit reaches the best
// opposing price: best_ask <= limit for a buy, best_bid >= limit for a sell.
func crosses(side common.Side, limit, best uint64) bool {
	if side == common.Buy {
		return best <= limit
	}
	return best >= limit
}

// sweep matches the incoming order against the opposing ladder while prices
// cross, consuming resting orders front-first at each best level. Trades
// execute at the maker's resting price and are returned in execution order:
// best price first, oldest order first within a level. On return the
// incoming order's Quantity holds the unfilled remainder.
func (b *Book) sweep(incoming *common.Order) []common.Trade {
	opposing := b.side(incoming.Side.Opposite())

	var trades []common.Trade
	now := time.Now()
	for incoming.Quantity > 0 {
		level, ok := opposing.best()
		if !ok || !crosses(incoming.Side, incoming.Price, level.Price) {
			break
		}

		for incoming.Quantity > 0 && len(level.Orders) > 0 {
			maker := level.Orders[0]
			fill := min(incoming.Quantity, maker.Quantity)

			incoming.Quantity -= fill
			maker.Quantity -= fill
			level.TotalQuantity -= fill

			b.tradeSeq++
			b.lastTrade = maker.Price
			trades = append(trades, common.Trade{
				MakerID:   maker.ID,
				TakerID:   incoming.ID,
				Price:     maker.Price,
				Quantity:  fill,
				Seq:       b.tradeSeq,
				Timestamp: now,
			})

			if maker.Quantity == 0 {
				level.Orders = level.Orders[1:]
				delete(b.index, maker.ID)
			}
		}

		opposing.dropEmpty(level)
	}
	return trades
}
