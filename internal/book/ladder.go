package book

import (
	"gungnir/internal/common"

	"github.com/tidwall/btree"
)

// PriceLevel is a FIFO queue of resting orders at one price. Orders are
// appended at ingress and consumed from the front, which is what gives the
// book time priority within a level. TotalQuantity is maintained on every
// mutation so depth queries never walk the queue.
type PriceLevel struct {
	Price         uint64
	Orders        []*common.Order
	TotalQuantity uint64
}

// ladder is one side of the book: price levels sorted best-first. The two
// sides differ only in their less function, so bids and asks share this
// structure.
type ladder struct {
	levels *btree.BTreeG[*PriceLevel]
}

// newBidLadder sorts greatest price first.
func newBidLadder() ladder {
	return ladder{levels: btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.Price > b.Price
	})}
}

// newAskLadder sorts least price first.
func newAskLadder() ladder {
	return ladder{levels: btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.Price < b.Price
	})}
}

// append adds an order to the back of its price level's queue, creating the
// level if it does not exist yet.
func (l *ladder) append(order *common.Order) {
	level, ok := l.levels.GetMut(&PriceLevel{Price: order.Price})
	if ok {
		level.Orders = append(level.Orders, order)
		level.TotalQuantity += order.Quantity
		return
	}
	l.levels.Set(&PriceLevel{
		Price:         order.Price,
		Orders:        []*common.Order{order},
		TotalQuantity: order.Quantity,
	})
}

// best returns the best level without removing it. Levels are deleted the
// moment they empty, so a returned level always has TotalQuantity > 0.
func (l *ladder) best() (*PriceLevel, bool) {
	return l.levels.MinMut()
}

// dropEmpty removes the level from the tree if its queue has drained.
func (l *ladder) dropEmpty(level *PriceLevel) {
	if len(level.Orders) == 0 {
		l.levels.Delete(level)
	}
}

// remove cancels a resting order by id. The scan within the level is linear;
// cancellation is the cold path and the id index only narrows the search to
// one level.
func (l *ladder) remove(price, id uint64) (*common.Order, bool) {
	level, ok := l.levels.GetMut(&PriceLevel{Price: price})
	if !ok {
		return nil, false
	}
	for i, order := range level.Orders {
		if order.ID != id {
			continue
		}
		level.Orders = append(level.Orders[:i], level.Orders[i+1:]...)
		level.TotalQuantity -= order.Quantity
		l.dropEmpty(level)
		return order, true
	}
	return nil, false
}

// Level is a depth snapshot entry.
type Level struct {
	Price         uint64
	TotalQuantity uint64
}

// depth returns the top maxLevels levels in priority order.
func (l *ladder) depth(maxLevels int) []Level {
	if maxLevels <= 0 {
		return nil
	}
	out := make([]Level, 0, maxLevels)
	l.levels.Scan(func(level *PriceLevel) bool {
		out = append(out, Level{Price: level.Price, TotalQuantity: level.TotalQuantity})
		return len(out) < maxLevels
	})
	return out
}

func (l *ladder) len() int {
	return l.levels.Len()
}
