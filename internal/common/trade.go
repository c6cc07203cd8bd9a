package common

import (
	"fmt"
	"time"
)

// Trade records a single fill between a resting maker order and the
// incoming taker order that crossed it. Price is always the maker's resting
// price. Trades are emitted from the placement call and never retained by
// the book.
type Trade struct {
	MakerID   uint64
	TakerID   uint64
	Price     uint64
	Quantity  uint64
	Seq       uint64
	Timestamp time.Time
}

func (t Trade) String() string {
	return fmt.Sprintf("trade{maker=%d taker=%d %d@%d seq=%d}",
		t.MakerID, t.TakerID, t.Quantity, t.Price, t.Seq)
}
