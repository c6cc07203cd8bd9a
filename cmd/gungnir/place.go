package main

import (
	"fmt"

	"gungnir/internal/book"
	"gungnir/internal/common"
)

// runPlace walks through the basic matching behaviors on a fresh book,
// narrating each placement and its fills.
func runPlace() error {
	b := book.New()

	place := func(side common.Side, price, qty, id uint64) {
		trades, err := b.PlaceOrder(side, price, qty, id)
		if err != nil {
			fmt.Printf("place %s %d@%d id=%d -> rejected: %v\n", side, qty, price, id, err)
			return
		}
		fmt.Printf("place %s %d@%d id=%d -> %d trade(s)\n", side, qty, price, id, len(trades))
		for _, t := range trades {
			fmt.Printf("   %s\n", t)
		}
	}

	fmt.Println("-- simple cross")
	place(common.Buy, 10, 100, 1)
	place(common.Sell, 10, 100, 2)

	fmt.Println("-- partial fill rests")
	place(common.Sell, 10, 50, 3)
	place(common.Buy, 10, 100, 4)
	if price, qty, ok := b.BestBuy(); ok {
		fmt.Printf("   best bid now (%d, %d)\n", price, qty)
	}

	fmt.Println("-- time priority within a level")
	place(common.Sell, 20, 30, 5)
	place(common.Sell, 20, 30, 6)
	place(common.Sell, 20, 30, 7)
	place(common.Buy, 20, 70, 8)

	fmt.Println("-- price priority across levels")
	place(common.Sell, 31, 50, 9)
	place(common.Sell, 32, 50, 10)
	place(common.Buy, 32, 100, 11)

	fmt.Println("-- cancellation")
	place(common.Buy, 5, 10, 12)
	fmt.Printf("cancel id=12 -> %v, cancel again -> %v\n", b.Cancel(12), b.Cancel(12))

	return nil
}
