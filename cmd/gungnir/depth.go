package main

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"gungnir/internal/book"
	"gungnir/internal/common"

	"github.com/rs/zerolog/log"
)

const (
	depthBasePrice = 10_000
	depthLevels    = 10
)

// runDepth drives a book with random limit-order flow and repaints the top
// of both ladders twice a second.
func runDepth(ctx context.Context) error {
	b := book.New()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	var nextID uint64

	// Seed both sides around the base price.
	for i := 0; i < 40; i++ {
		nextID++
		offset := uint64(rng.Intn(50)) + 1
		qty := uint64(rng.Intn(90)) + 10
		if i%2 == 0 {
			b.PlaceOrder(common.Buy, depthBasePrice-offset, qty, nextID)
		} else {
			b.PlaceOrder(common.Sell, depthBasePrice+offset, qty, nextID)
		}
	}

	render := time.NewTicker(500 * time.Millisecond)
	defer render.Stop()
	flow := time.NewTicker(50 * time.Millisecond)
	defer flow.Stop()

	log.Info().Msg("depth view running, ctrl-c to exit")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-flow.C:
			nextID++
			side := common.Buy
			price := depthBasePrice - uint64(rng.Intn(60)) + 30
			if rng.Intn(2) == 0 {
				side = common.Sell
			}
			qty := uint64(rng.Intn(90)) + 10
			if _, err := b.PlaceOrder(side, price, qty, nextID); err != nil {
				log.Error().Err(err).Msg("placement rejected")
			}
		case <-render.C:
			paintDepth(b)
		}
	}
}

func paintDepth(b *book.Book) {
	fmt.Print("\033[H\033[2J")
	fmt.Printf("%12s %12s | %-12s %-12s\n", "BID QTY", "BID", "ASK", "ASK QTY")

	bids := b.Depth(common.Buy, depthLevels)
	asks := b.Depth(common.Sell, depthLevels)
	for i := 0; i < depthLevels; i++ {
		var row [4]string
		if i < len(bids) {
			row[0] = fmt.Sprintf("%d", bids[i].TotalQuantity)
			row[1] = fmt.Sprintf("%d", bids[i].Price)
		}
		if i < len(asks) {
			row[2] = fmt.Sprintf("%d", asks[i].Price)
			row[3] = fmt.Sprintf("%d", asks[i].TotalQuantity)
		}
		fmt.Printf("%12s %12s | %-12s %-12s\n", row[0], row[1], row[2], row[3])
	}
	if mid, ok := b.Mid(); ok {
		fmt.Printf("\nmid: %.1f  resting orders: %d\n", mid, b.Orders())
	}
}
