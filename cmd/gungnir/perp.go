package main

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"gungnir/internal/common"
	"gungnir/internal/config"
	"gungnir/internal/exchange"
	"gungnir/internal/oracle"
	"gungnir/internal/perp"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// runPerp wires the full derivatives pipeline against a simulated oracle:
// a handful of traders open leveraged positions, the feed random-walks the
// index, liquidations are logged as they fire, and a status line with mark,
// basis, funding rate, open interest and fund balance prints every second.
func runPerp(ctx context.Context) error {
	cfg := config.Default()
	cfg.TickInterval = config.Duration(250 * time.Millisecond)
	cfg.FundingPeriod = config.Duration(5 * time.Second)
	cfg.InsuranceSeed = 50_000

	x := exchange.New(cfg, log.Logger, prometheus.NewRegistry())
	feed := oracle.NewSimFeed(10_000, 40, time.Now().UnixNano())
	rt := exchange.NewRuntime(x, feed, log.Logger)

	done := make(chan error, 1)
	go func() { done <- rt.Run(ctx) }()

	// Passive liquidity on both sides so forced closes have something to
	// sweep.
	rng := rand.New(rand.NewSource(1))
	var nextID uint64
	rt.Do(func(x *exchange.Exchange) {
		for i := uint64(1); i <= 30; i++ {
			nextID++
			x.PlaceOrder(common.Buy, 10_000-i*10, 200+uint64(rng.Intn(200)), nextID)
			nextID++
			x.PlaceOrder(common.Sell, 10_000+i*10, 200+uint64(rng.Intn(200)), nextID)
		}
	})

	traders := []struct {
		name     string
		dir      perp.Direction
		size     uint64
		leverage float64
	}{
		{"ada", perp.Long, 50, 20},
		{"grace", perp.Short, 40, 10},
		{"edsger", perp.Long, 30, 5},
	}
	rt.Do(func(x *exchange.Exchange) {
		for _, t := range traders {
			if _, err := x.OpenPosition(t.name, t.dir, t.size, t.leverage); err != nil {
				log.Error().Err(err).Str("trader", t.name).Msg("open rejected")
				continue
			}
			p, _ := x.Position(t.name)
			fmt.Printf("%-8s %-5s size=%-4d entry=%-9.1f margin=%-9.1f liq=%.1f\n",
				t.name, t.dir, p.Size, p.Entry, p.Margin,
				p.LiquidationPrice(cfg.MaintenanceMargin))
		}
	})

	status := time.NewTicker(time.Second)
	defer status.Stop()
	for {
		select {
		case <-ctx.Done():
			return <-done
		case err := <-done:
			return err
		case <-status.C:
			rt.Do(func(x *exchange.Exchange) {
				ms := x.MarkState()
				fs := x.FundingState()
				fmt.Printf("mark=%-9.1f index=%-9.1f basis=%-7.2f rate=%+.5f oi=%d/%d fund=%.0f\n",
					ms.Price, ms.IndexPrice, ms.FundingBasis, fs.Rate,
					fs.LongOpenInterest, fs.ShortOpenInterest, x.InsuranceBalance())
			})
		}
	}
}
