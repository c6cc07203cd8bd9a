package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's Prometheus instruments. Construct one per
// exchange with its own registerer so tests can use isolated registries.
type Metrics struct {
	OrdersTotal        *prometheus.CounterVec
	TradesTotal        prometheus.Counter
	TradeVolume        prometheus.Counter
	LiquidationsTotal  prometheus.Counter
	FundingSettlements prometheus.Counter
	TicksSkipped       prometheus.Counter

	BestBid       prometheus.Gauge
	BestAsk       prometheus.Gauge
	MarkPrice     prometheus.Gauge
	OpenInterest  *prometheus.GaugeVec
	InsuranceFund prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		OrdersTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gungnir_orders_total",
			Help: "Orders placed, by result.",
		}, []string{"result"}),
		TradesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "gungnir_trades_total",
			Help: "Trades executed.",
		}),
		TradeVolume: factory.NewCounter(prometheus.CounterOpts{
			Name: "gungnir_trade_volume_lots_total",
			Help: "Lots traded.",
		}),
		LiquidationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "gungnir_liquidations_total",
			Help: "Positions force-closed.",
		}),
		FundingSettlements: factory.NewCounter(prometheus.CounterOpts{
			Name: "gungnir_funding_settlements_total",
			Help: "Funding intervals settled.",
		}),
		TicksSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "gungnir_ticks_skipped_total",
			Help: "Oracle ticks skipped as stale or low confidence.",
		}),
		BestBid: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gungnir_best_bid_ticks",
			Help: "Best bid price in ticks, 0 when the side is empty.",
		}),
		BestAsk: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gungnir_best_ask_ticks",
			Help: "Best ask price in ticks, 0 when the side is empty.",
		}),
		MarkPrice: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gungnir_mark_price",
			Help: "Current mark price.",
		}),
		OpenInterest: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gungnir_open_interest_lots",
			Help: "Open interest in lots, by side.",
		}, []string{"side"}),
		InsuranceFund: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gungnir_insurance_fund_balance",
			Help: "Insurance fund balance.",
		}),
	}
}
