package exchange

import (
	"errors"
	"time"

	"gungnir/internal/book"
	"gungnir/internal/common"
	"gungnir/internal/config"
	"gungnir/internal/metrics"
	"gungnir/internal/oracle"
	"gungnir/internal/perp"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

var (
	ErrUnknownOrder       = errors.New("unknown order")
	ErrInsufficientMargin = errors.New("insufficient margin")
	ErrOracleStale        = errors.New("stale oracle sample")
	ErrNoReferencePrice   = errors.New("no reference price for position sizing")
)

// Internal order ids for derivatives-layer orders live in the top half of
// the id space so they cannot collide with client-supplied ids.
const internalIDBase = uint64(1) << 63

// Exchange owns one instrument's pipeline: the book, the position ledger,
// the mark estimator, the funding controller and the liquidator. All
// methods mutate state and must run on the owning goroutine; the Runtime
// serializes callers onto it.
type Exchange struct {
	cfg config.Engine
	log zerolog.Logger
	met *metrics.Metrics

	book    *book.Book
	ledger  *perp.Ledger
	mark    *perp.Estimator
	funding *perp.FundingController
	liq     *perp.Liquidator
	fund    *perp.InsuranceFund

	// Tracked book orders: id -> owning trader. Only derivatives-layer
	// orders have owners; plain book orders fill without position effects.
	owners map[uint64]string

	nextInternal uint64
	lastOracleTS uint64
}

func New(cfg config.Engine, log zerolog.Logger, reg prometheus.Registerer) *Exchange {
	fund := perp.NewInsuranceFund(cfg.InsuranceSeed)
	return &Exchange{
		cfg:     cfg,
		log:     log,
		met:     metrics.New(reg),
		book:    book.New(),
		ledger:  perp.NewLedger(cfg.TakerFee, cfg.MakerRebate),
		mark:    perp.NewEstimator(cfg.EMAWindow),
		funding: perp.NewFundingController(cfg.FundingCap, cfg.FundingPeriod.Std()),
		liq:     perp.NewLiquidator(cfg.MaintenanceMargin, fund),
		fund:    fund,
		owners:  make(map[uint64]string),
	}
}

// PlaceOrder submits a plain book order. Trades fan out to the ledger for
// any tracked maker, then the liquidation queue drains before the call
// returns.
func (x *Exchange) PlaceOrder(side common.Side, price, quantity, id uint64) ([]common.Trade, error) {
	trades, err := x.book.PlaceOrder(side, price, quantity, id)
	if err != nil {
		x.met.OrdersTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}
	x.met.OrdersTotal.WithLabelValues("ok").Inc()

	shortfalls := x.applyTrades(trades, side, "")
	x.absorb(shortfalls)
	if mark := x.mark.Mark(); mark > 0 {
		x.liq.Scan(x.ledger, mark)
		x.drainLiquidations(mark)
	}
	x.updateBookGauges()
	return trades, nil
}

// CancelOrder removes a resting order, surfacing ErrUnknownOrder for ids
// that are not resting.
func (x *Exchange) CancelOrder(id uint64) error {
	if !x.book.Cancel(id) {
		return ErrUnknownOrder
	}
	delete(x.owners, id)
	x.updateBookGauges()
	return nil
}

// OpenPosition translates a derivatives-layer request into a book order
// limited at the best opposing price: it crosses that level and any
// remainder rests there as a tracked maker order. Collateral is notional at
// the limit over leverage; leverage beyond the initial-margin bound is
// rejected before the order touches the book.
func (x *Exchange) OpenPosition(trader string, dir perp.Direction, size uint64, leverage float64) (uuid.UUID, error) {
	if size == 0 || leverage <= 0 || (dir != perp.Long && dir != perp.Short) {
		return uuid.Nil, book.ErrInvalidOrder
	}
	if leverage > 1/x.cfg.InitialMargin {
		return uuid.Nil, ErrInsufficientMargin
	}

	limit, ok := x.bestOpposing(dir)
	if !ok {
		return uuid.Nil, ErrNoReferencePrice
	}

	p, ok := x.ledger.Position(trader)
	if !ok {
		p = x.ledger.Open(trader, leverage, float64(limit)*float64(size)/leverage)
	} else {
		x.ledger.AdjustMargin(trader, float64(limit)*float64(size)/leverage)
	}

	side := common.Sell
	if dir == perp.Long {
		side = common.Buy
	}

	id := x.internalID()
	x.owners[id] = trader
	trades, err := x.book.PlaceOrder(side, limit, size, id)
	if err != nil {
		delete(x.owners, id)
		return uuid.Nil, err
	}
	x.met.OrdersTotal.WithLabelValues("ok").Inc()
	if !x.book.Resting(id) {
		delete(x.owners, id)
	}

	shortfalls := x.applyTrades(trades, side, trader)
	x.absorb(shortfalls)
	if mark := x.mark.Mark(); mark > 0 {
		x.liq.Scan(x.ledger, mark)
		x.drainLiquidations(mark)
	}
	x.updateBookGauges()

	x.log.Debug().
		Str("trader", trader).
		Stringer("direction", dir).
		Uint64("size", size).
		Int("fills", len(trades)).
		Msg("position order placed")
	return p.PositionID, nil
}

// Tick advances the mark from the oracle sample and the book's fair price,
// settles funding when due, and runs the liquidation scan. A stale or
// low-confidence sample skips the whole tick.
func (x *Exchange) Tick(now time.Time, sample oracle.Sample) (Events, error) {
	if sample.IndexPrice <= 0 ||
		sample.Confidence < x.cfg.MinConfidence ||
		(x.lastOracleTS != 0 && sample.Timestamp <= x.lastOracleTS) {
		x.met.TicksSkipped.Inc()
		x.log.Warn().
			Float64("index", sample.IndexPrice).
			Float64("confidence", sample.Confidence).
			Uint64("timestamp", sample.Timestamp).
			Msg("oracle sample rejected, tick skipped")
		return Events{Skipped: true}, ErrOracleStale
	}
	x.lastOracleTS = sample.Timestamp

	fair, fairOK := x.fairPrice()
	events := Events{Mark: x.mark.Update(fair, fairOK, sample.IndexPrice)}
	x.met.MarkPrice.Set(events.Mark.Price)

	if x.funding.Due(now) {
		events.FundingSettled = true
		events.Funding, events.Payments = x.funding.Settle(
			now, events.Mark.FundingBasis, sample.IndexPrice, events.Mark.Price, x.ledger)
		x.met.FundingSettlements.Inc()
	}

	x.liq.Scan(x.ledger, events.Mark.Price)
	events.Liquidations = x.drainLiquidations(events.Mark.Price)
	for _, r := range events.Liquidations {
		if r.Socialized > 0 {
			events.SocializedLoss = true
		}
	}

	x.updateBookGauges()
	x.updatePerpGauges()
	return events, nil
}

// fairPrice is the mid when both sides rest, else the last trade.
func (x *Exchange) fairPrice() (float64, bool) {
	if mid, ok := x.book.Mid(); ok {
		return mid, true
	}
	if last, ok := x.book.LastTradePrice(); ok {
		return float64(last), true
	}
	return 0, false
}

// applyTrades books each fill for its tracked counterparties and returns
// the bankruptcy shortfalls accumulated per trader.
func (x *Exchange) applyTrades(trades []common.Trade, takerSide common.Side, taker string) map[string]float64 {
	if len(trades) == 0 {
		return nil
	}
	shortfalls := make(map[string]float64)
	for _, t := range trades {
		x.met.TradesTotal.Inc()
		x.met.TradeVolume.Add(float64(t.Quantity))

		if maker, ok := x.owners[t.MakerID]; ok {
			eff := x.ledger.ApplyFill(maker, takerSide.Opposite(), t.Price, t.Quantity, false)
			if eff.Shortfall > 0 {
				shortfalls[maker] += eff.Shortfall
			}
			if !x.book.Resting(t.MakerID) {
				delete(x.owners, t.MakerID)
			}
		}
		if taker != "" {
			eff := x.ledger.ApplyFill(taker, takerSide, t.Price, t.Quantity, true)
			if eff.Shortfall > 0 {
				shortfalls[taker] += eff.Shortfall
			}
		}
	}
	return shortfalls
}

// drainLiquidations routes queued forced closes through the book one at a
// time, after the placement that triggered them has fully unwound. Closes
// can breach further positions, so the scan reruns until the queue dries.
func (x *Exchange) drainLiquidations(mark float64) []perp.LiquidationResult {
	var results []perp.LiquidationResult
	for {
		fc, ok := x.liq.Next()
		if !ok {
			return results
		}

		p, ok := x.ledger.Position(fc.TraderID)
		if !ok || p.Direction == perp.Flat {
			x.liq.Abandon(fc.TraderID)
			continue
		}

		id := x.internalID()
		x.owners[id] = fc.TraderID
		// Close the size the position holds now, not the size it held when
		// queued; fills in between must not turn the close into a flip.
		trades, err := x.book.PlaceOrder(fc.Side, fc.Price, p.Size, id)
		if err != nil {
			delete(x.owners, id)
			x.liq.Abandon(fc.TraderID)
			continue
		}
		// Forced closes never rest: the far-priced remainder dies if the
		// opposing side ran dry.
		x.book.Cancel(id)
		delete(x.owners, id)

		shortfalls := x.applyTrades(trades, fc.Side, fc.TraderID)
		own := shortfalls[fc.TraderID]
		delete(shortfalls, fc.TraderID)
		x.absorb(shortfalls)

		if p.Direction == perp.Flat {
			result := x.liq.Settle(x.ledger, fc.TraderID, own)
			results = append(results, result)
			x.met.LiquidationsTotal.Inc()
			x.log.Info().
				Str("trader", fc.TraderID).
				Float64("seized", result.SeizedMargin).
				Float64("shortfall", result.Shortfall).
				Float64("socialized", result.Socialized).
				Msg("position liquidated")
			// A completed close moved prices and positions; rescan for
			// cascades. No rescan after an abandonment, or a dry book
			// would spin the drain forever.
			x.liq.Scan(x.ledger, mark)
		} else {
			// The book ran dry before the position flattened; the next
			// scan (on a later placement or tick) picks it up again.
			x.liq.Abandon(fc.TraderID)
			x.log.Warn().
				Str("trader", fc.TraderID).
				Uint64("remaining", p.Size).
				Msg("forced close partially filled")
		}
	}
}

// absorb draws organic bankruptcy shortfalls (losses realized on fills
// outside a liquidation) from the insurance fund.
func (x *Exchange) absorb(shortfalls map[string]float64) {
	for trader, amount := range shortfalls {
		if uncovered := x.fund.Debit(amount); uncovered > 0 {
			x.log.Error().
				Str("trader", trader).
				Float64("uncovered", uncovered).
				Msg("insurance fund exhausted, loss socialized")
		}
	}
}

// bestOpposing is the price a new position order crosses against: the best
// ask for a long, the best bid for a short.
func (x *Exchange) bestOpposing(dir perp.Direction) (uint64, bool) {
	if dir == perp.Long {
		ask, _, ok := x.book.BestSell()
		return ask, ok
	}
	bid, _, ok := x.book.BestBuy()
	return bid, ok
}

func (x *Exchange) internalID() uint64 {
	x.nextInternal++
	return internalIDBase | x.nextInternal
}

func (x *Exchange) updateBookGauges() {
	bid, _, bidOk := x.book.BestBuy()
	ask, _, askOk := x.book.BestSell()
	if bidOk {
		x.met.BestBid.Set(float64(bid))
	} else {
		x.met.BestBid.Set(0)
	}
	if askOk {
		x.met.BestAsk.Set(float64(ask))
	} else {
		x.met.BestAsk.Set(0)
	}
}

func (x *Exchange) updatePerpGauges() {
	long, short := x.ledger.OpenInterest()
	x.met.OpenInterest.WithLabelValues("long").Set(float64(long))
	x.met.OpenInterest.WithLabelValues("short").Set(float64(short))
	x.met.InsuranceFund.Set(x.fund.Balance())
}

// Inspection passthroughs.

func (x *Exchange) BestBuy() (uint64, uint64, bool)  { return x.book.BestBuy() }
func (x *Exchange) BestSell() (uint64, uint64, bool) { return x.book.BestSell() }
func (x *Exchange) Mid() (float64, bool)             { return x.book.Mid() }

func (x *Exchange) Depth(side common.Side, maxLevels int) []book.Level {
	return x.book.Depth(side, maxLevels)
}

func (x *Exchange) Position(trader string) (*perp.Position, bool) {
	return x.ledger.Position(trader)
}

func (x *Exchange) MarkState() perp.MarkState       { return x.mark.State() }
func (x *Exchange) FundingState() perp.FundingState { return x.funding.State() }
func (x *Exchange) InsuranceBalance() float64       { return x.fund.Balance() }
