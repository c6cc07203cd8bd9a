package perp

import (
	"fmt"
	"math"

	"gungnir/internal/common"

	"github.com/google/uuid"
)

type Direction int

const (
	Flat Direction = iota
	Long
	Short
)

func (d Direction) String() string {
	switch d {
	case Long:
		return "long"
	case Short:
		return "short"
	}
	return "flat"
}

// directionOf maps a fill side to the position direction it pushes towards.
func directionOf(side common.Side) Direction {
	if side == common.Buy {
		return Long
	}
	return Short
}

// Position is one trader's open exposure on the instrument. Entry is the
// size-weighted average price of the opening fills. Margin is collateral in
// price units and never goes negative; losses beyond it surface as a
// bankruptcy shortfall on the fill effect.
type Position struct {
	TraderID   string
	PositionID uuid.UUID
	Direction  Direction
	Size       uint64
	Entry      float64
	Margin     float64
	Leverage   float64
}

func (p *Position) String() string {
	return fmt.Sprintf("position{%s %s size=%d entry=%.2f margin=%.2f}",
		p.TraderID, p.Direction, p.Size, p.Entry, p.Margin)
}

func (p *Position) Notional(mark float64) float64 {
	return float64(p.Size) * mark
}

func (p *Position) UnrealizedPnL(mark float64) float64 {
	switch p.Direction {
	case Long:
		return (mark - p.Entry) * float64(p.Size)
	case Short:
		return (p.Entry - mark) * float64(p.Size)
	}
	return 0
}

// MarginRatio is (margin + unrealized PnL) / notional at the given mark.
// A flat position has no notional and reports +Inf, which never trips the
// maintenance check.
func (p *Position) MarginRatio(mark float64) float64 {
	notional := p.Notional(mark)
	if notional == 0 {
		return math.Inf(1)
	}
	return (p.Margin + p.UnrealizedPnL(mark)) / notional
}

// LiquidationPrice is the mark at which remaining margin equals the
// maintenance requirement on the position's notional.
func (p *Position) LiquidationPrice(maintenance float64) float64 {
	if p.Size == 0 {
		return 0
	}
	s := float64(p.Size)
	switch p.Direction {
	case Long:
		return p.Entry - (p.Margin-maintenance*s*p.Entry)/((1-maintenance)*s)
	case Short:
		return p.Entry + (p.Margin-maintenance*s*p.Entry)/((1+maintenance)*s)
	}
	return 0
}

// FillEffect summarizes what one fill did to a position.
type FillEffect struct {
	Closed    uint64  // lots closed against the prior direction
	Opened    uint64  // lots opened (same direction, or the flip residual)
	Realized  float64 // PnL booked to margin on the closed lots, fee-exclusive
	Fee       float64 // signed fee applied to margin (positive = charged)
	Shortfall float64 // loss the margin could not absorb
	Flipped   bool
}

// Ledger tracks per-trader positions and open interest. It consumes trades
// one counterparty at a time; the exchange calls it once per tracked owner
// of each fill.
type Ledger struct {
	takerFee    float64
	makerRebate float64

	positions map[string]*Position
	longOI    uint64
	shortOI   uint64
}

func NewLedger(takerFee, makerRebate float64) *Ledger {
	return &Ledger{
		takerFee:    takerFee,
		makerRebate: makerRebate,
		positions:   make(map[string]*Position),
	}
}

// Open registers a position shell for a trader with its collateral. Fills
// then shape direction, size and entry. Margin is the notional at the
// reference price divided by leverage.
func (l *Ledger) Open(trader string, leverage, margin float64) *Position {
	p := &Position{
		TraderID:   trader,
		PositionID: uuid.New(),
		Direction:  Flat,
		Leverage:   leverage,
		Margin:     margin,
	}
	l.positions[trader] = p
	return p
}

func (l *Ledger) Position(trader string) (*Position, bool) {
	p, ok := l.positions[trader]
	return p, ok
}

// Each visits every tracked position, flat ones included.
func (l *Ledger) Each(fn func(*Position)) {
	for _, p := range l.positions {
		fn(p)
	}
}

// OpenInterest returns total long and short lots across tracked positions.
func (l *Ledger) OpenInterest() (long, short uint64) {
	return l.longOI, l.shortOI
}

// AdjustMargin applies a signed collateral delta, clamped at zero. Returns
// the amount the clamp swallowed.
func (l *Ledger) AdjustMargin(trader string, delta float64) float64 {
	p, ok := l.positions[trader]
	if !ok {
		return 0
	}
	p.Margin += delta
	if p.Margin < 0 {
		short := -p.Margin
		p.Margin = 0
		return short
	}
	return 0
}

// ApplyFill books one side of a trade for a tracked trader. Fills in the
// direction of the position grow it at the size-weighted average entry;
// opposing fills reduce it, realizing PnL into margin, and flip through flat
// when the fill exceeds the open size.
func (l *Ledger) ApplyFill(trader string, side common.Side, price, quantity uint64, taker bool) FillEffect {
	p, ok := l.positions[trader]
	if !ok {
		return FillEffect{}
	}

	px := float64(price)
	var effect FillEffect

	l.dropOI(p)
	fillDir := directionOf(side)
	if p.Direction == Flat || p.Direction == fillDir {
		l.increase(p, fillDir, px, quantity)
		effect.Opened = quantity
	} else {
		effect = l.reduce(p, px, quantity)
	}
	l.addOI(p)

	effect.Fee = l.fee(px, quantity, taker)
	effect.Shortfall += l.AdjustMargin(trader, -effect.Fee)
	return effect
}

func (l *Ledger) increase(p *Position, dir Direction, px float64, quantity uint64) {
	newSize := p.Size + quantity
	p.Entry = (p.Entry*float64(p.Size) + px*float64(quantity)) / float64(newSize)
	p.Size = newSize
	p.Direction = dir
}

func (l *Ledger) reduce(p *Position, px float64, quantity uint64) FillEffect {
	closed := min(quantity, p.Size)

	realized := (px - p.Entry) * float64(closed)
	if p.Direction == Short {
		realized = -realized
	}
	shortfall := l.AdjustMargin(p.TraderID, realized)

	effect := FillEffect{Closed: closed, Realized: realized, Shortfall: shortfall}
	p.Size -= closed

	if residual := quantity - closed; residual > 0 {
		// The fill blew through the position: the leftover lots open the
		// opposite side at the fill price.
		effect.Flipped = true
		effect.Opened = residual
		p.Direction = opposite(p.Direction)
		p.Size = residual
		p.Entry = px
	} else if p.Size == 0 {
		p.Direction = Flat
		p.Entry = 0
	}
	return effect
}

// fee returns the signed fee for a fill: takers pay, makers are rebated.
func (l *Ledger) fee(px float64, quantity uint64, taker bool) float64 {
	notional := px * float64(quantity)
	if taker {
		return l.takerFee * notional
	}
	return -l.makerRebate * notional
}

func (l *Ledger) dropOI(p *Position) {
	switch p.Direction {
	case Long:
		l.longOI -= p.Size
	case Short:
		l.shortOI -= p.Size
	}
}

func (l *Ledger) addOI(p *Position) {
	switch p.Direction {
	case Long:
		l.longOI += p.Size
	case Short:
		l.shortOI += p.Size
	}
}

func opposite(d Direction) Direction {
	switch d {
	case Long:
		return Short
	case Short:
		return Long
	}
	return Flat
}
