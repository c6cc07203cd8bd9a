package perp

import (
	"testing"

	"gungnir/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger() *Ledger {
	return NewLedger(0, 0)
}

func TestOpeningFillsAverageEntry(t *testing.T) {
	l := newTestLedger()
	l.Open("ada", 10, 200)

	l.ApplyFill("ada", common.Buy, 100, 10, true)
	l.ApplyFill("ada", common.Buy, 110, 10, true)

	p, ok := l.Position("ada")
	require.True(t, ok)
	assert.Equal(t, Long, p.Direction)
	assert.Equal(t, uint64(20), p.Size)
	assert.InDelta(t, 105, p.Entry, 1e-9)

	long, short := l.OpenInterest()
	assert.Equal(t, uint64(20), long)
	assert.Zero(t, short)
}

func TestReducingFillRealizesPnL(t *testing.T) {
	l := newTestLedger()
	l.Open("ada", 10, 100)
	l.ApplyFill("ada", common.Buy, 100, 10, true)

	effect := l.ApplyFill("ada", common.Sell, 110, 4, true)
	assert.Equal(t, uint64(4), effect.Closed)
	assert.InDelta(t, 40, effect.Realized, 1e-9)
	assert.Zero(t, effect.Shortfall)

	p, _ := l.Position("ada")
	assert.Equal(t, uint64(6), p.Size)
	assert.InDelta(t, 100, p.Entry, 1e-9, "entry unchanged on reduce")
	assert.InDelta(t, 140, p.Margin, 1e-9)
}

func TestShortRealizationSign(t *testing.T) {
	l := newTestLedger()
	l.Open("grace", 10, 100)
	l.ApplyFill("grace", common.Sell, 100, 10, true)

	effect := l.ApplyFill("grace", common.Buy, 90, 10, true)
	assert.InDelta(t, 100, effect.Realized, 1e-9, "short gains when price falls")

	p, _ := l.Position("grace")
	assert.Equal(t, Flat, p.Direction)
	assert.Zero(t, p.Size)
	assert.Zero(t, p.Entry)
}

func TestOversizedFillFlipsPosition(t *testing.T) {
	l := newTestLedger()
	l.Open("ada", 10, 100)
	l.ApplyFill("ada", common.Buy, 100, 10, true)

	effect := l.ApplyFill("ada", common.Sell, 90, 15, true)
	assert.True(t, effect.Flipped)
	assert.Equal(t, uint64(10), effect.Closed)
	assert.Equal(t, uint64(5), effect.Opened)
	assert.InDelta(t, -100, effect.Realized, 1e-9)

	p, _ := l.Position("ada")
	assert.Equal(t, Short, p.Direction)
	assert.Equal(t, uint64(5), p.Size)
	assert.InDelta(t, 90, p.Entry, 1e-9)

	long, short := l.OpenInterest()
	assert.Zero(t, long)
	assert.Equal(t, uint64(5), short)
}

func TestLossBeyondMarginReportsShortfall(t *testing.T) {
	l := newTestLedger()
	l.Open("ada", 10, 50)
	l.ApplyFill("ada", common.Buy, 100, 10, true)

	effect := l.ApplyFill("ada", common.Sell, 90, 10, true)
	assert.InDelta(t, -100, effect.Realized, 1e-9)
	assert.InDelta(t, 50, effect.Shortfall, 1e-9)

	p, _ := l.Position("ada")
	assert.Zero(t, p.Margin, "margin never goes negative")
}

func TestFeesAdjustMargin(t *testing.T) {
	l := NewLedger(0.001, 0.0004)
	l.Open("taker", 10, 100)
	l.Open("maker", 10, 100)

	took := l.ApplyFill("taker", common.Buy, 100, 10, true)
	made := l.ApplyFill("maker", common.Sell, 100, 10, false)

	assert.InDelta(t, 1.0, took.Fee, 1e-9, "taker pays fee on notional")
	assert.InDelta(t, -0.4, made.Fee, 1e-9, "maker receives rebate")

	taker, _ := l.Position("taker")
	maker, _ := l.Position("maker")
	assert.InDelta(t, 99, taker.Margin, 1e-9)
	assert.InDelta(t, 100.4, maker.Margin, 1e-9)
}

func TestLiquidationPriceFormula(t *testing.T) {
	long := &Position{Direction: Long, Size: 10, Entry: 100, Margin: 100}
	assert.InDelta(t, 90.45, long.LiquidationPrice(0.005), 0.01)

	short := &Position{Direction: Short, Size: 10, Entry: 100, Margin: 100}
	assert.InDelta(t, 109.45, short.LiquidationPrice(0.005), 0.01)

	flat := &Position{Direction: Flat}
	assert.Zero(t, flat.LiquidationPrice(0.005))
}

func TestMarginRatio(t *testing.T) {
	p := &Position{Direction: Long, Size: 10, Entry: 100, Margin: 100}

	assert.InDelta(t, 0.1, p.MarginRatio(100), 1e-9)
	// At the liquidation price the ratio meets maintenance.
	assert.InDelta(t, 0.005, p.MarginRatio(p.LiquidationPrice(0.005)), 1e-9)

	flat := &Position{Direction: Flat}
	assert.True(t, flat.MarginRatio(100) > 1, "flat positions never breach")
}

func TestUnrealizedPnL(t *testing.T) {
	long := &Position{Direction: Long, Size: 10, Entry: 100}
	assert.InDelta(t, 50, long.UnrealizedPnL(105), 1e-9)

	short := &Position{Direction: Short, Size: 10, Entry: 100}
	assert.InDelta(t, -50, short.UnrealizedPnL(105), 1e-9)
}

func TestAdjustMarginClampsAtZero(t *testing.T) {
	l := newTestLedger()
	l.Open("ada", 10, 30)

	assert.Zero(t, l.AdjustMargin("ada", -20))
	assert.InDelta(t, 15, l.AdjustMargin("ada", -25), 1e-9)
	assert.Zero(t, l.AdjustMargin("missing", -5))

	p, _ := l.Position("ada")
	assert.Zero(t, p.Margin)
}
