package perp

import (
	"math"
	"testing"

	"gungnir/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openLong(l *Ledger, trader string, entry, size uint64, margin float64) {
	l.Open(trader, 10, margin)
	l.ApplyFill(trader, common.Buy, entry, size, true)
}

func TestBreachedUsesEpsilon(t *testing.T) {
	fund := NewInsuranceFund(0)
	q := NewLiquidator(0.005, fund)
	p := &Position{Direction: Long, Size: 10, Entry: 100, Margin: 100}

	liq := p.LiquidationPrice(0.005)
	assert.False(t, q.Breached(p, liq), "sitting exactly on the line must not thrash")
	assert.False(t, q.Breached(p, liq+1))
	assert.True(t, q.Breached(p, liq-0.1))
}

func TestScanQueuesBreachedOnce(t *testing.T) {
	fund := NewInsuranceFund(0)
	q := NewLiquidator(0.005, fund)
	l := NewLedger(0, 0)
	openLong(l, "ada", 100, 10, 100)

	added := q.Scan(l, 80)
	require.Len(t, added, 1)
	assert.Equal(t, "ada", added[0].TraderID)
	assert.Equal(t, common.Sell, added[0].Side)
	assert.Equal(t, uint64(10), added[0].Quantity)
	assert.Equal(t, uint64(1), added[0].Price, "forced sell prices at the floor")

	assert.Empty(t, q.Scan(l, 80), "already queued traders are not re-added")

	fc, ok := q.Next()
	require.True(t, ok)
	assert.Equal(t, "ada", fc.TraderID)
	_, ok = q.Next()
	assert.False(t, ok)
}

func TestScanSkipsHealthyAndFlat(t *testing.T) {
	fund := NewInsuranceFund(0)
	q := NewLiquidator(0.005, fund)
	l := NewLedger(0, 0)
	openLong(l, "healthy", 100, 10, 100)
	l.Open("flat", 10, 100)

	assert.Empty(t, q.Scan(l, 99))
}

func TestForcedCloseForShortBuysAtCeiling(t *testing.T) {
	fund := NewInsuranceFund(0)
	q := NewLiquidator(0.005, fund)
	l := NewLedger(0, 0)
	l.Open("grace", 10, 100)
	l.ApplyFill("grace", common.Sell, 100, 10, true)

	added := q.Scan(l, 120)
	require.Len(t, added, 1)
	assert.Equal(t, common.Buy, added[0].Side)
	assert.Equal(t, uint64(math.MaxUint64), added[0].Price)
}

func TestSettleSeizesResidualMargin(t *testing.T) {
	fund := NewInsuranceFund(1000)
	q := NewLiquidator(0.005, fund)
	l := NewLedger(0, 0)
	l.Open("ada", 10, 40)

	result := q.Settle(l, "ada", 0)
	assert.InDelta(t, 40, result.SeizedMargin, 1e-9)
	assert.Zero(t, result.Socialized)
	assert.InDelta(t, 1040, fund.Balance(), 1e-9)

	p, _ := l.Position("ada")
	assert.Zero(t, p.Margin)
}

func TestSettleDrawsShortfallFromFund(t *testing.T) {
	fund := NewInsuranceFund(30)
	q := NewLiquidator(0.005, fund)
	l := NewLedger(0, 0)
	l.Open("ada", 10, 0)

	result := q.Settle(l, "ada", 20)
	assert.InDelta(t, 20, result.Shortfall, 1e-9)
	assert.Zero(t, result.Socialized)
	assert.InDelta(t, 10, fund.Balance(), 1e-9)
}

func TestSettleSocializesBeyondFund(t *testing.T) {
	fund := NewInsuranceFund(5)
	q := NewLiquidator(0.005, fund)
	l := NewLedger(0, 0)
	l.Open("ada", 10, 0)

	result := q.Settle(l, "ada", 20)
	assert.InDelta(t, 15, result.Socialized, 1e-9)
	assert.Zero(t, fund.Balance())
}

func TestAbandonAllowsRequeue(t *testing.T) {
	fund := NewInsuranceFund(0)
	q := NewLiquidator(0.005, fund)
	l := NewLedger(0, 0)
	openLong(l, "ada", 100, 10, 100)

	require.Len(t, q.Scan(l, 80), 1)
	q.Next()
	q.Abandon("ada")
	assert.Len(t, q.Scan(l, 80), 1, "abandoned traders are scanned again")
}

func TestInsuranceFund(t *testing.T) {
	f := NewInsuranceFund(100)

	f.Credit(50)
	assert.InDelta(t, 150, f.Balance(), 1e-9)

	assert.Zero(t, f.Debit(150))
	assert.Zero(t, f.Balance())

	assert.InDelta(t, 25, f.Debit(25), 1e-9, "empty fund returns the full shortfall")
}
