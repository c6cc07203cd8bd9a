package perp

import "time"

// FundingState is the controller's view after the latest settlement.
type FundingState struct {
	Rate              float64
	PremiumIndex      float64
	LongOpenInterest  uint64
	ShortOpenInterest uint64
	LastSettledAt     time.Time
}

// FundingPayment is the signed margin delta applied to one trader: positive
// credits the position, negative charges it.
type FundingPayment struct {
	TraderID string
	Amount   float64
}

// FundingController samples the premium on a fixed period and settles the
// resulting cash flows across open positions. Longs pay shorts when the
// rate is positive.
type FundingController struct {
	cap    float64
	period time.Duration
	state  FundingState
}

func NewFundingController(cap float64, period time.Duration) *FundingController {
	return &FundingController{cap: cap, period: period}
}

// Due reports whether a funding interval has elapsed. The first call starts
// the clock without settling.
func (c *FundingController) Due(now time.Time) bool {
	if c.state.LastSettledAt.IsZero() {
		c.state.LastSettledAt = now
		return false
	}
	return now.Sub(c.state.LastSettledAt) >= c.period
}

// Settle computes the clamped funding rate from the running basis and moves
// rate * notional between longs and shorts through the ledger. Margin
// clamping is the ledger's job; funding never fails.
func (c *FundingController) Settle(now time.Time, basis, index, mark float64, ledger *Ledger) (FundingState, []FundingPayment) {
	premium := 0.0
	if index > 0 {
		premium = basis / index
	}
	rate := clamp(premium, -c.cap, c.cap)

	var payments []FundingPayment
	ledger.Each(func(p *Position) {
		if p.Direction == Flat {
			return
		}
		payment := rate * p.Notional(mark)
		if p.Direction == Long {
			payment = -payment
		}
		ledger.AdjustMargin(p.TraderID, payment)
		payments = append(payments, FundingPayment{TraderID: p.TraderID, Amount: payment})
	})

	c.state.Rate = rate
	c.state.PremiumIndex = premium
	c.state.LongOpenInterest, c.state.ShortOpenInterest = ledger.OpenInterest()
	c.state.LastSettledAt = now
	return c.state, payments
}

func (c *FundingController) State() FundingState {
	return c.state
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
