package exchange

import "gungnir/internal/perp"

// Events is what one tick produced: the mark update, any funding
// settlement, and any liquidations the mark move triggered. Skipped means
// the oracle sample was rejected and nothing advanced.
type Events struct {
	Skipped bool

	Mark perp.MarkState

	FundingSettled bool
	Funding        perp.FundingState
	Payments       []perp.FundingPayment

	Liquidations   []perp.LiquidationResult
	SocializedLoss bool
}
