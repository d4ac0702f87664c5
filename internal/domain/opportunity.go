package domain

import "time"

// ArbDirection names which leg is bought and which is sold.
type ArbDirection string

const (
	// DirectionBuyQuoteSellTarget buys on the RFQ venue and sells into the
	// target book's bid.
	DirectionBuyQuoteSellTarget ArbDirection = "buy_quote_sell_target"
	// DirectionBuyTargetSellQuote lifts the target book's ask and sells on
	// the RFQ venue.
	DirectionBuyTargetSellQuote ArbDirection = "buy_target_sell_quote"
)

// Opportunity is a detected cross-venue profit scenario, net of estimated
// fees and a fixed gas allowance. Immutable once created.
type Opportunity struct {
	ID             string
	Ticker         string
	Direction      ArbDirection
	QuotePrice     float64 // RFQ venue indicative price
	TargetPrice    float64 // target-book bid or ask, per Direction
	SpreadBps      float64 // gross spread
	NetSpreadBps   float64 // after venue fees
	PositionSize   float64 // base units
	GrossProfitUSD float64
	TotalCostUSD   float64 // fees plus gas allowance
	NetProfitUSD   float64
	DetectedAt     time.Time
	// Valid is true for every recorded opportunity; candidates that fail a
	// profitability gate are discarded rather than recorded.
	Valid bool
}
