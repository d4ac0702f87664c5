package bridge

import (
	"fmt"

	"github.com/deluthium/bridgebot/internal/domain"
)

// Pricer computes the limit price for a bridge order from the latest
// indicative quote. Implementations must be stateless and safe for
// concurrent use.
type Pricer interface {
	Name() string
	Price(mapping domain.PairMapping, quote domain.IndicativeQuote, market domain.MarketView) float64
}

// NewPricer returns the strategy registered under the given name. Known
// strategies are "mirror", "spread" and "dynamic". thresholdBps is the
// price deviation threshold the bridge runs with; spread-based strategies
// derive their offsets from it.
func NewPricer(name string, thresholdBps float64) (Pricer, error) {
	switch name {
	case "", "mirror":
		return mirrorPricer{}, nil
	case "spread":
		return spreadPricer{thresholdBps: thresholdBps}, nil
	case "dynamic":
		return dynamicPricer{thresholdBps: thresholdBps}, nil
	}
	return nil, fmt.Errorf("bridge: unknown pricing strategy %q", name)
}

// mirrorPricer quotes the RFQ price unchanged.
type mirrorPricer struct{}

func (mirrorPricer) Name() string { return "mirror" }

func (mirrorPricer) Price(_ domain.PairMapping, quote domain.IndicativeQuote, _ domain.MarketView) float64 {
	return quote.Price
}

// spreadPricer offsets the RFQ price by half the deviation threshold, away
// from the touch: buys are shaded down, sells up.
type spreadPricer struct {
	thresholdBps float64
}

func (spreadPricer) Name() string { return "spread" }

func (p spreadPricer) Price(mapping domain.PairMapping, quote domain.IndicativeQuote, _ domain.MarketView) float64 {
	offset := (p.thresholdBps / 2) / 10000
	if mapping.Side == domain.OrderSideBuy {
		return quote.Price * (1 - offset)
	}
	return quote.Price * (1 + offset)
}

// dynamicPricer sizes its offset from the observed target-book spread: half
// the live spread, floored at a quarter of the deviation threshold. When no
// book data is available it falls back to the spreadPricer offset.
type dynamicPricer struct {
	thresholdBps float64
}

func (dynamicPricer) Name() string { return "dynamic" }

func (p dynamicPricer) Price(mapping domain.PairMapping, quote domain.IndicativeQuote, market domain.MarketView) float64 {
	offsetBps := p.thresholdBps / 2
	if market != nil {
		if spread, ok := market.SpreadBps(mapping.Ticker); ok && spread > 0 {
			offsetBps = spread / 2
			if floor := p.thresholdBps / 4; offsetBps < floor {
				offsetBps = floor
			}
		}
	}

	offset := offsetBps / 10000
	if mapping.Side == domain.OrderSideBuy {
		return quote.Price * (1 - offset)
	}
	return quote.Price * (1 + offset)
}
