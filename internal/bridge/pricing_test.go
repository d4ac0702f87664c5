package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deluthium/bridgebot/internal/domain"
)

// fakeMarket serves fixed top-of-book state for one ticker.
type fakeMarket struct {
	ticker    string
	bid, ask  float64
	spreadBps float64
}

func (f *fakeMarket) BestBid(ticker string) (float64, bool) {
	if ticker != f.ticker {
		return 0, false
	}
	return f.bid, true
}

func (f *fakeMarket) BestAsk(ticker string) (float64, bool) {
	if ticker != f.ticker {
		return 0, false
	}
	return f.ask, true
}

func (f *fakeMarket) SpreadBps(ticker string) (float64, bool) {
	if ticker != f.ticker {
		return 0, false
	}
	return f.spreadBps, true
}

func TestNewPricer(t *testing.T) {
	for _, name := range []string{"", "mirror", "spread", "dynamic"} {
		p, err := NewPricer(name, 20)
		require.NoError(t, err, name)
		require.NotNil(t, p, name)
	}

	_, err := NewPricer("martingale", 20)
	assert.ErrorContains(t, err, `unknown pricing strategy "martingale"`)
}

func TestMirrorPricer(t *testing.T) {
	p, err := NewPricer("mirror", 20)
	require.NoError(t, err)
	assert.Equal(t, "mirror", p.Name())

	quote := domain.IndicativeQuote{Price: 850.0}
	for _, side := range []domain.OrderSide{domain.OrderSideBuy, domain.OrderSideSell} {
		m := domain.PairMapping{Ticker: "WBNB-USDT", Side: side}
		assert.Equal(t, 850.0, p.Price(m, quote, nil))
	}
}

func TestSpreadPricerShadesAwayFromTouch(t *testing.T) {
	p, err := NewPricer("spread", 20)
	require.NoError(t, err)
	assert.Equal(t, "spread", p.Name())

	quote := domain.IndicativeQuote{Price: 1000.0}

	// Half of 20 bps is 10 bps.
	buy := p.Price(domain.PairMapping{Ticker: "T", Side: domain.OrderSideBuy}, quote, nil)
	sell := p.Price(domain.PairMapping{Ticker: "T", Side: domain.OrderSideSell}, quote, nil)

	assert.InDelta(t, 999.0, buy, 1e-9)
	assert.InDelta(t, 1001.0, sell, 1e-9)
	assert.Less(t, buy, quote.Price)
	assert.Greater(t, sell, quote.Price)
}

func TestDynamicPricerTracksBookSpread(t *testing.T) {
	p, err := NewPricer("dynamic", 20)
	require.NoError(t, err)

	quote := domain.IndicativeQuote{Price: 1000.0}
	market := &fakeMarket{ticker: "T", spreadBps: 40}

	// Half the 40 bps book spread.
	buy := p.Price(domain.PairMapping{Ticker: "T", Side: domain.OrderSideBuy}, quote, market)
	assert.InDelta(t, 998.0, buy, 1e-9)

	sell := p.Price(domain.PairMapping{Ticker: "T", Side: domain.OrderSideSell}, quote, market)
	assert.InDelta(t, 1002.0, sell, 1e-9)
}

func TestDynamicPricerFloorsTightSpread(t *testing.T) {
	p, err := NewPricer("dynamic", 20)
	require.NoError(t, err)

	quote := domain.IndicativeQuote{Price: 1000.0}
	// 2 bps book spread: half of it is below the 5 bps floor.
	market := &fakeMarket{ticker: "T", spreadBps: 2}

	buy := p.Price(domain.PairMapping{Ticker: "T", Side: domain.OrderSideBuy}, quote, market)
	assert.InDelta(t, 999.5, buy, 1e-9)
}

func TestDynamicPricerFallsBackWithoutBook(t *testing.T) {
	p, err := NewPricer("dynamic", 20)
	require.NoError(t, err)

	quote := domain.IndicativeQuote{Price: 1000.0}

	// No market at all, and a market without data for the ticker, both fall
	// back to the fixed half-threshold offset.
	buy := p.Price(domain.PairMapping{Ticker: "T", Side: domain.OrderSideBuy}, quote, nil)
	assert.InDelta(t, 999.0, buy, 1e-9)

	market := &fakeMarket{ticker: "OTHER", spreadBps: 40}
	buy = p.Price(domain.PairMapping{Ticker: "T", Side: domain.OrderSideBuy}, quote, market)
	assert.InDelta(t, 999.0, buy, 1e-9)
}
