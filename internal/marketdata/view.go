// Package marketdata maintains a live top-of-book view per target-book
// instrument, fed by the exchange WebSocket stream.
package marketdata

import (
	"context"
	"log/slog"
	"sync"

	"github.com/deluthium/bridgebot/internal/domain"
)

// View holds the latest BookTicker per instrument. It implements
// domain.MarketView and is safe for concurrent use: the feed goroutine writes,
// the bridge and scanner loops read.
type View struct {
	logger *slog.Logger

	mu    sync.RWMutex
	books map[string]domain.BookTicker

	// Optional write-through price cache. Failures are logged, never fatal.
	prices domain.PriceCache
}

// NewView creates an empty View.
func NewView(logger *slog.Logger) *View {
	return &View{
		logger: logger.With(slog.String("component", "market_view")),
		books:  make(map[string]domain.BookTicker),
	}
}

// WithPriceCache enables best-effort write-through of mid prices to the given
// cache on every Apply. Returns the view for chaining.
func (v *View) WithPriceCache(cache domain.PriceCache) *View {
	v.prices = cache
	return v
}

// Apply records a fresh top-of-book update. Tickers with a non-positive bid
// and ask are ignored.
func (v *View) Apply(ctx context.Context, bt domain.BookTicker) {
	if bt.Ticker == "" || (bt.BestBid <= 0 && bt.BestAsk <= 0) {
		return
	}

	v.mu.Lock()
	v.books[bt.Ticker] = bt
	v.mu.Unlock()

	if v.prices != nil {
		if mid := bt.Mid(); mid > 0 {
			if err := v.prices.SetPrice(ctx, bt.Ticker, mid, bt.Timestamp); err != nil {
				v.logger.Debug("price cache write failed",
					slog.String("ticker", bt.Ticker),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// BestBid returns the latest best bid for ticker, or false when unknown.
func (v *View) BestBid(ticker string) (float64, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	bt, ok := v.books[ticker]
	if !ok || bt.BestBid <= 0 {
		return 0, false
	}
	return bt.BestBid, true
}

// BestAsk returns the latest best ask for ticker, or false when unknown.
func (v *View) BestAsk(ticker string) (float64, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	bt, ok := v.books[ticker]
	if !ok || bt.BestAsk <= 0 {
		return 0, false
	}
	return bt.BestAsk, true
}

// MidPrice returns the latest mid price for ticker, or false when either side
// is missing.
func (v *View) MidPrice(ticker string) (float64, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	bt, ok := v.books[ticker]
	if !ok {
		return 0, false
	}
	mid := bt.Mid()
	return mid, mid > 0
}

// SpreadBps returns the latest bid-ask spread in basis points, or false when
// either side is missing.
func (v *View) SpreadBps(ticker string) (float64, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	bt, ok := v.books[ticker]
	if !ok || bt.Mid() <= 0 {
		return 0, false
	}
	return bt.SpreadBps(), true
}
