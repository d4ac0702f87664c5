package domain

import (
	"context"
	"time"
)

// QuoteClient fetches indicative prices from the RFQ venue. Implementations
// must be safe for concurrent use; callers apply their own retry policy.
type QuoteClient interface {
	IndicativeQuote(ctx context.Context, req QuoteRequest) (IndicativeQuote, error)
}

// TradingClient places, queries, and cancels limit orders on the target book.
// GetOrder returns ErrNotFound when the venue no longer knows the order.
type TradingClient interface {
	PlaceOrder(ctx context.Context, params OrderParams) (string, error)
	GetOrder(ctx context.Context, orderID, ticker string) (VenueOrder, error)
	CancelOrder(ctx context.Context, orderID, ticker, clientID string) error
}

// MarketView exposes live top-of-book state per instrument. The boolean is
// false when no data has been received for the ticker yet.
type MarketView interface {
	BestBid(ticker string) (float64, bool)
	BestAsk(ticker string) (float64, bool)
	SpreadBps(ticker string) (float64, bool)
}

// PairStore persists the RFQ venue's pair catalog.
type PairStore interface {
	UpsertPairs(ctx context.Context, pairs []ListingPair) error
	ListPairs(ctx context.Context, chainID int) ([]ListingPair, error)
}

// PriceCache stores the latest observed price per instrument.
type PriceCache interface {
	SetPrice(ctx context.Context, ticker string, price float64, ts time.Time) error
	GetPrice(ctx context.Context, ticker string) (float64, time.Time, error)
}

// SignalBus is a fire-and-forget pub/sub transport for serialized events.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
