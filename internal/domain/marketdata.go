package domain

import "time"

// BookTicker is the top of book for one target-book instrument.
type BookTicker struct {
	Ticker    string
	BestBid   float64
	BestAsk   float64
	Timestamp time.Time
}

// Mid returns the mid price, or 0 when either side is missing.
func (b BookTicker) Mid() float64 {
	if b.BestBid <= 0 || b.BestAsk <= 0 {
		return 0
	}
	return (b.BestBid + b.BestAsk) / 2
}

// SpreadBps returns the bid-ask spread relative to mid, in basis points.
func (b BookTicker) SpreadBps() float64 {
	mid := b.Mid()
	if mid <= 0 {
		return 0
	}
	return (b.BestAsk - b.BestBid) / mid * 10_000
}
