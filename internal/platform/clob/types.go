package clob

import (
	"time"

	"github.com/deluthium/bridgebot/internal/domain"
)

// orderRequest is the JSON body for POST /v1/orders.
type orderRequest struct {
	Ticker   string `json:"ticker"`
	Side     string `json:"side"`
	Type     string `json:"type"` // always "limit"
	Price    string `json:"price"`
	Size     string `json:"size"`
	ClientID string `json:"clientId,omitempty"`
}

// orderResponse is the JSON body returned by order placement and queries.
type orderResponse struct {
	OrderID    string  `json:"orderId"`
	Ticker     string  `json:"ticker"`
	Side       string  `json:"side"`
	Price      float64 `json:"price,string"`
	Size       float64 `json:"size,string"`
	FilledSize float64 `json:"filledSize,string"`
	Status     string  `json:"status"`
	UpdatedAt  int64   `json:"updatedAt"` // unix milliseconds
	ErrorMsg   string  `json:"errorMsg"`
}

// toDomain converts the API order shape to a domain.VenueOrder.
func (o *orderResponse) toDomain() domain.VenueOrder {
	return domain.VenueOrder{
		OrderID:    o.OrderID,
		Ticker:     o.Ticker,
		Side:       domain.OrderSide(o.Side),
		Price:      o.Price,
		Size:       o.Size,
		FilledSize: o.FilledSize,
		Status:     domain.VenueOrderStatus(o.Status),
		UpdatedAt:  time.UnixMilli(o.UpdatedAt).UTC(),
	}
}

// cancelResponse is the JSON body returned by DELETE /v1/orders.
type cancelResponse struct {
	Success  bool   `json:"success"`
	ErrorMsg string `json:"errorMsg"`
}

// wsCommand is a subscribe/unsubscribe command on the market data stream.
type wsCommand struct {
	Type    string   `json:"type"`
	Channel string   `json:"channel"`
	Tickers []string `json:"tickers"`
}

// tickerMessage is a top-of-book update on the "ticker" channel.
type tickerMessage struct {
	Event     string  `json:"event"`
	Ticker    string  `json:"ticker"`
	BestBid   float64 `json:"bestBid,string"`
	BestAsk   float64 `json:"bestAsk,string"`
	Timestamp int64   `json:"timestamp"` // unix milliseconds
}

// toDomain converts a ticker message to a domain.BookTicker.
func (m *tickerMessage) toDomain() domain.BookTicker {
	ts := time.Now().UTC()
	if m.Timestamp > 0 {
		ts = time.UnixMilli(m.Timestamp).UTC()
	}
	return domain.BookTicker{
		Ticker:    m.Ticker,
		BestBid:   m.BestBid,
		BestAsk:   m.BestAsk,
		Timestamp: ts,
	}
}
