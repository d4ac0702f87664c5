package domain

import "time"

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// BridgeOrderStatus tracks the local lifecycle of a synthetic bridge order.
// pending exists only for the duration of the placement call; filled,
// cancelled and error are terminal and never transition further.
type BridgeOrderStatus string

const (
	BridgeOrderPending   BridgeOrderStatus = "pending"
	BridgeOrderPlaced    BridgeOrderStatus = "placed"
	BridgeOrderFilled    BridgeOrderStatus = "filled"
	BridgeOrderCancelled BridgeOrderStatus = "cancelled"
	BridgeOrderError     BridgeOrderStatus = "error"
)

// Terminal reports whether the status admits no further transitions.
func (s BridgeOrderStatus) Terminal() bool {
	switch s {
	case BridgeOrderFilled, BridgeOrderCancelled, BridgeOrderError:
		return true
	}
	return false
}

// BridgeOrder is one synthetic resting order on the target book together with
// the RFQ quote it was derived from.
type BridgeOrder struct {
	ID           string // process-unique, never reused
	Quote        IndicativeQuote
	Ticker       string
	Side         OrderSide
	Price        float64
	Size         float64
	VenueOrderID string // set once placed
	Status       BridgeOrderStatus
	Error        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// OrderParams are the parameters for placing a limit order on the target book.
type OrderParams struct {
	Ticker   string
	Side     OrderSide
	Price    float64
	Size     float64
	ClientID string
}

// VenueOrderStatus is the order state as reported by the target book.
type VenueOrderStatus string

const (
	VenueOrderOpen      VenueOrderStatus = "OPEN"
	VenueOrderFilled    VenueOrderStatus = "FILLED"
	VenueOrderCancelled VenueOrderStatus = "CANCELED"
	VenueOrderExpired   VenueOrderStatus = "EXPIRED"
)

// VenueOrder is the target book's view of a resting order.
type VenueOrder struct {
	OrderID    string
	Ticker     string
	Side       OrderSide
	Price      float64
	Size       float64
	FilledSize float64
	Status     VenueOrderStatus
	UpdatedAt  time.Time
}
