package domain

import "time"

// EventType names an event emitted by the bridge or the arbitrage scanner.
type EventType string

const (
	EventBridgePlaced      EventType = "bridge:placed"
	EventBridgeFilled      EventType = "bridge:filled"
	EventBridgeCancelled   EventType = "bridge:cancelled"
	EventBridgeError       EventType = "bridge:error"
	EventArbitrageDetected EventType = "arbitrage:detected"
)

// Event is the integration boundary consumed by listeners. Order is set for
// bridge:* events carrying an order, Opportunity for arbitrage:detected, and
// Ticker/Err for bridge:error events without an order.
type Event struct {
	Type        EventType
	Order       *BridgeOrder
	Opportunity *Opportunity
	Ticker      string
	Err         string
	Timestamp   time.Time
}
