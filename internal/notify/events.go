package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/deluthium/bridgebot/internal/domain"
)

// sendTimeout bounds each event-triggered notification.
const sendTimeout = 10 * time.Second

// EventListener adapts a Notifier to the event emitter: register HandleEvent
// for the event types operators should hear about, typically bridge:filled,
// bridge:error and arbitrage:detected.
type EventListener struct {
	notifier *Notifier
}

// NewEventListener creates an EventListener over the given Notifier.
func NewEventListener(n *Notifier) *EventListener {
	return &EventListener{notifier: n}
}

// HandleEvent formats and dispatches one event. Delivery errors are handled
// inside the Notifier; this handler never blocks the emitting loop beyond the
// send timeout.
func (l *EventListener) HandleEvent(ev domain.Event) {
	title, message := formatEvent(ev)
	if title == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	_ = l.notifier.Notify(ctx, string(ev.Type), title, message)
}

// formatEvent renders an event as a notification title and body. Unknown
// event shapes produce an empty title and are dropped.
func formatEvent(ev domain.Event) (string, string) {
	switch ev.Type {
	case domain.EventBridgePlaced:
		if ev.Order == nil {
			return "", ""
		}
		return "Bridge order placed",
			fmt.Sprintf("%s %s %.6f @ %.6f (order %s)",
				ev.Order.Ticker, ev.Order.Side, ev.Order.Size, ev.Order.Price, ev.Order.ID)

	case domain.EventBridgeFilled:
		if ev.Order == nil {
			return "", ""
		}
		return "Bridge order filled",
			fmt.Sprintf("%s %s %.6f @ %.6f (order %s)",
				ev.Order.Ticker, ev.Order.Side, ev.Order.Size, ev.Order.Price, ev.Order.ID)

	case domain.EventBridgeCancelled:
		if ev.Order == nil {
			return "", ""
		}
		return "Bridge order cancelled",
			fmt.Sprintf("%s %s @ %.6f (order %s)",
				ev.Order.Ticker, ev.Order.Side, ev.Order.Price, ev.Order.ID)

	case domain.EventBridgeError:
		return "Bridge error",
			fmt.Sprintf("%s: %s", ev.Ticker, ev.Err)

	case domain.EventArbitrageDetected:
		if ev.Opportunity == nil {
			return "", ""
		}
		o := ev.Opportunity
		return "Arbitrage opportunity",
			fmt.Sprintf("%s %s spread %.1f bps (net %.1f), est. profit $%.2f",
				o.Ticker, o.Direction, o.SpreadBps, o.NetSpreadBps, o.NetProfitUSD)
	}

	return "", ""
}
