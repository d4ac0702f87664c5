package notify

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deluthium/bridgebot/internal/domain"
)

type captureSender struct {
	mu       sync.Mutex
	titles   []string
	messages []string
	err      error
}

func (s *captureSender) Send(_ context.Context, title, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.titles = append(s.titles, title)
	s.messages = append(s.messages, message)
	return nil
}

func (s *captureSender) Name() string { return "capture" }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testOrder() *domain.BridgeOrder {
	return &domain.BridgeOrder{
		ID:     "o-1",
		Ticker: "WBNB-USDT",
		Side:   domain.OrderSideBuy,
		Price:  850.25,
		Size:   2,
	}
}

func TestHandleEventDeliversFill(t *testing.T) {
	sender := &captureSender{}
	n := NewNotifier([]Sender{sender}, []string{"bridge:filled"}, testLogger())
	l := NewEventListener(n)

	l.HandleEvent(domain.Event{Type: domain.EventBridgeFilled, Order: testOrder()})

	require.Len(t, sender.titles, 1)
	assert.Equal(t, "Bridge order filled", sender.titles[0])
	assert.Contains(t, sender.messages[0], "WBNB-USDT buy")
	assert.Contains(t, sender.messages[0], "850.25")
	assert.Contains(t, sender.messages[0], "o-1")
}

func TestHandleEventRespectsFilter(t *testing.T) {
	sender := &captureSender{}
	n := NewNotifier([]Sender{sender}, []string{"bridge:filled"}, testLogger())
	l := NewEventListener(n)

	l.HandleEvent(domain.Event{Type: domain.EventBridgePlaced, Order: testOrder()})

	assert.Empty(t, sender.titles)
}

func TestHandleEventDropsMalformedEvents(t *testing.T) {
	sender := &captureSender{}
	n := NewNotifier([]Sender{sender}, nil, testLogger())
	l := NewEventListener(n)

	// Order-carrying event types without an order are dropped.
	l.HandleEvent(domain.Event{Type: domain.EventBridgeFilled})
	l.HandleEvent(domain.Event{Type: domain.EventArbitrageDetected})
	l.HandleEvent(domain.Event{Type: domain.EventType("unknown")})

	assert.Empty(t, sender.titles)
}

func TestFormatEvent(t *testing.T) {
	title, body := formatEvent(domain.Event{
		Type:   domain.EventBridgeError,
		Ticker: "WBNB-USDT",
		Err:    "quote timeout",
	})
	assert.Equal(t, "Bridge error", title)
	assert.Equal(t, "WBNB-USDT: quote timeout", body)

	title, body = formatEvent(domain.Event{
		Type: domain.EventArbitrageDetected,
		Opportunity: &domain.Opportunity{
			Ticker:       "WBNB-USDT",
			Direction:    domain.DirectionBuyQuoteSellTarget,
			SpreadBps:    50,
			NetSpreadBps: 35,
			NetProfitUSD: 33,
		},
	})
	assert.Equal(t, "Arbitrage opportunity", title)
	assert.Contains(t, body, "buy_quote_sell_target")
	assert.Contains(t, body, "$33.00")
}

func TestNotifierFansOutAndCollectsErrors(t *testing.T) {
	ok := &captureSender{}
	broken := &captureSender{err: assert.AnError}
	n := NewNotifier([]Sender{broken, ok}, nil, testLogger())

	err := n.NotifyAll(context.Background(), "title", "message")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 sender(s) failed")

	// The healthy sender still received the notification.
	require.Len(t, ok.titles, 1)
	assert.Equal(t, "title", ok.titles[0])
}
