package events

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deluthium/bridgebot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEmitDeliversToMatchingHandlers(t *testing.T) {
	e := NewEmitter(testLogger())

	var placed, filled int
	e.Subscribe(domain.EventBridgePlaced, func(domain.Event) { placed++ })
	e.Subscribe(domain.EventBridgePlaced, func(domain.Event) { placed++ })
	e.Subscribe(domain.EventBridgeFilled, func(domain.Event) { filled++ })

	e.Emit(context.Background(), domain.Event{Type: domain.EventBridgePlaced, Ticker: "WBNB-USDT"})

	assert.Equal(t, 2, placed)
	assert.Equal(t, 0, filled)
}

func TestEmitStampsTimestamp(t *testing.T) {
	e := NewEmitter(testLogger())

	var got domain.Event
	e.Subscribe(domain.EventBridgeError, func(ev domain.Event) { got = ev })

	e.Emit(context.Background(), domain.Event{Type: domain.EventBridgeError, Err: "boom"})

	assert.False(t, got.Timestamp.IsZero())
	assert.Equal(t, "boom", got.Err)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	e := NewEmitter(testLogger())

	var calls int
	sub := e.Subscribe(domain.EventBridgePlaced, func(domain.Event) { calls++ })

	e.Emit(context.Background(), domain.Event{Type: domain.EventBridgePlaced})
	e.Unsubscribe(sub)
	e.Emit(context.Background(), domain.Event{Type: domain.EventBridgePlaced})

	assert.Equal(t, 1, calls)

	// Unknown subscriptions are ignored.
	e.Unsubscribe(Subscription{id: 999, kind: domain.EventBridgePlaced})
}

func TestPanickingHandlerDoesNotBlockOthers(t *testing.T) {
	e := NewEmitter(testLogger())

	var calls int
	e.Subscribe(domain.EventBridgePlaced, func(domain.Event) { panic("listener bug") })
	e.Subscribe(domain.EventBridgePlaced, func(domain.Event) { calls++ })

	require.NotPanics(t, func() {
		e.Emit(context.Background(), domain.Event{Type: domain.EventBridgePlaced})
	})
	assert.Equal(t, 1, calls)
}

type captureBus struct {
	channel  string
	payloads [][]byte
}

func (b *captureBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.channel = channel
	b.payloads = append(b.payloads, payload)
	return nil
}

func TestEmitMirrorsToPublisher(t *testing.T) {
	bus := &captureBus{}
	e := NewEmitter(testLogger()).WithPublisher(bus, "bridgebot:events")

	e.Emit(context.Background(), domain.Event{
		Type:   domain.EventBridgeFilled,
		Ticker: "WBNB-USDT",
		Order:  &domain.BridgeOrder{ID: "o-1", Ticker: "WBNB-USDT", Price: 850, Size: 2},
	})

	assert.Equal(t, "bridgebot:events", bus.channel)
	require.Len(t, bus.payloads, 1)

	var wire struct {
		Type      string `json:"type"`
		Ticker    string `json:"ticker"`
		Timestamp string `json:"timestamp"`
		Order     *struct {
			ID string
		} `json:"order"`
	}
	require.NoError(t, json.Unmarshal(bus.payloads[0], &wire))
	assert.Equal(t, "bridge:filled", wire.Type)
	assert.Equal(t, "WBNB-USDT", wire.Ticker)
	assert.NotEmpty(t, wire.Timestamp)
	require.NotNil(t, wire.Order)
	assert.Equal(t, "o-1", wire.Order.ID)
}
