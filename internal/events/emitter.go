// Package events provides the listener-set event emitter shared by the order
// bridge and the arbitrage scanner. Listeners are registered per event type
// and invoked synchronously within the emitting cycle; a panicking listener is
// recovered and logged so it can never abort the emitting loop.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/deluthium/bridgebot/internal/domain"
)

// Handler consumes one emitted event.
type Handler func(domain.Event)

// Subscription identifies one registered handler. Pass it to Unsubscribe.
type Subscription struct {
	id   uint64
	kind domain.EventType
}

// Publisher mirrors serialized events to an external channel (e.g. the Redis
// signal bus). Publish failures are logged and otherwise ignored.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Emitter dispatches events to all handlers registered for the event's type.
type Emitter struct {
	logger *slog.Logger

	mu     sync.RWMutex
	nextID uint64
	subs   map[domain.EventType]map[uint64]Handler

	bus     Publisher
	channel string
}

// NewEmitter creates an Emitter with no listeners.
func NewEmitter(logger *slog.Logger) *Emitter {
	return &Emitter{
		logger: logger.With(slog.String("component", "event_emitter")),
		subs:   make(map[domain.EventType]map[uint64]Handler),
	}
}

// WithPublisher mirrors every emitted event, JSON-serialized, to the given
// bus channel. Returns the emitter for chaining.
func (e *Emitter) WithPublisher(bus Publisher, channel string) *Emitter {
	e.bus = bus
	e.channel = channel
	return e
}

// Subscribe registers a handler for one event type and returns a Subscription
// that can later be passed to Unsubscribe.
func (e *Emitter) Subscribe(kind domain.EventType, h Handler) Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	if e.subs[kind] == nil {
		e.subs[kind] = make(map[uint64]Handler)
	}
	e.subs[kind][e.nextID] = h
	return Subscription{id: e.nextID, kind: kind}
}

// Unsubscribe removes a previously registered handler. Unknown subscriptions
// are ignored.
func (e *Emitter) Unsubscribe(sub Subscription) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if handlers, ok := e.subs[sub.kind]; ok {
		delete(handlers, sub.id)
	}
}

// Emit delivers the event to every handler currently registered for its type,
// then mirrors it to the external publisher when one is configured. Handler
// panics are recovered and logged.
func (e *Emitter) Emit(ctx context.Context, ev domain.Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	e.mu.RLock()
	handlers := make([]Handler, 0, len(e.subs[ev.Type]))
	for _, h := range e.subs[ev.Type] {
		handlers = append(handlers, h)
	}
	e.mu.RUnlock()

	for _, h := range handlers {
		e.safeInvoke(h, ev)
	}

	if e.bus != nil {
		payload, err := json.Marshal(wireEvent(ev))
		if err != nil {
			e.logger.Warn("event serialization failed", slog.String("type", string(ev.Type)), slog.String("error", err.Error()))
			return
		}
		if err := e.bus.Publish(ctx, e.channel, payload); err != nil {
			e.logger.Warn("event publish failed", slog.String("type", string(ev.Type)), slog.String("error", err.Error()))
		}
	}
}

func (e *Emitter) safeInvoke(h Handler, ev domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("event listener panicked",
				slog.String("type", string(ev.Type)),
				slog.Any("panic", r),
			)
		}
	}()
	h(ev)
}

// busEvent is the JSON shape published to the signal bus.
type busEvent struct {
	Type        string              `json:"type"`
	Ticker      string              `json:"ticker,omitempty"`
	Error       string              `json:"error,omitempty"`
	Order       *domain.BridgeOrder `json:"order,omitempty"`
	Opportunity *domain.Opportunity `json:"opportunity,omitempty"`
	Timestamp   string              `json:"timestamp"`
}

func wireEvent(ev domain.Event) busEvent {
	return busEvent{
		Type:        string(ev.Type),
		Ticker:      ev.Ticker,
		Error:       ev.Err,
		Order:       ev.Order,
		Opportunity: ev.Opportunity,
		Timestamp:   ev.Timestamp.Format(time.RFC3339Nano),
	}
}
