package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deluthium/bridgebot/internal/domain"
	"github.com/deluthium/bridgebot/internal/events"
)

// fakeQuotes serves a configurable indicative price per ticker pair, keyed by
// TokenIn hex.
type fakeQuotes struct {
	mu     sync.Mutex
	price  map[string]float64
	errs   map[string]error
	calls  int
	amount *big.Int
}

func newFakeQuotes() *fakeQuotes {
	return &fakeQuotes{
		price:  make(map[string]float64),
		errs:   make(map[string]error),
		amount: big.NewInt(2_000_000_000_000_000_000), // 2e18
	}
}

func (f *fakeQuotes) IndicativeQuote(_ context.Context, req domain.QuoteRequest) (domain.IndicativeQuote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	key := req.TokenIn.Hex()
	if err, ok := f.errs[key]; ok && err != nil {
		return domain.IndicativeQuote{}, err
	}
	price, ok := f.price[key]
	if !ok {
		return domain.IndicativeQuote{}, domain.ErrNotFound
	}
	return domain.IndicativeQuote{
		TokenIn:   req.TokenIn,
		TokenOut:  req.TokenOut,
		ChainID:   req.ChainID,
		AmountIn:  req.AmountIn,
		AmountOut: new(big.Int).Set(f.amount),
		Price:     price,
		Timestamp: time.Now().UTC(),
	}, nil
}

// fakeVenue records placements and cancels and serves configurable order
// states for reconciliation.
type fakeVenue struct {
	mu       sync.Mutex
	nextID   int
	placed   []domain.OrderParams
	cancels  []string
	statuses map[string]domain.VenueOrderStatus
	placeErr error
}

func newFakeVenue() *fakeVenue {
	return &fakeVenue{statuses: make(map[string]domain.VenueOrderStatus)}
}

func (f *fakeVenue) PlaceOrder(_ context.Context, params domain.OrderParams) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.placeErr != nil {
		return "", f.placeErr
	}
	f.nextID++
	id := fmt.Sprintf("venue-%d", f.nextID)
	f.placed = append(f.placed, params)
	f.statuses[id] = domain.VenueOrderOpen
	return id, nil
}

func (f *fakeVenue) GetOrder(_ context.Context, orderID, ticker string) (domain.VenueOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	status, ok := f.statuses[orderID]
	if !ok {
		return domain.VenueOrder{}, domain.ErrNotFound
	}
	return domain.VenueOrder{OrderID: orderID, Ticker: ticker, Status: status}, nil
}

func (f *fakeVenue) CancelOrder(_ context.Context, orderID, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels = append(f.cancels, orderID)
	delete(f.statuses, orderID)
	return nil
}

func (f *fakeVenue) placedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.placed)
}

func (f *fakeVenue) cancelCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cancels)
}

func (f *fakeVenue) setStatus(orderID string, status domain.VenueOrderStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[orderID] = status
}

// eventRecorder collects emitted events per type.
type eventRecorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *eventRecorder) handle(ev domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) byType(kind domain.EventType) []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Event
	for _, ev := range r.events {
		if ev.Type == kind {
			out = append(out, ev)
		}
	}
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testMapping(ticker string, tokenIn byte) domain.PairMapping {
	var in, out [20]byte
	in[19] = tokenIn
	out[19] = tokenIn + 1
	return domain.PairMapping{
		TokenIn:      in,
		TokenOut:     out,
		Ticker:       ticker,
		ChainID:      56,
		Side:         domain.OrderSideBuy,
		BaseDecimals: 18,
		ProbeAmount:  big.NewInt(1_000_000_000_000_000_000),
	}
}

func newTestBridge(t *testing.T, quotes domain.QuoteClient, venue domain.TradingClient) (*Bridge, *events.Emitter, *eventRecorder) {
	t.Helper()

	emitter := events.NewEmitter(testLogger())
	rec := &eventRecorder{}
	for _, kind := range []domain.EventType{
		domain.EventBridgePlaced,
		domain.EventBridgeFilled,
		domain.EventBridgeCancelled,
		domain.EventBridgeError,
	} {
		emitter.Subscribe(kind, rec.handle)
	}

	b, err := New(Config{
		RefreshInterval:       time.Hour,
		DeviationThresholdBps: 20,
		QuoteAttempts:         1,
		QuoteRetryWait:        time.Millisecond,
	}, quotes, venue, nil, emitter, testLogger())
	require.NoError(t, err)
	return b, emitter, rec
}

func TestRunCyclePlacesOrderPerMapping(t *testing.T) {
	quotes := newFakeQuotes()
	venue := newFakeVenue()
	b, _, rec := newTestBridge(t, quotes, venue)

	m := testMapping("WBNB-USDT", 0x01)
	quotes.price[m.TokenIn.Hex()] = 850.0
	require.NoError(t, b.AddMapping(m))

	b.runCycle(context.Background())

	active := b.ActiveOrders()
	require.Len(t, active, 1)
	assert.Equal(t, "WBNB-USDT", active[0].Ticker)
	assert.Equal(t, domain.OrderSideBuy, active[0].Side)
	assert.Equal(t, 850.0, active[0].Price)
	assert.InDelta(t, 2.0, active[0].Size, 1e-9)
	assert.NotEmpty(t, active[0].VenueOrderID)

	assert.Equal(t, 1, venue.placedCount())
	assert.Len(t, rec.byType(domain.EventBridgePlaced), 1)
}

func TestRunCycleHoldsWithinDeviation(t *testing.T) {
	quotes := newFakeQuotes()
	venue := newFakeVenue()
	b, _, _ := newTestBridge(t, quotes, venue)

	m := testMapping("WBNB-USDT", 0x01)
	quotes.price[m.TokenIn.Hex()] = 850.0
	require.NoError(t, b.AddMapping(m))

	b.runCycle(context.Background())

	// 10 bps move, under the 20 bps threshold.
	quotes.price[m.TokenIn.Hex()] = 850.85
	b.runCycle(context.Background())

	require.Len(t, b.ActiveOrders(), 1)
	assert.Equal(t, 850.0, b.ActiveOrders()[0].Price)
	assert.Equal(t, 1, venue.placedCount())
	assert.Equal(t, 0, venue.cancelCount())
}

func TestRunCycleRevisesOnDeviation(t *testing.T) {
	quotes := newFakeQuotes()
	venue := newFakeVenue()
	b, _, rec := newTestBridge(t, quotes, venue)

	m := testMapping("WBNB-USDT", 0x01)
	quotes.price[m.TokenIn.Hex()] = 850.0
	require.NoError(t, b.AddMapping(m))

	b.runCycle(context.Background())

	// 100 bps move, over the threshold.
	quotes.price[m.TokenIn.Hex()] = 858.5
	b.runCycle(context.Background())

	active := b.ActiveOrders()
	require.Len(t, active, 1)
	assert.Equal(t, 858.5, active[0].Price)

	assert.Equal(t, 2, venue.placedCount())
	assert.Equal(t, 1, venue.cancelCount())
	assert.Len(t, rec.byType(domain.EventBridgeCancelled), 1)
	assert.Len(t, rec.byType(domain.EventBridgePlaced), 2)
}

func TestRunCycleQuoteFailureEmitsError(t *testing.T) {
	quotes := newFakeQuotes()
	venue := newFakeVenue()
	b, _, rec := newTestBridge(t, quotes, venue)

	m := testMapping("WBNB-USDT", 0x01)
	quotes.errs[m.TokenIn.Hex()] = errors.New("upstream down")
	require.NoError(t, b.AddMapping(m))

	b.runCycle(context.Background())

	assert.Empty(t, b.ActiveOrders())
	assert.Equal(t, 0, venue.placedCount())

	errEvents := rec.byType(domain.EventBridgeError)
	require.Len(t, errEvents, 1)
	assert.Equal(t, "WBNB-USDT", errEvents[0].Ticker)
	assert.Contains(t, errEvents[0].Err, "upstream down")
}

func TestRunCycleTickerIsolation(t *testing.T) {
	quotes := newFakeQuotes()
	venue := newFakeVenue()
	b, _, _ := newTestBridge(t, quotes, venue)

	healthy := testMapping("WBNB-USDT", 0x01)
	broken := testMapping("WETH-USDT", 0x03)
	quotes.price[healthy.TokenIn.Hex()] = 850.0
	quotes.errs[broken.TokenIn.Hex()] = errors.New("no liquidity")
	require.NoError(t, b.AddMapping(healthy))
	require.NoError(t, b.AddMapping(broken))

	b.runCycle(context.Background())

	active := b.ActiveOrders()
	require.Len(t, active, 1)
	assert.Equal(t, "WBNB-USDT", active[0].Ticker)
}

func TestOrdersByTicker(t *testing.T) {
	quotes := newFakeQuotes()
	venue := newFakeVenue()
	b, _, _ := newTestBridge(t, quotes, venue)

	first := testMapping("WBNB-USDT", 0x01)
	second := testMapping("WETH-USDT", 0x03)
	quotes.price[first.TokenIn.Hex()] = 850.0
	quotes.price[second.TokenIn.Hex()] = 3000.0
	require.NoError(t, b.AddMapping(first))
	require.NoError(t, b.AddMapping(second))

	b.runCycle(context.Background())

	wbnb := b.OrdersByTicker("WBNB-USDT")
	require.Len(t, wbnb, 1)
	assert.Equal(t, "WBNB-USDT", wbnb[0].Ticker)
	assert.Empty(t, b.OrdersByTicker("SOL-USDT"))

	// Mutating the copy must not leak into bridge state.
	wbnb[0].Status = domain.BridgeOrderError
	assert.Equal(t, domain.BridgeOrderPlaced, b.OrdersByTicker("WBNB-USDT")[0].Status)
}

func TestPlacementFailureMarksOrderError(t *testing.T) {
	quotes := newFakeQuotes()
	venue := newFakeVenue()
	venue.placeErr = errors.New("rejected")
	b, _, rec := newTestBridge(t, quotes, venue)

	m := testMapping("WBNB-USDT", 0x01)
	quotes.price[m.TokenIn.Hex()] = 850.0
	require.NoError(t, b.AddMapping(m))

	b.runCycle(context.Background())

	orders := b.Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, domain.BridgeOrderError, orders[0].Status)
	assert.Contains(t, orders[0].Error, "rejected")
	assert.Empty(t, b.ActiveOrders())

	require.Len(t, rec.byType(domain.EventBridgeError), 1)
}

func TestReconcileAppliesVenueState(t *testing.T) {
	quotes := newFakeQuotes()
	venue := newFakeVenue()
	b, _, rec := newTestBridge(t, quotes, venue)

	m := testMapping("WBNB-USDT", 0x01)
	quotes.price[m.TokenIn.Hex()] = 850.0
	require.NoError(t, b.AddMapping(m))

	b.runCycle(context.Background())
	active := b.ActiveOrders()
	require.Len(t, active, 1)

	venue.setStatus(active[0].VenueOrderID, domain.VenueOrderFilled)
	b.reconcile(context.Background())

	got, ok := b.GetOrder(active[0].ID)
	require.True(t, ok)
	assert.Equal(t, domain.BridgeOrderFilled, got.Status)
	assert.Len(t, rec.byType(domain.EventBridgeFilled), 1)
}

func TestReconcileUnknownOrderCancelled(t *testing.T) {
	quotes := newFakeQuotes()
	venue := newFakeVenue()
	b, _, rec := newTestBridge(t, quotes, venue)

	m := testMapping("WBNB-USDT", 0x01)
	quotes.price[m.TokenIn.Hex()] = 850.0
	require.NoError(t, b.AddMapping(m))

	b.runCycle(context.Background())
	active := b.ActiveOrders()
	require.Len(t, active, 1)

	// The venue forgets the order entirely.
	venue.mu.Lock()
	delete(venue.statuses, active[0].VenueOrderID)
	venue.mu.Unlock()

	b.reconcile(context.Background())

	got, ok := b.GetOrder(active[0].ID)
	require.True(t, ok)
	assert.Equal(t, domain.BridgeOrderCancelled, got.Status)
	assert.Len(t, rec.byType(domain.EventBridgeCancelled), 1)
}

func TestPruneDropsOldTerminalOrders(t *testing.T) {
	quotes := newFakeQuotes()
	venue := newFakeVenue()
	b, _, _ := newTestBridge(t, quotes, venue)

	m := testMapping("WBNB-USDT", 0x01)
	quotes.price[m.TokenIn.Hex()] = 850.0
	require.NoError(t, b.AddMapping(m))

	b.runCycle(context.Background())
	active := b.ActiveOrders()
	require.Len(t, active, 1)

	b.transition(context.Background(), active[0].ID, domain.BridgeOrderCancelled, "")

	// Backdate the terminal order past the retention window.
	b.mu.Lock()
	b.orders[active[0].ID].UpdatedAt = time.Now().UTC().Add(-10 * time.Minute)
	b.mu.Unlock()

	b.prune()

	assert.Empty(t, b.Orders())
	_, ok := b.GetOrder(active[0].ID)
	assert.False(t, ok)
}

func TestTerminalOrdersNeverTransition(t *testing.T) {
	quotes := newFakeQuotes()
	venue := newFakeVenue()
	b, _, rec := newTestBridge(t, quotes, venue)

	m := testMapping("WBNB-USDT", 0x01)
	quotes.price[m.TokenIn.Hex()] = 850.0
	require.NoError(t, b.AddMapping(m))

	b.runCycle(context.Background())
	active := b.ActiveOrders()
	require.Len(t, active, 1)

	b.transition(context.Background(), active[0].ID, domain.BridgeOrderFilled, "")
	b.transition(context.Background(), active[0].ID, domain.BridgeOrderCancelled, "")

	got, _ := b.GetOrder(active[0].ID)
	assert.Equal(t, domain.BridgeOrderFilled, got.Status)
	assert.Empty(t, rec.byType(domain.EventBridgeCancelled))
}

func TestOrderCapSkipsNewPlacements(t *testing.T) {
	quotes := newFakeQuotes()
	venue := newFakeVenue()

	emitter := events.NewEmitter(testLogger())
	b, err := New(Config{
		RefreshInterval:       time.Hour,
		MaxOrdersPerTicker:    1,
		DeviationThresholdBps: 20,
		QuoteAttempts:         1,
		QuoteRetryWait:        time.Millisecond,
	}, quotes, venue, nil, emitter, testLogger())
	require.NoError(t, err)

	buy := testMapping("WBNB-USDT", 0x01)
	sell := testMapping("WBNB-USDT", 0x01)
	sell.Side = domain.OrderSideSell
	quotes.price[buy.TokenIn.Hex()] = 850.0
	require.NoError(t, b.AddMapping(buy))
	require.NoError(t, b.AddMapping(sell))

	b.runCycle(context.Background())

	// The cap of one blocks the second mapping's placement.
	assert.Equal(t, 1, venue.placedCount())
	assert.Len(t, b.Orders(), 1)
}

func TestAddMappingRejectsDuplicates(t *testing.T) {
	quotes := newFakeQuotes()
	venue := newFakeVenue()
	b, _, _ := newTestBridge(t, quotes, venue)

	m := testMapping("WBNB-USDT", 0x01)
	require.NoError(t, b.AddMapping(m))
	assert.Error(t, b.AddMapping(m))
}

func TestStopCancelsRestingOrders(t *testing.T) {
	quotes := newFakeQuotes()
	venue := newFakeVenue()
	b, _, rec := newTestBridge(t, quotes, venue)

	m := testMapping("WBNB-USDT", 0x01)
	quotes.price[m.TokenIn.Hex()] = 850.0
	require.NoError(t, b.AddMapping(m))

	b.Start(context.Background())
	require.Eventually(t, func() bool {
		return len(b.ActiveOrders()) == 1
	}, time.Second, 5*time.Millisecond)

	b.Stop()

	assert.Empty(t, b.ActiveOrders())
	assert.Equal(t, 1, venue.cancelCount())
	assert.Len(t, rec.byType(domain.EventBridgeCancelled), 1)

	// Stop is idempotent.
	b.Stop()
}
