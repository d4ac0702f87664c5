// Package bridge mirrors RFQ indicative quotes as resting limit orders on the
// target order-book venue. Each cycle it refreshes the indicative price for
// every configured pair mapping, revises or places the corresponding limit
// order, reconciles resting orders against the venue, and prunes finished
// order records.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/deluthium/bridgebot/internal/domain"
	"github.com/deluthium/bridgebot/internal/events"
	"github.com/deluthium/bridgebot/internal/platform/deluthium"
)

const (
	defaultRefreshInterval    = 2000 * time.Millisecond
	defaultMaxOrdersPerTicker = 10
	defaultDeviationBps       = 20.0
	defaultQuoteAttempts      = 2
	defaultQuoteRetryWait     = 500 * time.Millisecond
	defaultPruneAfter         = 5 * time.Minute

	// stopCancelTimeout bounds the best-effort cancel pass during Stop.
	stopCancelTimeout = 10 * time.Second
)

// Config tunes the bridge loop. Zero values fall back to defaults.
type Config struct {
	// RefreshInterval is the pause between bridge cycles.
	RefreshInterval time.Duration

	// MaxOrdersPerTicker caps the number of tracked orders per instrument.
	MaxOrdersPerTicker int

	// DeviationThresholdBps is the minimum price move, in basis points,
	// before a resting order is cancelled and re-placed.
	DeviationThresholdBps float64

	// QuoteAttempts and QuoteRetryWait bound the per-mapping indicative
	// quote retry. The wait doubles after each failed attempt.
	QuoteAttempts  int
	QuoteRetryWait time.Duration

	// PruneAfter is how long finished order records are retained.
	PruneAfter time.Duration

	// Strategy selects the pricing strategy: "mirror", "spread" or
	// "dynamic". Empty means mirror.
	Strategy string
}

func (c *Config) applyDefaults() {
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = defaultRefreshInterval
	}
	if c.MaxOrdersPerTicker <= 0 {
		c.MaxOrdersPerTicker = defaultMaxOrdersPerTicker
	}
	if c.DeviationThresholdBps <= 0 {
		c.DeviationThresholdBps = defaultDeviationBps
	}
	if c.QuoteAttempts <= 0 {
		c.QuoteAttempts = defaultQuoteAttempts
	}
	if c.QuoteRetryWait <= 0 {
		c.QuoteRetryWait = defaultQuoteRetryWait
	}
	if c.PruneAfter <= 0 {
		c.PruneAfter = defaultPruneAfter
	}
}

// Bridge runs the quote-mirroring loop. Create one with New, register pair
// mappings, then Start it. All methods are safe for concurrent use.
type Bridge struct {
	cfg     Config
	quotes  domain.QuoteClient
	venue   domain.TradingClient
	market  domain.MarketView
	pricer  Pricer
	emitter *events.Emitter
	logger  *slog.Logger

	mu       sync.Mutex
	mappings []domain.PairMapping
	orders   map[string]*domain.BridgeOrder
	orderIDs []string // insertion order of b.orders keys

	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a Bridge. market may be nil when the configured strategy does
// not consult the target book.
func New(cfg Config, quotes domain.QuoteClient, venue domain.TradingClient, market domain.MarketView, emitter *events.Emitter, logger *slog.Logger) (*Bridge, error) {
	cfg.applyDefaults()

	pricer, err := NewPricer(cfg.Strategy, cfg.DeviationThresholdBps)
	if err != nil {
		return nil, err
	}

	return &Bridge{
		cfg:     cfg,
		quotes:  quotes,
		venue:   venue,
		market:  market,
		pricer:  pricer,
		emitter: emitter,
		logger:  logger.With(slog.String("component", "bridge")),
		orders:  make(map[string]*domain.BridgeOrder),
	}, nil
}

// AddMapping registers a pair mapping. Duplicate (ticker, side) mappings are
// rejected.
func (b *Bridge) AddMapping(m domain.PairMapping) error {
	if m.Ticker == "" {
		return fmt.Errorf("bridge: add mapping: empty ticker")
	}
	if m.Side != domain.OrderSideBuy && m.Side != domain.OrderSideSell {
		return fmt.Errorf("bridge: add mapping %s: invalid side %q", m.Ticker, m.Side)
	}
	if m.ProbeAmount == nil || m.ProbeAmount.Sign() <= 0 {
		return fmt.Errorf("bridge: add mapping %s: %w", m.Ticker, domain.ErrInvalidAmount)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, existing := range b.mappings {
		if existing.Ticker == m.Ticker && existing.Side == m.Side {
			return fmt.Errorf("bridge: mapping %s/%s already registered", m.Ticker, m.Side)
		}
	}
	b.mappings = append(b.mappings, m)
	return nil
}

// RemoveMapping drops the mapping for (ticker, side). Orders already resting
// for that mapping are left to the reconcile and prune passes.
func (b *Bridge) RemoveMapping(ticker string, side domain.OrderSide) {
	b.mu.Lock()
	defer b.mu.Unlock()

	filtered := b.mappings[:0]
	for _, m := range b.mappings {
		if m.Ticker == ticker && m.Side == side {
			continue
		}
		filtered = append(filtered, m)
	}
	b.mappings = filtered
}

// Start launches the bridge loop. Calling Start on a running bridge is a
// no-op.
func (b *Bridge) Start(ctx context.Context) {
	if !b.running.CompareAndSwap(false, true) {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.done = make(chan struct{})

	b.logger.Info("bridge started",
		slog.Duration("refresh_interval", b.cfg.RefreshInterval),
		slog.String("strategy", b.pricer.Name()),
	)

	go b.loop(runCtx)
}

// Stop halts the loop, then makes a best-effort pass cancelling every resting
// order on the venue. Orders are marked cancelled locally whether or not the
// venue acknowledged the cancel. Calling Stop on a stopped bridge is a no-op.
func (b *Bridge) Stop() {
	if !b.running.CompareAndSwap(true, false) {
		return
	}

	b.cancel()
	<-b.done

	ctx, cancel := context.WithTimeout(context.Background(), stopCancelTimeout)
	defer cancel()

	for _, o := range b.snapshotByStatus(domain.BridgeOrderPlaced) {
		if err := b.venue.CancelOrder(ctx, o.VenueOrderID, o.Ticker, o.ID); err != nil {
			b.logger.Warn("cancel on shutdown failed",
				slog.String("order_id", o.ID),
				slog.String("venue_order_id", o.VenueOrderID),
				slog.String("error", err.Error()),
			)
		}
		b.transition(ctx, o.ID, domain.BridgeOrderCancelled, "")
	}

	b.logger.Info("bridge stopped")
}

// Orders returns a copy of every tracked order, oldest first.
func (b *Bridge) Orders() []domain.BridgeOrder {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]domain.BridgeOrder, 0, len(b.orderIDs))
	for _, id := range b.orderIDs {
		if o, ok := b.orders[id]; ok {
			out = append(out, *o)
		}
	}
	return out
}

// ActiveOrders returns a copy of every order currently resting on the venue.
func (b *Bridge) ActiveOrders() []domain.BridgeOrder {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []domain.BridgeOrder
	for _, id := range b.orderIDs {
		if o, ok := b.orders[id]; ok && o.Status == domain.BridgeOrderPlaced {
			out = append(out, *o)
		}
	}
	return out
}

// OrdersByTicker returns a copy of every tracked order for one ticker,
// oldest first.
func (b *Bridge) OrdersByTicker(ticker string) []domain.BridgeOrder {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []domain.BridgeOrder
	for _, id := range b.orderIDs {
		if o, ok := b.orders[id]; ok && o.Ticker == ticker {
			out = append(out, *o)
		}
	}
	return out
}

// GetOrder returns a copy of one tracked order by its local ID.
func (b *Bridge) GetOrder(id string) (domain.BridgeOrder, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.orders[id]
	if !ok {
		return domain.BridgeOrder{}, false
	}
	return *o, true
}

// --------------------------------------------------------------------------
// Cycle
// --------------------------------------------------------------------------

func (b *Bridge) loop(ctx context.Context) {
	defer close(b.done)

	ticker := time.NewTicker(b.cfg.RefreshInterval)
	defer ticker.Stop()

	b.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.runCycle(ctx)
		}
	}
}

// runCycle performs one full bridge pass: refresh every mapping, reconcile
// resting orders against the venue, prune finished records.
func (b *Bridge) runCycle(ctx context.Context) {
	b.mu.Lock()
	mappings := make([]domain.PairMapping, len(b.mappings))
	copy(mappings, b.mappings)
	b.mu.Unlock()

	for _, m := range mappings {
		if ctx.Err() != nil {
			return
		}
		b.processMapping(ctx, m)
	}

	b.reconcile(ctx)
	b.prune()
}

// processMapping refreshes one pair mapping: fetch the indicative quote,
// price it, and revise or place the resting order for (ticker, side).
func (b *Bridge) processMapping(ctx context.Context, m domain.PairMapping) {
	quote, err := b.fetchQuote(ctx, m)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		b.logger.Warn("indicative quote failed",
			slog.String("ticker", m.Ticker),
			slog.String("side", string(m.Side)),
			slog.String("error", err.Error()),
		)
		b.emitter.Emit(ctx, domain.Event{
			Type:   domain.EventBridgeError,
			Ticker: m.Ticker,
			Err:    err.Error(),
		})
		return
	}

	price := b.pricer.Price(m, quote, b.market)
	size := deluthium.FromWei(quote.AmountOut, m.BaseDecimals)
	if price <= 0 || size <= 0 {
		b.logger.Warn("discarding unusable quote",
			slog.String("ticker", m.Ticker),
			slog.Float64("price", price),
			slog.Float64("size", size),
		)
		return
	}

	existing, hasExisting := b.placedOrder(m.Ticker, m.Side)

	if hasExisting {
		deviation := math.Abs(price-existing.Price) / existing.Price * 10000
		if deviation < b.cfg.DeviationThresholdBps {
			return
		}

		b.logger.Info("revising order",
			slog.String("ticker", m.Ticker),
			slog.String("side", string(m.Side)),
			slog.Float64("old_price", existing.Price),
			slog.Float64("new_price", price),
			slog.Float64("deviation_bps", deviation),
		)

		if err := b.venue.CancelOrder(ctx, existing.VenueOrderID, existing.Ticker, existing.ID); err != nil {
			b.logger.Warn("cancel before revise failed",
				slog.String("order_id", existing.ID),
				slog.String("error", err.Error()),
			)
		}
		b.transition(ctx, existing.ID, domain.BridgeOrderCancelled, "")
	} else if b.countForTicker(m.Ticker) >= b.cfg.MaxOrdersPerTicker {
		b.logger.Warn("order cap reached, skipping",
			slog.String("ticker", m.Ticker),
			slog.Int("cap", b.cfg.MaxOrdersPerTicker),
		)
		return
	}

	b.place(ctx, m, quote, price, size)
}

// place creates a new bridge order and submits it to the venue.
func (b *Bridge) place(ctx context.Context, m domain.PairMapping, quote domain.IndicativeQuote, price, size float64) {
	now := time.Now().UTC()
	order := &domain.BridgeOrder{
		ID:        uuid.NewString(),
		Quote:     quote,
		Ticker:    m.Ticker,
		Side:      m.Side,
		Price:     price,
		Size:      size,
		Status:    domain.BridgeOrderPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	b.mu.Lock()
	b.orders[order.ID] = order
	b.orderIDs = append(b.orderIDs, order.ID)
	b.mu.Unlock()

	venueID, err := b.venue.PlaceOrder(ctx, domain.OrderParams{
		Ticker:   m.Ticker,
		Side:     m.Side,
		Price:    price,
		Size:     size,
		ClientID: order.ID,
	})
	if err != nil {
		b.logger.Error("order placement failed",
			slog.String("ticker", m.Ticker),
			slog.String("side", string(m.Side)),
			slog.String("error", err.Error()),
		)
		b.transition(ctx, order.ID, domain.BridgeOrderError, err.Error())
		return
	}

	b.mu.Lock()
	order.VenueOrderID = venueID
	b.mu.Unlock()

	b.logger.Info("order placed",
		slog.String("order_id", order.ID),
		slog.String("venue_order_id", venueID),
		slog.String("ticker", m.Ticker),
		slog.String("side", string(m.Side)),
		slog.Float64("price", price),
		slog.Float64("size", size),
	)
	b.transition(ctx, order.ID, domain.BridgeOrderPlaced, "")
}

// fetchQuote requests an indicative quote with bounded retry. The wait
// doubles after each failed attempt.
func (b *Bridge) fetchQuote(ctx context.Context, m domain.PairMapping) (domain.IndicativeQuote, error) {
	req := domain.QuoteRequest{
		TokenIn:  m.TokenIn,
		TokenOut: m.TokenOut,
		ChainID:  m.ChainID,
		AmountIn: m.ProbeAmount,
	}

	var lastErr error
	wait := b.cfg.QuoteRetryWait

	for attempt := 0; attempt < b.cfg.QuoteAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return domain.IndicativeQuote{}, ctx.Err()
			case <-time.After(wait):
			}
			wait *= 2
		}

		quote, err := b.quotes.IndicativeQuote(ctx, req)
		if err == nil {
			return quote, nil
		}
		lastErr = err
	}

	return domain.IndicativeQuote{}, lastErr
}

// reconcile pulls the venue state for every resting order and applies fills,
// cancels and expiries observed there.
func (b *Bridge) reconcile(ctx context.Context) {
	for _, o := range b.snapshotByStatus(domain.BridgeOrderPlaced) {
		venueOrder, err := b.venue.GetOrder(ctx, o.VenueOrderID, o.Ticker)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				b.transition(ctx, o.ID, domain.BridgeOrderCancelled, "")
				continue
			}
			b.logger.Warn("reconcile lookup failed",
				slog.String("order_id", o.ID),
				slog.String("error", err.Error()),
			)
			continue
		}

		switch venueOrder.Status {
		case domain.VenueOrderFilled:
			b.logger.Info("order filled",
				slog.String("order_id", o.ID),
				slog.String("ticker", o.Ticker),
				slog.Float64("price", o.Price),
				slog.Float64("size", o.Size),
			)
			b.transition(ctx, o.ID, domain.BridgeOrderFilled, "")
		case domain.VenueOrderCancelled, domain.VenueOrderExpired:
			b.transition(ctx, o.ID, domain.BridgeOrderCancelled, "")
		}
	}
}

// prune drops finished order records older than the retention window.
func (b *Bridge) prune() {
	cutoff := time.Now().UTC().Add(-b.cfg.PruneAfter)

	b.mu.Lock()
	defer b.mu.Unlock()

	kept := b.orderIDs[:0]
	for _, id := range b.orderIDs {
		o, ok := b.orders[id]
		if !ok {
			continue
		}
		if o.Status.Terminal() && o.UpdatedAt.Before(cutoff) {
			delete(b.orders, id)
			continue
		}
		kept = append(kept, id)
	}
	b.orderIDs = kept
}

// --------------------------------------------------------------------------
// State helpers
// --------------------------------------------------------------------------

// transition moves an order into a new status and emits the matching event.
// Terminal orders never transition again.
func (b *Bridge) transition(ctx context.Context, id string, status domain.BridgeOrderStatus, errMsg string) {
	b.mu.Lock()
	o, ok := b.orders[id]
	if !ok || o.Status.Terminal() {
		b.mu.Unlock()
		return
	}
	o.Status = status
	o.Error = errMsg
	o.UpdatedAt = time.Now().UTC()
	snapshot := *o
	b.mu.Unlock()

	var kind domain.EventType
	switch status {
	case domain.BridgeOrderPlaced:
		kind = domain.EventBridgePlaced
	case domain.BridgeOrderFilled:
		kind = domain.EventBridgeFilled
	case domain.BridgeOrderCancelled:
		kind = domain.EventBridgeCancelled
	case domain.BridgeOrderError:
		kind = domain.EventBridgeError
	default:
		return
	}

	b.emitter.Emit(ctx, domain.Event{
		Type:   kind,
		Order:  &snapshot,
		Ticker: snapshot.Ticker,
		Err:    errMsg,
	})
}

// placedOrder returns a copy of the resting order for (ticker, side), if any.
func (b *Bridge) placedOrder(ticker string, side domain.OrderSide) (domain.BridgeOrder, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, id := range b.orderIDs {
		o, ok := b.orders[id]
		if ok && o.Ticker == ticker && o.Side == side && o.Status == domain.BridgeOrderPlaced {
			return *o, true
		}
	}
	return domain.BridgeOrder{}, false
}

// countForTicker counts every tracked order record for the instrument,
// terminal records included until pruned.
func (b *Bridge) countForTicker(ticker string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, o := range b.orders {
		if o.Ticker == ticker {
			n++
		}
	}
	return n
}

// snapshotByStatus returns copies of every order in the given status.
func (b *Bridge) snapshotByStatus(status domain.BridgeOrderStatus) []domain.BridgeOrder {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []domain.BridgeOrder
	for _, id := range b.orderIDs {
		if o, ok := b.orders[id]; ok && o.Status == status {
			out = append(out, *o)
		}
	}
	return out
}
