// Package arbitrage scans for cross-venue spread between the RFQ venue's
// indicative prices and the target book's top of book. Detected opportunities
// are recorded in a bounded in-memory ring and emitted as events; the scanner
// never executes trades.
package arbitrage

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/deluthium/bridgebot/internal/domain"
	"github.com/deluthium/bridgebot/internal/events"
)

const (
	defaultScanInterval   = 5000 * time.Millisecond
	defaultMinSpreadBps   = 30.0
	defaultTargetFeeBps   = 5.0
	defaultSourceFeeBps   = 10.0
	defaultGasCostUSD     = 2.0
	defaultMaxPositionUSD = 10000.0
	defaultMinProfitUSD   = 5.0
	defaultQuoteAttempts  = 2
	defaultQuoteRetryWait = 1000 * time.Millisecond

	// opportunityRingSize bounds the recent-opportunity history.
	opportunityRingSize = 100
)

// Config tunes the scanner. Zero values fall back to defaults.
type Config struct {
	ScanInterval time.Duration

	// MinSpreadBps is the minimum net spread before an opportunity is
	// recorded.
	MinSpreadBps float64

	// TargetFeeBps and SourceFeeBps are taker fee estimates for the target
	// book and the RFQ venue. GasCostUSD is a flat settlement allowance.
	TargetFeeBps float64
	SourceFeeBps float64
	GasCostUSD   float64

	// MaxPositionUSD sizes the hypothetical position used for profit
	// estimates. MinProfitUSD gates event emission.
	MaxPositionUSD float64
	MinProfitUSD   float64

	QuoteAttempts  int
	QuoteRetryWait time.Duration
}

func (c *Config) applyDefaults() {
	if c.ScanInterval <= 0 {
		c.ScanInterval = defaultScanInterval
	}
	if c.MinSpreadBps <= 0 {
		c.MinSpreadBps = defaultMinSpreadBps
	}
	if c.TargetFeeBps <= 0 {
		c.TargetFeeBps = defaultTargetFeeBps
	}
	if c.SourceFeeBps <= 0 {
		c.SourceFeeBps = defaultSourceFeeBps
	}
	if c.GasCostUSD <= 0 {
		c.GasCostUSD = defaultGasCostUSD
	}
	if c.MaxPositionUSD <= 0 {
		c.MaxPositionUSD = defaultMaxPositionUSD
	}
	if c.MinProfitUSD <= 0 {
		c.MinProfitUSD = defaultMinProfitUSD
	}
	if c.QuoteAttempts <= 0 {
		c.QuoteAttempts = defaultQuoteAttempts
	}
	if c.QuoteRetryWait <= 0 {
		c.QuoteRetryWait = defaultQuoteRetryWait
	}
}

// Scanner runs the cross-venue spread scan. All methods are safe for
// concurrent use.
type Scanner struct {
	cfg     Config
	quotes  domain.QuoteClient
	market  domain.MarketView
	emitter *events.Emitter
	logger  *slog.Logger

	mu            sync.Mutex
	pairs         []domain.ArbPair
	opportunities []domain.Opportunity // ring, newest last
	interval      time.Duration

	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewScanner creates a Scanner over the given quote source and market view.
func NewScanner(cfg Config, quotes domain.QuoteClient, market domain.MarketView, emitter *events.Emitter, logger *slog.Logger) *Scanner {
	cfg.applyDefaults()
	return &Scanner{
		cfg:      cfg,
		quotes:   quotes,
		market:   market,
		emitter:  emitter,
		logger:   logger.With(slog.String("component", "arb_scanner")),
		interval: cfg.ScanInterval,
	}
}

// AddPair registers a pair to scan. Duplicate tickers are rejected silently.
func (s *Scanner) AddPair(p domain.ArbPair) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.pairs {
		if existing.Ticker == p.Ticker {
			return
		}
	}
	s.pairs = append(s.pairs, p)
}

// RemovePair drops the pair with the given ticker from the scan set.
func (s *Scanner) RemovePair(ticker string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	filtered := s.pairs[:0]
	for _, p := range s.pairs {
		if p.Ticker == ticker {
			continue
		}
		filtered = append(filtered, p)
	}
	s.pairs = filtered
}

// SetScanInterval adjusts the pause between scans. It takes effect on the next
// cycle.
func (s *Scanner) SetScanInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	s.mu.Lock()
	s.interval = d
	s.mu.Unlock()
}

// Start launches the scan loop. Calling Start on a running scanner is a no-op.
func (s *Scanner) Start(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	s.logger.Info("arb scanner started",
		slog.Duration("scan_interval", s.scanInterval()),
		slog.Float64("min_spread_bps", s.cfg.MinSpreadBps),
	)

	go s.loop(runCtx)
}

// Stop halts the scan loop. Calling Stop on a stopped scanner is a no-op.
func (s *Scanner) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	s.cancel()
	<-s.done
	s.logger.Info("arb scanner stopped")
}

// GetRecentOpportunities returns a copy of the retained history, oldest
// first.
func (s *Scanner) GetRecentOpportunities() []domain.Opportunity {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Opportunity, len(s.opportunities))
	copy(out, s.opportunities)
	return out
}

// --------------------------------------------------------------------------
// Scan loop
// --------------------------------------------------------------------------

func (s *Scanner) loop(ctx context.Context) {
	defer close(s.done)

	s.runScan(ctx)

	for {
		timer := time.NewTimer(s.scanInterval())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.runScan(ctx)
		}
	}
}

func (s *Scanner) scanInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// runScan evaluates every registered pair once.
func (s *Scanner) runScan(ctx context.Context) {
	s.mu.Lock()
	pairs := make([]domain.ArbPair, len(s.pairs))
	copy(pairs, s.pairs)
	s.mu.Unlock()

	for _, p := range pairs {
		if ctx.Err() != nil {
			return
		}
		s.scanPair(ctx, p)
	}
}

// scanPair fetches the indicative price for one pair and checks both spread
// directions against the target book.
func (s *Scanner) scanPair(ctx context.Context, p domain.ArbPair) {
	quote, err := s.fetchQuote(ctx, p)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("scan quote failed",
			slog.String("ticker", p.Ticker),
			slog.String("error", err.Error()),
		)
		return
	}
	if quote.Price <= 0 {
		return
	}

	bid, bidOK := s.market.BestBid(p.Ticker)
	ask, askOK := s.market.BestAsk(p.Ticker)
	if !bidOK || !askOK || bid <= 0 || ask <= 0 {
		return
	}

	sellSpread := (bid - quote.Price) / quote.Price * 10000
	s.evaluate(ctx, p, domain.DirectionBuyQuoteSellTarget, quote.Price, bid, sellSpread)

	buySpread := (quote.Price - ask) / ask * 10000
	s.evaluate(ctx, p, domain.DirectionBuyTargetSellQuote, quote.Price, ask, buySpread)
}

// evaluate turns one directional spread observation into a recorded
// opportunity when it clears the configured thresholds. The entry leg
// prices the position: buying the quote venue fills at quotePrice,
// lifting the target book fills at targetPrice.
func (s *Scanner) evaluate(ctx context.Context, p domain.ArbPair, dir domain.ArbDirection, quotePrice, targetPrice, spreadBps float64) {
	if spreadBps < s.cfg.MinSpreadBps {
		return
	}

	netSpreadBps := spreadBps - s.cfg.TargetFeeBps - s.cfg.SourceFeeBps
	if netSpreadBps <= 0 {
		return
	}

	entryPrice := quotePrice
	if dir == domain.DirectionBuyTargetSellQuote {
		entryPrice = targetPrice
	}

	grossProfit := netSpreadBps / 10000 * s.cfg.MaxPositionUSD
	feeCost := (s.cfg.TargetFeeBps + s.cfg.SourceFeeBps) / 10000 * s.cfg.MaxPositionUSD
	netProfit := grossProfit - s.cfg.GasCostUSD
	if netProfit < s.cfg.MinProfitUSD {
		return
	}

	opp := domain.Opportunity{
		ID:             uuid.NewString(),
		Ticker:         p.Ticker,
		Direction:      dir,
		QuotePrice:     quotePrice,
		TargetPrice:    targetPrice,
		SpreadBps:      spreadBps,
		NetSpreadBps:   netSpreadBps,
		PositionSize:   s.cfg.MaxPositionUSD / entryPrice,
		GrossProfitUSD: grossProfit,
		TotalCostUSD:   feeCost + s.cfg.GasCostUSD,
		NetProfitUSD:   netProfit,
		DetectedAt:     time.Now().UTC(),
		Valid:          true,
	}

	s.record(opp)

	s.logger.Info("arbitrage opportunity",
		slog.String("ticker", opp.Ticker),
		slog.String("direction", string(opp.Direction)),
		slog.Float64("spread_bps", opp.SpreadBps),
		slog.Float64("net_spread_bps", opp.NetSpreadBps),
		slog.Float64("net_profit_usd", opp.NetProfitUSD),
	)

	s.emitter.Emit(ctx, domain.Event{
		Type:        domain.EventArbitrageDetected,
		Opportunity: &opp,
		Ticker:      opp.Ticker,
	})
}

// record appends one opportunity to the bounded history ring.
func (s *Scanner) record(opp domain.Opportunity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.opportunities = append(s.opportunities, opp)
	if len(s.opportunities) > opportunityRingSize {
		s.opportunities = s.opportunities[len(s.opportunities)-opportunityRingSize:]
	}
}

// fetchQuote requests an indicative quote with bounded retry.
func (s *Scanner) fetchQuote(ctx context.Context, p domain.ArbPair) (domain.IndicativeQuote, error) {
	req := domain.QuoteRequest{
		TokenIn:  p.TokenIn,
		TokenOut: p.TokenOut,
		ChainID:  p.ChainID,
		AmountIn: p.ProbeAmount,
	}

	var lastErr error
	wait := s.cfg.QuoteRetryWait

	for attempt := 0; attempt < s.cfg.QuoteAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return domain.IndicativeQuote{}, ctx.Err()
			case <-time.After(wait):
			}
			wait *= 2
		}

		quote, err := s.quotes.IndicativeQuote(ctx, req)
		if err == nil {
			return quote, nil
		}
		lastErr = err
	}

	return domain.IndicativeQuote{}, lastErr
}
