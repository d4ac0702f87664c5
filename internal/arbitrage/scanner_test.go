package arbitrage

import (
	"context"
	"errors"
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

// fakeQuotes serves one indicative price per TokenIn address.
type fakeQuotes struct {
	mu    sync.Mutex
	price map[string]float64
	errs  map[string]error
}

func newFakeQuotes() *fakeQuotes {
	return &fakeQuotes{
		price: make(map[string]float64),
		errs:  make(map[string]error),
	}
}

func (f *fakeQuotes) IndicativeQuote(_ context.Context, req domain.QuoteRequest) (domain.IndicativeQuote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

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
		AmountOut: big.NewInt(1),
		Price:     price,
		Timestamp: time.Now().UTC(),
	}, nil
}

// fakeMarket serves fixed top-of-book per ticker. A missing ticker reports no
// data.
type fakeMarket struct {
	mu    sync.Mutex
	books map[string][2]float64 // bid, ask
}

func newFakeMarket() *fakeMarket {
	return &fakeMarket{books: make(map[string][2]float64)}
}

func (f *fakeMarket) set(ticker string, bid, ask float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.books[ticker] = [2]float64{bid, ask}
}

func (f *fakeMarket) BestBid(ticker string) (float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	book, ok := f.books[ticker]
	return book[0], ok
}

func (f *fakeMarket) BestAsk(ticker string) (float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	book, ok := f.books[ticker]
	return book[1], ok
}

func (f *fakeMarket) SpreadBps(ticker string) (float64, bool) {
	bid, ok := f.BestBid(ticker)
	if !ok || bid <= 0 {
		return 0, false
	}
	ask, ok := f.BestAsk(ticker)
	if !ok {
		return 0, false
	}
	return (ask - bid) / bid * 10000, true
}

type oppRecorder struct {
	mu   sync.Mutex
	opps []domain.Opportunity
}

func (r *oppRecorder) handle(ev domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ev.Opportunity != nil {
		r.opps = append(r.opps, *ev.Opportunity)
	}
}

func (r *oppRecorder) all() []domain.Opportunity {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Opportunity, len(r.opps))
	copy(out, r.opps)
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPair(ticker string, tokenIn byte) domain.ArbPair {
	var in, out [20]byte
	in[19] = tokenIn
	out[19] = tokenIn + 1
	return domain.ArbPair{
		Ticker:       ticker,
		TokenIn:      in,
		TokenOut:     out,
		ChainID:      56,
		BaseDecimals: 18,
		ProbeAmount:  big.NewInt(1_000_000_000_000_000_000),
	}
}

func newTestScanner(t *testing.T, cfg Config, quotes domain.QuoteClient, market domain.MarketView) (*Scanner, *oppRecorder) {
	t.Helper()

	emitter := events.NewEmitter(testLogger())
	rec := &oppRecorder{}
	emitter.Subscribe(domain.EventArbitrageDetected, rec.handle)

	if cfg.QuoteAttempts == 0 {
		cfg.QuoteAttempts = 1
	}
	if cfg.QuoteRetryWait == 0 {
		cfg.QuoteRetryWait = time.Millisecond
	}
	return NewScanner(cfg, quotes, market, emitter, testLogger()), rec
}

func TestScanDetectsSellIntoBid(t *testing.T) {
	quotes := newFakeQuotes()
	market := newFakeMarket()
	s, rec := newTestScanner(t, Config{}, quotes, market)

	p := testPair("WBNB-USDT", 0x01)
	quotes.price[p.TokenIn.Hex()] = 100.0
	market.set("WBNB-USDT", 100.5, 101.0) // bid 50 bps above quote
	s.AddPair(p)

	s.runScan(context.Background())

	opps := s.GetRecentOpportunities()
	require.Len(t, opps, 1)
	opp := opps[0]

	assert.Equal(t, domain.DirectionBuyQuoteSellTarget, opp.Direction)
	assert.Equal(t, 100.0, opp.QuotePrice)
	assert.Equal(t, 100.5, opp.TargetPrice)
	assert.InDelta(t, 50.0, opp.SpreadBps, 1e-9)
	assert.InDelta(t, 35.0, opp.NetSpreadBps, 1e-9) // minus 5+10 bps fees
	assert.InDelta(t, 100.0, opp.PositionSize, 1e-9)
	assert.InDelta(t, 35.0, opp.GrossProfitUSD, 1e-9)
	assert.InDelta(t, 17.0, opp.TotalCostUSD, 1e-9) // $15 fees + $2 gas
	assert.InDelta(t, 33.0, opp.NetProfitUSD, 1e-9)
	assert.True(t, opp.Valid)
	assert.NotEmpty(t, opp.ID)

	emitted := rec.all()
	require.Len(t, emitted, 1)
	assert.Equal(t, opp.ID, emitted[0].ID)
}

func TestScanDetectsLiftAsk(t *testing.T) {
	quotes := newFakeQuotes()
	market := newFakeMarket()
	s, rec := newTestScanner(t, Config{}, quotes, market)

	p := testPair("WBNB-USDT", 0x01)
	quotes.price[p.TokenIn.Hex()] = 101.0
	market.set("WBNB-USDT", 100.0, 100.5) // quote 50 bps above ask
	s.AddPair(p)

	s.runScan(context.Background())

	opps := s.GetRecentOpportunities()
	require.Len(t, opps, 1)
	assert.Equal(t, domain.DirectionBuyTargetSellQuote, opps[0].Direction)
	assert.InDelta(t, (101.0-100.5)/100.5*10000, opps[0].SpreadBps, 1e-9)
	// The entry leg lifts the ask, so size is denominated at the ask.
	assert.InDelta(t, defaultMaxPositionUSD/100.5, opps[0].PositionSize, 1e-9)
	assert.Len(t, rec.all(), 1)
}

func TestScanIgnoresThinSpread(t *testing.T) {
	quotes := newFakeQuotes()
	market := newFakeMarket()
	s, rec := newTestScanner(t, Config{}, quotes, market)

	p := testPair("WBNB-USDT", 0x01)
	quotes.price[p.TokenIn.Hex()] = 100.0
	// 20 bps gross, under the 30 bps minimum.
	market.set("WBNB-USDT", 100.2, 100.5)
	s.AddPair(p)

	s.runScan(context.Background())

	assert.Empty(t, s.GetRecentOpportunities())
	assert.Empty(t, rec.all())
}

func TestScanDiscardsUnprofitablePosition(t *testing.T) {
	quotes := newFakeQuotes()
	market := newFakeMarket()
	// Tiny position: the spread clears the bps gate but gas eats the profit.
	s, rec := newTestScanner(t, Config{MaxPositionUSD: 100}, quotes, market)

	p := testPair("WBNB-USDT", 0x01)
	quotes.price[p.TokenIn.Hex()] = 100.0
	market.set("WBNB-USDT", 100.5, 101.0)
	s.AddPair(p)

	s.runScan(context.Background())

	assert.Empty(t, s.GetRecentOpportunities())
	assert.Empty(t, rec.all())
}

func TestScanSkipsPairsWithoutBook(t *testing.T) {
	quotes := newFakeQuotes()
	market := newFakeMarket()
	s, _ := newTestScanner(t, Config{}, quotes, market)

	p := testPair("WBNB-USDT", 0x01)
	quotes.price[p.TokenIn.Hex()] = 100.0
	s.AddPair(p)

	s.runScan(context.Background())

	assert.Empty(t, s.GetRecentOpportunities())
}

func TestScanPairIsolation(t *testing.T) {
	quotes := newFakeQuotes()
	market := newFakeMarket()
	s, _ := newTestScanner(t, Config{}, quotes, market)

	healthy := testPair("WBNB-USDT", 0x01)
	broken := testPair("WETH-USDT", 0x03)
	quotes.price[healthy.TokenIn.Hex()] = 100.0
	quotes.errs[broken.TokenIn.Hex()] = errors.New("no liquidity")
	market.set("WBNB-USDT", 100.5, 101.0)
	market.set("WETH-USDT", 3000, 3001)
	s.AddPair(healthy)
	s.AddPair(broken)

	s.runScan(context.Background())

	opps := s.GetRecentOpportunities()
	require.Len(t, opps, 1)
	assert.Equal(t, "WBNB-USDT", opps[0].Ticker)
}

func TestAddPairIgnoresDuplicates(t *testing.T) {
	quotes := newFakeQuotes()
	s, _ := newTestScanner(t, Config{}, quotes, newFakeMarket())

	s.AddPair(testPair("WBNB-USDT", 0x01))
	s.AddPair(testPair("WBNB-USDT", 0x05))

	s.mu.Lock()
	n := len(s.pairs)
	s.mu.Unlock()
	assert.Equal(t, 1, n)
}

func TestOpportunityHistoryIsBounded(t *testing.T) {
	quotes := newFakeQuotes()
	s, _ := newTestScanner(t, Config{}, quotes, newFakeMarket())

	for i := 0; i < opportunityRingSize+50; i++ {
		s.record(domain.Opportunity{ID: "opp", SpreadBps: float64(i)})
	}

	opps := s.GetRecentOpportunities()
	require.Len(t, opps, opportunityRingSize)
	// Oldest entries were dropped, newest retained.
	assert.Equal(t, 50.0, opps[0].SpreadBps)
	assert.Equal(t, float64(opportunityRingSize+49), opps[len(opps)-1].SpreadBps)
}

func TestStartStopLifecycle(t *testing.T) {
	quotes := newFakeQuotes()
	market := newFakeMarket()
	s, _ := newTestScanner(t, Config{ScanInterval: time.Hour}, quotes, market)

	p := testPair("WBNB-USDT", 0x01)
	quotes.price[p.TokenIn.Hex()] = 100.0
	market.set("WBNB-USDT", 100.5, 101.0)
	s.AddPair(p)

	s.Start(context.Background())
	require.Eventually(t, func() bool {
		return len(s.GetRecentOpportunities()) == 1
	}, time.Second, 5*time.Millisecond)

	s.Stop()
	s.Stop() // idempotent
}
