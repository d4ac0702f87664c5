package app

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/deluthium/bridgebot/internal/arbitrage"
	"github.com/deluthium/bridgebot/internal/bridge"
	"github.com/deluthium/bridgebot/internal/domain"
	"github.com/deluthium/bridgebot/internal/pipeline"
)

// BridgeMode runs the order bridge: RFQ quotes mirrored as resting limit
// orders on the target book.
func (a *App) BridgeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting bridge mode")

	g, ctx := errgroup.WithContext(ctx)

	if err := a.startFeed(ctx, deps, a.bridgeTickers()); err != nil {
		return err
	}
	a.startBackground(ctx, g, deps)

	br, err := a.buildBridge(deps)
	if err != nil {
		return err
	}

	g.Go(func() error {
		br.Start(ctx)
		<-ctx.Done()
		br.Stop()
		return ctx.Err()
	})

	return g.Wait()
}

// ArbitrageMode runs the spread scanner without placing any orders.
func (a *App) ArbitrageMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting arbitrage mode")

	g, ctx := errgroup.WithContext(ctx)

	if err := a.startFeed(ctx, deps, a.arbTickers()); err != nil {
		return err
	}
	a.startBackground(ctx, g, deps)

	sc, err := a.buildScanner(deps)
	if err != nil {
		return err
	}

	g.Go(func() error {
		sc.Start(ctx)
		<-ctx.Done()
		sc.Stop()
		return ctx.Err()
	})

	return g.Wait()
}

// FullMode runs the bridge and, when enabled, the spread scanner side by side.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	tickers := a.bridgeTickers()
	if a.cfg.Arbitrage.Enabled {
		tickers = append(tickers, a.arbTickers()...)
	}
	if err := a.startFeed(ctx, deps, dedupe(tickers)); err != nil {
		return err
	}
	a.startBackground(ctx, g, deps)

	br, err := a.buildBridge(deps)
	if err != nil {
		return err
	}
	g.Go(func() error {
		br.Start(ctx)
		<-ctx.Done()
		br.Stop()
		return ctx.Err()
	})

	if a.cfg.Arbitrage.Enabled {
		sc, err := a.buildScanner(deps)
		if err != nil {
			return err
		}
		g.Go(func() error {
			sc.Start(ctx)
			<-ctx.Done()
			sc.Stop()
			return ctx.Err()
		})
	}

	return g.Wait()
}

// --------------------------------------------------------------------------
// Construction helpers
// --------------------------------------------------------------------------

// buildBridge assembles the order bridge from configuration.
func (a *App) buildBridge(deps *Dependencies) (*bridge.Bridge, error) {
	br, err := bridge.New(bridge.Config{
		RefreshInterval:       a.cfg.Bridge.RefreshInterval.Duration,
		MaxOrdersPerTicker:    a.cfg.Bridge.MaxOrdersPerTicker,
		DeviationThresholdBps: a.cfg.Bridge.PriceDeviationThresholdBps,
		QuoteAttempts:         a.cfg.Bridge.QuoteRetryAttempts,
		QuoteRetryWait:        a.cfg.Bridge.QuoteRetryWait.Duration,
		PruneAfter:            a.cfg.Bridge.PruneAfter.Duration,
		Strategy:              a.cfg.Bridge.Strategy,
	}, deps.Quotes, deps.Venue, deps.Market, deps.Emitter, a.logger)
	if err != nil {
		return nil, fmt.Errorf("app: build bridge: %w", err)
	}

	for _, mc := range a.cfg.Bridge.Mappings {
		m, err := mc.ToDomain()
		if err != nil {
			return nil, fmt.Errorf("app: bridge mapping: %w", err)
		}
		if err := br.AddMapping(m); err != nil {
			return nil, fmt.Errorf("app: bridge mapping: %w", err)
		}
	}
	return br, nil
}

// buildScanner assembles the spread scanner from configuration.
func (a *App) buildScanner(deps *Dependencies) (*arbitrage.Scanner, error) {
	sc := arbitrage.NewScanner(arbitrage.Config{
		ScanInterval:   a.cfg.Arbitrage.ScanInterval.Duration,
		MinSpreadBps:   a.cfg.Arbitrage.MinSpreadBps,
		TargetFeeBps:   a.cfg.Arbitrage.TargetFeeBps,
		SourceFeeBps:   a.cfg.Arbitrage.SourceFeeBps,
		GasCostUSD:     a.cfg.Arbitrage.GasCostUSD,
		MaxPositionUSD: a.cfg.Arbitrage.MaxPositionUSD,
		MinProfitUSD:   a.cfg.Arbitrage.MinProfitUSD,
		QuoteAttempts:  a.cfg.Arbitrage.QuoteRetryAttempts,
		QuoteRetryWait: a.cfg.Arbitrage.QuoteRetryWait.Duration,
	}, deps.Quotes, deps.Market, deps.Emitter, a.logger)

	for _, pc := range a.cfg.Arbitrage.Pairs {
		p, err := pc.ToDomain()
		if err != nil {
			return nil, fmt.Errorf("app: arbitrage pair: %w", err)
		}
		sc.AddPair(p)
	}
	return sc, nil
}

// startFeed connects the market data WebSocket and subscribes the given
// tickers into the shared market view. A nil feed is a no-op.
func (a *App) startFeed(ctx context.Context, deps *Dependencies, tickers []string) error {
	if deps.Feed == nil || len(tickers) == 0 {
		return nil
	}

	deps.Feed.OnBookTicker(func(bt domain.BookTicker) {
		deps.Market.Apply(ctx, bt)
	})

	if err := deps.Feed.Connect(ctx); err != nil {
		return fmt.Errorf("app: market feed: %w", err)
	}
	if err := deps.Feed.Subscribe(ctx, tickers); err != nil {
		return fmt.Errorf("app: market feed: %w", err)
	}

	a.logger.InfoContext(ctx, "market feed connected", slog.Int("tickers", len(tickers)))
	return nil
}

// startBackground launches the optional pair sync and archiver loops.
func (a *App) startBackground(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if a.cfg.Pipeline.Enabled && deps.PairStore != nil {
		sync := pipeline.NewPairSync(deps.Quotes, deps.PairStore, a.logger)
		interval := a.cfg.Pipeline.PairSyncInterval.Duration
		g.Go(func() error {
			return sync.RunLoop(ctx, interval)
		})
	}

	if deps.Archiver != nil {
		interval := a.cfg.S3.FlushInterval.Duration
		g.Go(func() error {
			return deps.Archiver.RunLoop(ctx, interval)
		})
	}
}

func (a *App) bridgeTickers() []string {
	out := make([]string, 0, len(a.cfg.Bridge.Mappings))
	for _, m := range a.cfg.Bridge.Mappings {
		out = append(out, m.Ticker)
	}
	return dedupe(out)
}

func (a *App) arbTickers() []string {
	out := make([]string, 0, len(a.cfg.Arbitrage.Pairs))
	for _, p := range a.cfg.Arbitrage.Pairs {
		out = append(out, p.Ticker)
	}
	return dedupe(out)
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
