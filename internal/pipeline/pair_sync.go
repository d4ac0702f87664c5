// Package pipeline holds background data jobs that run alongside the bridge
// and scanner loops.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/deluthium/bridgebot/internal/domain"
)

// PairLister retrieves the tradeable pair catalog from the RFQ venue.
type PairLister interface {
	ListPairs(ctx context.Context) ([]domain.ListingPair, error)
}

// PairSync mirrors the RFQ venue's pair catalog into the pair store.
type PairSync struct {
	lister PairLister
	store  domain.PairStore
	logger *slog.Logger
}

// NewPairSync creates a PairSync.
func NewPairSync(lister PairLister, store domain.PairStore, logger *slog.Logger) *PairSync {
	return &PairSync{
		lister: lister,
		store:  store,
		logger: logger.With(slog.String("component", "pair_sync")),
	}
}

// Run executes a single sync pass: fetch the full catalog and upsert it.
func (s *PairSync) Run(ctx context.Context) error {
	pairs, err := s.lister.ListPairs(ctx)
	if err != nil {
		return fmt.Errorf("pair sync: list pairs: %w", err)
	}
	if len(pairs) == 0 {
		s.logger.Warn("pair catalog empty, skipping upsert")
		return nil
	}

	if err := s.store.UpsertPairs(ctx, pairs); err != nil {
		return fmt.Errorf("pair sync: upsert %d pairs: %w", len(pairs), err)
	}

	s.logger.Info("pair catalog synced", slog.Int("pairs", len(pairs)))
	return nil
}

// RunLoop runs the sync on a repeating interval until the context is
// cancelled. Failures are logged and the loop continues.
func (s *PairSync) RunLoop(ctx context.Context, interval time.Duration) error {
	if err := s.Run(ctx); err != nil {
		s.logger.Error("pair sync failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("pair sync loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := s.Run(ctx); err != nil {
				s.logger.Error("pair sync failed", slog.String("error", err.Error()))
			}
		}
	}
}
