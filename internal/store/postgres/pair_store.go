package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deluthium/bridgebot/internal/domain"
)

// PairStore implements domain.PairStore using PostgreSQL.
type PairStore struct {
	pool *pgxpool.Pool
}

// NewPairStore creates a new PairStore backed by the given connection pool.
func NewPairStore(pool *pgxpool.Pool) *PairStore {
	return &PairStore{pool: pool}
}

// UpsertPairs inserts or updates the given listing pairs in a single batch.
func (s *PairStore) UpsertPairs(ctx context.Context, pairs []domain.ListingPair) error {
	if len(pairs) == 0 {
		return nil
	}

	const query = `
		INSERT INTO listing_pairs (
			chain_id, symbol, base_token, quote_token,
			base_decimals, quote_decimals, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (chain_id, symbol) DO UPDATE SET
			base_token     = EXCLUDED.base_token,
			quote_token    = EXCLUDED.quote_token,
			base_decimals  = EXCLUDED.base_decimals,
			quote_decimals = EXCLUDED.quote_decimals,
			updated_at     = NOW()`

	batch := &pgx.Batch{}
	for _, p := range pairs {
		batch.Queue(query,
			p.ChainID, p.Symbol,
			p.BaseToken.Hex(), p.QuoteToken.Hex(),
			p.BaseDecimals, p.QuoteDecimals,
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range pairs {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("postgres: upsert pairs: %w", err)
		}
	}
	return nil
}

// ListPairs returns every pair stored for the given chain, ordered by symbol.
func (s *PairStore) ListPairs(ctx context.Context, chainID int) ([]domain.ListingPair, error) {
	const query = `
		SELECT chain_id, symbol, base_token, quote_token,
		       base_decimals, quote_decimals, updated_at
		FROM listing_pairs
		WHERE chain_id = $1
		ORDER BY symbol`

	rows, err := s.pool.Query(ctx, query, chainID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list pairs chain %d: %w", chainID, err)
	}
	defer rows.Close()

	var pairs []domain.ListingPair
	for rows.Next() {
		var (
			p          domain.ListingPair
			base, quot string
		)
		if err := rows.Scan(
			&p.ChainID, &p.Symbol, &base, &quot,
			&p.BaseDecimals, &p.QuoteDecimals, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan pair: %w", err)
		}
		p.BaseToken = common.HexToAddress(base)
		p.QuoteToken = common.HexToAddress(quot)
		pairs = append(pairs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list pairs chain %d: %w", chainID, err)
	}

	return pairs, nil
}

// Compile-time interface check.
var _ domain.PairStore = (*PairStore)(nil)
