package postgres

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/HtFilia/trading-board/internal/schema"
)

// MarketStore persists the market data emission pipeline: ticks and dealer
// quotes share the market_ticks table (quotes carry a dealer_id, ticks leave
// it NULL), order book snapshots land in order_books as a JSON ladder.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore constructs a MarketStore backed by the provided pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const (
	tickInsertSQL = `
INSERT INTO market_ticks (instrument_id, timestamp, bid, ask, mid, dealer_id, metadata)
VALUES (@instrument_id, @timestamp, @bid, @ask, @mid, NULL, @metadata::jsonb);
`

	quoteInsertSQL = `
INSERT INTO market_ticks (instrument_id, timestamp, bid, ask, mid, dealer_id, metadata)
VALUES (@instrument_id, @timestamp, @bid, @ask, @mid, @dealer_id, @metadata::jsonb);
`

	bookInsertSQL = `
INSERT INTO order_books (instrument_id, timestamp, levels)
VALUES (@instrument_id, @timestamp, @levels::jsonb);
`
)

func (s *MarketStore) ensurePool() (*pgxpool.Pool, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("market store: nil pool")
	}
	return s.pool, nil
}

// PersistTick stores one synthetic tick.
func (s *MarketStore) PersistTick(ctx context.Context, event schema.TickEvent) error {
	pool, err := s.ensurePool()
	if err != nil {
		return err
	}
	metadata, err := encodeMetadata(event.Metadata)
	if err != nil {
		return err
	}
	args := pgx.NamedArgs{
		"instrument_id": event.InstrumentID,
		"timestamp":     event.Timestamp,
		"bid":           event.Bid,
		"ask":           event.Ask,
		"mid":           event.Mid,
		"metadata":      metadata,
	}
	if _, err := pool.Exec(ctx, tickInsertSQL, args); err != nil {
		return fmt.Errorf("market store: insert tick: %w", err)
	}
	return nil
}

// PersistDealerQuote stores one dealer quote. The mid is derived from the
// quoted two-way price.
func (s *MarketStore) PersistDealerQuote(ctx context.Context, quote schema.DealerQuoteEvent) error {
	pool, err := s.ensurePool()
	if err != nil {
		return err
	}
	metadata, err := encodeMetadata(quote.Metadata)
	if err != nil {
		return err
	}
	args := pgx.NamedArgs{
		"instrument_id": quote.InstrumentID,
		"timestamp":     quote.Timestamp,
		"bid":           quote.Bid,
		"ask":           quote.Ask,
		"mid":           (quote.Bid + quote.Ask) / 2,
		"dealer_id":     quote.DealerID,
		"metadata":      metadata,
	}
	if _, err := pool.Exec(ctx, quoteInsertSQL, args); err != nil {
		return fmt.Errorf("market store: insert dealer quote: %w", err)
	}
	return nil
}

// PersistOrderBook stores one full-depth snapshot. Levels are encoded as a
// single JSON document with bids and asks keyed by side.
func (s *MarketStore) PersistOrderBook(ctx context.Context, snapshot schema.OrderBookSnapshot) error {
	pool, err := s.ensurePool()
	if err != nil {
		return err
	}
	levels, err := encodeLevels(snapshot)
	if err != nil {
		return err
	}
	args := pgx.NamedArgs{
		"instrument_id": snapshot.InstrumentID,
		"timestamp":     snapshot.Timestamp,
		"levels":        levels,
	}
	if _, err := pool.Exec(ctx, bookInsertSQL, args); err != nil {
		return fmt.Errorf("market store: insert order book: %w", err)
	}
	return nil
}

func encodeLevels(snapshot schema.OrderBookSnapshot) ([]byte, error) {
	levels := map[string][]schema.BookLevel{
		"bids": snapshot.Bids,
		"asks": snapshot.Asks,
	}
	data, err := json.Marshal(levels)
	if err != nil {
		return nil, fmt.Errorf("market store: encode levels: %w", err)
	}
	return data, nil
}

func encodeMetadata(meta map[string]any) ([]byte, error) {
	if len(meta) == 0 {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("market store: encode metadata: %w", err)
	}
	return data, nil
}
