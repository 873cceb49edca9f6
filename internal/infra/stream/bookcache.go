package stream

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/HtFilia/trading-board/errs"
	"github.com/HtFilia/trading-board/internal/schema"
)

// DefaultBookCachePrefix is the Redis key prefix holding the latest book per
// instrument.
const DefaultBookCachePrefix = "marketdata:book"

const (
	bidsField        = "bids"
	asksField        = "asks"
	lastUpdatedField = "last_updated"
)

// BookCache stores the latest order-book snapshot per instrument in a Redis
// hash. The market-data service writes it on every successful book publish;
// the trading service reads it to match incoming orders.
type BookCache struct {
	client *redis.Client
	prefix string
}

// NewBookCache wires a cache over an established Redis client. An empty
// prefix falls back to DefaultBookCachePrefix.
func NewBookCache(client *redis.Client, prefix string) *BookCache {
	if prefix == "" {
		prefix = DefaultBookCachePrefix
	}
	return &BookCache{client: client, prefix: prefix}
}

func (c *BookCache) key(instrumentID string) string {
	return c.prefix + ":" + instrumentID
}

// Put replaces the cached snapshot for the book's instrument.
func (c *BookCache) Put(ctx context.Context, book schema.OrderBookSnapshot) error {
	bids, err := encodeLevels(book.Bids)
	if err != nil {
		return fmt.Errorf("book cache: encode bids: %w", err)
	}
	asks, err := encodeLevels(book.Asks)
	if err != nil {
		return fmt.Errorf("book cache: encode asks: %w", err)
	}
	fields := map[string]any{
		bidsField:        string(bids),
		asksField:        string(asks),
		lastUpdatedField: book.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	if err := c.client.HSet(ctx, c.key(book.InstrumentID), fields).Err(); err != nil {
		return fmt.Errorf("book cache: store %s: %w", book.InstrumentID, err)
	}
	return nil
}

// GetOrderBook returns the latest cached snapshot for the instrument. A
// missing key maps to KindNotFound so callers can surface 404.
func (c *BookCache) GetOrderBook(ctx context.Context, instrumentID string) (schema.OrderBookSnapshot, error) {
	raw, err := c.client.HGetAll(ctx, c.key(instrumentID)).Result()
	if err != nil {
		return schema.OrderBookSnapshot{}, fmt.Errorf("book cache: fetch %s: %w", instrumentID, err)
	}
	if len(raw) == 0 {
		return schema.OrderBookSnapshot{}, errs.New("bookcache/get", errs.KindNotFound,
			errs.WithMessage("no order book available"),
			errs.WithField("instrument_id", instrumentID))
	}

	bids, err := decodeLevels([]byte(raw[bidsField]))
	if err != nil {
		return schema.OrderBookSnapshot{}, fmt.Errorf("book cache: decode bids for %s: %w", instrumentID, err)
	}
	asks, err := decodeLevels([]byte(raw[asksField]))
	if err != nil {
		return schema.OrderBookSnapshot{}, fmt.Errorf("book cache: decode asks for %s: %w", instrumentID, err)
	}

	snapshot := schema.OrderBookSnapshot{
		InstrumentID: instrumentID,
		Bids:         bids,
		Asks:         asks,
	}
	if ts := raw[lastUpdatedField]; ts != "" {
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return schema.OrderBookSnapshot{}, fmt.Errorf("book cache: parse last_updated for %s: %w", instrumentID, err)
		}
		snapshot.Timestamp = parsed
	}
	return snapshot, nil
}

// encodeLevels renders ladder levels as [[price, quantity], ...] pairs, the
// compact form shared with non-Go consumers of the cache.
func encodeLevels(levels []schema.BookLevel) ([]byte, error) {
	pairs := make([][2]float64, len(levels))
	for i, level := range levels {
		pairs[i] = [2]float64{level.Price, level.Quantity}
	}
	return json.Marshal(pairs)
}

func decodeLevels(data []byte) ([]schema.BookLevel, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var pairs [][2]float64
	if err := json.Unmarshal(data, &pairs); err != nil {
		return nil, err
	}
	levels := make([]schema.BookLevel, len(pairs))
	for i, pair := range pairs {
		levels[i] = schema.BookLevel{Price: pair[0], Quantity: pair[1]}
	}
	return levels, nil
}
