package stream

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/HtFilia/trading-board/internal/schema"
)

// payloadField is the single stream entry field carrying the JSON event.
const payloadField = "payload"

// StreamNames binds each event type to its Redis stream.
type StreamNames struct {
	Ticks      string
	Books      string
	Quotes     string
	Executions string
}

// Publisher appends events to Redis Streams, one JSON document per entry
// under the "payload" field. When a book cache is attached, every published
// book snapshot also refreshes the cached ladder for its instrument.
type Publisher struct {
	client  *redis.Client
	streams StreamNames
	books   *BookCache

	executionMaxLen int64
}

// NewPublisher wires a publisher over an established Redis client. cache may
// be nil for services that never publish books.
func NewPublisher(client *redis.Client, streams StreamNames, cache *BookCache) *Publisher {
	return &Publisher{client: client, streams: streams, books: cache, executionMaxLen: 0}
}

// SetExecutionMaxLen caps the execution stream at approximately maxLen
// entries (XADD MAXLEN ~). Zero or negative disables trimming.
func (p *Publisher) SetExecutionMaxLen(maxLen int64) {
	p.executionMaxLen = maxLen
}

// PublishTick appends a tick event to the tick stream.
func (p *Publisher) PublishTick(ctx context.Context, tick schema.TickEvent) error {
	return p.append(ctx, p.streams.Ticks, "tick", tick)
}

// PublishOrderBook appends an order-book snapshot to the book stream, then
// refreshes the book cache so the trading read path sees the same ladder.
func (p *Publisher) PublishOrderBook(ctx context.Context, book schema.OrderBookSnapshot) error {
	if err := p.append(ctx, p.streams.Books, "book", book); err != nil {
		return err
	}
	if p.books != nil {
		if err := p.books.Put(ctx, book); err != nil {
			return fmt.Errorf("stream publisher: refresh book cache: %w", err)
		}
	}
	return nil
}

// PublishDealerQuote appends a dealer quote to the quote stream.
func (p *Publisher) PublishDealerQuote(ctx context.Context, quote schema.DealerQuoteEvent) error {
	return p.append(ctx, p.streams.Quotes, "dealer quote", quote)
}

// PublishExecution appends an execution event to the execution stream,
// trimming it to the configured approximate length when one is set.
func (p *Publisher) PublishExecution(ctx context.Context, exec schema.ExecutionEvent) error {
	return p.appendTrimmed(ctx, p.streams.Executions, "execution", exec, p.executionMaxLen)
}

func (p *Publisher) append(ctx context.Context, stream, label string, event any) error {
	return p.appendTrimmed(ctx, stream, label, event, 0)
}

func (p *Publisher) appendTrimmed(ctx context.Context, stream, label string, event any, maxLen int64) error {
	if stream == "" {
		return fmt.Errorf("stream publisher: %s stream not configured", label)
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("stream publisher: marshal %s: %w", label, err)
	}
	args := &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{payloadField: string(payload)},
	}
	if maxLen > 0 {
		args.MaxLen = maxLen
		args.Approx = true
	}
	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("stream publisher: append %s: %w", label, err)
	}
	return nil
}
