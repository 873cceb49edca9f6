package marketdata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/HtFilia/trading-board/errs"
	"github.com/HtFilia/trading-board/internal/observability"
	"github.com/HtFilia/trading-board/internal/retry"
	"github.com/HtFilia/trading-board/internal/schema"
)

// TickPersister stores a tick durably before it is published.
type TickPersister interface {
	PersistTick(ctx context.Context, event schema.TickEvent) error
}

// TickPublisher pushes a tick onto the streaming bus.
type TickPublisher interface {
	PublishTick(ctx context.Context, event schema.TickEvent) error
}

// BookPersister stores an order book snapshot durably.
type BookPersister interface {
	PersistOrderBook(ctx context.Context, snapshot schema.OrderBookSnapshot) error
}

// BookPublisher pushes an order book snapshot onto the streaming bus and
// refreshes the shared book cache.
type BookPublisher interface {
	PublishOrderBook(ctx context.Context, snapshot schema.OrderBookSnapshot) error
}

// QuotePersister stores a dealer quote durably.
type QuotePersister interface {
	PersistDealerQuote(ctx context.Context, quote schema.DealerQuoteEvent) error
}

// QuotePublisher pushes a dealer quote onto the streaming bus.
type QuotePublisher interface {
	PublishDealerQuote(ctx context.Context, quote schema.DealerQuoteEvent) error
}

// TickBroadcaster fans successfully published ticks out to in-process
// subscribers (the live tick websocket). Implementations must not block.
type TickBroadcaster interface {
	Broadcast(event schema.TickEvent)
}

// Metrics records pump telemetry. A nil Metrics disables recording.
type Metrics interface {
	RecordTick(ctx context.Context, instrumentID string)
	RecordEmissionFailure(ctx context.Context, instrumentID string)
	RecordPumpDuration(ctx context.Context, elapsed time.Duration)
}

// EngineOptions wires the engine's sinks and knobs. TickPersister and
// TickPublisher are required; everything else is optional.
type EngineOptions struct {
	TickPersister  TickPersister
	TickPublisher  TickPublisher
	BookPersister  BookPersister
	BookPublisher  BookPublisher
	QuotePersister QuotePersister
	QuotePublisher QuotePublisher
	Broadcaster    TickBroadcaster
	Metrics        Metrics
	RetryAttempts  int
	RetryBaseDelay time.Duration
	Now            func() time.Time
}

// Engine drives all instrument feeds: each pump selects the feeds that are
// due, advances their schedules, and runs the emission pipeline per feed.
// All mutation happens on the pump goroutine; last-tick reads are safe from
// any goroutine.
type Engine struct {
	feeds []*InstrumentFeed
	opts  EngineOptions

	mu        sync.RWMutex
	lastTicks map[string]schema.TickEvent
}

// NewEngine validates the wiring and builds an engine over the feeds.
func NewEngine(feeds []*InstrumentFeed, opts EngineOptions) (*Engine, error) {
	if len(feeds) == 0 {
		return nil, errs.New("marketdata/engine", errs.KindValidation,
			errs.WithMessage("at least one feed required"))
	}
	if opts.TickPersister == nil || opts.TickPublisher == nil {
		return nil, errs.New("marketdata/engine", errs.KindValidation,
			errs.WithMessage("tick persister and publisher required"))
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = retry.DefaultAttempts
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = retry.DefaultBaseDelay
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Engine{
		feeds:     feeds,
		opts:      opts,
		lastTicks: make(map[string]schema.TickEvent, len(feeds)),
	}, nil
}

// Feeds returns the engine's feeds, in configuration order.
func (e *Engine) Feeds() []*InstrumentFeed { return e.feeds }

// LastTick returns the most recently published tick for the instrument.
func (e *Engine) LastTick(instrumentID string) (schema.TickEvent, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	tick, ok := e.lastTicks[instrumentID]
	return tick, ok
}

// Pump runs one scheduling pass at the given instant. Due feeds are
// selected and their next-due advanced first, so a failing feed cannot
// monopolize subsequent pumps; the emission pipeline then runs per feed in
// configuration order. The first exhausted emission aborts the pass and is
// returned; earlier sub-steps are not rolled back (at-least-once).
func (e *Engine) Pump(ctx context.Context, now time.Time) error {
	type emission struct {
		feed *InstrumentFeed
		tick schema.TickEvent
	}

	due := make([]emission, 0, len(e.feeds))
	for _, feed := range e.feeds {
		if !feed.due(now) {
			continue
		}
		due = append(due, emission{feed: feed, tick: feed.NextTick(now)})
		feed.nextDue = now.Add(feed.interval)
	}

	for _, em := range due {
		if err := e.emit(ctx, em.feed, em.tick); err != nil {
			e.recordEmissionFailure(ctx, em.feed.instrumentID)
			return fmt.Errorf("emit %s: %w", em.feed.instrumentID, err)
		}
	}
	return nil
}

// Run pumps at the given cadence until the context is cancelled. Pump
// failures are logged and the loop continues on the next interval.
func (e *Engine) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return errs.New("marketdata/engine", errs.KindValidation,
			errs.WithMessage("pump interval must be positive"))
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		start := time.Now()
		if err := e.Pump(ctx, e.opts.Now()); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			observability.Log().Error("pump aborted",
				observability.F("error", err.Error()))
		}
		e.recordPumpDuration(ctx, time.Since(start))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// emit runs the ordered pipeline for one feed: tick persist → publish →
// remember/broadcast → optional book persist → publish → optional quote
// persists → publishes. Every I/O step is retried with the engine policy.
func (e *Engine) emit(ctx context.Context, feed *InstrumentFeed, tick schema.TickEvent) error {
	if err := e.withRetry(ctx, "persist tick", func(ctx context.Context) error {
		return e.opts.TickPersister.PersistTick(ctx, tick)
	}); err != nil {
		return err
	}
	if err := e.withRetry(ctx, "publish tick", func(ctx context.Context) error {
		return e.opts.TickPublisher.PublishTick(ctx, tick)
	}); err != nil {
		return err
	}

	e.mu.Lock()
	e.lastTicks[tick.InstrumentID] = tick
	e.mu.Unlock()
	if e.opts.Broadcaster != nil {
		e.opts.Broadcaster.Broadcast(tick)
	}
	e.recordTick(ctx, tick.InstrumentID)

	if feed.book != nil {
		snapshot, err := feed.book.Build(tick.Mid, tick.Timestamp)
		if err != nil {
			return err
		}
		if e.opts.BookPersister != nil {
			if err := e.withRetry(ctx, "persist order book", func(ctx context.Context) error {
				return e.opts.BookPersister.PersistOrderBook(ctx, snapshot)
			}); err != nil {
				return err
			}
		}
		if e.opts.BookPublisher != nil {
			if err := e.withRetry(ctx, "publish order book", func(ctx context.Context) error {
				return e.opts.BookPublisher.PublishOrderBook(ctx, snapshot)
			}); err != nil {
				return err
			}
		}
	}

	if feed.quotes != nil {
		quotes, err := feed.quotes.Quotes(tick.Mid, tick.Timestamp)
		if err != nil {
			return err
		}
		if e.opts.QuotePersister != nil {
			for _, quote := range quotes {
				if err := e.withRetry(ctx, "persist dealer quote", func(ctx context.Context) error {
					return e.opts.QuotePersister.PersistDealerQuote(ctx, quote)
				}); err != nil {
					return err
				}
			}
		}
		if e.opts.QuotePublisher != nil {
			for _, quote := range quotes {
				if err := e.withRetry(ctx, "publish dealer quote", func(ctx context.Context) error {
					return e.opts.QuotePublisher.PublishDealerQuote(ctx, quote)
				}); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (e *Engine) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	return retry.Do(ctx, e.opts.RetryAttempts, e.opts.RetryBaseDelay, op, fn)
}

func (e *Engine) recordTick(ctx context.Context, instrumentID string) {
	if e.opts.Metrics != nil {
		e.opts.Metrics.RecordTick(ctx, instrumentID)
	}
}

func (e *Engine) recordEmissionFailure(ctx context.Context, instrumentID string) {
	if e.opts.Metrics != nil {
		e.opts.Metrics.RecordEmissionFailure(ctx, instrumentID)
	}
}

func (e *Engine) recordPumpDuration(ctx context.Context, elapsed time.Duration) {
	if e.opts.Metrics != nil {
		e.opts.Metrics.RecordPumpDuration(ctx, elapsed)
	}
}
