// Package tickbus fans published ticks out to in-process subscribers.
//
// The pump hands every published tick to Broadcast, which never blocks: a
// subscriber whose buffer is full loses that tick. Consumers that need a
// complete record read the stream or the database, not the bus.
package tickbus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/HtFilia/trading-board/errs"
	"github.com/HtFilia/trading-board/internal/schema"
)

// SubscriptionID uniquely identifies a bus subscription.
type SubscriptionID string

// Config sizes the per-subscriber delivery buffers.
type Config struct {
	BufferSize int
}

func (c Config) normalize() Config {
	if c.BufferSize <= 0 {
		c.BufferSize = 64
	}
	return c
}

// Bus is an in-memory tick fanout.
type Bus struct {
	cfg Config

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.RWMutex
	subscribers  map[SubscriptionID]*subscriber
	shutdownOnce sync.Once
	nextID       uint64
	dropped      atomic.Uint64
}

type subscriber struct {
	ctx    context.Context
	cancel context.CancelFunc
	ch     chan schema.TickEvent
	once   sync.Once
}

// New constructs an in-memory tick bus.
func New(cfg Config) *Bus {
	cfg = cfg.normalize()
	ctx, cancel := context.WithCancel(context.Background())
	bus := new(Bus)
	bus.cfg = cfg
	bus.ctx = ctx
	bus.cancel = cancel
	bus.subscribers = make(map[SubscriptionID]*subscriber)
	return bus
}

// Broadcast fans the tick out to every live subscriber without blocking.
// Ticks that do not fit a subscriber's buffer are dropped and counted.
func (b *Bus) Broadcast(event schema.TickEvent) {
	// Snapshot subscribers to avoid holding the lock during delivery.
	b.mu.RLock()
	subscribers := make([]*subscriber, 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		subscribers = append(subscribers, sub)
	}
	b.mu.RUnlock()

	for _, sub := range subscribers {
		if sub == nil || sub.ctx.Err() != nil {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			b.dropped.Add(1)
		}
	}
}

// Subscribe registers a consumer and returns its subscription ID and
// delivery channel. The channel closes when ctx ends, Unsubscribe is
// called, or the bus shuts down.
func (b *Bus) Subscribe(ctx context.Context) (SubscriptionID, <-chan schema.TickEvent, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.ctx.Err() != nil {
		return "", nil, errs.New("tickbus/subscribe", errs.KindTransient, errs.WithMessage("bus closed"))
	}
	ctx, cancel := context.WithCancel(ctx)

	sub := new(subscriber)
	sub.ctx = ctx
	sub.cancel = cancel
	sub.ch = make(chan schema.TickEvent, b.cfg.BufferSize)

	id := SubscriptionID(fmt.Sprintf("sub-%d", atomic.AddUint64(&b.nextID, 1)))

	b.mu.Lock()
	b.subscribers[id] = sub
	b.mu.Unlock()

	go b.observe(id, sub)
	return id, sub.ch, nil
}

// Unsubscribe removes the subscription and closes its channel.
func (b *Bus) Unsubscribe(id SubscriptionID) {
	if id == "" {
		return
	}
	b.mu.Lock()
	sub, ok := b.subscribers[id]
	if ok {
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
	if ok {
		sub.close()
	}
}

// Dropped reports how many ticks were discarded because a subscriber
// buffer was full.
func (b *Bus) Dropped() uint64 { return b.dropped.Load() }

// Close shuts down the bus and all subscriptions.
func (b *Bus) Close() {
	b.shutdownOnce.Do(func() {
		b.cancel()
		b.mu.Lock()
		for id, sub := range b.subscribers {
			if sub != nil {
				sub.close()
			}
			delete(b.subscribers, id)
		}
		b.mu.Unlock()
	})
}

func (b *Bus) observe(id SubscriptionID, sub *subscriber) {
	select {
	case <-sub.ctx.Done():
	case <-b.ctx.Done():
	}
	b.mu.Lock()
	if stored, ok := b.subscribers[id]; ok && stored == sub {
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
	sub.close()
}

func (s *subscriber) close() {
	s.once.Do(func() {
		s.cancel()
		close(s.ch)
	})
}
