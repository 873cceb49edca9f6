package stream_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/HtFilia/trading-board/errs"
	"github.com/HtFilia/trading-board/internal/infra/stream"
	"github.com/HtFilia/trading-board/internal/schema"
)

var (
	testClient     *redis.Client
	redisContainer testcontainers.Container
)

func TestMain(m *testing.M) {
	if os.Getenv("TRADING_BOARD_INTEGRATION") == "" {
		os.Exit(m.Run())
	}

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start redis container: %v\n", err)
		os.Exit(1)
	}
	redisContainer = container

	host, err := container.Host(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "resolve redis host: %v\n", err)
		os.Exit(1)
	}
	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		fmt.Fprintf(os.Stderr, "resolve redis port: %v\n", err)
		os.Exit(1)
	}

	testClient, err = stream.Dial(ctx, fmt.Sprintf("redis://%s:%s/0", host, port.Port()))
	if err != nil {
		fmt.Fprintf(os.Stderr, "dial redis: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()

	_ = testClient.Close()
	_ = redisContainer.Terminate(ctx)
	os.Exit(code)
}

func requireRedis(t *testing.T) {
	t.Helper()
	if testClient == nil {
		t.Skip("set TRADING_BOARD_INTEGRATION=1 to run redis integration tests")
	}
}

func TestPublisherAppendsPayloadEntries(t *testing.T) {
	requireRedis(t)
	ctx := context.Background()

	pub := stream.NewPublisher(testClient, stream.StreamNames{
		Ticks: "it_ticks",
	}, nil)
	tick := schema.TickEvent{
		InstrumentID:    "EQ-ACME",
		Timestamp:       time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC),
		Bid:             99.995,
		Ask:             100.005,
		Mid:             100.0,
		LiquidityRegime: schema.LiquidityHigh,
	}
	if err := pub.PublishTick(ctx, tick); err != nil {
		t.Fatalf("publish tick: %v", err)
	}

	entries, err := testClient.XRange(ctx, "it_ticks", "-", "+").Result()
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("stream entries = %d, want 1", len(entries))
	}
	payload, ok := entries[0].Values["payload"].(string)
	if !ok {
		t.Fatalf("entry missing payload field: %+v", entries[0].Values)
	}
	var decoded schema.TickEvent
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if decoded.InstrumentID != tick.InstrumentID || decoded.Mid != tick.Mid {
		t.Fatalf("decoded tick = %+v, want %+v", decoded, tick)
	}
}

func TestPublisherRejectsUnconfiguredStream(t *testing.T) {
	requireRedis(t)
	pub := stream.NewPublisher(testClient, stream.StreamNames{}, nil)
	err := pub.PublishExecution(context.Background(), schema.ExecutionEvent{OrderID: "o-1"})
	if err == nil {
		t.Fatal("expected error for unconfigured stream")
	}
}

func TestBookCacheRoundTrip(t *testing.T) {
	requireRedis(t)
	ctx := context.Background()

	cache := stream.NewBookCache(testClient, "it:book")
	book := schema.OrderBookSnapshot{
		InstrumentID: "EQ-ACME",
		Timestamp:    time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC),
		Bids: []schema.BookLevel{
			{Price: 99.99, Quantity: 500},
			{Price: 99.98, Quantity: 300},
		},
		Asks: []schema.BookLevel{
			{Price: 100.01, Quantity: 500},
			{Price: 100.02, Quantity: 300},
		},
	}
	if err := cache.Put(ctx, book); err != nil {
		t.Fatalf("put book: %v", err)
	}

	got, err := cache.GetOrderBook(ctx, "EQ-ACME")
	if err != nil {
		t.Fatalf("get book: %v", err)
	}
	if got.InstrumentID != book.InstrumentID {
		t.Fatalf("instrument = %s, want %s", got.InstrumentID, book.InstrumentID)
	}
	if len(got.Bids) != 2 || len(got.Asks) != 2 {
		t.Fatalf("depth = %d/%d, want 2/2", len(got.Bids), len(got.Asks))
	}
	if got.Bids[0] != book.Bids[0] || got.Asks[1] != book.Asks[1] {
		t.Fatalf("levels mismatch: %+v", got)
	}
	if !got.Timestamp.Equal(book.Timestamp) {
		t.Fatalf("timestamp = %v, want %v", got.Timestamp, book.Timestamp)
	}
}

func TestBookCacheMissingInstrument(t *testing.T) {
	requireRedis(t)
	cache := stream.NewBookCache(testClient, "it:book")
	_, err := cache.GetOrderBook(context.Background(), "NO-SUCH")
	if errs.KindOf(err) != errs.KindNotFound {
		t.Fatalf("kind = %v, want not_found (err=%v)", errs.KindOf(err), err)
	}
}

func TestPublishOrderBookRefreshesCache(t *testing.T) {
	requireRedis(t)
	ctx := context.Background()

	cache := stream.NewBookCache(testClient, "it:pubbook")
	pub := stream.NewPublisher(testClient, stream.StreamNames{Books: "it_books"}, cache)

	book := schema.OrderBookSnapshot{
		InstrumentID: "BOND-5Y",
		Timestamp:    time.Date(2024, 5, 1, 9, 31, 0, 0, time.UTC),
		Bids:         []schema.BookLevel{{Price: 98.5, Quantity: 200}},
		Asks:         []schema.BookLevel{{Price: 98.7, Quantity: 200}},
	}
	if err := pub.PublishOrderBook(ctx, book); err != nil {
		t.Fatalf("publish book: %v", err)
	}

	entries, err := testClient.XRange(ctx, "it_books", "-", "+").Result()
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("stream entries = %d, want 1", len(entries))
	}

	got, err := cache.GetOrderBook(ctx, "BOND-5Y")
	if err != nil {
		t.Fatalf("get cached book: %v", err)
	}
	if len(got.Bids) != 1 || got.Bids[0] != book.Bids[0] {
		t.Fatalf("cached bids = %+v, want %+v", got.Bids, book.Bids)
	}
}
