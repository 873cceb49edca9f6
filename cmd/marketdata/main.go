// Command marketdata runs the simulated market data service: seeded price
// paths, ladder books, dealer quotes, the emission pump, and the management
// API with the live tick websocket.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/HtFilia/trading-board/config"
	"github.com/HtFilia/trading-board/internal/bus/tickbus"
	"github.com/HtFilia/trading-board/internal/infra/persistence/postgres"
	"github.com/HtFilia/trading-board/internal/infra/stream"
	"github.com/HtFilia/trading-board/internal/marketdata"
	"github.com/HtFilia/trading-board/internal/observability"
	"github.com/HtFilia/trading-board/internal/telemetry"
)

const (
	defaultConfigPath        = "config/app.yaml"
	serviceName              = "marketdata"
	loggerPrefix             = "marketdata "
	readHeaderTimeout        = 5 * time.Second
	serverShutdownTimeout    = 5 * time.Second
	lifecycleShutdownTimeout = 10 * time.Second
	telemetryShutdownTimeout = 5 * time.Second
)

func main() {
	configPath := parseFlags()
	ctx, cancel := newSignalContext()
	defer cancel()

	logger := newServiceLogger()

	cfg, err := config.LoadMarketData(ctx, configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	observability.SetLogger(observability.NewStdLogger(logger, cfg.Debug))
	logger.Printf("configuration initialised: instruments=%d, pump interval=%s",
		len(cfg.Instruments), cfg.PumpInterval)

	telemetryProvider, err := initTelemetry(ctx, logger, cfg.Telemetry)
	if err != nil {
		logger.Fatalf("initialise telemetry: %v", err)
	}

	pool, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()
	postgres.ObservePoolMetrics(pool, serviceName)

	redisClient, err := stream.Dial(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatalf("connect redis: %v", err)
	}
	defer func() { _ = redisClient.Close() }()

	feeds, err := buildFeeds(cfg.Instruments)
	if err != nil {
		logger.Fatalf("build feeds: %v", err)
	}

	store := postgres.NewMarketStore(pool)
	cache := stream.NewBookCache(redisClient, cfg.BookCachePrefix)
	publisher := stream.NewPublisher(redisClient, stream.StreamNames{
		Ticks:      cfg.TickStream,
		Books:      cfg.OrderBookStream,
		Quotes:     cfg.DealerQuoteStream,
		Executions: "",
	}, cache)
	ticks := tickbus.New(tickbus.Config{BufferSize: 0})

	engine, err := marketdata.NewEngine(feeds, marketdata.EngineOptions{
		TickPersister:  store,
		TickPublisher:  publisher,
		BookPersister:  store,
		BookPublisher:  publisher,
		QuotePersister: store,
		QuotePublisher: publisher,
		Broadcaster:    ticks,
		Metrics:        telemetry.NewServiceMetrics(serviceName),
		RetryAttempts:  cfg.Retry.Attempts,
		RetryBaseDelay: cfg.Retry.BaseDelay,
		Now:            nil,
	})
	if err != nil {
		logger.Fatalf("initialise engine: %v", err)
	}

	server := buildManagementServer(cfg, engine, ticks)

	var lifecycle conc.WaitGroup
	lifecycle.Go(func() {
		if err := engine.Run(ctx, cfg.PumpInterval); err != nil && !errors.Is(err, context.Canceled) {
			logger.Printf("pump loop stopped: %v", err)
		}
	})
	startManagementServer(&lifecycle, logger, server)
	logger.Printf("market data service listening on %s", cfg.HTTPAddr)

	<-ctx.Done()
	logger.Print("shutdown signal received, initiating graceful shutdown")

	shutdownStart := time.Now()
	performGracefulShutdown(logger, gracefulShutdownConfig{
		server:     server,
		mainCancel: cancel,
		lifecycle:  &lifecycle,
		ticks:      ticks,
		telemetry:  telemetryProvider,
	})
	logger.Printf("shutdown completed in %v", time.Since(shutdownStart))
}

func parseFlags() string {
	cfgPath := flag.String("config", "", fmt.Sprintf("Path to application configuration file (default: %s)", defaultConfigPath))
	flag.Parse()
	return *cfgPath
}

func newSignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newServiceLogger() *log.Logger {
	return log.New(os.Stdout, loggerPrefix, log.LstdFlags|log.Lmicroseconds)
}

func initTelemetry(ctx context.Context, logger *log.Logger, cfg config.TelemetrySettings) (*telemetry.Provider, error) {
	telemetryCfg := telemetry.DefaultConfig()
	if cfg.OTLPEndpoint != "" {
		telemetryCfg.OTLPEndpoint = cfg.OTLPEndpoint
	}
	if cfg.ServiceName != "" {
		telemetryCfg.ServiceName = cfg.ServiceName
	}
	telemetryCfg.OTLPInsecure = cfg.OTLPInsecure
	telemetryCfg.EnableMetrics = cfg.EnableMetrics

	provider, err := telemetry.NewProvider(ctx, telemetryCfg)
	if err != nil {
		return nil, fmt.Errorf("initialise telemetry provider: %w", err)
	}

	if telemetryCfg.Enabled && telemetryCfg.EnableMetrics {
		logger.Printf("telemetry initialised: endpoint=%s, service=%s", telemetryCfg.OTLPEndpoint, telemetryCfg.ServiceName)
	} else {
		logger.Print("telemetry metrics disabled")
	}
	return provider, nil
}

func buildFeeds(instruments []config.InstrumentSettings) ([]*marketdata.InstrumentFeed, error) {
	feeds := make([]*marketdata.InstrumentFeed, 0, len(instruments))
	for _, instrument := range instruments {
		feed, err := marketdata.BuildFeed(instrument)
		if err != nil {
			return nil, fmt.Errorf("instrument %s: %w", instrument.InstrumentID, err)
		}
		feeds = append(feeds, feed)
	}
	return feeds, nil
}

func buildManagementServer(cfg config.MarketDataSettings, engine *marketdata.Engine, ticks *tickbus.Bus) *http.Server {
	handler := marketdata.NewHandler(engine, ticks, marketdata.HandlerConfig{
		CORSOrigins:    cfg.CORSOrigins,
		WSWriteTimeout: 0,
	})
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

func startManagementServer(lifecycle *conc.WaitGroup, logger *log.Logger, server *http.Server) {
	lifecycle.Go(func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("management server: %v", err)
		}
	})
}

type gracefulShutdownConfig struct {
	server     *http.Server
	mainCancel context.CancelFunc
	lifecycle  *conc.WaitGroup
	ticks      *tickbus.Bus
	telemetry  *telemetry.Provider
}

func performGracefulShutdown(logger *log.Logger, cfg gracefulShutdownConfig) {
	shutdownStep := func(name string, timeout time.Duration, fn func(context.Context) error) {
		stepCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		logger.Printf("shutdown: %s...", name)
		if err := fn(stepCtx); err != nil {
			logger.Printf("shutdown: %s failed: %v", name, err)
		} else {
			logger.Printf("shutdown: %s completed", name)
		}
	}

	shutdownStep("stopping management server", serverShutdownTimeout, func(stepCtx context.Context) error {
		return cfg.server.Shutdown(stepCtx)
	})

	logger.Print("shutdown: cancelling main context")
	cfg.mainCancel()

	// Closing the tick bus ends every live websocket stream.
	cfg.ticks.Close()

	shutdownStep("waiting for lifecycle goroutines", lifecycleShutdownTimeout, func(stepCtx context.Context) error {
		done := make(chan struct{})
		go func() {
			cfg.lifecycle.Wait()
			close(done)
		}()
		select {
		case <-done:
			return nil
		case <-stepCtx.Done():
			return fmt.Errorf("timeout waiting for goroutines: %w", stepCtx.Err())
		}
	})

	shutdownStep("shutting down telemetry", telemetryShutdownTimeout, func(stepCtx context.Context) error {
		return cfg.telemetry.Shutdown(stepCtx)
	})
}
