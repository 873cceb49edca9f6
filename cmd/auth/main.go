// Command auth runs the authentication service: registration with account
// provisioning, login, logout, and opaque cookie sessions backed by Redis.
package main

import (
	"context"
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
	"github.com/HtFilia/trading-board/internal/auth"
	"github.com/HtFilia/trading-board/internal/infra/persistence/postgres"
	"github.com/HtFilia/trading-board/internal/infra/session"
	"github.com/HtFilia/trading-board/internal/infra/stream"
	"github.com/HtFilia/trading-board/internal/observability"
	"github.com/HtFilia/trading-board/internal/telemetry"
)

const (
	defaultConfigPath        = "config/app.yaml"
	serviceName              = "auth"
	loggerPrefix             = "auth "
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

	cfg, err := config.LoadAuth(ctx, configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	observability.SetLogger(observability.NewStdLogger(logger, cfg.Debug))
	logger.Printf("configuration initialised: session ttl=%s, cookie=%s", cfg.SessionTTL, cfg.CookieName)

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

	sessions := session.NewRedisStore(redisClient, cfg.SessionTTL)
	service := auth.NewService(postgres.NewUserStore(pool), sessions, nil, auth.Config{
		StartingBalance: cfg.StartingBalance,
		BaseCurrency:    cfg.BaseCurrency,
	})
	service.SetMetrics(telemetry.NewServiceMetrics(serviceName))

	if err := service.SeedDefaultUser(ctx, cfg.DefaultUserEmail, cfg.DefaultUserPassword); err != nil {
		logger.Fatalf("seed default user: %v", err)
	}

	server := buildAuthServer(cfg, service)

	var lifecycle conc.WaitGroup
	startAuthServer(&lifecycle, logger, server)
	logger.Printf("auth service listening on %s", cfg.HTTPAddr)

	<-ctx.Done()
	logger.Print("shutdown signal received, initiating graceful shutdown")

	shutdownStart := time.Now()
	performGracefulShutdown(logger, gracefulShutdownConfig{
		server:     server,
		mainCancel: cancel,
		lifecycle:  &lifecycle,
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

func buildAuthServer(cfg config.AuthSettings, service *auth.Service) *http.Server {
	handler := auth.NewHandler(service, auth.HandlerConfig{
		CookieName:         cfg.CookieName,
		CookieDomain:       cfg.CookieDomain,
		SecureCookies:      cfg.SecureCookies,
		SessionTTL:         cfg.SessionTTL,
		CORSOrigins:        cfg.CORSOrigins,
		RateLimitPerSecond: cfg.RateLimitPerSecond,
		RateLimitBurst:     cfg.RateLimitBurst,
	})
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

func startAuthServer(lifecycle *conc.WaitGroup, logger *log.Logger, server *http.Server) {
	lifecycle.Go(func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("auth server: %v", err)
		}
	})
}

type gracefulShutdownConfig struct {
	server     *http.Server
	mainCancel context.CancelFunc
	lifecycle  *conc.WaitGroup
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

	shutdownStep("stopping auth server", serverShutdownTimeout, func(stepCtx context.Context) error {
		return cfg.server.Shutdown(stepCtx)
	})

	logger.Print("shutdown: cancelling main context")
	cfg.mainCancel()

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
