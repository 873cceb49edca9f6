package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// TradingSettings is the trading service configuration.
type TradingSettings struct {
	HTTPAddr           string
	PostgresDSN        string
	RedisURL           string
	ExecutionStream    string
	ExecutionMaxLen    int64
	BookCachePrefix    string
	CookieName         string
	CORSOrigins        []string
	RateLimitPerSecond float64
	RateLimitBurst     int
	Telemetry          TelemetrySettings
	Debug              bool
}

type tradingYAML struct {
	HTTPAddr           string            `yaml:"httpAddr"`
	PostgresDSN        string            `yaml:"postgresDsn"`
	RedisURL           string            `yaml:"redisUrl"`
	ExecutionStream    string            `yaml:"executionStream"`
	ExecutionMaxLen    int64             `yaml:"executionMaxLen"`
	BookCachePrefix    string            `yaml:"bookCachePrefix"`
	CookieName         string            `yaml:"cookieName"`
	CORSOrigins        []string          `yaml:"corsOrigins"`
	RateLimitPerSecond float64           `yaml:"rateLimitPerSecond"`
	RateLimitBurst     int               `yaml:"rateLimitBurst"`
	Telemetry          TelemetrySettings `yaml:"telemetry"`
	Debug              bool              `yaml:"debug"`
}

type tradingDocument struct {
	Trading tradingYAML `yaml:"trading"`
}

func defaultTradingSettings() TradingSettings {
	return TradingSettings{
		HTTPAddr:           ":8081",
		PostgresDSN:        DefaultPostgresDSN,
		RedisURL:           DefaultRedisURL,
		ExecutionStream:    "execution_stream",
		ExecutionMaxLen:    0,
		BookCachePrefix:    "marketdata:book",
		CookieName:         SessionCookieName,
		CORSOrigins:        DefaultCORSOrigins(),
		RateLimitPerSecond: 50,
		RateLimitBurst:     100,
		Telemetry:          defaultTelemetry("trading"),
		Debug:              false,
	}
}

// LoadTrading resolves the trading service settings with precedence
// defaults, YAML, then environment.
func LoadTrading(ctx context.Context, path string) (TradingSettings, error) {
	_ = ctx
	cfg := defaultTradingSettings()

	if data, err := readConfigFile(path); err == nil {
		var doc tradingDocument
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return TradingSettings{}, fmt.Errorf("unmarshal trading config: %w", err)
		}
		cfg.applyYAML(doc.Trading)
	} else if !isConfigNotFoundError(err) {
		return TradingSettings{}, err
	}

	if err := cfg.loadEnv(); err != nil {
		return TradingSettings{}, err
	}

	if err := cfg.Validate(); err != nil {
		return TradingSettings{}, fmt.Errorf("validate trading config: %w", err)
	}
	return cfg, nil
}

func (c *TradingSettings) applyYAML(y tradingYAML) {
	if y.HTTPAddr != "" {
		c.HTTPAddr = y.HTTPAddr
	}
	if y.PostgresDSN != "" {
		c.PostgresDSN = y.PostgresDSN
	}
	if y.RedisURL != "" {
		c.RedisURL = y.RedisURL
	}
	if y.ExecutionStream != "" {
		c.ExecutionStream = y.ExecutionStream
	}
	if y.ExecutionMaxLen > 0 {
		c.ExecutionMaxLen = y.ExecutionMaxLen
	}
	if y.BookCachePrefix != "" {
		c.BookCachePrefix = y.BookCachePrefix
	}
	if y.CookieName != "" {
		c.CookieName = y.CookieName
	}
	if len(y.CORSOrigins) > 0 {
		c.CORSOrigins = y.CORSOrigins
	}
	if y.RateLimitPerSecond > 0 {
		c.RateLimitPerSecond = y.RateLimitPerSecond
	}
	if y.RateLimitBurst > 0 {
		c.RateLimitBurst = y.RateLimitBurst
	}
	if y.Telemetry.ServiceName != "" || y.Telemetry.OTLPEndpoint != "" {
		c.Telemetry = y.Telemetry
	}
	if y.Debug {
		c.Debug = true
	}
}

func (c *TradingSettings) loadEnv() error {
	envString("TRADING_HTTP_ADDR", &c.HTTPAddr)

	if v := strings.TrimSpace(os.Getenv("TRADING_HEALTH_PORT")); v != "" {
		port := 0
		envInt("TRADING_HEALTH_PORT", &port)
		if port <= 0 {
			return fmt.Errorf("invalid TRADING_HEALTH_PORT: %q", v)
		}
		c.HTTPAddr = fmt.Sprintf(":%d", port)
	}

	envString("TRADING_POSTGRES_DSN", &c.PostgresDSN)
	envString("TRADING_REDIS_URL", &c.RedisURL)
	envString("TRADING_EXECUTION_STREAM", &c.ExecutionStream)

	if v := strings.TrimSpace(os.Getenv("TRADING_EXECUTION_MAXLEN")); v != "" {
		var maxLen int64
		if _, err := fmt.Sscanf(v, "%d", &maxLen); err != nil || maxLen < 0 {
			return fmt.Errorf("invalid TRADING_EXECUTION_MAXLEN: %q", v)
		}
		c.ExecutionMaxLen = maxLen
	}

	envString("TRADING_BOOK_CACHE_PREFIX", &c.BookCachePrefix)
	envString("TRADING_SESSION_COOKIE_NAME", &c.CookieName)

	if v := strings.TrimSpace(os.Getenv("TRADING_CORS_ORIGINS")); v != "" {
		c.CORSOrigins = parseOrigins(v, DefaultCORSOrigins())
	}

	if v := strings.TrimSpace(os.Getenv("TRADING_RATE_LIMIT_PER_SECOND")); v != "" {
		var rps float64
		if _, err := fmt.Sscanf(v, "%g", &rps); err != nil || rps <= 0 {
			return fmt.Errorf("invalid TRADING_RATE_LIMIT_PER_SECOND: %q", v)
		}
		c.RateLimitPerSecond = rps
	}
	envInt("TRADING_RATE_LIMIT_BURST", &c.RateLimitBurst)

	if v := strings.ToLower(strings.TrimSpace(os.Getenv("TRADING_LOG_LEVEL"))); v == "debug" {
		c.Debug = true
	}

	c.Telemetry.loadEnv()
	return nil
}

// Validate checks the final configuration tree.
func (c *TradingSettings) Validate() error {
	if strings.TrimSpace(c.PostgresDSN) == "" {
		return fmt.Errorf("postgres dsn required")
	}
	if strings.TrimSpace(c.RedisURL) == "" {
		return fmt.Errorf("redis url required")
	}
	if strings.TrimSpace(c.ExecutionStream) == "" {
		return fmt.Errorf("execution stream required")
	}
	if c.ExecutionMaxLen < 0 {
		return fmt.Errorf("execution maxlen must be non-negative")
	}
	if strings.TrimSpace(c.BookCachePrefix) == "" {
		return fmt.Errorf("book cache prefix required")
	}
	if strings.TrimSpace(c.CookieName) == "" {
		c.CookieName = SessionCookieName
	}
	if strings.TrimSpace(c.HTTPAddr) == "" {
		c.HTTPAddr = ":8081"
	}
	if c.RateLimitPerSecond <= 0 {
		return fmt.Errorf("rate limit per second must be positive")
	}
	if c.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit burst must be positive")
	}
	return nil
}
