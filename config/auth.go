package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// AuthSettings is the auth service configuration.
type AuthSettings struct {
	HTTPAddr            string
	PostgresDSN         string
	RedisURL            string
	StartingBalance     decimal.Decimal
	BaseCurrency        string
	SessionTTL          time.Duration
	SecureCookies       bool
	CookieName          string
	CookieDomain        string
	CORSOrigins         []string
	DefaultUserEmail    string
	DefaultUserPassword string
	RateLimitPerSecond  float64
	RateLimitBurst      int
	Telemetry           TelemetrySettings
	Debug               bool
}

type authYAML struct {
	HTTPAddr            string            `yaml:"httpAddr"`
	PostgresDSN         string            `yaml:"postgresDsn"`
	RedisURL            string            `yaml:"redisUrl"`
	StartingBalance     string            `yaml:"startingBalance"`
	BaseCurrency        string            `yaml:"baseCurrency"`
	SessionTTLMinutes   int               `yaml:"sessionTtlMinutes"`
	SecureCookies       *bool             `yaml:"secureCookies"`
	CookieName          string            `yaml:"cookieName"`
	CookieDomain        string            `yaml:"cookieDomain"`
	CORSOrigins         []string          `yaml:"corsOrigins"`
	DefaultUserEmail    string            `yaml:"defaultUserEmail"`
	DefaultUserPassword string            `yaml:"defaultUserPassword"`
	RateLimitPerSecond  float64           `yaml:"rateLimitPerSecond"`
	RateLimitBurst      int               `yaml:"rateLimitBurst"`
	Telemetry           TelemetrySettings `yaml:"telemetry"`
	Debug               bool              `yaml:"debug"`
}

type authDocument struct {
	Auth authYAML `yaml:"auth"`
}

func defaultAuthSettings() AuthSettings {
	return AuthSettings{
		HTTPAddr:            ":8000",
		PostgresDSN:         DefaultPostgresDSN,
		RedisURL:            DefaultRedisURL,
		StartingBalance:     decimal.NewFromInt(1_000_000),
		BaseCurrency:        "USD",
		SessionTTL:          30 * time.Minute,
		SecureCookies:       true,
		CookieName:          SessionCookieName,
		CookieDomain:        "",
		CORSOrigins:         DefaultCORSOrigins(),
		DefaultUserEmail:    "demo@example.com",
		DefaultUserPassword: "demo-password",
		RateLimitPerSecond:  10,
		RateLimitBurst:      20,
		Telemetry:           defaultTelemetry("auth"),
		Debug:               false,
	}
}

// LoadAuth resolves the auth service settings with precedence defaults,
// YAML, then environment.
func LoadAuth(ctx context.Context, path string) (AuthSettings, error) {
	_ = ctx
	cfg := defaultAuthSettings()

	if data, err := readConfigFile(path); err == nil {
		var doc authDocument
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return AuthSettings{}, fmt.Errorf("unmarshal auth config: %w", err)
		}
		cfg.applyYAML(doc.Auth)
	} else if !isConfigNotFoundError(err) {
		return AuthSettings{}, err
	}

	if err := cfg.loadEnv(); err != nil {
		return AuthSettings{}, err
	}

	if err := cfg.Validate(); err != nil {
		return AuthSettings{}, fmt.Errorf("validate auth config: %w", err)
	}
	return cfg, nil
}

func (c *AuthSettings) applyYAML(y authYAML) {
	if y.HTTPAddr != "" {
		c.HTTPAddr = y.HTTPAddr
	}
	if y.PostgresDSN != "" {
		c.PostgresDSN = y.PostgresDSN
	}
	if y.RedisURL != "" {
		c.RedisURL = y.RedisURL
	}
	if y.StartingBalance != "" {
		if balance, err := decimal.NewFromString(y.StartingBalance); err == nil {
			c.StartingBalance = balance
		}
	}
	if y.BaseCurrency != "" {
		c.BaseCurrency = y.BaseCurrency
	}
	if y.SessionTTLMinutes > 0 {
		c.SessionTTL = time.Duration(y.SessionTTLMinutes) * time.Minute
	}
	if y.SecureCookies != nil {
		c.SecureCookies = *y.SecureCookies
	}
	if y.CookieName != "" {
		c.CookieName = y.CookieName
	}
	if y.CookieDomain != "" {
		c.CookieDomain = y.CookieDomain
	}
	if len(y.CORSOrigins) > 0 {
		c.CORSOrigins = y.CORSOrigins
	}
	if y.DefaultUserEmail != "" {
		c.DefaultUserEmail = y.DefaultUserEmail
	}
	if y.DefaultUserPassword != "" {
		c.DefaultUserPassword = y.DefaultUserPassword
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

func (c *AuthSettings) loadEnv() error {
	envString("AUTH_HTTP_ADDR", &c.HTTPAddr)
	envString("AUTH_POSTGRES_DSN", &c.PostgresDSN)
	envString("AUTH_REDIS_URL", &c.RedisURL)

	if v := strings.TrimSpace(os.Getenv("AUTH_STARTING_BALANCE")); v != "" {
		balance, err := decimal.NewFromString(v)
		if err != nil {
			return fmt.Errorf("invalid AUTH_STARTING_BALANCE: %q", v)
		}
		c.StartingBalance = balance
	}

	envString("AUTH_BASE_CURRENCY", &c.BaseCurrency)

	if v := strings.TrimSpace(os.Getenv("AUTH_SESSION_TTL_MINUTES")); v != "" {
		minutes := 0
		envInt("AUTH_SESSION_TTL_MINUTES", &minutes)
		if minutes <= 0 {
			return fmt.Errorf("invalid AUTH_SESSION_TTL_MINUTES: %q", v)
		}
		c.SessionTTL = time.Duration(minutes) * time.Minute
	}

	if v, ok := envBool("AUTH_SECURE_COOKIES"); ok {
		c.SecureCookies = v
	}
	envString("AUTH_SESSION_COOKIE_NAME", &c.CookieName)
	envString("AUTH_SESSION_COOKIE_DOMAIN", &c.CookieDomain)

	if v := strings.TrimSpace(os.Getenv("AUTH_CORS_ORIGINS")); v != "" {
		c.CORSOrigins = parseOrigins(v, DefaultCORSOrigins())
	}

	envString("AUTH_DEFAULT_USER_EMAIL", &c.DefaultUserEmail)
	envString("AUTH_DEFAULT_USER_PASSWORD", &c.DefaultUserPassword)

	if v := strings.TrimSpace(os.Getenv("AUTH_RATE_LIMIT_PER_SECOND")); v != "" {
		var rps float64
		if _, err := fmt.Sscanf(v, "%g", &rps); err != nil || rps <= 0 {
			return fmt.Errorf("invalid AUTH_RATE_LIMIT_PER_SECOND: %q", v)
		}
		c.RateLimitPerSecond = rps
	}
	envInt("AUTH_RATE_LIMIT_BURST", &c.RateLimitBurst)

	if v := strings.ToLower(strings.TrimSpace(os.Getenv("AUTH_LOG_LEVEL"))); v == "debug" {
		c.Debug = true
	}

	c.Telemetry.loadEnv()
	return nil
}

// Validate checks the final configuration tree.
func (c *AuthSettings) Validate() error {
	if strings.TrimSpace(c.PostgresDSN) == "" {
		return fmt.Errorf("postgres dsn required")
	}
	if strings.TrimSpace(c.RedisURL) == "" {
		return fmt.Errorf("redis url required")
	}
	if c.StartingBalance.IsNegative() {
		return fmt.Errorf("starting balance must be non-negative")
	}
	if len(c.BaseCurrency) != 3 {
		return fmt.Errorf("base currency must be a 3-letter ISO code")
	}
	c.BaseCurrency = strings.ToUpper(c.BaseCurrency)
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session ttl must be positive")
	}
	if strings.TrimSpace(c.CookieName) == "" {
		c.CookieName = SessionCookieName
	}
	if strings.TrimSpace(c.HTTPAddr) == "" {
		c.HTTPAddr = ":8000"
	}
	if c.RateLimitPerSecond <= 0 {
		return fmt.Errorf("rate limit per second must be positive")
	}
	if c.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit burst must be positive")
	}
	return nil
}
