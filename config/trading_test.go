package config

import (
	"context"
	"strings"
	"testing"
)

func TestLoadTradingDefaults(t *testing.T) {
	cfg, err := LoadTrading(context.Background(), missingConfigPath(t))
	if err != nil {
		t.Fatalf("load trading config: %v", err)
	}

	if cfg.HTTPAddr != ":8081" {
		t.Errorf("expected :8081, got %q", cfg.HTTPAddr)
	}
	if cfg.ExecutionStream != "execution_stream" {
		t.Errorf("unexpected execution stream: %q", cfg.ExecutionStream)
	}
	if cfg.ExecutionMaxLen != 0 {
		t.Errorf("expected unbounded execution stream, got maxlen %d", cfg.ExecutionMaxLen)
	}
	if cfg.BookCachePrefix != "marketdata:book" {
		t.Errorf("unexpected book cache prefix: %q", cfg.BookCachePrefix)
	}
	if cfg.CookieName != SessionCookieName {
		t.Errorf("unexpected cookie name: %q", cfg.CookieName)
	}
	if cfg.RateLimitPerSecond != 50 || cfg.RateLimitBurst != 100 {
		t.Errorf("unexpected rate limits: %g/%d", cfg.RateLimitPerSecond, cfg.RateLimitBurst)
	}
}

func TestLoadTradingFromYAML(t *testing.T) {
	path := writeConfigFile(t, `
trading:
  httpAddr: ":8180"
  executionStream: exec_events
  executionMaxLen: 2048
  bookCachePrefix: "md:book"
  rateLimitPerSecond: 25
  rateLimitBurst: 50
`)

	cfg, err := LoadTrading(context.Background(), path)
	if err != nil {
		t.Fatalf("load trading config: %v", err)
	}

	if cfg.HTTPAddr != ":8180" {
		t.Errorf("unexpected http addr: %q", cfg.HTTPAddr)
	}
	if cfg.ExecutionStream != "exec_events" {
		t.Errorf("unexpected execution stream: %q", cfg.ExecutionStream)
	}
	if cfg.ExecutionMaxLen != 2048 {
		t.Errorf("unexpected execution maxlen: %d", cfg.ExecutionMaxLen)
	}
	if cfg.BookCachePrefix != "md:book" {
		t.Errorf("unexpected book cache prefix: %q", cfg.BookCachePrefix)
	}
	if cfg.RateLimitPerSecond != 25 || cfg.RateLimitBurst != 50 {
		t.Errorf("unexpected rate limits: %g/%d", cfg.RateLimitPerSecond, cfg.RateLimitBurst)
	}
}

func TestLoadTradingEnvOverrides(t *testing.T) {
	path := writeConfigFile(t, "trading:\n  httpAddr: \":8180\"\n")
	t.Setenv("TRADING_HTTP_ADDR", ":8280")
	t.Setenv("TRADING_HEALTH_PORT", "9091")
	t.Setenv("TRADING_EXECUTION_STREAM", "exec_env")
	t.Setenv("TRADING_EXECUTION_MAXLEN", "4096")
	t.Setenv("TRADING_BOOK_CACHE_PREFIX", "md:books")
	t.Setenv("TRADING_SESSION_COOKIE_NAME", "sid")
	t.Setenv("TRADING_RATE_LIMIT_PER_SECOND", "120")
	t.Setenv("TRADING_RATE_LIMIT_BURST", "240")

	cfg, err := LoadTrading(context.Background(), path)
	if err != nil {
		t.Fatalf("load trading config: %v", err)
	}

	if cfg.HTTPAddr != ":9091" {
		t.Errorf("expected health port to win, got %q", cfg.HTTPAddr)
	}
	if cfg.ExecutionStream != "exec_env" {
		t.Errorf("unexpected execution stream: %q", cfg.ExecutionStream)
	}
	if cfg.ExecutionMaxLen != 4096 {
		t.Errorf("unexpected execution maxlen: %d", cfg.ExecutionMaxLen)
	}
	if cfg.BookCachePrefix != "md:books" {
		t.Errorf("unexpected book cache prefix: %q", cfg.BookCachePrefix)
	}
	if cfg.CookieName != "sid" {
		t.Errorf("unexpected cookie name: %q", cfg.CookieName)
	}
	if cfg.RateLimitPerSecond != 120 || cfg.RateLimitBurst != 240 {
		t.Errorf("unexpected rate limits: %g/%d", cfg.RateLimitPerSecond, cfg.RateLimitBurst)
	}
}

func TestLoadTradingRejectsBadValues(t *testing.T) {
	cases := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"non-numeric port", "TRADING_HEALTH_PORT", "http", "TRADING_HEALTH_PORT"},
		{"negative maxlen", "TRADING_EXECUTION_MAXLEN", "-5", "TRADING_EXECUTION_MAXLEN"},
		{"garbled rate limit", "TRADING_RATE_LIMIT_PER_SECOND", "nope", "TRADING_RATE_LIMIT_PER_SECOND"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := missingConfigPath(t)
			t.Setenv(tc.key, tc.value)
			_, err := LoadTrading(context.Background(), path)
			if err == nil {
				t.Fatalf("expected error for %s=%q", tc.key, tc.value)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestLoadTradingRejectsMalformedYAML(t *testing.T) {
	path := writeConfigFile(t, "trading:\n\tnot yaml")
	if _, err := LoadTrading(context.Background(), path); err == nil {
		t.Fatal("expected error for malformed YAML")
	} else if !strings.Contains(err.Error(), "unmarshal trading config") {
		t.Fatalf("expected unmarshal error, got %v", err)
	}
}
