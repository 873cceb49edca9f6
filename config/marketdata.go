package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/HtFilia/trading-board/internal/observability"
	"github.com/HtFilia/trading-board/internal/schema"
)

// OrderBookSettings shapes the ladder book generated for an instrument.
type OrderBookSettings struct {
	Levels        int     `json:"levels" yaml:"levels"`
	TickSize      float64 `json:"tick_size" yaml:"tick_size"`
	BaseQuantity  float64 `json:"base_quantity" yaml:"base_quantity"`
	QuantityDecay float64 `json:"quantity_decay" yaml:"quantity_decay"`
	PriceNoise    float64 `json:"price_noise" yaml:"price_noise"`
}

// Validate checks the ladder parameters.
func (s OrderBookSettings) Validate() error {
	if s.Levels <= 0 {
		return fmt.Errorf("order_book levels must be positive")
	}
	if s.TickSize <= 0 {
		return fmt.Errorf("order_book tick_size must be positive")
	}
	if s.BaseQuantity <= 0 {
		return fmt.Errorf("order_book base_quantity must be positive")
	}
	if s.QuantityDecay <= 0 || s.QuantityDecay > 1 {
		return fmt.Errorf("order_book quantity_decay must lie in (0, 1]")
	}
	if s.PriceNoise < 0 {
		return fmt.Errorf("order_book price_noise must be non-negative")
	}
	return nil
}

// DealerQuoteSettings shapes the dealer quote fanout for an OTC instrument.
type DealerQuoteSettings struct {
	Dealers          []string `json:"dealers" yaml:"dealers"`
	BaseSpread       float64  `json:"base_spread" yaml:"base_spread"`
	SpreadVolatility float64  `json:"spread_volatility" yaml:"spread_volatility"`
	MinSpread        float64  `json:"min_spread" yaml:"min_spread"`
}

// Validate checks the quote parameters.
func (s DealerQuoteSettings) Validate() error {
	if len(s.Dealers) == 0 {
		return fmt.Errorf("dealer_quotes dealers must not be empty")
	}
	if s.BaseSpread <= 0 {
		return fmt.Errorf("dealer_quotes base_spread must be positive")
	}
	if s.SpreadVolatility < 0 {
		return fmt.Errorf("dealer_quotes spread_volatility must be non-negative")
	}
	if s.MinSpread <= 0 {
		return fmt.Errorf("dealer_quotes min_spread must be positive")
	}
	return nil
}

// ScenarioSettings overrides simulator and feed parameters for what-if runs.
// Nil pointer fields leave the base configuration untouched.
type ScenarioSettings struct {
	VolatilityScale          *float64 `json:"volatility_scale,omitempty" yaml:"volatility_scale"`
	DriftShift               *float64 `json:"drift_shift,omitempty" yaml:"drift_shift"`
	LongRunMeanShift         *float64 `json:"long_run_mean_shift,omitempty" yaml:"long_run_mean_shift"`
	LiquidityRegime          string   `json:"liquidity_regime,omitempty" yaml:"liquidity_regime"`
	UpdateIntervalMSOverride int64    `json:"update_interval_ms_override,omitempty" yaml:"update_interval_ms_override"`
	Halted                   bool     `json:"halted,omitempty" yaml:"halted"`
}

// haltedIntervalMS keeps a halted feed from emitting more than once a day.
const haltedIntervalMS = 86_400_000

// InstrumentSettings is the immutable configuration of one simulated
// instrument, mirroring the MARKET_DATA_INSTRUMENTS JSON layout.
type InstrumentSettings struct {
	InstrumentID     string                 `json:"instrument_id" yaml:"instrument_id"`
	InstrumentType   schema.InstrumentType  `json:"instrument_type" yaml:"instrument_type"`
	StartPrice       float64                `json:"start_price" yaml:"start_price"`
	TickSize         float64                `json:"tick_size" yaml:"tick_size"`
	StepSeconds      float64                `json:"step_seconds" yaml:"step_seconds"`
	UpdateIntervalMS int64                  `json:"update_interval_ms" yaml:"update_interval_ms"`
	LiquidityRegime  schema.LiquidityRegime `json:"liquidity_regime,omitempty" yaml:"liquidity_regime"`
	Seed             *int64                 `json:"seed,omitempty" yaml:"seed"`
	Drift            *float64               `json:"drift,omitempty" yaml:"drift"`
	Volatility       *float64               `json:"volatility,omitempty" yaml:"volatility"`
	MeanReversion    *float64               `json:"mean_reversion,omitempty" yaml:"mean_reversion"`
	LongRunMean      *float64               `json:"long_run_mean,omitempty" yaml:"long_run_mean"`
	Tenor            string                 `json:"tenor,omitempty" yaml:"tenor"`
	CurvePoints      map[string]float64     `json:"curve_points,omitempty" yaml:"curve_points"`
	DV01PerMillion   *float64               `json:"dv01_per_million,omitempty" yaml:"dv01_per_million"`
	ContractMonth    string                 `json:"contract_month,omitempty" yaml:"contract_month"`
	TickValue        *float64               `json:"tick_value,omitempty" yaml:"tick_value"`
	Multiplier       *float64               `json:"multiplier,omitempty" yaml:"multiplier"`
	OrderBook        *OrderBookSettings     `json:"order_book,omitempty" yaml:"order_book"`
	DealerQuotes     *DealerQuoteSettings   `json:"dealer_quotes,omitempty" yaml:"dealer_quotes"`
	Scenario         *ScenarioSettings      `json:"scenario,omitempty" yaml:"scenario"`
	ScenarioName     string                 `json:"scenario_name,omitempty" yaml:"scenario_name"`
}

// UpdateInterval returns the configured cadence as a duration.
func (s InstrumentSettings) UpdateInterval() time.Duration {
	return time.Duration(s.UpdateIntervalMS) * time.Millisecond
}

// normalize fills dataclass-style defaults for optional knobs.
func (s *InstrumentSettings) normalize() {
	if s.LiquidityRegime == "" {
		s.LiquidityRegime = schema.LiquidityMedium
	}
	if s.OrderBook != nil && s.OrderBook.QuantityDecay == 0 {
		s.OrderBook.QuantityDecay = 0.7
	}
	if s.DealerQuotes != nil && s.DealerQuotes.MinSpread == 0 {
		s.DealerQuotes.MinSpread = 1e-5
	}
}

// Validate checks the instrument configuration, including the parameter set
// required by the instrument type's simulator.
func (s InstrumentSettings) Validate() error {
	if strings.TrimSpace(s.InstrumentID) == "" {
		return fmt.Errorf("instrument_id required")
	}
	if err := s.InstrumentType.Validate(); err != nil {
		return fmt.Errorf("instrument %s: %w", s.InstrumentID, err)
	}
	if s.StartPrice <= 0 {
		return fmt.Errorf("instrument %s: start_price must be positive", s.InstrumentID)
	}
	if s.TickSize <= 0 {
		return fmt.Errorf("instrument %s: tick_size must be positive", s.InstrumentID)
	}
	if s.StepSeconds <= 0 {
		return fmt.Errorf("instrument %s: step_seconds must be positive", s.InstrumentID)
	}
	if s.UpdateIntervalMS <= 0 {
		return fmt.Errorf("instrument %s: update_interval_ms must be positive", s.InstrumentID)
	}
	if err := s.LiquidityRegime.Validate(); err != nil {
		return fmt.Errorf("instrument %s: %w", s.InstrumentID, err)
	}
	if s.InstrumentType.MeanReverting() {
		if s.MeanReversion == nil || s.LongRunMean == nil || s.Volatility == nil {
			return fmt.Errorf("instrument %s: %s instruments require mean_reversion, long_run_mean, and volatility",
				s.InstrumentID, s.InstrumentType)
		}
	} else {
		if s.Drift == nil || s.Volatility == nil {
			return fmt.Errorf("instrument %s: %s instruments require drift and volatility",
				s.InstrumentID, s.InstrumentType)
		}
	}
	if s.Volatility != nil && *s.Volatility < 0 {
		return fmt.Errorf("instrument %s: volatility must be non-negative", s.InstrumentID)
	}
	if s.MeanReversion != nil && *s.MeanReversion < 0 {
		return fmt.Errorf("instrument %s: mean_reversion must be non-negative", s.InstrumentID)
	}
	if s.OrderBook != nil {
		if err := s.OrderBook.Validate(); err != nil {
			return fmt.Errorf("instrument %s: %w", s.InstrumentID, err)
		}
	}
	if s.DealerQuotes != nil {
		if err := s.DealerQuotes.Validate(); err != nil {
			return fmt.Errorf("instrument %s: %w", s.InstrumentID, err)
		}
	}
	if s.ScenarioName != "" {
		if _, ok := PresetScenarios()[s.ScenarioName]; !ok {
			return fmt.Errorf("instrument %s: unknown scenario_name %q", s.InstrumentID, s.ScenarioName)
		}
	}
	return nil
}

// EffectiveScenario resolves the scenario overrides for the instrument:
// an inline scenario wins, then a named preset, then no overrides.
func (s InstrumentSettings) EffectiveScenario() ScenarioSettings {
	if s.Scenario != nil {
		return *s.Scenario
	}
	if s.ScenarioName != "" {
		if preset, ok := PresetScenarios()[s.ScenarioName]; ok {
			return preset
		}
	}
	return ScenarioSettings{}
}

// MarketDataSettings is the market data service configuration.
type MarketDataSettings struct {
	RedisURL          string
	PostgresDSN       string
	TickStream        string
	OrderBookStream   string
	DealerQuoteStream string
	BookCachePrefix   string
	PumpInterval      time.Duration
	HTTPAddr          string
	CORSOrigins       []string
	Retry             RetrySettings
	Telemetry         TelemetrySettings
	Debug             bool
	Instruments       []InstrumentSettings
}

type marketDataYAML struct {
	RedisURL          string               `yaml:"redisUrl"`
	PostgresDSN       string               `yaml:"postgresDsn"`
	TickStream        string               `yaml:"tickStream"`
	OrderBookStream   string               `yaml:"orderBookStream"`
	DealerQuoteStream string               `yaml:"dealerQuoteStream"`
	BookCachePrefix   string               `yaml:"bookCachePrefix"`
	PumpInterval      string               `yaml:"pumpInterval"`
	HTTPAddr          string               `yaml:"httpAddr"`
	CORSOrigins       []string             `yaml:"corsOrigins"`
	RetryAttempts     int                  `yaml:"retryAttempts"`
	RetryBaseDelay    string               `yaml:"retryBaseDelay"`
	Telemetry         TelemetrySettings    `yaml:"telemetry"`
	Debug             bool                 `yaml:"debug"`
	Instruments       []InstrumentSettings `yaml:"instruments"`
}

type marketDataDocument struct {
	MarketData marketDataYAML `yaml:"marketdata"`
}

func defaultMarketDataSettings() MarketDataSettings {
	return MarketDataSettings{
		RedisURL:          DefaultRedisURL,
		PostgresDSN:       DefaultPostgresDSN,
		TickStream:        "marketdata_ticks",
		OrderBookStream:   "marketdata_order_books",
		DealerQuoteStream: "marketdata_dealer_quotes",
		BookCachePrefix:   "marketdata:book",
		PumpInterval:      200 * time.Millisecond,
		HTTPAddr:          ":8080",
		CORSOrigins:       DefaultCORSOrigins(),
		Retry:             RetrySettings{Attempts: 3, BaseDelay: 50 * time.Millisecond},
		Telemetry:         defaultTelemetry("marketdata"),
		Debug:             false,
		Instruments:       DefaultInstruments(),
	}
}

// LoadMarketData resolves the market data service settings with precedence
// defaults, YAML, then environment.
func LoadMarketData(ctx context.Context, path string) (MarketDataSettings, error) {
	_ = ctx
	cfg := defaultMarketDataSettings()

	if data, err := readConfigFile(path); err == nil {
		var doc marketDataDocument
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return MarketDataSettings{}, fmt.Errorf("unmarshal marketdata config: %w", err)
		}
		cfg.applyYAML(doc.MarketData)
	} else if !isConfigNotFoundError(err) {
		return MarketDataSettings{}, err
	}

	if err := cfg.loadEnv(); err != nil {
		return MarketDataSettings{}, err
	}

	if err := cfg.Validate(); err != nil {
		return MarketDataSettings{}, fmt.Errorf("validate marketdata config: %w", err)
	}
	return cfg, nil
}

func (c *MarketDataSettings) applyYAML(y marketDataYAML) {
	if y.RedisURL != "" {
		c.RedisURL = y.RedisURL
	}
	if y.PostgresDSN != "" {
		c.PostgresDSN = y.PostgresDSN
	}
	if y.TickStream != "" {
		c.TickStream = y.TickStream
	}
	if y.OrderBookStream != "" {
		c.OrderBookStream = y.OrderBookStream
	}
	if y.DealerQuoteStream != "" {
		c.DealerQuoteStream = y.DealerQuoteStream
	}
	if y.BookCachePrefix != "" {
		c.BookCachePrefix = y.BookCachePrefix
	}
	parseDurationString(y.PumpInterval, &c.PumpInterval)
	if y.HTTPAddr != "" {
		c.HTTPAddr = y.HTTPAddr
	}
	if len(y.CORSOrigins) > 0 {
		c.CORSOrigins = y.CORSOrigins
	}
	if y.RetryAttempts > 0 {
		c.Retry.Attempts = y.RetryAttempts
	}
	parseDurationString(y.RetryBaseDelay, &c.Retry.BaseDelay)
	if y.Telemetry.ServiceName != "" || y.Telemetry.OTLPEndpoint != "" {
		c.Telemetry = y.Telemetry
	}
	if y.Debug {
		c.Debug = true
	}
	if len(y.Instruments) > 0 {
		c.Instruments = y.Instruments
	}
}

func (c *MarketDataSettings) loadEnv() error {
	envString("REDIS_URL", &c.RedisURL)
	envString("POSTGRES_DSN", &c.PostgresDSN)
	envString("REDIS_TICK_STREAM", &c.TickStream)
	envString("REDIS_ORDER_BOOK_STREAM", &c.OrderBookStream)
	envString("REDIS_DEALER_QUOTE_STREAM", &c.DealerQuoteStream)
	envString("MARKET_DATA_BOOK_CACHE_PREFIX", &c.BookCachePrefix)

	if v := strings.TrimSpace(os.Getenv("MARKET_DATA_INTERVAL_SECONDS")); v != "" {
		secs, err := strconv.ParseFloat(v, 64)
		if err != nil || secs <= 0 {
			return fmt.Errorf("invalid MARKET_DATA_INTERVAL_SECONDS: %q", v)
		}
		c.PumpInterval = time.Duration(secs * float64(time.Second))
	}

	host := ""
	port := 0
	envString("MARKET_DATA_HTTP_HOST", &host)
	envInt("MARKET_DATA_HTTP_PORT", &port)
	if host != "" || port != 0 {
		if port == 0 {
			port = 8080
		}
		c.HTTPAddr = fmt.Sprintf("%s:%d", host, port)
	}

	if v := strings.TrimSpace(os.Getenv("MARKET_DATA_CORS_ORIGINS")); v != "" {
		c.CORSOrigins = parseOrigins(v, DefaultCORSOrigins())
	}
	envInt("MARKET_DATA_RETRY_ATTEMPTS", &c.Retry.Attempts)
	envDuration("MARKET_DATA_RETRY_BASE_DELAY", &c.Retry.BaseDelay)

	if v := strings.ToLower(strings.TrimSpace(os.Getenv("MARKET_DATA_LOG_LEVEL"))); v == "debug" {
		c.Debug = true
	}

	if raw := strings.TrimSpace(os.Getenv("MARKET_DATA_INSTRUMENTS")); raw != "" {
		var instruments []InstrumentSettings
		if err := json.Unmarshal([]byte(raw), &instruments); err != nil {
			return fmt.Errorf("invalid MARKET_DATA_INSTRUMENTS: %w", err)
		}
		if len(instruments) == 0 {
			return fmt.Errorf("MARKET_DATA_INSTRUMENTS must be a JSON list of instrument configs")
		}
		c.Instruments = instruments
	}

	c.Telemetry.loadEnv()
	return nil
}

// Validate checks the final configuration tree.
func (c *MarketDataSettings) Validate() error {
	if strings.TrimSpace(c.RedisURL) == "" {
		return fmt.Errorf("redis url required")
	}
	if strings.TrimSpace(c.PostgresDSN) == "" {
		return fmt.Errorf("postgres dsn required")
	}
	if c.PumpInterval <= 0 {
		return fmt.Errorf("pump interval must be positive")
	}
	if c.Retry.Attempts <= 0 {
		return fmt.Errorf("retry attempts must be positive")
	}
	if c.Retry.BaseDelay <= 0 {
		return fmt.Errorf("retry base delay must be positive")
	}
	if strings.TrimSpace(c.HTTPAddr) == "" {
		c.HTTPAddr = ":8080"
	}
	if len(c.Instruments) == 0 {
		return fmt.Errorf("at least one instrument required")
	}
	// Validate the whole universe so operators see every bad instrument at
	// once rather than one per restart.
	instrumentErrs := make([]error, 0, len(c.Instruments))
	for i := range c.Instruments {
		c.Instruments[i].normalize()
		instrumentErrs = append(instrumentErrs, c.Instruments[i].Validate())
	}
	return observability.AggregateErrors("validate instruments", instrumentErrs)
}

// PresetScenarios names the built-in what-if overrides selectable per
// instrument or through the management API.
func PresetScenarios() map[string]ScenarioSettings {
	volScale := 1.5
	driftShift := 0.01
	return map[string]ScenarioSettings{
		"volatile": {
			VolatilityScale:          &volScale,
			LiquidityRegime:          string(schema.LiquidityLow),
			UpdateIntervalMSOverride: 1500,
		},
		"halted": {
			Halted:                   true,
			UpdateIntervalMSOverride: haltedIntervalMS,
		},
		"rally": {
			DriftShift:      &driftShift,
			LiquidityRegime: string(schema.LiquidityHigh),
		},
	}
}

// DefaultInstruments is the development universe: a liquid equity with a
// ladder book, a mean-reverting bond yield quoted by two dealers, and an
// index future.
func DefaultInstruments() []InstrumentSettings {
	seed1, seed2, seed3 := int64(1), int64(2), int64(3)
	eqDrift, eqVol := 0.05, 0.2
	bondMR, bondLRM, bondVol := 0.6, 0.018, 0.0008
	bondDV01 := 540.0
	futDrift, futVol := 0.01, 0.18
	futTickValue, futMultiplier := 12.5, 50.0

	return []InstrumentSettings{
		{
			InstrumentID:     "EQ-ACME",
			InstrumentType:   schema.InstrumentEquity,
			StartPrice:       100.0,
			Drift:            &eqDrift,
			Volatility:       &eqVol,
			StepSeconds:      1.0,
			TickSize:         0.01,
			UpdateIntervalMS: 500,
			Seed:             &seed1,
			LiquidityRegime:  schema.LiquidityHigh,
			OrderBook: &OrderBookSettings{
				Levels:        3,
				TickSize:      0.01,
				BaseQuantity:  500.0,
				QuantityDecay: 0.6,
			},
		},
		{
			InstrumentID:     "BOND-5Y",
			InstrumentType:   schema.InstrumentRate,
			StartPrice:       0.015,
			MeanReversion:    &bondMR,
			LongRunMean:      &bondLRM,
			Volatility:       &bondVol,
			StepSeconds:      1.0,
			TickSize:         0.0001,
			UpdateIntervalMS: 1000,
			Seed:             &seed2,
			LiquidityRegime:  schema.LiquidityMedium,
			Tenor:            "5Y",
			CurvePoints:      map[string]float64{"1Y": 0.012, "3Y": 0.014, "5Y": 0.016},
			DV01PerMillion:   &bondDV01,
			DealerQuotes: &DealerQuoteSettings{
				Dealers:          []string{"DEALER-A", "DEALER-B"},
				BaseSpread:       0.0004,
				SpreadVolatility: 0.0001,
			},
		},
		{
			InstrumentID:     "FUT-ES",
			InstrumentType:   schema.InstrumentFuture,
			StartPrice:       4300.0,
			Drift:            &futDrift,
			Volatility:       &futVol,
			StepSeconds:      1.0,
			TickSize:         0.25,
			UpdateIntervalMS: 250,
			Seed:             &seed3,
			LiquidityRegime:  schema.LiquidityHigh,
			ContractMonth:    "2024-06",
			TickValue:        &futTickValue,
			Multiplier:       &futMultiplier,
		},
	}
}
