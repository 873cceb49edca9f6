package marketdata

import (
	"time"

	"github.com/HtFilia/trading-board/config"
	"github.com/HtFilia/trading-board/errs"
	"github.com/HtFilia/trading-board/internal/schema"
)

// InstrumentFeed composes everything one instrument needs to emit: the
// mark simulator, optional book and quote builders, the metadata factory,
// and the emission cadence. nextDue is owned by the pump goroutine.
type InstrumentFeed struct {
	instrumentID string
	simulator    Simulator
	tickSize     float64
	liquidity    schema.LiquidityRegime
	interval     time.Duration
	scenario     string
	metadata     MetadataFactory
	book         *LadderBookBuilder
	quotes       *DealerQuoteBuilder

	nextDue time.Time
}

// BuildFeed wires a feed from scenario-adjusted instrument settings. The
// simulator type follows the instrument type: GBM for equities, options,
// and futures; OU for rates and swaps.
func BuildFeed(cfg config.InstrumentSettings) (*InstrumentFeed, error) {
	adjusted := ApplyScenario(cfg)

	if adjusted.TickSize <= 0 {
		return nil, errs.New("marketdata/feed", errs.KindValidation,
			errs.WithMessage("tick_size must be positive"),
			errs.WithField("instrument_id", adjusted.InstrumentID))
	}
	if adjusted.UpdateIntervalMS <= 0 {
		return nil, errs.New("marketdata/feed", errs.KindValidation,
			errs.WithMessage("update_interval_ms must be positive"),
			errs.WithField("instrument_id", adjusted.InstrumentID))
	}

	seed := time.Now().UnixNano()
	if adjusted.Seed != nil {
		seed = *adjusted.Seed
	}

	simulator, err := buildSimulator(adjusted, seed)
	if err != nil {
		return nil, err
	}

	metadata, err := metadataFactoryFor(adjusted)
	if err != nil {
		return nil, err
	}

	var book *LadderBookBuilder
	if adjusted.OrderBook != nil {
		book, err = NewLadderBookBuilder(adjusted.InstrumentID, LadderConfig{
			Levels:        adjusted.OrderBook.Levels,
			TickSize:      adjusted.OrderBook.TickSize,
			BaseQuantity:  adjusted.OrderBook.BaseQuantity,
			QuantityDecay: adjusted.OrderBook.QuantityDecay,
			PriceNoise:    adjusted.OrderBook.PriceNoise,
		}, seed)
		if err != nil {
			return nil, err
		}
	}

	var quotes *DealerQuoteBuilder
	if adjusted.DealerQuotes != nil {
		quotes, err = NewDealerQuoteBuilder(adjusted.InstrumentID, QuoteConfig{
			Dealers:          adjusted.DealerQuotes.Dealers,
			BaseSpread:       adjusted.DealerQuotes.BaseSpread,
			SpreadVolatility: adjusted.DealerQuotes.SpreadVolatility,
			MinSpread:        adjusted.DealerQuotes.MinSpread,
		}, seed)
		if err != nil {
			return nil, err
		}
	}

	liquidity := adjusted.LiquidityRegime
	if liquidity == "" {
		liquidity = schema.LiquidityMedium
	}

	return &InstrumentFeed{
		instrumentID: adjusted.InstrumentID,
		simulator:    simulator,
		tickSize:     adjusted.TickSize,
		liquidity:    liquidity,
		interval:     adjusted.UpdateInterval(),
		scenario:     scenarioLabel(adjusted),
		metadata:     metadata,
		book:         book,
		quotes:       quotes,
	}, nil
}

// scenarioLabel names the overrides a feed runs under: an inline scenario
// block is reported as "custom", a preset by its name.
func scenarioLabel(cfg config.InstrumentSettings) string {
	if cfg.Scenario != nil {
		return "custom"
	}
	return cfg.ScenarioName
}

func buildSimulator(cfg config.InstrumentSettings, seed int64) (Simulator, error) {
	if cfg.InstrumentType.MeanReverting() {
		if cfg.MeanReversion == nil || cfg.LongRunMean == nil || cfg.Volatility == nil {
			return nil, errs.New("marketdata/feed", errs.KindValidation,
				errs.WithMessage("mean-reverting instruments require mean_reversion, long_run_mean, and volatility"),
				errs.WithField("instrument_id", cfg.InstrumentID))
		}
		return NewOUSimulator(cfg.StartPrice, *cfg.MeanReversion, *cfg.LongRunMean, *cfg.Volatility, cfg.StepSeconds, seed)
	}
	if err := cfg.InstrumentType.Validate(); err != nil {
		return nil, err
	}
	if cfg.Drift == nil || cfg.Volatility == nil {
		return nil, errs.New("marketdata/feed", errs.KindValidation,
			errs.WithMessage("diffusion instruments require drift and volatility"),
			errs.WithField("instrument_id", cfg.InstrumentID))
	}
	return NewGBMSimulator(cfg.StartPrice, *cfg.Drift, *cfg.Volatility, cfg.StepSeconds, seed)
}

// NextTick advances the simulator and derives the symmetric bid/ask around
// the new mid.
func (f *InstrumentFeed) NextTick(timestamp time.Time) schema.TickEvent {
	mid := f.simulator.Next()
	half := f.tickSize / 2
	var metadata map[string]any
	if f.metadata != nil {
		metadata = f.metadata(mid)
	}
	return schema.TickEvent{
		InstrumentID:    f.instrumentID,
		Timestamp:       timestamp,
		Bid:             mid - half,
		Ask:             mid + half,
		Mid:             mid,
		LiquidityRegime: f.liquidity,
		Metadata:        metadata,
	}
}

// due reports whether the feed should emit at the given instant. A feed
// that has never emitted is immediately due.
func (f *InstrumentFeed) due(now time.Time) bool {
	return f.nextDue.IsZero() || !now.Before(f.nextDue)
}

// InstrumentID returns the feed's instrument identifier.
func (f *InstrumentFeed) InstrumentID() string { return f.instrumentID }

// UpdateInterval returns the emission cadence.
func (f *InstrumentFeed) UpdateInterval() time.Duration { return f.interval }

// LiquidityRegime returns the effective (scenario-adjusted) regime.
func (f *InstrumentFeed) LiquidityRegime() schema.LiquidityRegime { return f.liquidity }

// Scenario returns the label of the applied scenario, or "" when the feed
// runs on its base parameters.
func (f *InstrumentFeed) Scenario() string { return f.scenario }

// TickSize returns the instrument tick size.
func (f *InstrumentFeed) TickSize() float64 { return f.tickSize }
