package marketdata

import (
	"math/rand"
	"time"

	"github.com/HtFilia/trading-board/errs"
	"github.com/HtFilia/trading-board/internal/schema"
)

// QuoteConfig shapes the per-dealer spread distribution for an OTC
// instrument.
type QuoteConfig struct {
	Dealers          []string
	BaseSpread       float64
	SpreadVolatility float64
	MinSpread        float64
}

// Validate checks the quote fanout parameters.
func (c QuoteConfig) Validate() error {
	if len(c.Dealers) == 0 {
		return errs.New("marketdata/quotes", errs.KindValidation,
			errs.WithMessage("dealers must contain at least one dealer id"))
	}
	if c.BaseSpread <= 0 {
		return errs.New("marketdata/quotes", errs.KindValidation,
			errs.WithMessage("base_spread must be positive"))
	}
	if c.SpreadVolatility < 0 {
		return errs.New("marketdata/quotes", errs.KindValidation,
			errs.WithMessage("spread_volatility must be non-negative"))
	}
	if c.MinSpread <= 0 {
		return errs.New("marketdata/quotes", errs.KindValidation,
			errs.WithMessage("min_spread must be positive"))
	}
	return nil
}

// DealerQuoteBuilder fans a mid out into one two-way quote per dealer.
// Spread per dealer is base + N(0, spread_volatility), floored at
// min_spread so the quote never crosses.
type DealerQuoteBuilder struct {
	instrumentID string
	cfg          QuoteConfig
	rng          *rand.Rand
}

// NewDealerQuoteBuilder validates the config and seeds the spread noise.
func NewDealerQuoteBuilder(instrumentID string, cfg QuoteConfig, seed int64) (*DealerQuoteBuilder, error) {
	if instrumentID == "" {
		return nil, errs.New("marketdata/quotes", errs.KindValidation,
			errs.WithMessage("instrument_id required"))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &DealerQuoteBuilder{
		instrumentID: instrumentID,
		cfg:          cfg,
		rng:          rand.New(rand.NewSource(seed)),
	}, nil
}

// Quotes builds one quote per configured dealer around the given mid.
func (b *DealerQuoteBuilder) Quotes(mid float64, timestamp time.Time) ([]schema.DealerQuoteEvent, error) {
	if mid <= 0 {
		return nil, errs.New("marketdata/quotes", errs.KindValidation,
			errs.WithMessage("mid must be positive"),
			errs.WithField("instrument_id", b.instrumentID))
	}

	quotes := make([]schema.DealerQuoteEvent, 0, len(b.cfg.Dealers))
	for _, dealerID := range b.cfg.Dealers {
		spread := b.cfg.BaseSpread
		if b.cfg.SpreadVolatility > 0 {
			spread += b.rng.NormFloat64() * b.cfg.SpreadVolatility
		}
		if spread < b.cfg.MinSpread {
			spread = b.cfg.MinSpread
		}
		half := spread / 2
		quote := schema.DealerQuoteEvent{
			InstrumentID: b.instrumentID,
			DealerID:     dealerID,
			Timestamp:    timestamp,
			Bid:          round6(mid - half),
			Ask:          round6(mid + half),
		}
		if err := quote.Validate(); err != nil {
			return nil, err
		}
		quotes = append(quotes, quote)
	}
	return quotes, nil
}
