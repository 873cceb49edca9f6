package marketdata

import (
	"math"
	"math/rand"
	"time"

	"github.com/HtFilia/trading-board/errs"
	"github.com/HtFilia/trading-board/internal/schema"
)

// LadderConfig shapes the synthetic depth ladder built around each mid.
type LadderConfig struct {
	Levels        int
	TickSize      float64
	BaseQuantity  float64
	QuantityDecay float64
	PriceNoise    float64
}

// Validate checks the ladder parameters.
func (c LadderConfig) Validate() error {
	if c.Levels <= 0 {
		return errs.New("marketdata/ladder", errs.KindValidation,
			errs.WithMessage("levels must be positive"))
	}
	if c.TickSize <= 0 {
		return errs.New("marketdata/ladder", errs.KindValidation,
			errs.WithMessage("tick_size must be positive"))
	}
	if c.BaseQuantity <= 0 {
		return errs.New("marketdata/ladder", errs.KindValidation,
			errs.WithMessage("base_quantity must be positive"))
	}
	if c.QuantityDecay <= 0 || c.QuantityDecay > 1 {
		return errs.New("marketdata/ladder", errs.KindValidation,
			errs.WithMessage("quantity_decay must lie in (0, 1]"))
	}
	if c.PriceNoise < 0 {
		return errs.New("marketdata/ladder", errs.KindValidation,
			errs.WithMessage("price_noise must be non-negative"))
	}
	return nil
}

// LadderBookBuilder generates ladder-style order books around a mid price.
// Level k sits tick·(k+1) away from the mid and carries base·decay^k
// quantity; optional Gaussian noise perturbs the offsets. Offsets are
// clamped upward so the ladder stays strictly monotone whatever the noise
// draw, keeping the build deterministic from the RNG.
type LadderBookBuilder struct {
	instrumentID string
	cfg          LadderConfig
	rng          *rand.Rand
}

// NewLadderBookBuilder validates the config and seeds the noise source.
func NewLadderBookBuilder(instrumentID string, cfg LadderConfig, seed int64) (*LadderBookBuilder, error) {
	if instrumentID == "" {
		return nil, errs.New("marketdata/ladder", errs.KindValidation,
			errs.WithMessage("instrument_id required"))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &LadderBookBuilder{
		instrumentID: instrumentID,
		cfg:          cfg,
		rng:          rand.New(rand.NewSource(seed)),
	}, nil
}

// Build constructs the snapshot for the given mid. The returned book always
// satisfies the depth invariants; a mid too small to fit the ladder above
// zero is rejected.
func (b *LadderBookBuilder) Build(mid float64, timestamp time.Time) (schema.OrderBookSnapshot, error) {
	if mid <= 0 {
		return schema.OrderBookSnapshot{}, errs.New("marketdata/ladder", errs.KindValidation,
			errs.WithMessage("mid price must be positive"),
			errs.WithField("instrument_id", b.instrumentID))
	}

	bids := make([]schema.BookLevel, 0, b.cfg.Levels)
	asks := make([]schema.BookLevel, 0, b.cfg.Levels)

	prevOffset := 0.0
	for k := 0; k < b.cfg.Levels; k++ {
		offset := b.cfg.TickSize * float64(k+1)
		if b.cfg.PriceNoise > 0 {
			offset += b.rng.NormFloat64() * b.cfg.PriceNoise
		}
		// Clamp so offsets stay strictly increasing; an inverted draw is
		// pushed one tick beyond the previous level.
		if offset <= prevOffset {
			offset = prevOffset + b.cfg.TickSize
		}
		prevOffset = offset

		quantity := b.cfg.BaseQuantity * math.Pow(b.cfg.QuantityDecay, float64(k))
		bids = append(bids, schema.BookLevel{Price: round6(mid - offset), Quantity: round6(quantity)})
		asks = append(asks, schema.BookLevel{Price: round6(mid + offset), Quantity: round6(quantity)})
	}

	snapshot := schema.OrderBookSnapshot{
		InstrumentID: b.instrumentID,
		Timestamp:    timestamp,
		Bids:         bids,
		Asks:         asks,
	}
	if err := snapshot.Validate(); err != nil {
		return schema.OrderBookSnapshot{}, err
	}
	return snapshot, nil
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
