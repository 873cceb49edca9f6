// Package marketdata implements the simulated market data service:
// stochastic mark simulators, ladder book and dealer quote builders,
// per-instrument feeds, and the pump engine that persists and publishes
// market events.
package marketdata

import (
	"math"
	"math/rand"

	"github.com/HtFilia/trading-board/errs"
)

// Simulator produces a seeded pseudo-random mark path. Next advances the
// process one step and returns the new mark; Reset rewinds to the initial
// seeded state so the identical path replays.
type Simulator interface {
	Next() float64
	Reset()
	Seed() int64
}

// GBMSimulator drives a geometric Brownian motion price path:
// price ← price · exp((drift − vol²/2)·dt + vol·√dt·Z).
type GBMSimulator struct {
	startPrice  float64
	price       float64
	drift       float64
	volatility  float64
	stepSeconds float64
	seed        int64
	rng         *rand.Rand
}

var _ Simulator = (*GBMSimulator)(nil)

// NewGBMSimulator validates the process parameters and seeds the generator.
func NewGBMSimulator(startPrice, drift, volatility, stepSeconds float64, seed int64) (*GBMSimulator, error) {
	if startPrice <= 0 {
		return nil, errs.New("marketdata/gbm", errs.KindValidation,
			errs.WithMessage("start_price must be positive"))
	}
	if volatility < 0 {
		return nil, errs.New("marketdata/gbm", errs.KindValidation,
			errs.WithMessage("volatility must be non-negative"))
	}
	if stepSeconds <= 0 {
		return nil, errs.New("marketdata/gbm", errs.KindValidation,
			errs.WithMessage("step_seconds must be positive"))
	}
	return &GBMSimulator{
		startPrice:  startPrice,
		price:       startPrice,
		drift:       drift,
		volatility:  volatility,
		stepSeconds: stepSeconds,
		seed:        seed,
		rng:         rand.New(rand.NewSource(seed)),
	}, nil
}

// Next advances the path one step and returns the new price.
func (s *GBMSimulator) Next() float64 {
	shock := s.rng.NormFloat64()
	driftTerm := (s.drift - 0.5*s.volatility*s.volatility) * s.stepSeconds
	diffusionTerm := s.volatility * math.Sqrt(s.stepSeconds) * shock
	s.price *= math.Exp(driftTerm + diffusionTerm)
	return s.price
}

// Reset rewinds the path to its seeded initial state.
func (s *GBMSimulator) Reset() {
	s.rng = rand.New(rand.NewSource(s.seed))
	s.price = s.startPrice
}

// Seed returns the seed the path was built from.
func (s *GBMSimulator) Seed() int64 { return s.seed }

// OUSimulator drives an Ornstein-Uhlenbeck short-rate path:
// rate ← rate + mr·(lrm − rate)·dt + vol·√dt·Z. Marks may legitimately
// go negative for rates.
type OUSimulator struct {
	startRate     float64
	rate          float64
	meanReversion float64
	longRunMean   float64
	volatility    float64
	stepSeconds   float64
	seed          int64
	rng           *rand.Rand
}

var _ Simulator = (*OUSimulator)(nil)

// NewOUSimulator validates the process parameters and seeds the generator.
func NewOUSimulator(startRate, meanReversion, longRunMean, volatility, stepSeconds float64, seed int64) (*OUSimulator, error) {
	if stepSeconds <= 0 {
		return nil, errs.New("marketdata/ou", errs.KindValidation,
			errs.WithMessage("step_seconds must be positive"))
	}
	if volatility < 0 {
		return nil, errs.New("marketdata/ou", errs.KindValidation,
			errs.WithMessage("volatility must be non-negative"))
	}
	if meanReversion < 0 {
		return nil, errs.New("marketdata/ou", errs.KindValidation,
			errs.WithMessage("mean_reversion must be non-negative"))
	}
	return &OUSimulator{
		startRate:     startRate,
		rate:          startRate,
		meanReversion: meanReversion,
		longRunMean:   longRunMean,
		volatility:    volatility,
		stepSeconds:   stepSeconds,
		seed:          seed,
		rng:           rand.New(rand.NewSource(seed)),
	}, nil
}

// Next advances the path one step and returns the new rate.
func (s *OUSimulator) Next() float64 {
	shock := s.rng.NormFloat64()
	dt := s.stepSeconds
	drift := s.meanReversion * (s.longRunMean - s.rate) * dt
	diffusion := s.volatility * math.Sqrt(dt) * shock
	s.rate += drift + diffusion
	return s.rate
}

// Reset rewinds the path to its seeded initial state.
func (s *OUSimulator) Reset() {
	s.rng = rand.New(rand.NewSource(s.seed))
	s.rate = s.startRate
}

// Seed returns the seed the path was built from.
func (s *OUSimulator) Seed() int64 { return s.seed }
