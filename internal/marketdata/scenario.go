package marketdata

import (
	"github.com/HtFilia/trading-board/config"
	"github.com/HtFilia/trading-board/internal/schema"
)

// haltedIntervalMS is the floor a halted feed's cadence is pushed to: one
// emission per day at most.
const haltedIntervalMS = 86_400_000

// ApplyScenario returns a copy of the instrument settings with its
// effective scenario overrides folded in: volatility scaled, drift or
// long-run mean shifted, liquidity regime and update cadence overridden,
// and halted feeds slowed to at most one emission per day. The input is
// never mutated.
func ApplyScenario(cfg config.InstrumentSettings) config.InstrumentSettings {
	scenario := cfg.EffectiveScenario()
	out := cfg

	if scenario.VolatilityScale != nil && cfg.Volatility != nil {
		v := *cfg.Volatility * *scenario.VolatilityScale
		out.Volatility = &v
	}
	if scenario.DriftShift != nil && cfg.Drift != nil {
		d := *cfg.Drift + *scenario.DriftShift
		out.Drift = &d
	}
	if scenario.LongRunMeanShift != nil && cfg.LongRunMean != nil {
		m := *cfg.LongRunMean + *scenario.LongRunMeanShift
		out.LongRunMean = &m
	}
	if scenario.LiquidityRegime != "" {
		out.LiquidityRegime = schema.LiquidityRegime(scenario.LiquidityRegime)
	}
	if scenario.UpdateIntervalMSOverride > 0 {
		out.UpdateIntervalMS = scenario.UpdateIntervalMSOverride
	}
	if scenario.Halted && out.UpdateIntervalMS < haltedIntervalMS {
		out.UpdateIntervalMS = haltedIntervalMS
	}
	return out
}
