package marketdata

import (
	"time"

	"github.com/HtFilia/trading-board/config"
	"github.com/HtFilia/trading-board/errs"
	"github.com/HtFilia/trading-board/internal/schema"
)

// MetadataFactory enriches a tick with type-specific context for the
// current mark.
type MetadataFactory func(mark float64) map[string]any

// SwapCurveMetadata captures swap/rate curve context: tenor, the curve the
// mark belongs to, and the dv01 risk figure per million notional.
func SwapCurveMetadata(tenor string, curvePoints map[string]float64, dv01PerMillion float64) MetadataFactory {
	curve := make(map[string]float64, len(curvePoints))
	for k, v := range curvePoints {
		curve[k] = v
	}
	return func(mark float64) map[string]any {
		out := make(map[string]float64, len(curve))
		for k, v := range curve {
			out[k] = v
		}
		return map[string]any{
			"instrument_type":  "SWAP",
			"tenor":            tenor,
			"curve":            out,
			"dv01_per_million": dv01PerMillion,
			"mark":             mark,
		}
	}
}

// FutureContractMetadata captures listed-contract context and values the
// mark into a notional via the contract multiplier.
func FutureContractMetadata(symbol, contractMonth string, expiry time.Time, tickValue, multiplier float64) MetadataFactory {
	expiryISO := expiry.Format("2006-01-02")
	return func(mark float64) map[string]any {
		return map[string]any{
			"instrument_type": "FUTURE",
			"symbol":          symbol,
			"contract_month":  contractMonth,
			"expiry":          expiryISO,
			"tick_value":      tickValue,
			"multiplier":      multiplier,
			"notional":        mark * multiplier,
		}
	}
}

// contractMonthExpiry resolves a YYYY-MM contract month to the first of
// that month.
func contractMonthExpiry(contractMonth string) (time.Time, error) {
	t, err := time.Parse("2006-01", contractMonth)
	if err != nil {
		return time.Time{}, errs.New("marketdata/metadata", errs.KindValidation,
			errs.WithMessage("contract_month must be formatted YYYY-MM"),
			errs.WithField("contract_month", contractMonth),
			errs.WithCause(err))
	}
	return t, nil
}

// metadataFactoryFor picks the factory matching the instrument type,
// or nil when the settings carry no metadata context.
func metadataFactoryFor(cfg config.InstrumentSettings) (MetadataFactory, error) {
	switch {
	case cfg.InstrumentType.MeanReverting() &&
		cfg.Tenor != "" && len(cfg.CurvePoints) > 0 && cfg.DV01PerMillion != nil:
		return SwapCurveMetadata(cfg.Tenor, cfg.CurvePoints, *cfg.DV01PerMillion), nil
	case (cfg.InstrumentType == schema.InstrumentFuture || cfg.InstrumentType == schema.InstrumentOption) &&
		cfg.ContractMonth != "" && cfg.TickValue != nil && cfg.Multiplier != nil:
		expiry, err := contractMonthExpiry(cfg.ContractMonth)
		if err != nil {
			return nil, err
		}
		return FutureContractMetadata(cfg.InstrumentID, cfg.ContractMonth, expiry, *cfg.TickValue, *cfg.Multiplier), nil
	default:
		return nil, nil
	}
}
