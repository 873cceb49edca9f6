// Package schema defines the canonical domain model shared by the market
// data, auth, and trading services: instruments, tick and book events,
// orders, fills, and account state.
package schema

import (
	"github.com/HtFilia/trading-board/errs"
)

// InstrumentType classifies an instrument for simulator selection.
type InstrumentType string

const (
	// InstrumentEquity marks cash equities, priced by geometric Brownian motion.
	InstrumentEquity InstrumentType = "EQUITY"
	// InstrumentRate marks interest-rate instruments, priced by mean reversion.
	InstrumentRate InstrumentType = "RATE"
	// InstrumentOption marks listed options.
	InstrumentOption InstrumentType = "OPTION"
	// InstrumentFuture marks listed futures.
	InstrumentFuture InstrumentType = "FUTURE"
	// InstrumentSwap marks OTC swaps, priced by mean reversion.
	InstrumentSwap InstrumentType = "SWAP"
)

// Validate checks the instrument type against the supported set.
func (t InstrumentType) Validate() error {
	switch t {
	case InstrumentEquity, InstrumentRate, InstrumentOption, InstrumentFuture, InstrumentSwap:
		return nil
	default:
		return errs.New("schema/instrument-type", errs.KindValidation,
			errs.WithMessage("unknown instrument type"), errs.WithField("instrument_type", string(t)))
	}
}

// MeanReverting reports whether the type is priced by the OU process.
func (t InstrumentType) MeanReverting() bool {
	return t == InstrumentRate || t == InstrumentSwap
}

// LiquidityRegime labels how liquid an instrument currently is.
type LiquidityRegime string

const (
	LiquidityHigh    LiquidityRegime = "HIGH"
	LiquidityMedium  LiquidityRegime = "MEDIUM"
	LiquidityLow     LiquidityRegime = "LOW"
	LiquidityExtreme LiquidityRegime = "EXTREME"
)

// Validate checks the liquidity regime against the supported set.
func (r LiquidityRegime) Validate() error {
	switch r {
	case LiquidityHigh, LiquidityMedium, LiquidityLow, LiquidityExtreme:
		return nil
	default:
		return errs.New("schema/liquidity-regime", errs.KindValidation,
			errs.WithMessage("unknown liquidity regime"), errs.WithField("liquidity_regime", string(r)))
	}
}

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Validate checks the side against the supported set.
func (s Side) Validate() error {
	switch s {
	case SideBuy, SideSell:
		return nil
	default:
		return errs.New("schema/side", errs.KindValidation,
			errs.WithMessage("side must be BUY or SELL"), errs.WithField("side", string(s)))
	}
}

// OrderType distinguishes market from limit orders.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// Validate checks the order type against the supported set.
func (t OrderType) Validate() error {
	switch t {
	case OrderTypeMarket, OrderTypeLimit:
		return nil
	default:
		return errs.New("schema/order-type", errs.KindValidation,
			errs.WithMessage("order type must be MARKET or LIMIT"), errs.WithField("order_type", string(t)))
	}
}

// OrderStatus is the lifecycle state of an order record.
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "NEW"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
)

// Validate checks the status against the supported set.
func (s OrderStatus) Validate() error {
	switch s {
	case OrderStatusNew, OrderStatusPartiallyFilled, OrderStatusFilled, OrderStatusCancelled:
		return nil
	default:
		return errs.New("schema/order-status", errs.KindValidation,
			errs.WithMessage("unknown order status"), errs.WithField("status", string(s)))
	}
}

// DeriveStatus maps fill results onto a terminal order status. A residual of
// zero means the order was fully crossed; zero fills leave it NEW.
func DeriveStatus(filled, residual int64) OrderStatus {
	if filled == 0 {
		return OrderStatusNew
	}
	if residual == 0 {
		return OrderStatusFilled
	}
	return OrderStatusPartiallyFilled
}
