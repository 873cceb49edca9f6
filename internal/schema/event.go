package schema

import (
	"time"

	"github.com/HtFilia/trading-board/errs"
)

// TickEvent is a single synthetic mark for one instrument. Bid and ask are
// derived symmetrically from the mid using the instrument tick size.
type TickEvent struct {
	InstrumentID    string          `json:"instrument_id"`
	Timestamp       time.Time       `json:"timestamp"`
	Bid             float64         `json:"bid"`
	Ask             float64         `json:"ask"`
	Mid             float64         `json:"mid"`
	LiquidityRegime LiquidityRegime `json:"liquidity_regime"`
	Metadata        map[string]any  `json:"metadata,omitempty"`
}

// Validate enforces bid <= mid <= ask.
func (t TickEvent) Validate() error {
	if t.InstrumentID == "" {
		return errs.New("schema/tick", errs.KindValidation, errs.WithMessage("instrument_id required"))
	}
	if t.Bid > t.Mid || t.Mid > t.Ask {
		return errs.New("schema/tick", errs.KindValidation,
			errs.WithMessage("prices must satisfy bid <= mid <= ask"),
			errs.WithField("instrument_id", t.InstrumentID))
	}
	return nil
}

// BookLevel is one rung of an order book ladder.
type BookLevel struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}

// OrderBookSnapshot is a full-depth view of one instrument's book at a point
// in time. Bids descend, asks ascend, and the book is never crossed.
type OrderBookSnapshot struct {
	InstrumentID string      `json:"instrument_id"`
	Timestamp    time.Time   `json:"timestamp"`
	Bids         []BookLevel `json:"bids"`
	Asks         []BookLevel `json:"asks"`
}

// BestBid returns the top bid level, if any.
func (s OrderBookSnapshot) BestBid() (BookLevel, bool) {
	if len(s.Bids) == 0 {
		return BookLevel{}, false
	}
	return s.Bids[0], true
}

// BestAsk returns the top ask level, if any.
func (s OrderBookSnapshot) BestAsk() (BookLevel, bool) {
	if len(s.Asks) == 0 {
		return BookLevel{}, false
	}
	return s.Asks[0], true
}

// Validate enforces the depth invariants: positive prices and quantities,
// strictly descending bids, strictly ascending asks, and best bid strictly
// below best ask when both sides are populated.
func (s OrderBookSnapshot) Validate() error {
	if s.InstrumentID == "" {
		return errs.New("schema/book", errs.KindValidation, errs.WithMessage("instrument_id required"))
	}
	if err := validateDepth(s.InstrumentID, s.Bids, true); err != nil {
		return err
	}
	if err := validateDepth(s.InstrumentID, s.Asks, false); err != nil {
		return err
	}
	if len(s.Bids) > 0 && len(s.Asks) > 0 && s.Bids[0].Price >= s.Asks[0].Price {
		return errs.New("schema/book", errs.KindValidation,
			errs.WithMessage("best bid must be strictly below best ask"),
			errs.WithField("instrument_id", s.InstrumentID))
	}
	return nil
}

func validateDepth(instrumentID string, levels []BookLevel, descending bool) error {
	side := "ask"
	if descending {
		side = "bid"
	}
	prev := 0.0
	for i, level := range levels {
		if level.Price <= 0 {
			return errs.New("schema/book", errs.KindValidation,
				errs.WithMessage(side+" prices must be positive"),
				errs.WithField("instrument_id", instrumentID))
		}
		if level.Quantity <= 0 {
			return errs.New("schema/book", errs.KindValidation,
				errs.WithMessage(side+" quantities must be positive"),
				errs.WithField("instrument_id", instrumentID))
		}
		if i > 0 {
			if descending && level.Price >= prev {
				return errs.New("schema/book", errs.KindValidation,
					errs.WithMessage("bid levels must be strictly descending"),
					errs.WithField("instrument_id", instrumentID))
			}
			if !descending && level.Price <= prev {
				return errs.New("schema/book", errs.KindValidation,
					errs.WithMessage("ask levels must be strictly ascending"),
					errs.WithField("instrument_id", instrumentID))
			}
		}
		prev = level.Price
	}
	return nil
}

// DealerQuoteEvent is one dealer's two-way price on an OTC instrument.
type DealerQuoteEvent struct {
	InstrumentID string         `json:"instrument_id"`
	DealerID     string         `json:"dealer_id"`
	Timestamp    time.Time      `json:"timestamp"`
	Bid          float64        `json:"bid"`
	Ask          float64        `json:"ask"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Validate enforces a strictly positive spread.
func (q DealerQuoteEvent) Validate() error {
	if q.InstrumentID == "" || q.DealerID == "" {
		return errs.New("schema/dealer-quote", errs.KindValidation,
			errs.WithMessage("instrument_id and dealer_id required"))
	}
	if q.Ask <= q.Bid {
		return errs.New("schema/dealer-quote", errs.KindValidation,
			errs.WithMessage("dealer ask must be strictly greater than bid"),
			errs.WithField("instrument_id", q.InstrumentID),
			errs.WithField("dealer_id", q.DealerID))
	}
	return nil
}

// ExecutionEvent records a fill emitted by the trading service. The
// execution id is derived from the order id so consumers can dedupe.
type ExecutionEvent struct {
	ExecutionID  string    `json:"execution_id"`
	OrderID      string    `json:"order_id"`
	UserID       string    `json:"user_id"`
	InstrumentID string    `json:"instrument_id"`
	Side         Side      `json:"side"`
	Quantity     int64     `json:"quantity"`
	Price        float64   `json:"price"`
	Timestamp    time.Time `json:"timestamp"`
}

// ExecutionID derives the execution event id for an order.
func ExecutionID(orderID string) string {
	return orderID + "-exec"
}
