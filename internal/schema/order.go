package schema

import (
	"time"

	"github.com/HtFilia/trading-board/errs"
)

// DefaultTimeInForce is applied when a request leaves time_in_force unset.
const DefaultTimeInForce = "GTC"

// OrderRequest is a client order submission. The owning user is resolved
// from the session, never from the request payload.
type OrderRequest struct {
	InstrumentID string    `json:"instrument_id"`
	Side         Side      `json:"side"`
	OrderType    OrderType `json:"order_type"`
	Quantity     int64     `json:"quantity"`
	LimitPrice   *float64  `json:"limit_price,omitempty"`
	TimeInForce  string    `json:"time_in_force,omitempty"`
}

// Validate checks field-level constraints before the order enters the
// matching path.
func (r OrderRequest) Validate() error {
	if r.InstrumentID == "" {
		return errs.New("schema/order-request", errs.KindValidation, errs.WithMessage("instrument_id required"))
	}
	if err := r.Side.Validate(); err != nil {
		return err
	}
	if err := r.OrderType.Validate(); err != nil {
		return err
	}
	if r.Quantity <= 0 {
		return errs.New("schema/order-request", errs.KindValidation,
			errs.WithMessage("quantity must be positive"),
			errs.WithField("instrument_id", r.InstrumentID))
	}
	if r.OrderType == OrderTypeLimit {
		if r.LimitPrice == nil || *r.LimitPrice <= 0 {
			return errs.New("schema/order-request", errs.KindValidation,
				errs.WithMessage("limit orders require a positive limit_price"),
				errs.WithField("instrument_id", r.InstrumentID))
		}
	}
	return nil
}

// Fill is a single price level crossed during matching.
type Fill struct {
	Price    float64 `json:"price"`
	Quantity int64   `json:"quantity"`
}

// Order is the persisted record of a submitted order.
type Order struct {
	OrderID        string      `json:"order_id"`
	UserID         string      `json:"user_id"`
	InstrumentID   string      `json:"instrument_id"`
	Side           Side        `json:"side"`
	OrderType      OrderType   `json:"order_type"`
	Quantity       int64       `json:"quantity"`
	FilledQuantity int64       `json:"filled_quantity"`
	LimitPrice     *float64    `json:"limit_price,omitempty"`
	AveragePrice   *float64    `json:"average_price,omitempty"`
	Status         OrderStatus `json:"status"`
	TimeInForce    string      `json:"time_in_force"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// Remaining reports the unfilled portion of the order.
func (o Order) Remaining() int64 {
	return o.Quantity - o.FilledQuantity
}

// Validate enforces the order record invariants.
func (o Order) Validate() error {
	if o.OrderID == "" || o.UserID == "" || o.InstrumentID == "" {
		return errs.New("schema/order", errs.KindValidation,
			errs.WithMessage("order_id, user_id and instrument_id required"))
	}
	if err := o.Side.Validate(); err != nil {
		return err
	}
	if err := o.OrderType.Validate(); err != nil {
		return err
	}
	if err := o.Status.Validate(); err != nil {
		return err
	}
	if o.Quantity <= 0 {
		return errs.New("schema/order", errs.KindValidation,
			errs.WithMessage("quantity must be positive"), errs.WithField("order_id", o.OrderID))
	}
	if o.FilledQuantity < 0 || o.FilledQuantity > o.Quantity {
		return errs.New("schema/order", errs.KindValidation,
			errs.WithMessage("filled_quantity must lie in [0, quantity]"),
			errs.WithField("order_id", o.OrderID))
	}
	if o.AveragePrice != nil && *o.AveragePrice <= 0 {
		return errs.New("schema/order", errs.KindValidation,
			errs.WithMessage("average_price must be positive when set"),
			errs.WithField("order_id", o.OrderID))
	}
	return nil
}
