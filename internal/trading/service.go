package trading

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/HtFilia/trading-board/errs"
	"github.com/HtFilia/trading-board/internal/observability"
	"github.com/HtFilia/trading-board/internal/schema"
)

// balanceTolerance absorbs float rounding when comparing consideration
// against the cash balance.
var balanceTolerance = decimal.NewFromFloat(1e-9)

// Accounts reads and writes cash accounts inside one unit of work.
// Get returns KindNotFound for users without an account.
type Accounts interface {
	Get(ctx context.Context, userID string) (schema.Account, error)
	Save(ctx context.Context, account schema.Account) error
}

// Positions reads and writes instrument positions inside one unit of work.
// Get returns KindNotFound when the user holds no position.
type Positions interface {
	Get(ctx context.Context, userID, instrumentID string) (schema.Position, error)
	Save(ctx context.Context, position schema.Position) error
}

// Orders persists order records inside one unit of work. Upsert is
// idempotent on order_id.
type Orders interface {
	Upsert(ctx context.Context, order schema.Order) error
}

// Tx exposes the repositories bound to one transaction.
type Tx interface {
	Accounts() Accounts
	Positions() Positions
	Orders() Orders
}

// UnitOfWork runs fn transactionally: commit on nil, rollback otherwise.
type UnitOfWork interface {
	Run(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// ExecutionPublisher emits execution events for filled orders. Publishing
// happens before commit, so a failed publish rolls the order back.
type ExecutionPublisher interface {
	PublishExecution(ctx context.Context, event schema.ExecutionEvent) error
}

// Metrics records order telemetry. A nil Metrics disables recording.
type Metrics interface {
	RecordOrderSubmitted(ctx context.Context, instrumentID, side, status string)
	RecordOrderDuration(ctx context.Context, instrumentID string, elapsed time.Duration)
}

// OrderService drives the order lifecycle: validate, match, settle, record,
// emit.
type OrderService struct {
	uow        UnitOfWork
	executions ExecutionPublisher
	metrics    Metrics
	newID      func() string
	now        func() time.Time
}

// NewOrderService wires the order service over a unit of work and an
// execution publisher.
func NewOrderService(uow UnitOfWork, executions ExecutionPublisher) *OrderService {
	return &OrderService{
		uow:        uow,
		executions: executions,
		metrics:    nil,
		newID:      uuid.NewString,
		now:        time.Now,
	}
}

// SetMetrics installs the order telemetry recorder.
func (s *OrderService) SetMetrics(metrics Metrics) { s.metrics = metrics }

// Submit matches the order against the snapshot and settles it atomically.
// The user identity comes from the session layer, never from the request.
func (s *OrderService) Submit(ctx context.Context, userID string, req schema.OrderRequest, book schema.OrderBookSnapshot) (schema.Order, error) {
	if err := req.Validate(); err != nil {
		return schema.Order{}, err
	}
	if req.TimeInForce == "" {
		req.TimeInForce = schema.DefaultTimeInForce
	}

	orderID := s.newID()
	now := s.now().UTC()

	observability.Log().Info("submitting order",
		observability.F("order_id", orderID),
		observability.F("user_id", userID),
		observability.F("instrument_id", req.InstrumentID),
		observability.F("side", string(req.Side)),
		observability.F("quantity", req.Quantity))

	var record schema.Order
	err := s.uow.Run(ctx, func(ctx context.Context, tx Tx) error {
		account, err := tx.Accounts().Get(ctx, userID)
		if err != nil {
			if errs.KindOf(err) == errs.KindNotFound {
				return errs.New("trading/submit", errs.KindValidation,
					errs.WithMessage("account not found for user"))
			}
			return fmt.Errorf("order service: load account: %w", err)
		}

		position, hasPosition, err := loadPosition(ctx, tx, userID, req.InstrumentID)
		if err != nil {
			return err
		}

		if req.Side == schema.SideSell {
			held := int64(0)
			if hasPosition {
				held = position.Quantity
			}
			if held < req.Quantity {
				return errs.InsufficientPosition("trading/submit", "order quantity exceeds available position")
			}
		}

		fills, residual := Match(req, book)
		filled := FilledQuantity(fills)
		consideration := Consideration(fills)
		considerationDec := decimal.NewFromFloat(consideration)

		if req.Side == schema.SideBuy {
			if considerationDec.GreaterThan(account.CashBalance.Add(balanceTolerance)) {
				return errs.InsufficientBalance("trading/submit", "insufficient cash to execute order")
			}
		}

		account = applyCashMutation(account, req.Side, considerationDec, now)

		if filled > 0 {
			updated, err := applyPositionMutation(position, hasPosition, userID, req, filled, consideration, now)
			if err != nil {
				return err
			}
			if err := tx.Positions().Save(ctx, updated); err != nil {
				return fmt.Errorf("order service: save position: %w", err)
			}
		}

		if err := tx.Accounts().Save(ctx, account); err != nil {
			return fmt.Errorf("order service: save account: %w", err)
		}

		var averagePrice *float64
		if filled > 0 {
			avg := consideration / float64(filled)
			averagePrice = &avg
		}

		record = schema.Order{
			OrderID:        orderID,
			UserID:         userID,
			InstrumentID:   req.InstrumentID,
			Side:           req.Side,
			OrderType:      req.OrderType,
			Quantity:       req.Quantity,
			FilledQuantity: filled,
			LimitPrice:     req.LimitPrice,
			AveragePrice:   averagePrice,
			Status:         schema.DeriveStatus(filled, residual),
			TimeInForce:    req.TimeInForce,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := tx.Orders().Upsert(ctx, record); err != nil {
			return fmt.Errorf("order service: upsert order: %w", err)
		}

		if filled > 0 {
			event := schema.ExecutionEvent{
				ExecutionID:  schema.ExecutionID(orderID),
				OrderID:      orderID,
				UserID:       userID,
				InstrumentID: req.InstrumentID,
				Side:         req.Side,
				Quantity:     filled,
				Price:        *averagePrice,
				Timestamp:    now,
			}
			if err := s.executions.PublishExecution(ctx, event); err != nil {
				return fmt.Errorf("order service: publish execution: %w", err)
			}
			observability.Log().Info("order filled",
				observability.F("order_id", orderID),
				observability.F("filled_quantity", filled),
				observability.F("status", string(record.Status)))
		} else {
			observability.Log().Info("order accepted with no fills",
				observability.F("order_id", orderID),
				observability.F("status", string(record.Status)))
		}
		return nil
	})
	if err != nil {
		return schema.Order{}, err
	}
	if s.metrics != nil {
		s.metrics.RecordOrderSubmitted(ctx, record.InstrumentID, string(record.Side), string(record.Status))
		s.metrics.RecordOrderDuration(ctx, record.InstrumentID, s.now().UTC().Sub(now))
	}
	return record, nil
}

func loadPosition(ctx context.Context, tx Tx, userID, instrumentID string) (schema.Position, bool, error) {
	position, err := tx.Positions().Get(ctx, userID, instrumentID)
	if err != nil {
		if errs.KindOf(err) == errs.KindNotFound {
			return schema.Position{}, false, nil
		}
		return schema.Position{}, false, fmt.Errorf("order service: load position: %w", err)
	}
	return position, true, nil
}

// applyCashMutation adjusts the balance by the signed consideration. A zero
// consideration only refreshes updated_at.
func applyCashMutation(account schema.Account, side schema.Side, consideration decimal.Decimal, now time.Time) schema.Account {
	account.UpdatedAt = now
	if consideration.IsZero() {
		return account
	}
	if side == schema.SideBuy {
		account.CashBalance = account.CashBalance.Sub(consideration)
	} else {
		account.CashBalance = account.CashBalance.Add(consideration)
	}
	return account
}

// applyPositionMutation computes the post-trade position. Buying re-weights
// the average price by total cost; selling keeps the prior average even when
// the position goes flat.
func applyPositionMutation(position schema.Position, hasPosition bool, userID string, req schema.OrderRequest, filled int64, consideration float64, now time.Time) (schema.Position, error) {
	if req.Side == schema.SideBuy {
		priorQty := int64(0)
		priorCost := 0.0
		if hasPosition {
			priorQty = position.Quantity
			priorCost = position.AveragePrice * float64(priorQty)
		}
		newQty := priorQty + filled
		divisor := newQty
		if divisor < 1 {
			divisor = 1
		}
		return schema.Position{
			UserID:       userID,
			InstrumentID: req.InstrumentID,
			Quantity:     newQty,
			AveragePrice: (priorCost + consideration) / float64(divisor),
			UpdatedAt:    now,
		}, nil
	}

	if !hasPosition {
		return schema.Position{}, errs.InsufficientPosition("trading/submit", "no position to sell")
	}
	if filled > position.Quantity {
		return schema.Position{}, errs.InsufficientPosition("trading/submit", "execution exceeds owned quantity")
	}
	position.Quantity -= filled
	position.UpdatedAt = now
	return position, nil
}
