package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/HtFilia/trading-board/errs"
	"github.com/HtFilia/trading-board/internal/schema"
	"github.com/HtFilia/trading-board/internal/trading"
)

// TradingStore runs order settlement as a single transaction. Account and
// position reads take row locks so concurrent submissions for the same user
// serialize instead of clobbering balances.
type TradingStore struct {
	pool *pgxpool.Pool
}

// NewTradingStore constructs a TradingStore backed by the provided pool.
func NewTradingStore(pool *pgxpool.Pool) *TradingStore {
	return &TradingStore{pool: pool}
}

const (
	accountSelectForUpdateSQL = `
SELECT user_id::text, cash_balance::text, base_currency, margin_allowed, updated_at
FROM accounts
WHERE user_id = @user_id
FOR UPDATE;
`

	accountUpsertSQL = `
INSERT INTO accounts (user_id, cash_balance, base_currency, margin_allowed, created_at, updated_at)
VALUES (@user_id, @cash_balance, @base_currency, @margin_allowed, @updated_at, @updated_at)
ON CONFLICT (user_id) DO UPDATE SET
    cash_balance = EXCLUDED.cash_balance,
    margin_allowed = EXCLUDED.margin_allowed,
    updated_at = EXCLUDED.updated_at;
`

	positionSelectForUpdateSQL = `
SELECT user_id::text, instrument_id, quantity, average_price::text, updated_at
FROM positions
WHERE user_id = @user_id AND instrument_id = @instrument_id
FOR UPDATE;
`

	positionUpsertSQL = `
INSERT INTO positions (user_id, instrument_id, quantity, average_price, updated_at)
VALUES (@user_id, @instrument_id, @quantity, @average_price, @updated_at)
ON CONFLICT (user_id, instrument_id) DO UPDATE SET
    quantity = EXCLUDED.quantity,
    average_price = EXCLUDED.average_price,
    updated_at = EXCLUDED.updated_at;
`

	orderUpsertSQL = `
INSERT INTO orders (
    order_id,
    user_id,
    instrument_id,
    side,
    order_type,
    quantity,
    filled_quantity,
    limit_price,
    average_price,
    status,
    time_in_force,
    created_at,
    updated_at
)
VALUES (
    @order_id,
    @user_id,
    @instrument_id,
    @side,
    @order_type,
    @quantity,
    @filled_quantity,
    @limit_price,
    @average_price,
    @status,
    @time_in_force,
    @created_at,
    @updated_at
)
ON CONFLICT (order_id) DO UPDATE SET
    filled_quantity = EXCLUDED.filled_quantity,
    average_price = EXCLUDED.average_price,
    status = EXCLUDED.status,
    updated_at = EXCLUDED.updated_at;
`
)

func (s *TradingStore) ensurePool() (*pgxpool.Pool, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("trading store: nil pool")
	}
	return s.pool, nil
}

// Run implements trading.UnitOfWork: fn executes against transaction-bound
// repositories, committing on nil and rolling back otherwise.
func (s *TradingStore) Run(ctx context.Context, fn func(ctx context.Context, tx trading.Tx) error) error {
	pool, err := s.ensurePool()
	if err != nil {
		return err
	}
	return runInTx(ctx, pool, "trading store", func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &tradingTx{tx: tx})
	})
}

type tradingTx struct {
	tx pgx.Tx
}

func (t *tradingTx) Accounts() trading.Accounts   { return &txAccounts{tx: t.tx} }
func (t *tradingTx) Positions() trading.Positions { return &txPositions{tx: t.tx} }
func (t *tradingTx) Orders() trading.Orders       { return &txOrders{tx: t.tx} }

type txAccounts struct {
	tx pgx.Tx
}

// Get loads the account and locks its row for the rest of the transaction.
func (r *txAccounts) Get(ctx context.Context, userID string) (schema.Account, error) {
	args := pgx.NamedArgs{"user_id": userID}

	var (
		account schema.Account
		cash    string
	)
	row := r.tx.QueryRow(ctx, accountSelectForUpdateSQL, args)
	if err := row.Scan(&account.UserID, &cash, &account.BaseCurrency, &account.MarginAllowed, &account.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return schema.Account{}, errs.New("tradingstore/account", errs.KindNotFound,
				errs.WithMessage("account not found"),
				errs.WithField("user_id", userID))
		}
		return schema.Account{}, fmt.Errorf("trading store: load account: %w", err)
	}
	balance, err := decimalFromText(cash)
	if err != nil {
		return schema.Account{}, fmt.Errorf("trading store: cash balance: %w", err)
	}
	account.CashBalance = balance
	return account, nil
}

func (r *txAccounts) Save(ctx context.Context, account schema.Account) error {
	args := pgx.NamedArgs{
		"user_id":        account.UserID,
		"cash_balance":   account.CashBalance.String(),
		"base_currency":  account.BaseCurrency,
		"margin_allowed": account.MarginAllowed,
		"updated_at":     account.UpdatedAt,
	}
	if _, err := r.tx.Exec(ctx, accountUpsertSQL, args); err != nil {
		return fmt.Errorf("trading store: upsert account: %w", err)
	}
	return nil
}

type txPositions struct {
	tx pgx.Tx
}

// Get loads the position and locks its row for the rest of the transaction.
func (r *txPositions) Get(ctx context.Context, userID, instrumentID string) (schema.Position, error) {
	args := pgx.NamedArgs{
		"user_id":       userID,
		"instrument_id": instrumentID,
	}

	var (
		position schema.Position
		average  string
	)
	row := r.tx.QueryRow(ctx, positionSelectForUpdateSQL, args)
	if err := row.Scan(&position.UserID, &position.InstrumentID, &position.Quantity, &average, &position.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return schema.Position{}, errs.New("tradingstore/position", errs.KindNotFound,
				errs.WithMessage("position not found"),
				errs.WithField("instrument_id", instrumentID))
		}
		return schema.Position{}, fmt.Errorf("trading store: load position: %w", err)
	}
	avg, err := floatFromText(average)
	if err != nil {
		return schema.Position{}, fmt.Errorf("trading store: average price: %w", err)
	}
	position.AveragePrice = avg
	return position, nil
}

func (r *txPositions) Save(ctx context.Context, position schema.Position) error {
	args := pgx.NamedArgs{
		"user_id":       position.UserID,
		"instrument_id": position.InstrumentID,
		"quantity":      position.Quantity,
		"average_price": position.AveragePrice,
		"updated_at":    position.UpdatedAt,
	}
	if _, err := r.tx.Exec(ctx, positionUpsertSQL, args); err != nil {
		return fmt.Errorf("trading store: upsert position: %w", err)
	}
	return nil
}

type txOrders struct {
	tx pgx.Tx
}

// Upsert records the order, refreshing fill state when the order id already
// exists.
func (r *txOrders) Upsert(ctx context.Context, order schema.Order) error {
	args := pgx.NamedArgs{
		"order_id":        order.OrderID,
		"user_id":         order.UserID,
		"instrument_id":   order.InstrumentID,
		"side":            string(order.Side),
		"order_type":      string(order.OrderType),
		"quantity":        order.Quantity,
		"filled_quantity": order.FilledQuantity,
		"limit_price":     nullableFloat(order.LimitPrice),
		"average_price":   nullableFloat(order.AveragePrice),
		"status":          string(order.Status),
		"time_in_force":   order.TimeInForce,
		"created_at":      order.CreatedAt,
		"updated_at":      order.UpdatedAt,
	}
	if _, err := r.tx.Exec(ctx, orderUpsertSQL, args); err != nil {
		return fmt.Errorf("trading store: upsert order: %w", err)
	}
	return nil
}
