package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/HtFilia/trading-board/errs"
	"github.com/HtFilia/trading-board/internal/schema"
)

// UserStore is the persistent user directory backing the auth service.
// Registration creates the user and their cash account in one transaction.
type UserStore struct {
	pool *pgxpool.Pool
}

// NewUserStore constructs a UserStore backed by the provided pool.
func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

const (
	userSelectByEmailSQL = `
SELECT id::text, email, password_hash, created_at
FROM users
WHERE email = @email;
`

	userInsertSQL = `
INSERT INTO users (id, email, password_hash, created_at)
VALUES (@id, @email, @password_hash, @created_at);
`

	accountInsertSQL = `
INSERT INTO accounts (user_id, cash_balance, base_currency, margin_allowed, created_at, updated_at)
VALUES (@user_id, @cash_balance, @base_currency, @margin_allowed, @updated_at, @updated_at);
`
)

func (s *UserStore) ensurePool() (*pgxpool.Pool, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("user store: nil pool")
	}
	return s.pool, nil
}

// GetUserByEmail looks up a user by normalized email. Unknown emails map to
// KindNotFound so the auth service can distinguish them from infra failures.
func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (schema.User, error) {
	pool, err := s.ensurePool()
	if err != nil {
		return schema.User{}, err
	}
	args := pgx.NamedArgs{"email": strings.TrimSpace(email)}

	var user schema.User
	row := pool.QueryRow(ctx, userSelectByEmailSQL, args)
	if err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return schema.User{}, errs.New("userstore/get", errs.KindNotFound,
				errs.WithMessage("user not found"),
				errs.WithField("email", email))
		}
		return schema.User{}, fmt.Errorf("user store: lookup user: %w", err)
	}
	return user, nil
}

// CreateUserWithAccount inserts the user and provisions their cash account
// atomically. A duplicate email maps to KindConflict.
func (s *UserStore) CreateUserWithAccount(ctx context.Context, user schema.User, account schema.Account) error {
	pool, err := s.ensurePool()
	if err != nil {
		return err
	}
	err = runInTx(ctx, pool, "user store", func(ctx context.Context, tx pgx.Tx) error {
		userArgs := pgx.NamedArgs{
			"id":            user.ID,
			"email":         user.Email,
			"password_hash": user.PasswordHash,
			"created_at":    user.CreatedAt,
		}
		if _, err := tx.Exec(ctx, userInsertSQL, userArgs); err != nil {
			return fmt.Errorf("user store: insert user: %w", err)
		}

		accountArgs := pgx.NamedArgs{
			"user_id":        account.UserID,
			"cash_balance":   account.CashBalance.String(),
			"base_currency":  account.BaseCurrency,
			"margin_allowed": account.MarginAllowed,
			"updated_at":     account.UpdatedAt,
		}
		if _, err := tx.Exec(ctx, accountInsertSQL, accountArgs); err != nil {
			return fmt.Errorf("user store: insert account: %w", err)
		}
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return errs.New("userstore/create", errs.KindConflict,
				errs.WithMessage("email already registered"),
				errs.WithReason(errs.ReasonDuplicateEmail),
				errs.WithField("email", user.Email),
				errs.WithCause(err))
		}
		return err
	}
	return nil
}
