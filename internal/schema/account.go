package schema

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/HtFilia/trading-board/errs"
)

// User is a registered platform user. Emails are stored lower-cased and are
// unique across the platform.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session binds an opaque token to a user until it expires or is revoked.
type Session struct {
	Token     string    `json:"-"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session has passed its expiry at the given
// instant.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Account is a user's cash account. Each user owns exactly one.
type Account struct {
	UserID        string          `json:"user_id"`
	CashBalance   decimal.Decimal `json:"cash_balance"`
	BaseCurrency  string          `json:"base_currency"`
	MarginAllowed bool            `json:"margin_allowed"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Validate enforces the ISO currency constraint.
func (a Account) Validate() error {
	if a.UserID == "" {
		return errs.New("schema/account", errs.KindValidation, errs.WithMessage("user_id required"))
	}
	if len(a.BaseCurrency) != 3 {
		return errs.New("schema/account", errs.KindValidation,
			errs.WithMessage("base_currency must be a 3-letter ISO code"),
			errs.WithField("base_currency", a.BaseCurrency))
	}
	for _, r := range a.BaseCurrency {
		if r < 'A' || r > 'Z' {
			return errs.New("schema/account", errs.KindValidation,
				errs.WithMessage("base_currency must be upper-case letters"),
				errs.WithField("base_currency", a.BaseCurrency))
		}
	}
	return nil
}

// Position is a user's holding in one instrument. Quantities never go
// negative for cash accounts.
type Position struct {
	UserID       string    `json:"user_id"`
	InstrumentID string    `json:"instrument_id"`
	Quantity     int64     `json:"quantity"`
	AveragePrice float64   `json:"average_price"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Notional values the position at the given mark.
func (p Position) Notional(price float64) float64 {
	return price * float64(p.Quantity)
}

// Validate enforces the position invariants.
func (p Position) Validate() error {
	if p.UserID == "" || p.InstrumentID == "" {
		return errs.New("schema/position", errs.KindValidation,
			errs.WithMessage("user_id and instrument_id required"))
	}
	if p.Quantity < 0 {
		return errs.New("schema/position", errs.KindValidation,
			errs.WithMessage("quantity must be non-negative"),
			errs.WithField("instrument_id", p.InstrumentID))
	}
	if p.AveragePrice <= 0 {
		return errs.New("schema/position", errs.KindValidation,
			errs.WithMessage("average_price must be positive"),
			errs.WithField("instrument_id", p.InstrumentID))
	}
	return nil
}
