package auth

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/HtFilia/trading-board/errs"
	"github.com/HtFilia/trading-board/internal/infra/session"
	"github.com/HtFilia/trading-board/internal/observability"
	"github.com/HtFilia/trading-board/internal/schema"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

const (
	minPasswordLen = 8
	maxPasswordLen = 128
	maxEmailLen    = 320
)

// Directory is the persistence seam the auth service writes users through.
// GetUserByEmail returns KindNotFound for unknown emails;
// CreateUserWithAccount creates both rows in one transaction and returns
// KindConflict when the email is already taken.
type Directory interface {
	GetUserByEmail(ctx context.Context, email string) (schema.User, error)
	CreateUserWithAccount(ctx context.Context, user schema.User, account schema.Account) error
}

// Config carries the account-provisioning defaults applied at registration.
type Config struct {
	StartingBalance decimal.Decimal
	BaseCurrency    string
}

// Metrics records session telemetry. A nil Metrics disables recording.
type Metrics interface {
	RecordSessionIssued(ctx context.Context, operation string)
	RecordSessionRevoked(ctx context.Context)
	RecordLoginFailure(ctx context.Context, reason string)
}

// Service orchestrates registration, login, logout and demo seeding.
type Service struct {
	directory Directory
	sessions  session.Store
	hasher    *PasswordHasher
	cfg       Config
	metrics   Metrics
	now       func() time.Time
}

// NewService wires the auth service. A nil hasher falls back to the default
// parameters.
func NewService(directory Directory, sessions session.Store, hasher *PasswordHasher, cfg Config) *Service {
	if hasher == nil {
		hasher = NewPasswordHasher()
	}
	return &Service{
		directory: directory,
		sessions:  sessions,
		hasher:    hasher,
		cfg:       cfg,
		metrics:   nil,
		now:       time.Now,
	}
}

// SetMetrics installs the session telemetry recorder.
func (s *Service) SetMetrics(metrics Metrics) { s.metrics = metrics }

// Register creates a user with a provisioned cash account and issues a
// session. The stored email is the normalized form.
func (s *Service) Register(ctx context.Context, email, password string) (schema.Session, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return schema.Session{}, err
	}
	if err := validatePassword(password); err != nil {
		return schema.Session{}, err
	}

	_, err = s.directory.GetUserByEmail(ctx, normalized)
	switch {
	case err == nil:
		return schema.Session{}, duplicateEmail(normalized)
	case errs.KindOf(err) == errs.KindNotFound:
	default:
		return schema.Session{}, fmt.Errorf("auth service: lookup email: %w", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return schema.Session{}, err
	}
	now := s.now().UTC()
	user := schema.User{
		ID:           uuid.NewString(),
		Email:        normalized,
		PasswordHash: hash,
		CreatedAt:    now,
	}
	account := schema.Account{
		UserID:        user.ID,
		CashBalance:   s.cfg.StartingBalance,
		BaseCurrency:  s.cfg.BaseCurrency,
		MarginAllowed: false,
		UpdatedAt:     now,
	}
	if err := s.directory.CreateUserWithAccount(ctx, user, account); err != nil {
		// The unique index closes the lookup/create race.
		if errs.KindOf(err) == errs.KindConflict {
			return schema.Session{}, duplicateEmail(normalized)
		}
		return schema.Session{}, fmt.Errorf("auth service: create user: %w", err)
	}
	sess, err := s.sessions.Issue(ctx, user.ID)
	if err != nil {
		return schema.Session{}, err
	}
	s.recordSessionIssued(ctx, "register")
	return sess, nil
}

// Login verifies credentials and issues a fresh session. Unknown emails and
// wrong passwords produce the same error.
func (s *Service) Login(ctx context.Context, email, password string) (schema.Session, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		s.recordLoginFailure(ctx, "invalid_email")
		return schema.Session{}, err
	}

	user, err := s.directory.GetUserByEmail(ctx, normalized)
	if err != nil {
		if errs.KindOf(err) == errs.KindNotFound {
			s.recordLoginFailure(ctx, "unknown_email")
			return schema.Session{}, errs.InvalidCredentials("auth/login")
		}
		return schema.Session{}, fmt.Errorf("auth service: lookup email: %w", err)
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return schema.Session{}, errs.New("auth/login", errs.KindFatal,
			errs.WithMessage("stored credential unreadable"), errs.WithCause(err))
	}
	if !ok {
		s.recordLoginFailure(ctx, "invalid_password")
		return schema.Session{}, errs.InvalidCredentials("auth/login")
	}
	sess, err := s.sessions.Issue(ctx, user.ID)
	if err != nil {
		return schema.Session{}, err
	}
	s.recordSessionIssued(ctx, "login")
	return sess, nil
}

// Logout revokes the token. Unknown tokens succeed.
func (s *Service) Logout(ctx context.Context, token string) error {
	if err := s.sessions.Revoke(ctx, token); err != nil {
		return err
	}
	s.recordSessionRevoked(ctx)
	return nil
}

// SeedDefaultUser ensures the configured demo user exists with a provisioned
// account. It bypasses the password policy, mirroring direct provisioning
// rather than self-service registration, and never issues a session.
func (s *Service) SeedDefaultUser(ctx context.Context, email, password string) error {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return err
	}

	_, err = s.directory.GetUserByEmail(ctx, normalized)
	switch {
	case err == nil:
		observability.Log().Debug("default user already exists",
			observability.F("email", normalized))
		return nil
	case errs.KindOf(err) == errs.KindNotFound:
	default:
		return fmt.Errorf("auth service: lookup default user: %w", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	user := schema.User{
		ID:           uuid.NewString(),
		Email:        normalized,
		PasswordHash: hash,
		CreatedAt:    now,
	}
	account := schema.Account{
		UserID:        user.ID,
		CashBalance:   s.cfg.StartingBalance,
		BaseCurrency:  s.cfg.BaseCurrency,
		MarginAllowed: false,
		UpdatedAt:     now,
	}
	if err := s.directory.CreateUserWithAccount(ctx, user, account); err != nil {
		if errs.KindOf(err) == errs.KindConflict {
			return nil
		}
		return fmt.Errorf("auth service: seed default user: %w", err)
	}
	observability.Log().Info("seeded default user", observability.F("email", normalized))
	return nil
}

func (s *Service) recordSessionIssued(ctx context.Context, operation string) {
	if s.metrics != nil {
		s.metrics.RecordSessionIssued(ctx, operation)
	}
}

func (s *Service) recordSessionRevoked(ctx context.Context) {
	if s.metrics != nil {
		s.metrics.RecordSessionRevoked(ctx)
	}
}

func (s *Service) recordLoginFailure(ctx context.Context, reason string) {
	if s.metrics != nil {
		s.metrics.RecordLoginFailure(ctx, reason)
	}
}

// NormalizeEmail lower-cases and trims the address and validates its shape.
func NormalizeEmail(email string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if len(normalized) == 0 || len(normalized) > maxEmailLen || !emailPattern.MatchString(normalized) {
		return "", errs.New("auth/email", errs.KindValidation,
			errs.WithMessage("invalid email format"))
	}
	return normalized, nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLen || len(password) > maxPasswordLen {
		return errs.New("auth/password", errs.KindValidation,
			errs.WithMessage(fmt.Sprintf("password must be between %d and %d characters", minPasswordLen, maxPasswordLen)))
	}
	return nil
}

func duplicateEmail(email string) error {
	return errs.New("auth/register", errs.KindConflict,
		errs.WithMessage("email already registered"),
		errs.WithReason(errs.ReasonDuplicateEmail),
		errs.WithField("email", email))
}
