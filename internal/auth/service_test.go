package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/HtFilia/trading-board/errs"
	"github.com/HtFilia/trading-board/internal/infra/session"
	"github.com/HtFilia/trading-board/internal/schema"
)

type fakeDirectory struct {
	mu       sync.Mutex
	users    map[string]schema.User
	accounts map[string]schema.Account
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		users:    make(map[string]schema.User),
		accounts: make(map[string]schema.Account),
	}
}

func (d *fakeDirectory) GetUserByEmail(_ context.Context, email string) (schema.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	user, ok := d.users[email]
	if !ok {
		return schema.User{}, errs.New("fake/get-user", errs.KindNotFound, errs.WithMessage("user not found"))
	}
	return user, nil
}

func (d *fakeDirectory) CreateUserWithAccount(_ context.Context, user schema.User, account schema.Account) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.users[user.Email]; exists {
		return errs.New("fake/create-user", errs.KindConflict, errs.WithMessage("email already registered"))
	}
	d.users[user.Email] = user
	d.accounts[account.UserID] = account
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeDirectory, *session.MemoryStore) {
	t.Helper()
	directory := newFakeDirectory()
	sessions := session.NewMemoryStore(30 * time.Minute)
	t.Cleanup(sessions.Close)
	svc := NewService(directory, sessions, nil, Config{
		StartingBalance: decimal.NewFromInt(1_000_000),
		BaseCurrency:    "USD",
	})
	return svc, directory, sessions
}

func TestRegisterNormalizesEmailAndProvisionsAccount(t *testing.T) {
	svc, directory, _ := newTestService(t)

	sess, err := svc.Register(context.Background(), "Alice@EX.com", "s3cret-pass")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if sess.Token == "" || sess.UserID == "" {
		t.Fatalf("incomplete session: %+v", sess)
	}

	user, err := directory.GetUserByEmail(context.Background(), "alice@ex.com")
	if err != nil {
		t.Fatalf("stored user lookup: %v", err)
	}
	if user.Email != "alice@ex.com" {
		t.Fatalf("stored email = %s, want alice@ex.com", user.Email)
	}
	if user.PasswordHash == "" || user.PasswordHash == "s3cret-pass" {
		t.Fatal("password must be stored hashed")
	}

	account, ok := directory.accounts[user.ID]
	if !ok {
		t.Fatal("registration must provision an account")
	}
	if !account.CashBalance.Equal(decimal.NewFromInt(1_000_000)) {
		t.Fatalf("starting balance = %s", account.CashBalance)
	}
	if account.BaseCurrency != "USD" || account.MarginAllowed {
		t.Fatalf("account defaults = %+v", account)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "bob@ex.com", "s3cret-pass"); err != nil {
		t.Fatalf("first register: %v", err)
	}
	_, err := svc.Register(ctx, "BOB@ex.com", "other-pass-123")
	if errs.KindOf(err) != errs.KindConflict {
		t.Fatalf("kind = %v, want conflict (err=%v)", errs.KindOf(err), err)
	}
	if errs.Reason(err) != errs.ReasonDuplicateEmail {
		t.Fatalf("reason = %q", errs.Reason(err))
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"missing at", "aliceex.com", "s3cret-pass"},
		{"missing tld", "alice@excom", "s3cret-pass"},
		{"embedded space", "al ice@ex.com", "s3cret-pass"},
		{"empty email", "", "s3cret-pass"},
		{"short password", "alice@ex.com", "short"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.email, tt.password)
			if errs.KindOf(err) != errs.KindValidation {
				t.Fatalf("kind = %v, want validation (err=%v)", errs.KindOf(err), err)
			}
		})
	}
}

func TestLoginRightAndWrongPassword(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, "carol@ex.com", "s3cret-pass")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	sess, err := svc.Login(ctx, "CAROL@ex.com", "s3cret-pass")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if sess.UserID != registered.UserID {
		t.Fatalf("login user = %s, want %s", sess.UserID, registered.UserID)
	}
	if sess.Token == registered.Token {
		t.Fatal("login must issue a fresh token")
	}

	_, wrongPass := svc.Login(ctx, "carol@ex.com", "not-the-password")
	_, unknownUser := svc.Login(ctx, "nobody@ex.com", "s3cret-pass")
	if errs.KindOf(wrongPass) != errs.KindAuth || errs.KindOf(unknownUser) != errs.KindAuth {
		t.Fatalf("kinds = %v/%v, want auth/auth", errs.KindOf(wrongPass), errs.KindOf(unknownUser))
	}
	// Unknown user and wrong password must be indistinguishable.
	if wrongPass.Error() != unknownUser.Error() {
		t.Fatalf("credential errors differ: %q vs %q", wrongPass, unknownUser)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	svc, _, sessions := newTestService(t)
	ctx := context.Background()

	sess, err := svc.Register(ctx, "dave@ex.com", "s3cret-pass")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := svc.Logout(ctx, sess.Token); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := sessions.Get(ctx, sess.Token); errs.KindOf(err) != errs.KindAuth {
		t.Fatalf("expected revoked session, got %v", err)
	}
	if err := svc.Logout(ctx, sess.Token); err != nil {
		t.Fatalf("repeat logout: %v", err)
	}
}

type captureSessionMetrics struct {
	issued   []string
	revoked  int
	failures []string
}

func (m *captureSessionMetrics) RecordSessionIssued(_ context.Context, operation string) {
	m.issued = append(m.issued, operation)
}

func (m *captureSessionMetrics) RecordSessionRevoked(_ context.Context) { m.revoked++ }

func (m *captureSessionMetrics) RecordLoginFailure(_ context.Context, reason string) {
	m.failures = append(m.failures, reason)
}

func TestServiceRecordsSessionMetrics(t *testing.T) {
	svc, _, _ := newTestService(t)
	metrics := &captureSessionMetrics{}
	svc.SetMetrics(metrics)
	ctx := context.Background()

	sess, err := svc.Register(ctx, "erin@ex.com", "s3cret-pass")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Login(ctx, "erin@ex.com", "s3cret-pass"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := svc.Logout(ctx, sess.Token); err != nil {
		t.Fatalf("logout: %v", err)
	}

	if len(metrics.issued) != 2 || metrics.issued[0] != "register" || metrics.issued[1] != "login" {
		t.Errorf("issued = %v, want [register login]", metrics.issued)
	}
	if metrics.revoked != 1 {
		t.Errorf("revoked = %d, want 1", metrics.revoked)
	}

	if _, err := svc.Login(ctx, "erin@ex.com", "wrong-password"); err == nil {
		t.Fatal("expected wrong password to fail")
	}
	if _, err := svc.Login(ctx, "nobody@ex.com", "s3cret-pass"); err == nil {
		t.Fatal("expected unknown email to fail")
	}
	want := []string{"invalid_password", "unknown_email"}
	if len(metrics.failures) != len(want) {
		t.Fatalf("failures = %v, want %v", metrics.failures, want)
	}
	for i, reason := range want {
		if metrics.failures[i] != reason {
			t.Errorf("failures[%d] = %q, want %q", i, metrics.failures[i], reason)
		}
	}
}

func TestSeedDefaultUserIdempotent(t *testing.T) {
	svc, directory, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.SeedDefaultUser(ctx, "demo@example.com", "demo"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	user, err := directory.GetUserByEmail(ctx, "demo@example.com")
	if err != nil {
		t.Fatalf("seeded user lookup: %v", err)
	}
	if _, ok := directory.accounts[user.ID]; !ok {
		t.Fatal("seed must provision an account")
	}

	if err := svc.SeedDefaultUser(ctx, "demo@example.com", "demo"); err != nil {
		t.Fatalf("second seed: %v", err)
	}
	directory.mu.Lock()
	userCount := len(directory.users)
	directory.mu.Unlock()
	if userCount != 1 {
		t.Fatalf("user count after reseed = %d, want 1", userCount)
	}
}
