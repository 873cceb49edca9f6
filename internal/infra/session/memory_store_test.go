package session

import (
	"context"
	"testing"
	"time"

	"github.com/HtFilia/trading-board/errs"
)

func TestNewTokenShape(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 32; i++ {
		token, err := NewToken()
		if err != nil {
			t.Fatalf("new token: %v", err)
		}
		if len(token) != tokenBytes*2 {
			t.Fatalf("token length = %d, want %d", len(token), tokenBytes*2)
		}
		if seen[token] {
			t.Fatalf("duplicate token generated: %s", token)
		}
		seen[token] = true
	}
}

func TestMemoryStoreIssueAndGet(t *testing.T) {
	store := NewMemoryStore(30 * time.Minute)
	defer store.Close()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }

	sess, err := store.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if sess.UserID != "user-1" {
		t.Fatalf("user id = %s", sess.UserID)
	}
	if want := base.Add(30 * time.Minute); !sess.ExpiresAt.Equal(want) {
		t.Fatalf("expires_at = %v, want %v", sess.ExpiresAt, want)
	}

	got, err := store.Get(context.Background(), sess.Token)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.UserID != sess.UserID || !got.ExpiresAt.Equal(sess.ExpiresAt) {
		t.Fatalf("get = %+v, want %+v", got, sess)
	}
}

func TestMemoryStoreUnknownToken(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	defer store.Close()

	_, err := store.Get(context.Background(), "deadbeef")
	if errs.KindOf(err) != errs.KindAuth {
		t.Fatalf("kind = %v, want auth (err=%v)", errs.KindOf(err), err)
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	defer store.Close()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }

	sess, err := store.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	// Exactly at expiry counts as expired.
	store.now = func() time.Time { return base.Add(time.Minute) }
	if _, err := store.Get(context.Background(), sess.Token); errs.KindOf(err) != errs.KindAuth {
		t.Fatalf("expected auth error at expiry, got %v", err)
	}
}

func TestMemoryStoreRevokeIdempotent(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	defer store.Close()

	sess, err := store.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := store.Revoke(context.Background(), sess.Token); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := store.Get(context.Background(), sess.Token); errs.KindOf(err) != errs.KindAuth {
		t.Fatalf("expected auth error after revoke, got %v", err)
	}
	if err := store.Revoke(context.Background(), sess.Token); err != nil {
		t.Fatalf("second revoke: %v", err)
	}
	if err := store.Revoke(context.Background(), "never-issued"); err != nil {
		t.Fatalf("revoke unknown: %v", err)
	}
}

func TestMemoryStorePruneExpired(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	defer store.Close()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }

	stale, err := store.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue stale: %v", err)
	}

	store.now = func() time.Time { return base.Add(30 * time.Second) }
	fresh, err := store.Issue(context.Background(), "user-2")
	if err != nil {
		t.Fatalf("issue fresh: %v", err)
	}

	store.now = func() time.Time { return base.Add(70 * time.Second) }
	store.pruneExpired()

	store.mu.RLock()
	_, staleKept := store.sessions[stale.Token]
	_, freshKept := store.sessions[fresh.Token]
	store.mu.RUnlock()
	if staleKept {
		t.Fatal("expired session survived prune")
	}
	if !freshKept {
		t.Fatal("live session removed by prune")
	}
}
