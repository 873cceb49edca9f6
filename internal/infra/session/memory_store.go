package session

import (
	"context"
	"sync"
	"time"

	"github.com/HtFilia/trading-board/internal/schema"
)

const sweepInterval = 30 * time.Second

// MemoryStore is an in-process session store for tests and single-node runs.
// A background sweeper evicts expired records; reads also treat expired
// records as absent so expiry does not depend on sweep timing.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]schema.Session
	ttl      time.Duration
	now      func() time.Time
	shutdown chan struct{}
	once     sync.Once
}

// NewMemoryStore creates a memory-backed session store and starts its
// sweeper.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	store := &MemoryStore{
		sessions: make(map[string]schema.Session),
		ttl:      ttl,
		now:      time.Now,
		shutdown: make(chan struct{}),
	}
	go store.sweepExpired()
	return store
}

// Issue creates a session for the user.
func (s *MemoryStore) Issue(ctx context.Context, userID string) (schema.Session, error) {
	if err := ctx.Err(); err != nil {
		return schema.Session{}, err
	}
	token, err := NewToken()
	if err != nil {
		return schema.Session{}, err
	}
	sess := schema.Session{
		Token:     token,
		UserID:    userID,
		ExpiresAt: s.now().UTC().Add(s.ttl),
	}
	s.mu.Lock()
	s.sessions[token] = sess
	s.mu.Unlock()
	return sess, nil
}

// Get resolves a token, treating expired records as absent.
func (s *MemoryStore) Get(ctx context.Context, token string) (schema.Session, error) {
	if err := ctx.Err(); err != nil {
		return schema.Session{}, err
	}
	s.mu.RLock()
	sess, ok := s.sessions[token]
	s.mu.RUnlock()
	if !ok || sess.Expired(s.now()) {
		return schema.Session{}, notFound("session/get")
	}
	return sess, nil
}

// Revoke removes the token. Unknown tokens are ignored.
func (s *MemoryStore) Revoke(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
	return nil
}

// Close stops the background sweeper.
func (s *MemoryStore) Close() {
	s.once.Do(func() { close(s.shutdown) })
}

func (s *MemoryStore) sweepExpired() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.shutdown:
			return
		case <-ticker.C:
			s.pruneExpired()
		}
	}
}

func (s *MemoryStore) pruneExpired() {
	now := s.now()
	s.mu.Lock()
	for token, sess := range s.sessions {
		if sess.Expired(now) {
			delete(s.sessions, token)
		}
	}
	s.mu.Unlock()
}
