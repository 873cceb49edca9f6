package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/HtFilia/trading-board/internal/schema"
)

// document is the JSON value stored per session key.
type document struct {
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RedisStore keeps sessions in Redis with a server-side TTL, so expiry holds
// even if every service instance restarts.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisStore wires a session store over an established Redis client.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl, now: time.Now}
}

// Issue creates a session for the user and persists it under KeyPrefix+token
// with the store TTL.
func (s *RedisStore) Issue(ctx context.Context, userID string) (schema.Session, error) {
	token, err := NewToken()
	if err != nil {
		return schema.Session{}, err
	}
	sess := schema.Session{
		Token:     token,
		UserID:    userID,
		ExpiresAt: s.now().UTC().Add(s.ttl),
	}
	payload, err := json.Marshal(document{UserID: sess.UserID, ExpiresAt: sess.ExpiresAt})
	if err != nil {
		return schema.Session{}, fmt.Errorf("session: marshal document: %w", err)
	}
	if err := s.client.SetEx(ctx, KeyPrefix+token, payload, s.ttl).Err(); err != nil {
		return schema.Session{}, fmt.Errorf("session: store token: %w", err)
	}
	return sess, nil
}

// Get resolves a token. Redis expiry removes stale keys; the expires_at check
// covers clock drift between issue and read.
func (s *RedisStore) Get(ctx context.Context, token string) (schema.Session, error) {
	raw, err := s.client.Get(ctx, KeyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return schema.Session{}, notFound("session/get")
	}
	if err != nil {
		return schema.Session{}, fmt.Errorf("session: fetch token: %w", err)
	}
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return schema.Session{}, fmt.Errorf("session: decode document: %w", err)
	}
	sess := schema.Session{Token: token, UserID: doc.UserID, ExpiresAt: doc.ExpiresAt}
	if sess.Expired(s.now()) {
		return schema.Session{}, notFound("session/get")
	}
	return sess, nil
}

// Revoke deletes the token. Deleting an absent key is not an error.
func (s *RedisStore) Revoke(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, KeyPrefix+token).Err(); err != nil {
		return fmt.Errorf("session: revoke token: %w", err)
	}
	return nil
}
