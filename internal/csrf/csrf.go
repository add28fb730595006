// Package csrf issues and checks per-session CSRF tokens.
package csrf

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "network:csrf:"

// DefaultTTL applies when a store is created with a non-positive ttl.
const DefaultTTL = 12 * time.Hour

var ErrNoSession = errors.New("csrf: session id is required")

// Store issues tokens bound to a session and verifies them.
type Store interface {
	Issue(ctx context.Context, sessionID string) (string, error)
	Verify(ctx context.Context, sessionID, token string) (bool, error)
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// RedisStore keeps one token per session in Redis.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed token store.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

// Issue returns the session's token, creating one when none is stored.
// Repeated calls within the ttl return the same token.
func (s *RedisStore) Issue(ctx context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		return "", ErrNoSession
	}
	key := keyPrefix + sessionID
	token := uuid.NewString()

	ok, err := s.client.SetNX(ctx, key, token, s.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("redis set csrf token: %w", err)
	}
	if ok {
		return token, nil
	}
	existing, err := s.client.Get(ctx, key).Result()
	if err != nil {
		return "", fmt.Errorf("redis get csrf token: %w", err)
	}
	return existing, nil
}

// Verify reports whether token is the one issued for the session.
func (s *RedisStore) Verify(ctx context.Context, sessionID, token string) (bool, error) {
	if sessionID == "" || token == "" {
		return false, nil
	}
	stored, err := s.client.Get(ctx, keyPrefix+sessionID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis get csrf token: %w", err)
	}
	return equal(stored, token), nil
}

// MemoryStore keeps tokens in process memory. It serves single-instance
// deployments without Redis.
type MemoryStore struct {
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
	tokens map[string]memToken
}

type memToken struct {
	value   string
	expires time.Time
}

// NewMemoryStore creates an in-process token store.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{ttl: ttl, now: time.Now, tokens: make(map[string]memToken)}
}

func (s *MemoryStore) Issue(_ context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		return "", ErrNoSession
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if t, ok := s.tokens[sessionID]; ok && now.Before(t.expires) {
		return t.value, nil
	}
	for sid, t := range s.tokens {
		if !now.Before(t.expires) {
			delete(s.tokens, sid)
		}
	}
	t := memToken{value: uuid.NewString(), expires: now.Add(s.ttl)}
	s.tokens[sessionID] = t
	return t.value, nil
}

func (s *MemoryStore) Verify(_ context.Context, sessionID, token string) (bool, error) {
	if sessionID == "" || token == "" {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[sessionID]
	if !ok || !s.now().Before(t.expires) {
		return false, nil
	}
	return equal(t.value, token), nil
}

var (
	_ Store = (*RedisStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
