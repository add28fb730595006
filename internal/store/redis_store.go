package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const hotKeyScoresKey = "network:hotkey:scores"

// HotKeyStore tracks which counters were touched most since the last
// reconciliation cycle.
type HotKeyStore interface {
	RecordAccess(ctx context.Context, key CounterKey) error
	GetTopHotKeys(ctx context.Context, n int64) ([]CounterKey, error)
	// RemoveHotKeys drops the scores of keys already reconciled. Other
	// members keep their scores for the next cycle.
	RemoveHotKeys(ctx context.Context, keys []CounterKey) error
	Close() error
}

// RedisHotKeyStore implements HotKeyStore with a Redis sorted set.
type RedisHotKeyStore struct {
	client *redis.Client
}

// NewRedisHotKeyStore connects to Redis and verifies the connection.
func NewRedisHotKeyStore(ctx context.Context, address, password string, db int) (*RedisHotKeyStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisHotKeyStore{client: client}, nil
}

// NewRedisHotKeyStoreFromClient wraps an existing client.
func NewRedisHotKeyStoreFromClient(client *redis.Client) *RedisHotKeyStore {
	return &RedisHotKeyStore{client: client}
}

// Client exposes the underlying client so other Redis-backed stores can
// share the connection pool.
func (s *RedisHotKeyStore) Client() *redis.Client {
	return s.client
}

// RecordAccess increments the score of a counter in the hot key sorted set.
func (s *RedisHotKeyStore) RecordAccess(ctx context.Context, key CounterKey) error {
	err := s.client.ZIncrBy(ctx, hotKeyScoresKey, 1, key.String()).Err()
	if err != nil {
		return fmt.Errorf("redis record access: %w", err)
	}
	return nil
}

// GetTopHotKeys returns the n most touched counters. Members that do not
// parse as counter keys are dropped from the set.
func (s *RedisHotKeyStore) GetTopHotKeys(ctx context.Context, n int64) ([]CounterKey, error) {
	members, err := s.client.ZRevRange(ctx, hotKeyScoresKey, 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis get top hot keys: %w", err)
	}
	keys := make([]CounterKey, 0, len(members))
	var junk []any
	for _, m := range members {
		k, err := ParseCounterKey(m)
		if err != nil {
			junk = append(junk, m)
			continue
		}
		keys = append(keys, k)
	}
	if len(junk) > 0 {
		_ = s.client.ZRem(ctx, hotKeyScoresKey, junk...).Err()
	}
	return keys, nil
}

// RemoveHotKeys removes keys from the hot key sorted set.
func (s *RedisHotKeyStore) RemoveHotKeys(ctx context.Context, keys []CounterKey) error {
	if len(keys) == 0 {
		return nil
	}
	members := make([]any, len(keys))
	for i, k := range keys {
		members[i] = k.String()
	}
	if err := s.client.ZRem(ctx, hotKeyScoresKey, members...).Err(); err != nil {
		return fmt.Errorf("redis remove hot keys: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (s *RedisHotKeyStore) Close() error {
	return s.client.Close()
}

var _ HotKeyStore = (*RedisHotKeyStore)(nil)
