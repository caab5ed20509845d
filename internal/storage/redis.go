package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisKeyPrefix namespaces every item key.
const RedisKeyPrefix = "grantiva:"

// RedisStore persists items as plain Redis strings with no expiry.
type RedisStore struct {
	client *redis.Client
}

// NewRedisClient parses redis://[:password@]host:port[/db].
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func redisKey(service, account string) string {
	return RedisKeyPrefix + service + ":" + account
}

// Ping fails fast when Redis is unreachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (s *RedisStore) Put(ctx context.Context, service, account string, value []byte) error {
	if err := s.client.Set(ctx, redisKey(service, account), value, 0).Err(); err != nil {
		return fmt.Errorf("put secure item: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, service, account string) ([]byte, error) {
	value, err := s.client.Get(ctx, redisKey(service, account)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get secure item: %w", err)
	}
	return value, nil
}

func (s *RedisStore) Delete(ctx context.Context, service, account string) error {
	if err := s.client.Del(ctx, redisKey(service, account)).Err(); err != nil {
		return fmt.Errorf("delete secure item: %w", err)
	}
	return nil
}
