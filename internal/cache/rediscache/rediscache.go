package rediscache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Store keeps opaque values with a TTL. Sessions are stored here.
type Store struct {
	c *redis.Client
}

func New(addr string) *Store {
	return &Store{c: redis.NewClient(&redis.Options{Addr: addr})}
}

// Get reports ok=false for a missing or expired key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.c.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, false, nil
	case err != nil:
		return nil, false, errors.Wrapf(err, "redis get %s", key)
	}
	return val, true, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return errors.Wrapf(s.c.Set(ctx, key, value, ttl).Err(), "redis set %s", key)
}

// Delete removes the key; a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	return errors.Wrapf(s.c.Del(ctx, key).Err(), "redis del %s", key)
}

func (s *Store) Ping(ctx context.Context) error {
	return errors.Wrap(s.c.Ping(ctx).Err(), "redis ping")
}

func (s *Store) Close() error {
	return s.c.Close()
}
