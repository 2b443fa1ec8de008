// Package redis implements storage.Slots on top of a Redis server, for
// kiosk deployments where several terminals share one cart.
package redis

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/pasta-storefront/internal/storage"
)

var _ storage.Slots = (*Slots)(nil)

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	// Namespace prefixes every key, e.g. "pasta:" + terminal id.
	Namespace string
}

// Slots stores each key as a Redis string.
type Slots struct {
	client    *redis.Client
	namespace string
}

// New connects to Redis and verifies the connection with PING.
func New(ctx context.Context, opts Options) (*Slots, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "ping redis %s", opts.Addr)
	}
	return NewWithClient(client, opts.Namespace), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, namespace string) *Slots {
	return &Slots{client: client, namespace: namespace}
}

// Get returns the value stored under key.
func (s *Slots) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.namespace+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get slot %s", key)
	}
	return data, nil
}

// Set overwrites the value stored under key without expiry.
func (s *Slots) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.namespace+key, value, 0).Err(); err != nil {
		return errors.Wrapf(err, "set slot %s", key)
	}
	return nil
}

// Delete removes key.
func (s *Slots) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.namespace+key).Err(); err != nil {
		return errors.Wrapf(err, "delete slot %s", key)
	}
	return nil
}

// Ping checks connectivity.
func (s *Slots) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the connection pool.
func (s *Slots) Close() error {
	return s.client.Close()
}
