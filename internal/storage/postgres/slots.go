package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/pasta-storefront/internal/storage"
)

const (
	getSlotSQL = `SELECT value FROM slots WHERE key = $1`

	setSlotSQL = `INSERT INTO slots (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`

	deleteSlotSQL = `DELETE FROM slots WHERE key = $1`
)

var _ storage.Slots = (*Slots)(nil)

// Slots implements storage.Slots backed by the slots table.
type Slots struct {
	pool      *pgxpool.Pool
	namespace string
}

// NewSlots returns Slots that prefix every key with namespace.
func NewSlots(pool *pgxpool.Pool, namespace string) *Slots {
	return &Slots{pool: pool, namespace: namespace}
}

// Get returns the value stored under key.
func (s *Slots) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	if err := s.pool.QueryRow(ctx, getSlotSQL, s.namespace+key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("getting slot %q: %w", key, err)
	}
	return value, nil
}

// Set upserts the value stored under key.
func (s *Slots) Set(ctx context.Context, key string, value []byte) error {
	if _, err := s.pool.Exec(ctx, setSlotSQL, s.namespace+key, value); err != nil {
		return fmt.Errorf("setting slot %q: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (s *Slots) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, deleteSlotSQL, s.namespace+key); err != nil {
		return fmt.Errorf("deleting slot %q: %w", key, err)
	}
	return nil
}

// Ping checks the database connection.
func (s *Slots) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
