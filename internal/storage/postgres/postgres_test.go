//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/pasta-storefront/internal/domain/cart"
	"github.com/xenking/pasta-storefront/internal/domain/product"
	"github.com/xenking/pasta-storefront/internal/storage"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:17-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "pasta",
				"POSTGRES_PASSWORD": "pasta",
				"POSTGRES_DB":       "pasta",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	pool, err := NewPool(ctx, fmt.Sprintf("postgres://pasta:pasta@%s:%s/pasta?sslmode=disable", host, port.Port()))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))
	// Migrations are idempotent.
	require.NoError(t, RunMigrations(ctx, pool))
	return pool
}

func TestSlots(t *testing.T) {
	ctx := context.Background()
	s := NewSlots(startPostgres(t), "test:")
	require.NoError(t, s.Ping(ctx))

	_, err := s.Get(ctx, storage.KeyToken)
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.Set(ctx, storage.KeyToken, []byte("a")))
	require.NoError(t, s.Set(ctx, storage.KeyToken, []byte("b")))
	got, err := s.Get(ctx, storage.KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "b", string(got))

	require.NoError(t, s.Delete(ctx, storage.KeyToken))
	_, err = s.Get(ctx, storage.KeyToken)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCartStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewCartStore(startPostgres(t), "kiosk-1:")

	assert.Empty(t, s.Load(ctx))

	want := []cart.LineItem{
		{Product: product.Product{ID: 9, Name: "Sorrentinos", Price: decimal.RequireFromString("1200.125"), Stock: 3}, Quantity: 2},
		{Product: product.Product{ID: 1, Name: "Tallarines", Category: "Simples", Price: decimal.NewFromInt(500)}, Quantity: 1},
	}
	require.NoError(t, s.Save(ctx, want))

	got := s.Load(ctx)
	require.Len(t, got, 2)
	for i := range want {
		assert.Equal(t, want[i].ID, got[i].ID)
		assert.Equal(t, want[i].Quantity, got[i].Quantity)
		assert.True(t, want[i].Price.Equal(got[i].Price), "price %s != %s", want[i].Price, got[i].Price)
	}

	require.NoError(t, s.Save(ctx, nil))
	assert.Empty(t, s.Load(ctx))
}
