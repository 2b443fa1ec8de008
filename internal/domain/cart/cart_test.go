package cart

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/pasta-storefront/internal/domain/product"
)

// --- Mock implementations ---

type mockStore struct {
	loaded  []LineItem
	saved   []LineItem
	saves   int
	saveErr error
}

func (m *mockStore) Load(_ context.Context) []LineItem {
	return m.loaded
}

func (m *mockStore) Save(_ context.Context, items []LineItem) error {
	m.saves++
	m.saved = items
	return m.saveErr
}

// --- Helpers ---

func newTestProduct(id int64, price string) product.Product {
	return product.Product{
		ID:       id,
		Name:     "Pasta",
		Category: "Simples",
		Price:    decimal.RequireFromString(price),
		Stock:    10,
	}
}

// --- Tests ---

func TestCart_Totals(t *testing.T) {
	ctx := context.Background()
	c := New(ctx, &mockStore{})

	p1 := newTestProduct(1, "500")
	p2 := newTestProduct(2, "300")
	require.NoError(t, c.AddItem(ctx, p1))
	require.NoError(t, c.AddItem(ctx, p1))
	require.NoError(t, c.AddItem(ctx, p2))

	assert.Equal(t, 3, c.TotalItems())
	assert.Equal(t, 2, c.Len())
	assert.True(t, decimal.NewFromInt(1300).Equal(c.TotalPrice()), "got %s", c.TotalPrice())
}

func TestCart_AddItemTwiceMerges(t *testing.T) {
	ctx := context.Background()
	c := New(ctx, &mockStore{})

	p := newTestProduct(1, "10")
	require.NoError(t, c.AddItem(ctx, p))
	require.NoError(t, c.AddItem(ctx, p))

	items := c.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)
}

func TestCart_UpdateQuantity(t *testing.T) {
	tests := []struct {
		name     string
		quantity int
		wantQty  int
		wantLen  int
	}{
		{name: "set positive", quantity: 5, wantQty: 5, wantLen: 1},
		{name: "zero removes", quantity: 0, wantQty: 0, wantLen: 0},
		{name: "negative clamps and removes", quantity: -3, wantQty: 0, wantLen: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			c := New(ctx, &mockStore{})
			require.NoError(t, c.AddItem(ctx, newTestProduct(1, "10")))

			require.NoError(t, c.UpdateQuantity(ctx, 1, tt.quantity))
			assert.Equal(t, tt.wantQty, c.Quantity(1))
			assert.Len(t, c.Items(), tt.wantLen)
		})
	}
}

func TestCart_UpdateQuantityZeroEqualsRemove(t *testing.T) {
	ctx := context.Background()
	a := New(ctx, &mockStore{})
	b := New(ctx, &mockStore{})
	for _, c := range []*Cart{a, b} {
		require.NoError(t, c.AddItem(ctx, newTestProduct(1, "10")))
		require.NoError(t, c.AddItem(ctx, newTestProduct(2, "20")))
	}

	require.NoError(t, a.UpdateQuantity(ctx, 1, 0))
	require.NoError(t, b.RemoveItem(ctx, 1))

	assert.Equal(t, a.Items(), b.Items())
	assert.Equal(t, 0, a.Quantity(1))
}

func TestCart_UpdateQuantityUnknownID(t *testing.T) {
	ctx := context.Background()
	c := New(ctx, &mockStore{})
	require.NoError(t, c.AddItem(ctx, newTestProduct(1, "10")))

	require.NoError(t, c.UpdateQuantity(ctx, 99, 4))
	assert.Len(t, c.Items(), 1)
	assert.Equal(t, 0, c.Quantity(99))
}

func TestCart_Clear(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{}
	c := New(ctx, store)
	require.NoError(t, c.AddItem(ctx, newTestProduct(1, "10")))

	require.NoError(t, c.Clear(ctx))
	assert.Equal(t, 0, c.TotalItems())
	assert.True(t, decimal.Zero.Equal(c.TotalPrice()))
	assert.True(t, c.IsEmpty())
	assert.Empty(t, store.saved)
}

func TestCart_LoadsOnceAndWritesThrough(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{loaded: []LineItem{
		{Product: newTestProduct(1, "10"), Quantity: 2},
	}}
	c := New(ctx, store)
	assert.Equal(t, 2, c.TotalItems())
	assert.Equal(t, 0, store.saves)

	require.NoError(t, c.AddItem(ctx, newTestProduct(2, "5")))
	require.NoError(t, c.RemoveItem(ctx, 1))

	assert.Equal(t, 2, store.saves)
	require.Len(t, store.saved, 1)
	assert.Equal(t, int64(2), store.saved[0].ID)
}

func TestCart_SaveErrorKeepsMemoryState(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{saveErr: errors.New("disk full")}
	c := New(ctx, store)

	err := c.AddItem(ctx, newTestProduct(1, "10"))
	require.Error(t, err)
	assert.Equal(t, 1, c.TotalItems())
}

func TestCart_Subscribe(t *testing.T) {
	ctx := context.Background()
	c := New(ctx, &mockStore{})

	var got [][]LineItem
	unsubscribe := c.Subscribe(func(items []LineItem) {
		got = append(got, items)
	})

	require.NoError(t, c.AddItem(ctx, newTestProduct(1, "10")))
	require.NoError(t, c.AddItem(ctx, newTestProduct(1, "10")))
	unsubscribe()
	require.NoError(t, c.Clear(ctx))

	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0][0].Quantity)
	assert.Equal(t, 2, got[1][0].Quantity)
}

func TestCart_ItemsReturnsCopy(t *testing.T) {
	ctx := context.Background()
	c := New(ctx, &mockStore{})
	require.NoError(t, c.AddItem(ctx, newTestProduct(1, "10")))

	items := c.Items()
	items[0].Quantity = 99

	assert.Equal(t, 1, c.Quantity(1))
}

// TestCart_RandomSequences checks the derived totals and invariants against a
// simple model after every operation of random add/update/remove sequences.
func TestCart_RandomSequences(t *testing.T) {
	ctx := context.Background()
	rnd := rand.New(rand.NewPCG(1, 2))
	catalog := []product.Product{
		newTestProduct(1, "500"),
		newTestProduct(2, "300"),
		newTestProduct(3, "12.75"),
		newTestProduct(4, "0.10"),
	}

	for run := range 50 {
		c := New(ctx, &mockStore{})
		model := map[int64]int{}

		for range 100 {
			p := catalog[rnd.IntN(len(catalog))]
			switch rnd.IntN(3) {
			case 0:
				require.NoError(t, c.AddItem(ctx, p))
				model[p.ID]++
			case 1:
				q := rnd.IntN(6) - 1
				require.NoError(t, c.UpdateQuantity(ctx, p.ID, q))
				if _, ok := model[p.ID]; ok {
					if q <= 0 {
						delete(model, p.ID)
					} else {
						model[p.ID] = q
					}
				}
			case 2:
				require.NoError(t, c.RemoveItem(ctx, p.ID))
				delete(model, p.ID)
			}

			items := c.Items()
			seen := map[int64]bool{}
			wantItems := 0
			wantPrice := decimal.Zero
			for _, item := range items {
				require.False(t, seen[item.ID], "run %d: duplicate id %d", run, item.ID)
				seen[item.ID] = true
				require.GreaterOrEqual(t, item.Quantity, 1)
				require.Equal(t, model[item.ID], item.Quantity)
				wantItems += item.Quantity
				wantPrice = wantPrice.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
			}
			require.Len(t, items, len(model))
			require.Equal(t, wantItems, c.TotalItems())
			require.True(t, wantPrice.Equal(c.TotalPrice()))
		}
	}
}

func TestNormalize(t *testing.T) {
	items := []LineItem{
		{Product: newTestProduct(1, "10"), Quantity: 1},
		{Product: newTestProduct(2, "10"), Quantity: 0},
		{Product: newTestProduct(1, "10"), Quantity: 2},
	}

	got, changed := Normalize(items)
	assert.True(t, changed)
	require.Len(t, got, 1)
	assert.Equal(t, 3, got[0].Quantity)

	_, changed = Normalize(got)
	assert.False(t, changed)
}
