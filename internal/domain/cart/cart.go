// Package cart implements the client-resident shopping cart: line items keyed
// by product id, derived totals, and write-through persistence to a Store.
package cart

import (
	"context"
	"sync"

	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/pasta-storefront/internal/domain/product"
)

// LineItem is a product paired with a purchase quantity. The product fields
// are embedded so the stored JSON is flat.
type LineItem struct {
	product.Product
	Quantity int `json:"quantity"`
}

// Subtotal returns price × quantity.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.Price.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Store persists the line-item list. Load never fails: missing or unreadable
// state yields an empty list.
type Store interface {
	Load(ctx context.Context) []LineItem
	Save(ctx context.Context, items []LineItem) error
}

// Remote is the backend's server-side cart, rebuilt from local state at
// checkout.
type Remote interface {
	Clear(ctx context.Context) error
	Add(ctx context.Context, productID int64, quantity int) error
}

// Listener receives a snapshot of the line items after every mutation.
type Listener func(items []LineItem)

// Cart holds the in-memory line items and writes through to its Store on
// every mutation.
//
// Invariants: a product id appears at most once and every quantity is >= 1.
type Cart struct {
	store Store

	mu        sync.Mutex
	items     []LineItem
	listeners map[int]Listener
	nextID    int
}

// New creates a Cart, reading the persisted state exactly once.
func New(ctx context.Context, store Store) *Cart {
	return &Cart{
		store:     store,
		items:     store.Load(ctx),
		listeners: make(map[int]Listener),
	}
}

// AddItem increments the quantity of p's line item, or appends a new line
// item with quantity 1.
func (c *Cart) AddItem(ctx context.Context, p product.Product) error {
	return c.mutate(ctx, func(items []LineItem) []LineItem {
		if i := indexOf(items, p.ID); i >= 0 {
			items[i].Quantity++
			return items
		}
		return append(items, LineItem{Product: p, Quantity: 1})
	})
}

// UpdateQuantity sets the quantity of a line item. Values below zero are
// clamped to zero, and zero removes the line item. Unknown ids are ignored.
func (c *Cart) UpdateQuantity(ctx context.Context, productID int64, quantity int) error {
	quantity = max(quantity, 0)
	return c.mutate(ctx, func(items []LineItem) []LineItem {
		i := indexOf(items, productID)
		if i < 0 {
			return items
		}
		if quantity == 0 {
			return append(items[:i], items[i+1:]...)
		}
		items[i].Quantity = quantity
		return items
	})
}

// RemoveItem removes a line item unconditionally.
func (c *Cart) RemoveItem(ctx context.Context, productID int64) error {
	return c.mutate(ctx, func(items []LineItem) []LineItem {
		if i := indexOf(items, productID); i >= 0 {
			return append(items[:i], items[i+1:]...)
		}
		return items
	})
}

// Clear empties the cart.
func (c *Cart) Clear(ctx context.Context) error {
	return c.mutate(ctx, func([]LineItem) []LineItem {
		return nil
	})
}

// Items returns a copy of the current line items in insertion order.
func (c *Cart) Items() []LineItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return clone(c.items)
}

// Quantity returns the quantity held for productID, or 0.
func (c *Cart) Quantity(productID int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := indexOf(c.items, productID); i >= 0 {
		return c.items[i].Quantity
	}
	return 0
}

// Len returns the number of distinct line items.
func (c *Cart) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// IsEmpty reports whether the cart holds no line items.
func (c *Cart) IsEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items) == 0
}

// TotalItems returns the sum of all quantities.
func (c *Cart) TotalItems() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return TotalItems(c.items)
}

// TotalPrice returns the sum of price × quantity over all line items.
func (c *Cart) TotalPrice() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return TotalPrice(c.items)
}

// Subscribe registers fn to be called after every mutation. The returned
// function removes the subscription.
func (c *Cart) Subscribe(fn Listener) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	c.listeners[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

// mutate applies fn to the line items, persists the result, and notifies
// listeners. The in-memory change stands even when persistence fails.
func (c *Cart) mutate(ctx context.Context, fn func([]LineItem) []LineItem) error {
	c.mu.Lock()
	c.items = fn(c.items)
	snapshot := clone(c.items)
	err := c.store.Save(ctx, snapshot)
	listeners := make([]Listener, 0, len(c.listeners))
	for _, l := range c.listeners {
		listeners = append(listeners, l)
	}
	c.mu.Unlock()

	if err != nil {
		zctx.From(ctx).Warn("Persist cart", zap.Error(err), zap.Int("items", len(snapshot)))
	}
	for _, l := range listeners {
		l(clone(snapshot))
	}
	return err
}

// TotalItems returns the sum of quantities across items.
func TotalItems(items []LineItem) int {
	total := 0
	for _, item := range items {
		total += item.Quantity
	}
	return total
}

// TotalPrice returns the sum of price × quantity across items.
func TotalPrice(items []LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.Subtotal())
	}
	return sum
}

// Normalize restores the cart invariants on externally sourced items:
// non-positive quantities are dropped and duplicate ids are merged into the
// first occurrence. It reports whether anything changed.
func Normalize(items []LineItem) ([]LineItem, bool) {
	out := make([]LineItem, 0, len(items))
	changed := false
	for _, item := range items {
		if item.Quantity <= 0 {
			changed = true
			continue
		}
		if i := indexOf(out, item.ID); i >= 0 {
			out[i].Quantity += item.Quantity
			changed = true
			continue
		}
		out = append(out, item)
	}
	return out, changed
}

func indexOf(items []LineItem, productID int64) int {
	for i := range items {
		if items[i].ID == productID {
			return i
		}
	}
	return -1
}

func clone(items []LineItem) []LineItem {
	if len(items) == 0 {
		return []LineItem{}
	}
	out := make([]LineItem, len(items))
	copy(out, items)
	return out
}
