package views

import (
	"context"
	"slices"
	"sync"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/pasta-storefront/internal/domain/product"
	"github.com/xenking/pasta-storefront/internal/notify"
)

// Products is the catalog list state.
type Products struct {
	repo     product.Repository
	notifier notify.Notifier

	mu      sync.RWMutex
	items   []product.Product
	loading bool
}

// NewProducts returns a view in the loading state; call Load to fill it.
func NewProducts(repo product.Repository, n notify.Notifier) *Products {
	return &Products{
		repo:     repo,
		notifier: n,
		loading:  true,
	}
}

// Load fetches the catalog. On failure the collection is emptied and an error
// notification is shown; there is no retry.
func (v *Products) Load(ctx context.Context) error {
	v.mu.Lock()
	v.loading = true
	v.mu.Unlock()

	items, err := v.repo.List(ctx)

	v.mu.Lock()
	v.loading = false
	if err != nil {
		v.items = nil
	} else {
		v.items = items
	}
	v.mu.Unlock()

	if err != nil {
		notify.Failure(ctx, v.notifier, err)
		return err
	}
	return nil
}

// Loading reports whether the first response is still pending.
func (v *Products) Loading() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.loading
}

// Items returns a copy of the collection.
func (v *Products) Items() []product.Product {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return slices.Clone(v.items)
}

// Get returns the product with id from the collection.
func (v *Products) Get(id int64) (product.Product, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if i := v.index(id); i >= 0 {
		return v.items[i], true
	}
	return product.Product{}, false
}

// Filter returns the products matching a free-text query and category.
func (v *Products) Filter(query, category string) []product.Product {
	return product.Filter{Query: query, Category: category}.Apply(v.Items())
}

// Categories returns the distinct categories present in the collection.
func (v *Products) Categories() []string {
	return product.Categories(v.Items())
}

// Create adds a product and appends the backend's echo. Without an echo the
// collection is reloaded so the new product carries its backend id.
func (v *Products) Create(ctx context.Context, in product.Input) (*product.Product, error) {
	created, err := v.repo.Create(ctx, in)
	if err != nil {
		notify.Failure(ctx, v.notifier, err)
		return nil, err
	}
	v.notifier.Success(ctx, "Product created")

	if created == nil {
		return v.reloadCreated(ctx, in), nil
	}

	v.mu.Lock()
	v.items = append(v.items, *created)
	v.mu.Unlock()
	return created, nil
}

// reloadCreated refreshes the collection and returns the last product
// matching in's name, or nil. A failed refresh keeps the prior state.
func (v *Products) reloadCreated(ctx context.Context, in product.Input) *product.Product {
	items, err := v.repo.List(ctx)
	if err != nil {
		zctx.From(ctx).Warn("Reload products after create", zap.Error(err))
		return nil
	}

	v.mu.Lock()
	v.items = items
	v.mu.Unlock()

	for i := len(items) - 1; i >= 0; i-- {
		if items[i].Name == in.Name {
			p := items[i]
			return &p
		}
	}
	return nil
}

// Update edits a product. The local entry is replaced by the backend's echo,
// or merged with in when the backend echoes nothing.
func (v *Products) Update(ctx context.Context, id int64, in product.Input) (*product.Product, error) {
	echoed, err := v.repo.Update(ctx, id, in)
	if err != nil {
		notify.Failure(ctx, v.notifier, err)
		return nil, err
	}

	v.mu.Lock()
	var updated product.Product
	if i := v.index(id); i >= 0 {
		updated = in.Apply(v.items[i])
		if echoed != nil {
			updated = *echoed
		}
		v.items[i] = updated
	} else {
		updated = in.Apply(product.Product{ID: id})
		if echoed != nil {
			updated = *echoed
		}
	}
	v.mu.Unlock()

	v.notifier.Success(ctx, "Product updated")
	return &updated, nil
}

// Delete removes a product.
func (v *Products) Delete(ctx context.Context, id int64) error {
	if err := v.repo.Delete(ctx, id); err != nil {
		notify.Failure(ctx, v.notifier, err)
		return err
	}

	v.mu.Lock()
	v.items = slices.DeleteFunc(v.items, func(p product.Product) bool { return p.ID == id })
	v.mu.Unlock()

	v.notifier.Success(ctx, "Product deleted")
	return nil
}

func (v *Products) index(id int64) int {
	return slices.IndexFunc(v.items, func(p product.Product) bool { return p.ID == id })
}
