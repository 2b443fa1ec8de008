package views

import (
	"context"
	"slices"
	"sync"

	"github.com/xenking/pasta-storefront/internal/domain/auth"
	"github.com/xenking/pasta-storefront/internal/domain/order"
	"github.com/xenking/pasta-storefront/internal/notify"
)

// Scope selects which orders a view lists.
type Scope int

const (
	// ScopeMine lists the signed-in user's orders.
	ScopeMine Scope = iota
	// ScopeAll lists every order. Admin only.
	ScopeAll
)

// Orders is the order list state.
type Orders struct {
	repo     order.Repository
	session  CurrentUser
	notifier notify.Notifier
	scope    Scope

	mu      sync.RWMutex
	items   []order.Order
	loading bool
}

// NewOrders returns a view in the loading state; call Load to fill it.
func NewOrders(repo order.Repository, session CurrentUser, n notify.Notifier, scope Scope) *Orders {
	return &Orders{
		repo:     repo,
		session:  session,
		notifier: n,
		scope:    scope,
		loading:  true,
	}
}

func (v *Orders) guard() error {
	if v.scope == ScopeAll {
		return auth.RequireAdmin(v.session.Current())
	}
	return auth.RequireUser(v.session.Current())
}

// Load fetches the orders for the view's scope after checking the role guard.
// On failure the collection is emptied and an error notification is shown.
func (v *Orders) Load(ctx context.Context) error {
	if err := v.guard(); err != nil {
		v.fail(ctx, err)
		return err
	}

	v.mu.Lock()
	v.loading = true
	v.mu.Unlock()

	var (
		items []order.Order
		err   error
	)
	if v.scope == ScopeAll {
		items, err = v.repo.ListAll(ctx)
	} else {
		items, err = v.repo.ListMine(ctx)
	}
	if err != nil {
		v.fail(ctx, err)
		return err
	}

	v.mu.Lock()
	v.items = items
	v.loading = false
	v.mu.Unlock()
	return nil
}

func (v *Orders) fail(ctx context.Context, err error) {
	v.mu.Lock()
	v.items = nil
	v.loading = false
	v.mu.Unlock()
	notify.Failure(ctx, v.notifier, err)
}

// Loading reports whether the first response is still pending.
func (v *Orders) Loading() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.loading
}

// Items returns a copy of the collection.
func (v *Orders) Items() []order.Order {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return slices.Clone(v.items)
}

// UpdateStatus changes an order's status. After the backend acknowledges,
// only the target order's status is patched locally.
func (v *Orders) UpdateStatus(ctx context.Context, id int64, status order.Status) error {
	if err := auth.RequireAdmin(v.session.Current()); err != nil {
		notify.Failure(ctx, v.notifier, err)
		return err
	}
	if !status.Valid() {
		err := order.ErrInvalidStatus
		notify.Failure(ctx, v.notifier, err)
		return err
	}

	echoed, err := v.repo.UpdateStatus(ctx, id, status)
	if err != nil {
		notify.Failure(ctx, v.notifier, err)
		return err
	}
	if echoed != nil && echoed.Status.Valid() {
		status = echoed.Status
	}

	v.mu.Lock()
	if i := slices.IndexFunc(v.items, func(o order.Order) bool { return o.ID == id }); i >= 0 {
		v.items[i].Status = status
	}
	v.mu.Unlock()

	v.notifier.Success(ctx, "Order status updated")
	return nil
}
