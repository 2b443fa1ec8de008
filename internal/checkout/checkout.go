// Package checkout pushes the local cart to the backend and places the order.
//
// The sequence (clear remote cart, re-add every line item, place order) is
// not atomic. A failure after the clear can leave the remote cart partially
// populated without an order; the next attempt starts by clearing it again.
package checkout

import (
	"context"
	"sync/atomic"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/pasta-storefront/internal/domain/auth"
	"github.com/xenking/pasta-storefront/internal/domain/cart"
	"github.com/xenking/pasta-storefront/internal/domain/order"
)

var (
	// ErrEmptyCart is returned when checkout is attempted with no line items.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrIncompleteProfile is returned when the buyer has no delivery address
	// or phone on file.
	ErrIncompleteProfile = errors.New("profile lacks address or phone")
	// ErrInProgress is returned when a checkout is already in flight.
	ErrInProgress = errors.New("checkout already in progress")
)

// DefaultConcurrency bounds the in-flight add-to-cart calls when no limit is
// configured.
const DefaultConcurrency = 4

// Session is the auth state checkout depends on.
type Session interface {
	Authenticated() bool
	Current() *auth.User
}

// LocalCart is the client-resident cart being checked out.
type LocalCart interface {
	Items() []cart.LineItem
	Clear(ctx context.Context) error
}

// Result is a successful checkout.
type Result struct {
	// Order is the created order, when the backend echoed it.
	Order *order.Order
	// PaymentURL is the external payment page the buyer must visit, if any.
	PaymentURL string
}

// Redirect reports whether the buyer must continue on an external payment
// page rather than seeing an immediate confirmation.
func (r *Result) Redirect() bool {
	return r.PaymentURL != ""
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithConcurrency bounds the number of concurrent add-to-cart calls.
func WithConcurrency(n int) Option {
	return func(s *Synchronizer) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithTracerProvider sets the provider for checkout spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Synchronizer) {
		s.tracer = tp.Tracer("github.com/xenking/pasta-storefront/internal/checkout")
	}
}

// WithMeterProvider sets the provider for checkout metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Synchronizer) {
		s.meter = mp.Meter("github.com/xenking/pasta-storefront/internal/checkout")
	}
}

// Synchronizer reconciles the local cart with the backend's cart and creates
// the order.
type Synchronizer struct {
	session Session
	cart    LocalCart
	remote  cart.Remote
	orders  order.Repository

	concurrency int
	tracer      trace.Tracer
	meter       metric.Meter
	attempts    metric.Int64Counter

	busy atomic.Bool
}

// New creates a Synchronizer.
func New(session Session, local LocalCart, remote cart.Remote, orders order.Repository, opts ...Option) (*Synchronizer, error) {
	s := &Synchronizer{
		session:     session,
		cart:        local,
		remote:      remote,
		orders:      orders,
		concurrency: DefaultConcurrency,
		tracer:      tracenoop.NewTracerProvider().Tracer(""),
		meter:       noop.NewMeterProvider().Meter(""),
	}
	for _, opt := range opts {
		opt(s)
	}

	attempts, err := s.meter.Int64Counter("pasta.checkout.attempts",
		metric.WithDescription("Checkout attempts by outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create attempts counter")
	}
	s.attempts = attempts
	return s, nil
}

// Checkout runs the checkout sequence. Preconditions are checked before any
// network call. On failure the local cart is left untouched so the buyer can
// retry; no step is retried automatically.
func (s *Synchronizer) Checkout(ctx context.Context) (*Result, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return nil, ErrInProgress
	}
	defer s.busy.Store(false)

	ctx, span := s.tracer.Start(ctx, "checkout.Checkout")
	defer span.End()

	res, outcome, err := s.checkout(ctx)
	s.attempts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	span.SetAttributes(attribute.String("checkout.outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		zctx.From(ctx).Warn("Checkout failed", zap.String("outcome", outcome), zap.Error(err))
		return nil, err
	}
	return res, nil
}

func (s *Synchronizer) checkout(ctx context.Context) (*Result, string, error) {
	if !s.session.Authenticated() {
		return nil, "unauthenticated", auth.ErrUnauthenticated
	}
	user := s.session.Current()
	if err := auth.RequireUser(user); err != nil {
		return nil, "unauthenticated", err
	}
	items := s.cart.Items()
	if len(items) == 0 {
		return nil, "empty_cart", ErrEmptyCart
	}
	if !user.CanReceiveOrders() {
		return nil, "incomplete_profile", ErrIncompleteProfile
	}

	req := placeRequest(items, user)
	if err := req.Validate(); err != nil {
		return nil, "invalid_order", errors.Wrap(err, "build order")
	}

	lg := zctx.From(ctx).With(zap.Int("line_items", len(items)))

	if err := s.remote.Clear(ctx); err != nil {
		return nil, "clear_failed", errors.Wrap(err, "clear remote cart")
	}

	if err := s.addAll(ctx, items); err != nil {
		return nil, "add_failed", errors.Wrap(err, "sync remote cart")
	}

	placement, err := s.orders.Place(ctx, req)
	if err != nil {
		return nil, "place_failed", errors.Wrap(err, "place order")
	}

	// The order exists now; a failure to clear local state must not be
	// reported as a failed checkout.
	if err := s.cart.Clear(ctx); err != nil {
		lg.Warn("Clear local cart after checkout", zap.Error(err))
	}

	res := &Result{Order: placement.Order, PaymentURL: placement.PaymentURL}
	if res.Order != nil {
		lg = lg.With(zap.Int64("order_id", res.Order.ID))
	}
	lg.Info("Order placed", zap.Bool("redirect", res.Redirect()))
	return res, "ok", nil
}

// addAll re-adds every line item to the remote cart. Calls run concurrently;
// the first failure cancels the rest.
func (s *Synchronizer) addAll(ctx context.Context, items []cart.LineItem) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, item := range items {
		g.Go(func() error {
			if err := s.remote.Add(ctx, item.ID, item.Quantity); err != nil {
				return errors.Wrapf(err, "add product %d", item.ID)
			}
			return nil
		})
	}
	return g.Wait()
}

func placeRequest(items []cart.LineItem, user *auth.User) order.PlaceRequest {
	req := order.PlaceRequest{
		Items:   make([]order.PlaceItem, 0, len(items)),
		Total:   cart.TotalPrice(items),
		Address: user.Address,
		Phone:   user.Phone,
	}
	for _, item := range items {
		req.Items = append(req.Items, order.PlaceItem{
			ProductID: item.ID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}
	return req
}
