// Package app wires the storefront client together and implements its
// subcommands.
package app

import (
	"context"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/pasta-storefront/internal/backend"
	"github.com/xenking/pasta-storefront/internal/checkout"
	"github.com/xenking/pasta-storefront/internal/domain/cart"
	"github.com/xenking/pasta-storefront/internal/notify"
	"github.com/xenking/pasta-storefront/internal/session"
	"github.com/xenking/pasta-storefront/internal/storage"
	"github.com/xenking/pasta-storefront/internal/storage/file"
	"github.com/xenking/pasta-storefront/internal/storage/postgres"
	"github.com/xenking/pasta-storefront/internal/storage/redis"
	"github.com/xenking/pasta-storefront/pkg/health"
	"github.com/xenking/pasta-storefront/pkg/transport"
)

// Run builds the client from cfg and executes the subcommand in args. It is
// the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config, args []string) error {
	lg.Debug("Initializing",
		zap.String("backend", cfg.BackendURL),
		zap.String("storage", cfg.Storage.Driver),
	)

	a, err := New(ctx, cfg, Options{
		Out:            os.Stdout,
		TracerProvider: m.TracerProvider(),
		MeterProvider:  m.MeterProvider(),
	})
	if err != nil {
		return err
	}
	defer a.Close()

	return a.Exec(ctx, args)
}

// Options carries the process-level dependencies of an App.
type Options struct {
	Out            io.Writer
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	// Transport is the base RoundTripper for backend calls. Defaults to
	// http.DefaultTransport.
	Transport http.RoundTripper
}

// App holds the wired client state for one invocation.
type App struct {
	cfg      *Config
	out      io.Writer
	slots    storage.Slots
	client   *backend.Client
	session  *session.Manager
	cart     *cart.Cart
	checkout *checkout.Synchronizer
	notifier notify.Notifier
	probe    *health.Probe
	closers  []func()
}

// New opens the configured storage, restores the session and cart, and
// builds the backend client.
func New(ctx context.Context, cfg *Config, opts Options) (_ *App, rerr error) {
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if opts.TracerProvider == nil {
		opts.TracerProvider = tracenoop.NewTracerProvider()
	}
	if opts.MeterProvider == nil {
		opts.MeterProvider = metricnoop.NewMeterProvider()
	}
	if opts.Transport == nil {
		opts.Transport = http.DefaultTransport
	}

	a := &App{
		cfg:      cfg,
		out:      opts.Out,
		notifier: notify.NewConsole(opts.Out),
		probe:    health.New(),
	}
	defer func() {
		if rerr != nil {
			a.Close()
		}
	}()

	cartStore, err := a.openStorage(ctx)
	if err != nil {
		return nil, err
	}

	client, err := backend.New(backend.Config{
		BaseURL: cfg.BackendURL,
		Timeout: cfg.Timeout,
		Transport: transport.Wrap(opts.Transport,
			transport.RequestID(),
			transport.Instrument(opts.TracerProvider, opts.MeterProvider),
			transport.LogRequests(),
		),
	})
	if err != nil {
		return nil, errors.Wrap(err, "create backend client")
	}
	a.client = client

	a.session = session.New(ctx, a.slots, client.Auth())
	client.SetCredentials(a.session)

	a.cart = cart.New(ctx, cartStore)

	a.checkout, err = checkout.New(a.session, a.cart, client.Cart(), client.Orders(),
		checkout.WithConcurrency(cfg.Checkout.Concurrency),
		checkout.WithTracerProvider(opts.TracerProvider),
		checkout.WithMeterProvider(opts.MeterProvider),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create checkout")
	}

	a.probe.Add("backend", 5*time.Second, func(ctx context.Context) error {
		_, err := client.Products().List(ctx)
		return err
	})
	a.probe.Add("storage", 5*time.Second, func(ctx context.Context) error {
		if p, ok := a.slots.(pinger); ok {
			return p.Ping(ctx)
		}
		_, err := a.slots.Get(ctx, storage.KeyCart)
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	})

	return a, nil
}

// pinger is implemented by slot backends behind a network connection.
type pinger interface {
	Ping(ctx context.Context) error
}

// openStorage opens the slot backend selected by the config and returns the
// cart store on top of it.
func (a *App) openStorage(ctx context.Context) (cart.Store, error) {
	cfg := a.cfg.Storage
	switch cfg.Driver {
	case DriverMemory:
		a.slots = storage.NewMemory()
	case DriverFile:
		slots, err := file.New(cfg.Dir)
		if err != nil {
			return nil, errors.Wrap(err, "open file storage")
		}
		a.slots = slots
	case DriverRedis:
		slots, err := redis.New(ctx, redis.Options{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			Namespace: cfg.Namespace,
		})
		if err != nil {
			return nil, errors.Wrap(err, "open redis storage")
		}
		a.slots = slots
		a.closers = append(a.closers, func() { _ = slots.Close() })
	case DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		a.closers = append(a.closers, pool.Close)
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			return nil, errors.Wrap(err, "run migrations")
		}
		a.slots = postgres.NewSlots(pool, cfg.Namespace)
		// Line items get their own table; the other slots stay key-value.
		return postgres.NewCartStore(pool, cfg.Namespace), nil
	default:
		return nil, errors.Errorf("unknown storage driver %q", cfg.Driver)
	}
	return storage.NewCartStore(a.slots), nil
}

// Close releases storage connections.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
