// Package notify delivers transient user notifications and maps errors to
// user-facing text.
package notify

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/pasta-storefront/internal/backend"
	"github.com/xenking/pasta-storefront/internal/checkout"
	"github.com/xenking/pasta-storefront/internal/domain/auth"
	"github.com/xenking/pasta-storefront/internal/domain/order"
	"github.com/xenking/pasta-storefront/internal/domain/product"
)

// Notifier shows transient success and error messages.
type Notifier interface {
	Success(ctx context.Context, msg string)
	Error(ctx context.Context, msg string)
}

var (
	_ Notifier = (*Console)(nil)
	_ Notifier = (*Recorder)(nil)
)

// Console prints notifications to a writer and mirrors them to the context
// logger.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsole returns a Console writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) Success(ctx context.Context, msg string) {
	zctx.From(ctx).Debug("Notify", zap.String("level", "success"), zap.String("msg", msg))
	c.print("✓ " + msg)
}

func (c *Console) Error(ctx context.Context, msg string) {
	zctx.From(ctx).Debug("Notify", zap.String("level", "error"), zap.String("msg", msg))
	c.print("✗ " + msg)
}

func (c *Console) print(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintln(c.w, line)
}

// Level distinguishes recorded notifications.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Entry is a recorded notification.
type Entry struct {
	Level   Level
	Message string
}

// Recorder keeps notifications in memory.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

func (r *Recorder) Success(_ context.Context, msg string) {
	r.add(LevelSuccess, msg)
}

func (r *Recorder) Error(_ context.Context, msg string) {
	r.add(LevelError, msg)
}

func (r *Recorder) add(level Level, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Level: level, Message: msg})
}

// Entries returns a copy of the recorded notifications.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// Errors returns the recorded error messages.
func (r *Recorder) Errors() []string {
	var out []string
	for _, e := range r.Entries() {
		if e.Level == LevelError {
			out = append(out, e.Message)
		}
	}
	return out
}

// Fallback is shown for errors without a more specific message.
const Fallback = "Something went wrong, please try again"

// Message returns the user-facing text for err: a fixed text for failed
// logins, then the backend-provided message, then a per-class fallback.
func Message(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return "Invalid email or password"
	case errors.Is(err, checkout.ErrInProgress):
		return "A checkout is already in progress"
	case errors.Is(err, checkout.ErrEmptyCart):
		return "Your cart is empty"
	case errors.Is(err, checkout.ErrIncompleteProfile):
		return "Add a delivery address and phone to your profile before checking out"
	}

	var vErr *product.ValidationError
	if errors.As(err, &vErr) {
		return "Invalid " + vErr.Error()
	}

	var bErr *backend.Error
	if errors.As(err, &bErr) && bErr.Message() != "" {
		return bErr.Message()
	}

	switch {
	case errors.Is(err, auth.ErrAccountInactive):
		return "Your account is not confirmed yet, check your email"
	case errors.Is(err, auth.ErrUnauthenticated):
		return "Please log in to continue"
	case errors.Is(err, auth.ErrForbidden):
		return "Access denied"
	case errors.Is(err, product.ErrNotFound):
		return "Product not found"
	case errors.Is(err, order.ErrNotFound):
		return "Order not found"
	case errors.Is(err, order.ErrInvalidStatus):
		return "Unknown order status"
	case errors.Is(err, context.DeadlineExceeded):
		return "The request timed out"
	case bErr != nil && bErr.IsValidation():
		return "Please check the submitted data"
	default:
		return Fallback
	}
}

// Failure reports err through n using Message and logs the cause.
func Failure(ctx context.Context, n Notifier, err error) {
	zctx.From(ctx).Warn("Operation failed", zap.Error(err))
	n.Error(ctx, Message(err))
}
