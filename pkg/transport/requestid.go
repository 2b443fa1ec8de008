package transport

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// requestIDKey is the context key for the request ID value.
type requestIDKey struct{}

// WithRequestID stores id in ctx so the RequestID middleware sends it instead
// of generating a new one. Useful for correlating the calls of one checkout.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext extracts the request ID from the context.
// It returns an empty string if no request ID is present.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// RequestID returns a middleware that ensures every outbound request carries
// an X-Request-ID header. An explicit header wins, then a context value,
// then a new UUID v4. Values must be at most 128 bytes of printable ASCII
// (0x20–0x7E); anything else is replaced.
func RequestID() Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			id := r.Header.Get("X-Request-ID")
			if !isValidRequestID(id) {
				id = RequestIDFromContext(r.Context())
			}
			if !isValidRequestID(id) {
				id = uuid.New().String()
			}

			r = r.Clone(WithRequestID(r.Context(), id))
			r.Header.Set("X-Request-ID", id)
			return next.RoundTrip(r)
		})
	}
}

// isValidRequestID checks that id is non-empty, at most 128 bytes, and
// contains only printable ASCII (0x20–0x7E).
func isValidRequestID(id string) bool {
	if len(id) == 0 || len(id) > 128 {
		return false
	}
	for i := range len(id) {
		if id[i] < 0x20 || id[i] > 0x7E {
			return false
		}
	}
	return true
}
