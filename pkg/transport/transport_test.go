package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// capture records the last request it saw and answers 204.
type capture struct {
	last *http.Request
}

func (c *capture) RoundTrip(r *http.Request) (*http.Response, error) {
	c.last = r
	return &http.Response{StatusCode: http.StatusNoContent, Body: http.NoBody, Request: r}, nil
}

func TestRequestID(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		ctxID    string
		wantSame string
	}{
		{name: "generates uuid"},
		{name: "keeps valid header", header: "abc-123", wantSame: "abc-123"},
		{name: "uses context id", ctxID: "checkout-1", wantSame: "checkout-1"},
		{name: "replaces oversized header", header: strings.Repeat("a", 129)},
		{name: "replaces non printable header", header: "bad\x01id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := &capture{}
			rt := Wrap(next, RequestID())

			ctx := context.Background()
			if tt.ctxID != "" {
				ctx = WithRequestID(ctx, tt.ctxID)
			}
			req := httptest.NewRequest(http.MethodGet, "http://backend/products", nil).WithContext(ctx)
			if tt.header != "" {
				req.Header.Set("X-Request-ID", tt.header)
			}

			resp, err := rt.RoundTrip(req)
			require.NoError(t, err)
			assert.Equal(t, http.StatusNoContent, resp.StatusCode)

			got := next.last.Header.Get("X-Request-ID")
			if tt.wantSame != "" {
				assert.Equal(t, tt.wantSame, got)
			} else {
				_, err := uuid.Parse(got)
				assert.NoError(t, err, "expected generated uuid, got %q", got)
			}
			assert.Equal(t, got, RequestIDFromContext(next.last.Context()))
		})
	}
}

func TestRequestID_DoesNotMutateCallerRequest(t *testing.T) {
	rt := Wrap(&capture{}, RequestID())
	req := httptest.NewRequest(http.MethodGet, "http://backend/products", nil)

	_, err := rt.RoundTrip(req)
	require.NoError(t, err)
	assert.Empty(t, req.Header.Get("X-Request-ID"))
}

func TestWrap_Order(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.RoundTripper) http.RoundTripper {
			return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
				order = append(order, name)
				return next.RoundTrip(r)
			})
		}
	}

	rt := Wrap(&capture{}, mark("outer"), mark("inner"))
	_, err := rt.RoundTrip(httptest.NewRequest(http.MethodGet, "http://backend/", nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner"}, order)
}

func TestLogRequests_PropagatesError(t *testing.T) {
	failing := RoundTripperFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})
	rt := Wrap(failing, LogRequests())

	_, err := rt.RoundTrip(httptest.NewRequest(http.MethodGet, "http://backend/", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestInstrument_PassesThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	client := &http.Client{Transport: Wrap(http.DefaultTransport,
		RequestID(),
		Instrument(tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider()),
		LogRequests(),
	)}

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}
