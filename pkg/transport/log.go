package transport

import (
	"net/http"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// LogRequests returns a middleware that logs every outbound call with the
// logger found in the request context.
func LogRequests() Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			lg := zctx.From(r.Context()).With(
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("request_id", r.Header.Get("X-Request-ID")),
			)

			start := time.Now()
			resp, err := next.RoundTrip(r)
			elapsed := time.Since(start)

			if err != nil {
				lg.Warn("Backend call failed", zap.Duration("duration", elapsed), zap.Error(err))
				return resp, err
			}
			lg.Debug("Backend call", zap.Int("status", resp.StatusCode), zap.Duration("duration", elapsed))
			return resp, nil
		})
	}
}

// Instrument returns a middleware emitting OpenTelemetry spans and metrics
// for every outbound call.
func Instrument(tp trace.TracerProvider, mp metric.MeterProvider) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return otelhttp.NewTransport(next,
			otelhttp.WithTracerProvider(tp),
			otelhttp.WithMeterProvider(mp),
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	}
}
