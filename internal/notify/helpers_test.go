package notify

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xenking/pasta-storefront/internal/backend"
)

// newBackend returns a client whose backend answers every call with status
// and body.
func newBackend(t *testing.T, status int, body string) *backend.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)

	c, err := backend.New(backend.Config{BaseURL: srv.URL})
	require.NoError(t, err)
	return c
}
