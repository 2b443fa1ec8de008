package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/pasta-storefront/internal/domain/auth"
	"github.com/xenking/pasta-storefront/internal/domain/order"
	"github.com/xenking/pasta-storefront/internal/export"
)

// fakeBackend is an in-memory stand-in for the storefront backend.
type fakeBackend struct {
	mu       sync.Mutex
	user     auth.User
	cart     map[int64]int
	placed   []map[string]any
	statuses map[int64]string
	calls    []string
}

func newFakeBackend(t *testing.T) (*fakeBackend, *httptest.Server) {
	t.Helper()
	f := &fakeBackend{
		user:     auth.User{ID: 1, Email: "ana@example.com", Role: auth.RoleAdmin, FirstName: "Ana", Address: "Calle 1", Phone: "555"},
		cart:     map[int64]int{},
		statuses: map[int64]string{10: "PAID", 11: "PAID"},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /products", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, `[
			{"id":1,"name":"Tallarines","category":"Simples","price":"500","stock":5},
			{"id":2,"name":"Sorrentinos","category":"Rellenas","price":300,"stock":0}
		]`)
	})
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var creds auth.Credentials
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds.Password != "secret" {
			writeJSON(w, http.StatusUnauthorized, `{"message":"Unauthorized"}`)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "access_token", Value: "session-1"})
		f.mu.Lock()
		data, _ := json.Marshal(map[string]any{"user": f.user})
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, string(data))
	})
	mux.HandleFunc("DELETE /cart/clear", f.authed(func(w http.ResponseWriter, _ *http.Request) {
		f.cart = map[int64]int{}
		writeJSON(w, http.StatusOK, `{}`)
	}))
	mux.HandleFunc("POST /cart/add", f.authed(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ProductID int64 `json:"productId"`
			Quantity  int   `json:"quantity"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.cart[body.ProductID] += body.Quantity
		writeJSON(w, http.StatusCreated, `{}`)
	}))
	mux.HandleFunc("POST /orders", f.authed(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.placed = append(f.placed, body)
		writeJSON(w, http.StatusCreated, `{"id":42,"status":"PAID","total":"1300"}`)
	}))
	mux.HandleFunc("GET /orders/all", f.authed(func(w http.ResponseWriter, _ *http.Request) {
		data, _ := json.Marshal([]map[string]any{
			{"id": 10, "status": f.statuses[10], "total": "1000", "items": []any{}},
			{"id": 11, "status": f.statuses[11], "total": "500", "items": []any{}},
		})
		writeJSON(w, http.StatusOK, string(data))
	}))
	mux.HandleFunc("PATCH /orders/{id}/status", f.authed(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Status string `json:"status"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		switch r.PathValue("id") {
		case "10":
			f.statuses[10] = body.Status
		case "11":
			f.statuses[11] = body.Status
		default:
			writeJSON(w, http.StatusNotFound, `{"message":"Pedido no encontrado"}`)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

// authed rejects calls without the session cookie and serializes handlers.
func (f *fakeBackend) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.calls = append(f.calls, r.Method+" "+r.URL.Path)
		if c, err := r.Cookie("access_token"); err != nil || c.Value != "session-1" {
			writeJSON(w, http.StatusUnauthorized, `{"message":"Unauthorized"}`)
			return
		}
		next(w, r)
	}
}

func (f *fakeBackend) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func newTestApp(t *testing.T, backendURL string, storage StorageConfig) (*App, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	cfg := &Config{
		BackendURL: backendURL,
		Storage:    storage,
		Checkout:   CheckoutConfig{Concurrency: 2},
	}
	require.NoError(t, cfg.Validate())

	a, err := New(context.Background(), cfg, Options{Out: &out})
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a, &out
}

func TestApp_ShoppingFlow(t *testing.T) {
	ctx := context.Background()
	f, srv := newFakeBackend(t)
	a, out := newTestApp(t, srv.URL, StorageConfig{Driver: DriverMemory})

	require.NoError(t, a.Exec(ctx, []string{"products", "-category", "simples"}))
	assert.Contains(t, out.String(), "Tallarines")
	assert.NotContains(t, out.String(), "Sorrentinos")

	require.NoError(t, a.Exec(ctx, []string{"cart", "add", "1"}))
	require.NoError(t, a.Exec(ctx, []string{"cart", "add", "1"}))
	require.NoError(t, a.Exec(ctx, []string{"cart", "add", "2"}))
	assert.Equal(t, 3, a.cart.TotalItems())

	// Checkout while signed out never reaches the backend cart.
	err := a.Exec(ctx, []string{"checkout"})
	require.ErrorIs(t, err, auth.ErrUnauthenticated)
	assert.Equal(t, 0, f.callCount())
	assert.Contains(t, out.String(), "Please log in to continue")

	require.NoError(t, a.Exec(ctx, []string{"login", "-email", "ana@example.com", "-password", "secret"}))
	assert.Contains(t, out.String(), "Welcome back, Ana!")

	out.Reset()
	require.NoError(t, a.Exec(ctx, []string{"checkout"}))
	assert.Contains(t, out.String(), "Order #42 received")
	assert.True(t, a.cart.IsEmpty())

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, map[int64]int{1: 2, 2: 1}, f.cart)
	require.Len(t, f.placed, 1)
	assert.Equal(t, "Calle 1", f.placed[0]["address"])
	assert.Equal(t, float64(1300), f.placed[0]["total"])
	assert.Equal(t, "DELETE /cart/clear", f.calls[0])
}

func TestApp_LoginFailure(t *testing.T) {
	_, srv := newFakeBackend(t)
	a, out := newTestApp(t, srv.URL, StorageConfig{Driver: DriverMemory})

	err := a.Exec(context.Background(), []string{"login", "-email", "ana@example.com", "-password", "nope"})
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)
	assert.Contains(t, out.String(), "Invalid email or password")
}

func TestApp_AdminOrders(t *testing.T) {
	ctx := context.Background()
	f, srv := newFakeBackend(t)
	a, out := newTestApp(t, srv.URL, StorageConfig{Driver: DriverMemory})

	err := a.Exec(ctx, []string{"admin", "orders", "list"})
	require.ErrorIs(t, err, auth.ErrUnauthenticated)

	require.NoError(t, a.Exec(ctx, []string{"login", "-email", "ana@example.com", "-password", "secret"}))
	require.NoError(t, a.Exec(ctx, []string{"admin", "orders", "status", "10", "PREPARING"}))
	assert.Contains(t, out.String(), "Order status updated")

	f.mu.Lock()
	assert.Equal(t, "PREPARING", f.statuses[10])
	assert.Equal(t, "PAID", f.statuses[11])
	f.mu.Unlock()

	err = a.Exec(ctx, []string{"admin", "orders", "status", "10", "preparing"})
	require.ErrorIs(t, err, order.ErrInvalidStatus)

	path := filepath.Join(t.TempDir(), "orders.jsonl.gz")
	require.NoError(t, a.Exec(ctx, []string{"admin", "orders", "export", path}))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = file.Close() }()
	var exported []order.Order
	require.NoError(t, export.Read(ctx, file, func(o order.Order) error {
		exported = append(exported, o)
		return nil
	}))
	require.Len(t, exported, 2)
	assert.Equal(t, order.StatusPreparing, exported[0].Status)
}

func TestApp_FileStoragePersistsCart(t *testing.T) {
	ctx := context.Background()
	_, srv := newFakeBackend(t)
	storage := StorageConfig{Driver: DriverFile, Dir: t.TempDir()}

	a, _ := newTestApp(t, srv.URL, storage)
	require.NoError(t, a.Exec(ctx, []string{"cart", "add", "1"}))
	require.NoError(t, a.Exec(ctx, []string{"cart", "set", "1", "4"}))

	b, out := newTestApp(t, srv.URL, storage)
	assert.Equal(t, 4, b.cart.TotalItems())
	require.NoError(t, b.Exec(ctx, []string{"cart", "show"}))
	assert.Contains(t, out.String(), "total 2000.00")

	require.NoError(t, b.Exec(ctx, []string{"cart", "set", "1", "0"}))
	assert.True(t, b.cart.IsEmpty())
}

func TestApp_Status(t *testing.T) {
	_, srv := newFakeBackend(t)
	a, out := newTestApp(t, srv.URL, StorageConfig{Driver: DriverMemory})

	require.NoError(t, a.Exec(context.Background(), []string{"status"}))
	assert.Contains(t, out.String(), `"status": "ok"`)
}

func TestApp_Usage(t *testing.T) {
	_, srv := newFakeBackend(t)
	a, out := newTestApp(t, srv.URL, StorageConfig{Driver: DriverMemory})
	ctx := context.Background()

	require.ErrorIs(t, a.Exec(ctx, nil), ErrUsage)
	require.ErrorIs(t, a.Exec(ctx, []string{"bake"}), ErrUsage)
	require.ErrorIs(t, a.Exec(ctx, []string{"cart", "add", "abc"}), ErrUsage)
	assert.Contains(t, out.String(), "usage: storefront cart")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "memory", cfg: Config{BackendURL: "http://x", Storage: StorageConfig{Driver: DriverMemory}}},
		{name: "file without dir", cfg: Config{BackendURL: "http://x", Storage: StorageConfig{Driver: DriverFile}}, wantErr: true},
		{name: "postgres without url", cfg: Config{BackendURL: "http://x", Storage: StorageConfig{Driver: DriverPostgres}}, wantErr: true},
		{name: "redis", cfg: Config{BackendURL: "http://x", Storage: StorageConfig{Driver: DriverRedis, RedisAddr: "localhost:6379"}}},
		{name: "unknown driver", cfg: Config{BackendURL: "http://x", Storage: StorageConfig{Driver: "s3"}}, wantErr: true},
		{name: "no backend", cfg: Config{Storage: StorageConfig{Driver: DriverMemory}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestLoadConfig_Env(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("PASTA_BACKEND_URL", "")
	t.Setenv("API_URL", "https://api.example.com")
	t.Setenv("PASTA_STORAGE_DRIVER", "memory")
	t.Setenv("PASTA_CHECKOUT_CONCURRENCY", "8")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", cfg.BackendURL)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, 8, cfg.Checkout.Concurrency)
}
