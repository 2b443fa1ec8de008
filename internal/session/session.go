// Package session holds the application's authentication state: the opaque
// credentials and the cached user profile, persisted in storage slots and
// shared with the backend client.
package session

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/xenking/pasta-storefront/internal/domain/auth"
	"github.com/xenking/pasta-storefront/internal/storage"
)

// Listener receives the current user (nil when signed out) after every
// session change.
type Listener func(u *auth.User)

// credentials is the persisted form of the token slot.
type credentials struct {
	Token  string `json:"token,omitempty"`
	Cookie string `json:"cookie,omitempty"`
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source used for token expiry checks.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// Manager is the single owner of the auth state. It is safe for concurrent
// use.
type Manager struct {
	slots storage.Slots
	svc   auth.Service
	now   func() time.Time

	mu        sync.RWMutex
	creds     credentials
	user      *auth.User
	listeners map[int]Listener
	nextID    int
}

// New creates a Manager, reading the token and user slots exactly once.
// Unreadable slots are logged and treated as signed out.
func New(ctx context.Context, slots storage.Slots, svc auth.Service, opts ...Option) *Manager {
	m := &Manager{
		slots:     slots,
		svc:       svc,
		now:       time.Now,
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(m)
	}

	lg := zctx.From(ctx)
	if err := m.read(ctx, storage.KeyToken, &m.creds); err != nil {
		lg.Warn("Load session credentials", zap.Error(err))
		m.creds = credentials{}
	}
	var u auth.User
	switch err := m.read(ctx, storage.KeyUser, &u); {
	case err != nil:
		lg.Warn("Load cached user", zap.Error(err))
	case u.ID != 0 || u.Email != "":
		m.user = &u
	}
	return m
}

func (m *Manager) read(ctx context.Context, key string, v any) error {
	data, err := m.slots.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "read %s slot", key)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, "decode %s slot", key)
	}
	return nil
}

// Credentials returns the bearer token and cookie for backend calls.
func (m *Manager) Credentials() (token, cookie string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.creds.Token, m.creds.Cookie
}

// Current returns a copy of the signed-in user, or nil.
func (m *Manager) Current() *auth.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyUser(m.user)
}

// Authenticated reports whether credentials are present and, when they carry
// a JWT, it has not expired. The signature is not verified; that is the
// backend's job.
func (m *Manager) Authenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.creds.Token == "" && m.creds.Cookie == "" {
		return false
	}
	for _, raw := range []string{m.creds.Token, cookieValue(m.creds.Cookie)} {
		if raw != "" && expired(raw, m.now()) {
			return false
		}
	}
	return true
}

// expired reports whether raw is a JWT whose exp claim lies in the past.
// Opaque tokens never expire client-side.
func expired(raw string, now time.Time) bool {
	tok, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return false
	}
	exp, err := tok.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !now.Before(exp.Time)
}

// cookieValue returns the value of the first name=value pair in a Cookie
// header.
func cookieValue(header string) string {
	first, _, _ := strings.Cut(header, ";")
	_, v, ok := strings.Cut(first, "=")
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

// Login authenticates against the backend and persists the new session. When
// the login response carries no user, it is fetched from /auth/me.
func (m *Manager) Login(ctx context.Context, creds auth.Credentials) (*auth.User, error) {
	s, err := m.svc.Login(ctx, creds)
	if err != nil {
		return nil, errors.Wrap(err, "login")
	}

	m.mu.Lock()
	m.creds = credentials{Token: s.Token, Cookie: s.Cookie}
	m.mu.Unlock()

	u := s.User
	if u == nil {
		if u, err = m.svc.Me(ctx); err != nil {
			_ = m.reset(ctx)
			return nil, errors.Wrap(err, "fetch user")
		}
	}

	if err := m.store(ctx, u); err != nil {
		return nil, err
	}
	return copyUser(u), nil
}

// Logout ends the session. The backend call is best effort; local state is
// always cleared.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.svc.Logout(ctx); err != nil {
		zctx.From(ctx).Warn("Backend logout failed", zap.Error(err))
	}
	return m.reset(ctx)
}

// Refresh reloads the user from the backend. A rejected session is cleared
// locally and reported as auth.ErrUnauthenticated.
func (m *Manager) Refresh(ctx context.Context) (*auth.User, error) {
	if !m.Authenticated() {
		return nil, auth.ErrUnauthenticated
	}
	u, err := m.svc.Me(ctx)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthenticated) {
			_ = m.reset(ctx)
		}
		return nil, errors.Wrap(err, "refresh user")
	}
	if err := m.store(ctx, u); err != nil {
		return nil, err
	}
	return copyUser(u), nil
}

// UpdateProfile saves the editable profile fields and caches the result.
func (m *Manager) UpdateProfile(ctx context.Context, update auth.ProfileUpdate) (*auth.User, error) {
	cur := m.Current()
	if err := auth.RequireUser(cur); err != nil {
		return nil, err
	}
	u, err := m.svc.UpdateProfile(ctx, cur.ID, update)
	if err != nil {
		return nil, errors.Wrap(err, "update profile")
	}
	if u.Role == "" {
		// PATCH /users/:id may omit the role.
		u.Role = cur.Role
	}
	if err := m.store(ctx, u); err != nil {
		return nil, err
	}
	return copyUser(u), nil
}

// Subscribe registers fn to be called after every session change. The
// returned function removes the subscription.
func (m *Manager) Subscribe(fn Listener) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.listeners[id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

// store caches u with the current credentials and notifies listeners.
func (m *Manager) store(ctx context.Context, u *auth.User) error {
	m.mu.Lock()
	m.user = copyUser(u)
	creds := m.creds
	m.mu.Unlock()

	tokenData, err := json.Marshal(creds)
	if err != nil {
		return errors.Wrap(err, "encode credentials")
	}
	userData, err := json.Marshal(u)
	if err != nil {
		return errors.Wrap(err, "encode user")
	}
	if err := m.slots.Set(ctx, storage.KeyToken, tokenData); err != nil {
		return errors.Wrap(err, "write token slot")
	}
	if err := m.slots.Set(ctx, storage.KeyUser, userData); err != nil {
		return errors.Wrap(err, "write user slot")
	}

	m.notify(u)
	return nil
}

// reset drops the session in memory and in storage.
func (m *Manager) reset(ctx context.Context) error {
	m.mu.Lock()
	m.creds = credentials{}
	m.user = nil
	m.mu.Unlock()

	var firstErr error
	for _, key := range []string{storage.KeyToken, storage.KeyUser} {
		if err := m.slots.Delete(ctx, key); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "delete %s slot", key)
		}
	}

	m.notify(nil)
	return firstErr
}

func (m *Manager) notify(u *auth.User) {
	m.mu.RLock()
	listeners := make([]Listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.mu.RUnlock()

	for _, l := range listeners {
		l(copyUser(u))
	}
}

func copyUser(u *auth.User) *auth.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
