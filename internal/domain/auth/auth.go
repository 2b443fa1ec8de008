// Package auth defines users, sessions, and the account operations exposed by
// the backend, along with the role guards applied before rendering protected
// views.
package auth

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
)

var (
	// ErrUnauthenticated is returned when an operation requires a session and
	// none is present, or the backend rejected the session (401).
	ErrUnauthenticated = errors.New("session required")
	// ErrForbidden is returned when the current user lacks the required role.
	ErrForbidden = errors.New("access denied")
	// ErrInvalidCredentials is returned when login fails with 401.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountInactive is returned when login is refused because the
	// account's email is not confirmed yet.
	ErrAccountInactive = errors.New("account not confirmed")
)

// Role is a user's authorization level.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User is the authenticated buyer or administrator.
type User struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	City      string `json:"city"`
	ZipCode   string `json:"zipCode,omitempty"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// FullName joins first and last name.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// CanReceiveOrders reports whether the delivery profile is complete enough
// to place an order.
func (u *User) CanReceiveOrders() bool {
	return strings.TrimSpace(u.Address) != "" && strings.TrimSpace(u.Phone) != ""
}

// Session is the client's authentication state. Token and Cookie are opaque;
// at most one is normally set.
type Session struct {
	Token  string `json:"-"`
	Cookie string `json:"-"`
	User   *User  `json:"user"`
}

// HasCredentials reports whether any credential is present.
func (s *Session) HasCredentials() bool {
	return s != nil && (s.Token != "" || s.Cookie != "")
}

// Credentials is the login payload.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is the sign-up payload.
type Registration struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	City      string `json:"city"`
	ZipCode   string `json:"zipCode"`
}

// ProfileUpdate is the editable subset of a user's profile.
type ProfileUpdate struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
}

// ProfileFrom prefills an update from the current profile.
func ProfileFrom(u *User) ProfileUpdate {
	return ProfileUpdate{
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Phone:     u.Phone,
		Address:   u.Address,
	}
}

// Service defines the account operations exposed by the backend.
type Service interface {
	Login(ctx context.Context, creds Credentials) (*Session, error)
	Register(ctx context.Context, reg Registration) error
	Logout(ctx context.Context) error
	Me(ctx context.Context) (*User, error)
	Confirm(ctx context.Context, token string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	UpdateProfile(ctx context.Context, id int64, update ProfileUpdate) (*User, error)
}

// RequireUser guards views that need any authenticated user.
func RequireUser(u *User) error {
	if u == nil {
		return ErrUnauthenticated
	}
	return nil
}

// RequireAdmin guards admin-only views.
func RequireAdmin(u *User) error {
	if err := RequireUser(u); err != nil {
		return err
	}
	if !u.IsAdmin() {
		return ErrForbidden
	}
	return nil
}
