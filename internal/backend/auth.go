package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/pasta-storefront/internal/domain/auth"
)

// Auth implements auth.Service over the account endpoints.
type Auth struct {
	c *Client
}

var _ auth.Service = (*Auth)(nil)

// loginResponse covers both bearer-token and cookie-based backends.
type loginResponse struct {
	AccessToken string     `json:"access_token"`
	Token       string     `json:"token"`
	User        *auth.User `json:"user"`
}

// Login authenticates and returns the new session. A 401 unwraps to
// auth.ErrInvalidCredentials; a 400 mentioning confirmation unwraps to
// auth.ErrAccountInactive.
func (a *Auth) Login(ctx context.Context, creds auth.Credentials) (*auth.Session, error) {
	resp, data, err := a.c.send(ctx, call{method: http.MethodPost, path: "/auth/login", body: creds})
	if err != nil {
		var bErr *Error
		if errors.As(err, &bErr) {
			switch {
			case bErr.StatusCode == http.StatusUnauthorized:
				bErr.cause = auth.ErrInvalidCredentials
			case bErr.StatusCode == http.StatusBadRequest && mentionsConfirmation(bErr.Messages):
				bErr.cause = auth.ErrAccountInactive
			}
		}
		return nil, err
	}

	var out loginResponse
	if len(data) > 0 {
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, errors.Wrap(err, "decode login response")
		}
	}

	s := &auth.Session{
		Token: out.AccessToken,
		User:  out.User,
	}
	if s.Token == "" {
		s.Token = out.Token
	}
	s.Cookie = cookieHeader(resp.Cookies())
	if s.User == nil {
		// Some deployments answer with the bare user object.
		var u auth.User
		if err := json.Unmarshal(data, &u); err == nil && u.ID != 0 {
			s.User = &u
		}
	}
	return s, nil
}

// cookieHeader turns Set-Cookie values into a Cookie request header.
func cookieHeader(cookies []*http.Cookie) string {
	pairs := make([]string, 0, len(cookies))
	for _, c := range cookies {
		if c.Value == "" {
			continue
		}
		pairs = append(pairs, (&http.Cookie{Name: c.Name, Value: c.Value}).String())
	}
	return strings.Join(pairs, "; ")
}

func mentionsConfirmation(messages []string) bool {
	for _, m := range messages {
		m = strings.ToLower(m)
		if strings.Contains(m, "confirm") {
			return true
		}
	}
	return false
}

func (a *Auth) Register(ctx context.Context, reg auth.Registration) error {
	_, err := a.c.do(ctx, call{method: http.MethodPost, path: "/auth/register", body: reg}, nil)
	return err
}

func (a *Auth) Logout(ctx context.Context) error {
	_, err := a.c.do(ctx, call{method: http.MethodPost, path: "/auth/logout"}, nil)
	return err
}

// Me returns the user bound to the current credentials. The backend may wrap
// it as {"user": ...}.
func (a *Auth) Me(ctx context.Context) (*auth.User, error) {
	_, data, err := a.c.send(ctx, call{method: http.MethodGet, path: "/auth/me"})
	if err != nil {
		return nil, err
	}
	return decodeUser(data)
}

func (a *Auth) Confirm(ctx context.Context, token string) error {
	_, err := a.c.do(ctx, call{
		method: http.MethodGet,
		path:   "/auth/confirm",
		query:  url.Values{"token": {token}},
	}, nil)
	return err
}

func (a *Auth) ForgotPassword(ctx context.Context, email string) error {
	_, err := a.c.do(ctx, call{
		method: http.MethodPost,
		path:   "/auth/forgot-password",
		body:   map[string]string{"email": email},
	}, nil)
	return err
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

func (a *Auth) ResetPassword(ctx context.Context, token, newPassword string) error {
	_, err := a.c.do(ctx, call{
		method: http.MethodPost,
		path:   "/auth/reset-password",
		body:   resetPasswordRequest{Token: token, NewPassword: newPassword},
	}, nil)
	return err
}

func (a *Auth) UpdateProfile(ctx context.Context, id int64, update auth.ProfileUpdate) (*auth.User, error) {
	_, data, err := a.c.send(ctx, call{
		method: http.MethodPatch,
		path:   "/users/" + strconv.FormatInt(id, 10),
		body:   update,
	})
	if err != nil {
		return nil, err
	}
	return decodeUser(data)
}

func decodeUser(data []byte) (*auth.User, error) {
	if len(data) == 0 {
		return nil, errors.New("empty user response")
	}
	var wrapped struct {
		User *auth.User `json:"user"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, errors.Wrap(err, "decode user")
	}
	if wrapped.User != nil {
		return wrapped.User, nil
	}
	var u auth.User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, errors.Wrap(err, "decode user")
	}
	return &u, nil
}
